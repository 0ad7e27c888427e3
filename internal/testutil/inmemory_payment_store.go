package testutil

import (
	"context"
	"maps"
	"time"

	"github.com/rumahku/billing/internal/domain/payment"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Transaction]
}

// NewInMemoryPaymentStore creates a new in-memory payment repository
func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Transaction](),
	}
}

func copyTransaction(t *payment.Transaction) *payment.Transaction {
	if t == nil {
		return nil
	}
	copied := *t
	copied.Metadata = maps.Clone(t.Metadata)
	return &copied
}

func notFoundPayment(key string) error {
	return ierr.NewError("payment transaction not found").
		WithHint("Payment not found").
		WithReportableDetails(map[string]any{
			"order_id": key,
		}).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, t *payment.Transaction) error {
	if t == nil {
		return ierr.NewError("payment transaction cannot be nil").
			WithHint("Payment cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if _, found := s.InMemoryStore.Find(ctx, func(existing *payment.Transaction) bool {
		return existing.OrderID == t.OrderID
	}); found {
		return ierr.NewError("order id already exists").
			WithHint("Order already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, t.ID, copyTransaction(t))
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Transaction, error) {
	t, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, notFoundPayment(id)
	}
	return copyTransaction(t), nil
}

func (s *InMemoryPaymentStore) GetByOrderID(ctx context.Context, orderID string) (*payment.Transaction, error) {
	t, found := s.InMemoryStore.Find(ctx, func(t *payment.Transaction) bool {
		return t.OrderID == orderID
	})
	if !found {
		return nil, notFoundPayment(orderID)
	}
	return copyTransaction(t), nil
}

func (s *InMemoryPaymentStore) GetPendingByIdempotencyKey(ctx context.Context, key string) (*payment.Transaction, error) {
	now := time.Now().UTC()
	items, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, t *payment.Transaction, _ interface{}) bool {
		return t.IdempotencyKey == key && t.PaymentStatus == types.PaymentStatusPending && t.ExpiresAt.After(now)
	}, func(i, j *payment.Transaction) bool {
		return i.CreatedAt.After(j.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, notFoundPayment(key)
	}
	return copyTransaction(items[0]), nil
}

// Update only applies to pending rows, a settled row yields ErrVersionConflict
func (s *InMemoryPaymentStore) Update(ctx context.Context, t *payment.Transaction) error {
	_, err := s.InMemoryStore.Mutate(ctx, t.ID, func(existing *payment.Transaction) (*payment.Transaction, error) {
		if existing.PaymentStatus != types.PaymentStatusPending {
			return nil, ierr.NewError("payment transaction is no longer pending").
				WithHint("Payment was already settled").
				WithReportableDetails(map[string]any{
					"order_id": existing.OrderID,
					"status":   existing.PaymentStatus,
				}).
				Mark(ierr.ErrVersionConflict)
		}
		return copyTransaction(t), nil
	})
	if err != nil && ierr.IsNotFound(err) {
		return notFoundPayment(t.OrderID)
	}
	return err
}

func paymentFilterFn(_ context.Context, t *payment.Transaction, filter interface{}) bool {
	f, ok := filter.(*types.PaymentTransactionFilter)
	if !ok || f == nil {
		return true
	}
	if f.FamilyID != "" && t.FamilyID != f.FamilyID {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, t.PaymentStatus) {
		return false
	}
	return true
}

func (s *InMemoryPaymentStore) List(ctx context.Context, filter *types.PaymentTransactionFilter) ([]*payment.Transaction, error) {
	items, err := s.InMemoryStore.List(ctx, filter, paymentFilterFn, func(i, j *payment.Transaction) bool {
		return i.CreatedAt.After(j.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(t *payment.Transaction, _ int) *payment.Transaction { return copyTransaction(t) }), nil
}

func (s *InMemoryPaymentStore) SumRevenue(ctx context.Context) ([]*payment.Revenue, error) {
	items, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, t *payment.Transaction, _ interface{}) bool {
		return t.PaymentStatus == types.PaymentStatusSuccess
	}, nil)
	if err != nil {
		return nil, err
	}

	byCurrency := lo.GroupBy(items, func(t *payment.Transaction) string { return t.Currency })
	revenue := make([]*payment.Revenue, 0, len(byCurrency))
	for currency, txns := range byCurrency {
		revenue = append(revenue, &payment.Revenue{
			Currency:     currency,
			Amount:       lo.SumBy(txns, func(t *payment.Transaction) int64 { return t.Amount }),
			Transactions: len(txns),
		})
	}
	return revenue, nil
}
