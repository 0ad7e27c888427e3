package supabase

import (
	"context"
	"sort"
	"time"

	"github.com/nedpals/supabase-go"
	domainPayment "github.com/rumahku/billing/internal/domain/payment"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

type paymentRepository struct {
	client *supabase.Client
	log    *logger.Logger
}

func NewPaymentRepository(client *supabase.Client, log *logger.Logger) domainPayment.Repository {
	return &paymentRepository{client: client, log: log}
}

func (r *paymentRepository) Create(_ context.Context, t *domainPayment.Transaction) error {
	r.log.Debugw("creating payment transaction", "order_id", t.OrderID, "amount", t.Amount)

	var rows []domainPayment.Transaction
	if err := r.client.DB.From(tablePayments).Insert(t).Execute(&rows); err != nil {
		return wrapError(err, "Payment", map[string]any{"order_id": t.OrderID})
	}
	return nil
}

func (r *paymentRepository) selectBy(column, value string) ([]*domainPayment.Transaction, error) {
	var rows []*domainPayment.Transaction
	err := r.client.DB.From(tablePayments).
		Select("*").
		Eq(column, value).
		Execute(&rows)
	if err != nil {
		return nil, wrapError(err, "Payment", map[string]any{column: value})
	}
	return rows, nil
}

func (r *paymentRepository) Get(_ context.Context, id string) (*domainPayment.Transaction, error) {
	rows, err := r.selectBy("id", id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, notFound("Payment", map[string]any{"payment_id": id})
	}
	return rows[0], nil
}

func (r *paymentRepository) GetByOrderID(_ context.Context, orderID string) (*domainPayment.Transaction, error) {
	rows, err := r.selectBy("order_id", orderID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, notFound("Payment", map[string]any{"order_id": orderID})
	}
	return rows[0], nil
}

func (r *paymentRepository) GetPendingByIdempotencyKey(_ context.Context, key string) (*domainPayment.Transaction, error) {
	rows, err := r.selectBy("idempotency_key", key)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pending := lo.Filter(rows, func(t *domainPayment.Transaction, _ int) bool {
		return t.PaymentStatus == types.PaymentStatusPending && t.ExpiresAt.After(now)
	})
	if len(pending) == 0 {
		return nil, notFound("Payment", map[string]any{"idempotency_key": key})
	}
	return lo.MaxBy(pending, func(a, b *domainPayment.Transaction) bool {
		return a.CreatedAt.After(b.CreatedAt)
	}), nil
}

// Update is filtered on payment_status=pending so settled rows never change
func (r *paymentRepository) Update(_ context.Context, t *domainPayment.Transaction) error {
	var rows []domainPayment.Transaction
	err := r.client.DB.From(tablePayments).
		Update(map[string]any{
			"payment_status":    t.PaymentStatus,
			"gateway_reference": t.GatewayReference,
			"checkout_url":      t.CheckoutURL,
			"payment_method":    t.PaymentMethod,
			"paid_at":           t.PaidAt,
			"failed_at":         t.FailedAt,
			"failure_reason":    t.FailureReason,
			"metadata":          t.Metadata,
			"updated_at":        t.UpdatedAt,
			"updated_by":        t.UpdatedBy,
		}).
		Eq("id", t.ID).
		Eq("payment_status", string(types.PaymentStatusPending)).
		Execute(&rows)
	if err != nil {
		return wrapError(err, "Payment", map[string]any{"order_id": t.OrderID})
	}
	if len(rows) == 0 {
		return ierr.NewError("payment transaction is no longer pending").
			WithHint("Payment has already been settled").
			WithReportableDetails(map[string]any{"order_id": t.OrderID}).
			Mark(ierr.ErrVersionConflict)
	}
	return nil
}

func (r *paymentRepository) List(_ context.Context, filter *types.PaymentTransactionFilter) ([]*domainPayment.Transaction, error) {
	if filter == nil {
		filter = types.NewPaymentTransactionFilter()
	}

	query := r.client.DB.From(tablePayments).Select("*")
	var rows []*domainPayment.Transaction
	var err error
	if filter.FamilyID != "" {
		err = query.Eq("family_id", filter.FamilyID).Execute(&rows)
	} else {
		err = query.Execute(&rows)
	}
	if err != nil {
		return nil, wrapError(err, "Payment", nil)
	}

	if len(filter.Statuses) > 0 {
		rows = lo.Filter(rows, func(t *domainPayment.Transaction, _ int) bool {
			return lo.Contains(filter.Statuses, t.PaymentStatus)
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return page(rows, filter), nil
}

func (r *paymentRepository) SumRevenue(_ context.Context) ([]*domainPayment.Revenue, error) {
	rows, err := r.selectBy("payment_status", string(types.PaymentStatusSuccess))
	if err != nil {
		return nil, err
	}

	byCurrency := lo.GroupBy(rows, func(t *domainPayment.Transaction) string { return t.Currency })
	revenue := make([]*domainPayment.Revenue, 0, len(byCurrency))
	for currency, txs := range byCurrency {
		revenue = append(revenue, &domainPayment.Revenue{
			Currency:     currency,
			Amount:       lo.SumBy(txs, func(t *domainPayment.Transaction) int64 { return t.Amount }),
			Transactions: len(txs),
		})
	}
	sort.Slice(revenue, func(i, j int) bool { return revenue[i].Currency < revenue[j].Currency })
	return revenue, nil
}
