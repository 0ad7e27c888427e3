package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"
	domainPayment "github.com/rumahku/billing/internal/domain/payment"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/postgres"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

type paymentRepository struct {
	db  *postgres.DB
	log *logger.Logger
}

func NewPaymentRepository(db *postgres.DB, log *logger.Logger) domainPayment.Repository {
	return &paymentRepository{db: db, log: log}
}

func (r *paymentRepository) Create(ctx context.Context, t *domainPayment.Transaction) error {
	r.log.Debugw("creating payment transaction",
		"order_id", t.OrderID,
		"family_id", t.FamilyID,
		"amount", t.Amount,
	)

	span := StartRepositorySpan(ctx, "payment", "create", map[string]interface{}{"order_id": t.OrderID})
	defer FinishSpan(span)

	query := `
		INSERT INTO payment_transactions (
			id, order_id, family_id, user_id, tier_id, billing_period, provider, payment_status,
			original_amount, discount_amount, amount, currency, promo_code, promo_code_id,
			gateway_reference, checkout_url, payment_method, idempotency_key, expires_at,
			paid_at, failed_at, failure_reason, metadata,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :order_id, :family_id, :user_id, :tier_id, :billing_period, :provider, :payment_status,
			:original_amount, :discount_amount, :amount, :currency, :promo_code, :promo_code_id,
			:gateway_reference, :checkout_url, :payment_method, :idempotency_key, :expires_at,
			:paid_at, :failed_at, :failure_reason, :metadata,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, t); err != nil {
		SetSpanError(span, err)
		return postgres.WrapError(err, "Payment", map[string]any{"order_id": t.OrderID})
	}

	SetSpanSuccess(span)
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*domainPayment.Transaction, error) {
	var t domainPayment.Transaction
	err := r.db.GetQuerier(ctx).GetContext(ctx, &t,
		`SELECT * FROM payment_transactions WHERE id = $1`, id)
	if err != nil {
		return nil, postgres.WrapError(err, "Payment", map[string]any{"payment_id": id})
	}
	return &t, nil
}

func (r *paymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domainPayment.Transaction, error) {
	span := StartRepositorySpan(ctx, "payment", "get_by_order_id", map[string]interface{}{"order_id": orderID})
	defer FinishSpan(span)

	var t domainPayment.Transaction
	err := r.db.GetQuerier(ctx).GetContext(ctx, &t,
		`SELECT * FROM payment_transactions WHERE order_id = $1`, orderID)
	if err != nil {
		SetSpanError(span, err)
		return nil, postgres.WrapError(err, "Payment", map[string]any{"order_id": orderID})
	}

	SetSpanSuccess(span)
	return &t, nil
}

func (r *paymentRepository) GetPendingByIdempotencyKey(ctx context.Context, key string) (*domainPayment.Transaction, error) {
	var t domainPayment.Transaction
	err := r.db.GetQuerier(ctx).GetContext(ctx, &t, `
		SELECT * FROM payment_transactions
		WHERE idempotency_key = $1 AND payment_status = $2 AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1`,
		key, types.PaymentStatusPending, time.Now().UTC())
	if err != nil {
		return nil, postgres.WrapError(err, "Payment", map[string]any{"idempotency_key": key})
	}
	return &t, nil
}

// Update only touches pending rows. A transaction that already reached a
// terminal state yields ErrVersionConflict, which makes duplicate gateway
// callbacks harmless.
func (r *paymentRepository) Update(ctx context.Context, t *domainPayment.Transaction) error {
	span := StartRepositorySpan(ctx, "payment", "update", map[string]interface{}{
		"order_id":       t.OrderID,
		"payment_status": t.PaymentStatus,
	})
	defer FinishSpan(span)

	query := `
		UPDATE payment_transactions SET
			payment_status = :payment_status,
			gateway_reference = :gateway_reference,
			checkout_url = :checkout_url,
			payment_method = :payment_method,
			paid_at = :paid_at,
			failed_at = :failed_at,
			failure_reason = :failure_reason,
			metadata = :metadata,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND payment_status = 'pending'`

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, t)
	if err != nil {
		SetSpanError(span, err)
		return postgres.WrapError(err, "Payment", map[string]any{"order_id": t.OrderID})
	}

	n, err := result.RowsAffected()
	if err != nil {
		SetSpanError(span, err)
		return postgres.WrapError(err, "Payment", map[string]any{"order_id": t.OrderID})
	}
	if n == 0 {
		err := ierr.NewError("payment transaction is no longer pending").
			WithHint("Payment has already been settled").
			WithReportableDetails(map[string]any{"order_id": t.OrderID}).
			Mark(ierr.ErrVersionConflict)
		SetSpanError(span, err)
		return err
	}

	SetSpanSuccess(span)
	return nil
}

func (r *paymentRepository) List(ctx context.Context, filter *types.PaymentTransactionFilter) ([]*domainPayment.Transaction, error) {
	if filter == nil {
		filter = types.NewPaymentTransactionFilter()
	}

	c := &conditions{}
	if filter.FamilyID != "" {
		c.add("family_id = ?", filter.FamilyID)
	}
	if len(filter.Statuses) > 0 {
		c.add("payment_status = ANY(?)", pq.Array(lo.Map(filter.Statuses, func(s types.PaymentStatus, _ int) string {
			return string(s)
		})))
	}
	query, args := c.build(`SELECT * FROM payment_transactions`, paginate("created_at DESC, id", filter))

	var txs []*domainPayment.Transaction
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &txs, query, args...); err != nil {
		return nil, postgres.WrapError(err, "Payment", nil)
	}
	return txs, nil
}

func (r *paymentRepository) SumRevenue(ctx context.Context) ([]*domainPayment.Revenue, error) {
	var revenue []*domainPayment.Revenue
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &revenue, `
		SELECT currency, COALESCE(SUM(amount), 0) AS amount, COUNT(*) AS transactions
		FROM payment_transactions
		WHERE payment_status = $1
		GROUP BY currency
		ORDER BY currency`, types.PaymentStatusSuccess)
	if err != nil {
		return nil, postgres.WrapError(err, "Payment", nil)
	}
	return revenue, nil
}
