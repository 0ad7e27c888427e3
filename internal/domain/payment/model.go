package payment

import (
	"time"

	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
)

// Transaction is one checkout attempt for a tier
type Transaction struct {
	// ID is the internal identifier
	ID string `json:"id" db:"id"`

	// OrderID is the identifier shared with the gateway
	OrderID string `json:"order_id" db:"order_id"`

	FamilyID      string              `json:"family_id" db:"family_id"`
	UserID        string              `json:"user_id" db:"user_id"`
	TierID        string              `json:"tier_id" db:"tier_id"`
	BillingPeriod types.BillingPeriod `json:"billing_period" db:"billing_period"`

	Provider      types.PaymentProvider `json:"provider" db:"provider"`
	PaymentStatus types.PaymentStatus   `json:"payment_status" db:"payment_status"`

	// OriginalAmount is the tier price before any promo
	OriginalAmount int64 `json:"original_amount" db:"original_amount"`

	DiscountAmount int64 `json:"discount_amount" db:"discount_amount"`

	// Amount is what the gateway charges
	Amount   int64  `json:"amount" db:"amount"`
	Currency string `json:"currency" db:"currency"`

	PromoCode   *string `json:"promo_code,omitempty" db:"promo_code"`
	PromoCodeID *string `json:"promo_code_id,omitempty" db:"promo_code_id"`

	// GatewayReference is the gateway side id (snap token, invoice id, session id)
	GatewayReference *string `json:"gateway_reference,omitempty" db:"gateway_reference"`
	CheckoutURL      *string `json:"checkout_url,omitempty" db:"checkout_url"`
	PaymentMethod    *string `json:"payment_method,omitempty" db:"payment_method"`

	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`

	ExpiresAt     time.Time  `json:"expires_at" db:"expires_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	FailedAt      *time.Time `json:"failed_at,omitempty" db:"failed_at"`
	FailureReason *string    `json:"failure_reason,omitempty" db:"failure_reason"`

	Metadata types.Metadata `json:"metadata,omitempty" db:"metadata"`

	types.BaseModel
}

// IsTerminal reports whether callbacks can no longer change the transaction
func (t *Transaction) IsTerminal() bool {
	return t.PaymentStatus.IsTerminal()
}

// IsOverdue reports whether a pending transaction is past its expiry
func (t *Transaction) IsOverdue(now time.Time) bool {
	return t.PaymentStatus == types.PaymentStatusPending && now.After(t.ExpiresAt)
}

func (t *Transaction) Validate() error {
	if t.OrderID == "" {
		return ierr.NewError("order id is required").
			WithHint("Order id is required").
			Mark(ierr.ErrValidation)
	}

	if t.FamilyID == "" {
		return ierr.NewError("family id is required").
			WithHint("Family id is required").
			Mark(ierr.ErrValidation)
	}

	if err := t.BillingPeriod.Validate(); err != nil {
		return err
	}

	if err := t.PaymentStatus.Validate(); err != nil {
		return err
	}

	if t.Amount < 0 || t.DiscountAmount < 0 || t.OriginalAmount < 0 {
		return ierr.NewError("payment amounts must not be negative").
			WithHint("Payment amounts must not be negative").
			WithReportableDetails(map[string]any{
				"order_id": t.OrderID,
				"amount":   t.Amount,
			}).
			Mark(ierr.ErrValidation)
	}

	if t.OriginalAmount-t.DiscountAmount != t.Amount {
		return ierr.NewError("payment amount does not match original minus discount").
			WithHint("Payment amount is inconsistent").
			WithReportableDetails(map[string]any{
				"order_id":        t.OrderID,
				"original_amount": t.OriginalAmount,
				"discount_amount": t.DiscountAmount,
				"amount":          t.Amount,
			}).
			Mark(ierr.ErrValidation)
	}

	return nil
}

// Revenue is the successful payment total for one currency
type Revenue struct {
	Currency     string `json:"currency" db:"currency"`
	Amount       int64  `json:"amount" db:"amount"`
	Transactions int    `json:"transactions" db:"transactions"`
}
