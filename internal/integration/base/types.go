package base

import (
	"context"
	"net/http"
	"time"

	"github.com/rumahku/billing/internal/domain/payment"
	"github.com/rumahku/billing/internal/types"
)

// Customer is the payer shown on the gateway checkout page
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// CheckoutRequest describes one hosted checkout
type CheckoutRequest struct {
	OrderID     string
	Amount      int64
	Currency    string
	TierID      string
	Description string
	Customer    Customer
	SuccessURL  string
	FailureURL  string
	ExpiresAt   time.Time
}

// CheckoutSession is what the gateway hands back for a new checkout
type CheckoutSession struct {
	// Reference is the gateway side id used for status checks and cancels
	Reference   string
	RedirectURL string
}

// Notification is a verified gateway callback mapped onto a payment result
type Notification struct {
	OrderID string
	// Amount is the gross amount the gateway reports, zero when absent
	Amount int64
	Result payment.Result
}

// PaymentGateway hides the status model of a single payment provider
type PaymentGateway interface {
	Provider() types.PaymentProvider

	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)

	// GetStatus polls the gateway for the current result of a checkout
	GetStatus(ctx context.Context, orderID, reference string) (payment.Result, error)

	// Cancel closes a checkout at the gateway so it can no longer be paid
	Cancel(ctx context.Context, orderID, reference string) error

	// ParseNotification authenticates a callback and maps it. A nil
	// notification with a nil error means the event is not relevant.
	ParseNotification(ctx context.Context, payload []byte, headers http.Header) (*Notification, error)
}
