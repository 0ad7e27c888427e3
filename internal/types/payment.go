package types

import (
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/samber/lo"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusExpired   PaymentStatus = "expired"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

func (s PaymentStatus) String() string {
	return string(s)
}

func (s PaymentStatus) Validate() error {
	allowed := []PaymentStatus{
		PaymentStatusPending,
		PaymentStatusSuccess,
		PaymentStatusFailed,
		PaymentStatusExpired,
		PaymentStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid payment status").
			WithHint("Please provide a valid payment status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"status":  s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsTerminal reports whether the transaction can no longer change
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPending
}

// PaymentProvider identifies the gateway a checkout was created on
type PaymentProvider string

const (
	PaymentProviderMidtrans PaymentProvider = "midtrans"
	PaymentProviderXendit   PaymentProvider = "xendit"
	PaymentProviderStripe   PaymentProvider = "stripe"
	// PaymentProviderNone is used for checkouts that were fully discounted
	PaymentProviderNone PaymentProvider = "none"
)

func (p PaymentProvider) String() string {
	return string(p)
}

func (p PaymentProvider) Validate() error {
	allowed := []PaymentProvider{
		PaymentProviderMidtrans,
		PaymentProviderXendit,
		PaymentProviderStripe,
	}
	if !lo.Contains(allowed, p) {
		return ierr.NewError("invalid payment provider").
			WithHint("Payment provider must be one of midtrans, xendit or stripe").
			WithReportableDetails(map[string]any{
				"allowed":  allowed,
				"provider": p,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentResultKind tags the variants of a gateway payment result
type PaymentResultKind string

const (
	PaymentResultSuccess PaymentResultKind = "success"
	PaymentResultPending PaymentResultKind = "pending"
	PaymentResultError   PaymentResultKind = "error"
	PaymentResultClosed  PaymentResultKind = "closed"
)

// PaymentClosedReason explains why a checkout was closed without payment
type PaymentClosedReason string

const (
	PaymentClosedExpired   PaymentClosedReason = "expired"
	PaymentClosedCancelled PaymentClosedReason = "cancelled"
)

const DefaultCurrency = "IDR"
