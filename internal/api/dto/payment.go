package dto

import (
	"strings"

	"github.com/rumahku/billing/internal/domain/payment"
	"github.com/rumahku/billing/internal/domain/pricing"
	"github.com/rumahku/billing/internal/integration/base"
	"github.com/rumahku/billing/internal/types"
	"github.com/rumahku/billing/internal/validator"
)

// CustomerDetails is the payer shown on the hosted checkout page
type CustomerDetails struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

func (c CustomerDetails) ToCustomer() base.Customer {
	return base.Customer{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
		Phone: strings.TrimSpace(c.Phone),
	}
}

// CreateCheckoutRequest starts a payment for a tier.
// Provider falls back to the configured default gateway.
type CreateCheckoutRequest struct {
	TierID        string                `json:"tier_id" validate:"required"`
	BillingPeriod types.BillingPeriod   `json:"billing_period" validate:"required"`
	PromoCode     string                `json:"promo_code,omitempty" validate:"omitempty,max=64"`
	Provider      types.PaymentProvider `json:"provider,omitempty"`
	Customer      CustomerDetails       `json:"customer" validate:"required"`
}

func (r *CreateCheckoutRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.BillingPeriod.Validate(); err != nil {
		return err
	}
	if r.Provider != "" {
		return r.Provider.Validate()
	}
	return nil
}

// CheckoutResponse carries the transaction and where to send the payer.
// RedirectURL is empty when the promo covered the whole price.
type CheckoutResponse struct {
	Transaction *PaymentTransactionResponse `json:"transaction"`
	Quote       *pricing.Quote              `json:"quote"`
	RedirectURL string                      `json:"redirect_url,omitempty"`
	// Reused is set when a pending checkout with the same parameters was returned
	Reused bool `json:"reused"`
	// Activated is set when no payment was needed and the plan is already live
	Activated bool `json:"activated"`
}

type PaymentTransactionResponse struct {
	*payment.Transaction
}

type ListPaymentTransactionsResponse = types.ListResponse[*PaymentTransactionResponse]
