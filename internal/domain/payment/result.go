package payment

import (
	"time"

	"github.com/rumahku/billing/internal/types"
)

// Result is the outcome a gateway reports for a checkout.
// Exactly one of SuccessResult, PendingResult, ErrorResult or ClosedResult.
type Result interface {
	Kind() types.PaymentResultKind
	// Status is the transaction status the result moves to
	Status() types.PaymentStatus
	isResult()
}

type SuccessResult struct {
	GatewayReference string    `json:"gateway_reference"`
	PaidAt           time.Time `json:"paid_at"`
	Method           string    `json:"method,omitempty"`
}

type PendingResult struct {
	GatewayReference string `json:"gateway_reference"`
	Reason           string `json:"reason,omitempty"`
}

type ErrorResult struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ClosedResult struct {
	Reason types.PaymentClosedReason `json:"reason"`
}

func (SuccessResult) Kind() types.PaymentResultKind { return types.PaymentResultSuccess }
func (PendingResult) Kind() types.PaymentResultKind { return types.PaymentResultPending }
func (ErrorResult) Kind() types.PaymentResultKind   { return types.PaymentResultError }
func (ClosedResult) Kind() types.PaymentResultKind  { return types.PaymentResultClosed }

func (SuccessResult) Status() types.PaymentStatus { return types.PaymentStatusSuccess }
func (PendingResult) Status() types.PaymentStatus { return types.PaymentStatusPending }
func (ErrorResult) Status() types.PaymentStatus   { return types.PaymentStatusFailed }

func (r ClosedResult) Status() types.PaymentStatus {
	if r.Reason == types.PaymentClosedExpired {
		return types.PaymentStatusExpired
	}
	return types.PaymentStatusCancelled
}

func (SuccessResult) isResult() {}
func (PendingResult) isResult() {}
func (ErrorResult) isResult()   {}
func (ClosedResult) isResult()  {}
