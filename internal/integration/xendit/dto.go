package xendit

type invoiceCustomer struct {
	GivenNames   string `json:"given_names"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobile_number,omitempty"`
}

type invoiceItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type createInvoiceRequest struct {
	ExternalID         string           `json:"external_id"`
	Amount             int64            `json:"amount"`
	PayerEmail         string           `json:"payer_email,omitempty"`
	Description        string           `json:"description"`
	Customer           *invoiceCustomer `json:"customer,omitempty"`
	Items              []invoiceItem    `json:"items,omitempty"`
	Currency           string           `json:"currency"`
	InvoiceDuration    int64            `json:"invoice_duration"`
	SuccessRedirectURL string           `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string           `json:"failure_redirect_url,omitempty"`
}

// invoice is both the API representation and the callback body
type invoice struct {
	ID             string  `json:"id"`
	ExternalID     string  `json:"external_id"`
	Status         string  `json:"status"`
	Amount         float64 `json:"amount"`
	PaidAmount     float64 `json:"paid_amount"`
	InvoiceURL     string  `json:"invoice_url"`
	PaymentMethod  string  `json:"payment_method"`
	PaymentChannel string  `json:"payment_channel"`
	PaidAt         string  `json:"paid_at"`
	ExpiryDate     string  `json:"expiry_date"`
}

const (
	statusPending = "PENDING"
	statusPaid    = "PAID"
	statusSettled = "SETTLED"
	statusExpired = "EXPIRED"
)
