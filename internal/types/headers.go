package types

const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	HeaderFamilyID      = "X-Family-ID"
	HeaderAPIKey        = "x-api-key"

	// Gateway notification headers
	HeaderXenditCallbackToken = "x-callback-token"
	HeaderStripeSignature     = "Stripe-Signature"
)
