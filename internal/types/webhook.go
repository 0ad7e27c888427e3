package types

import (
	"encoding/json"
	"time"
)

// WebhookEvent is a billing event delivered to the family's webhook endpoints
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventName string          `json:"event_name"`
	FamilyID  string          `json:"family_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// payment event names
const (
	WebhookEventPaymentCreated   = "payment.created"
	WebhookEventPaymentSucceeded = "payment.succeeded"
	WebhookEventPaymentFailed    = "payment.failed"
	WebhookEventPaymentClosed    = "payment.closed"
)

// subscription event names
const (
	WebhookEventSubscriptionCreated    = "subscription.created"
	WebhookEventSubscriptionRenewed    = "subscription.renewed"
	WebhookEventSubscriptionUpgraded   = "subscription.upgraded"
	WebhookEventSubscriptionDowngraded = "subscription.downgraded"
	WebhookEventSubscriptionCancelled  = "subscription.cancelled"
	WebhookEventSubscriptionExpired    = "subscription.expired"
)

// SubscriptionEventName maps a history action to its webhook event
func SubscriptionEventName(action SubscriptionAction) string {
	return "subscription." + string(action)
}
