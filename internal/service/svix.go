package service

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/svix"
	"github.com/rumahku/billing/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// publishWebhookEvent hands an event to svix. Delivery problems are logged
// and never fail the operation that produced the event.
func publishWebhookEvent(ctx context.Context, publisher svix.Publisher, log *logger.Logger, eventName, familyID string, payload any) {
	if publisher == nil {
		return
	}

	webhookPayload, err := json.Marshal(payload)
	if err != nil {
		log.Errorw("failed to marshal webhook payload", "error", err, "event_name", eventName)
		return
	}

	webhookEvent := &types.WebhookEvent{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WEBHOOK_EVENT),
		EventName: eventName,
		FamilyID:  familyID,
		Timestamp: time.Now().UTC(),
		Payload:   webhookPayload,
	}
	if err := publisher.Publish(ctx, webhookEvent); err != nil {
		log.Errorw("failed to publish webhook event",
			"error", err,
			"event_name", eventName,
			"family_id", familyID,
		)
	}
}
