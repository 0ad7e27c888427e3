package svix

import (
	"context"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/rumahku/billing/internal/config"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/types"
	svix "github.com/svix/svix-webhooks/go"
	"github.com/svix/svix-webhooks/go/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher delivers billing events to a family's webhook endpoints
type Publisher interface {
	Publish(ctx context.Context, event *types.WebhookEvent) error
}

// Client wraps the Svix SDK client, one Svix application per family
type Client struct {
	client  *svix.Svix
	logger  *logger.Logger
	enabled bool
}

// NewClient creates a new Svix client, a disabled client drops every event
func NewClient(cfg *config.Configuration, logger *logger.Logger) (*Client, error) {
	if !cfg.Svix.Enabled {
		return &Client{enabled: false, logger: logger}, nil
	}

	var options *svix.SvixOptions
	if cfg.Svix.BaseURL != "" {
		serverURL, err := url.Parse(cfg.Svix.BaseURL)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Invalid svix base url").
				Mark(ierr.ErrValidation)
		}
		options = &svix.SvixOptions{ServerUrl: serverURL}
	}

	svixClient, err := svix.New(cfg.Svix.AuthToken, options)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create svix client").
			Mark(ierr.ErrSystem)
	}

	return &Client{
		client:  svixClient,
		logger:  logger,
		enabled: true,
	}, nil
}

// NewPublisher exposes the client through the Publisher interface
func NewPublisher(client *Client) Publisher {
	return client
}

func applicationID(familyID string) string {
	return "family_" + familyID
}

// getOrCreateApplication gets or creates the Svix application of a family
func (c *Client) getOrCreateApplication(ctx context.Context, familyID string) (string, error) {
	appID := applicationID(familyID)

	if _, err := c.client.Application.Get(ctx, appID); err == nil {
		return appID, nil
	}

	app, err := c.client.Application.Create(ctx, models.ApplicationIn{
		Name: appID,
		Uid:  &appID,
	}, &svix.ApplicationCreateOptions{})
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to create webhook application").
			WithReportableDetails(map[string]any{"family_id": familyID}).
			Mark(ierr.ErrHTTPClient)
	}
	return app.Id, nil
}

// Publish sends event as a Svix message
func (c *Client) Publish(ctx context.Context, event *types.WebhookEvent) error {
	if !c.enabled || c.client == nil {
		return nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to decode webhook payload").
			Mark(ierr.ErrValidation)
	}
	payload["event_id"] = event.ID
	payload["timestamp"] = event.Timestamp

	appID, err := c.getOrCreateApplication(ctx, event.FamilyID)
	if err != nil {
		return err
	}

	_, err = c.client.Message.Create(ctx, appID, models.MessageIn{
		EventType: event.EventName,
		Payload:   payload,
	}, &svix.MessageCreateOptions{})
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.logger.Debugw("svix application missing, dropping event", "family_id", event.FamilyID, "event", event.EventName)
			return nil
		}
		return ierr.WithError(err).
			WithHint("Failed to send webhook message").
			WithReportableDetails(map[string]any{"event": event.EventName}).
			Mark(ierr.ErrHTTPClient)
	}

	c.logger.Debugw("published webhook event", "family_id", event.FamilyID, "event", event.EventName)
	return nil
}
