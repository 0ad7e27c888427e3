package postgres

import (
	"context"

	"github.com/rumahku/billing/internal/config"
	"github.com/rumahku/billing/internal/logger"
	sentryService "github.com/rumahku/billing/internal/sentry"
	"github.com/rumahku/billing/internal/types"
)

// SentryClient wraps a transaction client with Sentry span tracking
type SentryClient struct {
	client IClient
	sentry *sentryService.Service
	logger *logger.Logger
}

// NewClient returns the transaction client for the configured store.
// A nil db means the store has no SQL transactions.
func NewClient(cfg *config.Configuration, db *DB, sentry *sentryService.Service, logger *logger.Logger) IClient {
	var client IClient = NoTxClient{}
	if cfg.Store.Provider == types.StoreProviderPostgres && db != nil {
		client = db
	}
	return NewSentryClient(client, sentry, logger)
}

func NewSentryClient(client IClient, sentry *sentryService.Service, logger *logger.Logger) IClient {
	return &SentryClient{
		client: client,
		sentry: sentry,
		logger: logger,
	}
}

// WithTx wraps the given function in a transaction with Sentry span tracking
func (c *SentryClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	span, spanCtx := c.sentry.StartDBSpan(ctx, "postgres.transaction", map[string]interface{}{
		"operation": "transaction",
	})
	if span != nil {
		defer span.Finish()
	}

	return c.client.WithTx(spanCtx, fn)
}
