package testutil

import (
	"context"
	"sync/atomic"

	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

type txMarker struct{}

// MockPostgresClient runs fn inline and counts the outermost transactions
type MockPostgresClient struct {
	logger *logger.Logger
	txs    atomic.Int64
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger) *MockPostgresClient {
	return &MockPostgresClient{
		logger: logger,
	}
}

// WithTx executes the given function, nested calls reuse the outer transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}

	c.txs.Add(1)
	return fn(context.WithValue(ctx, txMarker{}, true))
}

// Transactions returns how many outermost transactions were started
func (c *MockPostgresClient) Transactions() int64 {
	return c.txs.Load()
}
