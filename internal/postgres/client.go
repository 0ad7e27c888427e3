package postgres

import (
	"context"

	"go.uber.org/fx"
)

// IClient defines the interface for postgres client operations
type IClient interface {
	// WithTx wraps the given function in a transaction
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

// Module provides the sqlx pool and the transaction client
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			NewClient,
		),
	)
}

// NoTxClient runs fn directly, used by stores without transactions
type NoTxClient struct{}

func (NoTxClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
