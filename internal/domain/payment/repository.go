package payment

import (
	"context"

	"github.com/rumahku/billing/internal/types"
)

type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	GetByOrderID(ctx context.Context, orderID string) (*Transaction, error)
	// GetPendingByIdempotencyKey returns the pending, unexpired transaction for key
	GetPendingByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)
	Update(ctx context.Context, t *Transaction) error
	List(ctx context.Context, filter *types.PaymentTransactionFilter) ([]*Transaction, error)
	SumRevenue(ctx context.Context) ([]*Revenue, error)
}
