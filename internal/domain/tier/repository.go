package tier

import "context"

// Repository reads and maintains the tier catalog
type Repository interface {
	Get(ctx context.Context, id string) (*Tier, error)
	List(ctx context.Context) ([]*Tier, error)
	Upsert(ctx context.Context, tier *Tier) error
}
