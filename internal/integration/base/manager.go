package base

import (
	"sync"

	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

// Registry holds the enabled gateways keyed by provider
type Registry struct {
	mu              sync.RWMutex
	gateways        map[types.PaymentProvider]PaymentGateway
	defaultProvider types.PaymentProvider
}

func NewRegistry(defaultProvider types.PaymentProvider) *Registry {
	return &Registry{
		gateways:        make(map[types.PaymentProvider]PaymentGateway),
		defaultProvider: defaultProvider,
	}
}

// Register adds a gateway, replacing any earlier one for the same provider
func (r *Registry) Register(gateway PaymentGateway) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gateways[gateway.Provider()] = gateway
}

// Get returns the gateway for provider, or the default gateway when provider is empty
func (r *Registry) Get(provider types.PaymentProvider) (PaymentGateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if provider == "" {
		provider = r.defaultProvider
	}

	gateway, ok := r.gateways[provider]
	if !ok {
		return nil, ierr.NewErrorf("payment provider %s is not enabled", provider).
			WithHint("The selected payment provider is not available").
			WithReportableDetails(map[string]any{
				"provider": provider,
				"enabled":  lo.Keys(r.gateways),
			}).
			Mark(ierr.ErrValidation)
	}
	return gateway, nil
}

// Providers lists the enabled providers
func (r *Registry) Providers() []types.PaymentProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.gateways)
}
