package testutil

import (
	"context"
	"sync"

	"github.com/rumahku/billing/internal/svix"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
)

var _ svix.Publisher = (*InMemoryWebhookPublisher)(nil)

// InMemoryWebhookPublisher keeps published events for assertions
type InMemoryWebhookPublisher struct {
	mu     sync.RWMutex
	events []*types.WebhookEvent
}

func NewInMemoryWebhookPublisher() *InMemoryWebhookPublisher {
	return &InMemoryWebhookPublisher{}
}

func (p *InMemoryWebhookPublisher) Publish(_ context.Context, event *types.WebhookEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns the published events
func (p *InMemoryWebhookPublisher) Events() []*types.WebhookEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*types.WebhookEvent(nil), p.events...)
}

// EventNames returns the published event names in order
func (p *InMemoryWebhookPublisher) EventNames() []string {
	return lo.Map(p.Events(), func(e *types.WebhookEvent, _ int) string { return e.EventName })
}

func (p *InMemoryWebhookPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
