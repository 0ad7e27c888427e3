package testutil

import (
	"context"
	"net/http"
	"sync"

	"github.com/rumahku/billing/internal/domain/payment"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/integration/base"
	"github.com/rumahku/billing/internal/types"
)

var _ base.PaymentGateway = (*MockGateway)(nil)

// MockGateway records checkouts and replays configured results
type MockGateway struct {
	mu        sync.Mutex
	provider  types.PaymentProvider
	checkouts []*base.CheckoutRequest
	cancelled []string

	// CheckoutErr fails CreateCheckout when set
	CheckoutErr error
	// Status is returned by GetStatus
	Status payment.Result
	// Notification is returned by ParseNotification
	Notification *base.Notification
	// NotificationErr fails ParseNotification when set
	NotificationErr error
}

func NewMockGateway(provider types.PaymentProvider) *MockGateway {
	return &MockGateway{provider: provider}
}

func (g *MockGateway) Provider() types.PaymentProvider {
	return g.provider
}

func (g *MockGateway) CreateCheckout(_ context.Context, req *base.CheckoutRequest) (*base.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.checkouts = append(g.checkouts, req)
	if g.CheckoutErr != nil {
		return nil, g.CheckoutErr
	}
	return &base.CheckoutSession{
		Reference:   "ref-" + req.OrderID,
		RedirectURL: "https://pay.example.com/" + req.OrderID,
	}, nil
}

func (g *MockGateway) GetStatus(_ context.Context, orderID, _ string) (payment.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Status == nil {
		return payment.PendingResult{GatewayReference: "ref-" + orderID}, nil
	}
	return g.Status, nil
}

func (g *MockGateway) Cancel(_ context.Context, orderID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cancelled = append(g.cancelled, orderID)
	return nil
}

func (g *MockGateway) ParseNotification(_ context.Context, _ []byte, _ http.Header) (*base.Notification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.NotificationErr != nil {
		return nil, g.NotificationErr
	}
	if g.Notification == nil {
		return nil, ierr.NewError("no notification configured").Mark(ierr.ErrValidation)
	}
	return g.Notification, nil
}

// Checkouts returns every checkout request received
func (g *MockGateway) Checkouts() []*base.CheckoutRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*base.CheckoutRequest(nil), g.checkouts...)
}

// Cancelled returns the order ids cancelled at the gateway
func (g *MockGateway) Cancelled() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.cancelled...)
}

// Reset drops recorded calls and configured results
func (g *MockGateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkouts = nil
	g.cancelled = nil
	g.CheckoutErr = nil
	g.Status = nil
	g.Notification = nil
	g.NotificationErr = nil
}
