package supabase

import (
	"strconv"
	"strings"

	"github.com/nedpals/supabase-go"
	"github.com/rumahku/billing/internal/config"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
)

const (
	tableTiers         = "subscription_tiers"
	tablePromoCodes    = "promo_codes"
	tablePromoUsage    = "promo_code_usage"
	tablePayments      = "payment_transactions"
	tableSubscriptions = "subscriptions"
	tableHistory       = "subscription_history"
)

// NewClient creates the PostgREST client with the service role key, nil
// when another store is configured
func NewClient(cfg *config.Configuration) (*supabase.Client, error) {
	if cfg.Store.Provider != types.StoreProviderSupabase {
		return nil, nil
	}
	if cfg.Supabase.BaseURL == "" || cfg.Supabase.ServiceKey == "" {
		return nil, ierr.NewError("supabase base url and service key are required").
			WithHint("Set supabase.base_url and supabase.service_key").
			Mark(ierr.ErrValidation)
	}

	client := supabase.CreateClient(cfg.Supabase.BaseURL, cfg.Supabase.ServiceKey)
	if client == nil {
		return nil, ierr.NewError("failed to create supabase client").Mark(ierr.ErrSystem)
	}
	return client, nil
}

// wrapError classifies PostgREST failures. The client gives no typed errors,
// so transport problems and constraint errors are told apart by message.
func wrapError(err error, entity string, details map[string]any) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	if strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key") {
		return ierr.WithError(err).
			WithHintf("%s already exists", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrAlreadyExists)
	}

	return ierr.WithError(err).
		WithHintf("Failed to access %s", entity).
		WithReportableDetails(details).
		Mark(ierr.ErrDatabase)
}

func notFound(entity string, details map[string]any) error {
	return ierr.NewErrorf("%s not found", entity).
		WithHintf("%s not found", entity).
		WithReportableDetails(details).
		Mark(ierr.ErrNotFound)
}

// page applies offset pagination to an in memory result
func page[T any](items []T, filter types.BaseFilter) []T {
	if filter == nil || filter.IsUnlimited() {
		return items
	}
	offset := filter.GetOffset()
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+filter.GetLimit(), len(items))
	return items[offset:end]
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
