package tier

import (
	"testing"

	"github.com/rumahku/billing/internal/config"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTier_PriceFor(t *testing.T) {
	family := &Tier{ID: "family", MonthlyPrice: 20000, YearlyPrice: 200000}

	tests := []struct {
		name    string
		period  types.BillingPeriod
		want    int64
		wantErr bool
	}{
		{name: "monthly", period: types.BillingPeriodMonthly, want: 20000},
		{name: "yearly", period: types.BillingPeriodYearly, want: 200000},
		{name: "unknown period", period: "weekly", wantErr: true},
		{name: "empty period", period: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := family.PriceFor(tt.period)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ierr.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFeatures(t *testing.T) {
	tests := []struct {
		name    string
		raw     []any
		want    []string
		wantErr bool
	}{
		{
			name: "strings are trimmed and deduplicated",
			raw:  []any{" tasks", "recipes ", "tasks"},
			want: []string{"tasks", "recipes"},
		},
		{
			name: "empty list",
			raw:  []any{},
			want: []string{},
		},
		{
			name:    "number entry",
			raw:     []any{"tasks", 42},
			wantErr: true,
		},
		{
			name:    "blank entry",
			raw:     []any{"tasks", "  "},
			wantErr: true,
		},
		{
			name:    "nested object",
			raw:     []any{map[string]any{"name": "tasks"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFeatures(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ierr.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromConfig(t *testing.T) {
	tiers, err := FromConfig(config.DefaultTiers(), "IDR")
	require.NoError(t, err)
	require.Len(t, tiers, 3)

	assert.Equal(t, "family", tiers[1].ID)
	assert.Equal(t, int64(20000), tiers[1].MonthlyPrice)
	assert.Equal(t, int64(200000), tiers[1].YearlyPrice)
	assert.True(t, tiers[0].IsFree())
	assert.True(t, tiers[2].HasFeature("budgeting"))

	_, err = FromConfig([]config.TierConfig{
		{ID: "family", Features: []any{"tasks"}},
		{ID: "family", Features: []any{"tasks"}},
	}, "IDR")
	assert.Error(t, err)

	_, err = FromConfig([]config.TierConfig{
		{ID: "broken", Features: []any{true}},
	}, "IDR")
	assert.Error(t, err)
}
