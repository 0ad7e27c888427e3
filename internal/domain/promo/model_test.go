package promo

import (
	"testing"
	"time"

	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "HEMAT50", NormalizeCode("  hemat50 "))
	assert.Equal(t, "HEMAT50", NormalizeCode("HeMaT50"))
	assert.Equal(t, "", NormalizeCode("   "))
}

func TestPromoCode_Check(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	base := func() *PromoCode {
		return &PromoCode{
			Code:          "HEMAT50",
			DiscountType:  types.DiscountTypePercentage,
			DiscountValue: decimal.NewFromInt(50),
			IsActive:      true,
		}
	}

	tests := []struct {
		name     string
		mutate   func(p *PromoCode)
		tierID   string
		wantOK   bool
		wantCode types.PromoRejectionCode
	}{
		{
			name:   "unbounded active code",
			mutate: func(p *PromoCode) {},
			tierID: "premium",
			wantOK: true,
		},
		{
			name:     "inactive",
			mutate:   func(p *PromoCode) { p.IsActive = false },
			tierID:   "premium",
			wantCode: types.PromoRejectionInactive,
		},
		{
			name:     "not yet valid",
			mutate:   func(p *PromoCode) { p.ValidFrom = &future },
			tierID:   "premium",
			wantCode: types.PromoRejectionNotYetValid,
		},
		{
			name:     "expired",
			mutate:   func(p *PromoCode) { p.ValidUntil = &past },
			tierID:   "premium",
			wantCode: types.PromoRejectionExpired,
		},
		{
			name:   "window bounds are inclusive",
			mutate: func(p *PromoCode) { p.ValidFrom = &now; p.ValidUntil = &now },
			tierID: "premium",
			wantOK: true,
		},
		{
			name:     "usage cap reached",
			mutate:   func(p *PromoCode) { p.MaxUses = lo.ToPtr(3); p.CurrentUses = 3 },
			tierID:   "premium",
			wantCode: types.PromoRejectionUsageExceeded,
		},
		{
			name:   "usage below cap",
			mutate: func(p *PromoCode) { p.MaxUses = lo.ToPtr(3); p.CurrentUses = 2 },
			tierID: "premium",
			wantOK: true,
		},
		{
			name:     "tier not applicable",
			mutate:   func(p *PromoCode) { p.ApplicableTiers = []string{"family"} },
			tierID:   "premium",
			wantCode: types.PromoRejectionTierNotApplicable,
		},
		{
			name:   "tier comparison ignores case",
			mutate: func(p *PromoCode) { p.ApplicableTiers = []string{"family"} },
			tierID: "Family",
			wantOK: true,
		},
		{
			name: "expired wins over inactive",
			mutate: func(p *PromoCode) {
				p.IsActive = false
				p.ValidUntil = &past
			},
			tierID:   "premium",
			wantCode: types.PromoRejectionExpired,
		},
		{
			name: "inactive wins over not yet valid usage and tier",
			mutate: func(p *PromoCode) {
				p.IsActive = false
				p.ValidFrom = &future
				p.MaxUses = lo.ToPtr(1)
				p.CurrentUses = 1
				p.ApplicableTiers = []string{"family"}
			},
			tierID:   "premium",
			wantCode: types.PromoRejectionInactive,
		},
		{
			name: "expired wins over usage and tier",
			mutate: func(p *PromoCode) {
				p.ValidUntil = &past
				p.MaxUses = lo.ToPtr(1)
				p.CurrentUses = 1
				p.ApplicableTiers = []string{"family"}
			},
			tierID:   "premium",
			wantCode: types.PromoRejectionExpired,
		},
		{
			name: "usage wins over tier",
			mutate: func(p *PromoCode) {
				p.MaxUses = lo.ToPtr(0)
				p.ApplicableTiers = []string{"family"}
			},
			tierID:   "premium",
			wantCode: types.PromoRejectionUsageExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.mutate(p)
			code, ok := p.Check(tt.tierID, now)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}

	t.Run("nil code is not found", func(t *testing.T) {
		var p *PromoCode
		code, ok := p.Check("premium", now)
		assert.False(t, ok)
		assert.Equal(t, types.PromoRejectionNotFound, code)
	})
}

func TestPromoCode_CalculateDiscount(t *testing.T) {
	tests := []struct {
		name         string
		discountType types.DiscountType
		value        string
		base         int64
		want         int64
	}{
		{"percentage exact", types.DiscountTypePercentage, "50", 100000, 50000},
		{"percentage half rounds up", types.DiscountTypePercentage, "50", 99, 50},
		{"percentage below half rounds down", types.DiscountTypePercentage, "33", 10, 3},
		{"fractional percentage", types.DiscountTypePercentage, "12.5", 20000, 2500},
		{"full percentage", types.DiscountTypePercentage, "100", 20000, 20000},
		{"fixed below base", types.DiscountTypeFixed, "5000", 20000, 5000},
		{"fixed clamped to base", types.DiscountTypeFixed, "25000", 10000, 10000},
		{"fractional fixed rounds half up", types.DiscountTypeFixed, "1000.5", 20000, 1001},
		{"zero base", types.DiscountTypeFixed, "5000", 0, 0},
		{"zero percentage", types.DiscountTypePercentage, "0", 20000, 0},
		{"unknown type", types.DiscountType("bogus"), "10", 20000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &PromoCode{
				DiscountType:  tt.discountType,
				DiscountValue: decimal.RequireFromString(tt.value),
			}
			got := p.CalculateDiscount(tt.base)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, int64(0))
			assert.LessOrEqual(t, got, tt.base)
		})
	}
}

func TestPromoCode_Validate(t *testing.T) {
	valid := func() *PromoCode {
		return &PromoCode{
			Code:          "HEMAT50",
			DiscountType:  types.DiscountTypePercentage,
			DiscountValue: decimal.NewFromInt(50),
			IsActive:      true,
		}
	}
	now := time.Now()

	tests := []struct {
		name    string
		mutate  func(p *PromoCode)
		wantErr bool
	}{
		{"valid", func(p *PromoCode) {}, false},
		{"missing code", func(p *PromoCode) { p.Code = "" }, true},
		{"bad type", func(p *PromoCode) { p.DiscountType = "bogus" }, true},
		{"negative value", func(p *PromoCode) { p.DiscountValue = decimal.NewFromInt(-1) }, true},
		{"percentage above 100", func(p *PromoCode) { p.DiscountValue = decimal.NewFromInt(101) }, true},
		{"fixed above 100 is fine", func(p *PromoCode) {
			p.DiscountType = types.DiscountTypeFixed
			p.DiscountValue = decimal.NewFromInt(50000)
		}, false},
		{"inverted window", func(p *PromoCode) {
			p.ValidFrom = lo.ToPtr(now)
			p.ValidUntil = lo.ToPtr(now.Add(-time.Hour))
		}, true},
		{"negative max uses", func(p *PromoCode) { p.MaxUses = lo.ToPtr(-1) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ierr.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPromoCode_RemainingUses(t *testing.T) {
	assert.Nil(t, (&PromoCode{}).RemainingUses())
	assert.Equal(t, 2, *(&PromoCode{MaxUses: lo.ToPtr(5), CurrentUses: 3}).RemainingUses())
	assert.Equal(t, 0, *(&PromoCode{MaxUses: lo.ToPtr(5), CurrentUses: 7}).RemainingUses())
}

func TestNormalizeTiers(t *testing.T) {
	assert.Equal(t, []string{"family", "premium"}, NormalizeTiers([]string{" Family", "premium", "", "FAMILY"}))
}

func TestRejectionError(t *testing.T) {
	err := NewRejectionError(types.PromoRejectionExpired, "HEMAT50")

	assert.True(t, ierr.IsPromoRejected(err))
	code, ok := RejectionCodeFromError(err)
	require.True(t, ok)
	assert.Equal(t, types.PromoRejectionExpired, code)

	_, ok = RejectionCodeFromError(ierr.ErrNotFound)
	assert.False(t, ok)
}
