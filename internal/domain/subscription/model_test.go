package subscription

import (
	"testing"
	"time"

	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to types.SubscriptionStatus
		want     bool
	}{
		{types.SubscriptionStatusTrialing, types.SubscriptionStatusActive, true},
		{types.SubscriptionStatusTrialing, types.SubscriptionStatusExpired, true},
		{types.SubscriptionStatusActive, types.SubscriptionStatusActive, true},
		{types.SubscriptionStatusActive, types.SubscriptionStatusCancelled, true},
		{types.SubscriptionStatusExpired, types.SubscriptionStatusActive, true},
		{types.SubscriptionStatusExpired, types.SubscriptionStatusTrialing, false},
		{types.SubscriptionStatusCancelled, types.SubscriptionStatusExpired, false},
		{types.SubscriptionStatusActive, types.SubscriptionStatusTrialing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestSubscription_TransitionTo(t *testing.T) {
	s := &Subscription{SubscriptionStatus: types.SubscriptionStatusCancelled}

	err := s.TransitionTo(types.SubscriptionStatusExpired)
	require.Error(t, err)
	assert.True(t, ierr.IsInvalidOperation(err))
	assert.Equal(t, types.SubscriptionStatusCancelled, s.SubscriptionStatus)

	require.NoError(t, s.TransitionTo(types.SubscriptionStatusActive))
	assert.Equal(t, types.SubscriptionStatusActive, s.SubscriptionStatus)
}

func TestSubscription_IsDue(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	trial := &Subscription{
		SubscriptionStatus: types.SubscriptionStatusTrialing,
		TrialEndsAt:        lo.ToPtr(now.Add(-time.Hour)),
	}
	assert.True(t, trial.IsDue(now))

	active := &Subscription{
		SubscriptionStatus: types.SubscriptionStatusActive,
		ExpiresAt:          lo.ToPtr(now.Add(time.Hour)),
	}
	assert.False(t, active.IsDue(now))

	cancelled := &Subscription{
		SubscriptionStatus: types.SubscriptionStatusCancelled,
		ExpiresAt:          lo.ToPtr(now.Add(-time.Hour)),
	}
	assert.False(t, cancelled.IsDue(now))
}

func TestNewTrialStatus(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		endsIn     time.Duration
		wantDays   int
		wantUrgent bool
	}{
		{"two weeks left", 14 * 24 * time.Hour, 14, false},
		{"partial day rounds up", 3*24*time.Hour - time.Hour, 3, true},
		{"four days", 4 * 24 * time.Hour, 4, false},
		{"already over", -time.Hour, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Subscription{
				SubscriptionStatus: types.SubscriptionStatusTrialing,
				TrialEndsAt:        lo.ToPtr(now.Add(tt.endsIn)),
			}
			status := NewTrialStatus(s, now, 3)
			assert.True(t, status.IsTrialing)
			assert.Equal(t, tt.wantDays, status.DaysLeft)
			assert.Equal(t, tt.wantUrgent, status.Urgent)
		})
	}

	assert.False(t, NewTrialStatus(&Subscription{SubscriptionStatus: types.SubscriptionStatusActive}, now, 3).IsTrialing)
	assert.False(t, NewTrialStatus(nil, now, 3).IsTrialing)
}
