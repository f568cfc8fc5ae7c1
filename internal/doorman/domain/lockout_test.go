package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRemainingMinutes(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		until time.Time
		want  int
	}{
		{"full thirty minutes", now.Add(30 * time.Minute), 30},
		{"partial minute rounds up", now.Add(28*time.Minute + 30*time.Second), 29},
		{"exactly one minute", now.Add(time.Minute), 1},
		{"under a minute floors at one", now.Add(10 * time.Second), 1},
		{"already expired still reports one", now.Add(-time.Minute), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, RemainingMinutes(tt.until, now))
		})
	}
}

func TestLockoutPolicyLocked(t *testing.T) {
	now := time.Now()
	until := now.Add(5 * time.Minute)

	require.True(t, Locked(&until, now))
	require.False(t, Locked(&until, until))
	require.False(t, Locked(&until, until.Add(time.Second)))
	require.False(t, Locked(nil, now))
}

func TestUserLocked(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	require.True(t, (User{LockoutUntil: &future}).Locked(now))
	require.False(t, (User{LockoutUntil: &past}).Locked(now))
	require.False(t, (User{}).Locked(now))
}
