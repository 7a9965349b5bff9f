package service

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

func TestAttemptLimiter(t *testing.T) {
	t.Parallel()

	clk := testingclock.NewFakePassiveClock(time.Unix(1_700_000_000, 0))
	l := NewAttemptLimiter(RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}, clk)

	require.True(t, l.Allow("10.0.0.1", domain.StagePassword))
	require.True(t, l.Allow("10.0.0.1", domain.StagePassword))
	require.False(t, l.Allow("10.0.0.1", domain.StagePassword))

	t.Run("buckets are per stage and origin", func(t *testing.T) {
		require.True(t, l.Allow("10.0.0.1", domain.StageDummy))
		require.True(t, l.Allow("10.0.0.2", domain.StagePassword))
	})

	t.Run("empty origin is not limited", func(t *testing.T) {
		for range 10 {
			require.True(t, l.Allow("", domain.StagePassword))
		}
	})

	t.Run("refills over time", func(t *testing.T) {
		clk.SetTime(clk.Now().Add(30 * time.Second))
		require.True(t, l.Allow("10.0.0.1", domain.StagePassword))
		require.False(t, l.Allow("10.0.0.1", domain.StagePassword))
	})
}

func TestAttemptLimiter_Cleanup(t *testing.T) {
	t.Parallel()

	clk := testingclock.NewFakePassiveClock(time.Unix(1_700_000_000, 0))
	l := NewAttemptLimiter(RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}, clk)

	require.True(t, l.Allow("10.0.0.1", domain.StagePassword))
	require.False(t, l.Allow("10.0.0.1", domain.StagePassword))

	// A new key after the cleanup interval drops the refilled bucket.
	clk.SetTime(clk.Now().Add(10 * time.Minute))
	require.True(t, l.Allow("10.0.0.2", domain.StagePassword))

	count := 0
	l.limiters.Range(func(any, any) bool {
		count++
		return true
	})
	require.Equal(t, 1, count)
}

func TestNewAttemptLimiter_Defaults(t *testing.T) {
	t.Parallel()

	l := NewAttemptLimiter(RateLimitConfig{}, nil)
	for range DefaultStageLimit.Burst {
		require.True(t, l.Allow("10.0.0.1", domain.StagePassword))
	}
	require.False(t, l.Allow("10.0.0.1", domain.StagePassword))
}
