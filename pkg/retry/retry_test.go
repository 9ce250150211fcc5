package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelay_ExponentialSchedule(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
	}
	for _, c := range cases {
		got := Delay(OrderPolicy, c.attempt, false)
		assert.Equal(t, c.want, got, "attempt %d", c.attempt)
	}
}

func TestDelay_RateLimitedLinearSchedule(t *testing.T) {
	assert.Equal(t, 3*time.Second, Delay(OrderPolicy, 1, true))
	assert.Equal(t, 6*time.Second, Delay(OrderPolicy, 2, true))
	assert.Equal(t, 9*time.Second, Delay(OrderPolicy, 3, true))
}

func TestLooksLikeRateLimit(t *testing.T) {
	assert.True(t, LooksLikeRateLimit(errors.New("HTTP 429 Too Many Requests")))
	assert.True(t, LooksLikeRateLimit(errors.New("rate limit exceeded")))
	assert.False(t, LooksLikeRateLimit(errors.New("insufficient margin")))
	assert.False(t, LooksLikeRateLimit(nil))
}

func TestDo_SucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), OrderPolicy, "test", func(ctx context.Context) error {
		calls++
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAfterMaxAttempts(t *testing.T) {
	fastPolicy := Policy{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxExponent: 6, RateLimitBackoff: time.Millisecond}
	calls := 0
	err := Do(context.Background(), fastPolicy, "test", func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	}, nil)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoUnboundedOnRateLimit_RetriesPastMaxAttemptsWhileRateLimited(t *testing.T) {
	fastPolicy := Policy{MaxAttempts: 2, BaseBackoff: time.Millisecond, MaxExponent: 6, RateLimitBackoff: time.Millisecond}
	calls := 0
	err := DoUnboundedOnRateLimit(context.Background(), fastPolicy, "test", func(ctx context.Context) error {
		calls++
		if calls < 5 {
			return errors.New("429 too many requests")
		}
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, calls)
}

func TestDoUnboundedOnRateLimit_GivesUpAfterNonRateLimitedFailures(t *testing.T) {
	fastPolicy := Policy{MaxAttempts: 2, BaseBackoff: time.Millisecond, MaxExponent: 6, RateLimitBackoff: time.Millisecond}
	calls := 0
	err := DoUnboundedOnRateLimit(context.Background(), fastPolicy, "test", func(ctx context.Context) error {
		calls++
		return errors.New("order rejected")
	}, nil)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}
