package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{Attempts: attempts, Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("rate limited"), 429), true},
		{"wrapped explicit", fmt.Errorf("call: %w", NewTransientError(errors.New("boom"), 503)), true},
		{"connection reset text", errors.New("read tcp: connection reset by peer"), true},
		{"overloaded text", errors.New("Overloaded"), true},
		{"plain", errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	t.Parallel()
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()
	calls := 0
	got, err := Retry(context.Background(), fastPolicy(3), "test", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("busy"), 503)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	t.Parallel()
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(5), "test", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	t.Parallel()
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(4), "test", func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("busy"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Contains(t, err.Error(), "busy")
}

func TestRetryHonorsCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := RetryPolicy{Attempts: 10, Backoff: time.Hour, MaxBackoff: time.Hour}
	_, err := Retry(ctx, p, "test", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("busy"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryCustomRetryable(t *testing.T) {
	t.Parallel()
	calls := 0
	p := fastPolicy(3)
	p.Retryable = func(error) bool { return true }
	_, err := Retry(context.Background(), p, "test", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("anything")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestNewRetryPolicy(t *testing.T) {
	t.Parallel()
	p := NewRetryPolicy(5, 250)
	assert.Equal(t, 5, p.Attempts)
	assert.Equal(t, 250*time.Millisecond, p.Backoff)

	d := NewRetryPolicy(0, 0)
	assert.Equal(t, DefaultRetryPolicy().Attempts, d.Attempts)
	assert.Equal(t, DefaultRetryPolicy().Backoff, d.Backoff)
}

func TestRetryDelayIsCapped(t *testing.T) {
	t.Parallel()
	p := RetryPolicy{Backoff: time.Second, MaxBackoff: 3 * time.Second}.normalized()
	assert.Equal(t, time.Second, p.delay(1))
	assert.Equal(t, 2*time.Second, p.delay(2))
	assert.Equal(t, 3*time.Second, p.delay(3))
	assert.Equal(t, 3*time.Second, p.delay(10))
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("test", 2, time.Minute)
	b.now = func() time.Time { return now }

	fail := func(context.Context) (int, error) { return 0, errors.New("down") }
	ok := func(context.Context) (int, error) { return 7, nil }

	_, err := Call(context.Background(), b, fail)
	require.Error(t, err)
	assert.Equal(t, Closed, b.State())

	_, err = Call(context.Background(), b, fail)
	require.Error(t, err)
	assert.Equal(t, Open, b.State())

	calls := 0
	_, err = Call(context.Background(), b, func(context.Context) (int, error) {
		calls++
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls)

	now = now.Add(time.Minute)
	assert.Equal(t, HalfOpen, b.State())

	v, err := Call(context.Background(), b, ok)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, Closed, b.State())
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("test", 1, time.Second)
	b.now = func() time.Time { return now }

	fail := func(context.Context) (int, error) { return 0, errors.New("down") }

	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, Open, b.State())

	now = now.Add(time.Second)
	_, err := Call(context.Background(), b, fail)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, Open, b.State())
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	t.Parallel()
	b := NewBreaker("test", 2, time.Minute)
	fail := func(context.Context) (int, error) { return 0, errors.New("down") }
	ok := func(context.Context) (int, error) { return 1, nil }

	_, _ = Call(context.Background(), b, fail)
	_, _ = Call(context.Background(), b, ok)
	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, Closed, b.State())
}

func TestStateString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "half-open", HalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
