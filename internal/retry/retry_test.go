package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockConfigProvider implements the config.Provider interface for testing.
type mockConfigProvider struct {
	values map[string]any
}

func (m *mockConfigProvider) GetString(path string, defaultValue ...string) (string, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return "", nil
}

func (m *mockConfigProvider) GetInt(path string, defaultValue ...int) (int, error) {
	if val, ok := m.values[path].(int); ok {
		return val, nil
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, nil
}

func (m *mockConfigProvider) GetFloat(path string, defaultValue ...float64) (float64, error) {
	if val, ok := m.values[path].(float64); ok {
		return val, nil
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, nil
}

func (m *mockConfigProvider) GetBool(path string, defaultValue ...bool) (bool, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return false, nil
}

func (m *mockConfigProvider) GetDuration(path string, defaultValue ...time.Duration) (time.Duration, error) {
	if val, ok := m.values[path].(time.Duration); ok {
		return val, nil
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, nil
}

func (m *mockConfigProvider) GetStringSlice(path string, defaultValue ...[]string) ([]string, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return nil, nil
}

func (m *mockConfigProvider) GetMap(path string) (map[string]any, error) {
	return nil, nil
}

func (m *mockConfigProvider) Exists(path string) bool {
	_, ok := m.values[path]
	return ok
}

func (m *mockConfigProvider) Validate() error {
	return nil
}

var errBusy = sqlite3.Error{Code: sqlite3.ErrBusy}

// newTestRetryer returns a retryer that records sleeps instead of waiting.
func newTestRetryer(cfg *RetryConfig) (*Retryer, *[]time.Duration) {
	r := New(cfg)
	var sleeps []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	r.jitterSource = func() float64 { return 0.5 }
	return r, &sleeps
}

func TestNewRetryer(t *testing.T) {
	r, err := NewRetryer(&mockConfigProvider{values: map[string]any{
		"storage.retry.max_attempts":       5,
		"storage.retry.initial_delay":      10 * time.Millisecond,
		"storage.retry.backoff_multiplier": 3.0,
		"storage.retry.breaker_threshold":  0,
	}})
	require.NoError(t, err)

	cfg := r.GetConfig()
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 3.0, cfg.BackoffMultiplier)
	assert.Equal(t, 0, cfg.BreakerThreshold)
	assert.Equal(t, DefaultRetryConfig().MaxDelay, cfg.MaxDelay)

	_, err = NewRetryer(nil)
	assert.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"busy", errBusy, true},
		{"locked", sqlite3.Error{Code: sqlite3.ErrLocked}, true},
		{"wrapped busy", fmt.Errorf("failed to insert decode record: %w", errBusy), true},
		{"constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"plain", errors.New("database is locked"), false},
		{"nil", nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestDoRetriesTransient(t *testing.T) {
	r, sleeps := newTestRetryer(&RetryConfig{
		MaxAttempts:       4,
		InitialDelay:      10 * time.Millisecond,
		MaxDelay:          25 * time.Millisecond,
		BackoffMultiplier: 2,
		BreakerThreshold:  3,
		BreakerCooldown:   time.Minute,
	})

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 4 {
			return errBusy
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond}, *sleeps)

	stats := r.GetStats()
	assert.Equal(t, int64(3), stats.Retries)
	assert.Zero(t, stats.Failures)
	assert.Equal(t, "closed", stats.CircuitState)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	r, sleeps := newTestRetryer(DefaultRetryConfig())

	calls := 0
	permanent := errors.New("no such table: decode_records")
	err := r.Do(context.Background(), func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *sleeps)
	assert.Equal(t, int64(1), r.GetStats().Failures)
}

func TestDoGivesUp(t *testing.T) {
	r, _ := newTestRetryer(&RetryConfig{MaxAttempts: 3, BackoffMultiplier: 1})

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return errBusy
	})
	assert.True(t, IsTransient(err))
	assert.Equal(t, 3, calls)
	assert.Equal(t, CircuitClosed, r.State())
}

func TestDoContextCanceled(t *testing.T) {
	r, _ := newTestRetryer(&RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := r.Do(ctx, func() error {
		calls++
		return errBusy
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCircuitBreaker(t *testing.T) {
	r, _ := newTestRetryer(&RetryConfig{
		MaxAttempts:       1,
		BackoffMultiplier: 1,
		BreakerThreshold:  2,
		BreakerCooldown:   time.Minute,
	})
	now := time.Unix(1700000000, 0)
	r.now = func() time.Time { return now }

	fail := func() error { return errBusy }
	called := false
	succeed := func() error { called = true; return nil }

	require.Error(t, r.Do(context.Background(), fail))
	assert.Equal(t, CircuitClosed, r.State())
	require.Error(t, r.Do(context.Background(), fail))
	assert.Equal(t, CircuitOpen, r.State())

	assert.ErrorIs(t, r.Do(context.Background(), succeed), ErrCircuitOpen)
	assert.False(t, called)

	// A failed probe after the cooldown reopens the breaker.
	now = now.Add(2 * time.Minute)
	require.Error(t, r.Do(context.Background(), fail))
	assert.Equal(t, CircuitOpen, r.State())

	now = now.Add(2 * time.Minute)
	require.NoError(t, r.Do(context.Background(), succeed))
	assert.True(t, called)
	assert.Equal(t, CircuitClosed, r.State())

	stats := r.GetStats()
	assert.Equal(t, int64(2), stats.BreakerTrips)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, int64(5), stats.Calls)
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}
