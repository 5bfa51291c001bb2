// Package retry retries decode-history writes that fail on transient
// database contention, backing off exponentially and tripping a breaker when
// the database keeps refusing writes.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/geekxflood/common/config"
	"github.com/mattn/go-sqlite3"
)

// ErrCircuitOpen is returned without calling the operation while the breaker
// is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// RetryConfig holds configuration for store retries
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
	Jitter            float64       `json:"jitter"`
	BreakerThreshold  int           `json:"breaker_threshold"`
	BreakerCooldown   time.Duration `json:"breaker_cooldown"`
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      25 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		BreakerThreshold:  10,
		BreakerCooldown:   30 * time.Second,
	}
}

// CircuitState represents the state of the breaker
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// RetryStats tracks retry statistics
type RetryStats struct {
	Calls        int64  `json:"calls"`
	Retries      int64  `json:"retries"`
	Failures     int64  `json:"failures"`
	Rejected     int64  `json:"rejected"`
	BreakerTrips int64  `json:"breaker_trips"`
	CircuitState string `json:"circuit_state"`
}

// Retryer runs store operations with backoff.
type Retryer struct {
	config *RetryConfig

	mu           sync.Mutex
	state        CircuitState
	failures     int
	openedAt     time.Time
	stats        RetryStats
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	jitterSource func() float64
}

// NewRetryer creates a retryer from the storage.retry.* keys.
func NewRetryer(cfg config.Provider) (*Retryer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration provider cannot be nil")
	}

	retryConfig := DefaultRetryConfig()

	if attempts, err := cfg.GetInt("storage.retry.max_attempts", retryConfig.MaxAttempts); err == nil && attempts > 0 {
		retryConfig.MaxAttempts = attempts
	}

	if delay, err := cfg.GetDuration("storage.retry.initial_delay", retryConfig.InitialDelay); err == nil && delay >= 0 {
		retryConfig.InitialDelay = delay
	}

	if delay, err := cfg.GetDuration("storage.retry.max_delay", retryConfig.MaxDelay); err == nil && delay >= 0 {
		retryConfig.MaxDelay = delay
	}

	if mult, err := cfg.GetFloat("storage.retry.backoff_multiplier", retryConfig.BackoffMultiplier); err == nil && mult >= 1 {
		retryConfig.BackoffMultiplier = mult
	}

	if jitter, err := cfg.GetFloat("storage.retry.jitter", retryConfig.Jitter); err == nil && jitter >= 0 && jitter < 1 {
		retryConfig.Jitter = jitter
	}

	if threshold, err := cfg.GetInt("storage.retry.breaker_threshold", retryConfig.BreakerThreshold); err == nil {
		retryConfig.BreakerThreshold = threshold
	}

	if cooldown, err := cfg.GetDuration("storage.retry.breaker_cooldown", retryConfig.BreakerCooldown); err == nil && cooldown > 0 {
		retryConfig.BreakerCooldown = cooldown
	}

	return New(retryConfig), nil
}

// New creates a retryer from an explicit configuration.
func New(cfg *RetryConfig) *Retryer {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	return &Retryer{
		config:       cfg,
		now:          time.Now,
		sleep:        sleepContext,
		jitterSource: rand.Float64,
	}
}

// GetConfig returns the retry configuration
func (r *Retryer) GetConfig() *RetryConfig {
	return r.config
}

// IsTransient reports whether err is a database contention error worth
// retrying.
func IsTransient(err error) bool {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code == sqlite3.ErrBusy || sqlErr.Code == sqlite3.ErrLocked
	}
	return false
}

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempts are used up. A breaker threshold of zero disables the breaker.
func (r *Retryer) Do(ctx context.Context, fn func() error) error {
	if !r.allow() {
		return ErrCircuitOpen
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			r.record(nil)
			return nil
		}
		if !IsTransient(err) || attempt >= r.config.MaxAttempts {
			break
		}

		r.mu.Lock()
		r.stats.Retries++
		r.mu.Unlock()

		if werr := r.sleep(ctx, r.delay(attempt)); werr != nil {
			err = werr
			break
		}
	}

	r.record(err)
	return err
}

func (r *Retryer) delay(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	if d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	if r.config.Jitter > 0 {
		d += (r.jitterSource()*2 - 1) * r.config.Jitter * d
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func (r *Retryer) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Calls++
	if r.state == CircuitOpen {
		if r.now().Sub(r.openedAt) < r.config.BreakerCooldown {
			r.stats.Rejected++
			return false
		}
		r.state = CircuitHalfOpen
	}
	return true
}

func (r *Retryer) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil {
		r.state = CircuitClosed
		r.failures = 0
		return
	}

	r.stats.Failures++
	r.failures++
	if r.config.BreakerThreshold <= 0 {
		return
	}
	if r.state == CircuitHalfOpen || r.failures >= r.config.BreakerThreshold {
		if r.state != CircuitOpen {
			r.stats.BreakerTrips++
		}
		r.state = CircuitOpen
		r.openedAt = r.now()
	}
}

// State returns the breaker state
func (r *Retryer) State() CircuitState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// GetStats returns retry statistics
func (r *Retryer) GetStats() *RetryStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.stats
	stats.CircuitState = r.state.String()
	return &stats
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
