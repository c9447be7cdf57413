// Package retry computes backoff delays and retries remote calls (the AI
// fixer endpoint, code host APIs) on transient failures.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines how the delay grows between attempts.
type BackoffStrategy int

const (
	// BackoffExponential uses exponential backoff: base * 2^(attempt-1)
	BackoffExponential BackoffStrategy = iota

	// BackoffLinear uses linear backoff: base * attempt
	BackoffLinear

	// BackoffConstant uses constant backoff: base (no increase)
	BackoffConstant
)

const (
	// DefaultBaseInterval is the delay before the first retry.
	DefaultBaseInterval = time.Second

	// DefaultMaxInterval caps a single delay.
	DefaultMaxInterval = 30 * time.Second

	// DefaultMaxAttempts is the total number of tries, first call included.
	DefaultMaxAttempts = 4
)

// BackoffConfig configures the backoff behavior.
type BackoffConfig struct {
	// Strategy is the backoff strategy to use.
	// Default is BackoffExponential.
	Strategy BackoffStrategy

	// BaseInterval is the base interval for backoff calculation.
	BaseInterval time.Duration

	// MaxInterval is the maximum interval between retries.
	MaxInterval time.Duration

	// Jitter adds randomness so concurrent callers spread out.
	// Value between 0.0 (no jitter) and 1.0 (full jitter).
	Jitter float64
}

// DefaultBackoffConfig returns a BackoffConfig with default values.
//
// Schedule without jitter:
//
//	attempt 1: 1s
//	attempt 2: 2s
//	attempt 3: 4s
//	attempt 4: 8s
//	attempt 6: 30s (capped)
func DefaultBackoffConfig() *BackoffConfig {
	return &BackoffConfig{
		Strategy:     BackoffExponential,
		BaseInterval: DefaultBaseInterval,
		MaxInterval:  DefaultMaxInterval,
		Jitter:       0.1,
	}
}

// Delay returns the wait before retry number attempts (1-based).
func (c *BackoffConfig) Delay(attempts int) time.Duration {
	return c.calculateInterval(attempts)
}

// NextRetryFrom returns the time of the next retry after from.
func (c *BackoffConfig) NextRetryFrom(from time.Time, attempts int) time.Time {
	return from.Add(c.calculateInterval(attempts))
}

func (c *BackoffConfig) calculateInterval(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	var interval time.Duration

	switch c.Strategy {
	case BackoffLinear:
		interval = c.BaseInterval * time.Duration(attempts)

	case BackoffConstant:
		interval = c.BaseInterval

	default:
		// attempts 1 -> 1x, attempts 2 -> 2x, attempts 3 -> 4x
		multiplier := math.Pow(2, float64(attempts-1))
		interval = time.Duration(float64(c.BaseInterval) * multiplier)
	}

	if c.MaxInterval > 0 && interval > c.MaxInterval {
		interval = c.MaxInterval
	}

	if c.Jitter > 0 {
		interval = c.applyJitter(interval)
	}

	return interval
}

// applyJitter moves interval by up to ±Jitter of itself.
func (c *BackoffConfig) applyJitter(interval time.Duration) time.Duration {
	jitter := c.Jitter
	if jitter > 1 {
		jitter = 1
	}

	// For jitter=0.1, range is [0.9, 1.1]
	jitterRange := float64(interval) * jitter
	jitterValue := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(interval) + jitterValue)
}

// RetrySchedule returns the delays for maxAttempts retries, without jitter.
func (c *BackoffConfig) RetrySchedule(maxAttempts int) []time.Duration {
	if maxAttempts <= 0 {
		return nil
	}

	noJitter := *c
	noJitter.Jitter = 0

	schedule := make([]time.Duration, maxAttempts)
	for i := range maxAttempts {
		schedule[i] = noJitter.calculateInterval(i + 1)
	}
	return schedule
}

// TotalBackoffTime is the sum of RetrySchedule(maxAttempts).
func (c *BackoffConfig) TotalBackoffTime(maxAttempts int) time.Duration {
	var total time.Duration
	for _, d := range c.RetrySchedule(maxAttempts) {
		total += d
	}
	return total
}
