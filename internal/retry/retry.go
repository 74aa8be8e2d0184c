// Package retry implements bounded retry with exponential backoff for
// transient transport failures.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/recodeai/recode"
)

// Config holds retry parameters.
type Config struct {
	// MaxAttempts counts the initial request as attempt 1. Default 3.
	MaxAttempts int

	// InitialDelay is the base delay before the first retry. Default 1s.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries. Default 30s.
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier. Default 2.0.
	Multiplier float64

	// Jitter scales the delay by (1 + random(-Jitter, +Jitter)). Default 0.1.
	Jitter float64
}

// DefaultConfig returns the standard transport retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Disabled returns a single-attempt configuration.
func Disabled() Config {
	return Config{MaxAttempts: 1}
}

// Delay calculates the backoff for a 0-indexed attempt.
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if c.Jitter > 0 {
		delay *= 1.0 + (rand.Float64()*2-1)*c.Jitter
	}
	return time.Duration(delay)
}

// effectiveDelay honors a server-provided Retry-After when it exceeds the
// configured backoff.
func effectiveDelay(configured time.Duration, err error) time.Duration {
	if server := recode.RetryAfterOf(err); server > configured {
		return server
	}
	return configured
}

// Do runs fn with retry on transient errors, sleeping between attempts and
// honoring context cancellation during the sleep. It returns the result on
// success or the last error once attempts are exhausted.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return zero, err
		}
		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(effectiveDelay(cfg.Delay(attempt), err)):
			}
		}
	}
	return zero, lastErr
}

// DoStream is like Do for functions returning a channel. It retries stream
// establishment only; chunk failures after the channel opens are the
// caller's problem.
func DoStream[T any](ctx context.Context, cfg Config, fn func() (<-chan T, error)) (<-chan T, error) {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		ch, err := fn()
		if err == nil {
			return ch, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}
		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(effectiveDelay(cfg.Delay(attempt), err)):
			}
		}
	}
	return nil, lastErr
}

// statusCoder covers the Anthropic and OpenAI SDK error types.
type statusCoder interface {
	StatusCode() int
}

// IsTransient reports whether an error should be retried. Explicit
// categorization via recode.CategorizedError wins; uncategorized errors fall
// back to status-code and network heuristics.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce recode.CategorizedError
	if errors.As(err, &ce) {
		return ce.Category() == recode.ErrorTransient
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return transientStatus(sc.StatusCode())
	}

	return isTransientNetworkError(err)
}

func transientStatus(code int) bool {
	return code == 429 || (code >= 500 && code < 600)
}
