// Package retry adapts the teacher's exponential-backoff-with-jitter
// policy (driver/retry.go) into QueryOptions.RetryPolicy: the query path's
// connect stage retries a transient connect failure under this policy
// before giving up.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Policy defines retry behavior with exponential backoff and full jitter.
type Policy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0 = no jitter, 1.0 = full jitter

	OnRetry   func(ctx Context)
	OnSuccess func(attempts int)
	OnFailure func(err error, attempts int)
}

// Context is passed to OnRetry before each sleep.
type Context struct {
	Attempt         int
	Error           error
	NextDelay       time.Duration
	CumulativeDelay time.Duration
}

// ExhaustedError reports that every attempt failed.
type ExhaustedError struct {
	OriginalError   error
	Attempts        int
	CumulativeDelay time.Duration
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: %d attempts exhausted after %v: %v", e.Attempts, e.CumulativeDelay, e.OriginalError)
}

func (e *ExhaustedError) Unwrap() error { return e.OriginalError }

// DefaultPolicy mirrors the teacher's default: 5 attempts, 100ms base,
// capped at 10s, full jitter.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:  5,
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 1.0,
	}
}

// NoRetry returns a policy that tries exactly once.
func NoRetry() *Policy {
	return &Policy{MaxAttempts: 1}
}

// CalculateDelay computes the exponential-backoff-with-jitter delay for
// the given 1-based attempt number.
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	baseExp := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	capped := math.Min(baseExp, float64(p.MaxDelay))
	jitter := math.Max(0, math.Min(1, p.JitterFactor))
	blend := 1.0 - jitter + rand.Float64()*jitter
	return time.Duration(capped * blend)
}

// IsRetriable reports whether err looks transient: connection-refused,
// reset, broken-pipe, EOF and timeout substrings are retriable; context
// cancellation and deadline errors are not.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sub := range []string{"connection refused", "connection reset", "broken pipe", "eof", "timeout", "temporary failure"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

// Do executes fn under policy, retrying retriable errors with backoff.
// A non-retriable error returns immediately without exhausting attempts.
func Do[T any](ctx context.Context, policy *Policy, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	var cumulative time.Duration

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			if policy.OnSuccess != nil {
				policy.OnSuccess(attempt)
			}
			return result, nil
		}
		lastErr = err

		if !IsRetriable(err) {
			if policy.OnFailure != nil {
				policy.OnFailure(err, attempt)
			}
			return zero, err
		}
		if attempt >= policy.MaxAttempts {
			break
		}

		delay := policy.CalculateDelay(attempt)
		cumulative += delay
		if policy.OnRetry != nil {
			policy.OnRetry(Context{Attempt: attempt, Error: err, NextDelay: delay, CumulativeDelay: cumulative})
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	if policy.OnFailure != nil {
		policy.OnFailure(lastErr, policy.MaxAttempts)
	}
	return zero, &ExhaustedError{OriginalError: lastErr, Attempts: policy.MaxAttempts, CumulativeDelay: cumulative}
}
