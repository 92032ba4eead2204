package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/seuros/reactive-sql-bridge/src/retry"
)

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	result, err := retry.Do(context.Background(), retry.DefaultPolicy(), func() (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Fatalf("expected 42, got %d", result)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestDo_RetriesTransientErrorThenSucceeds(t *testing.T) {
	calls := 0
	policy := &retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, JitterFactor: 0}
	result, err := retry.Do(context.Background(), policy, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected ok, got %q", result)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", calls)
	}
}

func TestDo_NonRetriableErrorFailsOnFirstAttempt(t *testing.T) {
	calls := 0
	result, err := retry.Do(context.Background(), retry.DefaultPolicy(), func() (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-retriable error, got %d", calls)
	}
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected the original error to surface unwrapped, got %v", err)
	}
	if result != 0 {
		t.Fatalf("expected the zero value, got %d", result)
	}
}

func TestDo_ExhaustsAttemptsAndWrapsLastError(t *testing.T) {
	calls := 0
	policy := &retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, JitterFactor: 0}
	_, err := retry.Do(context.Background(), policy, func() (int, error) {
		calls++
		return 0, errors.New("connection reset")
	})
	if calls != 3 {
		t.Fatalf("expected exactly 3 calls (MaxAttempts), got %d", calls)
	}
	var exhausted *retry.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected an *ExhaustedError, got %T: %v", err, err)
	}
	if exhausted.Attempts != 3 {
		t.Fatalf("expected Attempts=3, got %d", exhausted.Attempts)
	}
	if exhausted.OriginalError == nil || exhausted.OriginalError.Error() != "connection reset" {
		t.Fatalf("expected the original error to be preserved, got %v", exhausted.OriginalError)
	}
}

func TestDo_ContextCancelledDuringBackoffStopsRetrying(t *testing.T) {
	policy := &retry.Policy{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 1, JitterFactor: 0}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := retry.Do(ctx, policy, func() (int, error) {
		calls++
		return 0, errors.New("timeout")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls >= policy.MaxAttempts {
		t.Fatalf("expected cancellation to cut the loop short of %d attempts, got %d", policy.MaxAttempts, calls)
	}
}

func TestIsRetriable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("connection refused"), true},
		{errors.New("Connection Reset by peer"), true},
		{fmt.Errorf("wrapped: %w", errors.New("broken pipe")), true},
		{errors.New("unexpected EOF"), true},
		{errors.New("request timeout"), true},
		{errors.New("temporary failure in name resolution"), true},
		{errors.New("syntax error"), false},
		{context.Canceled, false},
		{context.DeadlineExceeded, false},
	}
	for _, c := range cases {
		if got := retry.IsRetriable(c.err); got != c.want {
			t.Errorf("IsRetriable(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestNoRetry_TriesExactlyOnce(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), retry.NoRetry(), func() (int, error) {
		calls++
		return 0, errors.New("connection refused")
	})
	if calls != 1 {
		t.Fatalf("expected exactly 1 call under NoRetry, got %d", calls)
	}
	var exhausted *retry.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected an *ExhaustedError, got %T", err)
	}
}

func TestCalculateDelay_CapsAtMaxDelay(t *testing.T) {
	policy := &retry.Policy{BaseDelay: time.Second, MaxDelay: 2 * time.Second, Multiplier: 10, JitterFactor: 0}
	d := policy.CalculateDelay(5) // would be huge uncapped
	if d > 2*time.Second {
		t.Fatalf("expected delay capped at MaxDelay, got %v", d)
	}
}

func TestCalculateDelay_FullJitterStaysWithinBounds(t *testing.T) {
	policy := &retry.Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, JitterFactor: 1}
	for i := 0; i < 20; i++ {
		d := policy.CalculateDelay(3)
		if d < 0 || d > 400*time.Millisecond {
			t.Fatalf("attempt 3 delay %v out of expected [0, 400ms] range", d)
		}
	}
}
