package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClassify429(t *testing.T) {
	retryable, is429 := Classify(errors.New("upstream returned 429 too many requests"))
	if !retryable || !is429 {
		t.Fatalf("expected 429 to be retryable and flagged as rate-limited, got retryable=%v is429=%v", retryable, is429)
	}
}

func TestClassifyServerError(t *testing.T) {
	retryable, is429 := Classify(errors.New("request failed with status 503"))
	if !retryable || is429 {
		t.Fatalf("expected 503 to be retryable but not rate-limited, got retryable=%v is429=%v", retryable, is429)
	}
}

func TestClassifyNetworkTimeout(t *testing.T) {
	retryable, is429 := Classify(errors.New("context deadline exceeded: i/o timeout"))
	if !retryable || is429 {
		t.Fatalf("expected timeout to be retryable but not rate-limited, got retryable=%v is429=%v", retryable, is429)
	}
}

func TestClassifyNonRetryable(t *testing.T) {
	retryable, is429 := Classify(errors.New("invalid mint address"))
	if retryable || is429 {
		t.Fatalf("expected unrecognized error to be non-retryable, got retryable=%v is429=%v", retryable, is429)
	}
}

func TestClassifyNilError(t *testing.T) {
	retryable, is429 := Classify(nil)
	if retryable || is429 {
		t.Fatalf("expected nil error to be non-retryable")
	}
}

func TestDoSucceedsWithoutRetry(t *testing.T) {
	g := New(Params{BaseRps: 1000, Burst: 1000})
	calls := 0
	err := Do(context.Background(), g, nil, BreakerKey{}, time.Second, RetryParams{Base: time.Millisecond, Max: 5 * time.Millisecond}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call on success, got %d", calls)
	}
}

func TestDoRetriesRetryableErrorThenSucceeds(t *testing.T) {
	g := New(Params{BaseRps: 1000, Burst: 1000})
	calls := 0
	err := Do(context.Background(), g, nil, BreakerKey{}, time.Second, RetryParams{Base: time.Millisecond, Max: 5 * time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("network timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts before success, got %d", calls)
	}
}

func TestDoGivesUpOnNonRetryableError(t *testing.T) {
	g := New(Params{BaseRps: 1000, Burst: 1000})
	calls := 0
	err := Do(context.Background(), g, nil, BreakerKey{}, time.Second, RetryParams{Base: time.Millisecond, Max: 5 * time.Millisecond}, func(ctx context.Context) error {
		calls++
		return errors.New("invalid request")
	})
	if err == nil {
		t.Fatalf("expected final error to propagate")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-retryable error, got %d", calls)
	}
}

func TestDoOpensBreakerOn429(t *testing.T) {
	g := New(Params{BaseRps: 1000, Burst: 1000})
	breaker := NewBreaker()
	key := BreakerKey{Pair: "SOL-USDC"}

	_ = Do(context.Background(), g, breaker, key, 100*time.Millisecond, RetryParams{MaxAttempts: 1, Base: time.Millisecond, Max: 5 * time.Millisecond}, func(ctx context.Context) error {
		return errors.New("429 rate limited")
	})

	if !breaker.IsOpen(key) {
		t.Fatalf("expected breaker to be opened after a 429")
	}
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	g := New(Params{BaseRps: 1000, Burst: 1000})
	calls := 0
	err := Do(context.Background(), g, nil, BreakerKey{}, time.Second, RetryParams{MaxAttempts: 2, Base: time.Millisecond, Max: 5 * time.Millisecond}, func(ctx context.Context) error {
		calls++
		return errors.New("network timeout")
	})
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if calls != 2 {
		t.Fatalf("expected exactly MaxAttempts=2 calls, got %d", calls)
	}
}
