package ratelimit

import (
	"testing"
	"time"

	"dexarb/pkg/types"
)

func TestBreakerOpenAndIsOpen(t *testing.T) {
	b := NewBreaker()
	key := BreakerKey{Provider: types.ProviderPrimary, Pair: "SOL-USDC"}

	if b.IsOpen(key) {
		t.Fatalf("expected breaker closed before Open")
	}
	b.Open(key, 50*time.Millisecond)
	if !b.IsOpen(key) {
		t.Fatalf("expected breaker open immediately after Open")
	}
	if b.RemainingMs(key) <= 0 {
		t.Fatalf("expected positive remaining ms while open")
	}

	time.Sleep(60 * time.Millisecond)
	if b.IsOpen(key) {
		t.Fatalf("expected breaker closed after cooldown elapses")
	}
	if b.RemainingMs(key) != 0 {
		t.Fatalf("expected RemainingMs 0 once closed, got %d", b.RemainingMs(key))
	}
}

func TestBreakerOpenIsForwardOnly(t *testing.T) {
	b := NewBreaker()
	key := BreakerKey{Provider: types.ProviderSecondary, Pair: "A-B-C"}

	b.Open(key, 200*time.Millisecond)
	long := b.RemainingMs(key)

	b.Open(key, 10*time.Millisecond) // shorter, must not shrink the window
	short := b.RemainingMs(key)

	if short < long-5 {
		t.Fatalf("expected breaker open-until to only extend forward: long=%d short=%d", long, short)
	}
}

func TestBreakerKeysAreIndependent(t *testing.T) {
	b := NewBreaker()
	k1 := BreakerKey{Provider: types.ProviderPrimary, Pair: "SOL-USDC"}
	k2 := BreakerKey{Provider: types.ProviderPrimary, Pair: "SOL-USDT"}

	b.Open(k1, time.Hour)
	if b.IsOpen(k2) {
		t.Fatalf("expected unrelated pair key to remain closed")
	}
}
