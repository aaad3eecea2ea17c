package fee

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cosmossdk.io/math"
)

func TestTTLFloorsAtMinimum(t *testing.T) {
	got := TTL(time.Second)
	if got != minConvertTTL {
		t.Fatalf("expected TTL floor of %v, got %v", minConvertTTL, got)
	}
}

func TestTTLUsesDefaultWhenCooldownShort(t *testing.T) {
	got := TTL(5 * time.Second)
	if got != defaultConvertTTL {
		t.Fatalf("expected default TTL of %v, got %v", defaultConvertTTL, got)
	}
}

func TestTTLUsesCooldownWhenLonger(t *testing.T) {
	got := TTL(5 * time.Minute)
	if got != 5*time.Minute {
		t.Fatalf("expected TTL to follow the longer cooldown, got %v", got)
	}
}

func TestOutPerSolCachesWithinTTL(t *testing.T) {
	var calls int64
	cache := NewConvertCache(func(ctx context.Context, aMint string, slippageBps int) (math.Int, error) {
		atomic.AddInt64(&calls, 1)
		return math.NewInt(1_000_000), nil
	})
	key := ConvertCacheKey{Pair: "SOL-USDC", AMint: "mint", SlippageBps: 50}

	v1, err := cache.OutPerSol(context.Background(), key, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v2, err := cache.OutPerSol(context.Background(), key, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v1.Equal(v2) {
		t.Fatalf("expected identical cached values, got %s and %s", v1, v2)
	}
	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("expected exactly 1 upstream call while cached, got %d", calls)
	}
}

func TestOutPerSolRefetchesAfterExpiry(t *testing.T) {
	var calls int64
	cache := NewConvertCache(func(ctx context.Context, aMint string, slippageBps int) (math.Int, error) {
		atomic.AddInt64(&calls, 1)
		return math.NewInt(1_000_000), nil
	})
	key := ConvertCacheKey{Pair: "SOL-USDC", AMint: "mint", SlippageBps: 50}

	if _, err := cache.OutPerSol(context.Background(), key, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := cache.OutPerSol(context.Background(), key, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt64(&calls) != 2 {
		t.Fatalf("expected a second upstream call after expiry, got %d", calls)
	}
}

func TestOutPerSolDeletesEntryOnErrorSoNextCallRetries(t *testing.T) {
	var calls int64
	cache := NewConvertCache(func(ctx context.Context, aMint string, slippageBps int) (math.Int, error) {
		n := atomic.AddInt64(&calls, 1)
		if n == 1 {
			return math.Int{}, errors.New("upstream failure")
		}
		return math.NewInt(42), nil
	})
	key := ConvertCacheKey{Pair: "SOL-USDC", AMint: "mint", SlippageBps: 50}

	if _, err := cache.OutPerSol(context.Background(), key, time.Minute); err == nil {
		t.Fatalf("expected the first call to fail")
	}
	v, err := cache.OutPerSol(context.Background(), key, time.Minute)
	if err != nil {
		t.Fatalf("expected the second call to succeed after the failed entry was evicted: %v", err)
	}
	if !v.Equal(math.NewInt(42)) {
		t.Fatalf("expected value 42, got %s", v)
	}
	if atomic.LoadInt64(&calls) != 2 {
		t.Fatalf("expected exactly 2 upstream calls, got %d", calls)
	}
}

func TestOutPerSolCoalescesConcurrentCallers(t *testing.T) {
	var calls int64
	release := make(chan struct{})
	cache := NewConvertCache(func(ctx context.Context, aMint string, slippageBps int) (math.Int, error) {
		atomic.AddInt64(&calls, 1)
		<-release
		return math.NewInt(7), nil
	})
	key := ConvertCacheKey{Pair: "SOL-USDC", AMint: "mint", SlippageBps: 50}

	var wg sync.WaitGroup
	results := make([]math.Int, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cache.OutPerSol(context.Background(), key, time.Minute)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[i] = v
		}(i)
	}
	time.Sleep(10 * time.Millisecond) // let all goroutines queue behind the in-flight fetch
	close(release)
	wg.Wait()

	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("expected concurrent callers to coalesce onto a single upstream call, got %d", calls)
	}
	for i, v := range results {
		if !v.Equal(math.NewInt(7)) {
			t.Fatalf("expected all coalesced callers to see the same value, result[%d]=%s", i, v)
		}
	}
}
