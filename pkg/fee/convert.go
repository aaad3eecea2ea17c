package fee

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/math"
)

// ReferenceQuoter fetches the optimistic out-amount of one native unit
// quoted into aMint, on the Primary quote client. The call is intentionally
// the optimistic amount, not the conservative one, so the resulting feeInA
// is conservative/high (§4.3).
type ReferenceQuoter func(ctx context.Context, aMint string, slippageBps int) (math.Int, error)

const (
	defaultConvertTTL = 60 * time.Second
	minConvertTTL     = 10 * time.Second
)

// ConvertCacheKey is (pair-name, aMint, slippage, provider-kind).
type ConvertCacheKey struct {
	Pair         string
	AMint        string
	SlippageBps  int
	ProviderKind string
}

type convertEntry struct {
	mu      sync.Mutex
	value   math.Int
	err     error
	expires time.Time
	done    chan struct{}
}

// ConvertCache caches reference native->A quotes used for fee conversion.
// TTL defaults to 60s, floors at 10s, and is raised to at least the pair's
// cooldown so a pair never re-fetches more often than it scans (§4.2).
type ConvertCache struct {
	mu      sync.Mutex
	entries map[ConvertCacheKey]*convertEntry
	quote   ReferenceQuoter
}

func NewConvertCache(quote ReferenceQuoter) *ConvertCache {
	return &ConvertCache{entries: make(map[ConvertCacheKey]*convertEntry), quote: quote}
}

// TTL computes the effective TTL for a pair given its cooldown.
func TTL(cooldown time.Duration) time.Duration {
	ttl := defaultConvertTTL
	if cooldown > ttl {
		ttl = cooldown
	}
	if ttl < minConvertTTL {
		ttl = minConvertTTL
	}
	return ttl
}

// OutPerSol returns the cached (or freshly fetched) reference quote for the
// given key, coalescing concurrent callers onto the same in-flight request.
// On failure the cache entry is deleted so the next caller retries.
func (c *ConvertCache) OutPerSol(ctx context.Context, key ConvertCacheKey, ttl time.Duration) (math.Int, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok {
		select {
		case <-entry.done:
			if time.Now().Before(entry.expires) {
				c.mu.Unlock()
				return entry.value, entry.err
			}
		default:
			c.mu.Unlock()
			<-entry.done
			return entry.value, entry.err
		}
	}

	entry = &convertEntry{done: make(chan struct{})}
	c.entries[key] = entry
	c.mu.Unlock()

	value, err := c.quote(ctx, key.AMint, key.SlippageBps)
	entry.value = value
	entry.err = err
	entry.expires = time.Now().Add(ttl)
	close(entry.done)

	if err != nil {
		c.mu.Lock()
		if c.entries[key] == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return math.Int{}, fmt.Errorf("fee convert cache: %w", err)
	}
	return value, nil
}
