package ratelimit

import (
	"sync"
	"time"

	"dexarb/pkg/types"
)

// BreakerKey is (provider, pair-name) (§4.1).
type BreakerKey struct {
	Provider types.Provider
	Pair     string
}

// Breaker is the per-pair circuit breaker: open(key, ms) sets an
// open-until timestamp forward-only; isOpen(key) checks it (§4.1).
type Breaker struct {
	mu      sync.Mutex
	openUntil map[BreakerKey]time.Time
}

func NewBreaker() *Breaker {
	return &Breaker{openUntil: make(map[BreakerKey]time.Time)}
}

// Open extends the breaker's open-until forward-only.
func (b *Breaker) Open(key BreakerKey, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(b.openUntil[key]) {
		b.openUntil[key] = until
	}
}

// IsOpen reports whether the breaker is currently tripped for key.
func (b *Breaker) IsOpen(key BreakerKey) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Now().Before(b.openUntil[key])
}

// RemainingMs returns the milliseconds left before the breaker clears, 0 if
// not open. Used for the skip/reason=rate-limited log line (§8 example 3).
func (b *Breaker) RemainingMs(key BreakerKey) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := time.Until(b.openUntil[key])
	if d <= 0 {
		return 0
	}
	return d.Milliseconds()
}
