package quotegateway

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"dexarb/pkg/types"
)

// quoteCacheKey is (in, out, amount, slippage, includeSet-sorted,
// excludeSet-sorted) — Primary quote-only path only (§4.2).
func quoteCacheKey(p QuoteExactInParams) string {
	inc := append([]string(nil), p.Include...)
	exc := append([]string(nil), p.Exclude...)
	sort.Strings(inc)
	sort.Strings(exc)
	var b strings.Builder
	b.WriteString(p.InputMint)
	b.WriteByte('|')
	b.WriteString(p.OutputMint)
	b.WriteByte('|')
	b.WriteString(p.Amount.String())
	b.WriteByte('|')
	b.WriteString(itoa(p.SlippageBps))
	b.WriteByte('|')
	b.WriteString(strings.Join(inc, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(exc, ","))
	return b.String()
}

func itoa(n int) string {
	neg := n < 0
	if neg {
		n = -n
	}
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

type quoteCacheEntry struct {
	expires time.Time
	done    chan struct{}
	value   types.Quote
	err     error
}

// QuoteCache coalesces concurrent Primary quote-only requests for the same
// key onto one in-flight request, with a short default TTL of 250ms (§4.2).
// On failure the entry is deleted so the next caller retries.
type QuoteCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]*quoteCacheEntry
}

func NewQuoteCache(ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = 250 * time.Millisecond
	}
	return &QuoteCache{ttl: ttl, entries: make(map[string]*quoteCacheEntry)}
}

// Get returns the cached quote for key, or calls fetch and caches the
// promise itself so concurrent callers coalesce onto one upstream call.
func (c *QuoteCache) Get(ctx context.Context, p QuoteExactInParams, fetch func(context.Context) (types.Quote, error)) (types.Quote, error) {
	key := quoteCacheKey(p)

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
	entry = &quoteCacheEntry{done: make(chan struct{})}
	c.entries[key] = entry
	c.mu.Unlock()

	value, err := fetch(ctx)
	entry.value = value
	entry.err = err
	entry.expires = time.Now().Add(c.ttl)
	close(entry.done)

	if err != nil {
		c.mu.Lock()
		if c.entries[key] == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}
	return value, err
}
