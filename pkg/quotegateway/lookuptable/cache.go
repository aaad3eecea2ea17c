// Package lookuptable caches resolved address-lookup-table accounts with
// per-address in-flight coalescing (§4.2).
package lookuptable

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Resolver fetches one lookup-table account's resolved addresses.
type Resolver func(ctx context.Context, table solana.PublicKey) (solana.PublicKeySlice, error)

type entry struct {
	expires time.Time
	done    chan struct{}
	value   solana.PublicKeySlice
	err     error
}

// Cache is a TTL cache (default 60s) of resolved lookup tables, keyed by
// address, with in-flight coalescing (§4.2).
type Cache struct {
	ttl      time.Duration
	resolve  Resolver

	mu      sync.Mutex
	entries map[solana.PublicKey]*entry
}

func New(ttl time.Duration, resolve Resolver) *Cache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Cache{ttl: ttl, resolve: resolve, entries: make(map[solana.PublicKey]*entry)}
}

func (c *Cache) get(ctx context.Context, table solana.PublicKey) (solana.PublicKeySlice, error) {
	c.mu.Lock()
	e, ok := c.entries[table]
	if ok {
		select {
		case <-e.done:
			if time.Now().Before(e.expires) {
				c.mu.Unlock()
				return e.value, e.err
			}
		default:
			c.mu.Unlock()
			<-e.done
			return e.value, e.err
		}
	}
	e = &entry{done: make(chan struct{})}
	c.entries[table] = e
	c.mu.Unlock()

	value, err := c.resolve(ctx, table)
	e.value = value
	e.err = err
	e.expires = time.Now().Add(c.ttl)
	close(e.done)

	if err != nil {
		c.mu.Lock()
		if c.entries[table] == e {
			delete(c.entries, table)
		}
		c.mu.Unlock()
	}
	return value, err
}

// ResolveTables resolves every table concurrently and returns a map from
// table address to its resolved entries, dropping any table that failed to
// resolve (§4.2 "dropping undefined", §4.7 atomic build step 8: the builder
// needs the table keys, not just the flattened address set, to encode
// address-table lookups in a v0 message).
func (c *Cache) ResolveTables(ctx context.Context, tables []solana.PublicKey) map[solana.PublicKey]solana.PublicKeySlice {
	type result struct {
		table solana.PublicKey
		addrs solana.PublicKeySlice
		err   error
	}
	results := make([]result, len(tables))
	var wg sync.WaitGroup
	for i, t := range tables {
		wg.Add(1)
		go func(i int, t solana.PublicKey) {
			defer wg.Done()
			addrs, err := c.get(ctx, t)
			results[i] = result{table: t, addrs: addrs, err: err}
		}(i, t)
	}
	wg.Wait()

	out := make(map[solana.PublicKey]solana.PublicKeySlice, len(tables))
	for _, r := range results {
		if r.err != nil {
			continue
		}
		out[r.table] = r.addrs
	}
	return out
}

// GetMany resolves every table concurrently and returns the deduplicated
// union of resolved addresses, dropping any table that failed to resolve
// (§4.2 "dropping undefined").
func (c *Cache) GetMany(ctx context.Context, tables []solana.PublicKey) solana.PublicKeySlice {
	type result struct {
		addrs solana.PublicKeySlice
		err   error
	}
	results := make([]result, len(tables))
	var wg sync.WaitGroup
	for i, t := range tables {
		wg.Add(1)
		go func(i int, t solana.PublicKey) {
			defer wg.Done()
			addrs, err := c.get(ctx, t)
			results[i] = result{addrs: addrs, err: err}
		}(i, t)
	}
	wg.Wait()

	seen := make(map[solana.PublicKey]struct{})
	var out solana.PublicKeySlice
	for _, r := range results {
		if r.err != nil {
			continue
		}
		for _, a := range r.addrs {
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}
