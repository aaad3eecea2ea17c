package lookuptable

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
)

var (
	tableA = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	tableB = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	addrX  = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
)

func TestResolveTablesDropsFailedTables(t *testing.T) {
	c := New(time.Minute, func(ctx context.Context, table solana.PublicKey) (solana.PublicKeySlice, error) {
		if table == tableB {
			return nil, errors.New("not found")
		}
		return solana.PublicKeySlice{addrX}, nil
	})

	got := c.ResolveTables(context.Background(), []solana.PublicKey{tableA, tableB})
	if len(got) != 1 {
		t.Fatalf("expected failed table to be dropped, got %d entries", len(got))
	}
	if _, ok := got[tableA]; !ok {
		t.Fatalf("expected tableA to resolve successfully")
	}
	if _, ok := got[tableB]; ok {
		t.Fatalf("expected tableB to be absent after failing to resolve")
	}
}

func TestGetManyDedupsAcrossTables(t *testing.T) {
	c := New(time.Minute, func(ctx context.Context, table solana.PublicKey) (solana.PublicKeySlice, error) {
		return solana.PublicKeySlice{addrX}, nil
	})
	got := c.GetMany(context.Background(), []solana.PublicKey{tableA, tableB})
	if len(got) != 1 {
		t.Fatalf("expected duplicate addresses across tables to be deduplicated, got %v", got)
	}
}

func TestCacheCoalescesRepeatedResolves(t *testing.T) {
	var calls int64
	c := New(time.Minute, func(ctx context.Context, table solana.PublicKey) (solana.PublicKeySlice, error) {
		atomic.AddInt64(&calls, 1)
		return solana.PublicKeySlice{addrX}, nil
	})
	if _, err := c.get(context.Background(), tableA); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.get(context.Background(), tableA); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("expected a single resolve call while cached, got %d", calls)
	}
}

func TestNewDefaultsTTL(t *testing.T) {
	c := New(0, func(ctx context.Context, table solana.PublicKey) (solana.PublicKeySlice, error) { return nil, nil })
	if c.ttl != 60*time.Second {
		t.Fatalf("expected default TTL of 60s, got %v", c.ttl)
	}
}
