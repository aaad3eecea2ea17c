package sol

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gagliardetto/solana-go/rpc"
)

// Pool round-robins requests across multiple RPC endpoints, adapted from
// the single-endpoint round-robin the teacher used for its pool
// decoders, generalized here to whichever client method the caller needs
// (blockhash, balance, simulate, send).
type Pool struct {
	clients []*Client
	index   uint64
}

// NewPool creates a client per endpoint, failing if any endpoint cannot be
// constructed.
func NewPool(ctx context.Context, endpoints []string, commitment rpc.CommitmentType) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("sol: at least one RPC endpoint is required")
	}
	clients := make([]*Client, 0, len(endpoints))
	for _, endpoint := range endpoints {
		client, err := NewClient(ctx, endpoint, commitment)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return &Pool{clients: clients}, nil
}

// Next returns the next client in round-robin order.
func (p *Pool) Next() *Client {
	if len(p.clients) == 1 {
		return p.clients[0]
	}
	idx := atomic.AddUint64(&p.index, 1) % uint64(len(p.clients))
	return p.clients[idx]
}

// All returns every client in the pool, used to fan out health checks.
func (p *Pool) All() []*Client { return p.clients }

// Size returns the number of endpoints in the pool.
func (p *Pool) Size() int { return len(p.clients) }
