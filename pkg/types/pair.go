// Package types holds the data model shared across the scan/decide/trigger/
// execute pipeline: pair configuration, quotes, candidates, and decisions.
package types

import (
	"fmt"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
)

// ExecutionStrategy selects how a profitable candidate is submitted.
type ExecutionStrategy string

const (
	StrategyAtomic     ExecutionStrategy = "atomic"
	StrategySequential ExecutionStrategy = "sequential"
)

// ExecutionProvider selects the Primary execution path for sequential strategy.
type ExecutionProvider string

const (
	ProviderSwap  ExecutionProvider = "swap"
	ProviderUltra ExecutionProvider = "ultra"
)

// Pair is a configured arbitrage loop (A->B->A) or triangle (A->B->C->A).
// Immutable after config load.
type Pair struct {
	Name string `json:"name"`

	MintA solana.PublicKey `json:"mintA"`
	MintB solana.PublicKey `json:"mintB"`
	MintC solana.PublicKey `json:"mintC,omitempty"` // zero value => loop, not triangular

	DefaultSlippageBps int         `json:"defaultSlippageBps"`
	LegSlippageBps     map[int]int `json:"legSlippageBps,omitempty"` // 1-indexed leg -> override bps

	IncludeDexes []string `json:"includeDexes,omitempty"`
	ExcludeDexes []string `json:"excludeDexes,omitempty"`

	AmountA      string   `json:"amountA"`                // default input size, decimal string
	AmountASteps []string `json:"amountASteps,omitempty"` // optional alternate sizes
	MaxNotionalA string   `json:"maxNotionalA,omitempty"` // optional ceiling; larger sizes are dropped, an equal size is kept

	MinProfitA   math.Int `json:"minProfitA"`
	MinProfitBps int      `json:"minProfitBps,omitempty"` // optional, 0 disables

	CooldownMs int64 `json:"cooldownMs"`

	ComputeUnitLimit   *uint32 `json:"computeUnitLimit,omitempty"`
	ComputeUnitPrice   *uint64 `json:"computeUnitPrice,omitempty"`
	BaseFeeLamports    *uint64 `json:"baseFeeLamports,omitempty"`
	RentBufferLamports *uint64 `json:"rentBufferLamports,omitempty"`
}

// IsTriangular reports whether the pair has a configured third mint.
func (p *Pair) IsTriangular() bool {
	return !p.MintC.IsZero()
}

// IsNativeA reports whether the input mint is native SOL (wrapped mint).
func (p *Pair) IsNativeA() bool {
	return p.MintA.Equals(solana.SolMint)
}

// LegSlippage resolves the effective slippage for the given 1-indexed leg,
// clamped to [1, 5000] bps per §3/§8.
func (p *Pair) LegSlippage(leg int) int {
	bps := p.DefaultSlippageBps
	if override, ok := p.LegSlippageBps[leg]; ok {
		bps = override
	}
	return ClampBps(bps)
}

// ClampBps clamps a basis-point value to the valid [1, 5000] range.
func ClampBps(bps int) int {
	if bps < 1 {
		return 1
	}
	if bps > 5000 {
		return 5000
	}
	return bps
}

// Validate checks the static invariants of a pair config.
func (p *Pair) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pair: missing name")
	}
	if p.MintA.IsZero() || p.MintB.IsZero() {
		return fmt.Errorf("pair %s: mintA and mintB are required", p.Name)
	}
	if p.DefaultSlippageBps < 1 || p.DefaultSlippageBps > 5000 {
		return fmt.Errorf("pair %s: slippageBps out of range [1,5000]: %d", p.Name, p.DefaultSlippageBps)
	}
	if p.MinProfitBps < 0 || p.MinProfitBps > 10000 {
		return fmt.Errorf("pair %s: minProfitBps out of range [0,10000]: %d", p.Name, p.MinProfitBps)
	}
	if p.AmountA == "" {
		return fmt.Errorf("pair %s: amountA is required", p.Name)
	}
	if !decimalRe.MatchString(p.AmountA) {
		return fmt.Errorf("pair %s: amountA must match ^[0-9]+$: %q", p.Name, p.AmountA)
	}
	for _, a := range p.AmountASteps {
		if !decimalRe.MatchString(a) {
			return fmt.Errorf("pair %s: amountASteps entry must match ^[0-9]+$: %q", p.Name, a)
		}
	}
	return nil
}
