package types

import "cosmossdk.io/math"

// CandidateKind tags the three candidate shapes the executor dispatches on
// (§9 "two-provider polymorphism").
type CandidateKind string

const (
	KindLoop          CandidateKind = "loop"          // Primary A->B->A
	KindLoopSecondary CandidateKind = "loop_secondary" // Secondary A->B->A, sequential only
	KindTriangular    CandidateKind = "triangular"     // Primary A->B->C->A
)

// Candidate is one (pair, input size) quoting attempt, n in {2,3} legs.
// Secondary candidates only exist when the execution strategy is sequential;
// Ultra candidates are always Kind==Loop with len(Quotes)==2.
type Candidate struct {
	Kind CandidateKind
	Pair string

	AmountIn math.Int
	Quotes   []Quote // length 2 (loop) or 3 (triangular), in leg order

	TipLamports math.Int
	FeeLamports math.Int
	FeeInA      math.Int

	Decision Decision
}

// FinalOut returns the last leg's optimistic out-amount (outₙ in §3).
func (c *Candidate) FinalOut() math.Int {
	return c.Quotes[len(c.Quotes)-1].OutAmount
}

// FinalMinOut returns the last leg's conservative min-out (minOutₙ in §3).
func (c *Candidate) FinalMinOut() math.Int {
	return c.Quotes[len(c.Quotes)-1].MinOut
}

// PpmOfNotional returns the candidate's conservative profit expressed in
// parts-per-million of the input notional, used by the vwap/bollinger
// trigger strategies.
func (c *Candidate) PpmOfNotional() int64 {
	if c.AmountIn.IsZero() {
		return 0
	}
	ppm := c.Decision.ConservativeProfit.MulRaw(1_000_000).Quo(c.AmountIn)
	return ppm.Int64()
}

// BpsOfNotional is the same ratio expressed in basis points (§4.5 step 6).
func (c *Candidate) BpsOfNotional() int64 {
	if c.AmountIn.IsZero() {
		return 0
	}
	bps := c.Decision.ConservativeProfit.MulRaw(10_000).Quo(c.AmountIn)
	return bps.Int64()
}
