// Package decide implements the Decider (C4): a pure, deterministic function
// from (in, out, minOut, feeInA, minProfitInA) to a profitability decision,
// with an optional offloaded subprocess as a strict drop-in (§4.4, §9).
package decide

import (
	"cosmossdk.io/math"

	"dexarb/pkg/types"
)

// Inputs bundles the Decider's arguments. All values are non-negative.
type Inputs struct {
	In           math.Int
	Out          math.Int
	MinOut       math.Int
	FeeInA       math.Int
	MinProfitInA math.Int
}

// Decide computes the pure decision: profit = out - in - fee,
// conservativeProfit = minOut - in - fee, profitable = conservativeProfit >=
// minProfitInA. Exact big-integer arithmetic, never floating point (§3, §8).
func Decide(in Inputs) types.Decision {
	profit := in.Out.Sub(in.In).Sub(in.FeeInA)
	conservative := in.MinOut.Sub(in.In).Sub(in.FeeInA)
	return types.Decision{
		Profit:             profit,
		ConservativeProfit: conservative,
		Profitable:         conservative.GTE(in.MinProfitInA),
	}
}

// MinProfitInA computes max(minProfitA, floor(amountA*minProfitBps/10000))
// when minProfitBps is present and amountA>0; otherwise minProfitA (§4.3).
func MinProfitInA(minProfitA math.Int, minProfitBps int, amountA math.Int) math.Int {
	if minProfitBps <= 0 || amountA.IsZero() {
		return minProfitA
	}
	fromBps := amountA.MulRaw(int64(minProfitBps)).QuoRaw(10_000)
	if fromBps.GT(minProfitA) {
		return fromBps
	}
	return minProfitA
}
