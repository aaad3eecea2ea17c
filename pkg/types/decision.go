package types

import "cosmossdk.io/math"

// Decision is the pure output of the Decider (C4): profit and conservative
// profit in A, and whether the round trip clears the configured minimum.
type Decision struct {
	Profit             math.Int
	ConservativeProfit math.Int
	Profitable         bool
}
