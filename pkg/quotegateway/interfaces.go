// Package quotegateway presents a uniform quote/order API over the two
// aggregators and Primary's three modes, with retry, short-TTL quote
// caching, and lookup-table caching (C2, §4.2, §9).
package quotegateway

import (
	"context"
	"strings"

	"cosmossdk.io/math"

	"dexarb/pkg/types"
)

// QuoteExactInParams are the common inputs to an exact-in quote request.
type QuoteExactInParams struct {
	InputMint   string
	OutputMint  string
	Amount      math.Int
	SlippageBps int
	Include     []string
	Exclude     []string
}

// QuoteOnly is Primary's swap-v1 (or v6-compatible) quote/build surface.
type QuoteOnly interface {
	QuoteExactIn(ctx context.Context, p QuoteExactInParams) (types.Quote, error)
	BuildSwapTransaction(ctx context.Context, q types.Quote, userPk string, cuPriceMicroLamports uint64) (types.BuiltSwapTransaction, error)
	BuildSwapInstructions(ctx context.Context, q types.Quote, userPk string, cuPriceMicroLamports uint64) (types.SwapInstructions, error)
}

// Ultra is Primary's Ultra order/execute surface.
type Ultra interface {
	Order(ctx context.Context, in, out string, amount math.Int, taker string, excludeDexes []string) (types.UltraOrder, error)
	Execute(ctx context.Context, signedTxB64, requestID string) (UltraExecResult, error)
}

// UltraExecResult is Ultra's execute response (§4.7). Status strings and
// codes are non-uniform across failure modes; Failed() treats any of them
// as a failure per the open question in §9.
type UltraExecResult struct {
	Status    string
	Signature string
	Error     string
	Code      int
}

// Failed reports whether this result should be treated as a leg failure.
func (r UltraExecResult) Failed() bool {
	if r.Error != "" {
		return true
	}
	if r.Code != 0 {
		return true
	}
	lower := strings.ToLower(r.Status)
	for _, kw := range []string{"fail", "error", "revert", "reject"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Secondary is OpenOcean's quote/swap surface.
type Secondary interface {
	QuoteExactIn(ctx context.Context, p QuoteExactInParams) (types.Quote, error)
	Swap(ctx context.Context, p QuoteExactInParams, account string) (types.SecondarySwap, error)
	SigsPerTx() math.Int
}
