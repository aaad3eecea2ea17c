// Package scanner implements the per-pair candidate enumeration (C5, §4.5):
// building the amount list, quoting loop/triangular legs through the Quote
// Gateway, computing fees and tips, running the decider, and selecting the
// best candidate.
package scanner

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"dexarb/pkg/decide"
	"dexarb/pkg/eventlog"
	"dexarb/pkg/fee"
	"dexarb/pkg/quotegateway"
	"dexarb/pkg/ratelimit"
	"dexarb/pkg/types"
)

// FeeConfig holds the process-wide fee/compute-budget defaults, overridable
// per pair (§3, §4.3).
type FeeConfig struct {
	BaseFeeLamports    uint64
	RentBufferLamports uint64
	ComputeUnitLimit   uint32
	ComputeUnitPrice   uint64
	Tip                fee.TipParams
}

// resolve merges a pair's per-pair overrides onto the process defaults.
func (c FeeConfig) resolve(p *types.Pair) FeeConfig {
	out := c
	if p.BaseFeeLamports != nil {
		out.BaseFeeLamports = *p.BaseFeeLamports
	}
	if p.RentBufferLamports != nil {
		out.RentBufferLamports = *p.RentBufferLamports
	}
	if p.ComputeUnitLimit != nil {
		out.ComputeUnitLimit = *p.ComputeUnitLimit
	}
	if p.ComputeUnitPrice != nil {
		out.ComputeUnitPrice = *p.ComputeUnitPrice
	}
	out.Tip.AIsNative = p.IsNativeA()
	return out
}

// Deps bundles every collaborator scanPair needs (§4.5 "Inputs to scanPair").
type Deps struct {
	Primary   quotegateway.QuoteOnly
	Secondary quotegateway.Secondary

	PrimaryGov   *ratelimit.Governor
	SecondaryGov *ratelimit.Governor
	Breaker      *ratelimit.Breaker
	Retry        ratelimit.RetryParams

	PrimaryCooldown429   int64 // ms
	SecondaryCooldown429 int64 // ms

	QuoteCache   *quotegateway.QuoteCache
	ConvertCache *fee.ConvertCache

	Fee FeeConfig

	Strategy        types.ExecutionStrategy
	EnableSecondary bool
	GateBps         int64
	NearGateBps     int64
	SecondarySigs   math.Int

	Log    *zap.SugaredLogger
	Events *eventlog.Log
}

// Summary is scanPair's return value: every candidate it produced this scan,
// plus the selected best (argmax conservativeProfit, ties by first-seen).
type Summary struct {
	Candidates []types.Candidate
	Best       *types.Candidate
	Skipped    bool
	SkipReason string
}

// ScanPair runs one scan of a pair across its configured (or overridden)
// amount list, per §4.5's 8-step algorithm.
func ScanPair(ctx context.Context, pair *types.Pair, amountOverride []string, d Deps) Summary {
	amounts := buildAmountList(pair, amountOverride)
	if len(amounts) == 0 {
		return Summary{Skipped: true, SkipReason: "no-amounts"}
	}

	primaryKey := ratelimit.BreakerKey{Provider: types.ProviderPrimary, Pair: pair.Name}
	if d.Breaker.IsOpen(primaryKey) {
		return Summary{
			Skipped:    true,
			SkipReason: fmt.Sprintf("rate-limited,cooldownMsRemaining=%d", d.Breaker.RemainingMs(primaryKey)),
		}
	}

	feeCfg := d.Fee.resolve(pair)
	fcSlippage := pair.DefaultSlippageBps

	var candidates []types.Candidate
	var primaryBest *types.Candidate
	primaryTripped := false

	for _, amt := range amounts {
		if primaryTripped {
			break
		}
		amountIn, ok := math.NewIntFromString(amt)
		if !ok {
			continue
		}

		var cand *types.Candidate
		var err error
		if pair.IsTriangular() {
			cand, err = scanTriangular(ctx, pair, amountIn, feeCfg, fcSlippage, d)
		} else {
			cand, err = scanLoop(ctx, pair, amountIn, feeCfg, fcSlippage, d)
		}
		if err != nil {
			if _, is429 := ratelimit.Classify(err); is429 {
				logEvent(d.Log, "rate_limit", pair.Name, err)
				primaryTripped = true
			}
			logEvent(d.Log, "candidate_error", pair.Name, err)
			continue
		}
		if cand == nil {
			continue
		}
		candidates = append(candidates, *cand)
		if primaryBest == nil || cand.Decision.ConservativeProfit.GT(primaryBest.Decision.ConservativeProfit) {
			primaryBest = cand
		}

		if d.EnableSecondary && d.Strategy == types.StrategySequential && !pair.IsTriangular() {
			if sc := maybeScanSecondary(ctx, pair, amountIn, feeCfg, fcSlippage, *primaryBest, d); sc != nil {
				candidates = append(candidates, *sc)
			}
		}
	}

	best := argmaxConservativeProfit(candidates)
	return Summary{Candidates: candidates, Best: best}
}

func argmaxConservativeProfit(candidates []types.Candidate) *types.Candidate {
	var best *types.Candidate
	for i := range candidates {
		c := &candidates[i]
		if best == nil || c.Decision.ConservativeProfit.GT(best.Decision.ConservativeProfit) {
			best = c
		}
	}
	return best
}

func logEvent(log *zap.SugaredLogger, kind, pair string, err error) {
	if log == nil {
		return
	}
	log.Warnw(kind, "pair", pair, "error", err)
}

// emitOpenOceanSkip records a Secondary gate decision (§4.5 step 6): the
// lower gate skips Secondary when Primary is clearly unprofitable even to an
// alternate venue, the upper gate skips it when Primary is already too
// profitable to be worth a second opinion.
func emitOpenOceanSkip(events *eventlog.Log, pair, reason string, bps, gate int64) {
	if events == nil {
		return
	}
	events.Write(eventlog.TypeOpenOceanSkip, eventlog.Fields{
		"pair": pair, "reason": reason, "bps": bps, "gate": gate,
	})
}

// scanLoop quotes the A->B->A loop (§4.5 step 5).
func scanLoop(ctx context.Context, pair *types.Pair, amountIn math.Int, feeCfg FeeConfig, fcSlippage int, d Deps) (*types.Candidate, error) {
	q1, err := quotePrimary(ctx, d, pair.Name, quotegateway.QuoteExactInParams{
		InputMint:   pair.MintA.String(),
		OutputMint:  pair.MintB.String(),
		Amount:      amountIn,
		SlippageBps: pair.LegSlippage(1),
		Include:     pair.IncludeDexes,
		Exclude:     pair.ExcludeDexes,
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: leg1 quote: %w", err)
	}

	q2, err := quotePrimary(ctx, d, pair.Name, quotegateway.QuoteExactInParams{
		InputMint:   pair.MintB.String(),
		OutputMint:  pair.MintA.String(),
		Amount:      q1.MinOut,
		SlippageBps: pair.LegSlippage(2),
		Include:     pair.IncludeDexes,
		Exclude:     pair.ExcludeDexes,
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: leg2 quote: %w", err)
	}

	txCount := int64(1)
	if d.Strategy == types.StrategySequential {
		txCount = 2
	}

	return buildCandidate(ctx, types.KindLoop, pair, amountIn, []types.Quote{q1, q2}, q2.OutAmount, q2.MinOut, feeCfg, fcSlippage, txCount, math.NewInt(1), d)
}

// scanTriangular quotes the A->B->C->A triangle (§4.5 step 4). Primary-quote
// only; no Ultra, no Secondary.
func scanTriangular(ctx context.Context, pair *types.Pair, amountIn math.Int, feeCfg FeeConfig, fcSlippage int, d Deps) (*types.Candidate, error) {
	q1, err := quotePrimary(ctx, d, pair.Name, quotegateway.QuoteExactInParams{
		InputMint:   pair.MintA.String(),
		OutputMint:  pair.MintB.String(),
		Amount:      amountIn,
		SlippageBps: pair.LegSlippage(1),
		Include:     pair.IncludeDexes,
		Exclude:     pair.ExcludeDexes,
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: leg1 quote: %w", err)
	}

	q2, err := quotePrimary(ctx, d, pair.Name, quotegateway.QuoteExactInParams{
		InputMint:   pair.MintB.String(),
		OutputMint:  pair.MintC.String(),
		Amount:      q1.MinOut,
		SlippageBps: pair.LegSlippage(2),
		Include:     pair.IncludeDexes,
		Exclude:     pair.ExcludeDexes,
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: leg2 quote: %w", err)
	}

	q3, err := quotePrimary(ctx, d, pair.Name, quotegateway.QuoteExactInParams{
		InputMint:   pair.MintC.String(),
		OutputMint:  pair.MintA.String(),
		Amount:      q2.MinOut,
		SlippageBps: pair.LegSlippage(3),
		Include:     pair.IncludeDexes,
		Exclude:     pair.ExcludeDexes,
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: leg3 quote: %w", err)
	}

	return buildCandidate(ctx, types.KindTriangular, pair, amountIn, []types.Quote{q1, q2, q3}, q3.OutAmount, q3.MinOut, feeCfg, fcSlippage, 1, math.NewInt(1), d)
}

// maybeScanSecondary applies the lower/upper bps gates against the best
// Primary candidate and, if not gated out, quotes OpenOcean (§4.5 step 6).
func maybeScanSecondary(ctx context.Context, pair *types.Pair, amountIn math.Int, feeCfg FeeConfig, fcSlippage int, primaryBest types.Candidate, d Deps) *types.Candidate {
	if d.Secondary == nil {
		return nil
	}
	secondaryKey := ratelimit.BreakerKey{Provider: types.ProviderSecondary, Pair: pair.Name}
	if d.Breaker.IsOpen(secondaryKey) {
		return nil
	}

	bps := primaryBest.BpsOfNotional()
	if bps < d.GateBps {
		emitOpenOceanSkip(d.Events, pair.Name, "lower-gate", bps, d.GateBps)
		return nil
	}
	if d.NearGateBps > 0 && bps > d.GateBps+d.NearGateBps {
		emitOpenOceanSkip(d.Events, pair.Name, "upper-gate", bps, d.GateBps+d.NearGateBps)
		return nil
	}

	q1, err := quoteSecondary(ctx, d, secondaryKey, quotegateway.QuoteExactInParams{
		InputMint:   pair.MintA.String(),
		OutputMint:  pair.MintB.String(),
		Amount:      amountIn,
		SlippageBps: pair.LegSlippage(1),
	})
	if err != nil {
		if _, is429 := ratelimit.Classify(err); is429 {
			logEvent(d.Log, "rate_limit", pair.Name, err)
		}
		logEvent(d.Log, "candidate_error", pair.Name, err)
		return nil
	}

	q2, err := quoteSecondary(ctx, d, secondaryKey, quotegateway.QuoteExactInParams{
		InputMint:   pair.MintB.String(),
		OutputMint:  pair.MintA.String(),
		Amount:      q1.MinOut,
		SlippageBps: pair.LegSlippage(2),
	})
	if err != nil {
		logEvent(d.Log, "candidate_error", pair.Name, err)
		return nil
	}

	cand, err := buildCandidate(ctx, types.KindLoopSecondary, pair, amountIn, []types.Quote{q1, q2}, q2.OutAmount, q2.MinOut, feeCfg, fcSlippage, 2, d.SecondarySigs, d)
	if err != nil {
		logEvent(d.Log, "candidate_error", pair.Name, err)
		return nil
	}
	return cand
}

// buildCandidate computes fee-in-A, tip, and the decision for one quoted
// leg chain (§4.3, §4.4).
func buildCandidate(ctx context.Context, kind types.CandidateKind, pair *types.Pair, amountIn math.Int, quotes []types.Quote, finalOut, finalMinOut math.Int, feeCfg FeeConfig, fcSlippage int, txCount int64, sigsPerTx math.Int, d Deps) (*types.Candidate, error) {
	gross := finalMinOut.Sub(amountIn)
	if gross.IsNegative() {
		gross = math.ZeroInt()
	}
	tip := fee.Tip(feeCfg.Tip, gross)

	params := fee.Params{
		BaseFeeLamports:    math.NewIntFromUint64(feeCfg.BaseFeeLamports),
		RentBufferLamports: math.NewIntFromUint64(feeCfg.RentBufferLamports),
		ComputeUnitLimit:   math.NewIntFromUint64(uint64(feeCfg.ComputeUnitLimit)),
		ComputeUnitPrice:   math.NewIntFromUint64(feeCfg.ComputeUnitPrice),
		TxCount:            math.NewInt(txCount),
		SigsPerTx:          sigsPerTx,
		Tip:                feeCfg.Tip,
	}
	feeLamports := fee.EstimateLamports(params, tip)

	feeInA := feeLamports
	if !pair.IsNativeA() {
		ttl := fee.TTL(time.Duration(pair.CooldownMs) * time.Millisecond)
		outPerSol, err := d.ConvertCache.OutPerSol(ctx, fee.ConvertCacheKey{
			Pair: pair.Name, AMint: pair.MintA.String(), SlippageBps: fcSlippage, ProviderKind: string(kind),
		}, ttl)
		if err != nil {
			return nil, fmt.Errorf("scanner: fee conversion: %w", err)
		}
		feeInA = fee.InA(feeLamports, outPerSol, false)
	}

	minProfit := decide.MinProfitInA(pair.MinProfitA, pair.MinProfitBps, amountIn)
	decision := decide.Decide(decide.Inputs{
		In: amountIn, Out: finalOut, MinOut: finalMinOut, FeeInA: feeInA, MinProfitInA: minProfit,
	})

	return &types.Candidate{
		Kind:        kind,
		Pair:        pair.Name,
		AmountIn:    amountIn,
		Quotes:      quotes,
		TipLamports: tip,
		FeeLamports: feeLamports,
		FeeInA:      feeInA,
		Decision:    decision,
	}, nil
}

func quotePrimary(ctx context.Context, d Deps, pairName string, p quotegateway.QuoteExactInParams) (types.Quote, error) {
	fetch := func(ctx context.Context) (types.Quote, error) { return d.Primary.QuoteExactIn(ctx, p) }
	get := func(ctx context.Context) (types.Quote, error) {
		if d.QuoteCache != nil {
			return d.QuoteCache.Get(ctx, p, fetch)
		}
		return fetch(ctx)
	}
	key := ratelimit.BreakerKey{Provider: types.ProviderPrimary, Pair: pairName}
	cooldown := time.Duration(d.PrimaryCooldown429) * time.Millisecond
	var out types.Quote
	err := ratelimit.Do(ctx, d.PrimaryGov, d.Breaker, key, cooldown, d.Retry, func(ctx context.Context) error {
		q, err := get(ctx)
		out = q
		return err
	})
	return out, err
}

func quoteSecondary(ctx context.Context, d Deps, key ratelimit.BreakerKey, p quotegateway.QuoteExactInParams) (types.Quote, error) {
	cooldown := time.Duration(d.SecondaryCooldown429) * time.Millisecond
	var out types.Quote
	err := ratelimit.Do(ctx, d.SecondaryGov, d.Breaker, key, cooldown, d.Retry, func(ctx context.Context) error {
		q, err := d.Secondary.QuoteExactIn(ctx, p)
		out = q
		return err
	})
	return out, err
}

// buildAmountList implements §4.5 step 2.
func buildAmountList(pair *types.Pair, override []string) []string {
	var raw []string
	if len(override) > 0 {
		raw = override
	} else if len(pair.AmountASteps) > 0 {
		raw = pair.AmountASteps
	} else {
		raw = []string{pair.AmountA}
	}

	var ceiling *math.Int
	if pair.MaxNotionalA != "" {
		if v, ok := math.NewIntFromString(pair.MaxNotionalA); ok {
			ceiling = &v
		}
	}

	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, a := range raw {
		if !types.IsDecimalAmount(a) {
			continue
		}
		if ceiling != nil {
			v, ok := math.NewIntFromString(a)
			if !ok || v.GT(*ceiling) {
				continue
			}
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
