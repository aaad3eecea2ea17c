// Package trigger implements the Trigger Engine (C6): four timing strategies
// wrapping the Scanner behind a shared observe->execute window state machine
// (§4.6).
package trigger

import (
	"context"
	"fmt"
	stdmath "math"
	"sync"
	"time"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"dexarb/pkg/eventlog"
	"dexarb/pkg/scanner"
	"dexarb/pkg/types"
)

// Strategy selects the trigger timing behavior.
type Strategy string

const (
	StrategyImmediate Strategy = "immediate"
	StrategyAvgWindow Strategy = "avg-window"
	StrategyVWAP      Strategy = "vwap"
	StrategyBollinger Strategy = "bollinger"
)

// AmountMode selects which of a pair's configured sizes are quoted per tick.
type AmountMode string

const (
	AmountAll    AmountMode = "all"
	AmountFixed  AmountMode = "fixed"
	AmountRotate AmountMode = "rotate"
)

// State names the window state machine's nodes (§4.6).
type State string

const (
	StateIdle         State = "idle"
	StateObserving    State = "observing"
	StateReady        State = "ready"
	StateInsufficient State = "insufficient"
	StateExecuting    State = "executing"
	StateFired        State = "fired"
	StateExpired      State = "expired"
)

// Outcome is a window run's final disposition.
type Outcome string

const (
	OutcomeFired   Outcome = "fired"
	OutcomeSkipped Outcome = "skip"
	OutcomeExpired Outcome = "expired"
)

// Settings bundles the tunables for all four strategies; fields irrelevant
// to the configured Strategy are ignored.
type Settings struct {
	Strategy Strategy

	ObserveMs         int64
	ObserveIntervalMs int64
	ExecuteMs         int64
	ExecuteIntervalMs int64

	Alpha          float64 // 0 => auto
	K              float64 // bollinger band width
	MinSamples     int
	Lookback       int
	TrailDropPpm   int64
	EmergencySigma float64 // <=0 disables

	AmountMode        AmountMode
	MaxAmountsPerTick int

	EveryNTicks            int
	SecondaryEnableObserve bool
	SecondaryEnableExecute bool
}

// Result is one Run's outcome.
type Result struct {
	Outcome   Outcome
	Reason    string
	Candidate *types.Candidate
	Scans     int
}

// Engine runs windows for pairs, holding the rotate-mode amount cursor that
// persists across windows per pair (§4.6 "Amount-mode").
type Engine struct {
	settings Settings
	events   *eventlog.Log
	log      *zap.SugaredLogger

	mu      sync.Mutex
	cursors map[string]int
}

func NewEngine(settings Settings, events *eventlog.Log, log *zap.SugaredLogger) *Engine {
	if settings.EveryNTicks < 1 {
		settings.EveryNTicks = 1
	}
	return &Engine{settings: settings, events: events, log: log, cursors: make(map[string]int)}
}

// emit writes a business event if an event log is configured, and logs the
// failure to write (never the pair's trading data) to the process logger.
func (e *Engine) emit(t eventlog.Type, pair string, fields eventlog.Fields) {
	if e.events == nil {
		return
	}
	if fields == nil {
		fields = eventlog.Fields{}
	}
	fields["pair"] = pair
	if err := e.events.Write(t, fields); err != nil && e.log != nil {
		e.log.Warnw("eventlog write failed", "error", err)
	}
}

// Run executes one full window for pair against the given scan dependencies,
// returning the fired candidate (if any) or why the window ended without one.
func (e *Engine) Run(ctx context.Context, pair *types.Pair, d scanner.Deps) (Result, error) {
	e.emit(eventlog.TypeTriggerStart, pair.Name, eventlog.Fields{"strategy": string(e.settings.Strategy)})

	switch e.settings.Strategy {
	case StrategyImmediate:
		return e.runImmediate(ctx, pair, d)
	case StrategyAvgWindow:
		return e.runAvgWindow(ctx, pair, d)
	case StrategyVWAP:
		return e.runEMAWindow(ctx, pair, d, false)
	case StrategyBollinger:
		return e.runEMAWindow(ctx, pair, d, true)
	default:
		r := Result{Outcome: OutcomeSkipped, Reason: "unknown-strategy"}
		e.emit(eventlog.TypeSkip, pair.Name, eventlog.Fields{"reason": r.Reason})
		return r, fmt.Errorf("trigger: unknown strategy %q", e.settings.Strategy)
	}
}

// runImmediate is one scan; fire if best is profitable, else skip (§4.6).
func (e *Engine) runImmediate(ctx context.Context, pair *types.Pair, d scanner.Deps) (Result, error) {
	amounts := e.tickAmounts(pair, "single", 1)
	dd := d
	dd.EnableSecondary = d.EnableSecondary && e.secondaryGate("single", 1, false)
	summary := scanner.ScanPair(ctx, pair, amounts, dd)

	if summary.Best == nil || !summary.Best.Decision.Profitable {
		reason := "no-profitable-candidate"
		if summary.Skipped {
			reason = summary.SkipReason
		}
		e.emit(eventlog.TypeSkip, pair.Name, eventlog.Fields{"reason": reason})
		return Result{Outcome: OutcomeSkipped, Reason: reason, Scans: 1}, nil
	}
	e.emit(eventlog.TypeTriggerFire, pair.Name, eventlog.Fields{"strategy": "immediate"})
	return Result{Outcome: OutcomeFired, Candidate: summary.Best, Scans: 1}, nil
}

// runAvgWindow observes positive conservative profits, then fires in the
// execute phase on the first scan whose best clears both the observed
// average and the decider's own minimum (§4.6).
func (e *Engine) runAvgWindow(ctx context.Context, pair *types.Pair, d scanner.Deps) (Result, error) {
	sum := math.ZeroInt()
	count := 0
	tick := 0

	cancelled, _ := e.observePhase(ctx, func(elapsed time.Duration) bool {
		tick++
		amounts := e.tickAmounts(pair, "observe", tick)
		dd := d
		dd.EnableSecondary = d.EnableSecondary && e.secondaryGate("observe", tick, false)
		summary := scanner.ScanPair(ctx, pair, amounts, dd)
		if summary.Best != nil && summary.Best.Decision.ConservativeProfit.IsPositive() {
			sum = sum.Add(summary.Best.Decision.ConservativeProfit)
			count++
		}
		return false
	})
	if cancelled {
		return Result{Outcome: OutcomeExpired, Reason: "cancelled", Scans: tick}, ctx.Err()
	}

	avg := math.ZeroInt()
	if count > 0 {
		avg = sum.QuoRaw(int64(count))
	}
	e.emit(eventlog.TypeTriggerStats, pair.Name, eventlog.Fields{"samples": count, "avgProfitA": avg.String()})

	tick = 0
	armedEnable := false
	var fired *types.Candidate
	expired, _ := e.executePhase(ctx, func(elapsed time.Duration) bool {
		tick++
		amounts := e.tickAmounts(pair, "execute", tick)
		dd := d
		dd.EnableSecondary = d.EnableSecondary && e.secondaryGate("execute", tick, armedEnable)
		summary := scanner.ScanPair(ctx, pair, amounts, dd)
		if summary.Best != nil && summary.Best.Decision.Profitable && summary.Best.Decision.ConservativeProfit.GTE(avg) {
			fired = summary.Best
			return true
		}
		return false
	})
	if fired != nil {
		e.emit(eventlog.TypeTriggerFire, pair.Name, eventlog.Fields{"strategy": "avg-window"})
		return Result{Outcome: OutcomeFired, Candidate: fired, Scans: tick}, nil
	}
	reason := "expired"
	if expired && ctx.Err() != nil {
		reason = "cancelled"
	}
	e.emit(eventlog.TypeSkip, pair.Name, eventlog.Fields{"reason": reason})
	return Result{Outcome: OutcomeExpired, Reason: reason, Scans: tick}, nil
}

// runEMAWindow implements both vwap and bollinger (§4.6); bollinger adds
// EWM variance tracking, the upper band as arming threshold in place of the
// raw EMA, and the emergency-sigma immediate-fire shortcut.
func (e *Engine) runEMAWindow(ctx context.Context, pair *types.Pair, d scanner.Deps, bollinger bool) (Result, error) {
	alpha := e.settings.Alpha
	if alpha <= 0 {
		alpha = autoAlpha(e.settings.ObserveMs, e.settings.ObserveIntervalMs)
	}
	trk := newEMATracker(alpha, bollinger)

	samples := 0
	tick := 0
	var emergency *types.Candidate

	cancelled, _ := e.observePhase(ctx, func(elapsed time.Duration) bool {
		tick++
		amounts := e.tickAmounts(pair, "observe", tick)
		dd := d
		dd.EnableSecondary = d.EnableSecondary && e.secondaryGate("observe", tick, false)
		summary := scanner.ScanPair(ctx, pair, amounts, dd)

		ppm, ok := vwapPpmOfTick(summary.Candidates)
		if ok {
			trk.Update(ppm)
			samples++
		}
		e.emit(eventlog.TypeTriggerStats, pair.Name, eventlog.Fields{
			"phase": "observe", "tick": tick, "vwapPpm": ppm, "ema": trk.ema, "sigma": trk.Sigma(), "samples": samples,
		})

		if bollinger && e.settings.EmergencySigma > 0 && samples >= e.settings.MinSamples && summary.Best != nil && summary.Best.Decision.Profitable {
			if float64(summary.Best.PpmOfNotional()) >= trk.ema+e.settings.EmergencySigma*trk.Sigma() {
				emergency = summary.Best
				return true
			}
		}
		return false
	})
	if cancelled {
		return Result{Outcome: OutcomeExpired, Reason: "cancelled", Scans: tick}, ctx.Err()
	}
	if emergency != nil {
		e.emit(eventlog.TypeTriggerFire, pair.Name, eventlog.Fields{"strategy": string(e.settings.Strategy), "reason": "emergency-sigma"})
		return Result{Outcome: OutcomeFired, Candidate: emergency, Scans: tick}, nil
	}

	minSamples := e.settings.MinSamples
	if minSamples <= 0 {
		minSamples = 10
	}
	if samples < minSamples {
		e.emit(eventlog.TypeSkip, pair.Name, eventlog.Fields{"reason": "insufficient-samples", "samples": samples})
		return Result{Outcome: OutcomeSkipped, Reason: "insufficient-samples", Scans: tick}, nil
	}

	targetPpm := trk.ema
	if bollinger {
		targetPpm = trk.ema + e.settings.K*trk.Sigma()
	}

	tick = 0
	armed := false
	var peak int64
	decline := 0
	var fired *types.Candidate
	var fireReason string

	expired, _ := e.executePhase(ctx, func(elapsed time.Duration) bool {
		tick++
		amounts := e.tickAmounts(pair, "execute", tick)
		dd := d
		dd.EnableSecondary = d.EnableSecondary && e.secondaryGate("execute", tick, armed)
		summary := scanner.ScanPair(ctx, pair, amounts, dd)
		if summary.Best == nil {
			return false
		}
		ppm := summary.Best.PpmOfNotional()

		if bollinger && e.settings.EmergencySigma > 0 && summary.Best.Decision.Profitable &&
			float64(ppm) >= trk.ema+e.settings.EmergencySigma*trk.Sigma() {
			fired = summary.Best
			fireReason = "emergency-sigma"
			return true
		}

		if !armed {
			if float64(ppm) >= targetPpm {
				armed = true
				peak = ppm
				e.emit(eventlog.TypeTriggerArm, pair.Name, eventlog.Fields{"ppm": ppm, "targetPpm": targetPpm})
			}
			return false
		}

		if ppm > peak {
			peak = ppm
			decline = 0
			return false
		}
		if peak-ppm >= e.settings.TrailDropPpm {
			decline++
		} else {
			decline = 0
		}
		lookback := e.settings.Lookback
		if lookback <= 0 {
			lookback = 1
		}
		if decline >= lookback && summary.Best.Decision.Profitable {
			fired = summary.Best
			fireReason = "trailing-stop"
			return true
		}
		return false
	})

	if fired != nil {
		e.emit(eventlog.TypeTriggerFire, pair.Name, eventlog.Fields{"strategy": string(e.settings.Strategy), "reason": fireReason})
		return Result{Outcome: OutcomeFired, Candidate: fired, Scans: tick}, nil
	}
	reason := "expired"
	if expired && ctx.Err() != nil {
		reason = "cancelled"
	}
	e.emit(eventlog.TypeSkip, pair.Name, eventlog.Fields{"reason": reason})
	return Result{Outcome: OutcomeExpired, Reason: reason, Scans: tick}, nil
}

// observePhase and executePhase tick on the configured interval for up to
// the configured duration, calling onTick once per tick. onTick returns
// true to end the phase early (emergency-sigma fire, avg-window fire,
// trailing-stop fire). A stop signal terminates the window promptly between
// ticks (§4.6).
func (e *Engine) observePhase(ctx context.Context, onTick func(elapsed time.Duration) bool) (cancelled bool, firedEarly bool) {
	ended, fired := e.runPhase(ctx, e.settings.ObserveIntervalMs, e.settings.ObserveMs, onTick)
	return ended && ctx.Err() != nil, fired
}

func (e *Engine) executePhase(ctx context.Context, onTick func(elapsed time.Duration) bool) (expired bool, firedEarly bool) {
	return e.runPhase(ctx, e.settings.ExecuteIntervalMs, e.settings.ExecuteMs, onTick)
}

func (e *Engine) runPhase(ctx context.Context, intervalMs, durationMs int64, onTick func(elapsed time.Duration) bool) (endedByDeadlineOrCancel bool, firedEarly bool) {
	if intervalMs <= 0 {
		intervalMs = 1000
	}
	interval := time.Duration(intervalMs) * time.Millisecond
	start := time.Now()
	deadline := start.Add(time.Duration(durationMs) * time.Millisecond)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return true, false
		case now := <-ticker.C:
			if onTick(now.Sub(start)) {
				return false, true
			}
			if time.Now().After(deadline) {
				return true, false
			}
		}
	}
}

// secondaryGate reports whether Secondary should be called on this tick:
// every EveryNTicks ticks, or unconditionally once the strategy has armed
// (§4.6 "Secondary-usage gating").
func (e *Engine) secondaryGate(phase string, tick int, armed bool) bool {
	if armed {
		return true
	}
	switch phase {
	case "observe":
		if !e.settings.SecondaryEnableObserve {
			return false
		}
	case "execute":
		if !e.settings.SecondaryEnableExecute {
			return false
		}
	}
	n := e.settings.EveryNTicks
	if n < 1 {
		n = 1
	}
	return tick%n == 0
}

// tickAmounts resolves the amount override for this tick per the configured
// amount-mode (§4.6 "Amount-mode"). Returns nil for "all" (no override).
func (e *Engine) tickAmounts(pair *types.Pair, phase string, tick int) []string {
	switch e.settings.AmountMode {
	case AmountFixed:
		sizes := sizesOf(pair)
		k := clampK(e.settings.MaxAmountsPerTick, len(sizes))
		start := preferredIndex(pair, sizes)
		return wrapSlice(sizes, start, k)
	case AmountRotate:
		sizes := sizesOf(pair)
		k := clampK(e.settings.MaxAmountsPerTick, len(sizes))
		e.mu.Lock()
		cursor := e.cursors[pair.Name]
		out := wrapSlice(sizes, cursor, k)
		e.cursors[pair.Name] = (cursor + k) % len(sizes)
		e.mu.Unlock()
		return out
	default:
		return nil
	}
}

func sizesOf(pair *types.Pair) []string {
	if len(pair.AmountASteps) > 0 {
		return pair.AmountASteps
	}
	return []string{pair.AmountA}
}

func preferredIndex(pair *types.Pair, sizes []string) int {
	for i, s := range sizes {
		if s == pair.AmountA {
			return i
		}
	}
	return 0
}

func clampK(maxPerTick, n int) int {
	if n <= 0 {
		return 0
	}
	if maxPerTick <= 0 || maxPerTick > n {
		return n
	}
	return maxPerTick
}

func wrapSlice(sizes []string, start, k int) []string {
	n := len(sizes)
	if n == 0 || k <= 0 {
		return nil
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = sizes[(start+i)%n]
	}
	return out
}

// vwapPpmOfTick aggregates one tick's candidates into a single
// volume-weighted ppm signal: (Sigma conservative-profit)*1e6 / (Sigma amount)
// (§4.6). ok is false when no candidate carried a positive notional
// ("no finite signal" this tick).
func vwapPpmOfTick(candidates []types.Candidate) (float64, bool) {
	sumProfit := math.ZeroInt()
	sumAmount := math.ZeroInt()
	for _, c := range candidates {
		sumProfit = sumProfit.Add(c.Decision.ConservativeProfit)
		sumAmount = sumAmount.Add(c.AmountIn)
	}
	if !sumAmount.IsPositive() {
		return 0, false
	}
	ppm := sumProfit.MulRaw(1_000_000).Quo(sumAmount)
	return float64(ppm.Int64()), true
}

// autoAlpha computes the EMA smoothing factor from the observe window's
// tick count, clamped to [0.01, 1] (§4.6).
func autoAlpha(observeMs, observeIntervalMs int64) float64 {
	if observeIntervalMs <= 0 {
		observeIntervalMs = 1000
	}
	n := float64(observeMs) / float64(observeIntervalMs)
	if n < 1 {
		n = 1
	}
	a := 2 / (n + 1)
	if a < 0.01 {
		a = 0.01
	}
	if a > 1 {
		a = 1
	}
	return a
}

// emaTracker maintains an exponential moving average and, optionally, an
// exponentially weighted moving variance, using Finch's incremental
// mean/variance update (West 1979's online EWMA formulation).
type emaTracker struct {
	alpha    float64
	trackVar bool
	hasValue bool
	ema      float64
	variance float64
}

func newEMATracker(alpha float64, trackVar bool) *emaTracker {
	return &emaTracker{alpha: alpha, trackVar: trackVar}
}

func (t *emaTracker) Update(x float64) {
	if !t.hasValue {
		t.ema = x
		t.variance = 0
		t.hasValue = true
		return
	}
	diff := x - t.ema
	incr := t.alpha * diff
	t.ema += incr
	if t.trackVar {
		t.variance = (1 - t.alpha) * (t.variance + diff*incr)
	}
}

func (t *emaTracker) Sigma() float64 {
	if t.variance <= 0 {
		return 0
	}
	return stdmath.Sqrt(t.variance)
}
