// Package ratelimit implements the Rate Governor (C1): an adaptive token
// bucket per upstream with 429/ban adaptation, and per-pair circuit
// breakers (§4.1).
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Params configures one Governor instance, one per upstream (§4.1).
type Params struct {
	BaseRps         float64
	MinRps          float64 // default baseRps*0.25, floor 0.05
	Burst           int     // >= 1
	PenaltyMs       int64   // >= 1000
	RecoveryEveryMs int64   // >= 1000
	RecoveryStepRps float64 // default 0.1
}

// Normalize fills in defaults and clamps per §4.1.
func (p Params) Normalize() Params {
	if p.MinRps <= 0 {
		p.MinRps = p.BaseRps * 0.25
	}
	if p.MinRps < 0.05 {
		p.MinRps = 0.05
	}
	if p.Burst < 1 {
		p.Burst = 1
	}
	if p.PenaltyMs < 1000 {
		p.PenaltyMs = 1000
	}
	if p.RecoveryEveryMs < 1000 {
		p.RecoveryEveryMs = 1000
	}
	if p.RecoveryStepRps <= 0 {
		p.RecoveryStepRps = 0.1
	}
	return p
}

// counters tracks observability fields for the /metrics endpoint (§6).
type counters struct {
	calls    int64
	hits429  int64
	last429  time.Time
}

// Governor is an adaptive token bucket: an internal FIFO sequencer serializes
// calls through it so at most one token is consumed per call, refilling
// continuously at currentRps, clamped to burst (§4.1).
type Governor struct {
	params Params

	mu              sync.Mutex
	limiter         *rate.Limiter
	currentRps      float64
	cooldownUntil   time.Time
	penaltyUntil    time.Time
	lastRecovery    time.Time
	seq             chan struct{} // FIFO sequencer, buffered 1

	counters counters
}

// New constructs a Governor for one upstream.
func New(p Params) *Governor {
	p = p.Normalize()
	g := &Governor{
		params:     p,
		currentRps: p.BaseRps,
		limiter:    rate.NewLimiter(rate.Limit(p.BaseRps), p.Burst),
		seq:        make(chan struct{}, 1),
	}
	g.seq <- struct{}{}
	return g
}

// Schedule serializes f through the sequencer, waiting until a token is
// available and any cooldown has passed, whichever is later, then runs f.
func (g *Governor) Schedule(ctx context.Context, f func(context.Context) error) error {
	select {
	case <-g.seq:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { g.seq <- struct{}{} }()

	if err := g.waitCooldown(ctx); err != nil {
		return err
	}
	g.mu.Lock()
	lim := g.limiter
	g.mu.Unlock()
	if err := lim.Wait(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	g.counters.calls++
	g.mu.Unlock()

	return f(ctx)
}

func (g *Governor) waitCooldown(ctx context.Context) error {
	for {
		g.mu.Lock()
		until := g.cooldownUntil
		g.mu.Unlock()
		d := time.Until(until)
		if d <= 0 {
			return nil
		}
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

// Note429 halves currentRps (floored at minRps), sets a penalty window, and
// resets the recovery clock (§4.1).
func (g *Governor) Note429() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.currentRps = maxF(g.params.MinRps, g.currentRps*0.5)
	g.limiter.SetLimit(rate.Limit(g.currentRps))
	g.penaltyUntil = time.Now().Add(time.Duration(g.params.PenaltyMs) * time.Millisecond)
	g.lastRecovery = time.Now()
	g.counters.hits429++
	g.counters.last429 = time.Now()
}

// NoteSuccess recovers currentRps toward baseRps by recoveryStepRps every
// recoveryEveryMs, but only outside the penalty window (§4.1).
func (g *Governor) NoteSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if now.Before(g.penaltyUntil) {
		return
	}
	if g.currentRps >= g.params.BaseRps {
		return
	}
	if now.Sub(g.lastRecovery) < time.Duration(g.params.RecoveryEveryMs)*time.Millisecond {
		return
	}
	g.currentRps = minF(g.params.BaseRps, g.currentRps+g.params.RecoveryStepRps)
	g.limiter.SetLimit(rate.Limit(g.currentRps))
	g.lastRecovery = now
}

// Cooldown extends cooldownUntil forward-only (monotonic-only extension).
func (g *Governor) Cooldown(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(g.cooldownUntil) {
		g.cooldownUntil = until
	}
}

// CurrentRps returns the current adapted rate, for tests and /metrics.
func (g *Governor) CurrentRps() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentRps
}

// Snapshot returns a point-in-time copy of the governor's observable state
// for the /metrics endpoint (§6). It never exposes secrets.
type Snapshot struct {
	BaseRps    float64
	CurrentRps float64
	MinRps     float64
	Calls      int64
	Hits429    int64
}

func (g *Governor) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		BaseRps:    g.params.BaseRps,
		CurrentRps: g.currentRps,
		MinRps:     g.params.MinRps,
		Calls:      g.counters.calls,
		Hits429:    g.counters.hits429,
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
