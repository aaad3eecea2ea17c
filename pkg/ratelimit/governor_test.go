package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNormalizeDefaults(t *testing.T) {
	p := Params{BaseRps: 10}.Normalize()
	if p.MinRps != 2.5 {
		t.Fatalf("expected MinRps default to 0.25*BaseRps=2.5, got %v", p.MinRps)
	}
	if p.Burst != 1 {
		t.Fatalf("expected Burst floor of 1, got %v", p.Burst)
	}
	if p.PenaltyMs != 1000 {
		t.Fatalf("expected PenaltyMs floor of 1000, got %v", p.PenaltyMs)
	}
	if p.RecoveryStepRps != 0.1 {
		t.Fatalf("expected RecoveryStepRps default of 0.1, got %v", p.RecoveryStepRps)
	}
}

func TestNormalizeMinRpsFloor(t *testing.T) {
	p := Params{BaseRps: 0.01, MinRps: 0}.Normalize()
	if p.MinRps != 0.05 {
		t.Fatalf("expected MinRps floor of 0.05, got %v", p.MinRps)
	}
}

func TestNote429HalvesRateAndFloorsAtMin(t *testing.T) {
	g := New(Params{BaseRps: 10, MinRps: 4, Burst: 1, PenaltyMs: 1000, RecoveryEveryMs: 1000, RecoveryStepRps: 1})
	g.Note429()
	if got := g.CurrentRps(); got != 5 {
		t.Fatalf("expected currentRps halved to 5, got %v", got)
	}
	g.Note429()
	if got := g.CurrentRps(); got != 4 {
		t.Fatalf("expected currentRps floored at MinRps=4, got %v", got)
	}
}

func TestNoteSuccessRecoversTowardBaseAfterPenaltyWindow(t *testing.T) {
	g := New(Params{BaseRps: 10, MinRps: 2, Burst: 1, PenaltyMs: 1000, RecoveryEveryMs: 1000, RecoveryStepRps: 1})
	g.Note429() // currentRps -> 5, penaltyUntil 1s from now (the Normalize floor)
	time.Sleep(1100 * time.Millisecond)
	g.NoteSuccess()
	if got := g.CurrentRps(); got != 6 {
		t.Fatalf("expected currentRps recovered by one step to 6, got %v", got)
	}
}

func TestNoteSuccessNoopWithinPenaltyWindow(t *testing.T) {
	g := New(Params{BaseRps: 10, MinRps: 2, Burst: 1, PenaltyMs: 60_000, RecoveryEveryMs: 1, RecoveryStepRps: 1})
	g.Note429() // currentRps -> 5, penalty window of 60s
	g.NoteSuccess()
	if got := g.CurrentRps(); got != 5 {
		t.Fatalf("expected no recovery inside penalty window, got %v", got)
	}
}

func TestNoteSuccessNoopOnceAtBase(t *testing.T) {
	g := New(Params{BaseRps: 10, MinRps: 2, Burst: 1, PenaltyMs: 1, RecoveryEveryMs: 1, RecoveryStepRps: 1})
	if got := g.CurrentRps(); got != 10 {
		t.Fatalf("expected currentRps to start at BaseRps=10, got %v", got)
	}
	time.Sleep(2 * time.Millisecond)
	g.NoteSuccess()
	if got := g.CurrentRps(); got != 10 {
		t.Fatalf("expected currentRps to stay at BaseRps when already at ceiling, got %v", got)
	}
}

func TestCooldownExtendsForwardOnly(t *testing.T) {
	g := New(Params{BaseRps: 10, Burst: 1})
	g.Cooldown(50 * time.Millisecond)
	g.mu.Lock()
	first := g.cooldownUntil
	g.mu.Unlock()

	g.Cooldown(10 * time.Millisecond) // shorter, should not shrink the window
	g.mu.Lock()
	second := g.cooldownUntil
	g.mu.Unlock()

	if !second.Equal(first) {
		t.Fatalf("expected cooldown to stay at the longer deadline %v, got %v", first, second)
	}
}

func TestScheduleBlocksUntilCooldownElapses(t *testing.T) {
	g := New(Params{BaseRps: 1000, Burst: 1000})
	g.Cooldown(30 * time.Millisecond)

	start := time.Now()
	err := g.Schedule(context.Background(), func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("expected Schedule to wait out the cooldown, elapsed only %v", elapsed)
	}
}

func TestScheduleCountsCalls(t *testing.T) {
	g := New(Params{BaseRps: 1000, Burst: 1000})
	for i := 0; i < 3; i++ {
		if err := g.Schedule(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	snap := g.Snapshot()
	if snap.Calls != 3 {
		t.Fatalf("expected 3 recorded calls, got %d", snap.Calls)
	}
}

func TestScheduleRespectsContextCancellation(t *testing.T) {
	g := New(Params{BaseRps: 1000, Burst: 1000})
	g.Cooldown(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := g.Schedule(ctx, func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatalf("expected context deadline error, got nil")
	}
}
