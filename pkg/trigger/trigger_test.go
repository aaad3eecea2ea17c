package trigger

import (
	"math"
	"testing"

	sdkmath "cosmossdk.io/math"

	"dexarb/pkg/types"
)

func TestVwapPpmOfTickAggregatesVolumeWeighted(t *testing.T) {
	candidates := []types.Candidate{
		{AmountIn: sdkmath.NewInt(1_000_000), Decision: types.Decision{ConservativeProfit: sdkmath.NewInt(1_000)}},
		{AmountIn: sdkmath.NewInt(1_000_000), Decision: types.Decision{ConservativeProfit: sdkmath.NewInt(3_000)}},
	}
	ppm, ok := vwapPpmOfTick(candidates)
	if !ok {
		t.Fatalf("expected ok=true for positive total notional")
	}
	// sum profit=4000, sum amount=2_000_000 => 4000*1e6/2_000_000 = 2000
	if ppm != 2000 {
		t.Fatalf("expected ppm 2000, got %v", ppm)
	}
}

func TestVwapPpmOfTickNoSignalWhenNoNotional(t *testing.T) {
	_, ok := vwapPpmOfTick(nil)
	if ok {
		t.Fatalf("expected ok=false for empty candidates")
	}
}

func TestAutoAlphaClampedRange(t *testing.T) {
	if a := autoAlpha(10_000, 1_000); a <= 0 || a > 1 {
		t.Fatalf("expected alpha in (0,1], got %v", a)
	}
	// n = 1 tick => alpha = 2/(1+1) = 1
	if a := autoAlpha(500, 1000); a != 1 {
		t.Fatalf("expected alpha=1 for a single-tick window, got %v", a)
	}
	// extremely long window should clamp to the 0.01 floor
	if a := autoAlpha(2_000_000, 1000); a != 0.01 {
		t.Fatalf("expected alpha floor of 0.01, got %v", a)
	}
}

func TestAutoAlphaDefaultsIntervalWhenZero(t *testing.T) {
	a := autoAlpha(2000, 0) // interval defaults to 1000ms => n=2 => alpha=2/3
	want := 2.0 / 3.0
	if math.Abs(a-want) > 1e-9 {
		t.Fatalf("expected alpha %v, got %v", want, a)
	}
}

func TestEMATrackerFirstUpdateSeedsValue(t *testing.T) {
	trk := newEMATracker(0.5, true)
	trk.Update(100)
	if trk.ema != 100 {
		t.Fatalf("expected first update to seed ema, got %v", trk.ema)
	}
	if trk.Sigma() != 0 {
		t.Fatalf("expected zero sigma after a single sample, got %v", trk.Sigma())
	}
}

func TestEMATrackerConvergesTowardConstantSeries(t *testing.T) {
	trk := newEMATracker(0.5, false)
	for i := 0; i < 20; i++ {
		trk.Update(50)
	}
	if math.Abs(trk.ema-50) > 1e-6 {
		t.Fatalf("expected ema to converge to constant input 50, got %v", trk.ema)
	}
}

func TestEMATrackerVarianceGrowsWithDispersion(t *testing.T) {
	trk := newEMATracker(0.3, true)
	vals := []float64{10, 90, 20, 80, 15, 85}
	for _, v := range vals {
		trk.Update(v)
	}
	if trk.Sigma() <= 0 {
		t.Fatalf("expected positive sigma for a dispersed series, got %v", trk.Sigma())
	}
}

func TestEMATrackerVarianceUntrackedStaysZero(t *testing.T) {
	trk := newEMATracker(0.3, false)
	trk.Update(10)
	trk.Update(90)
	if trk.Sigma() != 0 {
		t.Fatalf("expected sigma 0 when variance tracking disabled, got %v", trk.Sigma())
	}
}

func TestSecondaryGateArmedAlwaysTrue(t *testing.T) {
	e := &Engine{settings: Settings{EveryNTicks: 5, SecondaryEnableExecute: false}}
	if !e.secondaryGate("execute", 1, true) {
		t.Fatalf("expected armed state to force secondary on regardless of cadence")
	}
}

func TestSecondaryGateDisabledPhaseNeverFires(t *testing.T) {
	e := &Engine{settings: Settings{EveryNTicks: 1, SecondaryEnableObserve: false}}
	if e.secondaryGate("observe", 1, false) {
		t.Fatalf("expected disabled observe-phase secondary to stay off")
	}
}

func TestSecondaryGateCadence(t *testing.T) {
	e := &Engine{settings: Settings{EveryNTicks: 3, SecondaryEnableExecute: true}}
	if e.secondaryGate("execute", 1, false) {
		t.Fatalf("tick 1 should not fire with EveryNTicks=3")
	}
	if !e.secondaryGate("execute", 3, false) {
		t.Fatalf("tick 3 should fire with EveryNTicks=3")
	}
}

func TestClampK(t *testing.T) {
	if got := clampK(0, 5); got != 5 {
		t.Fatalf("expected clampK(0,5)=5 (no cap), got %d", got)
	}
	if got := clampK(10, 5); got != 5 {
		t.Fatalf("expected clampK to cap at n when maxPerTick exceeds it, got %d", got)
	}
	if got := clampK(2, 5); got != 2 {
		t.Fatalf("expected clampK(2,5)=2, got %d", got)
	}
	if got := clampK(2, 0); got != 0 {
		t.Fatalf("expected clampK with n=0 to return 0, got %d", got)
	}
}

func TestWrapSliceWrapsAround(t *testing.T) {
	sizes := []string{"a", "b", "c"}
	got := wrapSlice(sizes, 2, 3)
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected wrap-around slice %v, got %v", want, got)
		}
	}
}

func TestPreferredIndexFindsDefaultAmount(t *testing.T) {
	pair := &types.Pair{AmountA: "200", AmountASteps: []string{"100", "200", "300"}}
	idx := preferredIndex(pair, sizesOf(pair))
	if idx != 1 {
		t.Fatalf("expected preferred index 1 for amountA=200, got %d", idx)
	}
}
