package decide

import (
	"testing"

	"cosmossdk.io/math"
)

func TestDecideProfitable(t *testing.T) {
	d := Decide(Inputs{
		In:           math.NewInt(1_000_000),
		Out:          math.NewInt(1_050_000),
		MinOut:       math.NewInt(1_030_000),
		FeeInA:       math.NewInt(5_000),
		MinProfitInA: math.NewInt(10_000),
	})
	if !d.Profitable {
		t.Fatalf("expected profitable decision, got %+v", d)
	}
	if !d.ConservativeProfit.Equal(math.NewInt(25_000)) {
		t.Fatalf("expected conservativeProfit 25000, got %s", d.ConservativeProfit)
	}
	if !d.Profit.Equal(math.NewInt(45_000)) {
		t.Fatalf("expected profit 45000, got %s", d.Profit)
	}
}

func TestDecideUnprofitableBelowMinProfit(t *testing.T) {
	d := Decide(Inputs{
		In:           math.NewInt(1_000_000),
		Out:          math.NewInt(1_010_000),
		MinOut:       math.NewInt(1_005_000),
		FeeInA:       math.NewInt(4_000),
		MinProfitInA: math.NewInt(5_000),
	})
	if d.Profitable {
		t.Fatalf("expected unprofitable decision, got %+v", d)
	}
}

func TestDecideNegativeConservativeProfit(t *testing.T) {
	d := Decide(Inputs{
		In:           math.NewInt(1_000_000),
		Out:          math.NewInt(990_000),
		MinOut:       math.NewInt(980_000),
		FeeInA:       math.NewInt(1_000),
		MinProfitInA: math.NewInt(0),
	})
	if d.Profitable {
		t.Fatalf("expected loss to be unprofitable")
	}
	if !d.ConservativeProfit.IsNegative() {
		t.Fatalf("expected negative conservativeProfit, got %s", d.ConservativeProfit)
	}
}

func TestDecideProfitableAtExactThreshold(t *testing.T) {
	d := Decide(Inputs{
		In:           math.NewInt(1_000_000),
		Out:          math.NewInt(1_020_000),
		MinOut:       math.NewInt(1_015_000),
		FeeInA:       math.NewInt(5_000),
		MinProfitInA: math.NewInt(10_000),
	})
	if !d.ConservativeProfit.Equal(math.NewInt(10_000)) {
		t.Fatalf("expected conservativeProfit exactly at threshold, got %s", d.ConservativeProfit)
	}
	if !d.Profitable {
		t.Fatalf("expected GTE threshold to be profitable")
	}
}

func TestMinProfitInAUsesFlatFloorWhenBpsAbsent(t *testing.T) {
	got := MinProfitInA(math.NewInt(50_000), 0, math.NewInt(10_000_000))
	if !got.Equal(math.NewInt(50_000)) {
		t.Fatalf("expected flat minProfitA 50000, got %s", got)
	}
}

func TestMinProfitInAUsesBpsWhenLarger(t *testing.T) {
	// amountA=10_000_000, bps=100 (1%) => 100_000, larger than flat 50_000
	got := MinProfitInA(math.NewInt(50_000), 100, math.NewInt(10_000_000))
	if !got.Equal(math.NewInt(100_000)) {
		t.Fatalf("expected bps-derived floor of 100000, got %s", got)
	}
}

func TestMinProfitInAUsesFlatWhenBpsSmaller(t *testing.T) {
	// amountA=10_000_000, bps=1 => 1_000, smaller than flat 50_000
	got := MinProfitInA(math.NewInt(50_000), 1, math.NewInt(10_000_000))
	if !got.Equal(math.NewInt(50_000)) {
		t.Fatalf("expected flat floor of 50000 when bps-derived is smaller, got %s", got)
	}
}

func TestMinProfitInAZeroAmountFallsBackToFlat(t *testing.T) {
	got := MinProfitInA(math.NewInt(50_000), 100, math.ZeroInt())
	if !got.Equal(math.NewInt(50_000)) {
		t.Fatalf("expected flat floor when amountA is zero, got %s", got)
	}
}
