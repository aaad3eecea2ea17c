package types

import (
	"testing"

	"cosmossdk.io/math"
)

func TestFinalOutAndMinOutReturnLastLeg(t *testing.T) {
	c := &Candidate{
		Quotes: []Quote{
			{OutAmount: math.NewInt(100), MinOut: math.NewInt(90)},
			{OutAmount: math.NewInt(200), MinOut: math.NewInt(180)},
		},
	}
	if !c.FinalOut().Equal(math.NewInt(200)) {
		t.Fatalf("expected FinalOut to return the last leg's out amount")
	}
	if !c.FinalMinOut().Equal(math.NewInt(180)) {
		t.Fatalf("expected FinalMinOut to return the last leg's min-out")
	}
}

func TestPpmOfNotionalZeroAmountIn(t *testing.T) {
	c := &Candidate{AmountIn: math.ZeroInt(), Decision: Decision{ConservativeProfit: math.NewInt(100)}}
	if c.PpmOfNotional() != 0 {
		t.Fatalf("expected 0 ppm for zero amountIn, got %d", c.PpmOfNotional())
	}
}

func TestPpmOfNotionalComputesRatio(t *testing.T) {
	c := &Candidate{AmountIn: math.NewInt(1_000_000), Decision: Decision{ConservativeProfit: math.NewInt(500)}}
	// 500 * 1e6 / 1_000_000 = 500
	if got := c.PpmOfNotional(); got != 500 {
		t.Fatalf("expected 500 ppm, got %d", got)
	}
}

func TestBpsOfNotionalComputesRatio(t *testing.T) {
	c := &Candidate{AmountIn: math.NewInt(1_000_000), Decision: Decision{ConservativeProfit: math.NewInt(5_000)}}
	// 5000 * 10000 / 1_000_000 = 50
	if got := c.BpsOfNotional(); got != 50 {
		t.Fatalf("expected 50 bps, got %d", got)
	}
}

func TestBpsOfNotionalZeroAmountIn(t *testing.T) {
	c := &Candidate{AmountIn: math.ZeroInt()}
	if c.BpsOfNotional() != 0 {
		t.Fatalf("expected 0 bps for zero amountIn, got %d", c.BpsOfNotional())
	}
}
