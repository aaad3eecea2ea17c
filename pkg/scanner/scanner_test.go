package scanner

import (
	"testing"

	"cosmossdk.io/math"

	"dexarb/pkg/types"
)

func candidateWithProfit(profit int64) types.Candidate {
	return types.Candidate{
		AmountIn: math.NewInt(1_000_000),
		Decision: types.Decision{ConservativeProfit: math.NewInt(profit)},
	}
}

func TestArgmaxConservativeProfitPicksHighest(t *testing.T) {
	candidates := []types.Candidate{
		candidateWithProfit(100),
		candidateWithProfit(500),
		candidateWithProfit(250),
	}
	best := argmaxConservativeProfit(candidates)
	if best == nil || !best.Decision.ConservativeProfit.Equal(math.NewInt(500)) {
		t.Fatalf("expected the 500-profit candidate to win, got %+v", best)
	}
}

func TestArgmaxConservativeProfitTieBreaksFirstSeen(t *testing.T) {
	candidates := []types.Candidate{
		{Kind: types.KindLoop, Decision: types.Decision{ConservativeProfit: math.NewInt(300)}},
		{Kind: types.KindLoopSecondary, Decision: types.Decision{ConservativeProfit: math.NewInt(300)}},
	}
	best := argmaxConservativeProfit(candidates)
	if best == nil || best.Kind != types.KindLoop {
		t.Fatalf("expected a tie to keep the first-seen candidate, got %+v", best)
	}
}

func TestArgmaxConservativeProfitEmpty(t *testing.T) {
	if best := argmaxConservativeProfit(nil); best != nil {
		t.Fatalf("expected nil best for no candidates, got %+v", best)
	}
}

func TestBuildAmountListUsesOverride(t *testing.T) {
	pair := &types.Pair{AmountA: "1000000"}
	got := buildAmountList(pair, []string{"500000", "750000"})
	if len(got) != 2 || got[0] != "500000" || got[1] != "750000" {
		t.Fatalf("expected override amounts to be used verbatim, got %v", got)
	}
}

func TestBuildAmountListFallsBackToStepsThenSingleAmount(t *testing.T) {
	withSteps := &types.Pair{AmountA: "1000000", AmountASteps: []string{"100000", "200000"}}
	got := buildAmountList(withSteps, nil)
	if len(got) != 2 {
		t.Fatalf("expected steps to be used when no override, got %v", got)
	}

	single := &types.Pair{AmountA: "1000000"}
	got = buildAmountList(single, nil)
	if len(got) != 1 || got[0] != "1000000" {
		t.Fatalf("expected single amountA fallback, got %v", got)
	}
}

func TestBuildAmountListDropsNonDecimalAndDuplicates(t *testing.T) {
	pair := &types.Pair{AmountA: "1000000"}
	got := buildAmountList(pair, []string{"100", "not-a-number", "100", "-50", "200"})
	if len(got) != 2 || got[0] != "100" || got[1] != "200" {
		t.Fatalf("expected non-decimal and duplicate entries dropped, got %v", got)
	}
}

func TestBuildAmountListEnforcesMaxNotionalCeiling(t *testing.T) {
	pair := &types.Pair{AmountA: "1000000", MaxNotionalA: "500000"}
	got := buildAmountList(pair, []string{"100000", "500000", "900000"})
	if len(got) != 2 || got[0] != "100000" || got[1] != "500000" {
		t.Fatalf("expected amounts above the ceiling to be dropped, got %v", got)
	}
}
