package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"

	"dexarb/pkg/types"
)

func samplePairs() []types.Pair {
	return []types.Pair{
		{
			Name:               "SOL-USDC",
			MintA:              solana.SolMint,
			MintB:              solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
			DefaultSlippageBps: 50,
			AmountA:            "1000000000",
			AmountASteps:       []string{"500000000", "1000000000", "2000000000"},
			MinProfitA:         math.NewInt(1000),
			MinProfitBps:       20,
			CooldownMs:         250,
		},
		{
			Name:               "SOL-USDC-USDT",
			MintA:              solana.SolMint,
			MintB:              solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
			MintC:              solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"),
			DefaultSlippageBps: 75,
			LegSlippageBps:     map[int]int{2: 100},
			AmountA:            "500000000",
			MinProfitA:         math.NewInt(500),
			CooldownMs:         500,
		},
	}
}

func TestLoadPairsSavePairsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pairs.json")

	want := samplePairs()
	if err := SavePairs(path, want); err != nil {
		t.Fatalf("SavePairs: %v", err)
	}

	got, err := LoadPairs(path)
	if err != nil {
		t.Fatalf("LoadPairs: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d pairs round-tripped, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Name != want[i].Name {
			t.Fatalf("pair %d: name mismatch: want %q got %q", i, want[i].Name, got[i].Name)
		}
		if !got[i].MintA.Equals(want[i].MintA) || !got[i].MintB.Equals(want[i].MintB) || !got[i].MintC.Equals(want[i].MintC) {
			t.Fatalf("pair %d: mint mismatch after round trip", i)
		}
		if !got[i].MinProfitA.Equal(want[i].MinProfitA) {
			t.Fatalf("pair %d: minProfitA mismatch: want %s got %s", i, want[i].MinProfitA, got[i].MinProfitA)
		}
		if got[i].AmountA != want[i].AmountA {
			t.Fatalf("pair %d: amountA mismatch: want %s got %s", i, want[i].AmountA, got[i].AmountA)
		}
	}

	// Re-saving the round-tripped pairs and loading again should be stable.
	path2 := filepath.Join(dir, "pairs2.json")
	if err := SavePairs(path2, got); err != nil {
		t.Fatalf("SavePairs (second pass): %v", err)
	}
	got2, err := LoadPairs(path2)
	if err != nil {
		t.Fatalf("LoadPairs (second pass): %v", err)
	}
	if len(got2) != len(want) {
		t.Fatalf("expected %d pairs after second round trip, got %d", len(want), len(got2))
	}
}

func TestLoadPairsRejectsInvalidPair(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pairs.json")

	bad := samplePairs()
	bad[0].Name = ""
	if err := SavePairs(path, bad); err != nil {
		t.Fatalf("SavePairs: %v", err)
	}
	if _, err := LoadPairs(path); err == nil {
		t.Fatalf("expected LoadPairs to surface Validate() error for a pair missing a name")
	}
}

func TestLoadPairsRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pairs.json")

	raw := []byte(`{"pairs": [{"name": "X", "mintA": "` + solana.SolMint.String() + `", "mintB": "` +
		solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v").String() +
		`", "defaultSlippageBps": 50, "amountA": "1000", "minProfitA": "1", "unknownField": true}]}`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := LoadPairs(path); err == nil {
		t.Fatalf("expected LoadPairs to reject an unrecognized JSON field")
	}
}

func TestLoadPairsRejectsMissingFile(t *testing.T) {
	if _, err := LoadPairs(filepath.Join(t.TempDir(), "does-not-exist.json")); err == nil {
		t.Fatalf("expected an error for a missing pairs file")
	}
}

func TestLoadPairsRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pairs.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := LoadPairs(path); err == nil {
		t.Fatalf("expected an error for malformed JSON")
	}
}

func TestLoadRequiresRPCURL(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "")
	t.Setenv("WALLET_SECRET_KEY", "secret")
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env")); err == nil {
		t.Fatalf("expected Load to reject a missing SOLANA_RPC_URL")
	}
}

func TestLoadRequiresWalletSecret(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	t.Setenv("WALLET_SECRET_KEY", "")
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env")); err == nil {
		t.Fatalf("expected Load to reject a missing WALLET_SECRET_KEY")
	}
}

func TestLoadAppliesDefaultsAndSucceeds(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	t.Setenv("WALLET_SECRET_KEY", "secret")
	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Commitment != "confirmed" {
		t.Fatalf("expected default commitment confirmed, got %q", s.Commitment)
	}
	if s.Mode != "dry-run" {
		t.Fatalf("expected default mode dry-run, got %q", s.Mode)
	}
	if s.ExecutionStrategy != "atomic" || s.ExecutionProvider != "swap" {
		t.Fatalf("expected default atomic/swap execution settings, got %s/%s", s.ExecutionStrategy, s.ExecutionProvider)
	}
	if !s.LivePreflightSimulate {
		t.Fatalf("expected LivePreflightSimulate to default true")
	}
	if s.ComputeUnitLimit != 300000 {
		t.Fatalf("expected default compute unit limit 300000, got %d", s.ComputeUnitLimit)
	}
}

func TestLoadFlagsUltraWithAtomicStrategyAsWarningNotError(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	t.Setenv("WALLET_SECRET_KEY", "secret")
	t.Setenv("EXECUTION_PROVIDER", "ultra")
	t.Setenv("EXECUTION_STRATEGY", "atomic")
	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	if err != nil {
		t.Fatalf("expected Load to accept ultra+atomic (warn, don't reject): %v", err)
	}
	if !s.UltraAtomicMismatch() {
		t.Fatalf("expected UltraAtomicMismatch to report the ultra+atomic combination")
	}
}

func TestApplyProfileHFTForcesDefaults(t *testing.T) {
	s := &Settings{Profile: "hft", LogVerbose: true, Secondary: SecondarySettings{EnableObserve: true, EveryNTicks: 1}}
	applyProfile(s)
	if s.LogVerbose {
		t.Fatalf("expected hft profile to force LogVerbose off")
	}
	if s.Secondary.EnableObserve {
		t.Fatalf("expected hft profile to force Secondary.EnableObserve off")
	}
	if s.Secondary.EveryNTicks < 2 {
		t.Fatalf("expected hft profile to floor EveryNTicks at 2, got %d", s.Secondary.EveryNTicks)
	}
}

func TestApplyProfileDefaultLeavesSettingsAlone(t *testing.T) {
	s := &Settings{Profile: "default", LogVerbose: true, Secondary: SecondarySettings{EnableObserve: true, EveryNTicks: 1}}
	applyProfile(s)
	if !s.LogVerbose || !s.Secondary.EnableObserve || s.Secondary.EveryNTicks != 1 {
		t.Fatalf("expected default profile to leave settings untouched, got %+v", s)
	}
}

func TestSplitCSVTrimsAndDropsEmpty(t *testing.T) {
	got := splitCSV(" raydium, orca ,, whirlpool ")
	want := []string{"raydium", "orca", "whirlpool"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSplitCSVEmptyStringReturnsNil(t *testing.T) {
	if got := splitCSV(""); got != nil {
		t.Fatalf("expected nil for an empty string, got %v", got)
	}
}

func TestSavePairsProducesIndentedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pairs.json")
	if err := SavePairs(path, samplePairs()); err != nil {
		t.Fatalf("SavePairs: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	var pf struct {
		Pairs []json.RawMessage `json:"pairs"`
	}
	if err := json.Unmarshal(data, &pf); err != nil {
		t.Fatalf("saved file is not valid JSON: %v", err)
	}
	if len(pf.Pairs) != 2 {
		t.Fatalf("expected 2 pairs in saved file, got %d", len(pf.Pairs))
	}
}
