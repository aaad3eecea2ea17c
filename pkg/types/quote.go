package types

import "cosmossdk.io/math"

// Provider identifies a quote source for rate limiting, breakers, and logs.
type Provider string

const (
	ProviderPrimary   Provider = "jupiter"
	ProviderSecondary Provider = "openocean"
)

// Quote is a provider's response for one leg of a round trip: an optimistic
// out-amount and a conservative (slippage-protected) min-out, plus opaque
// route metadata for downstream instruction building.
type Quote struct {
	Provider   Provider
	InputMint  string
	OutputMint string
	InAmount   math.Int
	OutAmount  math.Int // optimistic
	MinOut     math.Int // conservative, otherAmountThreshold
	SlippageBps int

	// VenueID is set for Secondary (OpenOcean) quotes, identifying the
	// chosen DEX venue for the swap call.
	VenueID string

	// Route is the provider-specific route payload, opaque to everything
	// except the provider's own swap/build call.
	Route any
}

// UltraOrder is a Primary "Ultra" quote: it carries a pre-built unsigned
// transaction and a request id used to report execution back to Jupiter.
type UltraOrder struct {
	Quote
	RequestID      string
	UnsignedTxB64  string
}

// SwapInstructions is the decomposed instruction bundle Primary's
// swap-instructions endpoint returns, ready for atomic-build merging (§3).
type SwapInstructions struct {
	ComputeBudget          []Instruction
	Setup                  []Instruction
	Other                  []Instruction
	Swap                   Instruction
	Cleanup                []Instruction
	LookupTableAddresses   []string
}

// Instruction is a provider-agnostic, serialization-friendly instruction
// shape: providers hand these back as base64/JSON; the builder turns them
// into solana.Instruction only at sign time.
type Instruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// AccountMeta mirrors solana.AccountMeta without importing solana-go here,
// keeping the quote-gateway layer provider-agnostic.
type AccountMeta struct {
	PublicKey  string
	IsSigner   bool
	IsWritable bool
}

// BuiltSwapTransaction is Primary's swap-transaction endpoint result: an
// unsigned, base64-encoded versioned transaction plus its last valid block
// height for confirmation.
type BuiltSwapTransaction struct {
	TxBase64            string
	LastValidBlockHeight uint64
}

// SecondarySwap is OpenOcean's swap-call result: a base64 or hex encoded
// unsigned transaction plus its last valid block height.
type SecondarySwap struct {
	DataBase64           string
	DataHex              string
	LastValidBlockHeight uint64
}
