package executor

import (
	"testing"

	"github.com/gagliardetto/solana-go"

	"dexarb/pkg/types"
)

const (
	testProgramA = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	testProgramB = "11111111111111111111111111111111"
	testAccount1 = "So11111111111111111111111111111111111111112"
	testAccount2 = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func ixFixture(programID string, data []byte, accounts ...types.AccountMeta) types.Instruction {
	return types.Instruction{ProgramID: programID, Data: data, Accounts: accounts}
}

func TestDedupKeyIsOrderInsensitiveOverAccounts(t *testing.T) {
	a1 := types.AccountMeta{PublicKey: testAccount1, IsSigner: true, IsWritable: false}
	a2 := types.AccountMeta{PublicKey: testAccount2, IsSigner: false, IsWritable: true}

	ixOrderOne := ixFixture(testProgramA, []byte{1, 2, 3}, a1, a2)
	ixOrderTwo := ixFixture(testProgramA, []byte{1, 2, 3}, a2, a1)

	if dedupKey(ixOrderOne) != dedupKey(ixOrderTwo) {
		t.Fatalf("expected dedup key to be insensitive to account ordering")
	}
}

func TestDedupKeyDiffersOnProgramOrData(t *testing.T) {
	a1 := types.AccountMeta{PublicKey: testAccount1, IsSigner: true, IsWritable: false}

	base := ixFixture(testProgramA, []byte{1, 2, 3}, a1)
	diffProgram := ixFixture(testProgramB, []byte{1, 2, 3}, a1)
	diffData := ixFixture(testProgramA, []byte{9, 9, 9}, a1)

	if dedupKey(base) == dedupKey(diffProgram) {
		t.Fatalf("expected different program ids to produce different keys")
	}
	if dedupKey(base) == dedupKey(diffData) {
		t.Fatalf("expected different instruction data to produce different keys")
	}
}

func TestDedupInstructionsDropsDuplicatesAcrossLegsPreservingFirstSeenOrder(t *testing.T) {
	a1 := types.AccountMeta{PublicKey: testAccount1, IsSigner: true, IsWritable: false}
	a2 := types.AccountMeta{PublicKey: testAccount2, IsSigner: false, IsWritable: true}

	leg1Setup := []types.Instruction{
		ixFixture(testProgramA, []byte{1}, a1), // shared ATA-create, will repeat in leg2
		ixFixture(testProgramB, []byte{2}, a2),
	}
	leg2Setup := []types.Instruction{
		ixFixture(testProgramA, []byte{1}, a1), // duplicate of leg1's first
		ixFixture(testProgramB, []byte{3}, a2), // distinct
	}

	out := dedupInstructions(leg1Setup, leg2Setup)
	if len(out) != 3 {
		t.Fatalf("expected 3 deduped instructions, got %d", len(out))
	}
	if out[0].ProgramID != testProgramA || out[1].ProgramID != testProgramB {
		t.Fatalf("expected first-seen ordering preserved, got %+v", out)
	}
}

func TestToSolanaInstructionConvertsFieldsFaithfully(t *testing.T) {
	ix := ixFixture(testProgramA, []byte{0xde, 0xad, 0xbe, 0xef},
		types.AccountMeta{PublicKey: testAccount1, IsSigner: true, IsWritable: true},
		types.AccountMeta{PublicKey: testAccount2, IsSigner: false, IsWritable: false},
	)
	si, err := toSolanaInstruction(ix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if si.ProgramID().String() != testProgramA {
		t.Fatalf("expected program id to round-trip, got %s", si.ProgramID())
	}
	accounts := si.Accounts()
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if !accounts[0].IsSigner || !accounts[0].IsWritable {
		t.Fatalf("expected first account signer+writable flags preserved")
	}
	if accounts[1].IsSigner || accounts[1].IsWritable {
		t.Fatalf("expected second account signer+writable flags preserved as false")
	}
	data, err := si.Data()
	if err != nil {
		t.Fatalf("unexpected error reading instruction data: %v", err)
	}
	if len(data) != 4 || data[0] != 0xde {
		t.Fatalf("expected instruction data to round-trip, got %v", data)
	}
}

func TestToSolanaInstructionRejectsBadProgramID(t *testing.T) {
	ix := ixFixture("not-a-valid-base58-pubkey!!", nil)
	if _, err := toSolanaInstruction(ix); err == nil {
		t.Fatalf("expected an error for an invalid program id")
	}
}

func TestToSolanaInstructionRejectsBadAccountKey(t *testing.T) {
	ix := ixFixture(testProgramA, nil, types.AccountMeta{PublicKey: "not-a-valid-base58-pubkey!!"})
	if _, err := toSolanaInstruction(ix); err == nil {
		t.Fatalf("expected an error for an invalid account key")
	}
}

func TestDedupKeyMatchesRealPublicKeys(t *testing.T) {
	// Sanity check that the fixtures above are valid base58 pubkeys the
	// rest of the solana-go stack would also accept.
	if _, err := solana.PublicKeyFromBase58(testAccount1); err != nil {
		t.Fatalf("fixture testAccount1 must be a valid pubkey: %v", err)
	}
	if _, err := solana.PublicKeyFromBase58(testAccount2); err != nil {
		t.Fatalf("fixture testAccount2 must be a valid pubkey: %v", err)
	}
}
