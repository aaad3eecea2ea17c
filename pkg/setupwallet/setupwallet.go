// Package setupwallet implements the --setup-wallet bootstrap: idempotent
// associated-token-account creation for every mint referenced by the
// configured pairs, so a fresh wallet never fails a swap on a missing ATA
// mid-arbitrage (§6 "--setup-wallet").
package setupwallet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"go.uber.org/zap"

	"dexarb/pkg/sol"
	"dexarb/pkg/types"
)

// Result reports which ATAs already existed and which were created.
type Result struct {
	Existing []solana.PublicKey
	Created  []solana.PublicKey
	Signature solana.Signature
}

// mints collects the distinct set of non-native mints referenced by pairs,
// since SOL itself never has an associated token account.
func mints(pairs []types.Pair) []solana.PublicKey {
	seen := make(map[solana.PublicKey]struct{})
	var out []solana.PublicKey
	add := func(pk solana.PublicKey) {
		if pk.IsZero() || pk.Equals(solana.SolMint) {
			return
		}
		if _, ok := seen[pk]; ok {
			return
		}
		seen[pk] = struct{}{}
		out = append(out, pk)
	}
	for _, p := range pairs {
		add(p.MintA)
		add(p.MintB)
		add(p.MintC)
	}
	return out
}

// Run checks every referenced mint's ATA and, in one batched transaction,
// idempotently creates whichever are missing.
func Run(ctx context.Context, client *sol.Client, wallet solana.PrivateKey, pairs []types.Pair, computeUnitPrice uint64, log *zap.SugaredLogger) (Result, error) {
	owner := wallet.PublicKey()
	candidates := mints(pairs)
	if len(candidates) == 0 {
		return Result{}, nil
	}

	atas := make([]solana.PublicKey, len(candidates))
	for i, mint := range candidates {
		ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
		if err != nil {
			return Result{}, fmt.Errorf("setupwallet: derive ata for mint %s: %w", mint, err)
		}
		atas[i] = ata
	}

	var missing []int
	var result Result
	for i, ata := range atas {
		info, err := client.GetAccountInfo(ctx, ata)
		if err != nil || info == nil || info.Value == nil {
			missing = append(missing, i)
			continue
		}
		result.Existing = append(result.Existing, ata)
	}

	if len(missing) == 0 {
		if log != nil {
			log.Infow("setup-wallet: all associated token accounts already exist", "count", len(atas))
		}
		return result, nil
	}

	instrs := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstructionBuilder().SetUnits(uint32(30_000 * len(missing))).Build(),
	}
	if computeUnitPrice > 0 {
		instrs = append(instrs, computebudget.NewSetComputeUnitPriceInstructionBuilder().SetMicroLamports(computeUnitPrice).Build())
	}
	for _, i := range missing {
		instrs = append(instrs, associatedtokenaccount.NewCreateInstruction(owner, owner, candidates[i]).Build())
	}

	blockhash, lastValidBlockHeight, err := client.LatestBlockhash(ctx)
	if err != nil {
		return result, fmt.Errorf("setupwallet: latest blockhash: %w", err)
	}

	builder := solana.NewTransactionBuilder().
		SetFeePayer(owner).
		SetRecentBlockHash(blockhash)
	for _, ix := range instrs {
		builder.AddInstruction(ix)
	}
	tx, err := builder.Build()
	if err != nil {
		return result, fmt.Errorf("setupwallet: build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if owner.Equals(key) {
			return &wallet
		}
		return nil
	}); err != nil {
		return result, fmt.Errorf("setupwallet: sign transaction: %w", err)
	}

	sig, err := client.SendAndConfirm(ctx, tx, lastValidBlockHeight, 3)
	if err != nil {
		return result, fmt.Errorf("setupwallet: send transaction: %w", err)
	}
	result.Signature = sig
	for _, i := range missing {
		result.Created = append(result.Created, atas[i])
	}
	if log != nil {
		log.Infow("setup-wallet: created missing associated token accounts",
			"created", len(result.Created), "existing", len(result.Existing), "signature", sig.String())
	}
	return result, nil
}
