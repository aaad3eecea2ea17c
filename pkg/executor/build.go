package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"

	"dexarb/pkg/quotegateway"
	"dexarb/pkg/types"
)

// dedupKey is (programId, base64(data), sorted(accountKey:isSigner:isWritable))
// per §4.7 steps 4 and 6.
func dedupKey(ix types.Instruction) string {
	parts := make([]string, len(ix.Accounts))
	for i, a := range ix.Accounts {
		parts[i] = fmt.Sprintf("%s:%t:%t", a.PublicKey, a.IsSigner, a.IsWritable)
	}
	sort.Strings(parts)
	return ix.ProgramID + "|" + base64.StdEncoding.EncodeToString(ix.Data) + "|" + strings.Join(parts, ",")
}

func dedupInstructions(groups ...[]types.Instruction) []types.Instruction {
	seen := make(map[string]struct{})
	var out []types.Instruction
	for _, g := range groups {
		for _, ix := range g {
			k := dedupKey(ix)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, ix)
		}
	}
	return out
}

func toSolanaInstruction(ix types.Instruction) (solana.Instruction, error) {
	programID, err := solana.PublicKeyFromBase58(ix.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("executor: bad program id %q: %w", ix.ProgramID, err)
	}
	metas := make(solana.AccountMetaSlice, 0, len(ix.Accounts))
	for _, a := range ix.Accounts {
		pk, err := solana.PublicKeyFromBase58(a.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("executor: bad account key %q: %w", a.PublicKey, err)
		}
		metas = append(metas, solana.NewAccountMeta(pk, a.IsWritable, a.IsSigner))
	}
	return solana.NewInstruction(programID, metas, ix.Data), nil
}

// fetchLegInstructions concurrently fetches buildSwapInstructions for every
// leg (§4.7 step 1).
func (x *Executor) fetchLegInstructions(ctx context.Context, primary quotegateway.QuoteOnly, quotes []types.Quote) ([]types.SwapInstructions, error) {
	out := make([]types.SwapInstructions, len(quotes))
	errs := make([]error, len(quotes))
	var wg sync.WaitGroup
	userPk := x.wallet.PublicKey().String()
	for i, q := range quotes {
		wg.Add(1)
		go func(i int, q types.Quote) {
			defer wg.Done()
			si, err := primary.BuildSwapInstructions(ctx, q, userPk, x.cfg.ComputeUnitPrice)
			out[i] = si
			errs[i] = err
		}(i, q)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("executor: build swap instructions: %w", err)
		}
	}
	return out, nil
}

// buildAtomic implements §4.7's atomic build, steps 1-8. includeTip controls
// whether the tip transfer (step 7) is appended; the bundle-fallback path
// rebuilds without it.
func (x *Executor) buildAtomic(ctx context.Context, cand *types.Candidate, primary quotegateway.QuoteOnly, includeTip bool) (*solana.Transaction, uint64, error) {
	legs, err := x.fetchLegInstructions(ctx, primary, cand.Quotes)
	if err != nil {
		return nil, 0, err
	}

	var setup, cleanup []types.Instruction
	var swap []types.Instruction
	var other []types.Instruction
	var tables []solana.PublicKey
	seenTable := make(map[solana.PublicKey]struct{})

	for i, leg := range legs {
		if i == 0 {
			other = leg.Other
		}
		setup = append(setup, leg.Setup...)
		cleanup = append(cleanup, leg.Cleanup...)
		swap = append(swap, leg.Swap)
		for _, t := range leg.LookupTableAddresses {
			pk, err := solana.PublicKeyFromBase58(t)
			if err != nil {
				continue
			}
			if _, ok := seenTable[pk]; ok {
				continue
			}
			seenTable[pk] = struct{}{}
			tables = append(tables, pk)
		}
	}
	setup = dedupInstructions(setup)
	cleanup = dedupInstructions(cleanup)

	var ordered []types.Instruction
	ordered = append(ordered, other...)
	ordered = append(ordered, setup...)
	ordered = append(ordered, swap...)
	ordered = append(ordered, cleanup...)

	instrs := make([]solana.Instruction, 0, len(ordered)+3)
	instrs = append(instrs, computebudget.NewSetComputeUnitLimitInstructionBuilder().SetUnits(x.cfg.ComputeUnitLimit).Build())
	if x.cfg.ComputeUnitPrice > 0 {
		instrs = append(instrs, computebudget.NewSetComputeUnitPriceInstructionBuilder().SetMicroLamports(x.cfg.ComputeUnitPrice).Build())
	}
	for _, ix := range ordered {
		si, err := toSolanaInstruction(ix)
		if err != nil {
			return nil, 0, err
		}
		instrs = append(instrs, si)
	}

	if includeTip && cand.TipLamports.IsPositive() {
		tipAccount := resolveTipAccount(x.cfg.TipAccount)
		tipIx := system.NewTransferInstruction(cand.TipLamports.Uint64(), x.wallet.PublicKey(), tipAccount).Build()
		instrs = append(instrs, tipIx)
	}

	blockhash, lastValidBlockHeight, err := x.sol.LatestBlockhash(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("executor: latest blockhash: %w", err)
	}

	addressTables := make(map[solana.PublicKey]solana.PublicKeySlice)
	if len(tables) > 0 {
		addressTables = x.lookups.ResolveTables(ctx, tables)
	}

	builder := solana.NewTransactionBuilder().
		SetFeePayer(x.wallet.PublicKey()).
		SetRecentBlockHash(blockhash)
	for _, ix := range instrs {
		builder.AddInstruction(ix)
	}
	tx, err := builder.WithOpt(solana.TransactionAddressTables(addressTables)).Build()
	if err != nil {
		return nil, 0, fmt.Errorf("executor: build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if x.wallet.PublicKey().Equals(key) {
			return &x.wallet
		}
		return nil
	}); err != nil {
		return nil, 0, fmt.Errorf("executor: sign transaction: %w", err)
	}

	return tx, lastValidBlockHeight, nil
}
