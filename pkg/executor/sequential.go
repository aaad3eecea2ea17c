package executor

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"dexarb/pkg/eventlog"
	"dexarb/pkg/quotegateway"
	"dexarb/pkg/types"
)

// signAndSend decodes a provider-built unsigned transaction, signs it with
// the wallet, and sends+confirms it (§4.7 "Sequential send").
func (x *Executor) signAndSend(ctx context.Context, txBase64 string, lastValidBlockHeight uint64) (solana.Signature, error) {
	tx, err := solana.TransactionFromBase64(txBase64)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("executor: decode transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if x.wallet.PublicKey().Equals(key) {
			return &x.wallet
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("executor: sign transaction: %w", err)
	}

	if err := x.preflight(ctx, tx); err != nil {
		return solana.Signature{}, err
	}
	if x.cfg.Mode != ModeLive {
		sig, err := feePayerSignature(tx)
		if err != nil {
			return solana.Signature{}, err
		}
		return sig, nil
	}
	return x.sol.SendAndConfirm(ctx, tx, lastValidBlockHeight, x.cfg.MaxRetries)
}

// executeSequential builds, signs, sends, and confirms one leg at a time
// against Primary, stopping at the first failed leg (§4.7 "Sequential
// send").
func (x *Executor) executeSequential(ctx context.Context, pair *types.Pair, cand *types.Candidate, primary quotegateway.QuoteOnly) (Result, error) {
	userPk := x.wallet.PublicKey().String()
	sigs := make([]solana.Signature, 0, len(cand.Quotes))

	for i, q := range cand.Quotes {
		built, err := primary.BuildSwapTransaction(ctx, q, userPk, x.cfg.ComputeUnitPrice)
		if err != nil {
			x.emit(eventlog.TypeError, eventlog.Fields{"pair": pair.Name, "leg": i, "error": err.Error()})
			return Result{Outcome: "error", Reason: err.Error(), Signatures: sigs}, err
		}

		sig, err := x.signAndSend(ctx, built.TxBase64, built.LastValidBlockHeight)
		if err != nil {
			x.emit(eventlog.TypeConfirmError, eventlog.Fields{"pair": pair.Name, "leg": i, "error": err.Error()})
			return Result{Outcome: "error", Reason: err.Error(), Signatures: sigs}, err
		}
		sigs = append(sigs, sig)
		x.emit(eventlog.TypeExecuted, eventlog.Fields{"pair": pair.Name, "leg": i, "signature": sig.String()})
	}

	if x.cfg.Mode != ModeLive {
		return Result{Outcome: "skip", Reason: "dry-run", Signatures: sigs}, nil
	}
	return Result{Outcome: "fired", Signatures: sigs}, nil
}
