package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"dexarb/pkg/eventlog"
	"dexarb/pkg/quotegateway"
	"dexarb/pkg/types"
)

// txBase64 re-serializes a signed transaction for bundle submission.
func txBase64(tx *solana.Transaction) (string, error) {
	data, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("executor: marshal transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// feePayerSignature returns the signed transaction's own signature: the fee
// payer is always the first required signer, so this is signature index 0.
func feePayerSignature(tx *solana.Transaction) (solana.Signature, error) {
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, fmt.Errorf("executor: transaction has no signatures")
	}
	return tx.Signatures[0], nil
}

// executeAtomic builds the single atomic transaction and, in live mode,
// submits it as a 1-tx bundle with RPC fallback when Jito is enabled or sends
// it directly via RPC when it is not. In dry-run it stops after the build and
// returns a dry-run skip (§4.7).
func (x *Executor) executeAtomic(ctx context.Context, pair *types.Pair, cand *types.Candidate, primary quotegateway.QuoteOnly) (Result, error) {
	tx, lastValidBlockHeight, err := x.buildAtomic(ctx, cand, primary, true)
	if err != nil {
		x.emit(eventlog.TypeError, eventlog.Fields{"pair": pair.Name, "error": err.Error()})
		return Result{Outcome: "error", Reason: err.Error()}, err
	}
	x.emit(eventlog.TypeBuilt, eventlog.Fields{"pair": pair.Name, "kind": string(cand.Kind)})

	if err := x.preflight(ctx, tx); err != nil {
		x.emit(eventlog.TypeSkip, eventlog.Fields{"pair": pair.Name, "reason": "preflight-failed"})
		return Result{Outcome: "skip", Reason: "preflight-failed"}, nil
	}

	if x.cfg.Mode != ModeLive {
		return Result{Outcome: "skip", Reason: "dry-run"}, nil
	}

	if x.cfg.Jito.Enabled {
		return x.sendBundle(ctx, pair, cand, primary, tx, lastValidBlockHeight)
	}

	sig, err := x.sol.SendAndConfirm(ctx, tx, lastValidBlockHeight, x.cfg.MaxRetries)
	if err != nil {
		x.emit(eventlog.TypeConfirmError, eventlog.Fields{"pair": pair.Name, "error": err.Error()})
		return Result{Outcome: "error", Reason: err.Error(), Signatures: []solana.Signature{sig}}, err
	}
	x.emit(eventlog.TypeExecuted, eventlog.Fields{"pair": pair.Name, "signature": sig.String()})
	return Result{Outcome: "fired", Signatures: []solana.Signature{sig}}, nil
}

// sendBundle implements §4.7's bundle path: submit the tip-in-tx signed
// transaction and wait for a result up to WaitMs. A send error or a
// rejected/dropped bundle falls back to a tip-free RPC send when configured;
// a wait that times out returns without confirming.
func (x *Executor) sendBundle(ctx context.Context, pair *types.Pair, cand *types.Candidate, primary quotegateway.QuoteOnly, tx *solana.Transaction, lastValidBlockHeight uint64) (Result, error) {
	raw, err := txBase64(tx)
	if err != nil {
		return Result{Outcome: "error", Reason: err.Error()}, err
	}
	sig, sigErr := feePayerSignature(tx)

	bundleID, err := x.bundle.SendBundle(ctx, []string{raw})
	if err != nil {
		x.emit(eventlog.TypeJitoBundle, eventlog.Fields{"pair": pair.Name, "error": err.Error()})
		return x.confirmOrFallback(ctx, pair, cand, primary, sig, lastValidBlockHeight)
	}
	x.emit(eventlog.TypeJitoBundle, eventlog.Fields{"pair": pair.Name, "bundleId": bundleID})

	if x.cfg.Jito.WaitMs <= 0 {
		return Result{Outcome: "fired", Signatures: []solana.Signature{sig}}, sigErr
	}

	status, err := x.bundle.WaitForBundleResult(ctx, bundleID, time.Duration(x.cfg.Jito.WaitMs)*time.Millisecond)
	if err != nil || status == BundleTimedOut {
		return Result{Outcome: "fired", Signatures: []solana.Signature{sig}, Reason: "bundle-wait-timeout"}, nil
	}
	if status == BundleRejected || status == BundleDropped {
		return x.confirmOrFallback(ctx, pair, cand, primary, sig, lastValidBlockHeight)
	}

	if sigErr != nil {
		return Result{Outcome: "error", Reason: sigErr.Error()}, sigErr
	}
	if err := x.sol.Confirm(ctx, sig, lastValidBlockHeight); err != nil {
		x.emit(eventlog.TypeConfirmError, eventlog.Fields{"pair": pair.Name, "error": err.Error()})
		return Result{Outcome: "error", Reason: err.Error(), Signatures: []solana.Signature{sig}}, err
	}
	x.emit(eventlog.TypeExecuted, eventlog.Fields{"pair": pair.Name, "signature": sig.String()})
	return Result{Outcome: "fired", Signatures: []solana.Signature{sig}}, nil
}

// confirmOrFallback handles a bundle that errored, was rejected, or was
// dropped: if fallback is enabled, rebuild without the tip and send via RPC;
// otherwise confirm the original signature as a best effort.
func (x *Executor) confirmOrFallback(ctx context.Context, pair *types.Pair, cand *types.Candidate, primary quotegateway.QuoteOnly, originalSig solana.Signature, lastValidBlockHeight uint64) (Result, error) {
	if x.cfg.Jito.WaitMs > 0 && x.cfg.Jito.FallbackRPC {
		fallbackTx, fallbackLVBH, err := x.buildAtomic(ctx, cand, primary, false)
		if err != nil {
			return Result{Outcome: "error", Reason: err.Error()}, err
		}
		sig, err := x.sol.SendAndConfirm(ctx, fallbackTx, fallbackLVBH, x.cfg.MaxRetries)
		if err != nil {
			x.emit(eventlog.TypeConfirmError, eventlog.Fields{"pair": pair.Name, "error": err.Error(), "fallbackRpc": true})
			return Result{Outcome: "error", Reason: err.Error(), FallbackRPC: true}, err
		}
		x.emit(eventlog.TypeExecuted, eventlog.Fields{"pair": pair.Name, "signature": sig.String(), "fallbackRpc": true})
		return Result{Outcome: "fired", Signatures: []solana.Signature{sig}, FallbackRPC: true}, nil
	}

	if err := x.sol.Confirm(ctx, originalSig, lastValidBlockHeight); err != nil {
		return Result{Outcome: "error", Reason: fmt.Sprintf("bundle-failed: %v", err), Signatures: []solana.Signature{originalSig}}, err
	}
	return Result{Outcome: "fired", Signatures: []solana.Signature{originalSig}}, nil
}
