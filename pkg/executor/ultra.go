package executor

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"dexarb/pkg/eventlog"
	"dexarb/pkg/quotegateway"
	"dexarb/pkg/types"
)

// executeUltra signs and submits both legs' Ultra orders in sequence,
// treating any UltraExecResult.Failed() as a stop (§4.7 "Ultra execution").
// Restrictions (triangular pairs, non-native-aMint pairs) are enforced by
// the caller before this is reached.
func (x *Executor) executeUltra(ctx context.Context, pair *types.Pair, cand *types.Candidate, ultra quotegateway.Ultra) (Result, error) {
	sigs := make([]solana.Signature, 0, len(cand.Quotes))

	for i, q := range cand.Quotes {
		order, err := ultra.Order(ctx, q.InputMint, q.OutputMint, q.InAmount, x.wallet.PublicKey().String(), nil)
		if err != nil {
			x.emit(eventlog.TypeError, eventlog.Fields{"pair": pair.Name, "leg": i, "error": err.Error()})
			return Result{Outcome: "error", Reason: err.Error(), Signatures: sigs}, err
		}

		tx, err := solana.TransactionFromBase64(order.UnsignedTxB64)
		if err != nil {
			return Result{Outcome: "error", Reason: err.Error(), Signatures: sigs}, fmt.Errorf("executor: decode ultra transaction: %w", err)
		}
		if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
			if x.wallet.PublicKey().Equals(key) {
				return &x.wallet
			}
			return nil
		}); err != nil {
			return Result{Outcome: "error", Reason: err.Error(), Signatures: sigs}, fmt.Errorf("executor: sign ultra transaction: %w", err)
		}

		signedB64, err := txBase64(tx)
		if err != nil {
			return Result{Outcome: "error", Reason: err.Error(), Signatures: sigs}, err
		}

		if x.cfg.Mode != ModeLive {
			sig, _ := feePayerSignature(tx)
			sigs = append(sigs, sig)
			continue
		}

		result, err := ultra.Execute(ctx, signedB64, order.RequestID)
		if err != nil {
			x.emit(eventlog.TypeConfirmError, eventlog.Fields{"pair": pair.Name, "leg": i, "error": err.Error()})
			return Result{Outcome: "error", Reason: err.Error(), Signatures: sigs}, err
		}
		if result.Failed() {
			x.emit(eventlog.TypeConfirmError, eventlog.Fields{"pair": pair.Name, "leg": i, "status": result.Status, "error": result.Error})
			return Result{Outcome: "error", Reason: fmt.Sprintf("ultra leg %d failed: %s %s", i, result.Status, result.Error), Signatures: sigs}, nil
		}

		if result.Signature != "" {
			if sig, err := solana.SignatureFromBase58(result.Signature); err == nil {
				sigs = append(sigs, sig)
				if confirmErr := x.sol.Confirm(ctx, sig, 0); confirmErr != nil && x.log != nil {
					x.log.Warnw("ultra leg confirm failed", "pair", pair.Name, "leg", i, "error", confirmErr)
				}
			}
		}
		x.emit(eventlog.TypeExecuted, eventlog.Fields{"pair": pair.Name, "leg": i, "status": result.Status})
	}

	if x.cfg.Mode != ModeLive {
		return Result{Outcome: "skip", Reason: "dry-run", Signatures: sigs}, nil
	}
	return Result{Outcome: "fired", Signatures: sigs}, nil
}
