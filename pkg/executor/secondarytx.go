package executor

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"dexarb/pkg/eventlog"
	"dexarb/pkg/quotegateway"
	"dexarb/pkg/types"
)

// executeSecondarySequential runs OpenOcean's two-leg sequential swap: leg1
// swaps A->B, leg2 swaps leg1's min-out B->A (§4.7 "Secondary (OpenOcean)
// sequential"). In dry-run, both legs are still built and signed; leg2's
// preflight simulation is expected to fail since leg1 never actually landed
// and the wallet never received B, so that failure is surfaced as a note
// rather than treated as an error (§4.7, spec.md:257).
func (x *Executor) executeSecondarySequential(ctx context.Context, pair *types.Pair, cand *types.Candidate, secondary quotegateway.Secondary) (Result, error) {
	if len(cand.Quotes) != 2 {
		return Result{Outcome: "error", Reason: "secondary requires exactly two legs"}, fmt.Errorf("executor: secondary candidate has %d legs", len(cand.Quotes))
	}
	account := x.wallet.PublicKey().String()
	sigs := make([]solana.Signature, 0, 2)

	leg1 := cand.Quotes[0]
	leg1Swap, err := secondary.Swap(ctx, quotegateway.QuoteExactInParams{
		InputMint:   leg1.InputMint,
		OutputMint:  leg1.OutputMint,
		Amount:      leg1.InAmount,
		SlippageBps: leg1.SlippageBps,
	}, account)
	if err != nil {
		x.emit(eventlog.TypeError, eventlog.Fields{"pair": pair.Name, "leg": 0, "error": err.Error()})
		return Result{Outcome: "error", Reason: err.Error()}, err
	}

	sig1, err := x.signAndSendSecondary(ctx, leg1Swap)
	if err != nil {
		x.emit(eventlog.TypeConfirmError, eventlog.Fields{"pair": pair.Name, "leg": 0, "error": err.Error()})
		return Result{Outcome: "error", Reason: err.Error(), Signatures: sigs}, err
	}
	sigs = append(sigs, sig1)
	x.emit(eventlog.TypeExecuted, eventlog.Fields{"pair": pair.Name, "leg": 0, "signature": sig1.String()})

	leg2 := cand.Quotes[1]
	leg2Swap, err := secondary.Swap(ctx, quotegateway.QuoteExactInParams{
		InputMint:   leg2.InputMint,
		OutputMint:  leg2.OutputMint,
		Amount:      leg1.MinOut,
		SlippageBps: leg2.SlippageBps,
	}, account)
	if err != nil {
		x.emit(eventlog.TypeError, eventlog.Fields{"pair": pair.Name, "leg": 1, "error": err.Error()})
		return Result{Outcome: "error", Reason: err.Error(), Signatures: sigs}, err
	}

	leg2Tx, err := decodeAndSignSecondary(x, leg2Swap)
	if err != nil {
		x.emit(eventlog.TypeError, eventlog.Fields{"pair": pair.Name, "leg": 1, "error": err.Error()})
		return Result{Outcome: "error", Reason: err.Error(), Signatures: sigs}, err
	}

	if x.cfg.Mode != ModeLive {
		x.noteSecondaryLeg2DryRunPreflight(ctx, pair, leg2Tx)
		sig2, err := feePayerSignature(leg2Tx)
		if err == nil {
			sigs = append(sigs, sig2)
		}
		return Result{Outcome: "skip", Reason: "dry-run", Signatures: sigs}, nil
	}

	if err := x.preflight(ctx, leg2Tx); err != nil {
		x.emit(eventlog.TypeConfirmError, eventlog.Fields{"pair": pair.Name, "leg": 1, "error": err.Error()})
		return Result{Outcome: "error", Reason: err.Error(), Signatures: sigs}, err
	}
	sig2, err := x.sol.SendAndConfirm(ctx, leg2Tx, leg2Swap.LastValidBlockHeight, x.cfg.MaxRetries)
	if err != nil {
		x.emit(eventlog.TypeConfirmError, eventlog.Fields{"pair": pair.Name, "leg": 1, "error": err.Error()})
		return Result{Outcome: "error", Reason: err.Error(), Signatures: sigs}, err
	}
	sigs = append(sigs, sig2)
	x.emit(eventlog.TypeExecuted, eventlog.Fields{"pair": pair.Name, "leg": 1, "signature": sig2.String()})

	return Result{Outcome: "fired", Signatures: sigs}, nil
}

// noteSecondaryLeg2DryRunPreflight simulates leg2's signed transaction
// unconditionally in dry-run (independent of the LivePreflightSimulate
// flag, which only gates the live send path) and logs a non-fatal note
// when it fails, since that is the expected outcome when leg1 never
// actually landed on chain (spec.md:257).
func (x *Executor) noteSecondaryLeg2DryRunPreflight(ctx context.Context, pair *types.Pair, tx *solana.Transaction) {
	resp, err := x.sol.Simulate(ctx, tx)
	if err != nil {
		x.emit(eventlog.TypePreflight, eventlog.Fields{
			"pair": pair.Name, "leg": 1, "ok": false,
			"note": "expected dry-run leg2 preflight failure: intermediate balance not held on-chain",
			"error": err.Error(),
		})
		return
	}
	if resp.Value.Err != nil {
		x.emit(eventlog.TypePreflight, eventlog.Fields{
			"pair": pair.Name, "leg": 1, "ok": false,
			"note": "expected dry-run leg2 preflight failure: intermediate balance not held on-chain",
			"error": fmt.Sprintf("%v", resp.Value.Err),
		})
		return
	}
	x.emit(eventlog.TypePreflight, eventlog.Fields{"pair": pair.Name, "leg": 1, "ok": true})
}

// decodeAndSignSecondary decodes OpenOcean's swap payload (base64 or hex)
// and signs it, without simulating or sending.
func decodeAndSignSecondary(x *Executor, swap types.SecondarySwap) (*solana.Transaction, error) {
	var tx *solana.Transaction
	var err error
	switch {
	case swap.DataBase64 != "":
		tx, err = solana.TransactionFromBase64(swap.DataBase64)
	case swap.DataHex != "":
		tx, err = transactionFromHex(swap.DataHex)
	default:
		return nil, fmt.Errorf("executor: secondary swap has no transaction payload")
	}
	if err != nil {
		return nil, fmt.Errorf("executor: decode secondary transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if x.wallet.PublicKey().Equals(key) {
			return &x.wallet
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("executor: sign secondary transaction: %w", err)
	}
	return tx, nil
}

// signAndSendSecondary decodes OpenOcean's swap payload, signs, preflights,
// and sends+confirms it. Used for leg1, which dry-run never attempts to
// simulate past (there is nothing to note: leg1 is the first hop).
func (x *Executor) signAndSendSecondary(ctx context.Context, swap types.SecondarySwap) (solana.Signature, error) {
	tx, err := decodeAndSignSecondary(x, swap)
	if err != nil {
		return solana.Signature{}, err
	}

	if err := x.preflight(ctx, tx); err != nil {
		return solana.Signature{}, err
	}
	if x.cfg.Mode != ModeLive {
		return feePayerSignature(tx)
	}
	return x.sol.SendAndConfirm(ctx, tx, swap.LastValidBlockHeight, x.cfg.MaxRetries)
}
