// Package sol wraps the Solana JSON-RPC client for the operations the
// executor and scheduler need: blockhash, balance, simulate, send, and
// lookup-table resolution (§4.7, §5).
package sol

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	addresslookuptable "github.com/gagliardetto/solana-go/programs/address-lookup-table"
	"github.com/gagliardetto/solana-go/rpc"
)

// Client wraps one RPC endpoint's connection.
type Client struct {
	endpoint   string
	rpcClient  *rpc.Client
	commitment rpc.CommitmentType
}

// NewClient constructs a Client against a single RPC endpoint, defaulting
// the commitment to confirmed. Calls made through the Client are not
// rate-limited.
func NewClient(ctx context.Context, endpoint string, commitment rpc.CommitmentType) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("sol: empty RPC endpoint")
	}
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &Client{
		endpoint:   endpoint,
		rpcClient:  rpc.New(endpoint),
		commitment: commitment,
	}, nil
}

func (c *Client) Endpoint() string { return c.endpoint }

// LatestBlockhash fetches the current blockhash at the client's commitment
// level, used once per transaction build (§5).
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	resp, err := c.rpcClient.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, 0, fmt.Errorf("sol: get latest blockhash: %w", err)
	}
	return resp.Value.Blockhash, resp.Value.LastValidBlockHeight, nil
}

// NativeBalance fetches the wallet's lamport balance, used for the
// min-balance precondition (§4.7).
func (c *Client) NativeBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	resp, err := c.rpcClient.GetBalance(ctx, owner, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("sol: get balance: %w", err)
	}
	return resp.Value, nil
}

// Simulate runs a dry simulation of a fully signed transaction at
// "processed" commitment (§4.7 preflight).
func (c *Client) Simulate(ctx context.Context, tx *solana.Transaction) (*rpc.SimulateTransactionResponse, error) {
	resp, err := c.rpcClient.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:  false,
		Commitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return nil, fmt.Errorf("sol: simulate transaction: %w", err)
	}
	return resp, nil
}

// SendAndConfirm submits a signed transaction and polls for confirmation up
// to the transaction's last-valid-block-height, bounded by maxRetries at the
// RPC layer (§4.7 sequential send).
func (c *Client) SendAndConfirm(ctx context.Context, tx *solana.Transaction, lastValidBlockHeight uint64, maxRetries uint) (solana.Signature, error) {
	opts := rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: c.commitment,
		MaxRetries:          &maxRetries,
	}
	sig, err := c.rpcClient.SendTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sol: send transaction: %w", err)
	}
	if err := c.confirmSignature(ctx, sig, lastValidBlockHeight); err != nil {
		return sig, err
	}
	return sig, nil
}

// Confirm polls for a signature already submitted elsewhere (e.g. inside a
// Jito bundle), used by the executor's bundle-confirmation path (§4.7).
func (c *Client) Confirm(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error {
	return c.confirmSignature(ctx, sig, lastValidBlockHeight)
}

// confirmSignature polls getSignatureStatuses until the signature is
// confirmed, errors, or the last-valid-block-height is exceeded.
func (c *Client) confirmSignature(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("sol: confirm signature %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}

		statuses, err := c.rpcClient.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			continue
		}
		if len(statuses.Value) == 0 || statuses.Value[0] == nil {
			height, hErr := c.rpcClient.GetBlockHeight(ctx, c.commitment)
			if hErr == nil && lastValidBlockHeight > 0 && height > lastValidBlockHeight {
				return fmt.Errorf("sol: signature %s expired before confirmation", sig)
			}
			continue
		}
		st := statuses.Value[0]
		if st.Err != nil {
			return fmt.Errorf("sol: transaction %s failed: %v", sig, st.Err)
		}
		if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed || st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
			return nil
		}
	}
}

// GetAddressLookupTable fetches and decodes one lookup-table account,
// adapted for pkg/quotegateway/lookuptable.Resolver (§4.2, §4.7).
func (c *Client) GetAddressLookupTable(ctx context.Context, table solana.PublicKey) (solana.PublicKeySlice, error) {
	info, err := c.rpcClient.GetAccountInfo(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("sol: get lookup table account %s: %w", table, err)
	}
	if info == nil || info.Value == nil {
		return nil, fmt.Errorf("sol: lookup table %s not found", table)
	}
	state, err := addresslookuptable.DecodeAddressLookupTableState(info.Value.Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("sol: decode lookup table %s: %w", table, err)
	}
	return state.Addresses, nil
}

// GetAccountInfo exposes the raw RPC accessor for callers (e.g. setup-wallet
// ATA existence checks) that need more than balance/blockhash.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	return c.rpcClient.GetAccountInfo(ctx, pubkey)
}

// RPC exposes the underlying client for call sites that need an operation
// not wrapped above.
func (c *Client) RPC() *rpc.Client { return c.rpcClient }
