package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	jitorpc "github.com/jito-labs/jito-go-rpc"
)

// JitoBundler is the BundleSubmitter backed by Jito's Block Engine JSON-RPC
// API, wiring the teacher's own `jito-labs/jito-go-rpc` dependency — listed
// in its go.mod but never actually called by its dead rpc_pool.go — into
// the atomic-build bundle path (§4.7 "Bundle path").
type JitoBundler struct {
	client *jitorpc.JitoJsonRpcClient
}

// NewJitoBundler constructs a bundler against one block-engine URL.
func NewJitoBundler(blockEngineURL string) *JitoBundler {
	return &JitoBundler{client: jitorpc.NewJitoJsonRpcClient(blockEngineURL, "")}
}

// SendBundle submits one or more signed, base64-encoded transactions as a
// single bundle and returns Jito's assigned bundle id.
func (b *JitoBundler) SendBundle(ctx context.Context, signedTxsBase64 []string) (string, error) {
	params := [][]string{signedTxsBase64}
	resp, err := b.client.SendBundle(params)
	if err != nil {
		return "", fmt.Errorf("jito: send bundle: %w", err)
	}
	var id string
	if err := json.Unmarshal(resp, &id); err != nil || id == "" {
		return "", fmt.Errorf("jito: send bundle: unexpected result %s", resp)
	}
	return id, nil
}

// WaitForBundleResult polls getBundleStatuses until the bundle lands,
// fails, or timeout elapses.
func (b *JitoBundler) WaitForBundleResult(ctx context.Context, bundleID string, timeout time.Duration) (BundleStatus, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(400 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return BundleTimedOut, ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return BundleTimedOut, nil
		}

		status, err := b.client.GetBundleStatuses([]string{bundleID})
		if err != nil {
			continue
		}
		s := extractBundleStatus(status)
		switch s {
		case "landed", "confirmed", "finalized":
			return BundleLanded, nil
		case "rejected", "failed":
			return BundleRejected, nil
		case "dropped":
			return BundleDropped, nil
		}
	}
}

// extractBundleStatus pulls the first bundle's status string out of Jito's
// getBundleStatuses response, defensively handling the untyped JSON-RPC
// result shape.
func extractBundleStatus(resp *jitorpc.BundleStatusResponse) string {
	if resp == nil || len(resp.Value) == 0 {
		return ""
	}
	return resp.Value[0].ConfirmationStatus
}
