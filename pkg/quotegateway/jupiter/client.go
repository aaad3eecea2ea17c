// Package jupiter implements the Primary quote gateway: quote-only
// (swap-v1/v6), and Ultra (order/execute) modes (§4.2).
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cosmossdk.io/math"

	"dexarb/pkg/quotegateway"
	"dexarb/pkg/types"
)

// Client implements quotegateway.QuoteOnly over Primary's quote/swap/
// swap-instructions endpoints.
type Client struct {
	QuoteBaseURL string
	APIKey       string
	HTTPClient   *http.Client
	Timeout      time.Duration
}

// New constructs a quote-only client. base may be a bare host or a full
// URL; it is normalized per §4.2, and an API key is mandatory against the
// public api.jup.ag host.
func New(base, apiKey string) (*Client, error) {
	resolved := quotegateway.NormalizeBaseURL(base, "https://quote-api.jup.ag/v6")
	if err := quotegateway.ValidateAPIKey(resolved, apiKey); err != nil {
		return nil, err
	}
	return &Client{
		QuoteBaseURL: resolved,
		APIKey:       apiKey,
		HTTPClient:   http.DefaultClient,
		Timeout:      10 * time.Second,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query map[string]string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	u := c.QuoteBaseURL + path
	if len(query) > 0 {
		var parts []string
		for k, v := range query {
			parts = append(parts, k+"="+v)
		}
		u += "?" + strings.Join(parts, "&")
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("jupiter: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("jupiter: new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("jupiter: request error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("jupiter: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jupiter: HTTP %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("jupiter: unmarshal response: %w", err)
	}
	return nil
}

type quoteResponse struct {
	InAmount             string          `json:"inAmount"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SlippageBps          int             `json:"slippageBps"`
	RoutePlan            json.RawMessage `json:"routePlan"`
}

// QuoteExactIn calls Primary's quote endpoint (§4.2).
func (c *Client) QuoteExactIn(ctx context.Context, p quotegateway.QuoteExactInParams) (types.Quote, error) {
	query := map[string]string{
		"inputMint":   p.InputMint,
		"outputMint":  p.OutputMint,
		"amount":      p.Amount.String(),
		"slippageBps": strconv.Itoa(p.SlippageBps),
	}
	if len(p.Include) > 0 {
		query["dexes"] = strings.Join(p.Include, ",")
	}
	if len(p.Exclude) > 0 {
		query["excludeDexes"] = strings.Join(p.Exclude, ",")
	}

	var resp quoteResponse
	if err := c.doJSON(ctx, http.MethodGet, "/quote", query, nil, &resp); err != nil {
		return types.Quote{}, err
	}

	out, ok := math.NewIntFromString(resp.OutAmount)
	if !ok {
		return types.Quote{}, fmt.Errorf("jupiter: invalid outAmount %q", resp.OutAmount)
	}
	minOut, ok := math.NewIntFromString(resp.OtherAmountThreshold)
	if !ok {
		return types.Quote{}, fmt.Errorf("jupiter: invalid otherAmountThreshold %q", resp.OtherAmountThreshold)
	}

	return types.Quote{
		Provider:    types.ProviderPrimary,
		InputMint:   p.InputMint,
		OutputMint:  p.OutputMint,
		InAmount:    p.Amount,
		OutAmount:   out,
		MinOut:      minOut,
		SlippageBps: p.SlippageBps,
		Route:       resp.RoutePlan,
	}, nil
}

type swapTxResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// BuildSwapTransaction calls Primary's swap endpoint for a single prebuilt
// versioned transaction (§4.2).
func (c *Client) BuildSwapTransaction(ctx context.Context, q types.Quote, userPk string, cuPrice uint64) (types.BuiltSwapTransaction, error) {
	body := map[string]any{
		"quoteResponse": q.Route,
		"userPublicKey": userPk,
	}
	if cuPrice > 0 {
		body["computeUnitPriceMicroLamports"] = cuPrice
	}
	var resp swapTxResponse
	if err := c.doJSON(ctx, http.MethodPost, "/swap", nil, body, &resp); err != nil {
		return types.BuiltSwapTransaction{}, err
	}
	if _, err := base64.StdEncoding.DecodeString(resp.SwapTransaction); err != nil {
		return types.BuiltSwapTransaction{}, fmt.Errorf("jupiter: invalid swapTransaction encoding: %w", err)
	}
	return types.BuiltSwapTransaction{
		TxBase64:             resp.SwapTransaction,
		LastValidBlockHeight: resp.LastValidBlockHeight,
	}, nil
}

type instructionJSON struct {
	ProgramID string `json:"programId"`
	Accounts  []struct {
		Pubkey     string `json:"pubkey"`
		IsSigner   bool   `json:"isSigner"`
		IsWritable bool   `json:"isWritable"`
	} `json:"accounts"`
	Data string `json:"data"`
}

type swapInstructionsResponse struct {
	ComputeBudgetInstructions      []instructionJSON `json:"computeBudgetInstructions"`
	SetupInstructions              []instructionJSON `json:"setupInstructions"`
	OtherInstructions              []instructionJSON `json:"otherInstructions"`
	SwapInstruction                instructionJSON   `json:"swapInstruction"`
	CleanupInstruction              *instructionJSON  `json:"cleanupInstruction"`
	AddressLookupTableAddresses     []string          `json:"addressLookupTableAddresses"`
}

func convertInstruction(j instructionJSON) (types.Instruction, error) {
	data, err := base64.StdEncoding.DecodeString(j.Data)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("jupiter: invalid instruction data: %w", err)
	}
	accounts := make([]types.AccountMeta, len(j.Accounts))
	for i, a := range j.Accounts {
		accounts[i] = types.AccountMeta{PublicKey: a.Pubkey, IsSigner: a.IsSigner, IsWritable: a.IsWritable}
	}
	return types.Instruction{ProgramID: j.ProgramID, Accounts: accounts, Data: data}, nil
}

// BuildSwapInstructions calls Primary's swap-instructions endpoint,
// returning the decomposed instruction bundle the atomic builder merges
// (§3, §4.2, §4.7).
func (c *Client) BuildSwapInstructions(ctx context.Context, q types.Quote, userPk string, cuPrice uint64) (types.SwapInstructions, error) {
	body := map[string]any{
		"quoteResponse": q.Route,
		"userPublicKey": userPk,
	}
	if cuPrice > 0 {
		body["computeUnitPriceMicroLamports"] = cuPrice
	}
	var resp swapInstructionsResponse
	if err := c.doJSON(ctx, http.MethodPost, "/swap-instructions", nil, body, &resp); err != nil {
		return types.SwapInstructions{}, err
	}

	var out types.SwapInstructions
	for _, j := range resp.ComputeBudgetInstructions {
		ins, err := convertInstruction(j)
		if err != nil {
			return types.SwapInstructions{}, err
		}
		out.ComputeBudget = append(out.ComputeBudget, ins)
	}
	for _, j := range resp.SetupInstructions {
		ins, err := convertInstruction(j)
		if err != nil {
			return types.SwapInstructions{}, err
		}
		out.Setup = append(out.Setup, ins)
	}
	for _, j := range resp.OtherInstructions {
		ins, err := convertInstruction(j)
		if err != nil {
			return types.SwapInstructions{}, err
		}
		out.Other = append(out.Other, ins)
	}
	swapIns, err := convertInstruction(resp.SwapInstruction)
	if err != nil {
		return types.SwapInstructions{}, err
	}
	out.Swap = swapIns
	if resp.CleanupInstruction != nil {
		cleanupIns, err := convertInstruction(*resp.CleanupInstruction)
		if err != nil {
			return types.SwapInstructions{}, err
		}
		out.Cleanup = append(out.Cleanup, cleanupIns)
	}
	out.LookupTableAddresses = resp.AddressLookupTableAddresses
	return out, nil
}
