// Package openocean implements the Secondary quote gateway over OpenOcean's
// meta-aggregator quote/swap endpoints (§4.2).
package openocean

import (
	"context"
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

const defaultBaseURL = "https://open-api.openocean.finance/v4/solana"

// Client implements quotegateway.Secondary.
type Client struct {
	BaseURL      string
	Referrer     string
	ReferrerFeeBps int
	EnabledDexIDs  []string
	DisabledDexIDs []string
	SigEstimate    math.Int // provider-declared sigs/tx, default 3

	HTTPClient *http.Client
	Timeout    time.Duration
}

// New constructs a Secondary client. base accepts optional trailing
// slashes; query/fragment are stripped; invalid URLs fall back to the
// documented default (§4.2).
func New(base string) *Client {
	resolved := quotegateway.NormalizeBaseURL(base, defaultBaseURL)
	return &Client{
		BaseURL:    resolved,
		SigEstimate: math.NewInt(3),
		HTTPClient: http.DefaultClient,
		Timeout:    10 * time.Second,
	}
}

func (c *Client) SigsPerTx() math.Int { return c.SigEstimate }

func (c *Client) get(ctx context.Context, path string, query map[string]string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	u := c.BaseURL + path
	if len(query) > 0 {
		var parts []string
		for k, v := range query {
			parts = append(parts, k+"="+v)
		}
		u += "?" + strings.Join(parts, "&")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("openocean: new request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("openocean: request error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("openocean: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openocean: HTTP %d: %s", resp.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("openocean: unmarshal response: %w", err)
	}
	return nil
}

type quoteData struct {
	InAmount             string `json:"inAmount"`
	OutAmount            string `json:"outAmount"`
	MinOutAmount         string `json:"minOutAmount"`
	DexID                string `json:"dexId"`
}

type quoteResponse struct {
	Code int       `json:"code"`
	Data quoteData `json:"data"`
}

// QuoteExactIn calls OpenOcean's quote endpoint (§4.2).
func (c *Client) QuoteExactIn(ctx context.Context, p quotegateway.QuoteExactInParams) (types.Quote, error) {
	query := map[string]string{
		"inTokenAddress":  p.InputMint,
		"outTokenAddress": p.OutputMint,
		"amount":          p.Amount.String(),
		"slippage":        strconv.Itoa(p.SlippageBps),
	}
	if len(c.EnabledDexIDs) > 0 {
		query["enabledDexIds"] = strings.Join(c.EnabledDexIDs, ",")
	}
	if len(c.DisabledDexIDs) > 0 {
		query["disabledDexIds"] = strings.Join(c.DisabledDexIDs, ",")
	}

	var resp quoteResponse
	if err := c.get(ctx, "/swap_quote", query, &resp); err != nil {
		return types.Quote{}, err
	}

	out, ok := math.NewIntFromString(resp.Data.OutAmount)
	if !ok {
		return types.Quote{}, fmt.Errorf("openocean: invalid outAmount %q", resp.Data.OutAmount)
	}
	minOut, ok := math.NewIntFromString(resp.Data.MinOutAmount)
	if !ok {
		return types.Quote{}, fmt.Errorf("openocean: invalid minOutAmount %q", resp.Data.MinOutAmount)
	}

	return types.Quote{
		Provider:    types.ProviderSecondary,
		InputMint:   p.InputMint,
		OutputMint:  p.OutputMint,
		InAmount:    p.Amount,
		OutAmount:   out,
		MinOut:      minOut,
		SlippageBps: p.SlippageBps,
		VenueID:     resp.Data.DexID,
	}, nil
}

type swapData struct {
	Data                 string `json:"data"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type swapResponse struct {
	Code int      `json:"code"`
	Data swapData `json:"data"`
}

// Swap calls OpenOcean's swap endpoint, returning an unsigned transaction
// encoded as either base64 or hex (§4.2).
func (c *Client) Swap(ctx context.Context, p quotegateway.QuoteExactInParams, account string) (types.SecondarySwap, error) {
	query := map[string]string{
		"inTokenAddress":  p.InputMint,
		"outTokenAddress": p.OutputMint,
		"amount":          p.Amount.String(),
		"slippage":        strconv.Itoa(p.SlippageBps),
		"account":         account,
	}
	if c.Referrer != "" {
		query["referrer"] = c.Referrer
		query["referrerFee"] = strconv.Itoa(c.ReferrerFeeBps)
	}

	var resp swapResponse
	if err := c.get(ctx, "/swap", query, &resp); err != nil {
		return types.SecondarySwap{}, err
	}

	out := types.SecondarySwap{LastValidBlockHeight: resp.Data.LastValidBlockHeight}
	if looksHex(resp.Data.Data) {
		out.DataHex = resp.Data.Data
	} else {
		out.DataBase64 = resp.Data.Data
	}
	return out, nil
}

func looksHex(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}
