package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cosmossdk.io/math"

	"dexarb/pkg/quotegateway"
	"dexarb/pkg/types"
)

// UltraClient implements quotegateway.Ultra over Primary's Ultra
// order/execute endpoints (§4.2).
type UltraClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewUltra constructs an Ultra client. base accepts an Ultra URL with or
// without the trailing "/ultra" segment (§4.2).
func NewUltra(base, apiKey string) (*UltraClient, error) {
	resolved := quotegateway.NormalizeUltraBaseURL(base)
	if err := quotegateway.ValidateAPIKey(resolved, apiKey); err != nil {
		return nil, err
	}
	return &UltraClient{
		BaseURL:    resolved,
		APIKey:     apiKey,
		HTTPClient: http.DefaultClient,
		Timeout:    15 * time.Second,
	}, nil
}

type orderResponse struct {
	RequestID    string `json:"requestId"`
	Transaction  string `json:"transaction"`
	OutAmount    string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	SlippageBps  int    `json:"slippageBps"`
}

// Order requests a pre-built, unsigned Ultra order transaction (§4.2).
func (c *UltraClient) Order(ctx context.Context, in, out string, amount math.Int, taker string, excludeDexes []string) (types.UltraOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	query := map[string]string{
		"inputMint":  in,
		"outputMint": out,
		"amount":     amount.String(),
		"taker":      taker,
	}
	if len(excludeDexes) > 0 {
		query["excludeDexes"] = strings.Join(excludeDexes, ",")
	}

	u := c.BaseURL + "/order?" + encodeQuery(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.UltraOrder{}, fmt.Errorf("jupiter ultra: new request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return types.UltraOrder{}, fmt.Errorf("jupiter ultra: request error: %w", err)
	}
	defer resp.Body.Close()

	var decoded orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return types.UltraOrder{}, fmt.Errorf("jupiter ultra: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.UltraOrder{}, fmt.Errorf("jupiter ultra: HTTP %d", resp.StatusCode)
	}

	outAmount, ok := math.NewIntFromString(decoded.OutAmount)
	if !ok {
		return types.UltraOrder{}, fmt.Errorf("jupiter ultra: invalid outAmount %q", decoded.OutAmount)
	}
	minOut, ok := math.NewIntFromString(decoded.OtherAmountThreshold)
	if !ok {
		return types.UltraOrder{}, fmt.Errorf("jupiter ultra: invalid otherAmountThreshold %q", decoded.OtherAmountThreshold)
	}

	return types.UltraOrder{
		Quote: types.Quote{
			Provider:    types.ProviderPrimary,
			InputMint:   in,
			OutputMint:  out,
			InAmount:    amount,
			OutAmount:   outAmount,
			MinOut:      minOut,
			SlippageBps: decoded.SlippageBps,
		},
		RequestID:     decoded.RequestID,
		UnsignedTxB64: decoded.Transaction,
	}, nil
}

type executeResponse struct {
	Status    string `json:"status"`
	Signature string `json:"signature"`
	Error     string `json:"error"`
	Code      int    `json:"code"`
}

// Execute submits a signed Ultra transaction for landing (§4.7).
func (c *UltraClient) Execute(ctx context.Context, signedTxB64, requestID string) (quotegateway.UltraExecResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	body := map[string]string{
		"signedTransaction": signedTxB64,
		"requestId":         requestID,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return quotegateway.UltraExecResult{}, fmt.Errorf("jupiter ultra: marshal execute: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/execute", strings.NewReader(string(b)))
	if err != nil {
		return quotegateway.UltraExecResult{}, fmt.Errorf("jupiter ultra: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return quotegateway.UltraExecResult{}, fmt.Errorf("jupiter ultra: request error: %w", err)
	}
	defer resp.Body.Close()

	var decoded executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return quotegateway.UltraExecResult{}, fmt.Errorf("jupiter ultra: decode execute response: %w", err)
	}

	return quotegateway.UltraExecResult{
		Status:    decoded.Status,
		Signature: decoded.Signature,
		Error:     decoded.Error,
		Code:      decoded.Code,
	}, nil
}

func encodeQuery(q map[string]string) string {
	var parts []string
	for k, v := range q {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, "&")
}
