package decide

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"dexarb/pkg/types"
)

// Decider is the narrow capability the scanner consumes (§9 "Decider
// dispatch"): a single decide call. InProcess and the offloaded Subprocess
// client both satisfy it with identical semantics.
type Decider interface {
	Decide(ctx context.Context, in Inputs) (types.Decision, error)
}

// InProcess is the zero-overhead in-process decider, always available as
// the subprocess client's fallback.
type InProcess struct{}

func (InProcess) Decide(_ context.Context, in Inputs) (types.Decision, error) {
	return Decide(in), nil
}

// request/response mirror the wire schema of original_source/rust/arb_calc:
// a line-oriented JSON-RPC-over-stdio decider. quote1Out/quote1MinOut are
// accepted for schema compatibility but unused by the formula, matching the
// reference implementation exactly.
type request struct {
	AmountIn                 string `json:"amountIn"`
	Quote1Out                string `json:"quote1Out"`
	Quote1MinOut             string `json:"quote1MinOut"`
	Quote2Out                string `json:"quote2Out"`
	Quote2MinOut             string `json:"quote2MinOut"`
	MinProfit                string `json:"minProfit"`
	FeeEstimateInInputUnits  string `json:"feeEstimateInInputUnits"`
}

type response struct {
	Profitable         bool   `json:"profitable"`
	Profit             string `json:"profit"`
	ConservativeProfit string `json:"conservativeProfit"`
}

// Subprocess wraps an offloaded decider process communicating over a
// persistent stdin/stdout pipe, one JSON line per request (§4.4, §9). Any
// failure (spawn, write, read, parse, non-zero exit) falls back to
// InProcess with identical semantics — the caller never sees the failure.
type Subprocess struct {
	path string
	log  *zap.SugaredLogger

	mu      sync.Mutex
	cmd     *exec.Cmd
	in      *bufio.Writer
	out     *bufio.Reader
	fallback InProcess
}

// NewSubprocess constructs a client for the external decider binary at path.
// The process is started lazily on first Decide call.
func NewSubprocess(path string, log *zap.SugaredLogger) *Subprocess {
	return &Subprocess{path: path, log: log}
}

func (s *Subprocess) ensureStarted(ctx context.Context) error {
	if s.cmd != nil && s.cmd.ProcessState == nil {
		return nil
	}
	cmd := exec.CommandContext(ctx, s.path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("decide: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("decide: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("decide: start: %w", err)
	}
	s.cmd = cmd
	s.in = bufio.NewWriter(stdin)
	s.out = bufio.NewReader(stdout)
	return nil
}

// Decide sends one request line and reads one response line. On any error
// it logs a warning and falls back to the in-process computation.
func (s *Subprocess) Decide(ctx context.Context, in Inputs) (types.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.decideLocked(ctx, in)
	if err != nil {
		if s.log != nil {
			s.log.Warnw("external decider failed, falling back to in-process", "err", err)
		}
		return s.fallback.Decide(ctx, in)
	}
	return d, nil
}

func (s *Subprocess) decideLocked(ctx context.Context, in Inputs) (types.Decision, error) {
	if err := s.ensureStarted(ctx); err != nil {
		return types.Decision{}, err
	}

	req := request{
		AmountIn:                in.In.String(),
		Quote1Out:               "0",
		Quote1MinOut:            "0",
		Quote2Out:               in.Out.String(),
		Quote2MinOut:            in.MinOut.String(),
		MinProfit:               in.MinProfitInA.String(),
		FeeEstimateInInputUnits: in.FeeInA.String(),
	}

	line, err := json.Marshal(req)
	if err != nil {
		return types.Decision{}, fmt.Errorf("decide: marshal request: %w", err)
	}
	if _, err := s.in.Write(append(line, '\n')); err != nil {
		return types.Decision{}, fmt.Errorf("decide: write request: %w", err)
	}
	if err := s.in.Flush(); err != nil {
		return types.Decision{}, fmt.Errorf("decide: flush request: %w", err)
	}

	respLine, err := s.out.ReadBytes('\n')
	if err != nil {
		return types.Decision{}, fmt.Errorf("decide: read response: %w", err)
	}

	var resp response
	if err := json.Unmarshal(respLine, &resp); err != nil {
		return types.Decision{}, fmt.Errorf("decide: unmarshal response: %w", err)
	}

	profit, ok := math.NewIntFromString(resp.Profit)
	if !ok {
		return types.Decision{}, fmt.Errorf("decide: invalid profit %q", resp.Profit)
	}
	conservative, ok := math.NewIntFromString(resp.ConservativeProfit)
	if !ok {
		return types.Decision{}, fmt.Errorf("decide: invalid conservativeProfit %q", resp.ConservativeProfit)
	}

	return types.Decision{
		Profit:             profit,
		ConservativeProfit: conservative,
		Profitable:         resp.Profitable,
	}, nil
}

// Close terminates the offloaded process, if running.
func (s *Subprocess) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	return s.cmd.Process.Kill()
}
