// Package executor implements the Executor & Builder (C7, §4.7): atomic and
// sequential transaction construction, Ultra order execution, Jito bundle
// submission with RPC fallback, and preflight simulation.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"dexarb/pkg/eventlog"
	"dexarb/pkg/quotegateway"
	"dexarb/pkg/quotegateway/lookuptable"
	"dexarb/pkg/sol"
	"dexarb/pkg/types"
)

// Mode selects dry-run (build/simulate only) or live (actually submit).
type Mode string

const (
	ModeDryRun Mode = "dry-run"
	ModeLive   Mode = "live"
)

// JitoConfig configures bundle submission (§4.7 "Bundle path").
type JitoConfig struct {
	Enabled        bool
	BlockEngineURL string
	WaitMs         int64
	FallbackRPC    bool
}

// Config bundles the Executor's process-wide settings.
type Config struct {
	Mode                  Mode
	ExecutionStrategy     types.ExecutionStrategy
	ExecutionProvider     types.ExecutionProvider
	LivePreflightSimulate bool

	ComputeUnitLimit uint32
	ComputeUnitPrice uint64
	TipAccount       string

	MinBalanceLamports uint64
	BalanceRefreshMs   int64

	MaxRetries uint

	Jito JitoConfig
}

// BundleSubmitter abstracts Jito bundle submission so a missing/placeholder
// implementation can be swapped in when Jito is disabled.
type BundleSubmitter interface {
	SendBundle(ctx context.Context, signedTxsBase64 []string) (bundleID string, err error)
	WaitForBundleResult(ctx context.Context, bundleID string, timeout time.Duration) (BundleStatus, error)
}

// BundleStatus is the outcome of a submitted bundle.
type BundleStatus string

const (
	BundleLanded    BundleStatus = "landed"
	BundleRejected  BundleStatus = "rejected"
	BundleDropped   BundleStatus = "dropped"
	BundleTimedOut  BundleStatus = "timed-out"
)

// Result is one Execute call's outcome.
type Result struct {
	Outcome     string // fired|skip|error
	Reason      string
	Signatures  []solana.Signature
	FallbackRPC bool
}

// Executor dispatches a fired candidate to its build/send path.
type Executor struct {
	cfg     Config
	wallet  solana.PrivateKey
	sol     *sol.Client
	lookups *lookuptable.Cache
	bundle  BundleSubmitter

	events *eventlog.Log
	log    *zap.SugaredLogger

	mu            sync.Mutex
	balanceValue  uint64
	balanceExpiry time.Time
}

func New(cfg Config, wallet solana.PrivateKey, client *sol.Client, lookups *lookuptable.Cache, bundle BundleSubmitter, events *eventlog.Log, log *zap.SugaredLogger) *Executor {
	return &Executor{cfg: cfg, wallet: wallet, sol: client, lookups: lookups, bundle: bundle, events: events, log: log}
}

func (x *Executor) emit(t eventlog.Type, fields eventlog.Fields) {
	if x.events == nil {
		return
	}
	if err := x.events.Write(t, fields); err != nil && x.log != nil {
		x.log.Warnw("eventlog write failed", "error", err)
	}
}

// Execute runs the fired candidate's full preflight-through-confirmation
// path, dispatching on candidate kind and the configured strategy/provider
// (§4.7).
func (x *Executor) Execute(ctx context.Context, pair *types.Pair, cand *types.Candidate, primary quotegateway.QuoteOnly, ultra quotegateway.Ultra, secondary quotegateway.Secondary) (Result, error) {
	if skip, reason := x.checkMinBalance(ctx); skip {
		x.emit(eventlog.TypeSkip, eventlog.Fields{"pair": pair.Name, "reason": reason})
		return Result{Outcome: "skip", Reason: reason}, nil
	}

	if cand.Kind == types.KindLoopSecondary {
		return x.executeSecondarySequential(ctx, pair, cand, secondary)
	}

	if x.cfg.ExecutionStrategy == types.StrategyAtomic {
		if x.cfg.ExecutionProvider == types.ProviderUltra {
			x.emit(eventlog.TypeSkip, eventlog.Fields{"pair": pair.Name, "reason": "ultra-requires-sequential-strategy"})
			return Result{Outcome: "skip", Reason: "ultra-requires-sequential-strategy"}, nil
		}
		return x.executeAtomic(ctx, pair, cand, primary)
	}

	if x.cfg.ExecutionProvider == types.ProviderUltra {
		if pair.IsTriangular() {
			x.emit(eventlog.TypeSkip, eventlog.Fields{"pair": pair.Name, "reason": "ultra-does-not-support-triangular"})
			return Result{Outcome: "skip", Reason: "ultra-does-not-support-triangular"}, nil
		}
		if !pair.IsNativeA() {
			x.emit(eventlog.TypeSkip, eventlog.Fields{"pair": pair.Name, "reason": "ultra-requires-sol-amint"})
			return Result{Outcome: "skip", Reason: "ultra-requires-sol-amint"}, nil
		}
		return x.executeUltra(ctx, pair, cand, ultra)
	}

	return x.executeSequential(ctx, pair, cand, primary)
}

// checkMinBalance applies the live-mode min-balance precondition, caching
// the wallet's native balance for BalanceRefreshMs (§4.7 "Preconditions").
func (x *Executor) checkMinBalance(ctx context.Context) (skip bool, reason string) {
	if x.cfg.Mode != ModeLive || x.cfg.MinBalanceLamports == 0 {
		return false, ""
	}

	x.mu.Lock()
	if time.Now().Before(x.balanceExpiry) {
		bal := x.balanceValue
		x.mu.Unlock()
		if bal < x.cfg.MinBalanceLamports {
			return true, "min-balance"
		}
		return false, ""
	}
	x.mu.Unlock()

	bal, err := x.sol.NativeBalance(ctx, x.wallet.PublicKey())
	if err != nil {
		if x.log != nil {
			x.log.Warnw("balance refresh failed", "error", err)
		}
		return false, ""
	}

	x.mu.Lock()
	x.balanceValue = bal
	x.balanceExpiry = time.Now().Add(time.Duration(x.cfg.BalanceRefreshMs) * time.Millisecond)
	x.mu.Unlock()

	if bal < x.cfg.MinBalanceLamports {
		return true, "min-balance"
	}
	return false, ""
}

// preflight simulates the fully signed tx when mode is live and
// LivePreflightSimulate is set, never sending on a negative result (§4.7).
func (x *Executor) preflight(ctx context.Context, tx *solana.Transaction) error {
	if x.cfg.Mode != ModeLive || !x.cfg.LivePreflightSimulate {
		return nil
	}
	resp, err := x.sol.Simulate(ctx, tx)
	if err != nil {
		return fmt.Errorf("preflight-failed: %w", err)
	}
	if resp.Value.Err != nil {
		return fmt.Errorf("preflight-failed: %v", resp.Value.Err)
	}
	x.emit(eventlog.TypePreflight, eventlog.Fields{"ok": true})
	return nil
}
