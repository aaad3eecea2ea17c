// Package scheduler orchestrates the process's main loop: it spreads the
// configured pairs across the poll interval, runs each through the Trigger
// Engine under a concurrency cap, hands any fired candidate to the
// Executor, and applies bounded-error exit semantics (§5 "Scheduler",
// grounded on the teacher's StartPeriodicRefresh periodic-tick pattern).
package scheduler

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"dexarb/pkg/executor"
	"dexarb/pkg/eventlog"
	"dexarb/pkg/quotegateway"
	"dexarb/pkg/scanner"
	"dexarb/pkg/trigger"
	"dexarb/pkg/types"
)

// Config bundles the scheduler's tunables (§6 "Scheduler").
type Config struct {
	PollIntervalMs                 int64
	PairConcurrency                int
	MaxErrorsBeforeExit            int
	MaxConsecutiveErrorsBeforeExit int
}

// Scheduler repeatedly runs the trigger engine over every configured pair.
type Scheduler struct {
	cfg Config

	pairs    []types.Pair
	trigger  *trigger.Engine
	execCfg  func(pair *types.Pair) scanner.Deps
	exec     *executor.Executor
	primary  quotegateway.QuoteOnly
	ultra    quotegateway.Ultra
	secondary quotegateway.Secondary

	events *eventlog.Log
	log    *zap.SugaredLogger

	mu               sync.Mutex
	lastRun          map[string]time.Time
	totalErrors      int
	consecutiveErrors int
}

// New constructs a Scheduler. deps builds a pair-scoped scanner.Deps (rate
// governors and breakers are shared across pairs, but FeeConfig/strategy
// may vary per pair via config overrides).
func New(cfg Config, pairs []types.Pair, engine *trigger.Engine, deps func(pair *types.Pair) scanner.Deps, exec *executor.Executor, primary quotegateway.QuoteOnly, ultra quotegateway.Ultra, secondary quotegateway.Secondary, events *eventlog.Log, log *zap.SugaredLogger) *Scheduler {
	if cfg.PairConcurrency < 1 {
		cfg.PairConcurrency = 1
	}
	return &Scheduler{
		cfg: cfg, pairs: pairs, trigger: engine, execCfg: deps, exec: exec,
		primary: primary, ultra: ultra, secondary: secondary,
		events: events, log: log, lastRun: make(map[string]time.Time),
	}
}

// Run drives the poll loop until ctx is cancelled or the error budget is
// exhausted.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(s.cfg.PollIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := s.tick(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce runs every pair exactly once, honoring --once (§6).
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.tick(ctx)
}

// tick runs every due pair (respecting its configured cooldown) concurrently
// under PairConcurrency.
func (s *Scheduler) tick(ctx context.Context) error {
	sem := make(chan struct{}, s.cfg.PairConcurrency)
	var wg sync.WaitGroup

	for i := range s.pairs {
		pair := &s.pairs[i]
		if !s.due(pair) {
			continue
		}

		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(pair *types.Pair) {
			defer wg.Done()
			defer func() { <-sem }()
			s.runPair(ctx, pair)
		}(pair)
	}
	wg.Wait()

	if s.exceededErrorBudget() {
		return &ErrorBudgetExceeded{Total: s.totalErrors, Consecutive: s.consecutiveErrors}
	}
	return nil
}

func (s *Scheduler) due(pair *types.Pair) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastRun[pair.Name]
	if !ok {
		return true
	}
	return time.Since(last) >= time.Duration(pair.CooldownMs)*time.Millisecond
}

func (s *Scheduler) markRun(pair *types.Pair) {
	s.mu.Lock()
	s.lastRun[pair.Name] = time.Now()
	s.mu.Unlock()
}

func (s *Scheduler) recordOutcome(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.totalErrors++
		s.consecutiveErrors++
	} else {
		s.consecutiveErrors = 0
	}
}

func (s *Scheduler) exceededErrorBudget() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.MaxErrorsBeforeExit > 0 && s.totalErrors >= s.cfg.MaxErrorsBeforeExit {
		return true
	}
	if s.cfg.MaxConsecutiveErrorsBeforeExit > 0 && s.consecutiveErrors >= s.cfg.MaxConsecutiveErrorsBeforeExit {
		return true
	}
	return false
}

// runPair runs the trigger engine for one pair and, if it fires, hands the
// candidate to the Executor.
func (s *Scheduler) runPair(ctx context.Context, pair *types.Pair) {
	s.markRun(pair)
	deps := s.execCfg(pair)

	result, err := s.trigger.Run(ctx, pair, deps)
	if err != nil {
		s.recordOutcome(err)
		if s.log != nil {
			s.log.Warnw("trigger run failed", "pair", pair.Name, "error", err)
		}
		return
	}
	s.recordOutcome(nil)

	if result.Outcome != trigger.OutcomeFired || result.Candidate == nil {
		return
	}

	execResult, err := s.exec.Execute(ctx, pair, result.Candidate, s.primary, s.ultra, s.secondary)
	if err != nil {
		s.recordOutcome(err)
		if s.log != nil {
			s.log.Warnw("execute failed", "pair", pair.Name, "error", err)
		}
	} else {
		s.recordOutcome(nil)
	}
	if s.events != nil {
		s.events.Write(eventlog.TypeTriggerFire, eventlog.Fields{
			"pair": pair.Name, "outcome": execResult.Outcome, "reason": execResult.Reason,
		})
	}
}

// ErrorBudgetExceeded is returned by Run/RunOnce when the configured error
// limits are exceeded, signaling the caller (cmd/arbengine) to exit
// non-zero.
type ErrorBudgetExceeded struct {
	Total       int
	Consecutive int
}

func (e *ErrorBudgetExceeded) Error() string {
	return "scheduler: error budget exceeded (total=" + strconv.Itoa(e.Total) + ", consecutive=" + strconv.Itoa(e.Consecutive) + ")"
}
