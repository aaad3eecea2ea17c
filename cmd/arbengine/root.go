package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexarb/pkg/config"
	"dexarb/pkg/eventlog"
	"dexarb/pkg/executor"
	"dexarb/pkg/fee"
	"dexarb/pkg/health"
	"dexarb/pkg/quotegateway"
	"dexarb/pkg/quotegateway/jupiter"
	"dexarb/pkg/quotegateway/lookuptable"
	"dexarb/pkg/quotegateway/openocean"
	"dexarb/pkg/ratelimit"
	"dexarb/pkg/scanner"
	"dexarb/pkg/scheduler"
	"dexarb/pkg/setupwallet"
	"dexarb/pkg/sol"
	"dexarb/pkg/trigger"
	"dexarb/pkg/types"
	"dexarb/pkg/wallet"
)

var (
	envPath       string
	pairsPath     string
	runOnce       bool
	doSetupWallet bool
)

var rootCmd = &cobra.Command{
	Use:   "arbengine",
	Short: "Solana DEX-aggregator arbitrage engine",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&envPath, "env", ".env", "path to .env file")
	rootCmd.Flags().StringVar(&pairsPath, "pairs", "pairs.json", "path to pairs config file")
	rootCmd.Flags().BoolVar(&runOnce, "once", false, "run a single scheduler tick across every pair and exit")
	rootCmd.Flags().BoolVar(&doSetupWallet, "setup-wallet", false, "idempotently create any missing associated token accounts and exit")
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(envPath)
	if err != nil {
		return fmt.Errorf("arbengine: loading config: %w", err)
	}
	pairs, err := config.LoadPairs(pairsPath)
	if err != nil {
		return fmt.Errorf("arbengine: loading pairs: %w", err)
	}

	log, err := newLogger(cfg.LogVerbose)
	if err != nil {
		return fmt.Errorf("arbengine: building logger: %w", err)
	}
	defer log.Sync()
	sugar := log.Sugar()

	if cfg.UltraAtomicMismatch() {
		sugar.Warnw("ultra execution provider paired with atomic strategy; ultra only sends sequentially, so fired ultra candidates will be skipped at execute time")
	}

	wal, err := wallet.Load(cfg.WalletSecret)
	if err != nil {
		return fmt.Errorf("arbengine: loading wallet: %w", err)
	}

	solClient, err := sol.NewClient(ctx, cfg.RPCURL, rpc.CommitmentType(cfg.Commitment))
	if err != nil {
		return fmt.Errorf("arbengine: building rpc client: %w", err)
	}

	if doSetupWallet {
		result, err := setupwallet.Run(ctx, solClient, wal, pairs, cfg.ComputeUnitPrice, sugar)
		if err != nil {
			return fmt.Errorf("arbengine: setup-wallet: %w", err)
		}
		sugar.Infow("setup-wallet complete", "created", len(result.Created), "existing", len(result.Existing))
		return nil
	}

	events, err := eventlog.Open(eventlog.Options{
		Path:          cfg.EventLog.Path,
		RotateEnabled: cfg.EventLog.RotateEnabled,
		MaxSizeBytes:  cfg.EventLog.MaxSizeBytes,
		MaxFiles:      cfg.EventLog.MaxFiles,
		Verbose:       cfg.LogVerbose,
	})
	if err != nil {
		return fmt.Errorf("arbengine: opening event log: %w", err)
	}
	defer events.Close()
	events.Write(eventlog.TypeStartup, eventlog.Fields{"mode": cfg.Mode, "pairs": len(pairs)})

	primary, err := jupiter.New(cfg.Primary.QuoteBaseURL, cfg.Primary.APIKey)
	if err != nil {
		return fmt.Errorf("arbengine: building primary client: %w", err)
	}
	var ultra quotegateway.Ultra
	if ultraClient, err := jupiter.NewUltra(cfg.Primary.UltraBaseURL, cfg.Primary.APIKey); err == nil {
		ultra = ultraClient
	} else {
		sugar.Warnw("ultra client unavailable", "error", err)
	}

	var secondary quotegateway.Secondary
	if cfg.Secondary.BaseURL != "" {
		oo := openocean.New(cfg.Secondary.BaseURL)
		oo.Referrer = cfg.Secondary.Referrer
		oo.ReferrerFeeBps = cfg.Secondary.ReferrerFeeBps
		oo.EnabledDexIDs = cfg.Secondary.EnabledDexIDs
		oo.DisabledDexIDs = cfg.Secondary.DisabledDexIDs
		if cfg.Secondary.SigsEstimate > 0 {
			oo.SigEstimate = math.NewInt(cfg.Secondary.SigsEstimate)
		}
		secondary = oo
	}

	primaryGov := ratelimit.New(ratelimit.Params{
		BaseRps: cfg.RateLimit.Primary.BaseRps, MinRps: cfg.RateLimit.Primary.MinRps,
		Burst: int(cfg.RateLimit.Primary.Burst), PenaltyMs: cfg.RateLimit.Primary.PenaltyMs,
		RecoveryEveryMs: cfg.RateLimit.Primary.RecoveryEveryMs, RecoveryStepRps: cfg.RateLimit.Primary.RecoveryStepRps,
	})
	secondaryGov := ratelimit.New(ratelimit.Params{
		BaseRps: cfg.RateLimit.Secondary.BaseRps, MinRps: cfg.RateLimit.Secondary.MinRps,
		Burst: int(cfg.RateLimit.Secondary.Burst), PenaltyMs: cfg.RateLimit.Secondary.PenaltyMs,
		RecoveryEveryMs: cfg.RateLimit.Secondary.RecoveryEveryMs, RecoveryStepRps: cfg.RateLimit.Secondary.RecoveryStepRps,
	})
	breaker := ratelimit.NewBreaker()
	retry := ratelimit.RetryParams{
		Base: time.Duration(cfg.RateLimit.Primary.BackoffBaseMs) * time.Millisecond,
		Max:  time.Duration(cfg.RateLimit.Primary.BackoffMaxMs) * time.Millisecond,
	}

	quoteCache := quotegateway.NewQuoteCache(2 * time.Second)
	convertCache := fee.NewConvertCache(func(ctx context.Context, aMint string, slippageBps int) (math.Int, error) {
		q, err := primary.QuoteExactIn(ctx, quotegateway.QuoteExactInParams{
			InputMint: solana.SolMint.String(), OutputMint: aMint,
			Amount: math.NewInt(1_000_000_000), SlippageBps: slippageBps,
		})
		if err != nil {
			return math.Int{}, err
		}
		return q.OutAmount, nil
	})

	lookups := lookuptable.New(10*time.Minute, solClient.GetAddressLookupTable)

	tipParams := fee.TipParams{
		Mode: fee.TipMode(cfg.Jito.TipMode), Fixed: math.NewIntFromUint64(cfg.Jito.TipLamports),
		Bps: cfg.Jito.TipBps, MinTip: math.NewIntFromUint64(cfg.Jito.MinTip), MaxTip: math.NewIntFromUint64(cfg.Jito.MaxTip),
	}

	feeCfg := scanner.FeeConfig{
		BaseFeeLamports: cfg.BaseFeeLamports, RentBufferLamports: cfg.RentBufferLamports,
		ComputeUnitLimit: cfg.ComputeUnitLimit, ComputeUnitPrice: cfg.ComputeUnitPrice, Tip: tipParams,
	}

	secondarySigs := math.NewInt(1)
	if secondary != nil {
		secondarySigs = secondary.SigsPerTx()
	}

	depsFor := func(pair *types.Pair) scanner.Deps {
		return scanner.Deps{
			Primary: primary, Secondary: secondary,
			PrimaryGov: primaryGov, SecondaryGov: secondaryGov, Breaker: breaker, Retry: retry,
			PrimaryCooldown429: cfg.RateLimit.Primary.Cooldown429Ms, SecondaryCooldown429: cfg.RateLimit.Secondary.Cooldown429Ms,
			QuoteCache: quoteCache, ConvertCache: convertCache,
			Fee:             feeCfg,
			Strategy:        types.ExecutionStrategy(cfg.ExecutionStrategy),
			EnableSecondary: secondary != nil,
			GateBps:         cfg.Secondary.GateBps, NearGateBps: cfg.Secondary.NearGateBps,
			SecondarySigs: secondarySigs,
			Log:           sugar,
			Events:        events,
		}
	}

	engine := trigger.NewEngine(trigger.Settings{
		Strategy: trigger.Strategy(cfg.Trigger.Strategy),
		ObserveMs: cfg.Trigger.ObserveMs, ObserveIntervalMs: cfg.Trigger.ObserveIntervalMs,
		ExecuteMs: cfg.Trigger.ExecuteMs, ExecuteIntervalMs: cfg.Trigger.ExecuteIntervalMs,
		Alpha: cfg.Trigger.Alpha, K: cfg.Trigger.K, MinSamples: cfg.Trigger.MinSamples,
		Lookback: cfg.Trigger.Lookback, TrailDropPpm: int64(cfg.Trigger.TrailDropPpm), EmergencySigma: cfg.Trigger.EmergencySigma,
		AmountMode: trigger.AmountMode(cfg.Amount.Mode), MaxAmountsPerTick: cfg.Amount.MaxAmountsPerTick,
		EveryNTicks: cfg.Secondary.EveryNTicks, SecondaryEnableObserve: cfg.Secondary.EnableObserve, SecondaryEnableExecute: cfg.Secondary.EnableExecute,
	}, events, sugar)

	exec := executor.New(executor.Config{
		Mode:                  executor.Mode(cfg.Mode),
		ExecutionStrategy:     types.ExecutionStrategy(cfg.ExecutionStrategy),
		ExecutionProvider:     types.ExecutionProvider(cfg.ExecutionProvider),
		LivePreflightSimulate: cfg.LivePreflightSimulate,
		ComputeUnitLimit:      cfg.ComputeUnitLimit,
		ComputeUnitPrice:      cfg.ComputeUnitPrice,
		TipAccount:            cfg.Jito.TipAccount,
		MinBalanceLamports:    cfg.Scheduler.MinBalanceLamports,
		BalanceRefreshMs:      cfg.Scheduler.BalanceRefreshMs,
		MaxRetries:            3,
		Jito: executor.JitoConfig{
			Enabled: cfg.Jito.Enabled, BlockEngineURL: cfg.Jito.BlockEngineURL,
			WaitMs: cfg.Jito.WaitMs, FallbackRPC: cfg.Jito.FallbackRPC,
		},
	}, wal, solClient, lookups, bundlerFor(cfg), events, sugar)

	sched := scheduler.New(scheduler.Config{
		PollIntervalMs: cfg.Scheduler.PollIntervalMs, PairConcurrency: cfg.Scheduler.PairConcurrency,
		MaxErrorsBeforeExit: cfg.Scheduler.MaxErrorsBeforeExit, MaxConsecutiveErrorsBeforeExit: cfg.Scheduler.MaxConsecutiveErrorsBeforeExit,
	}, pairs, engine, depsFor, exec, primary, ultra, secondary, events, sugar)

	var healthServer *health.Server
	if cfg.Health.Enabled {
		var secondaryGovForHealth *ratelimit.Governor
		if secondary != nil {
			secondaryGovForHealth = secondaryGov
		}
		healthServer = health.New(cfg.Health.Addr, cfg.Mode, primaryGov, secondaryGovForHealth, sugar)
		go func() {
			if err := healthServer.Run(); err != nil {
				sugar.Warnw("health server stopped", "error", err)
			}
		}()
	}

	var runErr error
	if runOnce {
		runErr = sched.RunOnce(ctx)
	} else {
		runErr = sched.Run(ctx)
	}

	if healthServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		healthServer.Shutdown(shutdownCtx)
	}
	events.Write(eventlog.TypeShutdown, eventlog.Fields{})
	return runErr
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func bundlerFor(cfg *config.Settings) executor.BundleSubmitter {
	if !cfg.Jito.Enabled {
		return nil
	}
	return executor.NewJitoBundler(cfg.Jito.BlockEngineURL)
}
