package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"dexarb/pkg/types"
)

// Settings is the full process configuration surface (§6), resolved from
// defaults, an optional .env file, and environment variables via viper.
// AutomaticEnv is enabled and every viper key is the environment variable
// name itself (e.g. RPCURL is read from SOLANA_RPC_URL).
type Settings struct {
	RPCURL        string
	WSURL         string
	Commitment    string // processed|confirmed|finalized

	WalletSecret string // base58, JSON array, or path to a JSON array file

	Mode    string // dry-run|live
	Profile string // default|hft

	ExecutionStrategy string // atomic|sequential
	ExecutionProvider string // swap|ultra

	LivePreflightSimulate bool
	LogVerbose            bool

	Trigger TriggerSettings
	Amount  AmountSettings

	ComputeUnitLimit   uint32
	ComputeUnitPrice   uint64
	BaseFeeLamports    uint64
	RentBufferLamports uint64

	PriorityFeeStrategy string // off|rpc-recent|helius
	PriorityFeeLevel    string

	Jito JitoSettings

	Primary   ProviderSettings
	Secondary SecondarySettings

	RateLimit struct {
		Primary   RateLimitSettings
		Secondary RateLimitSettings
	}

	Scheduler SchedulerSettings

	EventLog EventLogSettings

	Health HealthSettings

	PairsFile string
}

type TriggerSettings struct {
	Strategy          string // immediate|avg-window|vwap|bollinger
	ObserveMs         int64
	ObserveIntervalMs int64
	ExecuteMs         int64
	ExecuteIntervalMs int64
	Alpha             float64
	K                 float64
	MinSamples        int
	Lookback          int
	TrailDropPpm      int
	EmergencySigma    float64
}

type AmountSettings struct {
	Mode            string // all|fixed|rotate
	MaxAmountsPerTick int
}

type JitoSettings struct {
	Enabled     bool
	BlockEngineURL string
	TipMode     string // fixed|dynamic
	TipLamports uint64
	TipBps      int64
	MinTip      uint64
	MaxTip      uint64
	TipAccount  string
	WaitMs      int64
	FallbackRPC bool
}

type ProviderSettings struct {
	QuoteBaseURL string
	UltraBaseURL string
	APIKey       string
}

type SecondarySettings struct {
	BaseURL           string
	GateBps           int64
	NearGateBps       int64
	EveryNTicks       int
	EnableObserve     bool
	EnableExecute     bool
	SigsEstimate      int64
	Referrer          string
	ReferrerFeeBps    int
	EnabledDexIDs     []string
	DisabledDexIDs    []string
}

type RateLimitSettings struct {
	BaseRps         float64
	MinRps          float64
	Burst           float64
	PenaltyMs       int64
	RecoveryEveryMs int64
	RecoveryStepRps float64
	BackoffBaseMs   int64
	BackoffMaxMs    int64
	Cooldown429Ms   int64
}

type SchedulerSettings struct {
	PollIntervalMs                int64
	PairConcurrency               int
	MaxErrorsBeforeExit           int
	MaxConsecutiveErrorsBeforeExit int
	MinBalanceLamports            uint64
	BalanceRefreshMs              int64
}

type EventLogSettings struct {
	Path           string
	RotateEnabled  bool
	MaxSizeBytes   int64
	MaxFiles       int
}

type HealthSettings struct {
	Enabled bool
	Addr    string
}

// Load reads defaults, an optional .env file, and environment variables
// into a Settings value, mirroring the teacher's viper.AutomaticEnv +
// godotenv.Load bootstrap.
func Load(envPath string) (*Settings, error) {
	if err := LoadEnv(envPath); err != nil {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	setDefaults()
	viper.AutomaticEnv()

	s := &Settings{
		RPCURL:     viper.GetString("SOLANA_RPC_URL"),
		WSURL:      viper.GetString("SOLANA_WS_URL"),
		Commitment: viper.GetString("SOLANA_COMMITMENT"),

		WalletSecret: viper.GetString("WALLET_SECRET_KEY"),

		Mode:    viper.GetString("MODE"),
		Profile: viper.GetString("PROFILE"),

		ExecutionStrategy: viper.GetString("EXECUTION_STRATEGY"),
		ExecutionProvider: viper.GetString("EXECUTION_PROVIDER"),

		LivePreflightSimulate: viper.GetBool("LIVE_PREFLIGHT_SIMULATE"),
		LogVerbose:            viper.GetBool("LOG_VERBOSE"),

		ComputeUnitLimit:   uint32(viper.GetUint32("COMPUTE_UNIT_LIMIT")),
		ComputeUnitPrice:   viper.GetUint64("COMPUTE_UNIT_PRICE"),
		BaseFeeLamports:    viper.GetUint64("BASE_FEE_LAMPORTS"),
		RentBufferLamports: viper.GetUint64("RENT_BUFFER_LAMPORTS"),

		PriorityFeeStrategy: viper.GetString("PRIORITY_FEE_STRATEGY"),
		PriorityFeeLevel:    viper.GetString("PRIORITY_FEE_LEVEL"),

		PairsFile: viper.GetString("PAIRS_FILE"),
	}

	s.Trigger = TriggerSettings{
		Strategy:          viper.GetString("TRIGGER_STRATEGY"),
		ObserveMs:         viper.GetInt64("TRIGGER_OBSERVE_MS"),
		ObserveIntervalMs: viper.GetInt64("TRIGGER_OBSERVE_INTERVAL_MS"),
		ExecuteMs:         viper.GetInt64("TRIGGER_EXECUTE_MS"),
		ExecuteIntervalMs: viper.GetInt64("TRIGGER_EXECUTE_INTERVAL_MS"),
		Alpha:             viper.GetFloat64("TRIGGER_ALPHA"),
		K:                 viper.GetFloat64("TRIGGER_K"),
		MinSamples:        viper.GetInt("TRIGGER_MIN_SAMPLES"),
		Lookback:          viper.GetInt("TRIGGER_LOOKBACK"),
		TrailDropPpm:      viper.GetInt("TRIGGER_TRAIL_DROP_PPM"),
		EmergencySigma:    viper.GetFloat64("TRIGGER_EMERGENCY_SIGMA"),
	}

	s.Amount = AmountSettings{
		Mode:              viper.GetString("AMOUNT_MODE"),
		MaxAmountsPerTick: viper.GetInt("AMOUNT_MAX_PER_TICK"),
	}

	s.Jito = JitoSettings{
		Enabled:        viper.GetBool("JITO_ENABLED"),
		BlockEngineURL: viper.GetString("JITO_BLOCK_ENGINE_URL"),
		TipMode:        viper.GetString("JITO_TIP_MODE"),
		TipLamports:    viper.GetUint64("JITO_TIP_LAMPORTS"),
		TipBps:         viper.GetInt64("JITO_TIP_BPS"),
		MinTip:         viper.GetUint64("JITO_MIN_TIP"),
		MaxTip:         viper.GetUint64("JITO_MAX_TIP"),
		TipAccount:     viper.GetString("JITO_TIP_ACCOUNT"),
		WaitMs:         viper.GetInt64("JITO_WAIT_MS"),
		FallbackRPC:    viper.GetBool("JITO_FALLBACK_RPC"),
	}

	s.Primary = ProviderSettings{
		QuoteBaseURL: viper.GetString("PRIMARY_QUOTE_BASE_URL"),
		UltraBaseURL: viper.GetString("PRIMARY_ULTRA_BASE_URL"),
		APIKey:       viper.GetString("PRIMARY_API_KEY"),
	}

	s.Secondary = SecondarySettings{
		BaseURL:        viper.GetString("SECONDARY_BASE_URL"),
		GateBps:        viper.GetInt64("SECONDARY_GATE_BPS"),
		NearGateBps:    viper.GetInt64("SECONDARY_NEAR_GATE_BPS"),
		EveryNTicks:    viper.GetInt("SECONDARY_EVERY_N_TICKS"),
		EnableObserve:  viper.GetBool("SECONDARY_ENABLE_OBSERVE"),
		EnableExecute:  viper.GetBool("SECONDARY_ENABLE_EXECUTE"),
		SigsEstimate:   viper.GetInt64("SECONDARY_SIGS_ESTIMATE"),
		Referrer:       viper.GetString("SECONDARY_REFERRER"),
		ReferrerFeeBps: viper.GetInt("SECONDARY_REFERRER_FEE_BPS"),
		EnabledDexIDs:  splitCSV(viper.GetString("SECONDARY_ENABLED_DEX_IDS")),
		DisabledDexIDs: splitCSV(viper.GetString("SECONDARY_DISABLED_DEX_IDS")),
	}

	s.RateLimit.Primary = loadRateLimit("PRIMARY")
	s.RateLimit.Secondary = loadRateLimit("SECONDARY")

	s.Scheduler = SchedulerSettings{
		PollIntervalMs:                 viper.GetInt64("SCHEDULER_POLL_INTERVAL_MS"),
		PairConcurrency:                viper.GetInt("SCHEDULER_PAIR_CONCURRENCY"),
		MaxErrorsBeforeExit:            viper.GetInt("SCHEDULER_MAX_ERRORS_BEFORE_EXIT"),
		MaxConsecutiveErrorsBeforeExit: viper.GetInt("SCHEDULER_MAX_CONSECUTIVE_ERRORS_BEFORE_EXIT"),
		MinBalanceLamports:             viper.GetUint64("SCHEDULER_MIN_BALANCE_LAMPORTS"),
		BalanceRefreshMs:               viper.GetInt64("SCHEDULER_BALANCE_REFRESH_MS"),
	}

	s.EventLog = EventLogSettings{
		Path:          viper.GetString("EVENT_LOG_PATH"),
		RotateEnabled: viper.GetBool("EVENT_LOG_ROTATE_ENABLED"),
		MaxSizeBytes:  viper.GetInt64("EVENT_LOG_MAX_SIZE_BYTES"),
		MaxFiles:      viper.GetInt("EVENT_LOG_MAX_FILES"),
	}

	s.Health = HealthSettings{
		Enabled: viper.GetBool("HEALTH_ENABLED"),
		Addr:    viper.GetString("HEALTH_ADDR"),
	}

	applyProfile(s)

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func loadRateLimit(prefix string) RateLimitSettings {
	return RateLimitSettings{
		BaseRps:         viper.GetFloat64(prefix + "_RPS"),
		MinRps:          viper.GetFloat64(prefix + "_MIN_RPS"),
		Burst:           viper.GetFloat64(prefix + "_BURST"),
		PenaltyMs:       viper.GetInt64(prefix + "_PENALTY_MS"),
		RecoveryEveryMs: viper.GetInt64(prefix + "_RECOVERY_EVERY_MS"),
		RecoveryStepRps: viper.GetFloat64(prefix + "_RECOVERY_STEP_RPS"),
		BackoffBaseMs:   viper.GetInt64(prefix + "_BACKOFF_BASE_MS"),
		BackoffMaxMs:    viper.GetInt64(prefix + "_BACKOFF_MAX_MS"),
		Cooldown429Ms:   viper.GetInt64(prefix + "_429_COOLDOWN_MS"),
	}
}

// applyProfile enforces the hft profile's forced defaults (§6): log-verbose
// off, Secondary observe off, every-N-ticks >= 2.
func applyProfile(s *Settings) {
	if s.Profile != "hft" {
		return
	}
	s.LogVerbose = false
	s.Secondary.EnableObserve = false
	if s.Secondary.EveryNTicks < 2 {
		s.Secondary.EveryNTicks = 2
	}
}

func (s *Settings) validate() error {
	if s.RPCURL == "" {
		return fmt.Errorf("config: SOLANA_RPC_URL is required")
	}
	if s.WalletSecret == "" {
		return fmt.Errorf("config: WALLET_SECRET_KEY is required")
	}
	switch s.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("config: invalid SOLANA_COMMITMENT %q", s.Commitment)
	}
	switch s.Mode {
	case "dry-run", "live":
	default:
		return fmt.Errorf("config: invalid MODE %q", s.Mode)
	}
	switch s.ExecutionStrategy {
	case "atomic", "sequential":
	default:
		return fmt.Errorf("config: invalid EXECUTION_STRATEGY %q", s.ExecutionStrategy)
	}
	switch s.ExecutionProvider {
	case "swap", "ultra":
	default:
		return fmt.Errorf("config: invalid EXECUTION_PROVIDER %q", s.ExecutionProvider)
	}
	return nil
}

// UltraAtomicMismatch reports whether the configured execution
// provider/strategy combination is the documented warn-at-startup,
// skip-at-execute-time case: Ultra only ever sends sequentially, so pairing
// it with the atomic strategy can never execute (§4.7 "Ultra restrictions").
func (s *Settings) UltraAtomicMismatch() bool {
	return s.ExecutionProvider == "ultra" && s.ExecutionStrategy != "sequential"
}

func setDefaults() {
	viper.SetDefault("SOLANA_WS_URL", "")
	viper.SetDefault("SOLANA_COMMITMENT", "confirmed")
	viper.SetDefault("MODE", "dry-run")
	viper.SetDefault("PROFILE", "default")
	viper.SetDefault("EXECUTION_STRATEGY", "atomic")
	viper.SetDefault("EXECUTION_PROVIDER", "swap")
	viper.SetDefault("LIVE_PREFLIGHT_SIMULATE", true)
	viper.SetDefault("LOG_VERBOSE", false)

	viper.SetDefault("COMPUTE_UNIT_LIMIT", 300000)
	viper.SetDefault("COMPUTE_UNIT_PRICE", 0)
	viper.SetDefault("BASE_FEE_LAMPORTS", 5000)
	viper.SetDefault("RENT_BUFFER_LAMPORTS", 0)

	viper.SetDefault("PRIORITY_FEE_STRATEGY", "off")
	viper.SetDefault("PRIORITY_FEE_LEVEL", "medium")

	viper.SetDefault("PAIRS_FILE", "./pairs.json")

	viper.SetDefault("TRIGGER_STRATEGY", "immediate")
	viper.SetDefault("TRIGGER_OBSERVE_MS", 30000)
	viper.SetDefault("TRIGGER_OBSERVE_INTERVAL_MS", 1000)
	viper.SetDefault("TRIGGER_EXECUTE_MS", 10000)
	viper.SetDefault("TRIGGER_EXECUTE_INTERVAL_MS", 500)
	viper.SetDefault("TRIGGER_ALPHA", 0.0)
	viper.SetDefault("TRIGGER_K", 1.5)
	viper.SetDefault("TRIGGER_MIN_SAMPLES", 10)
	viper.SetDefault("TRIGGER_LOOKBACK", 2)
	viper.SetDefault("TRIGGER_TRAIL_DROP_PPM", 1)
	viper.SetDefault("TRIGGER_EMERGENCY_SIGMA", 0.0)

	viper.SetDefault("AMOUNT_MODE", "all")
	viper.SetDefault("AMOUNT_MAX_PER_TICK", 1)

	viper.SetDefault("JITO_ENABLED", false)
	viper.SetDefault("JITO_BLOCK_ENGINE_URL", "")
	viper.SetDefault("JITO_TIP_MODE", "fixed")
	viper.SetDefault("JITO_TIP_LAMPORTS", 10000)
	viper.SetDefault("JITO_TIP_BPS", 2000)
	viper.SetDefault("JITO_MIN_TIP", 1000)
	viper.SetDefault("JITO_MAX_TIP", 1000000)
	viper.SetDefault("JITO_TIP_ACCOUNT", "")
	viper.SetDefault("JITO_WAIT_MS", 2000)
	viper.SetDefault("JITO_FALLBACK_RPC", true)

	viper.SetDefault("PRIMARY_QUOTE_BASE_URL", "")
	viper.SetDefault("PRIMARY_ULTRA_BASE_URL", "")
	viper.SetDefault("PRIMARY_API_KEY", "")

	viper.SetDefault("SECONDARY_BASE_URL", "")
	viper.SetDefault("SECONDARY_GATE_BPS", 0)
	viper.SetDefault("SECONDARY_NEAR_GATE_BPS", 0)
	viper.SetDefault("SECONDARY_EVERY_N_TICKS", 1)
	viper.SetDefault("SECONDARY_ENABLE_OBSERVE", false)
	viper.SetDefault("SECONDARY_ENABLE_EXECUTE", false)
	viper.SetDefault("SECONDARY_SIGS_ESTIMATE", 3)
	viper.SetDefault("SECONDARY_REFERRER", "")
	viper.SetDefault("SECONDARY_REFERRER_FEE_BPS", 0)
	viper.SetDefault("SECONDARY_ENABLED_DEX_IDS", "")
	viper.SetDefault("SECONDARY_DISABLED_DEX_IDS", "")

	for _, prefix := range []string{"PRIMARY", "SECONDARY"} {
		viper.SetDefault(prefix+"_RPS", 5.0)
		viper.SetDefault(prefix+"_MIN_RPS", 1.25)
		viper.SetDefault(prefix+"_BURST", 5.0)
		viper.SetDefault(prefix+"_PENALTY_MS", 2000)
		viper.SetDefault(prefix+"_RECOVERY_EVERY_MS", 5000)
		viper.SetDefault(prefix+"_RECOVERY_STEP_RPS", 0.1)
		viper.SetDefault(prefix+"_BACKOFF_BASE_MS", 200)
		viper.SetDefault(prefix+"_BACKOFF_MAX_MS", 10000)
		viper.SetDefault(prefix+"_429_COOLDOWN_MS", 30000)
	}

	viper.SetDefault("SCHEDULER_POLL_INTERVAL_MS", 2000)
	viper.SetDefault("SCHEDULER_PAIR_CONCURRENCY", 4)
	viper.SetDefault("SCHEDULER_MAX_ERRORS_BEFORE_EXIT", 0)
	viper.SetDefault("SCHEDULER_MAX_CONSECUTIVE_ERRORS_BEFORE_EXIT", 20)
	viper.SetDefault("SCHEDULER_MIN_BALANCE_LAMPORTS", 0)
	viper.SetDefault("SCHEDULER_BALANCE_REFRESH_MS", 10000)

	viper.SetDefault("EVENT_LOG_PATH", "./logs/events.ndjson")
	viper.SetDefault("EVENT_LOG_ROTATE_ENABLED", true)
	viper.SetDefault("EVENT_LOG_MAX_SIZE_BYTES", 50*1024*1024)
	viper.SetDefault("EVENT_LOG_MAX_FILES", 5)

	viper.SetDefault("HEALTH_ENABLED", false)
	viper.SetDefault("HEALTH_ADDR", ":8089")
}

// pairsFile is the on-disk shape of the JSON config file (§6): { "pairs":
// [...] }.
type pairsFile struct {
	Pairs []types.Pair `json:"pairs"`
}

// LoadPairs reads and strictly validates the pairs config file (§3, §6).
func LoadPairs(path string) ([]types.Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading pairs file: %w", err)
	}
	var pf pairsFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&pf); err != nil {
		return nil, fmt.Errorf("config: decoding pairs file: %w", err)
	}
	for i := range pf.Pairs {
		if err := pf.Pairs[i].Validate(); err != nil {
			return nil, fmt.Errorf("config: pair %d: %w", i, err)
		}
	}
	return pf.Pairs, nil
}

// SavePairs re-serializes pairs, used by round-trip tests (§8).
func SavePairs(path string, pairs []types.Pair) error {
	data, err := json.MarshalIndent(pairsFile{Pairs: pairs}, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshaling pairs: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

