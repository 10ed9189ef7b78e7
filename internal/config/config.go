// Package config loads the validator/miner configuration from environment
// variables (and an optional .env file), the way pkg/config in the
// Synnergy codebase wraps viper — but returns an immutable value threaded
// through constructors rather than a package-level singleton, per the
// "replace global config" design note.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/YouWishh/oceans-subnet/pkg/utils"
)

// Error reports a configuration problem discovered at startup. It is
// always fatal: callers should log it and exit non-zero (§6, §7).
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Config is the immutable, fully-resolved configuration for one process.
type Config struct {
	// Vote API / vote client (§4.B, §6)
	VoteAPIEndpoint  string
	VotePollInterval time.Duration

	// Liquidity ingest (§4.E, §6)
	LiquidityRefreshBlocks uint64
	MaxConcurrency         int
	SourceNetUID           uint64

	// Chain / scheduler (§4.A, §4.G, §6)
	BittensorNetwork      string
	SubtensorRPC          string
	DefaultNetUID         uint64
	EpochSecondsFallback  time.Duration
	NominalBlockTime      time.Duration
	StatusLogIntervalBlks uint64
	ActiveSubnets         map[uint64]struct{}
	WeightsVersion        uint64

	// Persistence (§4.C, §6)
	DBURI string

	// Observability (§6)
	LogLevel       string
	JSONLogs       bool
	PrometheusPort int

	// Wallet (§1, §6 — external collaborator, carried only as passthrough
	// identifiers; no key material is parsed or held here)
	WalletName       string
	WalletMnemonic   string
	WalletPassphrase string

	// Alerts (§6)
	AlertsWebhookURL string
}

// IsMainnet classifies the configured network, grounded on the original
// implementation's Settings.is_prod property. Nothing in the reward
// pipeline branches on it; it only biases the default log level.
func (c *Config) IsMainnet() bool {
	switch strings.ToLower(c.BittensorNetwork) {
	case "mainnet", "main", "finney":
		return true
	default:
		return false
	}
}

// Load reads environment variables (after trying to load a .env file,
// exactly as the teacher's cmd/cli commands call godotenv.Load()
// unconditionally and ignore a missing file) into a Config. An empty
// ACTIVE_SUBNETS is a startup error (§3, §6).
func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	activeSubnets := utils.ParseUint64Set(viper.GetString("ACTIVE_SUBNETS"))
	if len(activeSubnets) == 0 {
		return nil, &Error{Field: "ACTIVE_SUBNETS", Reason: "must name at least one subnet id"}
	}

	cfg := &Config{
		VoteAPIEndpoint:        stringOr("VOTE_API_ENDPOINT", "TODO"),
		VotePollInterval:       time.Duration(intOr("VOTE_POLL_INTERVAL", 30)) * time.Second,
		LiquidityRefreshBlocks: uint64Or("LIQUIDITY_REFRESH_BLOCKS", 1),
		MaxConcurrency:         intOr("MAX_CONCURRENCY", 5),
		SourceNetUID:           uint64Or("SOURCE_NETUID", uint64Or("DEFAULT_NETUID", 66)),
		BittensorNetwork:       stringOr("BITTENSOR_NETWORK", "finney"),
		SubtensorRPC:           stringOr("SUBTENSOR_RPC", "wss://finney.subtensor.network"),
		DefaultNetUID:          uint64Or("DEFAULT_NETUID", 66),
		EpochSecondsFallback:   time.Duration(intOr("EPOCH_SECONDS", 600)) * time.Second,
		NominalBlockTime:       time.Duration(intOr("BLOCK_TIME_MS", 12000)) * time.Millisecond,
		StatusLogIntervalBlks:  uint64Or("STATUS_LOG_INTERVAL_BLOCKS", 2),
		ActiveSubnets:          activeSubnets,
		WeightsVersion:         uint64Or("WEIGHTS_VERSION", 0),
		DBURI:                  stringOr("DB_URI", "file://./oceans_cache"),
		LogLevel:               stringOr("LOG_LEVEL", "info"),
		JSONLogs:               boolOr("JSON_LOGS", false),
		PrometheusPort:         intOr("PROMETHEUS_PORT", 8000),
		WalletName:             stringOr("WALLET_NAME", "default"),
		WalletMnemonic:         stringOr("WALLET_MNEMONIC", ""),
		WalletPassphrase:       stringOr("WALLET_PASSPHRASE", ""),
		AlertsWebhookURL:       stringOr("ALERTS_WEBHOOK_URL", ""),
	}

	if viper.GetString("LOG_LEVEL") == "" && !cfg.IsMainnet() {
		cfg.LogLevel = "debug"
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return nil, &Error{Field: "LOG_LEVEL", Reason: err.Error()}
	}
	if _, ok := cfg.ActiveSubnets[0]; ok {
		return nil, &Error{Field: "ACTIVE_SUBNETS", Reason: "subnet 0 is reserved and may not be active"}
	}

	return cfg, nil
}

func stringOr(key, fallback string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if viper.IsSet(key) && viper.GetString(key) != "" {
		return viper.GetInt(key)
	}
	return fallback
}

func uint64Or(key string, fallback uint64) uint64 {
	if viper.IsSet(key) && viper.GetString(key) != "" {
		v := viper.GetInt64(key)
		if v >= 0 {
			return uint64(v)
		}
	}
	return fallback
}

func boolOr(key string, fallback bool) bool {
	if viper.IsSet(key) && viper.GetString(key) != "" {
		return viper.GetBool(key)
	}
	return fallback
}

var validLevels = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "warning": {}, "error": {}, "fatal": {}, "panic": {}, "trace": {},
}

func parseLogLevel(level string) (string, error) {
	lv := strings.ToLower(level)
	if _, ok := validLevels[lv]; !ok {
		return "", fmt.Errorf("unrecognised log level %q", level)
	}
	return lv, nil
}
