// Package config loads run settings from flags, SBSIM_* environment
// variables, an optional .env file and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SBSIM"

// Defaults.
const (
	DefaultRPCURL      = "https://api.mainnet-beta.solana.com"
	DefaultGatewayURL  = "https://185.172.191.13.xip.switchboard-oracles.xyz/mainnet"
	DefaultCrossbarURL = "https://crossbar.switchboard.xyz"
	DefaultNetwork     = "mainnet"
	DefaultFeed        = "AJ1C3CpVrWgQFNmxgfvSM81XqzE738BagvXz6hBPWVHL"
	DefaultKeypairPath = "keypair.json"
	DefaultUnitLimit   = 1_400_000
	DefaultUnitPrice   = 1_000
	DefaultTimeout     = 30 * time.Second
	DefaultMetricsJob  = "switchboard_sim"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// RPC configures the Solana node connection.
type RPC struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// Gateway configures the oracle gateway.
type Gateway struct {
	URL string `mapstructure:"url"`
}

// Crossbar configures the optional routing service in front of the gateway.
type Crossbar struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
	Network string `mapstructure:"network"`
}

// ComputeBudget configures the compute-budget prelude.
type ComputeBudget struct {
	UnitLimit uint32 `mapstructure:"unit_limit"`
	UnitPrice uint64 `mapstructure:"unit_price"`
}

// Log configures diagnostic logging.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// Metrics configures the optional Pushgateway export.
type Metrics struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// Config collects every setting of a simulation run.
type Config struct {
	RPC           RPC           `mapstructure:"rpc"`
	Gateway       Gateway       `mapstructure:"gateway"`
	Crossbar      Crossbar      `mapstructure:"crossbar"`
	Feed          string        `mapstructure:"feed"`
	KeypairPath   string        `mapstructure:"keypair"`
	NumSignatures uint32        `mapstructure:"num_signatures"` // 0 leaves the choice to the service
	Debug         bool          `mapstructure:"debug"`
	ComputeBudget ComputeBudget `mapstructure:"compute_budget"`
	Log           Log           `mapstructure:"log"`
	Metrics       Metrics       `mapstructure:"metrics"`
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"rpc-url":         "rpc.url",
	"rpc-timeout":     "rpc.timeout",
	"rpc-max-retries": "rpc.max_retries",
	"gateway-url":     "gateway.url",
	"crossbar-url":    "crossbar.url",
	"crossbar":        "crossbar.enabled",
	"network":         "crossbar.network",
	"feed":            "feed",
	"keypair":         "keypair",
	"num-signatures":  "num_signatures",
	"debug":           "debug",
	"cu-limit":        "compute_budget.unit_limit",
	"cu-price":        "compute_budget.unit_price",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"pushgateway-url": "metrics.pushgateway_url",
	"metrics-job":     "metrics.job",
}

// NewFlagSet declares every flag with its default.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Optional YAML config file")
	fs.String("rpc-url", DefaultRPCURL, "Solana RPC HTTP endpoint")
	fs.Duration("rpc-timeout", DefaultTimeout, "Timeout for each RPC and gateway request")
	fs.Int("rpc-max-retries", 0, "Retries for failed RPC transport calls")
	fs.String("gateway-url", DefaultGatewayURL, "Oracle gateway URL")
	fs.String("crossbar-url", DefaultCrossbarURL, "Crossbar service URL")
	fs.Bool("crossbar", true, "Route the update request through Crossbar")
	fs.String("network", DefaultNetwork, "Cluster name used in Crossbar routes")
	fs.String("feed", DefaultFeed, "Pull feed account (base58)")
	fs.String("keypair", DefaultKeypairPath, "Payer keypair file")
	fs.Uint32("num-signatures", 0, "Requested oracle signature count (0 = service default)")
	fs.Bool("debug", false, "Log gateway request details")
	fs.Uint32("cu-limit", DefaultUnitLimit, "Compute unit limit")
	fs.Uint64("cu-price", DefaultUnitPrice, "Compute unit price in micro-lamports")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.String("log-format", "console", "Log format (console, json)")
	fs.String("pushgateway-url", "", "Prometheus Pushgateway URL (empty to disable)")
	fs.String("metrics-job", DefaultMetricsJob, "Pushgateway job name")
	return fs
}

// Load parses args and merges every configuration source.
// Precedence: flag > environment > config file > default.
func Load(args []string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	fs := NewFlagSet("simulate")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings that must hold before any network call.
func (c *Config) Validate() error {
	if _, err := solana.PublicKeyFromBase58(c.Feed); err != nil {
		return fmt.Errorf("%w: feed %q: %v", ErrInvalid, c.Feed, err)
	}
	if c.KeypairPath == "" {
		return fmt.Errorf("%w: keypair path is empty", ErrInvalid)
	}
	if c.RPC.URL == "" {
		return fmt.Errorf("%w: rpc url is empty", ErrInvalid)
	}
	if c.Gateway.URL == "" {
		return fmt.Errorf("%w: gateway url is empty", ErrInvalid)
	}
	if c.Crossbar.Enabled && c.Crossbar.URL == "" {
		return fmt.Errorf("%w: crossbar enabled without url", ErrInvalid)
	}
	if c.ComputeBudget.UnitLimit == 0 {
		return fmt.Errorf("%w: compute unit limit must be positive", ErrInvalid)
	}
	if c.RPC.MaxRetries < 0 {
		return fmt.Errorf("%w: rpc max retries must not be negative", ErrInvalid)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// FeedKey returns the decoded feed account. Call after Validate.
func (c *Config) FeedKey() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(c.Feed)
}

// NumSignaturesHint returns the requested signature count, or nil when unset.
func (c *Config) NumSignaturesHint() *uint32 {
	if c.NumSignatures == 0 {
		return nil
	}
	n := c.NumSignatures
	return &n
}
