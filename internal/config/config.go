// Package config defines all configuration for the tick-to-trade pipeline.
// Config is loaded from a YAML file with sensitive fields overridable via
// TICKENGINE_* environment variables, in the same viper-based pattern as
// the teacher's market-making bot configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	Feed      FeedConfig      `mapstructure:"feed"`
	Symbols   SymbolsConfig   `mapstructure:"symbols"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Ring      RingConfig      `mapstructure:"ring"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// FeedConfig controls the UDP multicast adapter.
type FeedConfig struct {
	MulticastAddr string `mapstructure:"multicast_addr"` // e.g. "239.1.1.1:12345"
	Interface     string `mapstructure:"interface"`
	ReadBufferLen int    `mapstructure:"read_buffer_len"`
}

// SymbolsConfig points at the startup symbol universe and reference prices.
// Paths may be local files or http(s) URLs (see internal/loader).
type SymbolsConfig struct {
	MaxSymbols       int    `mapstructure:"max_symbols"`
	SymbolFile       string `mapstructure:"symbol_file"`
	ReferencePriceFile string `mapstructure:"reference_price_file"`
}

// RiskConfig seeds the risk gate's initial RiskParams.
type RiskConfig struct {
	PriceBandBps     int           `mapstructure:"price_band_bps"`
	TokenRatePerMs   int           `mapstructure:"token_rate_per_ms"`
	TokenBucketMax   int           `mapstructure:"token_bucket_max"`
	PositionLimit    int           `mapstructure:"position_limit"`
	StaleThreshold   time.Duration `mapstructure:"stale_threshold"`
	SeqGapThreshold  int           `mapstructure:"seq_gap_threshold"`
	SeqCheckEnabled  bool          `mapstructure:"seq_check_enabled"`
	Kill             bool          `mapstructure:"kill"`
}

// RingConfig sizes the publisher ring.
type RingConfig struct {
	Length              int `mapstructure:"length"`
	AlmostFullThreshold int `mapstructure:"almost_full_threshold"`
}

// StoreConfig sets where risk/kill-state checkpoints are persisted.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the monitoring HTTP/WS/metrics server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides. Sensitive or
// deployment-specific fields use env vars: TICKENGINE_FEED_MULTICAST_ADDR,
// TICKENGINE_RISK_KILL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TICKENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if addr := os.Getenv("TICKENGINE_FEED_MULTICAST_ADDR"); addr != "" {
		cfg.Feed.MulticastAddr = addr
	}
	if os.Getenv("TICKENGINE_RISK_KILL") == "true" || os.Getenv("TICKENGINE_RISK_KILL") == "1" {
		cfg.Risk.Kill = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Feed.MulticastAddr == "" {
		return fmt.Errorf("feed.multicast_addr is required")
	}
	if c.Symbols.MaxSymbols <= 0 {
		return fmt.Errorf("symbols.max_symbols must be > 0")
	}
	if c.Symbols.MaxSymbols&(c.Symbols.MaxSymbols-1) != 0 {
		return fmt.Errorf("symbols.max_symbols must be a power of two")
	}
	if c.Ring.Length <= 0 || c.Ring.Length&(c.Ring.Length-1) != 0 {
		return fmt.Errorf("ring.length must be a power of two")
	}
	if c.Risk.TokenBucketMax < 0 || c.Risk.TokenBucketMax > 0xFFFF {
		return fmt.Errorf("risk.token_bucket_max must fit in 16 bits")
	}
	if c.Risk.PriceBandBps < 0 || c.Risk.PriceBandBps > 0xFFFF {
		return fmt.Errorf("risk.price_band_bps must fit in 16 bits")
	}
	return nil
}
