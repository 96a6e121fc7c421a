package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"coinpulse/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig       `mapstructure:"app"`
	Logging    logging.Config  `mapstructure:"logging"`
	Server     ServerConfig    `mapstructure:"server"`
	Indexer    IndexerConfig   `mapstructure:"indexer"`
	Aggregator UpstreamConfig  `mapstructure:"aggregator"`
	RefRate    RefRateConfig   `mapstructure:"reference_rate"`
	Pricing    PricingConfig   `mapstructure:"pricing"`
	Cache      CacheConfig     `mapstructure:"cache"`
	Refresher  RefresherConfig `mapstructure:"refresher"`
	Export     ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig covers the HTTP/websocket listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// IndexerConfig points at the ledger-indexing service that serves raw
// swap records.
type IndexerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	SwapPageSize   int           `mapstructure:"swap_page_size"`
}

// UpstreamConfig is shared connectivity for simple JSON upstreams.
type UpstreamConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// RefRateConfig covers the gas-token USD price feed.
type RefRateConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Asset          string        `mapstructure:"asset"`
	Currency       string        `mapstructure:"currency"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	FallbackRate   float64       `mapstructure:"fallback_rate"`
}

// PricingConfig exposes the series-reconstruction constants. They are
// deliberately tunable; the defaults mirror observed market behaviour.
type PricingConfig struct {
	BuyDrift        float64 `mapstructure:"buy_drift"`
	SellDrift       float64 `mapstructure:"sell_drift"`
	ClampBand       float64 `mapstructure:"clamp_band"`
	TradeJitter     float64 `mapstructure:"trade_jitter"`
	SyntheticJitter float64 `mapstructure:"synthetic_jitter"`
	SyntheticFloor  float64 `mapstructure:"synthetic_floor"`
}

// CacheConfig governs the request-level TTL cache.
type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RefresherConfig tunes the background loop that feeds live rooms.
type RefresherConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	BatchSize   int           `mapstructure:"batch_size"`
	BatchesPerS float64       `mapstructure:"batches_per_second"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COINPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "coinpulse")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("indexer.request_timeout", "10s")
	v.SetDefault("indexer.user_agent", "coinpulse/1.0")
	v.SetDefault("indexer.swap_page_size", 100)

	v.SetDefault("aggregator.base_url", "https://api.dexscreener.com")
	v.SetDefault("aggregator.request_timeout", "10s")
	v.SetDefault("aggregator.user_agent", "coinpulse/1.0")

	v.SetDefault("reference_rate.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("reference_rate.asset", "ethereum")
	v.SetDefault("reference_rate.currency", "usd")
	v.SetDefault("reference_rate.request_timeout", "10s")
	v.SetDefault("reference_rate.fallback_rate", 3500.0)

	v.SetDefault("pricing.buy_drift", 1.0001)
	v.SetDefault("pricing.sell_drift", 0.9999)
	v.SetDefault("pricing.clamp_band", 0.25)
	v.SetDefault("pricing.trade_jitter", 0.025)
	v.SetDefault("pricing.synthetic_jitter", 0.02)
	v.SetDefault("pricing.synthetic_floor", 0.5)

	v.SetDefault("cache.ttl", "3m")
	v.SetDefault("cache.sweep_interval", "1m")

	v.SetDefault("refresher.interval", "10s")
	v.SetDefault("refresher.batch_size", 5)
	v.SetDefault("refresher.batches_per_second", 1.0)

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Pricing.BuyDrift <= 0 || c.Pricing.SellDrift <= 0 {
		return fmt.Errorf("pricing drift factors must be positive")
	}
	if c.Pricing.ClampBand <= 0 || c.Pricing.ClampBand >= 1 {
		return fmt.Errorf("pricing.clamp_band must be in (0, 1)")
	}
	if c.Pricing.SyntheticFloor <= 0 || c.Pricing.SyntheticFloor > 1 {
		return fmt.Errorf("pricing.synthetic_floor must be in (0, 1]")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be greater than zero")
	}
	if c.Refresher.Interval <= 0 {
		return fmt.Errorf("refresher.interval must be greater than zero")
	}
	if c.Refresher.BatchSize <= 0 {
		return fmt.Errorf("refresher.batch_size must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
