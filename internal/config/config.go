// Package config loads sentinel settings from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/emergency"
	"solana-trade-sentinel/internal/events"
	"solana-trade-sentinel/internal/logging"
	"solana-trade-sentinel/internal/pricefeed"
	"solana-trade-sentinel/internal/riskapi"
	"solana-trade-sentinel/internal/sizing"
	"solana-trade-sentinel/internal/strategy"
	"solana-trade-sentinel/internal/trailing"
)

// Validation errors.
var (
	ErrMissingRPCEndpoint = errors.New("solana.rpc_endpoint is required")
	ErrMissingPriceAPI    = errors.New("pricefeed.base_url is required")
	ErrInvalidConfig      = errors.New("invalid config")
)

// Position sources.
const (
	PositionsMemory   = "memory"
	PositionsPostgres = "postgres"
)

// Config is the full sentinel configuration.
type Config struct {
	Server     ServerConfig            `yaml:"server"`
	Log        logging.Config          `yaml:"log"`
	Solana     SolanaConfig            `yaml:"solana"`
	RiskAPI    riskapi.Config          `yaml:"riskapi"`
	PriceFeed  pricefeed.Config        `yaml:"pricefeed"`
	Validation ValidationConfig        `yaml:"validation"`
	Risk       RiskConfig              `yaml:"risk"`
	Trailing   trailing.Config         `yaml:"trailing"`
	Monitor    MonitorConfig           `yaml:"monitor"`
	Strategies []domain.StrategyConfig `yaml:"strategies"`
	Sinks      SinksConfig             `yaml:"sinks"`
	Storage    StorageConfig           `yaml:"storage"`
	Watchlist  []WatchItem             `yaml:"watchlist"`
}

// ServerConfig configures the operations API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimit       float64       `yaml:"rate_limit"` // requests per second on /v1, 0 disables
	Burst           int           `yaml:"burst"`
}

// SolanaConfig configures the RPC and WebSocket clients.
type SolanaConfig struct {
	RPCEndpoint string        `yaml:"rpc_endpoint"`
	WSEndpoint  string        `yaml:"ws_endpoint"` // empty disables the pool watcher
	Commitment  string        `yaml:"commitment"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// ValidationConfig holds default admission thresholds and pipeline switches.
type ValidationConfig struct {
	domain.ValidationConfig `yaml:",inline"`

	FailClosedOnRiskOutage bool          `yaml:"fail_closed_on_risk_outage"`
	RiskTimeout            time.Duration `yaml:"risk_timeout"`
}

// RiskConfig configures position sizing.
type RiskConfig struct {
	MinimumTradeSize float64 `yaml:"minimum_trade_size"`
}

// MonitorConfig configures the scheduler and emergency detectors.
type MonitorConfig struct {
	SignalInterval   time.Duration `yaml:"signal_interval"`
	PositionInterval time.Duration `yaml:"position_interval"`
	Concurrency      int           `yaml:"concurrency"`
	SeriesCapacity   int           `yaml:"series_capacity"`

	emergency.Thresholds `yaml:",inline"`
}

// SinksConfig enables event sinks. Kafka and Redis are enabled by a non-empty
// broker list or address; the journal sinks follow Storage.
type SinksConfig struct {
	Log   bool               `yaml:"log"`
	Bus   events.BusConfig   `yaml:"bus"`
	Kafka events.KafkaConfig `yaml:"kafka"`
	Redis events.RedisConfig `yaml:"redis"`
}

// StorageConfig configures the decision journal and position source.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	Positions     string `yaml:"positions"` // memory | postgres
	Migrate       bool   `yaml:"migrate"`

	// MemoryJournalPerToken caps events per token in the in-memory journal.
	MemoryJournalPerToken int `yaml:"memory_journal_per_token"`
}

// WatchItem is one token on the entry watchlist.
type WatchItem struct {
	Token         string    `yaml:"token"`
	Pool          string    `yaml:"pool"`
	Symbol        string    `yaml:"symbol"`
	PoolCreatedAt time.Time `yaml:"pool_created_at"`
}

// Default returns the configuration used before the file and environment apply.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: logging.Config{Level: "info", Format: "json"},
		Solana: SolanaConfig{
			Commitment: "confirmed",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		RiskAPI: riskapi.Config{
			Timeout:    5 * time.Second,
			MaxRetries: 2,
			RateLimit:  5,
			Burst:      5,
		},
		PriceFeed: pricefeed.Config{
			Timeout:    5 * time.Second,
			MaxRetries: 2,
			RateLimit:  10,
			Burst:      10,
		},
		Validation: ValidationConfig{
			ValidationConfig: domain.ValidationConfig{
				MinLiquiditySol:       5,
				MaxBuyTaxPct:          10,
				MaxSellTaxPct:         10,
				RequireMintDisabled:   true,
				RequireFreezeDisabled: true,
			},
			RiskTimeout: 5 * time.Second,
		},
		Risk:     RiskConfig{MinimumTradeSize: sizing.MinimumTradeSize},
		Trailing: trailing.Config{ActivationPct: trailing.DefaultActivationPct, StopPct: trailing.DefaultStopPct},
		Monitor: MonitorConfig{
			SignalInterval:   5 * time.Second,
			PositionInterval: 2 * time.Second,
			Concurrency:      8,
			SeriesCapacity:   120,
			Thresholds:       emergency.DefaultThresholds(),
		},
		Sinks: SinksConfig{
			Log: true,
			Bus: events.BusConfig{QueueSize: 256, WriteTimeout: 5 * time.Second},
		},
		Storage: StorageConfig{
			Positions:             PositionsMemory,
			Migrate:               true,
			MemoryJournalPerToken: 1000,
		},
	}
}

// Load reads .env (if present), the YAML file at path (skipped when path is
// empty), applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	// Ignore error so the service still starts when .env is missing.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "SENTINEL_HTTP_ADDR")
	setString(&c.Log.Level, "SENTINEL_LOG_LEVEL")
	setString(&c.Log.Format, "SENTINEL_LOG_FORMAT")
	setString(&c.Solana.RPCEndpoint, "SOLANA_RPC_ENDPOINT")
	setString(&c.Solana.WSEndpoint, "SOLANA_WS_ENDPOINT")
	setString(&c.RiskAPI.BaseURL, "RISK_API_URL")
	setString(&c.RiskAPI.APIKey, "RISK_API_KEY")
	setString(&c.PriceFeed.BaseURL, "PRICE_API_URL")
	setString(&c.PriceFeed.APIKey, "PRICE_API_KEY")
	setString(&c.Storage.PostgresDSN, "POSTGRES_DSN")
	setString(&c.Storage.ClickHouseDSN, "CLICKHOUSE_DSN")
	setString(&c.Storage.Positions, "SENTINEL_POSITIONS")
	setString(&c.Sinks.Redis.Addr, "REDIS_ADDR")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Sinks.Kafka.Brokers = splitAndTrim(v)
	}
	if v := os.Getenv("SENTINEL_WATCHLIST"); v != "" {
		c.Watchlist = nil
		for _, token := range splitAndTrim(v) {
			c.Watchlist = append(c.Watchlist, WatchItem{Token: token})
		}
	}
	if v := os.Getenv("SENTINEL_FAIL_CLOSED_ON_RISK_OUTAGE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: SENTINEL_FAIL_CLOSED_ON_RISK_OUTAGE: %v", ErrInvalidConfig, err)
		}
		c.Validation.FailClosedOnRiskOutage = b
	}
	for key, dst := range map[string]*time.Duration{
		"SENTINEL_SIGNAL_INTERVAL":   &c.Monitor.SignalInterval,
		"SENTINEL_POSITION_INTERVAL": &c.Monitor.PositionInterval,
	} {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if c.Solana.RPCEndpoint == "" {
		return ErrMissingRPCEndpoint
	}
	if c.PriceFeed.BaseURL == "" {
		return ErrMissingPriceAPI
	}
	if c.Monitor.SignalInterval <= 0 || c.Monitor.PositionInterval <= 0 {
		return fmt.Errorf("%w: monitor intervals must be positive", ErrInvalidConfig)
	}
	switch c.Storage.Positions {
	case PositionsMemory:
	case PositionsPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: storage.positions=postgres requires storage.postgres_dsn", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage.positions %q", ErrInvalidConfig, c.Storage.Positions)
	}
	if len(c.Strategies) > 0 {
		if _, err := strategy.FromConfigs(c.Strategies); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	for i, w := range c.Watchlist {
		if w.Token == "" {
			return fmt.Errorf("%w: watchlist[%d]: token is required", ErrInvalidConfig, i)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
