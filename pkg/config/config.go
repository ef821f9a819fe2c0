package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// UniverseEntry maps a trading symbol to its broker instrument token.
type UniverseEntry struct {
	Symbol string `yaml:"symbol" validate:"required"`
	Token  string `yaml:"token" validate:"required"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`

	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`

	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`

	Redis struct {
		Addr         string `yaml:"addr" default:"localhost:6379"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		CandleStream string `yaml:"candle_stream" default:"candle_1m"`
		SnapshotKey  string `yaml:"snapshot_key" default:"live_ohlc_data"`
		LevelsKey    string `yaml:"levels_key" default:"prev_day_ohlc"`
	} `yaml:"redis"`

	Broker struct {
		BaseURL      string        `yaml:"base_url" validate:"required"`
		APIKey       string        `yaml:"api_key"`
		ClientCode   string        `yaml:"client_code"`
		AccessToken  string        `yaml:"access_token"`
		RefreshToken string        `yaml:"refresh_token"`
		FeedToken    string        `yaml:"feed_token"`
		Timeout      time.Duration `yaml:"timeout" default:"10s"`
		RateDelay    time.Duration `yaml:"rate_delay" default:"350ms"` // historical API allows ~3 req/s
	} `yaml:"broker"`

	Feed struct {
		URL            string        `yaml:"url" validate:"required"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"feed"`

	Engine struct {
		User              string        `yaml:"user" default:"default"`
		Timezone          string        `yaml:"timezone" default:"Asia/Kolkata"`
		BatchSize         int           `yaml:"batch_size" default:"10"`
		BlockTimeout      time.Duration `yaml:"block_timeout" default:"1s"`
		ReconcileInterval time.Duration `yaml:"reconcile_interval" default:"5s"`
	} `yaml:"engine"`

	Strategy struct {
		Active           bool    `yaml:"active" default:"true"`
		StartTime        string  `yaml:"start_time" default:"09:15"`
		EndTime          string  `yaml:"end_time" default:"15:15"`
		MaxTotalTrades   int     `yaml:"max_total_trades" default:"5"`
		PerTradeSLAmount float64 `yaml:"per_trade_sl_amount" default:"500"`
		PnLExitEnabled   bool    `yaml:"pnl_exit_enabled"`
		ProfitTarget     float64 `yaml:"profit_target" default:"2000"`
		MaxLoss          float64 `yaml:"max_loss" default:"1000"`
	} `yaml:"strategy"`

	Ledger struct {
		Path string `yaml:"path" default:"trades.db"`
	} `yaml:"ledger"`

	Archive struct {
		Backend string `yaml:"backend" default:"none" validate:"oneof=none kafka clickhouse"`
		Kafka   struct {
			Brokers      []string      `yaml:"brokers"`
			Topic        string        `yaml:"topic" default:"candles_1m"`
			RequiredAcks int           `yaml:"required_acks" default:"-1"`
			Compression  string        `yaml:"compression" default:"gzip"`
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"kafka"`
		ClickHouse struct {
			Host        string        `yaml:"host" default:"localhost"`
			Port        int           `yaml:"port" default:"9000"`
			Database    string        `yaml:"database" default:"breakout"`
			User        string        `yaml:"user" default:"default"`
			Password    string        `yaml:"password"`
			Table       string        `yaml:"table" default:"candles_1m"`
			DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
		} `yaml:"clickhouse"`
	} `yaml:"archive"`

	Universe []UniverseEntry `yaml:"universe" validate:"min=1,dive"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file, applying defaults and
// validating required fields.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides credentials and endpoints
// with environment variables. Secrets are expected from the environment in
// production.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("BROKER_API_KEY"); v != "" {
		c.Broker.APIKey = v
	}
	if v := os.Getenv("BROKER_CLIENT_CODE"); v != "" {
		c.Broker.ClientCode = v
	}
	if v := os.Getenv("BROKER_ACCESS_TOKEN"); v != "" {
		c.Broker.AccessToken = v
	}
	if v := os.Getenv("BROKER_REFRESH_TOKEN"); v != "" {
		c.Broker.RefreshToken = v
	}
	if v := os.Getenv("BROKER_FEED_TOKEN"); v != "" {
		c.Broker.FeedToken = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Archive.Kafka.Brokers = strings.Split(v, ",")
	}

	return c, nil
}

// CheckCredentials enforces the fatal-only startup condition: without broker
// credentials the engine cannot run at all. Everything else degrades.
func (c *Config) CheckCredentials() error {
	if c.Broker.APIKey == "" || c.Broker.AccessToken == "" {
		return fmt.Errorf("broker credentials missing: set broker.api_key and broker.access_token (or BROKER_API_KEY / BROKER_ACCESS_TOKEN)")
	}
	return nil
}

// TokenMap returns the instrument-token to symbol mapping used by the feed.
func (c *Config) TokenMap() map[string]string {
	m := make(map[string]string, len(c.Universe))
	for _, u := range c.Universe {
		m[u.Token] = u.Symbol
	}
	return m
}
