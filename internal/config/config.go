package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"ohlcv-collector/internal/market"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig             `yaml:"log"`
	HTTP      HTTPConfig                `yaml:"http"`
	Request   RequestConfig             `yaml:"request"`
	Collector CollectorConfig           `yaml:"collector"`
	Exchanges map[string]ExchangeConfig `yaml:"exchanges"`
	Symbols   SymbolsConfig             `yaml:"symbols"`
	Export    ExportConfig              `yaml:"export"`
	Metrics   MetricsConfig             `yaml:"metrics"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// RequestConfig describes the collection run: which assets, which
// exchanges, what interval and what date range. Start and End accept
// RFC3339 or plain dates (interpreted as midnight UTC).
type RequestConfig struct {
	Assets    []string `yaml:"assets"`
	Exchanges []string `yaml:"exchanges"`
	Interval  string   `yaml:"interval"`
	Start     string   `yaml:"start"`
	End       string   `yaml:"end"`
}

type CollectorConfig struct {
	MaxRetries        int           `yaml:"max_retries"`
	BackoffBase       time.Duration `yaml:"backoff_base"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BackoffJitter     float64       `yaml:"backoff_jitter"`
	NetworkRetries    int           `yaml:"network_retries"`
	NetworkDelay      time.Duration `yaml:"network_delay"`
	ExchangeWorkers   int           `yaml:"exchange_workers"`
}

// ExchangeConfig overrides one exchange's endpoint and request budget.
type ExchangeConfig struct {
	BaseURL     string  `yaml:"base_url"`
	RatePerSec  float64 `yaml:"rate_per_sec"`
	Burst       int     `yaml:"burst"`
	MaxInFlight int     `yaml:"max_in_flight"`
}

type SymbolsConfig struct {
	// Overrides pins native symbols directly: exchange -> asset ->
	// symbol, winning over the built-in mapping rules.
	Overrides map[string]map[string]string `yaml:"overrides"`
}

type ExportConfig struct {
	CSVPath      string          `yaml:"csv_path"`
	SnapshotPath string          `yaml:"snapshot_path"`
	Timescale    TimescaleConfig `yaml:"timescale"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, validate(&cfg)
}

// applyEnv overlays secrets from the process environment so the DSN
// can stay out of the YAML file. LoadEnv feeds these from a .env file
// at startup.
func applyEnv(cfg *Config) {
	if dsn := os.Getenv("TIMESCALE_DSN"); dsn != "" {
		cfg.Export.Timescale.DSN = dsn
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = 30 * time.Second
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = "ohlcv-collector/1.0"
	}
	if cfg.Request.Interval == "" {
		cfg.Request.Interval = "1d"
	}
	if cfg.Collector.MaxRetries == 0 {
		cfg.Collector.MaxRetries = 5
	}
	if cfg.Collector.BackoffBase == 0 {
		cfg.Collector.BackoffBase = time.Second
	}
	if cfg.Collector.BackoffMax == 0 {
		cfg.Collector.BackoffMax = 30 * time.Second
	}
	if cfg.Collector.BackoffMultiplier == 0 {
		cfg.Collector.BackoffMultiplier = 2.0
	}
	if cfg.Collector.BackoffJitter == 0 {
		cfg.Collector.BackoffJitter = 0.1
	}
	if cfg.Collector.NetworkRetries == 0 {
		cfg.Collector.NetworkRetries = 2
	}
	if cfg.Collector.NetworkDelay == 0 {
		cfg.Collector.NetworkDelay = 2 * time.Second
	}
	if cfg.Collector.ExchangeWorkers == 0 {
		cfg.Collector.ExchangeWorkers = 2
	}
	if cfg.Export.CSVPath == "" {
		cfg.Export.CSVPath = "data/candles.csv"
	}
	if cfg.Export.Timescale.Schema == "" {
		cfg.Export.Timescale.Schema = "public"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
}

func validate(cfg *Config) error {
	if len(cfg.Request.Assets) == 0 {
		return errors.New("request.assets is required")
	}
	if len(cfg.Request.Exchanges) == 0 {
		return errors.New("request.exchanges is required")
	}
	if _, err := market.ParseInterval(cfg.Request.Interval); err != nil {
		return fmt.Errorf("request.interval: %w", err)
	}
	if _, err := cfg.Request.ParseWindow(); err != nil {
		return err
	}
	if cfg.Export.Timescale.Enabled && cfg.Export.Timescale.DSN == "" {
		return errors.New("export.timescale.dsn is required when timescale is enabled")
	}
	return nil
}

// ParseWindow resolves the configured date range into a half-open UTC
// window.
func (r RequestConfig) ParseWindow() (market.Window, error) {
	start, err := parseTime(r.Start)
	if err != nil {
		return market.Window{}, fmt.Errorf("request.start: %w", err)
	}
	end, err := parseTime(r.End)
	if err != nil {
		return market.Window{}, fmt.Errorf("request.end: %w", err)
	}
	if !end.After(start) {
		return market.Window{}, errors.New("request window is empty or inverted")
	}
	return market.Window{Start: start, End: end}, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("value is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse %q as RFC3339 or YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}
