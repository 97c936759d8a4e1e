package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/sim"
	"github.com/rustyeddy/papertrader/store"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvAPIKey overrides pricing.api_key when set.
const EnvAPIKey = "FINNHUB_API_KEY"

// Config represents the complete paper trader configuration
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Fees    FeesConfig    `json:"fees" yaml:"fees"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Pricing PricingConfig `json:"pricing" yaml:"pricing"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Audit   AuditConfig   `json:"audit,omitempty" yaml:"audit,omitempty"`
}

// AccountConfig holds the starting balance. Amounts are decimal strings
// so no precision is lost on the way through YAML or JSON.
type AccountConfig struct {
	StartingCash string `json:"starting_cash" yaml:"starting_cash"`
	Currency     string `json:"currency" yaml:"currency"`
}

// FeesConfig holds the fractional rates applied to every fill
type FeesConfig struct {
	CommissionRate string `json:"commission_rate" yaml:"commission_rate"`
	SlippageRate   string `json:"slippage_rate" yaml:"slippage_rate"`
}

// StoreConfig selects where the portfolio snapshot lives
type StoreConfig struct {
	Type string `json:"type" yaml:"type"` // "file", "sqlite" or "memory"
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// PricingConfig configures the quote gateway
type PricingConfig struct {
	Provider    string `json:"provider" yaml:"provider"` // "finnhub" or "synthetic"
	APIKey      string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL     string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	QuoteTTL    string `json:"quote_ttl" yaml:"quote_ttl"`       // e.g. "2m"
	MinInterval string `json:"min_interval" yaml:"min_interval"` // e.g. "150ms"
	RedisURL    string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	Fallback    bool   `json:"fallback" yaml:"fallback"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	// AllowClientPrice lets POST /api/v1/orders carry its own price.
	AllowClientPrice bool `json:"allow_client_price" yaml:"allow_client_price"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "text" or "json"
}

// AuditConfig names optional CSV files that receive every trade and
// valuation as it happens. Leave both empty to disable.
type AuditConfig struct {
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
}

// Enabled reports whether an audit trail is configured.
func (a AuditConfig) Enabled() bool { return a.TradesFile != "" }

// LoadFromFile loads configuration from a file (YAML or JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.ApplyEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Load reads path, or returns the defaults when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		cfg.ApplyEnv()
		return cfg, cfg.Validate()
	}
	return LoadFromFile(path)
}

// ApplyEnv copies overrides from the environment.
func (c *Config) ApplyEnv() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.Pricing.APIKey = key
	}
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	// Determine format by extension
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	cash, err := decimal.NewFromString(c.Account.StartingCash)
	if err != nil || !cash.IsPositive() {
		return fmt.Errorf("account.starting_cash must be a positive decimal")
	}
	if _, err := c.Rates(); err != nil {
		return err
	}

	switch c.Store.Type {
	case store.TypeMemory:
	case store.TypeFile, store.TypeSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path required for %s store", c.Store.Type)
		}
	default:
		return fmt.Errorf("store.type must be 'file', 'sqlite' or 'memory'")
	}

	if c.Pricing.Provider != "finnhub" && c.Pricing.Provider != "synthetic" {
		return fmt.Errorf("pricing.provider must be 'finnhub' or 'synthetic'")
	}
	if _, err := c.QuoteTTL(); err != nil {
		return fmt.Errorf("pricing.quote_ttl: %w", err)
	}
	if _, err := c.MinInterval(); err != nil {
		return fmt.Errorf("pricing.min_interval: %w", err)
	}

	if (c.Audit.TradesFile == "") != (c.Audit.EquityFile == "") {
		return fmt.Errorf("audit trades_file and equity_file must be set together")
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	return nil
}

// StartingCash parses account.starting_cash.
func (c *Config) StartingCash() (decimal.Decimal, error) {
	return decimal.NewFromString(c.Account.StartingCash)
}

// Rates parses the fee section.
func (c *Config) Rates() (sim.Rates, error) {
	commission, err := decimal.NewFromString(c.Fees.CommissionRate)
	if err != nil || commission.IsNegative() {
		return sim.Rates{}, fmt.Errorf("fees.commission_rate must be a non-negative decimal")
	}
	slippage, err := decimal.NewFromString(c.Fees.SlippageRate)
	if err != nil || slippage.IsNegative() {
		return sim.Rates{}, fmt.Errorf("fees.slippage_rate must be a non-negative decimal")
	}
	rates := sim.Rates{Commission: commission, Slippage: slippage}
	if err := rates.Validate(); err != nil {
		return sim.Rates{}, fmt.Errorf("fees: %w", err)
	}
	return rates, nil
}

// QuoteTTL converts pricing.quote_ttl to a time.Duration
func (c *Config) QuoteTTL() (time.Duration, error) {
	return parseDuration(c.Pricing.QuoteTTL)
}

// MinInterval converts pricing.min_interval to a time.Duration
func (c *Config) MinInterval() (time.Duration, error) {
	return parseDuration(c.Pricing.MinInterval)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %s is negative", s)
	}
	return d, nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			StartingCash: "1000000",
			Currency:     "INR",
		},
		Fees: FeesConfig{
			CommissionRate: "0.001",
			SlippageRate:   "0.0005",
		},
		Store: StoreConfig{
			Type: store.TypeFile,
			Path: "./papertrader.json",
		},
		Pricing: PricingConfig{
			Provider:    "finnhub",
			QuoteTTL:    "2m",
			MinInterval: "150ms",
			Fallback:    true,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
