// Package config loads and validates the trading loop configuration.
// Files may be YAML or JSON; validation happens at load time so an
// invalid configuration never reaches the control loop.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for one portfolio.
type Config struct {
	Account Account `json:"account" yaml:"account"`
	Trading Trading `json:"trading" yaml:"trading"`
	Market  Market  `json:"market" yaml:"market"`
	Storage Storage `json:"storage" yaml:"storage"`
}

// Account contains portfolio initialization parameters.
type Account struct {
	Currency     string  `json:"currency" yaml:"currency"`
	StartingCash float64 `json:"starting_cash" yaml:"starting_cash"`
}

// Trading contains the risk and sizing limits the execution engine
// enforces.
type Trading struct {
	StopLossPct  float64  `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	MaxPositions int      `json:"max_positions" yaml:"max_positions"`
	MaxAllocPct  float64  `json:"max_alloc_pct" yaml:"max_alloc_pct"`
	RiskFreeRate float64  `json:"risk_free_rate" yaml:"risk_free_rate"`
	Universe     []string `json:"universe,omitempty" yaml:"universe,omitempty"`
}

// Market contains data-source parameters.
type Market struct {
	FetchTimeout string   `json:"fetch_timeout,omitempty" yaml:"fetch_timeout,omitempty"`
	HistoryDays  int      `json:"history_days,omitempty" yaml:"history_days,omitempty"`
	Benchmarks   []string `json:"benchmarks,omitempty" yaml:"benchmarks,omitempty"`
}

// Storage contains the paths for the journal database and the pending
// order queue.
type Storage struct {
	DBPath     string `json:"db_path" yaml:"db_path"`
	OrdersFile string `json:"orders_file" yaml:"orders_file"`
}

// ParseFetchTimeout converts the fetch timeout string to a duration.
func (m Market) ParseFetchTimeout() (time.Duration, error) {
	if m.FetchTimeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(m.FetchTimeout)
}

// LoadFromFile loads configuration from a file (YAML or JSON based on
// content) and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes the configuration, as YAML for .yaml/.yml paths and
// JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration and returns the first violation.
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.StartingCash <= 0 {
		return fmt.Errorf("account.starting_cash must be positive")
	}
	if c.Trading.StopLossPct <= 0 || c.Trading.StopLossPct >= 1 {
		return fmt.Errorf("trading.stop_loss_pct must be between 0 and 1 exclusive")
	}
	if c.Trading.MaxPositions < 1 {
		return fmt.Errorf("trading.max_positions must be at least 1")
	}
	if c.Trading.MaxAllocPct <= 0 || c.Trading.MaxAllocPct > 1 {
		return fmt.Errorf("trading.max_alloc_pct must be in (0, 1]")
	}
	if c.Trading.RiskFreeRate < 0 {
		return fmt.Errorf("trading.risk_free_rate must not be negative")
	}
	for _, t := range append(append([]string{}, c.Trading.Universe...), c.Market.Benchmarks...) {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("tickers must not be blank")
		}
	}
	if c.Market.HistoryDays < 0 {
		return fmt.Errorf("market.history_days must not be negative")
	}
	if _, err := c.Market.ParseFetchTimeout(); err != nil {
		return fmt.Errorf("market.fetch_timeout: %w", err)
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.OrdersFile == "" {
		return fmt.Errorf("storage.orders_file is required")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: Account{
			Currency:     "USD",
			StartingCash: 10000,
		},
		Trading: Trading{
			StopLossPct:  0.10,
			MaxPositions: 5,
			MaxAllocPct:  0.20,
			RiskFreeRate: 0.045,
			Universe:     []string{"SPY", "IWM", "QQQ", "XBI"},
		},
		Market: Market{
			FetchTimeout: "30s",
			HistoryDays:  30,
			Benchmarks:   []string{"SPY", "IWM"},
		},
		Storage: Storage{
			DBPath:     "./autofolio.db",
			OrdersFile: "./orders_queue.json",
		},
	}
}
