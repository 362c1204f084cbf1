// Package config loads the run configuration from YAML or JSON files with
// environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/portsim/risk"
)

// EnvPrefix is the prefix of every environment override, e.g. PORTSIM_WORKERS.
const EnvPrefix = "portsim"

// Config represents the complete simulation configuration
type Config struct {
	Account    AccountConfig    `json:"account" yaml:"account"`
	Risk       risk.Config      `json:"risk" yaml:"risk"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Stats      StatsConfig      `json:"stats" yaml:"stats"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	ID          string  `json:"id" yaml:"id"`
	Currency    string  `json:"currency" yaml:"currency"`
	InitialCash float64 `json:"initial_cash" yaml:"initial_cash"`
}

// SimulationConfig contains simulation parameters
type SimulationConfig struct {
	Workers            int    `json:"workers" yaml:"workers"`
	VolatilityLookback int    `json:"volatility_lookback" yaml:"volatility_lookback"`
	VolatilityMethod   string `json:"volatility_method" yaml:"volatility_method"` // "returns", "atr" or "ewma"
	LiquidateAtEnd     bool   `json:"liquidate_at_end" yaml:"liquidate_at_end"`
	Benchmark          string `json:"benchmark,omitempty" yaml:"benchmark,omitempty"` // bar file
}

// StatsConfig contains statistics parameters
type StatsConfig struct {
	RiskFreeRate float64 `json:"risk_free_rate" yaml:"risk_free_rate"` // annual
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	RunsFile   string `json:"runs_file,omitempty" yaml:"runs_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	OrgDir     string `json:"org_dir,omitempty" yaml:"org_dir,omitempty"`
}

// LoggingConfig contains logger parameters
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "text" or "json"
}

// LoadFromFile loads configuration from a file (JSON or YAML), applies
// environment overrides and validates the result. Fields the file omits
// keep their Default values.
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

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Load reads path when it is not empty, otherwise starts from Default.
// Environment overrides and validation apply either way.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}
	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envOverrides lists the settings that can come from the environment.
type envOverrides struct {
	LogLevel     string  `envconfig:"LOG_LEVEL"`
	LogFormat    string  `envconfig:"LOG_FORMAT"`
	Workers      int     `envconfig:"WORKERS"`
	DBPath       string  `envconfig:"DB_PATH"`
	JournalType  string  `envconfig:"JOURNAL"`
	RiskFreeRate float64 `envconfig:"RISK_FREE_RATE"`
	InitialCash  float64 `envconfig:"INITIAL_CASH"`
}

// ApplyEnv overwrites settings with PORTSIM_* environment variables that
// are set. Unset variables leave the current values alone.
func (c *Config) ApplyEnv() error {
	env := envOverrides{
		LogLevel:     c.Logging.Level,
		LogFormat:    c.Logging.Format,
		Workers:      c.Simulation.Workers,
		DBPath:       c.Journal.DBPath,
		JournalType:  c.Journal.Type,
		RiskFreeRate: c.Stats.RiskFreeRate,
		InitialCash:  c.Account.InitialCash,
	}
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	c.Logging.Level = env.LogLevel
	c.Logging.Format = env.LogFormat
	c.Simulation.Workers = env.Workers
	c.Journal.DBPath = env.DBPath
	c.Journal.Type = env.JournalType
	c.Stats.RiskFreeRate = env.RiskFreeRate
	c.Account.InitialCash = env.InitialCash
	return nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
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
	if !(c.Account.InitialCash > 0) {
		return fmt.Errorf("account.initial_cash must be positive")
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if c.Simulation.Workers < 0 {
		return fmt.Errorf("simulation.workers must not be negative")
	}
	if c.Simulation.VolatilityLookback < 0 {
		return fmt.Errorf("simulation.volatility_lookback must not be negative")
	}
	switch c.Simulation.VolatilityMethod {
	case "", "returns", "atr", "ewma":
	default:
		return fmt.Errorf("simulation.volatility_method must be 'returns', 'atr' or 'ewma'")
	}
	if c.Stats.RiskFreeRate < 0 || c.Stats.RiskFreeRate >= 1 {
		return fmt.Errorf("stats.risk_free_rate must be in [0, 1)")
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:          "SIM-001",
			Currency:    "USD",
			InitialCash: 100000,
		},
		Risk: risk.DefaultConfig(),
		Simulation: SimulationConfig{
			Workers:            4,
			VolatilityLookback: 20,
			VolatilityMethod:   "returns",
		},
		Stats: StatsConfig{
			RiskFreeRate: 0.02,
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
