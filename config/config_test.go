package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/portsim/risk"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, risk.DefaultConfig(), c.Risk)
	assert.Equal(t, 100000.0, c.Account.InitialCash)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"currency", func(c *Config) { c.Account.Currency = "" }, "account.currency"},
		{"cash", func(c *Config) { c.Account.InitialCash = 0 }, "initial_cash"},
		{"risk", func(c *Config) { c.Risk.MaxPositionSizePct = 2 }, "risk:"},
		{"workers", func(c *Config) { c.Simulation.Workers = -1 }, "workers"},
		{"method", func(c *Config) { c.Simulation.VolatilityMethod = "garch" }, "volatility_method"},
		{"rf", func(c *Config) { c.Stats.RiskFreeRate = 1.5 }, "risk_free_rate"},
		{"csv", func(c *Config) { c.Journal.Type = "csv" }, "trades_file"},
		{"sqlite", func(c *Config) { c.Journal.Type = "sqlite" }, "db_path"},
		{"journal", func(c *Config) { c.Journal.Type = "mongo" }, "journal.type"},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()

	for _, ext := range []string{".yaml", ".json"} {
		ext := ext
		t.Run(ext, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "cfg"+ext)
			c := Default()
			c.Account.InitialCash = 25000
			c.Risk.UseTrailingStop = true
			c.Journal = JournalConfig{Type: "sqlite", DBPath: "runs.db"}
			require.NoError(t, c.SaveToFile(path))

			got, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, c, got)
		})
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account:\n  initial_cash: 5000\n  currency: EUR\nrisk:\n  stop_loss_pct: 0.05\n"), 0o644))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, c.Account.InitialCash)
	assert.Equal(t, "EUR", c.Account.Currency)
	assert.Equal(t, 0.05, c.Risk.StopLossPct)
	assert.Equal(t, risk.DefaultConfig().MaxPositionSizePct, c.Risk.MaxPositionSizePct)
	assert.Equal(t, 20, c.Simulation.VolatilityLookback)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("account:\n  initial_cash: -1\n"), 0o644))
	_, err = LoadFromFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

// Environment tests mutate process state and do not run in parallel.
func TestApplyEnv(t *testing.T) {
	t.Setenv("PORTSIM_WORKERS", "9")
	t.Setenv("PORTSIM_RISK_FREE_RATE", "0")
	t.Setenv("PORTSIM_LOG_LEVEL", "debug")

	c := Default()
	require.NoError(t, c.ApplyEnv())
	assert.Equal(t, 9, c.Simulation.Workers)
	assert.Equal(t, 0.0, c.Stats.RiskFreeRate)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Equal(t, 100000.0, c.Account.InitialCash)
}

func TestApplyEnvBadValue(t *testing.T) {
	t.Setenv("PORTSIM_WORKERS", "many")

	c := Default()
	assert.Error(t, c.ApplyEnv())
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("PORTSIM_INITIAL_CASH", "1234")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1234.0, c.Account.InitialCash)
}
