package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/portsim/feed"
	"github.com/rustyeddy/portsim/market"
)

// Commands share package-level flag state, so these tests run serially.

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func writeBars(t *testing.T, dir, name string, start float64) string {
	t.Helper()
	var bars []market.Bar
	px := start
	for i := 0; i < 30; i++ {
		b := market.Bar{
			Time:  time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
			Open:  px,
			High:  px * 1.01,
			Low:   px * 0.99,
			Close: px * 1.002,
		}
		switch i {
		case 2:
			b.Signal = market.EnterLong
		case 20:
			b.Signal = market.Exit
		}
		bars = append(bars, b)
		px = b.Close
	}
	path := filepath.Join(dir, name)
	require.NoError(t, feed.WriteCSV(path, bars))
	return path
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, "portsim version "+version)
}

func TestRunCommandJSON(t *testing.T) {
	dir := t.TempDir()
	a := writeBars(t, dir, "AAA.csv", 100)
	b := writeBars(t, dir, "BBB.csv", 50)

	out := execute(t, "run", "-d", "AAA="+a, "-d", "BBB="+b, "--json")

	var got struct {
		RunID   string         `json:"run_id"`
		Metrics map[string]any `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.NotEmpty(t, got.RunID)
	assert.EqualValues(t, 2, got.Metrics["total_trades"])
	assert.Contains(t, got.Metrics, "sharpe")
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portsim.yaml")

	out := execute(t, "config", "init", "-o", path)
	assert.Contains(t, out, "Created default configuration")

	out = execute(t, "config", "validate", "-f", path)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "Journal: none")
}

func TestSweepCommand(t *testing.T) {
	dir := t.TempDir()
	writeBars(t, dir, "AAA.csv", 100)

	out := execute(t, "sweep", "--dir", dir, "-a", "stop_loss_pct=0.01,0.02", "--metric", "total_return")
	assert.Contains(t, out, "2 runs: 2 succeeded, 0 failed")
	assert.Contains(t, out, "stop_loss_pct=0.01")
}

func TestDayBounds(t *testing.T) {
	start, end, err := dayBounds(time.UTC, "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	_, _, err = dayBounds(time.UTC, "10/03/2024")
	assert.Error(t, err)
}
