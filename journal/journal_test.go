package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/portsim/backtest"
	"github.com/rustyeddy/portsim/market"
	"github.com/rustyeddy/portsim/portfolio"
	"github.com/rustyeddy/portsim/stats"
)

type memJournal struct {
	trades []TradeRecord
	equity []EquitySnapshot
	runs   []RunRecord
	closed bool
}

func (m *memJournal) RecordTrade(t TradeRecord) error {
	m.trades = append(m.trades, t)
	return nil
}

func (m *memJournal) RecordEquity(e EquitySnapshot) error {
	m.equity = append(m.equity, e)
	return nil
}

func (m *memJournal) RecordRun(r RunRecord) error {
	m.runs = append(m.runs, r)
	return nil
}

func (m *memJournal) Close() error {
	m.closed = true
	return nil
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func sampleTrade() portfolio.Trade {
	return portfolio.Trade{
		ID:         "01HZZZZZZZZZZZZZZZZABCDEFGH",
		Instrument: "AAA",
		EntryTime:  day(2),
		ExitTime:   day(5),
		EntryPrice: 100,
		ExitPrice:  110,
		Shares:     100,
		Direction:  market.Long,
		PnL:        1000,
		PnLPct:     0.1,
		Reason:     portfolio.ReasonSignal,
		Duration:   72 * time.Hour,
	}
}

func sampleAggregate() backtest.AggregateResult {
	return backtest.AggregateResult{
		Values: market.Series{{Time: day(1), Value: 10000}, {Time: day(5), Value: 11000}},
		Trades: []portfolio.Trade{sampleTrade()},
		Instruments: []backtest.InstrumentResult{{
			Instrument: "AAA",
			Snapshots: []portfolio.Snapshot{
				{Time: day(1), Cash: 10000, Total: 10000},
				{Time: day(5), Cash: 11000, Total: 11000},
			},
		}},
		Dropped: []string{"BBB"},
	}
}

func TestWriteRun(t *testing.T) {
	t.Parallel()

	agg := sampleAggregate()
	rep := stats.Compute(agg.Values, nil, agg.Trades, stats.Options{})
	rec := NewRunRecord("RUN1", "smoke", 10000, agg, rep)

	assert.Equal(t, []string{"AAA"}, rec.Instruments)
	assert.Equal(t, 1, rec.Trades)
	assert.Equal(t, 1000.0, rec.NetPL())
	assert.Contains(t, rec.Notes, "no data for BBB")

	m := &memJournal{}
	require.NoError(t, WriteRun(m, rec, agg))

	require.Len(t, m.runs, 1)
	require.Len(t, m.trades, 1)
	assert.Equal(t, "RUN1", m.trades[0].RunID)
	assert.Equal(t, "LONG", m.trades[0].Direction)
	assert.Equal(t, "signal", m.trades[0].Reason)

	// two instrument snapshots then two combined points
	require.Len(t, m.equity, 4)
	assert.Equal(t, "AAA", m.equity[0].Instrument)
	assert.Equal(t, PortfolioInstrument, m.equity[3].Instrument)
	assert.Equal(t, 11000.0, m.equity[3].Equity)
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	var j Journal = Discard{}
	assert.NoError(t, WriteRun(j, RunRecord{RunID: "x"}, sampleAggregate()))
	assert.NoError(t, j.Close())
}

func TestCSVJournal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tp := filepath.Join(dir, "trades.csv")
	ep := filepath.Join(dir, "equity.csv")
	rp := filepath.Join(dir, "runs.csv")

	j, err := NewCSV(tp, ep, rp)
	require.NoError(t, err)

	agg := sampleAggregate()
	rec := NewRunRecord("RUN1", "csv", 10000, agg, stats.Compute(agg.Values, nil, agg.Trades, stats.Options{}))
	require.NoError(t, WriteRun(j, rec, agg))
	require.NoError(t, j.Close())

	trades := readCSV(t, tp)
	require.Len(t, trades, 2)
	assert.Equal(t, tradeHeader, trades[0])
	assert.Equal(t, "RUN1", trades[1][0])
	assert.Equal(t, "100", trades[1][4])
	assert.Equal(t, "1000.00", trades[1][9])

	equity := readCSV(t, ep)
	assert.Len(t, equity, 5)
	assert.Equal(t, "11000.00", equity[4][5])

	runs := readCSV(t, rp)
	require.Len(t, runs, 2)
	assert.Equal(t, "AAA", runs[1][3])
	assert.Equal(t, "10000.00", runs[1][6])
}

func TestCSVJournalWithoutRuns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(filepath.Join(dir, "t.csv"), filepath.Join(dir, "e.csv"), "")
	require.NoError(t, err)
	assert.NoError(t, j.RecordRun(RunRecord{RunID: "x"}))
	assert.NoError(t, j.Close())
}

func TestNewCSVBadPath(t *testing.T) {
	t.Parallel()

	_, err := NewCSV(filepath.Join(t.TempDir(), "missing", "t.csv"), "e.csv", "")
	assert.Error(t, err)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestEquityParquet(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "equity.parquet")
	in := []EquitySnapshot{
		{RunID: "R", Instrument: "AAA", Time: day(1), Cash: 1, Holdings: 2, Equity: 3},
		{RunID: "R", Instrument: PortfolioInstrument, Time: day(2), Equity: 4},
	}
	require.NoError(t, WriteEquityParquet(path, in))

	out, err := ReadEquityParquet(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
