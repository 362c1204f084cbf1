package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"
	"time"
)

// CSVJournal appends trades, equity snapshots and (optionally) run
// summaries to separate CSV files.
type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	runs   *csv.Writer
	files  []*os.File
}

var (
	tradeHeader  = []string{"run_id", "trade_id", "instrument", "direction", "shares", "entry_price", "exit_price", "open_time", "close_time", "realized_pl", "return_pct", "reason"}
	equityHeader = []string{"run_id", "instrument", "time", "cash", "holdings", "equity"}
	runHeader    = []string{"run_id", "name", "created", "instruments", "start", "end", "initial_cash", "final_value", "trades", "wins", "losses", "total_return", "cagr", "sharpe", "sortino", "max_drawdown", "calmar", "profit_factor", "win_rate"}
)

// NewCSV creates the journal files. runsPath may be empty.
func NewCSV(tradesPath, equityPath, runsPath string) (*CSVJournal, error) {
	j := &CSVJournal{}
	var err error
	if j.trades, err = j.create(tradesPath, tradeHeader); err != nil {
		j.Close()
		return nil, err
	}
	if j.equity, err = j.create(equityPath, equityHeader); err != nil {
		j.Close()
		return nil, err
	}
	if runsPath != "" {
		if j.runs, err = j.create(runsPath, runHeader); err != nil {
			j.Close()
			return nil, err
		}
	}
	return j, nil
}

func (j *CSVJournal) create(path string, header []string) (*csv.Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	j.files = append(j.files, f)

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	w.Flush()
	return w, w.Error()
}

func write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return write(j.trades, []string{
		t.RunID,
		t.TradeID,
		t.Instrument,
		t.Direction,
		strconv.Itoa(t.Shares),
		f(t.EntryPrice),
		f(t.ExitPrice),
		t.OpenTime.Format(time.RFC3339),
		t.CloseTime.Format(time.RFC3339),
		money(t.RealizedPL),
		f(t.ReturnPct),
		t.Reason,
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return write(j.equity, []string{
		e.RunID,
		e.Instrument,
		e.Time.Format(time.RFC3339),
		money(e.Cash),
		money(e.Holdings),
		money(e.Equity),
	})
}

func (j *CSVJournal) RecordRun(r RunRecord) error {
	if j.runs == nil {
		return nil
	}
	return write(j.runs, []string{
		r.RunID,
		r.Name,
		r.Created.Format(time.RFC3339),
		strings.Join(r.Instruments, ";"),
		r.Start.Format(time.RFC3339),
		r.End.Format(time.RFC3339),
		money(r.InitialCash),
		money(r.FinalValue),
		strconv.Itoa(r.Trades),
		strconv.Itoa(r.Wins),
		strconv.Itoa(r.Losses),
		r.TotalReturn.String(),
		r.CAGR.String(),
		r.Sharpe.String(),
		r.Sortino.String(),
		r.MaxDrawdown.String(),
		r.Calmar.String(),
		r.ProfitFactor.String(),
		r.WinRate.String(),
	})
}

func (j *CSVJournal) Close() error {
	var first error
	for _, w := range []*csv.Writer{j.trades, j.equity, j.runs} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil && first == nil {
			first = err
		}
	}
	for _, fh := range j.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.files = nil
	return first
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
