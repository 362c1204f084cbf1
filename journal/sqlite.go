package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/portsim/stats"
)

var ErrNotFound = errors.New("journal: not found")

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, run_id, instrument, direction, shares, entry_price, exit_price, open_time, close_time, realized_pl, return_pct, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.RunID, t.Instrument, t.Direction, t.Shares, t.EntryPrice,
		t.ExitPrice, t.OpenTime.UTC(), t.CloseTime.UTC(), t.RealizedPL, t.ReturnPct, t.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, instrument, time, cash, holdings, equity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Instrument, e.Time.UTC(), e.Cash, e.Holdings, e.Equity,
	)
	return err
}

func (j *SQLite) RecordRun(r RunRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO runs
		(run_id, name, created, instruments, start_time, end_time, initial_cash, final_value,
		 trades, wins, losses, total_return, cagr, sharpe, sortino, max_drawdown, calmar,
		 profit_factor, win_rate, config, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Name, r.Created.UTC(), strings.Join(r.Instruments, ","), r.Start.UTC(), r.End.UTC(),
		r.InitialCash, r.FinalValue, r.Trades, r.Wins, r.Losses,
		nullable(r.TotalReturn), nullable(r.CAGR), nullable(r.Sharpe), nullable(r.Sortino),
		nullable(r.MaxDrawdown), nullable(r.Calmar), nullable(r.ProfitFactor), nullable(r.WinRate),
		r.Config, strings.Join(r.Notes, "\n"),
	)
	return err
}

// nullable stores undefined metrics as NULL.
func nullable(v stats.Value) sql.NullFloat64 {
	x, ok := v.Float()
	return sql.NullFloat64{Float64: x, Valid: ok}
}

func fromNull(n sql.NullFloat64) stats.Value {
	if !n.Valid {
		return stats.Undefined()
	}
	return stats.Defined(n.Float64)
}

const runColumns = `run_id, name, created, instruments, start_time, end_time, initial_cash, final_value,
	trades, wins, losses, total_return, cagr, sharpe, sortino, max_drawdown, calmar,
	profit_factor, win_rate, config, notes`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunRecord, error) {
	var r RunRecord
	var instruments, notes string
	var tr, cagr, sharpe, sortino, mdd, calmar, pf, wr sql.NullFloat64
	err := s.Scan(&r.RunID, &r.Name, &r.Created, &instruments, &r.Start, &r.End,
		&r.InitialCash, &r.FinalValue, &r.Trades, &r.Wins, &r.Losses,
		&tr, &cagr, &sharpe, &sortino, &mdd, &calmar, &pf, &wr, &r.Config, &notes)
	if err != nil {
		return RunRecord{}, err
	}
	if instruments != "" {
		r.Instruments = strings.Split(instruments, ",")
	}
	if notes != "" {
		r.Notes = strings.Split(notes, "\n")
	}
	r.TotalReturn, r.CAGR, r.Sharpe, r.Sortino = fromNull(tr), fromNull(cagr), fromNull(sharpe), fromNull(sortino)
	r.MaxDrawdown, r.Calmar, r.ProfitFactor, r.WinRate = fromNull(mdd), fromNull(calmar), fromNull(pf), fromNull(wr)
	return r, nil
}

func (j *SQLite) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return r, err
}

// ListRuns returns every run, newest first.
func (j *SQLite) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created DESC, run_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const tradeColumns = `run_id, trade_id, instrument, direction, shares, entry_price, exit_price, open_time, close_time, realized_pl, return_pct, reason`

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.RunID,
		&rec.TradeID,
		&rec.Instrument,
		&rec.Direction,
		&rec.Shares,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.RealizedPL,
		&rec.ReturnPct,
		&rec.Reason,
	)
	return rec, err
}

func (j *SQLite) queryTrades(ctx context.Context, query string, args ...any) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(ctx context.Context, tradeID string) (TradeRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)
	rec, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TradeRecord{}, fmt.Errorf("trade %q: %w", tradeID, ErrNotFound)
	}
	return rec, err
}

func (j *SQLite) ListTradesByRunID(ctx context.Context, runID string) ([]TradeRecord, error) {
	return j.queryTrades(ctx, `SELECT `+tradeColumns+` FROM trades WHERE run_id = ? ORDER BY open_time ASC, instrument ASC`, runID)
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(ctx context.Context, start, end time.Time) ([]TradeRecord, error) {
	return j.queryTrades(ctx, `SELECT `+tradeColumns+` FROM trades WHERE close_time >= ? AND close_time < ? ORDER BY close_time ASC`, start.UTC(), end.UTC())
}

// ListEquityByRunID returns snapshots of one run. An empty instrument
// selects every row; PortfolioInstrument selects the combined series.
func (j *SQLite) ListEquityByRunID(ctx context.Context, runID, instrument string) ([]EquitySnapshot, error) {
	q := `SELECT run_id, instrument, time, cash, holdings, equity FROM equity WHERE run_id = ?`
	args := []any{runID}
	if instrument != "" {
		q += ` AND instrument = ?`
		args = append(args, instrument)
	}
	q += ` ORDER BY time ASC, instrument ASC`

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.RunID, &e.Instrument, &e.Time, &e.Cash, &e.Holdings, &e.Equity); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ExportRunOrg loads a run with its trades and renders the Org report.
func (j *SQLite) ExportRunOrg(ctx context.Context, runID string) (string, error) {
	run, err := j.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	trades, err := j.ListTradesByRunID(ctx, runID)
	if err != nil {
		return "", err
	}
	return FormatRunOrg(run, trades)
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
