// Package journal persists simulation output: closed trades, valuation
// snapshots and one summary row per run.
package journal

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/portsim/backtest"
	"github.com/rustyeddy/portsim/portfolio"
	"github.com/rustyeddy/portsim/stats"
)

// PortfolioInstrument labels equity rows of the combined portfolio.
const PortfolioInstrument = "*"

type TradeRecord struct {
	RunID      string
	TradeID    string
	Instrument string
	Direction  string
	Shares     int
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	ReturnPct  float64
	Reason     string
}

type EquitySnapshot struct {
	RunID      string
	Instrument string
	Time       time.Time
	Cash       float64
	Holdings   float64
	Equity     float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	RecordRun(RunRecord) error
	Close() error
}

func FromTrade(runID string, t portfolio.Trade) TradeRecord {
	return TradeRecord{
		RunID:      runID,
		TradeID:    t.ID,
		Instrument: t.Instrument,
		Direction:  t.Direction.String(),
		Shares:     t.Shares,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		OpenTime:   t.EntryTime,
		CloseTime:  t.ExitTime,
		RealizedPL: t.PnL,
		ReturnPct:  t.PnLPct,
		Reason:     string(t.Reason),
	}
}

func FromSnapshot(runID, instrument string, s portfolio.Snapshot) EquitySnapshot {
	return EquitySnapshot{
		RunID:      runID,
		Instrument: instrument,
		Time:       s.Time,
		Cash:       s.Cash,
		Holdings:   s.Holdings,
		Equity:     s.Total,
	}
}

// RunRecord summarizes one full simulation run.
type RunRecord struct {
	RunID       string
	Name        string
	Created     time.Time
	Instruments []string
	Start       time.Time
	End         time.Time

	InitialCash float64
	FinalValue  float64

	Trades int
	Wins   int
	Losses int

	TotalReturn  stats.Value
	CAGR         stats.Value
	Sharpe       stats.Value
	Sortino      stats.Value
	MaxDrawdown  stats.Value
	Calmar       stats.Value
	ProfitFactor stats.Value
	WinRate      stats.Value

	Config []byte // risk configuration as JSON
	Notes  []string
}

// NewRunRecord builds the summary row for an aggregate run and its report.
func NewRunRecord(runID, name string, initialCash float64, agg backtest.AggregateResult, rep stats.Report) RunRecord {
	names := make([]string, 0, len(agg.Instruments))
	for _, r := range agg.Instruments {
		names = append(names, r.Instrument)
	}

	rec := RunRecord{
		RunID:        runID,
		Name:         name,
		Created:      time.Now().UTC(),
		Instruments:  names,
		Start:        rep.Start,
		End:          rep.End,
		InitialCash:  initialCash,
		FinalValue:   rep.FinalValue,
		Trades:       rep.Trades.Total,
		Wins:         rep.Trades.Wins,
		Losses:       rep.Trades.Losses,
		TotalReturn:  rep.TotalReturn,
		CAGR:         rep.CAGR,
		Sharpe:       rep.Sharpe,
		Sortino:      rep.Sortino,
		MaxDrawdown:  rep.MaxDrawdown,
		Calmar:       rep.Calmar,
		ProfitFactor: rep.Trades.ProfitFactor,
		WinRate:      rep.Trades.WinRate,
	}
	if len(agg.Dropped) > 0 {
		rec.Notes = append(rec.Notes, "no data for "+strings.Join(agg.Dropped, ", "))
	}
	if agg.Empty() {
		rec.Notes = append(rec.Notes, "instruments share no common dates")
	}
	return rec
}

// NetPL is final value minus initial cash, rounded to cents.
func (r RunRecord) NetPL() float64 {
	pl, _ := decimal.NewFromFloat(r.FinalValue).Sub(decimal.NewFromFloat(r.InitialCash)).Round(2).Float64()
	return pl
}

// WriteRun records the run summary, every trade and every snapshot of the
// aggregate result.
func WriteRun(j Journal, rec RunRecord, agg backtest.AggregateResult) error {
	if err := j.RecordRun(rec); err != nil {
		return err
	}
	for _, t := range agg.Trades {
		if err := j.RecordTrade(FromTrade(rec.RunID, t)); err != nil {
			return err
		}
	}
	for _, r := range agg.Instruments {
		for _, s := range r.Snapshots {
			if err := j.RecordEquity(FromSnapshot(rec.RunID, r.Instrument, s)); err != nil {
				return err
			}
		}
	}
	for _, p := range agg.Values {
		if err := j.RecordEquity(EquitySnapshot{
			RunID:      rec.RunID,
			Instrument: PortfolioInstrument,
			Time:       p.Time,
			Equity:     p.Value,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops everything written to it.
type Discard struct{}

func (Discard) RecordTrade(TradeRecord) error     { return nil }
func (Discard) RecordEquity(EquitySnapshot) error { return nil }
func (Discard) RecordRun(RunRecord) error         { return nil }
func (Discard) Close() error                      { return nil }

func money(x float64) string {
	return decimal.NewFromFloat(x).StringFixed(2)
}
