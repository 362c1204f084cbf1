package stats

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/portsim/market"
	"github.com/rustyeddy/portsim/portfolio"
)

// TradeSummary aggregates the closed trade list.
type TradeSummary struct {
	Total     int
	Wins      int
	Losses    int
	Breakeven int
	Long      int
	Short     int
	Skipped   int // trades with a non-finite P&L

	WinRate      Value
	GrossProfit  float64
	GrossLoss    float64 // reported as a positive amount
	NetProfit    float64
	ProfitFactor Value
	AvgWin       Value
	AvgLoss      Value
	LargestWin   Value
	LargestLoss  Value
	AvgPnL       Value
	AvgReturnPct Value

	AvgDuration time.Duration
	MinDuration time.Duration
	MaxDuration time.Duration

	ByReason map[portfolio.ExitReason]int
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

// TradeStats summarizes trades. Trades whose P&L is not finite are skipped
// and logged as a data quality warning. log may be nil.
func TradeStats(trades []portfolio.Trade, log *logrus.Entry) TradeSummary {
	ts := TradeSummary{ByReason: map[portfolio.ExitReason]int{}}

	var (
		largestWin  = math.Inf(-1)
		largestLoss = math.Inf(1)
		sumPct      float64
		pctCount    int
		sumDur      time.Duration
	)

	for _, tr := range trades {
		if !finite(tr.PnL) {
			ts.Skipped++
			if log != nil {
				log.WithFields(logrus.Fields{
					"trade":      tr.ID,
					"instrument": tr.Instrument,
					"pnl":        tr.PnL,
				}).Warn("skipping trade with non-finite pnl")
			}
			continue
		}

		ts.Total++
		ts.ByReason[tr.Reason]++
		switch tr.Direction {
		case market.Long:
			ts.Long++
		case market.Short:
			ts.Short++
		}

		switch {
		case tr.PnL > 0:
			ts.Wins++
			ts.GrossProfit += tr.PnL
			largestWin = math.Max(largestWin, tr.PnL)
		case tr.PnL < 0:
			ts.Losses++
			ts.GrossLoss -= tr.PnL
			largestLoss = math.Min(largestLoss, tr.PnL)
		default:
			ts.Breakeven++
		}
		ts.NetProfit += tr.PnL

		if finite(tr.PnLPct) {
			sumPct += tr.PnLPct
			pctCount++
		}

		sumDur += tr.Duration
		if ts.Total == 1 || tr.Duration < ts.MinDuration {
			ts.MinDuration = tr.Duration
		}
		if tr.Duration > ts.MaxDuration {
			ts.MaxDuration = tr.Duration
		}
	}

	if ts.Total == 0 {
		return ts
	}

	ts.WinRate = Defined(float64(ts.Wins) / float64(ts.Total))
	ts.AvgPnL = Defined(ts.NetProfit / float64(ts.Total))
	ts.AvgDuration = sumDur / time.Duration(ts.Total)
	if pctCount > 0 {
		ts.AvgReturnPct = Defined(sumPct / float64(pctCount))
	}
	if ts.GrossLoss > 0 {
		ts.ProfitFactor = Defined(ts.GrossProfit / ts.GrossLoss)
	}
	if ts.Wins > 0 {
		ts.AvgWin = Defined(ts.GrossProfit / float64(ts.Wins))
		ts.LargestWin = Defined(largestWin)
	}
	if ts.Losses > 0 {
		ts.AvgLoss = Defined(-ts.GrossLoss / float64(ts.Losses))
		ts.LargestLoss = Defined(largestLoss)
	}
	return ts
}
