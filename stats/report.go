package stats

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/portsim/market"
	"github.com/rustyeddy/portsim/portfolio"
)

// Options tune Compute.
type Options struct {
	RiskFreeRate float64 // annual
	Log          *logrus.Entry
}

// Report is the statistics bundle for one run.
type Report struct {
	Start          time.Time
	End            time.Time
	Periods        int
	PeriodsPerYear float64
	InitialValue   float64
	FinalValue     float64

	TotalReturn      Value
	CAGR             Value
	Volatility       Value
	Sharpe           Value
	Sortino          Value
	MaxDrawdown      Value
	Calmar           Value
	RecoveryFactor   Value
	PureProfitScore  Value
	Consistency      Value
	BenchmarkReturn  Value
	Beta             Value
	Alpha            Value
	InformationRatio Value

	Drawdown Drawdown
	Trades   TradeSummary
	Monthly  []MonthlyReturn
}

// Compute derives every metric from the value series, an optional
// benchmark series and the closed trades. Inputs are not modified and the
// same inputs always yield the same report.
func Compute(values, benchmark market.Series, trades []portfolio.Trade, opts Options) Report {
	values = values.Sorted()
	benchmark = benchmark.Sorted()

	r := Report{
		Periods:        len(values),
		PeriodsPerYear: PeriodsPerYear(values.Times()),
	}
	if first, ok := values.First(); ok {
		r.Start, r.InitialValue = first.Time, first.Value
	}
	if last, ok := values.Last(); ok {
		r.End, r.FinalValue = last.Time, last.Value
	}

	rf := opts.RiskFreeRate
	r.TotalReturn = TotalReturn(values)
	r.CAGR = CAGR(values)
	r.Volatility = AnnualizedVolatility(values)
	r.Sharpe = Sharpe(values, rf)
	r.Sortino = Sortino(values, rf)
	r.MaxDrawdown = MaxDrawdown(values)
	r.Calmar = Calmar(r.CAGR, r.MaxDrawdown)
	r.RecoveryFactor = RecoveryFactor(r.TotalReturn, r.MaxDrawdown)
	r.PureProfitScore = PureProfitScore(values)
	r.Consistency = Consistency(values)
	if dd, ok := DrawdownOf(values); ok {
		r.Drawdown = dd
	}
	r.Monthly = MonthlyReturns(values)

	if len(benchmark) > 0 {
		r.BenchmarkReturn = TotalReturn(benchmark)
		r.Beta = Beta(values, benchmark)
		r.Alpha = Alpha(values, benchmark, rf)
		r.InformationRatio = InformationRatio(values, benchmark)
	}

	r.Trades = TradeStats(trades, opts.Log)
	return r
}

// Metric names exposed by Metrics.
const (
	MetricTotalReturn      = "total_return"
	MetricCAGR             = "cagr"
	MetricVolatility       = "volatility"
	MetricSharpe           = "sharpe"
	MetricSortino          = "sortino"
	MetricMaxDrawdown      = "max_drawdown"
	MetricCalmar           = "calmar"
	MetricRecoveryFactor   = "recovery_factor"
	MetricPureProfitScore  = "pure_profit_score"
	MetricConsistency      = "consistency"
	MetricBenchmarkReturn  = "benchmark_return"
	MetricBeta             = "beta"
	MetricAlpha            = "alpha"
	MetricInformationRatio = "information_ratio"
	MetricFinalValue       = "final_value"
	MetricTotalTrades      = "total_trades"
	MetricWinRate          = "win_rate"
	MetricProfitFactor     = "profit_factor"
	MetricGrossProfit      = "gross_profit"
	MetricGrossLoss        = "gross_loss"
	MetricAvgWin           = "avg_win"
	MetricAvgLoss          = "avg_loss"
	MetricLargestWin       = "largest_win"
	MetricLargestLoss      = "largest_loss"
	MetricAvgTradePnL      = "avg_trade_pnl"
	MetricAvgReturnPct     = "avg_trade_return_pct"
	MetricAvgHoldingDays   = "avg_holding_days"
)

// Metrics flattens the report into name -> value.
func (r Report) Metrics() map[string]Value {
	m := map[string]Value{
		MetricTotalReturn:      r.TotalReturn,
		MetricCAGR:             r.CAGR,
		MetricVolatility:       r.Volatility,
		MetricSharpe:           r.Sharpe,
		MetricSortino:          r.Sortino,
		MetricMaxDrawdown:      r.MaxDrawdown,
		MetricCalmar:           r.Calmar,
		MetricRecoveryFactor:   r.RecoveryFactor,
		MetricPureProfitScore:  r.PureProfitScore,
		MetricConsistency:      r.Consistency,
		MetricBenchmarkReturn:  r.BenchmarkReturn,
		MetricBeta:             r.Beta,
		MetricAlpha:            r.Alpha,
		MetricInformationRatio: r.InformationRatio,
		MetricTotalTrades:      Defined(float64(r.Trades.Total)),
		MetricWinRate:          r.Trades.WinRate,
		MetricProfitFactor:     r.Trades.ProfitFactor,
		MetricGrossProfit:      Defined(r.Trades.GrossProfit),
		MetricGrossLoss:        Defined(r.Trades.GrossLoss),
		MetricAvgWin:           r.Trades.AvgWin,
		MetricAvgLoss:          r.Trades.AvgLoss,
		MetricLargestWin:       r.Trades.LargestWin,
		MetricLargestLoss:      r.Trades.LargestLoss,
		MetricAvgTradePnL:      r.Trades.AvgPnL,
		MetricAvgReturnPct:     r.Trades.AvgReturnPct,
	}
	if r.Periods > 0 {
		m[MetricFinalValue] = Defined(r.FinalValue)
	} else {
		m[MetricFinalValue] = Undefined()
	}
	if r.Trades.Total > 0 {
		m[MetricAvgHoldingDays] = Defined(r.Trades.AvgDuration.Hours() / 24)
	} else {
		m[MetricAvgHoldingDays] = Undefined()
	}
	return m
}

// Metric returns one named metric.
func (r Report) Metric(name string) (Value, bool) {
	v, ok := r.Metrics()[name]
	return v, ok
}
