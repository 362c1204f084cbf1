package stats

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/portsim/market"
	"github.com/rustyeddy/portsim/portfolio"
)

var t0 = time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)

func daily(vals ...float64) market.Series {
	s := make(market.Series, len(vals))
	for i, v := range vals {
		s[i] = market.Point{Time: t0.AddDate(0, 0, i), Value: v}
	}
	return s
}

func constant(n int, v float64) market.Series {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = v
	}
	return daily(vals...)
}

func TestValue(t *testing.T) {
	t.Parallel()

	var zero Value
	assert.False(t, zero.IsDefined())
	assert.Equal(t, "undefined", zero.String())
	_, ok := zero.Float()
	assert.False(t, ok)
	assert.Equal(t, 7.0, zero.Or(7))

	d := Defined(0)
	assert.True(t, d.IsDefined())
	f, ok := d.Float()
	assert.True(t, ok)
	assert.Equal(t, 0.0, f)

	a := Approximate(-1.5)
	assert.True(t, a.IsApprox())
	assert.Equal(t, "~-1.5000", a.String())
	assert.Equal(t, "+Inf", Defined(math.Inf(1)).String())

	b, err := json.Marshal(map[string]Value{
		"a": Undefined(),
		"b": Defined(1.5),
		"c": Defined(math.Inf(1)),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":null,"b":1.5,"c":"+Inf"}`, string(b))
}

func TestPeriodsPerYear(t *testing.T) {
	t.Parallel()

	step := func(n int, f func(int) time.Time) []time.Time {
		out := make([]time.Time, n)
		for i := range out {
			out[i] = f(i)
		}
		return out
	}

	tests := []struct {
		name  string
		times []time.Time
		want  float64
	}{
		{"daily", step(30, func(i int) time.Time { return t0.AddDate(0, 0, i) }), 252},
		{"weekly", step(30, func(i int) time.Time { return t0.AddDate(0, 0, 7*i) }), 52},
		{"monthly", step(30, func(i int) time.Time { return t0.AddDate(0, i, 0) }), 12},
		{"quarterly", step(12, func(i int) time.Time { return t0.AddDate(0, 3*i, 0) }), 4},
		{"annual", step(6, func(i int) time.Time { return t0.AddDate(i, 0, 0) }), 1},
		{"too short", step(1, func(i int) time.Time { return t0 }), 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, PeriodsPerYear(tt.times))
		})
	}

	irregular := step(10, func(i int) time.Time { return t0.AddDate(0, 0, 15*i) })
	years := 135.0 / 365.25
	assert.InDelta(t, 10/years, PeriodsPerYear(irregular), 1e-9)
}

func TestCAGR(t *testing.T) {
	t.Parallel()

	twoYears := t0.Add(time.Duration(2*365.25*24) * time.Hour)
	s := market.Series{{Time: t0, Value: 100}, {Time: twoYears, Value: 121}}
	v := CAGR(s)
	require.True(t, v.IsDefined())
	assert.False(t, v.IsApprox())
	assert.InDelta(t, 0.10, v.Or(0), 1e-12)

	neg := market.Series{{Time: t0, Value: 100}, {Time: twoYears, Value: -21}}
	v = CAGR(neg)
	require.True(t, v.IsApprox())
	assert.InDelta(t, -math.Sqrt(0.21)-1, v.Or(0), 1e-12)

	assert.False(t, CAGR(daily(100)).IsDefined())
	assert.False(t, CAGR(daily(0, 100)).IsDefined())
	assert.False(t, CAGR(market.Series{{Time: t0, Value: 1}, {Time: t0, Value: 2}}).IsDefined())
}

func TestConstantSeries(t *testing.T) {
	t.Parallel()

	s := constant(20, 100_000)

	assert.Equal(t, Defined(0), MaxDrawdown(s))
	assert.Equal(t, Defined(0), CAGR(s))
	assert.Equal(t, Defined(0), AnnualizedVolatility(s))
	assert.Equal(t, Defined(0), Sharpe(s, 0))
	assert.Equal(t, Defined(0), Sortino(s, 0))
	assert.Equal(t, Defined(0), Calmar(CAGR(s), MaxDrawdown(s)))
	assert.Equal(t, Defined(0), RecoveryFactor(TotalReturn(s), MaxDrawdown(s)))
}

func TestSharpe_ZeroVolatilitySignedInfinity(t *testing.T) {
	t.Parallel()

	s := constant(20, 100)
	assert.True(t, math.IsInf(Sharpe(s, -0.01).Or(0), 1))
	assert.True(t, math.IsInf(Sharpe(s, 0.05).Or(0), -1))
}

func TestSharpe_Sign(t *testing.T) {
	t.Parallel()

	up := daily(100, 102, 101, 104, 103, 106, 108)
	down := daily(100, 98, 99, 96, 97, 94, 92)
	assert.Greater(t, Sharpe(up, 0).Or(0), 0.0)
	assert.Less(t, Sharpe(down, 0).Or(0), 0.0)

	want := (CAGR(up).Or(0) - 0.02) / AnnualizedVolatility(up).Or(0)
	assert.InDelta(t, want, Sharpe(up, 0.02).Or(0), 1e-12)
}

func TestSortino(t *testing.T) {
	t.Parallel()

	// no return below zero and positive growth
	up := daily(100, 101, 102, 103, 104)
	assert.True(t, math.IsInf(Sortino(up, 0).Or(0), 1))

	mixed := daily(100, 104, 101, 106, 103, 110)
	v := Sortino(mixed, 0)
	require.True(t, v.IsDefined())
	assert.Greater(t, v.Or(0), 0.0)

	assert.False(t, Sortino(daily(100), 0).IsDefined())
}

func TestDrawdown(t *testing.T) {
	t.Parallel()

	s := daily(100, 120, 90, 130, 125)
	assert.InDelta(t, -0.25, MaxDrawdown(s).Or(0), 1e-12)

	dd, ok := DrawdownOf(s)
	require.True(t, ok)
	assert.Equal(t, t0.AddDate(0, 0, 1), dd.PeakTime)
	assert.Equal(t, 120.0, dd.PeakValue)
	assert.Equal(t, t0.AddDate(0, 0, 2), dd.TroughTime)
	assert.Equal(t, 90.0, dd.TroughValue)
	assert.True(t, dd.Recovered())
	assert.Equal(t, t0.AddDate(0, 0, 3), dd.RecoveryTime)
	assert.Equal(t, 48*time.Hour, dd.Duration())
	require.Len(t, dd.Series, 5)
	assert.InDelta(t, 125.0/130-1, dd.Series[4].Value, 1e-12)

	_, ok = DrawdownOf(nil)
	assert.False(t, ok)
	assert.False(t, MaxDrawdown(nil).IsDefined())
}

func TestDrawdown_NonPositiveRunningMax(t *testing.T) {
	t.Parallel()

	s := daily(0, 0, 0)
	assert.Equal(t, Defined(0), MaxDrawdown(s))
}

func TestCalmarAndRecoveryFallbacks(t *testing.T) {
	t.Parallel()

	assert.True(t, math.IsInf(Calmar(Defined(0.1), Defined(0)).Or(0), 1))
	assert.Equal(t, Defined(0), Calmar(Defined(-0.1), Defined(0)))
	assert.InDelta(t, 0.5, Calmar(Defined(0.1), Defined(-0.2)).Or(0), 1e-12)
	assert.False(t, Calmar(Undefined(), Defined(-0.2)).IsDefined())

	assert.True(t, math.IsInf(RecoveryFactor(Defined(0.3), Defined(0)).Or(0), 1))
	assert.Equal(t, Defined(0), RecoveryFactor(Defined(-0.1), Defined(0)))
	assert.InDelta(t, 1.5, RecoveryFactor(Defined(-0.3), Defined(-0.2)).Or(0), 1e-12)
}

func trade(pnl float64, dir market.Direction, reason portfolio.ExitReason, days int) portfolio.Trade {
	return portfolio.Trade{
		Instrument: "X",
		EntryTime:  t0,
		ExitTime:   t0.AddDate(0, 0, days),
		PnL:        pnl,
		PnLPct:     pnl / 1000,
		Direction:  dir,
		Reason:     reason,
		Duration:   time.Duration(days) * 24 * time.Hour,
	}
}

func TestTradeStats(t *testing.T) {
	t.Parallel()

	trades := []portfolio.Trade{
		trade(100, market.Long, portfolio.ReasonTakeProfit, 2),
		trade(-50, market.Long, portfolio.ReasonStopLoss, 1),
		trade(0, market.Short, portfolio.ReasonSignal, 3),
		trade(math.NaN(), market.Long, portfolio.ReasonSignal, 1),
		trade(200, market.Short, portfolio.ReasonSignal, 6),
		trade(-25, market.Long, portfolio.ReasonLiquidation, 3),
	}

	ts := TradeStats(trades, nil)
	assert.Equal(t, 5, ts.Total)
	assert.Equal(t, 1, ts.Skipped)
	assert.Equal(t, 2, ts.Wins)
	assert.Equal(t, 2, ts.Losses)
	assert.Equal(t, 1, ts.Breakeven)
	assert.Equal(t, 3, ts.Long)
	assert.Equal(t, 2, ts.Short)
	assert.InDelta(t, 300.0, ts.GrossProfit, 1e-12)
	assert.InDelta(t, 75.0, ts.GrossLoss, 1e-12)
	assert.InDelta(t, 4.0, ts.ProfitFactor.Or(0), 1e-12)
	assert.InDelta(t, 0.4, ts.WinRate.Or(0), 1e-12)
	assert.InDelta(t, 150.0, ts.AvgWin.Or(0), 1e-12)
	assert.InDelta(t, -37.5, ts.AvgLoss.Or(0), 1e-12)
	assert.InDelta(t, 200.0, ts.LargestWin.Or(0), 1e-12)
	assert.InDelta(t, -50.0, ts.LargestLoss.Or(0), 1e-12)
	assert.InDelta(t, 45.0, ts.AvgPnL.Or(0), 1e-12)
	assert.Equal(t, 24*time.Hour, ts.MinDuration)
	assert.Equal(t, 6*24*time.Hour, ts.MaxDuration)
	assert.Equal(t, 3*24*time.Hour, ts.AvgDuration)
	assert.Equal(t, 2, ts.ByReason[portfolio.ReasonSignal])
}

func TestTradeStats_NoLossesProfitFactorUndefined(t *testing.T) {
	t.Parallel()

	ts := TradeStats([]portfolio.Trade{
		trade(10, market.Long, portfolio.ReasonSignal, 1),
		trade(20, market.Long, portfolio.ReasonSignal, 1),
	}, nil)
	assert.False(t, ts.ProfitFactor.IsDefined())
	assert.False(t, math.IsInf(ts.ProfitFactor.Or(0), 0))
	assert.False(t, ts.AvgLoss.IsDefined())
	assert.InDelta(t, 1.0, ts.WinRate.Or(0), 1e-12)
}

func TestTradeStats_Empty(t *testing.T) {
	t.Parallel()

	ts := TradeStats(nil, nil)
	assert.Equal(t, 0, ts.Total)
	assert.False(t, ts.WinRate.IsDefined())
	assert.False(t, ts.ProfitFactor.IsDefined())
}

func TestBenchmarkRelative(t *testing.T) {
	t.Parallel()

	bench := daily(100, 110, 99, 108.9)
	values := daily(100, 120, 96, 115.2)

	assert.InDelta(t, 2.0, Beta(values, bench).Or(0), 1e-9)
	assert.InDelta(t, 0.0, Alpha(values, bench, 0).Or(1), 1e-9)
	assert.Greater(t, InformationRatio(values, bench).Or(0), 0.0)

	other := market.Series{{Time: t0.AddDate(1, 0, 0), Value: 1}, {Time: t0.AddDate(1, 0, 1), Value: 2}}
	assert.False(t, Beta(values, other).IsDefined())
	assert.False(t, InformationRatio(values, values).IsDefined())
}

func TestPureProfitScore(t *testing.T) {
	t.Parallel()

	linear := daily(100, 110, 120, 130, 140, 150)
	assert.InDelta(t, CAGR(linear).Or(0), PureProfitScore(linear).Or(1), 1e-9)

	assert.False(t, PureProfitScore(constant(10, 5)).IsDefined())
}

func TestConsistency(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 2.0/3, Consistency(daily(100, 110, 105, 120)).Or(0), 1e-12)
	assert.False(t, Consistency(daily(100)).IsDefined())
}

func TestMonthlyReturns(t *testing.T) {
	t.Parallel()

	s := market.Series{
		{Time: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Value: 100},
		{Time: time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC), Value: 110},
		{Time: time.Date(2023, 2, 15, 0, 0, 0, 0, time.UTC), Value: 115},
		{Time: time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), Value: 121},
	}
	m := MonthlyReturns(s)
	require.Len(t, m, 2)
	assert.Equal(t, time.January, m[0].Month)
	assert.InDelta(t, 0.10, m[0].Return, 1e-12)
	assert.Equal(t, time.February, m[1].Month)
	assert.InDelta(t, 0.10, m[1].Return, 1e-12)
}

func TestCompute_Idempotent(t *testing.T) {
	t.Parallel()

	values := daily(100, 102, 99, 104, 107, 103, 110)
	bench := daily(50, 51, 50.5, 52, 53, 52.5, 54)
	trades := []portfolio.Trade{
		trade(30, market.Long, portfolio.ReasonSignal, 2),
		trade(-10, market.Short, portfolio.ReasonStopLoss, 1),
	}

	a := Compute(values, bench, trades, Options{RiskFreeRate: 0.02})
	b := Compute(values, bench, trades, Options{RiskFreeRate: 0.02})
	assert.Equal(t, a, b)
	assert.Equal(t, a.Metrics(), b.Metrics())

	assert.Equal(t, 7, a.Periods)
	assert.Equal(t, 100.0, a.InitialValue)
	assert.Equal(t, 110.0, a.FinalValue)
	assert.InDelta(t, 0.10, a.TotalReturn.Or(0), 1e-12)
	assert.True(t, a.Beta.IsDefined())
	assert.InDelta(t, 0.08, a.BenchmarkReturn.Or(0), 1e-12)
}

func TestCompute_EmptyIsUndefined(t *testing.T) {
	t.Parallel()

	r := Compute(nil, nil, nil, Options{})
	m := r.Metrics()
	for _, name := range []string{MetricCAGR, MetricSharpe, MetricMaxDrawdown, MetricFinalValue, MetricProfitFactor, MetricBeta} {
		v, ok := m[name]
		require.True(t, ok, name)
		assert.False(t, v.IsDefined(), name)
	}
	assert.Equal(t, Defined(0), m[MetricTotalTrades])
}

func TestReportMetric(t *testing.T) {
	t.Parallel()

	r := Compute(constant(10, 100_000), nil, []portfolio.Trade{trade(5, market.Long, portfolio.ReasonSignal, 1)}, Options{})
	v, ok := r.Metric(MetricProfitFactor)
	require.True(t, ok)
	assert.False(t, v.IsDefined())

	v, ok = r.Metric(MetricSharpe)
	require.True(t, ok)
	assert.Equal(t, Defined(0), v)

	_, ok = r.Metric("nope")
	assert.False(t, ok)
}
