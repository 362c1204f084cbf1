package portfolio

import (
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/portsim/market"
	"github.com/rustyeddy/portsim/risk"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return t0.AddDate(0, 0, n) }

func bar(n int, o, h, l, c float64) market.Bar {
	return market.Bar{Time: day(n), Open: o, High: h, Low: l, Close: c}
}

func newTestPortfolio(t *testing.T, cash float64, cfg risk.Config) *Portfolio {
	t.Helper()
	p, err := New(cash, cfg, quietLog())
	require.NoError(t, err)
	return p
}

func allCash() risk.Config {
	cfg := risk.DefaultConfig()
	cfg.UsePositionSizing = false
	return cfg
}

func TestNew_RejectsBadInitialCash(t *testing.T) {
	t.Parallel()

	for _, cash := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := New(cash, risk.DefaultConfig(), nil)
		assert.Error(t, err)
	}
}

func TestOpen_DebitsCashAndSetsStops(t *testing.T) {
	t.Parallel()

	cfg := allCash()
	cfg.StopLossPct = 0.05
	cfg.ProfitTargetRatio = 2
	p := newTestPortfolio(t, 10_000, cfg)

	pos, err := p.Open(OpenRequest{Instrument: "AAA", Time: day(0), Price: 100, Direction: market.Long})
	require.NoError(t, err)

	assert.Equal(t, 100, pos.Shares)
	assert.InDelta(t, 95.0, pos.Stop, 1e-9)
	assert.InDelta(t, 110.0, pos.Target, 1e-9)
	assert.Equal(t, pos.Stop, pos.InitialStop)
	assert.InDelta(t, 0.0, p.Cash(), 1e-9)
	assert.Equal(t, 1, p.OpenCount())
}

func TestOpen_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  OpenRequest
	}{
		{"missing instrument", OpenRequest{Time: day(0), Price: 10, Direction: market.Long}},
		{"missing time", OpenRequest{Instrument: "A", Price: 10, Direction: market.Long}},
		{"flat direction", OpenRequest{Instrument: "A", Time: day(0), Price: 10}},
		{"zero price", OpenRequest{Instrument: "A", Time: day(0), Direction: market.Long}},
		{"nan price", OpenRequest{Instrument: "A", Time: day(0), Price: math.NaN(), Direction: market.Long}},
		{"price above cash", OpenRequest{Instrument: "A", Time: day(0), Price: 20_000, Direction: market.Long}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newTestPortfolio(t, 10_000, allCash())
			_, err := p.Open(tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRejected))
			assert.Equal(t, 10_000.0, p.Cash())
			assert.Equal(t, 0, p.OpenCount())
		})
	}
}

func TestOpen_CostAboveCashRejected(t *testing.T) {
	t.Parallel()

	cfg := risk.DefaultConfig()
	cfg.MaxPositionSizePct = 0.6
	p := newTestPortfolio(t, 10_000, cfg)

	_, err := p.Open(OpenRequest{Instrument: "A", Time: day(0), Price: 100, Direction: market.Long})
	require.NoError(t, err)
	require.InDelta(t, 4_000.0, p.Cash(), 1e-9)

	// portfolio value is still 10k, so sizing asks for 6k of B with 4k cash
	_, err = p.Open(OpenRequest{Instrument: "B", Time: day(0), Price: 50, Direction: market.Long})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.InDelta(t, 4_000.0, p.Cash(), 1e-9)
	_, ok := p.Position("B")
	assert.False(t, ok)
}

func TestOpen_OnePositionPerInstrument(t *testing.T) {
	t.Parallel()

	cfg := risk.DefaultConfig()
	p := newTestPortfolio(t, 10_000, cfg)

	_, err := p.Open(OpenRequest{Instrument: "A", Time: day(0), Price: 10, Direction: market.Long})
	require.NoError(t, err)
	cash := p.Cash()

	_, err = p.Open(OpenRequest{Instrument: "A", Time: day(1), Price: 10, Direction: market.Short})
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, cash, p.Cash())
	assert.Len(t, p.Positions(), 1)
}

func TestOpen_MaxOpenPositions(t *testing.T) {
	t.Parallel()

	cfg := risk.DefaultConfig()
	cfg.MaxOpenPositions = 1
	p := newTestPortfolio(t, 10_000, cfg)

	_, err := p.Open(OpenRequest{Instrument: "A", Time: day(0), Price: 10, Direction: market.Long})
	require.NoError(t, err)
	_, err = p.Open(OpenRequest{Instrument: "B", Time: day(0), Price: 10, Direction: market.Long})
	require.ErrorIs(t, err, ErrRejected)
}

func TestTickBar_StopBeforeTarget(t *testing.T) {
	t.Parallel()

	p := newTestPortfolio(t, 10_000, allCash())
	_, err := p.Open(OpenRequest{Instrument: "A", Time: day(0), Price: 100, Direction: market.Long})
	require.NoError(t, err)

	// range covers both stop (98) and target (104)
	intent, hit := p.TickBar("A", bar(1, 100, 105, 97, 101))
	require.True(t, hit)
	assert.Equal(t, ReasonStopLoss, intent.Reason)
	assert.InDelta(t, 98.0, intent.Price, 1e-9)

	tr, err := p.Close("A", intent.Price, day(1), intent.Reason)
	require.NoError(t, err)
	assert.Equal(t, ReasonStopLoss, tr.Reason)
	assert.InDelta(t, -200.0, tr.PnL, 1e-9)
	assert.InDelta(t, -0.02, tr.PnLPct, 1e-12)
	assert.Equal(t, 24*time.Hour, tr.Duration)
	assert.NotEmpty(t, tr.ID)
}

func TestTickBar_TakeProfit(t *testing.T) {
	t.Parallel()

	p := newTestPortfolio(t, 10_000, allCash())
	_, err := p.Open(OpenRequest{Instrument: "A", Time: day(0), Price: 100, Direction: market.Short})
	require.NoError(t, err)

	intent, hit := p.TickBar("A", bar(1, 99, 99.5, 95, 96))
	require.True(t, hit)
	assert.Equal(t, ReasonTakeProfit, intent.Reason)
	assert.InDelta(t, 96.0, intent.Price, 1e-9)
}

func TestTickBar_NoExitFlagsDisabled(t *testing.T) {
	t.Parallel()

	cfg := allCash()
	cfg.UseStopLoss = false
	cfg.UseTakeProfit = false
	p := newTestPortfolio(t, 10_000, cfg)
	_, err := p.Open(OpenRequest{Instrument: "A", Time: day(0), Price: 100, Direction: market.Long})
	require.NoError(t, err)

	_, hit := p.TickBar("A", bar(1, 100, 150, 50, 100))
	assert.False(t, hit)
}

func TestTickBar_TrailingStopIsMonotonic(t *testing.T) {
	t.Parallel()

	cfg := allCash()
	cfg.StopLossPct = 0.05
	cfg.UseTakeProfit = false
	cfg.UseTrailingStop = true
	cfg.TrailingActivationPct = 0.02
	cfg.TrailingDistancePct = 0.01
	p := newTestPortfolio(t, 10_000, cfg)

	_, err := p.Open(OpenRequest{Instrument: "A", Time: day(0), Price: 100, Direction: market.Long})
	require.NoError(t, err)

	bars := []market.Bar{
		bar(1, 100, 105, 104, 105),
		bar(2, 104.5, 104.5, 104, 104),
		bar(3, 104, 106, 105, 106),
	}
	var stops []float64
	for _, b := range bars {
		_, hit := p.TickBar("A", b)
		require.False(t, hit)
		pos, ok := p.Position("A")
		require.True(t, ok)
		stops = append(stops, pos.Stop)
	}
	assert.InDelta(t, 103.95, stops[0], 1e-9)
	assert.InDelta(t, 103.95, stops[1], 1e-9)
	assert.InDelta(t, 104.94, stops[2], 1e-9)

	intent, hit := p.TickBar("A", bar(4, 105, 105, 104, 104.5))
	require.True(t, hit)
	assert.Equal(t, ReasonStopLoss, intent.Reason)
	assert.InDelta(t, 104.94, intent.Price, 1e-9)

	tr, err := p.Close("A", intent.Price, day(4), intent.Reason)
	require.NoError(t, err)
	assert.InDelta(t, 95.0, tr.InitialStop, 1e-9)
	assert.InDelta(t, 104.94, tr.FinalStop, 1e-9)
	assert.Greater(t, tr.PnL, 0.0)
}

func TestClose_InvalidPriceAndUnknownInstrument(t *testing.T) {
	t.Parallel()

	p := newTestPortfolio(t, 10_000, allCash())
	_, err := p.Open(OpenRequest{Instrument: "A", Time: day(0), Price: 100, Direction: market.Long})
	require.NoError(t, err)

	for _, px := range []float64{0, -5, math.NaN()} {
		_, err := p.Close("A", px, day(1), ReasonSignal)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	}
	_, ok := p.Position("A")
	assert.True(t, ok, "failed close leaves the position open")

	_, err = p.Close("B", 100, day(1), ReasonSignal)
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestClose_Short(t *testing.T) {
	t.Parallel()

	p := newTestPortfolio(t, 10_000, allCash())
	_, err := p.Open(OpenRequest{Instrument: "A", Time: day(0), Price: 100, Direction: market.Short})
	require.NoError(t, err)
	require.InDelta(t, 0.0, p.Cash(), 1e-9)

	tr, err := p.Close("A", 90, day(3), ReasonSignal)
	require.NoError(t, err)
	assert.InDelta(t, 1_000.0, tr.PnL, 1e-9)
	assert.InDelta(t, 0.10, tr.PnLPct, 1e-12)
	assert.InDelta(t, 11_000.0, p.Cash(), 1e-9)
}

func TestClose_ShortLossNeverDrivesCashNegative(t *testing.T) {
	t.Parallel()

	p := newTestPortfolio(t, 10_000, allCash())
	_, err := p.Open(OpenRequest{Instrument: "A", Time: day(0), Price: 100, Direction: market.Short})
	require.NoError(t, err)

	tr, err := p.Close("A", 250, day(1), ReasonSignal)
	require.NoError(t, err)
	assert.InDelta(t, -10_000.0, tr.PnL, 1e-9)
	assert.GreaterOrEqual(t, p.Cash(), 0.0)
}

func TestCloseAll_SkipsMissingPrices(t *testing.T) {
	t.Parallel()

	cfg := risk.DefaultConfig()
	p := newTestPortfolio(t, 30_000, cfg)
	for _, name := range []string{"A", "B", "C"} {
		_, err := p.Open(OpenRequest{Instrument: name, Time: day(0), Price: 10, Direction: market.Long})
		require.NoError(t, err)
	}

	closed := p.CloseAll(map[string]float64{"A": 11, "C": math.NaN()}, day(5), ReasonLiquidation)
	require.Len(t, closed, 1)
	assert.Equal(t, "A", closed[0].Instrument)
	assert.Equal(t, ReasonLiquidation, closed[0].Reason)

	open := p.Positions()
	require.Len(t, open, 2)
	assert.Equal(t, "B", open[0].Instrument)
	assert.Equal(t, "C", open[1].Instrument)
}

func TestSnapshot_LedgerConservation(t *testing.T) {
	t.Parallel()

	cfg := risk.DefaultConfig()
	cfg.MaxPositionSizePct = 0.3
	p := newTestPortfolio(t, 100_000, cfg)

	_, err := p.Open(OpenRequest{Instrument: "A", Time: day(0), Price: 50, Direction: market.Long})
	require.NoError(t, err)
	_, err = p.Open(OpenRequest{Instrument: "B", Time: day(0), Price: 20, Direction: market.Long})
	require.NoError(t, err)

	prices := []map[string]float64{
		{"A": 50, "B": 20},
		{"A": 55, "B": 19},
		{"A": 47.5, "B": 21.25},
	}
	for i, px := range prices {
		s := p.Snapshot(day(i), px)

		sum := s.Cash
		for _, pos := range p.Positions() {
			sum += float64(pos.Shares) * px[pos.Instrument]
		}
		assert.InDelta(t, sum, s.Total, 1e-6)
		assert.InDelta(t, s.Cash+s.Holdings, s.Total, 1e-9)
		assert.InDelta(t, s.Total, p.Value(px), 1e-9)
	}
	assert.Len(t, p.Snapshots(), 3)
}

func TestSnapshot_MissingPriceUsesLastMark(t *testing.T) {
	t.Parallel()

	p := newTestPortfolio(t, 10_000, allCash())
	_, err := p.Open(OpenRequest{Instrument: "A", Time: day(0), Price: 100, Direction: market.Long})
	require.NoError(t, err)

	p.Snapshot(day(1), map[string]float64{"A": 110})
	s := p.Snapshot(day(2), nil)
	assert.InDelta(t, 11_000.0, s.Total, 1e-9)
}

func TestExposureAndOpenRisk(t *testing.T) {
	t.Parallel()

	cfg := risk.DefaultConfig()
	cfg.MaxPositionSizePct = 0.5
	p := newTestPortfolio(t, 10_000, cfg)
	_, err := p.Open(OpenRequest{Instrument: "A", Time: day(0), Price: 100, Direction: market.Long})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, p.Exposure(nil), 1e-9)
	// 50 shares, stop 2% below entry
	assert.InDelta(t, 100.0, p.OpenRisk(), 1e-9)
}

func TestCheckLimits_ReportsDrawdownWithoutBlocking(t *testing.T) {
	t.Parallel()

	cfg := allCash()
	cfg.UseStopLoss = false
	cfg.MaxDrawdownPct = 0.10
	p := newTestPortfolio(t, 10_000, cfg)
	_, err := p.Open(OpenRequest{Instrument: "A", Time: day(0), Price: 100, Direction: market.Long})
	require.NoError(t, err)

	p.Snapshot(day(0), map[string]float64{"A": 100})
	p.Snapshot(day(1), map[string]float64{"A": 80})

	d := p.CheckLimits()
	assert.False(t, d.OK())
	assert.InDelta(t, 0.20, d.DrawdownPct, 1e-9)

	// trading continues
	_, err = p.Close("A", 80, day(2), ReasonSignal)
	require.NoError(t, err)
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	p := newTestPortfolio(t, 10_000, allCash())
	require.NoError(t, p.Reconcile())

	_, err := p.Open(OpenRequest{Instrument: "A", Time: day(0), Price: 33.33, Direction: market.Long})
	require.NoError(t, err)
	require.NoError(t, p.Reconcile())

	_, err = p.Close("A", 35.01, day(2), ReasonTakeProfit)
	require.NoError(t, err)
	require.NoError(t, p.Reconcile())

	_, err = p.Open(OpenRequest{Instrument: "B", Time: day(3), Price: 80, Direction: market.Short})
	require.NoError(t, err)
	_, err = p.Close("B", 200, day(4), ReasonStopLoss)
	require.NoError(t, err)
	assert.NoError(t, p.Reconcile())

	p.mu.Lock()
	p.cash += 5
	p.mu.Unlock()
	assert.ErrorIs(t, p.Reconcile(), ErrUnbalanced)
}
