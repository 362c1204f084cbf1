package stats

import (
	"time"

	"github.com/rustyeddy/portsim/market"
)

// Drawdown describes the deepest peak to trough decline of a series.
type Drawdown struct {
	Max         float64 // fraction, <= 0
	PeakTime    time.Time
	PeakValue   float64
	TroughTime  time.Time
	TroughValue float64
	// RecoveryTime is when the series first regained the peak after the
	// trough. Zero if it never did.
	RecoveryTime time.Time
	// Series is value / running max - 1 at each point.
	Series market.Series
}

// Recovered reports whether the series regained its pre-drawdown peak.
func (d Drawdown) Recovered() bool { return !d.RecoveryTime.IsZero() }

// Duration is the time from peak to recovery, or to the trough when the
// series has not recovered.
func (d Drawdown) Duration() time.Duration {
	if d.Recovered() {
		return d.RecoveryTime.Sub(d.PeakTime)
	}
	return d.TroughTime.Sub(d.PeakTime)
}

// DrawdownOf computes drawdown metadata. A running max that is not
// positive contributes no drawdown.
func DrawdownOf(s market.Series) (Drawdown, bool) {
	if len(s) == 0 {
		return Drawdown{}, false
	}

	d := Drawdown{
		PeakTime:    s[0].Time,
		PeakValue:   s[0].Value,
		TroughTime:  s[0].Time,
		TroughValue: s[0].Value,
		Series:      make(market.Series, len(s)),
	}

	runMax := s[0].Value
	runMaxTime := s[0].Time
	for i, p := range s {
		if p.Value > runMax {
			runMax = p.Value
			runMaxTime = p.Time
		}
		dd := 0.0
		if runMax > 0 {
			dd = p.Value/runMax - 1
		}
		d.Series[i] = market.Point{Time: p.Time, Value: dd}
		if dd < d.Max {
			d.Max = dd
			d.PeakTime, d.PeakValue = runMaxTime, runMax
			d.TroughTime, d.TroughValue = p.Time, p.Value
		}
	}

	if d.Max < 0 {
		for _, p := range s {
			if p.Time.After(d.TroughTime) && p.Value >= d.PeakValue {
				d.RecoveryTime = p.Time
				break
			}
		}
	}
	return d, true
}

// MaxDrawdown is min(value / running max - 1) over s.
func MaxDrawdown(s market.Series) Value {
	d, ok := DrawdownOf(s)
	if !ok {
		return Undefined()
	}
	return Defined(d.Max)
}
