package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/portsim/market"
)

// Volatility is the rolling sample standard deviation of close-to-close
// returns. The value is a per-bar fraction (0.02 means 2%) and is what the
// risk-per-trade sizing rule expects.
type Volatility struct {
	period    int
	returns   []float64
	prevClose float64
	hasPrev   bool
}

// NewVolatility creates a volatility estimator over period returns.
func NewVolatility(period int) *Volatility {
	if period < 2 {
		period = 2
	}
	return &Volatility{
		period:  period,
		returns: make([]float64, 0, period),
	}
}

func (v *Volatility) Name() string {
	return fmt.Sprintf("VOL(%d)", v.period)
}

// Warmup needs one extra bar because the first bar has no prior close.
func (v *Volatility) Warmup() int {
	return v.period + 1
}

func (v *Volatility) Reset() {
	v.returns = v.returns[:0]
	v.hasPrev = false
	v.prevClose = 0
}

func (v *Volatility) Update(b market.Bar) {
	if b.Close <= 0 || math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
		return
	}
	if !v.hasPrev {
		v.prevClose = b.Close
		v.hasPrev = true
		return
	}

	v.returns = append(v.returns, b.Close/v.prevClose-1)
	if len(v.returns) > v.period {
		v.returns = v.returns[1:]
	}
	v.prevClose = b.Close
}

func (v *Volatility) Ready() bool {
	return len(v.returns) >= v.period
}

func (v *Volatility) Value() float64 {
	if !v.Ready() {
		return 0
	}

	mean := 0.0
	for _, r := range v.returns {
		mean += r
	}
	mean /= float64(len(v.returns))

	ss := 0.0
	for _, r := range v.returns {
		d := r - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(v.returns)-1))
}
