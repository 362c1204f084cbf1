package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/portsim/market"
)

// EMA is an exponential moving average of a streamed value, seeded with
// the first observation.
type EMA struct {
	n     int
	alpha float64

	seen  int
	value float64
}

func NewEMA(period int) *EMA {
	if period <= 0 {
		period = 1
	}
	return &EMA{n: period, alpha: 2.0 / float64(period+1)}
}

func (e *EMA) Name() string { return fmt.Sprintf("EMA(%d)", e.n) }
func (e *EMA) Warmup() int  { return e.n }
func (e *EMA) Ready() bool  { return e.seen >= e.n }

func (e *EMA) Reset() {
	e.seen = 0
	e.value = 0
}

// Add feeds one observation.
func (e *EMA) Add(x float64) {
	e.seen++
	if e.seen == 1 {
		e.value = x
		return
	}
	e.value = e.alpha*x + (1.0-e.alpha)*e.value
}

// Update feeds the bar's close.
func (e *EMA) Update(b market.Bar) { e.Add(b.Close) }

func (e *EMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.value
}

// EWMAVolatility weights recent close-to-close returns more heavily: it is
// the square root of an EMA of squared returns.
type EWMAVolatility struct {
	sq        *EMA
	prevClose float64
	hasPrev   bool
}

func NewEWMAVolatility(period int) *EWMAVolatility {
	return &EWMAVolatility{sq: NewEMA(period)}
}

func (v *EWMAVolatility) Name() string { return fmt.Sprintf("EWMAVOL(%d)", v.sq.n) }
func (v *EWMAVolatility) Warmup() int  { return v.sq.Warmup() + 1 }
func (v *EWMAVolatility) Ready() bool  { return v.sq.Ready() }

func (v *EWMAVolatility) Reset() {
	v.sq.Reset()
	v.prevClose = 0
	v.hasPrev = false
}

func (v *EWMAVolatility) Update(b market.Bar) {
	if b.Close <= 0 || math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
		return
	}
	if v.hasPrev {
		r := b.Close/v.prevClose - 1
		v.sq.Add(r * r)
	}
	v.prevClose = b.Close
	v.hasPrev = true
}

func (v *EWMAVolatility) Value() float64 {
	if !v.Ready() {
		return 0
	}
	return math.Sqrt(v.sq.Value())
}
