package stats

import (
	"math"

	"github.com/rustyeddy/portsim/market"
)

// signedInf returns +Inf, -Inf or 0 following the sign of x.
func signedInf(x float64) float64 {
	switch {
	case x > 0:
		return math.Inf(1)
	case x < 0:
		return math.Inf(-1)
	}
	return 0
}

// Sharpe is (CAGR - rf) / annualized volatility. With zero volatility the
// ratio is 0 when there is no excess return and an infinity signed by the
// excess otherwise.
func Sharpe(s market.Series, riskFree float64) Value {
	cagr := CAGR(s)
	vol := AnnualizedVolatility(s)
	if !cagr.IsDefined() || !vol.IsDefined() {
		return Undefined()
	}
	excess := cagr.v - riskFree
	if vol.v == 0 {
		return keep(signedInf(excess), cagr)
	}
	return keep(excess/vol.v, cagr)
}

// downsideDeviation is the annualized root mean square of the shortfall
// of returns below the periodic risk-free rate. The second result is false
// when no return falls below it.
func downsideDeviation(r []float64, periodicRF, ppy float64) (float64, bool) {
	var ss float64
	below := 0
	for _, x := range r {
		if x < periodicRF {
			d := x - periodicRF
			ss += d * d
			below++
		}
	}
	if below == 0 || len(r) < 2 {
		return 0, false
	}
	return math.Sqrt(ss/float64(len(r)-1)) * math.Sqrt(ppy), true
}

// Sortino is (CAGR - rf) over the annualized downside deviation. With no
// returns below the periodic risk-free rate it is +Inf when the excess is
// positive and 0 otherwise.
func Sortino(s market.Series, riskFree float64) Value {
	cagr := CAGR(s)
	r := Returns(s)
	ppy := PeriodsPerYear(s.Times())
	if !cagr.IsDefined() || len(r) < 2 || ppy <= 0 {
		return Undefined()
	}
	excess := cagr.v - riskFree
	periodicRF := math.Pow(1+riskFree, 1/ppy) - 1

	dd, ok := downsideDeviation(r, periodicRF, ppy)
	if !ok || dd == 0 {
		if excess > 0 {
			return keep(math.Inf(1), cagr)
		}
		return keep(0, cagr)
	}
	return keep(excess/dd, cagr)
}

// Calmar is CAGR / |max drawdown|. Without a drawdown it is +Inf for a
// positive CAGR and 0 otherwise.
func Calmar(cagr, maxDD Value) Value {
	if !cagr.IsDefined() || !maxDD.IsDefined() {
		return Undefined()
	}
	if maxDD.v == 0 {
		if cagr.v > 0 {
			return keep(math.Inf(1), cagr)
		}
		return keep(0, cagr)
	}
	return keep(cagr.v/math.Abs(maxDD.v), cagr)
}

// RecoveryFactor is |total return| / |max drawdown| with the same
// zero-drawdown fallback as Calmar.
func RecoveryFactor(total, maxDD Value) Value {
	if !total.IsDefined() || !maxDD.IsDefined() {
		return Undefined()
	}
	if maxDD.v == 0 {
		if total.v > 0 {
			return Defined(math.Inf(1))
		}
		return Defined(0)
	}
	return Defined(math.Abs(total.v) / math.Abs(maxDD.v))
}
