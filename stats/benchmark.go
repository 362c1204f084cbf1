package stats

import (
	"math"

	"github.com/rustyeddy/portsim/market"
)

// alignedReturns pairs the periodic returns of a and b over the dates both
// series share.
func alignedReturns(a, b market.Series) (ra, rb []float64) {
	lb := b.Lookup()
	var (
		prevA, prevB float64
		have         bool
	)
	for _, p := range a {
		vb, ok := lb[p.Time.UnixNano()]
		if !ok {
			continue
		}
		if have && prevA > 0 && prevB > 0 {
			ra = append(ra, p.Value/prevA-1)
			rb = append(rb, vb/prevB-1)
		}
		prevA, prevB, have = p.Value, vb, true
	}
	return ra, rb
}

func covariance(x, y []float64) float64 {
	mx, my := mean(x), mean(y)
	var s float64
	for i := range x {
		s += (x[i] - mx) * (y[i] - my)
	}
	return s / float64(len(x)-1)
}

// Beta is cov(portfolio, benchmark) / var(benchmark) over common dates.
func Beta(values, bench market.Series) Value {
	rp, rb := alignedReturns(values, bench)
	if len(rp) < 2 {
		return Undefined()
	}
	v := covariance(rb, rb)
	if v == 0 {
		return Undefined()
	}
	return Defined(covariance(rp, rb) / v)
}

// Alpha is Jensen's alpha, annualized, against the benchmark.
func Alpha(values, bench market.Series, riskFree float64) Value {
	beta := Beta(values, bench)
	if !beta.IsDefined() {
		return Undefined()
	}
	rp, rb := alignedReturns(values, bench)
	ppy := PeriodsPerYear(values.Times())
	if ppy <= 0 {
		return Undefined()
	}
	prf := math.Pow(1+riskFree, 1/ppy) - 1
	a := (mean(rp) - prf) - beta.v*(mean(rb)-prf)
	return Defined(a * ppy)
}

// InformationRatio is the annualized mean active return over tracking
// error.
func InformationRatio(values, bench market.Series) Value {
	rp, rb := alignedReturns(values, bench)
	if len(rp) < 2 {
		return Undefined()
	}
	active := make([]float64, len(rp))
	for i := range rp {
		active[i] = rp[i] - rb[i]
	}
	te := stddev(active)
	ppy := PeriodsPerYear(values.Times())
	if te == 0 || ppy <= 0 {
		return Undefined()
	}
	return Defined(mean(active) / te * math.Sqrt(ppy))
}
