package stats

import (
	"math"
	"sort"
	"time"

	"github.com/rustyeddy/portsim/market"
)

const daysPerYear = 365.25

// Returns are the simple periodic returns of s. Pairs whose earlier value
// is not positive have no defined return and are skipped.
func Returns(s market.Series) []float64 {
	if len(s) < 2 {
		return nil
	}
	out := make([]float64, 0, len(s)-1)
	for i := 1; i < len(s); i++ {
		prev := s[i-1].Value
		if prev <= 0 {
			continue
		}
		out = append(out, s[i].Value/prev-1)
	}
	return out
}

// Years is the calendar span of s in years.
func Years(s market.Series) float64 {
	if len(s) < 2 {
		return 0
	}
	return s[len(s)-1].Time.Sub(s[0].Time).Hours() / 24 / daysPerYear
}

// PeriodsPerYear infers the sampling frequency from the median spacing of
// times. Irregular indexes fall back to observations per elapsed year.
func PeriodsPerYear(times []time.Time) float64 {
	if len(times) < 2 {
		return 0
	}
	gaps := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		gaps = append(gaps, times[i].Sub(times[i-1]).Hours()/24)
	}
	sort.Float64s(gaps)
	med := gaps[len(gaps)/2]
	if len(gaps)%2 == 0 {
		med = (gaps[len(gaps)/2-1] + gaps[len(gaps)/2]) / 2
	}

	switch {
	case med >= 0.5 && med <= 4:
		return 252
	case med >= 5 && med <= 9:
		return 52
	case med >= 26 && med <= 33:
		return 12
	case med >= 85 && med <= 95:
		return 4
	case med >= 360 && med <= 370:
		return 1
	}

	years := times[len(times)-1].Sub(times[0]).Hours() / 24 / daysPerYear
	if years <= 0 {
		return 0
	}
	return float64(len(times)) / years
}

// TotalReturn is last/first - 1.
func TotalReturn(s market.Series) Value {
	if len(s) < 2 || s[0].Value <= 0 {
		return Undefined()
	}
	return Defined(s[len(s)-1].Value/s[0].Value - 1)
}

// CAGR is the compound annual growth rate over the span of s. A negative
// end value has no real root; the sign-preserving root is returned and
// flagged approximate.
func CAGR(s market.Series) Value {
	if len(s) < 2 {
		return Undefined()
	}
	start, end := s[0].Value, s[len(s)-1].Value
	years := Years(s)
	if start <= 0 || years <= 0 {
		return Undefined()
	}
	ratio := end / start
	if ratio < 0 {
		return Approximate(-math.Pow(-ratio, 1/years) - 1)
	}
	return Defined(math.Pow(ratio, 1/years) - 1)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// AnnualizedVolatility is the sample standard deviation of periodic
// returns scaled by the square root of the inferred periods per year.
func AnnualizedVolatility(s market.Series) Value {
	r := Returns(s)
	ppy := PeriodsPerYear(s.Times())
	if len(r) < 2 || ppy <= 0 {
		return Undefined()
	}
	return Defined(stddev(r) * math.Sqrt(ppy))
}
