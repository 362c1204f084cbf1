package stats

import (
	"time"

	"github.com/rustyeddy/portsim/market"
)

// rSquared is the coefficient of determination of an ordinary least
// squares fit of the values on their index.
func rSquared(ys []float64) (float64, bool) {
	n := float64(len(ys))
	if len(ys) < 3 {
		return 0, false
	}
	var sx, sy, sxx, sxy float64
	for i, y := range ys {
		x := float64(i)
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0, false
	}
	slope := (n*sxy - sx*sy) / den
	icept := (sy - slope*sx) / n

	my := sy / n
	var ssRes, ssTot float64
	for i, y := range ys {
		fit := icept + slope*float64(i)
		ssRes += (y - fit) * (y - fit)
		ssTot += (y - my) * (y - my)
	}
	if ssTot == 0 {
		return 0, false
	}
	return 1 - ssRes/ssTot, true
}

// PureProfitScore is CAGR times the R² of a linear fit of the value curve.
// It rewards steady growth over erratic growth of the same rate.
func PureProfitScore(s market.Series) Value {
	cagr := CAGR(s)
	r2, ok := rSquared(s.Values())
	if !cagr.IsDefined() || !ok {
		return Undefined()
	}
	return keep(cagr.v*r2, cagr)
}

// Consistency is the fraction of periodic returns that are positive.
func Consistency(s market.Series) Value {
	r := Returns(s)
	if len(r) == 0 {
		return Undefined()
	}
	pos := 0
	for _, x := range r {
		if x > 0 {
			pos++
		}
	}
	return Defined(float64(pos) / float64(len(r)))
}

// MonthlyReturn is the return of one calendar month.
type MonthlyReturn struct {
	Year   int
	Month  time.Month
	Return float64
}

// MonthlyReturns compares each month's last value with the previous
// month's last value. The first month is measured from the first value.
func MonthlyReturns(s market.Series) []MonthlyReturn {
	if len(s) < 2 {
		return nil
	}
	var out []MonthlyReturn
	base := s[0].Value
	for i, p := range s {
		last := i == len(s)-1
		if !last {
			ny, nm, _ := s[i+1].Time.Date()
			y, m, _ := p.Time.Date()
			if ny == y && nm == m {
				continue
			}
		}
		y, m, _ := p.Time.Date()
		if base > 0 {
			out = append(out, MonthlyReturn{Year: y, Month: m, Return: p.Value/base - 1})
		}
		base = p.Value
	}
	return out
}
