package risk

import (
	"math"

	"github.com/rustyeddy/portsim/market"
)

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// SizePosition returns the whole number of shares to buy at price.
//
// With sizing disabled the whole of cash is committed. Otherwise the size
// is capped at MaxPositionSizePct of portfolioValue and, when risk per
// trade is enabled and volatility is known, at RiskPerTradePct of
// portfolioValue divided by the expected per-share move. A size whose
// notional falls below MinPositionSizePct of portfolioValue is rejected.
func SizePosition(portfolioValue, cash, price, volatility float64, cfg Config) int {
	if !finite(price) || price <= 0 || !finite(portfolioValue) || !finite(cash) {
		return 0
	}

	if !cfg.UsePositionSizing {
		if cash <= 0 {
			return 0
		}
		return int(math.Floor(cash / price))
	}

	if portfolioValue <= 0 {
		return 0
	}

	shares := math.Floor(portfolioValue * cfg.MaxPositionSizePct / price)
	if cfg.UseRiskPerTrade && finite(volatility) && volatility > 0 {
		byRisk := math.Floor(portfolioValue * cfg.RiskPerTradePct / (price * volatility))
		shares = math.Min(shares, byRisk)
	}
	if shares <= 0 {
		return 0
	}
	if cfg.MinPositionSizePct > 0 && shares*price < portfolioValue*cfg.MinPositionSizePct {
		return 0
	}
	return int(shares)
}

// InitialStops returns the stop and target for a fresh position. Both levels are kept at least StopEpsilon away
// from entry on their own side so a position never opens already triggered.
func InitialStops(entry float64, dir market.Direction, cfg Config) (stop, target float64) {
	d := dir.Sign()
	dist := entry * cfg.StopLossPct
	stop = entry - d*dist
	target = entry + d*dist*cfg.ProfitTargetRatio

	gap := entry * StopEpsilon
	if dir != market.Short {
		stop = math.Min(stop, entry-gap)
		target = math.Max(target, entry+gap)
	} else {
		stop = math.Max(stop, entry+gap)
		target = math.Min(target, entry-gap)
	}
	return stop, target
}

// TrailingActive reports whether the favourable excursion has reached the
// activation threshold. peak is the highest price seen for a long and the
// lowest for a short.
func TrailingActive(entry, peak float64, dir market.Direction, cfg Config) bool {
	if !cfg.UseTrailingStop || !cfg.UseStopLoss {
		return false
	}
	if dir != market.Short {
		return peak >= entry*(1+cfg.TrailingActivationPct)
	}
	return peak <= entry*(1-cfg.TrailingActivationPct)
}

// UpdateTrailingStop returns the new stop. The result never moves against
// the position: a long stop only rises, a short stop only falls.
func UpdateTrailingStop(entry, peak, currentStop float64, dir market.Direction, cfg Config) float64 {
	if !TrailingActive(entry, peak, dir, cfg) {
		return currentStop
	}
	if dir != market.Short {
		proposed := peak * (1 - cfg.TrailingDistancePct)
		if proposed > currentStop {
			return proposed
		}
		return currentStop
	}
	proposed := peak * (1 + cfg.TrailingDistancePct)
	if proposed < currentStop {
		return proposed
	}
	return currentStop
}
