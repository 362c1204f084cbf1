package risk

import "math"

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// PlannedRisk computes the absolute cash risk if the stop is hit.
func PlannedRisk(shares int, entry, stop float64) float64 {
	return float64(shares) * abs(entry-stop)
}

// RR is the reward to risk multiple of a planned trade.
func RR(entry, stop, target float64) float64 {
	risk := abs(entry - stop)
	reward := abs(target - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

// RiskPct expresses a cash risk as a fraction of equity.
func RiskPct(plannedRisk, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return plannedRisk / equity
}
