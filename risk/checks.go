package risk

import (
	"fmt"
)

// Violation describes one breached limit.
type Violation struct {
	Code string
	Msg  string
}

// AccountSnapshot is the state CheckLimits evaluates.
type AccountSnapshot struct {
	Equity         float64
	PeakEquity     float64
	DayStartEquity float64
	OpenPositions  int
	OpenRisk       float64 // cash at risk across open positions
}

// Decision is the outcome of a limits check. Breaches are advisory: the
// caller reports them, trading continues.
type Decision struct {
	Violations []Violation

	DrawdownPct float64
	DayLossPct  float64
	OpenRiskPct float64
}

// OK reports whether no limit was breached.
func (d Decision) OK() bool { return len(d.Violations) == 0 }

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
}

// CheckLimits evaluates the circuit breakers and exposure caps against an
// account snapshot. Zero-valued limits are treated as disabled.
func CheckLimits(cfg Config, acct AccountSnapshot) Decision {
	var d Decision

	if acct.PeakEquity > 0 && acct.Equity < acct.PeakEquity {
		d.DrawdownPct = (acct.PeakEquity - acct.Equity) / acct.PeakEquity
	}
	if acct.DayStartEquity > 0 && acct.Equity < acct.DayStartEquity {
		d.DayLossPct = (acct.DayStartEquity - acct.Equity) / acct.DayStartEquity
	}
	if acct.Equity > 0 {
		d.OpenRiskPct = RiskPct(acct.OpenRisk, acct.Equity)
	}

	if cfg.MaxDrawdownPct > 0 && d.DrawdownPct > cfg.MaxDrawdownPct {
		d.add("DRAWDOWN_LIMIT",
			fmt.Sprintf("drawdown %.2f%% exceeds max %.2f%%",
				100*d.DrawdownPct, 100*cfg.MaxDrawdownPct))
	}
	if cfg.MaxDailyLossPct > 0 && d.DayLossPct > cfg.MaxDailyLossPct {
		d.add("DAILY_LOSS_LIMIT",
			fmt.Sprintf("day loss %.2f%% exceeds max %.2f%%",
				100*d.DayLossPct, 100*cfg.MaxDailyLossPct))
	}
	if cfg.MaxPortfolioRiskPct > 0 && d.OpenRiskPct > cfg.MaxPortfolioRiskPct {
		d.add("PORTFOLIO_RISK",
			fmt.Sprintf("open risk %.2f%% exceeds max %.2f%%",
				100*d.OpenRiskPct, 100*cfg.MaxPortfolioRiskPct))
	}
	if cfg.MaxOpenPositions > 0 && acct.OpenPositions > cfg.MaxOpenPositions {
		d.add("TOO_MANY_OPEN_POSITIONS",
			fmt.Sprintf("open positions %d > max %d", acct.OpenPositions, cfg.MaxOpenPositions))
	}

	return d
}
