package portfolio

import "github.com/rustyeddy/portsim/market"

// hitStopLoss reports whether the bar's range reached the stop.
func hitStopLoss(p *Position, b market.Bar) bool {
	if p.Direction == market.Long {
		return b.Low <= p.Stop
	}
	return b.High >= p.Stop
}

// hitTakeProfit reports whether the bar's range reached the target.
func hitTakeProfit(p *Position, b market.Bar) bool {
	if p.Direction == market.Long {
		return b.High >= p.Target
	}
	return b.Low <= p.Target
}
