package portfolio

import (
	"time"

	"github.com/rustyeddy/portsim/market"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ReasonSignal      ExitReason = "signal"
	ReasonStopLoss    ExitReason = "stop_loss"
	ReasonTakeProfit  ExitReason = "take_profit"
	ReasonLiquidation ExitReason = "liquidation"
)

func (r ExitReason) Valid() bool {
	switch r {
	case ReasonSignal, ReasonStopLoss, ReasonTakeProfit, ReasonLiquidation:
		return true
	}
	return false
}

// Trade is the immutable record of one closed position.
type Trade struct {
	ID         string
	Instrument string
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Shares     int
	Direction  market.Direction

	PnL    float64 // account currency
	PnLPct float64 // relative to cost basis
	Reason ExitReason

	Duration    time.Duration
	InitialStop float64
	FinalStop   float64
}

// HoldingDays is the holding duration in calendar days.
func (t Trade) HoldingDays() float64 {
	return t.Duration.Hours() / 24
}

// ExitIntent is returned by a tick when an exit condition fired.
type ExitIntent struct {
	Price  float64
	Reason ExitReason
}
