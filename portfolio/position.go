package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/portsim/market"
)

// Position is an open stake in one instrument. The ledger owns the only
// mutable copy; callers receive values.
type Position struct {
	Instrument string
	EntryTime  time.Time
	EntryPrice float64
	Shares     int
	Direction  market.Direction

	Stop        float64
	Target      float64
	InitialStop float64
	Trailing    bool

	Highest   float64 // highest price seen since entry
	Lowest    float64 // lowest price seen since entry
	LastPrice float64 // most recent mark
}

// newPosition is the only constructor. It enforces the stop/entry/target
// ordering for the position's direction.
func newPosition(instrument string, t time.Time, entry float64, shares int, dir market.Direction, stop, target float64, trailing bool) (*Position, error) {
	if instrument == "" {
		return nil, fmt.Errorf("position: instrument is required")
	}
	if shares <= 0 {
		return nil, fmt.Errorf("position %s: shares must be positive, got %d", instrument, shares)
	}
	if !validPrice(entry) {
		return nil, fmt.Errorf("position %s: %w: entry %v", instrument, ErrInvalidPrice, entry)
	}
	switch dir {
	case market.Long:
		if !(stop < entry && entry < target) {
			return nil, fmt.Errorf("position %s: long requires stop < entry < target, got %v/%v/%v", instrument, stop, entry, target)
		}
	case market.Short:
		if !(target < entry && entry < stop) {
			return nil, fmt.Errorf("position %s: short requires target < entry < stop, got %v/%v/%v", instrument, target, entry, stop)
		}
	default:
		return nil, fmt.Errorf("position %s: direction is required", instrument)
	}

	return &Position{
		Instrument:  instrument,
		EntryTime:   t,
		EntryPrice:  entry,
		Shares:      shares,
		Direction:   dir,
		Stop:        stop,
		Target:      target,
		InitialStop: stop,
		Trailing:    trailing,
		Highest:     entry,
		Lowest:      entry,
		LastPrice:   entry,
	}, nil
}

// CostBasis is the cash paid to open the position.
func (p Position) CostBasis() float64 {
	return float64(p.Shares) * p.EntryPrice
}

// UnrealizedPnL is the signed profit at price.
func (p Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * float64(p.Shares) * p.Direction.Sign()
}

// MarketValue is the cash the position would return if closed at price.
// A long is worth shares*price. A short is worth its cost basis plus its
// profit, floored at zero so a short can never drive cash negative.
func (p Position) MarketValue(price float64) float64 {
	return math.Max(0, p.CostBasis()+p.UnrealizedPnL(price))
}

// OpenRisk is the cash lost if the current stop is hit. A stop trailed
// past entry carries no risk.
func (p Position) OpenRisk() float64 {
	d := (p.EntryPrice - p.Stop) * p.Direction.Sign()
	if d <= 0 {
		return 0
	}
	return d * float64(p.Shares)
}

// peakFavorable is the best price seen in the position's direction.
func (p Position) peakFavorable() float64 {
	if p.Direction == market.Short {
		return p.Lowest
	}
	return p.Highest
}

func validPrice(x float64) bool {
	return x > 0 && !math.IsNaN(x) && !math.IsInf(x, 0)
}
