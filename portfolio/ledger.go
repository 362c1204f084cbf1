package portfolio

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/portsim/market"
	"github.com/rustyeddy/portsim/pkg/id"
	"github.com/rustyeddy/portsim/risk"
)

// OpenRequest asks the ledger to open a position.
type OpenRequest struct {
	Instrument string
	Time       time.Time
	Price      float64
	Direction  market.Direction
	Volatility float64 // per-bar return volatility, 0 when unknown
}

func (p *Portfolio) reject(req OpenRequest, format string, args ...any) error {
	err := fmt.Errorf("open %s: %w: %s", req.Instrument, ErrRejected, fmt.Sprintf(format, args...))
	p.log.WithFields(logrus.Fields{
		"instrument": req.Instrument,
		"time":       req.Time,
		"price":      req.Price,
		"direction":  req.Direction.String(),
	}).Info(err.Error())
	return err
}

// Open sizes and opens a position. A refused request wraps ErrRejected and
// leaves the ledger untouched.
func (p *Portfolio) Open(req OpenRequest) (Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if req.Instrument == "" || req.Time.IsZero() {
		return Position{}, p.reject(req, "instrument and time are required")
	}
	if req.Direction != market.Long && req.Direction != market.Short {
		return Position{}, p.reject(req, "direction is required")
	}
	if !validPrice(req.Price) {
		return Position{}, p.reject(req, "%v: %v", ErrInvalidPrice, req.Price)
	}
	if _, ok := p.positions[req.Instrument]; ok {
		return Position{}, p.reject(req, "position already open")
	}
	if !risk.CanOpenNewPosition(len(p.positions), p.cfg) {
		return Position{}, p.reject(req, "max open positions %d reached", p.cfg.MaxOpenPositions)
	}

	value := p.cash + p.holdingsLocked(nil)
	shares := risk.SizePosition(value, p.cash, req.Price, req.Volatility, p.cfg)
	if shares <= 0 {
		return Position{}, p.reject(req, "position size is zero")
	}
	cost := float64(shares) * req.Price
	if cost > p.cash {
		return Position{}, p.reject(req, "cost %.2f exceeds cash %.2f", cost, p.cash)
	}

	stop, target := risk.InitialStops(req.Price, req.Direction, p.cfg)
	pos, err := newPosition(req.Instrument, req.Time, req.Price, shares, req.Direction, stop, target, p.cfg.UseTrailingStop && p.cfg.UseStopLoss)
	if err != nil {
		return Position{}, p.reject(req, "%v", err)
	}

	p.cash -= cost
	p.positions[req.Instrument] = pos

	p.log.WithFields(logrus.Fields{
		"instrument": pos.Instrument,
		"time":       pos.EntryTime,
		"direction":  pos.Direction.String(),
		"shares":     pos.Shares,
		"entry":      pos.EntryPrice,
		"stop":       pos.Stop,
		"target":     pos.Target,
		"cash":       p.cash,
	}).Info("position opened")

	return *pos, nil
}

// Tick marks the instrument at a single price.
func (p *Portfolio) Tick(instrument string, price float64, t time.Time) (ExitIntent, bool) {
	return p.TickBar(instrument, market.PriceBar(t, price))
}

// TickBar feeds one bar to an open position. Peaks are updated from the
// bar's range, then the stop is checked before the target so a bar that
// crosses both exits as a stop loss. When neither fires the trailing stop
// is recomputed. The returned intent carries the trigger price; the caller
// closes the position.
func (p *Portfolio) TickBar(instrument string, b market.Bar) (ExitIntent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[instrument]
	if !ok || !b.Valid() {
		return ExitIntent{}, false
	}

	if b.High > pos.Highest {
		pos.Highest = b.High
	}
	if b.Low < pos.Lowest {
		pos.Lowest = b.Low
	}
	pos.LastPrice = b.Close

	if p.cfg.UseStopLoss && hitStopLoss(pos, b) {
		return ExitIntent{Price: pos.Stop, Reason: ReasonStopLoss}, true
	}
	if p.cfg.UseTakeProfit && hitTakeProfit(pos, b) {
		return ExitIntent{Price: pos.Target, Reason: ReasonTakeProfit}, true
	}

	if pos.Trailing {
		stop := risk.UpdateTrailingStop(pos.EntryPrice, pos.peakFavorable(), pos.Stop, pos.Direction, p.cfg)
		if stop != pos.Stop {
			p.log.WithFields(logrus.Fields{
				"instrument": instrument,
				"time":       b.Time,
				"from":       pos.Stop,
				"to":         stop,
			}).Debug("trailing stop moved")
			pos.Stop = stop
		}
	}
	return ExitIntent{}, false
}

// Close closes the open position at price and records the trade.
func (p *Portfolio) Close(instrument string, price float64, t time.Time, reason ExitReason) (Trade, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked(instrument, price, t, reason)
}

func (p *Portfolio) closeLocked(instrument string, price float64, t time.Time, reason ExitReason) (Trade, error) {
	if !validPrice(price) {
		return Trade{}, fmt.Errorf("close %s: %w: %v", instrument, ErrInvalidPrice, price)
	}
	pos, ok := p.positions[instrument]
	if !ok {
		return Trade{}, fmt.Errorf("close %s: %w", instrument, ErrNoPosition)
	}

	cost := pos.CostBasis()
	credit := pos.MarketValue(price)
	pnl := credit - cost

	ids := p.ids
	var tradeID string
	if ids != nil {
		tradeID = ids.At(t)
	} else {
		tradeID = id.At(t)
	}

	tr := Trade{
		ID:          tradeID,
		Instrument:  pos.Instrument,
		EntryTime:   pos.EntryTime,
		ExitTime:    t,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   price,
		Shares:      pos.Shares,
		Direction:   pos.Direction,
		PnL:         pnl,
		PnLPct:      pnl / cost,
		Reason:      reason,
		Duration:    t.Sub(pos.EntryTime),
		InitialStop: pos.InitialStop,
		FinalStop:   pos.Stop,
	}

	p.cash += credit
	delete(p.positions, instrument)
	p.trades = append(p.trades, tr)

	p.log.WithFields(logrus.Fields{
		"instrument": tr.Instrument,
		"time":       t,
		"reason":     string(reason),
		"exit":       price,
		"pnl":        tr.PnL,
		"cash":       p.cash,
	}).Info("position closed")

	return tr, nil
}

// CloseAll liquidates every open position. Instruments without a valid
// price are skipped and logged; the rest are still closed.
func (p *Portfolio) CloseAll(prices map[string]float64, t time.Time, reason ExitReason) []Trade {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.positions))
	for name := range p.positions {
		names = append(names, name)
	}
	sort.Strings(names)

	var closed []Trade
	for _, name := range names {
		px, ok := prices[name]
		if !ok || !validPrice(px) {
			p.log.WithFields(logrus.Fields{
				"instrument": name,
				"time":       t,
			}).Warn("close all: no valid price, position left open")
			continue
		}
		tr, err := p.closeLocked(name, px, t, reason)
		if err != nil {
			p.log.WithError(err).WithField("instrument", name).Warn("close all: close failed")
			continue
		}
		closed = append(closed, tr)
	}
	return closed
}
