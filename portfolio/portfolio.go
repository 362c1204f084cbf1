// Package portfolio holds the cash ledger, open positions and closed trades
// of one simulated account.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/portsim/pkg/id"
	"github.com/rustyeddy/portsim/risk"
)

var (
	// ErrRejected wraps every refused Open. The ledger is unchanged.
	ErrRejected = errors.New("rejected")
	// ErrInvalidPrice is returned for non-positive or non-finite prices.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrNoPosition is returned when closing an instrument that is flat.
	ErrNoPosition = errors.New("no open position")
)

// Snapshot is one valuation of the account.
type Snapshot struct {
	Time     time.Time
	Cash     float64
	Holdings float64
	Total    float64
}

// Portfolio is the ledger for one account. Methods are safe for concurrent
// use, although a simulation drives it from a single goroutine.
type Portfolio struct {
	mu  sync.Mutex
	cfg risk.Config
	log *logrus.Entry
	ids *id.Generator

	initialCash float64
	cash        float64
	positions   map[string]*Position
	trades      []Trade
	snapshots   []Snapshot

	// advisory limit tracking
	peak     float64
	dayStart float64
	day      time.Time
}

// New creates a portfolio holding initialCash. A non-positive or
// non-finite initial cash is a configuration error.
func New(initialCash float64, cfg risk.Config, log *logrus.Entry) (*Portfolio, error) {
	if !validPrice(initialCash) {
		return nil, fmt.Errorf("portfolio: initial cash must be positive, got %v", initialCash)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Portfolio{
		cfg:         cfg,
		log:         log,
		initialCash: initialCash,
		cash:        initialCash,
		positions:   make(map[string]*Position),
		peak:        initialCash,
		dayStart:    initialCash,
	}, nil
}

// SetIDGenerator replaces the shared trade id generator.
func (p *Portfolio) SetIDGenerator(g *id.Generator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = g
}

func (p *Portfolio) Config() risk.Config { return p.cfg }

func (p *Portfolio) InitialCash() float64 { return p.initialCash }

func (p *Portfolio) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}

func (p *Portfolio) OpenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.positions)
}

// Position returns a copy of the open position for instrument.
func (p *Portfolio) Position(instrument string) (Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[instrument]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions ordered by instrument.
func (p *Portfolio) Positions() []Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// Trades returns the closed trades in close order.
func (p *Portfolio) Trades() []Trade {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

// Snapshots returns the valuation history.
func (p *Portfolio) Snapshots() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Snapshot, len(p.snapshots))
	copy(out, p.snapshots)
	return out
}

// markLocked picks the price a position is valued at: the supplied price,
// else its last mark.
func markLocked(pos *Position, prices map[string]float64) float64 {
	if px, ok := prices[pos.Instrument]; ok && validPrice(px) {
		return px
	}
	return pos.LastPrice
}

func (p *Portfolio) holdingsLocked(prices map[string]float64) float64 {
	var h float64
	for _, pos := range p.positions {
		h += pos.MarketValue(markLocked(pos, prices))
	}
	return h
}

// Value is cash plus the market value of every open position. Instruments
// missing from prices are valued at their last mark.
func (p *Portfolio) Value(prices map[string]float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash + p.holdingsLocked(prices)
}

// Exposure is gross market value of open positions over total value.
func (p *Portfolio) Exposure(prices map[string]float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := p.holdingsLocked(prices)
	total := p.cash + h
	if total <= 0 {
		return 0
	}
	return h / total
}

// OpenRisk sums the cash at risk to the current stops.
func (p *Portfolio) OpenRisk() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var r float64
	for _, pos := range p.positions {
		r += pos.OpenRisk()
	}
	return r
}

// Snapshot values the account at t and appends the valuation to the
// history. Prices also become the positions' last marks.
func (p *Portfolio) Snapshot(t time.Time, prices map[string]float64) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pos := range p.positions {
		pos.LastPrice = markLocked(pos, prices)
	}
	h := p.holdingsLocked(nil)
	s := Snapshot{Time: t, Cash: p.cash, Holdings: h, Total: p.cash + h}

	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	if !day.Equal(p.day) {
		if n := len(p.snapshots); n > 0 {
			p.dayStart = p.snapshots[n-1].Total
		}
		p.day = day
	}
	p.peak = math.Max(p.peak, s.Total)

	p.snapshots = append(p.snapshots, s)
	return s
}

// CheckLimits evaluates the advisory circuit breakers against the latest
// snapshot. Nothing is blocked; the caller decides what to do with the
// violations.
func (p *Portfolio) CheckLimits() risk.Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	equity := p.cash + p.holdingsLocked(nil)
	var openRisk float64
	for _, pos := range p.positions {
		openRisk += pos.OpenRisk()
	}
	return risk.CheckLimits(p.cfg, risk.AccountSnapshot{
		Equity:         equity,
		PeakEquity:     p.peak,
		DayStartEquity: p.dayStart,
		OpenPositions:  len(p.positions),
		OpenRisk:       openRisk,
	})
}
