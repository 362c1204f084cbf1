package portfolio

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnbalanced means cash no longer equals initial cash minus open cost
// plus realized P&L.
var ErrUnbalanced = errors.New("ledger unbalanced")

// Reconcile recomputes cash from the initial deposit, the open positions'
// cost basis and every closed trade's P&L, in decimal to the cent, and
// compares it with the running cash balance.
func (p *Portfolio) Reconcile() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	want := decimal.NewFromFloat(p.initialCash)
	for _, pos := range p.positions {
		want = want.Sub(decimal.NewFromFloat(pos.CostBasis()))
	}
	for _, t := range p.trades {
		want = want.Add(decimal.NewFromFloat(t.PnL))
	}

	got := decimal.NewFromFloat(p.cash).Round(2)
	want = want.Round(2)
	if diff := got.Sub(want).Abs(); diff.GreaterThan(decimal.NewFromFloat(0.01)) {
		return fmt.Errorf("%w: cash %s, expected %s", ErrUnbalanced, got.StringFixed(2), want.StringFixed(2))
	}
	return nil
}
