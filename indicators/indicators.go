// Package indicators provides streaming estimators computed from bars.
package indicators

import "github.com/rustyeddy/portsim/market"

// Indicator computes a single streaming value from bars.
// It is deterministic and safe to reuse across runs after Reset.
type Indicator interface {
	// Name returns a stable identifier like "VOL(20)" or "ATR(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed bar.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current estimate, 0 until Ready.
	Value() float64
}

// New returns the volatility estimator registered under method.
// Unknown methods fall back to close-to-close return volatility.
func New(method string, period int) Indicator {
	switch method {
	case "atr":
		return NewATRPct(period)
	case "ewma":
		return NewEWMAVolatility(period)
	default:
		return NewVolatility(period)
	}
}
