package market

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Direction of a position: +1 long, -1 short, 0 flat.
type Direction int8

const (
	Flat  Direction = 0
	Long  Direction = +1
	Short Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Sign returns the direction as a float multiplier.
func (d Direction) Sign() float64 {
	return float64(d)
}

// Signal is the discrete directive a strategy attaches to a bar.
type Signal int8

const (
	Hold Signal = iota
	EnterLong
	EnterShort
	Exit
)

func (s Signal) String() string {
	switch s {
	case EnterLong:
		return "long"
	case EnterShort:
		return "short"
	case Exit:
		return "exit"
	default:
		return "hold"
	}
}

// Direction returns the direction an entry signal asks for, Flat otherwise.
func (s Signal) Direction() Direction {
	switch s {
	case EnterLong:
		return Long
	case EnterShort:
		return Short
	default:
		return Flat
	}
}

// IsEntry reports whether the signal asks to open a position.
func (s Signal) IsEntry() bool {
	return s == EnterLong || s == EnterShort
}

// ParseSignal accepts the names produced by String and the numeric
// conventions used by strategy exports (1 long, -1 short, 0 hold, 2 exit).
func ParseSignal(s string) (Signal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "hold", "none":
		return Hold, nil
	case "1", "+1", "long", "buy", "enter_long":
		return EnterLong, nil
	case "-1", "short", "sell", "enter_short":
		return EnterShort, nil
	case "2", "exit", "flat", "close":
		return Exit, nil
	}
	return Hold, fmt.Errorf("unknown signal %q", s)
}

// Bar is one time step of market data for one instrument together with the
// strategy signal computed on it.
type Bar struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64

	Signal   Signal
	Position Direction // position direction hint from the strategy
}

// Valid reports whether the bar carries usable prices.
func (b Bar) Valid() bool {
	if b.Time.IsZero() {
		return false
	}
	for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return false
		}
	}
	return b.Low <= b.High
}

// PriceBar returns a bar whose OHLC are all price. Used when only a
// single mark is known.
func PriceBar(t time.Time, price float64) Bar {
	return Bar{Time: t, Open: price, High: price, Low: price, Close: price}
}
