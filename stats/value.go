// Package stats derives performance metrics from a portfolio value series
// and its closed trades. Every function is pure. A metric that cannot be
// computed is reported as Undefined rather than as a misleading zero.
package stats

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind distinguishes computed values from undefined ones.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindDefined
	KindApprox // computed with a documented approximation
)

func (k Kind) String() string {
	switch k {
	case KindDefined:
		return "defined"
	case KindApprox:
		return "approximate"
	default:
		return "undefined"
	}
}

// Value is a metric result. The zero Value is Undefined.
type Value struct {
	v    float64
	kind Kind
}

func Defined(v float64) Value     { return Value{v: v, kind: KindDefined} }
func Approximate(v float64) Value { return Value{v: v, kind: KindApprox} }
func Undefined() Value            { return Value{} }

func (v Value) Kind() Kind { return v.kind }

// IsDefined is true for defined and approximate values.
func (v Value) IsDefined() bool { return v.kind != KindUndefined }

func (v Value) IsApprox() bool { return v.kind == KindApprox }

// Float returns the number and whether it is defined.
func (v Value) Float() (float64, bool) {
	if v.kind == KindUndefined {
		return 0, false
	}
	return v.v, true
}

// Or returns the number, or fallback when undefined.
func (v Value) Or(fallback float64) float64 {
	if v.kind == KindUndefined {
		return fallback
	}
	return v.v
}

// keep carries the approximation flag of from onto a derived number.
func keep(x float64, from ...Value) Value {
	for _, f := range from {
		if f.IsApprox() {
			return Approximate(x)
		}
	}
	return Defined(x)
}

func (v Value) String() string {
	if v.kind == KindUndefined {
		return "undefined"
	}
	var s string
	switch {
	case math.IsInf(v.v, 1):
		s = "+Inf"
	case math.IsInf(v.v, -1):
		s = "-Inf"
	default:
		s = strconv.FormatFloat(v.v, 'f', 4, 64)
	}
	if v.kind == KindApprox {
		return "~" + s
	}
	return s
}

// MarshalJSON encodes undefined as null and infinities as strings, since
// JSON has no representation for them.
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.kind == KindUndefined:
		return []byte("null"), nil
	case math.IsInf(v.v, 1):
		return json.Marshal("+Inf")
	case math.IsInf(v.v, -1):
		return json.Marshal("-Inf")
	}
	return json.Marshal(v.v)
}
