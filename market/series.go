package market

import (
	"sort"
	"time"
)

// Point is one timestamped observation.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is a time ordered sequence of points.
type Series []Point

func (s Series) Len() int { return len(s) }

// Times returns the time index of the series.
func (s Series) Times() []time.Time {
	out := make([]time.Time, len(s))
	for i, p := range s {
		out[i] = p.Time
	}
	return out
}

// Values returns the values of the series.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

func (s Series) First() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[0], true
}

func (s Series) Last() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// Sorted returns a copy ordered by time.
func (s Series) Sorted() Series {
	out := make(Series, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Window returns the points with from <= t <= to. Zero bounds are open.
func (s Series) Window(from, to time.Time) Series {
	var out Series
	for _, p := range s {
		if !from.IsZero() && p.Time.Before(from) {
			continue
		}
		if !to.IsZero() && p.Time.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Rebase scales the series so that its first point equals base.
// A series starting at zero cannot be rebased and yields nil.
func (s Series) Rebase(base float64) Series {
	first, ok := s.First()
	if !ok || first.Value == 0 {
		return nil
	}
	k := base / first.Value
	out := make(Series, len(s))
	for i, p := range s {
		out[i] = Point{Time: p.Time, Value: p.Value * k}
	}
	return out
}

// Lookup maps each unix nanosecond timestamp to its value.
func (s Series) Lookup() map[int64]float64 {
	m := make(map[int64]float64, len(s))
	for _, p := range s {
		m[p.Time.UnixNano()] = p.Value
	}
	return m
}

// CloseSeries extracts the close prices of bars.
func CloseSeries(bars []Bar) Series {
	out := make(Series, 0, len(bars))
	for _, b := range bars {
		out = append(out, Point{Time: b.Time, Value: b.Close})
	}
	return out
}
