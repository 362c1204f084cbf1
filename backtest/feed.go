package backtest

import "github.com/rustyeddy/portsim/market"

// BarFeed yields bars for one instrument in order. Implementations should
// be deterministic and return (ok=false, err=nil) at EOF.
type BarFeed interface {
	Next() (b market.Bar, ok bool, err error)
	Close() error
}

// SliceFeed is a BarFeed over bars already in memory.
type SliceFeed struct {
	bars []market.Bar
	idx  int
}

func NewSliceFeed(bars []market.Bar) *SliceFeed {
	return &SliceFeed{bars: bars}
}

func (f *SliceFeed) Next() (market.Bar, bool, error) {
	if f.idx >= len(f.bars) {
		return market.Bar{}, false, nil
	}
	b := f.bars[f.idx]
	f.idx++
	return b, true, nil
}

func (f *SliceFeed) Close() error { return nil }
