package feed

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/rustyeddy/portsim/market"
)

// BarRecord is the Parquet schema for bars with signals.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Signal    int32   `parquet:"signal"`   // 0 hold, 1 long, 2 short, 3 exit
	Position  int32   `parquet:"position"` // -1, 0, 1
}

func toRecord(symbol string, b market.Bar) BarRecord {
	return BarRecord{
		Symbol:    symbol,
		Timestamp: b.Time.UnixMilli(),
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Signal:    int32(b.Signal),
		Position:  int32(b.Position),
	}
}

func (r BarRecord) bar() market.Bar {
	return market.Bar{
		Time:     time.UnixMilli(r.Timestamp).UTC(),
		Open:     r.Open,
		High:     r.High,
		Low:      r.Low,
		Close:    r.Close,
		Signal:   market.Signal(r.Signal),
		Position: market.Direction(r.Position),
	}
}

// WriteParquet stores bars for symbol at path.
func WriteParquet(path, symbol string, bars []market.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	records := make([]BarRecord, len(bars))
	for i, b := range bars {
		records[i] = toRecord(symbol, b)
	}
	return parquet.WriteFile(path, records)
}

// ReadParquet loads bars from path ordered by time. When symbol is not
// empty only its rows are returned. Bars are filtered to [from, to).
func ReadParquet(path, symbol string, from, to time.Time) ([]market.Bar, error) {
	rows, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })

	var out []market.Bar
	for _, r := range rows {
		if symbol != "" && !strings.EqualFold(r.Symbol, symbol) {
			continue
		}
		b := r.bar()
		if !inRange(b.Time, from, to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Symbols lists the distinct symbols stored in a Parquet bar file.
func Symbols(path string) ([]string, error) {
	rows, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		if !seen[r.Symbol] {
			seen[r.Symbol] = true
			out = append(out, r.Symbol)
		}
	}
	sort.Strings(out)
	return out, nil
}
