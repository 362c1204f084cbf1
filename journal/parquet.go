package journal

import (
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
)

// EquityRecord is the Parquet schema for exported valuation snapshots.
type EquityRecord struct {
	RunID      string  `parquet:"run_id"`
	Instrument string  `parquet:"instrument"`
	Timestamp  int64   `parquet:"timestamp,timestamp(millisecond)"`
	Cash       float64 `parquet:"cash"`
	Holdings   float64 `parquet:"holdings"`
	Equity     float64 `parquet:"equity"`
}

// WriteEquityParquet exports snapshots for columnar analysis.
func WriteEquityParquet(path string, snaps []EquitySnapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	records := make([]EquityRecord, len(snaps))
	for i, s := range snaps {
		records[i] = EquityRecord{
			RunID:      s.RunID,
			Instrument: s.Instrument,
			Timestamp:  s.Time.UnixMilli(),
			Cash:       s.Cash,
			Holdings:   s.Holdings,
			Equity:     s.Equity,
		}
	}
	return parquet.WriteFile(path, records)
}

// ReadEquityParquet loads snapshots written by WriteEquityParquet.
func ReadEquityParquet(path string) ([]EquitySnapshot, error) {
	rows, err := parquet.ReadFile[EquityRecord](path)
	if err != nil {
		return nil, err
	}
	out := make([]EquitySnapshot, len(rows))
	for i, r := range rows {
		out[i] = EquitySnapshot{
			RunID:      r.RunID,
			Instrument: r.Instrument,
			Time:       time.UnixMilli(r.Timestamp).UTC(),
			Cash:       r.Cash,
			Holdings:   r.Holdings,
			Equity:     r.Equity,
		}
	}
	return out, nil
}
