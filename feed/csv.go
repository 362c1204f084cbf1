// Package feed loads bar series with their strategy signals from CSV and
// Parquet files.
package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/portsim/market"
)

// CSVBarFeed reads bar rows:
//
//	time,open,high,low,close[,signal[,position]]
//
// where time is RFC3339, RFC3339Nano or YYYY-MM-DD, signal is anything
// market.ParseSignal accepts and position is -1, 0 or 1.
//
// It optionally filters bars to [From, To). A header row ("time,...") is
// allowed. Empty and short rows are skipped; rows that fail to parse are
// skipped and logged.
type CSVBarFeed struct {
	f    *os.File
	r    *csv.Reader
	from time.Time
	to   time.Time
	log  *logrus.Entry

	sawFirst bool
	line     int
	Skipped  int
}

func NewCSVBarFeed(path string, from, to time.Time, log *logrus.Entry) (*CSVBarFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	return &CSVBarFeed{f: f, r: r, from: from, to: to, log: log.WithField("file", path)}, nil
}

func (f *CSVBarFeed) Close() error {
	if f.f != nil {
		return f.f.Close()
	}
	return nil
}

func (f *CSVBarFeed) Next() (market.Bar, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return market.Bar{}, false, nil
		}
		if err != nil {
			return market.Bar{}, false, err
		}
		f.line++
		if len(row) == 0 {
			continue
		}

		// Allow a single header row
		if !f.sawFirst {
			f.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") || strings.EqualFold(strings.TrimSpace(row[0]), "date") {
				continue
			}
		}

		b, ok, err := parseBarRow(row)
		if err != nil {
			f.Skipped++
			f.log.WithError(err).WithField("line", f.line).Warn("skipping malformed row")
			continue
		}
		if !ok {
			continue
		}
		if !inRange(b.Time, f.from, f.to) {
			continue
		}
		return b, true, nil
	}
}

var timeLayouts = []string{time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

// ParseTime accepts RFC3339, RFC3339Nano, "2006-01-02 15:04:05" and
// "2006-01-02". Times without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q: %w", s, firstErr)
}

func parseBarRow(row []string) (market.Bar, bool, error) {
	// Need at least: time,open,high,low,close
	if len(row) < 5 {
		return market.Bar{}, false, nil
	}

	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return market.Bar{}, false, nil
	}
	t, err := ParseTime(ts)
	if err != nil {
		return market.Bar{}, false, err
	}

	var px [4]float64
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
		if err != nil {
			return market.Bar{}, false, fmt.Errorf("bad price %q: %w", row[i+1], err)
		}
		px[i] = v
	}

	b := market.Bar{Time: t, Open: px[0], High: px[1], Low: px[2], Close: px[3]}

	if len(row) > 5 {
		sig, err := market.ParseSignal(row[5])
		if err != nil {
			return market.Bar{}, false, err
		}
		b.Signal = sig
	}
	if len(row) > 6 && strings.TrimSpace(row[6]) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(row[6]))
		if err != nil || n < -1 || n > 1 {
			return market.Bar{}, false, fmt.Errorf("bad position %q", row[6])
		}
		b.Position = market.Direction(n)
	}
	return b, true, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

// WriteCSV writes bars in the format CSVBarFeed reads.
func WriteCSV(path string, bars []market.Bar) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "open", "high", "low", "close", "signal", "position"}); err != nil {
		return err
	}
	ff := func(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }
	for _, b := range bars {
		if err := w.Write([]string{
			b.Time.UTC().Format(time.RFC3339),
			ff(b.Open), ff(b.High), ff(b.Low), ff(b.Close),
			b.Signal.String(),
			strconv.Itoa(int(b.Position)),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
