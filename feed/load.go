package feed

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/portsim/market"
)

// LoadBars reads every bar in [from, to) from a .csv or .parquet file.
// Parquet files may hold several symbols; symbol selects one of them.
func LoadBars(path, symbol string, from, to time.Time, log *logrus.Entry) ([]market.Bar, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := NewCSVBarFeed(path, from, to, log)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		var out []market.Bar
		for {
			b, ok, err := f.Next()
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			if !ok {
				return out, nil
			}
			out = append(out, b)
		}
	case ".parquet":
		return ReadParquet(path, symbol, from, to)
	default:
		return nil, fmt.Errorf("feed: unsupported file type %q", path)
	}
}

// Source names one instrument's bar file.
type Source struct {
	Name string
	Path string
}

// ParseSource accepts "NAME=path" or a bare path, in which case the name
// is the file name without its extension.
func ParseSource(s string) Source {
	if name, path, ok := strings.Cut(s, "="); ok && name != "" {
		return Source{Name: name, Path: path}
	}
	base := filepath.Base(s)
	return Source{Name: strings.TrimSuffix(base, filepath.Ext(base)), Path: s}
}

// DirSources lists every .csv and .parquet file in dir as a Source.
func DirSources(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Source
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".parquet":
			out = append(out, ParseSource(filepath.Join(dir, e.Name())))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
