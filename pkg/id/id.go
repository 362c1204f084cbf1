// Package id generates ULID identifiers for trades and runs.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces monotonic ULIDs. It is safe for concurrent use.
type Generator struct {
	mu   sync.Mutex
	mono io.Reader
	last ulid.ULID
}

// NewGenerator returns a generator whose entropy comes from seed. Two
// generators with the same seed stamped with the same times produce the
// same ids, which keeps simulation output reproducible.
func NewGenerator(seed int64) *Generator {
	return &Generator{mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

// At returns a ULID whose timestamp is t. Simulated trades are stamped with
// their simulated exit time so ids sort the way the ledger does.
func (g *Generator) At(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := ulid.Timestamp(t.UTC())
	if t.IsZero() || t.Before(time.UnixMilli(0)) {
		ms = 0
	}
	// ulid.Monotonic only guarantees ordering for non-decreasing times.
	if ms < g.last.Time() {
		ms = g.last.Time()
	}

	id, err := ulid.New(ms, g.mono)
	if err != nil {
		// Entropy overflow inside a single millisecond; move to the next one.
		id = ulid.MustNew(ms+1, g.mono)
	}
	g.last = id
	return id.String()
}

// New returns a ULID stamped with the wall clock.
func (g *Generator) New() string {
	return g.At(time.Now())
}

var std *Generator

func init() {
	// Seed from crypto/rand so run ids are unpredictable.
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	std = NewGenerator(seed)
}

// New returns a ULID string (time-sortable identifier).
//
// ULIDs are lexicographically sortable by generation time, which makes them
// ideal for journal rows and SQLite indexes.
func New() string {
	return std.New()
}

// At returns a ULID from the shared generator stamped with t.
func At(t time.Time) string {
	return std.At(t)
}

// Time extracts the timestamp encoded in a ULID string.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
