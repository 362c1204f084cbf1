package id

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Sortable(t *testing.T) {
	t.Parallel()

	a := New()
	b := New()
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
}

func TestGenerator_AtEncodesTime(t *testing.T) {
	t.Parallel()

	g := NewGenerator(1)
	ts := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	s := g.At(ts)

	got, err := Time(s)
	require.NoError(t, err)
	assert.True(t, got.Equal(ts))
}

func TestGenerator_Deterministic(t *testing.T) {
	t.Parallel()

	ts := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	g1 := NewGenerator(42)
	g2 := NewGenerator(42)
	for i := 0; i < 5; i++ {
		at := ts.AddDate(0, 0, i)
		assert.Equal(t, g1.At(at), g2.At(at))
	}
}

func TestGenerator_MonotonicWhenTimeGoesBack(t *testing.T) {
	t.Parallel()

	g := NewGenerator(7)
	late := g.At(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	early := g.At(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Less(t, late, early)
}

func TestGenerator_Concurrent(t *testing.T) {
	t.Parallel()

	g := NewGenerator(3)
	var mu sync.Mutex
	seen := map[string]bool{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := g.New()
				mu.Lock()
				seen[s] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 800)
}
