package buffer

import (
	"sync"
	"testing"

	"github.com/mzaki9/Atomus-Lumea/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reading(ts int64) models.ColorReading {
	return models.NewColorReading(ts, 0.7*float64(ts), float64(ts), 0.5*float64(ts))
}

func TestAppend_KeepsNewestWhenOverCapacity(t *testing.T) {
	b := New(DefaultCapacity)
	for i := int64(0); i < 2000; i++ {
		b.Append(reading(i))
	}

	snap := b.Snapshot()
	require.Len(t, snap, 1800)
	assert.Equal(t, int64(200), snap[0].Timestamp)
	assert.Equal(t, int64(1999), snap[len(snap)-1].Timestamp)
	for i := 1; i < len(snap); i++ {
		assert.Equal(t, snap[i-1].Timestamp+1, snap[i].Timestamp)
	}
}

func TestAppend_ReturnsLength(t *testing.T) {
	b := New(3)
	assert.Equal(t, 1, b.Append(reading(1)))
	assert.Equal(t, 2, b.Append(reading(2)))
	assert.Equal(t, 3, b.Append(reading(3)))
	assert.Equal(t, 3, b.Append(reading(4)))
	assert.Equal(t, []int64{2, 3, 4}, timestamps(b.Snapshot()))
}

func TestClear(t *testing.T) {
	b := New(10)
	b.Append(reading(1))
	b.Append(reading(2))
	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Snapshot())

	b.Append(reading(3))
	assert.Equal(t, []int64{3}, timestamps(b.Snapshot()))
}

func TestSnapshot_IsIndependentOfLaterAppends(t *testing.T) {
	b := New(2)
	b.Append(reading(1))
	b.Append(reading(2))
	snap := b.Snapshot()

	b.Append(reading(3))
	b.Clear()

	assert.Equal(t, []int64{1, 2}, timestamps(snap))
}

func TestNew_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Capacity())
	assert.Equal(t, 5, New(5).Capacity())
}

func TestSnapshot_ConcurrentWithAppends(t *testing.T) {
	b := New(100)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(0); i < 5000; i++ {
			b.Append(reading(i))
		}
	}()

	for i := 0; i < 200; i++ {
		snap := b.Snapshot()
		assert.LessOrEqual(t, len(snap), 100)
		for j := 1; j < len(snap); j++ {
			if snap[j].Timestamp != snap[j-1].Timestamp+1 {
				t.Fatalf("snapshot out of order at %d: %d -> %d", j, snap[j-1].Timestamp, snap[j].Timestamp)
			}
		}
	}
	wg.Wait()
	assert.Equal(t, 100, b.Len())
}

func timestamps(rs []models.ColorReading) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.Timestamp
	}
	return out
}
