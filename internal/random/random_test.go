package random

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameSeedSameSequence(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Between(1, 1000), b.Between(1, 1000))
	}
	assert.Equal(t, a.Sample(50, 10), b.Sample(50, 10))
}

func TestBetweenBounds(t *testing.T) {
	g := New(7)
	for i := 0; i < 1000; i++ {
		v := g.Between(200, 1000)
		require.GreaterOrEqual(t, v, 200)
		require.LessOrEqual(t, v, 1000)
	}
	assert.Equal(t, 5, g.Between(5, 5))
	assert.Equal(t, 5, g.Between(5, 3))
}

func TestSampleDistinct(t *testing.T) {
	g := New(1)
	got := g.Sample(7, 7)
	seen := map[int]bool{}
	for _, v := range got {
		assert.False(t, seen[v])
		seen[v] = true
	}
	assert.Len(t, got, 7)
	assert.Len(t, g.Sample(3, 10), 3)
}

func TestClockWithinStoreHours(t *testing.T) {
	g := New(3)
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 500; i++ {
		at := g.Clock(day, 9, 18)
		require.GreaterOrEqual(t, at.Hour(), 9)
		require.Less(t, at.Hour(), 18)
		require.Equal(t, 4, at.Day())
	}
}
