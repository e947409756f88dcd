// Package random wraps a seeded generator so that every draw of a run goes
// through one source in a fixed order.
package random

import (
	"math/rand/v2"
	"time"
)

// Rand is a seeded, non-concurrent random source.
type Rand struct {
	r *rand.Rand
}

// New returns a generator seeded with seed. Equal seeds yield equal draw sequences.
func New(seed uint64) *Rand {
	return &Rand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Between returns a uniform integer in [min, max]. It returns min when max < min.
func (g *Rand) Between(min, max int) int {
	if max <= min {
		return min
	}
	return min + g.r.IntN(max-min+1)
}

// Index returns a uniform index in [0, n). n must be positive.
func (g *Rand) Index(n int) int {
	return g.r.IntN(n)
}

// Shuffle permutes n elements in place through swap.
func (g *Rand) Shuffle(n int, swap func(i, j int)) {
	g.r.Shuffle(n, swap)
}

// Sample returns k distinct indices out of [0, n), in draw order.
func (g *Rand) Sample(n, k int) []int {
	if k > n {
		k = n
	}
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		j := i + g.r.IntN(n-i)
		pool[i], pool[j] = pool[j], pool[i]
		out[i] = pool[i]
	}
	return out
}

// Clock returns a time on day between startHour (inclusive) and endHour (exclusive),
// with minute and second drawn too.
func (g *Rand) Clock(day time.Time, startHour, endHour int) time.Time {
	h := g.Between(startHour, endHour-1)
	m := g.Between(0, 59)
	s := g.Between(0, 59)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, s, 0, day.Location())
}

// Pick returns a uniformly chosen element. items must not be empty.
func Pick[T any](g *Rand, items []T) T {
	return items[g.Index(len(items))]
}

// SampleOf returns k distinct elements of items in draw order.
func SampleOf[T any](g *Rand, items []T, k int) []T {
	idx := g.Sample(len(items), k)
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}
