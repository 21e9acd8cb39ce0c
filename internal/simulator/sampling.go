package simulator

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Sampler serializes access to a random source so draws are safe from any goroutine.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler wraps rng. A nil rng is replaced by a randomly seeded source.
func NewSampler(rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{rng: rng}
}

// IntN returns a uniform integer in [0, n).
func (s *Sampler) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// IntBetween returns a uniform integer in [lo, hi].
func (s *Sampler) IntBetween(lo, hi int) int {
	return lo + s.IntN(hi-lo+1)
}

// Float64 returns a uniform float in [0, 1).
func (s *Sampler) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Duration returns a uniform duration in [lo, hi].
func (s *Sampler) Duration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + time.Duration(s.rng.Int64N(int64(hi-lo)+1))
}

// Weighted returns index i with probability weights[i] / sum(weights).
func (s *Sampler) Weighted(weights []int) int {
	total := 0
	for _, w := range weights {
		total += w
	}
	return weightedIndex(weights, s.IntN(total))
}

// weightedIndex maps r in [0, sum(weights)) onto the bucket it falls in.
func weightedIndex(weights []int, r int) int {
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	return len(weights) - 1
}

// Pick returns a uniformly chosen element of items, which must be non-empty.
func Pick[T any](s *Sampler, items []T) T {
	return items[s.IntN(len(items))]
}
