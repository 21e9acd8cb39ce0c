package simulator

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeightedIndex(t *testing.T) {
	w := []int{60, 20, 10, 5, 5}
	cases := map[int]int{0: 0, 59: 0, 60: 1, 79: 1, 80: 2, 89: 2, 90: 3, 95: 4, 99: 4}
	for r, want := range cases {
		assert.Equal(t, want, weightedIndex(w, r), "r=%d", r)
	}
}

func TestSamplerRanges(t *testing.T) {
	s := NewSampler(rand.New(rand.NewPCG(3, 4)))
	for range 1000 {
		n := s.IntBetween(20, 50)
		assert.True(t, n >= 20 && n <= 50)
		d := s.Duration(500*time.Millisecond, 3*time.Second)
		assert.True(t, d >= 500*time.Millisecond && d <= 3*time.Second)
		f := s.Float64()
		assert.True(t, f >= 0 && f < 1)
	}
	assert.Equal(t, time.Second, s.Duration(time.Second, time.Second))
}

func TestPickCoversAll(t *testing.T) {
	s := NewSampler(nil)
	seen := map[string]bool{}
	for range 500 {
		seen[Pick(s, []string{"x", "y", "z"})] = true
	}
	assert.Len(t, seen, 3)
}
