// Package rng implements the seeded pseudo-random generator used for
// reproducible form assembly.
//
// The generator is mulberry32: a single 32-bit state advanced by a fixed
// additive step (0x6D2B79F5) with multiplicative mixing per call, each call
// yielding one float64 in [0, 1). The algorithm is specified exactly so that
// independent implementations given the same seed agree bit-for-bit on the
// output sequence, and therefore on every permutation derived from it.
package rng

import "slices"

// Source is a deterministic random source. It is not safe for concurrent
// use; callers create one per assembly run.
type Source struct {
	state uint32
}

// New returns a Source seeded with the given 32-bit seed.
func New(seed uint32) *Source {
	return &Source{state: seed}
}

// Float64 advances the state once and returns the next value in [0, 1).
func (s *Source) Float64() float64 {
	s.state += 0x6D2B79F5
	z := s.state
	z = (z ^ (z >> 15)) * (z | 1)
	z ^= z + (z^(z>>7))*(z|61)
	return float64(z^(z>>14)) / 4294967296.0
}

// Intn returns a value in [0, n) as floor(Float64() * n).
func (s *Source) Intn(n int) int {
	return int(s.Float64() * float64(n))
}

// Shuffle returns a copy of items permuted by a deterministic Fisher-Yates
// pass seeded with seed: iterate from the last index down to 1, swapping
// each position i with position floor(rand() * (i+1)).
func Shuffle[T any](items []T, seed uint32) []T {
	src := New(seed)
	a := slices.Clone(items)
	for i := len(a) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		a[i], a[j] = a[j], a[i]
	}
	return a
}
