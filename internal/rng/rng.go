// Package rng implements the deterministic pseudo-random generator used for
// weight initialization and batch shuffling.
//
// The generator is a Lehmer linear-congruential generator (Park & Miller
// constants). It is intentionally simple: training runs must be bit-for-bit
// reproducible given the same seed, across platforms, which rules out
// math/rand's unspecified evolution between Go releases. Each Source is an
// explicit instance threaded through the code that needs randomness; there
// is no package-level state.
package rng

import "math"

// DefaultSeed is the seed used when a caller does not provide one.
const DefaultSeed = 96431 // prime

const (
	modulus    = 2147483647 // 0x7FFFFFFF
	multiplier = 48271      // prime
)

// Source is a Lehmer linear-congruential generator.
type Source struct {
	seed int32
}

// New returns a Source seeded with seed. A non-positive seed is replaced
// with DefaultSeed.
func New(seed int32) *Source {
	seed &= 0x7FFFFFFF
	if seed <= 0 {
		seed = DefaultSeed
	}
	return &Source{seed: seed}
}

// Float32 returns the next value uniformly distributed in (0, 1].
func (s *Source) Float32() float32 {
	const q = modulus / multiplier
	const r = modulus % multiplier
	t := multiplier*(s.seed%q) - r*(s.seed/q)
	if t > 0 {
		s.seed = t
	} else {
		s.seed = t + modulus
	}
	return float32(s.seed) / float32(modulus)
}

// Uniform returns the next value uniformly distributed in [min, max).
func (s *Source) Uniform(min, max float32) float32 {
	return s.Float32()*(max-min) + min
}

// Normal returns the next value from a normal distribution with the given
// mean and standard deviation, via the Box-Muller transform.
func (s *Source) Normal(mean, stddev float32) float32 {
	z := math.Sqrt(-2.0*math.Log(float64(s.Float32()))) *
		math.Sin(2.0*math.Pi*float64(s.Float32()))
	return mean + stddev*float32(z)
}

// Intn returns the next value uniformly distributed in [0, n).
func (s *Source) Intn(n int) int {
	return int(s.Uniform(0.0, float32(n)))
}
