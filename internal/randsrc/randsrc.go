// Package randsrc abstracts the uniform random draws used by the forecast
// engine and the series generator so tests can inject fixed sequences.
package randsrc

import (
	"math/rand/v2"
	"sync"
)

// Source yields uniform random numbers.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// Factory builds a fresh Source. Every engine call takes its own Source so
// concurrent calls never share generator state.
type Factory func() Source

// NewFactory returns a Factory producing independently seeded PCG generators.
func NewFactory() Factory {
	return func() Source {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}

// NewSeededFactory returns a Factory whose sources derive from seed, giving
// reproducible runs. Sources are still independent of each other.
func NewSeededFactory(seed uint64) Factory {
	var mu sync.Mutex
	parent := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func() Source {
		mu.Lock()
		s1, s2 := parent.Uint64(), parent.Uint64()
		mu.Unlock()
		return rand.New(rand.NewPCG(s1, s2))
	}
}

// Fixed returns a Source cycling through values for Float64. IntN maps the
// current value onto [0, n). With no values it always yields 0.5.
func Fixed(values ...float64) *Sequence {
	if len(values) == 0 {
		values = []float64{0.5}
	}
	return &Sequence{values: values}
}

// Sequence is a deterministic Source for tests.
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
	draws  int
}

// Float64 returns the next value of the sequence.
func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next]
	s.next = (s.next + 1) % len(s.values)
	s.draws++
	return v
}

// IntN scales the next value of the sequence onto [0, n).
func (s *Sequence) IntN(n int) int {
	if n <= 0 {
		panic("randsrc: invalid argument to IntN")
	}
	v := int(s.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

// Draws returns how many values have been consumed.
func (s *Sequence) Draws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draws
}

// FactoryOf returns a Factory that always hands out src.
func FactoryOf(src Source) Factory {
	return func() Source { return src }
}
