// Package rng provides the randomness consumed by a BB84 simulation.
package rng

import (
	"math/rand"
	"time"
)

// A Source supplies the uniform binary choices made during a simulated
// exchange. Implementations need not be cryptographically secure.
//
// A Source is stateful: every call advances it. Sharing one seeded Source
// between several simulations without reseeding correlates them.
type Source interface {
	// NextBit returns a uniformly random bit value.
	NextBit() bool
	// NextBasis returns a uniformly random basis choice, with true denoting
	// the diagonal basis.
	NextBasis() bool
}

// A Rand is a Source backed by a math/rand generator.
//
// Thread-safety: NOT thread-safe. Must be used from a single goroutine.
type Rand struct {
	r *rand.Rand
}

// NewSource returns a Source seeded with *seed, or with the current time if
// seed is nil. Two sources built from the same seed produce identical draws.
func NewSource(seed *int64) *Rand {
	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}
	return FromRand(rand.New(rand.NewSource(s)))
}

// FromRand wraps an existing generator. The caller keeps responsibility for
// any other use of r.
func FromRand(r *rand.Rand) *Rand {
	return &Rand{r: r}
}

// NextBit implements Source.
func (s *Rand) NextBit() bool {
	return s.draw()
}

// NextBasis implements Source.
func (s *Rand) NextBasis() bool {
	return s.draw()
}

// draw uses the top bit of a 63-bit draw.
func (s *Rand) draw() bool {
	return s.r.Int63()&(1<<62) != 0
}

// Fixed is a Source which replays a fixed sequence of draws, intended for
// tests. NextBit and NextBasis consume from the same sequence, in call order.
// Once the sequence is exhausted every draw returns false.
type Fixed struct {
	draws []bool
	pos   int
}

// NewFixed returns a Fixed source replaying draws.
func NewFixed(draws ...bool) *Fixed {
	return &Fixed{draws: draws}
}

// NextBit implements Source.
func (f *Fixed) NextBit() bool {
	return f.next()
}

// NextBasis implements Source.
func (f *Fixed) NextBasis() bool {
	return f.next()
}

// Consumed returns the number of draws made so far.
func (f *Fixed) Consumed() int {
	return f.pos
}

func (f *Fixed) next() bool {
	if f.pos >= len(f.draws) {
		f.pos++
		return false
	}
	b := f.draws[f.pos]
	f.pos++
	return b
}
