// Package photon models the quantum half of a BB84 exchange: photons prepared
// by Alice, an optional eavesdropper intercepting them in flight, and Bob's
// detector.
//
// No quantum state is represented. A photon is a (bit, basis) pair and every
// measurement in the wrong basis is a fair coin flip drawn from an
// rng.Source.
package photon

import (
	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/rng"
)

// Basis values, as stored in a basis bitmap.
const (
	Rectilinear = false
	Diagonal    = true
)

// BasisName returns a human readable name for a basis value.
func BasisName(basis bool) string {
	if basis == Diagonal {
		return "diagonal"
	}
	return "rectilinear"
}

// An Eavesdropper is a strategy for interfering with the quantum channel. It
// is chosen once per run; Plan draws whatever per-run choices the strategy
// needs.
type Eavesdropper interface {
	// Name identifies the strategy in logs and reports.
	Name() string

	// Intercepts reports whether the strategy touches the channel at all.
	Intercepts() bool

	// ExpectedQBER returns the error rate the strategy induces on the sifted
	// key in the limit of many photons, absent any other noise.
	ExpectedQBER() float64

	// Plan prepares an interception of n photons, drawing from src.
	Plan(n int, src rng.Source) Interception
}

// An Interception is one eavesdropper's plan for one run.
type Interception interface {
	// Bases returns the measurement bases chosen for each slot, or an empty
	// bitmap if no photon is measured.
	Bases() bitmap.Dense

	// Resend handles the photon in slot i, prepared as bit in basis. It
	// returns the bit which continues on to Bob and whether the photon was
	// measured along the way.
	Resend(i int, bit, basis bool, src rng.Source) (out bool, observed bool)
}
