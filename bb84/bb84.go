// Package bb84 simulates a single run of the BB84 quantum key distribution
// protocol: Alice prepares random bits in random bases, an optional
// eavesdropper interferes with the quantum channel, Bob measures in random
// bases, both sides sift down to the slots where their bases agreed, and the
// quantum bit error rate (QBER) of the sifted key is estimated.
//
// A run is a pure function of its Options and the draws of its rng.Source.
// Deciding whether a QBER indicates eavesdropping is left to the caller; see
// package security.
package bb84

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/photon"
	"github.com/alan-christopher/bb84sim/bb84/rng"
)

// Options packages together the arguments to Run. NumBits has no reasonable
// default; leaving it zero makes Run fail.
type Options struct {
	// NumBits is the number of photons Alice sends. Must be positive.
	NumBits int

	// Eavesdropper interferes with the quantum channel. Defaults to
	// photon.NoEavesdropper.
	Eavesdropper photon.Eavesdropper

	// Seed makes the run deterministic. Ignored when nil.
	Seed *int64

	// Source overrides the randomness used by the run, and may not be set
	// together with Seed. A Source shared between runs correlates them; it is
	// up to the caller to reseed between runs if that matters.
	Source rng.Source

	// Log receives debug output as the run advances. Defaults to the logrus
	// standard logger.
	Log logrus.FieldLogger
}

// RunResult is an immutable snapshot of a finished run. Its sequence accessors
// return clones, so callers may modify what they are given.
type RunResult struct {
	numBits      int
	seed         int64
	seeded       bool
	strategy     string
	eavesdropped bool

	aliceBits  bitmap.Dense
	aliceBases bitmap.Dense
	bobBases   bitmap.Dense
	bobBits    bitmap.Dense
	eveBases   bitmap.Dense
	eveBits    bitmap.Dense

	siftedAlice bitmap.Dense
	siftedBob   bitmap.Dense
	qber        QBER
}

// Simulate runs BB84 over numBits photons, with an intercept-resend
// eavesdropper if eavesdrop is set. A non-nil seed makes the run
// reproducible: identical arguments produce identical results.
func Simulate(numBits int, eavesdrop bool, seed *int64) (RunResult, error) {
	return Run(Options{
		NumBits:      numBits,
		Eavesdropper: photon.ForFlag(eavesdrop),
		Seed:         seed,
	})
}

// Run performs one BB84 run configured by opts.
func Run(opts Options) (RunResult, error) {
	if opts.NumBits <= 0 {
		return RunResult{}, fmt.Errorf("%w: num_bits must be positive, got %d", ErrInvalidParameter, opts.NumBits)
	}
	if opts.Seed != nil && opts.Source != nil {
		return RunResult{}, fmt.Errorf("%w: at most one of {Seed, Source} may be specified", ErrInvalidParameter)
	}
	eve := opts.Eavesdropper
	if eve == nil {
		eve = photon.NoEavesdropper{}
	}
	src := opts.Source
	if src == nil {
		src = rng.NewSource(opts.Seed)
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := &run{
		n:   opts.NumBits,
		eve: eve,
		src: src,
		log: log.WithFields(logrus.Fields{"num_bits": opts.NumBits, "eavesdropper": eve.Name()}),
	}
	res, err := r.execute()
	if err != nil {
		return RunResult{}, err
	}
	if opts.Seed != nil {
		res.seed, res.seeded = *opts.Seed, true
	}
	return res, nil
}

// NumBits returns the number of photons sent.
func (r RunResult) NumBits() int { return r.numBits }

// Seed returns the seed the run was made with, if any.
func (r RunResult) Seed() (int64, bool) { return r.seed, r.seeded }

// Strategy names the eavesdropping strategy in effect.
func (r RunResult) Strategy() string { return r.strategy }

// Eavesdropped reports whether an eavesdropper was on the channel.
func (r RunResult) Eavesdropped() bool { return r.eavesdropped }

// RawKeyAlice returns the bits Alice sent.
func (r RunResult) RawKeyAlice() bitmap.Dense { return r.aliceBits.Clone() }

// RawKeyBob returns the bits Bob measured.
func (r RunResult) RawKeyBob() bitmap.Dense { return r.bobBits.Clone() }

// AliceBases returns the bases Alice prepared her photons in.
func (r RunResult) AliceBases() bitmap.Dense { return r.aliceBases.Clone() }

// BobBases returns the bases Bob measured in.
func (r RunResult) BobBases() bitmap.Dense { return r.bobBases.Clone() }

// EveBases returns the bases the eavesdropper measured in, or an empty bitmap
// if there was none.
func (r RunResult) EveBases() bitmap.Dense { return r.eveBases.Clone() }

// EveBits returns the bits the eavesdropper recovered, or an empty bitmap if
// there was none.
func (r RunResult) EveBits() bitmap.Dense { return r.eveBits.Clone() }

// SiftedKeyAlice returns Alice's bits in the slots where the bases agreed.
func (r RunResult) SiftedKeyAlice() bitmap.Dense { return r.siftedAlice.Clone() }

// SiftedKeyBob returns Bob's bits in the slots where the bases agreed.
func (r RunResult) SiftedKeyBob() bitmap.Dense { return r.siftedBob.Clone() }

// QBER returns the error rate over the sifted key.
func (r RunResult) QBER() QBER { return r.qber }
