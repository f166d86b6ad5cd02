package bb84

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/photon"
	"github.com/alan-christopher/bb84sim/bb84/rng"
)

// An alice represents the sending participant.
type alice struct {
	bits  bitmap.Dense
	bases bitmap.Dense
}

// A bob represents the receiving participant.
type bob struct {
	bases bitmap.Dense
	bits  bitmap.Dense
}

// stage tracks how far a run has progressed. Runs move strictly forward
// through the stages, one at a time.
type stage int

const (
	stageInit stage = iota
	stageGenerated
	stageTransmitted
	stageSifted
	stageEstimated
	stageDone
)

var stageNames = [...]string{"INIT", "GENERATED", "TRANSMITTED", "SIFTED", "ESTIMATED", "DONE"}

func (s stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

type run struct {
	n     int
	eve   photon.Eavesdropper
	src   rng.Source
	log   logrus.FieldLogger
	stage stage

	alice alice
	bob   bob
	in    photon.Interception

	transmitted bitmap.Dense
	intercepted bitmap.Dense
	siftedAlice bitmap.Dense
	siftedBob   bitmap.Dense
	qber        QBER
}

func (r *run) execute() (RunResult, error) {
	r.alice.prepare(r.n, r.src)
	r.bob.chooseBases(r.n, r.src)
	r.in = r.eve.Plan(r.n, r.src)
	r.advance(stageGenerated)

	var err error
	r.transmitted, r.intercepted, err = photon.Transmit(r.alice.bits, r.alice.bases, r.in, r.src)
	if err != nil {
		return RunResult{}, fmt.Errorf("transmitting photons: %w", err)
	}
	if err := r.bob.measure(r.transmitted, r.alice.bases, r.src); err != nil {
		return RunResult{}, fmt.Errorf("measuring photons: %w", err)
	}
	r.advance(stageTransmitted)

	r.siftedAlice, r.siftedBob = sift(r.alice.bits, r.bob.bits, r.alice.bases, r.bob.bases)
	r.advance(stageSifted)

	r.qber = estimateQBER(r.siftedAlice, r.siftedBob)
	r.advance(stageEstimated)

	res := r.assemble()
	r.advance(stageDone)
	r.log.WithFields(logrus.Fields{
		"sifted": r.siftedAlice.Size(),
		"qber":   r.qber.String(),
	}).Debug("bb84 run complete")
	return res, nil
}

func (r *run) advance(next stage) {
	if next != r.stage+1 {
		panic(fmt.Sprintf("BUG: bb84 run moved from %v to %v", r.stage, next))
	}
	r.stage = next
	r.log.WithField("stage", next).Debug("bb84 stage reached")
}

func (r *run) assemble() RunResult {
	return RunResult{
		numBits:      r.n,
		strategy:     r.eve.Name(),
		eavesdropped: r.eve.Intercepts(),
		aliceBits:    r.alice.bits,
		aliceBases:   r.alice.bases,
		bobBases:     r.bob.bases,
		bobBits:      r.bob.bits,
		eveBases:     r.in.Bases(),
		eveBits:      r.intercepted,
		siftedAlice:  r.siftedAlice,
		siftedBob:    r.siftedBob,
		qber:         r.qber,
	}
}

// prepare draws all of Alice's bits, then all of her bases.
func (a *alice) prepare(n int, src rng.Source) {
	for i := 0; i < n; i++ {
		a.bits.AppendBit(src.NextBit())
	}
	for i := 0; i < n; i++ {
		a.bases.AppendBit(src.NextBasis())
	}
}

func (b *bob) chooseBases(n int, src rng.Source) {
	for i := 0; i < n; i++ {
		b.bases.AppendBit(src.NextBasis())
	}
}

func (b *bob) measure(transmitted, aliceBases bitmap.Dense, src rng.Source) error {
	bits, err := photon.Measure(transmitted, aliceBases, b.bases, src)
	if err != nil {
		return err
	}
	b.bits = bits
	return nil
}

// sift keeps the slots where Alice's and Bob's publicly announced bases agree.
// Only bases feed the mask; bit values are never compared here.
func sift(aliceBits, bobBits, aliceBases, bobBases bitmap.Dense) (siftedAlice, siftedBob bitmap.Dense) {
	siftMask := bitmap.XNor(aliceBases, bobBases)
	return bitmap.Select(aliceBits, siftMask), bitmap.Select(bobBits, siftMask)
}
