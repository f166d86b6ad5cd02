package photon

import (
	"fmt"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/rng"
)

// Transmit sends the photons described by bits and bases across the channel,
// subject to in. It returns the bits that reach Bob's detector, and the bits
// the eavesdropper recovered (one per observed photon, empty if none were
// observed).
//
// Draws from src happen in slot order, and only where the interception needs
// them.
func Transmit(bits, bases bitmap.Dense, in Interception, src rng.Source) (transmitted, intercepted bitmap.Dense, err error) {
	if bits.Size() != bases.Size() {
		return bitmap.Empty(), bitmap.Empty(), fmt.Errorf("bit and basis length must agree: %d != %d", bits.Size(), bases.Size())
	}
	if eb := in.Bases(); eb.Size() != 0 && eb.Size() != bits.Size() {
		return bitmap.Empty(), bitmap.Empty(), fmt.Errorf("interception covers %d photons, sending %d", eb.Size(), bits.Size())
	}
	for i := 0; i < bits.Size(); i++ {
		out, observed := in.Resend(i, bits.Get(i), bases.Get(i), src)
		transmitted.AppendBit(out)
		if observed {
			intercepted.AppendBit(out)
		}
	}
	return transmitted, intercepted, nil
}

// Measure simulates Bob's detector. Photons measured in the basis they were
// sent in (sendBases, Alice's choice) read back exactly; all others read as a
// fresh uniform draw from src, in slot order.
//
// The comparison is always against Alice's basis, even when an eavesdropper
// re-prepared the photon in her own basis. This is the usual simplification
// of the intercept-resend analysis.
func Measure(transmitted, sendBases, receiveBases bitmap.Dense, src rng.Source) (bitmap.Dense, error) {
	if transmitted.Size() != sendBases.Size() {
		return bitmap.Empty(), fmt.Errorf("send bit and basis length must agree: %d != %d", transmitted.Size(), sendBases.Size())
	}
	if sendBases.Size() != receiveBases.Size() {
		return bitmap.Empty(), fmt.Errorf("send basis length must match receive basis length: %d != %d", sendBases.Size(), receiveBases.Size())
	}
	var measured bitmap.Dense
	for i := 0; i < transmitted.Size(); i++ {
		if sendBases.Get(i) == receiveBases.Get(i) {
			measured.AppendBit(transmitted.Get(i))
			continue
		}
		measured.AppendBit(src.NextBit())
	}
	return measured, nil
}
