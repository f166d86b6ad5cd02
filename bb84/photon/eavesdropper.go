package photon

import (
	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/rng"
)

// NoEavesdropper leaves the channel alone.
type NoEavesdropper struct{}

// Name implements Eavesdropper.
func (NoEavesdropper) Name() string { return "none" }

// Intercepts implements Eavesdropper.
func (NoEavesdropper) Intercepts() bool { return false }

// ExpectedQBER implements Eavesdropper.
func (NoEavesdropper) ExpectedQBER() float64 { return 0 }

// Plan implements Eavesdropper. It makes no draws.
func (NoEavesdropper) Plan(int, rng.Source) Interception { return passthrough{} }

type passthrough struct{}

func (passthrough) Bases() bitmap.Dense { return bitmap.Empty() }

func (passthrough) Resend(_ int, bit, _ bool, _ rng.Source) (bool, bool) {
	return bit, false
}

// InterceptResend measures every photon in a randomly chosen basis and sends
// Bob a fresh photon prepared with the result. A basis matching Alice's
// recovers her bit exactly; a mismatched basis yields a uniformly random bit,
// which is what gets resent.
type InterceptResend struct{}

// Name implements Eavesdropper.
func (InterceptResend) Name() string { return "intercept-resend" }

// Intercepts implements Eavesdropper.
func (InterceptResend) Intercepts() bool { return true }

// ExpectedQBER implements Eavesdropper. Eve picks the wrong basis half the
// time, and each such photon then errs with probability one half.
func (InterceptResend) ExpectedQBER() float64 { return 0.25 }

// Plan implements Eavesdropper, drawing one basis per photon.
func (InterceptResend) Plan(n int, src rng.Source) Interception {
	var bases bitmap.Dense
	for i := 0; i < n; i++ {
		bases.AppendBit(src.NextBasis())
	}
	return interceptResend{bases: bases}
}

type interceptResend struct {
	bases bitmap.Dense
}

func (ir interceptResend) Bases() bitmap.Dense { return ir.bases }

func (ir interceptResend) Resend(i int, bit, basis bool, src rng.Source) (bool, bool) {
	if ir.bases.Get(i) == basis {
		return bit, true
	}
	return src.NextBit(), true
}

// ForFlag returns InterceptResend if eavesdrop is set, NoEavesdropper
// otherwise.
func ForFlag(eavesdrop bool) Eavesdropper {
	if eavesdrop {
		return InterceptResend{}
	}
	return NoEavesdropper{}
}
