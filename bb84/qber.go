package bb84

import (
	"fmt"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

// A QBER is the quantum bit error rate observed over a sifted key. It is
// undefined when nothing survived sifting; Value makes callers deal with that
// case before doing arithmetic.
type QBER struct {
	errors  int
	samples int
}

// QBERFromCounts builds a QBER from a count of mismatched bits out of samples
// sifted bits.
func QBERFromCounts(errors, samples int) (QBER, error) {
	if samples < 0 || errors < 0 || errors > samples {
		return QBER{}, fmt.Errorf("%w: %d errors out of %d samples", ErrInvalidParameter, errors, samples)
	}
	return QBER{errors: errors, samples: samples}, nil
}

// Value returns the error rate, in [0, 1], and true; or false if the rate is
// undefined.
func (q QBER) Value() (float64, bool) {
	if q.samples == 0 {
		return 0, false
	}
	return float64(q.errors) / float64(q.samples), true
}

// Defined reports whether any sifted bits were compared.
func (q QBER) Defined() bool { return q.samples > 0 }

// Errors returns the number of mismatched sifted bits.
func (q QBER) Errors() int { return q.errors }

// Samples returns the number of sifted bits compared.
func (q QBER) Samples() int { return q.samples }

func (q QBER) String() string {
	v, ok := q.Value()
	if !ok {
		return "undefined"
	}
	return fmt.Sprintf("%.6f", v)
}

func estimateQBER(siftedAlice, siftedBob bitmap.Dense) QBER {
	return QBER{
		errors:  bitmap.CountOnes(bitmap.XOr(siftedAlice, siftedBob)),
		samples: siftedAlice.Size(),
	}
}
