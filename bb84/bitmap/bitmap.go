// Package bitmap provides utilities for operating on densely-packed arrays of
// booleans, used to hold the bit and basis sequences of a BB84 run.
package bitmap

import (
	"fmt"
	"math/bits"
)

// TODO: this could be more efficient on many architectures if we used larger
//   blocks than 8-bit bytes.
const byteSize = 8

// Empty returns an empty, dense bit array.
func Empty() Dense {
	return Dense{}
}

// FromString converts a string of '1's and '0's to a Dense. Spaces are
// ignored, to allow grouping.
func FromString(s string) (Dense, error) {
	d := Dense{}
	for _, c := range s {
		switch c {
		case '1':
			d.AppendBit(true)
		case '0':
			d.AppendBit(false)
		case ' ':
			continue
		default:
			return Dense{}, fmt.Errorf("invalid bitmap string rep: %s", s)
		}
	}
	return d, nil
}

// Select selects a subset of bits from data, according to which bits are set
// in mask. Order is preserved.
func Select(data, mask Dense) Dense {
	var d Dense
	for i := 0; i < data.Size(); i++ {
		if !mask.Get(i) {
			continue
		}
		d.AppendBit(data.Get(i))
	}
	return d
}

// XOr returns the bitwise XOR of two bitmaps. If one of the two is shorter
// than the other, then trailing 0s are implicitly added to make the sizes
// match.
func XOr(a, b Dense) Dense {
	return combine(a, b, func(x, y byte) byte { return x ^ y })
}

// XNor returns the bitwise equality of two bitmaps, padding the shorter one
// with implicit trailing 0s.
func XNor(a, b Dense) Dense {
	return combine(a, b, func(x, y byte) byte { return ^(x ^ y) })
}

// CountOnes returns the total number of bits set in d.
func CountOnes(d Dense) int {
	var sum int
	for _, b := range d.bits {
		sum += bits.OnesCount8(b)
	}
	return sum
}

// Equal returns true iff a and b have the same size and contain the same bits.
func Equal(a, b Dense) bool {
	return a.len == b.len && CountOnes(XOr(a, b)) == 0
}

// BytesFor returns the number of bytes necessary to hold the provided number of
// bits.
func BytesFor(bits int) int {
	return (bits + byteSize - 1) / byteSize
}

func combine(a, b Dense, op func(x, y byte) byte) Dense {
	n := a.len
	if b.len > n {
		n = b.len
	}
	r := Dense{
		bits: make([]byte, BytesFor(n)),
		len:  n,
	}
	for j := range r.bits {
		r.bits[j] = op(a.byteAt(j), b.byteAt(j))
	}
	r.clearTail()
	return r
}
