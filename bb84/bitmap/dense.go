package bitmap

import "strings"

// A Dense is a bitmap where every bit is explicitly represented. Bits beyond
// Size() are always zero.
//
// The zero value is an empty bitmap. Methods with value receivers never modify
// d, and Data returns a copy. Copies of a Dense share storage, so AppendBit on
// one copy may be visible through another; hand out a Clone instead when that
// matters.
type Dense struct {
	bits []byte
	len  int
}

// NewDense returns a new dense bitmap whose contents are a copy of data, and
// whose length is bitLen. If bitLen is longer than data, then trailing zeros
// are added. If bitLen is negative, then it is inferred from data.
func NewDense(data []byte, bitLen int) Dense {
	if bitLen < 0 {
		bitLen = len(data) * byteSize
	}
	r := Dense{
		bits: make([]byte, BytesFor(bitLen)),
		len:  bitLen,
	}
	copy(r.bits, data)
	r.clearTail()
	return r
}

// Get returns the i-th bit in this bitmap. Bits past the end read as zero.
func (d Dense) Get(i int) bool {
	if i < 0 || i >= d.len {
		return false
	}
	j, pos := i/byteSize, i%byteSize
	return 0 < d.bits[j]&(1<<pos)
}

// Size returns the number of bits in this bitmap.
func (d Dense) Size() int {
	return d.len
}

// SizeBytes returns the number of bytes needed to hold this bitmap.
func (d Dense) SizeBytes() int {
	return BytesFor(d.len)
}

// Data returns a copy of the bytes underlying this bitmap. Bit i lives in
// byte i/8 at position i%8, least significant first.
func (d Dense) Data() []byte {
	r := make([]byte, d.SizeBytes())
	copy(r, d.bits)
	return r
}

// String renders d as a string of '0's and '1's, first bit first.
func (d Dense) String() string {
	var sb strings.Builder
	sb.Grow(d.len)
	for i := 0; i < d.len; i++ {
		if d.Get(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// AppendBit adds a single bit to the end of d. It is meant for building a
// bitmap up, before it is shared.
func (d *Dense) AppendBit(bit bool) {
	i, pos := d.len/byteSize, d.len%byteSize
	d.len += 1
	if pos == 0 {
		d.bits = append(d.bits, 0)
	}
	if bit {
		d.bits[i] |= 1 << pos
	} else {
		d.bits[i] &= ^(1 << pos)
	}
}

// Clone returns a copy of d which shares no storage with it.
func (d Dense) Clone() Dense {
	return NewDense(d.bits, d.len)
}

func (d Dense) byteAt(j int) byte {
	if j < len(d.bits) {
		return d.bits[j]
	}
	return 0
}

func (d *Dense) clearTail() {
	if off := d.len % byteSize; off != 0 {
		d.bits[len(d.bits)-1] &= 0xFF >> (byteSize - off)
	}
}
