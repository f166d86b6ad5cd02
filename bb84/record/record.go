// Package record serializes finished BB84 runs, so that reports can be built
// from stored runs rather than by simulating again.
//
// A Record is encoded in the protocol buffer wire format:
//
//	message Record {
//	  uint64 num_bits      = 1;
//	  sint64 seed          = 2; // absent for unseeded runs
//	  string strategy      = 3;
//	  bool   eavesdropped  = 4;
//	  Bits   alice_bits    = 5;
//	  Bits   alice_bases   = 6;
//	  Bits   bob_bases     = 7;
//	  Bits   bob_bits      = 8;
//	  Bits   eve_bases     = 9;
//	  Bits   eve_bits      = 10;
//	  Bits   sifted_alice  = 11;
//	  Bits   sifted_bob    = 12;
//	  uint64 qber_errors   = 13;
//	  uint64 qber_samples  = 14;
//	}
//	message Bits {
//	  bytes  bits = 1;
//	  uint64 len  = 2;
//	}
package record

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/crypto/sha3"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

// ErrCorrupt indicates a record or frame which could not be decoded.
var ErrCorrupt = errors.New("record: corrupt data")

const (
	fieldNumBits protowire.Number = iota + 1
	fieldSeed
	fieldStrategy
	fieldEavesdropped
	fieldAliceBits
	fieldAliceBases
	fieldBobBases
	fieldBobBits
	fieldEveBases
	fieldEveBits
	fieldSiftedAlice
	fieldSiftedBob
	fieldQBERErrors
	fieldQBERSamples
)

const (
	fieldDenseBits protowire.Number = 1
	fieldDenseLen  protowire.Number = 2
)

// A Record is the stored form of a bb84.RunResult.
type Record struct {
	NumBits      int
	Seed         int64
	Seeded       bool
	Strategy     string
	Eavesdropped bool

	AliceBits   bitmap.Dense
	AliceBases  bitmap.Dense
	BobBases    bitmap.Dense
	BobBits     bitmap.Dense
	EveBases    bitmap.Dense
	EveBits     bitmap.Dense
	SiftedAlice bitmap.Dense
	SiftedBob   bitmap.Dense

	QBER bb84.QBER
}

// FromResult captures every field of r.
func FromResult(r bb84.RunResult) Record {
	seed, seeded := r.Seed()
	return Record{
		NumBits:      r.NumBits(),
		Seed:         seed,
		Seeded:       seeded,
		Strategy:     r.Strategy(),
		Eavesdropped: r.Eavesdropped(),
		AliceBits:    r.RawKeyAlice(),
		AliceBases:   r.AliceBases(),
		BobBases:     r.BobBases(),
		BobBits:      r.RawKeyBob(),
		EveBases:     r.EveBases(),
		EveBits:      r.EveBits(),
		SiftedAlice:  r.SiftedKeyAlice(),
		SiftedBob:    r.SiftedKeyBob(),
		QBER:         r.QBER(),
	}
}

// Fingerprint returns a SHA3-256 digest of the encoded form of r. Two runs
// have the same fingerprint iff they agree on every recorded field.
func Fingerprint(r bb84.RunResult) [32]byte {
	return sha3.Sum256(FromResult(r).Marshal())
}

// Marshal encodes r.
func (r Record) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldNumBits, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.NumBits))
	if r.Seeded {
		b = protowire.AppendTag(b, fieldSeed, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(r.Seed))
	}
	b = protowire.AppendTag(b, fieldStrategy, protowire.BytesType)
	b = protowire.AppendString(b, r.Strategy)
	b = protowire.AppendTag(b, fieldEavesdropped, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(r.Eavesdropped))
	for _, f := range r.denseFields() {
		b = protowire.AppendTag(b, f.num, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalDense(*f.d))
	}
	b = protowire.AppendTag(b, fieldQBERErrors, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.QBER.Errors()))
	b = protowire.AppendTag(b, fieldQBERSamples, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.QBER.Samples()))
	return b
}

// Unmarshal decodes a Record. Unknown fields are skipped.
func Unmarshal(b []byte) (Record, error) {
	var r Record
	var errs, samples uint64
	dense := map[protowire.Number]*bitmap.Dense{}
	for _, f := range r.denseFields() {
		dense[f.num] = f.d
	}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldSeed && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			r.Seed, r.Seeded = protowire.DecodeZigZag(v), true
		case num == fieldStrategy && typ == protowire.BytesType:
			r.Strategy, n = protowire.ConsumeString(b)
		case dense[num] != nil && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(b)
			if n < 0 {
				break
			}
			d, err := unmarshalDense(raw)
			if err != nil {
				return Record{}, fmt.Errorf("field %d: %w", num, err)
			}
			*dense[num] = d
		case typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			switch num {
			case fieldNumBits:
				if v > math.MaxInt {
					return Record{}, fmt.Errorf("%w: num_bits %d out of range", ErrCorrupt, v)
				}
				r.NumBits = int(v)
			case fieldEavesdropped:
				r.Eavesdropped = protowire.DecodeBool(v)
			case fieldQBERErrors:
				errs = v
			case fieldQBERSamples:
				samples = v
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return Record{}, fmt.Errorf("%w: field %d: %v", ErrCorrupt, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	if errs > samples || samples > uint64(r.NumBits) {
		return Record{}, fmt.Errorf("%w: %d errors out of %d samples of %d bits", ErrCorrupt, errs, samples, r.NumBits)
	}
	q, err := bb84.QBERFromCounts(int(errs), int(samples))
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	r.QBER = q
	return r, nil
}

type denseField struct {
	num protowire.Number
	d   *bitmap.Dense
}

func (r *Record) denseFields() []denseField {
	return []denseField{
		{fieldAliceBits, &r.AliceBits},
		{fieldAliceBases, &r.AliceBases},
		{fieldBobBases, &r.BobBases},
		{fieldBobBits, &r.BobBits},
		{fieldEveBases, &r.EveBases},
		{fieldEveBits, &r.EveBits},
		{fieldSiftedAlice, &r.SiftedAlice},
		{fieldSiftedBob, &r.SiftedBob},
	}
}

func marshalDense(d bitmap.Dense) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldDenseBits, protowire.BytesType)
	b = protowire.AppendBytes(b, d.Data())
	b = protowire.AppendTag(b, fieldDenseLen, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.Size()))
	return b
}

func unmarshalDense(b []byte) (bitmap.Dense, error) {
	var (
		bits   []byte
		bitLen uint64
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return bitmap.Empty(), fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldDenseBits && typ == protowire.BytesType:
			bits, n = protowire.ConsumeBytes(b)
		case num == fieldDenseLen && typ == protowire.VarintType:
			bitLen, n = protowire.ConsumeVarint(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return bitmap.Empty(), fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		b = b[n:]
	}
	if bitLen > uint64(len(bits))*8 || len(bits) != bitmap.BytesFor(int(bitLen)) {
		return bitmap.Empty(), fmt.Errorf("%w: %d bytes cannot hold exactly %d bits", ErrCorrupt, len(bits), bitLen)
	}
	return bitmap.NewDense(bits, int(bitLen)), nil
}
