package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"golang.org/x/crypto/sha3"
)

// ErrBadHeader indicates a stream which does not start with a record header.
var ErrBadHeader = errors.New("record: bad stream header")

const (
	magic        = "BB84REC"
	version byte = 1

	flagLZ4 byte = 1 << 0

	checksumSize = 16
	// maxFrame bounds the payload length a Reader will allocate for.
	maxFrame     = 1 << 30
)

// WriterOptions configures a Writer.
type WriterOptions struct {
	// Compress the frames following the header with LZ4.
	Compress bool
}

// A Writer writes a stream of framed records. The stream starts with a header
// (magic | version | flags), followed by one frame per record:
// payload-length | payload | checksum, where checksum is the first 16 bytes
// of the SHAKE256 output over the payload.
//
// Close must be called to flush compressed streams.
type Writer struct {
	w  io.Writer
	zw *lz4.Writer
}

// NewWriter writes a stream header to w and returns a Writer for the records
// which follow.
func NewWriter(w io.Writer, opts WriterOptions) (*Writer, error) {
	var flags byte
	if opts.Compress {
		flags |= flagLZ4
	}
	hdr := append([]byte(magic), version, flags)
	if _, err := w.Write(hdr); err != nil {
		return nil, fmt.Errorf("writing record header: %w", err)
	}
	rw := &Writer{w: w}
	if opts.Compress {
		rw.zw = lz4.NewWriter(w)
		if err := rw.zw.Apply(lz4.CompressionLevelOption(lz4.Fast)); err != nil {
			return nil, fmt.Errorf("configuring lz4: %w", err)
		}
		rw.w = rw.zw
	}
	return rw, nil
}

// Write frames and writes r.
func (w *Writer) Write(r Record) error {
	payload := r.Marshal()
	if err := binary.Write(w.w, binary.LittleEndian, int32(len(payload))); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	_, err := w.w.Write(checksum(payload))
	return err
}

// Close flushes any buffered data. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.zw != nil {
		return w.zw.Close()
	}
	return nil
}

// A Reader reads a stream written by a Writer.
type Reader struct {
	r io.Reader
}

// NewReader consumes and validates the stream header from r.
func NewReader(r io.Reader) (*Reader, error) {
	hdr := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if string(hdr[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadHeader, hdr[:len(magic)])
	}
	if v := hdr[len(magic)]; v != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, v)
	}
	flags := hdr[len(magic)+1]
	if flags&^flagLZ4 != 0 {
		return nil, fmt.Errorf("%w: unknown flags %#x", ErrBadHeader, flags)
	}
	if flags&flagLZ4 != 0 {
		r = lz4.NewReader(r)
	}
	return &Reader{r: r}, nil
}

// Read returns the next record, or io.EOF once the stream is exhausted.
func (r *Reader) Read() (Record, error) {
	var mLen int32
	if err := binary.Read(r.r, binary.LittleEndian, &mLen); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("%w: reading frame length: %v", ErrCorrupt, err)
	}
	if mLen < 0 || mLen > maxFrame {
		return Record{}, fmt.Errorf("%w: frame length %d", ErrCorrupt, mLen)
	}
	payload := make([]byte, mLen)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Record{}, fmt.Errorf("%w: reading frame: %v", ErrCorrupt, err)
	}
	sum := make([]byte, checksumSize)
	if _, err := io.ReadFull(r.r, sum); err != nil {
		return Record{}, fmt.Errorf("%w: reading checksum: %v", ErrCorrupt, err)
	}
	if esum := checksum(payload); !bytes.Equal(sum, esum) {
		return Record{}, fmt.Errorf("%w: invalid checksum: got %x, expected %x", ErrCorrupt, sum, esum)
	}
	return Unmarshal(payload)
}

// ReadAll reads records until the end of the stream.
func (r *Reader) ReadAll() ([]Record, error) {
	var recs []Record
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
}

func checksum(payload []byte) []byte {
	h := sha3.NewShake256()
	h.Write(payload)
	sum := make([]byte, checksumSize)
	h.Read(sum)
	return sum
}
