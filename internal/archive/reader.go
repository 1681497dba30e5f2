package archive

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrTruncated is returned once a read runs past the end of the archive.
	ErrTruncated = errors.New("archive: truncated stream")
	// ErrBadSequence is returned for a sequence header with a negative count
	// or a count larger than its capacity.
	ErrBadSequence = errors.New("archive: malformed sequence header")
)

// Reader reads archive fields from a byte slice. The first failed read is
// sticky: every later read returns zero values and Err reports the failure.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Read copies raw bytes. It satisfies io.Reader for encoding/binary; a short
// read reports ErrTruncated instead of io.EOF.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	n := copy(p, r.data[r.off:])
	r.off += n
	if n < len(p) {
		r.err = ErrTruncated
		return n, r.err
	}
	return n, nil
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.data) {
		r.off = len(r.data)
		r.err = ErrTruncated
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// ReadU8 reads 1 byte.
func (r *Reader) ReadU8() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// ReadU32 reads 4 bytes as little-endian uint32.
func (r *Reader) ReadU32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// ReadU64 reads 8 bytes as little-endian uint64.
func (r *Reader) ReadU64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// ReadI64 reads 8 bytes as little-endian int64.
func (r *Reader) ReadI64() int64 {
	return int64(r.ReadU64())
}

// ReadF32 reads an IEEE-754 single.
func (r *Reader) ReadF32() float32 {
	return math.Float32frombits(r.ReadU32())
}

// ReadString reads a u32 length-prefixed string.
func (r *Reader) ReadString() string {
	n := r.ReadU32()
	if r.err != nil {
		return ""
	}
	if int(n) > r.Remaining() {
		r.off = len(r.data)
		r.err = ErrTruncated
		return ""
	}
	return string(r.take(int(n)))
}

// ReadSeqHeader reads the (capacity, count) prefix of a sequence.
func (r *Reader) ReadSeqHeader() (capacity, count int, err error) {
	c := r.ReadI64()
	n := r.ReadI64()
	if r.err != nil {
		return 0, 0, r.err
	}
	if n < 0 || c < n || n > math.MaxInt32 {
		r.err = ErrBadSequence
		return 0, 0, r.err
	}
	return int(c), int(n), nil
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Err returns the first read failure, if any.
func (r *Reader) Err() error {
	return r.err
}
