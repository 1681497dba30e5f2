package archive

import (
	"encoding/binary"
	"math"
)

// Writer builds a binary archive in memory. All multi-byte writes are little-endian.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 256)}
}

// Write appends raw bytes. It satisfies io.Writer so encoding/binary can
// target the archive directly; it never fails.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// WriteU8 writes 1 byte.
func (w *Writer) WriteU8(v byte) {
	w.buf = append(w.buf, v)
}

// WriteU32 writes 4 bytes little-endian.
func (w *Writer) WriteU32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteU64 writes 8 bytes little-endian.
func (w *Writer) WriteU64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// WriteI64 writes 8 bytes little-endian (two's complement).
func (w *Writer) WriteI64(v int64) {
	w.WriteU64(uint64(v))
}

// WriteF32 writes an IEEE-754 single as 4 bytes little-endian.
func (w *Writer) WriteF32(v float32) {
	w.WriteU32(math.Float32bits(v))
}

// WriteString writes a length-prefixed UTF-8 string (u32 length, then bytes).
func (w *Writer) WriteString(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteSeqHeader writes the (capacity, count) prefix every sequence carries.
func (w *Writer) WriteSeqHeader(capacity, count int) {
	w.WriteI64(int64(capacity))
	w.WriteI64(int64(count))
}

// Bytes returns the archive content. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}
