package archive

import "encoding/binary"

// Codec writes and reads values of one type through an archive.
type Codec[T any] interface {
	Encode(w *Writer, v *T) error
	Decode(r *Reader, v *T) error
}

// BinaryCodec serializes fixed-size values (numbers, bools, arrays and
// structs made only of those) in little-endian field order.
type BinaryCodec[T any] struct{}

func (BinaryCodec[T]) Encode(w *Writer, v *T) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func (BinaryCodec[T]) Decode(r *Reader, v *T) error {
	return binary.Read(r, binary.LittleEndian, v)
}

// FixedSize reports whether BinaryCodec can handle T.
func FixedSize[T any]() bool {
	var v T
	return binary.Size(&v) >= 0
}

// FuncCodec adapts a pair of functions to Codec, for types holding strings,
// slices or other variable-size data.
type FuncCodec[T any] struct {
	EncodeFunc func(w *Writer, v *T) error
	DecodeFunc func(r *Reader, v *T) error
}

func (c FuncCodec[T]) Encode(w *Writer, v *T) error {
	return c.EncodeFunc(w, v)
}

func (c FuncCodec[T]) Decode(r *Reader, v *T) error {
	return c.DecodeFunc(r, v)
}
