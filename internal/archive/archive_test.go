package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vec3 struct {
	X, Y, Z float32
}

func TestPrimitivesRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteU8(7)
	w.WriteU32(0xdeadbeef)
	w.WriteU64(1 << 40)
	w.WriteI64(-12)
	w.WriteF32(1.5)
	w.WriteString("hello")
	w.WriteSeqHeader(8, 3)

	r := NewReader(w.Bytes())
	assert.Equal(t, byte(7), r.ReadU8())
	assert.Equal(t, uint32(0xdeadbeef), r.ReadU32())
	assert.Equal(t, uint64(1<<40), r.ReadU64())
	assert.Equal(t, int64(-12), r.ReadI64())
	assert.Equal(t, float32(1.5), r.ReadF32())
	assert.Equal(t, "hello", r.ReadString())
	capacity, count, err := r.ReadSeqHeader()
	require.NoError(t, err)
	assert.Equal(t, 8, capacity)
	assert.Equal(t, 3, count)
	assert.Equal(t, 0, r.Remaining())
	assert.NoError(t, r.Err())
}

func TestTruncatedReadIsSticky(t *testing.T) {
	w := NewWriter()
	w.WriteU32(1)

	r := NewReader(w.Bytes())
	assert.Equal(t, uint64(0), r.ReadU64())
	assert.ErrorIs(t, r.Err(), ErrTruncated)

	// Later reads keep failing even if bytes would fit.
	assert.Equal(t, byte(0), r.ReadU8())
	assert.ErrorIs(t, r.Err(), ErrTruncated)
}

func TestStringLengthPastEnd(t *testing.T) {
	w := NewWriter()
	w.WriteU32(100)
	w.WriteU8('x')

	r := NewReader(w.Bytes())
	assert.Equal(t, "", r.ReadString())
	assert.ErrorIs(t, r.Err(), ErrTruncated)
}

func TestSeqHeaderValidation(t *testing.T) {
	for _, tc := range []struct {
		name            string
		capacity, count int64
	}{
		{"negative count", 4, -1},
		{"count above capacity", 2, 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWriter()
			w.WriteI64(tc.capacity)
			w.WriteI64(tc.count)
			_, _, err := NewReader(w.Bytes()).ReadSeqHeader()
			assert.ErrorIs(t, err, ErrBadSequence)
		})
	}
}

func TestBinaryCodec(t *testing.T) {
	require.True(t, FixedSize[vec3]())
	require.False(t, FixedSize[string]())
	require.False(t, FixedSize[struct{ N int }]())

	var codec Codec[vec3] = BinaryCodec[vec3]{}
	w := NewWriter()
	in := vec3{1, 2, 3}
	require.NoError(t, codec.Encode(w, &in))
	assert.Equal(t, 12, w.Len())

	var out vec3
	require.NoError(t, codec.Decode(NewReader(w.Bytes()), &out))
	assert.Equal(t, in, out)

	var short vec3
	err := codec.Decode(NewReader(w.Bytes()[:5]), &short)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestFuncCodec(t *testing.T) {
	codec := FuncCodec[string]{
		EncodeFunc: func(w *Writer, v *string) error {
			w.WriteString(*v)
			return nil
		},
		DecodeFunc: func(r *Reader, v *string) error {
			*v = r.ReadString()
			return r.Err()
		},
	}
	w := NewWriter()
	s := "entity"
	require.NoError(t, codec.Encode(w, &s))

	var got string
	require.NoError(t, codec.Decode(NewReader(w.Bytes()), &got))
	assert.Equal(t, "entity", got)
}
