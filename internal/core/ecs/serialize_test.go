package ecs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/entitystore/internal/archive"
)

var labelCodec = archive.FuncCodec[label]{
	EncodeFunc: func(w *archive.Writer, v *label) error {
		w.WriteString(v.Text)
		return nil
	},
	DecodeFunc: func(r *archive.Reader, v *label) error {
		v.Text = r.ReadString()
		return r.Err()
	},
}

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore[health]()
	for e := EntityID(1); e <= 5; e++ {
		_, err := s.Add(e, health{HP: int32(e) * 7})
		require.NoError(t, err)
	}
	require.NoError(t, s.Remove(2))

	data, err := s.MarshalBinary()
	require.NoError(t, err)

	got := NewStore[health]()
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, s.Entities(), got.Entities())
	assert.Equal(t, s.Components(), got.Components())
	for _, e := range got.Entities() {
		h, err := got.Get(e)
		require.NoError(t, err)
		assert.Equal(t, int32(e)*7, h.HP)
	}

	// Ids a record could not carry are refused up front.
	for _, e := range []EntityID{0, MaxEntityID, MaxEntityID + 1} {
		_, err := s.Add(e, health{HP: 1})
		assert.ErrorIs(t, err, ErrIndexOutOfBounds, "entity %d", e)
	}
	again, err := s.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestTagStoreRoundTrip(t *testing.T) {
	s := NewStore[frozen]()
	require.NoError(t, s.Attach(3))
	require.NoError(t, s.Attach(8))

	data, err := s.MarshalBinary()
	require.NoError(t, err)
	// Tag records hold only the entity sequence.
	assert.Len(t, data, 16+2*8)

	got := NewStore[frozen]()
	require.NoError(t, got.UnmarshalBinary(data))
	assert.True(t, got.Has(3))
	assert.True(t, got.Has(8))
	assert.Equal(t, 2, got.Len())
}

func TestStoreWithoutCodec(t *testing.T) {
	s := NewStore[label]()
	require.NoError(t, s.Attach(1))
	_, err := s.MarshalBinary()
	assert.ErrorIs(t, err, ErrNotSerializable)

	s = NewStoreWithCodec(labelCodec)
	_, err = s.Add(1, label{Text: "crate"})
	require.NoError(t, err)
	data, err := s.MarshalBinary()
	require.NoError(t, err)

	got := NewStoreWithCodec(labelCodec)
	require.NoError(t, got.UnmarshalBinary(data))
	l, err := got.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "crate", l.Text)
}

func TestStoreUnmarshalRejectsBadRecords(t *testing.T) {
	s := NewStore[health]()
	_, err := s.Add(1, health{HP: 1})
	require.NoError(t, err)
	_, err = s.Add(2, health{HP: 2})
	require.NoError(t, err)
	data, err := s.MarshalBinary()
	require.NoError(t, err)

	target := NewStore[health]()
	_, err = target.Add(9, health{HP: 9})
	require.NoError(t, err)

	for i := 0; i < len(data); i++ {
		assert.ErrorIs(t, target.UnmarshalBinary(data[:i]), archive.ErrTruncated, "prefix %d", i)
	}
	// Failed loads leave the store untouched.
	assert.Equal(t, []EntityID{9}, target.Entities())

	w := archive.NewWriter()
	w.WriteSeqHeader(1, 1)
	w.WriteU32(5)
	w.WriteSeqHeader(2, 2)
	w.WriteU64(1)
	w.WriteU64(2)
	assert.ErrorIs(t, target.UnmarshalBinary(w.Bytes()), ErrMalformedStream)

	w = archive.NewWriter()
	w.WriteSeqHeader(2, 2)
	w.WriteU32(5)
	w.WriteU32(6)
	w.WriteSeqHeader(2, 2)
	w.WriteU64(4)
	w.WriteU64(4)
	assert.ErrorIs(t, target.UnmarshalBinary(w.Bytes()), ErrDuplicateEntity)

	w = archive.NewWriter()
	w.WriteSeqHeader(1, 1)
	w.WriteU64(0)
	frozenStore := NewStore[frozen]()
	assert.ErrorIs(t, frozenStore.UnmarshalBinary(w.Bytes()), ErrMalformedStream)
}

func newSampleWorld(t *testing.T) (*World, []EntityID) {
	t.Helper()
	w := NewWorld()
	require.NoError(t, Register[label](w, "Label", labelCodec))
	ids := w.CreateN(4)
	for i, e := range ids {
		_, err := AddComponent(w, e, position{X: float32(i), Y: 1, Z: 2})
		require.NoError(t, err)
	}
	_, err := AddComponent(w, ids[1], velocity{DX: 1})
	require.NoError(t, err)
	_, err = AddComponent(w, ids[2], frozen{})
	require.NoError(t, err)
	_, err = AddComponent(w, ids[3], label{Text: "boss"})
	require.NoError(t, err)
	require.NoError(t, w.Destroy(ids[0]))
	w.Flush()
	require.NoError(t, w.Destroy(ids[2]))
	return w, ids
}

func TestWorldRoundTrip(t *testing.T) {
	src, ids := newSampleWorld(t)
	data, err := src.MarshalBinary()
	require.NoError(t, err)

	dst := NewWorld()
	require.NoError(t, Register[position](dst, "", nil))
	require.NoError(t, Register[velocity](dst, "", nil))
	require.NoError(t, Register[frozen](dst, "", nil))
	require.NoError(t, Register[label](dst, "Label", labelCodec))
	require.NoError(t, dst.UnmarshalBinary(data))

	assert.Equal(t, src.Entities(), dst.Entities())
	assert.Equal(t, src.PendingDestroy(), dst.PendingDestroy())
	assert.False(t, dst.Alive(ids[0]))
	assert.True(t, dst.Pending(ids[2]))

	for _, e := range src.Entities() {
		for _, s := range src.Stores() {
			want, ok := s.Value(e)
			other, found := dst.StoreByID(s.TypeID())
			require.True(t, found)
			got, gotOK := other.Value(e)
			assert.Equal(t, ok, gotOK)
			assert.Equal(t, want, got)
		}
	}

	// The id counter carries over.
	assert.Equal(t, src.Pool().Next(), dst.Pool().Next())
	assert.Equal(t, ids[3]+1, dst.Create())

	assert.Equal(t, 1, dst.Flush())
	assert.False(t, HasComponent[frozen](dst, ids[2]))
}

func TestWorldDeserializeUnknownType(t *testing.T) {
	src, _ := newSampleWorld(t)
	data, err := src.MarshalBinary()
	require.NoError(t, err)

	dst := NewWorld()
	require.NoError(t, Register[position](dst, "", nil))
	keep := dst.Create()
	err = dst.UnmarshalBinary(data)
	assert.ErrorIs(t, err, ErrUnknownTypeIdentity)

	// Nothing was committed.
	assert.Equal(t, []EntityID{keep}, dst.Entities())
	assert.Equal(t, keep+1, dst.Pool().Next())
}

func TestWorldDeserializeTruncated(t *testing.T) {
	src, _ := newSampleWorld(t)
	data, err := src.MarshalBinary()
	require.NoError(t, err)

	for _, n := range []int{0, 8, 20, 40, len(data) / 2, len(data) - 1} {
		dst := NewWorld()
		require.NoError(t, Register[label](dst, "Label", labelCodec))
		require.NoError(t, Register[position](dst, "", nil))
		require.NoError(t, Register[velocity](dst, "", nil))
		require.NoError(t, Register[frozen](dst, "", nil))
		err := dst.UnmarshalBinary(data[:n])
		assert.ErrorIs(t, err, archive.ErrTruncated, "prefix %d", n)
		assert.Equal(t, 0, dst.Len())
	}
}

func TestWorldDeserializeRejectsForeignEntities(t *testing.T) {
	w := archive.NewWriter()
	writeIDs(w, []EntityID{1})
	writeIDs(w, nil)
	w.WriteU64(2)
	w.WriteI64(1)
	w.WriteU64(uint64(TypeOf[frozen]()))
	writeIDs(w, []EntityID{1, 5})

	dst := NewWorld()
	require.NoError(t, Register[frozen](dst, "", nil))
	assert.ErrorIs(t, dst.UnmarshalBinary(w.Bytes()), ErrMalformedStream)

	w = archive.NewWriter()
	writeIDs(w, []EntityID{1})
	writeIDs(w, []EntityID{3})
	w.WriteU64(4)
	w.WriteI64(0)
	assert.ErrorIs(t, dst.UnmarshalBinary(w.Bytes()), ErrMalformedStream)
}

func TestWorldDeserializeRejectsHugeEntityIDs(t *testing.T) {
	streams := map[string]func(*archive.Writer){
		"overflowing id": func(w *archive.Writer) {
			writeIDs(w, []EntityID{1 << 62})
			writeIDs(w, nil)
			w.WriteU64(math.MaxUint64)
			w.WriteI64(1)
			w.WriteU64(uint64(TypeOf[health]()))
			w.WriteSeqHeader(1, 1)
			w.WriteU32(7)
			writeIDs(w, []EntityID{1 << 62})
		},
		"id past store bound": func(w *archive.Writer) {
			writeIDs(w, []EntityID{1 << 36})
			writeIDs(w, nil)
			w.WriteU64(1<<36 + 1)
			w.WriteI64(1)
			w.WriteU64(uint64(TypeOf[frozen]()))
			writeIDs(w, []EntityID{1 << 36})
		},
		"store id not live": func(w *archive.Writer) {
			writeIDs(w, []EntityID{1})
			writeIDs(w, nil)
			w.WriteU64(math.MaxUint64)
			w.WriteI64(1)
			w.WriteU64(uint64(TypeOf[frozen]()))
			writeIDs(w, []EntityID{1 << 40})
		},
	}
	for name, build := range streams {
		t.Run(name, func(t *testing.T) {
			w := archive.NewWriter()
			build(w)

			dst := NewWorld()
			require.NoError(t, Register[health](dst, "", nil))
			require.NoError(t, Register[frozen](dst, "", nil))
			keep := dst.Create()
			var err error
			assert.NotPanics(t, func() { err = dst.UnmarshalBinary(w.Bytes()) })
			assert.ErrorIs(t, err, ErrMalformedStream)
			assert.Equal(t, []EntityID{keep}, dst.Entities())
		})
	}
}

func TestWorldSerializeWithoutCodec(t *testing.T) {
	w := NewWorld()
	_, err := AddComponent(w, w.Create(), label{Text: "x"})
	require.NoError(t, err)
	_, err = w.MarshalBinary()
	assert.ErrorIs(t, err, ErrNotSerializable)
}
