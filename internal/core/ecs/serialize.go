package ecs

import (
	"github.com/kamstrup/intmap"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/l1jgo/entitystore/internal/archive"
)

func (s *Store[T]) encode(w *archive.Writer) error {
	if !s.tag {
		if s.codec == nil {
			return eris.Wrapf(ErrNotSerializable, "encode %s store", s.name)
		}
		w.WriteSeqHeader(cap(s.components), len(s.components))
		for i := range s.components {
			if err := s.codec.Encode(w, &s.components[i]); err != nil {
				return eris.Wrapf(err, "encode %s component %d of %d", s.name, i, len(s.components))
			}
		}
	}
	writeIDs(w, s.index.dense)
	return nil
}

// decode fills an empty store from a container record. Every entity id must
// pass accept, which runs before the sparse array is sized.
func (s *Store[T]) decode(r *archive.Reader, accept func(EntityID) bool) error {
	var comps []T
	if !s.tag {
		if s.codec == nil {
			return eris.Wrapf(ErrNotSerializable, "decode %s store", s.name)
		}
		capacity, n, err := r.ReadSeqHeader()
		if err != nil {
			return eris.Wrapf(err, "decode %s components", s.name)
		}
		// The header is untrusted: grow from what the remaining bytes allow.
		comps = make([]T, 0, min(n, capacity, r.Remaining()))
		for i := 0; i < n; i++ {
			var v T
			err := s.codec.Decode(r, &v)
			if err == nil {
				err = r.Err()
			}
			if err != nil {
				return eris.Wrapf(err, "decode %s component %d of %d", s.name, i, n)
			}
			comps = append(comps, v)
		}
	}

	ids, err := readIDs(r)
	if err != nil {
		return eris.Wrapf(err, "decode %s entities", s.name)
	}
	if !s.tag && len(ids) != len(comps) {
		return eris.Wrapf(ErrMalformedStream, "decode %s: %d components for %d entities", s.name, len(comps), len(ids))
	}
	for _, e := range ids {
		if !accept(e) {
			return eris.Wrapf(ErrMalformedStream, "decode %s: invalid entity %d", s.name, e)
		}
	}

	index := SparseIndex{dense: ids}
	if err := index.rebuild(); err != nil {
		return eris.Wrapf(err, "decode %s index", s.name)
	}
	s.index = index
	s.components = comps
	s.generation++
	return nil
}

// readIDs reads an id sequence. The count is checked against the bytes left
// before anything is allocated.
func readIDs(r *archive.Reader) ([]EntityID, error) {
	_, n, err := r.ReadSeqHeader()
	if err != nil {
		return nil, err
	}
	if n > r.Remaining()/8 {
		return nil, archive.ErrTruncated
	}
	ids := make([]EntityID, n)
	for i := range ids {
		ids[i] = EntityID(r.ReadU64())
	}
	return ids, r.Err()
}

func writeIDs(w *archive.Writer, ids []EntityID) {
	w.WriteSeqHeader(cap(ids), len(ids))
	for _, e := range ids {
		w.WriteU64(uint64(e))
	}
}

// MarshalBinary encodes the store as a single container record.
func (s *Store[T]) MarshalBinary() ([]byte, error) {
	w := archive.NewWriter()
	if err := s.encode(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// UnmarshalBinary replaces the store's contents with a decoded container
// record. On failure the store is left unchanged.
func (s *Store[T]) UnmarshalBinary(data []byte) error {
	fresh := &Store[T]{id: s.id, name: s.name, tag: s.tag, codec: s.codec, generation: s.generation}
	if err := fresh.decode(archive.NewReader(data), EntityID.Storable); err != nil {
		return err
	}
	s.index = fresh.index
	s.components = fresh.components
	s.generation = fresh.generation
	return nil
}

// Serialize writes the whole World: the live and pending entity lists, the
// next entity id, then every store in registration order keyed by its type
// identity.
func (w *World) Serialize(out *archive.Writer) error {
	writeIDs(out, w.live)
	writeIDs(out, w.pending)
	out.WriteU64(uint64(w.pool.Next()))
	stores := w.registry.Stores()
	out.WriteI64(int64(len(stores)))
	for _, s := range stores {
		out.WriteU64(uint64(s.TypeID()))
		if err := s.encode(out); err != nil {
			return eris.Wrapf(err, "serialize world")
		}
	}
	return nil
}

// Deserialize replaces the World's entities and stores with the contents of
// a stream written by Serialize. Every component type in the stream must
// already be known to this World (through Register or earlier use). The
// World is only modified once the entire stream has decoded; stores the
// stream does not mention are dropped and recreated empty on next use.
func (w *World) Deserialize(r *archive.Reader) error {
	live, err := readIDs(r)
	if err != nil {
		return eris.Wrap(err, "deserialize live entities")
	}
	pending, err := readIDs(r)
	if err != nil {
		return eris.Wrap(err, "deserialize pending entities")
	}
	next := EntityID(r.ReadU64())
	if err := r.Err(); err != nil {
		return eris.Wrap(err, "deserialize next entity id")
	}
	if next == 0 {
		return eris.Wrap(ErrMalformedStream, "deserialize: next entity id is zero")
	}

	livePos := intmap.New[EntityID, int](max(len(live), 16))
	for i, e := range live {
		if e == 0 || e >= next {
			return eris.Wrapf(ErrMalformedStream, "deserialize: live entity %d out of range", e)
		}
		if livePos.Has(e) {
			return eris.Wrapf(ErrMalformedStream, "deserialize: live entity %d repeated", e)
		}
		livePos.Put(e, i)
	}
	pendingSet := intmap.New[EntityID, struct{}](max(len(pending), 16))
	for _, e := range pending {
		if !livePos.Has(e) {
			return eris.Wrapf(ErrMalformedStream, "deserialize: pending entity %d is not live", e)
		}
		if pendingSet.Has(e) {
			return eris.Wrapf(ErrMalformedStream, "deserialize: pending entity %d repeated", e)
		}
		pendingSet.Put(e, struct{}{})
	}

	count := r.ReadI64()
	if err := r.Err(); err != nil {
		return eris.Wrap(err, "deserialize store count")
	}
	if count < 0 {
		return eris.Wrapf(ErrMalformedStream, "deserialize: store count %d", count)
	}
	if count > int64(r.Remaining()/8) {
		return eris.Wrapf(archive.ErrTruncated, "deserialize: %d stores", count)
	}

	// Only live entities may hold components. Checked before any sparse
	// array is sized.
	accept := func(e EntityID) bool {
		return e.Storable() && livePos.Has(e)
	}
	registry := NewRegistry()
	for i := int64(0); i < count; i++ {
		id := TypeID(r.ReadU64())
		if err := r.Err(); err != nil {
			return eris.Wrapf(err, "deserialize store %d type", i)
		}
		typ, ok := w.types[id]
		if !ok {
			return eris.Wrapf(ErrUnknownTypeIdentity, "deserialize store %d: type id %#x", i, uint64(id))
		}
		store, err := typ.decodeStore(r, accept)
		if err != nil {
			return eris.Wrapf(err, "deserialize store %d", i)
		}
		if err := registry.Register(store); err != nil {
			return eris.Wrap(ErrMalformedStream, err.Error())
		}
	}

	w.registry = registry
	w.pool.reset(next)
	w.live = live
	w.livePos = livePos
	w.pending = pending
	w.pendingSet = pendingSet
	w.log.Debug("world snapshot decoded",
		zap.Int("entities", len(live)),
		zap.Int("pending", len(pending)),
		zap.Int64("stores", count),
	)
	return nil
}

// MarshalBinary encodes the World with Serialize.
func (w *World) MarshalBinary() ([]byte, error) {
	out := archive.NewWriter()
	if err := w.Serialize(out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// UnmarshalBinary loads a stream produced by MarshalBinary.
func (w *World) UnmarshalBinary(data []byte) error {
	return w.Deserialize(archive.NewReader(data))
}
