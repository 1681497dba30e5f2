package ecs

import (
	"math"
	"slices"
)

// absent marks a sparse slot with no dense entry.
const absent = math.MaxUint32

// SparseIndex maps entity ids to positions in a dense entity array. It is the
// part every component store shares: O(1) membership, lookup and removal with
// compact iteration.
//
// The dense order is not creation order. Remove moves the last entity into
// the vacated slot, so any position obtained before a removal may afterwards
// refer to a different entity.
type SparseIndex struct {
	dense  []EntityID
	sparse []uint32
}

func newSparseIndex(capacity int) SparseIndex {
	return SparseIndex{
		dense: make([]EntityID, 0, capacity),
	}
}

func (s *SparseIndex) Has(e EntityID) bool {
	return uint64(e) < uint64(len(s.sparse)) && s.sparse[e] != absent
}

// Add appends e to the dense array. Zero and ids at or above MaxEntityID are
// ErrIndexOutOfBounds.
func (s *SparseIndex) Add(e EntityID) error {
	if !e.Storable() {
		return ErrIndexOutOfBounds
	}
	if s.Has(e) {
		return ErrDuplicateEntity
	}
	s.ensure(e)
	s.sparse[e] = uint32(len(s.dense))
	s.dense = append(s.dense, e)
	return nil
}

// IndexOf returns e's position in the dense array.
func (s *SparseIndex) IndexOf(e EntityID) (int, error) {
	if !s.Has(e) {
		return -1, ErrEntityNotFound
	}
	return int(s.sparse[e]), nil
}

// EntityAt returns the entity at dense position i.
func (s *SparseIndex) EntityAt(i int) (EntityID, error) {
	if i < 0 || i >= len(s.dense) {
		return 0, ErrIndexOutOfBounds
	}
	return s.dense[i], nil
}

// Remove swap-removes e and returns the slot it vacated. The entity that was
// last in the dense array now lives in that slot.
func (s *SparseIndex) Remove(e EntityID) (int, error) {
	if !s.Has(e) {
		return -1, ErrEntityNotFound
	}
	slot := int(s.sparse[e])
	last := len(s.dense) - 1
	moved := s.dense[last]
	s.dense[slot] = moved
	s.sparse[moved] = uint32(slot)
	s.dense = s.dense[:last]
	// Written after the moved entry so removing the last entity still clears it.
	s.sparse[e] = absent
	return slot, nil
}

func (s *SparseIndex) Len() int { return len(s.dense) }

// Entities returns the dense entity array. The slice is owned by the index
// and must not be modified or retained across a structural mutation.
func (s *SparseIndex) Entities() []EntityID { return s.dense }

func (s *SparseIndex) clear() {
	for _, e := range s.dense {
		s.sparse[e] = absent
	}
	s.dense = s.dense[:0]
}

// ensure grows the sparse array to cover e, doubling or to e+1 whichever is
// larger but never past MaxEntityID, and fills new slots with the sentinel.
// Callers check e.Storable first.
func (s *SparseIndex) ensure(e EntityID) {
	if uint64(e) < uint64(len(s.sparse)) {
		return
	}
	oldLen := len(s.sparse)
	newLen := min(max(oldLen*2, int(e)+1), int(MaxEntityID))
	grown := make([]uint32, newLen)
	copy(grown, s.sparse)
	for i := oldLen; i < newLen; i++ {
		grown[i] = absent
	}
	s.sparse = grown
}

// sortOrder returns the dense positions in the order given by less, which
// compares two dense positions. The sort is stable.
func (s *SparseIndex) sortOrder(less func(i, j int) bool) []int {
	order := make([]int, len(s.dense))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		}
		return 0
	})
	return order
}

// permute rearranges the dense array so that position k holds what was at
// order[k], and rewrites the sparse slot of every entity.
func (s *SparseIndex) permute(order []int) {
	dense := make([]EntityID, len(s.dense), cap(s.dense))
	for k, from := range order {
		e := s.dense[from]
		dense[k] = e
		s.sparse[e] = uint32(k)
	}
	s.dense = dense
}

// rebuild recreates the sparse array from the dense array.
func (s *SparseIndex) rebuild() error {
	for i := range s.sparse {
		s.sparse[i] = absent
	}
	for _, e := range s.dense {
		if !e.Storable() {
			return ErrIndexOutOfBounds
		}
	}
	for i, e := range s.dense {
		if s.Has(e) {
			return ErrDuplicateEntity
		}
		s.ensure(e)
		s.sparse[e] = uint32(i)
	}
	return nil
}
