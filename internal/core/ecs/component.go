package ecs

import (
	"fmt"
	"iter"
	"reflect"

	"github.com/l1jgo/entitystore/internal/archive"
)

// AnyStore is the type-erased surface every Store[T] implements, so the
// World can sweep, count and serialize stores without knowing their
// component types.
type AnyStore interface {
	TypeID() TypeID
	Name() string
	Tag() bool
	Has(id EntityID) bool
	Len() int
	Entities() []EntityID
	// Remove deletes the entity's component.
	Remove(id EntityID) error
	// Attach adds a zero-valued component.
	Attach(id EntityID) error
	// Value returns a copy of the entity's component.
	Value(id EntityID) (any, bool)
	// SetValue overwrites or adds the entity's component. v must be a T.
	SetValue(id EntityID, v any) error
	// Zero returns the zero component value.
	Zero() any
	Generation() uint64
	Clear()

	encode(w *archive.Writer) error
}

var _ AnyStore = (*Store[struct{}])(nil)

// Store holds every component of type T in a dense array aligned with a
// SparseIndex: components[i] belongs to the entity at dense position i.
//
// A zero-size T is a tag. Tag stores keep only the index and hand out one
// shared instance for every entity that has the tag.
//
// Pointers returned by Add, Set, Get and TryGet stay valid until the next
// structural mutation (add, remove, sort, clear) of this store.
type Store[T any] struct {
	id         TypeID
	name       string
	tag        bool
	index      SparseIndex
	components []T
	shared     T
	codec      archive.Codec[T]
	generation uint64
}

// NewStore creates a standalone store for T with the default codec.
func NewStore[T any]() *Store[T] {
	t := reflect.TypeFor[T]()
	s := &Store[T]{
		id:    TypeOf[T](),
		name:  shortName(t),
		tag:   t.Size() == 0,
		index: newSparseIndex(0),
	}
	if archive.FixedSize[T]() {
		s.codec = archive.BinaryCodec[T]{}
	}
	return s
}

// NewStoreWithCodec creates a standalone store that serializes through codec.
func NewStoreWithCodec[T any](codec archive.Codec[T]) *Store[T] {
	s := NewStore[T]()
	s.codec = codec
	return s
}

func newStore[T any](typ *componentType, capacity int) *Store[T] {
	s := &Store[T]{
		id:    typ.id,
		name:  typ.name,
		tag:   typ.tag,
		index: newSparseIndex(capacity),
	}
	if c, ok := typ.codec.(archive.Codec[T]); ok {
		s.codec = c
	}
	if !s.tag {
		s.components = make([]T, 0, capacity)
	}
	return s
}

func (s *Store[T]) TypeID() TypeID     { return s.id }
func (s *Store[T]) Name() string       { return s.name }
func (s *Store[T]) Tag() bool          { return s.tag }
func (s *Store[T]) Len() int           { return s.index.Len() }
func (s *Store[T]) Generation() uint64 { return s.generation }

func (s *Store[T]) Has(id EntityID) bool {
	return s.index.Has(id)
}

// Entities returns the dense entity array, index-aligned with Components.
func (s *Store[T]) Entities() []EntityID {
	return s.index.Entities()
}

// Components returns the dense component array. It is nil for tag stores.
func (s *Store[T]) Components() []T {
	return s.components
}

// Add attaches v to id and returns a pointer to the stored copy.
func (s *Store[T]) Add(id EntityID, v T) (*T, error) {
	if s.index.Has(id) {
		return nil, s.fail("add", id, ErrDuplicateComponent)
	}
	if err := s.index.Add(id); err != nil {
		return nil, s.fail("add", id, err)
	}
	s.generation++
	if s.tag {
		return &s.shared, nil
	}
	s.components = append(s.components, v)
	return &s.components[len(s.components)-1], nil
}

// Attach adds a zero-valued component to id.
func (s *Store[T]) Attach(id EntityID) error {
	var zero T
	_, err := s.Add(id, zero)
	return err
}

// Set overwrites id's component, adding it if absent.
func (s *Store[T]) Set(id EntityID, v T) (*T, error) {
	if p, ok := s.TryGet(id); ok {
		*p = v
		return p, nil
	}
	return s.Add(id, v)
}

// Remove deletes id's component by moving the last component into its slot.
// The dense order of the remaining entities changes.
func (s *Store[T]) Remove(id EntityID) error {
	slot, err := s.index.Remove(id)
	if err != nil {
		return s.fail("remove", id, ErrComponentNotFound)
	}
	s.generation++
	if s.tag {
		return nil
	}
	last := len(s.components) - 1
	s.components[slot] = s.components[last]
	var zero T
	s.components[last] = zero
	s.components = s.components[:last]
	return nil
}

func (s *Store[T]) Get(id EntityID) (*T, error) {
	if !s.index.Has(id) {
		return nil, s.fail("get", id, ErrComponentNotFound)
	}
	return s.at(id), nil
}

func (s *Store[T]) TryGet(id EntityID) (*T, bool) {
	if !s.index.Has(id) {
		return nil, false
	}
	return s.at(id), true
}

// Value returns a copy of id's component boxed in an interface.
func (s *Store[T]) Value(id EntityID) (any, bool) {
	p, ok := s.TryGet(id)
	if !ok {
		return nil, false
	}
	return *p, true
}

func (s *Store[T]) SetValue(id EntityID, v any) error {
	t, ok := v.(T)
	if !ok {
		return fmt.Errorf("set %s on entity %d: value has type %T", s.name, id, v)
	}
	_, err := s.Set(id, t)
	return err
}

func (s *Store[T]) Zero() any {
	var zero T
	return zero
}

// at assumes id is present.
func (s *Store[T]) at(id EntityID) *T {
	if s.tag {
		return &s.shared
	}
	return &s.components[s.index.sparse[id]]
}

// All yields (entity, component) pairs in dense order. A structural mutation
// of the store during the pass ends it early.
func (s *Store[T]) All() iter.Seq2[EntityID, *T] {
	return func(yield func(EntityID, *T) bool) {
		gen := s.generation
		for i := 0; i < len(s.index.dense); i++ {
			e := s.index.dense[i]
			var p *T
			if s.tag {
				p = &s.shared
			} else {
				p = &s.components[i]
			}
			if !yield(e, p) || s.generation != gen {
				return
			}
		}
	}
}

// Each calls fn for every component in dense order.
func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for e, p := range s.All() {
		fn(e, p)
	}
}

// SortByEntity reorders the store by comparing entities. The sort is stable.
func (s *Store[T]) SortByEntity(less func(a, b EntityID) bool) {
	dense := s.index.dense
	s.apply(s.index.sortOrder(func(i, j int) bool {
		return less(dense[i], dense[j])
	}))
}

// SortByComponent reorders the store by comparing component values, e.g. to
// draw sprites in z order. The sort is stable.
func (s *Store[T]) SortByComponent(less func(a, b *T) bool) {
	if s.tag {
		// Every entity shares one value; the order cannot change.
		return
	}
	comps := s.components
	s.apply(s.index.sortOrder(func(i, j int) bool {
		return less(&comps[i], &comps[j])
	}))
}

func (s *Store[T]) apply(order []int) {
	if !s.tag {
		sorted := make([]T, len(s.components), cap(s.components))
		for k, from := range order {
			sorted[k] = s.components[from]
		}
		s.components = sorted
	}
	s.index.permute(order)
	s.generation++
}

// Clear removes every component.
func (s *Store[T]) Clear() {
	s.index.clear()
	if !s.tag {
		clear(s.components)
		s.components = s.components[:0]
	}
	s.generation++
}

func (s *Store[T]) fail(op string, id EntityID, err error) error {
	return &StoreError{Op: op, Entity: id, Component: s.name, Err: err}
}
