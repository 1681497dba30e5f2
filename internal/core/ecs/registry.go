package ecs

import (
	"fmt"
	"reflect"

	"github.com/kamstrup/intmap"

	"github.com/l1jgo/entitystore/internal/archive"
)

// componentType is the capability record kept for every component type a
// World has seen: how to name it, build an empty store for it and decode a
// store of it from an archive.
type componentType struct {
	id          TypeID
	name        string
	rtype       reflect.Type
	tag         bool
	codec       any // archive.Codec[T] or nil
	newStore    func() AnyStore
	decodeStore func(r *archive.Reader, accept func(EntityID) bool) (AnyStore, error)
}

// Registry owns the component stores of a World, keyed by TypeID and kept in
// registration order so sweeps are deterministic.
type Registry struct {
	stores []AnyStore
	byID   *intmap.Map[TypeID, int]
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make([]AnyStore, 0, 16),
		byID:   intmap.New[TypeID, int](16),
	}
}

// Register adds a store. Each type may be registered once.
func (r *Registry) Register(store AnyStore) error {
	if r.byID.Has(store.TypeID()) {
		return fmt.Errorf("register %s store: type %#x already has a store", store.Name(), uint64(store.TypeID()))
	}
	r.byID.Put(store.TypeID(), len(r.stores))
	r.stores = append(r.stores, store)
	return nil
}

// Lookup returns the store for id.
func (r *Registry) Lookup(id TypeID) (AnyStore, bool) {
	i, ok := r.byID.Get(id)
	if !ok {
		return nil, false
	}
	return r.stores[i], true
}

// Stores returns every store in registration order.
func (r *Registry) Stores() []AnyStore {
	return r.stores
}

func (r *Registry) Len() int {
	return len(r.stores)
}

// RemoveAll sweeps every store once, in registration order, removing the
// components it holds for ids. It returns how many components were removed.
func (r *Registry) RemoveAll(ids ...EntityID) int {
	n := 0
	for _, s := range r.stores {
		for _, id := range ids {
			if s.Has(id) {
				// Cannot fail: presence was checked above.
				_ = s.Remove(id)
				n++
			}
		}
	}
	return n
}
