package ecs

import (
	"fmt"
	"reflect"

	"github.com/l1jgo/entitystore/internal/archive"
)

// catalog returns T's capability record, creating it with the default name
// and codec on first use.
func catalog[T any](w *World) *componentType {
	id := TypeOf[T]()
	if typ, ok := w.types[id]; ok {
		return typ
	}
	rt := reflect.TypeFor[T]()
	typ := &componentType{
		id:    id,
		name:  shortName(rt),
		rtype: rt,
		tag:   rt.Size() == 0,
	}
	if _, taken := w.names[typ.name]; taken {
		typ.name = qualifiedName(rt)
	}
	if archive.FixedSize[T]() {
		typ.codec = archive.BinaryCodec[T]{}
	}
	typ.newStore = func() AnyStore {
		return newStore[T](typ, w.storeCapacity)
	}
	typ.decodeStore = func(r *archive.Reader, accept func(EntityID) bool) (AnyStore, error) {
		s := newStore[T](typ, 0)
		if err := s.decode(r, accept); err != nil {
			return nil, err
		}
		return s, nil
	}
	w.types[id] = typ
	w.names[typ.name] = id
	return typ
}

// Register catalogs T ahead of use. name replaces the default name (the bare
// type name) when non-empty; codec replaces the default fixed-size binary
// codec when non-nil. Every type that can appear in a serialized stream must
// be registered, or at least used, before the stream is loaded.
func Register[T any](w *World, name string, codec archive.Codec[T]) error {
	typ := catalog[T](w)
	if name != "" && name != typ.name {
		if other, taken := w.names[name]; taken && other != typ.id {
			return fmt.Errorf("register %v as %q: %w", typ.rtype, name, ErrNameTaken)
		}
		delete(w.names, typ.name)
		typ.name = name
		w.names[name] = typ.id
	}
	if codec != nil {
		typ.codec = codec
	}
	if s, ok := w.registry.Lookup(typ.id); ok {
		store := s.(*Store[T])
		store.name = typ.name
		if codec != nil {
			store.codec = codec
		}
	}
	return nil
}

// StoreOf returns the store for T, creating and registering it on first use.
func StoreOf[T any](w *World) *Store[T] {
	if s, ok := w.registry.Lookup(TypeOf[T]()); ok {
		return s.(*Store[T])
	}
	return w.ensureStore(catalog[T](w)).(*Store[T])
}

// AddComponent attaches v to a live entity.
func AddComponent[T any](w *World, id EntityID, v T) (*T, error) {
	if !w.Alive(id) {
		return nil, &StoreError{Op: "add", Entity: id, Component: catalog[T](w).name, Err: ErrEntityNotFound}
	}
	return StoreOf[T](w).Add(id, v)
}

// SetComponent overwrites the entity's T, adding it if absent.
func SetComponent[T any](w *World, id EntityID, v T) (*T, error) {
	if !w.Alive(id) {
		return nil, &StoreError{Op: "set", Entity: id, Component: catalog[T](w).name, Err: ErrEntityNotFound}
	}
	return StoreOf[T](w).Set(id, v)
}

// AttachComponent adds a zero-valued T to a live entity.
func AttachComponent[T any](w *World, id EntityID) (*T, error) {
	var zero T
	return AddComponent(w, id, zero)
}

func RemoveComponent[T any](w *World, id EntityID) error {
	return StoreOf[T](w).Remove(id)
}

func GetComponent[T any](w *World, id EntityID) (*T, error) {
	return StoreOf[T](w).Get(id)
}

func TryGetComponent[T any](w *World, id EntityID) (*T, bool) {
	return StoreOf[T](w).TryGet(id)
}

// HasComponent reports whether the entity has a T. It never creates a store.
func HasComponent[T any](w *World, id EntityID) bool {
	return HasComponents(w, id, TypeOf[T]())
}

// HasComponents reports whether the entity has every listed component type.
// Types without a store count as absent.
func HasComponents(w *World, id EntityID, types ...TypeID) bool {
	if len(types) == 0 {
		return false
	}
	for _, t := range types {
		s, ok := w.registry.Lookup(t)
		if !ok || !s.Has(id) {
			return false
		}
	}
	return true
}
