package ecs

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// TypeID identifies a component type. It is a 64-bit BLAKE2b digest of the
// type's qualified name, so it is the same in every process that links the
// type and can key serialized store records.
type TypeID uint64

var identities = struct {
	sync.Mutex
	byType map[reflect.Type]TypeID
	byID   map[TypeID]reflect.Type
}{
	byType: make(map[reflect.Type]TypeID),
	byID:   make(map[TypeID]reflect.Type),
}

// TypeOf returns the identity of T, computing and caching it on first use.
func TypeOf[T any]() TypeID {
	return typeIDFor(reflect.TypeFor[T]())
}

func typeIDFor(t reflect.Type) TypeID {
	identities.Lock()
	defer identities.Unlock()

	if id, ok := identities.byType[t]; ok {
		return id
	}
	id := digest(qualifiedName(t))
	if other, ok := identities.byID[id]; ok && other != t {
		panic(fmt.Sprintf("ecs: type identity collision between %v and %v", other, t))
	}
	identities.byType[t] = id
	identities.byID[id] = t
	return id
}

func qualifiedName(t reflect.Type) string {
	if t.PkgPath() != "" && t.Name() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

func digest(name string) TypeID {
	h, err := blake2b.New(8, nil)
	if err != nil {
		// Only reachable with an invalid size or key.
		panic(err)
	}
	h.Write([]byte(name))
	return TypeID(binary.LittleEndian.Uint64(h.Sum(nil)))
}

// shortName is the default component name: the bare type name when the type
// is named, otherwise its literal form.
func shortName(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
