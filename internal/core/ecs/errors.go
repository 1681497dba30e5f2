package ecs

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateEntity     = errors.New("ecs: entity already indexed")
	ErrDuplicateComponent  = errors.New("ecs: component already exists on entity")
	ErrEntityNotFound      = errors.New("ecs: entity not found")
	ErrComponentNotFound   = errors.New("ecs: component does not exist on entity")
	ErrUnknownTypeIdentity = errors.New("ecs: unknown component type identity")
	ErrIndexOutOfBounds    = errors.New("ecs: index out of bounds")

	// ErrStaleView is returned by a view whose stores changed structurally
	// after the view was bound.
	ErrStaleView = errors.New("ecs: view used after a structural mutation")
	// ErrMalformedStream is returned when a serialized world or store is
	// internally inconsistent.
	ErrMalformedStream = errors.New("ecs: malformed stream")
	// ErrNotSerializable is returned for a component type with no codec.
	ErrNotSerializable = errors.New("ecs: component type has no codec")
	// ErrNameTaken is returned when two component types claim the same name.
	ErrNameTaken = errors.New("ecs: component name already registered")
)

// StoreError describes a failed operation on an entity. It unwraps to one of
// the sentinel errors above.
type StoreError struct {
	Op        string
	Entity    EntityID
	Component string
	Err       error
}

func (e *StoreError) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("%s entity %d: %v", e.Op, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s %s on entity %d: %v", e.Op, e.Component, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
