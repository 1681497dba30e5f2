package component

import (
	"fmt"

	"github.com/l1jgo/entitystore/internal/archive"
	"github.com/l1jgo/entitystore/internal/core/ecs"
)

// Plain data only. Behaviour lives in functions over the World.

type Position struct {
	X, Y, Z float32
}

type Velocity struct {
	DX, DY, DZ float32
}

type Health struct {
	Current int32
	Max     int32
}

// Layer orders entities for drawing; lower draws first.
type Layer struct {
	Z int32
}

// Static marks entities that never move.
type Static struct{}

// Name is a display label. It holds a string, so it serializes through
// nameCodec instead of the fixed-size default.
type Name struct {
	Value string
}

var nameCodec = archive.FuncCodec[Name]{
	EncodeFunc: func(w *archive.Writer, v *Name) error {
		w.WriteString(v.Value)
		return nil
	},
	DecodeFunc: func(r *archive.Reader, v *Name) error {
		v.Value = r.ReadString()
		return r.Err()
	},
}

// RegisterAll catalogs every component type under its stable name. Call it
// on a fresh World before loading a snapshot or fixture.
func RegisterAll(w *ecs.World) error {
	for _, err := range []error{
		ecs.Register[Position](w, "Position", nil),
		ecs.Register[Velocity](w, "Velocity", nil),
		ecs.Register[Health](w, "Health", nil),
		ecs.Register[Layer](w, "Layer", nil),
		ecs.Register[Static](w, "Static", nil),
		ecs.Register[Name](w, "Name", nameCodec),
	} {
		if err != nil {
			return fmt.Errorf("register components: %w", err)
		}
	}
	return nil
}
