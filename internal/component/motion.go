package component

import "github.com/l1jgo/entitystore/internal/core/ecs"

// Integrate advances every moving entity by dt seconds of its velocity.
// Static entities keep their position. Returns the number of entities moved.
func Integrate(w *ecs.World, dt float32) (int, error) {
	moved := 0
	err := ecs.Each2(w, func(id ecs.EntityID, p *Position, v *Velocity) {
		if ecs.HasComponent[Static](w, id) {
			return
		}
		p.X += v.DX * dt
		p.Y += v.DY * dt
		p.Z += v.DZ * dt
		moved++
	})
	return moved, err
}

// Reap queues every entity whose health dropped to zero or below for
// destruction and returns how many were queued.
func Reap(w *ecs.World) (int, error) {
	n := 0
	err := ecs.Access[Health](w).EachEntity(func(id ecs.EntityID, h *Health) {
		if h.Current > 0 || w.Pending(id) {
			return
		}
		if w.Destroy(id) == nil {
			n++
		}
	})
	return n, err
}

// SortByLayer puts the Layer store in draw order.
func SortByLayer(w *ecs.World) {
	ecs.StoreOf[Layer](w).SortByComponent(func(a, b *Layer) bool {
		return a.Z < b.Z
	})
}
