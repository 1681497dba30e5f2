package ecs

import (
	"github.com/kamstrup/intmap"
	"go.uber.org/zap"
)

// World is the top-level ECS container. It owns the entity pool, the store
// registry, the component type catalog and the deferred destruction queue.
//
// Entities move through unborn → live → pending-destroy → gone. Destroy only
// queues an entity; its components stay readable until Flush sweeps every
// store, so destroying during iteration is safe.
//
// A World is not safe for concurrent use.
type World struct {
	pool     *EntityPool
	registry *Registry

	types map[TypeID]*componentType
	names map[string]TypeID

	live    []EntityID
	livePos *intmap.Map[EntityID, int]

	pending    []EntityID
	pendingSet *intmap.Map[EntityID, struct{}]

	storeCapacity int
	log           *zap.Logger
}

// Option configures a World.
type Option func(*World)

// WithLogger sets the logger used for store and lifecycle events.
func WithLogger(log *zap.Logger) Option {
	return func(w *World) {
		if log != nil {
			w.log = log
		}
	}
}

// WithCapacity preallocates room for entities and for the components of each
// store created later.
func WithCapacity(entities, components int) Option {
	return func(w *World) {
		if entities > 0 {
			w.live = make([]EntityID, 0, entities)
			w.livePos = intmap.New[EntityID, int](entities)
		}
		if components > 0 {
			w.storeCapacity = components
		}
	}
}

func NewWorld(opts ...Option) *World {
	w := &World{
		pool:          NewEntityPool(),
		registry:      NewRegistry(),
		types:         make(map[TypeID]*componentType),
		names:         make(map[string]TypeID),
		live:          make([]EntityID, 0, 1024),
		livePos:       intmap.New[EntityID, int](1024),
		pending:       make([]EntityID, 0, 64),
		pendingSet:    intmap.New[EntityID, struct{}](64),
		storeCapacity: 64,
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

// Create returns a fresh live entity with no components.
func (w *World) Create() EntityID {
	id := w.pool.Create()
	w.livePos.Put(id, len(w.live))
	w.live = append(w.live, id)
	return id
}

// CreateN creates n entities.
func (w *World) CreateN(n int) []EntityID {
	ids := make([]EntityID, n)
	for i := range ids {
		ids[i] = w.Create()
	}
	return ids
}

// Alive reports whether id is live, including while it waits in the destroy
// queue.
func (w *World) Alive(id EntityID) bool {
	return w.livePos.Has(id)
}

// Pending reports whether id is queued for destruction.
func (w *World) Pending(id EntityID) bool {
	return w.pendingSet.Has(id)
}

// Destroy queues id for destruction at the next Flush. Queuing an entity that
// is already queued is a no-op.
func (w *World) Destroy(id EntityID) error {
	if !w.Alive(id) {
		return &StoreError{Op: "destroy", Entity: id, Err: ErrEntityNotFound}
	}
	if w.pendingSet.Has(id) {
		return nil
	}
	w.pendingSet.Put(id, struct{}{})
	w.pending = append(w.pending, id)
	return nil
}

// Flush destroys every queued entity: each store drops the components it
// holds for them, then the ids leave the live set. It returns the number of
// entities destroyed.
func (w *World) Flush() int {
	if len(w.pending) == 0 {
		return 0
	}
	removed := w.registry.RemoveAll(w.pending...)
	for _, id := range w.pending {
		w.eraseLive(id)
		w.pendingSet.Del(id)
	}
	n := len(w.pending)
	w.pending = w.pending[:0]
	w.log.Debug("destroy queue flushed",
		zap.Int("entities", n),
		zap.Int("components", removed),
	)
	return n
}

// RemoveRequestedEntities is an alias for Flush.
func (w *World) RemoveRequestedEntities() int {
	return w.Flush()
}

func (w *World) eraseLive(id EntityID) {
	pos, ok := w.livePos.Get(id)
	if !ok {
		return
	}
	last := len(w.live) - 1
	moved := w.live[last]
	w.live[pos] = moved
	w.livePos.Put(moved, pos)
	w.live = w.live[:last]
	w.livePos.Del(id)
}

// Entities returns the live entities. Order is not creation order once
// entities have been destroyed. The slice must not be modified.
func (w *World) Entities() []EntityID {
	return w.live
}

// PendingDestroy returns the entities queued for destruction, in request
// order. The slice must not be modified.
func (w *World) PendingDestroy() []EntityID {
	return w.pending
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return len(w.live)
}

// StoreByID returns the store registered for a type identity.
func (w *World) StoreByID(id TypeID) (AnyStore, bool) {
	return w.registry.Lookup(id)
}

// StoreByName returns the store for the component type registered under name.
// A type that is cataloged but has no store yet gets one created.
func (w *World) StoreByName(name string) (AnyStore, bool) {
	id, ok := w.names[name]
	if !ok {
		return nil, false
	}
	if s, ok := w.registry.Lookup(id); ok {
		return s, true
	}
	return w.ensureStore(w.types[id]), true
}

// TypeByName resolves a component name to its type identity without
// creating a store.
func (w *World) TypeByName(name string) (TypeID, bool) {
	id, ok := w.names[name]
	return id, ok
}

// Stores returns every store in registration order.
func (w *World) Stores() []AnyStore {
	return w.registry.Stores()
}

// TypeNames returns the names of every cataloged component type.
func (w *World) TypeNames() []string {
	names := make([]string, 0, len(w.names))
	for name := range w.names {
		names = append(names, name)
	}
	return names
}

func (w *World) ensureStore(typ *componentType) AnyStore {
	if s, ok := w.registry.Lookup(typ.id); ok {
		return s
	}
	s := typ.newStore()
	// Lookup above guarantees the type is not registered yet.
	_ = w.registry.Register(s)
	w.log.Debug("component store created",
		zap.String("type", typ.name),
		zap.Uint64("type_id", uint64(typ.id)),
		zap.Bool("tag", typ.tag),
	)
	return s
}
