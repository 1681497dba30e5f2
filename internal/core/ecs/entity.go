package ecs

// EntityID is an opaque entity handle. Ids come from a strictly increasing
// counter starting at 1 and are never reused, so an id is unique among live
// entities for the life of the process. Zero means "no entity".
type EntityID uint64

func (id EntityID) IsZero() bool { return id == 0 }

// MaxEntityID bounds the ids a component store can hold. Sparse arrays grow
// to the largest stored id, so this also caps their size at 256 MiB.
const MaxEntityID EntityID = 1 << 26

// Storable reports whether a component store can hold id.
func (id EntityID) Storable() bool { return id != 0 && id < MaxEntityID }

// EntityPool issues entity ids.
type EntityPool struct {
	next EntityID
}

func NewEntityPool() *EntityPool {
	return &EntityPool{next: 1}
}

func (p *EntityPool) Create() EntityID {
	id := p.next
	p.next++
	return id
}

// Issued reports whether id has ever been handed out by this pool.
func (p *EntityPool) Issued(id EntityID) bool {
	return id != 0 && id < p.next
}

// Next returns the id the next Create call will return.
func (p *EntityPool) Next() EntityID { return p.next }

func (p *EntityPool) reset(next EntityID) {
	if next == 0 {
		next = 1
	}
	p.next = next
}
