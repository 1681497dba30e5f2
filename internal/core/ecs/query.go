package ecs

import "iter"

// Views borrow stores from a World for a single pass. They own nothing and
// copy nothing. Each view remembers the generation of every bound store; once
// any of them changes structurally (add, remove, sort, clear) the view is
// stale and its Each methods return ErrStaleView. Destroy does not touch
// stores until Flush, so destroying entities mid-pass is allowed.

// walk yields the entities present in every index. The smallest index drives
// (first one wins a tie) and only the others are probed, so the work is
// bounded by len(smallest) × (len(indexes)-1) lookups.
func walk(indexes []*SparseIndex, yield func(EntityID) bool) {
	driver := 0
	for i := 1; i < len(indexes); i++ {
		if indexes[i].Len() < indexes[driver].Len() {
			driver = i
		}
	}
	dense := indexes[driver].dense
	for _, e := range dense {
		ok := true
		for i, idx := range indexes {
			if i != driver && !idx.Has(e) {
				ok = false
				break
			}
		}
		if ok && !yield(e) {
			return
		}
	}
}

func smallest(lens ...int) int {
	n := lens[0]
	for _, l := range lens[1:] {
		n = min(n, l)
	}
	return n
}

// View iterates a single store. It skips intersection entirely.
type View[A any] struct {
	a    *Store[A]
	genA uint64
}

// Access binds a view over the store for A.
func Access[A any](w *World) View[A] {
	a := StoreOf[A](w)
	return View[A]{a: a, genA: a.generation}
}

func (v View[A]) Size() int { return v.a.Len() }

// Stale reports whether the bound store changed since the view was created.
func (v View[A]) Stale() bool { return v.a.generation != v.genA }

func (v View[A]) Each(fn func(*A)) error {
	return v.EachEntity(func(_ EntityID, a *A) { fn(a) })
}

func (v View[A]) EachEntity(fn func(EntityID, *A)) error {
	if v.Stale() {
		return ErrStaleView
	}
	for e, a := range v.a.All() {
		fn(e, a)
		if v.Stale() {
			return ErrStaleView
		}
	}
	return nil
}

// Entities yields the bound store's entities. It stops if the view goes stale.
func (v View[A]) Entities() iter.Seq[EntityID] {
	return func(yield func(EntityID) bool) {
		for _, e := range v.a.index.dense {
			if v.Stale() || !yield(e) {
				return
			}
		}
	}
}

func (v View[A]) Get(e EntityID) (*A, error) {
	return v.a.Get(e)
}

// View2 iterates the entities present in both stores.
type View2[A, B any] struct {
	a          *Store[A]
	b          *Store[B]
	genA, genB uint64
}

func Access2[A, B any](w *World) View2[A, B] {
	a, b := StoreOf[A](w), StoreOf[B](w)
	return View2[A, B]{a: a, b: b, genA: a.generation, genB: b.generation}
}

// Size is an upper bound on the number of entities visited: the length of
// the smallest bound store.
func (v View2[A, B]) Size() int { return smallest(v.a.Len(), v.b.Len()) }

func (v View2[A, B]) Stale() bool {
	return v.a.generation != v.genA || v.b.generation != v.genB
}

func (v View2[A, B]) indexes() []*SparseIndex {
	return []*SparseIndex{&v.a.index, &v.b.index}
}

func (v View2[A, B]) Each(fn func(*A, *B)) error {
	return v.EachEntity(func(_ EntityID, a *A, b *B) { fn(a, b) })
}

func (v View2[A, B]) EachEntity(fn func(EntityID, *A, *B)) error {
	if v.Stale() {
		return ErrStaleView
	}
	var err error
	walk(v.indexes(), func(e EntityID) bool {
		fn(e, v.a.at(e), v.b.at(e))
		if v.Stale() {
			err = ErrStaleView
			return false
		}
		return true
	})
	return err
}

func (v View2[A, B]) Entities() iter.Seq[EntityID] {
	return func(yield func(EntityID) bool) {
		walk(v.indexes(), func(e EntityID) bool {
			return !v.Stale() && yield(e)
		})
	}
}

func (v View2[A, B]) Get(e EntityID) (*A, *B, error) {
	a, err := v.a.Get(e)
	if err != nil {
		return nil, nil, err
	}
	b, err := v.b.Get(e)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// View3 iterates the entities present in all three stores.
type View3[A, B, C any] struct {
	a                *Store[A]
	b                *Store[B]
	c                *Store[C]
	genA, genB, genC uint64
}

func Access3[A, B, C any](w *World) View3[A, B, C] {
	a, b, c := StoreOf[A](w), StoreOf[B](w), StoreOf[C](w)
	return View3[A, B, C]{
		a: a, b: b, c: c,
		genA: a.generation, genB: b.generation, genC: c.generation,
	}
}

func (v View3[A, B, C]) Size() int { return smallest(v.a.Len(), v.b.Len(), v.c.Len()) }

func (v View3[A, B, C]) Stale() bool {
	return v.a.generation != v.genA || v.b.generation != v.genB || v.c.generation != v.genC
}

func (v View3[A, B, C]) indexes() []*SparseIndex {
	return []*SparseIndex{&v.a.index, &v.b.index, &v.c.index}
}

func (v View3[A, B, C]) Each(fn func(*A, *B, *C)) error {
	return v.EachEntity(func(_ EntityID, a *A, b *B, c *C) { fn(a, b, c) })
}

func (v View3[A, B, C]) EachEntity(fn func(EntityID, *A, *B, *C)) error {
	if v.Stale() {
		return ErrStaleView
	}
	var err error
	walk(v.indexes(), func(e EntityID) bool {
		fn(e, v.a.at(e), v.b.at(e), v.c.at(e))
		if v.Stale() {
			err = ErrStaleView
			return false
		}
		return true
	})
	return err
}

func (v View3[A, B, C]) Entities() iter.Seq[EntityID] {
	return func(yield func(EntityID) bool) {
		walk(v.indexes(), func(e EntityID) bool {
			return !v.Stale() && yield(e)
		})
	}
}

func (v View3[A, B, C]) Get(e EntityID) (*A, *B, *C, error) {
	a, err := v.a.Get(e)
	if err != nil {
		return nil, nil, nil, err
	}
	b, err := v.b.Get(e)
	if err != nil {
		return nil, nil, nil, err
	}
	c, err := v.c.Get(e)
	if err != nil {
		return nil, nil, nil, err
	}
	return a, b, c, nil
}

// View4 iterates the entities present in all four stores.
type View4[A, B, C, D any] struct {
	a                      *Store[A]
	b                      *Store[B]
	c                      *Store[C]
	d                      *Store[D]
	genA, genB, genC, genD uint64
}

func Access4[A, B, C, D any](w *World) View4[A, B, C, D] {
	a, b, c, d := StoreOf[A](w), StoreOf[B](w), StoreOf[C](w), StoreOf[D](w)
	return View4[A, B, C, D]{
		a: a, b: b, c: c, d: d,
		genA: a.generation, genB: b.generation, genC: c.generation, genD: d.generation,
	}
}

func (v View4[A, B, C, D]) Size() int {
	return smallest(v.a.Len(), v.b.Len(), v.c.Len(), v.d.Len())
}

func (v View4[A, B, C, D]) Stale() bool {
	return v.a.generation != v.genA || v.b.generation != v.genB ||
		v.c.generation != v.genC || v.d.generation != v.genD
}

func (v View4[A, B, C, D]) indexes() []*SparseIndex {
	return []*SparseIndex{&v.a.index, &v.b.index, &v.c.index, &v.d.index}
}

func (v View4[A, B, C, D]) Each(fn func(*A, *B, *C, *D)) error {
	return v.EachEntity(func(_ EntityID, a *A, b *B, c *C, d *D) { fn(a, b, c, d) })
}

func (v View4[A, B, C, D]) EachEntity(fn func(EntityID, *A, *B, *C, *D)) error {
	if v.Stale() {
		return ErrStaleView
	}
	var err error
	walk(v.indexes(), func(e EntityID) bool {
		fn(e, v.a.at(e), v.b.at(e), v.c.at(e), v.d.at(e))
		if v.Stale() {
			err = ErrStaleView
			return false
		}
		return true
	})
	return err
}

func (v View4[A, B, C, D]) Entities() iter.Seq[EntityID] {
	return func(yield func(EntityID) bool) {
		walk(v.indexes(), func(e EntityID) bool {
			return !v.Stale() && yield(e)
		})
	}
}

func (v View4[A, B, C, D]) Get(e EntityID) (*A, *B, *C, *D, error) {
	a, err := v.a.Get(e)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	b, err := v.b.Get(e)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	c, err := v.c.Get(e)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	d, err := v.d.Get(e)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return a, b, c, d, nil
}

// Each2 calls fn for every entity that has both A and B.
func Each2[A, B any](w *World, fn func(EntityID, *A, *B)) error {
	return Access2[A, B](w).EachEntity(fn)
}

// Each3 calls fn for every entity that has A, B and C.
func Each3[A, B, C any](w *World, fn func(EntityID, *A, *B, *C)) error {
	return Access3[A, B, C](w).EachEntity(fn)
}
