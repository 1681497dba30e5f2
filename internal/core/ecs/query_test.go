package ecs

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestView2VisitsIntersectionOnly(t *testing.T) {
	w := NewWorld()
	e1 := w.Create()
	_, err := AddComponent(w, e1, position{})
	require.NoError(t, err)
	_, err = AddComponent(w, e1, velocity{})
	require.NoError(t, err)
	e2 := w.Create()
	_, err = AddComponent(w, e2, position{})
	require.NoError(t, err)

	var visited []EntityID
	err = Access2[position, velocity](w).EachEntity(func(e EntityID, _ *position, _ *velocity) {
		visited = append(visited, e)
	})
	require.NoError(t, err)
	assert.Equal(t, []EntityID{e1}, visited)
}

func TestViewIntersectionIgnoresStoreSizes(t *testing.T) {
	for _, tc := range []struct {
		name          string
		withPos       func(i int) bool
		withVel       func(i int) bool
		wantFromIndex func(i int) bool
	}{
		{"position larger", func(int) bool { return true }, func(i int) bool { return i%3 == 0 }, func(i int) bool { return i%3 == 0 }},
		{"velocity larger", func(i int) bool { return i%4 == 0 }, func(int) bool { return true }, func(i int) bool { return i%4 == 0 }},
		{"disjoint", func(i int) bool { return i%2 == 0 }, func(i int) bool { return i%2 == 1 }, func(int) bool { return false }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWorld()
			var want []EntityID
			for i := 0; i < 30; i++ {
				e := w.Create()
				if tc.withPos(i) {
					_, err := AddComponent(w, e, position{X: float32(i)})
					require.NoError(t, err)
				}
				if tc.withVel(i) {
					_, err := AddComponent(w, e, velocity{DX: float32(i)})
					require.NoError(t, err)
				}
				if tc.wantFromIndex(i) {
					want = append(want, e)
				}
			}

			got := slices.Collect(Access2[position, velocity](w).Entities())
			assert.ElementsMatch(t, want, got)

			rev := slices.Collect(Access2[velocity, position](w).Entities())
			assert.ElementsMatch(t, want, rev)

			err := Access2[position, velocity](w).Each(func(p *position, v *velocity) {
				assert.Equal(t, p.X, v.DX)
			})
			require.NoError(t, err)
		})
	}
}

func TestDestroyDuringIteration(t *testing.T) {
	w := NewWorld()
	e1 := w.Create()
	e2 := w.Create()
	for _, e := range []EntityID{e1, e2} {
		_, err := AddComponent(w, e, position{})
		require.NoError(t, err)
	}

	var seen []EntityID
	err := Access[position](w).EachEntity(func(e EntityID, _ *position) {
		if e == e2 {
			require.NoError(t, w.Destroy(e1))
		}
		seen = append(seen, e)
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []EntityID{e1, e2}, seen)

	// Destroy during a pass where e1 comes later still visits it.
	seen = nil
	err = Access[position](w).EachEntity(func(e EntityID, _ *position) {
		require.NoError(t, w.Destroy(e1))
		seen = append(seen, e)
	})
	require.NoError(t, err)
	assert.Contains(t, seen, e1)

	w.Flush()
	assert.False(t, HasComponent[position](w, e1))
	assert.True(t, HasComponent[position](w, e2))
}

func TestStaleView(t *testing.T) {
	w := NewWorld()
	e1, e2 := w.Create(), w.Create()
	for _, e := range []EntityID{e1, e2} {
		_, err := AddComponent(w, e, position{})
		require.NoError(t, err)
		_, err = AddComponent(w, e, velocity{})
		require.NoError(t, err)
	}

	v := Access2[position, velocity](w)
	assert.False(t, v.Stale())
	_, err := AddComponent(w, w.Create(), velocity{})
	require.NoError(t, err)
	assert.True(t, v.Stale())
	assert.ErrorIs(t, v.Each(func(*position, *velocity) {}), ErrStaleView)

	calls := 0
	err = Access2[position, velocity](w).Each(func(*position, *velocity) {
		calls++
		require.NoError(t, RemoveComponent[position](w, e2))
	})
	assert.ErrorIs(t, err, ErrStaleView)
	assert.Equal(t, 1, calls)
}

func TestViewSizeAndGet(t *testing.T) {
	w := NewWorld()
	e := w.Create()
	_, err := AddComponent(w, e, position{X: 1})
	require.NoError(t, err)
	_, err = AddComponent(w, e, velocity{DX: 2})
	require.NoError(t, err)
	_, err = AddComponent(w, e, health{HP: 3})
	require.NoError(t, err)
	_, err = AddComponent(w, e, frozen{})
	require.NoError(t, err)
	other := w.Create()
	_, err = AddComponent(w, other, position{})
	require.NoError(t, err)

	assert.Equal(t, 2, Access[position](w).Size())
	assert.Equal(t, 1, Access2[position, velocity](w).Size())

	v4 := Access4[position, velocity, health, frozen](w)
	p, vel, h, _, err := v4.Get(e)
	require.NoError(t, err)
	assert.Equal(t, float32(1), p.X)
	assert.Equal(t, float32(2), vel.DX)
	assert.Equal(t, int32(3), h.HP)
	_, _, _, _, err = v4.Get(other)
	assert.ErrorIs(t, err, ErrComponentNotFound)

	count := 0
	require.NoError(t, v4.Each(func(*position, *velocity, *health, *frozen) { count++ }))
	assert.Equal(t, 1, count)

	v3 := Access3[position, velocity, health](w)
	assert.Equal(t, []EntityID{e}, slices.Collect(v3.Entities()))
	require.NoError(t, Each3(w, func(id EntityID, p *position, _ *velocity, _ *health) {
		p.X = 10
	}))
	got, err := GetComponent[position](w, e)
	require.NoError(t, err)
	assert.Equal(t, float32(10), got.X)

	require.NoError(t, Each2(w, func(id EntityID, _ *position, h *health) {
		assert.Equal(t, e, id)
		h.HP++
	}))
	hp, err := GetComponent[health](w, e)
	require.NoError(t, err)
	assert.Equal(t, int32(4), hp.HP)
}

func TestSingleView(t *testing.T) {
	w := NewWorld()
	for i := 0; i < 4; i++ {
		_, err := AddComponent(w, w.Create(), health{HP: int32(i)})
		require.NoError(t, err)
	}
	sum := int32(0)
	require.NoError(t, Access[health](w).Each(func(h *health) { sum += h.HP }))
	assert.Equal(t, int32(6), sum)

	ids := slices.Collect(Access[health](w).Entities())
	assert.Len(t, ids, 4)
	_, err := Access[health](w).Get(ids[0])
	require.NoError(t, err)
}
