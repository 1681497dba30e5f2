package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/l1jgo/entitystore/internal/component"
	"github.com/l1jgo/entitystore/internal/config"
	"github.com/l1jgo/entitystore/internal/core/ecs"
)

func sampleWorld(t *testing.T) *ecs.World {
	t.Helper()
	w := ecs.NewWorld()
	require.NoError(t, component.RegisterAll(w))
	for i := 0; i < 5; i++ {
		id := w.Create()
		_, err := ecs.AddComponent(w, id, component.Position{X: float32(i)})
		require.NoError(t, err)
		if i%2 == 0 {
			_, err = ecs.AddComponent(w, id, component.Name{Value: "even"})
			require.NoError(t, err)
		}
	}
	return w
}

func freshWorld(t *testing.T) *ecs.World {
	t.Helper()
	w := ecs.NewWorld()
	require.NoError(t, component.RegisterAll(w))
	return w
}

func exerciseStore(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	src := sampleWorld(t)

	saved, err := SaveWorld(ctx, store, "arena", src)
	require.NoError(t, err)
	assert.Equal(t, 5, saved.Entities)
	assert.Equal(t, 2, saved.Stores)

	dst := freshWorld(t)
	loaded, err := LoadWorld(ctx, store, "arena", dst)
	require.NoError(t, err)
	assert.Equal(t, saved.Data, loaded.Data)
	assert.Equal(t, 5, loaded.Entities)
	assert.WithinDuration(t, saved.SavedAt, loaded.SavedAt, time.Millisecond)
	assert.Equal(t, src.Entities(), dst.Entities())
	n, err := ecs.GetComponent[component.Name](dst, 1)
	require.NoError(t, err)
	assert.Equal(t, "even", n.Value)

	// Saving again replaces the previous snapshot.
	require.NoError(t, src.Destroy(1))
	src.Flush()
	_, err = SaveWorld(ctx, store, "arena", src)
	require.NoError(t, err)

	infos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "arena", infos[0].Name)
	assert.Equal(t, 4, infos[0].Entities)

	_, err = LoadWorld(ctx, store, "missing", freshWorld(t))
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	require.NoError(t, store.Delete(ctx, "arena"))
	assert.ErrorIs(t, store.Delete(ctx, "arena"), ErrSnapshotNotFound)
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "snapshots"))
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestFileStoreRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	for _, name := range []string{"", "..", "a/b", `a\b`} {
		assert.Error(t, store.Save(ctx, &Snapshot{Name: name}), "name %q", name)
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.ecs"), []byte("nope"), 0o644))
	_, err = store.Load(ctx, "junk")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.ecs"), make([]byte, 40), 0o644))
	_, err = store.Load(ctx, "wrong")
	assert.ErrorContains(t, err, "bad magic")
}

func TestLoadWorldLeavesTargetOnCorruptData(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	data, err := sampleWorld(t).MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, &Snapshot{Name: "cut", Data: data[:len(data)-3], SavedAt: time.Now()}))

	dst := freshWorld(t)
	keep := dst.Create()
	_, err = LoadWorld(ctx, store, "cut", dst)
	assert.Error(t, err)
	assert.Equal(t, []ecs.EntityID{keep}, dst.Entities())
}

// Runs against a real server when ENTSTORE_TEST_DSN is set.
func TestSnapshotRepo(t *testing.T) {
	dsn := os.Getenv("ENTSTORE_TEST_DSN")
	if dsn == "" {
		t.Skip("ENTSTORE_TEST_DSN not set")
	}
	ctx := context.Background()
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)
	db, err := NewDB(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 2}, log)
	require.NoError(t, err)
	defer func() {
		db.Close()
		closed := logs.FilterMessage("database pool closed").All()
		require.Len(t, closed, 1)
		assert.Positive(t, closed[0].ContextMap()["acquires"])
	}()
	assert.Equal(t, 1, logs.FilterMessage("database connected").Len())
	require.NoError(t, RunMigrations(ctx, db.Pool, log))
	_, err = db.Pool.Exec(ctx, `DELETE FROM ecs_snapshots`)
	require.NoError(t, err)

	repo := NewSnapshotRepo(db)
	exerciseStore(t, repo)

	history, err := repo.History(ctx, "arena", 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(history), 2)
}
