package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/l1jgo/entitystore/internal/core/ecs"
)

var ErrSnapshotNotFound = errors.New("persist: snapshot not found")

// Snapshot is one serialized World under a name.
type Snapshot struct {
	Name     string
	Data     []byte
	Entities int
	Stores   int
	SavedAt  time.Time
}

// SnapshotInfo describes a stored snapshot without its payload.
type SnapshotInfo struct {
	Name     string
	Entities int
	Stores   int
	Bytes    int
	SavedAt  time.Time
}

// SnapshotStore is where World snapshots live. FileStore and SnapshotRepo
// implement it.
type SnapshotStore interface {
	Save(ctx context.Context, s *Snapshot) error
	Load(ctx context.Context, name string) (*Snapshot, error)
	List(ctx context.Context) ([]SnapshotInfo, error)
	Delete(ctx context.Context, name string) error
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid snapshot name %q", name)
	}
	return nil
}

// SaveWorld serializes w and stores it under name.
func SaveWorld(ctx context.Context, store SnapshotStore, name string, w *ecs.World) (*Snapshot, error) {
	data, err := w.MarshalBinary()
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot %s", name)
	}
	s := &Snapshot{
		Name:     name,
		Data:     data,
		Entities: w.Len(),
		Stores:   len(w.Stores()),
		SavedAt:  time.Now().UTC(),
	}
	if err := store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save snapshot %s: %w", name, err)
	}
	return s, nil
}

// LoadWorld replaces w's contents with the snapshot stored under name. The
// component types it contains must be registered on w beforehand.
func LoadWorld(ctx context.Context, store SnapshotStore, name string, w *ecs.World) (*Snapshot, error) {
	s, err := store.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", name, err)
	}
	if err := w.UnmarshalBinary(s.Data); err != nil {
		return nil, eris.Wrapf(err, "decode snapshot %s", name)
	}
	return s, nil
}
