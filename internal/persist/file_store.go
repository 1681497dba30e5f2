package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/l1jgo/entitystore/internal/archive"
)

const (
	fileExt   = ".ecs"
	fileMagic = 0x50414e53 // "SNAP"
)

// FileStore keeps one file per snapshot in a directory. A file is a small
// header (magic, entity count, store count, save time) followed by the World
// stream. Writes go to a temp file renamed into place.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (fs *FileStore) path(name string) string {
	return filepath.Join(fs.dir, name+fileExt)
}

func (fs *FileStore) Save(_ context.Context, s *Snapshot) error {
	if err := validName(s.Name); err != nil {
		return err
	}
	w := archive.NewWriter()
	w.WriteU32(fileMagic)
	w.WriteI64(int64(s.Entities))
	w.WriteI64(int64(s.Stores))
	w.WriteI64(s.SavedAt.UnixNano())
	_, _ = w.Write(s.Data)

	tmp, err := os.CreateTemp(fs.dir, s.Name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(w.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), fs.path(s.Name)); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func (fs *FileStore) Load(_ context.Context, name string) (*Snapshot, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(fs.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	s, headerLen, err := readHeader(name, raw)
	if err != nil {
		return nil, err
	}
	s.Data = raw[headerLen:]
	return s, nil
}

func readHeader(name string, raw []byte) (*Snapshot, int, error) {
	r := archive.NewReader(raw)
	magic := r.ReadU32()
	entities := r.ReadI64()
	stores := r.ReadI64()
	saved := r.ReadI64()
	if err := r.Err(); err != nil {
		return nil, 0, fmt.Errorf("snapshot %s header: %w", name, err)
	}
	if magic != fileMagic {
		return nil, 0, fmt.Errorf("snapshot %s: bad magic %#x", name, magic)
	}
	s := &Snapshot{
		Name:     name,
		Entities: int(entities),
		Stores:   int(stores),
		SavedAt:  time.Unix(0, saved).UTC(),
	}
	return s, len(raw) - r.Remaining(), nil
}

func (fs *FileStore) List(_ context.Context) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, err
	}
	var infos []SnapshotInfo
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != fileExt {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), fileExt)
		raw, err := os.ReadFile(filepath.Join(fs.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		s, headerLen, err := readHeader(name, raw)
		if err != nil {
			return nil, err
		}
		infos = append(infos, SnapshotInfo{
			Name:     name,
			Entities: s.Entities,
			Stores:   s.Stores,
			Bytes:    len(raw) - headerLen,
			SavedAt:  s.SavedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (fs *FileStore) Delete(_ context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	err := os.Remove(fs.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrSnapshotNotFound
	}
	return err
}
