package data

import (
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/entitystore/internal/core/ecs"
)

// Dump is the YAML view of a World, for inspection and diffs.
type Dump struct {
	NextID   uint64      `yaml:"next_id"`
	Stores   []StoreInfo `yaml:"stores"`
	Entities []DumpEntry `yaml:"entities"`
}

type StoreInfo struct {
	Name   string `yaml:"name"`
	TypeID string `yaml:"type_id"`
	Size   int    `yaml:"size"`
	Tag    bool   `yaml:"tag,omitempty"`
}

type DumpEntry struct {
	ID         uint64         `yaml:"id"`
	Pending    bool           `yaml:"pending,omitempty"`
	Components map[string]any `yaml:"components,omitempty"`
}

// BuildDump collects every live entity with its components, ordered by id.
func BuildDump(w *ecs.World) *Dump {
	d := &Dump{NextID: uint64(w.Pool().Next())}
	stores := w.Stores()
	for _, s := range stores {
		d.Stores = append(d.Stores, StoreInfo{
			Name:   s.Name(),
			TypeID: fmt.Sprintf("%016x", uint64(s.TypeID())),
			Size:   s.Len(),
			Tag:    s.Tag(),
		})
	}

	ids := slices.Clone(w.Entities())
	slices.Sort(ids)
	for _, id := range ids {
		entry := DumpEntry{ID: uint64(id), Pending: w.Pending(id)}
		for _, s := range stores {
			v, ok := s.Value(id)
			if !ok {
				continue
			}
			if entry.Components == nil {
				entry.Components = make(map[string]any)
			}
			entry.Components[s.Name()] = v
		}
		d.Entities = append(d.Entities, entry)
	}
	return d
}

// WriteDump writes w as YAML.
func WriteDump(out io.Writer, w *ecs.World) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(BuildDump(w)); err != nil {
		return fmt.Errorf("encode dump: %w", err)
	}
	return enc.Close()
}
