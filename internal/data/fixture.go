package data

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/entitystore/internal/component"
	"github.com/l1jgo/entitystore/internal/core/ecs"
)

// Fixture is a spawn list loaded from YAML:
//
//	entities:
//	  - count: 3
//	    components:
//	      Position: {x: 1, y: 2}
//	      Velocity: {dx: 0.5}
//	      Static: {}
type Fixture struct {
	Entities []SpawnEntry `yaml:"entities"`
}

// SpawnEntry creates Count entities (1 when omitted) carrying the same
// components. Component values stay undecoded until Spawn looks up their kind.
type SpawnEntry struct {
	Count      int                  `yaml:"count"`
	Components map[string]yaml.Node `yaml:"components"`
}

// attachFunc puts one decoded component value on an entity.
type attachFunc func(w *ecs.World, id ecs.EntityID) error

// Kinds maps fixture component names to decoders.
type Kinds struct {
	decoders map[string]func(node *yaml.Node) (attachFunc, error)
}

func NewKinds() *Kinds {
	return &Kinds{decoders: make(map[string]func(*yaml.Node) (attachFunc, error))}
}

// Bind makes name decode into a T.
func Bind[T any](k *Kinds, name string) {
	k.decoders[name] = func(node *yaml.Node) (attachFunc, error) {
		var v T
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return func(w *ecs.World, id ecs.EntityID) error {
			_, err := ecs.SetComponent(w, id, v)
			return err
		}, nil
	}
}

// Names returns the bound component names, sorted.
func (k *Kinds) Names() []string {
	names := make([]string, 0, len(k.decoders))
	for name := range k.decoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StandardKinds binds every type in the component package under the name
// RegisterAll gives it.
func StandardKinds() *Kinds {
	k := NewKinds()
	Bind[component.Position](k, "Position")
	Bind[component.Velocity](k, "Velocity")
	Bind[component.Health](k, "Health")
	Bind[component.Layer](k, "Layer")
	Bind[component.Static](k, "Static")
	Bind[component.Name](k, "Name")
	return k
}

// LoadFixture loads a spawn list file.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	f, err := ParseFixture(raw)
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}

func ParseFixture(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	for i, e := range f.Entities {
		if e.Count < 0 {
			return nil, fmt.Errorf("entry %d: negative count %d", i, e.Count)
		}
	}
	return &f, nil
}

// Spawn creates the fixture's entities in w. Every component is decoded
// before the first entity is created, so a bad fixture leaves w untouched.
func (f *Fixture) Spawn(w *ecs.World, kinds *Kinds) ([]ecs.EntityID, error) {
	type plan struct {
		count   int
		attachs []attachFunc
	}
	plans := make([]plan, 0, len(f.Entities))
	total := 0
	for i, e := range f.Entities {
		p := plan{count: max(e.Count, 1)}
		names := make([]string, 0, len(e.Components))
		for name := range e.Components {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			decode, ok := kinds.decoders[name]
			if !ok {
				return nil, fmt.Errorf("entry %d: unknown component %q", i, name)
			}
			node := e.Components[name]
			attach, err := decode(&node)
			if err != nil {
				return nil, fmt.Errorf("entry %d: decode %s: %w", i, name, err)
			}
			p.attachs = append(p.attachs, attach)
		}
		plans = append(plans, p)
		total += p.count
	}

	ids := make([]ecs.EntityID, 0, total)
	for _, p := range plans {
		for n := 0; n < p.count; n++ {
			id := w.Create()
			for _, attach := range p.attachs {
				if err := attach(w, id); err != nil {
					return ids, fmt.Errorf("spawn entity %d: %w", id, err)
				}
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
