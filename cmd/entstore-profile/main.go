// Profiling:
// go build ./cmd/entstore-profile
// ./entstore-profile -mode cpu
// go tool pprof -http=":8000" -nodefraction=0.001 ./entstore-profile cpu.pprof

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/profile"

	"github.com/l1jgo/entitystore/internal/component"
	"github.com/l1jgo/entitystore/internal/core/ecs"
)

func main() {
	mode := flag.String("mode", "cpu", "cpu, mem or allocs")
	rounds := flag.Int("rounds", 20, "worlds built")
	iters := flag.Int("iters", 200, "create/step/destroy cycles per world")
	entities := flag.Int("entities", 1000, "entities per cycle")
	flag.Parse()

	var opt func(*profile.Profile)
	switch *mode {
	case "cpu":
		opt = profile.CPUProfile
	case "mem":
		opt = profile.MemProfile
	case "allocs":
		opt = profile.MemProfileAllocs
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(1)
	}

	p := profile.Start(opt, profile.ProfilePath("."), profile.NoShutdownHook)
	bytes, err := run(*rounds, *iters, *entities)
	p.Stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("last snapshot: %d bytes\n", bytes)
}

// run churns entities through the full lifecycle: create with components,
// iterate, queue destruction, flush, and snapshot.
func run(rounds, iters, numEntities int) (int, error) {
	size := 0
	for range rounds {
		w := ecs.NewWorld(ecs.WithCapacity(numEntities, numEntities))
		if err := component.RegisterAll(w); err != nil {
			return 0, err
		}
		for range iters {
			for _, id := range w.CreateN(numEntities) {
				if _, err := ecs.AddComponent(w, id, component.Position{}); err != nil {
					return 0, err
				}
				if _, err := ecs.AddComponent(w, id, component.Velocity{DX: 1, DY: 1}); err != nil {
					return 0, err
				}
			}
			if _, err := component.Integrate(w, 0.016); err != nil {
				return 0, err
			}
			err := ecs.Access[component.Position](w).EachEntity(func(id ecs.EntityID, _ *component.Position) {
				_ = w.Destroy(id)
			})
			if err != nil {
				return 0, err
			}
			w.Flush()
		}
		data, err := w.MarshalBinary()
		if err != nil {
			return 0, err
		}
		size = len(data)
	}
	return size, nil
}
