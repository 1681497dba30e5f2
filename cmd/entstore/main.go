// entstore spawns, runs, inspects and persists entity worlds.
//
// Usage:
//
//	go run ./cmd/entstore <command> [flags]
//
// Commands: spawn, run, dump, list, migrate
//
// The config file is read from $ENTSTORE_CONFIG, default config/entstore.toml.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/entitystore/internal/component"
	"github.com/l1jgo/entitystore/internal/config"
	"github.com/l1jgo/entitystore/internal/core/ecs"
	"github.com/l1jgo/entitystore/internal/data"
	"github.com/l1jgo/entitystore/internal/persist"
	"github.com/l1jgo/entitystore/internal/scripting"
)

const defaultConfigPath = "config/entstore.toml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}

	commands := map[string]func(context.Context, *app, []string) error{
		"spawn":   cmdSpawn,
		"run":     cmdRun,
		"dump":    cmdDump,
		"list":    cmdList,
		"migrate": cmdMigrate,
	}
	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	defer a.close()

	if err := fn(ctx, a, os.Args[2:]); err != nil {
		a.log.Error("command failed", zap.String("command", cmd), zap.Error(err))
		a.close()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: entstore <command> [flags]

Commands:
  spawn    create entities from the fixture file and save a snapshot
  run      load a snapshot, step it with scripts, save it back
  dump     print a snapshot as YAML
  list     list stored snapshots
  migrate  apply the PostgreSQL snapshot schema`)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printStat(label string, count int) {
	num := fmt.Sprintf("%d", count)
	dots := max(42-len(label)-len(num), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dots), num)
}

// app carries what every command needs. The database is connected on first
// use.
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *persist.DB
}

func newApp() (*app, error) {
	cfgPath := defaultConfigPath
	if p := os.Getenv("ENTSTORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) && cfgPath == defaultConfigPath {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &app{cfg: cfg, log: log}, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
	_ = a.log.Sync()
}

func (a *app) connect(ctx context.Context) (*persist.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	db, err := persist.NewDB(connectCtx, a.cfg.Database, a.log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.db = db
	return db, nil
}

func (a *app) openStore(ctx context.Context) (persist.SnapshotStore, error) {
	switch a.cfg.Snapshot.Backend {
	case "postgres":
		db, err := a.connect(ctx)
		if err != nil {
			return nil, err
		}
		return persist.NewSnapshotRepo(db), nil
	default:
		return persist.NewFileStore(a.cfg.Snapshot.Dir)
	}
}

// newWorld builds an empty World with every component type registered.
func (a *app) newWorld() (*ecs.World, error) {
	w := ecs.NewWorld(
		ecs.WithLogger(a.log.Named("ecs")),
		ecs.WithCapacity(a.cfg.Storage.InitialEntities, a.cfg.Storage.InitialComponents),
	)
	if err := component.RegisterAll(w); err != nil {
		return nil, err
	}
	return w, nil
}

func cmdSpawn(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("spawn", flag.ExitOnError)
	fixture := fs.String("fixture", a.cfg.Fixtures.Path, "fixture YAML file")
	name := fs.String("name", a.cfg.Snapshot.Name, "snapshot name")
	_ = fs.Parse(args)

	f, err := data.LoadFixture(*fixture)
	if err != nil {
		return err
	}
	w, err := a.newWorld()
	if err != nil {
		return err
	}
	ids, err := f.Spawn(w, data.StandardKinds())
	if err != nil {
		return fmt.Errorf("spawn %s: %w", *fixture, err)
	}
	printStat("entities spawned", len(ids))

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	snap, err := persist.SaveWorld(ctx, store, *name, w)
	if err != nil {
		return err
	}
	printOK(fmt.Sprintf("snapshot %q saved (%d bytes)", *name, len(snap.Data)))
	return nil
}

func cmdRun(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	name := fs.String("name", a.cfg.Snapshot.Name, "snapshot name")
	steps := fs.Int("steps", 60, "number of steps")
	dt := fs.Duration("dt", 100*time.Millisecond, "simulated time per step")
	scripts := fs.String("scripts", a.cfg.Scripting.Dir, "Lua script directory")
	_ = fs.Parse(args)

	w, err := a.newWorld()
	if err != nil {
		return err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if _, err := persist.LoadWorld(ctx, store, *name, w); err != nil {
		if !errors.Is(err, persist.ErrSnapshotNotFound) {
			return err
		}
		a.log.Warn("no snapshot yet, starting empty", zap.String("name", *name))
	}
	printStat("entities loaded", w.Len())

	engine := scripting.NewEngine(w, a.log.Named("lua"))
	defer engine.Close()
	if err := engine.LoadDir(*scripts); err != nil {
		return fmt.Errorf("load scripts: %w", err)
	}

	seconds := float32(dt.Seconds())
	var moved, reaped, destroyed int
	for i := 0; i < *steps; i++ {
		if ctx.Err() != nil {
			a.log.Info("interrupted", zap.Int("step", i))
			break
		}
		n, err := component.Integrate(w, seconds)
		if err != nil {
			return fmt.Errorf("step %d: integrate: %w", i, err)
		}
		moved += n
		if err := engine.Tick(dt.Seconds()); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		n, err = component.Reap(w)
		if err != nil {
			return fmt.Errorf("step %d: reap: %w", i, err)
		}
		reaped += n
		destroyed += w.Flush()
	}
	component.SortByLayer(w)

	printStat("entity moves", moved)
	printStat("entities reaped", reaped)
	printStat("entities destroyed", destroyed)
	printStat("entities alive", w.Len())

	// Save even when interrupted.
	if _, err := persist.SaveWorld(context.WithoutCancel(ctx), store, *name, w); err != nil {
		return err
	}
	printOK(fmt.Sprintf("snapshot %q saved", *name))
	return nil
}

func cmdDump(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	name := fs.String("name", a.cfg.Snapshot.Name, "snapshot name")
	out := fs.String("out", "", "output file (default stdout)")
	_ = fs.Parse(args)

	w, err := a.newWorld()
	if err != nil {
		return err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if _, err := persist.LoadWorld(ctx, store, *name, w); err != nil {
		return err
	}

	if *out == "" {
		return data.WriteDump(os.Stdout, w)
	}
	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := data.WriteDump(f, w); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func cmdList(ctx context.Context, a *app, _ []string) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	infos, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	for _, info := range infos {
		fmt.Printf("  %-20s %8d entities %4d stores %10d bytes  %s\n",
			info.Name, info.Entities, info.Stores, info.Bytes, info.SavedAt.Format(time.RFC3339))
	}
	return nil
}

func cmdMigrate(ctx context.Context, a *app, _ []string) error {
	db, err := a.connect(ctx)
	if err != nil {
		return err
	}
	if err := persist.RunMigrations(ctx, db.Pool, a.log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations applied")
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
