package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/entitystore/internal/core/ecs"
)

// Engine wraps a single gopher-lua VM bound to one World. Scripts reach the
// World through the global "ecs" table. Single-goroutine access only.
type Engine struct {
	vm    *lua.LState
	world *ecs.World
	log   *zap.Logger
}

// NewEngine creates a Lua VM with the ecs bindings installed.
func NewEngine(world *ecs.World, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, world: world, log: log}
	vm.SetGlobal("ecs", vm.SetFuncs(vm.NewTable(), map[string]lua.LGFunction{
		"create":   e.luaCreate,
		"destroy":  e.luaDestroy,
		"flush":    e.luaFlush,
		"alive":    e.luaAlive,
		"count":    e.luaCount,
		"has":      e.luaHas,
		"attach":   e.luaAttach,
		"remove":   e.luaRemove,
		"get":      e.luaGet,
		"set":      e.luaSet,
		"size":     e.luaSize,
		"entities": e.luaEntities,
		"each":     e.luaEach,
		"log":      e.luaLog,
	}))
	return e
}

// LoadDir runs every .lua file in dir, in name order. A missing directory is
// not an error.
func (e *Engine) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

func (e *Engine) DoFile(path string) error {
	return e.vm.DoFile(path)
}

// Tick calls the global on_tick(dt) if a script defined one.
func (e *Engine) Tick(dt float64) error {
	fn := e.vm.GetGlobal("on_tick")
	if fn == lua.LNil {
		return nil
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(dt)); err != nil {
		return fmt.Errorf("lua on_tick: %w", err)
	}
	return nil
}

func (e *Engine) Close() {
	e.vm.Close()
}

func (e *Engine) checkEntity(L *lua.LState, n int) ecs.EntityID {
	v := L.CheckInt64(n)
	if v <= 0 {
		L.ArgError(n, "entity id must be positive")
	}
	return ecs.EntityID(v)
}

func (e *Engine) checkStore(L *lua.LState, n int) ecs.AnyStore {
	name := L.CheckString(n)
	s, ok := e.world.StoreByName(name)
	if !ok {
		L.ArgError(n, fmt.Sprintf("unknown component %q", name))
	}
	return s
}

func (e *Engine) luaCreate(L *lua.LState) int {
	L.Push(lua.LNumber(e.world.Create()))
	return 1
}

func (e *Engine) luaDestroy(L *lua.LState) int {
	if err := e.world.Destroy(e.checkEntity(L, 1)); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (e *Engine) luaFlush(L *lua.LState) int {
	L.Push(lua.LNumber(e.world.Flush()))
	return 1
}

func (e *Engine) luaAlive(L *lua.LState) int {
	L.Push(lua.LBool(e.world.Alive(e.checkEntity(L, 1))))
	return 1
}

func (e *Engine) luaCount(L *lua.LState) int {
	L.Push(lua.LNumber(e.world.Len()))
	return 1
}

// has(id, name...) is true only when the entity has every named component.
func (e *Engine) luaHas(L *lua.LState) int {
	id := e.checkEntity(L, 1)
	types := make([]ecs.TypeID, 0, L.GetTop()-1)
	for i := 2; i <= L.GetTop(); i++ {
		t, ok := e.world.TypeByName(L.CheckString(i))
		if !ok {
			L.Push(lua.LFalse)
			return 1
		}
		types = append(types, t)
	}
	L.Push(lua.LBool(ecs.HasComponents(e.world, id, types...)))
	return 1
}

func (e *Engine) luaAttach(L *lua.LState) int {
	id := e.checkEntity(L, 1)
	s := e.checkStore(L, 2)
	if !e.world.Alive(id) {
		L.RaiseError("attach %s: entity %d is not alive", s.Name(), id)
	}
	if err := s.Attach(id); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (e *Engine) luaRemove(L *lua.LState) int {
	id := e.checkEntity(L, 1)
	if err := e.checkStore(L, 2).Remove(id); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// get(id, name) returns the component as a table keyed by lower-cased field
// names, or nil if the entity lacks it.
func (e *Engine) luaGet(L *lua.LState) int {
	id := e.checkEntity(L, 1)
	v, ok := e.checkStore(L, 2).Value(id)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(toLua(L, reflect.ValueOf(v)))
	return 1
}

// set(id, name, fields) writes the component, adding it if absent. Fields
// missing from the table keep their current (or zero) value.
func (e *Engine) luaSet(L *lua.LState) int {
	id := e.checkEntity(L, 1)
	s := e.checkStore(L, 2)
	fields := L.OptTable(3, L.NewTable())
	if !e.world.Alive(id) {
		L.RaiseError("set %s: entity %d is not alive", s.Name(), id)
	}
	cur, ok := s.Value(id)
	if !ok {
		cur = s.Zero()
	}
	v := reflect.New(reflect.TypeOf(cur)).Elem()
	v.Set(reflect.ValueOf(cur))
	if err := fromLua(fields, v); err != nil {
		L.RaiseError("set %s: %s", s.Name(), err.Error())
	}
	if err := s.SetValue(id, v.Interface()); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (e *Engine) luaSize(L *lua.LState) int {
	L.Push(lua.LNumber(e.checkStore(L, 1).Len()))
	return 1
}

// entities([name]) lists the live entities, or those holding name.
func (e *Engine) luaEntities(L *lua.LState) int {
	ids := e.world.Entities()
	if L.GetTop() >= 1 {
		ids = e.checkStore(L, 1).Entities()
	}
	t := L.CreateTable(len(ids), 0)
	for _, id := range ids {
		t.Append(lua.LNumber(id))
	}
	L.Push(t)
	return 1
}

// each(name, fn) calls fn(id) for every entity holding name. The id list is
// copied first, so fn may add or remove components.
func (e *Engine) luaEach(L *lua.LState) int {
	s := e.checkStore(L, 1)
	fn := L.CheckFunction(2)
	ids := append([]ecs.EntityID(nil), s.Entities()...)
	for _, id := range ids {
		if err := L.CallByParam(lua.P{
			Fn:      fn,
			NRet:    0,
			Protect: true,
		}, lua.LNumber(id)); err != nil {
			L.RaiseError("each %s: %s", s.Name(), err.Error())
		}
	}
	return 0
}

func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

// toLua converts plain component data. Structs become tables; unsupported
// kinds become their fmt representation.
func toLua(L *lua.LState, v reflect.Value) lua.LValue {
	switch v.Kind() {
	case reflect.Bool:
		return lua.LBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return lua.LNumber(v.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(v.Float())
	case reflect.String:
		return lua.LString(v.String())
	case reflect.Struct:
		t := L.NewTable()
		for i := 0; i < v.NumField(); i++ {
			f := v.Type().Field(i)
			if !f.IsExported() {
				continue
			}
			t.RawSetString(strings.ToLower(f.Name), toLua(L, v.Field(i)))
		}
		return t
	case reflect.Slice, reflect.Array:
		t := L.CreateTable(v.Len(), 0)
		for i := 0; i < v.Len(); i++ {
			t.Append(toLua(L, v.Index(i)))
		}
		return t
	}
	return lua.LString(fmt.Sprint(v.Interface()))
}

// fromLua copies the fields present in t into the struct v, matching
// lower-cased field names.
func fromLua(t *lua.LTable, v reflect.Value) error {
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("component is not a struct")
	}
	for i := 0; i < v.NumField(); i++ {
		f := v.Type().Field(i)
		if !f.IsExported() {
			continue
		}
		key := strings.ToLower(f.Name)
		lv := t.RawGetString(key)
		if lv == lua.LNil {
			continue
		}
		field := v.Field(i)
		switch field.Kind() {
		case reflect.Bool:
			field.SetBool(lua.LVAsBool(lv))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, ok := lv.(lua.LNumber)
			if !ok {
				return fmt.Errorf("field %s: want number, got %s", key, lv.Type())
			}
			field.SetInt(int64(n))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n, ok := lv.(lua.LNumber)
			if !ok || n < 0 {
				return fmt.Errorf("field %s: want non-negative number", key)
			}
			field.SetUint(uint64(n))
		case reflect.Float32, reflect.Float64:
			n, ok := lv.(lua.LNumber)
			if !ok {
				return fmt.Errorf("field %s: want number, got %s", key, lv.Type())
			}
			field.SetFloat(float64(n))
		case reflect.String:
			field.SetString(lua.LVAsString(lv))
		default:
			return fmt.Errorf("field %s: unsupported kind %s", key, field.Kind())
		}
	}
	return nil
}
