// Package scripting lets a component type's validator be authored as a
// Lua function instead of a Go closure. It adapts the Go<->Lua value
// conversion the engine's lineage built for its modding surface,
// redirected at the validator-dispatch contract instead of a mod API.
package scripting

import (
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"

	"github.com/solace-games/ecsframe/ecs"
	"github.com/solace-games/ecsframe/ecs/ecserror"
)

// Engine owns one Lua state, shared by every validator loaded through
// it. A world that wants scripted validators constructs exactly one
// Engine and loads each component's validator function from it.
type Engine struct {
	state *lua.LState
}

// NewEngine creates a sandboxed Lua state: no filesystem, OS command,
// debug, or module-loading access, since a validator's only job is to
// inspect the fields handed to it and return a verdict.
func NewEngine() *Engine {
	state := lua.NewState()
	state.SetGlobal("io", lua.LNil)
	state.SetGlobal("os", lua.LNil)
	state.SetGlobal("debug", lua.LNil)
	state.SetGlobal("package", lua.LNil)
	state.SetGlobal("require", lua.LNil)
	state.SetGlobal("dofile", lua.LNil)
	state.SetGlobal("loadfile", lua.LNil)
	return &Engine{state: state}
}

// Close releases the underlying Lua state.
func (e *Engine) Close() { e.state.Close() }

// Validator is a single Lua-authored validator function, loaded once
// and invoked on every Add/Remove that touches its component type.
type Validator struct {
	engine *Engine
	fn     *lua.LFunction
	name   string
}

// LoadValidator compiles src, which must define a global function
// named fnName taking one table argument (the component's fields) and
// returning either a boolean verdict or a string rejection reason
// (any other return, including none, counts as acceptance).
func (e *Engine) LoadValidator(fnName, src string) (*Validator, error) {
	if err := e.state.DoString(src); err != nil {
		return nil, fmt.Errorf("scripting: compiling validator %q: %w", fnName, err)
	}
	fn, ok := e.state.GetGlobal(fnName).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("scripting: %q did not define a global function %q", src, fnName)
	}
	return &Validator{engine: e, fn: fn, name: fnName}, nil
}

// call invokes the validator with fields marshaled into a Lua table
// and interprets its return value.
func (v *Validator) call(fields map[string]any) (ok bool, reason string, err error) {
	state := v.engine.state
	table, err := convertGoToLua(state, fields)
	if err != nil {
		return false, "", err
	}
	if err := state.CallByParam(lua.P{Fn: v.fn, NRet: 1, Protect: true}, table); err != nil {
		return false, "", err
	}
	ret := state.Get(-1)
	state.Pop(1)
	switch r := ret.(type) {
	case lua.LBool:
		return bool(r), "", nil
	case lua.LString:
		s := string(r)
		return s == "", s, nil
	default:
		return true, "", nil
	}
}

// ValidatorFunc adapts v into a component's Validate hook: it reads
// the entity's current instance of ct, marshals its exported fields
// into a Lua table, and rejects with CodeConflictingProps if the
// script returns false or a non-empty string.
func ValidatorFunc[T any](v *Validator, ct *ecs.ComponentType[T]) func(ecs.Entity) error {
	return func(e ecs.Entity) error {
		val, err := ecs.Read(e, ct)
		if err != nil {
			return err
		}
		fields := structToMap(val)
		ok, reason, cerr := v.call(fields)
		if cerr != nil {
			return ecserror.Internal(ecserror.CodeInvariantBroken, fmt.Sprintf("lua validator %q errored: %v", v.name, cerr)).
				WithEntity(uint32(e.ID())).WithComponent(ct.Name())
		}
		if !ok {
			if reason == "" {
				reason = fmt.Sprintf("lua validator %q rejected component %q", v.name, ct.Name())
			}
			return ecserror.Check(ecserror.CodeConflictingProps, reason).WithEntity(uint32(e.ID())).WithComponent(ct.Name())
		}
		return nil
	}
}

func structToMap(rec any) map[string]any {
	rv := reflect.ValueOf(rec)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	out := make(map[string]any, rv.NumField())
	if rv.Kind() != reflect.Struct {
		return out
	}
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		out[f.Name] = rv.Field(i).Interface()
	}
	return out
}

// convertGoToLua mirrors the lineage's modding bridge: scalars convert
// directly, slices of string/int become 1-indexed tables, and
// map[string]any (the shape structToMap produces) becomes a keyed
// table.
func convertGoToLua(state *lua.LState, value any) (lua.LValue, error) {
	if value == nil {
		return lua.LNil, nil
	}
	switch v := value.(type) {
	case string:
		return lua.LString(v), nil
	case int:
		return lua.LNumber(float64(v)), nil
	case int32:
		return lua.LNumber(float64(v)), nil
	case int64:
		return lua.LNumber(float64(v)), nil
	case uint32:
		return lua.LNumber(float64(v)), nil
	case float32:
		return lua.LNumber(float64(v)), nil
	case float64:
		return lua.LNumber(v), nil
	case bool:
		return lua.LBool(v), nil
	case []string:
		table := state.NewTable()
		for i, item := range v {
			table.RawSetInt(i+1, lua.LString(item))
		}
		return table, nil
	case []int:
		table := state.NewTable()
		for i, item := range v {
			table.RawSetInt(i+1, lua.LNumber(float64(item)))
		}
		return table, nil
	case map[string]any:
		table := state.NewTable()
		for key, val := range v {
			luaVal, err := convertGoToLua(state, val)
			if err != nil {
				return nil, err
			}
			table.RawSetString(key, luaVal)
		}
		return table, nil
	default:
		return nil, fmt.Errorf("scripting: unsupported value type %T", value)
	}
}
