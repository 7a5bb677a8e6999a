package gms

import (
	"fmt"
)

// BuiltinFunc is a registered built-in: it receives the runtime, the self
// and other instance ids of the call site, and the already-popped arguments.
type BuiltinFunc func(g *Game, self, other InstanceID, args []Value) (Value, error)

// Register installs a built-in under its GML name, replacing any previous
// binding.
func (g *Game) Register(name string, fn BuiltinFunc) {
	g.builtins[name] = fn
}

// CallBuiltin invokes a registered built-in by name, for tests and the
// frontend.
func (g *Game) CallBuiltin(name string, self InstanceID, args ...Value) (Value, error) {
	fn, ok := g.builtins[name]
	if !ok {
		return Undefined, fmt.Errorf("gms: call to unknown function %q with %d args", name, len(args))
	}
	return fn(g, self, self, args)
}

// stub registers a side-effect-free built-in that warns once and returns a
// safe default.
func (g *Game) stub(name string, ret Value) {
	g.builtins[name] = func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		g.warnf("stub:"+name, "%s is a stub", name)
		return ret, nil
	}
}

func registerBuiltins(g *Game) {
	registerMathBuiltins(g)
	registerStringBuiltins(g)
	registerInstanceBuiltins(g)
	registerDrawBuiltins(g)
	registerDataBuiltins(g)
	registerRuntimeBuiltins(g)
}

// argument helpers; missing arguments read as Undefined and coerce from
// there.

func arg(args []Value, i int) Value {
	if i < 0 || i >= len(args) {
		return Undefined
	}
	return args[i]
}

func argReal(args []Value, i int) (float64, error) {
	return arg(args, i).ToReal()
}

func argInt(args []Value, i int) (int, error) {
	v, err := arg(args, i).ToReal()
	return int(v), err
}

func argStr(args []Value, i int) (string, error) {
	return arg(args, i).ToString()
}

// dsArenas owns the ds_map and ds_list stores. Handles are small integers,
// reused after destroy like the original runner.
type dsArenas struct {
	maps  []map[string]Value
	lists [][]Value
}

func (a *dsArenas) createMap() int {
	for i, m := range a.maps {
		if m == nil {
			a.maps[i] = make(map[string]Value)
			return i
		}
	}
	a.maps = append(a.maps, make(map[string]Value))
	return len(a.maps) - 1
}

func (a *dsArenas) mapAt(h int) map[string]Value {
	if h < 0 || h >= len(a.maps) {
		return nil
	}
	return a.maps[h]
}

func (a *dsArenas) destroyMap(h int) {
	if h >= 0 && h < len(a.maps) {
		a.maps[h] = nil
	}
}

func (a *dsArenas) createList() int {
	for i, l := range a.lists {
		if l == nil {
			a.lists[i] = []Value{}
			return i
		}
	}
	a.lists = append(a.lists, []Value{})
	return len(a.lists) - 1
}

func (a *dsArenas) listAt(h int) ([]Value, bool) {
	if h < 0 || h >= len(a.lists) || a.lists[h] == nil {
		return nil, false
	}
	return a.lists[h], true
}

func (a *dsArenas) destroyList(h int) {
	if h >= 0 && h < len(a.lists) {
		a.lists[h] = nil
	}
}

// dsKey normalizes a map key: reals and strings hash by their printed form.
func dsKey(v Value) (string, error) {
	switch v.Kind() {
	case KindStr:
		s, _ := v.ToString()
		return "s:" + s, nil
	default:
		r, err := v.ToReal()
		if err != nil {
			return "", err
		}
		return "r:" + formatReal(r), nil
	}
}
