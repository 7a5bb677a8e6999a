package gms

import (
	"math"
	"strings"
	"testing"
)

func builtinGame(t *testing.T) *Game {
	t.Helper()
	w := newTestWorld()
	g, err := w.game()
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestStringBuiltins(t *testing.T) {
	g := builtinGame(t)

	tests := []struct {
		name string
		args []Value
		want Value
	}{
		{"string_length", []Value{Str("hello")}, Real(5)},
		{"string_char_at", []Value{Str("abc"), Real(2)}, Str("b")},
		{"string_char_at", []Value{Str("abc"), Real(9)}, Str("")},
		{"string_copy", []Value{Str("hello"), Real(2), Real(3)}, Str("ell")},
		{"string_copy", []Value{Str("hello"), Real(99), Real(3)}, Str("")},
		{"string_copy", []Value{Str("hello"), Real(4), Real(99)}, Str("lo")},
		{"string_delete", []Value{Str("hello"), Real(2), Real(2)}, Str("hlo")},
		{"string_insert", []Value{Str("xx"), Str("ab"), Real(2)}, Str("axxb")},
		{"string_pos", []Value{Str("l"), Str("hello")}, Real(3)},
		{"string_pos", []Value{Str("z"), Str("hello")}, Real(0)},
		{"string_upper", []Value{Str("abc")}, Str("ABC")},
		{"string_repeat", []Value{Str("ab"), Real(3)}, Str("ababab")},
		{"chr", []Value{Real(65)}, Str("A")},
		{"ord", []Value{Str("A")}, Real(65)},
		{"string", []Value{Real(3.5)}, Str("3.5")},
		{"string", []Value{Real(4)}, Str("4")},
		{"real", []Value{Str("2.5")}, Real(2.5)},
	}
	for _, tt := range tests {
		got, err := g.CallBuiltin(tt.name, 0, tt.args...)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if !got.Equals(tt.want) || got.Kind() != tt.want.Kind() {
			t.Errorf("%s(%v) = %v, want %v", tt.name, tt.args, got, tt.want)
		}
	}
}

func TestMathBuiltins(t *testing.T) {
	g := builtinGame(t)

	tests := []struct {
		name string
		args []Value
		want float64
	}{
		{"abs", []Value{Real(-3)}, 3},
		{"sign", []Value{Real(-7)}, -1},
		{"floor", []Value{Real(2.9)}, 2},
		{"ceil", []Value{Real(2.1)}, 3},
		{"round", []Value{Real(2.5)}, 2}, // banker's rounding
		{"round", []Value{Real(3.5)}, 4},
		{"sqr", []Value{Real(4)}, 16},
		{"min", []Value{Real(3), Real(1), Real(2)}, 1},
		{"max", []Value{Real(3), Real(1), Real(2)}, 3},
		{"clamp", []Value{Real(12), Real(0), Real(10)}, 10},
		{"lerp", []Value{Real(0), Real(10), Real(0.25)}, 2.5},
		{"point_distance", []Value{Real(0), Real(0), Real(3), Real(4)}, 5},
		{"point_direction", []Value{Real(0), Real(0), Real(1), Real(0)}, 0},
		{"point_direction", []Value{Real(0), Real(0), Real(0), Real(-1)}, 90},
		{"lengthdir_y", []Value{Real(2), Real(90)}, -2},
	}
	for _, tt := range tests {
		got, err := g.CallBuiltin(tt.name, 0, tt.args...)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		r, _ := got.ToReal()
		if math.Abs(r-tt.want) > 1e-9 {
			t.Errorf("%s(%v) = %v, want %v", tt.name, tt.args, r, tt.want)
		}
	}
}

func TestRandomDeterminism(t *testing.T) {
	g1 := builtinGame(t)
	g2 := builtinGame(t)
	g1.SetSeed(1234)
	g2.SetSeed(1234)

	for i := 0; i < 100; i++ {
		a, err := g1.CallBuiltin("random", 0, Real(100))
		if err != nil {
			t.Fatal(err)
		}
		b, err := g2.CallBuiltin("random", 0, Real(100))
		if err != nil {
			t.Fatal(err)
		}
		if !a.Equals(b) {
			t.Fatalf("draw %d diverged: %v vs %v", i, a, b)
		}
		r, _ := a.ToReal()
		if r < 0 || r >= 100 {
			t.Fatalf("random(100) = %v out of range", r)
		}
	}
}

func TestDsMap(t *testing.T) {
	g := builtinGame(t)

	h, err := g.CallBuiltin("ds_map_create", 0)
	if err != nil {
		t.Fatal(err)
	}

	if v, _ := g.CallBuiltin("ds_map_add", 0, h, Str("k"), Real(7)); !v.IsTrue() {
		t.Error("ds_map_add returned false")
	}
	// duplicate add fails
	if v, _ := g.CallBuiltin("ds_map_add", 0, h, Str("k"), Real(8)); v.IsTrue() {
		t.Error("duplicate ds_map_add succeeded")
	}
	if v, _ := g.CallBuiltin("ds_map_find_value", 0, h, Str("k")); !v.Equals(Real(7)) {
		t.Errorf("find_value = %v, want 7", v)
	}
	if v, _ := g.CallBuiltin("ds_map_exists", 0, h, Str("k")); !v.IsTrue() {
		t.Error("ds_map_exists = false")
	}
	if v, _ := g.CallBuiltin("ds_map_size", 0, h); !v.Equals(Real(1)) {
		t.Errorf("size = %v, want 1", v)
	}
	g.CallBuiltin("ds_map_delete", 0, h, Str("k"))
	if v, _ := g.CallBuiltin("ds_map_exists", 0, h, Str("k")); v.IsTrue() {
		t.Error("key survived delete")
	}
	g.CallBuiltin("ds_map_destroy", 0, h)
	if v, _ := g.CallBuiltin("ds_map_find_value", 0, h, Str("k")); v.Kind() != KindUndefined {
		t.Error("destroyed map still readable")
	}
}

func TestDsList(t *testing.T) {
	g := builtinGame(t)

	h, err := g.CallBuiltin("ds_list_create", 0)
	if err != nil {
		t.Fatal(err)
	}
	g.CallBuiltin("ds_list_add", 0, h, Str("a"), Str("b"), Str("c"))
	if v, _ := g.CallBuiltin("ds_list_size", 0, h); !v.Equals(Real(3)) {
		t.Errorf("size = %v, want 3", v)
	}
	if v, _ := g.CallBuiltin("ds_list_find_value", 0, h, Real(1)); !v.Equals(Str("b")) {
		t.Errorf("list[1] = %v, want b", v)
	}
	if v, _ := g.CallBuiltin("ds_list_find_index", 0, h, Str("c")); !v.Equals(Real(2)) {
		t.Errorf("find_index = %v, want 2", v)
	}
	g.CallBuiltin("ds_list_delete", 0, h, Real(0))
	if v, _ := g.CallBuiltin("ds_list_find_value", 0, h, Real(0)); !v.Equals(Str("b")) {
		t.Errorf("after delete list[0] = %v, want b", v)
	}
}

func TestStubsAreSafe(t *testing.T) {
	g := builtinGame(t)
	for _, name := range []string{"ini_open", "ini_read_real", "file_exists", "audio_play_sound", "sound_play", "caster_load"} {
		if _, err := g.CallBuiltin(name, 0, Str("x")); err != nil {
			t.Errorf("stub %s returned error: %v", name, err)
		}
	}
}

func TestInstanceBuiltins(t *testing.T) {
	w := newTestWorld()
	obj := w.addObject("obj_a", -1)
	child := w.addObject("obj_b", obj)
	g, err := w.game()
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Start(-1); err != nil {
		t.Fatal(err)
	}

	idVal, err := g.CallBuiltin("instance_create", 0, Real(5), Real(6), Real(float64(obj)))
	if err != nil {
		t.Fatal(err)
	}
	g.CallBuiltin("instance_create", 0, Real(0), Real(0), Real(float64(child)))

	if v, _ := g.CallBuiltin("instance_number", 0, Real(float64(obj))); !v.Equals(Real(2)) {
		t.Errorf("instance_number(parent) = %v, want 2 (descendants count)", v)
	}
	if v, _ := g.CallBuiltin("instance_exists", 0, idVal); !v.IsTrue() {
		t.Error("instance_exists(id) = false")
	}
	if v, _ := g.CallBuiltin("instance_find", 0, Real(float64(obj)), Real(0)); !v.Equals(idVal) {
		t.Errorf("instance_find = %v, want %v", v, idVal)
	}
	if v, _ := g.CallBuiltin("object_get_name", 0, Real(float64(child))); !v.Equals(Str("obj_b")) {
		t.Errorf("object_get_name = %v", v)
	}
	if v, _ := g.CallBuiltin("object_is_ancestor", 0, Real(float64(child)), Real(float64(obj))); !v.IsTrue() {
		t.Error("object_is_ancestor = false")
	}
}

func TestUnknownBuiltinDiagnostic(t *testing.T) {
	g := builtinGame(t)
	_, err := g.CallBuiltin("not_registered", 0, Real(1), Real(2))
	if err == nil || !strings.Contains(err.Error(), "not_registered") || !strings.Contains(err.Error(), "2") {
		t.Errorf("diagnostic = %v, want name and argc", err)
	}
}
