package gms

import (
	"strings"
)

func registerStringBuiltins(g *Game) {
	g.Register("string", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return Undefined, err
		}
		return Str(s), nil
	})

	g.Register("real", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		r, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		return Real(r), nil
	})

	g.Register("string_length", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return Undefined, err
		}
		return Real(float64(len([]rune(s)))), nil
	})

	// string positions are 1-based; out-of-range reads are empty
	g.Register("string_char_at", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return Undefined, err
		}
		i, err := argInt(args, 1)
		if err != nil {
			return Undefined, err
		}
		r := []rune(s)
		if i < 1 || i > len(r) {
			return Str(""), nil
		}
		return Str(string(r[i-1])), nil
	})

	g.Register("string_copy", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return Undefined, err
		}
		i, err := argInt(args, 1)
		if err != nil {
			return Undefined, err
		}
		n, err := argInt(args, 2)
		if err != nil {
			return Undefined, err
		}
		r := []rune(s)
		if i < 1 {
			i = 1
		}
		if i > len(r) || n <= 0 {
			return Str(""), nil
		}
		end := i - 1 + n
		if end > len(r) {
			end = len(r)
		}
		return Str(string(r[i-1 : end])), nil
	})

	g.Register("string_delete", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return Undefined, err
		}
		i, err := argInt(args, 1)
		if err != nil {
			return Undefined, err
		}
		n, err := argInt(args, 2)
		if err != nil {
			return Undefined, err
		}
		r := []rune(s)
		if i < 1 || i > len(r) || n <= 0 {
			return Str(s), nil
		}
		end := i - 1 + n
		if end > len(r) {
			end = len(r)
		}
		return Str(string(r[:i-1]) + string(r[end:])), nil
	})

	g.Register("string_insert", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		sub, err := argStr(args, 0)
		if err != nil {
			return Undefined, err
		}
		s, err := argStr(args, 1)
		if err != nil {
			return Undefined, err
		}
		i, err := argInt(args, 2)
		if err != nil {
			return Undefined, err
		}
		r := []rune(s)
		if i < 1 {
			i = 1
		}
		if i > len(r)+1 {
			i = len(r) + 1
		}
		return Str(string(r[:i-1]) + sub + string(r[i-1:])), nil
	})

	g.Register("string_replace", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, _ := argStr(args, 0)
		from, _ := argStr(args, 1)
		to, err := argStr(args, 2)
		if err != nil {
			return Undefined, err
		}
		return Str(strings.Replace(s, from, to, 1)), nil
	})

	g.Register("string_replace_all", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, _ := argStr(args, 0)
		from, _ := argStr(args, 1)
		to, err := argStr(args, 2)
		if err != nil {
			return Undefined, err
		}
		return Str(strings.ReplaceAll(s, from, to)), nil
	})

	g.Register("string_count", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		sub, _ := argStr(args, 0)
		s, err := argStr(args, 1)
		if err != nil {
			return Undefined, err
		}
		if sub == "" {
			return Real(0), nil
		}
		return Real(float64(strings.Count(s, sub))), nil
	})

	g.Register("string_pos", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		sub, _ := argStr(args, 0)
		s, err := argStr(args, 1)
		if err != nil {
			return Undefined, err
		}
		i := strings.Index(s, sub)
		if i < 0 {
			return Real(0), nil
		}
		return Real(float64(len([]rune(s[:i])) + 1)), nil
	})

	g.Register("string_lower", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return Undefined, err
		}
		return Str(strings.ToLower(s)), nil
	})

	g.Register("string_upper", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return Undefined, err
		}
		return Str(strings.ToUpper(s)), nil
	})

	g.Register("string_repeat", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return Undefined, err
		}
		n, err := argInt(args, 1)
		if err != nil {
			return Undefined, err
		}
		if n <= 0 {
			return Str(""), nil
		}
		return Str(strings.Repeat(s, n)), nil
	})

	g.Register("chr", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		c, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		return Str(string(rune(c))), nil
	})

	g.Register("ord", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return Undefined, err
		}
		r := []rune(s)
		if len(r) == 0 {
			return Real(0), nil
		}
		return Real(float64(r[0])), nil
	})

	g.Register("string_width", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return Undefined, err
		}
		f := g.currentFont()
		if f == nil {
			return Real(0), nil
		}
		w, _ := measureString(f, s)
		return Real(float64(w)), nil
	})

	g.Register("string_height", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return Undefined, err
		}
		f := g.currentFont()
		if f == nil {
			return Real(0), nil
		}
		_, h := measureString(f, s)
		return Real(float64(h)), nil
	})

	g.Register("is_real", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		return Bool(arg(args, 0).Kind() == KindReal), nil
	})
	g.Register("is_string", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		return Bool(arg(args, 0).Kind() == KindStr), nil
	})
	g.Register("is_array", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		return Bool(arg(args, 0).Kind() == KindArray), nil
	})
	g.Register("is_undefined", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		return Bool(arg(args, 0).Kind() == KindUndefined), nil
	})
	g.Register("array_length_1d", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		return Real(float64(arg(args, 0).ArrayLen(0))), nil
	})
	g.Register("array_length_2d", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		i, err := argInt(args, 1)
		if err != nil {
			return Undefined, err
		}
		return Real(float64(arg(args, 0).ArrayLen(int32(i)))), nil
	})
}
