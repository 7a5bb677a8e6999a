package gms

import (
	"math"
)

func registerMathBuiltins(g *Game) {
	unary := func(name string, fn func(float64) float64) {
		g.Register(name, func(g *Game, self, other InstanceID, args []Value) (Value, error) {
			x, err := argReal(args, 0)
			if err != nil {
				return Undefined, err
			}
			return Real(fn(x)), nil
		})
	}

	unary("abs", math.Abs)
	unary("sqrt", math.Sqrt)
	unary("sqr", func(x float64) float64 { return x * x })
	unary("exp", math.Exp)
	unary("ln", math.Log)
	unary("log2", math.Log2)
	unary("log10", math.Log10)
	unary("sin", math.Sin)
	unary("cos", math.Cos)
	unary("tan", math.Tan)
	unary("arcsin", math.Asin)
	unary("arccos", math.Acos)
	unary("arctan", math.Atan)
	unary("floor", math.Floor)
	unary("ceil", math.Ceil)
	unary("frac", func(x float64) float64 { return x - math.Trunc(x) })
	unary("degtorad", func(x float64) float64 { return x * math.Pi / 180 })
	unary("radtodeg", func(x float64) float64 { return x * 180 / math.Pi })
	unary("sign", func(x float64) float64 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		default:
			return 0
		}
	})
	// round halves to even, as the original runner does
	unary("round", math.RoundToEven)

	g.Register("arctan2", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		y, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		x, err := argReal(args, 1)
		if err != nil {
			return Undefined, err
		}
		return Real(math.Atan2(y, x)), nil
	})

	g.Register("power", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		n, err := argReal(args, 1)
		if err != nil {
			return Undefined, err
		}
		return Real(math.Pow(x, n)), nil
	})

	g.Register("min", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		if len(args) == 0 {
			return Real(0), nil
		}
		best, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		for i := 1; i < len(args); i++ {
			x, err := argReal(args, i)
			if err != nil {
				return Undefined, err
			}
			best = math.Min(best, x)
		}
		return Real(best), nil
	})

	g.Register("max", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		if len(args) == 0 {
			return Real(0), nil
		}
		best, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		for i := 1; i < len(args); i++ {
			x, err := argReal(args, i)
			if err != nil {
				return Undefined, err
			}
			best = math.Max(best, x)
		}
		return Real(best), nil
	})

	g.Register("clamp", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		lo, err := argReal(args, 1)
		if err != nil {
			return Undefined, err
		}
		hi, err := argReal(args, 2)
		if err != nil {
			return Undefined, err
		}
		return Real(math.Min(math.Max(x, lo), hi)), nil
	})

	g.Register("lerp", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		a, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		b, err := argReal(args, 1)
		if err != nil {
			return Undefined, err
		}
		t, err := argReal(args, 2)
		if err != nil {
			return Undefined, err
		}
		return Real(a + (b-a)*t), nil
	})

	g.Register("random", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		return Real(g.rng.real(x)), nil
	})

	g.Register("random_range", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		lo, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		hi, err := argReal(args, 1)
		if err != nil {
			return Undefined, err
		}
		return Real(lo + g.rng.real(hi-lo)), nil
	})

	g.Register("irandom", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		n, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		return Real(float64(g.rng.intn(int64(n)))), nil
	})

	g.Register("irandom_range", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		lo, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		hi, err := argReal(args, 1)
		if err != nil {
			return Undefined, err
		}
		return Real(lo + float64(g.rng.intn(int64(hi-lo)))), nil
	})

	g.Register("random_set_seed", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		g.rng.setSeed(int32(s))
		return Real(0), nil
	})

	g.Register("random_get_seed", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		return Real(float64(g.rng.seed)), nil
	})

	// randomize must stay deterministic for replays; it reseeds from the
	// frame counter instead of the clock.
	g.Register("randomize", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		g.rng.setSeed(int32(g.frame)*-1640531535 + 1)
		return Real(0), nil
	})

	g.Register("choose", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		if len(args) == 0 {
			return Undefined, nil
		}
		return args[g.rng.intn(int64(len(args)-1))], nil
	})

	g.Register("point_distance", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x1, _ := argReal(args, 0)
		y1, _ := argReal(args, 1)
		x2, _ := argReal(args, 2)
		y2, err := argReal(args, 3)
		if err != nil {
			return Undefined, err
		}
		return Real(math.Hypot(x2-x1, y2-y1)), nil
	})

	g.Register("point_direction", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x1, _ := argReal(args, 0)
		y1, _ := argReal(args, 1)
		x2, _ := argReal(args, 2)
		y2, err := argReal(args, 3)
		if err != nil {
			return Undefined, err
		}
		return Real(math.Mod(math.Atan2(y1-y2, x2-x1)*180/math.Pi+360, 360)), nil
	})

	g.Register("lengthdir_x", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		l, _ := argReal(args, 0)
		d, err := argReal(args, 1)
		if err != nil {
			return Undefined, err
		}
		return Real(l * math.Cos(d*math.Pi/180)), nil
	})

	g.Register("lengthdir_y", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		l, _ := argReal(args, 0)
		d, err := argReal(args, 1)
		if err != nil {
			return Undefined, err
		}
		return Real(-l * math.Sin(d*math.Pi/180)), nil
	})
}
