package gms

import (
	"fmt"
	"math"
)

func cosDeg(d float64) float64 { return math.Cos(d * math.Pi / 180) }
func sinDeg(d float64) float64 { return math.Sin(d * math.Pi / 180) }

func pointDirection(x1, y1, x2, y2 float64) float64 {
	return math.Mod(math.Atan2(y1-y2, x2-x1)*180/math.Pi+360, 360)
}

func registerInstanceBuiltins(g *Game) {
	g.Register("instance_create", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		y, err := argReal(args, 1)
		if err != nil {
			return Undefined, err
		}
		obj, err := argInt(args, 2)
		if err != nil {
			return Undefined, err
		}
		inst, err := g.CreateInstance(obj, x, y)
		if err != nil {
			return Undefined, err
		}
		return Real(float64(inst.ID)), nil
	})

	// persistent instances survive instance_destroy, matching the original
	// runner's carry-over list
	g.Register("instance_destroy", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		if inst := g.Instance(self); inst != nil && !inst.Persistent {
			g.DestroyInstance(self)
		}
		return Real(0), nil
	})

	g.Register("instance_exists", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		n, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		return Bool(g.resolveExists(int64(n))), nil
	})

	g.Register("instance_number", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		obj, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		return Real(float64(len(g.liveIDs(obj)))), nil
	})

	g.Register("instance_find", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		obj, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		n, err := argInt(args, 1)
		if err != nil {
			return Undefined, err
		}
		ids := g.liveIDs(obj)
		if n < 0 || n >= len(ids) {
			return Real(instNoone), nil
		}
		return Real(float64(ids[n])), nil
	})

	g.Register("instance_position", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x, _ := argReal(args, 0)
		y, _ := argReal(args, 1)
		obj, err := argInt(args, 2)
		if err != nil {
			return Undefined, err
		}
		for _, id := range g.liveIDs(obj) {
			inst := g.instances[id]
			l, t, r, b, ok := inst.bbox(g.data)
			if ok && x >= l && x < r && y >= t && y < b {
				return Real(float64(id)), nil
			}
		}
		return Real(instNoone), nil
	})

	g.Register("instance_place", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x, _ := argReal(args, 0)
		y, _ := argReal(args, 1)
		obj, err := argInt(args, 2)
		if err != nil {
			return Undefined, err
		}
		id := g.placeMeeting(self, x, y, obj)
		return Real(float64(id)), nil
	})

	g.Register("place_meeting", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x, _ := argReal(args, 0)
		y, _ := argReal(args, 1)
		obj, err := argInt(args, 2)
		if err != nil {
			return Undefined, err
		}
		return Bool(g.placeMeeting(self, x, y, obj) != instNoone), nil
	})

	g.Register("position_meeting", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x, _ := argReal(args, 0)
		y, _ := argReal(args, 1)
		obj, err := argInt(args, 2)
		if err != nil {
			return Undefined, err
		}
		for _, id := range g.liveIDs(obj) {
			inst := g.instances[id]
			l, t, r, b, ok := inst.bbox(g.data)
			if ok && x >= l && x < r && y >= t && y < b {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	})

	g.Register("place_free", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x, _ := argReal(args, 0)
		y, err := argReal(args, 1)
		if err != nil {
			return Undefined, err
		}
		return Bool(!g.placeSolid(self, x, y)), nil
	})

	g.Register("distance_to_object", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		obj, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		me := g.Instance(self)
		if me == nil {
			return Real(-1), nil
		}
		best := -1.0
		for _, id := range g.liveIDs(obj) {
			if id == self {
				continue
			}
			d := bboxDistance(me, g.instances[id], g.data)
			if best < 0 || d < best {
				best = d
			}
		}
		return Real(best), nil
	})

	g.Register("motion_set", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		dir, _ := argReal(args, 0)
		speed, err := argReal(args, 1)
		if err != nil {
			return Undefined, err
		}
		if inst := g.Instance(self); inst != nil {
			inst.setMotionPolar(speed, dir)
		}
		return Real(0), nil
	})

	g.Register("motion_add", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		dir, _ := argReal(args, 0)
		speed, err := argReal(args, 1)
		if err != nil {
			return Undefined, err
		}
		if inst := g.Instance(self); inst != nil {
			inst.setMotionCartesian(inst.HSpeed+speed*cosDeg(dir), inst.VSpeed-speed*sinDeg(dir))
		}
		return Real(0), nil
	})

	g.Register("move_towards_point", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x, _ := argReal(args, 0)
		y, _ := argReal(args, 1)
		speed, err := argReal(args, 2)
		if err != nil {
			return Undefined, err
		}
		if inst := g.Instance(self); inst != nil {
			dir := pointDirection(inst.X, inst.Y, x, y)
			inst.setMotionPolar(speed, dir)
		}
		return Real(0), nil
	})

	// paths
	g.Register("path_start", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		path, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		speed, err := argReal(args, 1)
		if err != nil {
			return Undefined, err
		}
		endAction, err := argInt(args, 2)
		if err != nil {
			return Undefined, err
		}
		absolute := arg(args, 3).IsTrue()
		inst := g.Instance(self)
		if inst == nil {
			return Real(0), nil
		}
		if path < 0 || path >= len(g.data.Paths) {
			return Undefined, fmt.Errorf("gms: path_start with bad path %d", path)
		}
		inst.PathIndex = path
		inst.PathPosition = 0
		inst.PathSpeed = speed
		inst.PathEndAction = endAction
		if absolute && len(g.data.Paths[path].Points) > 0 {
			inst.pathStartX = g.data.Paths[path].Points[0].X
			inst.pathStartY = g.data.Paths[path].Points[0].Y
		} else {
			inst.pathStartX = inst.X
			inst.pathStartY = inst.Y
		}
		return Real(0), nil
	})

	g.Register("path_end", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		if inst := g.Instance(self); inst != nil {
			inst.PathIndex = -1
		}
		return Real(0), nil
	})

	// drag-and-drop actions compile to these
	g.Register("action_create_object", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		obj, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		x, _ := argReal(args, 1)
		y, err := argReal(args, 2)
		if err != nil {
			return Undefined, err
		}
		inst, err := g.CreateInstance(obj, x, y)
		if err != nil {
			return Undefined, err
		}
		return Real(float64(inst.ID)), nil
	})

	g.Register("action_kill_object", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		g.DestroyInstance(self)
		return Real(0), nil
	})

	g.Register("action_move_to", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x, _ := argReal(args, 0)
		y, err := argReal(args, 1)
		if err != nil {
			return Undefined, err
		}
		if inst := g.Instance(self); inst != nil {
			inst.X, inst.Y = x, y
		}
		return Real(0), nil
	})

	g.Register("object_get_name", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		obj, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		if obj < 0 || obj >= len(g.data.Objects) {
			return Str(""), nil
		}
		return Str(g.data.Objects[obj].Name), nil
	})

	g.Register("object_is_ancestor", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		child, _ := argInt(args, 0)
		anc, err := argInt(args, 1)
		if err != nil {
			return Undefined, err
		}
		if child < 0 || child >= len(g.data.Objects) {
			return Bool(false), nil
		}
		return Bool(anc != child && g.data.IsAncestor(anc, child)), nil
	})

	g.Register("sprite_get_width", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		if s < 0 || s >= len(g.data.Sprites) {
			return Real(0), nil
		}
		return Real(float64(g.data.Sprites[s].Width)), nil
	})

	g.Register("sprite_get_height", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		if s < 0 || s >= len(g.data.Sprites) {
			return Real(0), nil
		}
		return Real(float64(g.data.Sprites[s].Height)), nil
	})

	g.Register("sprite_get_number", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		if s < 0 || s >= len(g.data.Sprites) {
			return Real(0), nil
		}
		return Real(float64(len(g.data.Sprites[s].Frames))), nil
	})
}

// resolveExists answers instance_exists for an id or an object index.
func (g *Game) resolveExists(n int64) bool {
	if n >= int64(firstInstanceID) {
		inst := g.Instance(InstanceID(n))
		return inst != nil && !inst.destroyed
	}
	if n >= 0 && n < int64(len(g.data.Objects)) {
		return g.firstOfObject(int(n)) != nil
	}
	return false
}

// placeMeeting tests self's bbox shifted to (x, y) against instances of
// obj, returning the id of the first hit or instNoone.
func (g *Game) placeMeeting(self InstanceID, x, y float64, obj int) int64 {
	me := g.Instance(self)
	if me == nil {
		return instNoone
	}
	ox, oy := me.X, me.Y
	me.X, me.Y = x, y
	al, at, ar, ab, ok := me.bbox(g.data)
	me.X, me.Y = ox, oy
	if !ok {
		return instNoone
	}
	for _, id := range g.liveIDs(obj) {
		if id == self {
			continue
		}
		bl, bt, br, bb, ok := g.instances[id].bbox(g.data)
		if ok && bboxIntersect(al, at, ar, ab, bl, bt, br, bb) {
			return int64(id)
		}
	}
	return instNoone
}

func (g *Game) placeSolid(self InstanceID, x, y float64) bool {
	me := g.Instance(self)
	if me == nil {
		return false
	}
	ox, oy := me.X, me.Y
	me.X, me.Y = x, y
	al, at, ar, ab, ok := me.bbox(g.data)
	me.X, me.Y = ox, oy
	if !ok {
		return false
	}
	for _, id := range g.liveIDs(-1) {
		if id == self {
			continue
		}
		inst := g.instances[id]
		if !inst.Solid {
			continue
		}
		bl, bt, br, bb, ok := inst.bbox(g.data)
		if ok && bboxIntersect(al, at, ar, ab, bl, bt, br, bb) {
			return true
		}
	}
	return false
}

func bboxDistance(a, b *Instance, d *Data) float64 {
	al, at, ar, ab, ok := a.bbox(d)
	if !ok {
		al, at, ar, ab = a.X, a.Y, a.X, a.Y
	}
	bl, bt, br, bb, ok := b.bbox(d)
	if !ok {
		bl, bt, br, bb = b.X, b.Y, b.X, b.Y
	}
	dx := axisGap(al, ar, bl, br)
	dy := axisGap(at, ab, bt, bb)
	return math.Hypot(dx, dy)
}

func axisGap(a1, a2, b1, b2 float64) float64 {
	switch {
	case a2 < b1:
		return b1 - a2
	case b2 < a1:
		return a1 - b2
	default:
		return 0
	}
}
