package gms

import (
	"math"
)

// InstanceID is a stable handle for a live instance. IDs are assigned
// monotonically from firstInstanceID and never reused within a run.
type InstanceID uint32

const firstInstanceID InstanceID = 100001

// Special instance designators usable wherever an id is expected.
const (
	instSelf   = -1
	instOther  = -2
	instAll    = -3
	instNoone  = -4
	instGlobal = -5
)

const alarmCount = 12

// Instance is one live entity derived from an Object.
type Instance struct {
	ID     InstanceID
	Object int

	X, Y                 float64
	XPrevious, YPrevious float64
	XStart, YStart       float64

	SpriteIndex int
	ImageIndex  float64
	ImageSpeed  float64
	ImageXScale float64
	ImageYScale float64
	ImageAngle  float64
	ImageBlend  uint32 // BGR color, white = 0xFFFFFF
	ImageAlpha  float64

	Depth      float64
	Direction  float64
	Speed      float64
	HSpeed     float64
	VSpeed     float64
	Gravity    float64
	GravityDir float64
	Friction   float64

	Solid      bool
	Visible    bool
	Persistent bool

	Alarms [alarmCount]float64 // -1 = inactive

	PathIndex     int
	PathPosition  float64
	PathSpeed     float64
	PathEndAction int
	pathStartX    float64
	pathStartY    float64

	// vars is the per-instance bag for everything that is not a built-in
	// property, keyed by VARI slot id.
	vars map[uint32]Value

	destroyed bool
	created   bool // Create event has run
}

func newInstance(id InstanceID, d *Data, object int) *Instance {
	obj := &d.Objects[object]
	inst := &Instance{
		ID:          id,
		Object:      object,
		SpriteIndex: obj.Sprite,
		ImageSpeed:  1,
		ImageXScale: 1,
		ImageYScale: 1,
		ImageBlend:  0xFFFFFF,
		ImageAlpha:  1,
		Depth:       float64(obj.Depth),
		Solid:       obj.Solid,
		Visible:     obj.Visible,
		Persistent:  obj.Persistent,
		PathIndex:   -1,
		vars:        make(map[uint32]Value),
	}
	for i := range inst.Alarms {
		inst.Alarms[i] = -1
	}
	return inst
}

// setMotionPolar keeps hspeed/vspeed in sync when speed or direction change.
func (in *Instance) setMotionPolar(speed, dir float64) {
	in.Speed = speed
	in.Direction = dir
	rad := dir * math.Pi / 180
	in.HSpeed = speed * math.Cos(rad)
	in.VSpeed = -speed * math.Sin(rad)
}

// setMotionCartesian keeps speed/direction in sync when hspeed/vspeed change.
func (in *Instance) setMotionCartesian(h, v float64) {
	in.HSpeed = h
	in.VSpeed = v
	in.Speed = math.Hypot(h, v)
	if h != 0 || v != 0 {
		in.Direction = math.Mod(math.Atan2(-v, h)*180/math.Pi+360, 360)
	}
}

// integrate applies one step of motion: gravity and friction adjust the
// velocity, then position advances by it.
func (in *Instance) integrate() {
	in.XPrevious = in.X
	in.YPrevious = in.Y

	if in.Gravity != 0 {
		rad := in.GravityDir * math.Pi / 180
		in.setMotionCartesian(
			in.HSpeed+in.Gravity*math.Cos(rad),
			in.VSpeed-in.Gravity*math.Sin(rad),
		)
	}
	if in.Friction != 0 && in.Speed != 0 {
		s := in.Speed - in.Friction
		if s < 0 {
			s = 0
		}
		in.setMotionPolar(s, in.Direction)
	}

	in.X += in.HSpeed
	in.Y += in.VSpeed
}

// frame returns the sprite frame selected by image_index, wrapping modulo
// the frame count; negative indices wrap positively.
func (in *Instance) frame(d *Data) int {
	if in.SpriteIndex < 0 || in.SpriteIndex >= len(d.Sprites) {
		return -1
	}
	n := len(d.Sprites[in.SpriteIndex].Frames)
	if n == 0 {
		return -1
	}
	f := int(math.Floor(in.ImageIndex)) % n
	if f < 0 {
		f += n
	}
	return f
}

// bbox returns the collision bounding box in room coordinates, derived from
// the sprite margins scaled around the origin.
func (in *Instance) bbox(d *Data) (left, top, right, bottom float64, ok bool) {
	si := in.SpriteIndex
	if si < 0 || si >= len(d.Sprites) {
		return 0, 0, 0, 0, false
	}
	s := &d.Sprites[si]
	l := float64(s.MarginLeft)
	r := float64(s.MarginRight) + 1
	t := float64(s.MarginTop)
	b := float64(s.MarginBot) + 1
	ox := float64(s.OriginX)
	oy := float64(s.OriginY)

	x1 := in.X + (l-ox)*in.ImageXScale
	x2 := in.X + (r-ox)*in.ImageXScale
	y1 := in.Y + (t-oy)*in.ImageYScale
	y2 := in.Y + (b-oy)*in.ImageYScale
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return x1, y1, x2, y2, true
}

func bboxIntersect(al, at, ar, ab, bl, bt, br, bb float64) bool {
	return al < br && bl < ar && at < bb && bt < ab
}

// Var reads a slot from the instance bag; absent slots read as Undefined.
func (in *Instance) Var(slot uint32) Value {
	return in.vars[slot]
}

// SetVar writes a slot in the instance bag.
func (in *Instance) SetVar(slot uint32, v Value) {
	in.vars[slot] = v
}

// builtinVar is one intercepted built-in instance property. Reads and writes
// go through these accessors before falling back to the slot bag.
type builtinVar struct {
	get func(g *Game, in *Instance) Value
	set func(g *Game, in *Instance, v Value) error
	// indexed accessors for array-style builtins (alarm[k])
	getIdx func(g *Game, in *Instance, i int32) Value
	setIdx func(g *Game, in *Instance, i int32, v Value) error
}

func roVar(name string) func(*Game, *Instance, Value) error {
	return func(g *Game, in *Instance, v Value) error {
		g.warnf("var:"+name, "write to read-only variable %s ignored", name)
		return nil
	}
}

func realVar(get func(*Instance) *float64) builtinVar {
	return builtinVar{
		get: func(g *Game, in *Instance) Value { return Real(*get(in)) },
		set: func(g *Game, in *Instance, v Value) error {
			r, err := v.ToReal()
			if err != nil {
				return err
			}
			*get(in) = r
			return nil
		},
	}
}

func boolVar(get func(*Instance) *bool) builtinVar {
	return builtinVar{
		get: func(g *Game, in *Instance) Value { return Bool(*get(in)) },
		set: func(g *Game, in *Instance, v Value) error {
			*get(in) = v.IsTrue()
			return nil
		},
	}
}

// builtinVars is the interception table keyed by variable name. The VM
// resolves VARI slots to these accessors once at load.
var builtinVars = map[string]builtinVar{
	"x":          realVar(func(in *Instance) *float64 { return &in.X }),
	"y":          realVar(func(in *Instance) *float64 { return &in.Y }),
	"xprevious":  realVar(func(in *Instance) *float64 { return &in.XPrevious }),
	"yprevious":  realVar(func(in *Instance) *float64 { return &in.YPrevious }),
	"xstart":     realVar(func(in *Instance) *float64 { return &in.XStart }),
	"ystart":     realVar(func(in *Instance) *float64 { return &in.YStart }),
	"image_index": realVar(func(in *Instance) *float64 { return &in.ImageIndex }),
	"image_speed": realVar(func(in *Instance) *float64 { return &in.ImageSpeed }),
	"image_xscale": realVar(func(in *Instance) *float64 { return &in.ImageXScale }),
	"image_yscale": realVar(func(in *Instance) *float64 { return &in.ImageYScale }),
	"image_angle": realVar(func(in *Instance) *float64 { return &in.ImageAngle }),
	"image_alpha": realVar(func(in *Instance) *float64 { return &in.ImageAlpha }),
	"depth":       realVar(func(in *Instance) *float64 { return &in.Depth }),
	"gravity":     realVar(func(in *Instance) *float64 { return &in.Gravity }),
	"gravity_direction": realVar(func(in *Instance) *float64 { return &in.GravityDir }),
	"friction":    realVar(func(in *Instance) *float64 { return &in.Friction }),
	"path_position": realVar(func(in *Instance) *float64 { return &in.PathPosition }),
	"path_speed":  realVar(func(in *Instance) *float64 { return &in.PathSpeed }),

	"visible":    boolVar(func(in *Instance) *bool { return &in.Visible }),
	"solid":      boolVar(func(in *Instance) *bool { return &in.Solid }),
	"persistent": boolVar(func(in *Instance) *bool { return &in.Persistent }),

	"id": {
		get: func(g *Game, in *Instance) Value { return Real(float64(in.ID)) },
		set: roVar("id"),
	},
	"object_index": {
		get: func(g *Game, in *Instance) Value { return Real(float64(in.Object)) },
		set: roVar("object_index"),
	},
	"sprite_index": {
		get: func(g *Game, in *Instance) Value { return Real(float64(in.SpriteIndex)) },
		set: func(g *Game, in *Instance, v Value) error {
			i, err := v.ToInt()
			if err != nil {
				return err
			}
			in.SpriteIndex = int(i)
			return nil
		},
	},
	"image_blend": {
		get: func(g *Game, in *Instance) Value { return Real(float64(in.ImageBlend)) },
		set: func(g *Game, in *Instance, v Value) error {
			i, err := v.ToReal()
			if err != nil {
				return err
			}
			in.ImageBlend = uint32(int64(i)) & 0xFFFFFF
			return nil
		},
	},
	"image_number": {
		get: func(g *Game, in *Instance) Value {
			if in.SpriteIndex < 0 || in.SpriteIndex >= len(g.data.Sprites) {
				return Real(0)
			}
			return Real(float64(len(g.data.Sprites[in.SpriteIndex].Frames)))
		},
		set: roVar("image_number"),
	},
	"sprite_width": {
		get: func(g *Game, in *Instance) Value {
			if in.SpriteIndex < 0 || in.SpriteIndex >= len(g.data.Sprites) {
				return Real(0)
			}
			return Real(float64(g.data.Sprites[in.SpriteIndex].Width) * math.Abs(in.ImageXScale))
		},
		set: roVar("sprite_width"),
	},
	"sprite_height": {
		get: func(g *Game, in *Instance) Value {
			if in.SpriteIndex < 0 || in.SpriteIndex >= len(g.data.Sprites) {
				return Real(0)
			}
			return Real(float64(g.data.Sprites[in.SpriteIndex].Height) * math.Abs(in.ImageYScale))
		},
		set: roVar("sprite_height"),
	},

	"speed": {
		get: func(g *Game, in *Instance) Value { return Real(in.Speed) },
		set: func(g *Game, in *Instance, v Value) error {
			r, err := v.ToReal()
			if err != nil {
				return err
			}
			in.setMotionPolar(r, in.Direction)
			return nil
		},
	},
	"direction": {
		get: func(g *Game, in *Instance) Value { return Real(in.Direction) },
		set: func(g *Game, in *Instance, v Value) error {
			r, err := v.ToReal()
			if err != nil {
				return err
			}
			in.setMotionPolar(in.Speed, r)
			return nil
		},
	},
	"hspeed": {
		get: func(g *Game, in *Instance) Value { return Real(in.HSpeed) },
		set: func(g *Game, in *Instance, v Value) error {
			r, err := v.ToReal()
			if err != nil {
				return err
			}
			in.setMotionCartesian(r, in.VSpeed)
			return nil
		},
	},
	"vspeed": {
		get: func(g *Game, in *Instance) Value { return Real(in.VSpeed) },
		set: func(g *Game, in *Instance, v Value) error {
			r, err := v.ToReal()
			if err != nil {
				return err
			}
			in.setMotionCartesian(in.HSpeed, r)
			return nil
		},
	},

	"alarm": {
		getIdx: func(g *Game, in *Instance, i int32) Value {
			if i < 0 || i >= alarmCount {
				return Real(-1)
			}
			return Real(in.Alarms[i])
		},
		setIdx: func(g *Game, in *Instance, i int32, v Value) error {
			if i < 0 || i >= alarmCount {
				return nil
			}
			r, err := v.ToReal()
			if err != nil {
				return err
			}
			in.Alarms[i] = math.Floor(r)
			return nil
		},
	},

	"bbox_left":   bboxVar(0),
	"bbox_top":    bboxVar(1),
	"bbox_right":  bboxVar(2),
	"bbox_bottom": bboxVar(3),

	"path_index": {
		get: func(g *Game, in *Instance) Value { return Real(float64(in.PathIndex)) },
		set: roVar("path_index"),
	},
}

func bboxVar(which int) builtinVar {
	return builtinVar{
		get: func(g *Game, in *Instance) Value {
			l, t, r, b, ok := in.bbox(g.data)
			if !ok {
				return Real(in.X)
			}
			switch which {
			case 0:
				return Real(l)
			case 1:
				return Real(t)
			case 2:
				return Real(r - 1)
			default:
				return Real(b - 1)
			}
		},
		set: roVar("bbox"),
	}
}
