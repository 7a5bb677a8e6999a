package gms

// globalVar is an intercepted built-in global (room, room_speed, score, …),
// resolved by name the same way instance properties are.
type globalVar struct {
	get    func(g *Game) Value
	set    func(g *Game, v Value) error
	getIdx func(g *Game, i int32) Value
	setIdx func(g *Game, i int32, v Value) error
}

func roGlobal(name string) func(*Game, Value) error {
	return func(g *Game, v Value) error {
		g.warnf("global:"+name, "write to read-only variable %s ignored", name)
		return nil
	}
}

func realGlobal(get func(g *Game) *float64) globalVar {
	return globalVar{
		get: func(g *Game) Value { return Real(*get(g)) },
		set: func(g *Game, v Value) error {
			r, err := v.ToReal()
			if err != nil {
				return err
			}
			*get(g) = r
			return nil
		},
	}
}

var globalVars = map[string]globalVar{
	"room": {
		get: func(g *Game) Value { return Real(float64(g.room)) },
		set: func(g *Game, v Value) error {
			r, err := v.ToInt()
			if err != nil {
				return err
			}
			return g.GotoRoom(int(r))
		},
	},
	"room_first": {
		get: func(g *Game) Value {
			if len(g.data.RoomOrder) > 0 {
				return Real(float64(g.data.RoomOrder[0]))
			}
			return Real(0)
		},
		set: roGlobal("room_first"),
	},
	"room_last": {
		get: func(g *Game) Value {
			if n := len(g.data.RoomOrder); n > 0 {
				return Real(float64(g.data.RoomOrder[n-1]))
			}
			return Real(float64(len(g.data.Rooms) - 1))
		},
		set: roGlobal("room_last"),
	},
	"room_speed": {
		get: func(g *Game) Value { return Real(float64(g.RoomSpeed())) },
		set: func(g *Game, v Value) error {
			r, err := v.ToInt()
			if err != nil {
				return err
			}
			if r > 0 {
				g.roomSpeed = int(r)
			}
			return nil
		},
	},
	"room_width": {
		get: func(g *Game) Value { return Real(float64(g.data.Rooms[g.room].Width)) },
		set: roGlobal("room_width"),
	},
	"room_height": {
		get: func(g *Game) Value { return Real(float64(g.data.Rooms[g.room].Height)) },
		set: roGlobal("room_height"),
	},
	"room_caption": {
		get: func(g *Game) Value { return Str(g.data.Rooms[g.room].Caption) },
		set: func(g *Game, v Value) error { return nil },
	},
	"room_persistent": {
		get: func(g *Game) Value { return Bool(g.data.Rooms[g.room].Persistent) },
		set: func(g *Game, v Value) error { return nil },
	},

	"score":  realGlobal(func(g *Game) *float64 { return &g.score }),
	"health": realGlobal(func(g *Game) *float64 { return &g.health }),
	"lives":  realGlobal(func(g *Game) *float64 { return &g.lives }),

	"fps": {
		get: func(g *Game) Value { return Real(float64(g.RoomSpeed())) },
		set: roGlobal("fps"),
	},
	"current_time": {
		// frame-derived so replays stay deterministic
		get: func(g *Game) Value {
			return Real(float64(g.frame) * 1000 / float64(g.RoomSpeed()))
		},
		set: roGlobal("current_time"),
	},
	"instance_count": {
		get: func(g *Game) Value { return Real(float64(len(g.liveIDs(-1)))) },
		set: roGlobal("instance_count"),
	},

	"view_enabled": {
		getIdx: func(g *Game, i int32) Value { return Bool(g.viewField(i) != nil && g.viewField(i).Enabled) },
		setIdx: func(g *Game, i int32, v Value) error {
			if view := g.viewField(i); view != nil {
				view.Enabled = v.IsTrue()
			}
			return nil
		},
	},
	"view_xview": viewVar(func(v *RoomView) *int { return &v.ViewX }),
	"view_yview": viewVar(func(v *RoomView) *int { return &v.ViewY }),
	"view_wview": viewVar(func(v *RoomView) *int { return &v.ViewW }),
	"view_hview": viewVar(func(v *RoomView) *int { return &v.ViewH }),
	"view_xport": viewVar(func(v *RoomView) *int { return &v.PortX }),
	"view_yport": viewVar(func(v *RoomView) *int { return &v.PortY }),
	"view_wport": viewVar(func(v *RoomView) *int { return &v.PortW }),
	"view_hport": viewVar(func(v *RoomView) *int { return &v.PortH }),
}

// viewField returns the addressable view struct of the current room, or nil.
func (g *Game) viewField(i int32) *RoomView {
	if g.room < 0 {
		return nil
	}
	r := &g.data.Rooms[g.room]
	if i < 0 || int(i) >= len(r.Views) {
		return nil
	}
	return &r.Views[i]
}

func viewVar(field func(*RoomView) *int) globalVar {
	return globalVar{
		getIdx: func(g *Game, i int32) Value {
			v := g.viewField(i)
			if v == nil {
				return Real(0)
			}
			return Real(float64(*field(v)))
		},
		setIdx: func(g *Game, i int32, val Value) error {
			v := g.viewField(i)
			if v == nil {
				return nil
			}
			r, err := val.ToReal()
			if err != nil {
				return err
			}
			*field(v) = int(r)
			return nil
		},
	}
}
