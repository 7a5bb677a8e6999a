package gms

import (
	"fmt"
	"log"
)

func registerRuntimeBuiltins(g *Game) {
	// events and scripts
	g.Register("event_inherited", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		return Real(0), g.eventInherited()
	})

	g.Register("event_perform", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		kind, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		subtype, err := argInt(args, 1)
		if err != nil {
			return Undefined, err
		}
		return Real(0), g.fireEvent(self, EventKey{Kind: kind, Subtype: subtype}, other)
	})

	g.Register("event_user", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		n, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		return Real(0), g.fireEvent(self, EventKey{Kind: EvOther, Subtype: EvOtherUser0 + n}, other)
	})

	g.Register("script_execute", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		si, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		if si < 0 || si >= len(g.data.Scripts) {
			return Undefined, fmt.Errorf("gms: script_execute with bad script %d", si)
		}
		return g.vm.run(g.data.Scripts[si].Code, self, other, args[1:])
	})

	// rooms
	g.Register("room_goto", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		r, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		return Real(0), g.GotoRoom(r)
	})

	g.Register("room_goto_next", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		next := g.NextRoom()
		if next < 0 {
			return Undefined, fmt.Errorf("gms: room_goto_next past the last room")
		}
		return Real(0), g.GotoRoom(next)
	})

	g.Register("room_goto_previous", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		prev := g.PreviousRoom()
		if prev < 0 {
			return Undefined, fmt.Errorf("gms: room_goto_previous before the first room")
		}
		return Real(0), g.GotoRoom(prev)
	})

	g.Register("room_restart", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		return Real(0), g.GotoRoom(g.room)
	})

	g.Register("room_get_name", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		r, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		if r < 0 || r >= len(g.data.Rooms) {
			return Str(""), nil
		}
		return Str(g.data.Rooms[r].Name), nil
	})

	// keyboard
	g.Register("keyboard_check", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		k, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		return Bool(g.Keyboard.Held(k)), nil
	})

	g.Register("keyboard_check_pressed", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		k, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		return Bool(g.Keyboard.Pressed(k)), nil
	})

	g.Register("keyboard_check_released", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		k, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		return Bool(g.Keyboard.Released(k)), nil
	})

	g.Register("keyboard_check_direct", g.builtins["keyboard_check"])

	// system
	g.Register("game_end", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		g.endRequested = true
		return Real(0), nil
	})

	g.Register("game_restart", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		first := -1
		if len(g.data.RoomOrder) > 0 {
			first = g.data.RoomOrder[0]
		} else if len(g.data.Rooms) > 0 {
			first = 0
		}
		if first < 0 {
			return Real(0), nil
		}
		g.globals = make(map[uint32]Value)
		return Real(0), g.GotoRoom(first)
	})

	g.Register("show_debug_message", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return Undefined, err
		}
		log.Printf("gms: %s", s)
		return Real(0), nil
	})

	g.Register("show_message", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		s, err := argStr(args, 0)
		if err != nil {
			return Undefined, err
		}
		log.Printf("gms: message: %s", s)
		return Real(0), nil
	})

	// file, INI and audio surfaces are stubs: side-effect free, safe
	// defaults, one warning per site
	for _, name := range []string{
		"file_delete", "file_rename", "file_copy",
		"ini_write_real", "ini_write_string",
		"ini_section_delete", "ini_key_delete",
		"audio_stop_sound", "audio_stop_all", "audio_pause_sound",
		"audio_resume_sound", "audio_sound_gain", "audio_sound_pitch",
		"sound_stop", "sound_stop_all", "sound_volume",
		"caster_stop", "caster_free", "caster_pause", "caster_resume",
		"caster_set_volume", "caster_loop",
	} {
		g.stub(name, Real(0))
	}
	for _, name := range []string{
		"file_exists", "ini_open", "ini_close",
		"audio_is_playing", "sound_isplaying", "caster_is_playing",
	} {
		g.stub(name, Bool(false))
	}
	for _, name := range []string{
		"audio_play_sound", "sound_play", "sound_loop", "caster_load",
		"caster_play",
	} {
		g.stub(name, Real(-1))
	}
	g.stub("ini_read_real", Real(0))
	g.stub("ini_read_string", Str(""))

	g.Register("window_set_caption", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		return Real(0), nil
	})
	g.stub("window_set_fullscreen", Real(0))
	g.stub("display_get_width", Real(1920))
	g.stub("display_get_height", Real(1080))
}
