package gui

import (
	"github.com/veandco/go-sdl2/sdl"
)

// IsKeyboardEvent matches an SDL event against a type, repeat count and
// keysym. A repeat of -1 matches any repeat state.
func IsKeyboardEvent(e sdl.Event, typ uint32, repeat int, sym sdl.Keycode) (*sdl.KeyboardEvent, bool) {
	evt, ok := e.(*sdl.KeyboardEvent)
	if !ok {
		return nil, false
	}
	if evt.Type != typ {
		return evt, false
	}
	if evt.Keysym.Sym != sym {
		return evt, false
	}
	if repeat != -1 && evt.Repeat != uint8(repeat) {
		return evt, false
	}
	return evt, true
}

// IsKeyPress reports an initial key-down of sym, ignoring auto-repeat.
func IsKeyPress(evt sdl.Event, sym sdl.Keycode) bool {
	_, v := IsKeyboardEvent(evt, sdl.KEYDOWN, 0, sym)
	return v
}

// IsKeyDown reports any key-down of sym, auto-repeat included.
func IsKeyDown(evt sdl.Event, sym sdl.Keycode) bool {
	_, v := IsKeyboardEvent(evt, sdl.KEYDOWN, -1, sym)
	return v
}

// IsKeyUp reports a key-up of sym.
func IsKeyUp(evt sdl.Event, sym sdl.Keycode) bool {
	_, v := IsKeyboardEvent(evt, sdl.KEYUP, 0, sym)
	return v
}
