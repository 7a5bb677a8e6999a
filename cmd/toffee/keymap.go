package main

import (
	"github.com/veandco/go-sdl2/sdl"

	"github.com/toffee-rt/toffee/gms"
)

// scancodeMapping maps SDL scancodes to the virtual key codes the game's
// scripts test against.
var scancodeMapping = map[sdl.Scancode]int{
	sdl.SCANCODE_BACKSPACE: gms.VkBackspace,
	sdl.SCANCODE_TAB:       gms.VkTab,
	sdl.SCANCODE_RETURN:    gms.VkEnter,
	sdl.SCANCODE_LSHIFT:    gms.VkShift,
	sdl.SCANCODE_RSHIFT:    gms.VkShift,
	sdl.SCANCODE_LCTRL:     gms.VkControl,
	sdl.SCANCODE_RCTRL:     gms.VkControl,
	sdl.SCANCODE_LALT:      gms.VkAlt,
	sdl.SCANCODE_RALT:      gms.VkAlt,
	sdl.SCANCODE_ESCAPE:    gms.VkEscape,
	sdl.SCANCODE_SPACE:     gms.VkSpace,
	sdl.SCANCODE_PAGEUP:    gms.VkPageUp,
	sdl.SCANCODE_PAGEDOWN:  gms.VkPageDown,
	sdl.SCANCODE_END:       gms.VkEnd,
	sdl.SCANCODE_HOME:      gms.VkHome,
	sdl.SCANCODE_LEFT:      gms.VkLeft,
	sdl.SCANCODE_UP:        gms.VkUp,
	sdl.SCANCODE_RIGHT:     gms.VkRight,
	sdl.SCANCODE_DOWN:      gms.VkDown,
	sdl.SCANCODE_INSERT:    gms.VkInsert,
	sdl.SCANCODE_DELETE:    gms.VkDelete,
}

func vkFromScancode(sc sdl.Scancode) (int, bool) {
	if vk, ok := scancodeMapping[sc]; ok {
		return vk, true
	}
	switch {
	case sc >= sdl.SCANCODE_A && sc <= sdl.SCANCODE_Z:
		return 'A' + int(sc-sdl.SCANCODE_A), true
	case sc >= sdl.SCANCODE_1 && sc <= sdl.SCANCODE_9:
		return '1' + int(sc-sdl.SCANCODE_1), true
	case sc == sdl.SCANCODE_0:
		return '0', true
	case sc >= sdl.SCANCODE_F1 && sc <= sdl.SCANCODE_F12:
		return gms.VkF1 + int(sc-sdl.SCANCODE_F1), true
	}
	return 0, false
}
