package main

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/toffee-rt/toffee/gms"
)

// view owns the SDL window and the logical backbuffer. The game renders at
// the backbuffer's native size; paint scales it to the window by the largest
// integer multiple that fits and letterboxes the rest.
type view struct {
	window *sdl.Window
	rend   *sdl.Renderer

	target     *sdl.Texture
	logW, logH int32

	fullscreen bool

	sr *sdlRenderer

	freeFuncs []func() error
}

func newView(title string, data *gms.Data) (*view, error) {
	v := &view{}

	w, h := int32(data.WindowWidth), int32(data.WindowHeight)
	if w <= 0 || h <= 0 {
		w, h = 640, 480
	}

	window, rend, err := sdl.CreateWindowAndRenderer(w, h, sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE|sdl.WINDOW_ALLOW_HIGHDPI)
	if err != nil {
		return nil, fmt.Errorf("unable to create window: %s", err)
	}
	v.deferFn(window.Destroy)
	v.deferFn(rend.Destroy)
	window.SetTitle(title)

	if err := rend.SetDrawBlendMode(sdl.BLENDMODE_BLEND); err != nil {
		return nil, fmt.Errorf("unable to set blend mode: %s", err)
	}

	v.window = window
	v.rend = rend
	v.sr = &sdlRenderer{view: v, data: data, pages: make(map[int]*sdl.Texture)}
	return v, nil
}

func (v *view) renderer() gms.Renderer { return v.sr }

func (v *view) deferFn(f func() error) {
	v.freeFuncs = append(v.freeFuncs, f)
}

func (v *view) free() error {
	var err error
	for i := len(v.freeFuncs) - 1; i >= 0; i-- {
		if e := v.freeFuncs[i](); e != nil {
			err = e
		}
	}
	return err
}

func (v *view) setTitle(t string) { v.window.SetTitle(t) }

// ensureTarget (re)creates the backbuffer render target at the logical size.
func (v *view) ensureTarget(w, h int32) error {
	if v.target != nil && v.logW == w && v.logH == h {
		return nil
	}
	if v.target != nil {
		v.target.Destroy()
		v.target = nil
	}
	t, err := v.rend.CreateTexture(sdl.PIXELFORMAT_ABGR8888, sdl.TEXTUREACCESS_TARGET, w, h)
	if err != nil {
		return fmt.Errorf("unable to create backbuffer: %s", err)
	}
	v.target = t
	v.logW, v.logH = w, h
	return nil
}

// blitRect computes the letterboxed destination: the largest integer
// multiple of the logical size that fits the output. HiDPI outputs report
// the framebuffer size, not the window size.
func (v *view) blitRect() sdl.Rect {
	outW, outH, err := v.rend.GetOutputSize()
	if err != nil || outW == 0 || outH == 0 {
		return sdl.Rect{W: v.logW, H: v.logH}
	}
	scale := outW / v.logW
	if s := outH / v.logH; s < scale {
		scale = s
	}
	if scale < 1 {
		scale = 1
	}
	w := v.logW * scale
	h := v.logH * scale
	return sdl.Rect{X: (outW - w) / 2, Y: (outH - h) / 2, W: w, H: h}
}

// paint presents the finished backbuffer.
func (v *view) paint() error {
	if v.target == nil {
		return nil
	}
	if err := v.rend.SetRenderTarget(nil); err != nil {
		return err
	}
	v.rend.SetDrawColor(0, 0, 0, 255)
	v.rend.Clear()
	rect := v.blitRect()
	if err := v.rend.Copy(v.target, nil, &rect); err != nil {
		return err
	}
	v.rend.Present()
	return nil
}

// repaint re-presents the last frame, used while paused.
func (v *view) repaint() {
	v.paint()
}

func (v *view) handle(evt sdl.Event) (bool, error) {
	key, ok := evt.(*sdl.KeyboardEvent)
	if !ok {
		return false, nil
	}
	if key.Type == sdl.KEYUP && key.Keysym.Sym == sdl.K_F11 {
		if v.fullscreen {
			v.window.SetFullscreen(0)
		} else {
			v.window.SetFullscreen(sdl.WINDOW_FULLSCREEN_DESKTOP)
		}
		v.fullscreen = !v.fullscreen
		return true, nil
	}
	return false, nil
}
