package main

import (
	"fmt"
	"log"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/toffee-rt/toffee/gms"
)

// sdlRenderer implements the runtime's renderer contract on an SDL render
// target. Texture pages upload lazily on their first draw.
type sdlRenderer struct {
	view *view
	data *gms.Data

	pages map[int]*sdl.Texture

	cur     gms.View
	hasView bool

	err error
}

func (r *sdlRenderer) fail(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

func (r *sdlRenderer) page(i int) *sdl.Texture {
	if t, ok := r.pages[i]; ok {
		return t
	}
	if i < 0 || i >= len(r.data.Textures) {
		return nil
	}
	p := &r.data.Textures[i]
	t, err := r.view.rend.CreateTexture(sdl.PIXELFORMAT_ABGR8888, sdl.TEXTUREACCESS_STATIC, int32(p.Width), int32(p.Height))
	if err != nil {
		r.fail(fmt.Errorf("unable to upload texture page %d: %s", i, err))
		return nil
	}
	if err := t.Update(nil, p.Pix, p.Width*4); err != nil {
		r.fail(fmt.Errorf("unable to upload texture page %d: %s", i, err))
		t.Destroy()
		return nil
	}
	t.SetBlendMode(sdl.BLENDMODE_BLEND)
	r.pages[i] = t
	return t
}

func (r *sdlRenderer) Begin(width, height int, clear uint32) {
	if err := r.view.ensureTarget(int32(width), int32(height)); err != nil {
		r.fail(err)
		return
	}
	if err := r.view.rend.SetRenderTarget(r.view.target); err != nil {
		r.fail(err)
		return
	}
	r.view.rend.SetDrawColor(byte(clear), byte(clear>>8), byte(clear>>16), 255)
	r.view.rend.Clear()
	r.hasView = false
}

func (r *sdlRenderer) SetView(v gms.View) {
	r.cur = v
	r.hasView = true
	r.view.rend.SetClipRect(&sdl.Rect{
		X: int32(v.PortX), Y: int32(v.PortY),
		W: int32(v.PortW), H: int32(v.PortH),
	})
}

func (r *sdlRenderer) transform(x, y float64) (float64, float64) {
	if !r.hasView {
		return x, y
	}
	sx := float64(r.cur.PortW) / r.cur.SrcW
	sy := float64(r.cur.PortH) / r.cur.SrcH
	return float64(r.cur.PortX) + (x-r.cur.SrcX)*sx, float64(r.cur.PortY) + (y-r.cur.SrcY)*sy
}

func (r *sdlRenderer) viewScale() (float64, float64) {
	if !r.hasView {
		return 1, 1
	}
	return float64(r.cur.PortW) / r.cur.SrcW, float64(r.cur.PortH) / r.cur.SrcH
}

func (r *sdlRenderer) Submit(cmd gms.DrawCmd) {
	switch cmd.Kind {
	case gms.CmdQuad:
		r.quad(cmd)
	case gms.CmdRect:
		r.rect(cmd)
	case gms.CmdLine:
		r.line(cmd)
	}
}

func (r *sdlRenderer) quad(cmd gms.DrawCmd) {
	tex := r.page(cmd.Page)
	if tex == nil {
		return
	}

	sx, sy := cmd.XScale, cmd.YScale
	x0, y0 := cmd.X, cmd.Y
	flip := sdl.FLIP_NONE
	if sx < 0 {
		sx = -sx
		x0 = cmd.X - float64(cmd.SrcW)*sx
		flip |= sdl.FLIP_HORIZONTAL
	}
	if sy < 0 {
		sy = -sy
		y0 = cmd.Y - float64(cmd.SrcH)*sy
		flip |= sdl.FLIP_VERTICAL
	}
	if sx == 0 || sy == 0 {
		return
	}

	vsx, vsy := r.viewScale()
	dx, dy := r.transform(x0, y0)
	dst := sdl.FRect{
		X: float32(dx),
		Y: float32(dy),
		W: float32(float64(cmd.SrcW) * sx * vsx),
		H: float32(float64(cmd.SrcH) * sy * vsy),
	}
	src := sdl.Rect{
		X: int32(cmd.SrcX), Y: int32(cmd.SrcY),
		W: int32(cmd.SrcW), H: int32(cmd.SrcH),
	}

	tex.SetColorMod(byte(cmd.Color), byte(cmd.Color>>8), byte(cmd.Color>>16))
	tex.SetAlphaMod(alphaByte(cmd.Alpha))

	px, py := r.transform(cmd.PivotX, cmd.PivotY)
	center := sdl.FPoint{X: float32(px - dx), Y: float32(py - dy)}

	// SDL rotates clockwise, the runtime's angles are counterclockwise
	if err := r.view.rend.CopyExF(tex, &src, &dst, -cmd.Angle, &center, flip); err != nil {
		r.fail(err)
	}
}

func (r *sdlRenderer) rect(cmd gms.DrawCmd) {
	x1, y1 := r.transform(cmd.X, cmd.Y)
	x2, y2 := r.transform(cmd.X2, cmd.Y2)
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	r.view.rend.SetDrawColor(byte(cmd.Color), byte(cmd.Color>>8), byte(cmd.Color>>16), alphaByte(cmd.Alpha))
	fr := sdl.FRect{X: float32(x1), Y: float32(y1), W: float32(x2 - x1 + 1), H: float32(y2 - y1 + 1)}
	if cmd.Outline {
		r.view.rend.DrawRectF(&fr)
	} else {
		r.view.rend.FillRectF(&fr)
	}
}

func (r *sdlRenderer) line(cmd gms.DrawCmd) {
	x1, y1 := r.transform(cmd.X, cmd.Y)
	x2, y2 := r.transform(cmd.X2, cmd.Y2)
	r.view.rend.SetDrawColor(byte(cmd.Color), byte(cmd.Color>>8), byte(cmd.Color>>16), alphaByte(cmd.Alpha))
	r.view.rend.DrawLineF(float32(x1), float32(y1), float32(x2), float32(y2))
}

func (r *sdlRenderer) Present() error {
	if r.err != nil {
		// rendering errors are not fatal to the simulation
		log.Printf("render: %s", r.err)
		r.err = nil
	}
	r.view.rend.SetClipRect(nil)
	return r.view.paint()
}

func alphaByte(a float64) byte {
	switch {
	case a <= 0:
		return 0
	case a >= 1:
		return 255
	default:
		return byte(a * 255)
	}
}
