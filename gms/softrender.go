package gms

import (
	"image"
	"math"
)

// SoftRenderer rasterizes the command stream into a CPU RGBA buffer. It
// backs headless mode, screenshots, and the renderer tests. Sampling is
// nearest-neighbour, matching the scaled pixel look of the original.
type SoftRenderer struct {
	data *Data

	W, H int
	Pix  []byte // RGBA

	view View
	hasView bool
}

// NewSoftRenderer creates a rasterizer bound to the asset graph's texture
// pages.
func NewSoftRenderer(data *Data) *SoftRenderer {
	return &SoftRenderer{data: data}
}

func (r *SoftRenderer) Begin(width, height int, clear uint32) {
	if r.W != width || r.H != height || r.Pix == nil {
		r.W, r.H = width, height
		r.Pix = make([]byte, width*height*4)
	}
	cr := byte(clear)
	cg := byte(clear >> 8)
	cb := byte(clear >> 16)
	for i := 0; i < len(r.Pix); i += 4 {
		r.Pix[i+0] = cr
		r.Pix[i+1] = cg
		r.Pix[i+2] = cb
		r.Pix[i+3] = 0xFF
	}
	r.hasView = false
}

func (r *SoftRenderer) SetView(v View) {
	r.view = v
	r.hasView = true
}

func (r *SoftRenderer) Present() error { return nil }

// Image returns the backbuffer as an image sharing the pixel storage.
func (r *SoftRenderer) Image() *image.RGBA {
	return &image.RGBA{Pix: r.Pix, Stride: r.W * 4, Rect: image.Rect(0, 0, r.W, r.H)}
}

// At returns the RGBA of one backbuffer pixel.
func (r *SoftRenderer) At(x, y int) (byte, byte, byte, byte) {
	i := (y*r.W + x) * 4
	return r.Pix[i], r.Pix[i+1], r.Pix[i+2], r.Pix[i+3]
}

// room-to-port transform of the current view
func (r *SoftRenderer) transform(x, y float64) (float64, float64) {
	if !r.hasView {
		return x, y
	}
	v := r.view
	sx := float64(v.PortW) / v.SrcW
	sy := float64(v.PortH) / v.SrcH
	return float64(v.PortX) + (x-v.SrcX)*sx, float64(v.PortY) + (y-v.SrcY)*sy
}

func (r *SoftRenderer) viewScale() (float64, float64) {
	if !r.hasView {
		return 1, 1
	}
	return float64(r.view.PortW) / r.view.SrcW, float64(r.view.PortH) / r.view.SrcH
}

func (r *SoftRenderer) Submit(cmd DrawCmd) {
	switch cmd.Kind {
	case CmdQuad:
		r.quad(cmd)
	case CmdRect:
		r.rect(cmd)
	case CmdLine:
		r.line(cmd)
	}
}

func (r *SoftRenderer) blend(x, y int, cr, cg, cb byte, alpha float64) {
	if x < 0 || y < 0 || x >= r.W || y >= r.H {
		return
	}
	if alpha <= 0 {
		return
	}
	if alpha > 1 {
		alpha = 1
	}
	i := (y*r.W + x) * 4
	a := alpha
	r.Pix[i+0] = byte(float64(cr)*a + float64(r.Pix[i+0])*(1-a))
	r.Pix[i+1] = byte(float64(cg)*a + float64(r.Pix[i+1])*(1-a))
	r.Pix[i+2] = byte(float64(cb)*a + float64(r.Pix[i+2])*(1-a))
	r.Pix[i+3] = 0xFF
}

// quad draws a textured region scaled around (X, Y) and rotated around the
// pivot. Negative scales mirror: the destination rect extends left/up from
// X/Y and texels flip. The destination bounding box is inverse-mapped per
// pixel.
func (r *SoftRenderer) quad(cmd DrawCmd) {
	if cmd.Page < 0 || cmd.Page >= len(r.data.Textures) {
		return
	}
	page := &r.data.Textures[cmd.Page]
	vsx, vsy := r.viewScale()

	sx, sy := cmd.XScale, cmd.YScale
	x0, y0 := cmd.X, cmd.Y
	mirrorX, mirrorY := false, false
	if sx < 0 {
		sx = -sx
		x0 = cmd.X - float64(cmd.SrcW)*sx
		mirrorX = true
	}
	if sy < 0 {
		sy = -sy
		y0 = cmd.Y - float64(cmd.SrcH)*sy
		mirrorY = true
	}
	if sx == 0 || sy == 0 {
		return
	}
	w := float64(cmd.SrcW) * sx
	h := float64(cmd.SrcH) * sy

	// port-space pivot and corners
	px, py := r.transform(cmd.PivotX, cmd.PivotY)
	sin, cos := math.Sincos(-cmd.Angle * math.Pi / 180)

	corner := func(dx, dy float64) (float64, float64) {
		// room-space offset from pivot, scaled into port space
		ox := (x0 + dx - cmd.PivotX) * vsx
		oy := (y0 + dy - cmd.PivotY) * vsy
		return px + ox*cos - oy*sin, py + ox*sin + oy*cos
	}

	cx0, cy0 := corner(0, 0)
	cx1, cy1 := corner(w, 0)
	cx2, cy2 := corner(0, h)
	cx3, cy3 := corner(w, h)

	minX := int(math.Floor(math.Min(math.Min(cx0, cx1), math.Min(cx2, cx3))))
	maxX := int(math.Ceil(math.Max(math.Max(cx0, cx1), math.Max(cx2, cx3))))
	minY := int(math.Floor(math.Min(math.Min(cy0, cy1), math.Min(cy2, cy3))))
	maxY := int(math.Ceil(math.Max(math.Max(cy0, cy1), math.Max(cy2, cy3))))

	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > r.W {
		maxX = r.W
	}
	if maxY > r.H {
		maxY = r.H
	}

	// inverse rotation
	isin, icos := math.Sincos(cmd.Angle * math.Pi / 180)

	br := byte(cmd.Color)
	bg := byte(cmd.Color >> 8)
	bb := byte(cmd.Color >> 16)

	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			// back from port space to quad-local space
			fx := float64(x) + 0.5 - px
			fy := float64(y) + 0.5 - py
			lx := fx*icos - fy*isin
			ly := fx*isin + fy*icos
			// into source texels
			u := (lx/vsx + (cmd.PivotX - x0)) / sx
			v := (ly/vsy + (cmd.PivotY - y0)) / sy
			if u < 0 || v < 0 || u >= float64(cmd.SrcW) || v >= float64(cmd.SrcH) {
				continue
			}
			ui, vi := int(u), int(v)
			if mirrorX {
				ui = cmd.SrcW - 1 - ui
			}
			if mirrorY {
				vi = cmd.SrcH - 1 - vi
			}
			tx := cmd.SrcX + ui
			ty := cmd.SrcY + vi
			if tx < 0 || ty < 0 || tx >= page.Width || ty >= page.Height {
				continue
			}
			i := (ty*page.Width + tx) * 4
			sr, sg, sb, sa := page.Pix[i], page.Pix[i+1], page.Pix[i+2], page.Pix[i+3]
			if sa == 0 {
				continue
			}
			a := cmd.Alpha * float64(sa) / 255
			r.blend(x, y,
				byte(int(sr)*int(br)/255),
				byte(int(sg)*int(bg)/255),
				byte(int(sb)*int(bb)/255),
				a)
		}
	}
}

func (r *SoftRenderer) rect(cmd DrawCmd) {
	x1, y1 := r.transform(cmd.X, cmd.Y)
	x2, y2 := r.transform(cmd.X2, cmd.Y2)
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	br := byte(cmd.Color)
	bg := byte(cmd.Color >> 8)
	bb := byte(cmd.Color >> 16)
	for y := int(y1); y <= int(y2); y++ {
		for x := int(x1); x <= int(x2); x++ {
			if cmd.Outline && x != int(x1) && x != int(x2) && y != int(y1) && y != int(y2) {
				continue
			}
			r.blend(x, y, br, bg, bb, cmd.Alpha)
		}
	}
}

func (r *SoftRenderer) line(cmd DrawCmd) {
	x1, y1 := r.transform(cmd.X, cmd.Y)
	x2, y2 := r.transform(cmd.X2, cmd.Y2)
	br := byte(cmd.Color)
	bg := byte(cmd.Color >> 8)
	bb := byte(cmd.Color >> 16)

	steps := int(math.Max(math.Abs(x2-x1), math.Abs(y2-y1))) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		r.blend(int(x1+(x2-x1)*t), int(y1+(y2-y1)*t), br, bg, bb, cmd.Alpha)
	}
}
