package gms

import (
	"fmt"
	"strings"
	"testing"
)

// captureRenderer records the command stream as text, for determinism and
// draw-walk ordering tests.
type captureRenderer struct {
	b strings.Builder
}

func (c *captureRenderer) Begin(w, h int, clear uint32) {
	fmt.Fprintf(&c.b, "begin %dx%d %06x\n", w, h, clear)
}
func (c *captureRenderer) SetView(v View) {
	fmt.Fprintf(&c.b, "view %+v\n", v)
}
func (c *captureRenderer) Submit(cmd DrawCmd) {
	fmt.Fprintf(&c.b, "cmd %+v\n", cmd)
}
func (c *captureRenderer) Present() error {
	c.b.WriteString("present\n")
	return nil
}
func (c *captureRenderer) String() string { return c.b.String() }

func softWorld(t *testing.T) (*testWorld, *Data) {
	t.Helper()
	w := newTestWorld()
	page := w.addPage(8, 8, [4]byte{0, 255, 0, 255})
	w.addRegion(page, 0, 0, 4, 4)
	if err := w.d.resolve(); err != nil {
		t.Fatal(err)
	}
	return w, w.d
}

func TestSoftRendererClear(t *testing.T) {
	_, d := softWorld(t)
	r := NewSoftRenderer(d)
	r.Begin(320, 240, 0x000000)
	if err := r.Present(); err != nil {
		t.Fatal(err)
	}
	cr, cg, cb, ca := r.At(160, 120)
	if cr != 0 || cg != 0 || cb != 0 || ca != 255 {
		t.Errorf("center pixel = (%d,%d,%d,%d), want opaque black", cr, cg, cb, ca)
	}
}

func TestSoftRendererQuad(t *testing.T) {
	_, d := softWorld(t)
	r := NewSoftRenderer(d)
	r.Begin(32, 32, 0x000000)
	r.Submit(DrawCmd{
		Kind: CmdQuad, Page: 0,
		SrcW: 4, SrcH: 4,
		X: 10, Y: 10, PivotX: 10, PivotY: 10,
		XScale: 1, YScale: 1,
		Color: 0xFFFFFF, Alpha: 1,
	})

	if _, cg, _, _ := r.At(11, 11); cg != 255 {
		t.Error("quad interior not drawn")
	}
	if _, cg, _, _ := r.At(15, 11); cg != 0 {
		t.Error("quad drew outside its extent")
	}
}

func TestSoftRendererNegativeScaleMirrors(t *testing.T) {
	w := newTestWorld()
	page := w.addPage(4, 4, [4]byte{0, 0, 0, 0})
	// left half opaque white, right half transparent
	for y := 0; y < 4; y++ {
		for x := 0; x < 2; x++ {
			i := (y*4 + x) * 4
			w.d.Textures[page].Pix[i+0] = 255
			w.d.Textures[page].Pix[i+1] = 255
			w.d.Textures[page].Pix[i+2] = 255
			w.d.Textures[page].Pix[i+3] = 255
		}
	}
	w.addRegion(page, 0, 0, 4, 4)
	if err := w.d.resolve(); err != nil {
		t.Fatal(err)
	}

	draw := func(xscale float64, x float64) *SoftRenderer {
		r := NewSoftRenderer(w.d)
		r.Begin(16, 16, 0x000000)
		r.Submit(DrawCmd{
			Kind: CmdQuad, Page: 0, SrcW: 4, SrcH: 4,
			X: x, Y: 4, PivotX: 8, PivotY: 4,
			XScale: xscale, YScale: 1,
			Color: 0xFFFFFF, Alpha: 1,
		})
		return r
	}

	// normal: quad spans [8,12), opaque texels on its left half
	r := draw(1, 8)
	if r.Pix[(5*16+8)*4] != 255 {
		t.Error("normal draw: left texels missing")
	}
	if r.Pix[(5*16+11)*4] != 0 {
		t.Error("normal draw: right side should be transparent")
	}
	// mirrored: the quad extends left from X to span [0,4), opaque half
	// flipped onto its right
	r = draw(-1, 4)
	if r.Pix[(5*16+3)*4] != 255 {
		t.Error("mirrored draw: right side should be opaque")
	}
	if r.Pix[(5*16+1)*4] != 0 {
		t.Error("mirrored draw: left side should be transparent")
	}
}

func TestSoftRendererViewTransform(t *testing.T) {
	_, d := softWorld(t)
	r := NewSoftRenderer(d)
	r.Begin(64, 64, 0x000000)
	// view looks at room rect (100,100)-(132,132), port is (0,0)-(64,64):
	// a 2x scale
	r.SetView(View{SrcX: 100, SrcY: 100, SrcW: 32, SrcH: 32, PortW: 64, PortH: 64})
	r.Submit(DrawCmd{
		Kind: CmdQuad, Page: 0, SrcW: 4, SrcH: 4,
		X: 100, Y: 100, PivotX: 100, PivotY: 100,
		XScale: 1, YScale: 1, Color: 0xFFFFFF, Alpha: 1,
	})
	// the 4x4 quad at the view origin covers 8x8 port pixels
	if _, cg, _, _ := r.At(6, 6); cg != 255 {
		t.Error("scaled view quad missing at (6,6)")
	}
	if _, cg, _, _ := r.At(10, 10); cg != 0 {
		t.Error("scaled view quad overdrew at (10,10)")
	}
}

func TestSoftRendererColorModulation(t *testing.T) {
	_, d := softWorld(t)
	r := NewSoftRenderer(d)
	r.Begin(8, 8, 0x000000)
	// green page modulated by a blend that halves green
	r.Submit(DrawCmd{
		Kind: CmdQuad, Page: 0, SrcW: 4, SrcH: 4,
		X: 0, Y: 0, PivotX: 0, PivotY: 0,
		XScale: 1, YScale: 1,
		Color: 0x007F00, Alpha: 1,
	})
	if _, cg, _, _ := r.At(1, 1); cg < 120 || cg > 135 {
		t.Errorf("modulated green = %d, want about 127", cg)
	}
}

func TestDrawWalkOrder(t *testing.T) {
	w := newTestWorld()
	page := w.addPage(8, 8, [4]byte{255, 255, 255, 255})
	spr := w.addSprite("spr_a", 4, 4, 0, 0)
	w.d.Sprites[spr].Frames = []int{w.addRegion(page, 0, 0, 4, 4)}

	deep := w.addObject("obj_deep", -1)
	w.d.Objects[deep].Sprite = spr
	w.d.Objects[deep].Depth = 100
	shallow := w.addObject("obj_shallow", -1)
	w.d.Objects[shallow].Sprite = spr
	w.d.Objects[shallow].Depth = -5

	room := w.addRoom("room_test", 320, 240, 30)
	// placed shallow first, but the deeper instance must draw first
	w.placeInstance(room, shallow, 50, 50)
	w.placeInstance(room, deep, 10, 10)

	g, err := w.game()
	if err != nil {
		t.Fatal(err)
	}
	cap := &captureRenderer{}
	g.renderer = cap
	if err := g.Start(-1); err != nil {
		t.Fatal(err)
	}
	if err := g.StepFrame(); err != nil {
		t.Fatal(err)
	}

	out := cap.String()
	deepAt := strings.Index(out, "X:10")
	shallowAt := strings.Index(out, "X:50")
	if deepAt < 0 || shallowAt < 0 {
		t.Fatalf("draw stream missing quads:\n%s", out)
	}
	if deepAt > shallowAt {
		t.Error("depth 100 instance drew after depth -5 instance")
	}
}

func TestMeasureString(t *testing.T) {
	f := &Font{
		LineH: 10,
		Glyphs: map[rune]Glyph{
			'a': {SrcW: 5, SrcH: 8, Shift: 6},
			'b': {SrcW: 5, SrcH: 8, Shift: 7},
		},
	}
	w, h := measureString(f, "ab")
	if w != 13 || h != 10 {
		t.Errorf("measure(ab) = %d,%d, want 13,10", w, h)
	}
	w, h = measureString(f, "a\nbb")
	if w != 14 || h != 20 {
		t.Errorf("measure multiline = %d,%d, want 14,20", w, h)
	}
}

func TestLayoutStringAlignment(t *testing.T) {
	f := &Font{
		LineH:  10,
		Glyphs: map[rune]Glyph{'a': {SrcW: 5, SrcH: 8, Shift: 6}},
	}
	var xs []float64
	layoutString(f, 100, 0, "aa", AlignRight, AlignTop, func(g Glyph, gx, gy float64) {
		xs = append(xs, gx)
	})
	// total width 12, right aligned: glyphs at 88 and 94
	if len(xs) != 2 || xs[0] != 88 || xs[1] != 94 {
		t.Errorf("right-aligned glyph positions = %v", xs)
	}
}
