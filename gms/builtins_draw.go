package gms

func registerDrawBuiltins(g *Game) {
	g.Register("draw_sprite", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		sprite, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		sub, _ := argReal(args, 1)
		x, _ := argReal(args, 2)
		y, err := argReal(args, 3)
		if err != nil {
			return Undefined, err
		}
		g.drawSpriteExt(sprite, g.subimage(self, sub), x, y, 1, 1, 0, 0xFFFFFF, 1)
		return Real(0), nil
	})

	g.Register("draw_sprite_ext", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		sprite, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		sub, _ := argReal(args, 1)
		x, _ := argReal(args, 2)
		y, _ := argReal(args, 3)
		xscale, _ := argReal(args, 4)
		yscale, _ := argReal(args, 5)
		angle, _ := argReal(args, 6)
		col, _ := argReal(args, 7)
		alpha, err := argReal(args, 8)
		if err != nil {
			return Undefined, err
		}
		g.drawSpriteExt(sprite, g.subimage(self, sub), x, y, xscale, yscale, angle, uint32(int64(col))&0xFFFFFF, alpha)
		return Real(0), nil
	})

	g.Register("draw_self", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		if inst := g.Instance(self); inst != nil {
			g.drawSelf(inst)
		}
		return Real(0), nil
	})

	g.Register("draw_background", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		bg, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		x, _ := argReal(args, 1)
		y, err := argReal(args, 2)
		if err != nil {
			return Undefined, err
		}
		if bg < 0 || bg >= len(g.data.Backgrounds) {
			return Real(0), nil
		}
		reg := &g.data.Regions[g.data.Backgrounds[bg].Region]
		g.renderer.Submit(DrawCmd{
			Kind: CmdQuad, Page: reg.Page,
			SrcX: reg.SrcX, SrcY: reg.SrcY, SrcW: reg.SrcW, SrcH: reg.SrcH,
			X: x, Y: y, PivotX: x, PivotY: y, XScale: 1, YScale: 1,
			Color: 0xFFFFFF, Alpha: 1,
		})
		return Real(0), nil
	})

	g.Register("draw_text", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x, _ := argReal(args, 0)
		y, _ := argReal(args, 1)
		s, err := argStr(args, 2)
		if err != nil {
			return Undefined, err
		}
		g.drawText(x, y, s)
		return Real(0), nil
	})

	g.Register("draw_rectangle", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x1, _ := argReal(args, 0)
		y1, _ := argReal(args, 1)
		x2, _ := argReal(args, 2)
		y2, _ := argReal(args, 3)
		outline := arg(args, 4).IsTrue()
		g.renderer.Submit(DrawCmd{
			Kind: CmdRect, X: x1, Y: y1, X2: x2, Y2: y2,
			Color: g.draw.color, Alpha: g.draw.alpha, Outline: outline,
		})
		return Real(0), nil
	})

	g.Register("draw_line", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		x1, _ := argReal(args, 0)
		y1, _ := argReal(args, 1)
		x2, _ := argReal(args, 2)
		y2, err := argReal(args, 3)
		if err != nil {
			return Undefined, err
		}
		g.renderer.Submit(DrawCmd{
			Kind: CmdLine, X: x1, Y: y1, X2: x2, Y2: y2,
			Color: g.draw.color, Alpha: g.draw.alpha,
		})
		return Real(0), nil
	})

	g.Register("draw_set_color", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		c, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		g.draw.color = uint32(int64(c)) & 0xFFFFFF
		return Real(0), nil
	})
	g.Register("draw_set_colour", g.builtins["draw_set_color"])

	g.Register("draw_get_color", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		return Real(float64(g.draw.color)), nil
	})

	g.Register("draw_set_alpha", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		a, err := argReal(args, 0)
		if err != nil {
			return Undefined, err
		}
		g.draw.alpha = a
		return Real(0), nil
	})

	g.Register("draw_get_alpha", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		return Real(g.draw.alpha), nil
	})

	g.Register("draw_set_font", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		f, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		g.draw.font = f
		return Real(0), nil
	})

	g.Register("draw_set_halign", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		a, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		g.draw.halign = a
		return Real(0), nil
	})

	g.Register("draw_set_valign", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		a, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		g.draw.valign = a
		return Real(0), nil
	})

	g.Register("make_color_rgb", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		r, _ := argInt(args, 0)
		gr, _ := argInt(args, 1)
		b, err := argInt(args, 2)
		if err != nil {
			return Undefined, err
		}
		return Real(float64(uint32(r&0xFF) | uint32(gr&0xFF)<<8 | uint32(b&0xFF)<<16)), nil
	})
	g.Register("make_colour_rgb", g.builtins["make_color_rgb"])

	g.Register("merge_color", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		c1, _ := argReal(args, 0)
		c2, _ := argReal(args, 1)
		t, err := argReal(args, 2)
		if err != nil {
			return Undefined, err
		}
		a := uint32(int64(c1))
		b := uint32(int64(c2))
		mix := func(x, y uint32) uint32 {
			return uint32(float64(x) + (float64(y)-float64(x))*t)
		}
		return Real(float64(
			mix(a&0xFF, b&0xFF) |
				mix(a>>8&0xFF, b>>8&0xFF)<<8 |
				mix(a>>16&0xFF, b>>16&0xFF)<<16)), nil
	})
}

// subimage resolves a draw call's image index: -1 means the caller's own
// image_index.
func (g *Game) subimage(self InstanceID, sub float64) float64 {
	if sub >= 0 {
		return sub
	}
	if inst := g.Instance(self); inst != nil {
		return inst.ImageIndex
	}
	return 0
}

// currentFont returns the active draw font, or nil.
func (g *Game) currentFont() *Font {
	if g.draw.font < 0 || g.draw.font >= len(g.data.Fonts) {
		return nil
	}
	return &g.data.Fonts[g.draw.font]
}

// drawText lays the string out in the current font and emits one quad per
// glyph, honoring the alignment state.
func (g *Game) drawText(x, y float64, s string) {
	f := g.currentFont()
	if f == nil {
		g.warnf("draw_text:nofont", "draw_text with no font set")
		return
	}
	reg := &g.data.Regions[f.Region]
	layoutString(f, x, y, s, g.draw.halign, g.draw.valign, func(gl Glyph, gx, gy float64) {
		g.renderer.Submit(DrawCmd{
			Kind: CmdQuad,
			Page: reg.Page,
			SrcX: reg.SrcX + gl.SrcX, SrcY: reg.SrcY + gl.SrcY,
			SrcW: gl.SrcW, SrcH: gl.SrcH,
			X: gx, Y: gy, PivotX: gx, PivotY: gy,
			XScale: 1, YScale: 1,
			Color: g.draw.color, Alpha: g.draw.alpha,
		})
	})
}
