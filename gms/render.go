package gms

// The renderer consumes a deterministic command stream per frame:
// Begin, then for each enabled view SetView followed by Submit calls in draw
// order, then Present. Texture pages are addressed by index; backends upload
// them lazily on first use.

// CmdKind discriminates draw commands.
type CmdKind byte

const (
	CmdQuad CmdKind = iota
	CmdRect
	CmdLine
)

// View is one view/port pair active for a batch of commands.
type View struct {
	SrcX, SrcY float64
	SrcW, SrcH float64
	PortX, PortY int
	PortW, PortH int
}

// DrawCmd is one textured quad or colored primitive, in room coordinates of
// the current view.
type DrawCmd struct {
	Kind CmdKind

	// Quad
	Page             int
	SrcX, SrcY       int
	SrcW, SrcH       int
	X, Y             float64 // top-left before rotation
	XScale, YScale   float64
	PivotX, PivotY   float64 // rotation pivot in room coordinates
	Angle            float64 // degrees, counterclockwise

	// Rect / Line endpoints
	X2, Y2 float64

	Color   uint32 // BGR blend color
	Alpha   float64
	Outline bool
}

// Renderer is the backend contract. Implementations must consume commands
// in submission order; the sequence is deterministic for a given seed,
// container, and input script.
type Renderer interface {
	// Begin starts a frame against a logical backbuffer of the given size,
	// cleared to the BGR color.
	Begin(width, height int, clear uint32)
	// SetView sets the projection and viewport for subsequent commands.
	SetView(v View)
	Submit(cmd DrawCmd)
	// Present finishes the frame (buffer swap; a no-op headless).
	Present() error
}

// NullRenderer discards everything. Used when no draw output is needed.
type NullRenderer struct{}

func (NullRenderer) Begin(int, int, uint32) {}
func (NullRenderer) SetView(View)           {}
func (NullRenderer) Submit(DrawCmd)         {}
func (NullRenderer) Present() error         { return nil }

// Horizontal / vertical alignment for text.
const (
	AlignLeft   = 0
	AlignCenter = 1
	AlignRight  = 2

	AlignTop    = 0
	AlignMiddle = 1
	AlignBottom = 2
)

// drawState is the persistent draw state scripts mutate between draws.
type drawState struct {
	color  uint32 // BGR
	alpha  float64
	font   int
	halign int
	valign int
}

func defaultDrawState() drawState {
	return drawState{color: 0xFFFFFF, alpha: 1, font: -1}
}

// measureString lays out a string in the given font: width and height in
// unscaled glyph units. Lines split on explicit newlines only.
func measureString(f *Font, s string) (w, h int) {
	lineW := 0
	lines := 1
	for _, ch := range s {
		if ch == '\n' {
			if lineW > w {
				w = lineW
			}
			lineW = 0
			lines++
			continue
		}
		if g, ok := f.Glyphs[ch]; ok {
			lineW += g.Shift
		}
	}
	if lineW > w {
		w = lineW
	}
	return w, lines * f.LineH
}

// layoutString emits one glyph quad per rune via emit, applying alignment
// offsets. Coordinates are room coordinates of the pen position.
func layoutString(f *Font, x, y float64, s string, halign, valign int, emit func(g Glyph, gx, gy float64)) {
	_, totalH := measureString(f, s)
	switch valign {
	case AlignMiddle:
		y -= float64(totalH) / 2
	case AlignBottom:
		y -= float64(totalH)
	}

	lineStart := 0
	text := []rune(s)
	for i := 0; i <= len(text); i++ {
		if i != len(text) && text[i] != '\n' {
			continue
		}
		line := text[lineStart:i]
		lineStart = i + 1

		lineW := 0
		for _, ch := range line {
			if g, ok := f.Glyphs[ch]; ok {
				lineW += g.Shift
			}
		}
		gx := x
		switch halign {
		case AlignCenter:
			gx -= float64(lineW) / 2
		case AlignRight:
			gx -= float64(lineW)
		}

		for _, ch := range line {
			g, ok := f.Glyphs[ch]
			if !ok {
				continue
			}
			emit(g, gx+float64(g.Offset), y)
			gx += float64(g.Shift)
		}
		y += float64(f.LineH)
	}
}
