package gms

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
)

// The container is a little-endian IFF: a FORM chunk whose payload is a
// sequence of {tag[4], len u32, payload[len]} records. Asset chunks hold a
// count followed by absolute file offsets to their entries; strings are
// referenced by absolute file offset into STRG character data.

var (
	formMagic     = []byte{'F', 'O', 'R', 'M'}
	errNoForm     = errors.New("gms: invalid magic, not a FORM container")
	errNoGen8     = errors.New("gms: missing GEN8 chunk")
	errNoStrings  = errors.New("gms: missing STRG chunk")
)

// FormError is a malformed-container diagnostic.
type FormError struct {
	Chunk string
	Off   int
	Msg   string
	Err   error
}

func (e *FormError) Error() string {
	return fmt.Sprintf("gms: chunk %s at offset %d: %s", e.Chunk, e.Off, e.Msg)
}

func (e *FormError) Unwrap() error { return e.Err }

// UnsupportedVersionError reports a bytecode version other than 16.
type UnsupportedVersionError struct {
	Version int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("gms: unsupported bytecode version %d (want 16)", e.Version)
}

// cursor reads little-endian primitives out of the file image with a sticky
// error, so parsers read straight through and check once.
type cursor struct {
	b   []byte
	off int
	err error
}

func (c *cursor) fail(format string, args ...interface{}) {
	if c.err == nil {
		c.err = fmt.Errorf(format, args...)
	}
}

func (c *cursor) remaining() int { return len(c.b) - c.off }

func (c *cursor) bytes(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.off+n > len(c.b) {
		c.fail("gms: truncated read of %d bytes at offset %d", n, c.off)
		return nil
	}
	s := c.b[c.off : c.off+n]
	c.off += n
	return s
}

func (c *cursor) u8() byte {
	b := c.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u16() uint16 {
	b := c.bytes(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (c *cursor) u32() uint32 {
	b := c.bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (c *cursor) i32() int32 { return int32(c.u32()) }

func (c *cursor) f32() float64 {
	return float64(math.Float32frombits(c.u32()))
}

func (c *cursor) u64() uint64 {
	b := c.bytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (c *cursor) skip(n int) { c.bytes(n) }

func (c *cursor) seek(off int) {
	if c.err != nil {
		return
	}
	if off < 0 || off > len(c.b) {
		c.fail("gms: seek out of range: %d", off)
		return
	}
	c.off = off
}

// offsetList reads the count-prefixed absolute offset table that heads every
// asset chunk.
func (c *cursor) offsetList() []int {
	n := c.u32()
	if c.err != nil {
		return nil
	}
	if int(n) > c.remaining()/4 {
		c.fail("gms: offset list of %d entries overruns chunk at offset %d", n, c.off)
		return nil
	}
	offs := make([]int, n)
	for i := range offs {
		offs[i] = int(c.u32())
	}
	return offs
}

type formParser struct {
	file []byte
	data *Data

	chunks   map[string][]byte // tag -> payload
	order    []string
	chunkOff map[string]int // tag -> payload offset in file

	tpagByOffset map[int]int // absolute entry offset -> region index
}

// Load decodes a FORM container image into the asset graph.
func Load(file []byte) (*Data, error) {
	p := &formParser{
		file:     file,
		data:     &Data{},
		chunks:   make(map[string][]byte),
		chunkOff: make(map[string]int),
	}
	if err := p.walk(); err != nil {
		return nil, err
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	if err := p.data.resolve(); err != nil {
		return nil, err
	}
	return p.data, nil
}

// walk splits the FORM payload into tagged chunks, skipping unknown tags by
// their declared length.
func (p *formParser) walk() error {
	c := cursor{b: p.file}
	magic := c.bytes(4)
	if c.err != nil || !bytes.Equal(magic, formMagic) {
		return errNoForm
	}
	formLen := int(c.u32())
	if c.err != nil || formLen > c.remaining() {
		return &FormError{Chunk: "FORM", Off: 4, Msg: "declared length overruns file"}
	}

	end := c.off + formLen
	for c.off < end {
		tagOff := c.off
		tag := c.bytes(4)
		length := int(c.u32())
		if c.err != nil {
			return &FormError{Chunk: "FORM", Off: tagOff, Msg: "truncated chunk header"}
		}
		if length > end-c.off {
			return &FormError{Chunk: string(tag), Off: tagOff, Msg: "declared length overruns container"}
		}
		name := string(tag)
		p.chunkOff[name] = c.off
		p.chunks[name] = c.bytes(length)
		p.order = append(p.order, name)
	}
	return nil
}

func (p *formParser) parse() error {
	// STRG first: every other chunk refers into it.
	if _, ok := p.chunks["STRG"]; !ok {
		return errNoStrings
	}
	if err := p.parseSTRG(); err != nil {
		return err
	}
	if _, ok := p.chunks["GEN8"]; !ok {
		return errNoGen8
	}

	type chunkFn func([]byte) error
	parsers := []struct {
		tag string
		fn  chunkFn
	}{
		{"GEN8", p.parseGEN8},
		{"TXTR", p.parseTXTR},
		{"TPAG", p.parseTPAG},
		{"SPRT", p.parseSPRT},
		{"BGND", p.parseBGND},
		{"FONT", p.parseFONT},
		{"PATH", p.parsePATH},
		{"OBJT", p.parseOBJT},
		{"ROOM", p.parseROOM},
		{"SCPT", p.parseSCPT},
		{"VARI", p.parseVARI},
		{"FUNC", p.parseFUNC},
		{"CODE", p.parseCODE},
	}
	for _, entry := range parsers {
		payload, ok := p.chunks[entry.tag]
		if !ok {
			continue
		}
		if err := entry.fn(payload); err != nil {
			return &FormError{Chunk: entry.tag, Off: p.chunkOff[entry.tag], Msg: err.Error(), Err: err}
		}
	}
	return nil
}

// entryCursor positions a cursor over the whole file at an absolute entry
// offset, as the chunk offset tables point into the file image.
func (p *formParser) entryCursor(off int) cursor {
	c := cursor{b: p.file}
	c.seek(off)
	return c
}

func (p *formParser) parseSTRG() error {
	payload := p.chunks["STRG"]
	c := cursor{b: payload}
	offs := c.offsetList()
	if c.err != nil {
		return c.err
	}
	p.data.stringByOffset = make(map[uint32]int, len(offs))
	for i, off := range offs {
		ec := p.entryCursor(off)
		n := int(ec.u32())
		b := ec.bytes(n)
		if ec.err != nil {
			return fmt.Errorf("gms: STRG entry %d at %d: %s", i, off, ec.err)
		}
		p.data.Strings = append(p.data.Strings, string(b))
		// references point at the character data, past the length word
		p.data.stringByOffset[uint32(off+4)] = i
	}
	return nil
}

func (p *formParser) parseGEN8(payload []byte) error {
	c := cursor{b: payload}
	c.skip(1) // debug flag
	version := int(c.u8())
	c.skip(2)
	_ = p.stringRefIn(&c) // filename
	_ = p.stringRefIn(&c) // config
	c.skip(4 + 4)         // last object id, last tile id
	c.skip(4)             // game id
	c.skip(16)            // guid
	p.data.GameName = p.stringRefIn(&c)
	c.skip(4 * 4) // major, minor, release, build
	p.data.WindowWidth = int(c.u32())
	p.data.WindowHeight = int(c.u32())
	c.skip(4)  // info flags
	c.skip(16) // license md5
	c.skip(4)  // license crc
	c.skip(8)  // timestamp
	_ = p.stringRefIn(&c) // display name
	c.skip(8 + 8 + 4 + 4) // targets, classifications, steam id, debugger port
	n := c.u32()
	for i := uint32(0); i < n && c.err == nil; i++ {
		p.data.RoomOrder = append(p.data.RoomOrder, int(c.u32()))
	}
	if c.err != nil {
		return c.err
	}
	p.data.BytecodeVersion = version
	if version != 16 {
		return &UnsupportedVersionError{Version: version}
	}
	return nil
}

// stringRefIn resolves a string offset read from an arbitrary cursor.
func (p *formParser) stringRefIn(c *cursor) string {
	off := c.u32()
	if c.err != nil {
		return ""
	}
	s, ok := p.data.StringAt(off)
	if !ok {
		c.fail("gms: string reference %d resolves to no STRG entry", off)
	}
	return s
}

func (p *formParser) parseTXTR(payload []byte) error {
	c := cursor{b: payload}
	offs := c.offsetList()
	if c.err != nil {
		return c.err
	}
	for i, off := range offs {
		ec := p.entryCursor(off)
		ec.skip(4) // scaled flag
		pngOff := int(ec.u32())
		if ec.err != nil {
			return fmt.Errorf("entry %d: %s", i, ec.err)
		}
		if pngOff < 0 || pngOff > len(p.file) {
			return fmt.Errorf("entry %d: png offset %d out of range", i, pngOff)
		}
		img, err := png.Decode(bytes.NewReader(p.file[pngOff:]))
		if err != nil {
			return fmt.Errorf("entry %d: decoding page: %s", i, err)
		}
		p.data.Textures = append(p.data.Textures, rgbaPage(img))
	}
	return nil
}

func rgbaPage(img image.Image) TexturePage {
	b := img.Bounds()
	page := TexturePage{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pix:    make([]byte, b.Dx()*b.Dy()*4),
	}
	if src, ok := img.(*image.NRGBA); ok && src.Stride == b.Dx()*4 {
		copy(page.Pix, src.Pix)
		return page
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			page.Pix[i+0] = byte(r >> 8)
			page.Pix[i+1] = byte(g >> 8)
			page.Pix[i+2] = byte(bl >> 8)
			page.Pix[i+3] = byte(a >> 8)
			i += 4
		}
	}
	return page
}

func (p *formParser) parseTPAG(payload []byte) error {
	c := cursor{b: payload}
	offs := c.offsetList()
	if c.err != nil {
		return c.err
	}
	p.tpagByOffset = make(map[int]int, len(offs))
	for i, off := range offs {
		ec := p.entryCursor(off)
		r := TexRegion{
			SrcX: int(ec.u16()), SrcY: int(ec.u16()),
			SrcW: int(ec.u16()), SrcH: int(ec.u16()),
			TargetX: int(ec.u16()), TargetY: int(ec.u16()),
			TargetW: int(ec.u16()), TargetH: int(ec.u16()),
			DestW: int(ec.u16()), DestH: int(ec.u16()),
			Page: int(ec.u16()),
		}
		if ec.err != nil {
			return fmt.Errorf("entry %d: %s", i, ec.err)
		}
		p.tpagByOffset[off] = i
		p.data.Regions = append(p.data.Regions, r)
	}
	return nil
}

// regionRef resolves an absolute TPAG entry offset to a region index.
func (p *formParser) regionRef(c *cursor) int {
	off := int(c.u32())
	if c.err != nil {
		return -1
	}
	i, ok := p.tpagByOffset[off]
	if !ok {
		c.fail("gms: TPAG reference %d resolves to no region", off)
		return -1
	}
	return i
}

func (p *formParser) parseSPRT(payload []byte) error {
	c := cursor{b: payload}
	offs := c.offsetList()
	if c.err != nil {
		return c.err
	}
	for i, off := range offs {
		ec := p.entryCursor(off)
		s := Sprite{
			Name:        p.stringRefIn(&ec),
			Width:       int(ec.u32()),
			Height:      int(ec.u32()),
			MarginLeft:  int(ec.i32()),
			MarginRight: int(ec.i32()),
			MarginBot:   int(ec.i32()),
			MarginTop:   int(ec.i32()),
		}
		s.Transparent = ec.u32() != 0
		s.Smooth = ec.u32() != 0
		ec.skip(4) // preload
		s.BBoxMode = int(ec.u32())
		s.SepMasks = int(ec.u32())
		s.OriginX = int(ec.i32())
		s.OriginY = int(ec.i32())
		frames := ec.u32()
		for f := uint32(0); f < frames && ec.err == nil; f++ {
			s.Frames = append(s.Frames, p.regionRef(&ec))
		}
		masks := ec.u32()
		if ec.err == nil && masks > 0 {
			stride := (s.Width + 7) / 8
			for m := uint32(0); m < masks && ec.err == nil; m++ {
				raw := ec.bytes(stride * s.Height)
				if raw != nil {
					s.Masks = append(s.Masks, append([]byte(nil), raw...))
				}
			}
		}
		if ec.err != nil {
			return fmt.Errorf("entry %d (%s): %s", i, s.Name, ec.err)
		}
		p.data.Sprites = append(p.data.Sprites, s)
	}
	return nil
}

func (p *formParser) parseBGND(payload []byte) error {
	c := cursor{b: payload}
	offs := c.offsetList()
	if c.err != nil {
		return c.err
	}
	for i, off := range offs {
		ec := p.entryCursor(off)
		b := Background{Name: p.stringRefIn(&ec)}
		ec.skip(4 * 3) // transparent, smooth, preload
		b.Region = p.regionRef(&ec)
		if ec.err != nil {
			return fmt.Errorf("entry %d: %s", i, ec.err)
		}
		p.data.Backgrounds = append(p.data.Backgrounds, b)
	}
	return nil
}

func (p *formParser) parseFONT(payload []byte) error {
	c := cursor{b: payload}
	offs := c.offsetList()
	if c.err != nil {
		return c.err
	}
	for i, off := range offs {
		ec := p.entryCursor(off)
		f := Font{
			Name:   p.stringRefIn(&ec),
			Glyphs: make(map[rune]Glyph),
		}
		_ = p.stringRefIn(&ec) // display name
		f.Size = int(ec.u32())
		ec.skip(4 + 4)     // bold, italic
		ec.skip(2 + 1 + 1) // range start, charset, antialias
		ec.skip(4)         // range end
		f.Region = p.regionRef(&ec)
		f.ScaleX = ec.f32()
		f.ScaleY = ec.f32()
		glyphs := ec.u32()
		for g := uint32(0); g < glyphs && ec.err == nil; g++ {
			ch := rune(ec.u16())
			gl := Glyph{
				SrcX: int(ec.u16()), SrcY: int(ec.u16()),
				SrcW: int(ec.u16()), SrcH: int(ec.u16()),
				Shift:  int(int16(ec.u16())),
				Offset: int(int16(ec.u16())),
			}
			f.Glyphs[ch] = gl
			if gl.SrcH > f.LineH {
				f.LineH = gl.SrcH
			}
		}
		if ec.err != nil {
			return fmt.Errorf("entry %d (%s): %s", i, f.Name, ec.err)
		}
		p.data.Fonts = append(p.data.Fonts, f)
	}
	return nil
}

func (p *formParser) parsePATH(payload []byte) error {
	c := cursor{b: payload}
	offs := c.offsetList()
	if c.err != nil {
		return c.err
	}
	for i, off := range offs {
		ec := p.entryCursor(off)
		pa := Path{Name: p.stringRefIn(&ec)}
		pa.Smooth = ec.u32() != 0
		pa.Closed = ec.u32() != 0
		pa.Precision = int(ec.u32())
		n := ec.u32()
		for k := uint32(0); k < n && ec.err == nil; k++ {
			pa.Points = append(pa.Points, PathPoint{
				X: ec.f32(), Y: ec.f32(), Speed: ec.f32(),
			})
		}
		if ec.err != nil {
			return fmt.Errorf("entry %d (%s): %s", i, pa.Name, ec.err)
		}
		p.data.Paths = append(p.data.Paths, pa)
	}
	return nil
}

func (p *formParser) parseOBJT(payload []byte) error {
	c := cursor{b: payload}
	offs := c.offsetList()
	if c.err != nil {
		return c.err
	}
	for i, off := range offs {
		ec := p.entryCursor(off)
		o := Object{
			Name:   p.stringRefIn(&ec),
			Sprite: int(ec.i32()),
			Events: make(map[EventKey]int),
		}
		o.Visible = ec.u32() != 0
		o.Solid = ec.u32() != 0
		o.Depth = int(ec.i32())
		o.Persistent = ec.u32() != 0
		o.Parent = int(ec.i32())
		o.Mask = int(ec.i32())
		n := ec.u32()
		for e := uint32(0); e < n && ec.err == nil; e++ {
			kind := int(ec.u32())
			subtype := int(ec.u32())
			code := int(ec.i32())
			o.Events[EventKey{Kind: kind, Subtype: subtype}] = code
		}
		if ec.err != nil {
			return fmt.Errorf("entry %d (%s): %s", i, o.Name, ec.err)
		}
		p.data.Objects = append(p.data.Objects, o)
	}
	return nil
}

func (p *formParser) parseROOM(payload []byte) error {
	c := cursor{b: payload}
	offs := c.offsetList()
	if c.err != nil {
		return c.err
	}
	for i, off := range offs {
		ec := p.entryCursor(off)
		r := Room{
			Name:    p.stringRefIn(&ec),
			Caption: p.stringRefIn(&ec),
			Width:   int(ec.u32()),
			Height:  int(ec.u32()),
			Speed:   int(ec.u32()),
		}
		r.Persistent = ec.u32() != 0
		r.BGColor = ec.u32()
		r.DrawBGColor = ec.u32() != 0
		r.CreationCode = int(ec.i32())
		ec.skip(4) // flags

		nb := ec.u32()
		for k := uint32(0); k < nb && ec.err == nil; k++ {
			r.Backgrounds = append(r.Backgrounds, RoomBackground{
				Enabled:    ec.u32() != 0,
				Foreground: ec.u32() != 0,
				Index:      int(ec.i32()),
				X:          int(ec.i32()),
				Y:          int(ec.i32()),
				TileX:      ec.u32() != 0,
				TileY:      ec.u32() != 0,
				SpeedX:     int(ec.i32()),
				SpeedY:     int(ec.i32()),
				Stretch:    ec.u32() != 0,
			})
		}
		nv := ec.u32()
		for k := uint32(0); k < nv && ec.err == nil; k++ {
			r.Views = append(r.Views, RoomView{
				Enabled: ec.u32() != 0,
				ViewX:   int(ec.i32()), ViewY: int(ec.i32()),
				ViewW: int(ec.i32()), ViewH: int(ec.i32()),
				PortX: int(ec.i32()), PortY: int(ec.i32()),
				PortW: int(ec.i32()), PortH: int(ec.i32()),
				BorderX: int(ec.i32()), BorderY: int(ec.i32()),
				SpeedX: int(ec.i32()), SpeedY: int(ec.i32()),
				Follow: int(ec.i32()),
			})
		}
		ni := ec.u32()
		for k := uint32(0); k < ni && ec.err == nil; k++ {
			r.Instances = append(r.Instances, RoomInstance{
				X:            float64(ec.i32()),
				Y:            float64(ec.i32()),
				Object:       int(ec.i32()),
				ID:           ec.u32(),
				CreationCode: int(ec.i32()),
				ScaleX:       ec.f32(),
				ScaleY:       ec.f32(),
				Color:        ec.u32(),
				Rotation:     ec.f32(),
			})
		}
		nt := ec.u32()
		for k := uint32(0); k < nt && ec.err == nil; k++ {
			r.Tiles = append(r.Tiles, RoomTile{
				X:          float64(ec.i32()),
				Y:          float64(ec.i32()),
				Background: int(ec.i32()),
				SrcX:       int(ec.i32()),
				SrcY:       int(ec.i32()),
				W:          int(ec.u32()),
				H:          int(ec.u32()),
				Depth:      int(ec.i32()),
				ID:         ec.u32(),
				ScaleX:     ec.f32(),
				ScaleY:     ec.f32(),
				Color:      ec.u32(),
			})
		}
		if ec.err != nil {
			return fmt.Errorf("entry %d (%s): %s", i, r.Name, ec.err)
		}
		p.data.Rooms = append(p.data.Rooms, r)
	}
	return nil
}

func (p *formParser) parseSCPT(payload []byte) error {
	c := cursor{b: payload}
	offs := c.offsetList()
	if c.err != nil {
		return c.err
	}
	for i, off := range offs {
		ec := p.entryCursor(off)
		s := Script{Name: p.stringRefIn(&ec), Code: int(ec.i32())}
		if ec.err != nil {
			return fmt.Errorf("entry %d: %s", i, ec.err)
		}
		p.data.Scripts = append(p.data.Scripts, s)
	}
	return nil
}

func (p *formParser) parseVARI(payload []byte) error {
	c := cursor{b: payload}
	n := c.u32()
	for i := uint32(0); i < n && c.err == nil; i++ {
		v := VarEntry{Name: p.stringRefIn(&c), Scope: int(c.i32())}
		p.data.Variables = append(p.data.Variables, v)
	}
	return c.err
}

func (p *formParser) parseFUNC(payload []byte) error {
	c := cursor{b: payload}
	n := c.u32()
	for i := uint32(0); i < n && c.err == nil; i++ {
		p.data.Functions = append(p.data.Functions, FuncEntry{Name: p.stringRefIn(&c)})
	}
	return c.err
}

func (p *formParser) parseCODE(payload []byte) error {
	base := p.chunkOff["CODE"]
	p.data.Code = payload
	c := cursor{b: payload}
	offs := c.offsetList()
	if c.err != nil {
		return c.err
	}
	for i, off := range offs {
		ec := p.entryCursor(off)
		e := CodeEntry{Name: p.stringRefIn(&ec)}
		e.Length = int(ec.u32())
		e.Locals = int(ec.u16())
		e.Args = int(ec.u16() & 0x7FFF)
		abs := int(ec.u32())
		if ec.err != nil {
			return fmt.Errorf("entry %d (%s): %s", i, e.Name, ec.err)
		}
		e.Offset = abs - base
		if e.Offset < 0 || e.Offset+e.Length > len(payload) {
			return fmt.Errorf("entry %d (%s): bytecode span [%d,%d) outside chunk", i, e.Name, e.Offset, e.Offset+e.Length)
		}
		p.data.CodeEntries = append(p.data.CodeEntries, e)
	}
	return nil
}
