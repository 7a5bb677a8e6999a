package gms

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
)

// containerBuilder assembles a synthetic FORM container. Chunks are written
// in call order; entry references are absolute file offsets, as in the real
// layout.
type containerBuilder struct {
	buf     []byte
	strOff  map[string]uint32
	tpagOff []uint32
}

func newContainer() *containerBuilder {
	b := &containerBuilder{strOff: make(map[string]uint32)}
	b.buf = append(b.buf, 'F', 'O', 'R', 'M', 0, 0, 0, 0)
	return b
}

func (b *containerBuilder) finish() []byte {
	binary.LittleEndian.PutUint32(b.buf[4:], uint32(len(b.buf)-8))
	return b.buf
}

// payloadStart is the absolute offset the next chunk's payload will get.
func (b *containerBuilder) payloadStart() uint32 { return uint32(len(b.buf) + 8) }

func (b *containerBuilder) chunk(tag string, payload []byte) {
	b.buf = append(b.buf, tag...)
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(payload)))
	b.buf = append(b.buf, l[:]...)
	b.buf = append(b.buf, payload...)
}

type pw struct{ b []byte }

func (p *pw) u8(v byte) *pw  { p.b = append(p.b, v); return p }
func (p *pw) u16(v uint16) *pw {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	p.b = append(p.b, b[:]...)
	return p
}
func (p *pw) u32(v uint32) *pw {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	p.b = append(p.b, b[:]...)
	return p
}
func (p *pw) i32(v int32) *pw { return p.u32(uint32(v)) }
func (p *pw) f32(v float32) *pw  { return p.u32(math.Float32bits(v)) }
func (p *pw) bytes(v []byte) *pw { p.b = append(p.b, v...); return p }
func (p *pw) zeros(n int) *pw    { p.b = append(p.b, make([]byte, n)...); return p }

// strg writes the string chunk and records char-data offsets for later
// references.
func (b *containerBuilder) strg(strs ...string) {
	start := b.payloadStart()
	p := &pw{}
	p.u32(uint32(len(strs)))
	entryOff := start + 4 + 4*uint32(len(strs))
	offs := make([]uint32, len(strs))
	for i, s := range strs {
		offs[i] = entryOff
		b.strOff[s] = entryOff + 4
		entryOff += 4 + uint32(len(s))
	}
	for _, o := range offs {
		p.u32(o)
	}
	for _, s := range strs {
		p.u32(uint32(len(s))).bytes([]byte(s))
	}
	b.chunk("STRG", p.b)
}

func (b *containerBuilder) str(s string) uint32 {
	off, ok := b.strOff[s]
	if !ok {
		panic("container: string not in STRG: " + s)
	}
	return off
}

func (b *containerBuilder) gen8(version byte, name string, rooms ...uint32) {
	p := &pw{}
	p.u8(0).u8(version).u16(0)
	p.u32(b.str(name)) // filename
	p.u32(b.str(name)) // config
	p.u32(0).u32(0)    // last object, last tile
	p.u32(1)           // game id
	p.zeros(16)        // guid
	p.u32(b.str(name))
	p.u32(1).u32(0).u32(0).u32(0) // version
	p.u32(640).u32(480)           // window
	p.u32(0)                      // info
	p.zeros(16)                   // license md5
	p.u32(0)                      // crc
	p.zeros(8)                    // timestamp
	p.u32(b.str(name))            // display name
	p.zeros(8 + 8 + 4 + 4)        // targets, classifications, steam, debugger
	p.u32(uint32(len(rooms)))
	for _, r := range rooms {
		p.u32(r)
	}
	b.chunk("GEN8", p.b)
}

// entryChunk writes a count+offsets chunk whose entries are provided as
// already-encoded payloads.
func (b *containerBuilder) entryChunk(tag string, entries ...[]byte) []uint32 {
	start := b.payloadStart()
	p := &pw{}
	p.u32(uint32(len(entries)))
	off := start + 4 + 4*uint32(len(entries))
	offs := make([]uint32, len(entries))
	for i, e := range entries {
		offs[i] = off
		off += uint32(len(e))
	}
	for _, o := range offs {
		p.u32(o)
	}
	for _, e := range entries {
		p.bytes(e)
	}
	b.chunk(tag, p.b)
	return offs
}

func (b *containerBuilder) txtr(img image.Image) {
	var enc bytes.Buffer
	if err := png.Encode(&enc, img); err != nil {
		panic(err)
	}
	start := b.payloadStart()
	// one entry: count, offset table, {scaled, pngOff}, png data
	entryOff := start + 8
	pngOff := entryOff + 8
	p := &pw{}
	p.u32(1).u32(entryOff)
	p.u32(0).u32(pngOff)
	p.bytes(enc.Bytes())
	b.chunk("TXTR", p.b)
}

func (b *containerBuilder) tpag(regions ...TexRegion) {
	entries := make([][]byte, len(regions))
	for i, r := range regions {
		p := &pw{}
		p.u16(uint16(r.SrcX)).u16(uint16(r.SrcY)).u16(uint16(r.SrcW)).u16(uint16(r.SrcH))
		p.u16(uint16(r.TargetX)).u16(uint16(r.TargetY)).u16(uint16(r.TargetW)).u16(uint16(r.TargetH))
		p.u16(uint16(r.DestW)).u16(uint16(r.DestH)).u16(uint16(r.Page))
		entries[i] = p.b
	}
	b.tpagOff = b.entryChunk("TPAG", entries...)
}

func (b *containerBuilder) sprite(name string, w, h, ox, oy int, frames ...int) {
	p := &pw{}
	p.u32(b.str(name))
	p.u32(uint32(w)).u32(uint32(h))
	p.i32(0).i32(int32(w - 1)).i32(int32(h - 1)).i32(0) // margins
	p.u32(1).u32(0).u32(0)                              // transparent, smooth, preload
	p.u32(0).u32(0)                                     // bbox mode, sep masks
	p.i32(int32(ox)).i32(int32(oy))
	p.u32(uint32(len(frames)))
	for _, f := range frames {
		p.u32(b.tpagOff[f])
	}
	p.u32(0) // masks
	b.entryChunk("SPRT", p.b)
}

func (b *containerBuilder) bgnd(name string, region int) {
	p := &pw{}
	p.u32(b.str(name)).u32(0).u32(0).u32(0).u32(b.tpagOff[region])
	b.entryChunk("BGND", p.b)
}

func (b *containerBuilder) font(name string, region int, glyphs map[rune]Glyph) {
	p := &pw{}
	p.u32(b.str(name)).u32(b.str(name))
	p.u32(12).u32(0).u32(0)
	p.u16(32).u8(0).u8(0)
	p.u32(127)
	p.u32(b.tpagOff[region])
	p.f32(1).f32(1)
	p.u32(uint32(len(glyphs)))
	for ch, gl := range glyphs {
		p.u16(uint16(ch))
		p.u16(uint16(gl.SrcX)).u16(uint16(gl.SrcY)).u16(uint16(gl.SrcW)).u16(uint16(gl.SrcH))
		p.u16(uint16(int16(gl.Shift))).u16(uint16(int16(gl.Offset)))
	}
	b.entryChunk("FONT", p.b)
}

func (b *containerBuilder) path(name string, points ...PathPoint) {
	p := &pw{}
	p.u32(b.str(name)).u32(0).u32(0).u32(4)
	p.u32(uint32(len(points)))
	for _, pt := range points {
		p.f32(float32(pt.X)).f32(float32(pt.Y)).f32(float32(pt.Speed))
	}
	b.entryChunk("PATH", p.b)
}

type objtEvent struct {
	kind, subtype, code int
}

type objtDef struct {
	name   string
	sprite int
	parent int
	events []objtEvent
}

func (b *containerBuilder) objt(objs ...objtDef) {
	entries := make([][]byte, len(objs))
	for i, o := range objs {
		p := &pw{}
		p.u32(b.str(o.name))
		p.i32(int32(o.sprite))
		p.u32(1).u32(0) // visible, solid
		p.i32(0)        // depth
		p.u32(0)        // persistent
		p.i32(int32(o.parent))
		p.i32(-1) // mask
		p.u32(uint32(len(o.events)))
		for _, e := range o.events {
			p.u32(uint32(e.kind)).u32(uint32(e.subtype)).i32(int32(e.code))
		}
		entries[i] = p.b
	}
	b.entryChunk("OBJT", entries...)
}

type roomDef struct {
	name      string
	instances []RoomInstance
}

func (b *containerBuilder) room(rooms ...roomDef) {
	entries := make([][]byte, len(rooms))
	for i, r := range rooms {
		p := &pw{}
		p.u32(b.str(r.name)).u32(b.str(r.name))
		p.u32(320).u32(240).u32(30)
		p.u32(0)          // persistent
		p.u32(0xFF000000) // bg color
		p.u32(1)          // draw bg color
		p.i32(-1)         // creation code
		p.u32(0)          // flags
		p.u32(0)          // backgrounds
		p.u32(1)          // views
		p.u32(1)          // enabled
		p.i32(0).i32(0).i32(320).i32(240)
		p.i32(0).i32(0).i32(640).i32(480)
		p.i32(32).i32(32).i32(-1).i32(-1)
		p.i32(-1) // follow
		p.u32(uint32(len(r.instances)))
		for _, inst := range r.instances {
			p.i32(int32(inst.X)).i32(int32(inst.Y))
			p.i32(int32(inst.Object)).u32(inst.ID)
			p.i32(int32(inst.CreationCode))
			p.f32(float32(inst.ScaleX)).f32(float32(inst.ScaleY))
			p.u32(inst.Color).f32(float32(inst.Rotation))
		}
		p.u32(0) // tiles
		entries[i] = p.b
	}
	b.entryChunk("ROOM", entries...)
}

func (b *containerBuilder) scpt(scripts map[string]int) {
	var entries [][]byte
	for name, code := range scripts {
		p := &pw{}
		p.u32(b.str(name)).i32(int32(code))
		entries = append(entries, p.b)
	}
	b.entryChunk("SCPT", entries...)
}

func (b *containerBuilder) vari(names ...string) {
	p := &pw{}
	p.u32(uint32(len(names)))
	for _, n := range names {
		p.u32(b.str(n)).i32(int32(scopeSelf))
	}
	b.chunk("VARI", p.b)
}

func (b *containerBuilder) funcs(names ...string) {
	p := &pw{}
	p.u32(uint32(len(names)))
	for _, n := range names {
		p.u32(b.str(n))
	}
	b.chunk("FUNC", p.b)
}

type codeDef struct {
	name string
	code []byte
}

func (b *containerBuilder) code(defs ...codeDef) {
	start := b.payloadStart()
	const entrySize = 16
	headerLen := uint32(4 + 4*len(defs))
	// entries first, bytecode after them
	bcOff := start + headerLen + uint32(entrySize*len(defs))
	p := &pw{}
	p.u32(uint32(len(defs)))
	for i := range defs {
		p.u32(start + headerLen + uint32(entrySize*i))
	}
	off := bcOff
	for _, d := range defs {
		p.u32(b.str(d.name))
		p.u32(uint32(len(d.code)))
		p.u16(0).u16(0) // locals, args
		p.u32(off)
		off += uint32(len(d.code))
	}
	for _, d := range defs {
		p.bytes(d.code)
	}
	b.chunk("CODE", p.b)
}

func testImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	return img
}

// buildTestContainer assembles a small but complete game file.
func buildTestContainer(version byte) []byte {
	b := newContainer()
	b.strg(
		"game", "spr_hero", "bg_tiles", "fnt_main", "pth_walk",
		"obj_parent", "obj_hero", "room_start", "room_two",
		"scr_boot", "gml_Script_scr_boot", "gml_Object_obj_hero_Create_0",
		"x", "hp", "instance_create",
	)
	b.gen8(version, "game", 0, 1)
	b.txtr(testImage())
	b.tpag(
		TexRegion{SrcW: 4, SrcH: 4, TargetW: 4, TargetH: 4, DestW: 4, DestH: 4},
		TexRegion{SrcX: 0, SrcY: 0, SrcW: 2, SrcH: 2, TargetW: 2, TargetH: 2, DestW: 2, DestH: 2},
	)
	b.sprite("spr_hero", 4, 4, 2, 2, 0)
	b.bgnd("bg_tiles", 1)
	b.font("fnt_main", 1, map[rune]Glyph{'A': {SrcW: 2, SrcH: 2, Shift: 3}})
	b.path("pth_walk", PathPoint{X: 0, Y: 0, Speed: 1}, PathPoint{X: 10, Y: 0, Speed: 1})

	boot := new(asm).pushi(1).ret().buf
	create := new(asm).exit().buf
	b.code(
		codeDef{name: "gml_Script_scr_boot", code: boot},
		codeDef{name: "gml_Object_obj_hero_Create_0", code: create},
	)
	b.objt(
		objtDef{name: "obj_parent", sprite: -1, parent: -1},
		objtDef{name: "obj_hero", sprite: 0, parent: 0, events: []objtEvent{
			{kind: EvCreate, subtype: 0, code: 1},
		}},
	)
	b.room(
		roomDef{name: "room_start", instances: []RoomInstance{
			{X: 16, Y: 16, Object: 1, ID: 100, CreationCode: -1, ScaleX: 1, ScaleY: 1, Color: 0xFFFFFFFF},
		}},
		roomDef{name: "room_two"},
	)
	b.scpt(map[string]int{"scr_boot": 0})
	b.vari("x", "hp")
	b.funcs("instance_create")
	return b.finish()
}

func TestLoadContainer(t *testing.T) {
	d, err := Load(buildTestContainer(16))
	if err != nil {
		t.Fatal(err)
	}

	if d.BytecodeVersion != 16 {
		t.Errorf("bytecode version = %d, want 16", d.BytecodeVersion)
	}
	if d.GameName != "game" {
		t.Errorf("game name = %q", d.GameName)
	}
	if got := []int{d.RoomOrder[0], d.RoomOrder[1]}; got[0] != 0 || got[1] != 1 {
		t.Errorf("room order = %v", d.RoomOrder)
	}

	// string-offset round trip recovers asset names
	for _, want := range []string{"spr_hero", "room_start", "room_two", "scr_boot", "obj_hero"} {
		found := false
		for _, s := range d.Strings {
			if s == want {
				found = true
			}
		}
		if !found {
			t.Errorf("string table lost %q", want)
		}
	}

	if len(d.Sprites) != 1 || d.Sprites[0].Name != "spr_hero" {
		t.Fatalf("sprites = %+v", d.Sprites)
	}
	s := d.Sprites[0]
	if s.OriginX != 2 || s.OriginY != 2 || len(s.Frames) != 1 {
		t.Errorf("sprite decoded as %+v", s)
	}
	reg := d.Regions[s.Frames[0]]
	if reg.Page != 0 || reg.SrcW != 4 {
		t.Errorf("frame region = %+v", reg)
	}
	page := d.Textures[reg.Page]
	if page.Width != 4 || page.Height != 4 {
		t.Errorf("page = %dx%d, want 4x4", page.Width, page.Height)
	}
	if page.Pix[0] != 255 || page.Pix[3] != 255 {
		t.Errorf("page pixels not decoded: % x", page.Pix[:4])
	}

	if d.RoomByName("room_start") != 0 || d.RoomByName("room_two") != 1 {
		t.Error("room name lookup broken")
	}
	if d.ObjectByName("obj_hero") != 1 {
		t.Error("object name lookup broken")
	}
	if d.ScriptByName("scr_boot") != 0 {
		t.Error("script name lookup broken")
	}

	hero := d.Objects[1]
	if hero.Parent != 0 {
		t.Errorf("obj_hero parent = %d, want 0", hero.Parent)
	}
	if code, owner := d.Handler(1, EventKey{Kind: EvCreate}); code != 1 || owner != 1 {
		t.Errorf("Handler(obj_hero, create) = %d, %d", code, owner)
	}

	if len(d.Rooms[0].Instances) != 1 || d.Rooms[0].Instances[0].Object != 1 {
		t.Errorf("room instances = %+v", d.Rooms[0].Instances)
	}
	if len(d.Rooms[0].Views) != 1 || d.Rooms[0].Views[0].PortW != 640 {
		t.Errorf("room views = %+v", d.Rooms[0].Views)
	}

	// bytecode spans decode
	entry := d.CodeEntries[0]
	if entry.Name != "gml_Script_scr_boot" {
		t.Errorf("code entry name = %q", entry.Name)
	}
	in, err := Decode(entry.Bytecode(d), 0)
	if err != nil {
		t.Fatal(err)
	}
	if in.Opcode != opPushI || in.Operand16 != 1 {
		t.Errorf("decoded entry bytecode %+v", in)
	}

	if len(d.Fonts) != 1 || d.Fonts[0].Glyphs['A'].Shift != 3 {
		t.Errorf("font = %+v", d.Fonts)
	}
	if len(d.Paths) != 1 || len(d.Paths[0].Points) != 2 {
		t.Errorf("path = %+v", d.Paths)
	}
}

func TestLoadRejectsWrongVersion(t *testing.T) {
	_, err := Load(buildTestContainer(15))
	var verr *UnsupportedVersionError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want UnsupportedVersionError", err)
	}
	if verr.Version != 15 {
		t.Errorf("reported version = %d", verr.Version)
	}
}

func TestLoadErrors(t *testing.T) {
	valid := buildTestContainer(16)

	tests := []struct {
		name string
		file []byte
	}{
		{"empty", nil},
		{"bad magic", []byte("JUNK\x00\x00\x00\x00")},
		{"declared length overruns", func() []byte {
			f := append([]byte(nil), valid...)
			binary.LittleEndian.PutUint32(f[4:], uint32(len(f))) // too long
			return f
		}()},
		{"truncated chunk", valid[:len(valid)-10]},
		{"missing STRG", func() []byte {
			b := newContainer()
			p := &pw{}
			b.chunk("GEN8", p.zeros(64).b)
			return b.finish()
		}()},
	}
	for _, tt := range tests {
		if _, err := Load(tt.file); err == nil {
			t.Errorf("%s: Load succeeded, want error", tt.name)
		}
	}
}

func TestLoadDanglingRef(t *testing.T) {
	b := newContainer()
	b.strg("game", "spr_broken")
	b.gen8(16, "game")
	b.txtr(testImage())
	b.tpag(TexRegion{SrcW: 4, SrcH: 4, Page: 9}) // page 9 does not exist
	b.sprite("spr_broken", 4, 4, 0, 0, 0)
	_, err := Load(b.finish())
	var refErr *AssetRefError
	if !errors.As(err, &refErr) {
		t.Fatalf("err = %v, want AssetRefError", err)
	}
	if refErr.Table != "TPAG" {
		t.Errorf("offending table = %q, want TPAG", refErr.Table)
	}
}

func TestUnknownChunksSkipped(t *testing.T) {
	b := newContainer()
	b.strg("game")
	b.chunk("ZZZZ", []byte{1, 2, 3, 4})
	b.gen8(16, "game")
	b.chunk("AUDO", nil)
	if _, err := Load(b.finish()); err != nil {
		t.Fatalf("unknown chunk broke the load: %v", err)
	}
}
