package gms

import (
	"fmt"
)

// TexturePage is a decoded TXTR entry: raw RGBA pixels, uploaded to the GPU
// lazily on first draw.
type TexturePage struct {
	Width  int
	Height int
	Pix    []byte // RGBA, 4 bytes per pixel
}

// TexRegion is a TPAG entry: a sub-rectangle of a texture page plus the
// placement metadata the packer recorded.
type TexRegion struct {
	SrcX, SrcY       int
	SrcW, SrcH       int
	TargetX, TargetY int
	TargetW, TargetH int
	DestW, DestH     int
	Page             int
}

// Sprite is a SPRT entry.
type Sprite struct {
	Name        string
	Width       int
	Height      int
	MarginLeft  int
	MarginRight int
	MarginBot   int
	MarginTop   int
	Transparent bool
	Smooth      bool
	BBoxMode    int
	SepMasks    int
	OriginX     int
	OriginY     int
	Frames      []int // TPAG indices
	Masks       [][]byte
}

// Background is a BGND entry.
type Background struct {
	Name   string
	Region int // TPAG index
}

// EventKey addresses one handler in an object's event table.
type EventKey struct {
	Kind    int
	Subtype int
}

// Object is an OBJT entry. Parent is -1 for none.
type Object struct {
	Name       string
	Sprite     int
	Visible    bool
	Solid      bool
	Persistent bool
	Depth      int
	Parent     int
	Mask       int
	Events     map[EventKey]int // code index per (kind, subtype)
}

// RoomBackground is one background layer of a room.
type RoomBackground struct {
	Enabled    bool
	Foreground bool
	Index      int // BGND index, -1 for none
	X, Y       int
	TileX      bool
	TileY      bool
	SpeedX     int
	SpeedY     int
	Stretch    bool
}

// RoomView is one view/port pair.
type RoomView struct {
	Enabled                bool
	ViewX, ViewY           int
	ViewW, ViewH           int
	PortX, PortY           int
	PortW, PortH           int
	BorderX, BorderY       int
	SpeedX, SpeedY         int
	Follow                 int // object index, -1 for none
}

// RoomInstance is a placed instance in the room editor.
type RoomInstance struct {
	X, Y         float64
	Object       int
	ID           uint32
	CreationCode int // code index, -1 for none
	ScaleX       float64
	ScaleY       float64
	Color        uint32 // ARGB blend
	Rotation     float64
}

// RoomTile is a static tile.
type RoomTile struct {
	X, Y       float64
	Background int
	SrcX, SrcY int
	W, H       int
	Depth      int
	ID         uint32
	ScaleX     float64
	ScaleY     float64
	Color      uint32
}

// Room is a ROOM entry.
type Room struct {
	Name         string
	Caption      string
	Width        int
	Height       int
	Speed        int
	Persistent   bool
	BGColor      uint32
	DrawBGColor  bool
	CreationCode int // code index, -1 for none
	Backgrounds  []RoomBackground
	Views        []RoomView
	Instances    []RoomInstance
	Tiles        []RoomTile
}

// Glyph is one font glyph.
type Glyph struct {
	SrcX, SrcY int
	SrcW, SrcH int
	Shift      int
	Offset     int
}

// Font is a FONT entry. Glyph source rects are relative to the font's
// texture region.
type Font struct {
	Name    string
	Size    int
	Region  int // TPAG index
	ScaleX  float64
	ScaleY  float64
	Glyphs  map[rune]Glyph
	LineH   int
}

// PathPoint is one polyline vertex with its speed weight.
type PathPoint struct {
	X, Y  float64
	Speed float64
}

// Path is a PATH entry.
type Path struct {
	Name      string
	Smooth    bool
	Closed    bool
	Precision int
	Points    []PathPoint
}

// CodeEntry is a CODE entry: a bytecode span into the shared blob.
type CodeEntry struct {
	Name   string
	Locals int
	Args   int
	Offset int // byte offset into Data.Code
	Length int
}

// Bytecode returns the instruction bytes of the entry.
func (c *CodeEntry) Bytecode(d *Data) []byte {
	return d.Code[c.Offset : c.Offset+c.Length]
}

// Script is a SCPT entry binding a name to a code entry.
type Script struct {
	Name string
	Code int
}

// VarEntry is a VARI symbol: a slot id with its name and scope kind.
type VarEntry struct {
	Name  string
	Scope int
}

// FuncEntry is a FUNC symbol referenced by call instructions.
type FuncEntry struct {
	Name string
}

// Data is the asset graph reconstructed from the FORM container. Immutable
// after Load; everything references entries by table index.
type Data struct {
	GameName        string
	BytecodeVersion int
	WindowWidth     int
	WindowHeight    int
	RoomOrder       []int

	Strings     []string
	Textures    []TexturePage
	Regions     []TexRegion
	Sprites     []Sprite
	Backgrounds []Background
	Objects     []Object
	Rooms       []Room
	Fonts       []Font
	Paths       []Path
	Scripts     []Script
	Variables   []VarEntry
	Functions   []FuncEntry
	CodeEntries []CodeEntry
	Code        []byte

	stringByOffset map[uint32]int
	scriptByName   map[string]int
	roomByName     map[string]int
	objectByName   map[string]int

	// dispatch memo: object index -> event -> code index (-1 = absent),
	// resolved through the parent chain.
	handlerMemo []map[EventKey]int
}

// AssetRefError is a dangling cross-reference found during resolution.
type AssetRefError struct {
	Table string
	Index int
	Ref   string
	Value int
}

func (e *AssetRefError) Error() string {
	return fmt.Sprintf("gms: %s[%d]: dangling %s reference %d", e.Table, e.Index, e.Ref, e.Value)
}

// resolve validates every cross-reference and builds the lookup maps.
// Called once by Load after all chunks are in.
func (d *Data) resolve() error {
	d.scriptByName = make(map[string]int, len(d.Scripts))
	for i, s := range d.Scripts {
		if s.Code < 0 || s.Code >= len(d.CodeEntries) {
			return &AssetRefError{Table: "SCPT", Index: i, Ref: "CODE", Value: s.Code}
		}
		d.scriptByName[s.Name] = i
	}

	d.roomByName = make(map[string]int, len(d.Rooms))
	for i := range d.Rooms {
		d.roomByName[d.Rooms[i].Name] = i
	}

	d.objectByName = make(map[string]int, len(d.Objects))
	for i := range d.Objects {
		d.objectByName[d.Objects[i].Name] = i
	}

	for i, r := range d.Regions {
		if r.Page < 0 || r.Page >= len(d.Textures) {
			return &AssetRefError{Table: "TPAG", Index: i, Ref: "TXTR", Value: r.Page}
		}
	}
	for i := range d.Sprites {
		for _, f := range d.Sprites[i].Frames {
			if f < 0 || f >= len(d.Regions) {
				return &AssetRefError{Table: "SPRT", Index: i, Ref: "TPAG", Value: f}
			}
		}
	}
	for i, b := range d.Backgrounds {
		if b.Region < 0 || b.Region >= len(d.Regions) {
			return &AssetRefError{Table: "BGND", Index: i, Ref: "TPAG", Value: b.Region}
		}
	}
	for i, f := range d.Fonts {
		if f.Region < 0 || f.Region >= len(d.Regions) {
			return &AssetRefError{Table: "FONT", Index: i, Ref: "TPAG", Value: f.Region}
		}
	}
	for i := range d.Objects {
		o := &d.Objects[i]
		if o.Sprite >= len(d.Sprites) {
			return &AssetRefError{Table: "OBJT", Index: i, Ref: "SPRT", Value: o.Sprite}
		}
		if o.Parent >= len(d.Objects) {
			return &AssetRefError{Table: "OBJT", Index: i, Ref: "OBJT", Value: o.Parent}
		}
		for ev, code := range o.Events {
			if code < 0 || code >= len(d.CodeEntries) {
				return &AssetRefError{Table: "OBJT", Index: i, Ref: fmt.Sprintf("CODE (event %d,%d)", ev.Kind, ev.Subtype), Value: code}
			}
		}
	}
	for i := range d.Rooms {
		r := &d.Rooms[i]
		if r.CreationCode >= len(d.CodeEntries) {
			return &AssetRefError{Table: "ROOM", Index: i, Ref: "CODE", Value: r.CreationCode}
		}
		for _, inst := range r.Instances {
			if inst.Object < 0 || inst.Object >= len(d.Objects) {
				return &AssetRefError{Table: "ROOM", Index: i, Ref: "OBJT", Value: inst.Object}
			}
			if inst.CreationCode >= len(d.CodeEntries) {
				return &AssetRefError{Table: "ROOM", Index: i, Ref: "CODE", Value: inst.CreationCode}
			}
		}
		for _, t := range r.Tiles {
			if t.Background < 0 || t.Background >= len(d.Backgrounds) {
				return &AssetRefError{Table: "ROOM", Index: i, Ref: "BGND", Value: t.Background}
			}
		}
	}
	for _, ri := range d.RoomOrder {
		if ri < 0 || ri >= len(d.Rooms) {
			return &AssetRefError{Table: "GEN8", Index: 0, Ref: "ROOM", Value: ri}
		}
	}

	d.handlerMemo = make([]map[EventKey]int, len(d.Objects))
	return nil
}

// Handler resolves an event handler for an object, walking the parent chain.
// Returns the code index and the object that defines it, or -1 if absent.
func (d *Data) Handler(object int, ev EventKey) (code, owner int) {
	if object < 0 || object >= len(d.Objects) {
		return -1, -1
	}
	memo := d.handlerMemo[object]
	if memo == nil {
		memo = make(map[EventKey]int)
		d.handlerMemo[object] = memo
	} else if c, ok := memo[ev]; ok {
		if c < 0 {
			return -1, -1
		}
		// memo stores the defining object in the high bits
		return c & 0xFFFFFF, c >> 24
	}
	for o := object; o >= 0; o = d.Objects[o].Parent {
		if c, ok := d.Objects[o].Events[ev]; ok {
			memo[ev] = c | o<<24
			return c, o
		}
	}
	memo[ev] = -1
	return -1, -1
}

// HandlerAbove resolves a handler strictly above the given object in the
// chain, for event_inherited.
func (d *Data) HandlerAbove(object int, ev EventKey) (code, owner int) {
	if object < 0 || object >= len(d.Objects) {
		return -1, -1
	}
	parent := d.Objects[object].Parent
	return d.Handler(parent, ev)
}

// IsAncestor reports whether anc equals obj or is an ancestor of obj.
func (d *Data) IsAncestor(anc, obj int) bool {
	for o := obj; o >= 0; o = d.Objects[o].Parent {
		if o == anc {
			return true
		}
	}
	return false
}

// ScriptByName returns the script index, or -1.
func (d *Data) ScriptByName(name string) int {
	if i, ok := d.scriptByName[name]; ok {
		return i
	}
	return -1
}

// RoomByName returns the room index, or -1.
func (d *Data) RoomByName(name string) int {
	if i, ok := d.roomByName[name]; ok {
		return i
	}
	return -1
}

// ObjectByName returns the object index, or -1.
func (d *Data) ObjectByName(name string) int {
	if i, ok := d.objectByName[name]; ok {
		return i
	}
	return -1
}

// StringAt returns the string table entry for a STRG file offset.
func (d *Data) StringAt(off uint32) (string, bool) {
	i, ok := d.stringByOffset[off]
	if !ok {
		return "", false
	}
	return d.Strings[i], true
}
