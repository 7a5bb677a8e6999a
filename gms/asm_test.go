package gms

import (
	"encoding/binary"
	"math"
)

// asm assembles bytecode for the interpreter tests.
type asm struct {
	buf []byte
}

func (a *asm) word(w uint32) *asm {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], w)
	a.buf = append(a.buf, b[:]...)
	return a
}

func (a *asm) op(opcode byte, t1, t2 byte, op16 int16) *asm {
	return a.word(uint32(uint16(op16)) | uint32(t1|t2<<4)<<16 | uint32(opcode)<<24)
}

func (a *asm) op24(opcode byte, disp int32) *asm {
	return a.word(uint32(disp)&0xFFFFFF | uint32(opcode)<<24)
}

func (a *asm) pushd(f float64) *asm {
	a.op(opPush, typeDouble, 0, 0)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
	a.buf = append(a.buf, b[:]...)
	return a
}

func (a *asm) pushs(strID uint32) *asm {
	a.op(opPush, typeString, 0, 0)
	return a.word(strID)
}

func (a *asm) pushi(n int16) *asm {
	return a.op(opPushI, typeInt16, 0, n)
}

func (a *asm) ref(slot uint32, kind byte) *asm {
	return a.word(slot&0xFFFFFF | uint32(kind)<<24)
}

func (a *asm) pushVar(scope int, slot uint32, kind byte) *asm {
	a.op(opPush, typeVar, 0, int16(scope))
	return a.ref(slot, kind)
}

func (a *asm) popVar(scope int, slot uint32, kind byte) *asm {
	a.op(opPop, typeVar, 0, int16(scope))
	return a.ref(slot, kind)
}

func (a *asm) binop(opcode byte) *asm { return a.op(opcode, typeDouble, typeDouble, 0) }

func (a *asm) cmp(kind int16) *asm { return a.op(opCmp, typeDouble, typeDouble, kind<<8) }

func (a *asm) call(funcID uint32, argc int16) *asm {
	a.op(opCall, typeInt32, 0, argc)
	return a.word(funcID)
}

func (a *asm) ret() *asm  { return a.op(opRet, typeVar, 0, 0) }
func (a *asm) exit() *asm { return a.op(opExit, 0, 0, 0) }
func (a *asm) popz() *asm { return a.op(opPopz, 0, 0, 0) }

// testWorld builds a minimal resolved asset graph for interpreter and engine
// tests. Mutate it through the returned helpers, then call finish.
type testWorld struct {
	d *Data
}

func newTestWorld() *testWorld {
	return &testWorld{d: &Data{BytecodeVersion: 16}}
}

func (w *testWorld) addVar(name string) uint32 {
	w.d.Variables = append(w.d.Variables, VarEntry{Name: name, Scope: scopeSelf})
	return uint32(len(w.d.Variables) - 1)
}

func (w *testWorld) addFunc(name string) uint32 {
	w.d.Functions = append(w.d.Functions, FuncEntry{Name: name})
	return uint32(len(w.d.Functions) - 1)
}

func (w *testWorld) addString(s string) uint32 {
	w.d.Strings = append(w.d.Strings, s)
	return uint32(len(w.d.Strings) - 1)
}

func (w *testWorld) addCode(name string, args, locals int, code []byte) int {
	off := len(w.d.Code)
	w.d.Code = append(w.d.Code, code...)
	w.d.CodeEntries = append(w.d.CodeEntries, CodeEntry{
		Name: name, Args: args, Locals: locals, Offset: off, Length: len(code),
	})
	return len(w.d.CodeEntries) - 1
}

func (w *testWorld) addScript(name string, code int) int {
	w.d.Scripts = append(w.d.Scripts, Script{Name: name, Code: code})
	return len(w.d.Scripts) - 1
}

func (w *testWorld) addObject(name string, parent int) int {
	w.d.Objects = append(w.d.Objects, Object{
		Name: name, Sprite: -1, Parent: parent, Visible: true,
		Events: make(map[EventKey]int),
	})
	return len(w.d.Objects) - 1
}

func (w *testWorld) addSprite(name string, width, height, ox, oy int) int {
	w.d.Sprites = append(w.d.Sprites, Sprite{
		Name: name, Width: width, Height: height,
		MarginRight: width - 1, MarginBot: height - 1,
		OriginX: ox, OriginY: oy,
	})
	return len(w.d.Sprites) - 1
}

func (w *testWorld) addRoom(name string, width, height, speed int) int {
	w.d.Rooms = append(w.d.Rooms, Room{
		Name: name, Width: width, Height: height, Speed: speed,
		CreationCode: -1,
	})
	w.d.RoomOrder = append(w.d.RoomOrder, len(w.d.Rooms)-1)
	return len(w.d.Rooms) - 1
}

func (w *testWorld) setEvent(object int, ev EventKey, code int) {
	w.d.Objects[object].Events[ev] = code
}

func (w *testWorld) placeInstance(room, object int, x, y float64) {
	r := &w.d.Rooms[room]
	r.Instances = append(r.Instances, RoomInstance{
		X: x, Y: y, Object: object, ID: uint32(len(r.Instances) + 1),
		CreationCode: -1, ScaleX: 1, ScaleY: 1, Color: 0xFFFFFFFF,
	})
}

func (w *testWorld) addPage(width, height int, fill [4]byte) int {
	pix := make([]byte, width*height*4)
	for i := 0; i < len(pix); i += 4 {
		copy(pix[i:], fill[:])
	}
	w.d.Textures = append(w.d.Textures, TexturePage{Width: width, Height: height, Pix: pix})
	return len(w.d.Textures) - 1
}

func (w *testWorld) addRegion(page, x, y, width, height int) int {
	w.d.Regions = append(w.d.Regions, TexRegion{
		Page: page, SrcX: x, SrcY: y, SrcW: width, SrcH: height,
		TargetW: width, TargetH: height, DestW: width, DestH: height,
	})
	return len(w.d.Regions) - 1
}

// game resolves the graph and builds a runtime with no renderer.
func (w *testWorld) game() (*Game, error) {
	if len(w.d.Rooms) == 0 {
		w.addRoom("room_test", 320, 240, 30)
	}
	if err := w.d.resolve(); err != nil {
		return nil, err
	}
	return New(w.d, nil), nil
}
