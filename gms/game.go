package gms

import (
	"fmt"
	"io"
	"log"
	"sort"
)

// Game owns the whole simulation: the asset graph, the instance arena, the
// globals, the interpreter, and the renderer. Everything is mutated from a
// single goroutine; StepFrame advances exactly one frame in the §4.5 phase
// order.
type Game struct {
	data     *Data
	renderer Renderer

	instances map[InstanceID]*Instance
	order     []InstanceID // live ids, ascending
	nextID    InstanceID

	globals  map[uint32]Value
	builtins map[string]BuiltinFunc
	bindings []varBinding

	Keyboard Keyboard
	rng      rng
	draw     drawState
	ds       dsArenas

	room        int
	roomSpeed   int
	pendingRoom int // -1 = none
	deferCreate []InstanceID
	deferDestroy []InstanceID
	inPhase     bool

	frame uint64
	score float64
	health float64
	lives  float64

	endRequested bool

	eventStack []eventCtx
	vm         vm

	trace        TraceConfig
	warned       map[string]bool
	debug        io.Writer
	debugObjects map[int]bool
}

type eventCtx struct {
	ev    EventKey
	owner int // object whose handler is running (for event_inherited)
	self  InstanceID
	other InstanceID
}

// varBinding is the per-VARI-slot resolution computed once at load: either a
// built-in instance property, a built-in global, or the plain slot bag.
type varBinding struct {
	name   string
	bvar   *builtinVar
	global *globalVar
}

// TraceConfig mirrors the CLI trace surface.
type TraceConfig struct {
	Calls        map[string]bool // function name, or "*"
	IgnoreCalls  map[string]bool
	Events       map[string]bool // object name, or "*"
	Instructions map[string]bool // code entry name, or "*"
}

// New builds a runtime over a loaded asset graph. The renderer may be nil,
// in which case nothing is drawn.
func New(data *Data, renderer Renderer) *Game {
	if renderer == nil {
		renderer = NullRenderer{}
	}
	g := &Game{
		data:        data,
		renderer:    renderer,
		instances:   make(map[InstanceID]*Instance),
		nextID:      firstInstanceID,
		globals:     make(map[uint32]Value),
		builtins:    make(map[string]BuiltinFunc),
		room:        -1,
		pendingRoom: -1,
		draw:        defaultDrawState(),
		warned:      make(map[string]bool),
		health:      100,
		lives:       3,
	}
	g.vm.g = g
	g.rng.setSeed(0)
	registerBuiltins(g)
	g.resolveBindings()
	return g
}

// SetSeed reseeds the deterministic PRNG.
func (g *Game) SetSeed(seed int32) { g.rng.setSeed(seed) }

// SetTrace installs the trace configuration.
func (g *Game) SetTrace(t TraceConfig) { g.trace = t }

// NewTraceConfig builds a TraceConfig from CLI-style name lists.
func NewTraceConfig(calls, ignoreCalls, events, instructions []string) TraceConfig {
	set := func(names []string) map[string]bool {
		if len(names) == 0 {
			return nil
		}
		m := make(map[string]bool, len(names))
		for _, n := range names {
			m[n] = true
		}
		return m
	}
	return TraceConfig{
		Calls:        set(calls),
		IgnoreCalls:  set(ignoreCalls),
		Events:       set(events),
		Instructions: set(instructions),
	}
}

// SetDebugOutput directs trace output; nil silences it.
func (g *Game) SetDebugOutput(w io.Writer) { g.debug = w }

// SetDebugObjects marks objects whose instances get a bounding-box outline
// in the draw walk.
func (g *Game) SetDebugObjects(objects []int) {
	g.debugObjects = make(map[int]bool, len(objects))
	for _, o := range objects {
		g.debugObjects[o] = true
	}
}

// Data exposes the loaded asset graph.
func (g *Game) Data() *Data { return g.data }

// Frame is the number of completed frames.
func (g *Game) Frame() uint64 { return g.frame }

// EndRequested reports that game_end() ran.
func (g *Game) EndRequested() bool { return g.endRequested }

// RoomSpeed is the current room's step rate in frames per second.
func (g *Game) RoomSpeed() int {
	if g.roomSpeed <= 0 {
		return 30
	}
	return g.roomSpeed
}

func (g *Game) resolveBindings() {
	g.bindings = make([]varBinding, len(g.data.Variables))
	for i := range g.data.Variables {
		name := g.data.Variables[i].Name
		b := varBinding{name: name}
		if bv, ok := builtinVars[name]; ok {
			bvCopy := bv
			b.bvar = &bvCopy
		} else if gv, ok := globalVars[name]; ok {
			gvCopy := gv
			b.global = &gvCopy
		}
		g.bindings[i] = b
	}
}

func (g *Game) binding(slot uint32) varBinding {
	if int(slot) < len(g.bindings) {
		return g.bindings[slot]
	}
	return varBinding{}
}

// readInstanceVar routes a self/other/dot access through the interception
// table before the slot bag.
func (g *Game) readInstanceVar(inst *Instance, slot uint32, in *Instruction, row, col int32) (Value, error) {
	b := g.binding(slot)
	if b.bvar != nil {
		if in.RefKind == refArray {
			if b.bvar.getIdx != nil {
				return b.bvar.getIdx(g, inst, col), nil
			}
			return indexInto(b.bvar.get(g, inst), in, row, col), nil
		}
		if b.bvar.get != nil {
			return b.bvar.get(g, inst), nil
		}
		if b.bvar.getIdx != nil {
			// unindexed read of an array builtin reads element 0
			return b.bvar.getIdx(g, inst, 0), nil
		}
	}
	if b.global != nil {
		if in.RefKind == refArray && b.global.getIdx != nil {
			return b.global.getIdx(g, col), nil
		}
		if b.global.get != nil {
			return b.global.get(g), nil
		}
		if b.global.getIdx != nil {
			return b.global.getIdx(g, 0), nil
		}
	}
	return indexInto(inst.Var(slot), in, row, col), nil
}

func (g *Game) writeInstanceVar(inst *Instance, slot uint32, in *Instruction, row, col int32, val Value) error {
	b := g.binding(slot)
	if b.bvar != nil {
		if in.RefKind == refArray && b.bvar.setIdx != nil {
			return b.bvar.setIdx(g, inst, col, val)
		}
		if b.bvar.set != nil {
			return b.bvar.set(g, inst, val)
		}
		if b.bvar.setIdx != nil {
			return b.bvar.setIdx(g, inst, 0, val)
		}
	}
	if b.global != nil {
		if in.RefKind == refArray && b.global.setIdx != nil {
			return b.global.setIdx(g, col, val)
		}
		if b.global.set != nil {
			return b.global.set(g, val)
		}
		if b.global.setIdx != nil {
			return b.global.setIdx(g, 0, val)
		}
	}
	cur := inst.Var(slot)
	inst.SetVar(slot, storeInto(cur, in, row, col, val, func(nv Value) { inst.SetVar(slot, nv) }))
	return nil
}

// Instance returns a live (possibly destroy-marked) instance, or nil.
func (g *Game) Instance(id InstanceID) *Instance {
	return g.instances[id]
}

// liveIDs snapshots ascending ids of non-destroyed instances; object -1
// means all, otherwise the object or its descendants.
func (g *Game) liveIDs(object int) []InstanceID {
	ids := make([]InstanceID, 0, len(g.order))
	for _, id := range g.order {
		inst := g.instances[id]
		if inst == nil || inst.destroyed {
			continue
		}
		if object >= 0 && !g.data.IsAncestor(object, inst.Object) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (g *Game) firstOfObject(object int) *Instance {
	for _, id := range g.order {
		inst := g.instances[id]
		if inst == nil || inst.destroyed {
			continue
		}
		if g.data.IsAncestor(object, inst.Object) {
			return inst
		}
	}
	return nil
}

// spawn allocates an instance without firing events.
func (g *Game) spawn(object int, x, y float64) *Instance {
	inst := newInstance(g.nextID, g.data, object)
	g.nextID++
	inst.X, inst.Y = x, y
	inst.XStart, inst.YStart = x, y
	inst.XPrevious, inst.YPrevious = x, y
	g.instances[inst.ID] = inst
	i := sort.Search(len(g.order), func(i int) bool { return g.order[i] >= inst.ID })
	g.order = append(g.order, 0)
	copy(g.order[i+1:], g.order[i:])
	g.order[i] = inst.ID
	return inst
}

// CreateInstance creates an instance. During a frame phase the Create event
// is deferred to the flush boundary; outside one it fires immediately.
func (g *Game) CreateInstance(object int, x, y float64) (*Instance, error) {
	if object < 0 || object >= len(g.data.Objects) {
		return nil, fmt.Errorf("gms: instance_create with bad object %d", object)
	}
	inst := g.spawn(object, x, y)
	if g.inPhase {
		g.deferCreate = append(g.deferCreate, inst.ID)
		return inst, nil
	}
	if err := g.fireEvent(inst.ID, EventKey{Kind: EvCreate}, inst.ID); err != nil {
		return nil, err
	}
	inst.created = true
	return inst, nil
}

// DestroyInstance marks an instance destroyed. The Destroy event fires at
// the flush boundary; the instance stays addressable until then.
func (g *Game) DestroyInstance(id InstanceID) {
	inst := g.instances[id]
	if inst == nil || inst.destroyed {
		return
	}
	inst.destroyed = true
	g.deferDestroy = append(g.deferDestroy, id)
}

// remove drops an instance from the arena without any event.
func (g *Game) remove(id InstanceID) {
	if _, ok := g.instances[id]; !ok {
		return
	}
	delete(g.instances, id)
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// fireEvent resolves and runs one event on one instance. Absent handlers
// are a silent no-op.
func (g *Game) fireEvent(self InstanceID, ev EventKey, other InstanceID) error {
	inst := g.instances[self]
	if inst == nil {
		return nil
	}
	code, owner := g.data.Handler(inst.Object, ev)
	if code < 0 {
		return nil
	}
	return g.runEvent(self, ev, owner, code, other)
}

func (g *Game) runEvent(self InstanceID, ev EventKey, owner, code int, other InstanceID) error {
	inst := g.instances[self]
	if inst == nil {
		return nil
	}
	if g.traceEvent(g.data.Objects[inst.Object].Name) {
		g.tracef("event %s on %s (%d)", EventName(ev), g.data.Objects[inst.Object].Name, self)
	}
	g.eventStack = append(g.eventStack, eventCtx{ev: ev, owner: owner, self: self, other: other})
	_, err := g.vm.run(code, self, other, nil)
	g.eventStack = g.eventStack[:len(g.eventStack)-1]
	return err
}

// eventInherited re-dispatches the current event one level up the parent
// chain of the handler currently in progress.
func (g *Game) eventInherited() error {
	if len(g.eventStack) == 0 {
		return nil
	}
	ctx := g.eventStack[len(g.eventStack)-1]
	code, owner := g.data.HandlerAbove(ctx.owner, ctx.ev)
	if code < 0 {
		return nil
	}
	return g.runEvent(ctx.self, ctx.ev, owner, code, ctx.other)
}

func (g *Game) currentEventName() string {
	if len(g.eventStack) == 0 {
		return "none"
	}
	return EventName(g.eventStack[len(g.eventStack)-1].ev)
}

// flush processes deferred creations (Create events in id order), then
// deferred destructions (Destroy, then removal).
func (g *Game) flush() error {
	for len(g.deferCreate) > 0 {
		batch := g.deferCreate
		g.deferCreate = nil
		sort.Slice(batch, func(i, j int) bool { return batch[i] < batch[j] })
		for _, id := range batch {
			inst := g.instances[id]
			if inst == nil || inst.created {
				continue
			}
			inst.created = true
			if inst.destroyed {
				continue
			}
			if err := g.fireEvent(id, EventKey{Kind: EvCreate}, id); err != nil {
				return err
			}
		}
	}
	for len(g.deferDestroy) > 0 {
		batch := g.deferDestroy
		g.deferDestroy = nil
		for _, id := range batch {
			if g.instances[id] == nil {
				continue
			}
			if err := g.fireEvent(id, EventKey{Kind: EvDestroy}, id); err != nil {
				return err
			}
			g.remove(id)
		}
	}
	return nil
}

// StepFrame advances the simulation one frame in the authoritative phase
// order and performs the draw walk.
func (g *Game) StepFrame() error {
	if g.room < 0 {
		return fmt.Errorf("gms: no room loaded")
	}

	// 1. input snapshot
	g.Keyboard.Latch()

	g.inPhase = true
	defer func() { g.inPhase = false }()

	// 2. begin step
	for _, id := range g.liveIDs(-1) {
		if err := g.fireEvent(id, EventKey{Kind: EvStep, Subtype: EvStepBegin}, id); err != nil {
			return err
		}
	}

	// 3. alarms
	for _, id := range g.liveIDs(-1) {
		inst := g.instances[id]
		if inst == nil || inst.destroyed {
			continue
		}
		for k := 0; k < alarmCount; k++ {
			if inst.Alarms[k] < 0 {
				continue
			}
			inst.Alarms[k]--
			if inst.Alarms[k] == 0 {
				inst.Alarms[k] = -1
				if err := g.fireEvent(id, EventKey{Kind: EvAlarm, Subtype: k}, id); err != nil {
					return err
				}
			}
		}
	}

	// 4. keyboard events
	if err := g.keyboardPhase(); err != nil {
		return err
	}

	// 5. step + motion + paths
	for _, id := range g.liveIDs(-1) {
		if err := g.fireEvent(id, EventKey{Kind: EvStep, Subtype: EvStepNormal}, id); err != nil {
			return err
		}
	}
	for _, id := range g.liveIDs(-1) {
		inst := g.instances[id]
		if inst == nil || inst.destroyed {
			continue
		}
		inst.integrate()
		if err := g.advancePath(inst); err != nil {
			return err
		}
	}

	// 6. collisions
	if err := g.collisionPhase(); err != nil {
		return err
	}

	// 7. end step
	for _, id := range g.liveIDs(-1) {
		if err := g.fireEvent(id, EventKey{Kind: EvStep, Subtype: EvStepEnd}, id); err != nil {
			return err
		}
	}

	// 8. flush boundary
	if err := g.flush(); err != nil {
		return err
	}
	if g.pendingRoom != -1 {
		target := g.pendingRoom
		g.pendingRoom = -1
		if err := g.gotoRoom(target); err != nil {
			return err
		}
	}

	// 9. animate
	for _, id := range g.liveIDs(-1) {
		inst := g.instances[id]
		inst.ImageIndex += inst.ImageSpeed
	}

	// 10. draw walk
	if err := g.drawFrame(); err != nil {
		return err
	}

	g.frame++
	return nil
}

func (g *Game) keyboardPhase() error {
	for key := VkAnykey + 1; key < keyCount; key++ {
		if g.Keyboard.Pressed(key) {
			if err := g.keyEvent(EvKeyPress, key); err != nil {
				return err
			}
		}
	}
	for key := VkAnykey + 1; key < keyCount; key++ {
		if g.Keyboard.Held(key) {
			if err := g.keyEvent(EvKeyboard, key); err != nil {
				return err
			}
		}
	}
	for key := VkAnykey + 1; key < keyCount; key++ {
		if g.Keyboard.Released(key) {
			if err := g.keyEvent(EvKeyRelease, key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Game) keyEvent(kind, key int) error {
	for _, id := range g.liveIDs(-1) {
		inst := g.instances[id]
		if inst == nil || inst.destroyed {
			continue
		}
		if err := g.fireEvent(id, EventKey{Kind: kind, Subtype: key}, id); err != nil {
			return err
		}
	}
	return nil
}

// collisionPhase fires Collision events for every ordered pair with
// intersecting bounding boxes where the first subscribes to the second's
// object (or an ancestor of it).
func (g *Game) collisionPhase() error {
	ids := g.liveIDs(-1)
	for _, aid := range ids {
		a := g.instances[aid]
		if a == nil || a.destroyed {
			continue
		}
		al, at, ar, ab, ok := a.bbox(g.data)
		if !ok {
			continue
		}
		for _, bid := range ids {
			if bid == aid {
				continue
			}
			b := g.instances[bid]
			if b == nil || b.destroyed {
				continue
			}
			subtype, code, owner := g.collisionHandler(a.Object, b.Object)
			if code < 0 {
				continue
			}
			bl, bt, br, bb, ok := b.bbox(g.data)
			if !ok || !bboxIntersect(al, at, ar, ab, bl, bt, br, bb) {
				continue
			}
			if err := g.runEvent(aid, EventKey{Kind: EvCollision, Subtype: subtype}, owner, code, bid); err != nil {
				return err
			}
		}
	}
	return nil
}

// collisionHandler finds a Collision handler on object a (or its ancestors)
// whose subtype matches object b or one of b's ancestors.
func (g *Game) collisionHandler(a, b int) (subtype, code, owner int) {
	for target := b; target >= 0; target = g.data.Objects[target].Parent {
		if c, o := g.data.Handler(a, EventKey{Kind: EvCollision, Subtype: target}); c >= 0 {
			return target, c, o
		}
	}
	return -1, -1, -1
}

// warnf logs a runtime warning once per site.
func (g *Game) warnf(site, format string, args ...interface{}) {
	if g.warned[site] {
		return
	}
	g.warned[site] = true
	log.Printf("gms: warning: "+format, args...)
}

func (g *Game) tracef(format string, args ...interface{}) {
	if g.debug == nil {
		return
	}
	fmt.Fprintf(g.debug, format+"\n", args...)
}

func (g *Game) traceCall(name string) bool {
	if g.trace.Calls == nil || g.trace.IgnoreCalls[name] {
		return false
	}
	return g.trace.Calls["*"] || g.trace.Calls[name]
}

func (g *Game) traceEvent(object string) bool {
	if g.trace.Events == nil {
		return false
	}
	return g.trace.Events["*"] || g.trace.Events[object]
}

func (g *Game) traceInstructions(entry string) bool {
	if g.trace.Instructions == nil {
		return false
	}
	return g.trace.Instructions["*"] || g.trace.Instructions[entry]
}
