package gms

import (
	"fmt"
	"math"
	"sort"
)

// Start loads the first room (or an explicit index) and fires the initial
// event sequence. Call once before stepping frames.
func (g *Game) Start(room int) error {
	if room < 0 {
		if len(g.data.RoomOrder) > 0 {
			room = g.data.RoomOrder[0]
		} else if len(g.data.Rooms) > 0 {
			room = 0
		} else {
			return fmt.Errorf("gms: container has no rooms")
		}
	}
	return g.gotoRoom(room)
}

// GotoRoom latches a pending room change; it takes effect at the next flush
// boundary. Called outside a frame it switches immediately.
func (g *Game) GotoRoom(room int) error {
	if room < 0 || room >= len(g.data.Rooms) {
		return fmt.Errorf("gms: room_goto with bad room %d", room)
	}
	if g.inPhase {
		g.pendingRoom = room
		return nil
	}
	return g.gotoRoom(room)
}

// roomOrderPos locates a room in the GEN8 play order.
func (g *Game) roomOrderPos() int {
	for i, r := range g.data.RoomOrder {
		if r == g.room {
			return i
		}
	}
	return -1
}

// NextRoom returns the room after the current one in play order, or -1.
func (g *Game) NextRoom() int {
	i := g.roomOrderPos()
	if i >= 0 && i+1 < len(g.data.RoomOrder) {
		return g.data.RoomOrder[i+1]
	}
	return -1
}

// PreviousRoom returns the room before the current one in play order, or -1.
func (g *Game) PreviousRoom() int {
	i := g.roomOrderPos()
	if i > 0 {
		return g.data.RoomOrder[i-1]
	}
	return -1
}

// CurrentRoom returns the active room index.
func (g *Game) CurrentRoom() int { return g.room }

// gotoRoom performs the transition: Room End on non-persistent instances, removal of
// non-persistent instances with no Destroy event, then load of the target.
func (g *Game) gotoRoom(room int) error {
	if room < 0 || room >= len(g.data.Rooms) {
		return fmt.Errorf("gms: no room %d", room)
	}

	if g.room >= 0 {
		for _, id := range g.liveIDs(-1) {
			inst := g.instances[id]
			if inst == nil || inst.Persistent {
				continue
			}
			if err := g.fireEvent(id, EventKey{Kind: EvOther, Subtype: EvOtherRoomEnd}, id); err != nil {
				return err
			}
		}
		for _, id := range append([]InstanceID(nil), g.order...) {
			inst := g.instances[id]
			if inst != nil && !inst.Persistent {
				g.remove(id)
			}
		}
	}

	g.room = room
	r := &g.data.Rooms[room]
	g.roomSpeed = r.Speed

	// static instances get fresh ids, in instance-list order
	created := make([]InstanceID, 0, len(r.Instances))
	for i := range r.Instances {
		ri := &r.Instances[i]
		inst := g.spawn(ri.Object, ri.X, ri.Y)
		inst.ImageXScale = ri.ScaleX
		inst.ImageYScale = ri.ScaleY
		inst.ImageAngle = ri.Rotation
		inst.ImageBlend = ri.Color & 0xFFFFFF
		created = append(created, inst.ID)
	}

	// per-instance creation code, then Create, in list order
	for i, id := range created {
		ri := &r.Instances[i]
		inst := g.instances[id]
		if inst == nil {
			continue
		}
		if ri.CreationCode >= 0 {
			g.eventStack = append(g.eventStack, eventCtx{ev: EventKey{Kind: EvCreate}, owner: inst.Object, self: id, other: id})
			_, err := g.vm.run(ri.CreationCode, id, id, nil)
			g.eventStack = g.eventStack[:len(g.eventStack)-1]
			if err != nil {
				return err
			}
		}
		if err := g.fireEvent(id, EventKey{Kind: EvCreate}, id); err != nil {
			return err
		}
		inst.created = true
	}

	// room creation code runs with no self
	if r.CreationCode >= 0 {
		g.eventStack = append(g.eventStack, eventCtx{ev: EventKey{Kind: EvOther, Subtype: EvOtherRoomStart}, owner: -1})
		_, err := g.vm.run(r.CreationCode, 0, 0, nil)
		g.eventStack = g.eventStack[:len(g.eventStack)-1]
		if err != nil {
			return err
		}
	}

	// Room Start on every instance, persistent carry-overs included
	for _, id := range g.liveIDs(-1) {
		if err := g.fireEvent(id, EventKey{Kind: EvOther, Subtype: EvOtherRoomStart}, id); err != nil {
			return err
		}
	}
	return nil
}

// advancePath moves a path follower one step and fires Path End.
func (g *Game) advancePath(inst *Instance) error {
	if inst.PathIndex < 0 || inst.PathIndex >= len(g.data.Paths) {
		return nil
	}
	path := &g.data.Paths[inst.PathIndex]
	length := path.length()
	if length <= 0 {
		return nil
	}
	inst.PathPosition += inst.PathSpeed / length
	if math.Abs(inst.PathPosition-1) < 1e-9 {
		// absorb rounding drift so a whole number of steps lands on the end
		inst.PathPosition = 1
	}
	done := false
	if inst.PathPosition >= 1 {
		switch inst.PathEndAction {
		case 1, 2: // restart / loop
			inst.PathPosition -= math.Floor(inst.PathPosition)
		case 3: // reverse
			inst.PathPosition = 1
			inst.PathSpeed = -inst.PathSpeed
		default: // stop
			inst.PathPosition = 1
			done = true
		}
	}
	if inst.PathPosition < 0 {
		// reversed follower reached the start
		inst.PathPosition = 0
		inst.PathSpeed = -inst.PathSpeed
	}
	x, y := path.point(inst.PathPosition)
	inst.X = inst.pathStartX + x
	inst.Y = inst.pathStartY + y
	if done {
		inst.PathIndex = -1
		return g.fireEvent(inst.ID, EventKey{Kind: EvOther, Subtype: EvOtherPathEnd}, inst.ID)
	}
	return nil
}

// length is the polyline length of the path.
func (p *Path) length() float64 {
	var total float64
	for i := 1; i < len(p.Points); i++ {
		total += math.Hypot(p.Points[i].X-p.Points[i-1].X, p.Points[i].Y-p.Points[i-1].Y)
	}
	if p.Closed && len(p.Points) > 1 {
		last := p.Points[len(p.Points)-1]
		total += math.Hypot(p.Points[0].X-last.X, p.Points[0].Y-last.Y)
	}
	return total
}

// point interpolates the polyline at a normalized position, relative to the
// first point.
func (p *Path) point(pos float64) (float64, float64) {
	if len(p.Points) == 0 {
		return 0, 0
	}
	first := p.Points[0]
	if len(p.Points) == 1 {
		return 0, 0
	}
	if pos <= 0 {
		return 0, 0
	}
	total := p.length()
	target := pos * total
	pts := p.Points
	n := len(pts)
	segs := n - 1
	if p.Closed {
		segs = n
	}
	var walked float64
	for i := 0; i < segs; i++ {
		a := pts[i]
		b := pts[(i+1)%n]
		seg := math.Hypot(b.X-a.X, b.Y-a.Y)
		if walked+seg >= target && seg > 0 {
			t := (target - walked) / seg
			return a.X + (b.X-a.X)*t - first.X, a.Y + (b.Y-a.Y)*t - first.Y
		}
		walked += seg
	}
	last := pts[segs%n]
	return last.X - first.X, last.Y - first.Y
}

// drawFrame runs the §4.6 draw walk: for each enabled view, backgrounds,
// tiles by depth, instances by depth descending (stable by id), then
// foregrounds.
func (g *Game) drawFrame() error {
	r := &g.data.Rooms[g.room]

	w, h := g.backbufferSize()
	g.renderer.Begin(w, h, r.BGColor&0xFFFFFF)

	views := g.enabledViews()
	for _, v := range views {
		g.renderer.SetView(v)

		if err := g.drawBackgrounds(r, false); err != nil {
			return err
		}
		g.drawTiles(r)
		if err := g.drawInstances(); err != nil {
			return err
		}
		if err := g.drawBackgrounds(r, true); err != nil {
			return err
		}
	}

	// GUI pass: screen space, after every view
	if err := g.drawGUI(w, h); err != nil {
		return err
	}

	return g.renderer.Present()
}

func (g *Game) drawGUI(w, h int) error {
	ev := EventKey{Kind: EvDraw, Subtype: EvDrawGUI}
	viewSet := false
	for _, id := range g.liveIDs(-1) {
		inst := g.instances[id]
		if inst == nil || inst.destroyed || !inst.Visible {
			continue
		}
		code, owner := g.data.Handler(inst.Object, ev)
		if code < 0 {
			continue
		}
		if !viewSet {
			g.renderer.SetView(View{SrcW: float64(w), SrcH: float64(h), PortW: w, PortH: h})
			viewSet = true
		}
		if err := g.runEvent(id, ev, owner, code, id); err != nil {
			return err
		}
	}
	return nil
}

// backbufferSize is the union of the enabled ports, or the room size when
// no view is enabled.
func (g *Game) backbufferSize() (int, int) {
	r := &g.data.Rooms[g.room]
	w, h := 0, 0
	for i := range r.Views {
		v := &r.Views[i]
		if !v.Enabled {
			continue
		}
		if v.PortX+v.PortW > w {
			w = v.PortX + v.PortW
		}
		if v.PortY+v.PortH > h {
			h = v.PortY + v.PortH
		}
	}
	if w == 0 || h == 0 {
		w, h = r.Width, r.Height
	}
	return w, h
}

func (g *Game) enabledViews() []View {
	r := &g.data.Rooms[g.room]
	var views []View
	for i := range r.Views {
		v := &r.Views[i]
		if !v.Enabled {
			continue
		}
		views = append(views, View{
			SrcX: float64(v.ViewX), SrcY: float64(v.ViewY),
			SrcW: float64(v.ViewW), SrcH: float64(v.ViewH),
			PortX: v.PortX, PortY: v.PortY,
			PortW: v.PortW, PortH: v.PortH,
		})
	}
	if len(views) == 0 {
		views = append(views, View{
			SrcW: float64(r.Width), SrcH: float64(r.Height),
			PortW: r.Width, PortH: r.Height,
		})
	}
	return views
}

func (g *Game) drawBackgrounds(r *Room, foreground bool) error {
	for i := range r.Backgrounds {
		bg := &r.Backgrounds[i]
		if !bg.Enabled || bg.Foreground != foreground || bg.Index < 0 {
			continue
		}
		def := &g.data.Backgrounds[bg.Index]
		reg := &g.data.Regions[def.Region]
		xs := []float64{float64(bg.X)}
		ys := []float64{float64(bg.Y)}
		if bg.TileX {
			xs = tileOffsets(float64(bg.X), float64(reg.SrcW), float64(r.Width))
		}
		if bg.TileY {
			ys = tileOffsets(float64(bg.Y), float64(reg.SrcH), float64(r.Height))
		}
		for _, y := range ys {
			for _, x := range xs {
				g.renderer.Submit(DrawCmd{
					Kind: CmdQuad,
					Page: reg.Page,
					SrcX: reg.SrcX, SrcY: reg.SrcY,
					SrcW: reg.SrcW, SrcH: reg.SrcH,
					X: x, Y: y, PivotX: x, PivotY: y,
					XScale: 1, YScale: 1,
					Color: 0xFFFFFF, Alpha: 1,
				})
			}
		}
	}
	return nil
}

func tileOffsets(start, size, extent float64) []float64 {
	if size <= 0 {
		return []float64{start}
	}
	first := math.Mod(start, size)
	if first > 0 {
		first -= size
	}
	var offs []float64
	for x := first; x < extent; x += size {
		offs = append(offs, x)
	}
	return offs
}

func (g *Game) drawTiles(r *Room) {
	if len(r.Tiles) == 0 {
		return
	}
	idx := make([]int, len(r.Tiles))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return r.Tiles[idx[a]].Depth > r.Tiles[idx[b]].Depth })
	for _, i := range idx {
		t := &r.Tiles[i]
		def := &g.data.Backgrounds[t.Background]
		reg := &g.data.Regions[def.Region]
		g.renderer.Submit(DrawCmd{
			Kind: CmdQuad,
			Page: reg.Page,
			SrcX: reg.SrcX + t.SrcX, SrcY: reg.SrcY + t.SrcY,
			SrcW: t.W, SrcH: t.H,
			X: t.X, Y: t.Y, PivotX: t.X, PivotY: t.Y,
			XScale: t.ScaleX, YScale: t.ScaleY,
			Color: t.Color & 0xFFFFFF, Alpha: float64(t.Color>>24) / 255,
		})
	}
}

// drawInstances sorts visible instances by depth descending (ties by id
// ascending) and invokes Draw events, defaulting to the sprite draw.
func (g *Game) drawInstances() error {
	ids := g.liveIDs(-1)
	sort.SliceStable(ids, func(a, b int) bool {
		da := g.instances[ids[a]].Depth
		db := g.instances[ids[b]].Depth
		if da != db {
			return da > db
		}
		return ids[a] < ids[b]
	})
	for _, id := range ids {
		inst := g.instances[id]
		if inst == nil || inst.destroyed || !inst.Visible {
			continue
		}
		ev := EventKey{Kind: EvDraw, Subtype: EvDrawNormal}
		code, owner := g.data.Handler(inst.Object, ev)
		if code >= 0 {
			if err := g.runEvent(id, ev, owner, code, id); err != nil {
				return err
			}
			continue
		}
		g.drawSelf(inst)
	}
	if len(g.debugObjects) > 0 {
		g.drawDebugOutlines(ids)
	}
	return nil
}

func (g *Game) drawDebugOutlines(ids []InstanceID) {
	for _, id := range ids {
		inst := g.instances[id]
		if inst == nil || inst.destroyed || !g.debugObjects[inst.Object] {
			continue
		}
		l, t, r, b, ok := inst.bbox(g.data)
		if !ok {
			continue
		}
		g.renderer.Submit(DrawCmd{
			Kind: CmdRect, X: l, Y: t, X2: r - 1, Y2: b - 1,
			Color: 0x00FF00, Alpha: 1, Outline: true,
		})
	}
}

// drawSelf is the default draw: the current frame at the origin-adjusted
// position, modulated by the image properties.
func (g *Game) drawSelf(inst *Instance) {
	g.drawSpriteExt(inst.SpriteIndex, inst.ImageIndex, inst.X, inst.Y,
		inst.ImageXScale, inst.ImageYScale, inst.ImageAngle, inst.ImageBlend, inst.ImageAlpha)
}

// drawSpriteExt emits one sprite quad; shared by draw_sprite, draw_self and
// the default draw.
func (g *Game) drawSpriteExt(sprite int, imageIndex, x, y, xscale, yscale, angle float64, color uint32, alpha float64) {
	if sprite < 0 || sprite >= len(g.data.Sprites) {
		return
	}
	s := &g.data.Sprites[sprite]
	if len(s.Frames) == 0 {
		return
	}
	f := int(math.Floor(imageIndex)) % len(s.Frames)
	if f < 0 {
		f += len(s.Frames)
	}
	reg := &g.data.Regions[s.Frames[f]]

	// region target offset shifts the trimmed quad inside the sprite box
	dx := x + (float64(reg.TargetX)-float64(s.OriginX))*xscale
	dy := y + (float64(reg.TargetY)-float64(s.OriginY))*yscale

	g.renderer.Submit(DrawCmd{
		Kind: CmdQuad,
		Page: reg.Page,
		SrcX: reg.SrcX, SrcY: reg.SrcY,
		SrcW: reg.SrcW, SrcH: reg.SrcH,
		X: dx, Y: dy,
		PivotX: x, PivotY: y,
		XScale: xscale, YScale: yscale,
		Angle:  angle,
		Color:  color,
		Alpha:  alpha,
	})
}
