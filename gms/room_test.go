package gms

import (
	"math"
	"testing"
)

func TestPathLengthAndPoint(t *testing.T) {
	p := &Path{Points: []PathPoint{
		{X: 0, Y: 0, Speed: 1},
		{X: 10, Y: 0, Speed: 1},
		{X: 10, Y: 10, Speed: 1},
	}}
	if l := p.length(); l != 20 {
		t.Fatalf("length = %v, want 20", l)
	}
	x, y := p.point(0.25)
	if x != 5 || y != 0 {
		t.Errorf("point(0.25) = (%v,%v), want (5,0)", x, y)
	}
	x, y = p.point(0.75)
	if x != 10 || y != 5 {
		t.Errorf("point(0.75) = (%v,%v), want (10,5)", x, y)
	}
}

func TestPathFollower(t *testing.T) {
	w := newTestWorld()
	w.d.Paths = append(w.d.Paths, Path{
		Name: "pth_line",
		Points: []PathPoint{
			{X: 0, Y: 0, Speed: 1},
			{X: 100, Y: 0, Speed: 1},
		},
	})
	obj := w.addObject("obj_walker", -1)
	room := w.addRoom("room_test", 320, 240, 30)
	w.placeInstance(room, obj, 50, 60)

	g, err := w.game()
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Start(-1); err != nil {
		t.Fatal(err)
	}

	if _, err := g.CallBuiltin("path_start", firstInstanceID, Real(0), Real(10), Real(0), Bool(false)); err != nil {
		t.Fatal(err)
	}
	inst := g.Instance(firstInstanceID)

	if err := g.StepFrame(); err != nil {
		t.Fatal(err)
	}
	// 10 px along a 100 px path, relative to the start position
	if math.Abs(inst.X-60) > 1e-9 || inst.Y != 60 {
		t.Errorf("after 1 frame at (%v,%v), want (60,60)", inst.X, inst.Y)
	}
	if math.Abs(inst.PathPosition-0.1) > 1e-9 {
		t.Errorf("path position = %v, want 0.1", inst.PathPosition)
	}

	for i := 0; i < 9; i++ {
		if err := g.StepFrame(); err != nil {
			t.Fatal(err)
		}
	}
	// end action 0: stop at the end and clear the follower
	if inst.PathIndex != -1 {
		t.Errorf("path index = %d, want -1 after the end", inst.PathIndex)
	}
	if math.Abs(inst.X-150) > 1e-9 {
		t.Errorf("final x = %v, want 150", inst.X)
	}
}

func TestTileOffsets(t *testing.T) {
	offs := tileOffsets(0, 32, 96)
	want := []float64{0, 32, 64}
	if len(offs) != len(want) {
		t.Fatalf("offsets = %v, want %v", offs, want)
	}
	for i := range want {
		if offs[i] != want[i] {
			t.Fatalf("offsets = %v, want %v", offs, want)
		}
	}
	// a shifted start still covers the left edge
	offs = tileOffsets(10, 32, 64)
	if offs[0] != -22 {
		t.Errorf("shifted first offset = %v, want -22", offs[0])
	}
}

func TestBackbufferSizeFromViews(t *testing.T) {
	w := newTestWorld()
	room := w.addRoom("room_test", 640, 480, 30)
	w.d.Rooms[room].Views = []RoomView{{
		Enabled: true,
		ViewW:   320, ViewH: 240,
		PortW: 320, PortH: 240,
	}}
	g, err := w.game()
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Start(-1); err != nil {
		t.Fatal(err)
	}
	bw, bh := g.backbufferSize()
	if bw != 320 || bh != 240 {
		t.Errorf("backbuffer = %dx%d, want 320x240", bw, bh)
	}
}

func TestRoomOrderNavigation(t *testing.T) {
	w := newTestWorld()
	w.addRoom("room_a", 320, 240, 30)
	w.addRoom("room_b", 320, 240, 30)
	w.addRoom("room_c", 320, 240, 30)
	g, err := w.game()
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Start(1); err != nil {
		t.Fatal(err)
	}
	if g.NextRoom() != 2 || g.PreviousRoom() != 0 {
		t.Errorf("next/prev = %d/%d, want 2/0", g.NextRoom(), g.PreviousRoom())
	}
}
