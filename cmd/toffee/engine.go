package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/toffee-rt/toffee/cmd/internal/gui"
	"github.com/toffee-rt/toffee/cmd/internal/meter"
	"github.com/toffee-rt/toffee/gms"
)

var errQuit = errors.New("quit requested")

type engine struct {
	data      *gms.Data
	opts      *options
	startRoom int

	game *gms.Game

	playback  *gms.Recording
	recording *gms.Recording

	paused   bool
	stepOnce bool

	frameMeter *meter.Meter
	stepMeter  *meter.Meter
}

func (e *engine) newGame(renderer gms.Renderer) (*gms.Game, error) {
	g := gms.New(e.data, renderer)
	g.SetTrace(gms.NewTraceConfig(e.opts.traceCalls, e.opts.ignoreCalls, e.opts.traceEvents, e.opts.traceInstr))
	var debugOut io.Writer
	if e.opts.debug || len(e.opts.traceCalls)+len(e.opts.traceEvents)+len(e.opts.traceInstr) > 0 {
		debugOut = os.Stderr
	}
	g.SetDebugOutput(debugOut)
	var debugObjs []int
	for _, name := range e.opts.debugObjs {
		if o := e.data.ObjectByName(name); o >= 0 {
			debugObjs = append(debugObjs, o)
		} else {
			fmt.Fprintf(os.Stderr, "no object %q to debug\n", name)
		}
	}
	g.SetDebugObjects(debugObjs)
	if err := g.Start(e.startRoom); err != nil {
		return nil, err
	}
	return g, nil
}

// feedInputs applies playback before the frame; afterFrame captures for recording.
func (e *engine) feedInputs(g *gms.Game) {
	if e.playback != nil {
		g.Keyboard.FeedFrame(e.playback.Frame(g.Frame()))
	}
}

func (e *engine) afterFrame(g *gms.Game) {
	if e.recording != nil {
		e.recording.Capture(g.Frame()-1, g.Keyboard.HeldKeys())
	}
}

func (e *engine) saveRecording() error {
	if e.recording == nil {
		return nil
	}
	f, err := os.Create(e.opts.recordInputs)
	if err != nil {
		return fmt.Errorf("unable to create input recording: %s", err)
	}
	defer f.Close()
	return e.recording.Write(f)
}

// runHeadless drives the simulation with the software rasterizer, captures
// the requested screenshots and exits.
func (e *engine) runHeadless() error {
	soft := gms.NewSoftRenderer(e.data)
	g, err := e.newGame(soft)
	if err != nil {
		return err
	}
	e.game = g

	last := 0
	want := make(map[int]bool, len(e.opts.screenshotFrames))
	for _, f := range e.opts.screenshotFrames {
		want[f] = true
		if f > last {
			last = f
		}
	}

	for frame := 1; frame <= last; frame++ {
		e.feedInputs(g)
		if err := g.StepFrame(); err != nil {
			return err
		}
		e.afterFrame(g)
		if want[frame] {
			if err := writeScreenshot(e.opts.screenshot, frame, soft); err != nil {
				fmt.Fprintf(os.Stderr, "screenshot at frame %d: %s\n", frame, err)
			}
		}
		if g.EndRequested() {
			break
		}
	}
	return e.saveRecording()
}

// runWindowed opens the SDL window and runs the fixed-timestep loop.
func (e *engine) runWindowed() error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("unable to init sdl: %s", err)
	}
	defer sdl.Quit()

	v, err := newView(e.data.GameName, e.data)
	if err != nil {
		return err
	}
	defer v.free()

	g, err := e.newGame(v.renderer())
	if err != nil {
		return err
	}
	e.game = g

	e.frameMeter = meter.New(30)
	e.stepMeter = meter.New(30)

	speed := e.opts.speed
	if speed <= 0 {
		speed = 1
	}

	for {
		start := time.Now()

		if err := e.poll(v, g); err != nil {
			if err == errQuit {
				return e.saveRecording()
			}
			return err
		}

		if !e.paused || e.stepOnce {
			e.stepOnce = false
			e.feedInputs(g)
			stepStart := time.Now()
			if err := g.StepFrame(); err != nil {
				return err
			}
			e.stepMeter.Record(time.Since(stepStart))
			e.afterFrame(g)
		} else {
			v.repaint()
		}

		if g.EndRequested() {
			return e.saveRecording()
		}

		if e.opts.debug {
			v.setTitle(fmt.Sprintf("%s - frame %d, %.1fms", e.data.GameName, g.Frame(), e.stepMeter.Ms()))
		}

		e.frameMeter.Record(time.Since(start))
		e.throttle(start, speed)
	}
}

// throttle sleeps out the remainder of the fixed 1/room_speed timestep.
func (e *engine) throttle(start time.Time, speed float64) {
	step := time.Duration(float64(time.Second) / (float64(e.game.RoomSpeed()) * speed))
	if rem := step - time.Since(start); rem > 0 {
		time.Sleep(rem)
	}
}

func (e *engine) poll(v *view, g *gms.Game) error {
	for evt := sdl.PollEvent(); evt != nil; evt = sdl.PollEvent() {
		if _, ok := evt.(*sdl.QuitEvent); ok {
			return errQuit
		}
		if handled, err := v.handle(evt); handled || err != nil {
			if err != nil {
				return err
			}
			continue
		}
		if err := e.handleDebugKeys(evt, g); err != nil {
			return err
		}
		e.handleGameKey(evt, g)
	}
	return nil
}

func (e *engine) handleDebugKeys(evt sdl.Event, g *gms.Game) error {
	switch {
	case gui.IsKeyPress(evt, sdl.K_p):
		e.paused = !e.paused
	case gui.IsKeyPress(evt, sdl.K_o):
		if e.paused {
			e.stepOnce = true
		}
	case gui.IsKeyPress(evt, sdl.K_PAGEUP):
		if prev := g.PreviousRoom(); prev >= 0 {
			return g.GotoRoom(prev)
		}
	case gui.IsKeyPress(evt, sdl.K_PAGEDOWN):
		if next := g.NextRoom(); next >= 0 {
			return g.GotoRoom(next)
		}
	}
	return nil
}

// handleGameKey feeds keyboard transitions into the runtime unless a
// playback file owns the input.
func (e *engine) handleGameKey(evt sdl.Event, g *gms.Game) {
	if e.playback != nil {
		return
	}
	key, ok := evt.(*sdl.KeyboardEvent)
	if !ok || key.Repeat != 0 {
		return
	}
	vk, ok := vkFromScancode(key.Keysym.Scancode)
	if !ok {
		return
	}
	g.Keyboard.Feed(vk, key.Type == sdl.KEYDOWN)
}
