package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/toffee-rt/toffee/gms"
)

func init() {
	runtime.LockOSThread()
}

// exit codes: 0 normal, 1 fatal runtime error, 2 data-format error
const (
	exitOK      = 0
	exitRuntime = 1
	exitData    = 2
)

type options struct {
	debug            bool
	screenshot       string
	screenshotFrames []int
	room             string
	listRooms        bool
	debugObjs        []string
	traceCalls       []string
	ignoreCalls      []string
	traceEvents      []string
	traceInstr       []string
	speed            float64
	recordInputs     string
	playbackInputs   string
}

func main() {
	var opts options

	root := &cobra.Command{
		Use:           "toffee <game.unx>",
		Short:         "Re-executes a GameMaker: Studio 1.x (bytecode 16) data file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], &opts)
		},
	}

	f := root.Flags()
	f.BoolVar(&opts.debug, "debug", false, "enable the debug overlay and instruction tracing output")
	f.StringVar(&opts.screenshot, "screenshot", "screenshot%s.png", "screenshot path pattern, %s is replaced with the frame number")
	f.IntSliceVar(&opts.screenshotFrames, "screenshot-at-frame", nil, "capture a screenshot at this frame and run headless (repeatable)")
	f.StringVar(&opts.room, "room", "", "start in this room (name or index)")
	f.BoolVar(&opts.listRooms, "list-rooms", false, "print the room names and exit")
	f.StringSliceVar(&opts.debugObjs, "debug-obj", nil, "outline instances of this object (repeatable)")
	f.StringSliceVar(&opts.traceCalls, "trace-calls", nil, "trace calls to this function, or * for all")
	f.StringSliceVar(&opts.ignoreCalls, "ignore-function-traced-calls", nil, "suppress call traces for this function")
	f.StringSliceVar(&opts.traceEvents, "trace-events", nil, "trace events on this object, or * for all")
	f.StringSliceVar(&opts.traceInstr, "trace-instructions", nil, "trace instructions of this code entry, or * for all")
	f.Float64Var(&opts.speed, "speed", 1, "game speed multiplier")
	f.StringVar(&opts.recordInputs, "record-inputs", "", "record keyboard input to this file")
	f.StringVar(&opts.playbackInputs, "playback-inputs", "", "play keyboard input back from this file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var formErr *gms.FormError
	var refErr *gms.AssetRefError
	var verErr *gms.UnsupportedVersionError
	if errors.As(err, &formErr) || errors.As(err, &refErr) || errors.As(err, &verErr) {
		return exitData
	}
	return exitRuntime
}

func run(path string, opts *options) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to open data file: %s", err)
	}

	data, err := gms.Load(file)
	if err != nil {
		return err
	}

	if opts.listRooms {
		for _, r := range data.Rooms {
			fmt.Println(r.Name)
		}
		return nil
	}

	startRoom := -1
	if opts.room != "" {
		startRoom = data.RoomByName(opts.room)
		if startRoom < 0 {
			if _, err := fmt.Sscanf(opts.room, "%d", &startRoom); err != nil || startRoom < 0 || startRoom >= len(data.Rooms) {
				return fmt.Errorf("no room %q", opts.room)
			}
		}
	}

	var playback *gms.Recording
	if opts.playbackInputs != "" {
		f, err := os.Open(opts.playbackInputs)
		if err != nil {
			return fmt.Errorf("unable to open input recording: %s", err)
		}
		playback, err = gms.ReadRecording(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	e := &engine{
		data:      data,
		opts:      opts,
		startRoom: startRoom,
		playback:  playback,
	}
	if opts.recordInputs != "" {
		e.recording = gms.NewRecording()
	}

	if len(opts.screenshotFrames) > 0 {
		return e.runHeadless()
	}
	return e.runWindowed()
}
