package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/toffee-rt/toffee/gms"
)

// screenshotScale is the integer multiple applied to the logical backbuffer:
// a 320x240 frame is written as 640x480.
const screenshotScale = 2

// writeScreenshot scales the backbuffer and writes it as a PNG named by the
// pattern, with %s replaced by the frame number.
func writeScreenshot(pattern string, frame int, soft *gms.SoftRenderer) error {
	name := strings.ReplaceAll(pattern, "%s", strconv.Itoa(frame))

	src := soft.Image()
	dst := image.NewRGBA(image.Rect(0, 0, soft.W*screenshotScale, soft.H*screenshotScale))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("unable to create %s: %s", name, err)
	}
	defer f.Close()

	if err := png.Encode(f, dst); err != nil {
		return fmt.Errorf("unable to encode %s: %s", name, err)
	}
	return nil
}
