// Package render rasterizes engine frames: each eye is drawn as a filled
// 12-point polygon on a flat background.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/vector"

	"github.com/teslashibe/go-reachy-face/pkg/geom"
)

// Default colors match the robot display.
var (
	DefaultBackground = color.RGBA{30, 30, 30, 255}
	DefaultForeground = color.RGBA{255, 255, 255, 255}
)

// Options controls the output image.
type Options struct {
	Width      int
	Height     int
	Background color.Color
	Foreground color.Color
}

// DefaultOptions returns a 1024x600 canvas with the default colors.
func DefaultOptions() Options {
	return Options{
		Width:      1024,
		Height:     600,
		Background: DefaultBackground,
		Foreground: DefaultForeground,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = d.Width, d.Height
	}
	if o.Background == nil {
		o.Background = d.Background
	}
	if o.Foreground == nil {
		o.Foreground = d.Foreground
	}
	return o
}

// Image draws pts, given in pixels, onto a new image.
func Image(pts geom.Keyframe, opts Options) *image.RGBA {
	opts = opts.withDefaults()
	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)
	Eyes(img, pts, opts.Foreground)
	return img
}

// Eyes fills both eye polygons of pts onto dst.
func Eyes(dst draw.Image, pts geom.Keyframe, fg color.Color) {
	b := dst.Bounds()
	rast := vector.NewRasterizer(b.Dx(), b.Dy())
	rast.DrawOp = draw.Over
	polygon(rast, pts.LeftEye(), b.Min)
	polygon(rast, pts.RightEye(), b.Min)
	rast.Draw(dst, b, image.NewUniform(fg), image.Point{})
}

func polygon(rast *vector.Rasterizer, pts []geom.Point, origin image.Point) {
	if len(pts) < 3 {
		return
	}
	ox, oy := float32(origin.X), float32(origin.Y)
	rast.MoveTo(float32(pts[0].X)-ox, float32(pts[0].Y)-oy)
	for _, p := range pts[1:] {
		rast.LineTo(float32(p.X)-ox, float32(p.Y)-oy)
	}
	rast.ClosePath()
}

// PNG encodes pts as a PNG image.
func PNG(w io.Writer, pts geom.Keyframe, opts Options) error {
	if err := png.Encode(w, Image(pts, opts)); err != nil {
		return fmt.Errorf("cannot encode png: %w", err)
	}
	return nil
}
