// Package convert normalizes classified sticker media into the canonical
// output representations: PNG for stills, GIF for animations. Conversion is
// deterministic; identical input bytes always produce byte-identical output,
// which is what makes content-addressed publishing idempotent.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	_ "image/jpeg" // register JPEG decoding
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoding

	"github.com/mxpack/mxpack/internal/format"
	"github.com/mxpack/mxpack/internal/lottie"
)

var (
	// ErrUnsupported marks assets whose format cannot be converted. It is
	// a per-sticker skip, never a batch failure.
	ErrUnsupported = errors.New("convert: unsupported format")

	// ErrConversion marks decode or re-encode failures on otherwise
	// supported formats.
	ErrConversion = errors.New("convert: conversion failed")
)

// Output MIME types.
const (
	MIMEStill    = "image/png"
	MIMEAnimated = "image/gif"
)

// DefaultBoundingBox is the default output bounding box in pixels.
const DefaultBoundingBox = 256

// Result is an immutable converted asset.
type Result struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
	Frames   int // 1 for stills
	DelayCS  int // first-frame delay in 1/100s, 0 for stills
}

// Converter renders classified sticker bytes into canonical output form.
type Converter struct {
	box int
}

// New creates a Converter targeting the given bounding box. Non-positive
// values fall back to DefaultBoundingBox.
func New(box int) *Converter {
	if box < 1 {
		box = DefaultBoundingBox
	}
	return &Converter{box: box}
}

// BoundingBox returns the configured target bounding box.
func (c *Converter) BoundingBox() int { return c.box }

// Convert classifies the raw bytes and produces the canonical output.
// The hint is the source platform's MIME guess and is only a tiebreaker.
func (c *Converter) Convert(ctx context.Context, data []byte, hint string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kind := format.Detect(data, hint)
	switch kind {
	case format.StaticRaster:
		return c.convertStill(data)
	case format.AnimatedRaster:
		return c.convertAnimated(data)
	case format.VectorAnimation:
		return c.convertVector(data)
	default:
		return nil, fmt.Errorf("%w; unrecognized content (hint %q)", ErrUnsupported, hint)
	}
}

// Kind re-exposes the classifier so callers do not sniff twice.
func (c *Converter) Kind(data []byte, hint string) format.Kind {
	return format.Detect(data, hint)
}

func (c *Converter) convertStill(data []byte) (*Result, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w; still decode: %v", ErrConversion, err)
	}

	dst := c.fit(src)
	return encodeStill(dst)
}

func (c *Converter) convertAnimated(data []byte) (*Result, error) {
	if !bytes.HasPrefix(data, []byte("GIF8")) {
		// APNG and animated WebP classify correctly but have no Go
		// re-encoder; skip rather than silently flatten to a still.
		return nil, fmt.Errorf("%w; animated non-GIF re-encode not implemented", ErrUnsupported)
	}

	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w; gif decode: %v", ErrConversion, err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("%w; gif has no frames", ErrConversion)
	}

	frames, delays := flattenGIF(g)
	scaled := make([]*image.RGBA, len(frames))
	for i, f := range frames {
		scaled[i] = c.fit(f)
	}

	if len(scaled) == 1 {
		return encodeStill(scaled[0])
	}
	return encodeAnimation(scaled, delays, 0)
}

func (c *Converter) convertVector(data []byte) (*Result, error) {
	anim, err := lottie.Decode(data)
	if err != nil {
		return nil, err
	}

	frames, delay, err := anim.RenderFrames(c.box)
	if err != nil {
		return nil, err
	}
	if len(frames) == 1 {
		return encodeStill(frames[0])
	}

	delays := make([]int, len(frames))
	for i := range delays {
		delays[i] = delay
	}
	return encodeAnimation(frames, delays, delay)
}

// fit scales an image into the bounding box preserving aspect ratio. The
// output canvas is the fitted size; no letterbox padding is added.
func (c *Converter) fit(src image.Image) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 1 || h < 1 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}

	var outW, outH int
	if w >= h {
		outW = c.box
		outH = int(math.Round(float64(h) * float64(c.box) / float64(w)))
	} else {
		outH = c.box
		outW = int(math.Round(float64(w) * float64(c.box) / float64(h)))
	}
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

// flattenGIF composites each GIF frame onto the logical screen so frames
// with partial bounds or none/background disposal render correctly.
func flattenGIF(g *gif.GIF) ([]*image.RGBA, []int) {
	screen := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if screen.Empty() {
		screen = g.Image[0].Bounds()
	}

	canvas := image.NewRGBA(screen)
	frames := make([]*image.RGBA, 0, len(g.Image))
	delays := make([]int, 0, len(g.Image))

	for i, frame := range g.Image {
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

		snap := image.NewRGBA(screen)
		copy(snap.Pix, canvas.Pix)
		frames = append(frames, snap)

		delay := 10
		if i < len(g.Delay) && g.Delay[i] > 0 {
			delay = g.Delay[i]
		}
		delays = append(delays, delay)

		if i < len(g.Disposal) && g.Disposal[i] == gif.DisposalBackground {
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		}
	}
	return frames, delays
}

func encodeStill(img *image.RGBA) (*Result, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w; png encode: %v", ErrConversion, err)
	}
	b := img.Bounds()
	return &Result{
		Data:     buf.Bytes(),
		MIMEType: MIMEStill,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Frames:   1,
	}, nil
}

// outputPalette is the fixed 255-color-plus-transparency palette every
// animated output uses. A fixed palette keeps re-encoding deterministic.
var outputPalette = func() color.Palette {
	p := make(color.Palette, 0, 256)
	p = append(p, color.RGBA{}) // index 0: transparent
	p = append(p, palette.Plan9[:255]...)
	return p
}()

func encodeAnimation(frames []*image.RGBA, delays []int, uniformDelay int) (*Result, error) {
	bounds := frames[0].Bounds()
	out := &gif.GIF{
		Image:    make([]*image.Paletted, 0, len(frames)),
		Delay:    make([]int, 0, len(frames)),
		Disposal: make([]byte, 0, len(frames)),
		Config: image.Config{
			ColorModel: outputPalette,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		},
		LoopCount: 0,
	}

	for i, frame := range frames {
		p := image.NewPaletted(bounds, outputPalette)
		draw.FloydSteinberg.Draw(p, bounds, frame, bounds.Min)
		out.Image = append(out.Image, p)
		out.Disposal = append(out.Disposal, gif.DisposalBackground)

		delay := uniformDelay
		if i < len(delays) && delays[i] > 0 {
			delay = delays[i]
		}
		if delay < 2 {
			delay = 2
		}
		out.Delay = append(out.Delay, delay)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, out); err != nil {
		return nil, fmt.Errorf("%w; gif encode: %v", ErrConversion, err)
	}

	firstDelay := out.Delay[0]
	return &Result{
		Data:     buf.Bytes(),
		MIMEType: MIMEAnimated,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Frames:   len(frames),
		DelayCS:  firstDelay,
	}, nil
}
