// Package lottie decodes TGS sticker animations (gzip-wrapped Lottie JSON)
// into deterministic raster frame sequences. It implements the subset of the
// Lottie model that Telegram stickers use in practice: shape layers with
// groups, bezier paths, rectangles, ellipses, solid fills, and static or
// linearly-interpolated keyframed transforms. Unsupported features are
// ignored; structurally malformed documents fail with ErrDecode.
//
// Each Decode call builds an isolated Animation, so concurrent decodes never
// share mutable state.
package lottie

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrDecode is returned for malformed or structurally invalid animation data.
var ErrDecode = errors.New("lottie: malformed animation")

const (
	// maxDocumentSize bounds the decompressed document so a hostile TGS
	// cannot exhaust memory through the gzip container.
	maxDocumentSize = 16 << 20

	// maxFrames caps the rendered frame count.
	maxFrames = 180

	layerTypeShape = 4
)

// Animation is a parsed Lottie document ready for rendering.
type Animation struct {
	doc document
}

type document struct {
	Version   string  `json:"v"`
	FrameRate float64 `json:"fr"`
	InPoint   float64 `json:"ip"`
	OutPoint  float64 `json:"op"`
	Width     int     `json:"w"`
	Height    int     `json:"h"`
	Layers    []layer `json:"layers"`
}

type layer struct {
	Type      int         `json:"ty"`
	InPoint   float64     `json:"ip"`
	OutPoint  float64     `json:"op"`
	Transform transform   `json:"ks"`
	Shapes    []shapeItem `json:"shapes"`
}

type transform struct {
	Anchor   property `json:"a"`
	Position property `json:"p"`
	Scale    property `json:"s"`
	Rotation property `json:"r"`
	Opacity  property `json:"o"`
}

// shapeItem is one entry of a shape layer's item tree. The Lottie format
// discriminates on the "ty" string; only the fields for the supported types
// are modeled.
type shapeItem struct {
	Type  string      `json:"ty"`
	Items []shapeItem `json:"it"` // "gr"

	Shape property `json:"ks"` // "sh"

	Position property `json:"p"` // "rc", "el"
	Size     property `json:"s"` // "rc", "el"; also "tr" scale via Transform fields below

	Color   property `json:"c"` // "fl"
	Opacity property `json:"o"` // "fl", "tr"

	Anchor   property `json:"a"` // "tr"
	Rotation property `json:"r"` // "tr"
}

// Decode parses animation bytes, transparently unwrapping the TGS gzip
// container.
func Decode(data []byte) (*Animation, error) {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w; bad gzip container: %v", ErrDecode, err)
		}
		defer zr.Close()

		raw, err := io.ReadAll(io.LimitReader(zr, maxDocumentSize+1))
		if err != nil {
			return nil, fmt.Errorf("%w; decompression failed: %v", ErrDecode, err)
		}
		if len(raw) > maxDocumentSize {
			return nil, fmt.Errorf("%w; document exceeds %d bytes", ErrDecode, maxDocumentSize)
		}
		data = raw
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w; invalid JSON: %v", ErrDecode, err)
	}
	if doc.FrameRate <= 0 || doc.Width <= 0 || doc.Height <= 0 {
		return nil, fmt.Errorf("%w; composition %dx%d at %gfps", ErrDecode, doc.Width, doc.Height, doc.FrameRate)
	}
	if doc.OutPoint <= doc.InPoint {
		return nil, fmt.Errorf("%w; empty frame range [%g, %g)", ErrDecode, doc.InPoint, doc.OutPoint)
	}

	return &Animation{doc: doc}, nil
}

// FrameRate returns the nominal frames per second.
func (a *Animation) FrameRate() float64 { return a.doc.FrameRate }

// FrameCount returns the number of frames RenderFrames will produce.
func (a *Animation) FrameCount() int {
	n := int(a.doc.OutPoint - a.doc.InPoint)
	if n < 1 {
		n = 1
	}
	if n > maxFrames {
		n = maxFrames
	}
	return n
}

// Size returns the composition dimensions declared by the document.
func (a *Animation) Size() (width, height int) {
	return a.doc.Width, a.doc.Height
}

// property is a Lottie animatable value: either a static scalar/vector/path
// or a list of keyframes interpolated linearly over frame time.
type property struct {
	set      bool
	animated bool

	static     []float64
	staticPath *bezierPath

	keys []keyframe
}

type keyframe struct {
	Frame float64
	Value []float64
	Path  *bezierPath
}

// bezierPath is a Lottie path: vertices with in/out tangents relative to
// each vertex.
type bezierPath struct {
	Closed   bool        `json:"c"`
	Vertices [][]float64 `json:"v"`
	In       [][]float64 `json:"i"`
	Out      [][]float64 `json:"o"`
}

type rawProperty struct {
	Animated int             `json:"a"`
	K        json.RawMessage `json:"k"`
}

type rawKeyframe struct {
	T float64         `json:"t"`
	S json.RawMessage `json:"s"`
}

func (p *property) UnmarshalJSON(b []byte) error {
	var raw rawProperty
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.set = true

	if raw.Animated == 0 {
		vals, path, err := parseValue(raw.K)
		if err != nil {
			return err
		}
		p.static = vals
		p.staticPath = path
		return nil
	}

	var rks []rawKeyframe
	if err := json.Unmarshal(raw.K, &rks); err != nil {
		return err
	}
	p.animated = true
	for _, rk := range rks {
		vals, path, err := parseValue(rk.S)
		if err != nil {
			// Keyframes without a start value (terminator entries)
			// carry only a time; keep the time for range lookups.
			p.keys = append(p.keys, keyframe{Frame: rk.T})
			continue
		}
		p.keys = append(p.keys, keyframe{Frame: rk.T, Value: vals, Path: path})
	}
	return nil
}

// parseValue interprets a raw "k" or keyframe "s" payload as a scalar,
// vector, or path.
func parseValue(raw json.RawMessage) ([]float64, *bezierPath, error) {
	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("empty value")
	}

	var scalar float64
	if err := json.Unmarshal(raw, &scalar); err == nil {
		return []float64{scalar}, nil, nil
	}

	var vec []float64
	if err := json.Unmarshal(raw, &vec); err == nil {
		return vec, nil, nil
	}

	var path bezierPath
	if err := json.Unmarshal(raw, &path); err == nil && len(path.Vertices) > 0 {
		return nil, &path, nil
	}

	// Path keyframes arrive wrapped in a single-element array.
	var paths []bezierPath
	if err := json.Unmarshal(raw, &paths); err == nil && len(paths) > 0 && len(paths[0].Vertices) > 0 {
		return nil, &paths[0], nil
	}

	return nil, nil, fmt.Errorf("unsupported value %s", raw)
}

// vec returns the property's value at the given frame, padded or truncated
// to dims components. fallback supplies the per-component default when the
// property is absent.
func (p *property) vec(frame float64, dims int, fallback float64) []float64 {
	out := make([]float64, dims)
	for i := range out {
		out[i] = fallback
	}

	src := p.at(frame)
	for i := 0; i < dims && i < len(src); i++ {
		out[i] = src[i]
	}
	return out
}

// scalar returns the property's first component at the given frame.
func (p *property) scalar(frame, fallback float64) float64 {
	if src := p.at(frame); len(src) > 0 {
		return src[0]
	}
	return fallback
}

func (p *property) at(frame float64) []float64 {
	if !p.set {
		return nil
	}
	if !p.animated {
		return p.static
	}
	before, after, t := p.bracket(frame)
	if before == nil {
		return nil
	}
	if after == nil || len(after.Value) != len(before.Value) {
		return before.Value
	}
	out := make([]float64, len(before.Value))
	for i := range out {
		out[i] = before.Value[i] + (after.Value[i]-before.Value[i])*t
	}
	return out
}

// pathAt returns the interpolated path at the given frame, or nil when the
// property holds no path.
func (p *property) pathAt(frame float64) *bezierPath {
	if !p.set {
		return nil
	}
	if !p.animated {
		return p.staticPath
	}
	before, after, t := p.bracket(frame)
	if before == nil || before.Path == nil {
		return nil
	}
	if after == nil || after.Path == nil || len(after.Path.Vertices) != len(before.Path.Vertices) {
		return before.Path
	}
	return lerpPath(before.Path, after.Path, t)
}

// bracket finds the keyframes surrounding the frame and the linear
// interpolation ratio between them. Bezier easing curves are approximated
// linearly; the output stays deterministic either way.
func (p *property) bracket(frame float64) (before, after *keyframe, t float64) {
	var usable []*keyframe
	for i := range p.keys {
		if p.keys[i].Value != nil || p.keys[i].Path != nil {
			usable = append(usable, &p.keys[i])
		}
	}
	if len(usable) == 0 {
		return nil, nil, 0
	}
	if frame <= usable[0].Frame {
		return usable[0], nil, 0
	}
	for i := 0; i < len(usable)-1; i++ {
		a, b := usable[i], usable[i+1]
		if frame >= a.Frame && frame < b.Frame {
			span := b.Frame - a.Frame
			if span <= 0 {
				return a, nil, 0
			}
			return a, b, (frame - a.Frame) / span
		}
	}
	return usable[len(usable)-1], nil, 0
}

func lerpPath(a, b *bezierPath, t float64) *bezierPath {
	out := &bezierPath{
		Closed:   a.Closed,
		Vertices: lerpPoints(a.Vertices, b.Vertices, t),
		In:       lerpPoints(a.In, b.In, t),
		Out:      lerpPoints(a.Out, b.Out, t),
	}
	return out
}

func lerpPoints(a, b [][]float64, t float64) [][]float64 {
	out := make([][]float64, len(a))
	for i := range a {
		if i >= len(b) || len(a[i]) < 2 || len(b[i]) < 2 {
			out[i] = a[i]
			continue
		}
		out[i] = []float64{
			a[i][0] + (b[i][0]-a[i][0])*t,
			a[i][1] + (b[i][1]-a[i][1])*t,
		}
	}
	return out
}
