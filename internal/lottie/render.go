package lottie

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

// kappa is the cubic bezier circle approximation constant.
const kappa = 0.5522847498

// matrix is a 2x3 affine transform in row-major order:
//
//	x' = a*x + c*y + tx
//	y' = b*x + d*y + ty
type matrix struct {
	a, b, c, d, tx, ty float64
}

func identity() matrix {
	return matrix{a: 1, d: 1}
}

// mul returns m * n (n applied first).
func (m matrix) mul(n matrix) matrix {
	return matrix{
		a:  m.a*n.a + m.c*n.b,
		b:  m.b*n.a + m.d*n.b,
		c:  m.a*n.c + m.c*n.d,
		d:  m.b*n.c + m.d*n.d,
		tx: m.a*n.tx + m.c*n.ty + m.tx,
		ty: m.b*n.tx + m.d*n.ty + m.ty,
	}
}

func (m matrix) translate(x, y float64) matrix {
	return m.mul(matrix{a: 1, d: 1, tx: x, ty: y})
}

func (m matrix) scale(sx, sy float64) matrix {
	return m.mul(matrix{a: sx, d: sy})
}

func (m matrix) rotate(degrees float64) matrix {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	return m.mul(matrix{a: cos, b: sin, c: -sin, d: cos})
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m.a*x + m.c*y + m.tx, m.b*x + m.d*y + m.ty
}

// fillStyle is a resolved solid fill.
type fillStyle struct {
	col color.NRGBA
}

// RenderFrames rasterizes the animation into an ordered frame sequence
// aspect-fitted into a box-by-box bounding square. It returns the frames and
// the nominal per-frame delay in hundredths of a second (the GIF timebase).
// Rendering the same document twice yields pixel-identical frames.
func (a *Animation) RenderFrames(box int) ([]*image.RGBA, int, error) {
	if box < 1 {
		box = 1
	}
	scale := float64(box) / float64(max(a.doc.Width, a.doc.Height))
	outW := max(1, int(math.Round(float64(a.doc.Width)*scale)))
	outH := max(1, int(math.Round(float64(a.doc.Height)*scale)))
	root := identity().scale(scale, scale)

	count := a.FrameCount()
	frames := make([]*image.RGBA, count)
	for i := 0; i < count; i++ {
		frame := a.doc.InPoint + float64(i)
		img := image.NewRGBA(image.Rect(0, 0, outW, outH))
		// Last layer is the bottom of the stack.
		for l := len(a.doc.Layers) - 1; l >= 0; l-- {
			a.renderLayer(img, &a.doc.Layers[l], root, frame)
		}
		frames[i] = img
	}

	delay := int(math.Round(100 / a.doc.FrameRate))
	if delay < 2 {
		delay = 2
	}
	return frames, delay, nil
}

func (a *Animation) renderLayer(img *image.RGBA, l *layer, root matrix, frame float64) {
	if l.Type != layerTypeShape {
		return
	}
	if frame < l.InPoint || frame >= l.OutPoint {
		return
	}

	m := root.mul(transformMatrix(&l.Transform, frame))
	opacity := l.Transform.Opacity.scalar(frame, 100) / 100
	if opacity <= 0 {
		return
	}
	drawItems(img, l.Shapes, m, frame, opacity, nil)
}

// transformMatrix builds position * rotation * scale * -anchor for a layer
// or group transform at the given frame.
func transformMatrix(tr *transform, frame float64) matrix {
	pos := tr.Position.vec(frame, 2, 0)
	anchor := tr.Anchor.vec(frame, 2, 0)
	scl := tr.Scale.vec(frame, 2, 100)
	rot := tr.Rotation.scalar(frame, 0)

	return identity().
		translate(pos[0], pos[1]).
		rotate(rot).
		scale(scl[0]/100, scl[1]/100).
		translate(-anchor[0], -anchor[1])
}

// groupTransformMatrix is transformMatrix for an inline "tr" shape item.
func groupTransformMatrix(it *shapeItem, frame float64) (matrix, float64) {
	pos := it.Position.vec(frame, 2, 0)
	anchor := it.Anchor.vec(frame, 2, 0)
	scl := it.Size.vec(frame, 2, 100) // "tr" reuses the "s" key for scale
	rot := it.Rotation.scalar(frame, 0)
	opacity := it.Opacity.scalar(frame, 100) / 100

	m := identity().
		translate(pos[0], pos[1]).
		rotate(rot).
		scale(scl[0]/100, scl[1]/100).
		translate(-anchor[0], -anchor[1])
	return m, opacity
}

// drawItems renders one level of a shape item tree. Fills apply to every
// path collected at the same level; groups recurse with their own transform
// and may override the inherited fill.
func drawItems(img *image.RGBA, items []shapeItem, m matrix, frame, opacity float64, inherited *fillStyle) {
	fill := inherited
	for i := range items {
		it := &items[i]
		switch it.Type {
		case "tr":
			gm, gop := groupTransformMatrix(it, frame)
			m = m.mul(gm)
			opacity *= gop
		case "fl":
			fill = resolveFill(it, frame, opacity)
		}
	}

	// Items listed first sit on top; recurse into trailing groups first so
	// painter's order comes out right.
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Type == "gr" {
			drawItems(img, items[i].Items, m, frame, opacity, fill)
		}
	}

	if fill == nil {
		return
	}

	ras := vector.NewRasterizer(img.Bounds().Dx(), img.Bounds().Dy())
	traced := false
	for i := range items {
		it := &items[i]
		switch it.Type {
		case "sh":
			if path := it.Shape.pathAt(frame); path != nil {
				tracePath(ras, path, m)
				traced = true
			}
		case "rc":
			traceRect(ras, it, m, frame)
			traced = true
		case "el":
			traceEllipse(ras, it, m, frame)
			traced = true
		}
	}
	if !traced {
		return
	}
	ras.Draw(img, img.Bounds(), image.NewUniform(fill.col), image.Point{})
}

func resolveFill(it *shapeItem, frame, opacity float64) *fillStyle {
	col := it.Color.vec(frame, 4, 1)
	alpha := it.Opacity.scalar(frame, 100) / 100 * opacity
	if len(it.Color.at(frame)) < 4 {
		col[3] = 1
	}
	return &fillStyle{col: color.NRGBA{
		R: clamp8(col[0] * 255),
		G: clamp8(col[1] * 255),
		B: clamp8(col[2] * 255),
		A: clamp8(col[3] * alpha * 255),
	}}
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// tracePath adds a Lottie bezier path to the rasterizer. In/out tangents are
// stored relative to their vertex.
func tracePath(ras *vector.Rasterizer, p *bezierPath, m matrix) {
	n := len(p.Vertices)
	if n < 2 {
		return
	}

	pt := func(points [][]float64, i int) (float64, float64) {
		if i < len(points) && len(points[i]) >= 2 {
			return points[i][0], points[i][1]
		}
		return 0, 0
	}

	x0, y0 := pt(p.Vertices, 0)
	sx, sy := m.apply(x0, y0)
	ras.MoveTo(float32(sx), float32(sy))

	segments := n - 1
	if p.Closed {
		segments = n
	}
	for s := 0; s < segments; s++ {
		i, j := s, (s+1)%n
		vx0, vy0 := pt(p.Vertices, i)
		vx1, vy1 := pt(p.Vertices, j)
		ox, oy := pt(p.Out, i)
		ix, iy := pt(p.In, j)

		c1x, c1y := m.apply(vx0+ox, vy0+oy)
		c2x, c2y := m.apply(vx1+ix, vy1+iy)
		ex, ey := m.apply(vx1, vy1)
		ras.CubeTo(float32(c1x), float32(c1y), float32(c2x), float32(c2y), float32(ex), float32(ey))
	}
	ras.ClosePath()
}

func traceRect(ras *vector.Rasterizer, it *shapeItem, m matrix, frame float64) {
	pos := it.Position.vec(frame, 2, 0)
	size := it.Size.vec(frame, 2, 0)
	hw, hh := size[0]/2, size[1]/2

	corners := [4][2]float64{
		{pos[0] - hw, pos[1] - hh},
		{pos[0] + hw, pos[1] - hh},
		{pos[0] + hw, pos[1] + hh},
		{pos[0] - hw, pos[1] + hh},
	}
	x, y := m.apply(corners[0][0], corners[0][1])
	ras.MoveTo(float32(x), float32(y))
	for i := 1; i < 4; i++ {
		x, y = m.apply(corners[i][0], corners[i][1])
		ras.LineTo(float32(x), float32(y))
	}
	ras.ClosePath()
}

func traceEllipse(ras *vector.Rasterizer, it *shapeItem, m matrix, frame float64) {
	pos := it.Position.vec(frame, 2, 0)
	size := it.Size.vec(frame, 2, 0)
	rx, ry := size[0]/2, size[1]/2
	cx, cy := pos[0], pos[1]
	kx, ky := rx*kappa, ry*kappa

	x, y := m.apply(cx+rx, cy)
	ras.MoveTo(float32(x), float32(y))

	arc := func(c1x, c1y, c2x, c2y, ex, ey float64) {
		ax, ay := m.apply(c1x, c1y)
		bx, by := m.apply(c2x, c2y)
		dx, dy := m.apply(ex, ey)
		ras.CubeTo(float32(ax), float32(ay), float32(bx), float32(by), float32(dx), float32(dy))
	}

	arc(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry)
	arc(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy)
	arc(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry)
	arc(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy)
	ras.ClosePath()
}
