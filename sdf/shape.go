package sdf

import (
	"github.com/chewxy/math32"
)

// Contour is a closed loop of segments.
type Contour struct {
	Segments []Segment
}

// Bounds returns the bounding box of the contour's control points.
func (c *Contour) Bounds() Rect {
	if len(c.Segments) == 0 {
		return Rect{}
	}
	r := c.Segments[0].Bounds()
	for i := 1; i < len(c.Segments); i++ {
		r = r.Union(c.Segments[i].Bounds())
	}
	return r
}

// Winding returns +1 for a counter-clockwise contour, -1 for clockwise,
// 0 for a degenerate one. Uses the shoelace formula over sampled curve
// points.
func (c *Contour) Winding() int {
	var area float32
	for i := range c.Segments {
		s := &c.Segments[i]
		switch s.Kind {
		case KindLinear:
			area += s.Points[0].Cross(s.Points[1])
		default:
			const steps = 4
			prev := s.Start()
			for k := 1; k <= steps; k++ {
				p := s.At(float32(k) / steps)
				area += prev.Cross(p)
				prev = p
			}
		}
	}
	switch {
	case area > 0:
		return 1
	case area < 0:
		return -1
	default:
		return 0
	}
}

// Shape is a set of contours defining a filled region by the non-zero
// winding rule, counter-clockwise outer boundaries with clockwise holes.
type Shape struct {
	Contours []Contour
}

// Bounds returns the bounding box of all contours.
func (s *Shape) Bounds() Rect {
	if len(s.Contours) == 0 {
		return Rect{}
	}
	r := s.Contours[0].Bounds()
	for i := 1; i < len(s.Contours); i++ {
		r = r.Union(s.Contours[i].Bounds())
	}
	return r
}

// Empty reports whether the shape has no segments.
func (s *Shape) Empty() bool {
	for i := range s.Contours {
		if len(s.Contours[i].Segments) > 0 {
			return false
		}
	}
	return true
}

// isCorner reports whether two consecutive tangent directions bend more
// than the threshold angle.
func isCorner(out, in Point, threshold float32) bool {
	a := in.Normalized()
	b := out.Normalized()
	if a == (Point{}) || b == (Point{}) {
		return false
	}
	// Sharp when the bend exceeds the threshold, i.e. the dot product of
	// the unit tangents falls below cos(threshold).
	return a.Dot(b) < math32.Cos(threshold) || a.Cross(b) == 0 && a.Dot(b) < 0
}

// ColorEdges assigns channel masks to segments for multi-channel
// generation. Each sharp corner switches the active channel pair so the
// two adjoining edges disagree in exactly one channel, which is what
// lets the median reconstruct the corner.
func (s *Shape) ColorEdges(angleThreshold float32) {
	for ci := range s.Contours {
		c := &s.Contours[ci]
		n := len(c.Segments)
		if n == 0 {
			continue
		}

		// Find corner positions: segment indices whose start is a sharp
		// joint with the previous segment.
		var corners []int
		for i := 0; i < n; i++ {
			prev := &c.Segments[(i+n-1)%n]
			cur := &c.Segments[i]
			if isCorner(cur.DirectionAt(0), prev.DirectionAt(1), angleThreshold) {
				corners = append(corners, i)
			}
		}

		switch len(corners) {
		case 0:
			// Smooth contour: every channel sees the full boundary.
			for i := range c.Segments {
				c.Segments[i].Mask = ChannelAll
			}
		case 1:
			// A single corner: split the contour in thirds around it so
			// the corner still lands on a channel change.
			colors := [3]Channel{ChannelR | ChannelG, ChannelG | ChannelB, ChannelR | ChannelB}
			start := corners[0]
			for i := 0; i < n; i++ {
				third := 3 * i / n
				c.Segments[(start+i)%n].Mask = colors[third]
			}
		default:
			// Alternate between two channel pairs at each corner; a third
			// pair covers odd corner counts so no two adjacent spans
			// share a mask.
			colors := [3]Channel{ChannelR | ChannelG, ChannelG | ChannelB, ChannelR | ChannelB}
			spline := 0
			start := corners[0]
			m := len(corners)
			for i := 0; i < n; i++ {
				idx := (start + i) % n
				if spline+1 < m && corners[(spline+1)%m] == idx {
					spline++
				}
				mask := colors[spline%2]
				if spline == m-1 && m%2 == 1 {
					mask = colors[2]
				}
				c.Segments[idx].Mask = mask
			}
		}
	}
}

// ShapeBuilder accumulates path commands into a Shape. Coordinates
// follow the glyph convention, Y increasing upward.
type ShapeBuilder struct {
	shape   Shape
	current []Segment
	start   Point
	pen     Point
	open    bool
}

// NewShapeBuilder returns an empty builder.
func NewShapeBuilder() *ShapeBuilder {
	return &ShapeBuilder{}
}

// MoveTo starts a new contour at (x, y), closing any open one.
func (b *ShapeBuilder) MoveTo(x, y float32) {
	b.finish()
	b.start = Point{x, y}
	b.pen = b.start
	b.open = true
}

// LineTo appends a straight segment to (x, y).
func (b *ShapeBuilder) LineTo(x, y float32) {
	end := Point{x, y}
	if end == b.pen {
		return
	}
	b.current = append(b.current, Line(b.pen, end))
	b.pen = end
}

// QuadTo appends a quadratic segment through control (cx, cy) to (x, y).
func (b *ShapeBuilder) QuadTo(cx, cy, x, y float32) {
	end := Point{x, y}
	b.current = append(b.current, Quad(b.pen, Point{cx, cy}, end))
	b.pen = end
}

// CubicTo appends a cubic segment with controls (c1x, c1y) and
// (c2x, c2y) to (x, y).
func (b *ShapeBuilder) CubicTo(c1x, c1y, c2x, c2y, x, y float32) {
	end := Point{x, y}
	b.current = append(b.current, Cubic(b.pen, Point{c1x, c1y}, Point{c2x, c2y}, end))
	b.pen = end
}

// Close closes the current contour back to its starting point.
func (b *ShapeBuilder) Close() {
	if !b.open {
		return
	}
	if b.pen != b.start {
		b.current = append(b.current, Line(b.pen, b.start))
	}
	b.finish()
}

func (b *ShapeBuilder) finish() {
	if len(b.current) > 0 {
		b.shape.Contours = append(b.shape.Contours, Contour{Segments: b.current})
	}
	b.current = nil
	b.open = false
}

// Shape returns the accumulated shape. Any open contour is closed.
func (b *ShapeBuilder) Shape() *Shape {
	b.Close()
	return &b.shape
}
