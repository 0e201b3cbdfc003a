package sdf

import (
	"github.com/chewxy/math32"
)

// SegmentKind classifies edge segments by their geometric degree.
type SegmentKind uint8

const (
	// KindLinear is a straight segment between two points.
	KindLinear SegmentKind = iota
	// KindQuadratic is a quadratic Bezier (one control point).
	KindQuadratic
	// KindCubic is a cubic Bezier (two control points).
	KindCubic
)

// String returns the string representation of the segment kind.
func (k SegmentKind) String() string {
	switch k {
	case KindLinear:
		return "Linear"
	case KindQuadratic:
		return "Quadratic"
	case KindCubic:
		return "Cubic"
	default:
		return "Unknown"
	}
}

// Channel is a bitmask of the RGB channels a segment contributes to.
type Channel uint8

const (
	// ChannelR is the red channel.
	ChannelR Channel = 1 << iota
	// ChannelG is the green channel.
	ChannelG
	// ChannelB is the blue channel.
	ChannelB

	// ChannelAll contributes to every channel.
	ChannelAll = ChannelR | ChannelG | ChannelB
)

// Has reports whether the mask includes the given channel bit.
func (c Channel) Has(bit Channel) bool { return c&bit != 0 }

// Segment is one edge of a contour with its channel assignment.
type Segment struct {
	// Kind is the geometric degree.
	Kind SegmentKind

	// Points holds start, controls and end:
	// Linear: P0 start, P1 end.
	// Quadratic: P0 start, P1 control, P2 end.
	// Cubic: P0 start, P1 and P2 controls, P3 end.
	Points [4]Point

	// Mask is the channel assignment from edge coloring.
	Mask Channel
}

// Line returns a linear segment.
func Line(start, end Point) Segment {
	return Segment{Kind: KindLinear, Points: [4]Point{start, end}, Mask: ChannelAll}
}

// Quad returns a quadratic segment.
func Quad(start, control, end Point) Segment {
	return Segment{Kind: KindQuadratic, Points: [4]Point{start, control, end}, Mask: ChannelAll}
}

// Cubic returns a cubic segment.
func Cubic(start, c1, c2, end Point) Segment {
	return Segment{Kind: KindCubic, Points: [4]Point{start, c1, c2, end}, Mask: ChannelAll}
}

// Start returns the segment's starting point.
func (s *Segment) Start() Point { return s.Points[0] }

// End returns the segment's ending point.
func (s *Segment) End() Point {
	switch s.Kind {
	case KindLinear:
		return s.Points[1]
	case KindQuadratic:
		return s.Points[2]
	default:
		return s.Points[3]
	}
}

// At evaluates the segment at parameter t in [0, 1].
func (s *Segment) At(t float32) Point {
	switch s.Kind {
	case KindLinear:
		return s.Points[0].Lerp(s.Points[1], t)
	case KindQuadratic:
		return evalQuad(s.Points[0], s.Points[1], s.Points[2], t)
	default:
		return evalCubic(s.Points[0], s.Points[1], s.Points[2], s.Points[3], t)
	}
}

// DirectionAt returns the tangent direction at parameter t.
func (s *Segment) DirectionAt(t float32) Point {
	switch s.Kind {
	case KindLinear:
		return s.Points[1].Sub(s.Points[0])
	case KindQuadratic:
		return quadDerivative(s.Points[0], s.Points[1], s.Points[2], t)
	default:
		return cubicDerivative(s.Points[0], s.Points[1], s.Points[2], s.Points[3], t)
	}
}

// Bounds returns the control-point bounding box of the segment, a safe
// over-approximation of the curve bounds.
func (s *Segment) Bounds() Rect {
	n := 2
	if s.Kind == KindQuadratic {
		n = 3
	} else if s.Kind == KindCubic {
		n = 4
	}
	r := Rect{MinX: s.Points[0].X, MinY: s.Points[0].Y, MaxX: s.Points[0].X, MaxY: s.Points[0].Y}
	for i := 1; i < n; i++ {
		p := s.Points[i]
		r.MinX = math32.Min(r.MinX, p.X)
		r.MinY = math32.Min(r.MinY, p.Y)
		r.MaxX = math32.Max(r.MaxX, p.X)
		r.MaxY = math32.Max(r.MaxY, p.Y)
	}
	return r
}

// Distance carries a signed distance with an orthogonality tiebreaker:
// when two segments meet at a point, the one whose tangent is more
// orthogonal to the sample direction gives the truer distance.
type Distance struct {
	Value float32
	Ortho float32
}

// farthest is the identity element for CloserOf.
func farthest() Distance { return Distance{Value: math32.MaxFloat32} }

// CloserOf returns the closer of two distances, breaking near-ties by
// orthogonality.
func (d Distance) CloserOf(o Distance) Distance {
	da := math32.Abs(d.Value)
	ob := math32.Abs(o.Value)
	if math32.Abs(da-ob) < 1e-6 {
		if o.Ortho < d.Ortho {
			return o
		}
		return d
	}
	if ob < da {
		return o
	}
	return d
}

// SignedDistance returns the signed distance from p to the segment:
// positive when p lies to the left of the travel direction (inside, for
// counter-clockwise outer contours).
func (s *Segment) SignedDistance(p Point) Distance {
	switch s.Kind {
	case KindLinear:
		return lineDistance(s.Points[0], s.Points[1], p)
	case KindQuadratic:
		return quadDistance(s.Points[0], s.Points[1], s.Points[2], p)
	default:
		return cubicDistance(s.Points[0], s.Points[1], s.Points[2], s.Points[3], p)
	}
}

func evalQuad(p0, p1, p2 Point, t float32) Point {
	u := 1 - t
	return Point{
		u*u*p0.X + 2*u*t*p1.X + t*t*p2.X,
		u*u*p0.Y + 2*u*t*p1.Y + t*t*p2.Y,
	}
}

func evalCubic(p0, p1, p2, p3 Point, t float32) Point {
	u := 1 - t
	u2, t2 := u*u, t*t
	return Point{
		u*u2*p0.X + 3*u2*t*p1.X + 3*u*t2*p2.X + t*t2*p3.X,
		u*u2*p0.Y + 3*u2*t*p1.Y + 3*u*t2*p2.Y + t*t2*p3.Y,
	}
}

func quadDerivative(p0, p1, p2 Point, t float32) Point {
	u := 1 - t
	return Point{
		2*u*(p1.X-p0.X) + 2*t*(p2.X-p1.X),
		2*u*(p1.Y-p0.Y) + 2*t*(p2.Y-p1.Y),
	}
}

func cubicDerivative(p0, p1, p2, p3 Point, t float32) Point {
	u := 1 - t
	return Point{
		3*u*u*(p1.X-p0.X) + 6*u*t*(p2.X-p1.X) + 3*t*t*(p3.X-p2.X),
		3*u*u*(p1.Y-p0.Y) + 6*u*t*(p2.Y-p1.Y) + 3*t*t*(p3.Y-p2.Y),
	}
}

func cubicSecondDerivative(p0, p1, p2, p3 Point, t float32) Point {
	a := p2.Sub(p1.Mul(2)).Add(p0)
	b := p3.Sub(p2.Mul(2)).Add(p1)
	u := 1 - t
	return a.Mul(6 * u).Add(b.Mul(6 * t))
}

// lineDistance is the signed distance from p to the segment a-b.
func lineDistance(a, b, p Point) Distance {
	ab := b.Sub(a)
	ap := p.Sub(a)

	lenSq := ab.LengthSquared()
	if lenSq == 0 {
		return Distance{Value: ap.Length()}
	}

	t := ap.Dot(ab) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	diff := p.Sub(a.Add(ab.Mul(t)))
	dist := diff.Length()
	if ab.Cross(ap) < 0 {
		dist = -dist
	}

	var ortho float32
	if t == 0 || t == 1 {
		ortho = math32.Abs(ab.Normalized().Dot(diff.Normalized()))
	}
	return Distance{Value: dist, Ortho: ortho}
}

// quadDistance finds the closest point on a quadratic Bezier
// analytically: the distance derivative is a cubic whose real roots in
// [0, 1], plus the endpoints, are the candidates.
func quadDistance(p0, p1, p2, p Point) Distance {
	qa := p0.Sub(p)
	qb := p1.Sub(p)
	qc := p2.Sub(p)

	a := qa.Sub(qb.Mul(2)).Add(qc)
	b := qb.Sub(qa).Mul(2)
	c := qa

	c3 := 2 * a.Dot(a)
	c2 := 3 * a.Dot(b)
	c1 := 2*a.Dot(c) + b.Dot(b)
	c0 := b.Dot(c)

	best := farthest()
	check := func(t float32) {
		if t < 0 || t > 1 {
			return
		}
		diff := p.Sub(evalQuad(p0, p1, p2, t))
		dist := diff.Length()
		tangent := quadDerivative(p0, p1, p2, t)
		if tangent.Cross(diff) > 0 {
			dist = -dist
		}
		var ortho float32
		if t == 0 || t == 1 {
			ortho = math32.Abs(tangent.Normalized().Dot(diff.Normalized()))
		}
		best = best.CloserOf(Distance{Value: dist, Ortho: ortho})
	}

	check(0)
	check(1)
	for _, t := range solveCubic(c3, c2, c1, c0) {
		check(t)
	}
	return best
}

// cubicDistance finds the closest point on a cubic Bezier by sampling
// with Newton refinement; the exact distance derivative is quintic and
// has no closed form.
func cubicDistance(p0, p1, p2, p3, p Point) Distance {
	best := farthest()
	check := func(t float32) {
		if t < 0 || t > 1 {
			return
		}
		diff := p.Sub(evalCubic(p0, p1, p2, p3, t))
		dist := diff.Length()
		tangent := cubicDerivative(p0, p1, p2, p3, t)
		if tangent.Cross(diff) > 0 {
			dist = -dist
		}
		var ortho float32
		if t == 0 || t == 1 {
			ortho = math32.Abs(tangent.Normalized().Dot(diff.Normalized()))
		}
		best = best.CloserOf(Distance{Value: dist, Ortho: ortho})
	}

	check(0)
	check(1)
	const samples = 8
	for i := 0; i <= samples; i++ {
		t := float32(i) / samples
		check(newtonRefine(p0, p1, p2, p3, p, t))
	}
	return best
}

// newtonRefine improves a cubic closest-point parameter with Newton
// iterations on the distance-squared derivative.
func newtonRefine(p0, p1, p2, p3, p Point, t float32) float32 {
	const maxIter = 8
	const eps = 1e-7

	for i := 0; i < maxIter; i++ {
		diff := evalCubic(p0, p1, p2, p3, t).Sub(p)
		d1 := cubicDerivative(p0, p1, p2, p3, t)
		d2 := cubicSecondDerivative(p0, p1, p2, p3, t)

		f := diff.Dot(d1)
		fp := d1.Dot(d1) + diff.Dot(d2)
		if math32.Abs(fp) < eps {
			break
		}
		dt := -f / fp
		if math32.Abs(dt) < eps {
			break
		}
		t += dt
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}
	return t
}

// solveCubic returns the real roots of a*t^3 + b*t^2 + c*t + d in [0, 1].
func solveCubic(a, b, c, d float32) []float32 {
	if math32.Abs(a) < 1e-9 {
		return solveQuadratic(b, c, d)
	}

	b /= a
	c /= a
	d /= a

	p := c - b*b/3
	q := d - b*c/3 + 2*b*b*b/27
	disc := q*q/4 + p*p*p/27

	var roots []float32
	keep := func(t float32) {
		if t >= 0 && t <= 1 {
			for _, r := range roots {
				if math32.Abs(r-t) < 1e-6 {
					return
				}
			}
			roots = append(roots, t)
		}
	}

	switch {
	case disc > 1e-9:
		sq := math32.Sqrt(disc)
		keep(math32.Cbrt(-q/2+sq) + math32.Cbrt(-q/2-sq) - b/3)
	case disc < -1e-9:
		r := math32.Sqrt(-p * p * p / 27)
		phi := math32.Acos(-q / (2 * r))
		cr := math32.Cbrt(r)
		for k := 0; k < 3; k++ {
			keep(2*cr*math32.Cos((phi+2*float32(k)*math32.Pi)/3) - b/3)
		}
	default:
		u := math32.Cbrt(-q / 2)
		keep(2*u - b/3)
		keep(-u - b/3)
	}
	return roots
}

// solveQuadratic returns the real roots of a*t^2 + b*t + c in [0, 1].
func solveQuadratic(a, b, c float32) []float32 {
	if math32.Abs(a) < 1e-9 {
		if math32.Abs(b) < 1e-9 {
			return nil
		}
		t := -c / b
		if t >= 0 && t <= 1 {
			return []float32{t}
		}
		return nil
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return nil
	}
	sq := math32.Sqrt(disc)
	var roots []float32
	for _, t := range [2]float32{(-b + sq) / (2 * a), (-b - sq) / (2 * a)} {
		if t >= 0 && t <= 1 {
			roots = append(roots, t)
		}
	}
	return roots
}
