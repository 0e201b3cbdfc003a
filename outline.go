package glyphkit

// PointKind classifies a contour point.
type PointKind uint8

const (
	// PointOnCurve is a point the outline passes through.
	PointOnCurve PointKind = iota
	// PointQuadControl is an off-curve quadratic Bezier control point.
	PointQuadControl
	// PointCubicControl is an off-curve cubic Bezier control point.
	// Cubic controls always come in pairs between on-curve points.
	PointCubicControl
)

// String returns the string representation of the point kind.
func (k PointKind) String() string {
	switch k {
	case PointOnCurve:
		return "OnCurve"
	case PointQuadControl:
		return "QuadControl"
	case PointCubicControl:
		return "CubicControl"
	default:
		return unknownStr
	}
}

// ContourPoint is a single point of an outline contour.
type ContourPoint struct {
	X, Y float32
	Kind PointKind
}

// Contour is an ordered run of points. Closed contours wrap from the last
// point back to the first.
type Contour struct {
	Points []ContourPoint
	Closed bool
}

// OutlineData is a glyph outline as point contours. Coordinates are in
// whatever space the producer left them in: font units straight from a
// backend, pixels after production. Curve degree is preserved through
// transforms — quadratic contours stay quadratic.
type OutlineData struct {
	Contours []Contour

	// UnitsPerEm is the design grid of the source face, recorded so
	// consumers can rescale font-unit outlines. Zero after the producer
	// has already scaled to pixels.
	UnitsPerEm int
}

// Validate checks the structural invariants: every contour has at least
// one point and is marked closed, and cubic controls come in pairs.
func (o *OutlineData) Validate() error {
	for _, c := range o.Contours {
		if len(c.Points) == 0 {
			return ErrInvalidOutline
		}
		if !c.Closed {
			return ErrInvalidOutline
		}
		cubicRun := 0
		for _, p := range c.Points {
			if p.Kind == PointCubicControl {
				cubicRun++
				if cubicRun > 2 {
					return ErrInvalidOutline
				}
			} else {
				if cubicRun == 1 {
					return ErrInvalidOutline
				}
				cubicRun = 0
			}
		}
		if cubicRun == 1 {
			return ErrInvalidOutline
		}
	}
	return nil
}

// Bounds returns the control-point bounding box of the outline. For cache
// cost and field sizing this is a safe over-approximation of the tight
// curve bounds.
func (o *OutlineData) Bounds() Rect {
	var r Rect
	first := true
	for _, c := range o.Contours {
		for _, p := range c.Points {
			x, y := float64(p.X), float64(p.Y)
			if first {
				r = Rect{MinX: x, MinY: y, MaxX: x, MaxY: y}
				first = false
				continue
			}
			r.MinX = min(r.MinX, x)
			r.MinY = min(r.MinY, y)
			r.MaxX = max(r.MaxX, x)
			r.MaxY = max(r.MaxY, y)
		}
	}
	return r
}

// Clone returns a deep copy of the outline.
func (o *OutlineData) Clone() *OutlineData {
	if o == nil {
		return nil
	}
	clone := &OutlineData{
		Contours:   make([]Contour, len(o.Contours)),
		UnitsPerEm: o.UnitsPerEm,
	}
	for i, c := range o.Contours {
		pts := make([]ContourPoint, len(c.Points))
		copy(pts, c.Points)
		clone.Contours[i] = Contour{Points: pts, Closed: c.Closed}
	}
	return clone
}

// Transform returns a new outline with every point mapped through m.
// Point kinds are untouched, so curve degree is preserved.
func (o *OutlineData) Transform(m Matrix) *OutlineData {
	out := o.Clone()
	if out == nil {
		return nil
	}
	for i := range out.Contours {
		pts := out.Contours[i].Points
		for j := range pts {
			x, y := m.Apply(float64(pts[j].X), float64(pts[j].Y))
			pts[j].X = float32(x)
			pts[j].Y = float32(y)
		}
	}
	return out
}

// pointCount returns the total number of points across all contours.
func (o *OutlineData) pointCount() int {
	n := 0
	for _, c := range o.Contours {
		n += len(c.Points)
	}
	return n
}

// Matrix is a 2D affine transform:
//
//	| A C E |
//	| B D F |
//
// applied as x' = A*x + C*y + E, y' = B*x + D*y + F.
type Matrix struct {
	A, B, C, D, E, F float64
}

// Identity returns the identity transform.
func Identity() Matrix { return Matrix{A: 1, D: 1} }

// ScaleMatrix returns a uniform-axis scale transform.
func ScaleMatrix(sx, sy float64) Matrix { return Matrix{A: sx, D: sy} }

// ShearMatrix returns a horizontal shear: x' = x + k*y.
func ShearMatrix(k float64) Matrix { return Matrix{A: 1, C: k, D: 1} }

// Mul returns the composition m then n: applying the result is the same
// as applying m first and n second.
func (m Matrix) Mul(n Matrix) Matrix {
	return Matrix{
		A: n.A*m.A + n.C*m.B,
		B: n.B*m.A + n.D*m.B,
		C: n.A*m.C + n.C*m.D,
		D: n.B*m.C + n.D*m.D,
		E: n.A*m.E + n.C*m.F + n.E,
		F: n.B*m.E + n.D*m.F + n.F,
	}
}

// Apply maps the point (x, y) through the transform.
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

// PathOp is a path command opcode.
type PathOp uint8

const (
	// PathMoveTo starts a new subpath at the target point.
	PathMoveTo PathOp = iota
	// PathLineTo draws a straight segment.
	PathLineTo
	// PathQuadTo draws a quadratic Bezier (control, target).
	PathQuadTo
	// PathCubicTo draws a cubic Bezier (control1, control2, target).
	PathCubicTo
	// PathClose closes the current subpath.
	PathClose
)

// String returns the string representation of the path opcode.
func (op PathOp) String() string {
	switch op {
	case PathMoveTo:
		return "MoveTo"
	case PathLineTo:
		return "LineTo"
	case PathQuadTo:
		return "QuadTo"
	case PathCubicTo:
		return "CubicTo"
	case PathClose:
		return "Close"
	default:
		return unknownStr
	}
}

// pointArgs returns how many points the opcode consumes.
func (op PathOp) pointArgs() int {
	switch op {
	case PathMoveTo, PathLineTo:
		return 1
	case PathQuadTo:
		return 2
	case PathCubicTo:
		return 3
	default:
		return 0
	}
}

// PathPoint is a path coordinate.
type PathPoint struct {
	X, Y float32
}

// PathCommand is one path command with its points. Unused point slots
// are zero.
type PathCommand struct {
	Op     PathOp
	Points [3]PathPoint
}

// PathData is an outline converted to a command stream. A valid stream
// starts every subpath with MoveTo and closes each one exactly once.
type PathData struct {
	Commands []PathCommand
}

// Validate checks the command stream invariants.
func (p *PathData) Validate() error {
	open := false
	for _, cmd := range p.Commands {
		switch cmd.Op {
		case PathMoveTo:
			if open {
				return ErrInvalidOutline
			}
			open = true
		case PathLineTo, PathQuadTo, PathCubicTo:
			if !open {
				return ErrInvalidOutline
			}
		case PathClose:
			if !open {
				return ErrInvalidOutline
			}
			open = false
		default:
			return ErrInvalidOutline
		}
	}
	if open {
		return ErrInvalidOutline
	}
	return nil
}

// OutlineToPath converts point contours to a command stream. TrueType
// conventions apply: consecutive quadratic controls imply an on-curve
// midpoint between them, and a contour may start on an off-curve point.
func OutlineToPath(o *OutlineData) (*PathData, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	path := &PathData{}
	for _, c := range o.Contours {
		if err := appendContour(path, c); err != nil {
			return nil, err
		}
	}
	return path, nil
}

// appendContour emits the command stream for one closed contour.
func appendContour(path *PathData, c Contour) error {
	pts := c.Points
	n := len(pts)

	// Rotate so the contour starts on an on-curve point. If every point
	// is a quadratic control (a TrueType degenerate case), synthesize the
	// start as the midpoint of the first and last controls.
	start := -1
	for i, p := range pts {
		if p.Kind == PointOnCurve {
			start = i
			break
		}
	}

	var startPt PathPoint
	if start >= 0 {
		rotated := make([]ContourPoint, 0, n)
		rotated = append(rotated, pts[start:]...)
		rotated = append(rotated, pts[:start]...)
		pts = rotated
		startPt = PathPoint{X: pts[0].X, Y: pts[0].Y}
		pts = pts[1:]
	} else {
		for _, p := range pts {
			if p.Kind == PointCubicControl {
				return ErrInvalidOutline
			}
		}
		startPt = PathPoint{
			X: (pts[0].X + pts[n-1].X) / 2,
			Y: (pts[0].Y + pts[n-1].Y) / 2,
		}
	}

	path.Commands = append(path.Commands, PathCommand{Op: PathMoveTo, Points: [3]PathPoint{startPt}})

	i := 0
	for i < len(pts) {
		p := pts[i]
		switch p.Kind {
		case PointOnCurve:
			path.Commands = append(path.Commands, PathCommand{
				Op:     PathLineTo,
				Points: [3]PathPoint{{X: p.X, Y: p.Y}},
			})
			i++
		case PointQuadControl:
			ctrl := PathPoint{X: p.X, Y: p.Y}
			var end PathPoint
			if i+1 < len(pts) {
				next := pts[i+1]
				if next.Kind == PointQuadControl {
					// Implied on-curve midpoint between controls.
					end = PathPoint{X: (p.X + next.X) / 2, Y: (p.Y + next.Y) / 2}
					i++
				} else {
					end = PathPoint{X: next.X, Y: next.Y}
					i += 2
				}
			} else {
				end = startPt
				i++
			}
			path.Commands = append(path.Commands, PathCommand{
				Op:     PathQuadTo,
				Points: [3]PathPoint{ctrl, end},
			})
		case PointCubicControl:
			if i+1 >= len(pts) || pts[i+1].Kind != PointCubicControl {
				return ErrInvalidOutline
			}
			c1 := PathPoint{X: p.X, Y: p.Y}
			c2 := PathPoint{X: pts[i+1].X, Y: pts[i+1].Y}
			var end PathPoint
			if i+2 < len(pts) {
				end = PathPoint{X: pts[i+2].X, Y: pts[i+2].Y}
				i += 3
			} else {
				end = startPt
				i += 2
			}
			path.Commands = append(path.Commands, PathCommand{
				Op:     PathCubicTo,
				Points: [3]PathPoint{c1, c2, end},
			})
		default:
			return ErrInvalidOutline
		}
	}

	path.Commands = append(path.Commands, PathCommand{Op: PathClose})
	return nil
}
