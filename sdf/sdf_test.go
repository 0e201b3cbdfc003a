package sdf

import (
	"errors"
	"math"
	"testing"
)

// square builds an axis-aligned square over [2,8]x[2,8]. ccw selects the
// traversal direction.
func square(ccw bool) *Shape {
	b := NewShapeBuilder()
	if ccw {
		b.MoveTo(2, 2)
		b.LineTo(8, 2)
		b.LineTo(8, 8)
		b.LineTo(2, 8)
	} else {
		b.MoveTo(2, 2)
		b.LineTo(2, 8)
		b.LineTo(8, 8)
		b.LineTo(8, 2)
	}
	b.Close()
	return b.Shape()
}

func TestMedian3(t *testing.T) {
	tests := []struct {
		a, b, c, want float32
	}{
		{1, 2, 3, 2},
		{3, 1, 2, 2},
		{-1, -1, 1, -1},
		{0.5, 0.5, 0.5, 0.5},
		{-1, 1, 0, 0},
	}
	for _, tt := range tests {
		if got := Median3(tt.a, tt.b, tt.c); got != tt.want {
			t.Errorf("Median3(%g, %g, %g) = %g, want %g", tt.a, tt.b, tt.c, got, tt.want)
		}
	}
}

func TestLineSignedDistance(t *testing.T) {
	seg := Line(Point{0, 0}, Point{10, 0})

	if got := seg.SignedDistance(Point{5, 3}).Value; math.Abs(float64(got-3)) > 1e-5 {
		t.Errorf("distance left of travel = %g, want +3", got)
	}
	if got := seg.SignedDistance(Point{5, -2}).Value; math.Abs(float64(got+2)) > 1e-5 {
		t.Errorf("distance right of travel = %g, want -2", got)
	}
	// Beyond the endpoint the distance is to the endpoint itself.
	d := seg.SignedDistance(Point{13, 4})
	if got, want := math.Abs(float64(d.Value)), 5.0; math.Abs(got-want) > 1e-5 {
		t.Errorf("endpoint distance = %g, want %g", got, want)
	}
}

func TestQuadSignedDistance(t *testing.T) {
	// Upward parabola-ish arc from (0,0) to (10,0), apex near (5,5).
	seg := Quad(Point{0, 0}, Point{5, 10}, Point{10, 0})

	apex := seg.At(0.5)
	got := seg.SignedDistance(Point{apex.X, apex.Y + 1})
	if math.Abs(math.Abs(float64(got.Value))-1) > 1e-3 {
		t.Errorf("|distance| above apex = %g, want ~1", got.Value)
	}
	// A point on the curve is at distance ~0.
	if got := seg.SignedDistance(apex); math.Abs(float64(got.Value)) > 1e-3 {
		t.Errorf("on-curve distance = %g, want ~0", got.Value)
	}
}

func TestContourWinding(t *testing.T) {
	if got := square(true).Contours[0].Winding(); got <= 0 {
		t.Errorf("counterclockwise Winding = %d, want positive", got)
	}
	if got := square(false).Contours[0].Winding(); got >= 0 {
		t.Errorf("clockwise Winding = %d, want negative", got)
	}
}

func TestShapeBuilder(t *testing.T) {
	b := NewShapeBuilder()
	b.MoveTo(0, 0)
	b.LineTo(10, 0)
	b.QuadTo(10, 10, 0, 10)
	b.Close()
	b.MoveTo(20, 0)
	b.CubicTo(25, 5, 30, 5, 35, 0)
	s := b.Shape()

	if len(s.Contours) != 2 {
		t.Fatalf("len(Contours) = %d, want 2", len(s.Contours))
	}
	// Close adds the return line; the open second contour is closed by
	// Shape.
	first := s.Contours[0].Segments
	if len(first) != 3 || first[2].Kind != KindLinear {
		t.Errorf("first contour = %d segments ending %v, want 3 ending Linear",
			len(first), first[len(first)-1].Kind)
	}
	second := s.Contours[1].Segments
	if len(second) != 2 || second[0].Kind != KindCubic {
		t.Errorf("second contour = %d segments starting %v, want 2 starting Cubic",
			len(second), second[0].Kind)
	}
	end := second[len(second)-1].End()
	if end != (Point{20, 0}) {
		t.Errorf("second contour ends at %v, want {20 0}", end)
	}
}

func TestShapeBuilderSkipsDegenerateLines(t *testing.T) {
	b := NewShapeBuilder()
	b.MoveTo(0, 0)
	b.LineTo(0, 0)
	b.LineTo(5, 0)
	b.LineTo(5, 5)
	b.Close()
	s := b.Shape()

	if got := len(s.Contours[0].Segments); got != 3 {
		t.Errorf("segments = %d, want 3 (zero-length line dropped)", got)
	}
}

func TestColorEdgesSquare(t *testing.T) {
	s := square(true)
	s.ColorEdges(DefaultConfig().AngleThreshold)

	segs := s.Contours[0].Segments
	var covered Channel
	for i, seg := range segs {
		if seg.Mask == ChannelAll {
			t.Errorf("segment %d mask = All, want two channels at sharp corners", i)
		}
		next := segs[(i+1)%len(segs)]
		shared := seg.Mask & next.Mask
		if shared == 0 {
			t.Errorf("segments %d and %d share no channel", i, (i+1)%len(segs))
		}
		covered |= seg.Mask
	}
	if covered != ChannelAll {
		t.Errorf("covered channels = %b, want all three", covered)
	}
}

func TestColorEdgesSmoothContour(t *testing.T) {
	// Four quarter-circle quads with continuous tangents at the joins.
	b := NewShapeBuilder()
	b.MoveTo(1, 0)
	b.QuadTo(1, 1, 0, 1)
	b.QuadTo(-1, 1, -1, 0)
	b.QuadTo(-1, -1, 0, -1)
	b.QuadTo(1, -1, 1, 0)
	b.Close()
	s := b.Shape()
	s.ColorEdges(DefaultConfig().AngleThreshold)

	for i, seg := range s.Contours[0].Segments {
		if seg.Mask != ChannelAll {
			t.Errorf("segment %d mask = %b, want All on a smooth contour", i, seg.Mask)
		}
	}
}

func TestGeneratorSDFSquare(t *testing.T) {
	g := NewGenerator(DefaultConfig())
	f, err := g.SDF(square(true))
	if err != nil {
		t.Fatalf("SDF: %v", err)
	}

	// Bounds 2..8 padded by ceil(Range/2) = 2 on each side.
	if f.Width != 10 || f.Height != 10 || f.Channels != 1 {
		t.Fatalf("field = %dx%dx%d, want 10x10x1", f.Width, f.Height, f.Channels)
	}
	if f.OriginX != 0 || f.OriginY != 10 {
		t.Errorf("origin = (%g, %g), want (0, 10)", f.OriginX, f.OriginY)
	}

	// Deep inside saturates to +1, far outside to -1.
	if got := f.At(5, 5, 0); got != 1 {
		t.Errorf("center sample = %g, want +1", got)
	}
	if got := f.At(0, 0, 0); got != -1 {
		t.Errorf("far corner sample = %g, want -1", got)
	}

	// Half a unit outside the top edge: -0.5 / (Range/2) = -0.25.
	if got := f.At(5, 1, 0); math.Abs(float64(got)+0.25) > 1e-5 {
		t.Errorf("sample above top edge = %g, want -0.25", got)
	}
	// Half a unit inside the top edge.
	if got := f.At(5, 2, 0); math.Abs(float64(got)-0.25) > 1e-5 {
		t.Errorf("sample below top edge = %g, want +0.25", got)
	}

	for i, v := range f.Samples {
		if v < -1 || v > 1 {
			t.Fatalf("sample %d = %g outside [-1, +1]", i, v)
		}
	}
}

func TestGeneratorNormalizesWinding(t *testing.T) {
	g := NewGenerator(DefaultConfig())
	ccw, err := g.SDF(square(true))
	if err != nil {
		t.Fatalf("SDF ccw: %v", err)
	}
	cw, err := g.SDF(square(false))
	if err != nil {
		t.Fatalf("SDF cw: %v", err)
	}

	if len(ccw.Samples) != len(cw.Samples) {
		t.Fatalf("sample counts differ: %d vs %d", len(ccw.Samples), len(cw.Samples))
	}
	for i := range ccw.Samples {
		if math.Abs(float64(ccw.Samples[i]-cw.Samples[i])) > 1e-5 {
			t.Fatalf("sample %d differs: %g vs %g", i, ccw.Samples[i], cw.Samples[i])
		}
	}
}

func TestGeneratorEmptyShape(t *testing.T) {
	g := NewGenerator(DefaultConfig())
	f, err := g.SDF(NewShapeBuilder().Shape())
	if err != nil {
		t.Fatalf("SDF: %v", err)
	}
	if f.Width != 1 || f.Height != 1 || f.Samples[0] != -1 {
		t.Errorf("empty field = %dx%d sample %g, want 1x1 of -1", f.Width, f.Height, f.Samples[0])
	}
}

func TestGeneratorMSDFSquare(t *testing.T) {
	g := NewGenerator(DefaultConfig())
	f, err := g.MSDF(square(true))
	if err != nil {
		t.Fatalf("MSDF: %v", err)
	}
	if f.Channels != 3 {
		t.Fatalf("Channels = %d, want 3", f.Channels)
	}

	if got := Median3(f.At(5, 5, 0), f.At(5, 5, 1), f.At(5, 5, 2)); got <= 0 {
		t.Errorf("median at center = %g, want positive", got)
	}
	if got := Median3(f.At(0, 0, 0), f.At(0, 0, 1), f.At(0, 0, 2)); got >= 0 {
		t.Errorf("median at far corner = %g, want negative", got)
	}
	// The median reconstructs the true distance near a straight edge.
	got := Median3(f.At(5, 1, 0), f.At(5, 1, 1), f.At(5, 1, 2))
	if math.Abs(float64(got)+0.25) > 1e-5 {
		t.Errorf("median above top edge = %g, want -0.25", got)
	}
}

func TestGeneratorMaxDimension(t *testing.T) {
	g := NewGenerator(Config{MaxDimension: 8})
	_, err := g.SDF(square(true))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "MaxDimension" {
		t.Fatalf("SDF = %v, want ConfigError on MaxDimension", err)
	}
}

func TestGeneratorRejectsBadThreshold(t *testing.T) {
	g := NewGenerator(Config{AngleThreshold: 4})
	if _, err := g.SDF(square(true)); err == nil {
		t.Fatal("SDF accepted out-of-range AngleThreshold")
	}
}
