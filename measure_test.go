package glyphkit

import (
	"math"
	"testing"
)

func newTestMeasurer(t *testing.T) (*Measurer, FontHandle) {
	t.Helper()
	reg, _, h := newTestRegistry(t)
	m := NewMeasurer(reg, NewMetricsTable(reg, 0), NewKernTable(reg, 0))
	return m, h
}

// shapedRun builds a plain shaped sequence: no offsets, clusters in
// logical order. Advances are irrelevant to the measurer, which reads
// them from the metrics table.
func shapedRun(gids ...GlyphID) []ShapedGlyph {
	run := make([]ShapedGlyph, len(gids))
	for i, g := range gids {
		run[i] = ShapedGlyph{GID: g, Cluster: i}
	}
	return run
}

func TestMeasureKerningContribution(t *testing.T) {
	m, h := newTestMeasurer(t)

	// kerning(A, V) is -80/1000 em: at 16 px that is -1.28, banker's
	// rounded to -1. Width = advance(A) + advance(V) - 1.
	res, err := m.Measure(h, 16, shapedRun(1, 2), MeasureOptions{})
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	want := 9.6 + 9.6 - 1
	if math.Abs(res.Width-want) > 1e-9 {
		t.Errorf("Width = %g, want %g", res.Width, want)
	}

	// The second glyph sits one pixel left of the unkerned position.
	if got, want := res.Glyphs[1].X, 9.6-1; math.Abs(got-want) > 1e-9 {
		t.Errorf("V position = %g, want %g", got, want)
	}
}

func TestMeasureWithoutKerning(t *testing.T) {
	m, h := newTestMeasurer(t)

	res, err := m.Measure(h, 16, shapedRun(1, 2), MeasureOptions{DisableKerning: true})
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if want := 19.2; math.Abs(res.Width-want) > 1e-9 {
		t.Errorf("Width = %g, want %g", res.Width, want)
	}
}

func TestMeasureUnkernedPairAddsNothing(t *testing.T) {
	m, h := newTestMeasurer(t)

	// V then A has no scripted kerning.
	res, err := m.Measure(h, 16, shapedRun(2, 1), MeasureOptions{})
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if want := 19.2; math.Abs(res.Width-want) > 1e-9 {
		t.Errorf("Width = %g, want %g", res.Width, want)
	}
}

func TestMeasureVerticalExtents(t *testing.T) {
	m, h := newTestMeasurer(t)

	res, err := m.Measure(h, 16, shapedRun(1), MeasureOptions{})
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	// The fake square's ink reaches 500/1000 em above the baseline and
	// never below it.
	if want := 8.0; math.Abs(res.Ascent-want) > 1e-9 {
		t.Errorf("Ascent = %g, want %g", res.Ascent, want)
	}
	if res.Descent != 0 {
		t.Errorf("Descent = %g, want 0", res.Descent)
	}
	if math.Abs(res.LineHeight-res.Ascent-res.Descent) > 1e-12 {
		t.Errorf("LineHeight = %g, want Ascent+Descent", res.LineHeight)
	}
}

func TestMeasureRTL(t *testing.T) {
	m, h := newTestMeasurer(t)

	res, err := m.Measure(h, 16, shapedRun(1, 2), MeasureOptions{
		Direction:      DirectionRTL,
		DisableKerning: true,
	})
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if want := 19.2; math.Abs(res.Width-want) > 1e-9 {
		t.Errorf("RTL Width = %g, want %g", res.Width, want)
	}
	// Positions are shifted non-negative; the logically first glyph is
	// rightmost.
	for i, g := range res.Glyphs {
		if g.X < -1e-9 {
			t.Errorf("glyph %d at X=%g, want non-negative", i, g.X)
		}
	}
	if got, want := res.Glyphs[0].X, 9.6; math.Abs(got-want) > 1e-9 {
		t.Errorf("first logical glyph at X=%g, want %g (rightmost)", got, want)
	}
	if got := res.Glyphs[1].X; math.Abs(got) > 1e-9 {
		t.Errorf("last logical glyph at X=%g, want 0 (leftmost)", got)
	}
}

func TestMeasureEmptyRun(t *testing.T) {
	m, h := newTestMeasurer(t)

	res, err := m.Measure(h, 16, nil, MeasureOptions{})
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if res.Width != 0 || len(res.Glyphs) != 0 {
		t.Errorf("empty run = %+v, want zero result", res)
	}
}

func TestMeasureAppliesShapingOffsets(t *testing.T) {
	m, h := newTestMeasurer(t)

	run := shapedRun(1)
	run[0].XOffset = 0.5
	run[0].YOffset = -2
	res, err := m.Measure(h, 16, run, MeasureOptions{})
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if got := res.Glyphs[0].X; math.Abs(got-0.5) > 1e-9 {
		t.Errorf("X = %g, want 0.5", got)
	}
	if got := res.Glyphs[0].Y; got != -2 {
		t.Errorf("Y = %g, want -2", got)
	}
	// Offsets displace ink, not the pen.
	if want := 9.6; math.Abs(res.Width-want) > 1e-9 {
		t.Errorf("Width = %g, want %g", res.Width, want)
	}
}

func TestMeasureRejectsBadSize(t *testing.T) {
	m, h := newTestMeasurer(t)
	if _, err := m.Measure(h, 0, shapedRun(1), MeasureOptions{}); err == nil {
		t.Error("zero size accepted")
	}
}

func TestSplitBidiPlainText(t *testing.T) {
	runs, err := SplitBidi("hello world", DirectionLTR)
	if err != nil {
		t.Fatalf("SplitBidi: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].Direction != DirectionLTR || runs[0].Text != "hello world" {
		t.Errorf("run = %+v", runs[0])
	}
}

func TestSplitBidiMixedText(t *testing.T) {
	// Latin, then Hebrew, then Latin.
	text := "abc אבג def"
	runs, err := SplitBidi(text, DirectionLTR)
	if err != nil {
		t.Fatalf("SplitBidi: %v", err)
	}
	if len(runs) < 2 {
		t.Fatalf("runs = %d, want at least 2", len(runs))
	}
	var sawRTL bool
	total := 0
	for _, r := range runs {
		if r.Direction == DirectionRTL {
			sawRTL = true
		}
		total += len(r.Text)
	}
	if !sawRTL {
		t.Error("no RTL run detected")
	}
	if total != len(text) {
		t.Errorf("runs cover %d bytes, want %d", total, len(text))
	}
}
