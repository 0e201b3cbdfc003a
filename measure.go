package glyphkit

import (
	"fmt"
	"math"

	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/bidi"
)

// PositionedGlyph is a shaped glyph with an absolute pen position.
type PositionedGlyph struct {
	GID GlyphID

	// X, Y is the glyph origin in pixels, offsets already applied.
	X, Y float64

	// Cluster is carried through from the shaped input.
	Cluster int
}

// MeasureResult is the outcome of measuring one run.
type MeasureResult struct {
	// Width is the pen travel of the run in pixels, kerning included.
	// Always non-negative, also for right-to-left runs.
	Width float64

	// Ascent is the largest ink extent above the baseline.
	Ascent float64

	// Descent is the largest ink extent below the baseline, positive.
	Descent float64

	// LineHeight is Ascent + Descent.
	LineHeight float64

	// Glyphs is the positioned sequence, in the same order as the
	// shaped input. For right-to-left runs positions decrease.
	Glyphs []PositionedGlyph
}

// MeasureOptions controls a measurement.
type MeasureOptions struct {
	// Direction is the run's resolved direction.
	Direction Direction

	// DisableKerning skips pair adjustments.
	DisableKerning bool
}

// Measurer composes metrics and kerning lookups into run extents. It is
// stateless apart from the tables it reads through, so one instance
// serves any number of goroutines.
type Measurer struct {
	faces   FaceResolver
	metrics *MetricsTable
	kerning *KernTable
}

// NewMeasurer returns a measurer over the given tables.
func NewMeasurer(faces FaceResolver, metrics *MetricsTable, kerning *KernTable) *Measurer {
	return &Measurer{faces: faces, metrics: metrics, kerning: kerning}
}

// kernPixels converts a kerning delta in 26.6 font units to whole pixels
// at the given size, rounding half-to-even so long runs accumulate no
// systematic bias.
func kernPixels(delta fixed.Int26_6, sizePx float64, unitsPerEm int) float64 {
	if unitsPerEm <= 0 {
		return 0
	}
	return math.RoundToEven(float64(delta) / 64 * sizePx / float64(unitsPerEm))
}

// Measure places each shaped glyph at the pen plus its shaping offsets
// and advances by its metric advance. When kerning is enabled the pair
// delta is applied to the pen before the glyph is placed. For
// right-to-left runs the pen moves leftward and the result is shifted
// so positions come out non-negative.
func (m *Measurer) Measure(font FontHandle, sizePx float64, shaped []ShapedGlyph, opts MeasureOptions) (*MeasureResult, error) {
	if sizePx <= 0 {
		return nil, &ConfigError{Field: "sizePx", Reason: "must be positive"}
	}
	face, err := m.faces.Face(font)
	if err != nil {
		return nil, err
	}
	upm := face.UnitsPerEm()

	res := &MeasureResult{Glyphs: make([]PositionedGlyph, 0, len(shaped))}
	if len(shaped) == 0 {
		return res, nil
	}

	rtl := opts.Direction == DirectionRTL

	// The pen walks the glyphs in logical order: rightward for LTR,
	// leftward for RTL, so the logically first glyph lands rightmost in
	// a right-to-left run. Output positions stay in input order.
	var pen float64
	var prev GlyphID
	havePrev := false

	for _, g := range shaped {
		if havePrev && !opts.DisableKerning {
			delta, ok, err := m.kerning.Kern(font, prev, g.GID)
			if err != nil {
				return nil, fmt.Errorf("kerning %d/%d: %w", prev, g.GID, err)
			}
			if ok {
				// A negative delta tightens the pair in either direction.
				px := kernPixels(delta, sizePx, upm)
				if rtl {
					pen -= px
				} else {
					pen += px
				}
			}
		}

		gm, err := m.metrics.Metrics(font, g.GID, sizePx)
		if err != nil {
			return nil, fmt.Errorf("metrics for glyph %d: %w", g.GID, err)
		}

		advance := gm.Advance
		x := pen
		if rtl {
			// Pen moves leftward; the glyph origin sits at the advance's
			// left edge.
			x = pen - advance
		}
		res.Glyphs = append(res.Glyphs, PositionedGlyph{
			GID:     g.GID,
			X:       x + g.XOffset,
			Y:       g.YOffset,
			Cluster: g.Cluster,
		})
		if rtl {
			pen -= advance
		} else {
			pen += advance
		}

		if gm.TopBearing > res.Ascent {
			res.Ascent = gm.TopBearing
		}
		if d := -gm.Bounds.MinY; d > res.Descent {
			res.Descent = d
		}

		prev = g.GID
		havePrev = true
	}

	if rtl {
		// Shift so the leftmost position is zero and width reads the
		// same as for LTR.
		shift := -pen
		for i := range res.Glyphs {
			res.Glyphs[i].X += shift
		}
		res.Width = shift
	} else {
		res.Width = pen
	}
	res.LineHeight = res.Ascent + res.Descent
	return res, nil
}

// BidiRun is a maximal span of text with a single resolved direction.
type BidiRun struct {
	// Text is the run's text.
	Text string

	// Direction is the run's resolved direction.
	Direction Direction
}

// SplitBidi resolves a paragraph into directional runs using the Unicode
// bidirectional algorithm. Runs come back in visual order, left to
// right; shape and measure each run separately, then concatenate.
func SplitBidi(text string, base Direction) ([]BidiRun, error) {
	var p bidi.Paragraph
	opt := bidi.DefaultDirection(bidi.LeftToRight)
	if base == DirectionRTL {
		opt = bidi.DefaultDirection(bidi.RightToLeft)
	}
	if _, err := p.SetString(text, opt); err != nil {
		return nil, fmt.Errorf("bidi: %w", err)
	}
	ordering, err := p.Order()
	if err != nil {
		return nil, fmt.Errorf("bidi: %w", err)
	}

	runs := make([]BidiRun, 0, ordering.NumRuns())
	for i := 0; i < ordering.NumRuns(); i++ {
		run := ordering.Run(i)
		dir := DirectionLTR
		if run.Direction() == bidi.RightToLeft {
			dir = DirectionRTL
		}
		runs = append(runs, BidiRun{Text: run.String(), Direction: dir})
	}
	return runs, nil
}
