package glyphkit

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// SFNTBackend parses TrueType and OpenType fonts, including collections,
// with golang.org/x/image/font/sfnt. It has no native rasterizer: Raster
// reports ErrUnsupported and the producer renders from outlines instead.
//
// Faces are read-only after Open, so ReadSafe is true; per-call sfnt
// buffers come from a pool.
type SFNTBackend struct{}

// NewSFNTBackend returns the sfnt-based backend.
func NewSFNTBackend() *SFNTBackend { return &SFNTBackend{} }

var sfntMagics = []struct {
	magic  string
	format Format
}{
	{"\x00\x01\x00\x00", FormatTrueType},
	{"true", FormatTrueType},
	{"OTTO", FormatOpenType},
	{"ttcf", FormatCollection},
}

// Sniff implements FontBackend.
func (b *SFNTBackend) Sniff(data []byte) (Format, bool) {
	if len(data) < 4 {
		return FormatUnknown, false
	}
	for _, m := range sfntMagics {
		if bytes.HasPrefix(data, []byte(m.magic)) {
			return m.format, true
		}
	}
	return FormatUnknown, false
}

// Open implements FontBackend.
func (b *SFNTBackend) Open(src FaceSource, faceIndex int) (BackendFace, error) {
	format, ok := b.Sniff(src.Data)
	if !ok {
		return nil, ErrUnknownFormat
	}

	var f *sfnt.Font
	if format == FormatCollection {
		coll, err := sfnt.ParseCollection(src.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptFont, err)
		}
		if faceIndex < 0 || faceIndex >= coll.NumFonts() {
			return nil, fmt.Errorf("%w: face index %d out of range (collection has %d)",
				ErrCorruptFont, faceIndex, coll.NumFonts())
		}
		f, err = coll.Font(faceIndex)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptFont, err)
		}
	} else {
		if faceIndex != 0 {
			return nil, fmt.Errorf("%w: face index %d in a single-face container",
				ErrCorruptFont, faceIndex)
		}
		var err error
		f, err = sfnt.Parse(src.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptFont, err)
		}
	}

	face := &sfntFace{font: f}
	face.unitsPerEm = int(f.UnitsPerEm())
	face.upmFixed = fixed.I(face.unitsPerEm)
	return face, nil
}

// Version implements FontBackend.
func (b *SFNTBackend) Version() string {
	return "sfnt/x-image-v0.39.0"
}

type sfntFace struct {
	font       *sfnt.Font
	unitsPerEm int

	// upmFixed is the ppem at which LoadGlyph and Kern yield coordinates
	// numerically equal to font units.
	upmFixed fixed.Int26_6

	buffers sync.Pool
}

func (f *sfntFace) getBuffer() *sfnt.Buffer {
	if b, ok := f.buffers.Get().(*sfnt.Buffer); ok {
		return b
	}
	return &sfnt.Buffer{}
}

func (f *sfntFace) putBuffer(b *sfnt.Buffer) { f.buffers.Put(b) }

// Close implements BackendFace. sfnt faces hold no external resources.
func (f *sfntFace) Close() error { return nil }

// Properties implements BackendFace.
func (f *sfntFace) Properties() FaceProperties {
	p := FaceProperties{Weight: WeightNormal, Stretch: StretchNormal}
	b := f.getBuffer()
	defer f.putBuffer(b)

	if name, err := f.font.Name(b, sfnt.NameIDFamily); err == nil {
		p.Family = name
	}
	if sub, err := f.font.Name(b, sfnt.NameIDSubfamily); err == nil {
		p.Style, p.Weight = parseSubfamily(sub, p.Weight)
	}
	return p
}

// parseSubfamily maps common subfamily names onto style and weight. The
// sfnt package exposes no OS/2 weight class, so the name table is the
// best signal available.
func parseSubfamily(sub string, weight Weight) (Style, Weight) {
	style := StyleNormal
	if containsFold(sub, "italic") {
		style = StyleItalic
	} else if containsFold(sub, "oblique") {
		style = StyleOblique
	}
	switch {
	case containsFold(sub, "thin"):
		weight = WeightThin
	case containsFold(sub, "extralight"), containsFold(sub, "ultralight"):
		weight = WeightExtraLight
	case containsFold(sub, "semibold"), containsFold(sub, "demibold"):
		weight = WeightSemibold
	case containsFold(sub, "extrabold"), containsFold(sub, "ultrabold"):
		weight = WeightExtraBold
	case containsFold(sub, "light"):
		weight = WeightLight
	case containsFold(sub, "medium"):
		weight = WeightMedium
	case containsFold(sub, "black"), containsFold(sub, "heavy"):
		weight = WeightBlack
	case containsFold(sub, "bold"):
		weight = WeightBold
	}
	return style, weight
}

func containsFold(s, sub string) bool {
	n := len(sub)
	for i := 0; i+n <= len(s); i++ {
		match := true
		for j := 0; j < n; j++ {
			c := s[i+j]
			if c >= 'A' && c <= 'Z' {
				c += 'a' - 'A'
			}
			if c != sub[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// UnitsPerEm implements BackendFace.
func (f *sfntFace) UnitsPerEm() int { return f.unitsPerEm }

// GlyphOf implements BackendFace.
func (f *sfntFace) GlyphOf(r rune) GlyphID {
	b := f.getBuffer()
	defer f.putBuffer(b)
	idx, err := f.font.GlyphIndex(b, r)
	if err != nil {
		return 0
	}
	return GlyphID(idx)
}

// NumGlyphs implements BackendFace.
func (f *sfntFace) NumGlyphs() int { return f.font.NumGlyphs() }

// Metrics implements BackendFace.
func (f *sfntFace) Metrics(g GlyphID, ppem fixed.Int26_6) (GlyphMetrics, error) {
	b := f.getBuffer()
	defer f.putBuffer(b)

	adv, err := f.font.GlyphAdvance(b, sfnt.GlyphIndex(g), ppem, font.HintingNone)
	if err != nil {
		return GlyphMetrics{}, mapSFNTError(err)
	}
	bounds, _, err := f.font.GlyphBounds(b, sfnt.GlyphIndex(g), ppem, font.HintingNone)
	if err != nil {
		return GlyphMetrics{}, mapSFNTError(err)
	}

	// sfnt bounds are y-down: Min.Y is the topmost ink edge, negative
	// above the baseline. Flip to the y-up convention used here.
	m := GlyphMetrics{
		Advance:     fixedToFloat(adv),
		LeftBearing: fixedToFloat(bounds.Min.X),
		TopBearing:  -fixedToFloat(bounds.Min.Y),
		Bounds: Rect{
			MinX: fixedToFloat(bounds.Min.X),
			MinY: -fixedToFloat(bounds.Max.Y),
			MaxX: fixedToFloat(bounds.Max.X),
			MaxY: -fixedToFloat(bounds.Min.Y),
		},
	}
	return m, nil
}

// Outline implements BackendFace. Loading at a ppem equal to the em size
// makes the 26.6 segment coordinates numerically equal to font units.
func (f *sfntFace) Outline(g GlyphID) (*OutlineData, error) {
	b := f.getBuffer()
	defer f.putBuffer(b)

	segments, err := f.font.LoadGlyph(b, sfnt.GlyphIndex(g), f.upmFixed, nil)
	if err != nil {
		return nil, mapSFNTError(err)
	}
	return segmentsToOutline(segments, f.unitsPerEm)
}

// segmentsToOutline converts sfnt's y-down segment stream into y-up
// point contours, preserving curve degree.
func segmentsToOutline(segments []sfnt.Segment, unitsPerEm int) (*OutlineData, error) {
	out := &OutlineData{UnitsPerEm: unitsPerEm}
	var cur []ContourPoint

	flush := func() {
		if len(cur) > 0 {
			out.Contours = append(out.Contours, Contour{Points: cur, Closed: true})
		}
		cur = nil
	}
	pt := func(p fixed.Point26_6, kind PointKind) ContourPoint {
		return ContourPoint{
			X:    float32(p.X) / 64,
			Y:    -float32(p.Y) / 64,
			Kind: kind,
		}
	}

	for _, seg := range segments {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			flush()
			cur = append(cur, pt(seg.Args[0], PointOnCurve))
		case sfnt.SegmentOpLineTo:
			cur = append(cur, pt(seg.Args[0], PointOnCurve))
		case sfnt.SegmentOpQuadTo:
			cur = append(cur,
				pt(seg.Args[0], PointQuadControl),
				pt(seg.Args[1], PointOnCurve))
		case sfnt.SegmentOpCubeTo:
			cur = append(cur,
				pt(seg.Args[0], PointCubicControl),
				pt(seg.Args[1], PointCubicControl),
				pt(seg.Args[2], PointOnCurve))
		default:
			return nil, fmt.Errorf("%w: unknown segment op %d", ErrInvalidOutline, seg.Op)
		}
	}
	flush()

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Raster implements BackendFace. The sfnt package has no rasterizer, so
// production falls back to rendering the outline.
func (f *sfntFace) Raster(g GlyphID, ppem fixed.Int26_6, mode RasterMode) (*BitmapData, error) {
	return nil, ErrUnsupported
}

// Kern implements BackendFace. The delta comes back in 26.6 font units.
func (f *sfntFace) Kern(left, right GlyphID) (fixed.Int26_6, bool) {
	b := f.getBuffer()
	defer f.putBuffer(b)

	delta, err := f.font.Kern(b, sfnt.GlyphIndex(left), sfnt.GlyphIndex(right),
		f.upmFixed, font.HintingNone)
	if err != nil {
		return 0, false
	}
	return delta, true
}

// HasColor implements BackendFace. sfnt reports color glyphs with a
// dedicated load error.
func (f *sfntFace) HasColor(g GlyphID) bool {
	b := f.getBuffer()
	defer f.putBuffer(b)
	_, err := f.font.LoadGlyph(b, sfnt.GlyphIndex(g), f.upmFixed, nil)
	return errors.Is(err, sfnt.ErrColoredGlyph)
}

// VariationAxes implements BackendFace. The sfnt package does not expose
// fvar, so every face is static.
func (f *sfntFace) VariationAxes() []VariationAxis { return nil }

// ApplyVariation implements BackendFace.
func (f *sfntFace) ApplyVariation(coords []VarCoord) error {
	if len(coords) == 0 {
		return nil
	}
	return fmt.Errorf("%w: variable font axes", ErrUnsupported)
}

// ReadSafe implements BackendFace: faces are immutable and per-call
// buffers are pooled.
func (f *sfntFace) ReadSafe() bool { return true }

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

func mapSFNTError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sfnt.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrMissingGlyph, err)
	case errors.Is(err, sfnt.ErrColoredGlyph):
		return fmt.Errorf("%w: color glyph outlines", ErrUnsupported)
	default:
		return fmt.Errorf("%w: %v", ErrBackendIO, err)
	}
}
