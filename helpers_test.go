package glyphkit

import (
	"fmt"
	"sync"
	"testing"

	"golang.org/x/image/math/fixed"
)

// fakeMagic marks test font data for the fake backend's sniffer.
const fakeMagic = "FAKE"

// fakeGlyph is one scripted glyph: a 400x400 unit square of ink sitting
// at (100,100)..(500,500) on a 1000-unit em, unless empty.
type fakeGlyph struct {
	advance float64 // font units
	empty   bool    // whitespace: no outline
}

// fakeFace is a deterministic in-memory face: UPM 1000, scripted glyph
// set and kerning, injectable failures.
type fakeFace struct {
	mu     sync.Mutex
	closed bool

	props  FaceProperties
	glyphs map[GlyphID]fakeGlyph
	runes  map[rune]GlyphID
	kern   map[[2]GlyphID]fixed.Int26_6

	axes      []VariationAxis
	applied   []VarCoord
	outlineFn func(GlyphID) error // injected Outline failure
	metricsFn func(GlyphID) error // injected Metrics failure
}

func newFakeFace(family string) *fakeFace {
	f := &fakeFace{
		props:  FaceProperties{Family: family, Weight: WeightNormal, Stretch: StretchNormal},
		glyphs: make(map[GlyphID]fakeGlyph),
		runes:  make(map[rune]GlyphID),
		kern:   make(map[[2]GlyphID]fixed.Int26_6),
	}
	// Glyph 0 is .notdef; the scripted repertoire starts at 1.
	f.addGlyph('A', 1, 600, false)
	f.addGlyph('V', 2, 600, false)
	f.addGlyph('W', 3, 700, false)
	f.addGlyph(' ', 4, 250, true)
	// -80 font units between A and V.
	f.kern[[2]GlyphID{1, 2}] = -80 << 6
	return f
}

func (f *fakeFace) addGlyph(r rune, id GlyphID, advance float64, empty bool) {
	f.glyphs[id] = fakeGlyph{advance: advance, empty: empty}
	f.runes[r] = id
}

func (f *fakeFace) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFace) Properties() FaceProperties { return f.props }
func (f *fakeFace) UnitsPerEm() int            { return 1000 }

func (f *fakeFace) GlyphOf(r rune) GlyphID {
	return f.runes[r]
}

func (f *fakeFace) NumGlyphs() int {
	max := GlyphID(0)
	for id := range f.glyphs {
		if id > max {
			max = id
		}
	}
	return int(max) + 1
}

func (f *fakeFace) Metrics(g GlyphID, ppem fixed.Int26_6) (GlyphMetrics, error) {
	if f.metricsFn != nil {
		if err := f.metricsFn(g); err != nil {
			return GlyphMetrics{}, err
		}
	}
	glyph, ok := f.glyphs[g]
	if !ok {
		return GlyphMetrics{}, ErrMissingGlyph
	}
	scale := float64(ppem) / 64 / 1000
	m := GlyphMetrics{Advance: glyph.advance * scale}
	if !glyph.empty {
		m.LeftBearing = 100 * scale
		m.TopBearing = 500 * scale
		m.Bounds = Rect{MinX: 100 * scale, MinY: 100 * scale, MaxX: 500 * scale, MaxY: 500 * scale}
	}
	return m, nil
}

func (f *fakeFace) Outline(g GlyphID) (*OutlineData, error) {
	if f.outlineFn != nil {
		if err := f.outlineFn(g); err != nil {
			return nil, err
		}
	}
	glyph, ok := f.glyphs[g]
	if !ok {
		return nil, ErrMissingGlyph
	}
	if glyph.empty {
		return &OutlineData{UnitsPerEm: 1000}, nil
	}
	// Variable faces stretch the square with the applied weight, so
	// outline bytes expose whatever coordinate state the face is in.
	right := 100 + 400*f.wghtScale()
	return &OutlineData{
		UnitsPerEm: 1000,
		Contours: []Contour{{
			Closed: true,
			Points: []ContourPoint{
				{X: 100, Y: 100, Kind: PointOnCurve},
				{X: right, Y: 100, Kind: PointOnCurve},
				{X: right, Y: 500, Kind: PointOnCurve},
				{X: 100, Y: 500, Kind: PointOnCurve},
			},
		}},
	}, nil
}

const tagWght = 0x77676874 // 'wght'

// wghtScale is the horizontal stretch implied by the applied wght
// coordinate, 1 at the default 400.
func (f *fakeFace) wghtScale() float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.applied {
		if c.Tag == tagWght {
			return float32(c.Value) / 64 / 400
		}
	}
	return 1
}

func (f *fakeFace) Raster(g GlyphID, ppem fixed.Int26_6, mode RasterMode) (*BitmapData, error) {
	return nil, ErrUnsupported
}

func (f *fakeFace) Kern(left, right GlyphID) (fixed.Int26_6, bool) {
	d, ok := f.kern[[2]GlyphID{left, right}]
	return d, ok
}

func (f *fakeFace) HasColor(g GlyphID) bool { return false }

func (f *fakeFace) VariationAxes() []VariationAxis { return f.axes }

func (f *fakeFace) ApplyVariation(coords []VarCoord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append([]VarCoord(nil), coords...)
	return nil
}

func (f *fakeFace) ReadSafe() bool { return true }

// fakeBackend opens fakeFace instances for data prefixed with fakeMagic.
// The bytes after the magic name the family, so tests can register
// distinct faces.
type fakeBackend struct {
	mu     sync.Mutex
	opened []*fakeFace

	// openErr, when set, fails the next Open.
	openErr error

	// styleNext, when set, overrides the next opened face's properties.
	styleNext *FaceProperties
}

func newFakeBackend() *fakeBackend { return &fakeBackend{} }

// fakeFontData builds registerable bytes for a family name.
func fakeFontData(family string) []byte {
	return []byte(fakeMagic + family)
}

func (b *fakeBackend) Sniff(data []byte) (Format, bool) {
	if len(data) >= len(fakeMagic) && string(data[:len(fakeMagic)]) == fakeMagic {
		return FormatTrueType, true
	}
	return FormatUnknown, false
}

func (b *fakeBackend) Open(src FaceSource, faceIndex int) (BackendFace, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		err := b.openErr
		b.openErr = nil
		return nil, err
	}
	if faceIndex != 0 {
		return nil, fmt.Errorf("%w: face index %d", ErrCorruptFont, faceIndex)
	}
	face := newFakeFace(string(src.Data[len(fakeMagic):]))
	if b.styleNext != nil {
		face.props = *b.styleNext
		b.styleNext = nil
	}
	b.opened = append(b.opened, face)
	return face, nil
}

func (b *fakeBackend) Version() string { return "fake/1" }

// lastFace returns the most recently opened face.
func (b *fakeBackend) lastFace(t *testing.T) *fakeFace {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.opened) == 0 {
		t.Fatal("no face opened")
	}
	return b.opened[len(b.opened)-1]
}

// newTestRegistry registers one fake face and returns the pieces.
func newTestRegistry(t *testing.T) (*FontRegistry, *fakeBackend, FontHandle) {
	t.Helper()
	backend := newFakeBackend()
	reg := NewFontRegistry(backend)
	h, err := reg.Register(FaceSource{Data: fakeFontData("Test Sans")}, 0)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg, backend, h
}

// testFingerprint builds a valid fingerprint for cache-level tests that
// never touch a real registry.
func testFingerprint(glyph GlyphID) Fingerprint {
	return NewFingerprint(FontHandle{index: 1, gen: 1}, glyph, 16, ReprMetrics, QualityMedium, RenderFlags{}, nil)
}

// bitmapArtifact builds a bitmap artifact with an exact ByteCost.
func bitmapArtifact(t *testing.T, cost int64) *Artifact {
	t.Helper()
	n := int(cost) - artifactBaseCost
	if n < 1 {
		t.Fatalf("cost %d below base cost", cost)
	}
	art := &Artifact{
		Kind: ReprBitmap,
		Bitmap: &BitmapData{
			Width:  n,
			Height: 1,
			Stride: n,
			Format: FormatAlpha8,
			Data:   make([]byte, n),
		},
	}
	if got := art.ByteCost(); got != cost {
		t.Fatalf("ByteCost = %d, want %d", got, cost)
	}
	return art
}
