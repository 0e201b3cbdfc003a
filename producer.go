package glyphkit

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/image/math/fixed"

	"github.com/gogpu/glyphkit/sdf"
)

// FaceResolver resolves a handle to a live backend face. FontRegistry is
// the canonical implementation.
type FaceResolver interface {
	Face(FontHandle) (BackendFace, error)
}

// GlyphProducer turns fingerprints into artifacts. It owns no cache: the
// same fingerprint produces an equivalent artifact every time, which is
// what lets the cache treat production as a pure function of the key.
//
// GlyphProducer is safe for concurrent use. Faces whose backends are not
// read-safe, and all variable-font operations, are serialized per face.
type GlyphProducer struct {
	faces FaceResolver

	// faceLocks serializes access to faces that need it, keyed by handle.
	// Kept separate from cache shard locks; the lock order is always
	// registry, then shard, then face.
	mu        sync.Mutex
	faceLocks map[FontHandle]*sync.Mutex
}

// NewGlyphProducer creates a producer resolving faces through the given
// resolver.
func NewGlyphProducer(faces FaceResolver) *GlyphProducer {
	return &GlyphProducer{
		faces:     faces,
		faceLocks: make(map[FontHandle]*sync.Mutex),
	}
}

// fieldRange maps a quality tier to the distance-field band half-width
// in pixels.
func fieldRange(q Quality) float64 {
	switch q {
	case QualityLow:
		return 2
	case QualityMedium:
		return 4
	case QualityHigh:
		return 8
	default:
		return 16
	}
}

// Produce implements Producer.
func (p *GlyphProducer) Produce(fp Fingerprint) (*Artifact, error) {
	if err := fp.Validate(); err != nil {
		return nil, err
	}
	face, err := p.faces.Face(fp.Font)
	if err != nil {
		return nil, err
	}

	unlock := p.lockFace(fp, face)
	defer unlock()

	if len(fp.Variations) > 0 {
		if err := face.ApplyVariation(fp.Variations); err != nil {
			return nil, fmt.Errorf("%w: applying variations: %v", ErrConfigOutOfRange, err)
		}
	} else if axes := face.VariationAxes(); len(axes) > 0 {
		// The face keeps whatever coordinates the previous production
		// applied; pin every axis back to its default so the plain
		// fingerprint always maps to the same artifact bytes.
		if err := face.ApplyVariation(defaultCoords(axes)); err != nil {
			return nil, fmt.Errorf("%w: resetting variations: %v", ErrConfigOutOfRange, err)
		}
	}

	if int(fp.Glyph) >= face.NumGlyphs() {
		return nil, fmt.Errorf("%w: glyph %d of %d", ErrMissingGlyph, fp.Glyph, face.NumGlyphs())
	}

	switch fp.Repr {
	case ReprMetrics:
		return p.produceMetrics(face, fp)
	case ReprOutline:
		out, err := p.produceOutline(face, fp)
		if err != nil {
			return nil, err
		}
		return &Artifact{Kind: ReprOutline, Outline: out}, nil
	case ReprPath:
		out, err := p.produceOutline(face, fp)
		if err != nil {
			return nil, err
		}
		path, err := OutlineToPath(out)
		if err != nil {
			return nil, err
		}
		return &Artifact{Kind: ReprPath, Path: path}, nil
	case ReprBitmap:
		return p.produceBitmap(face, fp)
	case ReprSDF:
		return p.produceField(face, fp, 1)
	case ReprMSDF:
		return p.produceField(face, fp, 3)
	default:
		return nil, &FingerprintError{Field: "Repr", Reason: "unknown representation"}
	}
}

// lockFace acquires the per-face lock when the face requires
// serialization: the backend is not read-safe, the request carries
// coordinates, or the face is variation-capable at all. The last case
// matters because every production on such a face sets the coordinate
// state, coordinates or defaults, before reading from it. Returns the
// unlock function (a no-op when no lock was taken).
func (p *GlyphProducer) lockFace(fp Fingerprint, face BackendFace) func() {
	if face.ReadSafe() && len(fp.Variations) == 0 && len(face.VariationAxes()) == 0 {
		return func() {}
	}
	p.mu.Lock()
	l, ok := p.faceLocks[fp.Font]
	if !ok {
		l = &sync.Mutex{}
		p.faceLocks[fp.Font] = l
	}
	p.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// defaultCoords builds the coordinate vector that puts every axis at
// its default position.
func defaultCoords(axes []VariationAxis) []VarCoord {
	out := make([]VarCoord, len(axes))
	for i, a := range axes {
		out[i] = VarCoord{Tag: a.Tag, Value: a.Default}
	}
	return out
}

// forgetFace drops the serialization lock for an unregistered handle.
func (p *GlyphProducer) forgetFace(h FontHandle) {
	p.mu.Lock()
	delete(p.faceLocks, h)
	p.mu.Unlock()
}

// produceMetrics normalizes backend metrics to floating pixel units.
func (p *GlyphProducer) produceMetrics(face BackendFace, fp Fingerprint) (*Artifact, error) {
	m, err := face.Metrics(fp.Glyph, fp.Size)
	if err != nil {
		return nil, mapBackendError(err)
	}
	return &Artifact{Kind: ReprMetrics, Metrics: &m}, nil
}

// produceOutline extracts the outline and applies the transform chain:
// scale to pixels, oblique shear, embolden. Curve degree is preserved.
func (p *GlyphProducer) produceOutline(face BackendFace, fp Fingerprint) (*OutlineData, error) {
	raw, err := face.Outline(fp.Glyph)
	if err != nil {
		return nil, mapBackendError(err)
	}
	if err := raw.Validate(); err != nil {
		return nil, err
	}

	upm := raw.UnitsPerEm
	if upm <= 0 {
		upm = face.UnitsPerEm()
	}
	if upm <= 0 {
		return nil, fmt.Errorf("%w: units per em %d", ErrInvalidOutline, upm)
	}

	scale := fp.SizePx() / float64(upm)
	m := ScaleMatrix(scale, scale)
	if fp.Flags.Oblique != 0 {
		m = m.Mul(ShearMatrix(float64(fp.Flags.Oblique) / 64))
	}
	out := raw.Transform(m)

	if fp.Flags.Embolden != 0 {
		out = out.Transform(emboldenMatrix(out.Bounds(), float64(fp.Flags.Embolden)/64))
	}

	out.UnitsPerEm = 0 // pixel space now
	return out, nil
}

// emboldenMatrix widens a shape by the given pixel delta on every side,
// expressed as a scale about the bounds center so it stays an affine
// step in the fixed scale, shear, embolden order.
func emboldenMatrix(b Rect, delta float64) Matrix {
	w, h := b.Width(), b.Height()
	sx, sy := 1.0, 1.0
	if w > 0 {
		sx = (w + 2*delta) / w
	}
	if h > 0 {
		sy = (h + 2*delta) / h
	}
	cx := (b.MinX + b.MaxX) / 2
	cy := (b.MinY + b.MaxY) / 2
	return Matrix{A: sx, D: sy, E: cx - sx*cx, F: cy - sy*cy}
}

// produceBitmap rasterizes a glyph. The backend's native rasterizer is
// preferred; when it cannot satisfy the requested subpixel mode (or has
// no rasterizer at all), the producer rasterizes the transformed outline
// itself, with 3x oversampling for subpixel output. Gamma is applied
// last in either path.
func (p *GlyphProducer) produceBitmap(face BackendFace, fp Fingerprint) (*Artifact, error) {
	mode := RasterMode{
		Antialias: fp.Flags.Antialias,
		Hinting:   fp.Flags.Hinting,
		Subpixel:  fp.Flags.Subpixel,
	}

	var bm *BitmapData
	native, err := face.Raster(fp.Glyph, fp.Size, mode)
	switch {
	case err == nil && subpixelSatisfied(native.Format, fp.Flags.Subpixel):
		bm = native
	case err != nil && !errors.Is(err, ErrUnsupported):
		return nil, mapBackendError(err)
	default:
		out, oerr := p.produceOutline(face, fp)
		if oerr != nil {
			return nil, oerr
		}
		bm, oerr = rasterizeOutline(out, fp.Flags)
		if oerr != nil {
			return nil, oerr
		}
	}

	applyGamma(bm, fp.Flags.GammaValue())

	art := &Artifact{Kind: ReprBitmap, Bitmap: bm}
	if err := art.Validate(); err != nil {
		return nil, err
	}
	return art, nil
}

// subpixelSatisfied reports whether a backend bitmap format matches the
// requested subpixel mode.
func subpixelSatisfied(f PixelFormat, mode SubpixelMode) bool {
	if mode.IsEnabled() {
		return f == FormatRGB24
	}
	return f == FormatAlpha8
}

// produceField builds a signed distance field from the glyph outline and
// converts it to the artifact layout. channels is 1 for SDF, 3 for MSDF.
func (p *GlyphProducer) produceField(face BackendFace, fp Fingerprint, channels int) (*Artifact, error) {
	out, err := p.produceOutline(face, fp)
	if err != nil {
		return nil, err
	}
	path, err := OutlineToPath(out)
	if err != nil {
		return nil, err
	}

	shape := sdf.NewShapeBuilder()
	for _, cmd := range path.Commands {
		pts := cmd.Points
		switch cmd.Op {
		case PathMoveTo:
			shape.MoveTo(pts[0].X, pts[0].Y)
		case PathLineTo:
			shape.LineTo(pts[0].X, pts[0].Y)
		case PathQuadTo:
			shape.QuadTo(pts[0].X, pts[0].Y, pts[1].X, pts[1].Y)
		case PathCubicTo:
			shape.CubicTo(pts[0].X, pts[0].Y, pts[1].X, pts[1].Y, pts[2].X, pts[2].Y)
		case PathClose:
			shape.Close()
		}
	}

	cfg := sdf.Config{Range: float32(fieldRange(fp.Quality))}
	gen := sdf.NewGenerator(cfg)

	var field *sdf.Field
	if channels == 3 {
		field, err = gen.MSDF(shape.Shape())
	} else {
		field, err = gen.SDF(shape.Shape())
	}
	if err != nil {
		var cfgErr *sdf.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("%w: %v", ErrConfigOutOfRange, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutline, err)
	}

	art := &Artifact{
		Kind: ReprSDF,
		Field: &FieldData{
			Width:    field.Width,
			Height:   field.Height,
			Channels: field.Channels,
			Scale:    float64(field.Scale),
			Range:    float64(field.Range),
			OriginX:  float64(field.OriginX),
			OriginY:  float64(field.OriginY),
			Samples:  field.Samples,
		},
	}
	if channels == 3 {
		art.Kind = ReprMSDF
	}
	if err := art.Validate(); err != nil {
		return nil, err
	}
	return art, nil
}

// mapBackendError folds backend sentinel errors into the production
// error kinds, leaving already-classified errors alone.
func mapBackendError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMissingGlyph),
		errors.Is(err, ErrInvalidOutline),
		errors.Is(err, ErrBackendIO),
		errors.Is(err, ErrUnknownFont),
		errors.Is(err, ErrConfigOutOfRange),
		errors.Is(err, ErrUnsupported):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrBackendIO, err)
	}
}

// ppemOf is a small helper for backends: the fixed-point pixel size as a
// rounded integer ppem.
func ppemOf(size fixed.Int26_6) int {
	return int((size + 32) >> 6)
}
