package glyphkit

// BitmapData is a rasterized glyph image.
type BitmapData struct {
	// Width and Height are the pixel dimensions.
	Width, Height int

	// Stride is the byte distance between rows. At least
	// Width * Format.BytesPerPixel().
	Stride int

	// Format is the sample layout.
	Format PixelFormat

	// OriginX, OriginY place the bitmap relative to the glyph origin on
	// the baseline: the top-left pixel sits at (OriginX, -OriginY).
	OriginX, OriginY float64

	// Data holds exactly Stride * Height bytes.
	Data []byte
}

// byteCost returns the heap cost of the bitmap.
func (b *BitmapData) byteCost() int64 { return int64(len(b.Data)) }

// FieldData is a signed distance field, single- or multi-channel.
// Samples are normalized to [-1, +1]: positive inside, negative outside,
// zero on the edge.
type FieldData struct {
	// Width and Height are the sample grid dimensions.
	Width, Height int

	// Channels is 1 for SDF, 3 for MSDF.
	Channels int

	// Scale is the factor from glyph pixels to field samples.
	Scale float64

	// Range is the full width of the encoded distance band, in pixels.
	Range float64

	// OriginX, OriginY place the field grid relative to the glyph origin,
	// like BitmapData.
	OriginX, OriginY float64

	// Samples holds Width * Height * Channels values, row-major, channels
	// interleaved.
	Samples []float32
}

// byteCost returns the heap cost of the field.
func (f *FieldData) byteCost() int64 { return int64(len(f.Samples)) * 4 }

// GlyphMetrics is a per-glyph metrics record in pixels at the requested
// size.
type GlyphMetrics struct {
	// Advance is the horizontal pen movement the glyph contributes.
	Advance float64

	// LeftBearing is the distance from the origin to the ink's left edge.
	LeftBearing float64

	// TopBearing is the distance from the baseline up to the ink's top.
	TopBearing float64

	// Bounds is the ink bounding box relative to the origin.
	Bounds Rect

	// VerticalAdvance is the vertical-layout advance, zero when the face
	// carries none.
	VerticalAdvance float64
}

// Artifact is the produced output for one fingerprint. Exactly one of
// the payload fields is non-nil, selected by Kind. Artifacts are immutable
// once produced; the cache hands the same instance to every requester.
type Artifact struct {
	// Kind tags which payload field is set. It always equals the
	// requesting fingerprint's Repr.
	Kind Representation

	Bitmap  *BitmapData
	Field   *FieldData
	Outline *OutlineData
	Path    *PathData
	Metrics *GlyphMetrics
}

// structural per-entry overheads used by ByteCost, approximating the
// bookkeeping around the raw payload bytes.
const (
	artifactBaseCost = 64
	pointCost        = 12
	commandCost      = 28
)

// ByteCost returns the authoritative memory cost of the artifact as used
// by the cache's eviction accounting. It is computed from the concrete
// layout, never caller-supplied, and is deterministic for equal contents.
func (a *Artifact) ByteCost() int64 {
	cost := int64(artifactBaseCost)
	switch a.Kind {
	case ReprBitmap:
		if a.Bitmap != nil {
			cost += a.Bitmap.byteCost()
		}
	case ReprSDF, ReprMSDF:
		if a.Field != nil {
			cost += a.Field.byteCost()
		}
	case ReprOutline:
		if a.Outline != nil {
			cost += int64(a.Outline.pointCount()) * pointCost
		}
	case ReprPath:
		if a.Path != nil {
			cost += int64(len(a.Path.Commands)) * commandCost
		}
	case ReprMetrics:
		// Base cost only; the record is a fixed-size value.
	}
	return cost
}

// Validate checks the artifact's structural invariants: the payload
// matches the kind, bitmap data length equals stride*height, field sample
// count matches its grid, and outline/path structures are well formed.
func (a *Artifact) Validate() error {
	switch a.Kind {
	case ReprBitmap:
		b := a.Bitmap
		if b == nil {
			return ErrInvalidOutline
		}
		if b.Stride < b.Width*b.Format.BytesPerPixel() || len(b.Data) != b.Stride*b.Height {
			return ErrInvalidOutline
		}
	case ReprSDF, ReprMSDF:
		f := a.Field
		if f == nil {
			return ErrInvalidOutline
		}
		want := 1
		if a.Kind == ReprMSDF {
			want = 3
		}
		if f.Channels != want || len(f.Samples) != f.Width*f.Height*f.Channels {
			return ErrInvalidOutline
		}
	case ReprOutline:
		if a.Outline == nil {
			return ErrInvalidOutline
		}
		return a.Outline.Validate()
	case ReprPath:
		if a.Path == nil {
			return ErrInvalidOutline
		}
		return a.Path.Validate()
	case ReprMetrics:
		if a.Metrics == nil {
			return ErrInvalidOutline
		}
	default:
		return ErrInvalidOutline
	}
	return nil
}
