package glyphkit

import "golang.org/x/image/math/fixed"

// Format identifies a font container format reported by sniffing.
type Format uint8

const (
	// FormatUnknown means the data was not recognized.
	FormatUnknown Format = iota
	// FormatTrueType is a TrueType-flavored sfnt ('\x00\x01\x00\x00' or 'true').
	FormatTrueType
	// FormatOpenType is a CFF-flavored sfnt ('OTTO').
	FormatOpenType
	// FormatCollection is a TrueType/OpenType collection ('ttcf').
	FormatCollection
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatTrueType:
		return "TrueType"
	case FormatOpenType:
		return "OpenType"
	case FormatCollection:
		return "Collection"
	default:
		return unknownStr
	}
}

// FaceSource locates font data for registration: either a filesystem path
// or an in-memory blob. Exactly one of the fields should be set; Data wins
// when both are.
type FaceSource struct {
	Path string
	Data []byte
}

// RasterMode carries the rasterization parameters the producer forwards to
// a backend's native rasterizer.
type RasterMode struct {
	Antialias bool
	Hinting   Hinting
	Subpixel  SubpixelMode
}

// VariationAxis describes one variable-font axis.
type VariationAxis struct {
	// Tag is the OpenType axis tag, packed big-endian (e.g. 'wght').
	Tag uint32

	// Minimum, Default and Maximum are the axis value range in 1/64 units.
	Minimum, Default, Maximum fixed.Int26_6

	// Hidden reports the axis is not meant for direct user exposure.
	Hidden bool
}

// FaceProperties is the identity metadata a backend can read off a face.
// Fields the face does not declare are left at their zero values; the
// registry substitutes defaults.
type FaceProperties struct {
	Family  string
	Style   Style
	Weight  Weight
	Stretch Stretch
}

// FontBackend is the font parsing plugin seam. glyphkit never decodes
// font files itself; a backend sniffs, opens and closes faces.
//
// Implementations must be safe for concurrent use.
type FontBackend interface {
	// Sniff inspects raw bytes and reports the container format.
	// Returns FormatUnknown, false for unrecognized data.
	Sniff(data []byte) (Format, bool)

	// Open decodes a face. faceIndex selects within collections and must
	// be 0 for single-face containers. Open reports ErrUnknownFormat,
	// ErrCorruptFont or a wrapped ErrBackendIO.
	Open(src FaceSource, faceIndex int) (BackendFace, error)

	// Version identifies the backend implementation and revision. The
	// cache dump records it: artifacts are only bit-reproducible for the
	// backend version that produced them.
	Version() string
}

// BackendFace is one loaded face. Faces report whether their read methods
// are safe to call concurrently via ReadSafe; when they are not, the
// producer serializes access with a per-face lock.
type BackendFace interface {
	// Close releases face resources. The registry calls it when the face
	// is unregistered or the registry shuts down.
	Close() error

	// Properties returns the face's identity metadata.
	Properties() FaceProperties

	// UnitsPerEm returns the design grid size.
	UnitsPerEm() int

	// GlyphOf maps a rune to its glyph index. Zero means no glyph.
	GlyphOf(r rune) GlyphID

	// NumGlyphs returns the glyph count; valid indices are [0, NumGlyphs).
	NumGlyphs() int

	// Metrics returns per-glyph metrics at the given pixel size.
	Metrics(g GlyphID, ppem fixed.Int26_6) (GlyphMetrics, error)

	// Outline returns the glyph outline in font units.
	Outline(g GlyphID) (*OutlineData, error)

	// Raster rasterizes a glyph at the given pixel size. Backends without
	// native subpixel support may ignore mode.Subpixel; the producer
	// detects the returned format and oversamples itself.
	Raster(g GlyphID, ppem fixed.Int26_6, mode RasterMode) (*BitmapData, error)

	// Kern returns the kerning adjustment for the glyph pair in font
	// units, and whether the face declares the pair at all.
	Kern(left, right GlyphID) (fixed.Int26_6, bool)

	// HasColor reports whether the glyph has color layers or embedded
	// color bitmaps.
	HasColor(g GlyphID) bool

	// VariationAxes lists the face's variation axes; nil for static fonts.
	VariationAxes() []VariationAxis

	// ApplyVariation sets axis coordinates for subsequent operations.
	// Static backends return ErrUnsupported.
	ApplyVariation(coords []VarCoord) error

	// ReadSafe reports whether the read methods above may be called
	// concurrently without external locking.
	ReadSafe() bool
}

// ShapedGlyph is one positioned glyph emitted by a shaper.
type ShapedGlyph struct {
	// GID is the glyph index in the shaped face.
	GID GlyphID

	// XOffset, YOffset are fine positioning adjustments relative to the
	// pen, in pixels.
	XOffset, YOffset float64

	// XAdvance, YAdvance are the pen movement after this glyph, in pixels.
	XAdvance, YAdvance float64

	// Cluster is the index of the source text cluster this glyph maps to.
	Cluster int
}

// ShapeOptions parameterizes a shaping call.
type ShapeOptions struct {
	// Direction is the run direction.
	Direction Direction

	// Script is an ISO 15924 script tag such as "Latn". Empty means
	// detect from the text.
	Script string

	// Language is a BCP 47 language tag such as "en". Empty means "en".
	Language string

	// Features lists OpenType feature tags to enable, e.g. "liga".
	Features []string
}

// ShaperBackend is the text shaping plugin seam: a pure function from
// text plus parameters to a positioned glyph run.
//
// Implementations must be safe for concurrent use.
type ShaperBackend interface {
	Shape(face BackendFace, data []byte, sizePx float64, text string, opts ShapeOptions) ([]ShapedGlyph, error)
}
