package glyphkit

// unknownStr is the string returned for unknown enum values.
const unknownStr = "Unknown"

// GlyphID is a glyph index within a font face, assigned by the font file.
// Index 0 is the conventional "missing glyph" (.notdef).
type GlyphID uint32

// Representation selects the concrete artifact kind a request produces.
type Representation uint8

const (
	// ReprBitmap is a rasterized alpha or subpixel bitmap.
	ReprBitmap Representation = iota
	// ReprOutline is the scaled vector outline as point contours.
	ReprOutline
	// ReprSDF is a single-channel signed distance field.
	ReprSDF
	// ReprMSDF is a multi-channel (RGB) signed distance field.
	ReprMSDF
	// ReprMetrics is a per-glyph metrics record with no image data.
	ReprMetrics
	// ReprPath is the outline converted to a MoveTo/LineTo/... command stream.
	ReprPath

	numRepresentations
)

// String returns the string representation of the representation kind.
func (r Representation) String() string {
	switch r {
	case ReprBitmap:
		return "Bitmap"
	case ReprOutline:
		return "Outline"
	case ReprSDF:
		return "SDF"
	case ReprMSDF:
		return "MSDF"
	case ReprMetrics:
		return "Metrics"
	case ReprPath:
		return "Path"
	default:
		return unknownStr
	}
}

// Valid reports whether r is one of the defined representation kinds.
func (r Representation) Valid() bool { return r < numRepresentations }

// Quality is the production quality tier. Higher tiers trade production
// time for output fidelity (sampling density, filter width).
type Quality uint8

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
	QualityUltra

	numQualities
)

// String returns the string representation of the quality tier.
func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "Low"
	case QualityMedium:
		return "Medium"
	case QualityHigh:
		return "High"
	case QualityUltra:
		return "Ultra"
	default:
		return unknownStr
	}
}

// Valid reports whether q is one of the defined quality tiers.
func (q Quality) Valid() bool { return q < numQualities }

// Hinting specifies the grid-fitting mode applied during rasterization.
type Hinting uint8

const (
	// HintingNone disables grid fitting.
	HintingNone Hinting = iota
	// HintingSlight fits only vertical stems, preserving horizontal shape.
	HintingSlight
	// HintingMedium fits stems in both axes with conservative snapping.
	HintingMedium
	// HintingFull snaps outlines fully to the pixel grid.
	HintingFull
)

// String returns the string representation of the hinting mode.
func (h Hinting) String() string {
	switch h {
	case HintingNone:
		return "None"
	case HintingSlight:
		return "Slight"
	case HintingMedium:
		return "Medium"
	case HintingFull:
		return "Full"
	default:
		return unknownStr
	}
}

// SubpixelMode selects subpixel rendering orientation for bitmaps.
type SubpixelMode uint8

const (
	// SubpixelNone renders whole-pixel alpha coverage.
	SubpixelNone SubpixelMode = iota
	// SubpixelH renders horizontal RGB stripes (typical LCD).
	SubpixelH
	// SubpixelV renders vertical RGB stripes (rotated panel).
	SubpixelV
	// SubpixelHV renders both orientations; backends typically treat this
	// as SubpixelH with a vertical filter pass.
	SubpixelHV
)

// String returns the string representation of the subpixel mode.
func (m SubpixelMode) String() string {
	switch m {
	case SubpixelNone:
		return "None"
	case SubpixelH:
		return "H"
	case SubpixelV:
		return "V"
	case SubpixelHV:
		return "HV"
	default:
		return unknownStr
	}
}

// IsEnabled reports whether subpixel rendering is requested.
func (m SubpixelMode) IsEnabled() bool { return m != SubpixelNone }

// Direction specifies the visual order of a shaped run.
type Direction uint8

const (
	// DirectionLTR is left-to-right text (Latin, Cyrillic, ...).
	DirectionLTR Direction = iota
	// DirectionRTL is right-to-left text (Arabic, Hebrew).
	DirectionRTL
	// DirectionTTB is top-to-bottom vertical text.
	DirectionTTB
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionLTR:
		return "LTR"
	case DirectionRTL:
		return "RTL"
	case DirectionTTB:
		return "TTB"
	default:
		return unknownStr
	}
}

// IsHorizontal reports whether the direction is horizontal.
func (d Direction) IsHorizontal() bool { return d == DirectionLTR || d == DirectionRTL }

// PixelFormat describes the sample layout of a produced bitmap.
type PixelFormat uint8

const (
	// FormatAlpha8 is one coverage byte per pixel.
	FormatAlpha8 PixelFormat = iota
	// FormatRGB24 is three bytes per pixel, used for subpixel output.
	FormatRGB24
)

// BytesPerPixel returns the storage cost of one pixel.
func (f PixelFormat) BytesPerPixel() int {
	if f == FormatRGB24 {
		return 3
	}
	return 1
}

// String returns the string representation of the pixel format.
func (f PixelFormat) String() string {
	switch f {
	case FormatAlpha8:
		return "Alpha8"
	case FormatRGB24:
		return "RGB24"
	default:
		return unknownStr
	}
}

// Rect is an axis-aligned rectangle in glyph space.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Width returns the width of the rectangle.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the height of the rectangle.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Empty reports whether the rectangle encloses no area.
func (r Rect) Empty() bool { return r.MinX >= r.MaxX || r.MinY >= r.MaxY }

// Union returns the smallest rectangle containing both r and s.
func (r Rect) Union(s Rect) Rect {
	if r.Empty() {
		return s
	}
	if s.Empty() {
		return r
	}
	return Rect{
		MinX: min(r.MinX, s.MinX),
		MinY: min(r.MinY, s.MinY),
		MaxX: max(r.MaxX, s.MaxX),
		MaxY: max(r.MaxY, s.MaxY),
	}
}

// Style is the slant classification of a face.
type Style uint8

const (
	StyleNormal Style = iota
	StyleItalic
	StyleOblique
)

// String returns the string representation of the style.
func (s Style) String() string {
	switch s {
	case StyleNormal:
		return "Normal"
	case StyleItalic:
		return "Italic"
	case StyleOblique:
		return "Oblique"
	default:
		return unknownStr
	}
}

// Weight is the numeric font weight on the usual 100–900 CSS scale.
type Weight int

// Common weight values.
const (
	WeightThin       Weight = 100
	WeightExtraLight Weight = 200
	WeightLight      Weight = 300
	WeightNormal     Weight = 400
	WeightMedium     Weight = 500
	WeightSemibold   Weight = 600
	WeightBold       Weight = 700
	WeightExtraBold  Weight = 800
	WeightBlack      Weight = 900
)

// Stretch is the width class of a face as a scale index, 1 (ultra
// condensed) through 9 (ultra expanded), 5 being normal.
type Stretch int

// Common stretch values.
const (
	StretchUltraCondensed Stretch = 1
	StretchCondensed      Stretch = 3
	StretchNormal         Stretch = 5
	StretchExpanded       Stretch = 7
	StretchUltraExpanded  Stretch = 9
)
