package glyphkit

import (
	"encoding/binary"
	"math"
	"sort"

	"golang.org/x/image/math/fixed"
)

// FontHandle identifies a registered face. Handles are arena indices
// paired with a generation counter, so a stale handle kept across
// unregistration is detected in O(1) instead of resolving to a reused slot.
//
// The zero FontHandle is invalid and never issued by a registry.
type FontHandle struct {
	index uint32
	gen   uint32
}

// IsValid reports whether the handle was ever issued by a registry.
// It does not check liveness; use FontRegistry.Face for that.
func (h FontHandle) IsValid() bool { return h.gen != 0 }

// VarCoord is a variable-font axis coordinate: an OpenType axis tag
// (e.g. 'wght' packed big-endian) and its value in 1/64 units.
type VarCoord struct {
	Tag   uint32
	Value fixed.Int26_6
}

// RenderFlags carries the rendering parameters that distinguish otherwise
// identical glyph requests. Every field participates in the cache key.
type RenderFlags struct {
	// Antialias enables coverage antialiasing for bitmap output.
	Antialias bool

	// Hinting is the grid-fitting mode.
	Hinting Hinting

	// Subpixel is the subpixel rendering orientation.
	Subpixel SubpixelMode

	// Embolden is a stroke-weight delta in 1/64 px. Zero means none.
	Embolden fixed.Int26_6

	// Oblique is a horizontal shear delta in 1/64 units per unit of
	// height. Zero means upright.
	Oblique fixed.Int26_6

	// Gamma is the output gamma quantized to thousandths. Zero means the
	// default of 1.0 (no correction).
	Gamma uint16
}

// GammaValue returns the effective gamma as a float, treating the zero
// value as 1.0.
func (f RenderFlags) GammaValue() float64 {
	if f.Gamma == 0 {
		return 1.0
	}
	return float64(f.Gamma) / 1000
}

// Fingerprint is the full tuple of parameters that uniquely identifies a
// glyph artifact request. Two requests that agree in every field share one
// cached artifact; two that differ in any field are distinct keys.
//
// Construct fingerprints with NewFingerprint so the pixel size is
// quantized and variation coordinates are normalized; hand-built values
// must call Normalize before use.
type Fingerprint struct {
	// Font identifies the face within its registry.
	Font FontHandle

	// Glyph is the backend-assigned glyph index.
	Glyph GlyphID

	// Size is the nominal pixel size quantized to 1/64 px.
	Size fixed.Int26_6

	// Repr selects the artifact kind.
	Repr Representation

	// Quality is the production quality tier.
	Quality Quality

	// Flags are the render-mode parameters.
	Flags RenderFlags

	// Variations is the variable-font coordinate vector, sorted by tag.
	// Nil for static fonts.
	Variations []VarCoord
}

// QuantizeSize rounds a pixel size to the nearest 1/64 px. Sizes below
// the 1/64 px minimum round up to it; non-positive sizes quantize to zero,
// which Validate rejects.
func QuantizeSize(px float64) fixed.Int26_6 {
	if px <= 0 || math.IsNaN(px) || math.IsInf(px, 0) {
		return 0
	}
	q := fixed.Int26_6(math.Round(px * 64))
	if q < 1 {
		q = 1
	}
	return q
}

// QuantizePosition splits a fractional pen position into a whole-pixel
// part and a subpixel bucket in [0, divisions). Callers that rasterize
// at fractional positions fold the bucket into their cache key so the
// key space stays bounded. divisions <= 1 snaps to the nearest pixel.
func QuantizePosition(pos float64, divisions int) (intPos int, bucket uint8) {
	if divisions <= 1 {
		return int(math.Round(pos)), 0
	}
	f := math.Floor(pos)
	b := int(math.Round((pos - f) * float64(divisions)))
	if b >= divisions {
		// The fraction rounded up to the next whole pixel.
		return int(f) + 1, 0
	}
	return int(f), uint8(b)
}

// NewFingerprint builds a normalized fingerprint for the given request.
// The pixel size is quantized to 1/64 px and variation coordinates are
// sorted by tag.
func NewFingerprint(font FontHandle, glyph GlyphID, sizePx float64, repr Representation, quality Quality, flags RenderFlags, variations []VarCoord) Fingerprint {
	fp := Fingerprint{
		Font:       font,
		Glyph:      glyph,
		Size:       QuantizeSize(sizePx),
		Repr:       repr,
		Quality:    quality,
		Flags:      flags,
		Variations: variations,
	}
	fp.Normalize()
	return fp
}

// Normalize sorts the variation coordinates by tag so that equal
// coordinate sets encode identically. It is idempotent.
func (fp *Fingerprint) Normalize() {
	if len(fp.Variations) > 1 {
		sort.Slice(fp.Variations, func(i, j int) bool {
			return fp.Variations[i].Tag < fp.Variations[j].Tag
		})
	}
}

// Validate checks the fingerprint for caller bugs. It returns an error
// wrapping ErrInvalidFingerprint if the size is non-positive, the
// representation or quality is out of range, or the handle was never
// issued.
func (fp Fingerprint) Validate() error {
	if !fp.Font.IsValid() {
		return &FingerprintError{Field: "Font", Reason: "zero handle"}
	}
	if fp.Size <= 0 {
		return &FingerprintError{Field: "Size", Reason: "must be positive"}
	}
	if !fp.Repr.Valid() {
		return &FingerprintError{Field: "Repr", Reason: "unknown representation"}
	}
	if !fp.Quality.Valid() {
		return &FingerprintError{Field: "Quality", Reason: "unknown quality tier"}
	}
	return nil
}

// SizePx returns the quantized pixel size as a float.
func (fp Fingerprint) SizePx() float64 { return float64(fp.Size) / 64 }

// fingerprintWireSize is the fixed-width part of the encoding.
const fingerprintWireSize = 4 + 4 + 4 + 4 + 1 + 1 + 1 + 1 + 1 + 4 + 4 + 2 + 2

// AppendBinary appends the canonical little-endian encoding of the
// fingerprint to dst. The encoding doubles as the cache map key and the
// dump wire format, so it must stay stable across releases.
func (fp Fingerprint) AppendBinary(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, fp.Font.index)
	dst = binary.LittleEndian.AppendUint32(dst, fp.Font.gen)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(fp.Glyph))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(fp.Size))
	dst = append(dst, byte(fp.Repr), byte(fp.Quality))
	aa := byte(0)
	if fp.Flags.Antialias {
		aa = 1
	}
	dst = append(dst, aa, byte(fp.Flags.Hinting), byte(fp.Flags.Subpixel))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(fp.Flags.Embolden))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(fp.Flags.Oblique))
	dst = binary.LittleEndian.AppendUint16(dst, fp.Flags.Gamma)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(fp.Variations)))
	for _, v := range fp.Variations {
		dst = binary.LittleEndian.AppendUint32(dst, v.Tag)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(v.Value))
	}
	return dst
}

// key returns the canonical encoding as a string for use as a map key.
func (fp Fingerprint) key() string {
	buf := make([]byte, 0, fingerprintWireSize+8*len(fp.Variations))
	return string(fp.AppendBinary(buf))
}

// decodeFingerprint parses the canonical encoding produced by AppendBinary.
func decodeFingerprint(data []byte) (Fingerprint, error) {
	if len(data) < fingerprintWireSize {
		return Fingerprint{}, &FingerprintError{Field: "encoding", Reason: "truncated"}
	}
	var fp Fingerprint
	fp.Font.index = binary.LittleEndian.Uint32(data[0:])
	fp.Font.gen = binary.LittleEndian.Uint32(data[4:])
	fp.Glyph = GlyphID(binary.LittleEndian.Uint32(data[8:]))
	fp.Size = fixed.Int26_6(int32(binary.LittleEndian.Uint32(data[12:])))
	fp.Repr = Representation(data[16])
	fp.Quality = Quality(data[17])
	fp.Flags.Antialias = data[18] != 0
	fp.Flags.Hinting = Hinting(data[19])
	fp.Flags.Subpixel = SubpixelMode(data[20])
	fp.Flags.Embolden = fixed.Int26_6(int32(binary.LittleEndian.Uint32(data[21:])))
	fp.Flags.Oblique = fixed.Int26_6(int32(binary.LittleEndian.Uint32(data[25:])))
	fp.Flags.Gamma = binary.LittleEndian.Uint16(data[29:])
	nvars := int(binary.LittleEndian.Uint16(data[31:]))
	if len(data) != fingerprintWireSize+8*nvars {
		return Fingerprint{}, &FingerprintError{Field: "encoding", Reason: "length mismatch"}
	}
	if nvars > 0 {
		fp.Variations = make([]VarCoord, nvars)
		for i := 0; i < nvars; i++ {
			off := fingerprintWireSize + 8*i
			fp.Variations[i].Tag = binary.LittleEndian.Uint32(data[off:])
			fp.Variations[i].Value = fixed.Int26_6(int32(binary.LittleEndian.Uint32(data[off+4:])))
		}
	}
	return fp, nil
}
