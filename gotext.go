package glyphkit

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// GoTextShaper shapes text with go-text/typesetting's HarfBuzz port:
// ligatures, mark attachment, contextual forms, right-to-left and
// complex scripts all come out correctly positioned.
//
// It is safe for concurrent use. Parsed font.Font objects are cached
// per face (font.Font is read-only); font.Face wrappers and
// HarfbuzzShaper instances carry mutable state, so faces are built per
// call and shapers pooled.
type GoTextShaper struct {
	shaperPool sync.Pool

	mu        sync.RWMutex
	fontCache map[BackendFace]*font.Font
}

// NewGoTextShaper returns a HarfBuzz-backed shaper.
func NewGoTextShaper() *GoTextShaper {
	return &GoTextShaper{
		shaperPool: sync.Pool{
			New: func() any {
				return &shaping.HarfbuzzShaper{}
			},
		},
		fontCache: make(map[BackendFace]*font.Font),
	}
}

// Shape implements ShaperBackend. data must be the raw bytes the face
// was opened from; the shaper parses and caches its own view of them,
// keyed by the face. Feature tags in opts are currently ignored: the
// HarfBuzz default feature set applies.
func (s *GoTextShaper) Shape(face BackendFace, data []byte, sizePx float64, text string, opts ShapeOptions) ([]ShapedGlyph, error) {
	if text == "" {
		return nil, nil
	}
	if sizePx <= 0 {
		return nil, &ConfigError{Field: "sizePx", Reason: "must be positive"}
	}

	gtFont, err := s.fontFor(face, data)
	if err != nil {
		return nil, err
	}

	runes := []rune(text)
	dir := mapDirection(opts.Direction)

	script := language.Latin
	if opts.Script != "" {
		script = language.Script(scriptTag(opts.Script))
	} else {
		script = detectScript(runes)
	}
	lang := language.NewLanguage("en")
	if opts.Language != "" {
		lang = language.NewLanguage(opts.Language)
	}

	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: dir,
		Face:      font.NewFace(gtFont),
		Size:      fixed.Int26_6(sizePx * 64),
		Script:    script,
		Language:  lang,
	}

	hb := s.shaperPool.Get().(*shaping.HarfbuzzShaper)
	output := hb.Shape(input)
	s.shaperPool.Put(hb)

	return convertShapedGlyphs(output.Glyphs, dir), nil
}

// Forget drops the cached parsed font for a face. Call it when the face
// is unregistered.
func (s *GoTextShaper) Forget(face BackendFace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fontCache, face)
}

func (s *GoTextShaper) fontFor(face BackendFace, data []byte) (*font.Font, error) {
	s.mu.RLock()
	if f, ok := s.fontCache[face]; ok {
		s.mu.RUnlock()
		return f, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.fontCache[face]; ok {
		return f, nil
	}

	gtFace, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFont, err)
	}
	s.fontCache[face] = gtFace.Font
	return gtFace.Font, nil
}

func mapDirection(d Direction) di.Direction {
	switch d {
	case DirectionRTL:
		return di.DirectionRTL
	case DirectionTTB:
		return di.DirectionTTB
	default:
		return di.DirectionLTR
	}
}

// detectScript returns the script of the first non-space rune. Callers
// with mixed-script text should split runs by script first.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

// scriptTag packs a 4-letter ISO 15924 tag into the big-endian uint32
// form language.Script uses.
func scriptTag(s string) uint32 {
	var tag uint32
	for i := 0; i < 4; i++ {
		c := byte(' ')
		if i < len(s) {
			c = s[i]
		}
		tag = tag<<8 | uint32(c)
	}
	return tag
}

func convertShapedGlyphs(glyphs []shaping.Glyph, dir di.Direction) []ShapedGlyph {
	if len(glyphs) == 0 {
		return nil
	}

	result := make([]ShapedGlyph, len(glyphs))
	for i, g := range glyphs {
		result[i] = ShapedGlyph{
			GID:     GlyphID(g.GlyphID),
			XOffset: fixedToFloat(g.XOffset),
			YOffset: fixedToFloat(g.YOffset),
			Cluster: g.TextIndex(),
		}
		if dir.IsVertical() {
			result[i].YAdvance = fixedToFloat(g.Advance)
		} else {
			result[i].XAdvance = fixedToFloat(g.Advance)
		}
	}
	return result
}
