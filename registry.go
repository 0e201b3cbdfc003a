package glyphkit

import (
	"fmt"
	"os"
	"sync"
)

// FontQuery is a logical font request resolved against the registry.
type FontQuery struct {
	Family  string
	Style   Style
	Weight  Weight
	Stretch Stretch
}

// fontEntry is one arena slot. A slot is reused after unregistration with
// a bumped generation, so stale handles never resolve.
type fontEntry struct {
	gen   uint32
	live  bool
	order uint64

	family  string
	style   Style
	weight  Weight
	stretch Stretch

	face BackendFace
	data []byte

	varDefaults []VarCoord
	hasColor    bool
}

// fallbackRef is one element of the ordered fallback chain.
type fallbackRef struct {
	family string
	style  Style
}

// FontRegistry maps logical font identity to backend faces and owns the
// fallback chain for codepoints a primary face cannot render.
//
// FontRegistry is safe for concurrent use.
type FontRegistry struct {
	backend FontBackend

	mu        sync.RWMutex
	entries   []fontEntry
	freeList  []uint32
	nextOrder uint64
	fallbacks []fallbackRef
	closed    bool

	// onUnregister, when set, is called outside the registry lock after a
	// face is dropped so callers can invalidate dependent caches.
	onUnregister func(FontHandle, BackendFace)
}

// NewFontRegistry creates a registry over the given backend.
func NewFontRegistry(backend FontBackend) *FontRegistry {
	return &FontRegistry{backend: backend}
}

// SetUnregisterHook installs a callback invoked after every successful
// Unregister (and per-face at Close) with the dropped handle and its
// already-closed face. Used by Engine to evict dependent cache and
// shaper entries. Not safe to change while registrations are in flight.
func (r *FontRegistry) SetUnregisterHook(fn func(FontHandle, BackendFace)) {
	r.onUnregister = fn
}

// Register loads a face from a path or memory blob and publishes it.
// A registration failure never affects previously registered entries.
func (r *FontRegistry) Register(src FaceSource, faceIndex int) (FontHandle, error) {
	data := src.Data
	if data == nil {
		if src.Path == "" {
			return FontHandle{}, fmt.Errorf("%w: empty source", ErrUnknownFormat)
		}
		b, err := os.ReadFile(src.Path)
		if err != nil {
			return FontHandle{}, fmt.Errorf("%w: %s: %v", ErrBackendIO, src.Path, err)
		}
		data = b
		src.Data = b
	}

	if _, ok := r.backend.Sniff(data); !ok {
		return FontHandle{}, fmt.Errorf("%w: unrecognized data", ErrUnknownFormat)
	}

	face, err := r.backend.Open(src, faceIndex)
	if err != nil {
		return FontHandle{}, err
	}

	props := face.Properties()
	if props.Weight == 0 {
		props.Weight = WeightNormal
	}
	if props.Stretch == 0 {
		props.Stretch = StretchNormal
	}

	var defaults []VarCoord
	for _, axis := range face.VariationAxes() {
		defaults = append(defaults, VarCoord{Tag: axis.Tag, Value: axis.Default})
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = face.Close()
		return FontHandle{}, ErrCacheClosed
	}
	var idx uint32
	if n := len(r.freeList); n > 0 {
		idx = r.freeList[n-1]
		r.freeList = r.freeList[:n-1]
	} else {
		r.entries = append(r.entries, fontEntry{})
		idx = uint32(len(r.entries) - 1)
	}
	e := &r.entries[idx]
	e.gen++
	if e.gen == 0 {
		// Generation zero is reserved for the invalid handle.
		e.gen = 1
	}
	e.live = true
	r.nextOrder++
	e.order = r.nextOrder
	e.family = props.Family
	e.style = props.Style
	e.weight = props.Weight
	e.stretch = props.Stretch
	e.face = face
	e.data = data
	e.varDefaults = defaults
	h := FontHandle{index: idx, gen: e.gen}
	r.mu.Unlock()

	logger().Info("glyphkit: font registered",
		"family", props.Family, "style", props.Style.String(), "weight", int(props.Weight))
	return h, nil
}

// Unregister drops a face. Cached artifacts keyed on the handle become
// logically dead; the unregister hook lets the owner evict them. In-flight
// productions for the handle run to completion but their results are not
// cached.
func (r *FontRegistry) Unregister(h FontHandle) error {
	r.mu.Lock()
	e, ok := r.lookupLocked(h)
	if !ok {
		r.mu.Unlock()
		return ErrUnknownFont
	}
	face := e.face
	e.live = false
	e.face = nil
	e.data = nil
	e.varDefaults = nil
	r.freeList = append(r.freeList, h.index)
	family := e.family
	r.mu.Unlock()

	if face != nil {
		if err := face.Close(); err != nil {
			logger().Warn("glyphkit: face close failed", "family", family, "err", err)
		}
	}
	if r.onUnregister != nil {
		r.onUnregister(h, face)
	}
	return nil
}

// Face returns the backend face for a handle, or ErrUnknownFont if the
// handle is stale or was never issued.
func (r *FontRegistry) Face(h FontHandle) (BackendFace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.lookupLocked(h)
	if !ok {
		return nil, ErrUnknownFont
	}
	return e.face, nil
}

// FaceData returns the raw font bytes for a handle, for collaborators
// (such as shapers) that parse the face themselves.
func (r *FontRegistry) FaceData(h FontHandle) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.lookupLocked(h)
	if !ok {
		return nil, ErrUnknownFont
	}
	return e.data, nil
}

// VariationDefaults returns the face's default axis coordinates, nil for
// static fonts.
func (r *FontRegistry) VariationDefaults(h FontHandle) []VarCoord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.lookupLocked(h)
	if !ok {
		return nil
	}
	return e.varDefaults
}

// lookupLocked resolves a handle to its live entry. Caller holds r.mu.
func (r *FontRegistry) lookupLocked(h FontHandle) (*fontEntry, bool) {
	if !h.IsValid() || int(h.index) >= len(r.entries) {
		return nil, false
	}
	e := &r.entries[h.index]
	if !e.live || e.gen != h.gen {
		return nil, false
	}
	return e, true
}

// Resolve finds the registered face closest to the query. Exact matches
// win; otherwise the face with the lowest mismatch score does, ties broken
// by registration order. The score sums a style mismatch penalty (+100),
// the absolute weight distance, and the stretch index distance.
//
// A failed resolve is not an error: the second return is false and callers
// typically continue to FallbackFor.
func (r *FontRegistry) Resolve(q FontQuery) (FontHandle, bool) {
	if q.Weight == 0 {
		q.Weight = WeightNormal
	}
	if q.Stretch == 0 {
		q.Stretch = StretchNormal
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	best := FontHandle{}
	bestScore := -1
	bestOrder := uint64(0)
	for i := range r.entries {
		e := &r.entries[i]
		if !e.live || e.family != q.Family {
			continue
		}
		score := matchScore(e, q)
		if bestScore < 0 || score < bestScore || (score == bestScore && e.order < bestOrder) {
			best = FontHandle{index: uint32(i), gen: e.gen}
			bestScore = score
			bestOrder = e.order
		}
	}
	return best, bestScore >= 0
}

// matchScore computes the mismatch score between an entry and a query.
// Lower is better; zero is exact.
func matchScore(e *fontEntry, q FontQuery) int {
	score := 0
	if e.style != q.Style {
		score += 100
	}
	dw := int(e.weight) - int(q.Weight)
	if dw < 0 {
		dw = -dw
	}
	score += dw
	ds := int(e.stretch) - int(q.Stretch)
	if ds < 0 {
		ds = -ds
	}
	score += ds
	return score
}

// AddFallback appends a family/style pair to the ordered fallback chain.
func (r *FontRegistry) AddFallback(family string, style Style) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, fallbackRef{family: family, style: style})
}

// RemoveFallback removes the first matching pair from the fallback chain.
// Returns false if the pair is not in the chain.
func (r *FontRegistry) RemoveFallback(family string, style Style) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, f := range r.fallbacks {
		if f.family == family && f.style == style {
			r.fallbacks = append(r.fallbacks[:i], r.fallbacks[i+1:]...)
			return true
		}
	}
	return false
}

// FallbackFor walks the fallback chain and returns the first registered
// face, other than primary, whose backend reports a glyph for the
// codepoint.
func (r *FontRegistry) FallbackFor(cp rune, primary FontHandle) (FontHandle, bool) {
	r.mu.RLock()
	chain := make([]fallbackRef, len(r.fallbacks))
	copy(chain, r.fallbacks)
	r.mu.RUnlock()

	for _, ref := range chain {
		h, ok := r.Resolve(FontQuery{Family: ref.family, Style: ref.style})
		if !ok || h == primary {
			continue
		}
		face, err := r.Face(h)
		if err != nil {
			continue
		}
		if face.GlyphOf(cp) != 0 {
			return h, true
		}
	}
	return FontHandle{}, false
}

// Len returns the number of live registered faces.
func (r *FontRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for i := range r.entries {
		if r.entries[i].live {
			n++
		}
	}
	return n
}

// Close drops every registered face. Handles issued before Close become
// stale; subsequent registrations fail.
func (r *FontRegistry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	var dropped []FontHandle
	var faces []BackendFace
	for i := range r.entries {
		e := &r.entries[i]
		if !e.live {
			continue
		}
		dropped = append(dropped, FontHandle{index: uint32(i), gen: e.gen})
		faces = append(faces, e.face)
		e.live = false
		e.face = nil
		e.data = nil
	}
	r.mu.Unlock()

	for _, f := range faces {
		if f != nil {
			_ = f.Close()
		}
	}
	if r.onUnregister != nil {
		for i, h := range dropped {
			r.onUnregister(h, faces[i])
		}
	}
	return nil
}
