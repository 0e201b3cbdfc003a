package glyphkit

import (
	"errors"
	"testing"
)

func TestRegistryRegisterAndFace(t *testing.T) {
	reg, backend, h := newTestRegistry(t)

	if !h.IsValid() {
		t.Fatal("handle invalid after Register")
	}
	face, err := reg.Face(h)
	if err != nil {
		t.Fatalf("Face: %v", err)
	}
	if face != BackendFace(backend.lastFace(t)) {
		t.Error("Face returned a different face")
	}
	if got := reg.Len(); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}
}

func TestRegistryRejectsUnknownData(t *testing.T) {
	reg := NewFontRegistry(newFakeBackend())
	defer reg.Close()

	_, err := reg.Register(FaceSource{Data: []byte("not a font")}, 0)
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("err = %v, want ErrUnknownFormat", err)
	}
}

func TestRegistryStaleHandle(t *testing.T) {
	reg, backend, h := newTestRegistry(t)

	if err := reg.Unregister(h); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if _, err := reg.Face(h); !errors.Is(err, ErrUnknownFont) {
		t.Errorf("stale Face err = %v, want ErrUnknownFont", err)
	}
	if !backend.lastFace(t).closed {
		t.Error("face not closed on unregister")
	}

	// The slot is reused with a bumped generation; the old handle stays
	// dead.
	h2, err := reg.Register(FaceSource{Data: fakeFontData("Test Sans")}, 0)
	if err != nil {
		t.Fatalf("re-Register: %v", err)
	}
	if h2 == h {
		t.Error("reused slot kept the old generation")
	}
	if _, err := reg.Face(h); !errors.Is(err, ErrUnknownFont) {
		t.Errorf("old handle resolves after slot reuse: %v", err)
	}
	if _, err := reg.Face(h2); err != nil {
		t.Errorf("new handle: %v", err)
	}
}

func TestRegistryUnregisterTwice(t *testing.T) {
	reg, _, h := newTestRegistry(t)
	if err := reg.Unregister(h); err != nil {
		t.Fatalf("first Unregister: %v", err)
	}
	if err := reg.Unregister(h); !errors.Is(err, ErrUnknownFont) {
		t.Errorf("second Unregister err = %v, want ErrUnknownFont", err)
	}
}

func TestRegistryUnregisterHook(t *testing.T) {
	reg, backend, h := newTestRegistry(t)
	face := backend.lastFace(t)
	var gotHandles []FontHandle
	var gotFaces []BackendFace
	reg.SetUnregisterHook(func(handle FontHandle, f BackendFace) {
		gotHandles = append(gotHandles, handle)
		gotFaces = append(gotFaces, f)
	})

	reg.Unregister(h)
	if len(gotHandles) != 1 || gotHandles[0] != h {
		t.Errorf("hook handles = %v, want [%v]", gotHandles, h)
	}
	if len(gotFaces) != 1 || gotFaces[0] != BackendFace(face) {
		t.Errorf("hook did not receive the dropped face")
	}
}

func TestRegistryResolveScoring(t *testing.T) {
	backend := newFakeBackend()
	reg := NewFontRegistry(backend)
	defer reg.Close()

	regular := mustRegisterStyled(t, reg, backend, "Serif", StyleNormal, WeightNormal)
	bold := mustRegisterStyled(t, reg, backend, "Serif", StyleNormal, WeightBold)
	italic := mustRegisterStyled(t, reg, backend, "Serif", StyleItalic, WeightNormal)

	// Exact weight match wins.
	h, ok := reg.Resolve(FontQuery{Family: "Serif", Weight: WeightBold})
	if !ok || h != bold {
		t.Errorf("Resolve(bold) = %v, want %v", h, bold)
	}
	// Style mismatch outweighs any weight distance.
	h, ok = reg.Resolve(FontQuery{Family: "Serif", Style: StyleItalic, Weight: WeightBold})
	if !ok || h != italic {
		t.Errorf("Resolve(italic bold) = %v, want italic %v", h, italic)
	}
	// Nearest weight when no exact match.
	h, ok = reg.Resolve(FontQuery{Family: "Serif", Weight: WeightMedium})
	if !ok || h != regular {
		t.Errorf("Resolve(medium) = %v, want regular %v", h, regular)
	}
	// Unknown family does not resolve.
	if _, ok := reg.Resolve(FontQuery{Family: "Nope"}); ok {
		t.Error("Resolve(unknown family) succeeded")
	}
}

// mustRegisterStyled opens a face and patches its properties before the
// registry snapshot is taken, via the backend's open hook.
func mustRegisterStyled(t *testing.T, reg *FontRegistry, backend *fakeBackend, family string, style Style, weight Weight) FontHandle {
	t.Helper()
	backend.mu.Lock()
	backend.styleNext = &FaceProperties{Family: family, Style: style, Weight: weight, Stretch: StretchNormal}
	backend.mu.Unlock()
	h, err := reg.Register(FaceSource{Data: fakeFontData(family)}, 0)
	if err != nil {
		t.Fatalf("Register %s: %v", family, err)
	}
	return h
}

func TestRegistryFallbackChain(t *testing.T) {
	backend := newFakeBackend()
	reg := NewFontRegistry(backend)
	defer reg.Close()

	primary, err := reg.Register(FaceSource{Data: fakeFontData("Primary")}, 0)
	if err != nil {
		t.Fatal(err)
	}
	primaryFace := backend.lastFace(t)

	fallback, err := reg.Register(FaceSource{Data: fakeFontData("Fallback")}, 0)
	if err != nil {
		t.Fatal(err)
	}
	fallbackFace := backend.lastFace(t)
	// Only the fallback face covers the rune.
	delete(primaryFace.runes, 'W')
	fallbackFace.addGlyph('é', 40, 600, false)

	reg.AddFallback("Fallback", StyleNormal)

	h, ok := reg.FallbackFor('é', primary)
	if !ok || h != fallback {
		t.Errorf("FallbackFor = %v/%v, want %v", h, ok, fallback)
	}
	// No face covers the rune.
	if _, ok := reg.FallbackFor('世', primary); ok {
		t.Error("FallbackFor found a face for an uncovered rune")
	}

	if !reg.RemoveFallback("Fallback", StyleNormal) {
		t.Error("RemoveFallback did not find the entry")
	}
	if _, ok := reg.FallbackFor('é', primary); ok {
		t.Error("fallback still consulted after removal")
	}
}

func TestRegistryCloseClosesAllFaces(t *testing.T) {
	backend := newFakeBackend()
	reg := NewFontRegistry(backend)
	reg.Register(FaceSource{Data: fakeFontData("One")}, 0)
	reg.Register(FaceSource{Data: fakeFontData("Two")}, 0)

	if err := reg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	for i, f := range backend.opened {
		if !f.closed {
			t.Errorf("face %d not closed", i)
		}
	}
}
