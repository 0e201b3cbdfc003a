package glyphkit

import (
	"errors"
	"testing"

	"golang.org/x/image/math/fixed"
)

func TestKernTableReadThrough(t *testing.T) {
	reg, backend, h := newTestRegistry(t)
	table := NewKernTable(reg, 0)

	delta, ok, err := table.Kern(h, 1, 2)
	if err != nil {
		t.Fatalf("Kern: %v", err)
	}
	if !ok || delta != -80<<6 {
		t.Errorf("Kern(A,V) = %d/%v, want %d/true", delta, ok, -80<<6)
	}

	// The cached answer survives the backend's pair disappearing.
	face := backend.lastFace(t)
	delete(face.kern, [2]GlyphID{1, 2})
	delta, ok, err = table.Kern(h, 1, 2)
	if err != nil || !ok || delta != -80<<6 {
		t.Errorf("cached Kern = %d/%v/%v, want the memoized value", delta, ok, err)
	}
}

func TestKernTableCachesAbsentPairs(t *testing.T) {
	reg, backend, h := newTestRegistry(t)
	table := NewKernTable(reg, 0)

	_, ok, err := table.Kern(h, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("unscripted pair reported present")
	}

	// "Absent" is a cached answer: adding the pair later is not seen.
	face := backend.lastFace(t)
	face.kern[[2]GlyphID{2, 3}] = 50 << 6
	_, ok, _ = table.Kern(h, 2, 3)
	if ok {
		t.Error("absent marker was not cached")
	}
	if got := table.Len(); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}
}

func TestKernTableCapacityEvictsLRU(t *testing.T) {
	reg, _, h := newTestRegistry(t)
	table := NewKernTable(reg, 2)

	table.Kern(h, 1, 2)
	table.Kern(h, 2, 3)
	table.Kern(h, 1, 2) // refresh (1,2); (2,3) is now the LRU
	table.Kern(h, 3, 1) // evicts (2,3)

	if got := table.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}
	table.mu.Lock()
	_, has12 := table.entries[kernKey{font: h, left: 1, right: 2}]
	_, has23 := table.entries[kernKey{font: h, left: 2, right: 3}]
	table.mu.Unlock()
	if !has12 || has23 {
		t.Errorf("entries after eviction: (1,2)=%v (2,3)=%v, want true/false", has12, has23)
	}
}

func TestKernTableInvalidate(t *testing.T) {
	reg, _, h := newTestRegistry(t)
	table := NewKernTable(reg, 0)
	table.Kern(h, 1, 2)

	table.Invalidate(h)
	if got := table.Len(); got != 0 {
		t.Errorf("Len after Invalidate = %d, want 0", got)
	}

	reg.Unregister(h)
	if _, _, err := table.Kern(h, 1, 2); !errors.Is(err, ErrUnknownFont) {
		t.Errorf("err = %v, want ErrUnknownFont", err)
	}
}

func TestMetricsTableReadThrough(t *testing.T) {
	reg, _, h := newTestRegistry(t)
	table := NewMetricsTable(reg, 0)

	m, err := table.Metrics(h, 1, 16)
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if m.Advance != 9.6 {
		t.Errorf("Advance = %g, want 9.6", m.Advance)
	}
	if got := table.Len(); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}

	// Sizes quantize to the same 1/64 bucket share an entry.
	table.Metrics(h, 1, 16.001)
	if got := table.Len(); got != 1 {
		t.Errorf("Len after near-equal size = %d, want 1", got)
	}
	table.Metrics(h, 1, 17)
	if got := table.Len(); got != 2 {
		t.Errorf("Len after distinct size = %d, want 2", got)
	}
}

func TestMetricsTableRejectsBadSize(t *testing.T) {
	reg, _, h := newTestRegistry(t)
	table := NewMetricsTable(reg, 0)
	if _, err := table.Metrics(h, 1, 0); err == nil {
		t.Error("zero size accepted")
	}
	if _, err := table.Metrics(h, 1, -4); err == nil {
		t.Error("negative size accepted")
	}
}

func TestMetricsTableMissingGlyph(t *testing.T) {
	reg, _, h := newTestRegistry(t)
	table := NewMetricsTable(reg, 0)
	if _, err := table.Metrics(h, 77, 16); !errors.Is(err, ErrMissingGlyph) {
		t.Errorf("err = %v, want ErrMissingGlyph", err)
	}
}

func TestMetricsTableCachesAbsentGlyphs(t *testing.T) {
	reg, backend, h := newTestRegistry(t)
	table := NewMetricsTable(reg, 0)

	if _, err := table.Metrics(h, 77, 16); !errors.Is(err, ErrMissingGlyph) {
		t.Fatalf("err = %v, want ErrMissingGlyph", err)
	}

	// "Absent" is a cached answer: adding the glyph later is not seen.
	face := backend.lastFace(t)
	face.addGlyph('x', 77, 480, false)
	if _, err := table.Metrics(h, 77, 16); !errors.Is(err, ErrMissingGlyph) {
		t.Errorf("absent marker was not cached: err = %v", err)
	}
	if got := table.Len(); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}
}

func TestMetricsTableTransientFailureNotCached(t *testing.T) {
	reg, backend, h := newTestRegistry(t)
	table := NewMetricsTable(reg, 0)

	face := backend.lastFace(t)
	calls := 0
	face.metricsFn = func(GlyphID) error {
		calls++
		if calls == 1 {
			return ErrBackendIO
		}
		return nil
	}
	if _, err := table.Metrics(h, 1, 16); !errors.Is(err, ErrBackendIO) {
		t.Fatalf("err = %v, want ErrBackendIO", err)
	}
	if got := table.Len(); got != 0 {
		t.Fatalf("Len = %d after transient failure, want 0", got)
	}
	if _, err := table.Metrics(h, 1, 16); err != nil {
		t.Errorf("retry after transient failure: %v", err)
	}
}

func TestMetricsTableInvalidate(t *testing.T) {
	reg, _, h := newTestRegistry(t)
	table := NewMetricsTable(reg, 0)
	table.Metrics(h, 1, 16)
	table.Metrics(h, 2, 16)

	table.Invalidate(h)
	if got := table.Len(); got != 0 {
		t.Errorf("Len after Invalidate = %d, want 0", got)
	}
}

func TestKernPixelsBankersRounding(t *testing.T) {
	tests := []struct {
		delta fixed.Int26_6 // font units, 26.6
		px    float64
		upm   int
		want  float64
	}{
		{-80 << 6, 16, 1000, -1},  // -1.28 rounds to -1
		{-93 << 6, 16, 1000, -1},  // -1.488
		{-94 << 6, 16, 1000, -2},  // -1.504
		{125 << 6, 12, 1000, 2},   // 1.5 rounds to even 2
		{125 << 6, 4, 1000, 0},    // 0.5 rounds to even 0
		{-125 << 6, 4, 1000, 0},   // -0.5 rounds to even 0
		{375 << 6, 4, 1000, 2},    // 1.5 rounds to even 2
		{100 << 6, 16, 0, 0},      // degenerate em
	}
	for _, tt := range tests {
		if got := kernPixels(tt.delta, tt.px, tt.upm); got != tt.want {
			t.Errorf("kernPixels(%d, %g, %d) = %g, want %g",
				tt.delta, tt.px, tt.upm, got, tt.want)
		}
	}
}
