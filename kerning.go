package glyphkit

import (
	"errors"
	"sync"

	"golang.org/x/image/math/fixed"
)

const (
	// DefaultKernCapacity bounds the kerning table entry count.
	DefaultKernCapacity = 4096
	// DefaultMetricsCapacity bounds the metrics table entry count.
	DefaultMetricsCapacity = 1024
)

type kernKey struct {
	font  FontHandle
	left  GlyphID
	right GlyphID
}

// kernValue records the lookup outcome. Pairs the font has no kerning
// for are cached too, with ok false, so repeated misses stay cheap.
type kernValue struct {
	delta fixed.Int26_6
	ok    bool
}

type kernNode struct {
	key        kernKey
	val        kernValue
	prev, next *kernNode
}

// KernTable is a count-bounded read-through cache of kerning pairs in
// font units. Least recently used pairs are dropped when the table is
// full.
type KernTable struct {
	faces FaceResolver

	mu       sync.Mutex
	capacity int
	entries  map[kernKey]*kernNode
	head     *kernNode
	tail     *kernNode
}

// NewKernTable returns a kerning table reading through the resolver.
// A capacity of zero or less uses DefaultKernCapacity.
func NewKernTable(faces FaceResolver, capacity int) *KernTable {
	if capacity <= 0 {
		capacity = DefaultKernCapacity
	}
	return &KernTable{
		faces:    faces,
		capacity: capacity,
		entries:  make(map[kernKey]*kernNode),
	}
}

// Kern returns the kerning adjustment between left and right in font
// units, and whether the font defines one for the pair.
func (t *KernTable) Kern(font FontHandle, left, right GlyphID) (fixed.Int26_6, bool, error) {
	key := kernKey{font: font, left: left, right: right}

	t.mu.Lock()
	if n, ok := t.entries[key]; ok {
		t.moveToFront(n)
		val := n.val
		t.mu.Unlock()
		return val.delta, val.ok, nil
	}
	t.mu.Unlock()

	face, err := t.faces.Face(font)
	if err != nil {
		return 0, false, err
	}
	delta, ok := face.Kern(left, right)

	t.mu.Lock()
	defer t.mu.Unlock()
	if n, exists := t.entries[key]; exists {
		// Raced with another reader; keep the first result.
		t.moveToFront(n)
		return n.val.delta, n.val.ok, nil
	}
	n := &kernNode{key: key, val: kernValue{delta: delta, ok: ok}}
	t.entries[key] = n
	t.pushFront(n)
	t.evictOver()
	return delta, ok, nil
}

// Invalidate drops all cached pairs for the given font.
func (t *KernTable) Invalidate(font FontHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, n := range t.entries {
		if key.font == font {
			t.unlink(n)
			delete(t.entries, key)
		}
	}
}

// Len returns the number of cached pairs.
func (t *KernTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *KernTable) pushFront(n *kernNode) {
	n.prev = nil
	n.next = t.head
	if t.head != nil {
		t.head.prev = n
	}
	t.head = n
	if t.tail == nil {
		t.tail = n
	}
}

func (t *KernTable) moveToFront(n *kernNode) {
	if t.head == n {
		return
	}
	t.unlink(n)
	t.pushFront(n)
}

func (t *KernTable) unlink(n *kernNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else if t.head == n {
		t.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else if t.tail == n {
		t.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (t *KernTable) evictOver() {
	for len(t.entries) > t.capacity && t.tail != nil {
		victim := t.tail
		t.unlink(victim)
		delete(t.entries, victim.key)
	}
}

type metricsKey struct {
	font  FontHandle
	glyph GlyphID
	size  fixed.Int26_6
}

// metricsValue records the lookup outcome. Glyphs the face does not
// have are cached too, with ok false, so repeated misses stay cheap.
type metricsValue struct {
	m  GlyphMetrics
	ok bool
}

type metricsNode struct {
	key        metricsKey
	val        metricsValue
	prev, next *metricsNode
}

// MetricsTable is a count-bounded read-through cache of scaled glyph
// metrics keyed by font, glyph and quantized pixel size.
type MetricsTable struct {
	faces FaceResolver

	mu       sync.Mutex
	capacity int
	entries  map[metricsKey]*metricsNode
	head     *metricsNode
	tail     *metricsNode
}

// NewMetricsTable returns a metrics table reading through the resolver.
// A capacity of zero or less uses DefaultMetricsCapacity.
func NewMetricsTable(faces FaceResolver, capacity int) *MetricsTable {
	if capacity <= 0 {
		capacity = DefaultMetricsCapacity
	}
	return &MetricsTable{
		faces:    faces,
		capacity: capacity,
		entries:  make(map[metricsKey]*metricsNode),
	}
}

// Metrics returns scaled metrics for the glyph at the given pixel size.
// The size is quantized the same way glyph fingerprints quantize it, so
// the table and the glyph cache agree on size buckets. A glyph the face
// does not have is cached as absent; repeats answer ErrMissingGlyph
// without touching the backend.
func (t *MetricsTable) Metrics(font FontHandle, glyph GlyphID, sizePx float64) (GlyphMetrics, error) {
	key := metricsKey{font: font, glyph: glyph, size: QuantizeSize(sizePx)}
	if key.size == 0 {
		return GlyphMetrics{}, &ConfigError{Field: "sizePx", Reason: "must be positive"}
	}

	t.mu.Lock()
	if n, ok := t.entries[key]; ok {
		t.moveToFront(n)
		val := n.val
		t.mu.Unlock()
		if !val.ok {
			return GlyphMetrics{}, ErrMissingGlyph
		}
		return val.m, nil
	}
	t.mu.Unlock()

	face, err := t.faces.Face(font)
	if err != nil {
		return GlyphMetrics{}, err
	}
	m, err := face.Metrics(glyph, key.size)
	val := metricsValue{m: m, ok: true}
	if err != nil {
		err = mapBackendError(err)
		if !errors.Is(err, ErrMissingGlyph) {
			// Transient backend trouble is not a cachable answer.
			return GlyphMetrics{}, err
		}
		val = metricsValue{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if n, exists := t.entries[key]; exists {
		t.moveToFront(n)
		if !n.val.ok {
			return GlyphMetrics{}, ErrMissingGlyph
		}
		return n.val.m, nil
	}
	n := &metricsNode{key: key, val: val}
	t.entries[key] = n
	t.pushFront(n)
	t.evictOver()
	if !val.ok {
		return GlyphMetrics{}, ErrMissingGlyph
	}
	return val.m, nil
}

// Invalidate drops all cached metrics for the given font.
func (t *MetricsTable) Invalidate(font FontHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, n := range t.entries {
		if key.font == font {
			t.unlink(n)
			delete(t.entries, key)
		}
	}
}

// Len returns the number of cached metric entries.
func (t *MetricsTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *MetricsTable) pushFront(n *metricsNode) {
	n.prev = nil
	n.next = t.head
	if t.head != nil {
		t.head.prev = n
	}
	t.head = n
	if t.tail == nil {
		t.tail = n
	}
}

func (t *MetricsTable) moveToFront(n *metricsNode) {
	if t.head == n {
		return
	}
	t.unlink(n)
	t.pushFront(n)
}

func (t *MetricsTable) unlink(n *metricsNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else if t.head == n {
		t.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else if t.tail == n {
		t.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (t *MetricsTable) evictOver() {
	for len(t.entries) > t.capacity && t.tail != nil {
		victim := t.tail
		t.unlink(victim)
		delete(t.entries, victim.key)
	}
}
