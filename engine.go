package glyphkit

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Engine bundles the registry, producer, caches and measurer behind one
// façade. Registering, producing and measuring are all safe to call
// concurrently.
//
// The pieces compose without it; the façade just wires the invalidation
// paths so that unregistering a font drops everything derived from it.
type Engine struct {
	backend  FontBackend
	shaper   ShaperBackend
	registry *FontRegistry
	producer *GlyphProducer
	cache    *GlyphCache
	metrics  *MetricsTable
	kerning  *KernTable
	measurer *Measurer
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	cache           CacheConfig
	shaper          ShaperBackend
	kernCapacity    int
	metricsCapacity int
}

// WithCacheConfig sets the glyph cache configuration.
func WithCacheConfig(cfg CacheConfig) EngineOption {
	return func(o *engineOptions) { o.cache = cfg }
}

// WithShaper sets the shaping backend. Default is NewGoTextShaper().
func WithShaper(s ShaperBackend) EngineOption {
	return func(o *engineOptions) { o.shaper = s }
}

// WithTableCapacities bounds the kerning and metrics table entry counts.
func WithTableCapacities(kern, metrics int) EngineOption {
	return func(o *engineOptions) {
		o.kernCapacity = kern
		o.metricsCapacity = metrics
	}
}

// NewEngine creates an engine over the given font backend.
func NewEngine(backend FontBackend, opts ...EngineOption) (*Engine, error) {
	o := engineOptions{cache: DefaultCacheConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.shaper == nil {
		o.shaper = NewGoTextShaper()
	}

	e := &Engine{backend: backend, shaper: o.shaper}
	e.registry = NewFontRegistry(backend)
	e.producer = NewGlyphProducer(e.registry)

	cache, err := NewGlyphCacheWithConfig(e.producer, o.cache)
	if err != nil {
		return nil, err
	}
	e.cache = cache
	e.metrics = NewMetricsTable(e.registry, o.metricsCapacity)
	e.kerning = NewKernTable(e.registry, o.kernCapacity)
	e.measurer = NewMeasurer(e.registry, e.metrics, e.kerning)

	e.registry.SetUnregisterHook(func(h FontHandle, face BackendFace) {
		e.cache.Invalidate(h)
		e.metrics.Invalidate(h)
		e.kerning.Invalidate(h)
		e.producer.forgetFace(h)
		if f, ok := e.shaper.(faceForgetter); ok && face != nil {
			f.Forget(face)
		}
	})
	return e, nil
}

// faceForgetter is implemented by shapers that key internal state on the
// face, GoTextShaper among them; the engine drops that state when the
// face is unregistered.
type faceForgetter interface {
	Forget(face BackendFace)
}

// RegisterFont loads a face from the source and returns its handle.
func (e *Engine) RegisterFont(src FaceSource, faceIndex int) (FontHandle, error) {
	return e.registry.Register(src, faceIndex)
}

// UnregisterFont removes the face. Cached artifacts, metrics and kerning
// for the handle are evicted; in-flight productions for it fail with
// ErrUnknownFont.
func (e *Engine) UnregisterFont(h FontHandle) error {
	return e.registry.Unregister(h)
}

// Resolve finds the best registered face for the query.
func (e *Engine) Resolve(q FontQuery) (FontHandle, bool) {
	return e.registry.Resolve(q)
}

// AddFallback appends a family to the fallback chain consulted when a
// face lacks a codepoint.
func (e *Engine) AddFallback(family string, style Style) {
	e.registry.AddFallback(family, style)
}

// FallbackFor returns a registered face covering the codepoint, skipping
// the primary handle.
func (e *Engine) FallbackFor(cp rune, primary FontHandle) (FontHandle, bool) {
	return e.registry.FallbackFor(cp, primary)
}

// Glyph is the hot path: it returns the artifact for the fingerprint,
// producing and caching it on first request.
func (e *Engine) Glyph(ctx context.Context, fp Fingerprint) (*Artifact, error) {
	return e.cache.GetOrProduce(ctx, fp)
}

// Metrics returns scaled metrics for a glyph, via the metrics table.
func (e *Engine) Metrics(h FontHandle, g GlyphID, sizePx float64) (GlyphMetrics, error) {
	return e.metrics.Metrics(h, g, sizePx)
}

// Kerning returns the kerning adjustment between two glyphs in whole
// pixels at the given size, zero when the font defines none.
func (e *Engine) Kerning(h FontHandle, left, right GlyphID, sizePx float64) (int32, error) {
	delta, ok, err := e.kerning.Kern(h, left, right)
	if err != nil || !ok {
		return 0, err
	}
	face, err := e.registry.Face(h)
	if err != nil {
		return 0, err
	}
	return int32(kernPixels(delta, sizePx, face.UnitsPerEm())), nil
}

// Shape runs the shaping backend over the text for the handle's face.
func (e *Engine) Shape(h FontHandle, sizePx float64, text string, opts ShapeOptions) ([]ShapedGlyph, error) {
	face, err := e.registry.Face(h)
	if err != nil {
		return nil, err
	}
	data, err := e.registry.FaceData(h)
	if err != nil {
		return nil, err
	}
	return e.shaper.Shape(face, data, sizePx, text, opts)
}

// Measure shapes the text and computes run extents in one call.
func (e *Engine) Measure(h FontHandle, sizePx float64, text string, opts MeasureOptions) (*MeasureResult, error) {
	shaped, err := e.Shape(h, sizePx, text, ShapeOptions{Direction: opts.Direction})
	if err != nil {
		return nil, fmt.Errorf("shaping: %w", err)
	}
	return e.measurer.Measure(h, sizePx, shaped, opts)
}

// MeasureShaped computes run extents for an externally shaped sequence.
func (e *Engine) MeasureShaped(h FontHandle, sizePx float64, shaped []ShapedGlyph, opts MeasureOptions) (*MeasureResult, error) {
	return e.measurer.Measure(h, sizePx, shaped, opts)
}

// ConfigureCache adjusts the byte budget at runtime, evicting down when
// the new budget is below current usage.
func (e *Engine) ConfigureCache(maxBytes int64) {
	e.cache.SetBudget(maxBytes)
}

// SetEvictionPolicy switches how the glyph cache picks victims under
// memory pressure.
func (e *Engine) SetEvictionPolicy(p EvictionPolicy) error {
	return e.cache.SetPolicy(p)
}

// SetCacheHysteresis adjusts how far below the budget eviction drives
// usage, in percent.
func (e *Engine) SetCacheHysteresis(pct int) { e.cache.SetHysteresis(pct) }

// SetNegativeTTL adjusts how long deterministic production failures are
// remembered before the producer is retried. Zero disables the memos.
func (e *Engine) SetNegativeTTL(d time.Duration) { e.cache.SetNegativeTTL(d) }

// Stats returns a snapshot of the glyph cache counters.
func (e *Engine) Stats() CacheStats { return e.cache.Stats() }

// Sweep prunes evicted slots and expired negative memos.
func (e *Engine) Sweep() { e.cache.Sweep() }

// DumpCache writes the cache contents to w, tagged with the backend
// version.
func (e *Engine) DumpCache(w io.Writer) error {
	return e.cache.Dump(w, e.backend.Version())
}

// LoadCache restores a dump written by DumpCache. A dump from a
// different backend version is discarded and reported via a warning, not
// an error: the cache simply starts cold.
func (e *Engine) LoadCache(r io.Reader) (int, error) {
	n, err := e.cache.Load(r, e.backend.Version())
	if err != nil {
		logger().Warn("cache dump discarded", "error", err)
		return 0, nil
	}
	return n, nil
}

// Close releases the engine: the cache stops accepting requests and all
// registered faces are closed.
func (e *Engine) Close() error {
	cacheErr := e.cache.Close()
	regErr := e.registry.Close()
	if regErr != nil {
		return regErr
	}
	return cacheErr
}
