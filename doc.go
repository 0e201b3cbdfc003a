// Package glyphkit is a glyph production and cache core for text rendering
// pipelines. It turns fully-qualified glyph requests — font, glyph index,
// pixel size, representation, quality and render flags — into concrete
// artifacts (alpha bitmaps, vector outlines, path command streams, signed
// distance fields, metrics records), deduplicating concurrent production,
// bounding memory, and serving many goroutines at once.
//
// glyphkit does not parse font files and does not shape text itself. Both
// concerns are plugin seams:
//
//   - [FontBackend] exposes glyph lookup, outlines, rasters, metrics and
//     kerning for a loaded face. The shipped [SFNTBackend] is built on
//     golang.org/x/image/font/sfnt.
//   - [ShaperBackend] turns text into positioned glyph runs. The shipped
//     [GoTextShaper] is built on github.com/go-text/typesetting.
//
// The main entry points are [Engine], which wires the registry, cache,
// producer and measurement tables together behind the public API, and
// [GlyphCache] for callers that bring their own producer.
//
// # Architecture
//
// Components are layered leaves-first:
//
//	FontBackend (plugin)
//	   └─ Producer       — fingerprint → artifact, deterministic
//	        └─ GlyphCache — sharded, byte-bounded, single-flight
//	FontRegistry          — logical identity → face handles, fallbacks
//	KernTable, MetricsTable — count-bounded read-through caches
//	Measurer              — shaped run → extents and pen positions
//
// All exported types are safe for concurrent use unless their documentation
// says otherwise.
package glyphkit
