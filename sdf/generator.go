package sdf

import (
	"runtime"
	"sync"

	"github.com/chewxy/math32"
)

// Generator produces distance fields from shapes.
type Generator struct {
	cfg Config
}

// NewGenerator returns a generator with the given configuration. Zero
// fields take their defaults.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg.normalize()}
}

// SDF generates a single-channel signed distance field for the shape.
func (g *Generator) SDF(s *Shape) (*Field, error) {
	return g.generate(s, 1)
}

// MSDF generates a three-channel multi-signed distance field. The
// per-channel distances disagree near sharp corners, so taking the
// median of the three channels reconstructs corners that a plain SDF
// rounds off.
func (g *Generator) MSDF(s *Shape) (*Field, error) {
	return g.generate(s, 3)
}

func (g *Generator) generate(s *Shape, channels int) (*Field, error) {
	if err := g.cfg.Validate(); err != nil {
		return nil, err
	}

	half := g.cfg.Range / 2
	pad := int(math32.Ceil(half))

	if s.Empty() {
		// Whitespace glyphs have no outline; emit a minimal all-outside
		// field so callers need no special case.
		f := &Field{
			Width: 1, Height: 1, Channels: channels,
			Scale: 1, Range: g.cfg.Range,
			Samples: make([]float32, channels),
		}
		for i := range f.Samples {
			f.Samples[i] = -1
		}
		return f, nil
	}

	b := s.Bounds()
	minX := int(math32.Floor(b.MinX)) - pad
	maxX := int(math32.Ceil(b.MaxX)) + pad
	minY := int(math32.Floor(b.MinY)) - pad
	maxY := int(math32.Ceil(b.MaxY)) + pad

	w := maxX - minX
	h := maxY - minY
	if w <= 0 || h <= 0 {
		return nil, &ShapeError{Reason: "degenerate bounds"}
	}
	if w > g.cfg.MaxDimension || h > g.cfg.MaxDimension {
		return nil, &ConfigError{Field: "MaxDimension", Reason: "shape exceeds maximum field size"}
	}

	flip := orientationFlipped(s)
	if channels == 3 {
		s.ColorEdges(g.cfg.AngleThreshold)
	}

	f := &Field{
		Width: w, Height: h, Channels: channels,
		Scale: 1, Range: g.cfg.Range,
		OriginX: float32(minX),
		OriginY: float32(maxY),
		Samples: make([]float32, w*h*channels),
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > h {
		workers = h
	}
	rows := make(chan int, h)
	for y := 0; y < h; y++ {
		rows <- y
	}
	close(rows)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				py := f.OriginY - (float32(y) + 0.5)
				for x := 0; x < w; x++ {
					px := f.OriginX + float32(x) + 0.5
					g.samplePoint(s, Point{px, py}, flip, f.Samples[(y*w+x)*channels:(y*w+x)*channels+channels])
				}
			}
		}()
	}
	wg.Wait()

	return f, nil
}

// samplePoint writes the normalized distance(s) at p into out, one value
// per channel.
func (g *Generator) samplePoint(s *Shape, p Point, flip bool, out []float32) {
	half := g.cfg.Range / 2

	if len(out) == 1 {
		best := farthest()
		for ci := range s.Contours {
			segs := s.Contours[ci].Segments
			for si := range segs {
				best = best.CloserOf(segs[si].SignedDistance(p))
			}
		}
		out[0] = normalizeDistance(best.Value, half, flip)
		return
	}

	bestR, bestG, bestB := farthest(), farthest(), farthest()
	for ci := range s.Contours {
		segs := s.Contours[ci].Segments
		for si := range segs {
			d := segs[si].SignedDistance(p)
			mask := segs[si].Mask
			if mask.Has(ChannelR) {
				bestR = bestR.CloserOf(d)
			}
			if mask.Has(ChannelG) {
				bestG = bestG.CloserOf(d)
			}
			if mask.Has(ChannelB) {
				bestB = bestB.CloserOf(d)
			}
		}
	}
	out[0] = normalizeDistance(bestR.Value, half, flip)
	out[1] = normalizeDistance(bestG.Value, half, flip)
	out[2] = normalizeDistance(bestB.Value, half, flip)
}

func normalizeDistance(d, half float32, flip bool) float32 {
	if flip {
		d = -d
	}
	v := d / half
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// orientationFlipped reports whether the shape's dominant contour runs
// clockwise, in which case raw signed distances have inside negative and
// must be inverted. TrueType outlines arrive clockwise-outer while CFF
// outlines arrive counter-clockwise, so orientation is detected rather
// than assumed.
func orientationFlipped(s *Shape) bool {
	bestArea := float32(0)
	winding := 0
	for ci := range s.Contours {
		c := &s.Contours[ci]
		b := c.Bounds()
		area := b.Width() * b.Height()
		if area > bestArea {
			bestArea = area
			winding = c.Winding()
		}
	}
	return winding < 0
}
