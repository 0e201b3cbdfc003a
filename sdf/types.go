package sdf

import (
	"github.com/chewxy/math32"
)

// Point is a 2D point or vector in shape space.
type Point struct {
	X, Y float32
}

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Mul returns p scaled by s.
func (p Point) Mul(s float32) Point { return Point{p.X * s, p.Y * s} }

// Dot returns the dot product of p and q.
func (p Point) Dot(q Point) float32 { return p.X*q.X + p.Y*q.Y }

// Cross returns the 2D cross product (the z component of p x q).
func (p Point) Cross(q Point) float32 { return p.X*q.Y - p.Y*q.X }

// Length returns the Euclidean length of p.
func (p Point) Length() float32 { return math32.Sqrt(p.X*p.X + p.Y*p.Y) }

// LengthSquared returns the squared length of p.
func (p Point) LengthSquared() float32 { return p.X*p.X + p.Y*p.Y }

// Normalized returns p scaled to unit length, or the zero point for a
// zero vector.
func (p Point) Normalized() Point {
	l := p.Length()
	if l == 0 {
		return Point{}
	}
	return Point{p.X / l, p.Y / l}
}

// Lerp returns the linear interpolation between p and q at t.
func (p Point) Lerp(q Point, t float32) Point {
	return Point{p.X + (q.X-p.X)*t, p.Y + (q.Y-p.Y)*t}
}

// Rect is an axis-aligned bounding box in shape space.
type Rect struct {
	MinX, MinY, MaxX, MaxY float32
}

// Width returns the rectangle width.
func (r Rect) Width() float32 { return r.MaxX - r.MinX }

// Height returns the rectangle height.
func (r Rect) Height() float32 { return r.MaxY - r.MinY }

// Empty reports whether the rectangle encloses no area.
func (r Rect) Empty() bool { return r.MinX >= r.MaxX || r.MinY >= r.MaxY }

// Union returns the smallest rectangle containing both r and s.
func (r Rect) Union(s Rect) Rect {
	return Rect{
		MinX: math32.Min(r.MinX, s.MinX),
		MinY: math32.Min(r.MinY, s.MinY),
		MaxX: math32.Max(r.MaxX, s.MaxX),
		MaxY: math32.Max(r.MaxY, s.MaxY),
	}
}

// Config holds field generation parameters.
type Config struct {
	// Range is the full width of the encoded distance band in shape
	// units. Samples at |distance| >= Range/2 saturate to ±1.
	// Default: 4.
	Range float32

	// AngleThreshold is the minimum direction change (radians) between
	// consecutive segments for the joint to count as a sharp corner in
	// multi-channel coloring. Default: 3 degrees.
	AngleThreshold float32

	// MaxDimension caps the sample grid on either axis.
	// Default: 4096.
	MaxDimension int
}

// DefaultConfig returns the default field configuration.
func DefaultConfig() Config {
	return Config{
		Range:          4,
		AngleThreshold: 3 * math32.Pi / 180,
		MaxDimension:   4096,
	}
}

// normalize fills zero fields with their defaults.
func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.Range <= 0 {
		c.Range = d.Range
	}
	if c.AngleThreshold <= 0 {
		c.AngleThreshold = d.AngleThreshold
	}
	if c.MaxDimension <= 0 {
		c.MaxDimension = d.MaxDimension
	}
	return c
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Range < 0 {
		return &ConfigError{Field: "Range", Reason: "must be positive"}
	}
	if c.AngleThreshold < 0 || c.AngleThreshold > math32.Pi {
		return &ConfigError{Field: "AngleThreshold", Reason: "must be in [0, pi]"}
	}
	return nil
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "sdf: invalid config." + e.Field + ": " + e.Reason
}

// ShapeError reports a shape the generator cannot process.
type ShapeError struct {
	Reason string
}

func (e *ShapeError) Error() string { return "sdf: invalid shape: " + e.Reason }

// Field is a generated distance field. Samples are stored row-major from
// the top row down, channels interleaved, normalized to [-1, +1]:
// positive inside the shape, negative outside.
type Field struct {
	// Width and Height are the sample grid dimensions.
	Width, Height int

	// Channels is 1 for SDF, 3 for MSDF.
	Channels int

	// Scale is the factor from shape units to samples (currently always 1).
	Scale float32

	// Range is the full encoded distance band width in shape units.
	Range float32

	// OriginX, OriginY locate the grid in shape space: the top-left
	// sample's cell covers shape coordinates starting at
	// (OriginX, OriginY) going right and down.
	OriginX, OriginY float32

	// Samples holds Width * Height * Channels values.
	Samples []float32
}

// At returns the sample at (x, y) for the given channel.
func (f *Field) At(x, y, channel int) float32 {
	return f.Samples[(y*f.Width+x)*f.Channels+channel]
}

// Median3 returns the median of three values, the MSDF reconstruction
// operator.
func Median3(a, b, c float32) float32 {
	return math32.Max(math32.Min(a, b), math32.Min(math32.Max(a, b), c))
}
