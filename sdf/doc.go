// Package sdf generates signed distance fields from glyph shapes.
//
// A signed distance field stores, per sample, the distance to the nearest
// shape edge: positive inside, negative outside. Rendering a field with a
// simple threshold (or smoothstep) reconstructs the shape at any scale,
// which makes distance fields the standard scalable glyph representation
// for GPU text.
//
// The package produces two flavors:
//
//   - Generator.SDF: a single-channel field. Compact, but sharp corners
//     round off as the field is magnified.
//   - Generator.MSDF: a multi-channel field. Edge segments are assigned
//     RGB channels so that adjacent segments around a sharp corner land
//     in different channels; taking the median of the three channels at
//     render time reconstructs the corner exactly.
//
// Shapes are built with a ShapeBuilder from MoveTo/LineTo/QuadTo/CubicTo
// commands in any Y-up coordinate space; fields sample that space one
// sample per unit. Samples are normalized to [-1, +1] over the configured
// distance range.
package sdf
