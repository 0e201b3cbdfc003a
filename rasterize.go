package glyphkit

import (
	"image"
	"math"

	"golang.org/x/image/vector"
)

// rasterPad is the empty border around rasterized ink, in pixels.
const rasterPad = 1

// rasterizeOutline renders a pixel-space outline to a bitmap. It is the
// producer's fallback for backends without a native rasterizer or without
// native subpixel output: subpixel modes are produced by 3x oversampling
// along the stripe axis followed by a box filter.
func rasterizeOutline(out *OutlineData, flags RenderFlags) (*BitmapData, error) {
	path, err := OutlineToPath(out)
	if err != nil {
		return nil, err
	}

	b := out.Bounds()
	w := int(math.Ceil(b.MaxX)-math.Floor(b.MinX)) + 2*rasterPad
	h := int(math.Ceil(b.MaxY)-math.Floor(b.MinY)) + 2*rasterPad
	if w < 2*rasterPad {
		w = 2 * rasterPad
	}
	if h < 2*rasterPad {
		h = 2 * rasterPad
	}

	ox, oy := 1, 1
	switch flags.Subpixel {
	case SubpixelH, SubpixelHV:
		ox = 3
	case SubpixelV:
		oy = 3
	}

	// Rasterize with Y flipped: outlines are Y-up, images are Y-down.
	dx := float32(rasterPad - math.Floor(b.MinX))
	topY := float32(math.Ceil(b.MaxY) + rasterPad)
	sx := float32(ox)
	sy := float32(oy)

	r := vector.NewRasterizer(w*ox, h*oy)
	for _, cmd := range path.Commands {
		pts := cmd.Points
		switch cmd.Op {
		case PathMoveTo:
			r.MoveTo(sx*(pts[0].X+dx), sy*(topY-pts[0].Y))
		case PathLineTo:
			r.LineTo(sx*(pts[0].X+dx), sy*(topY-pts[0].Y))
		case PathQuadTo:
			r.QuadTo(
				sx*(pts[0].X+dx), sy*(topY-pts[0].Y),
				sx*(pts[1].X+dx), sy*(topY-pts[1].Y))
		case PathCubicTo:
			r.CubeTo(
				sx*(pts[0].X+dx), sy*(topY-pts[0].Y),
				sx*(pts[1].X+dx), sy*(topY-pts[1].Y),
				sx*(pts[2].X+dx), sy*(topY-pts[2].Y))
		case PathClose:
			r.ClosePath()
		}
	}

	mask := image.NewAlpha(image.Rect(0, 0, w*ox, h*oy))
	r.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	if !flags.Antialias {
		thresholdAlpha(mask)
	}

	bm := &BitmapData{
		Width:   w,
		Height:  h,
		OriginX: math.Floor(b.MinX) - rasterPad,
		OriginY: math.Ceil(b.MaxY) + rasterPad,
	}

	switch {
	case ox == 3:
		bm.Format = FormatRGB24
		bm.Stride = w * 3
		bm.Data = filterSubpixelH(mask, w, h)
	case oy == 3:
		bm.Format = FormatRGB24
		bm.Stride = w * 3
		bm.Data = filterSubpixelV(mask, w, h)
	default:
		bm.Format = FormatAlpha8
		bm.Stride = w
		bm.Data = make([]byte, w*h)
		for y := 0; y < h; y++ {
			copy(bm.Data[y*w:(y+1)*w], mask.Pix[y*mask.Stride:y*mask.Stride+w])
		}
	}
	return bm, nil
}

// thresholdAlpha snaps coverage to full on/off for aliased output.
func thresholdAlpha(m *image.Alpha) {
	for i, v := range m.Pix {
		if v >= 128 {
			m.Pix[i] = 255
		} else {
			m.Pix[i] = 0
		}
	}
}

// filterSubpixelH folds a 3x horizontally oversampled mask into RGB
// stripes with a box filter over each stripe and its neighbors.
func filterSubpixelH(mask *image.Alpha, w, h int) []byte {
	data := make([]byte, w*h*3)
	ow := w * 3
	for y := 0; y < h; y++ {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+ow]
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				i := x*3 + c
				sum := int(row[i]) * 2
				n := 2
				if i > 0 {
					sum += int(row[i-1])
					n++
				}
				if i < ow-1 {
					sum += int(row[i+1])
					n++
				}
				data[(y*w+x)*3+c] = byte(sum / n)
			}
		}
	}
	return data
}

// filterSubpixelV is the vertical-stripe analogue of filterSubpixelH.
func filterSubpixelV(mask *image.Alpha, w, h int) []byte {
	data := make([]byte, w*h*3)
	oh := h * 3
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				j := y*3 + c
				sum := int(mask.Pix[j*mask.Stride+x]) * 2
				n := 2
				if j > 0 {
					sum += int(mask.Pix[(j-1)*mask.Stride+x])
					n++
				}
				if j < oh-1 {
					sum += int(mask.Pix[(j+1)*mask.Stride+x])
					n++
				}
				data[(y*w+x)*3+c] = byte(sum / n)
			}
		}
	}
	return data
}

// applyGamma maps every sample through the gamma curve. Applied last in
// the bitmap pipeline; a gamma of 1 is the identity.
func applyGamma(bm *BitmapData, gamma float64) {
	if gamma == 1.0 {
		return
	}
	var lut [256]byte
	inv := 1 / gamma
	for i := range lut {
		lut[i] = byte(math.Round(255 * math.Pow(float64(i)/255, inv)))
	}
	for i, v := range bm.Data {
		bm.Data[i] = lut[v]
	}
}
