package fb

import "math"

// DrawBar draws a left-anchored progress bar into a raw packed buffer.
// It is the buffer-level entry point; see (*Framebuffer).DrawBar for the
// geometry rules.
func DrawBar(buf []byte, stride, bufHeight, x, y, width, height int, percent float64) {
	Wrap(buf, stride, bufHeight).DrawBar(x, y, width, height, percent)
}

// DrawBar paints percent of a width x height box at (x, y) black, then a
// one-pixel line above (row y-1) and below (row y+height) spanning columns
// x-1 through x+width. There are no side strokes.
//
// percent is clamped to [0, 100]; NaN counts as 0. Pixels that fall outside
// the buffer are skipped.
func (f *Framebuffer) DrawBar(x, y, width, height int, percent float64) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}

	barWidth := BarWidth(width, percent)
	for yy := 0; yy < height; yy++ {
		for xx := 0; xx < barWidth; xx++ {
			f.ClearPixel(x+xx, y+yy)
		}
	}

	for xx := 0; xx < width+2; xx++ {
		px := x - 1 + xx
		f.ClearPixel(px, y-1)
		f.ClearPixel(px, y+height)
	}
}

// BarWidth returns floor(width * clamp(percent, 0, 100) / 100).
func BarWidth(width int, percent float64) int {
	if width <= 0 {
		return 0
	}
	p := ClampPercent(percent)
	w := int(math.Floor(float64(width) * p / 100.0))
	if w > width {
		w = width
	}
	if w < 0 {
		w = 0
	}
	return w
}

// ClampPercent limits p to [0, 100]. NaN becomes 0.
func ClampPercent(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
