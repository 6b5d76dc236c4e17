// Package convert moves frames between the packed 1bpp framebuffer and
// ordinary images: thresholding arbitrary images onto the panel, PNG
// previews, raw dumps and a terminal rendering.
package convert

import (
	"image"
	"image/color"

	"epdstats/internal/fb"
)

// Pack thresholds img into a new width x height framebuffer.
//
// Behavior:
//
//   - img is read from its Bounds().Min; pixels beyond img are white.
//
//   - Pixel classification:
//
//   - transparent (alpha < 128) → white
//
//   - luma below 128 → black
//
//   - everything else → white
//
// Packing follows fb: row-major, MSB-first, 1 = white, 0 = black ink.
func Pack(img image.Image, width, height int) *fb.Framebuffer {
	out := fb.New(width, height)
	b := img.Bounds()

	// Fast path for NRGBA/RGBA sources avoids the per-pixel interface call.
	if nrgba, ok := img.(*image.NRGBA); ok {
		for py := 0; py < height && py < b.Dy(); py++ {
			row := nrgba.Pix[py*nrgba.Stride:]
			for px := 0; px < width && px < b.Dx(); px++ {
				i := px * 4
				c := color.NRGBA{R: row[i], G: row[i+1], B: row[i+2], A: row[i+3]}
				if isInk(c) {
					out.ClearPixel(px, py)
				}
			}
		}
		return out
	}

	for py := 0; py < height && py < b.Dy(); py++ {
		for px := 0; px < width && px < b.Dx(); px++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+px, b.Min.Y+py)).(color.NRGBA)
			if isInk(c) {
				out.ClearPixel(px, py)
			}
		}
	}
	return out
}

// isInk decides whether a pixel is black on the monochrome panel.
//
// Luma Y = 0.299R + 0.587G + 0.114B, threshold at mid-grey.
func isInk(c color.NRGBA) bool {
	if c.A < 128 {
		return false
	}
	y := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
	return y < 128
}
