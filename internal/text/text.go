// Package text paints strings into any draw.Image (normally the 1bpp
// framebuffer) using the fixed bitmap faces from golang.org/x/image.
package text

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Face is a bitmap font face with an integer pixel scale.
type Face struct {
	face  *basicfont.Face
	scale int
}

var (
	// Small is the 7x13 basicfont face.
	Small = Face{face: basicfont.Face7x13, scale: 1}
	// Large is Small with every pixel doubled (14x26 cells).
	Large = Face{face: basicfont.Face7x13, scale: 2}
)

func (f Face) normalized() Face {
	if f.face == nil {
		f.face = basicfont.Face7x13
	}
	if f.scale < 1 {
		f.scale = 1
	}
	return f
}

// Height is the line height in pixels.
func (f Face) Height() int {
	f = f.normalized()
	return f.face.Height * f.scale
}

// Width returns the advance width of s in pixels.
func Width(s string, f Face) int {
	f = f.normalized()
	adv := font.MeasureString(f.face, s)
	return adv.Ceil() * f.scale
}

// Draw paints s with its top-left corner at (x, y). When bg is non-nil the
// text box is filled with bg first, like the vendor SDK's DrawString.
func Draw(dst draw.Image, x, y int, s string, f Face, fg, bg color.Color) {
	if s == "" {
		return
	}
	f = f.normalized()

	w := font.MeasureString(f.face, s).Ceil()
	h := f.face.Height
	if w <= 0 || h <= 0 {
		return
	}

	// Rasterize at scale 1 into an alpha mask, then blit with scaling.
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: f.face,
		Dot:  fixed.P(0, f.face.Ascent),
	}
	d.DrawString(s)

	bounds := dst.Bounds()
	for my := 0; my < h; my++ {
		for mx := 0; mx < w; mx++ {
			var c color.Color
			if mask.AlphaAt(mx, my).A >= 0x80 {
				c = fg
			} else if bg != nil {
				c = bg
			} else {
				continue
			}
			for sy := 0; sy < f.scale; sy++ {
				for sx := 0; sx < f.scale; sx++ {
					p := image.Pt(x+mx*f.scale+sx, y+my*f.scale+sy)
					if p.In(bounds) {
						dst.Set(p.X, p.Y, c)
					}
				}
			}
		}
	}
}
