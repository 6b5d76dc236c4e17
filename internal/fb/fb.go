// Package fb implements the packed 1-bit framebuffer the e-paper panel
// consumes, and the bar primitive drawn into it.
//
// Layout rules (same as the Waveshare SDK image buffers):
//
//   - row-major, stride = ceil(width/8) bytes per row
//   - MSB-first: pixel x lives in byte x>>3, mask 0x80>>(x&7)
//   - bit 1 = white (blank), bit 0 = black (ink)
//
// The inverted ink convention is easy to get wrong; every writer in this
// module goes through ClearPixel/SetPixel so it only lives here.
package fb

import (
	"image"
	"image/color"

	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Framebuffer is a bounded view over a packed 1bpp buffer.
type Framebuffer struct {
	width  int
	height int
	stride int
	pix    []byte
}

// Stride returns ceil(width/8).
func Stride(width int) int {
	if width <= 0 {
		return 0
	}
	return (width + 7) / 8
}

// New allocates a width x height framebuffer filled with white.
func New(width, height int) *Framebuffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	f := &Framebuffer{
		width:  width,
		height: height,
		stride: Stride(width),
	}
	f.pix = make([]byte, f.stride*height)
	f.Fill(true)
	return f
}

// Wrap views a caller-owned buffer with the given stride and height. The
// buffer is neither copied nor cleared; width is taken as stride*8. If buf
// is shorter than stride*height, writes past its end are discarded.
func Wrap(buf []byte, stride, height int) *Framebuffer {
	if stride < 0 {
		stride = 0
	}
	if height < 0 {
		height = 0
	}
	return &Framebuffer{
		width:  stride * 8,
		height: height,
		stride: stride,
		pix:    buf,
	}
}

func (f *Framebuffer) Width() int  { return f.width }
func (f *Framebuffer) Height() int { return f.height }
func (f *Framebuffer) Stride() int { return f.stride }

// Bytes returns the underlying packed buffer (not a copy).
func (f *Framebuffer) Bytes() []byte { return f.pix }

// Fill sets every bit to white (true) or black (false).
func (f *Framebuffer) Fill(white bool) {
	v := byte(0x00)
	if white {
		v = 0xFF
	}
	for i := range f.pix {
		f.pix[i] = v
	}
}

// CopyFrom copies src's pixels when both buffers have the same geometry.
func (f *Framebuffer) CopyFrom(src *Framebuffer) bool {
	if src == nil || src.width != f.width || src.height != f.height || len(src.pix) != len(f.pix) {
		return false
	}
	copy(f.pix, src.pix)
	return true
}

// Clone returns an independent copy.
func (f *Framebuffer) Clone() *Framebuffer {
	c := *f
	c.pix = append([]byte(nil), f.pix...)
	return &c
}

// locate returns the byte index and mask for (x, y), or ok=false when the
// pixel is outside the buffer.
func (f *Framebuffer) locate(x, y int) (idx int, mask byte, ok bool) {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return 0, 0, false
	}
	idx = (x >> 3) + y*f.stride
	if idx >= len(f.pix) {
		return 0, 0, false
	}
	return idx, byte(0x80 >> (x & 7)), true
}

// ClearPixel paints (x, y) black. Out-of-range pixels are ignored.
func (f *Framebuffer) ClearPixel(x, y int) {
	if idx, mask, ok := f.locate(x, y); ok {
		f.pix[idx] &^= mask
	}
}

// SetPixel paints (x, y) white. Out-of-range pixels are ignored.
func (f *Framebuffer) SetPixel(x, y int) {
	if idx, mask, ok := f.locate(x, y); ok {
		f.pix[idx] |= mask
	}
}

// Bit reports the raw bit at (x, y): 1 = white, 0 = black. Out-of-range
// pixels read as white.
func (f *Framebuffer) Bit(x, y int) byte {
	idx, mask, ok := f.locate(x, y)
	if !ok {
		return 1
	}
	if f.pix[idx]&mask != 0 {
		return 1
	}
	return 0
}

// ColorModel implements image.Image.
func (f *Framebuffer) ColorModel() color.Model { return image1bit.BitModel }

// Bounds implements image.Image.
func (f *Framebuffer) Bounds() image.Rectangle { return image.Rect(0, 0, f.width, f.height) }

// At implements image.Image. White pixels are image1bit.On.
func (f *Framebuffer) At(x, y int) color.Color {
	return image1bit.Bit(f.Bit(x, y) == 1)
}

// Set implements draw.Image. Colors are thresholded through BitModel, so
// anything lighter than mid-grey becomes white.
func (f *Framebuffer) Set(x, y int, c color.Color) {
	if image1bit.BitModel.Convert(c).(image1bit.Bit) {
		f.SetPixel(x, y)
	} else {
		f.ClearPixel(x, y)
	}
}
