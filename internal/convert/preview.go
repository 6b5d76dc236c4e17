package convert

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"epdstats/internal/fb"
)

// Dump file names.
const (
	FrameFile   = "frame.bin"
	PreviewFile = "preview.png"
)

// ToGray expands f to 8-bit grey (0x00 ink, 0xFF paper).
func ToGray(f *fb.Framebuffer) *image.Gray {
	g := image.NewGray(f.Bounds())
	for y := 0; y < f.Height(); y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+f.Width()]
		for x := range row {
			if f.Bit(x, y) == 1 {
				row[x] = 0xFF
			}
		}
	}
	return g
}

// EncodePNG writes f as a greyscale PNG.
func EncodePNG(w io.Writer, f *fb.Framebuffer) error {
	if err := png.Encode(w, ToGray(f)); err != nil {
		return fmt.Errorf("convert: png encode failed: %w", err)
	}
	return nil
}

// Dump writes the raw packed frame and a PNG preview into dir.
//
// Both files are replaced atomically so a reader never sees a torn frame.
func Dump(dir string, f *fb.Framebuffer) error {
	if dir == "" {
		return fmt.Errorf("convert: dump dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("convert: failed to create dump dir: %w", err)
	}

	if err := writeFileAtomic(dir, FrameFile, f.Bytes()); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := EncodePNG(&buf, f); err != nil {
		return err
	}
	return writeFileAtomic(dir, PreviewFile, buf.Bytes())
}

// writeFileAtomic writes data to dir/name via a temp file + rename.
func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("convert: create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("convert: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("convert: close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("convert: rename %s: %w", name, err)
	}
	return nil
}
