package epd

import (
	"context"
	"image"
	"sync"

	"epdstats/internal/fb"
)

// MemoryPanel stands in for the HAT on machines without one (and in
// --render-only mode). It keeps the last pushed frame and push counters.
type MemoryPanel struct {
	mu       sync.Mutex
	frame    *fb.Framebuffer
	full     int
	partial  int
	sleeping bool
	closed   bool
}

// NewMemoryPanel returns a white width x height panel.
func NewMemoryPanel(width, height int) *MemoryPanel {
	return &MemoryPanel{frame: fb.New(width, height)}
}

func (m *MemoryPanel) Init(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame.Fill(true)
	m.sleeping = false
	return nil
}

func (m *MemoryPanel) Full(img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(img)
	m.full++
	return nil
}

func (m *MemoryPanel) Partial(img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(img)
	m.partial++
	return nil
}

func (m *MemoryPanel) store(img image.Image) {
	m.sleeping = false
	if src, ok := img.(*fb.Framebuffer); ok && m.frame.CopyFrom(src) {
		return
	}
	b := m.frame.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			m.frame.Set(x, y, img.At(x, y))
		}
	}
}

func (m *MemoryPanel) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame.Fill(true)
	return nil
}

func (m *MemoryPanel) Sleep() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleeping = true
	return nil
}

func (m *MemoryPanel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryPanel) Bounds() image.Rectangle {
	return m.frame.Bounds()
}

// Frame returns a copy of what is currently "on the glass".
func (m *MemoryPanel) Frame() *fb.Framebuffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame.Clone()
}

// Counts returns the number of full and partial pushes so far.
func (m *MemoryPanel) Counts() (full, partial int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.full, m.partial
}

// Sleeping reports whether Sleep was the last state change.
func (m *MemoryPanel) Sleeping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sleeping
}

// Closed reports whether Close has been called.
func (m *MemoryPanel) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
