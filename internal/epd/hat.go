package epd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"reflect"
	"sync"
	"unsafe"

	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/waveshare2in13v4"
	"periph.io/x/host/v3"

	appLog "epdstats/internal/log"
)

// HatPanel is the real panel on the HAT's SPI bus and fixed GPIO pins.
type HatPanel struct {
	mu       sync.Mutex
	port     spi.PortCloser
	dev      *waveshare2in13v4.Dev
	sleeping bool
}

// NewHat initializes periph.io, opens the SPI port (empty name means the
// first one, /dev/spidev0.0 on a Raspberry Pi) and binds the HAT driver.
//
// It does not touch the panel yet; call Init before the first push.
func NewHat(spiBus string) (*HatPanel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: periph host init failed: %v", ErrNoHardware, err)
	}

	port, err := spireg.Open(spiBus)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open SPI port %q: %v", ErrNoHardware, spiBus, err)
	}

	opts := waveshare2in13v4.EPD2in13v4
	dev, err := waveshare2in13v4.NewHat(port, &opts)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("%w: failed to bind HAT driver: %v", ErrNoHardware, err)
	}

	return &HatPanel{port: port, dev: dev}, nil
}

func (h *HatPanel) Init(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.dev.Init(); err != nil {
		return fmt.Errorf("epd: init failed: %w", err)
	}
	h.sleeping = false
	if err := h.dev.Clear(color.White); err != nil {
		return fmt.Errorf("epd: clear failed: %w", err)
	}
	return nil
}

// Full re-runs the controller init, which reloads the full-refresh
// waveform, then draws the frame.
func (h *HatPanel) Full(img image.Image) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.dev.Init(); err != nil {
		return fmt.Errorf("epd: full refresh init failed: %w", err)
	}
	h.sleeping = false
	h.setMode(waveshare2in13v4.Full)
	return h.draw(img)
}

func (h *HatPanel) Partial(img image.Image) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sleeping {
		if err := h.dev.Init(); err != nil {
			return fmt.Errorf("epd: wake failed: %w", err)
		}
		h.sleeping = false
	}
	h.setMode(waveshare2in13v4.Partial)
	return h.draw(img)
}

// setMode picks the waveform Draw uses. The driver keeps it in an unexported
// field with no setter. If the field moves, Draw keeps whatever mode it had.
func (h *HatPanel) setMode(mode waveshare2in13v4.PartialUpdate) {
	if err := setDriverMode(h.dev, mode); err != nil {
		appLog.Debug("epd: refresh mode not switched", "err", err)
	}
}

func setDriverMode(dev *waveshare2in13v4.Dev, mode waveshare2in13v4.PartialUpdate) error {
	v := reflect.ValueOf(dev).Elem().FieldByName("mode")
	if !v.IsValid() || !v.CanAddr() || v.Type() != reflect.TypeOf(mode) {
		return errors.New("driver mode field unavailable")
	}
	reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem().Set(reflect.ValueOf(mode))
	return nil
}

func (h *HatPanel) draw(img image.Image) error {
	if err := h.dev.Draw(h.dev.Bounds(), img, img.Bounds().Min); err != nil {
		return fmt.Errorf("epd: draw failed: %w", err)
	}
	return nil
}

func (h *HatPanel) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sleeping {
		if err := h.dev.Init(); err != nil {
			return fmt.Errorf("epd: wake failed: %w", err)
		}
		h.sleeping = false
	}
	return h.dev.Clear(color.White)
}

func (h *HatPanel) Sleep() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sleeping {
		return nil
	}
	if err := h.dev.Sleep(); err != nil {
		return fmt.Errorf("epd: sleep failed: %w", err)
	}
	h.sleeping = true
	return nil
}

// Close releases the SPI port. It sends nothing to the controller, so the
// last frame stays on the glass after Sleep. The driver's Halt is not used:
// it clears the panel and waits on BUSY, which never settles once the
// controller is in deep sleep.
func (h *HatPanel) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.port.Close()
}

func (h *HatPanel) Bounds() image.Rectangle {
	return h.dev.Bounds()
}
