package epd

import (
	"context"
	"runtime"

	appLog "epdstats/internal/log"
)

// Options selects and configures the panel implementation.
type Options struct {
	// SPIBus is the periph.io SPI port name ("" for the default).
	SPIBus string
	// RenderOnly skips the hardware entirely.
	RenderOnly bool
	// Fallback returns an in-memory panel when the HAT cannot be opened.
	Fallback bool
}

// Open returns the panel to use and initializes it.
//
// Priority:
//  1. RenderOnly → MemoryPanel
//  2. linux: try the HAT over SPI
//  3. on failure, MemoryPanel if Fallback is set, otherwise the error
func Open(ctx context.Context, opts Options) (Panel, error) {
	if opts.RenderOnly {
		appLog.Info("render-only mode; display hardware is not touched")
		p := NewMemoryPanel(Width, Height)
		return p, p.Init(ctx)
	}

	var (
		hat *HatPanel
		err error
	)
	if runtime.GOOS != "linux" {
		err = ErrNoHardware
	} else {
		hat, err = NewHat(opts.SPIBus)
	}
	if err == nil {
		if err = hat.Init(ctx); err == nil {
			appLog.Info("e-paper HAT initialized", "spi", opts.SPIBus, "bounds", hat.Bounds().String())
			return hat, nil
		}
		_ = hat.Close()
	}

	if !opts.Fallback {
		return nil, err
	}
	appLog.Error("e-paper HAT unavailable; using in-memory panel", err)
	p := NewMemoryPanel(Width, Height)
	return p, p.Init(ctx)
}
