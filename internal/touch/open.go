package touch

import (
	appLog "epdstats/internal/log"
)

// Options configures the touch controller.
type Options struct {
	Enabled bool
	Bus     string
	Addr    uint16
	// IntPin is the interrupt GPIO name; "-" disables interrupt gating.
	IntPin string
}

// Open returns the touch source and, when available, its interrupt watcher.
// Any hardware failure degrades to Nop; touch is never required.
func Open(opts Options) (Source, *IRQWatcher) {
	if !opts.Enabled {
		return Nop{}, nil
	}

	g, err := OpenGT1151(opts.Bus, opts.Addr)
	if err != nil {
		appLog.Error("touch controller unavailable; taps are ignored", err)
		return Nop{}, nil
	}
	if opts.IntPin == "-" {
		return g, nil
	}
	irq, err := OpenIRQ(opts.IntPin)
	if err != nil {
		appLog.Warn("touch interrupt unavailable; polling status register", "err", err)
		return g, nil
	}
	return g, irq
}
