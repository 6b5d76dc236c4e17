// Package epd drives the Waveshare 2.13" touch e-paper HAT.
//
// The controller protocol itself (init sequences, LUTs, partial-refresh
// windows) is handled by periph.io's waveshare2in13v4 driver. This package
// only decides what to push and when: a Panel abstraction with a hardware
// implementation and an in-memory one for development hosts, plus the
// full/partial refresh policy.
package epd

import (
	"context"
	"errors"
	"image"
)

// Panel geometry in portrait orientation (EPD_2IN13 width x height).
const (
	Width  = 122
	Height = 250
)

// ErrNoHardware wraps failures to reach the panel (no SPI device, no GPIO).
var ErrNoHardware = errors.New("epd: display hardware unavailable")

// Panel is what the render loop pushes frames to.
type Panel interface {
	// Init wakes the controller and clears the glass to white.
	Init(ctx context.Context) error
	// Full pushes img with a full refresh (slow, removes ghosting).
	Full(img image.Image) error
	// Partial pushes img with a partial refresh (fast, may ghost).
	Partial(img image.Image) error
	// Clear blanks the panel to white.
	Clear() error
	// Sleep puts the controller into deep sleep. The next push wakes it.
	Sleep() error
	// Close releases the bus.
	Close() error
	Bounds() image.Rectangle
}

// Mode is the refresh mode chosen for one push.
type Mode int

const (
	ModePartial Mode = iota
	ModeFull
)

func (m Mode) String() string {
	if m == ModeFull {
		return "full"
	}
	return "partial"
}

// Push sends img to p using mode.
func Push(p Panel, mode Mode, img image.Image) error {
	if mode == ModeFull {
		return p.Full(img)
	}
	return p.Partial(img)
}

// RefreshPolicy decides between full and partial refresh.
//
// Partial refreshes are fast but accumulate ghosting, so a full refresh is
// done on the first update, every FullEvery updates, and whenever a caller
// forces one (a touch, for example). ForceFull disables partial refresh.
type RefreshPolicy struct {
	FullEvery int
	ForceFull bool
}

// Decide returns the mode for the given 1-based update number.
func (p RefreshPolicy) Decide(update int, forced bool) Mode {
	switch {
	case p.ForceFull, forced, update <= 1:
		return ModeFull
	case p.FullEvery > 0 && update%p.FullEvery == 0:
		return ModeFull
	default:
		return ModePartial
	}
}
