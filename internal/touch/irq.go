package touch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	appLog "epdstats/internal/log"
)

// DefaultIntPin is the GT1151 INT line on the HAT (BCM 27).
const DefaultIntPin = "GPIO27"

type edgePin interface {
	WaitForEdge(timeout time.Duration) bool
	Read() gpio.Level
}

// IRQWatcher latches the controller's active-low interrupt line so the
// poll loop only talks I2C when a report is pending.
type IRQWatcher struct {
	pin     edgePin
	pending atomic.Bool
	done    chan struct{}
}

// OpenIRQ configures the named pin as a pulled-up input with falling-edge
// detection. periph must already be initialized (OpenGT1151 does that).
func OpenIRQ(name string) (*IRQWatcher, error) {
	if name == "" {
		name = DefaultIntPin
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("touch: no such gpio pin %q", name)
	}
	if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("touch: failed to configure %s: %w", name, err)
	}
	return &IRQWatcher{pin: p}, nil
}

// Start runs the watcher in its own goroutine. Wait joins it.
func (w *IRQWatcher) Start(ctx context.Context) {
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		w.Run(ctx)
	}()
}

// Wait blocks until a goroutine launched by Start has returned.
func (w *IRQWatcher) Wait() {
	if w.done != nil {
		<-w.done
	}
}

// Run waits for edges until ctx is done.
func (w *IRQWatcher) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if w.pin.WaitForEdge(200*time.Millisecond) || w.pin.Read() == gpio.Low {
			if !w.pending.Swap(true) {
				appLog.Debug("touch interrupt")
			}
		}
	}
}

// Rearm marks an interrupt as pending again.
func (w *IRQWatcher) Rearm() {
	w.pending.Store(true)
}

// Take reports and clears a pending interrupt.
func (w *IRQWatcher) Take() bool {
	return w.pending.Swap(false)
}
