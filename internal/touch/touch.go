// Package touch reads taps from the HAT's GT1151 capacitive controller.
package touch

import (
	"context"
	"sync"
	"time"

	appLog "epdstats/internal/log"
)

// Panel coordinate limits reported by the controller.
const (
	MaxX = 121
	MaxY = 249
)

// Point is a tap position in panel coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Source yields at most one tap per Poll.
type Source interface {
	Poll() (Point, bool, error)
	Close() error
}

// Nop never reports a tap. Used when touch is disabled or unavailable.
type Nop struct{}

func (Nop) Poll() (Point, bool, error) { return Point{}, false, nil }
func (Nop) Close() error               { return nil }

// Debouncer drops a tap that repeats the previous point within Window.
// The controller keeps reporting a held finger, which would otherwise
// trigger one refresh per poll.
type Debouncer struct {
	Window time.Duration

	mu   sync.Mutex
	last Point
	at   time.Time
	seen bool
}

// DefaultDebounce is the window used when none is configured.
const DefaultDebounce = 700 * time.Millisecond

// Accept reports whether p at now counts as a new tap.
func (d *Debouncer) Accept(p Point, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.seen && p == d.last && now.Sub(d.at) < d.Window {
		return false
	}
	d.last, d.at, d.seen = p, now, true
	return true
}

// Loop polls Source every Poll interval and hands accepted taps to OnTouch.
type Loop struct {
	Source Source
	// IRQ gates reads on the controller's interrupt line. Nil means poll
	// the status register unconditionally.
	IRQ      *IRQWatcher
	Poll     time.Duration
	Debounce *Debouncer
	OnTouch  func(Point)

	now func() time.Time
}

// Run blocks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	poll := l.Poll
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	now := l.now
	if now == nil {
		now = time.Now
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	retried := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if l.IRQ != nil && !l.IRQ.Take() {
			continue
		}
		p, ok, err := l.Source.Poll()
		if err != nil {
			appLog.Debug("touch poll failed", "err", err)
			continue
		}
		if !ok {
			// INT can fire before the ready bit is set; look once more on the
			// next tick instead of waiting for another edge.
			if l.IRQ != nil && !retried {
				l.IRQ.Rearm()
				retried = true
			} else {
				retried = false
			}
			continue
		}
		retried = false
		if l.Debounce != nil && !l.Debounce.Accept(p, now()) {
			continue
		}
		appLog.Debug("touch", "x", p.X, "y", p.Y)
		if l.OnTouch != nil {
			l.OnTouch(p)
		}
	}
}
