// Package app runs the display loop: sample, render, push, publish.
package app

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"epdstats/internal/battery"
	"epdstats/internal/config"
	"epdstats/internal/convert"
	"epdstats/internal/dashboard"
	"epdstats/internal/epd"
	"epdstats/internal/fb"
	"epdstats/internal/flight"
	"epdstats/internal/hostinfo"
	appLog "epdstats/internal/log"
	"epdstats/internal/metrics"
	"epdstats/internal/procstat"
	"epdstats/internal/touch"
)

// Snapshot is the last published update, served over HTTP.
type Snapshot struct {
	Page    string          `json:"page"`
	Mode    string          `json:"mode"`
	Stats   dashboard.Stats `json:"stats"`
	Flights []flight.Info   `json:"flights,omitempty"`
	At      time.Time       `json:"at"`
}

// HostReader is satisfied by *hostinfo.Reader.
type HostReader interface {
	Read(ctx context.Context) hostinfo.Info
}

// Options wires a Runner. Config and Panel are required.
type Options struct {
	Config  *config.Config
	Panel   epd.Panel
	Touch   touch.Source
	IRQ     *touch.IRQWatcher
	Battery battery.Reader
	Host    HostReader
	Metrics *metrics.Metrics
	// Terminal, if non-nil, receives a text rendering of every frame.
	Terminal io.Writer
	// Now and Rand are overridable for tests.
	Now  func() time.Time
	Rand *rand.Rand
}

// Runner owns the framebuffer and everything that mutates it. Tick may be
// called from cron goroutines, the touch loop and HTTP handlers; mu
// serializes them.
type Runner struct {
	cfg      *config.Config
	panel    epd.Panel
	policy   epd.RefreshPolicy
	cpu      *procstat.CPUSampler
	mem      *procstat.MemSampler
	host     HostReader
	battery  battery.Reader
	metrics  *metrics.Metrics
	touch    touch.Source
	irq      *touch.IRQWatcher
	terminal io.Writer
	now      func() time.Time

	mu      sync.Mutex
	frame   *fb.Framebuffer
	update  int
	rotator *flight.Rotator
	rng     *rand.Rand

	forceFull atomic.Bool
	kick      chan struct{}

	snapMu    sync.RWMutex
	snap      *Snapshot
	published *fb.Framebuffer
}

// New builds a Runner from opts.
func New(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("app: config is nil")
	}
	if opts.Panel == nil {
		return nil, fmt.Errorf("app: panel is nil")
	}
	cfg := opts.Config

	r := &Runner{
		cfg:   cfg,
		panel: opts.Panel,
		policy: epd.RefreshPolicy{
			FullEvery: cfg.Display.FullEvery,
			ForceFull: cfg.Display.ForceFull,
		},
		cpu:      procstat.NewCPUSampler(cfg.ProcRoot),
		mem:      procstat.NewMemSampler(cfg.ProcRoot),
		host:     opts.Host,
		battery:  opts.Battery,
		metrics:  opts.Metrics,
		touch:    opts.Touch,
		irq:      opts.IRQ,
		terminal: opts.Terminal,
		now:      opts.Now,
		rotator:  flight.NewRotator(nil),
		rng:      opts.Rand,
		kick:     make(chan struct{}, 1),
	}

	b := opts.Panel.Bounds()
	r.frame = fb.New(b.Dx(), b.Dy())

	if r.host == nil {
		r.host = hostinfo.NewReader("/")
	}
	if r.touch == nil {
		r.touch = touch.Nop{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r, nil
}

// Splash shows the start-up frame with a full refresh.
func (r *Runner) Splash() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dashboard.RenderSplash(r.frame)
	if err := r.panel.Full(r.frame); err != nil {
		return fmt.Errorf("app: splash failed: %w", err)
	}
	return nil
}

// Tick runs one update: sample, render the configured page, push with the
// refresh mode the policy picks, then publish the result.
func (r *Runner) Tick(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := dashboard.Stats{
		CPU:  r.cpu.Sample(),
		Mem:  r.mem.Sample(),
		Host: r.host.Read(ctx),
	}
	if r.battery != nil {
		st, err := r.battery.Read(ctx)
		if err != nil {
			appLog.Debug("battery read failed", "err", err)
		} else {
			stats.Battery = &st
			if r.metrics != nil {
				r.metrics.ObserveBattery(st.Percent)
			}
		}
	}
	if r.metrics != nil {
		r.metrics.ObserveSample(stats.CPU, stats.Mem, stats.Host.Load1)
	}

	r.update++
	stats.Update = r.update

	forced := r.forceFull.Swap(false)
	mode := r.policy.Decide(r.update, forced)

	flights := r.render(stats)

	if err := epd.Push(r.panel, mode, r.frame); err != nil {
		if r.metrics != nil {
			r.metrics.DisplayFailed()
		}
		appLog.Error("display update failed", err, "update", r.update, "mode", mode.String())
		return err
	}

	now := r.now()
	if r.metrics != nil {
		r.metrics.DisplayUpdated(mode.String(), float64(now.Unix()))
	}
	appLog.Info(mode.String()+" update",
		"update", r.update,
		"page", r.cfg.Page,
		"cpu", fmt.Sprintf("%.1f", stats.CPU),
		"mem", fmt.Sprintf("%.1f", stats.Mem.Percent),
	)

	if r.cfg.DumpDir != "" {
		if err := convert.Dump(r.cfg.DumpDir, r.frame); err != nil {
			appLog.Error("frame dump failed", err, "dir", r.cfg.DumpDir)
		}
	}
	if r.terminal != nil {
		fmt.Fprintln(r.terminal, convert.Terminal(r.frame, convert.Caption(r.cfg.Page, r.update, mode.String())))
	}

	r.publish(&Snapshot{
		Page:    r.cfg.Page,
		Mode:    mode.String(),
		Stats:   stats,
		Flights: flights,
		At:      now,
	})
	return nil
}

// render draws the configured page into r.frame. Caller holds r.mu.
func (r *Runner) render(stats dashboard.Stats) []flight.Info {
	if r.cfg.Page != config.PageFlights {
		dashboard.RenderStats(r.frame, stats)
		return nil
	}

	if r.cfg.Display.RandomFlights {
		fls := flight.Random(r.rng)
		dashboard.RenderFlightList(r.frame, fls)
		return fls
	}

	fl := r.rotator.Current()
	if r.cfg.Display.RotateFlights && r.update > 1 {
		fl = r.rotator.Next()
	}
	dashboard.RenderFlight(r.frame, fl)
	return []flight.Info{fl}
}

func (r *Runner) publish(s *Snapshot) {
	frame := r.frame.Clone()
	r.snapMu.Lock()
	r.snap = s
	r.published = frame
	r.snapMu.Unlock()
}

// Snapshot returns the last published update, if any.
func (r *Runner) Snapshot() (Snapshot, bool) {
	r.snapMu.RLock()
	defer r.snapMu.RUnlock()
	if r.snap == nil {
		return Snapshot{}, false
	}
	return *r.snap, true
}

// Frame returns a copy of the last published frame, or nil before the
// first update.
func (r *Runner) Frame() *fb.Framebuffer {
	r.snapMu.RLock()
	defer r.snapMu.RUnlock()
	if r.published == nil {
		return nil
	}
	return r.published.Clone()
}

// RequestRefresh asks for an immediate update with a full refresh.
func (r *Runner) RequestRefresh() {
	r.forceFull.Store(true)
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// HandleTouch is the touch.Loop callback. A tap forces a full refresh and,
// on the flights page, moves to the next flight.
func (r *Runner) HandleTouch(p touch.Point) {
	if r.metrics != nil {
		r.metrics.Touched()
	}
	appLog.Info("touch detected", "x", p.X, "y", p.Y)
	if r.cfg.Page == config.PageFlights && !r.cfg.Display.RandomFlights {
		r.rotator.Next()
	}
	r.RequestRefresh()
}

// Once runs a single update and puts the panel to sleep.
func (r *Runner) Once(ctx context.Context) error {
	err := r.Tick(ctx)
	r.shutdown()
	return err
}

// shutdown sleeps and releases the panel and the touch controller.
func (r *Runner) shutdown() {
	if err := r.panel.Sleep(); err != nil {
		appLog.Error("panel sleep failed", err)
	}
	if err := r.panel.Close(); err != nil {
		appLog.Error("panel close failed", err)
	}
	if err := r.touch.Close(); err != nil {
		appLog.Error("touch close failed", err)
	}
}
