package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	appLog "epdstats/internal/log"
	"epdstats/internal/touch"
)

const shutdownTimeout = 5 * time.Second

// Run drives the loop until ctx is cancelled:
//   - cron fires Tick on the configured schedule, skipping overlaps
//   - touch taps and RequestRefresh trigger an immediate Tick
//   - handler, if non-nil and Listen is set, is served over HTTP
//
// On cancel the scheduler is stopped, the touch goroutines are joined, the
// HTTP server is shut down, and the panel is put to sleep and closed.
func (r *Runner) Run(ctx context.Context, handler http.Handler) error {
	if err := r.Splash(); err != nil {
		appLog.Error("splash screen failed", err)
	}

	cronLog := appLog.CronLogger()
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	g, gctx := errgroup.WithContext(ctx)

	if _, err := c.AddFunc(r.cfg.RefreshCron, func() { r.tickLogged(gctx) }); err != nil {
		r.shutdown()
		return fmt.Errorf("app: invalid refresh schedule %q: %w", r.cfg.RefreshCron, err)
	}

	appLog.Info("display loop starting", "refresh", r.cfg.RefreshCron, "page", r.cfg.Page)
	r.tickLogged(gctx)
	c.Start()

	g.Go(func() error {
		<-gctx.Done()
		<-c.Stop().Done()
		appLog.Debug("scheduler stopped")
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-r.kick:
				r.tickLogged(gctx)
			}
		}
	})

	if _, nop := r.touch.(touch.Nop); !nop {
		if r.irq != nil {
			r.irq.Start(gctx)
		}
		loop := &touch.Loop{
			Source:   r.touch,
			IRQ:      r.irq,
			Poll:     r.cfg.Touch.Poll,
			Debounce: &touch.Debouncer{Window: touch.DefaultDebounce},
			OnTouch:  r.HandleTouch,
		}
		g.Go(func() error {
			err := loop.Run(gctx)
			if r.irq != nil {
				r.irq.Wait()
			}
			return err
		})
	}

	if handler != nil && r.cfg.Listen != "" {
		srv := &http.Server{
			Addr:              r.cfg.Listen,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			appLog.Info("starting HTTP server", "listen", "http://"+r.cfg.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	err := g.Wait()
	r.shutdown()
	appLog.Info("display loop stopped", "updates", r.Updates())
	return err
}

func (r *Runner) tickLogged(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// Tick already logged the failure; the next tick retries.
	_ = r.Tick(ctx)
}

// Updates returns the number of updates attempted so far.
func (r *Runner) Updates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update
}
