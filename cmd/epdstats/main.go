package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"epdstats/internal/app"
	"epdstats/internal/battery"
	"epdstats/internal/config"
	"epdstats/internal/epd"
	"epdstats/internal/hostinfo"
	appLog "epdstats/internal/log"
	"epdstats/internal/metrics"
	"epdstats/internal/touch"
	"epdstats/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values; non-empty values override the config file.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	renderOnly bool
	dump       string
	page       string
	logLevel   string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	applyFlags(conf, flags)
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("epdstats starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"refresh", conf.RefreshCron,
		"page", conf.Page,
		"proc_root", conf.ProcRoot,
		"full_every", conf.Display.FullEvery,
		"force_full", conf.Display.ForceFull,
		"touch", conf.Touch.Enabled,
		"battery", conf.Battery.Enabled,
		"dump_dir", conf.DumpDir,
		"once", flags.once,
		"render_only", flags.renderOnly,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("epdstats failed", err)
		os.Exit(1)
	}
	appLog.Info("epdstats exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	panel, err := epd.Open(ctx, epd.Options{
		SPIBus:     conf.Display.SPIBus,
		RenderOnly: flags.renderOnly,
		Fallback:   conf.Display.Fallback,
	})
	if err != nil {
		return err
	}

	opts := app.Options{
		Config:  conf,
		Panel:   panel,
		Host:    hostinfo.NewReader("/"),
		Metrics: metrics.New(),
		Battery: battery.Open(battery.Options{
			Enabled: conf.Battery.Enabled,
			Bus:     conf.Battery.I2CBus,
			Addr:    conf.Battery.Addr,
		}),
	}
	if flags.renderOnly {
		opts.Terminal = os.Stdout
	} else {
		opts.Touch, opts.IRQ = touch.Open(touch.Options{
			Enabled: conf.Touch.Enabled,
			Bus:     conf.Touch.I2CBus,
			Addr:    conf.Touch.Addr,
			IntPin:  conf.Touch.IntPin,
		})
	}

	runner, err := app.New(opts)
	if err != nil {
		_ = panel.Close()
		return err
	}

	if flags.once {
		return runner.Once(ctx)
	}

	srv := web.NewServer(conf, runner, opts.Metrics.Handler(), opts.Battery)
	return runner.Run(ctx, srv.Handler())
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", config.DefaultPath, "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one sample+render+display cycle and exit")
	flag.BoolVar(&cfg.renderOnly, "render-only", false, "Render only; do not touch display hardware, print frames to stdout")
	flag.StringVar(&cfg.dump, "dump", "", "Directory to dump frame.bin and preview.png into on every update")
	flag.StringVar(&cfg.page, "page", "", "Page to show: stats or flights (overrides config if set)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config if set)")

	flag.Parse()

	return cfg
}

func applyFlags(conf *config.Config, flags flagConfig) {
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.dump != "" {
		conf.DumpDir = flags.dump
	}
	if flags.page != "" {
		conf.Page = flags.page
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	conf.Normalize()
}
