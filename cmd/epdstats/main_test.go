package main

import (
	"testing"

	"epdstats/internal/config"
)

func TestApplyFlags(t *testing.T) {
	conf := config.DefaultConfig()
	applyFlags(conf, flagConfig{
		listen:   ":9090",
		dump:     "/tmp/frames",
		page:     "Flights",
		logLevel: "debug",
	})

	if conf.Listen != ":9090" || conf.DumpDir != "/tmp/frames" || conf.LogLevel != "debug" {
		t.Fatalf("flags not applied: %+v", conf)
	}
	if conf.Page != config.PageFlights {
		t.Fatalf("page = %q, want normalized %q", conf.Page, config.PageFlights)
	}

	keep := config.DefaultConfig()
	applyFlags(keep, flagConfig{})
	if keep.Listen != "127.0.0.1:8080" || keep.Page != config.PageStats {
		t.Fatalf("empty flags must not override config: %+v", keep)
	}
}
