package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RefreshCron != "@every 5s" || cfg.Page != PageStats || cfg.Display.FullEvery != 30 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Fatalf("config perms = %v, want 0600", st.Mode().Perm())
	}

	// Round trip through the file.
	again, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Touch.Poll != 50*time.Millisecond || again.Touch.Addr != 0x14 || !again.Display.Fallback {
		t.Fatalf("reloaded config lost values: %+v", again)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("page: FLIGHTS\nrefresh: \"@every 10s\"\ndisplay:\n  full_every: 10\ntouch:\n  enabled: false\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Page != PageFlights {
		t.Fatalf("page = %q", cfg.Page)
	}
	if cfg.RefreshCron != "@every 10s" || cfg.Display.FullEvery != 10 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Touch.Enabled {
		t.Fatalf("touch should be disabled")
	}
	if !cfg.Display.Fallback || cfg.Listen != "127.0.0.1:8080" || cfg.ProcRoot != "/proc" {
		t.Fatalf("defaults not kept: %+v", cfg)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("page: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	c := &Config{
		Page:      "bogus",
		Display:   DisplayConfig{FullEvery: -3},
		BasicAuth: &BasicAuthConfig{},
	}
	c.Normalize()

	if c.Page != PageStats || c.RefreshCron != "@every 5s" || c.Display.FullEvery != 0 {
		t.Fatalf("normalize: %+v", c)
	}
	if c.BasicAuth != nil {
		t.Fatalf("empty basic auth should be dropped")
	}
	if c.Listen != "" {
		t.Fatalf("empty listen must stay empty (HTTP disabled)")
	}
}
