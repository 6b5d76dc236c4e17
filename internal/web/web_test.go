package web

import (
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"epdstats/internal/app"
	"epdstats/internal/battery"
	"epdstats/internal/config"
	"epdstats/internal/dashboard"
	"epdstats/internal/fb"
	"epdstats/internal/metrics"
	"epdstats/internal/procstat"
)

type fakeSource struct {
	snap     *app.Snapshot
	frame    *fb.Framebuffer
	refreshs atomic.Int32
}

func (f *fakeSource) Snapshot() (app.Snapshot, bool) {
	if f.snap == nil {
		return app.Snapshot{}, false
	}
	return *f.snap, true
}

func (f *fakeSource) Frame() *fb.Framebuffer { return f.frame }
func (f *fakeSource) RequestRefresh()        { f.refreshs.Add(1) }

type countingBattery struct{ reads atomic.Int32 }

func (c *countingBattery) Read(context.Context) (battery.Status, error) {
	c.reads.Add(1)
	return battery.Status{Percent: 80, VoltageMv: 3900}, nil
}

func populated() *fakeSource {
	frame := fb.New(122, 250)
	frame.DrawBar(2, 50, 100, 8, 40)
	return &fakeSource{
		snap: &app.Snapshot{
			Page: "stats",
			Mode: "full",
			Stats: dashboard.Stats{
				CPU:    40,
				Mem:    procstat.MemoryUsage{Percent: 50, UsedMB: 3906, TotalMB: 7812},
				Update: 3,
			},
			At: time.Unix(1700000000, 0),
		},
		frame: frame,
	}
}

func do(t *testing.T, h http.Handler, method, path string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if auth {
		req.SetBasicAuth("admin", "secret")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndStats(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	h := NewServer(cfg, populated(), nil, nil).Handler()

	if rec := do(t, h, "GET", "/health", false); rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("/health = %d %q", rec.Code, rec.Body.String())
	}

	rec := do(t, h, "GET", "/api/stats", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("/api/stats = %d", rec.Code)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Stats.CPU != 40 || snap.Stats.Mem.TotalMB != 7812 || snap.Stats.Update != 3 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if !strings.Contains(rec.Body.String(), `"used_mb":3906`) {
		t.Fatalf("memory fields not in JSON: %s", rec.Body.String())
	}
}

func TestNoUpdateYet(t *testing.T) {
	t.Parallel()

	h := NewServer(config.DefaultConfig(), &fakeSource{}, nil, nil).Handler()
	for _, path := range []string{"/api/stats", "/preview.png"} {
		if rec := do(t, h, "GET", path, false); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s = %d, want 503", path, rec.Code)
		}
	}
}

func TestPreviewPNG(t *testing.T) {
	t.Parallel()

	h := NewServer(config.DefaultConfig(), populated(), nil, nil).Handler()
	rec := do(t, h, "GET", "/preview.png", false)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("/preview.png = %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 122 || img.Bounds().Dy() != 250 {
		t.Fatalf("preview size %v", img.Bounds())
	}
	if r, _, _, _ := img.At(2, 50).RGBA(); r != 0 {
		t.Fatalf("bar pixel should be black in preview")
	}
}

func TestRefreshAndMetrics(t *testing.T) {
	t.Parallel()

	src := populated()
	m := metrics.New()
	m.DisplayUpdated("full", 1)
	h := NewServer(config.DefaultConfig(), src, m.Handler(), nil).Handler()

	if rec := do(t, h, "POST", "/api/refresh", false); rec.Code != http.StatusAccepted {
		t.Fatalf("/api/refresh = %d", rec.Code)
	}
	if src.refreshs.Load() != 1 {
		t.Fatalf("refresh not requested")
	}
	if rec := do(t, h, "GET", "/api/refresh", false); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /api/refresh = %d, want 405", rec.Code)
	}

	rec := do(t, h, "GET", "/metrics", false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "epdstats_display_updates_total") {
		t.Fatalf("/metrics = %d", rec.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	h := NewServer(cfg, populated(), nil, nil).Handler()

	if rec := do(t, h, "GET", "/health", false); rec.Code != http.StatusOK {
		t.Fatalf("/health must stay open, got %d", rec.Code)
	}
	rec := do(t, h, "GET", "/api/stats", false)
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("unauthenticated /api/stats = %d", rec.Code)
	}
	if rec := do(t, h, "GET", "/api/stats", true); rec.Code != http.StatusOK {
		t.Fatalf("authenticated /api/stats = %d", rec.Code)
	}
}

func TestBatteryCache(t *testing.T) {
	t.Parallel()

	bat := &countingBattery{}
	s := NewServer(config.DefaultConfig(), populated(), nil, bat)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }
	h := s.Handler()

	for i := 0; i < 3; i++ {
		rec := do(t, h, "GET", "/api/battery", false)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"percent":80`) {
			t.Fatalf("/api/battery = %d %s", rec.Code, rec.Body.String())
		}
	}
	if bat.reads.Load() != 1 {
		t.Fatalf("battery read %d times, want 1 (cached)", bat.reads.Load())
	}

	now = now.Add(batteryCacheTTL)
	do(t, h, "GET", "/api/battery", false)
	if bat.reads.Load() != 2 {
		t.Fatalf("cache did not expire")
	}

	noBat := NewServer(config.DefaultConfig(), populated(), nil, nil).Handler()
	if rec := do(t, noBat, "GET", "/api/battery", false); rec.Code != http.StatusNotFound {
		t.Fatalf("/api/battery without reader = %d", rec.Code)
	}
}
