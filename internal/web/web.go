package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"epdstats/internal/app"
	"epdstats/internal/battery"
	"epdstats/internal/config"
	"epdstats/internal/convert"
	"epdstats/internal/fb"
	appLog "epdstats/internal/log"
)

// Source is what the HTTP API reads from; *app.Runner implements it.
type Source interface {
	Snapshot() (app.Snapshot, bool)
	Frame() *fb.Framebuffer
	RequestRefresh()
}

// Server provides the HTTP API: health, latest stats, frame preview,
// Prometheus metrics and a manual refresh trigger.
type Server struct {
	cfg     *config.Config
	src     Source
	metrics http.Handler
	battery battery.Reader
	mux     *http.ServeMux

	// In-memory cache for battery status. This avoids hitting I2C on every
	// single HTTP call.
	batteryMu    sync.RWMutex
	batteryCache *batteryCache

	now func() time.Time
}

// NewServer constructs a new Server. metrics and bat may be nil.
func NewServer(cfg *config.Config, src Source, metrics http.Handler, bat battery.Reader) *Server {
	s := &Server{
		cfg:     cfg,
		src:     src,
		metrics: metrics,
		battery: bat,
		mux:     http.NewServeMux(),
		now:     time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="epdstats", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/battery", s.handleBattery)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleStats returns the snapshot published by the last successful update.
// 503 until the first update lands.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.src.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no update yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handlePreview serves the frame currently on the panel as a PNG.
func (s *Server) handlePreview(w http.ResponseWriter, _ *http.Request) {
	frame := s.src.Frame()
	if frame == nil {
		writeError(w, http.StatusServiceUnavailable, "no frame yet")
		return
	}

	var buf bytes.Buffer
	if err := convert.EncodePNG(&buf, frame); err != nil {
		appLog.Error("preview encode failed", err)
		writeError(w, http.StatusInternalServerError, "failed to encode preview")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleRefresh schedules an immediate full refresh.
func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.src.RequestRefresh()
	appLog.Info("refresh requested over HTTP")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

// batteryCache holds the last known battery status and its timestamp.
type batteryCache struct {
	status    battery.Status
	updatedAt time.Time
}

const batteryCacheTTL = 30 * time.Second

// handleBattery exposes the current battery status.
//
// Battery status does not need sub-second precision, so a short-TTL cache
// keeps HTTP polling off the I2C bus.
func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	if s.battery == nil {
		writeError(w, http.StatusNotFound, "battery reader not configured")
		return
	}

	now := s.now()

	s.batteryMu.RLock()
	bc := s.batteryCache
	s.batteryMu.RUnlock()
	if bc != nil && now.Sub(bc.updatedAt) < batteryCacheTTL {
		writeJSON(w, http.StatusOK, bc.status)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status, err := s.battery.Read(ctx)
	if err != nil {
		appLog.Error("battery read failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read battery")
		return
	}

	s.batteryMu.Lock()
	s.batteryCache = &batteryCache{status: status, updatedAt: now}
	s.batteryMu.Unlock()

	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
