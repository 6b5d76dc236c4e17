package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// DefaultPath is where the service looks for its config when --config is
// not given.
const DefaultPath = "/etc/epdstats/config.yaml"

// Pages the display can show.
const (
	PageStats   = "stats"
	PageFlights = "flights"
)

const (
	defaultListen    = "127.0.0.1:8080"
	defaultRefresh   = "@every 5s"
	defaultFullEvery = 30
	defaultTouchPoll = 50 * time.Millisecond
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// DisplayConfig controls the e-paper panel.
type DisplayConfig struct {
	// SPIBus is the periph.io SPI port name; empty selects the first port.
	SPIBus string `yaml:"spi_bus" json:"spi_bus"`
	// FullEvery forces a full refresh every N updates to clear ghosting.
	FullEvery int `yaml:"full_every" json:"full_every"`
	// ForceFull disables partial refresh entirely.
	ForceFull bool `yaml:"force_full" json:"force_full"`
	// Fallback keeps the service running on an in-memory panel when the
	// HAT cannot be opened.
	Fallback bool `yaml:"fallback" json:"fallback"`
	// RotateFlights advances the flights page on every tick, not only on touch.
	RotateFlights bool `yaml:"rotate_flights" json:"rotate_flights"`
	// RandomFlights shows the randomly generated board instead of the fixed
	// flight cards.
	RandomFlights bool `yaml:"random_flights" json:"random_flights"`
}

// TouchConfig controls the GT1151 touch controller.
type TouchConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	I2CBus  string `yaml:"i2c_bus" json:"i2c_bus"`
	Addr    uint16 `yaml:"addr" json:"addr"`
	// IntPin is the interrupt GPIO; "-" polls without the interrupt.
	IntPin string        `yaml:"int_pin" json:"int_pin"`
	Poll   time.Duration `yaml:"poll" json:"poll"`
}

// BatteryConfig controls the optional UPS battery reader.
type BatteryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	I2CBus  string `yaml:"i2c_bus" json:"i2c_bus"`
	Addr    uint16 `yaml:"addr" json:"addr"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API. Empty disables HTTP.
	Listen string `yaml:"listen" json:"listen"`

	// RefreshCron is a robfig/cron schedule ("@every 5s", "*/1 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Page selects what the panel shows: "stats" or "flights".
	Page string `yaml:"page" json:"page"`

	// ProcRoot is where /proc is mounted. Useful in containers.
	ProcRoot string `yaml:"proc_root" json:"proc_root"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// DumpDir, if set, receives frame.bin and preview.png on every update.
	DumpDir string `yaml:"dump_dir" json:"dump_dir"`

	Display DisplayConfig `yaml:"display" json:"display"`
	Touch   TouchConfig   `yaml:"touch" json:"touch"`
	Battery BatteryConfig `yaml:"battery" json:"battery"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		RefreshCron: defaultRefresh,
		Page:        PageStats,
		ProcRoot:    "/proc",
		LogLevel:    "info",
		Display: DisplayConfig{
			FullEvery: defaultFullEvery,
			Fallback:  true,
		},
		Touch: TouchConfig{
			Enabled: true,
			I2CBus:  "1",
			Addr:    0x14,
			IntPin:  "GPIO27",
			Poll:    defaultTouchPoll,
		},
		Battery: BatteryConfig{
			Enabled: false,
			Addr:    0x57,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
//
// Listen is left alone: an empty value deliberately disables HTTP.
func (c *Config) Normalize() {
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}

	c.Page = strings.ToLower(strings.TrimSpace(c.Page))
	switch c.Page {
	case PageStats, PageFlights:
	default:
		c.Page = PageStats
	}

	if c.ProcRoot == "" {
		c.ProcRoot = "/proc"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Display.FullEvery < 0 {
		c.Display.FullEvery = 0
	}
	if c.Touch.Addr == 0 {
		c.Touch.Addr = 0x14
	}
	if c.Touch.Poll <= 0 {
		c.Touch.Poll = defaultTouchPoll
	}
	if c.Battery.Addr == 0 {
		c.Battery.Addr = 0x57
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	// Start from defaults so keys missing in the file keep their default,
	// including booleans that default to true.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".epdstats-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
