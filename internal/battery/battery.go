// Package battery reads an optional UPS HAT (PiSugar-style) so the dashboard
// can show the battery level next to CPU and memory.
package battery

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	appLog "epdstats/internal/log"
)

// DefaultAddr is the PiSugar battery controller's I2C address.
const DefaultAddr = 0x57

// Register map:
//   - 0x22 (high), 0x23 (low): battery voltage in millivolts
//   - 0x2A: battery percentage (0-100)
const (
	regVoltageHigh = 0x22
	regVoltageLow  = 0x23
	regPercent     = 0x2A
)

// Status is the current battery reading.
type Status struct {
	// Percent is the battery level in 0-100%.
	Percent int `json:"percent"`
	// VoltageMv is the battery voltage in millivolts, 0 if unknown.
	VoltageMv int `json:"voltage_mv"`
}

// Reader abstracts how battery information is obtained.
type Reader interface {
	Read(ctx context.Context) (Status, error)
}

type mockReader struct {
	rnd *rand.Rand
}

// NewMockReader returns a Reader producing pseudo-random levels, for
// development machines without the HAT. seed 0 seeds from the clock.
func NewMockReader(seed int64) Reader {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &mockReader{rnd: rand.New(rand.NewSource(seed))}
}

func (m *mockReader) Read(_ context.Context) (Status, error) {
	return Status{Percent: 20 + m.rnd.Intn(81)}, nil // 20..100
}

type i2cReader struct {
	busName string
	addr    uint16
}

// NewI2CReader returns an I2C-backed Reader. The bus is opened per Read so
// a missing HAT at start-up does not pin a file descriptor.
func NewI2CReader(busName string, addr uint16) Reader {
	if addr == 0 {
		addr = DefaultAddr
	}
	return &i2cReader{busName: busName, addr: addr}
}

func (r *i2cReader) Read(_ context.Context) (Status, error) {
	if runtime.GOOS != "linux" {
		return Status{}, errors.New("battery: i2c reader unavailable on this platform")
	}
	if _, err := host.Init(); err != nil {
		return Status{}, fmt.Errorf("battery: periph host init failed: %w", err)
	}

	bus, err := i2creg.Open(r.busName)
	if err != nil {
		return Status{}, fmt.Errorf("battery: failed to open i2c bus %q: %w", r.busName, err)
	}
	defer bus.Close()

	return readStatus(&i2c.Dev{Bus: bus, Addr: r.addr})
}

type txer interface {
	Tx(w, r []byte) error
}

func readStatus(dev txer) (Status, error) {
	readReg := func(reg byte) (byte, error) {
		buf := []byte{0}
		if err := dev.Tx([]byte{reg}, buf); err != nil {
			return 0, fmt.Errorf("battery: register 0x%02x read failed: %w", reg, err)
		}
		return buf[0], nil
	}

	high, err := readReg(regVoltageHigh)
	if err != nil {
		return Status{}, err
	}
	low, err := readReg(regVoltageLow)
	if err != nil {
		return Status{}, err
	}
	pct, err := readReg(regPercent)
	if err != nil {
		return Status{}, err
	}
	if pct > 100 {
		pct = 100
	}

	return Status{
		Percent:   int(pct),
		VoltageMv: int(uint16(high)<<8 | uint16(low)),
	}, nil
}

// Options configures Open.
type Options struct {
	Enabled bool
	Bus     string
	Addr    uint16
}

// Open returns the Reader the program should use, or nil when the battery
// line is disabled.
//
// Priority:
//  1. linux: try the I2C controller with one test read
//  2. otherwise, or on failure, the mock reader
func Open(opts Options) Reader {
	if !opts.Enabled {
		return nil
	}
	if runtime.GOOS != "linux" {
		appLog.Info("battery: not on linux; using mock reader")
		return NewMockReader(0)
	}

	r := NewI2CReader(opts.Bus, opts.Addr)
	if _, err := r.Read(context.Background()); err != nil {
		appLog.Warn("battery: i2c controller unavailable; using mock reader", "err", err)
		return NewMockReader(0)
	}
	return r
}
