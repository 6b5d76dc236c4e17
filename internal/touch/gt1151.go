package touch

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// DefaultAddr is the GT1151's 7-bit I2C address on the HAT.
const DefaultAddr = 0x14

const (
	regStatus = 0x814E
	regPoints = 0x814F

	statusReady = 0x80
	pointSize   = 8
	maxPoints   = 5
)

type txer interface {
	Tx(w, r []byte) error
}

// GT1151 is the touch controller. Registers are 16-bit, big-endian.
type GT1151 struct {
	bus i2c.BusCloser
	dev txer
}

// OpenGT1151 opens the controller on the named I2C bus ("1" on a Pi).
func OpenGT1151(bus string, addr uint16) (*GT1151, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("touch: periph host init failed: %w", err)
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("touch: failed to open i2c bus %q: %w", bus, err)
	}
	if addr == 0 {
		addr = DefaultAddr
	}
	return &GT1151{bus: b, dev: &i2c.Dev{Bus: b, Addr: addr}}, nil
}

func (g *GT1151) Close() error {
	if g.bus != nil {
		return g.bus.Close()
	}
	return nil
}

func (g *GT1151) read(reg uint16, n int) ([]byte, error) {
	w := []byte{byte(reg >> 8), byte(reg & 0xFF)}
	r := make([]byte, n)
	if err := g.dev.Tx(w, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (g *GT1151) write(reg uint16, b byte) error {
	return g.dev.Tx([]byte{byte(reg >> 8), byte(reg & 0xFF), b}, nil)
}

// Poll reads the first touch point if the controller has one ready.
// The status register is always acknowledged so the next report can land.
func (g *GT1151) Poll() (Point, bool, error) {
	status, err := g.read(regStatus, 1)
	if err != nil {
		return Point{}, false, fmt.Errorf("touch: status read failed: %w", err)
	}
	if status[0]&statusReady == 0 {
		return Point{}, false, nil
	}

	count := int(status[0] & 0x0F)
	if count < 1 || count > maxPoints {
		_ = g.write(regStatus, 0)
		return Point{}, false, nil
	}

	data, err := g.read(regPoints, count*pointSize)
	if err != nil {
		return Point{}, false, fmt.Errorf("touch: point read failed: %w", err)
	}
	_ = g.write(regStatus, 0)

	p := Point{
		X: int(data[1]) | int(data[2])<<8,
		Y: int(data[3]) | int(data[4])<<8,
	}
	if p.X > MaxX || p.Y > MaxY {
		return Point{}, false, nil
	}
	return p, true, nil
}
