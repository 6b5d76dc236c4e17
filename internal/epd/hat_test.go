package epd

import (
	"bytes"
	"reflect"
	"sync"
	"testing"
	"time"
	"unsafe"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/waveshare2in13v4"

	"epdstats/internal/fb"
)

const (
	cmdSoftReset = 0x12
	cmdDeepSleep = 0x10
	cmdWriteBW   = 0x24
)

type spiWrite struct {
	cmd  bool
	data []byte
}

// spiRecorder is an SPI port and connection that records every write,
// tagged with the D/C line level at the time of the transfer.
type spiRecorder struct {
	dc *gpiotest.Pin

	mu     sync.Mutex
	writes []spiWrite
	closed bool
}

func (r *spiRecorder) String() string                                            { return "spi-recorder" }
func (r *spiRecorder) Connect(physic.Frequency, spi.Mode, int) (spi.Conn, error) { return r, nil }
func (r *spiRecorder) LimitSpeed(physic.Frequency) error                         { return nil }
func (r *spiRecorder) Duplex() conn.Duplex                                       { return conn.Half }

func (r *spiRecorder) Tx(w, _ []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, spiWrite{
		cmd:  r.dc.Read() == gpio.Low,
		data: bytes.Clone(w),
	})
	return nil
}

func (r *spiRecorder) TxPackets(p []spi.Packet) error {
	for _, pk := range p {
		if err := r.Tx(pk.W, pk.R); err != nil {
			return err
		}
	}
	return nil
}

func (r *spiRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *spiRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}

// commands returns the command bytes sent since write index from.
func (r *spiRecorder) commands(from int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []byte
	for _, w := range r.writes[from:] {
		if w.cmd {
			out = append(out, w.data...)
		}
	}
	return out
}

// idleBusy is a BUSY line that always reports the controller as ready.
type idleBusy struct{ *gpiotest.Pin }

func (idleBusy) In(gpio.Pull, gpio.Edge) error  { return nil }
func (idleBusy) Read() gpio.Level               { return gpio.Low }
func (idleBusy) WaitForEdge(time.Duration) bool { return true }

func newTestHat(t *testing.T) (*HatPanel, *spiRecorder) {
	t.Helper()

	dc := &gpiotest.Pin{N: "DC"}
	rec := &spiRecorder{dc: dc}
	opts := waveshare2in13v4.EPD2in13v4
	dev, err := waveshare2in13v4.New(rec, dc,
		&gpiotest.Pin{N: "CS"},
		&gpiotest.Pin{N: "RST"},
		idleBusy{&gpiotest.Pin{N: "BUSY"}},
		&opts)
	if err != nil {
		t.Fatalf("waveshare2in13v4.New: %v", err)
	}
	return &HatPanel{port: rec, dev: dev}, rec
}

func driverMode(t *testing.T, dev *waveshare2in13v4.Dev) waveshare2in13v4.PartialUpdate {
	t.Helper()
	v := reflect.ValueOf(dev).Elem().FieldByName("mode")
	if !v.IsValid() {
		t.Fatalf("driver has no mode field")
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem().Interface().(waveshare2in13v4.PartialUpdate)
}

func testFrame() *fb.Framebuffer {
	frame := fb.New(Width, Height)
	frame.DrawBar(2, 50, 100, 8, 60)
	return frame
}

func TestHatFullReinitsAndDraws(t *testing.T) {
	t.Parallel()

	h, rec := newTestHat(t)
	if err := h.Full(testFrame()); err != nil {
		t.Fatalf("Full: %v", err)
	}

	cmds := rec.commands(0)
	if !bytes.Contains(cmds, []byte{cmdSoftReset}) {
		t.Fatalf("full refresh did not run the init sequence: % x", cmds)
	}
	if !bytes.Contains(cmds, []byte{cmdWriteBW}) {
		t.Fatalf("full refresh did not write frame RAM: % x", cmds)
	}
	if got := driverMode(t, h.dev); got != waveshare2in13v4.Full {
		t.Fatalf("driver mode = %v, want Full", got)
	}
}

func TestHatPartialWakesAfterSleep(t *testing.T) {
	t.Parallel()

	h, rec := newTestHat(t)
	if err := h.Full(testFrame()); err != nil {
		t.Fatal(err)
	}
	if err := h.Sleep(); err != nil {
		t.Fatalf("Sleep: %v", err)
	}

	from := rec.count()
	if err := h.Partial(testFrame()); err != nil {
		t.Fatalf("Partial: %v", err)
	}
	cmds := rec.commands(from)
	if !bytes.Contains(cmds, []byte{cmdSoftReset}) {
		t.Fatalf("partial after sleep did not re-init the controller: % x", cmds)
	}
	if got := driverMode(t, h.dev); got != waveshare2in13v4.Partial {
		t.Fatalf("driver mode = %v, want Partial", got)
	}
}

func TestSetDriverMode(t *testing.T) {
	t.Parallel()

	h, _ := newTestHat(t)
	for _, mode := range []waveshare2in13v4.PartialUpdate{waveshare2in13v4.Partial, waveshare2in13v4.Full} {
		if err := setDriverMode(h.dev, mode); err != nil {
			t.Fatalf("setDriverMode(%v): %v", mode, err)
		}
		if got := driverMode(t, h.dev); got != mode {
			t.Fatalf("driver mode = %v, want %v", got, mode)
		}
	}
}

// Sleep followed by Close is the shutdown order; the frame must stay on the
// glass and nothing may reach the controller once it is in deep sleep.
func TestHatCloseAfterSleepSendsNothing(t *testing.T) {
	t.Parallel()

	h, rec := newTestHat(t)
	if err := h.Partial(testFrame()); err != nil {
		t.Fatal(err)
	}
	if err := h.Sleep(); err != nil {
		t.Fatal(err)
	}
	cmds := rec.commands(0)
	if len(cmds) == 0 || cmds[len(cmds)-1] != cmdDeepSleep {
		t.Fatalf("last command = % x, want deep sleep", cmds)
	}

	sent := rec.count()
	if err := h.Sleep(); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := rec.count() - sent; n != 0 {
		t.Fatalf("%d writes after deep sleep: % x", n, rec.commands(sent))
	}
	if !rec.closed {
		t.Fatalf("SPI port not closed")
	}
}
