package battery

import (
	"context"
	"errors"
	"testing"
)

type fakeRegs map[byte]byte

func (f fakeRegs) Tx(w, r []byte) error {
	v, ok := f[w[0]]
	if !ok {
		return errors.New("nack")
	}
	r[0] = v
	return nil
}

func TestReadStatus(t *testing.T) {
	t.Parallel()

	st, err := readStatus(fakeRegs{regVoltageHigh: 0x0F, regVoltageLow: 0xA0, regPercent: 87})
	if err != nil {
		t.Fatalf("readStatus: %v", err)
	}
	if st.Percent != 87 || st.VoltageMv != 4000 {
		t.Fatalf("status = %+v, want 87%% / 4000mV", st)
	}

	st, err = readStatus(fakeRegs{regVoltageHigh: 0, regVoltageLow: 0, regPercent: 200})
	if err != nil {
		t.Fatal(err)
	}
	if st.Percent != 100 {
		t.Fatalf("percent should be capped at 100, got %d", st.Percent)
	}

	if _, err := readStatus(fakeRegs{}); err == nil {
		t.Fatalf("expected error on nack")
	}
}

func TestMockReaderRange(t *testing.T) {
	t.Parallel()

	r := NewMockReader(42)
	for i := 0; i < 200; i++ {
		st, err := r.Read(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if st.Percent < 20 || st.Percent > 100 {
			t.Fatalf("mock percent %d out of range", st.Percent)
		}
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	if r := Open(Options{}); r != nil {
		t.Fatalf("disabled battery should give nil reader, got %T", r)
	}
}
