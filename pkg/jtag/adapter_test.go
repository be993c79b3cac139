package jtag

import (
	"bytes"
	"testing"

	"periph.io/x/conn/v3/physic"
)

func TestValidateShiftBuffers(t *testing.T) {
	if _, err := ValidateShiftBuffers(nil, nil, 0); err == nil {
		t.Fatalf("expected error for zero bits")
	}

	if _, err := ValidateShiftBuffers([]byte{0x00}, []byte{0x00, 0x00}, 16); err == nil {
		t.Fatalf("expected error when TMS buffer too small")
	}

	if _, err := ValidateShiftBuffers([]byte{0x00}, []byte{0x01}, 8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSimAdapterEchoShift(t *testing.T) {
	sim := NewSimAdapter(AdapterInfo{Name: "sim"})
	tdo, err := sim.Shift([]byte{0xAA}, []byte{0xCC}, 8)
	if err != nil {
		t.Fatalf("Shift returned error: %v", err)
	}
	if !bytes.Equal(tdo, []byte{0xCC}) {
		t.Fatalf("tdo = %X, want CC", tdo)
	}

	last := sim.LastShift()
	if last.Bits != 8 {
		t.Fatalf("unexpected last shift metadata: %+v", last)
	}
}

func TestSimAdapterHook(t *testing.T) {
	sim := NewSimAdapter(AdapterInfo{Name: "sim"})
	sim.OnShift = func(_, _ []byte, bits int) ([]byte, error) {
		if bits != 4 {
			t.Fatalf("unexpected hook args: bits=%d", bits)
		}
		return []byte{0x0F}, nil
	}

	tdo, err := sim.Shift([]byte{0x00}, []byte{0x00}, 4)
	if err != nil {
		t.Fatalf("Shift returned error: %v", err)
	}
	if !bytes.Equal(tdo, []byte{0x0F}) {
		t.Fatalf("tdo = %X, want 0F", tdo)
	}
}

func TestSimAdapterSpeed(t *testing.T) {
	sim := NewSimAdapter(AdapterInfo{})
	if _, err := sim.SetSpeed(1 * physic.MegaHertz); err != nil {
		t.Fatalf("SetSpeed returned error: %v", err)
	}
	if _, err := sim.SetSpeed(0); err == nil {
		t.Fatalf("expected error for zero speed")
	}
}
