package jtag

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// AdapterInfo describes capabilities reported by a JTAG adapter implementation.
type AdapterInfo struct {
	Name         string
	Vendor       string
	Model        string
	SerialNumber string
	Firmware     string
	MinFrequency physic.Frequency
	MaxFrequency physic.Frequency
	SupportsSRST bool
	SupportsTRST bool
	Notes        string
}

// Adapter abstracts a physical or virtual JTAG link. Unlike an IR/DR-aware
// debugger transport, XVC has no notion of instruction vs. data register
// shifts — the client drives raw TMS/TDI vectors through whatever state the
// TAP is already in — so there is a single undifferentiated Shift.
type Adapter interface {
	Info() (AdapterInfo, error)
	Shift(tms, tdi []byte, bits int) (tdo []byte, err error)
	SetSpeed(hz physic.Frequency) (physic.Frequency, error)
	Close() error
}

// ErrNotImplemented lets backends signal that a requested capability is not yet
// available without relying on fmt.Errorf each time.
var ErrNotImplemented = errors.New("jtag: not implemented")

// ValidateShiftBuffers ensures TMS/TDI are present and long enough for bits
// and returns the number of bytes required to accommodate the bit length.
func ValidateShiftBuffers(tms, tdi []byte, bits int) (int, error) {
	if bits <= 0 {
		return 0, fmt.Errorf("jtag: bits must be positive, got %d", bits)
	}
	required := (bits + 7) / 8
	if len(tms) < required {
		return 0, fmt.Errorf("jtag: tms buffer too short, need %d bytes, got %d", required, len(tms))
	}
	if len(tdi) < required {
		return 0, fmt.Errorf("jtag: tdi buffer too short, need %d bytes, got %d", required, len(tdi))
	}
	return required, nil
}
