package jtag

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// ShiftHook lets a simulator emulate device-specific TDO behavior.
type ShiftHook func(tms, tdi []byte, bits int) ([]byte, error)

// ShiftOp captures the last shift invocation for inspection within tests.
type ShiftOp struct {
	TMS  []byte
	TDI  []byte
	Bits int
}

// SimAdapter is an in-memory Adapter useful for unit tests: it records the
// last shift request and, absent an OnShift hook, echoes TDI straight to TDO
// with no delay (unlike ChipSimulator, which models the one-bit pipeline
// delay of FTDI's internal loopback).
type SimAdapter struct {
	InfoData AdapterInfo
	SpeedHz  physic.Frequency

	OnShift ShiftHook

	lastShift ShiftOp
	closed    bool
}

// NewSimAdapter constructs a simulator configured with the provided AdapterInfo.
func NewSimAdapter(info AdapterInfo) *SimAdapter {
	return &SimAdapter{InfoData: info}
}

// LastShift returns a copy of the most recent shift request.
func (s *SimAdapter) LastShift() ShiftOp {
	return ShiftOp{
		TMS:  append([]byte(nil), s.lastShift.TMS...),
		TDI:  append([]byte(nil), s.lastShift.TDI...),
		Bits: s.lastShift.Bits,
	}
}

func (s *SimAdapter) Info() (AdapterInfo, error) {
	return s.InfoData, nil
}

func (s *SimAdapter) Shift(tms, tdi []byte, bits int) ([]byte, error) {
	if _, err := ValidateShiftBuffers(tms, tdi, bits); err != nil {
		return nil, err
	}

	s.lastShift = ShiftOp{
		TMS:  append([]byte(nil), tms...),
		TDI:  append([]byte(nil), tdi...),
		Bits: bits,
	}

	if s.OnShift != nil {
		return s.OnShift(tms, tdi, bits)
	}

	required := (bits + 7) / 8
	tdo := make([]byte, required)
	copy(tdo, tdi)
	return tdo, nil
}

func (s *SimAdapter) SetSpeed(hz physic.Frequency) (physic.Frequency, error) {
	if hz <= 0 {
		return 0, fmt.Errorf("jtag: invalid speed %s", hz)
	}
	s.SpeedHz = hz
	return hz, nil
}

func (s *SimAdapter) Close() error {
	s.closed = true
	return nil
}
