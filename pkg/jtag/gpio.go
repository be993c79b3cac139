package jtag

import (
	"fmt"
	"strconv"
	"strings"

	"periph.io/x/conn/v3/gpio"
)

// GPIOStep is one DBus general-purpose pin-state change applied during
// adapter startup, per -g. Each token of -g's colon-separated list is a
// single hex byte: its high nibble sets the direction of DBus bits 4-7, its
// low nibble sets their value; bits 0-3 (TCK/TDI/TDO/TMS) are left under
// JTAG control (TCK/TDI/TMS forced to outputs with TMS high, TDO left an
// input), exactly as
// ftdiGPIO in original_source/ftdiJTAG.c packs them.
type GPIOStep struct {
	Direction byte // full SET_LOW_BYTE direction byte, JTAG pins already forced
	Value     byte // full SET_LOW_BYTE value byte, TMS already forced high
}

// Level reports whether pin bit is driven high in this step, using
// periph.io's gpio.Level so GPIO init reads the way the rest of the FTDI
// tooling in the pack represents pin state.
func (s GPIOStep) Level(bit byte) gpio.Level {
	return s.Value&bit != 0
}

// ParseGPIOInit parses -g's colon-separated list of hex bytes, e.g. "a5:0f"
// applies two steps 100ms apart.
func ParseGPIOInit(s string) ([]GPIOStep, error) {
	if s == "" {
		return nil, nil
	}
	var steps []GPIOStep
	for _, tok := range strings.Split(s, ":") {
		raw, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("jtag: malformed -g step %q: %w", tok, err)
		}
		b := byte(raw)
		direction := b >> 4
		value := b & 0xF
		steps = append(steps, GPIOStep{
			Direction: direction<<4 | (pinTMS | pinTDI | pinTCK),
			Value:     value<<4 | pinTMS,
		})
	}
	return steps, nil
}

// applyGPIOStep writes one SET_LOW_BYTE command to drive the DBus pins to
// step's direction/value.
func (a *FTDIAdapter) applyGPIOStep(step GPIOStep) error {
	buf := encodeSetLowByte(nil, step.Value, step.Direction)
	_, err := a.usb.Write(buf)
	if err != nil {
		return fmt.Errorf("jtag: apply GPIO step dir=%#02x val=%#02x: %w", step.Direction, step.Value, err)
	}
	return nil
}
