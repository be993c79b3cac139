package jtag

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// ftdiClock is the MPSSE master clock on FT2232H/FT4232H/FT232H once the 5x
// prescaler is disabled.
const ftdiClock = 60 * physic.MegaHertz

// ClockResult is the outcome of translating a requested frequency into an
// MPSSE clock divisor.
type ClockResult struct {
	Divisor uint32          // value to program, 1..65536
	Actual  physic.Frequency // rate the divisor actually yields
	Warning string          // non-empty when actual deviates notably from requested
}

// Divisor computes d = clamp(ceil((CLK/2 + F-1) / F), 1, 65536) and the
// actual rate CLK/(2*d), warning when actual differs from the request by
// more than 0.1% or falls below 500kHz.
func Divisor(requested physic.Frequency) ClockResult {
	if requested <= 0 {
		requested = physic.Hertz
	}
	half := ftdiClock / 2
	d := (half + requested - 1) / requested
	if d < 1 {
		d = 1
	}
	if d > 65536 {
		d = 65536
	}
	divisor := uint32(d)
	actual := ftdiClock / (2 * physic.Frequency(divisor))

	var warn string
	ratio := float64(requested) / float64(actual)
	if ratio < 0.999 || ratio > 1.001 {
		warn = fmt.Sprintf("%s clock requested, %s actual", requested, actual)
	}
	if actual < 500*physic.KiloHertz {
		if warn != "" {
			warn += "; "
		}
		warn += fmt.Sprintf("%s clock is a slow choice", actual)
	}
	return ClockResult{Divisor: divisor, Actual: actual, Warning: warn}
}
