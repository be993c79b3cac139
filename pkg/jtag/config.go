package jtag

import (
	"fmt"
	"strconv"
	"strings"

	"periph.io/x/conn/v3/physic"
)

// Config aggregates every CLI-derived parameter into a single explicit
// value, built once by cmd/xvcd and passed down to the server/adapter
// constructors — no package-level state.
type Config struct {
	BindAddr string
	Port     int

	Match DeviceMatch

	GPIOInit    string
	LockedSpeed physic.Frequency // 0 means unset: honor client settck:

	Quiet     bool
	Loopback  bool
	Runt      bool
	Stats     bool
	TraceUSB  bool
	TraceXVC  bool
	SecondIntf bool
}

// DefaultConfig mirrors the original's defaults: loopback bind, port 2542,
// default vendor/product search, interface 1.
func DefaultConfig() Config {
	return Config{
		BindAddr: "127.0.0.1",
		Port:     2542,
	}
}

// ParseDeviceFilter parses -d's "vendor:product[:serial]" hex triple.
func ParseDeviceFilter(s string) (DeviceMatch, error) {
	var m DeviceMatch
	if s == "" {
		return m, nil
	}
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return m, fmt.Errorf("jtag: malformed -d %q, want vendor:product[:serial]", s)
	}
	vendor, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return m, fmt.Errorf("jtag: malformed -d vendor %q: %w", parts[0], err)
	}
	product, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return m, fmt.Errorf("jtag: malformed -d product %q: %w", parts[1], err)
	}
	m.Vendor = uint16(vendor)
	m.Product = uint16(product)
	if len(parts) == 3 {
		m.Serial = parts[2]
	}
	return m, nil
}

// ParseLockedFrequency parses -c's "<number>[k|M]" suffix form into a
// physic.Frequency.
func ParseLockedFrequency(s string) (physic.Frequency, error) {
	if s == "" {
		return 0, nil
	}
	mult := physic.Hertz
	switch {
	case strings.HasSuffix(s, "M"):
		mult = physic.MegaHertz
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "k"):
		mult = physic.KiloHertz
		s = strings.TrimSuffix(s, "k")
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("jtag: malformed -c frequency %q: %w", s, err)
	}
	return physic.Frequency(n * float64(mult)), nil
}

// InterfaceNumber returns the bInterfaceNumber implied by -B: channel A (1)
// normally, channel B (2) when a multi-interface FTDI chip's second MPSSE
// interface was requested.
func (c Config) InterfaceNumber() int {
	if c.SecondIntf {
		return 2
	}
	return 1
}
