package jtag

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// InterfaceKind categorizes adapter families.
type InterfaceKind string

const (
	InterfaceKindFTDI InterfaceKind = "ftdi-mpsse"
	InterfaceKindSim  InterfaceKind = "simulator"
)

// InterfaceInfo describes a detected adapter interface/transport.
type InterfaceInfo struct {
	Kind        InterfaceKind
	Description string
	VendorID    uint16
	ProductID   uint16
	Serial      string
	Path        string
}

// Label returns a user-friendly description for the interface.
func (i InterfaceInfo) Label() string {
	if i.Description != "" {
		return i.Description
	}
	if i.Kind != "" {
		return fmt.Sprintf("%s (%04X:%04X)", string(i.Kind), i.VendorID, i.ProductID)
	}
	return fmt.Sprintf("Interface %04X:%04X", i.VendorID, i.ProductID)
}

// DiscoverInterfaces enumerates connected FTDI MPSSE-capable USB devices. It
// always returns at least the simulator entry so a gateway can be exercised
// without hardware attached.
func DiscoverInterfaces(ctx context.Context) ([]InterfaceInfo, error) {
	var results []InterfaceInfo
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if info, ok := classifyUSBDevice(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}

	results = append(results, InterfaceInfo{
		Kind:        InterfaceKindSim,
		Description: "Simulator (no hardware)",
	})

	return results, nil
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (InterfaceInfo, bool) {
	if uint16(desc.Vendor) != VendorIDFTDI {
		return InterfaceInfo{}, false
	}
	for _, p := range DefaultProducts {
		if uint16(desc.Product) == p {
			return InterfaceInfo{
				Kind:        InterfaceKindFTDI,
				Description: ftdiProductName(p),
				VendorID:    uint16(desc.Vendor),
				ProductID:   p,
			}, true
		}
	}
	return InterfaceInfo{}, false
}

func ftdiProductName(product uint16) string {
	switch product {
	case ProductFT2232:
		return "FT2232H"
	case ProductFT4232:
		return "FT4232H"
	case ProductFT232H:
		return "FT232H"
	default:
		return fmt.Sprintf("FTDI 0x%04X", product)
	}
}
