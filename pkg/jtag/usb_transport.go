package jtag

import (
	"fmt"
	"time"

	"github.com/google/gousb"
)

// FTDI vendor/product identifiers, following findDevice's acceptance table.
const (
	VendorIDFTDI = 0x0403

	ProductFT2232  = 0x6010
	ProductFT232R  = 0x6001 // not MPSSE-capable, so not in DefaultProducts; an explicit -d product is matched as given
	ProductFT4232  = 0x6011
	ProductFT232H  = 0x6014
)

// DefaultProducts is searched when -d does not name a product explicitly.
var DefaultProducts = []uint16{ProductFT2232, ProductFT4232, ProductFT232H}

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 5 * time.Second
	ctrlTimeout  = 1 * time.Second
)

// ftdi SIO bRequest values, issued as vendor/device control transfers.
const (
	reqReset       = 0x00
	reqSetBitmode  = 0x0B
	reqSetLatency  = 0x09
	reqSetFlowCtrl = 0x02
)

const (
	bitmodeReset = 0x0000
	bitmodeMPSSE = 0x0200
)

// USBTransport is the bulk USB link to one FTDI MPSSE interface: every write
// goes to the bulk-out endpoint as-is, every read comes back prefixed with a
// 2-byte FTDI modem-status word that's stripped here before the caller sees
// it.
type USBTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	outMaxPacket int
	inMaxPacket  int

	interfaceNumber int
}

// DeviceMatch narrows OpenUSBTransport's device search.
type DeviceMatch struct {
	Vendor          uint16
	Product         uint16 // 0 means "any of DefaultProducts"
	Serial          string // empty means "don't care"
	InterfaceNumber int    // bInterfaceNumber to claim; 0 defaults to 1
}

// OpenUSBTransport finds the first FTDI device matching m, claims its MPSSE
// interface, and discovers the bulk endpoints, following findDevice /
// getEndpoints.
func OpenUSBTransport(m DeviceMatch) (*USBTransport, error) {
	if m.Vendor == 0 {
		m.Vendor = VendorIDFTDI
	}
	if m.InterfaceNumber == 0 {
		m.InterfaceNumber = 1
	}

	ctx := gousb.NewContext()

	var matched *gousb.Device
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if uint16(desc.Vendor) != m.Vendor {
			return false
		}
		if m.Product != 0 {
			return uint16(desc.Product) == m.Product
		}
		for _, p := range DefaultProducts {
			if uint16(desc.Product) == p {
				return true
			}
		}
		return false
	})
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("jtag: enumerate USB devices: %w", err)
	}
	for _, d := range devs {
		if matched == nil && (m.Serial == "" || serialMatches(d, m.Serial)) {
			matched = d
			continue
		}
		d.Close()
	}
	if matched == nil {
		ctx.Close()
		return nil, fmt.Errorf("jtag: no matching FTDI device found (vendor 0x%04x product 0x%04x)", m.Vendor, m.Product)
	}

	if err := matched.SetAutoDetach(true); err != nil {
		// Not fatal; kernel driver may simply be absent on this platform.
		_ = err
	}

	t := &USBTransport{ctx: ctx, dev: matched, interfaceNumber: m.InterfaceNumber}
	if err := t.claim(); err != nil {
		matched.Close()
		ctx.Close()
		return nil, err
	}
	if err := t.ftdiInit(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func serialMatches(d *gousb.Device, want string) bool {
	got, err := d.SerialNumber()
	return err == nil && got == want
}

func (t *USBTransport) claim() error {
	cfg, err := t.dev.Config(1)
	if err != nil {
		return fmt.Errorf("jtag: select USB configuration: %w", err)
	}
	t.cfg = cfg

	intf, err := cfg.Interface(t.interfaceNumber, 0)
	if err != nil {
		cfg.Close()
		return fmt.Errorf("jtag: claim interface %d: %w", t.interfaceNumber, err)
	}
	t.intf = intf

	var outNum, inNum int
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionOut {
			outNum = ep.Number
			t.outMaxPacket = ep.MaxPacketSize
		} else {
			inNum = ep.Number
			t.inMaxPacket = ep.MaxPacketSize
		}
	}
	if outNum == 0 || inNum == 0 {
		intf.Close()
		cfg.Close()
		return fmt.Errorf("jtag: bulk endpoints not found on interface %d", t.interfaceNumber)
	}

	epOut, err := intf.OutEndpoint(outNum)
	if err != nil {
		intf.Close()
		cfg.Close()
		return fmt.Errorf("jtag: open OUT endpoint: %w", err)
	}
	epIn, err := intf.InEndpoint(inNum)
	if err != nil {
		intf.Close()
		cfg.Close()
		return fmt.Errorf("jtag: open IN endpoint: %w", err)
	}
	t.epOut, t.epIn = epOut, epIn
	return nil
}

// ftdiInit issues the reset/purge/bitmode/latency sequence that puts the
// chip into MPSSE mode, then the startup command bytes (loopback/3-phase
// clocking off, pins to JTAG idle).
func (t *USBTransport) ftdiInit() error {
	idx := uint16(t.interfaceNumber)
	if err := t.control(reqReset, 0, idx); err != nil {
		return fmt.Errorf("jtag: FTDI reset: %w", err)
	}
	if err := t.control(reqReset, 1, idx); err != nil { // purge RX
		return fmt.Errorf("jtag: FTDI purge RX: %w", err)
	}
	if err := t.control(reqReset, 2, idx); err != nil { // purge TX
		return fmt.Errorf("jtag: FTDI purge TX: %w", err)
	}
	if err := t.control(reqSetLatency, 2, idx); err != nil {
		return fmt.Errorf("jtag: FTDI set latency: %w", err)
	}
	if err := t.control(reqSetFlowCtrl, 0, idx|0x0100); err != nil {
		return fmt.Errorf("jtag: FTDI set flow control: %w", err)
	}
	if err := t.control(reqSetBitmode, bitmodeReset, idx); err != nil {
		return fmt.Errorf("jtag: FTDI reset bitmode: %w", err)
	}
	if err := t.control(reqSetBitmode, bitmodeMPSSE, idx); err != nil {
		return fmt.Errorf("jtag: FTDI set MPSSE bitmode: %w", err)
	}
	time.Sleep(50 * time.Millisecond)

	if _, err := t.Write(startupSequence()); err != nil {
		return fmt.Errorf("jtag: FTDI startup sequence: %w", err)
	}
	return nil
}

func (t *USBTransport) control(req uint8, value, index uint16) error {
	_, err := t.dev.Control(
		uint8(gousb.ControlOut)|uint8(gousb.ControlVendor)|uint8(gousb.ControlDevice),
		req, value, index, nil)
	return err
}

// Write sends an MPSSE command buffer unmodified on the bulk-out endpoint.
func (t *USBTransport) Write(cmd []byte) (int, error) {
	n, err := t.epOut.Write(cmd)
	if err != nil {
		return n, fmt.Errorf("jtag: USB bulk write: %w", err)
	}
	return n, nil
}

// ReadN reads exactly want bytes of MPSSE response data, stripping the
// 2-byte status prefix carried by every bulk-in packet and retrying on runt
// (status-only) packets. runtHook, if non-nil, is called once per runt
// packet observed (used by -R diagnostics).
func (t *USBTransport) ReadN(want int, runtHook func(status []byte)) ([]byte, error) {
	out := make([]byte, 0, want)
	pkt := make([]byte, t.inMaxPacket)
	for len(out) < want {
		n, err := t.epIn.Read(pkt)
		if err != nil {
			return out, fmt.Errorf("jtag: USB bulk read: %w", err)
		}
		if n <= 2 {
			if runtHook != nil {
				runtHook(pkt[:n])
			}
			continue
		}
		take := n - 2
		if len(out)+take > want {
			take = want - len(out)
		}
		out = append(out, pkt[2:2+take]...)
	}
	return out, nil
}

// OutMaxPacket and InMaxPacket report the bulk endpoint packet sizes the
// planner must respect.
func (t *USBTransport) OutMaxPacket() int { return t.outMaxPacket }
func (t *USBTransport) InMaxPacket() int  { return t.inMaxPacket }

// Close releases the USB interface, config, device and context, in that
// order, tolerating a partially-initialized transport.
func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
	}
	if t.cfg != nil {
		t.cfg.Close()
	}
	if t.dev != nil {
		t.dev.Close()
	}
	if t.ctx != nil {
		t.ctx.Close()
	}
	return nil
}
