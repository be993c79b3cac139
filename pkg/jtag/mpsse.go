package jtag

// MPSSE is Multi-Protocol Synchronous Serial Engine, the command-driven mode
// of FTDI USB bridge chips that lets the host emit bit/byte shift primitives.
//
// MPSSE basics:
// http://www.ftdichip.com/Support/Documents/AppNotes/AN_135_MPSSE_Basics.pdf

import "fmt"

// MPSSE opcodes used by this gateway. Bit-order on the wire is LSB-first.
const (
	opTDIBytes        byte = 0x39 // write+read, LSB first, write on falling edge
	opTDIBits         byte = 0x3B // same, bit-mode (length-1 in [0,7])
	opTMSBits         byte = 0x6B // TMS shift with TDI held static, bit-mode, read
	opSetLowByte     byte = 0x80
	opSetHighByte    byte = 0x82
	opEnableLoopback byte = 0x84
	opDisableLoopback byte = 0x85
	opSetTCKDivisor  byte = 0x86
	opDisable3Phase  byte = 0x8D
	opDisablePrescaler byte = 0x8A
)

// TDIBytesToken is TDI_BYTES(k, data): clocks 8*len(data) TDI bits and
// captures 8*len(data) TDO bits. 1 <= len(data) <= 65536.
type TDIBytesToken struct {
	Data []byte
}

// Encode appends the wire bytes for this token to dst and returns the result.
func (t TDIBytesToken) Encode(dst []byte) ([]byte, error) {
	k := len(t.Data)
	if k < 1 || k > 65536 {
		panic(fmt.Sprintf("jtag: TDI_BYTES length %d out of range [1,65536]", k))
	}
	n := k - 1
	dst = append(dst, opTDIBytes, byte(n), byte(n>>8))
	return append(dst, t.Data...), nil
}

// ResponseBytes is the number of bulk-in bytes this token produces.
func (t TDIBytesToken) ResponseBytes() int { return len(t.Data) }

// TDIBitsToken is TDI_BITS(n, payload): clocks n (1..8) TDI bits from bits
// 0..n-1 of payload, captures n TDO bits right-justified in one response
// byte.
type TDIBitsToken struct {
	N       int
	Payload byte
}

func (t TDIBitsToken) Encode(dst []byte) []byte {
	if t.N < 1 || t.N > 8 {
		panic(fmt.Sprintf("jtag: TDI_BITS length %d out of range [1,8]", t.N))
	}
	return append(dst, opTDIBits, byte(t.N-1), t.Payload)
}

// TMSShiftToken is TMS_SHIFT(n, payload): bits 0..n-1 of payload carry TMS
// (LSB first, n in [1,7]); bit 7 carries the TDI level held static for the
// whole segment. Captures n TDO bits right-justified in one response byte.
type TMSShiftToken struct {
	N       int
	Payload byte
}

func (t TMSShiftToken) Encode(dst []byte) []byte {
	if t.N < 1 || t.N > 7 {
		panic(fmt.Sprintf("jtag: TMS_SHIFT length %d out of range [1,7]", t.N))
	}
	return append(dst, opTMSBits, byte(t.N-1), t.Payload)
}

// encodeSetDivisor appends DISABLE_PRESCALER, SET_TCK_DIVISOR(d-1).
func encodeSetDivisor(dst []byte, divisor uint32) []byte {
	if divisor < 1 || divisor > 65536 {
		panic(fmt.Sprintf("jtag: clock divisor %d out of range [1,65536]", divisor))
	}
	n := divisor - 1
	return append(dst, opDisablePrescaler, opSetTCKDivisor, byte(n), byte(n>>8))
}

// encodeSetLowByte appends SET_LOW_BYTE(value, dir).
func encodeSetLowByte(dst []byte, value, dir byte) []byte {
	return append(dst, opSetLowByte, value, dir)
}

// startupSequence is the MPSSE byte sequence issued once right after the
// device enters MPSSE bit-mode: loopback/3-phase clocking disabled, then the
// DBus pins initialized to the JTAG idle state (TMS high, TDI/TCK/TMS
// outputs).
func startupSequence() []byte {
	buf := []byte{opDisableLoopback, opDisable3Phase}
	buf = encodeSetLowByte(buf, pinTMS, pinTMS|pinTDI|pinTCK)
	return buf
}

// FTDI DBus pin bit positions, shared by the startup sequence and -g GPIO
// init parsing.
const (
	pinTCK byte = 0x1
	pinTDI byte = 0x2
	pinTDO byte = 0x4
	pinTMS byte = 0x8
)
