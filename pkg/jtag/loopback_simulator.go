package jtag

// ChipSimulator is a golden oracle for the planner/codec/reassembler
// pipeline: it interprets the exact MPSSE byte stream PlanChunks produces —
// not the (tms, tdi) bit vectors directly — the same way a real FTDI chip in
// internal loopback mode would, so tests can check the pipeline end to end
// without trusting any one stage.
//
// In internal loopback, the chip echoes whatever it's driving on TDI back
// as TDO with a one-bit pipeline delay; TMS_SHIFT drives the TDI level held
// for that segment (the "payload bit 7" value) on every bit it clocks, and
// TDI_BYTES/TDI_BITS drive exactly the bits written. Every captured TDO bit,
// for all three, is the TDI bit driven one clock earlier.
type ChipSimulator struct {
	delayed bool // the one TDI bit currently sitting in the pipeline register
	primed  bool
}

// NewChipSimulator returns a simulator with its pipeline register at its
// post-reset state (TDI idle low).
func NewChipSimulator() *ChipSimulator {
	return &ChipSimulator{}
}

// Run executes cmd (a buffer produced by PlanChunks, possibly with a leading
// ENABLE_LOOPBACK byte already stripped by the caller) and returns the
// response bytes it would produce.
func (c *ChipSimulator) Run(cmd []byte) []byte {
	var resp []byte
	i := 0
	for i < len(cmd) {
		switch cmd[i] {
		case opTMSBits:
			n := int(cmd[i+1]) + 1
			payload := cmd[i+2]
			tdiLevel := payload&0x80 != 0
			captured := c.clock(n, func(int) bool { return tdiLevel })
			resp = append(resp, packRightJustified(captured))
			i += 3
		case opTDIBits:
			n := int(cmd[i+1]) + 1
			payload := cmd[i+2]
			captured := c.clock(n, func(i int) bool { return payload&(1<<uint(i)) != 0 })
			resp = append(resp, packRightJustified(captured))
			i += 3
		case opTDIBytes:
			k := int(cmd[i+2])<<8 | int(cmd[i+1])
			k++
			data := cmd[i+3 : i+3+k]
			for _, b := range data {
				captured := c.clock(8, func(i int) bool { return b&(1<<uint(i)) != 0 })
				resp = append(resp, packLSBFirst(captured))
			}
			i += 3 + k
		case opDisableLoopback, opEnableLoopback, opDisable3Phase, opDisablePrescaler:
			i++
		case opSetLowByte, opSetHighByte:
			i += 3
		case opSetTCKDivisor:
			i += 3
		default:
			i++
		}
	}
	return resp
}

// clock shifts n bits (levelAt returning the LSB-first-indexed TDI level for
// each) through the one-bit pipeline delay, returning what was captured.
func (c *ChipSimulator) clock(n int, levelAt func(int) bool) []bool {
	captured := make([]bool, n)
	for i := 0; i < n; i++ {
		out := c.delayed
		if !c.primed {
			out = false
			c.primed = true
		}
		captured[i] = out
		c.delayed = levelAt(i)
	}
	return captured
}

// packRightJustified matches MPSSE bit-mode's response convention: the
// first captured bit lands at bit 7, counting down to bit 8-n.
func packRightJustified(captured []bool) byte {
	var b byte
	for i, bit := range captured {
		if bit {
			b |= 1 << uint(7-i)
		}
	}
	return b
}

// packLSBFirst matches MPSSE byte-mode's response convention: bit i of the
// byte is the i-th captured bit.
func packLSBFirst(captured []bool) byte {
	var b byte
	for i, bit := range captured {
		if bit {
			b |= 1 << uint(i)
		}
	}
	return b
}
