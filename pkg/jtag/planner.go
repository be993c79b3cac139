package jtag

// The USB/JTAG chip can't shift data to TMS and TDI simultaneously, so the
// planner switches between TMS-shift and TDI-shift MPSSE commands as
// necessary, breaking the sequence into chunks small enough that a chunk's
// command bytes fit in one bulk-out packet and its expected response fits in
// one bulk-in packet (less the 2-byte status prefix).

// minRoom is the worst-case encoded size of one more (TMS_SHIFT + TDI_BYTES +
// TDI_BITS) triple: 3 header bytes for the TMS shift, 3 header bytes for a
// TDI_BYTES command, 2 header bytes for a trailing TDI_BITS command, plus a
// little slack for the TDI payload bytes that follow.
const minRoom = 3 + 3 + 2 + 2

// Chunk is one round-trip unit of USB bulk-out + bulk-in bounded by endpoint
// packet sizes: a command buffer to write and the list of response segment
// widths (in bits) needed to decode what comes back.
type Chunk struct {
	Command        []byte
	SegmentWidths  []int
	ResponseBytes  int
}

// bitAt reads bit k (LSB first) of buf.
func bitAt(buf []byte, k int) bool {
	return buf[k/8]&(1<<uint(k%8)) != 0
}

// setBit writes bit k (LSB first) of buf to v, clearing the byte first when
// k is the first bit of a fresh byte.
func setBit(buf []byte, k int, v bool) {
	byteIdx, bitIdx := k/8, uint(k%8)
	if bitIdx == 0 {
		buf[byteIdx] = 0
	}
	if v {
		buf[byteIdx] |= 1 << bitIdx
	}
}

// PlanChunks walks tms/tdi (each holding at least ceil(nBits/8) bytes) and
// produces the chunk sequence described in spec.md §4.3. outMaxPacket bounds
// the size of each chunk's Command buffer; inMaxPacket bounds each chunk's
// ResponseBytes+2. When loopback is true the first chunk is prefixed with
// ENABLE_LOOPBACK.
func PlanChunks(nBits int, tms, tdi []byte, outMaxPacket, inMaxPacket int, loopback bool) []Chunk {
	var chunks []Chunk
	cursor := 0
	first := true

	for cursor < nBits {
		cmd := make([]byte, 0, outMaxPacket)
		if first && loopback {
			cmd = append(cmd, opEnableLoopback)
		}
		first = false
		var widths []int
		respBytes := 0

		for cursor < nBits && outMaxPacket-len(cmd) >= minRoom && (inMaxPacket-(respBytes+2)) > 0 {
			// TMS phase: run of <=6 bits, stopping if TDI's value changes.
			tdiHeld := bitAt(tdi, cursor)
			run := 0
			var tmsBits byte
			var lastTMSBit bool
			for cursor+run < nBits && run < 6 && bitAt(tdi, cursor+run) == tdiHeld {
				tmsBit := bitAt(tms, cursor+run)
				if tmsBit {
					tmsBits |= 1 << uint(run)
				}
				lastTMSBit = tmsBit
				run++
			}
			// Duplicate the final TMS bit into bit `run` so MPSSE holds TMS
			// stable across the TDI shifts that follow.
			if lastTMSBit {
				tmsBits |= 1 << uint(run)
			}
			var payload byte = tmsBits
			if tdiHeld {
				payload |= 0x80
			}
			cmd = TMSShiftToken{N: run, Payload: payload}.Encode(cmd)
			widths = append(widths, run)
			respBytes++
			cursor += run
			tmsState := lastTMSBit

			// TDI phase: run stops on exhaustion, TMS state change, or
			// chunk capacity.
			tdiRun := 0
			for cursor+tdiRun < nBits &&
				bitAt(tms, cursor+tdiRun) == tmsState &&
				len(cmd)+(tdiRun/8)+minRoom <= outMaxPacket &&
				respBytes+(tdiRun/8)+2+2 <= inMaxPacket {
				tdiRun++
			}
			if tdiRun > 0 {
				byteLen := tdiRun / 8
				tail := tdiRun % 8
				if byteLen > 0 {
					data := make([]byte, byteLen)
					for i := 0; i < byteLen*8; i++ {
						if bitAt(tdi, cursor+i) {
							data[i/8] |= 1 << uint(i%8)
						}
					}
					var err error
					cmd, err = TDIBytesToken{Data: data}.Encode(cmd)
					if err != nil {
						panic(err)
					}
					widths = append(widths, byteLen*8)
					respBytes += byteLen
				}
				if tail > 0 {
					var payload byte
					base := cursor + byteLen*8
					for i := 0; i < tail; i++ {
						if bitAt(tdi, base+i) {
							payload |= 1 << uint(i)
						}
					}
					cmd = TDIBitsToken{N: tail, Payload: payload}.Encode(cmd)
					widths = append(widths, tail)
					respBytes++
				}
			}
			cursor += tdiRun
		}

		chunks = append(chunks, Chunk{Command: cmd, SegmentWidths: widths, ResponseBytes: respBytes})
	}

	return chunks
}
