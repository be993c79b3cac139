package jtag

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"periph.io/x/conn/v3/physic"
)

// ProtoHandler serves one XVC connection's command stream against an
// Adapter, mirroring processCommands/shift/matchInput in
// original_source/ftdiJTAG.c: getinfo:, settck: and shift: are dispatched in
// a loop until EOF or a malformed command, at which point the session ends
// with no further reply.
type ProtoHandler struct {
	Adapter Adapter
	Trace   func(line string) // non-nil enables -X/-x command tracing
	Stats   *Stats
}

// Serve reads commands from r and writes replies to w until r is exhausted
// or a command is malformed, returning the error that ended the session (nil
// on clean EOF).
func (h *ProtoHandler) Serve(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch c {
		case 's':
			c2, err := br.ReadByte()
			if err != nil {
				return err
			}
			switch c2 {
			case 'e':
				if err := h.handleSettck(br, w); err != nil {
					return err
				}
			case 'h':
				if err := h.handleShift(br, w); err != nil {
					return err
				}
			default:
				return fmt.Errorf("jtag: malformed command, bad second byte %#02x after 's'", c2)
			}
		case 'g':
			if err := h.handleGetInfo(br, w); err != nil {
				return err
			}
		default:
			return fmt.Errorf("jtag: malformed command, unexpected byte %#02x", c)
		}
	}
}

func matchLiteral(r *bufio.Reader, s string) error {
	buf := make([]byte, len(s))
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	if string(buf) != s {
		return fmt.Errorf("jtag: malformed command, expected %q, got %q", s, buf)
	}
	return nil
}

func fetch32(r *bufio.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func reply32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func (h *ProtoHandler) handleGetInfo(r *bufio.Reader, w io.Writer) error {
	if err := matchLiteral(r, "etinfo:"); err != nil {
		return err
	}
	msg := fmt.Sprintf("xvcServer_v1.0:%d\n", MaxShiftBytes)
	if h.Trace != nil {
		h.Trace("getinfo:")
	}
	_, err := io.WriteString(w, msg)
	return err
}

func (h *ProtoHandler) handleSettck(r *bufio.Reader, w io.Writer) error {
	if err := matchLiteral(r, "ttck:"); err != nil {
		return err
	}
	periodNs, err := fetch32(r)
	if err != nil {
		return err
	}
	if h.Trace != nil {
		h.Trace(fmt.Sprintf("settck:%d", periodNs))
	}

	var hz physic.Frequency
	if periodNs > 0 {
		hz = physic.Frequency(float64(physic.Hertz) * 1e9 / float64(periodNs))
	}
	if _, err := h.Adapter.SetSpeed(hz); err != nil {
		return err
	}
	return reply32(w, periodNs)
}

func (h *ProtoHandler) handleShift(r *bufio.Reader, w io.Writer) error {
	if err := matchLiteral(r, "ift:"); err != nil {
		return err
	}
	nBits, err := fetch32(r)
	if err != nil {
		return err
	}
	nBytes := int((nBits + 7) / 8)
	if nBytes > MaxShiftBytes {
		return fmt.Errorf("jtag: shift request %d bytes exceeds max %d", nBytes, MaxShiftBytes)
	}

	tms := make([]byte, nBytes)
	tdi := make([]byte, nBytes)
	if _, err := io.ReadFull(r, tms); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, tdi); err != nil {
		return err
	}
	if h.Trace != nil {
		h.Trace(fmt.Sprintf("shift:%d", nBits))
	}
	if h.Stats != nil {
		h.Stats.RecordShift(int(nBits))
	}

	tdo, err := h.Adapter.Shift(tms, tdi, int(nBits))
	if err != nil {
		return err
	}
	if len(tdo) != nBytes {
		return fmt.Errorf("jtag: adapter returned %d TDO bytes, want %d", len(tdo), nBytes)
	}
	_, err = w.Write(tdo)
	return err
}
