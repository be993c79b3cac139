package jtag

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Stats accumulates the per-connection counters original_source/ftdiJTAG.c
// prints at disconnect under -S: shift/chunk/bit counts and the largest
// request sizes seen.
type Stats struct {
	Shifts uint64
	Chunks uint64
	Bits   uint64

	LargestShiftRequest int
	LargestWriteRequest int
	LargestWriteSent    int
	LargestReadRequest  int
}

// RecordShift tallies one shift: command's bit count.
func (s *Stats) RecordShift(bits int) {
	s.Shifts++
	s.Bits += uint64(bits)
	if bits > s.LargestShiftRequest {
		s.LargestShiftRequest = bits
	}
}

// RecordChunk tallies one USB chunk dispatched by the planner, and the size
// of the write request/transfer and read request that carried it.
func (s *Stats) RecordChunk(writeRequest, writeSent, readRequest int) {
	s.Chunks++
	if writeRequest > s.LargestWriteRequest {
		s.LargestWriteRequest = writeRequest
	}
	if writeSent > s.LargestWriteSent {
		s.LargestWriteSent = writeSent
	}
	if readRequest > s.LargestReadRequest {
		s.LargestReadRequest = readRequest
	}
}

// Print writes the final statistics block to w, matching the original's
// field order and labels.
func (s *Stats) Print(w io.Writer) {
	fmt.Fprintf(w, "   Shifts: %d\n", s.Shifts)
	fmt.Fprintf(w, "   Chunks: %d\n", s.Chunks)
	fmt.Fprintf(w, "     Bits: %d\n", s.Bits)
	fmt.Fprintf(w, " Largest shift request: %d\n", s.LargestShiftRequest)
	fmt.Fprintf(w, " Largest write request: %d\n", s.LargestWriteRequest)
	fmt.Fprintf(w, "Largest write transfer: %d\n", s.LargestWriteSent)
	fmt.Fprintf(w, "  Largest read request: %d\n", s.LargestReadRequest)
}

// Diagnostics wraps stdout with a color-capable writer for -U/-X traffic
// dumps, falling back to plain text when the output isn't a terminal.
type Diagnostics struct {
	out     io.Writer
	colored bool
}

// NewDiagnostics wraps os.Stdout the way periph-extra's screen package wraps
// its terminal output: go-isatty decides whether to colorize, go-colorable
// makes the ANSI codes work on every platform gousb/cobra support.
func NewDiagnostics() *Diagnostics {
	out := colorable.NewColorableStdout()
	colored := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	return &Diagnostics{out: out, colored: colored}
}

const (
	ansiReset = "\x1b[0m"
	ansiCyan  = "\x1b[36m"
	ansiYellow = "\x1b[33m"
)

// USBTrace hex-dumps data tagged with a direction label. The server calls it
// only for runt packets under -R; -U/-u bulk traffic is not passed to it.
func (d *Diagnostics) USBTrace(direction string, data []byte) {
	color := ansiCyan
	if direction == "IN" {
		color = ansiYellow
	}
	d.writeTagged(color, fmt.Sprintf("USB %-3s", direction), hexDump(data))
}

// XVCTrace logs a one-line parsed XVC command under -X/-x.
func (d *Diagnostics) XVCTrace(line string) {
	d.writeTagged(ansiCyan, "XVC", line)
}

func (d *Diagnostics) writeTagged(color, tag, msg string) {
	if d.colored {
		fmt.Fprintf(d.out, "%s%s%s: %s\n", color, tag, ansiReset, msg)
		return
	}
	fmt.Fprintf(d.out, "%s: %s\n", tag, msg)
}

func hexDump(data []byte) string {
	buf := make([]byte, 0, len(data)*3)
	for i, b := range data {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, fmt.Sprintf("%02x", b)...)
	}
	return string(buf)
}
