package jtag

import (
	"bytes"
	"testing"
)

func TestStatsRecordShiftTracksLargest(t *testing.T) {
	var s Stats
	s.RecordShift(8)
	s.RecordShift(64)
	s.RecordShift(16)

	if s.Shifts != 3 {
		t.Errorf("Shifts = %d, want 3", s.Shifts)
	}
	if s.Bits != 88 {
		t.Errorf("Bits = %d, want 88", s.Bits)
	}
	if s.LargestShiftRequest != 64 {
		t.Errorf("LargestShiftRequest = %d, want 64", s.LargestShiftRequest)
	}
}

func TestStatsPrint(t *testing.T) {
	s := Stats{Shifts: 1, Chunks: 2, Bits: 3, LargestShiftRequest: 4, LargestWriteRequest: 5, LargestWriteSent: 6, LargestReadRequest: 7}
	var buf bytes.Buffer
	s.Print(&buf)
	if buf.Len() == 0 {
		t.Fatalf("expected non-empty statistics output")
	}
}

func TestHexDump(t *testing.T) {
	got := hexDump([]byte{0xDE, 0xAD})
	want := "de ad"
	if got != want {
		t.Errorf("hexDump = %q, want %q", got, want)
	}
}
