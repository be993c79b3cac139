package jtag

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// TestProtoGetInfo is scenario S1.
func TestProtoGetInfo(t *testing.T) {
	sim := NewSimAdapter(AdapterInfo{})
	h := &ProtoHandler{Adapter: sim}

	var out bytes.Buffer
	if err := h.Serve(bytes.NewReader([]byte("getinfo:")), &out); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}
	want := "xvcServer_v1.0:1024\n"
	if out.String() != want {
		t.Fatalf("got %q, want %q", out.String(), want)
	}
}

// TestProtoSettckEcho is scenario S2: the reply must echo the requested
// period byte-for-byte regardless of the quantized hardware divisor.
func TestProtoSettckEcho(t *testing.T) {
	sim := NewSimAdapter(AdapterInfo{})
	h := &ProtoHandler{Adapter: sim}

	var in bytes.Buffer
	in.WriteString("settck:")
	binary.Write(&in, binary.LittleEndian, uint32(25))

	var out bytes.Buffer
	if err := h.Serve(&in, &out); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}
	if out.Len() != 4 {
		t.Fatalf("got %d reply bytes, want 4", out.Len())
	}
	got := binary.LittleEndian.Uint32(out.Bytes())
	if got != 25 {
		t.Fatalf("got %d, want 25", got)
	}
}

// TestProtoShiftTinyAllZeros is scenario S3.
func TestProtoShiftTinyAllZeros(t *testing.T) {
	sim := NewSimAdapter(AdapterInfo{})
	h := &ProtoHandler{Adapter: sim}

	var in bytes.Buffer
	in.WriteString("shift:")
	binary.Write(&in, binary.LittleEndian, uint32(5))
	in.WriteByte(0x00) // TMS
	in.WriteByte(0x00) // TDI

	var out bytes.Buffer
	if err := h.Serve(&in, &out); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}
	if out.Len() != 1 {
		t.Fatalf("got %d reply bytes, want 1", out.Len())
	}
	if out.Bytes()[0]&0x1F != 0 {
		t.Fatalf("low 5 bits of reply = %05b, want all zero", out.Bytes()[0]&0x1F)
	}
}

func TestProtoMultipleCommandsInOrder(t *testing.T) {
	sim := NewSimAdapter(AdapterInfo{})
	h := &ProtoHandler{Adapter: sim}

	var in bytes.Buffer
	in.WriteString("getinfo:")
	in.WriteString("getinfo:")

	var out bytes.Buffer
	if err := h.Serve(&in, &out); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}
	want := "xvcServer_v1.0:1024\nxvcServer_v1.0:1024\n"
	if out.String() != want {
		t.Fatalf("got %q, want %q", out.String(), want)
	}
}

func TestProtoMalformedCommandClosesSession(t *testing.T) {
	sim := NewSimAdapter(AdapterInfo{})
	h := &ProtoHandler{Adapter: sim}

	var out bytes.Buffer
	err := h.Serve(bytes.NewReader([]byte("zzz")), &out)
	if err == nil {
		t.Fatalf("expected an error for a malformed command")
	}
}
