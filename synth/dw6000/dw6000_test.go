package dw6000

import (
	"errors"
	"strings"
	"testing"

	"github.com/ardnew/usbmidi/midi"
	"github.com/ardnew/usbmidi/pkg"
	"github.com/ardnew/usbmidi/route"
)

func wire(t *testing.T, body ...byte) []midi.Packet {
	t.Helper()
	data := append(append([]byte{0xF0}, body...), 0xF7)
	packets, err := midi.Decode(0, data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return packets
}

func equal(a, b []midi.Packet) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testPatch() Patch {
	var p Patch
	for i := range p {
		p[i] = byte(i * 3)
	}
	return p
}

// =============================================================================
// Producer Tests
// =============================================================================

func TestDumpRequest(t *testing.T) {
	got := DumpRequest(0).Packets()
	want := wire(t, 0x42, 0x30, 0x04, 0x10)
	if !equal(got, want) {
		t.Errorf("DumpRequest() = %v, want %v", got, want)
	}
}

func TestWriteParameter(t *testing.T) {
	tests := []struct {
		name    string
		param   byte
		value   byte
		wantErr bool
	}{
		{"cutoff", 0x0C, 0x3F, false},
		{"max", 0x7F, 0x7F, false},
		{"param high bit", 0x80, 0x00, true},
		{"value high bit", 0x01, 0xFF, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := WriteParameter(0, tt.param, tt.value)
			if tt.wantErr {
				if !errors.Is(err, pkg.ErrInvalidParameter) {
					t.Errorf("error = %v, want ErrInvalidParameter", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			want := wire(t, 0x42, 0x30, 0x04, 0x41, tt.param, tt.value)
			if got := msg.Packets(); !equal(got, want) {
				t.Errorf("packets = %v, want %v", got, want)
			}
		})
	}
}

func TestDump_Invalid(t *testing.T) {
	p := testPatch()
	p[5] = 0x80
	if _, err := Dump(0, p); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("Dump() error = %v", err)
	}
}

// =============================================================================
// Capture Tests
// =============================================================================

func TestDump_RoundTrip(t *testing.T) {
	p := testPatch()
	msg, err := Dump(0, p)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	caps, ok := midi.Match(DumpPattern(), msg.Packets())
	if !ok {
		t.Fatal("dump did not match its own pattern")
	}
	got, ok := PatchFrom(caps)
	if !ok || got != p {
		t.Errorf("PatchFrom() = %v, %v; want %v", got, ok, p)
	}
}

func TestPatchFrom_Missing(t *testing.T) {
	if _, ok := PatchFrom(midi.CaptureMap{}); ok {
		t.Error("PatchFrom(empty) = true")
	}
	if _, ok := PatchFrom(midi.CaptureMap{DumpTag: {1, 2}}); ok {
		t.Error("PatchFrom(short) = true")
	}
}

func TestCaptureDump(t *testing.T) {
	p := testPatch()
	msg, _ := Dump(0, p)
	packets := msg.Packets()
	half := len(packets) / 2

	f := CaptureDump()

	first := route.NewContext(packets[:half])
	if ok, err := f.Filter(first); ok || err != nil {
		t.Fatalf("first half = %v, %v; want false", ok, err)
	}

	second := route.NewContext(packets[half:])
	ok, err := f.Filter(second)
	if !ok || err != nil {
		t.Fatalf("second half = %v, %v; want true", ok, err)
	}
	if got, _ := PatchFrom(second.Tags); got != p {
		t.Errorf("tagged patch = %v", got)
	}
	if len(second.Strings) != 1 || !strings.HasPrefix(second.Strings[0], "dw6000 dump ") {
		t.Errorf("Strings = %q", second.Strings)
	}
}

func TestCaptureDump_IgnoresOtherSysex(t *testing.T) {
	f := CaptureDump()
	ctx := route.NewContext(DumpRequest(0).Packets())
	if ok, _ := f.Filter(ctx); ok {
		t.Error("dump request passed the dump filter")
	}
}
