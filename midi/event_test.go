package midi

import (
	"errors"
	"testing"

	"github.com/ardnew/usbmidi/pkg"
)

// =============================================================================
// Event Decoding Tests
// =============================================================================

func TestPacket_Event(t *testing.T) {
	tests := []struct {
		packet Packet
		kind   Kind
		data   []byte
	}{
		{Packet{0x08, 0x81, 0x3C, 0x00}, KindNoteOff, []byte{0x3C, 0x00}},
		{Packet{0x09, 0x91, 0x3C, 0x64}, KindNoteOn, []byte{0x3C, 0x64}},
		{Packet{0x0A, 0xA2, 0x3C, 0x10}, KindPolyKeyPress, []byte{0x3C, 0x10}},
		{Packet{0x0B, 0xB0, 0x07, 0x7F}, KindControlChange, []byte{0x07, 0x7F}},
		{Packet{0x0C, 0xC3, 0x05, 0x00}, KindProgramChange, []byte{0x05}},
		{Packet{0x0D, 0xD4, 0x40, 0x00}, KindChannelPressure, []byte{0x40}},
		{Packet{0x0E, 0xE5, 0x00, 0x40}, KindPitchBend, []byte{0x00, 0x40}},
		{Packet{0x02, 0xF1, 0x11, 0x00}, KindTimeCode, []byte{0x11}},
		{Packet{0x02, 0xF3, 0x04, 0x00}, KindSongSelect, []byte{0x04}},
		{Packet{0x03, 0xF2, 0x10, 0x20}, KindSongPosition, []byte{0x10, 0x20}},
		{Packet{0x05, 0xF6, 0x00, 0x00}, KindTuneRequest, nil},
		{Packet{0x05, 0xF8, 0x00, 0x00}, KindRealtime, nil},
		{Packet{0x0F, 0xFA, 0x00, 0x00}, KindRealtime, nil},
		{Packet{0x0F, 0x42, 0x00, 0x00}, KindSingleByte, []byte{0x42}},
		{Packet{0x04, 0xF0, 0x42, 0x30}, KindSysexBegin, []byte{0x42, 0x30}},
		{Packet{0x04, 0x04, 0x40, 0x01}, KindSysexCont, []byte{0x04, 0x40, 0x01}},
		{Packet{0x05, 0xF7, 0x00, 0x00}, KindSysexEnd, nil},
		{Packet{0x06, 0x01, 0xF7, 0x00}, KindSysexEnd1, []byte{0x01}},
		{Packet{0x07, 0x01, 0x02, 0xF7}, KindSysexEnd2, []byte{0x01, 0x02}},
		{Packet{0x06, 0xF0, 0xF7, 0x00}, KindSysexEmpty, nil},
		{Packet{0x07, 0xF0, 0x7E, 0xF7}, KindSysexSingleByte, []byte{0x7E}},
		{Packet{0x00, 0x00, 0x00, 0x00}, KindMisc, nil},
		{Packet{0x01, 0x00, 0x00, 0x00}, KindCableEvent, nil},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			ev, err := tt.packet.Event()
			if err != nil {
				t.Fatalf("Event() error = %v", err)
			}
			if ev.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", ev.Kind, tt.kind)
			}
			if string(ev.Bytes()) != string(tt.data) {
				t.Errorf("Bytes() = % x, want % x", ev.Bytes(), tt.data)
			}
		})
	}
}

func TestPacket_EventInvalid(t *testing.T) {
	bad := []Packet{
		{0x09, 0x80, 0x3C, 0x00}, // status disagrees with CIN
		{0x02, 0xF2, 0x00, 0x00},
		{0x03, 0xF1, 0x00, 0x00},
		{0x05, 0xF4, 0x00, 0x00},
		{0x06, 0x01, 0x02, 0x00}, // no terminator
		{0x07, 0x01, 0x02, 0x03},
	}
	for _, p := range bad {
		if _, err := p.Event(); !errors.Is(err, pkg.ErrUnknownStatus) {
			t.Errorf("%x.Event() error = %v, want unknown status", p[:], err)
		}
	}
}

func TestEvent_Channel(t *testing.T) {
	ev, _ := Packet{0x09, 0x9F, 0x3C, 0x64}.Event()
	if ev.Channel() != 15 {
		t.Errorf("Channel() = %d, want 15", ev.Channel())
	}
}

// =============================================================================
// Round Trip Tests
// =============================================================================

func TestEvent_RoundTrip(t *testing.T) {
	events := []Event{
		event(KindNoteOff, 0x80, 0x3C, 0x00),
		event(KindNoteOn, 0x9F, 0x3C, 0x64),
		event(KindPolyKeyPress, 0xA0, 0x01, 0x02),
		event(KindControlChange, 0xB1, 0x07, 0x7F),
		event(KindProgramChange, 0xC2, 0x05),
		event(KindChannelPressure, 0xD3, 0x40),
		event(KindPitchBend, 0xE4, 0x00, 0x40),
		event(KindTimeCode, StatusTimeCode, 0x11),
		event(KindSongSelect, StatusSongSelect, 0x04),
		event(KindSongPosition, StatusSongPosition, 0x10, 0x20),
		event(KindTuneRequest, StatusTuneRequest),
		event(KindRealtime, 0xF8),
		event(KindRealtime, 0xFE),
		event(KindSingleByte, 0, 0x42),
		event(KindSysexBegin, 0, 0x42, 0x30),
		event(KindSysexCont, 0, 0x04, 0x40, 0x01),
		event(KindSysexEnd, 0),
		event(KindSysexEnd1, 0, 0x01),
		event(KindSysexEnd2, 0, 0x01, 0x02),
		event(KindSysexEmpty, 0),
		event(KindSysexSingleByte, 0, 0x7E),
		event(KindMisc, 0),
		event(KindCableEvent, 0),
	}

	for _, want := range events {
		t.Run(want.Kind.String(), func(t *testing.T) {
			for _, cable := range []uint8{0, 7, 15} {
				p := want.Packet(cable)
				if p.Cable() != cable {
					t.Errorf("Cable() = %d, want %d", p.Cable(), cable)
				}
				got, err := p.Event()
				if err != nil {
					t.Fatalf("Event() error = %v", err)
				}
				if got != want {
					t.Errorf("round trip = %+v, want %+v", got, want)
				}
			}
		})
	}
}

func TestRealtime_Framing(t *testing.T) {
	for _, status := range []byte{0xF8, 0xFA, 0xFC, 0xFE, 0xFF} {
		p := event(KindRealtime, status).Packet(3)
		if want := (Packet{0x35, status, 0, 0}); p != want {
			t.Errorf("Packet(%#02x) = %v, want %v", status, p, want)
		}
		got, err := Decode(3, []byte{status})
		if err != nil || len(got) != 1 || got[0] != p {
			t.Errorf("Decode(%#02x) = %v, %v", status, got, err)
		}
		for _, cin := range []CIN{CINSystemCommonLen1, CINSingleByte} {
			ev, err := NewPacket(0, cin, status).Event()
			if err != nil || ev.Kind != KindRealtime || ev.Status != status {
				t.Errorf("CIN %#x %#02x decoded as %+v, %v", uint8(cin), status, ev, err)
			}
		}
	}
}

func TestKind_Predicates(t *testing.T) {
	for k := KindInvalid; k <= KindSysexSingleByte; k++ {
		if k.StartsSysex() && !k.IsSysex() {
			t.Errorf("%v starts sysex but is not sysex", k)
		}
		if k.EndsSysex() && !k.IsSysex() {
			t.Errorf("%v ends sysex but is not sysex", k)
		}
		if k.IsChannel() && k.IsSysex() {
			t.Errorf("%v is both channel and sysex", k)
		}
	}
	if Kind(200).String() != "Kind(200)" {
		t.Errorf("Kind(200).String() = %q", Kind(200).String())
	}
}
