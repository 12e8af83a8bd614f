package route

import (
	"testing"

	"github.com/ardnew/usbmidi/midi"
)

var (
	noteOnCh0  = midi.Packet{0x09, 0x90, 0x40, 0x7F}
	noteOffCh0 = midi.Packet{0x08, 0x80, 0x40, 0x00}
	noteOnCh5  = midi.Packet{0x09, 0x95, 0x10, 0x7F}
	ccCh5      = midi.Packet{0x0B, 0xB5, 0x07, 0x64}
	clock      = midi.Packet{0x0F, 0xF8, 0x00, 0x00}
	sysexStart = midi.Packet{0x04, 0xF0, 0x42, 0x30}
)

func runFilter(t *testing.T, f Filter, in ...midi.Packet) ([]midi.Packet, bool) {
	t.Helper()
	ctx := NewContext(in)
	pass, err := f.Filter(ctx)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	return ctx.Packets, pass
}

func TestFilters(t *testing.T) {
	tests := []struct {
		name     string
		filter   Filter
		in       []midi.Packet
		want     []midi.Packet
		wantPass bool
	}{
		{
			name:     "channels keeps matching and non-channel",
			filter:   Channels(0),
			in:       []midi.Packet{noteOnCh0, noteOnCh5, clock},
			want:     []midi.Packet{noteOnCh0, clock},
			wantPass: true,
		},
		{
			name:     "channels rejects empty result",
			filter:   Channels(1, 2),
			in:       []midi.Packet{noteOnCh0, ccCh5},
			want:     []midi.Packet{},
			wantPass: false,
		},
		{
			name:     "note range",
			filter:   NoteRange(0x20, 0x50),
			in:       []midi.Packet{noteOnCh0, noteOnCh5, ccCh5},
			want:     []midi.Packet{noteOnCh0, ccCh5},
			wantPass: true,
		},
		{
			name:     "note range includes note off",
			filter:   NoteRange(0x00, 0x10),
			in:       []midi.Packet{noteOffCh0},
			want:     []midi.Packet{},
			wantPass: false,
		},
		{
			name:     "transpose up",
			filter:   Transpose(12),
			in:       []midi.Packet{noteOnCh0, noteOffCh0, ccCh5},
			want:     []midi.Packet{{0x09, 0x90, 0x4C, 0x7F}, {0x08, 0x80, 0x4C, 0x00}, ccCh5},
			wantPass: true,
		},
		{
			name:     "transpose out of range drops",
			filter:   Transpose(-0x20),
			in:       []midi.Packet{noteOnCh0, noteOnCh5},
			want:     []midi.Packet{{0x09, 0x90, 0x20, 0x7F}},
			wantPass: true,
		},
		{
			name:     "override channel",
			filter:   OverrideChannel(9),
			in:       []midi.Packet{noteOnCh0, ccCh5, clock},
			want:     []midi.Packet{{0x09, 0x99, 0x40, 0x7F}, {0x0B, 0xB9, 0x07, 0x64}, clock},
			wantPass: true,
		},
		{
			name:     "drop realtime",
			filter:   DropRealtime(),
			in:       []midi.Packet{clock, noteOnCh0, clock},
			want:     []midi.Packet{noteOnCh0},
			wantPass: true,
		},
		{
			name:     "drop realtime only",
			filter:   DropRealtime(),
			in:       []midi.Packet{clock},
			want:     []midi.Packet{},
			wantPass: false,
		},
		{
			name:     "set cable",
			filter:   SetCable(2),
			in:       []midi.Packet{noteOnCh0, sysexStart},
			want:     []midi.Packet{{0x29, 0x90, 0x40, 0x7F}, {0x24, 0xF0, 0x42, 0x30}},
			wantPass: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, pass := runFilter(t, tt.filter, tt.in...)
			if pass != tt.wantPass {
				t.Errorf("pass = %v, want %v", pass, tt.wantPass)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("packets = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("packet %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNoteRange_Invalid(t *testing.T) {
	ctx := NewContext([]midi.Packet{noteOnCh0})
	if _, err := NoteRange(10, 5).Filter(ctx); err == nil {
		t.Error("inverted range accepted")
	}
}

func TestMatchSysex(t *testing.T) {
	f := MatchSysex(midi.Seq(0x42, 0x30), midi.Cap(midi.ValueU7))

	first := NewContext([]midi.Packet{sysexStart})
	if pass, _ := f.Filter(first); pass {
		t.Error("partial message passed")
	}

	second := NewContext([]midi.Packet{{0x06, 0x11, 0xF7, 0x00}})
	pass, err := f.Filter(second)
	if err != nil || !pass {
		t.Fatalf("Filter() = %v, %v", pass, err)
	}
	if v, ok := second.Tags.Byte(midi.ValueU7); !ok || v != 0x11 {
		t.Errorf("ValueU7 = %#x, %v", v, ok)
	}
}
