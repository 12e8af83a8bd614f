package route

import (
	"fmt"

	"github.com/ardnew/usbmidi/midi"
	"github.com/ardnew/usbmidi/pkg"
)

// channelOf returns the channel of a channel voice packet.
func channelOf(p midi.Packet) (uint8, bool) {
	if c := p.CIN(); c < midi.CINNoteOff || c > midi.CINPitchBend {
		return 0, false
	}
	return p[1] & 0x0f, true
}

// noteOf returns the key of a note on or note off packet.
func noteOf(p midi.Packet) (uint8, bool) {
	var ch, key, vel uint8
	msg := p.Message()
	if msg.GetNoteOn(&ch, &key, &vel) || msg.GetNoteOff(&ch, &key, &vel) {
		return key, true
	}
	return 0, false
}

// keepAny rejects the batch when nothing is left.
func keepAny(ctx *Context) (bool, error) {
	return len(ctx.Packets) > 0, nil
}

// Channels passes channel messages on the given channels (0-15) and drops
// those on any other. Non-channel messages pass.
func Channels(channels ...uint8) Filter {
	var mask uint16
	for _, ch := range channels {
		mask |= 1 << (ch & 0x0f)
	}
	return FilterFunc(func(ctx *Context) (bool, error) {
		ctx.Keep(func(p midi.Packet) bool {
			ch, ok := channelOf(p)
			return !ok || mask&(1<<ch) != 0
		})
		return keepAny(ctx)
	})
}

// NoteRange passes notes with keys in [lo, hi]. Other messages pass.
func NoteRange(lo, hi uint8) Filter {
	return FilterFunc(func(ctx *Context) (bool, error) {
		if lo > hi {
			return true, fmt.Errorf("note range %d-%d: %w", lo, hi, pkg.ErrInvalidParameter)
		}
		ctx.Keep(func(p midi.Packet) bool {
			key, ok := noteOf(p)
			return !ok || (key >= lo && key <= hi)
		})
		return keepAny(ctx)
	})
}

// Transpose shifts note keys by semitones. Notes shifted out of the MIDI
// range are dropped.
func Transpose(semitones int) Filter {
	return FilterFunc(func(ctx *Context) (bool, error) {
		ctx.Keep(func(p midi.Packet) bool {
			_, ok := noteOf(p)
			if !ok {
				return true
			}
			k := int(p[2]) + semitones
			return k >= 0 && k <= 0x7f
		})
		for i, p := range ctx.Packets {
			if _, ok := noteOf(p); ok {
				ctx.Packets[i][2] = byte(int(p[2]) + semitones)
			}
		}
		return keepAny(ctx)
	})
}

// OverrideChannel moves every channel message to ch (0-15).
func OverrideChannel(ch uint8) Filter {
	return FilterFunc(func(ctx *Context) (bool, error) {
		for i, p := range ctx.Packets {
			if _, ok := channelOf(p); ok {
				ctx.Packets[i][1] = p[1]&0xf0 | ch&0x0f
			}
		}
		return true, nil
	})
}

// DropRealtime removes realtime messages such as timing clock and active
// sensing.
func DropRealtime() Filter {
	return FilterFunc(func(ctx *Context) (bool, error) {
		ctx.Keep(func(p midi.Packet) bool {
			ev, err := p.Event()
			return err != nil || ev.Kind != midi.KindRealtime
		})
		return keepAny(ctx)
	})
}

// SetCable restamps every packet with cable.
func SetCable(cable uint8) Filter {
	return FilterFunc(func(ctx *Context) (bool, error) {
		for i, p := range ctx.Packets {
			ctx.Packets[i] = p.WithCable(cable)
		}
		return true, nil
	})
}

// Destination redirects the batch to iface.
func Destination(iface Interface) Filter {
	return FilterFunc(func(ctx *Context) (bool, error) {
		ctx.SetDestination(iface)
		return true, nil
	})
}

// SysexMatcher passes only batches that complete a sysex message matching
// its pattern, and stores the captures in the context tags. Matching state
// persists across batches, so a message may span several of them.
type SysexMatcher struct {
	matcher *midi.Matcher
}

// MatchSysex returns a filter gated on pattern.
func MatchSysex(pattern ...midi.Token) *SysexMatcher {
	return &SysexMatcher{matcher: midi.NewMatcher(pattern...)}
}

// Filter implements Filter.
func (m *SysexMatcher) Filter(ctx *Context) (bool, error) {
	matched := false
	for _, p := range ctx.Packets {
		caps, ok := m.matcher.MatchPacket(p)
		if !ok {
			continue
		}
		matched = true
		for tag, b := range caps {
			ctx.Tag(tag, b)
		}
	}
	return matched, nil
}
