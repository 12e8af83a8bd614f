package midi

import (
	"fmt"

	"github.com/ardnew/usbmidi/pkg"
)

// Kind is the logical message carried by one packet.
type Kind uint8

// Event kinds.
const (
	KindInvalid Kind = iota
	KindMisc
	KindCableEvent
	KindNoteOff
	KindNoteOn
	KindPolyKeyPress
	KindControlChange
	KindProgramChange
	KindChannelPressure
	KindPitchBend
	KindTimeCode
	KindSongPosition
	KindSongSelect
	KindTuneRequest
	KindRealtime
	KindSingleByte
	KindSysexBegin
	KindSysexCont
	KindSysexEnd
	KindSysexEnd1
	KindSysexEnd2
	KindSysexEmpty
	KindSysexSingleByte
)

var kindNames = [...]string{
	KindInvalid:         "Invalid",
	KindMisc:            "Misc",
	KindCableEvent:      "CableEvent",
	KindNoteOff:         "NoteOff",
	KindNoteOn:          "NoteOn",
	KindPolyKeyPress:    "PolyKeyPress",
	KindControlChange:   "ControlChange",
	KindProgramChange:   "ProgramChange",
	KindChannelPressure: "ChannelPressure",
	KindPitchBend:       "PitchBend",
	KindTimeCode:        "TimeCode",
	KindSongPosition:    "SongPosition",
	KindSongSelect:      "SongSelect",
	KindTuneRequest:     "TuneRequest",
	KindRealtime:        "Realtime",
	KindSingleByte:      "SingleByte",
	KindSysexBegin:      "SysexBegin",
	KindSysexCont:       "SysexCont",
	KindSysexEnd:        "SysexEnd",
	KindSysexEnd1:       "SysexEnd1",
	KindSysexEnd2:       "SysexEnd2",
	KindSysexEmpty:      "SysexEmpty",
	KindSysexSingleByte: "SysexSingleByte",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsChannel reports whether k is a channel voice message.
func (k Kind) IsChannel() bool {
	return k >= KindNoteOff && k <= KindPitchBend
}

// IsSysex reports whether k is any sysex fragment.
func (k Kind) IsSysex() bool {
	return k >= KindSysexBegin && k <= KindSysexSingleByte
}

// StartsSysex reports whether k opens a sysex message.
func (k Kind) StartsSysex() bool {
	return k == KindSysexBegin || k == KindSysexEmpty || k == KindSysexSingleByte
}

// EndsSysex reports whether k closes a sysex message.
func (k Kind) EndsSysex() bool {
	switch k {
	case KindSysexEnd, KindSysexEnd1, KindSysexEnd2, KindSysexEmpty, KindSysexSingleByte:
		return true
	}
	return false
}

// Event is the logical content of one packet. For sysex fragments Data
// holds only the body bytes, without the 0xF0 and 0xF7 framing.
type Event struct {
	Kind Kind

	// Status is the status byte of channel, system common and realtime
	// events.
	Status byte

	Data [3]byte
	Len  uint8
}

// Channel returns the channel (0-15) of a channel voice event.
func (e Event) Channel() uint8 {
	return e.Status & 0x0f
}

// Bytes returns the data bytes.
func (e Event) Bytes() []byte {
	return e.Data[:e.Len]
}

// String formats the event.
func (e Event) String() string {
	switch {
	case e.Kind.IsChannel():
		return fmt.Sprintf("%v ch=%d % x", e.Kind, e.Channel(), e.Bytes())
	case e.Len == 0:
		return e.Kind.String()
	default:
		return fmt.Sprintf("%v % x", e.Kind, e.Bytes())
	}
}

func event(kind Kind, status byte, data ...byte) Event {
	e := Event{Kind: kind, Status: status, Len: uint8(len(data))}
	copy(e.Data[:], data)
	return e
}

var channelKinds = [...]Kind{
	CINNoteOff - CINNoteOff:         KindNoteOff,
	CINNoteOn - CINNoteOff:          KindNoteOn,
	CINPolyKeyPress - CINNoteOff:    KindPolyKeyPress,
	CINControlChange - CINNoteOff:   KindControlChange,
	CINProgramChange - CINNoteOff:   KindProgramChange,
	CINChannelPressure - CINNoteOff: KindChannelPressure,
	CINPitchBend - CINNoteOff:       KindPitchBend,
}

func isRealtime(b byte) bool {
	return b >= StatusTimingClock && b != 0xF9 && b != 0xFD
}

// Event decodes the packet into its logical message.
func (p Packet) Event() (Event, error) {
	pl := p.Payload()
	switch cin := p.CIN(); cin {
	case CINMisc:
		return event(KindMisc, 0), nil

	case CINCableEvent:
		return event(KindCableEvent, 0), nil

	case CINSystemCommonLen2:
		switch pl[0] {
		case StatusTimeCode:
			return event(KindTimeCode, pl[0], pl[1]), nil
		case StatusSongSelect:
			return event(KindSongSelect, pl[0], pl[1]), nil
		}

	case CINSystemCommonLen3:
		if pl[0] == StatusSongPosition {
			return event(KindSongPosition, pl[0], pl[1], pl[2]), nil
		}

	case CINSysexStartOrContinue:
		if pl[0] == StatusSysexStart {
			return event(KindSysexBegin, 0, pl[1], pl[2]), nil
		}
		return event(KindSysexCont, 0, pl...), nil

	case CINSystemCommonLen1:
		switch {
		case pl[0] == StatusSysexEnd:
			return event(KindSysexEnd, 0), nil
		case pl[0] == StatusTuneRequest:
			return event(KindTuneRequest, pl[0]), nil
		case isRealtime(pl[0]):
			return event(KindRealtime, pl[0]), nil
		}

	case CINSysexEndsNext2:
		if pl[1] == StatusSysexEnd {
			if pl[0] == StatusSysexStart {
				return event(KindSysexEmpty, 0), nil
			}
			return event(KindSysexEnd1, 0, pl[0]), nil
		}

	case CINSysexEndsNext3:
		if pl[2] == StatusSysexEnd {
			if pl[0] == StatusSysexStart {
				return event(KindSysexSingleByte, 0, pl[1]), nil
			}
			return event(KindSysexEnd2, 0, pl[0], pl[1]), nil
		}

	case CINSingleByte:
		if isRealtime(pl[0]) {
			return event(KindRealtime, pl[0]), nil
		}
		return event(KindSingleByte, 0, pl[0]), nil

	default:
		if CIN(pl[0]>>4) == cin {
			return event(channelKinds[cin-CINNoteOff], pl[0], pl[1:]...), nil
		}
	}
	return Event{}, fmt.Errorf("packet %02x%02x%02x%02x: %w", p[0], p[1], p[2], p[3], pkg.ErrUnknownStatus)
}

// Packet encodes the event on the given cable. It is the inverse of
// Packet.Event.
func (e Event) Packet(cable uint8) Packet {
	d := e.Bytes()
	switch e.Kind {
	case KindMisc:
		return NewPacket(cable, CINMisc)
	case KindCableEvent:
		return NewPacket(cable, CINCableEvent)
	case KindTimeCode, KindSongSelect:
		return NewPacket(cable, CINSystemCommonLen2, e.Status, e.Data[0])
	case KindSongPosition:
		return NewPacket(cable, CINSystemCommonLen3, e.Status, e.Data[0], e.Data[1])
	case KindTuneRequest:
		return NewPacket(cable, CINSystemCommonLen1, e.Status)
	case KindRealtime:
		return NewPacket(cable, CINSystemCommonLen1, e.Status)
	case KindSingleByte:
		return NewPacket(cable, CINSingleByte, e.Data[0])
	case KindSysexBegin:
		return NewPacket(cable, CINSysexStartOrContinue, StatusSysexStart, e.Data[0], e.Data[1])
	case KindSysexCont:
		return NewPacket(cable, CINSysexStartOrContinue, d...)
	case KindSysexEnd:
		return NewPacket(cable, CINSystemCommonLen1, StatusSysexEnd)
	case KindSysexEnd1:
		return NewPacket(cable, CINSysexEndsNext2, e.Data[0], StatusSysexEnd)
	case KindSysexEnd2:
		return NewPacket(cable, CINSysexEndsNext3, e.Data[0], e.Data[1], StatusSysexEnd)
	case KindSysexEmpty:
		return NewPacket(cable, CINSysexEndsNext2, StatusSysexStart, StatusSysexEnd)
	case KindSysexSingleByte:
		return NewPacket(cable, CINSysexEndsNext3, StatusSysexStart, e.Data[0], StatusSysexEnd)
	}
	if e.Kind.IsChannel() {
		return NewPacket(cable, CIN(e.Status>>4), append([]byte{e.Status}, d...)...)
	}
	return NewPacket(cable, CINMisc)
}
