package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/ardnew/usbmidi/pkg"
)

// PacketSize is the size of a USB-MIDI event packet.
const PacketSize = 4

// MIDI status bytes used by the codec.
const (
	StatusSysexStart   = 0xF0
	StatusTimeCode     = 0xF1
	StatusSongPosition = 0xF2
	StatusSongSelect   = 0xF3
	StatusTuneRequest  = 0xF6
	StatusSysexEnd     = 0xF7
	StatusTimingClock  = 0xF8
)

// CIN is the Code Index Number in the low nibble of a packet header.
type CIN uint8

// Code Index Numbers (USB Device Class Definition for MIDI Devices, 4).
const (
	CINMisc                 CIN = 0x0
	CINCableEvent           CIN = 0x1
	CINSystemCommonLen2     CIN = 0x2
	CINSystemCommonLen3     CIN = 0x3
	CINSysexStartOrContinue CIN = 0x4
	CINSystemCommonLen1     CIN = 0x5 // also sysex ending with one byte (F7)
	CINSysexEndsNext2       CIN = 0x6
	CINSysexEndsNext3       CIN = 0x7
	CINNoteOff              CIN = 0x8
	CINNoteOn               CIN = 0x9
	CINPolyKeyPress         CIN = 0xA
	CINControlChange        CIN = 0xB
	CINProgramChange        CIN = 0xC
	CINChannelPressure      CIN = 0xD
	CINPitchBend            CIN = 0xE
	CINSingleByte           CIN = 0xF
)

var payloadLen = [16]uint8{
	CINMisc:                 0,
	CINCableEvent:           0,
	CINSystemCommonLen2:     2,
	CINSystemCommonLen3:     3,
	CINSysexStartOrContinue: 3,
	CINSystemCommonLen1:     1,
	CINSysexEndsNext2:       2,
	CINSysexEndsNext3:       3,
	CINNoteOff:              3,
	CINNoteOn:               3,
	CINPolyKeyPress:         3,
	CINControlChange:        3,
	CINProgramChange:        2,
	CINChannelPressure:      2,
	CINPitchBend:            3,
	CINSingleByte:           1,
}

// PayloadLen returns the number of meaningful payload bytes for the CIN.
func (c CIN) PayloadLen() int {
	return int(payloadLen[c&0x0f])
}

// String returns the CIN name.
func (c CIN) String() string {
	switch c & 0x0f {
	case CINMisc:
		return "Misc"
	case CINCableEvent:
		return "CableEvent"
	case CINSystemCommonLen2:
		return "SystemCommonLen2"
	case CINSystemCommonLen3:
		return "SystemCommonLen3"
	case CINSysexStartOrContinue:
		return "SysexStartOrContinue"
	case CINSystemCommonLen1:
		return "SystemCommonLen1"
	case CINSysexEndsNext2:
		return "SysexEndsNext2"
	case CINSysexEndsNext3:
		return "SysexEndsNext3"
	case CINNoteOff:
		return "NoteOff"
	case CINNoteOn:
		return "NoteOn"
	case CINPolyKeyPress:
		return "PolyKeyPress"
	case CINControlChange:
		return "ControlChange"
	case CINProgramChange:
		return "ProgramChange"
	case CINChannelPressure:
		return "ChannelPressure"
	case CINPitchBend:
		return "PitchBend"
	default:
		return "SingleByte"
	}
}

// Packet is a 4-byte USB-MIDI event packet: cable number and CIN in byte 0,
// up to three payload bytes after it.
type Packet [PacketSize]byte

// NewPacket builds a packet. Payload bytes beyond the CIN's length are
// ignored and unused bytes are zero.
func NewPacket(cable uint8, cin CIN, payload ...byte) Packet {
	var p Packet
	p[0] = (cable&0x0f)<<4 | uint8(cin&0x0f)
	copy(p[1:1+cin.PayloadLen()], payload)
	return p
}

// Cable returns the virtual cable number (0-15).
func (p Packet) Cable() uint8 {
	return p[0] >> 4
}

// CIN returns the Code Index Number.
func (p Packet) CIN() CIN {
	return CIN(p[0] & 0x0f)
}

// WithCable returns a copy of p on another cable.
func (p Packet) WithCable(cable uint8) Packet {
	p[0] = (cable&0x0f)<<4 | p[0]&0x0f
	return p
}

// Payload returns the meaningful payload bytes.
func (p Packet) Payload() []byte {
	return p[1 : 1+p.CIN().PayloadLen()]
}

// Status returns the first payload byte if the payload is not empty.
func (p Packet) Status() (byte, bool) {
	if p.CIN().PayloadLen() == 0 {
		return 0, false
	}
	return p[1], true
}

// Bytes returns a copy of the payload as raw MIDI bytes, suitable for a
// serial link.
func (p Packet) Bytes() []byte {
	return append([]byte(nil), p.Payload()...)
}

// Message returns the payload as a gomidi message.
func (p Packet) Message() gomidi.Message {
	return gomidi.Message(p.Bytes())
}

// String formats the packet as hex followed by its decoded message.
func (p Packet) String() string {
	ev, err := p.Event()
	if err != nil {
		return fmt.Sprintf("%02x%02x%02x%02x (%v)", p[0], p[1], p[2], p[3], err)
	}
	return fmt.Sprintf("%02x%02x%02x%02x %v", p[0], p[1], p[2], p[3], ev)
}

// FromMessage packs a gomidi message into a single packet. Messages that
// need more than one packet, such as sysex with a body longer than one
// byte, return ErrNotSinglePacket.
func FromMessage(cable uint8, msg gomidi.Message) (Packet, error) {
	packets, err := Decode(cable, msg)
	if err != nil {
		return Packet{}, err
	}
	if len(packets) != 1 {
		return Packet{}, fmt.Errorf("%d packets: %w", len(packets), pkg.ErrNotSinglePacket)
	}
	return packets[0], nil
}

// PacketsFromUSB splits a bulk transfer payload into packets. Trailing
// partial packets and all-zero padding packets are dropped.
func PacketsFromUSB(data []byte) []Packet {
	out := make([]Packet, 0, len(data)/PacketSize)
	for ; len(data) >= PacketSize; data = data[PacketSize:] {
		var p Packet
		copy(p[:], data)
		if p == (Packet{}) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// AppendUSB appends the wire form of packets to buf.
func AppendUSB(buf []byte, packets ...Packet) []byte {
	for _, p := range packets {
		buf = append(buf, p[:]...)
	}
	return buf
}
