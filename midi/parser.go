package midi

import (
	"errors"
	"fmt"

	"github.com/ardnew/usbmidi/pkg"
)

// Parser converts a raw MIDI byte stream, as received on a UART, into
// USB-MIDI event packets. It expands running status and splits sysex
// messages into 3-byte windows.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	cable uint8

	// running is the last channel status byte, replayed for data bytes
	// that arrive without a status.
	running byte

	buf      [3]byte
	n        int
	expected int
	sysex    bool
}

// NewParser returns a parser that stamps packets with the given cable.
func NewParser(cable uint8) *Parser {
	return &Parser{cable: cable & 0x0f}
}

// Cable returns the cable number stamped on emitted packets.
func (p *Parser) Cable() uint8 {
	return p.cable
}

// Reset clears running status and any partial message.
func (p *Parser) Reset() {
	p.running = 0
	p.clear()
	p.sysex = false
}

func (p *Parser) clear() {
	p.n = 0
	p.expected = 0
}

// statusLen returns the total message length for a channel or system
// common status byte, or 0 if the status is undefined.
func statusLen(status byte) int {
	switch {
	case status < 0x80:
		return 0
	case status < 0xC0, status >= 0xE0 && status < 0xF0:
		return 3
	case status < 0xE0:
		return 2
	}
	switch status {
	case StatusTimeCode, StatusSongSelect:
		return 2
	case StatusSongPosition:
		return 3
	case StatusTuneRequest:
		return 1
	}
	return 0
}

// Feed consumes one byte. It reports a packet when the byte completes one.
// Undefined status bytes, orphan data and oversized sysex tails return an
// error and emit nothing; the parser remains usable.
func (p *Parser) Feed(b byte) (Packet, bool, error) {
	switch {
	case b >= StatusTimingClock:
		if !isRealtime(b) {
			return Packet{}, false, fmt.Errorf("status %#02x: %w", b, pkg.ErrUnknownStatus)
		}
		// Realtime bytes may interleave any message without disturbing it.
		// They are framed as one-byte system messages.
		return NewPacket(p.cable, CINSystemCommonLen1, b), true, nil

	case b == StatusSysexStart:
		p.running = 0
		p.clear()
		p.sysex = true
		p.buf[0] = b
		p.n = 1
		return Packet{}, false, nil

	case b == StatusSysexEnd:
		if !p.sysex {
			pkg.LogDebug(pkg.ComponentMIDI, "sysex end outside sysex",
				"cable", p.cable)
			return Packet{}, false, nil
		}
		p.sysex = false
		n := p.n
		p.clear()
		switch n {
		case 0:
			return NewPacket(p.cable, CINSystemCommonLen1, b), true, nil
		case 1:
			return NewPacket(p.cable, CINSysexEndsNext2, p.buf[0], b), true, nil
		case 2:
			return NewPacket(p.cable, CINSysexEndsNext3, p.buf[0], p.buf[1], b), true, nil
		}
		return Packet{}, false, fmt.Errorf("%d pending bytes: %w", n+1, pkg.ErrSysexOutOfBounds)

	case b > StatusSysexStart:
		p.running = 0
		p.sysex = false
		p.clear()
		n := statusLen(b)
		if n == 0 {
			return Packet{}, false, fmt.Errorf("status %#02x: %w", b, pkg.ErrUnknownStatus)
		}
		if n == 1 {
			return NewPacket(p.cable, CINSystemCommonLen1, b), true, nil
		}
		p.buf[0] = b
		p.n = 1
		p.expected = n
		return Packet{}, false, nil

	case b >= 0x80:
		p.sysex = false
		p.clear()
		p.running = b
		p.buf[0] = b
		p.n = 1
		p.expected = statusLen(b)
		return Packet{}, false, nil
	}

	// Data byte.
	if p.sysex {
		p.buf[p.n] = b
		p.n++
		if p.n == len(p.buf) {
			p.n = 0
			return NewPacket(p.cable, CINSysexStartOrContinue, p.buf[:]...), true, nil
		}
		return Packet{}, false, nil
	}

	if p.n == 0 {
		if p.running == 0 {
			return Packet{}, false, fmt.Errorf("data %#02x: %w", b, pkg.ErrOrphanData)
		}
		p.buf[0] = p.running
		p.n = 1
		p.expected = statusLen(p.running)
	}

	p.buf[p.n] = b
	p.n++
	if p.n < p.expected {
		return Packet{}, false, nil
	}

	pkt := p.complete()
	p.clear()
	return pkt, true, nil
}

func (p *Parser) complete() Packet {
	status := p.buf[0]
	if status < StatusSysexStart {
		return NewPacket(p.cable, CIN(status>>4), p.buf[:p.n]...)
	}
	if p.n == 2 {
		return NewPacket(p.cable, CINSystemCommonLen2, p.buf[:p.n]...)
	}
	return NewPacket(p.cable, CINSystemCommonLen3, p.buf[:p.n]...)
}

// Parse feeds data through the parser and appends completed packets to
// out. Errors are logged and the offending byte dropped.
func (p *Parser) Parse(data []byte, out []Packet) []Packet {
	for _, b := range data {
		pkt, ok, err := p.Feed(b)
		if err != nil {
			pkg.LogWarn(pkg.ComponentMIDI, "dropped byte",
				"cable", p.cable,
				"byte", b,
				"error", err)
			continue
		}
		if ok {
			out = append(out, pkt)
		}
	}
	return out
}

// Decode converts a complete byte sequence into packets on one cable. All
// packets that could be decoded are returned along with the joined errors
// for the bytes that could not.
func Decode(cable uint8, data []byte) ([]Packet, error) {
	p := NewParser(cable)
	var (
		out  []Packet
		errs []error
	)
	for _, b := range data {
		pkt, ok, err := p.Feed(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			out = append(out, pkt)
		}
	}
	return out, errors.Join(errs...)
}
