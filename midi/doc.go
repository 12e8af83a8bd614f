// Package midi implements the USB-MIDI event packet codec and the sysex
// pattern language shared by inbound matching and outbound generation.
//
// # Packets
//
// A [Packet] is the 4-byte USB-MIDI event: cable number and Code Index
// Number in the header byte, up to three MIDI bytes after it. [Packet.Event]
// decodes the logical message, [Event.Packet] encodes it again.
// Single-packet messages convert to and from [gitlab.com/gomidi/midi/v2]
// messages with [Packet.Message] and [FromMessage].
//
// # Streams
//
// [Parser] turns a serial MIDI byte stream into packets, expanding running
// status and splitting sysex into 3-byte windows:
//
//	p := midi.NewParser(0)
//	packets := p.Parse([]byte{0x90, 0x40, 0x7F, 0x41, 0x50}, nil)
//	// 09 90 40 7f, 09 90 41 50
//
// # Sysex patterns
//
// A pattern is a list of tokens: [Seq] and [Val] literals, [Buf] runtime
// bytes, [Cap] tagged captures and [Skip]. [Matcher] consumes packets and
// yields a [CaptureMap] when a message matches; [Sysex] emits the packets
// of a message described by the same tokens.
//
//	id := []byte{0x42, 0x30, 0x04}
//	m := midi.NewMatcher(midi.Seq(id...), midi.Val(0x40), midi.Cap(midi.Dump(26)))
//	for _, p := range packets {
//	    if caps, ok := m.MatchPacket(p); ok {
//	        dump := caps[midi.Dump(26)]
//	        ...
//	    }
//	}
package midi
