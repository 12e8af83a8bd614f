package midi

// Sysex produces the packets of one sysex message described by a token
// list. Packets are generated lazily; once exhausted a Sysex produces
// nothing more.
type Sysex struct {
	cable    uint8
	tokens   []Token
	captures CaptureMap

	tok     int
	pos     int
	started bool
	done    bool
}

// NewSysex returns a producer for the message body described by tokens.
// Cap tokens emit nothing useful unless WithCaptures supplies values.
func NewSysex(cable uint8, tokens ...Token) *Sysex {
	return &Sysex{cable: cable & 0x0f, tokens: tokens}
}

// WithCaptures sets the values emitted for Cap tokens. Missing or short
// captures are zero-filled.
func (s *Sysex) WithCaptures(m CaptureMap) *Sysex {
	s.captures = m
	return s
}

func (s *Sysex) nextByte() (byte, bool) {
	for s.tok < len(s.tokens) {
		t := s.tokens[s.tok]
		if s.pos >= t.Len() {
			s.tok++
			s.pos = 0
			continue
		}
		var b byte
		switch t.Kind {
		case TokenSeq, TokenVal, TokenBuf:
			b = t.Bytes[s.pos]
		case TokenCap:
			if v := s.captures[t.Tag]; s.pos < len(v) {
				b = v[s.pos]
			}
		}
		s.pos++
		return b, true
	}
	return 0, false
}

func (s *Sysex) fill(w []byte) int {
	n := 0
	for n < len(w) {
		b, ok := s.nextByte()
		if !ok {
			break
		}
		w[n] = b
		n++
	}
	return n
}

// Next returns the next packet of the message.
func (s *Sysex) Next() (Packet, bool) {
	if s.done {
		return Packet{}, false
	}
	var w [3]byte

	if !s.started {
		s.started = true
		switch s.fill(w[:2]) {
		case 0:
			s.done = true
			return NewPacket(s.cable, CINSysexEndsNext2, StatusSysexStart, StatusSysexEnd), true
		case 1:
			s.done = true
			return NewPacket(s.cable, CINSysexEndsNext3, StatusSysexStart, w[0], StatusSysexEnd), true
		}
		return NewPacket(s.cable, CINSysexStartOrContinue, StatusSysexStart, w[0], w[1]), true
	}

	switch s.fill(w[:]) {
	case 3:
		return NewPacket(s.cable, CINSysexStartOrContinue, w[:]...), true
	case 2:
		s.done = true
		return NewPacket(s.cable, CINSysexEndsNext3, w[0], w[1], StatusSysexEnd), true
	case 1:
		s.done = true
		return NewPacket(s.cable, CINSysexEndsNext2, w[0], StatusSysexEnd), true
	}
	s.done = true
	return NewPacket(s.cable, CINSystemCommonLen1, StatusSysexEnd), true
}

// Packets drains the remaining packets.
func (s *Sysex) Packets() []Packet {
	return drain(s.Next)
}

// SysexSeq produces several sysex messages back to back.
type SysexSeq struct {
	msgs []*Sysex
	i    int
}

// NewSysexSeq chains msgs in order.
func NewSysexSeq(msgs ...*Sysex) *SysexSeq {
	return &SysexSeq{msgs: msgs}
}

// Next returns the next packet of the current message, moving to the
// following message when it is exhausted.
func (q *SysexSeq) Next() (Packet, bool) {
	for q.i < len(q.msgs) {
		if p, ok := q.msgs[q.i].Next(); ok {
			return p, true
		}
		q.i++
	}
	return Packet{}, false
}

// Packets drains the remaining packets.
func (q *SysexSeq) Packets() []Packet {
	return drain(q.Next)
}

func drain(next func() (Packet, bool)) []Packet {
	var out []Packet
	for {
		p, ok := next()
		if !ok {
			return out
		}
		out = append(out, p)
	}
}

// Body returns the sysex body bytes described by tokens, without framing.
func Body(captures CaptureMap, tokens ...Token) []byte {
	s := NewSysex(0, tokens...).WithCaptures(captures)
	var out []byte
	for {
		b, ok := s.nextByte()
		if !ok {
			return out
		}
		out = append(out, b)
	}
}
