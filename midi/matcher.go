package midi

import (
	"fmt"
	"maps"
)

type tagKind uint8

const (
	tagChannel tagKind = iota
	tagVelocity
	tagDeviceID
	tagParamID
	tagControlID
	tagValueU7
	tagMsbValueU4
	tagLsbValueU4
	tagDump
)

// Tag names the semantic role of a captured sysex field. Tags are
// comparable and index a CaptureMap.
type Tag struct {
	kind tagKind
	n    uint16
}

// Scalar capture tags. Each captures one byte.
var (
	Channel    = Tag{kind: tagChannel}
	Velocity   = Tag{kind: tagVelocity}
	DeviceID   = Tag{kind: tagDeviceID}
	ParamID    = Tag{kind: tagParamID}
	ControlID  = Tag{kind: tagControlID}
	ValueU7    = Tag{kind: tagValueU7}
	MsbValueU4 = Tag{kind: tagMsbValueU4}
	LsbValueU4 = Tag{kind: tagLsbValueU4}
)

// Dump returns a tag capturing n bytes.
func Dump(n int) Tag {
	return Tag{kind: tagDump, n: uint16(n)}
}

// Size returns the number of bytes the tag captures.
func (t Tag) Size() int {
	if t.kind == tagDump {
		return int(t.n)
	}
	return 1
}

// String returns the tag name.
func (t Tag) String() string {
	switch t.kind {
	case tagChannel:
		return "Channel"
	case tagVelocity:
		return "Velocity"
	case tagDeviceID:
		return "DeviceId"
	case tagParamID:
		return "ParamId"
	case tagControlID:
		return "ControlId"
	case tagValueU7:
		return "ValueU7"
	case tagMsbValueU4:
		return "MsbValueU4"
	case tagLsbValueU4:
		return "LsbValueU4"
	case tagDump:
		return fmt.Sprintf("Dump(%d)", t.n)
	}
	return fmt.Sprintf("Tag(%d)", t.kind)
}

// CaptureMap holds the bytes captured for each tag of a matched pattern.
type CaptureMap map[Tag][]byte

// Byte returns the first captured byte for tag.
func (m CaptureMap) Byte(tag Tag) (byte, bool) {
	b := m[tag]
	if len(b) == 0 {
		return 0, false
	}
	return b[0], true
}

// TokenKind identifies a sysex pattern token.
type TokenKind uint8

// Token kinds.
const (
	TokenSeq TokenKind = iota
	TokenVal
	TokenBuf
	TokenCap
	TokenSkip
)

// Token is one element of a sysex pattern. The same token list describes
// both inbound matching (Matcher) and outbound generation (Sysex).
type Token struct {
	Kind  TokenKind
	Bytes []byte
	Tag   Tag
	N     int
}

// Seq matches or emits a literal byte sequence.
func Seq(b ...byte) Token {
	return Token{Kind: TokenSeq, Bytes: b}
}

// Val matches or emits a single literal byte.
func Val(b byte) Token {
	return Token{Kind: TokenVal, Bytes: []byte{b}}
}

// Buf emits a runtime byte buffer. When matching it behaves like Seq.
func Buf(b []byte) Token {
	return Token{Kind: TokenBuf, Bytes: b}
}

// Cap captures the tag's bytes when matching and emits them from a
// capture map when producing.
func Cap(tag Tag) Token {
	return Token{Kind: TokenCap, Tag: tag}
}

// Skip accepts n arbitrary bytes when matching and emits n zeros.
func Skip(n int) Token {
	return Token{Kind: TokenSkip, N: n}
}

// Len returns the number of body bytes the token spans.
func (t Token) Len() int {
	switch t.Kind {
	case TokenCap:
		return t.Tag.Size()
	case TokenSkip:
		return t.N
	}
	return len(t.Bytes)
}

// Matcher incrementally matches sysex messages against a token pattern,
// one packet at a time.
//
// A match is reported when the final packet of a sysex message arrives
// and every token was satisfied. Body bytes beyond the pattern are
// ignored. A mismatched byte fails the message; nothing further matches
// until the next message begins.
type Matcher struct {
	pattern []Token

	tok    int // current token
	pos    int // offset within the current token
	active bool
	failed bool

	captures CaptureMap
}

// NewMatcher returns a matcher for pattern.
func NewMatcher(pattern ...Token) *Matcher {
	return &Matcher{pattern: pattern}
}

// Pattern returns the matcher's token list.
func (m *Matcher) Pattern() []Token {
	return m.pattern
}

// Reset abandons any message in progress.
func (m *Matcher) Reset() {
	m.active = false
	m.failed = false
	m.tok = 0
	m.pos = 0
	m.captures = nil
}

func (m *Matcher) start() {
	m.Reset()
	m.active = true
	m.captures = make(CaptureMap)
	m.skipEmpty()
}

func (m *Matcher) skipEmpty() {
	for m.tok < len(m.pattern) && m.pattern[m.tok].Len() == 0 {
		m.tok++
	}
}

func (m *Matcher) advance(b byte) {
	if m.failed || m.tok >= len(m.pattern) {
		return
	}
	t := m.pattern[m.tok]
	switch t.Kind {
	case TokenSeq, TokenVal, TokenBuf:
		if t.Bytes[m.pos] != b {
			m.failed = true
			return
		}
	case TokenCap:
		m.captures[t.Tag] = append(m.captures[t.Tag], b)
	}
	m.pos++
	if m.pos >= t.Len() {
		m.tok++
		m.pos = 0
		m.skipEmpty()
	}
}

func (m *Matcher) finish() (CaptureMap, bool) {
	ok := !m.failed && m.tok >= len(m.pattern)
	captures := m.captures
	m.Reset()
	if !ok {
		return nil, false
	}
	return captures, true
}

// MatchPacket consumes one packet. It returns the captures when the packet
// completes a matching sysex message.
//
// Realtime packets may interleave a sysex message and leave the match
// state alone. Any other non-sysex packet abandons the message.
func (m *Matcher) MatchPacket(p Packet) (CaptureMap, bool) {
	ev, err := p.Event()
	if err != nil {
		m.Reset()
		return nil, false
	}
	switch ev.Kind {
	case KindRealtime:
		return nil, false

	case KindSysexBegin:
		m.start()
		m.feed(ev)
		return nil, false

	case KindSysexCont:
		if m.active {
			m.feed(ev)
		}
		return nil, false

	case KindSysexEnd, KindSysexEnd1, KindSysexEnd2:
		if !m.active {
			return nil, false
		}
		m.feed(ev)
		return m.finish()

	case KindSysexEmpty, KindSysexSingleByte:
		m.start()
		m.feed(ev)
		return m.finish()
	}
	m.Reset()
	return nil, false
}

func (m *Matcher) feed(ev Event) {
	for _, b := range ev.Bytes() {
		m.advance(b)
	}
}

// Match runs a complete packet sequence through a fresh matcher and
// returns the captures of the first matching message.
func Match(pattern []Token, packets []Packet) (CaptureMap, bool) {
	m := NewMatcher(pattern...)
	for _, p := range packets {
		if c, ok := m.MatchPacket(p); ok {
			return c, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the map.
func (m CaptureMap) Clone() CaptureMap {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = append([]byte(nil), v...)
	}
	return out
}
