package beatstep

import (
	"fmt"

	"github.com/ardnew/usbmidi/midi"
	"github.com/ardnew/usbmidi/pkg"
	"github.com/ardnew/usbmidi/route"
)

// ID is the Arturia manufacturer and BeatStep device header.
var ID = []byte{0x00, 0x20, 0x6B, 0x7F, 0x42}

// Commands following the header.
const (
	CmdGet = 0x01
	CmdSet = 0x02
)

// Parameter ids of a control.
const (
	ParamMode    = 0x01
	ParamChannel = 0x02
	ParamCC      = 0x03
	ParamMin     = 0x04
	ParamMax     = 0x05
	ParamOption  = 0x06
)

// First control id of each control group.
const (
	ControlEncoder = 0x20
	ControlKnob    = 0x30
	ControlPad     = 0x70
)

// Param is one control parameter value.
type Param struct {
	Param   byte `json:"param"`
	Control byte `json:"control"`
	Value   byte `json:"value"`
}

// String returns a display line for the parameter.
func (p Param) String() string {
	return fmt.Sprintf("beatstep param=%#02x control=%#02x value=%d",
		p.Param, p.Control, p.Value)
}

func check7(name string, bs ...byte) error {
	for _, b := range bs {
		if b > 0x7F {
			return fmt.Errorf("beatstep %s %#02x: %w", name, b, pkg.ErrInvalidParameter)
		}
	}
	return nil
}

// Set returns the message storing p.
func Set(cable uint8, p Param) (*midi.Sysex, error) {
	if err := check7("set", p.Param, p.Control, p.Value); err != nil {
		return nil, err
	}
	return midi.NewSysex(cable,
		midi.Seq(ID...),
		midi.Seq(CmdSet, 0x00),
		midi.Buf([]byte{p.Param, p.Control, p.Value}),
	), nil
}

// Get returns the message querying param of control.
func Get(cable uint8, param, control byte) (*midi.Sysex, error) {
	if err := check7("get", param, control); err != nil {
		return nil, err
	}
	return midi.NewSysex(cable,
		midi.Seq(ID...),
		midi.Seq(CmdGet, 0x00),
		midi.Buf([]byte{param, control}),
	), nil
}

// ReplyPattern matches the device's answer to Get.
func ReplyPattern() []midi.Token {
	return []midi.Token{
		midi.Seq(ID...),
		midi.Seq(CmdSet, 0x00),
		midi.Cap(midi.ParamID),
		midi.Cap(midi.ControlID),
		midi.Cap(midi.ValueU7),
	}
}

// ParamFrom extracts a reply from captures.
func ParamFrom(caps midi.CaptureMap) (Param, bool) {
	var p Param
	var ok bool
	if p.Param, ok = caps.Byte(midi.ParamID); !ok {
		return p, false
	}
	if p.Control, ok = caps.Byte(midi.ControlID); !ok {
		return p, false
	}
	if p.Value, ok = caps.Byte(midi.ValueU7); !ok {
		return p, false
	}
	return p, true
}

// ParamFilter passes batches completing a parameter reply.
type ParamFilter struct {
	match *route.SysexMatcher
}

// CaptureParam returns a route filter for parameter replies.
func CaptureParam() *ParamFilter {
	return &ParamFilter{match: route.MatchSysex(ReplyPattern()...)}
}

// Filter implements route.Filter.
func (f *ParamFilter) Filter(ctx *route.Context) (bool, error) {
	ok, err := f.match.Filter(ctx)
	if err != nil || !ok {
		return ok, err
	}
	p, ok := ParamFrom(ctx.Tags)
	if !ok {
		return false, nil
	}
	ctx.Display(p.String())
	return true, nil
}
