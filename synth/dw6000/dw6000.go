package dw6000

import (
	"encoding/hex"
	"fmt"

	"github.com/ardnew/usbmidi/midi"
	"github.com/ardnew/usbmidi/pkg"
	"github.com/ardnew/usbmidi/route"
)

// ID is the Korg exclusive header for a DW-6000 on channel 1.
var ID = []byte{0x42, 0x30, 0x04}

// Function codes following the header.
const (
	FuncDumpRequest = 0x10
	FuncDump        = 0x40
	FuncWrite       = 0x41
)

// DumpSize is the number of parameter bytes in a program dump.
const DumpSize = 26

// DumpTag is the capture tag holding the dump bytes.
var DumpTag = midi.Dump(DumpSize)

// Patch is the parameter block of one program.
type Patch [DumpSize]byte

// String returns the patch bytes in hex.
func (p Patch) String() string {
	return hex.EncodeToString(p[:])
}

// DumpRequestTokens requests the edit buffer.
func DumpRequestTokens() []midi.Token {
	return []midi.Token{midi.Seq(ID...), midi.Val(FuncDumpRequest)}
}

// DumpPattern matches a program dump and captures its parameters.
func DumpPattern() []midi.Token {
	return []midi.Token{midi.Seq(ID...), midi.Val(FuncDump), midi.Cap(DumpTag)}
}

// DumpRequest returns the dump request message on cable.
func DumpRequest(cable uint8) *midi.Sysex {
	return midi.NewSysex(cable, DumpRequestTokens()...)
}

// WriteParameter returns a message setting param to value.
func WriteParameter(cable uint8, param, value byte) (*midi.Sysex, error) {
	if param > 0x7F || value > 0x7F {
		return nil, fmt.Errorf("dw6000 param %#02x value %#02x: %w",
			param, value, pkg.ErrInvalidParameter)
	}
	return midi.NewSysex(cable,
		midi.Seq(ID...),
		midi.Val(FuncWrite),
		midi.Buf([]byte{param, value}),
	), nil
}

// Dump returns a program dump message carrying p, as the synth sends it.
func Dump(cable uint8, p Patch) (*midi.Sysex, error) {
	for i, b := range p {
		if b > 0x7F {
			return nil, fmt.Errorf("dw6000 patch byte %d = %#02x: %w",
				i, b, pkg.ErrInvalidParameter)
		}
	}
	caps := midi.CaptureMap{DumpTag: p[:]}
	return midi.NewSysex(cable, DumpPattern()...).WithCaptures(caps), nil
}

// PatchFrom extracts a patch from captures.
func PatchFrom(caps midi.CaptureMap) (Patch, bool) {
	var p Patch
	b, ok := caps[DumpTag]
	if !ok || len(b) != DumpSize {
		return p, false
	}
	copy(p[:], b)
	return p, true
}

// DumpFilter passes batches that complete a program dump, storing the
// dump in the context tags and adding a display line.
type DumpFilter struct {
	match *route.SysexMatcher
}

// CaptureDump returns a route filter for program dumps.
func CaptureDump() *DumpFilter {
	return &DumpFilter{match: route.MatchSysex(DumpPattern()...)}
}

// Filter implements route.Filter.
func (f *DumpFilter) Filter(ctx *route.Context) (bool, error) {
	ok, err := f.match.Filter(ctx)
	if err != nil || !ok {
		return ok, err
	}
	p, ok := PatchFrom(ctx.Tags)
	if !ok {
		return false, nil
	}
	pkg.LogDebug(pkg.ComponentSysex, "dw6000 dump captured", "patch", p)
	ctx.Display("dw6000 dump " + p.String())
	return true, nil
}
