package route

import (
	"slices"

	"github.com/ardnew/usbmidi/midi"
)

// Context carries one inbound packet batch through a route's filter chain.
// Filters may rewrite Packets, redirect the batch by setting Destination,
// record sysex captures in Tags and attach display lines to Strings.
type Context struct {
	Packets     []midi.Packet
	Destination *Interface
	Tags        midi.CaptureMap
	Strings     []string
}

// NewContext returns a context holding a copy of packets.
func NewContext(packets []midi.Packet) *Context {
	c := &Context{}
	c.Restart(packets)
	return c
}

// Restart clears the context and loads a copy of packets.
func (c *Context) Restart(packets []midi.Packet) {
	c.Packets = append(c.Packets[:0], packets...)
	c.Destination = nil
	c.Tags = nil
	c.Strings = c.Strings[:0]
}

// Clone returns a deep copy of the context.
func (c *Context) Clone() *Context {
	out := &Context{
		Packets: slices.Clone(c.Packets),
		Tags:    c.Tags.Clone(),
		Strings: slices.Clone(c.Strings),
	}
	if c.Destination != nil {
		d := *c.Destination
		out.Destination = &d
	}
	return out
}

// SetDestination redirects the batch to iface.
func (c *Context) SetDestination(iface Interface) {
	c.Destination = &iface
}

// Tag stores captured bytes under tag.
func (c *Context) Tag(tag midi.Tag, b []byte) {
	if c.Tags == nil {
		c.Tags = make(midi.CaptureMap)
	}
	c.Tags[tag] = b
}

// Display appends a display line.
func (c *Context) Display(s string) {
	c.Strings = append(c.Strings, s)
}

// Keep retains the packets for which keep returns true.
func (c *Context) Keep(keep func(midi.Packet) bool) {
	c.Packets = slices.DeleteFunc(c.Packets, func(p midi.Packet) bool {
		return !keep(p)
	})
}
