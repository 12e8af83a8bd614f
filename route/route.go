package route

import (
	"strings"
	"sync/atomic"

	"github.com/ardnew/usbmidi/midi"
)

// Handle identifies a registered route. Handles are unique for the life
// of the process, across all routers.
type Handle uint64

var lastHandle atomic.Uint64

func nextHandle() Handle {
	return Handle(lastHandle.Add(1))
}

// Filter inspects or rewrites a context. Returning false discards the
// batch for this route. An error is logged; whether it halts the route
// depends on the router's filter policy.
type Filter interface {
	Filter(ctx *Context) (bool, error)
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(ctx *Context) (bool, error)

// Filter calls f(ctx).
func (f FilterFunc) Filter(ctx *Context) (bool, error) {
	return f(ctx)
}

// Sink transmits packets on one interface.
type Sink interface {
	Transmit(packets []midi.Packet) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(packets []midi.Packet) error

// Transmit calls f(packets).
func (f SinkFunc) Transmit(packets []midi.Packet) error {
	return f(packets)
}

// Route connects an optional source to an optional destination through an
// ordered filter chain.
//
// A route with a source is an ingress route: it runs for every batch
// received on the source and forwards to its destination. A route with
// only a destination is an egress route: it runs for every batch sent to
// the destination.
type Route struct {
	Name        string
	Source      *Interface
	Destination *Interface
	Filters     []Filter
}

// Link returns a route forwarding everything from src to dst.
func Link(src, dst Interface) Route {
	return Route{Source: &src, Destination: &dst}
}

// FromPort returns an ingress route without a static destination. A
// filter must set the context destination for packets to go anywhere.
func FromPort(src Interface) Route {
	return Route{Source: &src}
}

// ToPort returns an egress route for dst.
func ToPort(dst Interface) Route {
	return Route{Destination: &dst}
}

// Filter returns a copy of r with filters appended to its chain.
func (r Route) Filter(filters ...Filter) Route {
	r.Filters = append(append([]Filter(nil), r.Filters...), filters...)
	return r
}

// Named returns a copy of r with a display name.
func (r Route) Named(name string) Route {
	r.Name = name
	return r
}

// String formats the route as "source -> destination".
func (r Route) String() string {
	var b strings.Builder
	if r.Name != "" {
		b.WriteString(r.Name)
		b.WriteString(": ")
	}
	if r.Source != nil {
		b.WriteString(r.Source.String())
	} else {
		b.WriteString("*")
	}
	b.WriteString(" -> ")
	if r.Destination != nil {
		b.WriteString(r.Destination.String())
	} else {
		b.WriteString("*")
	}
	return b.String()
}
