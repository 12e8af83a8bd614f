package route

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ardnew/usbmidi/pkg"
)

// Transport identifies the kind of port behind an Interface.
type Transport uint8

// Transports.
const (
	TransportSerial Transport = iota
	TransportUSB
)

// String returns the transport name used in configuration.
func (t Transport) String() string {
	switch t {
	case TransportSerial:
		return "serial"
	case TransportUSB:
		return "usb"
	}
	return fmt.Sprintf("transport(%d)", uint8(t))
}

// Interface names one MIDI port: a UART or a USB-MIDI cable.
type Interface struct {
	Transport Transport
	Index     uint8
}

// Serial returns the interface for UART n.
func Serial(n uint8) Interface {
	return Interface{Transport: TransportSerial, Index: n}
}

// USB returns the interface for USB-MIDI port n.
func USB(n uint8) Interface {
	return Interface{Transport: TransportUSB, Index: n}
}

// String formats the interface as "serial:N" or "usb:N".
func (i Interface) String() string {
	return i.Transport.String() + ":" + strconv.Itoa(int(i.Index))
}

// MarshalText implements encoding.TextMarshaler.
func (i Interface) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Interface) UnmarshalText(text []byte) error {
	v, err := ParseInterface(string(text))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// ParseInterface parses "serial:N" or "usb:N".
func ParseInterface(s string) (Interface, error) {
	kind, index, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Interface{}, fmt.Errorf("%q: %w", s, pkg.ErrUnknownInterface)
	}
	n, err := strconv.ParseUint(index, 10, 8)
	if err != nil {
		return Interface{}, fmt.Errorf("%q: %w", s, pkg.ErrUnknownInterface)
	}
	switch strings.ToLower(kind) {
	case "serial":
		return Serial(uint8(n)), nil
	case "usb":
		return USB(uint8(n)), nil
	}
	return Interface{}, fmt.Errorf("%q: %w", s, pkg.ErrUnknownInterface)
}

// Direction says which side of a route a binding names.
type Direction uint8

// Directions.
const (
	DirSrc Direction = iota
	DirDst
)

// Binding is an interface used as a packet source or destination.
type Binding struct {
	Dir       Direction
	Interface Interface
}

// Src binds packets received on iface.
func Src(iface Interface) Binding {
	return Binding{Dir: DirSrc, Interface: iface}
}

// Dst binds packets to be transmitted on iface.
func Dst(iface Interface) Binding {
	return Binding{Dir: DirDst, Interface: iface}
}

// String formats the binding as "src(serial:0)" or "dst(usb:1)".
func (b Binding) String() string {
	if b.Dir == DirDst {
		return "dst(" + b.Interface.String() + ")"
	}
	return "src(" + b.Interface.String() + ")"
}

// ParseBinding builds a binding from a direction name ("src" or "dst")
// and an interface string.
func ParseBinding(dir, iface string) (Binding, error) {
	i, err := ParseInterface(iface)
	if err != nil {
		return Binding{}, err
	}
	switch strings.ToLower(dir) {
	case "src", "source", "":
		return Src(i), nil
	case "dst", "destination":
		return Dst(i), nil
	}
	return Binding{}, fmt.Errorf("binding direction %q: %w", dir, pkg.ErrInvalidParameter)
}
