package host

import "github.com/ardnew/usbmidi/host/hal"

// Endpoint is the host's view of one device endpoint.
type Endpoint struct {
	// DeviceAddress is the 7-bit bus address; 0 is the default address.
	DeviceAddress uint8

	// Address is the endpoint number with the direction in bit 7.
	Address uint8

	// MaxPacketSize is wMaxPacketSize.
	MaxPacketSize uint16

	// Type is the transfer type.
	Type hal.TransferType

	// Interval is the polling interval for interrupt endpoints.
	Interval uint8

	toggleIn  bool
	toggleOut bool
}

// NewControlEndpoint returns endpoint 0 of the device at addr.
func NewControlEndpoint(addr uint8, maxPacketSize uint16) *Endpoint {
	return &Endpoint{
		DeviceAddress: addr,
		MaxPacketSize: maxPacketSize,
		Type:          hal.TransferControl,
	}
}

// NewEndpoint builds an endpoint from its descriptor.
func NewEndpoint(addr uint8, desc *EndpointDescriptor) *Endpoint {
	return &Endpoint{
		DeviceAddress: addr,
		Address:       desc.EndpointAddress,
		MaxPacketSize: desc.MaxPacketSize,
		Type:          desc.TransferType(),
		Interval:      desc.Interval,
	}
}

// Number returns the endpoint number (0-15).
func (e *Endpoint) Number() uint8 {
	return e.Address & 0x0f
}

// IsIn returns true if the endpoint direction is device-to-host.
func (e *Endpoint) IsIn() bool {
	return e.Address&EndpointDirectionIn != 0
}

// Toggle returns the data PID expected for the next transaction in the
// given token direction (false=DATA0, true=DATA1).
func (e *Endpoint) Toggle(token hal.Token) bool {
	if token == hal.TokenIn {
		return e.toggleIn
	}
	return e.toggleOut
}

// SetToggle forces the data PID for one direction.
func (e *Endpoint) SetToggle(token hal.Token, toggle bool) {
	if token == hal.TokenIn {
		e.toggleIn = toggle
	} else {
		e.toggleOut = toggle
	}
}

// FlipToggle advances the data PID after an acknowledged packet.
func (e *Endpoint) FlipToggle(token hal.Token) {
	e.SetToggle(token, !e.Toggle(token))
}

// ResetToggles returns both directions to DATA0.
func (e *Endpoint) ResetToggles() {
	e.toggleIn = false
	e.toggleOut = false
}
