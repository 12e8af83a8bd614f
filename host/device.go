package host

import (
	"sync"

	"github.com/ardnew/usbmidi/host/hal"
)

// Device is the enumerated peripheral. Its descriptors are filled in once
// during enumeration and are read-only afterwards; the active
// configuration and owning driver change under mutex.
type Device struct {
	address    uint8
	speed      hal.Speed
	control    *Endpoint
	descriptor DeviceDescriptor
	config     ConfigurationDescriptor

	mutex  sync.RWMutex
	active uint8
	driver Driver
}

func newDevice(speed hal.Speed) *Device {
	return &Device{
		speed:   speed,
		control: NewControlEndpoint(0, speed.MaxPacketSize0()),
	}
}

func (d *Device) Address() uint8 { return d.address }
func (d *Device) Speed() hal.Speed { return d.speed }
func (d *Device) Control() *Endpoint { return d.control }
func (d *Device) VendorID() uint16 { return d.descriptor.VendorID }
func (d *Device) ProductID() uint16 { return d.descriptor.ProductID }

// Descriptor returns a copy of the device descriptor.
func (d *Device) Descriptor() DeviceDescriptor {
	return d.descriptor
}

// Configuration returns the header of the first configuration.
func (d *Device) Configuration() ConfigurationDescriptor {
	return d.config
}

// Claimed reports whether a registered driver accepted the device.
func (d *Device) Claimed() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.driver != nil
}

// GetConfiguration returns the value of the last successful
// SET_CONFIGURATION, or 0 while unconfigured.
func (d *Device) GetConfiguration() uint8 {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.active
}

// Endpoint returns a data endpoint bound to the device address.
func (d *Device) Endpoint(desc *EndpointDescriptor) *Endpoint {
	return NewEndpoint(d.address, desc)
}

// request issues a standard request with no data stage on endpoint 0.
func (d *Device) request(h *Host, recipient, req uint8, value, index uint16) error {
	_, err := h.ControlTransfer(d.control,
		RequestTypeOut|RequestTypeStandard|recipient, req, value, index, nil)
	return err
}

// SetConfiguration selects configuration value and records it.
func (d *Device) SetConfiguration(h *Host, value uint8) error {
	if err := d.request(h, RequestTypeDevice, RequestSetConfiguration, uint16(value), 0); err != nil {
		return err
	}
	d.mutex.Lock()
	d.active = value
	d.mutex.Unlock()
	return nil
}

// GetDescriptor reads descriptor kind/index into data and returns the
// number of bytes the device sent.
func (d *Device) GetDescriptor(h *Host, kind, index uint8, langID uint16, data []byte) (int, error) {
	return h.ControlTransfer(d.control,
		RequestTypeIn|RequestTypeStandard|RequestTypeDevice,
		RequestGetDescriptor, uint16(kind)<<8|uint16(index), langID, data)
}

// ClearEndpointHalt sends CLEAR_FEATURE(ENDPOINT_HALT) for ep. Both
// toggles restart at DATA0 on success.
func (d *Device) ClearEndpointHalt(h *Host, ep *Endpoint) error {
	const featureEndpointHalt = 0
	err := d.request(h, RequestTypeEndpoint, RequestClearFeature,
		featureEndpointHalt, uint16(ep.Address))
	if err != nil {
		return err
	}
	ep.ResetToggles()
	return nil
}
