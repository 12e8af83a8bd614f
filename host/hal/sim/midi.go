package sim

import (
	"sync"

	"github.com/ardnew/usbmidi/host/hal"
)

// Standard requests understood by MIDIDevice.
const (
	reqSetAddress       = 0x05
	reqGetDescriptor    = 0x06
	reqGetConfiguration = 0x08
	reqSetConfiguration = 0x09
	reqClearFeature     = 0x01
)

// Bulk endpoint numbers and packet size of MIDIDevice.
const (
	MIDIEndpointOut = 0x01
	MIDIEndpointIn  = 0x81
	MIDIPacketSize  = 64
)

// MIDIDevice is a full-speed USB-MIDI streaming function with one bulk OUT
// and one bulk IN endpoint. Event packets queued with Send are returned on
// IN polls; the IN endpoint NAKs while the queue is empty. OUT data is
// collected for TakeReceived.
type MIDIDevice struct {
	mu sync.Mutex

	device []byte
	config []byte

	address       uint8
	configuration uint8

	setup       hal.SetupPacket
	stalled     bool
	ctrlData    []byte
	ctrlOffset  int
	pendingAddr int

	in       []byte
	received []byte
}

// NewMIDIDevice returns a device with the given vendor and product IDs.
func NewMIDIDevice(vendor, product uint16) *MIDIDevice {
	return &MIDIDevice{
		device:      midiDeviceDescriptor(vendor, product),
		config:      midiConfigDescriptor(),
		pendingAddr: -1,
	}
}

// ConfigDescriptor returns the full configuration descriptor set.
func (d *MIDIDevice) ConfigDescriptor() []byte {
	return append([]byte(nil), d.config...)
}

// Address returns the device's current bus address.
func (d *MIDIDevice) Address() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.address
}

// Configuration returns the selected configuration value (0 if none).
func (d *MIDIDevice) Configuration() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configuration
}

// Send queues raw USB-MIDI event bytes for the host to read.
func (d *MIDIDevice) Send(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.in = append(d.in, data...)
}

// Pending returns the number of queued bytes not yet read by the host.
func (d *MIDIDevice) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.in)
}

// TakeReceived returns and clears the bytes written by the host.
func (d *MIDIDevice) TakeReceived() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.received
	d.received = nil
	return out
}

// Reset implements Device.
func (d *MIDIDevice) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.address = 0
	d.configuration = 0
	d.stalled = false
	d.ctrlData = nil
	d.ctrlOffset = 0
	d.pendingAddr = -1
}

// Handle implements Device.
func (d *MIDIDevice) Handle(tx *Transaction) Response {
	d.mu.Lock()
	defer d.mu.Unlock()

	if tx.Address != d.address {
		return Response{Result: Timeout}
	}
	switch tx.Endpoint {
	case 0:
		return d.control(tx)
	case MIDIEndpointOut & 0x0f:
		if d.configuration == 0 {
			return Response{Result: Stall}
		}
		return d.bulk(tx)
	default:
		return Response{Result: Stall}
	}
}

func (d *MIDIDevice) control(tx *Transaction) Response {
	switch tx.Token {
	case hal.TokenSetup:
		if !hal.ParseSetupPacket(tx.Data, &d.setup) {
			return Response{Result: Fail}
		}
		d.stalled = false
		d.ctrlData = nil
		d.ctrlOffset = 0
		d.request()
		return Response{Result: ACK}

	case hal.TokenIn:
		if d.stalled {
			return Response{Result: Stall}
		}
		if d.setup.IsIn() {
			end := min(d.ctrlOffset+int(tx.MaxPacketSize), len(d.ctrlData))
			chunk := d.ctrlData[d.ctrlOffset:end]
			d.ctrlOffset = end
			return Response{Result: ACK, Data: chunk}
		}
		// Status stage of a host-to-device request.
		d.complete()
		return Response{Result: ACK}

	case hal.TokenOut:
		if d.stalled {
			return Response{Result: Stall}
		}
		return Response{Result: ACK}
	}
	return Response{Result: Stall}
}

// request decodes a SETUP packet and prepares the data stage.
func (d *MIDIDevice) request() {
	s := &d.setup
	switch s.Request {
	case reqGetDescriptor:
		var desc []byte
		switch s.Value >> 8 {
		case 0x01:
			desc = d.device
		case 0x02:
			desc = d.config
		default:
			d.stalled = true
			return
		}
		d.ctrlData = desc[:min(len(desc), int(s.Length))]
	case reqGetConfiguration:
		d.ctrlData = []byte{d.configuration}
	case reqSetAddress:
		d.pendingAddr = int(s.Value & 0x7f)
	case reqSetConfiguration:
		if s.Value > 1 {
			d.stalled = true
		}
	case reqClearFeature:
	default:
		d.stalled = true
	}
}

// complete applies a host-to-device request once its status stage is
// acknowledged.
func (d *MIDIDevice) complete() {
	switch d.setup.Request {
	case reqSetAddress:
		if d.pendingAddr >= 0 {
			d.address = uint8(d.pendingAddr)
			d.pendingAddr = -1
		}
	case reqSetConfiguration:
		d.configuration = uint8(d.setup.Value)
	}
}

func (d *MIDIDevice) bulk(tx *Transaction) Response {
	switch tx.Token {
	case hal.TokenIn:
		if len(d.in) == 0 {
			return Response{Result: NAK}
		}
		n := min(len(d.in), int(tx.MaxPacketSize))
		chunk := append([]byte(nil), d.in[:n]...)
		d.in = d.in[n:]
		return Response{Result: ACK, Data: chunk}
	case hal.TokenOut:
		d.received = append(d.received, tx.Data...)
		return Response{Result: ACK}
	}
	return Response{Result: Stall}
}

func midiDeviceDescriptor(vendor, product uint16) []byte {
	return []byte{
		18, 0x01, 0x00, 0x02, // bLength, DEVICE, bcdUSB 2.00
		0x00, 0x00, 0x00, // class defined per interface
		MIDIPacketSize,
		byte(vendor), byte(vendor >> 8),
		byte(product), byte(product >> 8),
		0x00, 0x01, // bcdDevice
		0, 0, 0, // no strings
		1, // bNumConfigurations
	}
}

func midiConfigDescriptor() []byte {
	streaming := [][]byte{
		// Embedded and external MIDI IN jacks
		{6, 0x24, 0x02, 0x01, 0x01, 0},
		{6, 0x24, 0x02, 0x02, 0x02, 0},
		// Embedded and external MIDI OUT jacks
		{9, 0x24, 0x03, 0x01, 0x03, 1, 0x02, 0x01, 0},
		{9, 0x24, 0x03, 0x02, 0x04, 1, 0x01, 0x01, 0},
		// Bulk OUT and its class-specific descriptor
		{9, 0x05, MIDIEndpointOut, 0x02, MIDIPacketSize, 0, 0, 0, 0},
		{5, 0x25, 0x01, 1, 0x01},
		// Bulk IN and its class-specific descriptor
		{9, 0x05, MIDIEndpointIn, 0x02, MIDIPacketSize, 0, 0, 0, 0},
		{5, 0x25, 0x01, 1, 0x03},
	}
	msLen := 7
	for _, b := range streaming {
		msLen += len(b)
	}

	parts := [][]byte{
		{9, 0x02, 0, 0, 2, 1, 0, 0x80, 50},
		// Audio control interface and header
		{9, 0x04, 0, 0, 0, 0x01, 0x01, 0, 0},
		{9, 0x24, 0x01, 0x00, 0x01, 9, 0, 1, 1},
		// MIDI streaming interface and header
		{9, 0x04, 1, 0, 2, 0x01, 0x03, 0, 0},
		{7, 0x24, 0x01, 0x00, 0x01, byte(msLen), byte(msLen >> 8)},
	}
	parts = append(parts, streaming...)

	var out []byte
	for _, b := range parts {
		out = append(out, b...)
	}
	out[2] = byte(len(out))
	out[3] = byte(len(out) >> 8)
	return out
}
