package midi

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardnew/usbmidi/host"
	"github.com/ardnew/usbmidi/host/hal"
	codec "github.com/ardnew/usbmidi/midi"
	"github.com/ardnew/usbmidi/pkg"
)

// Driver limits.
const (
	// TransferSize is the size of one bulk transfer in either direction.
	TransferSize = 64

	// DefaultQueueSize is the transmit queue capacity in packets.
	DefaultQueueSize = 256
)

// Handler receives the packets read from the device on one tick.
type Handler func(packets []codec.Packet)

// Stats counts driver traffic.
type Stats struct {
	Received    uint64 `json:"received"`
	Transmitted uint64 `json:"transmitted"`
	Dropped     uint64 `json:"dropped"`
}

// Driver is a USB-MIDI class driver. It claims the first MIDI streaming
// interface with a bulk IN and a bulk OUT endpoint, polls the IN endpoint
// on every tick and drains a bounded transmit queue to the OUT endpoint.
type Driver struct {
	mutex   sync.Mutex
	handler Handler

	dev   *host.Device
	iface uint8
	in    *host.Endpoint
	out   *host.Endpoint

	queue []codec.Packet
	limit int
	stats Stats

	rx [TransferSize]byte
	tx [TransferSize]byte
}

// New returns a driver delivering received packets to handler. A
// queueSize of 0 selects DefaultQueueSize.
func New(queueSize int, handler Handler) *Driver {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Driver{
		handler: handler,
		limit:   queueSize,
		queue:   make([]codec.Packet, 0, queueSize),
	}
}

// SetHandler replaces the receive handler.
func (d *Driver) SetHandler(handler Handler) {
	d.mutex.Lock()
	d.handler = handler
	d.mutex.Unlock()
}

// streaming describes a MIDI streaming interface found in a descriptor set.
type streaming struct {
	config uint8
	iface  uint8
	in     host.EndpointDescriptor
	out    host.EndpointDescriptor
	hasIn  bool
	hasOut bool
}

// findStreaming walks the descriptor set for a MIDI streaming interface
// with bulk endpoints in both directions.
func findStreaming(parser *host.DescriptorParser) (streaming, bool) {
	var s streaming
	inStreaming := false
	for d, ok := parser.Next(); ok; d, ok = parser.Next() {
		switch d.Type {
		case host.DescriptorTypeConfiguration:
			if c, ok := d.Configuration(); ok {
				s.config = c.ConfigurationValue
			}

		case host.DescriptorTypeInterface:
			if s.hasIn && s.hasOut {
				return s, true
			}
			iface, ok := d.Interface()
			inStreaming = ok &&
				iface.InterfaceClass == host.ClassAudio &&
				iface.InterfaceSubClass == host.SubclassMIDIStreaming
			if inStreaming {
				s.iface = iface.InterfaceNumber
				s.hasIn, s.hasOut = false, false
			}

		case host.DescriptorTypeEndpoint:
			if !inStreaming {
				continue
			}
			ep, ok := d.Endpoint()
			if !ok || ep.TransferType() != hal.TransferBulk {
				continue
			}
			if ep.IsIn() && !s.hasIn {
				s.in, s.hasIn = ep, true
			} else if !ep.IsIn() && !s.hasOut {
				s.out, s.hasOut = ep, true
			}
		}
	}
	return s, s.hasIn && s.hasOut
}

// Connected implements host.Driver.
func (d *Driver) Connected(h *host.Host, dev *host.Device, desc *host.DeviceDescriptor, parser *host.DescriptorParser) (bool, error) {
	s, ok := findStreaming(parser)
	if !ok {
		return false, nil
	}
	if err := dev.SetConfiguration(h, s.config); err != nil {
		return false, fmt.Errorf("set configuration %d: %w", s.config, err)
	}

	d.mutex.Lock()
	d.dev = dev
	d.iface = s.iface
	d.in = dev.Endpoint(&s.in)
	d.out = dev.Endpoint(&s.out)
	d.queue = d.queue[:0]
	d.mutex.Unlock()

	pkg.LogInfo(pkg.ComponentUSBMIDI, "device claimed",
		"vendor", desc.VendorID,
		"product", desc.ProductID,
		"interface", s.iface,
		"in", s.in.EndpointAddress,
		"out", s.out.EndpointAddress)
	return true, nil
}

// Disconnected implements host.Driver.
func (d *Driver) Disconnected(h *host.Host, dev *host.Device) {
	d.mutex.Lock()
	dropped := len(d.queue)
	d.dev = nil
	d.in = nil
	d.out = nil
	d.queue = d.queue[:0]
	d.stats.Dropped += uint64(dropped)
	d.mutex.Unlock()

	pkg.LogInfo(pkg.ComponentUSBMIDI, "device disconnected",
		"address", dev.Address(),
		"dropped", dropped)
}

// Ready reports whether a device is claimed.
func (d *Driver) Ready() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.dev != nil
}

// Stats returns the traffic counters.
func (d *Driver) Stats() Stats {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.stats
}

// Pending returns the number of queued transmit packets.
func (d *Driver) Pending() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.queue)
}

// Transmit queues packets for the next tick. The whole batch is rejected
// with ErrQueueFull if it does not fit.
func (d *Driver) Transmit(packets []codec.Packet) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.dev == nil {
		return pkg.ErrNoDevice
	}
	if len(d.queue)+len(packets) > d.limit {
		d.stats.Dropped += uint64(len(packets))
		return fmt.Errorf("%d packets: %w", len(packets), pkg.ErrQueueFull)
	}
	d.queue = append(d.queue, packets...)
	return nil
}

// idle reports whether an IN error only means the device had nothing to
// send.
func idle(err error) bool {
	return host.IsRetry(err) || errors.Is(err, host.PipeErrNaksExceeded)
}

// Tick implements host.Driver. It reads one IN transfer and writes one OUT
// transfer.
func (d *Driver) Tick(h *host.Host) error {
	d.mutex.Lock()
	in, out, handler := d.in, d.out, d.handler
	d.mutex.Unlock()
	if in == nil {
		return nil
	}

	var errs []error
	if err := d.poll(h, in, handler); err != nil {
		errs = append(errs, err)
	}
	if err := d.drain(h, out); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (d *Driver) poll(h *host.Host, in *host.Endpoint, handler Handler) error {
	n, err := h.InTransfer(in, d.rx[:])
	if err != nil {
		if idle(err) {
			return nil
		}
		return fmt.Errorf("bulk in: %w", err)
	}
	packets := codec.PacketsFromUSB(d.rx[:n])
	if len(packets) == 0 {
		return nil
	}

	d.mutex.Lock()
	d.stats.Received += uint64(len(packets))
	d.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentUSBMIDI, "received", "packets", len(packets))
	if handler != nil {
		handler(packets)
	}
	return nil
}

func (d *Driver) drain(h *host.Host, out *host.Endpoint) error {
	d.mutex.Lock()
	n := min(len(d.queue), TransferSize/codec.PacketSize)
	buf := codec.AppendUSB(d.tx[:0], d.queue[:n]...)
	d.mutex.Unlock()
	if n == 0 {
		return nil
	}

	_, err := h.OutTransfer(out, buf)
	if err != nil && idle(err) {
		// Busy device; retry on the next tick.
		return nil
	}

	d.mutex.Lock()
	// Transmit only appends, so the first n entries are the ones sent.
	n = min(n, len(d.queue))
	d.queue = append(d.queue[:0], d.queue[n:]...)
	if err != nil {
		d.stats.Dropped += uint64(n)
	} else {
		d.stats.Transmitted += uint64(n)
	}
	d.mutex.Unlock()

	if err != nil {
		return fmt.Errorf("bulk out: %w", err)
	}
	return nil
}
