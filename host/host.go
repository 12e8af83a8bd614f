package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ardnew/usbmidi/host/hal"
	"github.com/ardnew/usbmidi/pkg"
)

// State is the host update state.
type State uint8

// Host states.
const (
	StateWaitForDevice State = iota
	StateWaitResetComplete
	StateRunning
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateWaitForDevice:
		return "WaitForDevice"
	case StateWaitResetComplete:
		return "WaitResetComplete"
	case StateRunning:
		return "Running"
	case StateError:
		return "Error"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Event is one serviced host interrupt.
type Event uint8

// Host events.
const (
	EventNone Event = iota
	EventDetached
	EventAttached
	EventRAMAccess
	EventUpstreamResume
	EventDownResume
	EventWakeUp
	EventReset
	EventStartOfFrame
)

// eventPriority lists host flags in service order.
var eventPriority = [...]struct {
	flag  hal.HostFlags
	event Event
}{
	{hal.FlagDetached, EventDetached},
	{hal.FlagAttached, EventAttached},
	{hal.FlagRAMAccess, EventRAMAccess},
	{hal.FlagUpstreamResume, EventUpstreamResume},
	{hal.FlagDownResume, EventDownResume},
	{hal.FlagWakeUp, EventWakeUp},
	{hal.FlagReset, EventReset},
	{hal.FlagStartOfFrame, EventStartOfFrame},
}

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventNone:
		return "None"
	case EventDetached:
		return "Detached"
	case EventAttached:
		return "Attached"
	case EventRAMAccess:
		return "RAMAccess"
	case EventUpstreamResume:
		return "UpstreamResume"
	case EventDownResume:
		return "DownResume"
	case EventWakeUp:
		return "WakeUp"
	case EventReset:
		return "Reset"
	case EventStartOfFrame:
		return "StartOfFrame"
	default:
		return fmt.Sprintf("Event(%d)", uint8(e))
	}
}

// Host drives a host-mode USB controller: it owns the pipe table and the
// address pool, enumerates the attached device and ticks class drivers.
type Host struct {
	ctrl  hal.Controller
	clock hal.Clock
	pipes *PipeTable

	addrs   *AddressPool
	drivers []Driver
	device  *Device
	state   State
	mutex   sync.RWMutex
}

// New creates a host over ctrl. A nil clock selects the system clock.
func New(ctrl hal.Controller, clock hal.Clock) *Host {
	if clock == nil {
		clock = hal.NewSystemClock()
	}
	return &Host{
		ctrl:  ctrl,
		clock: clock,
		pipes: NewPipeTable(ctrl, clock),
		addrs: NewAddressPool(),
		state: StateWaitForDevice,
	}
}

// Register adds a class driver. Drivers are offered devices in
// registration order.
func (h *Host) Register(d Driver) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if len(h.drivers) >= MaxDrivers {
		return fmt.Errorf("register driver: %w", pkg.ErrNoResources)
	}
	h.drivers = append(h.drivers, d)
	return nil
}

// State returns the current update state.
func (h *Host) State() State {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.state
}

func (h *Host) setState(s State) {
	h.mutex.Lock()
	prev := h.state
	h.state = s
	h.mutex.Unlock()
	if prev != s {
		pkg.LogDebug(pkg.ComponentHost, "state change", "from", prev, "to", s)
	}
}

// Device returns the attached device, or nil.
func (h *Host) Device() *Device {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.device
}

// Addresses returns the host's address pool.
func (h *Host) Addresses() *AddressPool {
	return h.addrs
}

// Reset resets the controller and forgets any attached device.
func (h *Host) Reset() {
	h.pipes.mu.Lock()
	h.ctrl.Reset()
	h.pipes.reset()
	h.pipes.mu.Unlock()
	h.setState(StateWaitForDevice)
}

// NextEvent services exactly one pending host interrupt flag, highest
// priority first, and clears it.
func (h *Host) NextEvent() Event {
	flags := h.ctrl.InterruptFlags()
	for _, p := range eventPriority {
		if flags&p.flag != 0 {
			h.ctrl.ClearInterruptFlags(p.flag)
			return p.event
		}
	}
	return EventNone
}

// Update services one host event. A failed attach is returned after the
// host has gone back to waiting for a device; the next attach starts
// enumeration from scratch.
func (h *Host) Update(ctx context.Context) error {
	ev := h.NextEvent()
	switch ev {
	case EventNone:
		return nil

	case EventDetached:
		h.detach()
		return nil

	case EventAttached:
		if h.Device() != nil {
			h.detach()
		}
		if err := h.attach(ctx); err != nil {
			pkg.LogWarn(pkg.ComponentHost, "enumeration failed", "error", err)
			h.setState(StateWaitForDevice)
			return err
		}
		h.setState(StateRunning)
		return nil

	case EventStartOfFrame:
		if h.State() == StateRunning {
			h.tick()
		}
		return nil

	default:
		pkg.LogDebug(pkg.ComponentHost, "unhandled event", "event", ev)
		return nil
	}
}

func (h *Host) tick() {
	h.mutex.RLock()
	drivers := h.drivers
	h.mutex.RUnlock()

	for _, d := range drivers {
		if err := d.Tick(h); err != nil {
			pkg.LogWarn(pkg.ComponentHost, "driver tick failed", "error", err)
		}
	}
}

func (h *Host) detach() {
	h.mutex.Lock()
	dev := h.device
	h.device = nil
	h.mutex.Unlock()

	if dev != nil {
		pkg.LogInfo(pkg.ComponentHost, "device detached", "address", dev.address)
		dev.mutex.RLock()
		drv := dev.driver
		dev.mutex.RUnlock()
		if drv != nil {
			drv.Disconnected(h, dev)
		}
		h.addrs.PutBack(dev.address)
	}
	h.Reset()
}

// attach resets the bus, starts frame generation and enumerates.
func (h *Host) attach(ctx context.Context) error {
	h.setState(StateWaitResetComplete)
	h.ctrl.BusReset()
	if err := h.waitResetComplete(ctx); err != nil {
		return err
	}
	h.ctrl.EnableSOF(true)
	return h.configureDevice()
}

// waitResetComplete polls the reset-complete flag, suspending between
// polls. Unlike pipe polling this is not timing critical.
func (h *Host) waitResetComplete(ctx context.Context) error {
	timer := time.NewTimer(resetTimeout)
	defer timer.Stop()
	ticker := time.NewTicker(resetPollInterval)
	defer ticker.Stop()

	for !h.ctrl.BusResetComplete() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("bus reset: %w", PipeErrHwTimeout)
		case <-ticker.C:
		}
	}
	h.ctrl.ClearInterruptFlags(hal.FlagReset)
	return nil
}

// configureDevice reads descriptors at the default address, assigns an
// address and offers the device to the registered drivers.
func (h *Host) configureDevice() error {
	dev := newDevice(h.ctrl.Speed())

	var desc [DeviceDescriptorSize]byte
	n, err := dev.GetDescriptor(h, DescriptorTypeDevice, 0, 0, desc[:])
	if err != nil {
		return fmt.Errorf("get device descriptor: %w", err)
	}
	if !ParseDeviceDescriptor(desc[:n], &dev.descriptor) {
		return fmt.Errorf("get device descriptor: %w", pkg.ErrDescriptorTooShort)
	}
	if mps := dev.descriptor.MaxPacketSize0; mps != 0 {
		dev.control.MaxPacketSize = uint16(mps)
	}

	addr, ok := h.addrs.TakeNext()
	if !ok {
		return pkg.ErrNoAddress
	}
	if err := h.assignAddress(dev, addr); err != nil {
		h.addrs.PutBack(addr)
		return err
	}

	var buf [ConfigBufferSize]byte
	n, err = h.readConfiguration(dev, buf[:])
	if err != nil {
		h.addrs.PutBack(addr)
		return err
	}

	pkg.LogInfo(pkg.ComponentHost, "device enumerated",
		"address", addr,
		"vendor", dev.descriptor.VendorID,
		"product", dev.descriptor.ProductID,
		"speed", dev.speed)

	parser := NewDescriptorParser(buf[:n])
	h.mutex.RLock()
	drivers := h.drivers
	h.mutex.RUnlock()

	for _, d := range drivers {
		parser.Rewind()
		claimed, err := d.Connected(h, dev, &dev.descriptor, parser)
		if err != nil {
			pkg.LogWarn(pkg.ComponentHost, "driver failed to connect", "error", err)
			continue
		}
		if claimed {
			dev.mutex.Lock()
			dev.driver = d
			dev.mutex.Unlock()
			break
		}
	}
	if !dev.Claimed() {
		pkg.LogInfo(pkg.ComponentHost, "no driver claimed device", "address", addr)
	}

	h.mutex.Lock()
	h.device = dev
	h.mutex.Unlock()
	return nil
}

func (h *Host) assignAddress(dev *Device, addr uint8) error {
	_, err := h.ControlTransfer(dev.control,
		RequestTypeOut|RequestTypeStandard|RequestTypeDevice,
		RequestSetAddress, uint16(addr), 0, nil)
	if err != nil {
		return fmt.Errorf("set address %d: %w", addr, err)
	}
	dev.address = addr
	dev.control.DeviceAddress = addr
	return nil
}

// readConfiguration fetches the first configuration descriptor set into
// buf, reading the header first to learn its total length.
func (h *Host) readConfiguration(dev *Device, buf []byte) (int, error) {
	n, err := dev.GetDescriptor(h, DescriptorTypeConfiguration, 0, 0, buf[:ConfigurationDescriptorSize])
	if err != nil {
		return 0, fmt.Errorf("get configuration header: %w", err)
	}
	if !ParseConfigurationDescriptor(buf[:n], &dev.config) {
		return 0, fmt.Errorf("get configuration header: %w", pkg.ErrDescriptorTooShort)
	}
	total := int(dev.config.TotalLength)
	if total > len(buf) {
		return 0, fmt.Errorf("configuration of %d bytes: %w", total, pkg.ErrDescriptorTooLong)
	}
	if total < ConfigurationDescriptorSize {
		return 0, fmt.Errorf("configuration of %d bytes: %w", total, pkg.ErrDescriptorTooShort)
	}

	n, err = dev.GetDescriptor(h, DescriptorTypeConfiguration, 0, 0, buf[:total])
	if err != nil {
		return 0, fmt.Errorf("get configuration: %w", err)
	}
	return n, nil
}

// ControlTransfer performs a control transfer on ep: SETUP, an optional
// data stage in the direction of requestType, and a STATUS stage in the
// opposite direction. It returns the data stage byte count.
func (h *Host) ControlTransfer(ep *Endpoint, requestType, request uint8, value, index uint16, buf []byte) (int, error) {
	setup := hal.SetupPacket{
		RequestType: requestType,
		Request:     request,
		Value:       value,
		Index:       index,
		Length:      uint16(len(buf)),
	}
	n, err := h.pipes.ControlTransfer(ep, &setup, buf)
	return n, newTransferError(err)
}

// InTransfer reads from ep until a short packet or until buf is full.
func (h *Host) InTransfer(ep *Endpoint, buf []byte) (int, error) {
	n, err := h.pipes.InTransfer(ep, buf)
	return n, newTransferError(err)
}

// OutTransfer writes all of buf to ep.
func (h *Host) OutTransfer(ep *Endpoint, buf []byte) (int, error) {
	n, err := h.pipes.OutTransfer(ep, buf)
	return n, newTransferError(err)
}
