package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ardnew/usbmidi/host/hal"
	"github.com/ardnew/usbmidi/host/hal/sim"
	"github.com/ardnew/usbmidi/pkg"
)

// =============================================================================
// Mock Driver for Testing
// =============================================================================

// mockDriver records the calls the host makes on a driver.
type mockDriver struct {
	claim   bool
	err     error
	tickErr error

	connected    int
	disconnected int
	ticks        int
	firstType    uint8
	descriptors  int
	device       *Device
}

func (m *mockDriver) Connected(h *Host, dev *Device, desc *DeviceDescriptor, parser *DescriptorParser) (bool, error) {
	m.connected++
	m.device = dev
	if d, ok := parser.Next(); ok {
		m.firstType = d.Type
		m.descriptors = 1
	}
	for _, ok := parser.Next(); ok; _, ok = parser.Next() {
		m.descriptors++
	}
	if m.err != nil {
		return false, m.err
	}
	return m.claim, nil
}

func (m *mockDriver) Disconnected(h *Host, dev *Device) {
	m.disconnected++
}

func (m *mockDriver) Tick(h *Host) error {
	m.ticks++
	return m.tickErr
}

// =============================================================================
// Helpers
// =============================================================================

func newTestHost() (*Host, *sim.Controller) {
	ctrl := sim.New(0)
	ctrl.SetResetPolls(1)
	return New(ctrl, sim.NewClock(time.Microsecond)), ctrl
}

// attach connects dev and runs the host until the attach event is handled.
func attach(t *testing.T, h *Host, ctrl *sim.Controller, dev sim.Device, speed hal.Speed) error {
	t.Helper()
	ctrl.Attach(dev, speed)
	return h.Update(context.Background())
}

// descriptorDevice answers GET_DESCRIPTOR from fixed buffers and ACKs
// everything else.
func descriptorDevice(device, config []byte) sim.Device {
	var setup hal.SetupPacket
	var data []byte
	return sim.DeviceFunc(func(tx *sim.Transaction) sim.Response {
		switch tx.Token {
		case hal.TokenSetup:
			hal.ParseSetupPacket(tx.Data, &setup)
			data = nil
			if setup.Request == RequestGetDescriptor {
				src := device
				if setup.Value>>8 == DescriptorTypeConfiguration {
					src = config
				}
				data = src[:min(len(src), int(setup.Length))]
			}
		case hal.TokenIn:
			n := min(len(data), int(tx.MaxPacketSize))
			chunk := data[:n]
			data = data[n:]
			return sim.Response{Result: sim.ACK, Data: chunk}
		}
		return sim.Response{Result: sim.ACK}
	})
}

var testDeviceDescriptor = []byte{
	18, 0x01, 0x00, 0x02, 0, 0, 0, 64,
	0x34, 0x12, 0x78, 0x56, 0x00, 0x01, 0, 0, 0, 1,
}

// =============================================================================
// State and Event Tests
// =============================================================================

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateWaitForDevice, "WaitForDevice"},
		{StateWaitResetComplete, "WaitResetComplete"},
		{StateRunning, "Running"},
		{StateError, "Error"},
		{State(42), "State(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State.String() = %q, want %q", got, tt.want)
		}
	}
}

func TestHost_NextEventPriority(t *testing.T) {
	h, ctrl := newTestHost()
	ctrl.Raise(hal.FlagStartOfFrame | hal.FlagAttached | hal.FlagDetached | hal.FlagWakeUp)

	want := []Event{EventDetached, EventAttached, EventWakeUp, EventStartOfFrame, EventNone}
	for i, w := range want {
		if got := h.NextEvent(); got != w {
			t.Errorf("event %d = %v, want %v", i, got, w)
		}
	}
	if ctrl.InterruptFlags() != 0 {
		t.Errorf("flags left pending: %#x", ctrl.InterruptFlags())
	}
}

func TestHost_UpdateIdle(t *testing.T) {
	h, _ := newTestHost()
	if err := h.Update(context.Background()); err != nil {
		t.Errorf("Update() error = %v", err)
	}
	if h.State() != StateWaitForDevice {
		t.Errorf("State() = %v, want WaitForDevice", h.State())
	}
}

// =============================================================================
// Driver Registration Tests
// =============================================================================

func TestHost_RegisterLimit(t *testing.T) {
	h, _ := newTestHost()
	for i := 0; i < MaxDrivers; i++ {
		if err := h.Register(&mockDriver{}); err != nil {
			t.Fatalf("Register() #%d error = %v", i, err)
		}
	}
	if err := h.Register(&mockDriver{}); !errors.Is(err, pkg.ErrNoResources) {
		t.Errorf("Register() error = %v, want ErrNoResources", err)
	}
}

// =============================================================================
// Enumeration Tests
// =============================================================================

func TestHost_Enumerate(t *testing.T) {
	h, ctrl := newTestHost()
	drv := &mockDriver{claim: true}
	h.Register(drv)

	dev := sim.NewMIDIDevice(0x1209, 0x0001)
	if err := attach(t, h, ctrl, dev, hal.SpeedFull); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if h.State() != StateRunning {
		t.Errorf("State() = %v, want Running", h.State())
	}
	if !ctrl.SOFEnabled() {
		t.Error("SOF not enabled after attach")
	}
	if dev.Address() != 1 {
		t.Errorf("device address = %d, want 1", dev.Address())
	}

	d := h.Device()
	if d == nil {
		t.Fatal("Device() = nil")
	}
	if d.Address() != 1 || d.VendorID() != 0x1209 || d.ProductID() != 0x0001 {
		t.Errorf("device = addr %d %04x:%04x", d.Address(), d.VendorID(), d.ProductID())
	}
	if d.Configuration().TotalLength != uint16(len(dev.ConfigDescriptor())) {
		t.Errorf("TotalLength = %d", d.Configuration().TotalLength)
	}
	if !d.Claimed() {
		t.Error("device not claimed")
	}
	if drv.connected != 1 || drv.firstType != DescriptorTypeConfiguration {
		t.Errorf("driver connected=%d firstType=%#x", drv.connected, drv.firstType)
	}
	if !h.Addresses().InUse(1) {
		t.Error("address 1 not allocated")
	}
}

func TestHost_EnumerateLowSpeed(t *testing.T) {
	h, ctrl := newTestHost()
	if err := attach(t, h, ctrl, sim.NewMIDIDevice(1, 2), hal.SpeedLow); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	log := ctrl.Transactions()
	if log[0].MaxPacketSize != 8 {
		t.Errorf("first transaction packet size = %d, want 8", log[0].MaxPacketSize)
	}
	if h.Device().Control().MaxPacketSize != 64 {
		t.Errorf("control packet size = %d, want 64 from descriptor",
			h.Device().Control().MaxPacketSize)
	}
}

func TestHost_OfferLoop(t *testing.T) {
	h, ctrl := newTestHost()
	failing := &mockDriver{err: errors.New("unsupported")}
	declining := &mockDriver{}
	claiming := &mockDriver{claim: true}
	never := &mockDriver{claim: true}
	for _, d := range []*mockDriver{failing, declining, claiming, never} {
		h.Register(d)
	}

	if err := attach(t, h, ctrl, sim.NewMIDIDevice(1, 2), hal.SpeedFull); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	for name, d := range map[string]*mockDriver{"failing": failing, "declining": declining, "claiming": claiming} {
		if d.connected != 1 {
			t.Errorf("%s driver offered %d times, want 1", name, d.connected)
		}
		if d.firstType != DescriptorTypeConfiguration || d.descriptors != failing.descriptors {
			t.Errorf("%s driver saw %d descriptors from %#x, want full set", name, d.descriptors, d.firstType)
		}
	}
	if never.connected != 0 {
		t.Error("offer loop continued after a claim")
	}
}

func TestHost_Unclaimed(t *testing.T) {
	h, ctrl := newTestHost()
	h.Register(&mockDriver{})
	if err := attach(t, h, ctrl, sim.NewMIDIDevice(1, 2), hal.SpeedFull); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if h.State() != StateRunning {
		t.Errorf("State() = %v, want Running", h.State())
	}
	if h.Device().Claimed() {
		t.Error("device claimed without a claiming driver")
	}
}

func TestHost_EnumerateFailure(t *testing.T) {
	tests := []struct {
		name    string
		dev     sim.Device
		wantErr error
	}{
		{
			name: "device times out",
			dev: sim.DeviceFunc(func(tx *sim.Transaction) sim.Response {
				return sim.Response{Result: sim.Timeout}
			}),
			wantErr: PipeErrHwTimeout,
		},
		{
			name:    "configuration too long",
			dev:     descriptorDevice(testDeviceDescriptor, []byte{9, 0x02, 0x2C, 0x01, 1, 1, 0, 0x80, 50}),
			wantErr: pkg.ErrDescriptorTooLong,
		},
		{
			name:    "configuration too short",
			dev:     descriptorDevice(testDeviceDescriptor, []byte{9, 0x02}),
			wantErr: pkg.ErrDescriptorTooShort,
		},
		{
			name:    "device descriptor too short",
			dev:     descriptorDevice(testDeviceDescriptor[:8], nil),
			wantErr: pkg.ErrDescriptorTooShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ctrl := newTestHost()
			drv := &mockDriver{claim: true}
			h.Register(drv)

			err := attach(t, h, ctrl, tt.dev, hal.SpeedFull)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Update() error = %v, want %v", err, tt.wantErr)
			}
			if h.State() != StateWaitForDevice {
				t.Errorf("State() = %v, want WaitForDevice", h.State())
			}
			if h.Device() != nil {
				t.Error("failed attach left a device")
			}
			if got := h.Addresses().Available(); got != MaxAddress {
				t.Errorf("Available() = %d, want %d (address leaked)", got, MaxAddress)
			}
			if drv.connected != 0 {
				t.Error("driver offered a device that failed enumeration")
			}
		})
	}
}

func TestHost_AddressExhausted(t *testing.T) {
	h, ctrl := newTestHost()
	for {
		if _, ok := h.Addresses().TakeNext(); !ok {
			break
		}
	}
	err := attach(t, h, ctrl, sim.NewMIDIDevice(1, 2), hal.SpeedFull)
	if !errors.Is(err, pkg.ErrNoAddress) {
		t.Fatalf("Update() error = %v, want ErrNoAddress", err)
	}
}

func TestHost_ResetCancelled(t *testing.T) {
	h, ctrl := newTestHost()
	ctrl.SetResetPolls(1 << 30)
	ctrl.Attach(sim.NewMIDIDevice(1, 2), hal.SpeedFull)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Update(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Update() error = %v, want context.Canceled", err)
	}
	if h.State() != StateWaitForDevice {
		t.Errorf("State() = %v, want WaitForDevice", h.State())
	}
}

func TestHost_ResetTimeout(t *testing.T) {
	h, ctrl := newTestHost()
	ctrl.SetResetPolls(1 << 30)
	ctrl.Attach(sim.NewMIDIDevice(1, 2), hal.SpeedFull)

	if err := h.Update(context.Background()); !errors.Is(err, PipeErrHwTimeout) {
		t.Fatalf("Update() error = %v, want HwTimeout", err)
	}
}

func TestHost_ReattachRestarts(t *testing.T) {
	h, ctrl := newTestHost()
	bad := sim.DeviceFunc(func(tx *sim.Transaction) sim.Response {
		return sim.Response{Result: sim.Stall}
	})
	if err := attach(t, h, ctrl, bad, hal.SpeedFull); err == nil {
		t.Fatal("expected failure from stalling device")
	}

	dev := sim.NewMIDIDevice(1, 2)
	if err := attach(t, h, ctrl, dev, hal.SpeedFull); err != nil {
		t.Fatalf("second attach error = %v", err)
	}
	if dev.Address() != 1 {
		t.Errorf("address = %d, want 1 (first address reused)", dev.Address())
	}
}

// =============================================================================
// Running State Tests
// =============================================================================

func TestHost_TickOnFrame(t *testing.T) {
	h, ctrl := newTestHost()
	ok := &mockDriver{claim: true}
	failing := &mockDriver{tickErr: errors.New("tick")}
	h.Register(ok)
	h.Register(failing)

	ctrl.Raise(hal.FlagStartOfFrame)
	if err := h.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if ok.ticks != 0 {
		t.Error("driver ticked while waiting for a device")
	}

	if err := attach(t, h, ctrl, sim.NewMIDIDevice(1, 2), hal.SpeedFull); err != nil {
		t.Fatalf("attach error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if !ctrl.Frame() {
			t.Fatal("Frame() = false")
		}
		if err := h.Update(context.Background()); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}
	if ok.ticks != 3 || failing.ticks != 3 {
		t.Errorf("ticks = %d/%d, want 3/3", ok.ticks, failing.ticks)
	}
}

func TestHost_Detach(t *testing.T) {
	h, ctrl := newTestHost()
	drv := &mockDriver{claim: true}
	h.Register(drv)

	if err := attach(t, h, ctrl, sim.NewMIDIDevice(1, 2), hal.SpeedFull); err != nil {
		t.Fatalf("attach error = %v", err)
	}
	ctrl.Detach()
	if err := h.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if drv.disconnected != 1 {
		t.Errorf("Disconnected called %d times, want 1", drv.disconnected)
	}
	if h.State() != StateWaitForDevice || h.Device() != nil {
		t.Errorf("State() = %v, Device() = %v", h.State(), h.Device())
	}
	if h.Addresses().InUse(1) {
		t.Error("address not returned to the pool")
	}
}

func TestHost_DetachWithoutDevice(t *testing.T) {
	h, ctrl := newTestHost()
	ctrl.Detach()
	if err := h.Update(context.Background()); err != nil {
		t.Errorf("Update() error = %v", err)
	}
	if h.State() != StateWaitForDevice {
		t.Errorf("State() = %v, want WaitForDevice", h.State())
	}
}

// =============================================================================
// Device Request Tests
// =============================================================================

func TestDevice_SetConfiguration(t *testing.T) {
	h, ctrl := newTestHost()
	dev := sim.NewMIDIDevice(1, 2)
	if err := attach(t, h, ctrl, dev, hal.SpeedFull); err != nil {
		t.Fatalf("attach error = %v", err)
	}

	d := h.Device()
	if err := d.SetConfiguration(h, 1); err != nil {
		t.Fatalf("SetConfiguration() error = %v", err)
	}
	if dev.Configuration() != 1 || d.GetConfiguration() != 1 {
		t.Errorf("configuration = %d/%d, want 1/1", dev.Configuration(), d.GetConfiguration())
	}

	err := d.SetConfiguration(h, 7)
	if !errors.Is(err, PipeErrStall) {
		t.Errorf("SetConfiguration(7) error = %v, want Stall", err)
	}
	if IsRetry(err) {
		t.Error("stall should be permanent")
	}
}

func TestDevice_ClearEndpointHalt(t *testing.T) {
	h, ctrl := newTestHost()
	dev := sim.NewMIDIDevice(1, 2)
	if err := attach(t, h, ctrl, dev, hal.SpeedFull); err != nil {
		t.Fatalf("attach error = %v", err)
	}
	d := h.Device()
	in := d.Endpoint(&EndpointDescriptor{EndpointAddress: 0x81, Attributes: 0x02, MaxPacketSize: 64})
	in.SetToggle(hal.TokenIn, true)

	if err := d.ClearEndpointHalt(h, in); err != nil {
		t.Fatalf("ClearEndpointHalt() error = %v", err)
	}
	if in.Toggle(hal.TokenIn) {
		t.Error("IN toggle not reset to DATA0")
	}
}

func TestHost_BulkTransfers(t *testing.T) {
	h, ctrl := newTestHost()
	dev := sim.NewMIDIDevice(1, 2)
	if err := attach(t, h, ctrl, dev, hal.SpeedFull); err != nil {
		t.Fatalf("attach error = %v", err)
	}
	d := h.Device()
	d.SetConfiguration(h, 1)

	in := d.Endpoint(&EndpointDescriptor{EndpointAddress: 0x81, Attributes: 0x02, MaxPacketSize: 64})
	out := d.Endpoint(&EndpointDescriptor{EndpointAddress: 0x01, Attributes: 0x02, MaxPacketSize: 64})

	packet := []byte{0x09, 0x90, 0x3C, 0x64}
	if _, err := h.OutTransfer(out, packet); err != nil {
		t.Fatalf("OutTransfer() error = %v", err)
	}
	if got := dev.TakeReceived(); string(got) != string(packet) {
		t.Errorf("device received %x, want %x", got, packet)
	}

	buf := make([]byte, 64)
	_, err := h.InTransfer(in, buf)
	if !errors.Is(err, PipeErrNaksExceeded) {
		t.Errorf("InTransfer() on empty queue error = %v, want NaksExceeded", err)
	}

	dev.Send(packet)
	n, err := h.InTransfer(in, buf)
	if err != nil || n != 4 {
		t.Fatalf("InTransfer() = %d, %v", n, err)
	}
	if string(buf[:n]) != string(packet) {
		t.Errorf("InTransfer() data = %x", buf[:n])
	}
}
