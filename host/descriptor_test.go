package host

import (
	"testing"

	"github.com/ardnew/usbmidi/host/hal"
	"github.com/ardnew/usbmidi/host/hal/sim"
)

// =============================================================================
// Fixed Descriptor Parser Tests
// =============================================================================

func TestParseDeviceDescriptor(t *testing.T) {
	data := []byte{
		18, 0x01, 0x00, 0x02, 0, 0, 0, 64,
		0x09, 0x12, 0x01, 0x00, 0x00, 0x01, 1, 2, 3, 1,
	}
	var d DeviceDescriptor
	if !ParseDeviceDescriptor(data, &d) {
		t.Fatal("ParseDeviceDescriptor() = false")
	}
	if d.VendorID != 0x1209 || d.ProductID != 0x0001 {
		t.Errorf("IDs = %04x:%04x, want 1209:0001", d.VendorID, d.ProductID)
	}
	if d.MaxPacketSize0 != 64 || d.USBVersion != 0x0200 || d.NumConfigurations != 1 {
		t.Errorf("descriptor = %+v", d)
	}

	if ParseDeviceDescriptor(data[:17], &d) {
		t.Error("accepted short descriptor")
	}
	bad := append([]byte(nil), data...)
	bad[1] = 0x02
	if ParseDeviceDescriptor(bad, &d) {
		t.Error("accepted wrong descriptor type")
	}
}

func TestParseConfigurationDescriptor(t *testing.T) {
	data := []byte{9, 0x02, 101, 0, 2, 1, 0, 0x80, 50}
	var c ConfigurationDescriptor
	if !ParseConfigurationDescriptor(data, &c) {
		t.Fatal("ParseConfigurationDescriptor() = false")
	}
	if c.TotalLength != 101 || c.NumInterfaces != 2 || c.ConfigurationValue != 1 {
		t.Errorf("descriptor = %+v", c)
	}
	if ParseConfigurationDescriptor(data[:8], &c) {
		t.Error("accepted short descriptor")
	}
}

func TestParseEndpointDescriptor(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantIn   bool
		wantType hal.TransferType
	}{
		{"bulk out", []byte{7, 0x05, 0x01, 0x02, 64, 0, 0}, false, hal.TransferBulk},
		{"bulk in audio", []byte{9, 0x05, 0x81, 0x02, 64, 0, 0, 0, 0}, true, hal.TransferBulk},
		{"interrupt in", []byte{7, 0x05, 0x83, 0x03, 8, 0, 10}, true, hal.TransferInterrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e EndpointDescriptor
			if !ParseEndpointDescriptor(tt.data, &e) {
				t.Fatal("ParseEndpointDescriptor() = false")
			}
			if e.IsIn() != tt.wantIn {
				t.Errorf("IsIn() = %v, want %v", e.IsIn(), tt.wantIn)
			}
			if e.TransferType() != tt.wantType {
				t.Errorf("TransferType() = %v, want %v", e.TransferType(), tt.wantType)
			}
		})
	}
}

// =============================================================================
// DescriptorParser Tests
// =============================================================================

func TestDescriptorParser_Walk(t *testing.T) {
	cfg := sim.NewMIDIDevice(1, 1).ConfigDescriptor()
	p := NewDescriptorParser(cfg)
	if p.Len() != len(cfg) {
		t.Errorf("Len() = %d, want %d", p.Len(), len(cfg))
	}

	var types []uint8
	var eps []EndpointDescriptor
	for d, ok := p.Next(); ok; d, ok = p.Next() {
		types = append(types, d.Type)
		if d.Type == DescriptorTypeEndpoint {
			ep, ok := d.Endpoint()
			if !ok {
				t.Fatal("endpoint descriptor did not parse")
			}
			eps = append(eps, ep)
		}
	}
	if types[0] != DescriptorTypeConfiguration {
		t.Errorf("first descriptor type = %#x", types[0])
	}
	if len(eps) != 2 || eps[0].EndpointAddress != 0x01 || eps[1].EndpointAddress != 0x81 {
		t.Errorf("endpoints = %+v", eps)
	}

	p.Rewind()
	d, ok := p.Next()
	if !ok || d.Type != DescriptorTypeConfiguration {
		t.Error("Rewind() did not restart at the configuration descriptor")
	}
	if _, ok := d.Configuration(); !ok {
		t.Error("configuration descriptor did not parse")
	}
}

func TestDescriptorParser_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int
	}{
		{"empty", nil, 0},
		{"one byte", []byte{9}, 0},
		{"zero length", []byte{0, 4, 9, 4}, 0},
		{"overruns buffer", []byte{4, 4, 0, 0, 9, 4, 0}, 1},
		{"two good", []byte{3, 0x24, 1, 2, 0x25}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewDescriptorParser(tt.data)
			n := 0
			for _, ok := p.Next(); ok; _, ok = p.Next() {
				n++
			}
			if n != tt.want {
				t.Errorf("descriptors = %d, want %d", n, tt.want)
			}
			if _, ok := p.Next(); ok {
				t.Error("Next() succeeded after the end")
			}
		})
	}
}

func TestDescriptor_WrongKind(t *testing.T) {
	d := Descriptor{Type: DescriptorTypeEndpoint, Data: []byte{7, 0x05, 0x81, 0x02, 64, 0, 0}}
	if _, ok := d.Interface(); ok {
		t.Error("endpoint descriptor parsed as interface")
	}
}

// =============================================================================
// Endpoint Tests
// =============================================================================

func TestEndpoint_FromDescriptor(t *testing.T) {
	desc := EndpointDescriptor{EndpointAddress: 0x82, Attributes: 0x03, MaxPacketSize: 8, Interval: 4}
	ep := NewEndpoint(5, &desc)
	if ep.DeviceAddress != 5 || ep.Number() != 2 || !ep.IsIn() {
		t.Errorf("endpoint = %+v", ep)
	}
	if ep.Type != hal.TransferInterrupt || ep.Interval != 4 {
		t.Errorf("type/interval = %v/%d", ep.Type, ep.Interval)
	}
}

func TestEndpoint_Toggles(t *testing.T) {
	ep := NewControlEndpoint(0, 8)
	ep.FlipToggle(hal.TokenIn)
	if !ep.Toggle(hal.TokenIn) || ep.Toggle(hal.TokenOut) {
		t.Error("FlipToggle(IN) affected the wrong direction")
	}
	ep.SetToggle(hal.TokenOut, true)
	ep.ResetToggles()
	if ep.Toggle(hal.TokenIn) || ep.Toggle(hal.TokenOut) {
		t.Error("ResetToggles() left a toggle set")
	}
}
