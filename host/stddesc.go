package host

import (
	"encoding/binary"

	"github.com/ardnew/usbmidi/host/hal"
)

// Fixed sizes of the standard descriptors. Audio class endpoint
// descriptors carry two extra bytes, which the parser ignores.
const (
	DeviceDescriptorSize        = 18
	ConfigurationDescriptorSize = 9
	InterfaceDescriptorSize     = 9
	EndpointDescriptorSize      = 7
)

// DeviceDescriptor is the 18-byte descriptor returned for
// GET_DESCRIPTOR(DEVICE).
type DeviceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	USBVersion        uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	DeviceVersion     uint16
	ManufacturerIndex uint8
	ProductIndex      uint8
	SerialNumberIndex uint8
	NumConfigurations uint8
}

// ConfigurationDescriptor is the header of a configuration descriptor set.
type ConfigurationDescriptor struct {
	Length             uint8
	DescriptorType     uint8
	TotalLength        uint16
	NumInterfaces      uint8
	ConfigurationValue uint8
	ConfigurationIndex uint8
	Attributes         uint8
	MaxPower           uint8
}

type InterfaceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	InterfaceNumber   uint8
	AlternateSetting  uint8
	NumEndpoints      uint8
	InterfaceClass    uint8
	InterfaceSubClass uint8
	InterfaceProtocol uint8
	InterfaceIndex    uint8
}

type EndpointDescriptor struct {
	Length          uint8
	DescriptorType  uint8
	EndpointAddress uint8
	Attributes      uint8
	MaxPacketSize   uint16
	Interval        uint8
}

// IsIn reports whether bit 7 of the endpoint address is set.
func (e *EndpointDescriptor) IsIn() bool {
	return e.EndpointAddress&EndpointDirectionIn != 0
}

// TransferType decodes bmAttributes bits 0..1.
func (e *EndpointDescriptor) TransferType() hal.TransferType {
	return hal.TransferType(e.Attributes & 0x03)
}

// fits reports whether b holds at least size bytes and carries
// bDescriptorType kind.
func fits(b []byte, size int, kind uint8) bool {
	return len(b) >= size && b[1] == kind
}

// ParseDeviceDescriptor decodes b into out. It returns false, leaving out
// untouched, when b is short or of another type.
func ParseDeviceDescriptor(b []byte, out *DeviceDescriptor) bool {
	if !fits(b, DeviceDescriptorSize, DescriptorTypeDevice) {
		return false
	}
	le := binary.LittleEndian
	*out = DeviceDescriptor{
		Length:            b[0],
		DescriptorType:    b[1],
		USBVersion:        le.Uint16(b[2:4]),
		DeviceClass:       b[4],
		DeviceSubClass:    b[5],
		DeviceProtocol:    b[6],
		MaxPacketSize0:    b[7],
		VendorID:          le.Uint16(b[8:10]),
		ProductID:         le.Uint16(b[10:12]),
		DeviceVersion:     le.Uint16(b[12:14]),
		ManufacturerIndex: b[14],
		ProductIndex:      b[15],
		SerialNumberIndex: b[16],
		NumConfigurations: b[17],
	}
	return true
}

// ParseConfigurationDescriptor decodes the header at the start of b.
func ParseConfigurationDescriptor(b []byte, out *ConfigurationDescriptor) bool {
	if !fits(b, ConfigurationDescriptorSize, DescriptorTypeConfiguration) {
		return false
	}
	*out = ConfigurationDescriptor{
		Length:             b[0],
		DescriptorType:     b[1],
		TotalLength:        binary.LittleEndian.Uint16(b[2:4]),
		NumInterfaces:      b[4],
		ConfigurationValue: b[5],
		ConfigurationIndex: b[6],
		Attributes:         b[7],
		MaxPower:           b[8],
	}
	return true
}

func ParseInterfaceDescriptor(b []byte, out *InterfaceDescriptor) bool {
	if !fits(b, InterfaceDescriptorSize, DescriptorTypeInterface) {
		return false
	}
	*out = InterfaceDescriptor{
		Length:            b[0],
		DescriptorType:    b[1],
		InterfaceNumber:   b[2],
		AlternateSetting:  b[3],
		NumEndpoints:      b[4],
		InterfaceClass:    b[5],
		InterfaceSubClass: b[6],
		InterfaceProtocol: b[7],
		InterfaceIndex:    b[8],
	}
	return true
}

func ParseEndpointDescriptor(b []byte, out *EndpointDescriptor) bool {
	if !fits(b, EndpointDescriptorSize, DescriptorTypeEndpoint) {
		return false
	}
	*out = EndpointDescriptor{
		Length:          b[0],
		DescriptorType:  b[1],
		EndpointAddress: b[2],
		Attributes:      b[3],
		MaxPacketSize:   binary.LittleEndian.Uint16(b[4:6]),
		Interval:        b[6],
	}
	return true
}
