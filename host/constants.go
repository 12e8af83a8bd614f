package host

import "time"

// Transfer engine limits.
const (
	// SetupTimeout bounds one transaction, including all of its retries.
	SetupTimeout = 500 * time.Millisecond

	// NakLimit is the number of consecutive transient errors tolerated
	// before a transaction fails with PipeErrNaksExceeded.
	NakLimit = 15

	// pollBackoff is the number of spin iterations between status polls.
	pollBackoff = 32

	// pipeErrorMax is written to CTRL_PIPE.PERMAX.
	pipeErrorMax = 0x0f
)

// Enumeration limits.
const (
	// MaxAddress is the highest assignable device address.
	MaxAddress = 127

	// ConfigBufferSize is the fixed size of the configuration descriptor
	// buffer; larger descriptor sets fail enumeration.
	ConfigBufferSize = 256

	// MaxDrivers is the maximum number of registered drivers.
	MaxDrivers = 4

	// resetPollInterval is the wait between bus reset completion polls.
	resetPollInterval = time.Millisecond

	// resetTimeout bounds the wait for bus reset completion.
	resetTimeout = 100 * time.Millisecond
)

// Descriptor type codes seen during enumeration.
const (
	DescriptorTypeDevice        = 0x01
	DescriptorTypeConfiguration = 0x02
	DescriptorTypeInterface     = 0x04
	DescriptorTypeEndpoint      = 0x05
)

// Chapter 9 requests issued by the enumerator and the pipe engine.
const (
	RequestClearFeature     = 0x01
	RequestSetAddress       = 0x05
	RequestGetDescriptor    = 0x06
	RequestSetConfiguration = 0x09
)

// bmRequestType bits. Direction is bit 7, recipient bits 0..4; the
// standard type is zero.
const (
	RequestTypeOut      = 0x00
	RequestTypeIn       = 0x80
	RequestTypeStandard = 0x00
	RequestTypeDevice   = 0x00
	RequestTypeEndpoint = 0x02
)

// EndpointDirectionIn is bit 7 of bEndpointAddress.
const EndpointDirectionIn = 0x80

// Audio class codes matched by the MIDI driver.
const (
	ClassAudio            = 0x01
	SubclassMIDIStreaming = 0x03
)
