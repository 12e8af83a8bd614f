package hal

import (
	"encoding/binary"
	"time"
)

// Speed represents the USB connection speed.
type Speed uint8

// USB speeds, as reported by the root port.
const (
	SpeedUnknown Speed = iota // Not connected or unknown
	SpeedLow                  // Low Speed (1.5 Mbit/s)
	SpeedFull                 // Full Speed (12 Mbit/s)
)

// String returns a human-readable speed name.
func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "Low Speed"
	case SpeedFull:
		return "Full Speed"
	default:
		return "Unknown"
	}
}

// MaxPacketSize0 returns the default control endpoint packet size used
// before the device descriptor has been read.
func (s Speed) MaxPacketSize0() uint16 {
	if s == SpeedFull {
		return 64
	}
	return 8
}

// SetupPacket is the 8-byte request sent in the SETUP stage of a control
// transfer. Multi-byte fields are little-endian on the wire.
type SetupPacket struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

const SetupPacketSize = 8

// ParseSetupPacket decodes the first SetupPacketSize bytes of data.
func ParseSetupPacket(data []byte, out *SetupPacket) bool {
	if len(data) < SetupPacketSize {
		return false
	}
	le := binary.LittleEndian
	*out = SetupPacket{
		RequestType: data[0],
		Request:     data[1],
		Value:       le.Uint16(data[2:4]),
		Index:       le.Uint16(data[4:6]),
		Length:      le.Uint16(data[6:8]),
	}
	return true
}

// MarshalTo encodes s into buf and returns SetupPacketSize, or 0 when buf
// cannot hold it.
func (s *SetupPacket) MarshalTo(buf []byte) int {
	if len(buf) < SetupPacketSize {
		return 0
	}
	buf[0], buf[1] = s.RequestType, s.Request
	le := binary.LittleEndian
	le.PutUint16(buf[2:4], s.Value)
	le.PutUint16(buf[4:6], s.Index)
	le.PutUint16(buf[6:8], s.Length)
	return SetupPacketSize
}

// IsIn reports whether the data stage flows device-to-host.
func (s *SetupPacket) IsIn() bool {
	return s.RequestType&0x80 != 0
}

// TransferType indicates the type of USB transfer, encoded as in the
// bmAttributes field of an endpoint descriptor.
type TransferType uint8

// Transfer type constants.
const (
	TransferControl     TransferType = 0 // Control transfer
	TransferIsochronous TransferType = 1 // Isochronous transfer
	TransferBulk        TransferType = 2 // Bulk transfer
	TransferInterrupt   TransferType = 3 // Interrupt transfer
)

// String returns the transfer type name.
func (t TransferType) String() string {
	switch t {
	case TransferControl:
		return "control"
	case TransferIsochronous:
		return "isochronous"
	case TransferBulk:
		return "bulk"
	case TransferInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// PipeType is the PCFG.PTYPE encoding of a pipe.
type PipeType uint8

// Pipe type register values.
const (
	PipeDisabled    PipeType = 0
	PipeControl     PipeType = 1
	PipeIsochronous PipeType = 2
	PipeBulk        PipeType = 3
	PipeInterrupt   PipeType = 4
	PipeExtended    PipeType = 5
)

// PipeTypeOf returns the pipe register encoding for a transfer type.
func PipeTypeOf(t TransferType) PipeType {
	switch t {
	case TransferControl:
		return PipeControl
	case TransferIsochronous:
		return PipeIsochronous
	case TransferBulk:
		return PipeBulk
	case TransferInterrupt:
		return PipeInterrupt
	default:
		return PipeDisabled
	}
}

// Token is the PCFG.PTOKEN encoding of the next transaction on a pipe.
type Token uint8

// Pipe token register values.
const (
	TokenSetup Token = 0
	TokenIn    Token = 1
	TokenOut   Token = 2
)

// String returns the token name.
func (t Token) String() string {
	switch t {
	case TokenSetup:
		return "SETUP"
	case TokenIn:
		return "IN"
	case TokenOut:
		return "OUT"
	default:
		return "invalid"
	}
}

// PipeConfig is the content of a pipe configuration (PCFG) register plus
// the polling interval (BINTERVAL).
type PipeConfig struct {
	Type     PipeType
	Token    Token
	Interval uint8
}

// HostFlags is the host-mode INTFLAG register.
type HostFlags uint16

// Host interrupt flag bits.
const (
	FlagStartOfFrame   HostFlags = 1 << 2 // HSOF
	FlagReset          HostFlags = 1 << 3 // RST: bus reset sent
	FlagWakeUp         HostFlags = 1 << 4 // WAKEUP
	FlagDownResume     HostFlags = 1 << 5 // DNRSM
	FlagUpstreamResume HostFlags = 1 << 6 // UPRSM
	FlagRAMAccess      HostFlags = 1 << 7 // RAMACER
	FlagAttached       HostFlags = 1 << 8 // DCONN
	FlagDetached       HostFlags = 1 << 9 // DDISC
)

// PipeFlags is the per-pipe PINTFLAG register.
type PipeFlags uint8

// Pipe interrupt flag bits.
const (
	PipeTransferComplete0 PipeFlags = 1 << 0 // TRCPT0
	PipeTransferComplete1 PipeFlags = 1 << 1 // TRCPT1
	PipeTransferFail      PipeFlags = 1 << 2 // TRFAIL
	PipeError             PipeFlags = 1 << 3 // PERR
	PipeSetupSent         PipeFlags = 1 << 4 // TXSTP
	PipeStall             PipeFlags = 1 << 5 // STALL

	PipeAllFlags PipeFlags = 0x3F
)

// Controller is the register-level contract of a host-mode USB peripheral.
//
// Pipe descriptors and data buffers live in RAM that the peripheral reads
// and writes directly. A descriptor's Addr field is an offset into RAM().
type Controller interface {
	// Host-wide registers

	// Reset performs a software reset of the peripheral and returns it to
	// host mode with every pipe disabled.
	Reset()

	// InterruptFlags returns the pending host interrupt flags.
	InterruptFlags() HostFlags

	// ClearInterruptFlags acknowledges the given host interrupt flags.
	ClearInterruptFlags(HostFlags)

	// BusReset starts a USB bus reset.
	BusReset()

	// BusResetComplete reports whether the last bus reset has finished.
	BusResetComplete() bool

	// EnableSOF starts or stops start-of-frame generation.
	EnableSOF(enable bool)

	// Speed returns the speed of the attached device.
	Speed() Speed

	// Pipe registers

	// NumPipes returns the number of hardware pipes.
	NumPipes() int

	// Descriptor returns the DMA-visible descriptor of a pipe.
	Descriptor(pipe int) *PipeDescriptor

	// RAM returns the DMA-visible buffer memory indexed by descriptor Addr.
	RAM() []byte

	// ConfigurePipe writes a pipe's PCFG register.
	ConfigurePipe(pipe int, cfg PipeConfig)

	// SetToken changes only the PTOKEN field of a pipe's PCFG register.
	SetToken(pipe int, token Token)

	// SetBankReady marks bank 0 of a pipe as ready (OUT/SETUP data
	// present) or empty (IN buffer free to receive).
	SetBankReady(pipe int, ready bool)

	// SetDataToggle forces the data PID (false=DATA0, true=DATA1) of the
	// next transaction on a pipe.
	SetDataToggle(pipe int, toggle bool)

	// Freeze stops (true) or starts (false) a pipe.
	Freeze(pipe int, frozen bool)

	// PipeFlags returns the pending interrupt flags of a pipe.
	PipeFlags(pipe int) PipeFlags

	// ClearPipeFlags acknowledges the given pipe interrupt flags.
	ClearPipeFlags(pipe int, flags PipeFlags)
}

// Clock provides monotonic time since boot.
type Clock interface {
	Now() time.Duration
}

// SystemClock is a Clock backed by the runtime monotonic clock.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a clock whose zero is the moment of the call.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns the time elapsed since the clock was created.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}
