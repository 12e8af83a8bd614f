package hal

import "encoding/binary"

// Pipe descriptor bank layout. Offsets and sizes match the silicon and
// must not change.
const (
	OffsetAddr       = 0x00
	OffsetPckSize    = 0x04
	OffsetExtReg     = 0x08
	OffsetStatusBk   = 0x0a
	OffsetCtrlPipe   = 0x0c
	OffsetStatusPipe = 0x0e

	SizeAddr       = 4
	SizePckSize    = 4
	SizeExtReg     = 2
	SizeStatusBk   = 1
	SizeCtrlPipe   = 2
	SizeStatusPipe = 1

	// PipeBankSize is the size of one descriptor bank in bytes.
	PipeBankSize = 16

	// PipeDescriptorSize is the size of a two-bank pipe descriptor.
	PipeDescriptorSize = 2 * PipeBankSize
)

// PipeBank is one bank of a pipe descriptor as the peripheral sees it.
// Fields are little-endian and accessed only through the methods below.
type PipeBank [PipeBankSize]byte

// PipeDescriptor is the two-bank descriptor of one pipe.
type PipeDescriptor [2]PipeBank

// Bank0 returns the bank used for single-bank transfers.
func (d *PipeDescriptor) Bank0() *PipeBank { return &d[0] }

// Bank1 returns the second bank.
func (d *PipeDescriptor) Bank1() *PipeBank { return &d[1] }

// Clear zeroes both banks.
func (d *PipeDescriptor) Clear() { *d = PipeDescriptor{} }

func bits32(v uint32, lo, width uint) uint32 {
	return (v >> lo) & (1<<width - 1)
}

func setBits32(v uint32, lo, width uint, field uint32) uint32 {
	mask := uint32(1<<width-1) << lo
	return v&^mask | (field<<lo)&mask
}

func (b *PipeBank) u32(off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }
func (b *PipeBank) u16(off int) uint16 { return binary.LittleEndian.Uint16(b[off:]) }

func (b *PipeBank) putU32(off int, v uint32) { binary.LittleEndian.PutUint32(b[off:], v) }
func (b *PipeBank) putU16(off int, v uint16) { binary.LittleEndian.PutUint16(b[off:], v) }

// Addr returns the data buffer address.
func (b *PipeBank) Addr() uint32 { return b.u32(OffsetAddr) }

// SetAddr sets the data buffer address.
func (b *PipeBank) SetAddr(addr uint32) { b.putU32(OffsetAddr, addr) }

// PckSize returns the raw PCKSIZE register.
func (b *PipeBank) PckSize() uint32 { return b.u32(OffsetPckSize) }

// SetPckSize sets the raw PCKSIZE register.
func (b *PipeBank) SetPckSize(v uint32) { b.putU32(OffsetPckSize, v) }

// ByteCount returns PCKSIZE.BYTE_COUNT: bytes received or to send.
func (b *PipeBank) ByteCount() uint16 { return uint16(bits32(b.PckSize(), 0, 14)) }

// SetByteCount sets PCKSIZE.BYTE_COUNT.
func (b *PipeBank) SetByteCount(n uint16) {
	b.SetPckSize(setBits32(b.PckSize(), 0, 14, uint32(n)))
}

// MultiPacketSize returns PCKSIZE.MULTI_PACKET_SIZE.
func (b *PipeBank) MultiPacketSize() uint16 { return uint16(bits32(b.PckSize(), 14, 14)) }

// SetMultiPacketSize sets PCKSIZE.MULTI_PACKET_SIZE.
func (b *PipeBank) SetMultiPacketSize(n uint16) {
	b.SetPckSize(setBits32(b.PckSize(), 14, 14, uint32(n)))
}

// Size returns the PCKSIZE.SIZE code.
func (b *PipeBank) Size() uint8 { return uint8(bits32(b.PckSize(), 28, 3)) }

// SetSize sets the PCKSIZE.SIZE code.
func (b *PipeBank) SetSize(code uint8) {
	b.SetPckSize(setBits32(b.PckSize(), 28, 3, uint32(code)))
}

// AutoZLP returns PCKSIZE.AUTO_ZLP.
func (b *PipeBank) AutoZLP() bool { return bits32(b.PckSize(), 31, 1) != 0 }

// SetAutoZLP sets PCKSIZE.AUTO_ZLP.
func (b *PipeBank) SetAutoZLP(on bool) {
	b.SetPckSize(setBits32(b.PckSize(), 31, 1, boolBit(on)))
}

// ExtReg returns the raw EXTREG register.
func (b *PipeBank) ExtReg() uint16 { return b.u16(OffsetExtReg) }

// SetExtReg sets the raw EXTREG register.
func (b *PipeBank) SetExtReg(v uint16) { b.putU16(OffsetExtReg, v) }

// SubPID returns EXTREG.SUBPID.
func (b *PipeBank) SubPID() uint8 { return uint8(b.ExtReg() & 0x0f) }

// Variable returns EXTREG.VARIABLE.
func (b *PipeBank) Variable() uint16 { return (b.ExtReg() >> 4) & 0x7ff }

// StatusBk returns the raw STATUS_BK register.
func (b *PipeBank) StatusBk() uint8 { return b[OffsetStatusBk] }

// SetStatusBk sets the raw STATUS_BK register.
func (b *PipeBank) SetStatusBk(v uint8) { b[OffsetStatusBk] = v }

// STATUS_BK bits.
const (
	StatusBkCRCErr    = 1 << 0
	StatusBkErrorFlow = 1 << 1
)

// CRCError reports STATUS_BK.CRCERR.
func (b *PipeBank) CRCError() bool { return b.StatusBk()&StatusBkCRCErr != 0 }

// ErrorFlow reports STATUS_BK.ERRORFLOW (NAK/overflow/underflow).
func (b *PipeBank) ErrorFlow() bool { return b.StatusBk()&StatusBkErrorFlow != 0 }

// CtrlPipe returns the raw CTRL_PIPE register.
func (b *PipeBank) CtrlPipe() uint16 { return b.u16(OffsetCtrlPipe) }

// SetCtrlPipe sets the raw CTRL_PIPE register.
func (b *PipeBank) SetCtrlPipe(v uint16) { b.putU16(OffsetCtrlPipe, v) }

// DeviceAddress returns CTRL_PIPE.PDADDR.
func (b *PipeBank) DeviceAddress() uint8 { return uint8(b.CtrlPipe() & 0x7f) }

// EndpointNumber returns CTRL_PIPE.PEPNUM.
func (b *PipeBank) EndpointNumber() uint8 { return uint8(b.CtrlPipe()>>8) & 0x0f }

// ErrorMax returns CTRL_PIPE.PERMAX.
func (b *PipeBank) ErrorMax() uint8 { return uint8(b.CtrlPipe() >> 12) }

// SetTarget writes PDADDR, PEPNUM and PERMAX in one access.
func (b *PipeBank) SetTarget(device, endpoint, errorMax uint8) {
	b.SetCtrlPipe(uint16(device&0x7f) | uint16(endpoint&0x0f)<<8 | uint16(errorMax&0x0f)<<12)
}

// StatusPipe returns the raw STATUS_PIPE register.
func (b *PipeBank) StatusPipe() uint8 { return b[OffsetStatusPipe] }

// SetStatusPipe sets the raw STATUS_PIPE register.
func (b *PipeBank) SetStatusPipe(v uint8) { b[OffsetStatusPipe] = v }

// STATUS_PIPE bits.
const (
	StatusPipeDataToggleErr = 1 << 0
	StatusPipeDataPIDErr    = 1 << 1
	StatusPipePIDErr        = 1 << 2
	StatusPipeTimeoutErr    = 1 << 3
	StatusPipeCRC16Err      = 1 << 4
)

// DataToggleError reports STATUS_PIPE.DTGLER.
func (b *PipeBank) DataToggleError() bool { return b.StatusPipe()&StatusPipeDataToggleErr != 0 }

// TimeoutError reports STATUS_PIPE.TOUTER.
func (b *PipeBank) TimeoutError() bool { return b.StatusPipe()&StatusPipeTimeoutErr != 0 }

// PIDError reports STATUS_PIPE.PIDER or DAPIDER.
func (b *PipeBank) PIDError() bool {
	return b.StatusPipe()&(StatusPipePIDErr|StatusPipeDataPIDErr) != 0
}

// ErrorCount returns STATUS_PIPE.ERCNT.
func (b *PipeBank) ErrorCount() uint8 { return b.StatusPipe() >> 5 }

// SizeCode returns the PCKSIZE.SIZE code for a max packet size, rounding
// up to the next supported size.
func SizeCode(maxPacketSize uint16) uint8 {
	switch {
	case maxPacketSize <= 8:
		return 0
	case maxPacketSize <= 16:
		return 1
	case maxPacketSize <= 32:
		return 2
	case maxPacketSize <= 64:
		return 3
	case maxPacketSize <= 128:
		return 4
	case maxPacketSize <= 256:
		return 5
	case maxPacketSize <= 512:
		return 6
	default:
		return 7
	}
}

// SizeBytes returns the packet size for a PCKSIZE.SIZE code.
func SizeBytes(code uint8) uint16 {
	if code >= 7 {
		return 1023
	}
	return 8 << code
}

func boolBit(on bool) uint32 {
	if on {
		return 1
	}
	return 0
}
