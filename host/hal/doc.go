// Package hal defines the register-level contract between the host stack
// and a host-mode USB peripheral.
//
// The [Controller] interface exposes the registers the pipe transfer
// engine touches: host interrupt flags, bus reset, start-of-frame
// generation, and per-pipe configuration, token, bank, toggle, freeze and
// interrupt flags. Pipe descriptors are DMA-visible memory with a fixed
// byte layout; [PipeBank] and [PipeDescriptor] are byte arrays with
// explicit accessors per field and bit range so that no code ever aliases
// a Go struct onto peripheral memory.
//
// # Descriptor Layout
//
// Each pipe owns two 16-byte banks:
//
//	0x00  ADDR         4 bytes  data buffer address
//	0x04  PCKSIZE      4 bytes  byte count, multi-packet size, size code, auto ZLP
//	0x08  EXTREG       2 bytes  extended token (LPM)
//	0x0a  STATUS_BK    1 byte   CRC error, error flow
//	0x0b  reserved     1 byte
//	0x0c  CTRL_PIPE    2 bytes  device address, endpoint number, error max
//	0x0e  STATUS_PIPE  1 byte   toggle, PID, timeout, CRC16 errors, error count
//	0x0f  reserved     1 byte
//
// A software implementation of [Controller] lives in the sim subpackage.
package hal
