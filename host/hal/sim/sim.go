package sim

import (
	"sync"

	"github.com/ardnew/usbmidi/host/hal"
)

// Default controller dimensions.
const (
	DefaultPipes      = 8
	PipeBufferSize    = 64
	DefaultResetPolls = 2
)

// Result is a device's answer to one transaction.
type Result uint8

// Transaction results.
const (
	ACK         Result = iota // transaction accepted
	NAK                       // no data yet; reported as a flow error
	Stall                     // endpoint halted
	Timeout                   // no handshake from the device
	ToggleError               // data PID mismatch
	Fail                      // transfer failed
	PIDError                  // corrupted PID
	Pending                   // never completes
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case ACK:
		return "ACK"
	case NAK:
		return "NAK"
	case Stall:
		return "STALL"
	case Timeout:
		return "timeout"
	case ToggleError:
		return "toggle error"
	case Fail:
		return "fail"
	case PIDError:
		return "PID error"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}

// Transaction is one token phase as the device sees it.
type Transaction struct {
	Pipe          int
	Token         hal.Token
	Address       uint8
	Endpoint      uint8
	Type          hal.PipeType
	Toggle        bool
	MaxPacketSize uint16

	// Data is the SETUP or OUT payload. It is nil for IN.
	Data []byte
}

// Response is the device side of a transaction.
type Response struct {
	Result Result

	// Data is the IN payload. It is truncated to the pipe's packet size.
	Data []byte
}

// Device models a USB function attached to the simulated bus.
type Device interface {
	// Reset is called on every bus reset.
	Reset()

	// Handle answers one transaction addressed to any device address.
	Handle(tx *Transaction) Response
}

// DeviceFunc adapts a function to the Device interface. Reset is a no-op.
type DeviceFunc func(tx *Transaction) Response

// Reset implements Device.
func (f DeviceFunc) Reset() {}

// Handle implements Device.
func (f DeviceFunc) Handle(tx *Transaction) Response { return f(tx) }

type pipeState struct {
	cfg    hal.PipeConfig
	ready  bool
	toggle bool
	frozen bool
	armed  bool
	flags  hal.PipeFlags
}

// Controller is an in-memory host-mode USB controller. Pipe descriptors and
// buffers live in ordinary memory; an armed pipe is executed against the
// attached Device the next time its flags are read.
type Controller struct {
	mu sync.Mutex

	ram   []byte
	descs []hal.PipeDescriptor
	pipes []pipeState

	flags      hal.HostFlags
	speed      hal.Speed
	device     Device
	sof        bool
	resetPolls int
	resetLeft  int

	log []Transaction
}

// New returns a controller with n pipes. Non-positive n selects
// DefaultPipes.
func New(n int) *Controller {
	if n <= 0 {
		n = DefaultPipes
	}
	return &Controller{
		ram:        make([]byte, n*PipeBufferSize),
		descs:      make([]hal.PipeDescriptor, n),
		pipes:      make([]pipeState, n),
		resetPolls: DefaultResetPolls,
	}
}

// SetResetPolls sets how many BusResetComplete polls a bus reset takes.
func (c *Controller) SetResetPolls(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetPolls = n
}

// Attach connects dev at the given speed and raises the attach interrupt.
func (c *Controller) Attach(dev Device, speed hal.Speed) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device = dev
	c.speed = speed
	c.flags |= hal.FlagAttached
}

// Detach disconnects the device and raises the detach interrupt.
func (c *Controller) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device = nil
	c.speed = hal.SpeedUnknown
	c.sof = false
	c.flags |= hal.FlagDetached
}

// Frame raises the start-of-frame interrupt if SOF generation is enabled.
// It reports whether a frame was generated.
func (c *Controller) Frame() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sof || c.device == nil {
		return false
	}
	c.flags |= hal.FlagStartOfFrame
	return true
}

// Raise sets arbitrary host interrupt flags.
func (c *Controller) Raise(flags hal.HostFlags) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags |= flags
}

// Transactions returns a copy of every transaction executed so far.
func (c *Controller) Transactions() []Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Transaction, len(c.log))
	copy(out, c.log)
	return out
}

// ClearTransactions empties the transaction log.
func (c *Controller) ClearTransactions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = c.log[:0]
}

// SOFEnabled reports whether start-of-frame generation is on.
func (c *Controller) SOFEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sof
}

// Reset implements hal.Controller.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.pipes {
		c.pipes[i] = pipeState{frozen: true}
		c.descs[i].Clear()
	}
	clear(c.ram)
	c.sof = false
	c.flags &^= hal.FlagStartOfFrame | hal.FlagReset
}

// InterruptFlags implements hal.Controller.
func (c *Controller) InterruptFlags() hal.HostFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

// ClearInterruptFlags implements hal.Controller.
func (c *Controller) ClearInterruptFlags(flags hal.HostFlags) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags &^= flags
}

// BusReset implements hal.Controller.
func (c *Controller) BusReset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLeft = c.resetPolls
	if c.device != nil {
		c.device.Reset()
	}
}

// BusResetComplete implements hal.Controller.
func (c *Controller) BusResetComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resetLeft > 0 {
		c.resetLeft--
		return false
	}
	c.flags |= hal.FlagReset
	return true
}

// EnableSOF implements hal.Controller.
func (c *Controller) EnableSOF(enable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sof = enable
}

// Speed implements hal.Controller.
func (c *Controller) Speed() hal.Speed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// NumPipes implements hal.Controller.
func (c *Controller) NumPipes() int {
	return len(c.pipes)
}

// Descriptor implements hal.Controller.
func (c *Controller) Descriptor(pipe int) *hal.PipeDescriptor {
	return &c.descs[pipe]
}

// RAM implements hal.Controller.
func (c *Controller) RAM() []byte {
	return c.ram
}

// ConfigurePipe implements hal.Controller.
func (c *Controller) ConfigurePipe(pipe int, cfg hal.PipeConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipes[pipe].cfg = cfg
}

// SetToken implements hal.Controller.
func (c *Controller) SetToken(pipe int, token hal.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipes[pipe].cfg.Token = token
}

// SetBankReady implements hal.Controller.
func (c *Controller) SetBankReady(pipe int, ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipes[pipe].ready = ready
}

// SetDataToggle implements hal.Controller.
func (c *Controller) SetDataToggle(pipe int, toggle bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipes[pipe].toggle = toggle
}

// Freeze implements hal.Controller. Unfreezing arms the pipe for one
// transaction.
func (c *Controller) Freeze(pipe int, frozen bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := &c.pipes[pipe]
	p.armed = !frozen
	p.frozen = frozen
}

// PipeFlags implements hal.Controller.
func (c *Controller) PipeFlags(pipe int) hal.PipeFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := &c.pipes[pipe]
	if p.armed {
		p.armed = false
		c.execute(pipe)
	}
	return p.flags
}

// ClearPipeFlags implements hal.Controller.
func (c *Controller) ClearPipeFlags(pipe int, flags hal.PipeFlags) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipes[pipe].flags &^= flags
}

// execute runs the armed transaction of pipe. The caller holds the lock.
func (c *Controller) execute(pipe int) {
	p := &c.pipes[pipe]
	bank := c.descs[pipe].Bank0()

	tx := Transaction{
		Pipe:          pipe,
		Token:         p.cfg.Token,
		Address:       bank.DeviceAddress(),
		Endpoint:      bank.EndpointNumber(),
		Type:          p.cfg.Type,
		Toggle:        p.toggle,
		MaxPacketSize: hal.SizeBytes(bank.Size()),
	}
	addr := int(bank.Addr())
	if tx.Token != hal.TokenIn && p.ready {
		n := int(bank.ByteCount())
		if addr+n <= len(c.ram) {
			tx.Data = append([]byte(nil), c.ram[addr:addr+n]...)
		}
	}

	resp := Response{Result: Timeout}
	if c.device != nil {
		resp = c.device.Handle(&tx)
	}
	c.log = append(c.log, tx)

	switch resp.Result {
	case ACK:
		if tx.Token == hal.TokenSetup {
			p.flags |= hal.PipeSetupSent
			return
		}
		if tx.Token == hal.TokenIn {
			n := min(len(resp.Data), int(tx.MaxPacketSize), len(c.ram)-addr)
			copy(c.ram[addr:], resp.Data[:n])
			bank.SetByteCount(uint16(n))
		}
		p.flags |= hal.PipeTransferComplete0
	case NAK:
		bank.SetStatusBk(bank.StatusBk() | hal.StatusBkErrorFlow)
	case Stall:
		p.flags |= hal.PipeStall
	case Timeout:
		bank.SetStatusPipe(bank.StatusPipe() | hal.StatusPipeTimeoutErr)
		p.flags |= hal.PipeError
	case ToggleError:
		bank.SetStatusPipe(bank.StatusPipe() | hal.StatusPipeDataToggleErr)
		p.flags |= hal.PipeError
	case Fail:
		p.flags |= hal.PipeTransferFail
	case PIDError:
		bank.SetStatusPipe(bank.StatusPipe() | hal.StatusPipePIDErr)
		p.flags |= hal.PipeError
	case Pending:
	}
}
