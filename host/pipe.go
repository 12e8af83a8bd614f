package host

import (
	"github.com/ardnew/usbmidi/host/hal"
	"github.com/ardnew/usbmidi/pkg"
)

// Pipe drives one hardware pipe through SETUP, IN and OUT transactions.
// A transaction, once dispatched, runs to completion, failure or timeout
// before control returns; it never yields.
type Pipe struct {
	index int
	ctrl  hal.Controller
	clock hal.Clock

	// addr and size locate this pipe's data buffer in controller RAM.
	addr uint32
	size int
}

// Index returns the hardware pipe number.
func (p *Pipe) Index() int {
	return p.index
}

func (p *Pipe) bank() *hal.PipeBank {
	return p.ctrl.Descriptor(p.index).Bank0()
}

func (p *Pipe) buffer() []byte {
	return p.ctrl.RAM()[p.addr : p.addr+uint32(p.size)]
}

// configure points the pipe at an endpoint and arms it for a token.
func (p *Pipe) configure(ep *Endpoint, token hal.Token) error {
	if int(ep.MaxPacketSize) > p.size || ep.MaxPacketSize == 0 {
		return PipeErrInvalidPipe
	}
	p.ctrl.Freeze(p.index, true)
	p.ctrl.ConfigurePipe(p.index, hal.PipeConfig{
		Type:     hal.PipeTypeOf(ep.Type),
		Token:    token,
		Interval: ep.Interval,
	})
	bank := p.bank()
	bank.SetAddr(p.addr)
	bank.SetSize(hal.SizeCode(ep.MaxPacketSize))
	bank.SetTarget(ep.DeviceAddress, ep.Number(), pipeErrorMax)
	return nil
}

// dispatch arms the pipe for one transaction of length bytes (ignored for IN).
func (p *Pipe) dispatch(ep *Endpoint, token hal.Token, length int) {
	bank := p.bank()
	bank.SetStatusBk(0)
	bank.SetStatusPipe(0)
	if token == hal.TokenIn {
		bank.SetByteCount(0)
		bank.SetMultiPacketSize(ep.MaxPacketSize)
	} else {
		bank.SetByteCount(uint16(length))
		bank.SetMultiPacketSize(0)
	}

	toggle := ep.Toggle(token)
	if token == hal.TokenSetup {
		toggle = false
	}

	p.ctrl.SetToken(p.index, token)
	p.ctrl.ClearPipeFlags(p.index, hal.PipeAllFlags)
	p.ctrl.SetDataToggle(p.index, toggle)
	p.ctrl.SetBankReady(p.index, token != hal.TokenIn)
	p.ctrl.Freeze(p.index, false)
}

// poll classifies the pipe state. It returns done=true on completion, a
// PipeErr on any reported error, or (false, 0) while still pending.
func (p *Pipe) poll(token hal.Token) (bool, PipeErr) {
	flags := p.ctrl.PipeFlags(p.index)
	bank := p.bank()

	complete := flags&hal.PipeTransferComplete0 != 0
	if token == hal.TokenSetup {
		complete = flags&hal.PipeSetupSent != 0
	}

	switch {
	case complete:
		return true, 0
	case bank.ErrorFlow():
		return false, PipeErrFlow
	case bank.TimeoutError():
		return false, PipeErrHwTimeout
	case bank.DataToggleError():
		return false, PipeErrDataToggle
	case flags&hal.PipeTransferFail != 0:
		return false, PipeErrTransferFail
	case flags&hal.PipeStall != 0:
		return false, PipeErrStall
	case flags&hal.PipeError != 0:
		return false, PipeErrPipe
	}
	return false, 0
}

var spinSink uint32

func backoff() {
	for i := 0; i < pollBackoff; i++ {
		spinSink++
	}
}

// syncTx runs one transaction to completion and returns the bank's byte
// count. Transient errors re-arm the pipe until NakLimit is exceeded;
// interrupt endpoints give up on the first flow error since it only
// means the device has nothing to report.
func (p *Pipe) syncTx(ep *Endpoint, token hal.Token, length int) (int, error) {
	until := p.clock.Now() + SetupTimeout
	naks := 0

	p.dispatch(ep, token, length)
	defer p.ctrl.Freeze(p.index, true)

	for p.clock.Now() < until {
		done, perr := p.poll(token)
		if done {
			p.ctrl.ClearPipeFlags(p.index, hal.PipeAllFlags)
			if token != hal.TokenSetup {
				ep.FlipToggle(token)
			}
			return int(p.bank().ByteCount()), nil
		}
		if perr == 0 {
			backoff()
			continue
		}

		if !perr.Transient() {
			pkg.LogDebug(pkg.ComponentPipe, "transaction failed",
				"pipe", p.index, "token", token, "error", perr)
			return 0, perr
		}
		if perr == PipeErrFlow && ep.Type == hal.TransferInterrupt {
			return 0, perr
		}

		naks++
		if naks > NakLimit {
			pkg.LogDebug(pkg.ComponentPipe, "NAK limit exceeded",
				"pipe", p.index, "token", token, "last", perr)
			return 0, PipeErrNaksExceeded
		}
		if perr == PipeErrDataToggle {
			// Resynchronise with the device's sequence bit.
			ep.FlipToggle(token)
		}
		p.dispatch(ep, token, length)
		backoff()
	}

	pkg.LogDebug(pkg.ComponentPipe, "transaction timed out",
		"pipe", p.index, "token", token, "naks", naks)
	return 0, PipeErrSwTimeout
}

// inTransfer issues IN transactions until a short packet arrives or buf
// is full.
func (p *Pipe) inTransfer(ep *Endpoint, buf []byte) (int, error) {
	if err := p.configure(ep, hal.TokenIn); err != nil {
		return 0, err
	}
	total := 0
	for {
		n, err := p.syncTx(ep, hal.TokenIn, 0)
		if err != nil {
			return total, err
		}
		if n > p.size {
			n = p.size
		}
		total += copy(buf[total:], p.buffer()[:n])
		if n < int(ep.MaxPacketSize) || total >= len(buf) {
			return total, nil
		}
	}
}

// outTransfer issues OUT transactions until buf is sent. An empty buf
// sends one zero-length packet.
func (p *Pipe) outTransfer(ep *Endpoint, buf []byte) (int, error) {
	if err := p.configure(ep, hal.TokenOut); err != nil {
		return 0, err
	}
	total := 0
	for {
		chunk := min(len(buf)-total, int(ep.MaxPacketSize))
		copy(p.buffer(), buf[total:total+chunk])
		if _, err := p.syncTx(ep, hal.TokenOut, chunk); err != nil {
			return total, err
		}
		total += chunk
		if total >= len(buf) {
			return total, nil
		}
	}
}

// controlTransfer runs the SETUP, optional DATA and STATUS stages of a
// control transfer and returns the data stage byte count.
func (p *Pipe) controlTransfer(ep *Endpoint, setup *hal.SetupPacket, buf []byte) (int, error) {
	if err := p.configure(ep, hal.TokenSetup); err != nil {
		return 0, err
	}
	setup.MarshalTo(p.buffer())
	if _, err := p.syncTx(ep, hal.TokenSetup, hal.SetupPacketSize); err != nil {
		return 0, err
	}

	// Data and status stages start at DATA1.
	ep.SetToggle(hal.TokenIn, true)
	ep.SetToggle(hal.TokenOut, true)

	n := 0
	if len(buf) > 0 {
		var err error
		if setup.IsIn() {
			n, err = p.inTransfer(ep, buf)
		} else {
			n, err = p.outTransfer(ep, buf)
		}
		if err != nil {
			return n, err
		}
	}

	status := hal.TokenIn
	if setup.IsIn() {
		status = hal.TokenOut
	}
	ep.SetToggle(status, true)
	if status == hal.TokenIn {
		if err := p.configure(ep, status); err != nil {
			return n, err
		}
		if _, err := p.syncTx(ep, status, 0); err != nil {
			return n, err
		}
		return n, nil
	}
	if _, err := p.outTransfer(ep, nil); err != nil {
		return n, err
	}
	return n, nil
}
