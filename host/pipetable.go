package host

import (
	"sync"

	"github.com/ardnew/usbmidi/host/hal"
)

// maxPipeBuffer caps the per-pipe slice of controller RAM.
const maxPipeBuffer = 64

// PipeTable owns the controller's pipes. Each endpoint number maps to the
// pipe with the same index; the pipe is re-targeted on every transfer.
// All transfers are serialised by the table lock.
type PipeTable struct {
	ctrl  hal.Controller
	pipes []Pipe
	mu    sync.Mutex
}

// NewPipeTable partitions controller RAM evenly between the pipes.
func NewPipeTable(ctrl hal.Controller, clock hal.Clock) *PipeTable {
	n := ctrl.NumPipes()
	size := 0
	if n > 0 {
		size = min(len(ctrl.RAM())/n, maxPipeBuffer)
	}
	t := &PipeTable{
		ctrl:  ctrl,
		pipes: make([]Pipe, n),
	}
	for i := range t.pipes {
		t.pipes[i] = Pipe{
			index: i,
			ctrl:  ctrl,
			clock: clock,
			addr:  uint32(i * size),
			size:  size,
		}
		ctrl.Descriptor(i).Clear()
	}
	return t
}

// Len returns the number of pipes.
func (t *PipeTable) Len() int {
	return len(t.pipes)
}

// reset clears every descriptor. The caller holds the lock.
func (t *PipeTable) reset() {
	for i := range t.pipes {
		t.ctrl.Freeze(i, true)
		t.ctrl.Descriptor(i).Clear()
	}
}

func (t *PipeTable) pipeFor(ep *Endpoint) (*Pipe, error) {
	i := int(ep.Number())
	if i >= len(t.pipes) {
		return nil, PipeErrInvalidPipe
	}
	return &t.pipes[i], nil
}

// ControlTransfer performs a control transfer on ep.
func (t *PipeTable) ControlTransfer(ep *Endpoint, setup *hal.SetupPacket, buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, err := t.pipeFor(ep)
	if err != nil {
		return 0, err
	}
	return p.controlTransfer(ep, setup, buf)
}

// InTransfer reads from ep into buf.
func (t *PipeTable) InTransfer(ep *Endpoint, buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, err := t.pipeFor(ep)
	if err != nil {
		return 0, err
	}
	return p.inTransfer(ep, buf)
}

// OutTransfer writes buf to ep.
func (t *PipeTable) OutTransfer(ep *Endpoint, buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, err := t.pipeFor(ep)
	if err != nil {
		return 0, err
	}
	return p.outTransfer(ep, buf)
}
