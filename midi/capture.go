package midi

import (
	"fmt"

	"github.com/ardnew/usbmidi/pkg"
)

// DefaultCaptureSize bounds a Capture created with size 0.
const DefaultCaptureSize = 256

// Capture accumulates one complete sysex message body across packets.
//
// After an error the caller must Reset before reuse; until then Add keeps
// returning the same error.
type Capture struct {
	buf  []byte
	max  int
	open bool
	done bool
	err  error
}

// NewCapture returns a capture holding at most size body bytes.
func NewCapture(size int) *Capture {
	if size <= 0 {
		size = DefaultCaptureSize
	}
	return &Capture{buf: make([]byte, 0, size), max: size}
}

// Reset clears the buffer and any error.
func (c *Capture) Reset() {
	c.buf = c.buf[:0]
	c.open = false
	c.done = false
	c.err = nil
}

// Bytes returns the captured body. The slice is valid until the next Add
// or Reset.
func (c *Capture) Bytes() []byte {
	return c.buf
}

// Complete reports whether a full message has been captured.
func (c *Capture) Complete() bool {
	return c.done
}

func (c *Capture) append(b []byte) error {
	if len(c.buf)+len(b) > c.max {
		return fmt.Errorf("%d bytes: %w", len(c.buf)+len(b), pkg.ErrSysexOverflow)
	}
	c.buf = append(c.buf, b...)
	return nil
}

// Add consumes one packet and reports whether it completed the message.
// Non-sysex packets are ignored. A packet beginning a new message discards
// any completed or partial one.
func (c *Capture) Add(p Packet) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	ev, err := p.Event()
	if err != nil || !ev.Kind.IsSysex() {
		return false, nil
	}

	switch {
	case ev.Kind.StartsSysex():
		c.buf = c.buf[:0]
		c.done = false
		c.open = true
	case !c.open && ev.Kind == KindSysexCont:
		c.err = pkg.ErrSpuriousContinue
		return false, c.err
	case !c.open:
		c.err = pkg.ErrSpuriousEnd
		return false, c.err
	}

	if err := c.append(ev.Bytes()); err != nil {
		c.err = err
		return false, err
	}
	if ev.Kind.EndsSysex() {
		c.open = false
		c.done = true
	}
	return c.done, nil
}
