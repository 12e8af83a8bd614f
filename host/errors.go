package host

import (
	"errors"
	"fmt"
)

// PipeErr classifies the outcome of a failed pipe transaction.
type PipeErr uint8

// Pipe error codes. The first three are transient and retried inside the
// transfer engine; the rest are permanent.
const (
	PipeErrTransferFail PipeErr = iota + 1
	PipeErrFlow
	PipeErrDataToggle
	PipeErrShortPacket
	PipeErrInvalidPipe
	PipeErrStall
	PipeErrPipe
	PipeErrHwTimeout
	PipeErrSwTimeout
	PipeErrNaksExceeded
	PipeErrOther
)

// Error implements error.
func (e PipeErr) Error() string {
	switch e {
	case PipeErrTransferFail:
		return "transfer failed"
	case PipeErrFlow:
		return "flow error"
	case PipeErrDataToggle:
		return "data toggle error"
	case PipeErrShortPacket:
		return "short packet"
	case PipeErrInvalidPipe:
		return "invalid pipe"
	case PipeErrStall:
		return "endpoint stalled"
	case PipeErrPipe:
		return "pipe error"
	case PipeErrHwTimeout:
		return "hardware timeout"
	case PipeErrSwTimeout:
		return "software timeout"
	case PipeErrNaksExceeded:
		return "NAK limit exceeded"
	case PipeErrOther:
		return "pipe failure"
	default:
		return fmt.Sprintf("pipe error %d", uint8(e))
	}
}

// Transient reports whether the condition is retried by the engine.
func (e PipeErr) Transient() bool {
	switch e {
	case PipeErrTransferFail, PipeErrFlow, PipeErrDataToggle:
		return true
	default:
		return false
	}
}

// Other returns a PipeErrOther error carrying a reason.
func Other(reason string) error {
	return fmt.Errorf("%w: %s", PipeErrOther, reason)
}

// TransferErrorKind tells the caller whether retrying may help.
type TransferErrorKind uint8

// Transfer error kinds.
const (
	TransferRetry TransferErrorKind = iota
	TransferPermanent
)

// String returns the kind name.
func (k TransferErrorKind) String() string {
	if k == TransferRetry {
		return "retry"
	}
	return "permanent"
}

// TransferError is the error returned by the public transfer operations.
type TransferError struct {
	Kind TransferErrorKind
	Err  error
}

// Error implements error.
func (e *TransferError) Error() string {
	return fmt.Sprintf("%s transfer error: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying pipe error.
func (e *TransferError) Unwrap() error {
	return e.Err
}

// newTransferError maps a pipe error onto a TransferError. Errors that are
// not PipeErr values are permanent.
func newTransferError(err error) error {
	if err == nil {
		return nil
	}
	var te *TransferError
	if errors.As(err, &te) {
		return err
	}
	kind := TransferPermanent
	var pe PipeErr
	if errors.As(err, &pe) && pe.Transient() {
		kind = TransferRetry
	}
	return &TransferError{Kind: kind, Err: err}
}

// IsRetry reports whether err is a TransferError that may succeed if
// repeated later.
func IsRetry(err error) bool {
	var te *TransferError
	return errors.As(err, &te) && te.Kind == TransferRetry
}
