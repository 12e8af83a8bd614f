// Package host implements a register-level USB host for a single attached
// full- or low-speed device.
//
// It is platform-agnostic and drives hardware through the [hal.Controller]
// interface defined in the github.com/ardnew/usbmidi/host/hal package:
// pipe descriptors, bank and status registers, and the host and pipe
// interrupt flags.
//
// # Architecture
//
// The host stack is organized into several layers:
//
//   - Pipe runs one SETUP, IN or OUT transaction to completion, retrying
//     NAK, flow and toggle conditions up to [NakLimit] times within
//     [SetupTimeout]
//   - PipeTable maps endpoints to hardware pipes and builds control, IN
//     and OUT transfers from transactions
//   - Host services interrupt events, enumerates the device and ticks the
//     registered class drivers on every start-of-frame
//   - Device is the host's view of the enumerated device
//
// # Errors
//
// Pipe-level conditions are reported as [PipeErr] values. The public
// transfer methods wrap them in a [TransferError] whose Kind says whether
// retrying later may help; [IsRetry] tests for that.
//
// # Example
//
//	h := host.New(ctrl, nil)
//	h.Register(midiDriver)
//
//	for {
//	    if err := h.Update(ctx); err != nil {
//	        log.Printf("attach failed: %v", err)
//	    }
//	}
//
// A simulated controller for tests is available in
// [github.com/ardnew/usbmidi/host/hal/sim].
package host
