// Package sim provides an in-memory implementation of [hal.Controller].
//
// The simulated controller keeps pipe descriptors and buffer RAM in plain
// Go memory. When the host arms a pipe and then reads its interrupt flags,
// the pending transaction is handed to the attached [Device], and the
// device's [Response] is reflected back into the descriptor status
// registers and pipe flags exactly as the hardware would report it.
//
// [MIDIDevice] is a ready-made USB-MIDI streaming function: it answers
// enumeration requests, applies SET_ADDRESS at the status stage, NAKs its
// bulk IN endpoint while it has nothing queued, and records bulk OUT data.
//
//	ctrl := sim.New(0)
//	dev := sim.NewMIDIDevice(0x1209, 0x0001)
//	ctrl.Attach(dev, hal.SpeedFull)
//
//	h := host.New(ctrl, sim.NewClock(time.Microsecond))
//	if err := h.Update(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// [Clock] advances by a fixed step on every read so that transfer
// deadlines can be exercised deterministically.
package sim
