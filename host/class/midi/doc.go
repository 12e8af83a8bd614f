// Package midi implements a USB-MIDI class driver for the host stack.
//
// The driver claims a device exposing an audio-class MIDI streaming
// interface (class 0x01, subclass 0x03) with bulk endpoints in both
// directions. On every host tick it reads one bulk IN transfer, splits it
// into event packets for the receive handler, and writes up to one bulk
// OUT transfer from its transmit queue:
//
//	drv := midi.New(0, func(packets []codec.Packet) {
//	    router.MidiRoute(packets, route.Src(route.USB(0)))
//	})
//	h.Register(drv)
//
// A device with nothing to send NAKs the IN endpoint; the driver treats
// that, and any other retryable transfer error, as an empty read.
package midi
