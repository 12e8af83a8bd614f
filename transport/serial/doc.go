// Package serial carries USB-MIDI event packets over a MIDI UART.
//
// Received bytes go through a [midi.Parser], so running status and sysex
// framing are resolved before packets reach the handler. Transmitted
// packets are reduced to their raw MIDI bytes and queued for a writer
// goroutine; a full queue fails the call instead of blocking the router.
//
//	port, err := serial.Open("/dev/ttyUSB0", serial.BaudMIDI, 0)
//	if err != nil {
//	    return err
//	}
//	port.SetHandler(func(packets []midi.Packet) { ... })
//	port.Start(ctx)
//	defer port.Close()
//
// Devices are opened with go.bug.st/serial. [NewPort] accepts any
// io.ReadWriteCloser.
package serial
