// Package bridge assembles the router and its interfaces into one
// runtime.
//
// A [Runtime] is built once from a [config.Config]. It opens the serial
// ports, brings up the USB host port with a USB-MIDI class driver, and
// registers the configured routes. [Runtime.Run] then services the host
// controller every frame and feeds every received batch through a
// single dispatch goroutine, so routes and filters never run
// concurrently with each other:
//
//	rt, err := bridge.New(cfg)
//	if err != nil {
//	    return err
//	}
//	return rt.Run(ctx)
//
// With USB simulation enabled the host port drives an in-memory
// controller with a USB-MIDI device attached, reachable through
// [Runtime.SimDevice].
package bridge
