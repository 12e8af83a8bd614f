// Package route dispatches USB-MIDI packet batches between interfaces.
//
// An [Interface] names a port (a UART or a USB-MIDI cable). A [Route]
// connects a source interface to a destination through an ordered chain
// of [Filter] values. The [Router] keeps routes in two tables: ingress
// routes keyed by source and egress routes keyed by destination.
//
// Dispatching a batch received on a source runs every ingress route of
// that source in registration order, each on an independent [Context].
// Routes that pass forward to their destination, where egress routes run
// the same way before the batch reaches the interface's [Sink]:
//
//	r := route.NewRouter()
//	r.Attach(route.Serial(1), serialOut)
//	r.AddRoute(route.Link(route.Serial(0), route.Serial(1)).
//	    Filter(route.Channels(0), route.Transpose(12)))
//
//	err := r.MidiRoute(packets, route.Src(route.Serial(0)))
//
// A filter returning false discards the batch for its route only. Filter
// errors are logged and the chain continues, unless the router was built
// with [WithStrictFilters].
package route
