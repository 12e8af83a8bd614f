package route

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ardnew/usbmidi/midi"
	"github.com/ardnew/usbmidi/pkg"
)

// Stats counts traffic on one interface.
type Stats struct {
	Received     uint64 `json:"received"`
	Transmitted  uint64 `json:"transmitted"`
	Dropped      uint64 `json:"dropped"`
	FilterErrors uint64 `json:"filterErrors"`
	SinkErrors   uint64 `json:"sinkErrors"`
}

// Entry is a registered route and its handle.
type Entry struct {
	Handle Handle
	Route  Route
}

// DisplayFunc receives the display lines a route's filters produced.
type DisplayFunc func(h Handle, lines []string)

// Option configures a Router.
type Option func(*Router)

// WithStrictFilters makes a filter error halt its route. By default the
// error is logged and the chain continues.
func WithStrictFilters() Option {
	return func(r *Router) {
		r.strict = true
	}
}

// WithDisplay sets the receiver of filter display lines.
func WithDisplay(fn DisplayFunc) Option {
	return func(r *Router) {
		r.display = fn
	}
}

// Router dispatches packet batches from source interfaces through ingress
// routes and egress routes to transmit sinks.
//
// Routes registered under one interface run in registration order, each
// on its own copy of the batch. Route tables may change while dispatch is
// in progress; a dispatch uses the tables as they were when it began.
type Router struct {
	mutex   sync.Mutex
	ingress map[Interface][]Entry
	egress  map[Interface][]Entry
	sinks   map[Interface]Sink
	stats   map[Interface]*Stats

	strict  bool
	display DisplayFunc
}

// NewRouter returns an empty router.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		ingress: make(map[Interface][]Entry),
		egress:  make(map[Interface][]Entry),
		sinks:   make(map[Interface]Sink),
		stats:   make(map[Interface]*Stats),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach sets the transmit sink for iface, replacing any previous one. A
// nil sink detaches the interface.
func (r *Router) Attach(iface Interface, sink Sink) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if sink == nil {
		delete(r.sinks, iface)
		return
	}
	r.sinks[iface] = sink
	r.statsLocked(iface)
}

// Interfaces returns the interfaces with an attached sink.
func (r *Router) Interfaces() []Interface {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]Interface, 0, len(r.sinks))
	for iface := range r.sinks {
		out = append(out, iface)
	}
	slices.SortFunc(out, compareInterface)
	return out
}

func compareInterface(a, b Interface) int {
	if a.Transport != b.Transport {
		return int(a.Transport) - int(b.Transport)
	}
	return int(a.Index) - int(b.Index)
}

// AddRoute registers route and returns its handle. A route with a source
// is stored as ingress for that source; otherwise it is stored as egress
// for its destination.
func (r *Router) AddRoute(route Route) (Handle, error) {
	if route.Source == nil && route.Destination == nil {
		return 0, pkg.ErrInvalidRoute
	}
	h := nextHandle()

	r.mutex.Lock()
	defer r.mutex.Unlock()
	e := Entry{Handle: h, Route: route}
	if route.Source != nil {
		r.ingress[*route.Source] = append(r.ingress[*route.Source], e)
	} else {
		r.egress[*route.Destination] = append(r.egress[*route.Destination], e)
	}

	pkg.LogInfo(pkg.ComponentRoute, "route added",
		"handle", h,
		"route", route.String(),
		"filters", len(route.Filters))
	return h, nil
}

// RemoveRoute unregisters the route with handle h.
func (r *Router) RemoveRoute(h Handle) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, table := range []map[Interface][]Entry{r.ingress, r.egress} {
		for iface, entries := range table {
			i := slices.IndexFunc(entries, func(e Entry) bool { return e.Handle == h })
			if i < 0 {
				continue
			}
			// Dispatches in flight hold the old slice.
			entries = slices.Delete(slices.Clone(entries), i, i+1)
			if len(entries) == 0 {
				delete(table, iface)
			} else {
				table[iface] = entries
			}
			pkg.LogInfo(pkg.ComponentRoute, "route removed", "handle", h)
			return nil
		}
	}
	return fmt.Errorf("handle %d: %w", h, pkg.ErrUnknownRoute)
}

// Routes returns all registered routes ordered by handle.
func (r *Router) Routes() []Entry {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var out []Entry
	for _, table := range []map[Interface][]Entry{r.ingress, r.egress} {
		for _, entries := range table {
			out = append(out, entries...)
		}
	}
	slices.SortFunc(out, func(a, b Entry) int {
		switch {
		case a.Handle < b.Handle:
			return -1
		case a.Handle > b.Handle:
			return 1
		}
		return 0
	})
	return out
}

// Stats returns a snapshot of the per-interface counters.
func (r *Router) Stats() map[Interface]Stats {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make(map[Interface]Stats, len(r.stats))
	for iface, s := range r.stats {
		out[iface] = *s
	}
	return out
}

func (r *Router) statsLocked(iface Interface) *Stats {
	s, ok := r.stats[iface]
	if !ok {
		s = &Stats{}
		r.stats[iface] = s
	}
	return s
}

func (r *Router) count(iface Interface, fn func(*Stats)) {
	r.mutex.Lock()
	fn(r.statsLocked(iface))
	r.mutex.Unlock()
}

// MidiRoute dispatches a packet batch.
//
// For a source binding every ingress route of the source runs on its own
// copy of the batch; routes that pass forward to the destination set by a
// filter, else to their static destination. For a destination binding
// ingress matching is skipped and the batch goes straight to egress
// processing.
//
// Egress processing runs each egress route of the destination on its own
// clone of the ingress context, so captures and display lines recorded on
// the way in are visible to egress filters but not shared between sibling
// routes. It transmits the result of every route that passes. Without
// egress routes the batch is transmitted unchanged.
func (r *Router) MidiRoute(packets []midi.Packet, binding Binding) error {
	if len(packets) == 0 {
		return nil
	}
	if binding.Dir == DirDst {
		return r.forward(binding.Interface, NewContext(packets))
	}

	src := binding.Interface
	r.mutex.Lock()
	routes := r.ingress[src]
	s := r.statsLocked(src)
	s.Received += uint64(len(packets))
	if len(routes) == 0 {
		s.Dropped += uint64(len(packets))
	}
	r.mutex.Unlock()

	if len(routes) == 0 {
		pkg.LogDebug(pkg.ComponentRoute, "no route",
			"source", src,
			"packets", len(packets))
		return nil
	}

	var errs []error
	for _, e := range routes {
		ctx := NewContext(packets)
		pass, err := r.run(e, ctx, src)
		if err != nil {
			errs = append(errs, err)
		}
		if !pass {
			continue
		}
		dst := e.Route.Destination
		if ctx.Destination != nil {
			dst = ctx.Destination
		}
		if dst == nil {
			pkg.LogDebug(pkg.ComponentRoute, "route has no destination",
				"handle", e.Handle,
				"source", src)
			continue
		}
		if err := r.forward(*dst, ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// forward runs egress processing for dst on clones of in.
func (r *Router) forward(dst Interface, in *Context) error {
	if len(in.Packets) == 0 {
		return nil
	}
	r.mutex.Lock()
	routes := r.egress[dst]
	r.mutex.Unlock()

	if len(routes) == 0 {
		return r.transmit(dst, in.Packets)
	}

	var errs []error
	for _, e := range routes {
		ctx := in.Clone()
		pass, err := r.run(e, ctx, dst)
		if err != nil {
			errs = append(errs, err)
		}
		if !pass {
			continue
		}
		if err := r.transmit(dst, ctx.Packets); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// run applies the route's filter chain. A false result discards the batch
// for this route.
func (r *Router) run(e Entry, ctx *Context, iface Interface) (bool, error) {
	shown := len(ctx.Strings)
	for i, f := range e.Route.Filters {
		pass, err := f.Filter(ctx)
		if err != nil {
			r.count(iface, func(s *Stats) { s.FilterErrors++ })
			pkg.LogWarn(pkg.ComponentRoute, "filter error",
				"handle", e.Handle,
				"filter", i,
				"error", err)
			if r.strict {
				return false, fmt.Errorf("route %d filter %d: %w: %w", e.Handle, i, pkg.ErrFilterRejected, err)
			}
			continue
		}
		if !pass {
			pkg.LogDebug(pkg.ComponentRoute, "filtered",
				"handle", e.Handle,
				"filter", i)
			return false, nil
		}
	}
	if r.display != nil && len(ctx.Strings) > shown {
		r.display(e.Handle, slices.Clone(ctx.Strings[shown:]))
	}
	return true, nil
}

func (r *Router) transmit(dst Interface, packets []midi.Packet) error {
	if len(packets) == 0 {
		return nil
	}
	r.mutex.Lock()
	sink := r.sinks[dst]
	s := r.statsLocked(dst)
	if sink == nil {
		s.Dropped += uint64(len(packets))
	}
	r.mutex.Unlock()

	if sink == nil {
		return fmt.Errorf("transmit %v: %w", dst, pkg.ErrUnknownInterface)
	}
	if err := sink.Transmit(packets); err != nil {
		r.count(dst, func(s *Stats) { s.SinkErrors++ })
		return fmt.Errorf("transmit %v: %w", dst, err)
	}
	r.count(dst, func(s *Stats) { s.Transmitted += uint64(len(packets)) })
	return nil
}
