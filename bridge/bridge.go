package bridge

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ardnew/usbmidi/config"
	"github.com/ardnew/usbmidi/host"
	"github.com/ardnew/usbmidi/host/class/midi"
	"github.com/ardnew/usbmidi/host/hal"
	"github.com/ardnew/usbmidi/host/hal/sim"
	codec "github.com/ardnew/usbmidi/midi"
	"github.com/ardnew/usbmidi/pkg"
	"github.com/ardnew/usbmidi/pkg/usbid"
	"github.com/ardnew/usbmidi/route"
	"github.com/ardnew/usbmidi/transport/serial"
)

// Runtime limits.
const (
	// FramePeriod is the USB full-speed frame interval.
	FramePeriod = time.Millisecond

	// InboundQueueSize is the capacity of the dispatch queue in batches.
	InboundQueueSize = 64

	// DisplayHistory is the number of display lines retained.
	DisplayHistory = 64

	// maxEventsPerFrame bounds the host events serviced per wakeup.
	maxEventsPerFrame = 8
)

// Simulated device identity.
const (
	SimVendorID  = 0x1209
	SimProductID = 0x6D69
)

// Opener opens the serial port a configuration entry names.
type Opener func(cfg config.Serial) (*serial.Port, error)

func openSerial(cfg config.Serial) (*serial.Port, error) {
	return serial.Open(cfg.Device, cfg.Baud, cfg.Cable)
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithController drives the USB host port with ctrl.
func WithController(ctrl hal.Controller) Option {
	return func(r *Runtime) {
		r.ctrl = ctrl
	}
}

// WithOpener replaces the serial port opener.
func WithOpener(open Opener) Option {
	return func(r *Runtime) {
		r.open = open
	}
}

// WithFramePeriod sets the host service interval.
func WithFramePeriod(d time.Duration) Option {
	return func(r *Runtime) {
		r.frame = d
	}
}

type dispatch struct {
	binding route.Binding
	packets []codec.Packet
	result  chan error
}

// Runtime owns the router and every interface feeding it. All routing
// happens on the goroutine running Run, one batch at a time.
type Runtime struct {
	cfg    *config.Config
	router *route.Router
	ports  map[uint8]*serial.Port
	open   Opener
	frame  time.Duration

	ctrl   hal.Controller
	sim    *sim.Controller
	simDev *sim.MIDIDevice
	host   *host.Host
	usb    *midi.Driver

	inbound chan dispatch
	irq     chan struct{}
	stop    chan struct{}

	mutex   sync.Mutex
	started bool
	display []string
}

// New builds a runtime from cfg: it opens the serial ports, prepares the
// USB host port and registers the configured routes.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runtime{
		cfg:     cfg,
		ports:   make(map[uint8]*serial.Port),
		open:    openSerial,
		frame:   FramePeriod,
		inbound: make(chan dispatch, InboundQueueSize),
		irq:     make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	ropts := []route.Option{route.WithDisplay(r.show)}
	if cfg.StrictFilters {
		ropts = append(ropts, route.WithStrictFilters())
	}
	r.router = route.NewRouter(ropts...)

	routes, err := cfg.BuildRoutes()
	if err != nil {
		return nil, err
	}
	for _, rt := range routes {
		if _, err := r.router.AddRoute(rt); err != nil {
			return nil, err
		}
	}

	if cfg.USB.Enabled {
		if err := r.setupUSB(); err != nil {
			return nil, err
		}
	}
	for _, sc := range cfg.Serial {
		if err := r.setupSerial(sc); err != nil {
			r.closePorts()
			return nil, err
		}
	}
	return r, nil
}

func (r *Runtime) setupUSB() error {
	if r.ctrl == nil {
		if !r.cfg.USB.Simulate {
			return fmt.Errorf("usb host: no controller: %w", pkg.ErrNoDevice)
		}
		r.sim = sim.New(0)
		r.simDev = sim.NewMIDIDevice(SimVendorID, SimProductID)
		r.ctrl = r.sim
	}

	iface := route.USB(0)
	r.host = host.New(r.ctrl, nil)
	r.usb = midi.New(r.cfg.USB.QueueSize, func(packets []codec.Packet) {
		r.post(route.Src(iface), packets)
	})
	if err := r.host.Register(r.usb); err != nil {
		return err
	}
	r.router.Attach(iface, r.usb)

	if r.sim != nil {
		r.sim.Attach(r.simDev, hal.SpeedFull)
	}
	return nil
}

func (r *Runtime) setupSerial(sc config.Serial) error {
	port, err := r.open(sc)
	if err != nil {
		return fmt.Errorf("serial %d: %w", sc.Index, err)
	}
	iface := route.Serial(sc.Index)
	port.SetHandler(func(packets []codec.Packet) {
		r.post(route.Src(iface), packets)
	})
	r.ports[sc.Index] = port
	r.router.Attach(iface, port)
	return nil
}

func (r *Runtime) closePorts() {
	for idx, port := range r.ports {
		if err := port.Close(); err != nil {
			pkg.LogWarn(pkg.ComponentBridge, "close port failed",
				"serial", idx,
				"error", err)
		}
	}
}

// Router returns the runtime's router.
func (r *Runtime) Router() *route.Router {
	return r.router
}

// Host returns the USB host, or nil when USB is disabled.
func (r *Runtime) Host() *host.Host {
	return r.host
}

// USB returns the USB-MIDI class driver, or nil when USB is disabled.
func (r *Runtime) USB() *midi.Driver {
	return r.usb
}

// SimDevice returns the simulated USB-MIDI device, or nil when the host
// port drives a real controller.
func (r *Runtime) SimDevice() *sim.MIDIDevice {
	return r.simDev
}

// Ports returns the serial port indices in ascending order.
func (r *Runtime) Ports() []uint8 {
	idx := make([]uint8, 0, len(r.ports))
	for i := range r.ports {
		idx = append(idx, i)
	}
	slices.Sort(idx)
	return idx
}

// Port returns the serial port with the given index.
func (r *Runtime) Port(index uint8) (*serial.Port, bool) {
	p, ok := r.ports[index]
	return p, ok
}

// Interrupt wakes the host service loop outside its frame tick. It is
// safe to call from an interrupt handler.
func (r *Runtime) Interrupt() {
	select {
	case r.irq <- struct{}{}:
	default:
	}
}

// Run starts the interfaces and dispatches inbound batches until ctx is
// cancelled. A runtime runs once.
func (r *Runtime) Run(ctx context.Context) error {
	r.mutex.Lock()
	if r.started {
		r.mutex.Unlock()
		return pkg.ErrAlreadyRunning
	}
	r.started = true
	r.mutex.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for idx, port := range r.ports {
		if err := port.Start(ctx); err != nil {
			close(r.stop)
			r.closePorts()
			return fmt.Errorf("serial %d: %w", idx, err)
		}
	}

	var wg sync.WaitGroup
	if r.host != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.serviceHost(ctx)
		}()
	}

	pkg.LogInfo(pkg.ComponentBridge, "runtime started",
		"serial", len(r.ports),
		"usb", r.host != nil,
		"routes", len(r.router.Routes()))

	r.dispatchLoop(ctx)

	close(r.stop)
	wg.Wait()
	r.closePorts()
	pkg.LogInfo(pkg.ComponentBridge, "runtime stopped")
	return nil
}

func (r *Runtime) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-r.inbound:
			err := r.router.MidiRoute(d.packets, d.binding)
			if d.result != nil {
				d.result <- err
			} else if err != nil {
				pkg.LogWarn(pkg.ComponentBridge, "dispatch failed",
					"binding", d.binding,
					"error", err)
			}
		}
	}
}

func (r *Runtime) serviceHost(ctx context.Context) {
	ticker := time.NewTicker(r.frame)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.irq:
		case <-ticker.C:
			if r.sim != nil {
				r.sim.Frame()
			}
		}
		for i := 0; i < maxEventsPerFrame && r.ctrl.InterruptFlags() != 0; i++ {
			if err := r.host.Update(ctx); err != nil {
				pkg.LogWarn(pkg.ComponentBridge, "host update failed", "error", err)
			}
		}
	}
}

// post queues a received batch for dispatch, waiting for room.
func (r *Runtime) post(b route.Binding, packets []codec.Packet) {
	select {
	case r.inbound <- dispatch{binding: b, packets: packets}:
	case <-r.stop:
	}
}

// Inject routes packets as if they had arrived on (or were leaving
// through) the bound interface, and returns the routing result.
func (r *Runtime) Inject(ctx context.Context, b route.Binding, packets []codec.Packet) error {
	r.mutex.Lock()
	started := r.started
	r.mutex.Unlock()
	if !started {
		return pkg.ErrNotRunning
	}

	d := dispatch{binding: b, packets: packets, result: make(chan error, 1)}
	select {
	case r.inbound <- d:
	case <-r.stop:
		return pkg.ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-d.result:
		return err
	case <-r.stop:
		return pkg.ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) show(h route.Handle, lines []string) {
	r.mutex.Lock()
	r.display = append(r.display, lines...)
	if n := len(r.display) - DisplayHistory; n > 0 {
		r.display = slices.Delete(r.display, 0, n)
	}
	r.mutex.Unlock()
	for _, line := range lines {
		pkg.LogInfo(pkg.ComponentBridge, line, "route", h)
	}
}

// Display returns the most recent filter display lines, oldest first.
func (r *Runtime) Display() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return slices.Clone(r.display)
}

// Stats is a snapshot of the runtime counters.
type Stats struct {
	Router map[string]route.Stats  `json:"router"`
	Serial map[string]serial.Stats `json:"serial,omitempty"`
	USB    *midi.Stats             `json:"usb,omitempty"`
	Host   string                  `json:"host,omitempty"`
	Device string                  `json:"device,omitempty"`
}

// Stats returns the current counters.
func (r *Runtime) Stats() Stats {
	s := Stats{Router: make(map[string]route.Stats)}
	for iface, st := range r.router.Stats() {
		s.Router[iface.String()] = st
	}
	if len(r.ports) > 0 {
		s.Serial = make(map[string]serial.Stats, len(r.ports))
		for idx, port := range r.ports {
			s.Serial[route.Serial(idx).String()] = port.Stats()
		}
	}
	if r.usb != nil {
		st := r.usb.Stats()
		s.USB = &st
		s.Host = r.host.State().String()
		if d := r.host.Device(); d != nil {
			s.Device = usbid.Lookup(d.VendorID(), d.ProductID())
		}
	}
	return s
}
