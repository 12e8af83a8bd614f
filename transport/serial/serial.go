package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	goserial "go.bug.st/serial"

	"github.com/ardnew/usbmidi/midi"
	"github.com/ardnew/usbmidi/pkg"
)

// Baud rates of the supported links.
const (
	// BaudMIDI is the MIDI 1.0 current loop rate.
	BaudMIDI = 31250

	// BaudBeatStep is the rate of the BeatStep UART link.
	BaudBeatStep = 115200
)

// Port limits.
const (
	// ReadBufferSize is the size of one UART read.
	ReadBufferSize = 64

	// DefaultQueueSize is the transmit queue capacity in messages.
	DefaultQueueSize = 64
)

// Handler receives the packets decoded from one UART read.
type Handler func(packets []midi.Packet)

// Stats counts port traffic.
type Stats struct {
	RxBytes   uint64 `json:"rxBytes"`
	TxBytes   uint64 `json:"txBytes"`
	RxPackets uint64 `json:"rxPackets"`
	Dropped   uint64 `json:"dropped"`
	Errors    uint64 `json:"errors"`
}

// Port is a MIDI UART. Received bytes are decoded into packets by a
// reader goroutine; transmitted packets are queued and written by a
// writer goroutine.
type Port struct {
	name   string
	rwc    io.ReadWriteCloser
	parser *midi.Parser

	mutex   sync.Mutex
	handler Handler
	stats   Stats
	running bool

	queue     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open opens a UART device at baud and wraps it in a Port stamping
// received packets with cable.
func Open(device string, baud int, cable uint8) (*Port, error) {
	mode := &goserial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	}
	port, err := goserial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("reset %s: %w", device, err)
	}
	pkg.LogInfo(pkg.ComponentSerial, "port opened",
		"device", device,
		"baud", baud,
		"cable", cable)
	return NewPort(device, port, cable, 0), nil
}

// ListPorts returns the names of the serial devices on the system.
func ListPorts() ([]string, error) {
	return goserial.GetPortsList()
}

// NewPort wraps rwc. A queueSize of 0 selects DefaultQueueSize.
func NewPort(name string, rwc io.ReadWriteCloser, cable uint8, queueSize int) *Port {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Port{
		name:   name,
		rwc:    rwc,
		parser: midi.NewParser(cable),
		queue:  make(chan []byte, queueSize),
		closed: make(chan struct{}),
	}
}

// Name returns the device name.
func (p *Port) Name() string {
	return p.name
}

// Cable returns the cable stamped on received packets.
func (p *Port) Cable() uint8 {
	return p.parser.Cable()
}

// SetHandler sets the receive handler. It must be called before Start.
func (p *Port) SetHandler(h Handler) {
	p.mutex.Lock()
	p.handler = h
	p.mutex.Unlock()
}

// Stats returns the traffic counters.
func (p *Port) Stats() Stats {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.stats
}

// Start launches the reader and writer goroutines. They stop when ctx is
// cancelled or the port is closed.
func (p *Port) Start(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.running {
		return pkg.ErrAlreadyRunning
	}
	select {
	case <-p.closed:
		return os.ErrClosed
	default:
	}
	p.running = true

	p.wg.Add(2)
	go p.readLoop()
	go p.writeLoop()
	go func() {
		select {
		case <-ctx.Done():
			p.Close()
		case <-p.closed:
		}
	}()
	return nil
}

// Close stops the goroutines and closes the device.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		err = p.rwc.Close()
		p.wg.Wait()
		pkg.LogInfo(pkg.ComponentSerial, "port closed", "device", p.name)
	})
	return err
}

// Transmit queues the raw MIDI bytes of packets. It fails with
// ErrQueueFull rather than block.
func (p *Port) Transmit(packets []midi.Packet) error {
	var data []byte
	for _, pkt := range packets {
		data = append(data, pkt.Payload()...)
	}
	return p.Write(data)
}

// Write queues raw MIDI bytes.
func (p *Port) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	select {
	case <-p.closed:
		return os.ErrClosed
	default:
	}
	select {
	case p.queue <- data:
		return nil
	default:
		p.count(func(s *Stats) { s.Dropped += uint64(len(data)) })
		return fmt.Errorf("%s: %w", p.name, pkg.ErrQueueFull)
	}
}

func (p *Port) count(fn func(*Stats)) {
	p.mutex.Lock()
	fn(&p.stats)
	p.mutex.Unlock()
}

func (p *Port) readLoop() {
	defer p.wg.Done()
	var (
		buf     [ReadBufferSize]byte
		packets []midi.Packet
	)
	for {
		n, err := p.rwc.Read(buf[:])
		if n > 0 {
			packets = p.parser.Parse(buf[:n], packets[:0])
			p.mutex.Lock()
			p.stats.RxBytes += uint64(n)
			p.stats.RxPackets += uint64(len(packets))
			handler := p.handler
			p.mutex.Unlock()
			if handler != nil && len(packets) > 0 {
				handler(slices.Clone(packets))
			}
		}
		if err != nil {
			select {
			case <-p.closed:
				return
			default:
			}
			if errors.Is(err, io.EOF) {
				pkg.LogInfo(pkg.ComponentSerial, "port reached EOF", "device", p.name)
				return
			}
			p.count(func(s *Stats) { s.Errors++ })
			pkg.LogError(pkg.ComponentSerial, "read failed",
				"device", p.name,
				"error", err)
			return
		}
	}
}

func (p *Port) writeLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.closed:
			return
		case data := <-p.queue:
			n, err := p.rwc.Write(data)
			p.count(func(s *Stats) { s.TxBytes += uint64(n) })
			if err != nil {
				p.count(func(s *Stats) { s.Errors++ })
				pkg.LogError(pkg.ComponentSerial, "write failed",
					"device", p.name,
					"error", err)
			}
		}
	}
}
