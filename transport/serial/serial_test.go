package serial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ardnew/usbmidi/midi"
	"github.com/ardnew/usbmidi/pkg"
)

// =============================================================================
// In-memory UART
// =============================================================================

// loopback is a UART whose receive side is fed by the test and whose
// transmit side is captured.
type loopback struct {
	rx *io.PipeReader
	in *io.PipeWriter

	mu      sync.Mutex
	tx      bytes.Buffer
	written chan struct{}
}

func newLoopback() *loopback {
	r, w := io.Pipe()
	return &loopback{rx: r, in: w, written: make(chan struct{}, 16)}
}

func (l *loopback) Read(p []byte) (int, error) {
	return l.rx.Read(p)
}

func (l *loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, err := l.tx.Write(p)
	select {
	case l.written <- struct{}{}:
	default:
	}
	return n, err
}

func (l *loopback) Close() error {
	return l.rx.Close()
}

func (l *loopback) sent() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return bytes.Clone(l.tx.Bytes())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(time.Millisecond)
	}
}

// =============================================================================
// Receive Tests
// =============================================================================

func TestPort_Receive(t *testing.T) {
	uart := newLoopback()
	port := NewPort("loop", uart, 1, 0)

	var (
		mu  sync.Mutex
		got []midi.Packet
	)
	port.SetHandler(func(p []midi.Packet) {
		mu.Lock()
		got = append(got, p...)
		mu.Unlock()
	})
	if err := port.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer port.Close()

	// Running status split across writes.
	uart.in.Write([]byte{0x90, 0x40})
	uart.in.Write([]byte{0x7F, 0x41, 0x50})

	want := []midi.Packet{{0x19, 0x90, 0x40, 0x7F}, {0x19, 0x90, 0x41, 0x50}}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	})
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("packet %d = %v, want %v", i, got[i], want[i])
		}
	}
	if s := port.Stats(); s.RxBytes != 5 || s.RxPackets != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}

// =============================================================================
// Transmit Tests
// =============================================================================

func TestPort_Transmit(t *testing.T) {
	uart := newLoopback()
	port := NewPort("loop", uart, 0, 0)
	if err := port.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer port.Close()

	packets := append([]midi.Packet{{0x09, 0x91, 0x3C, 0x64}},
		midi.NewSysex(0, midi.Seq(0x42, 0x30, 0x04), midi.Val(0x10)).Packets()...)
	if err := port.Transmit(packets); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}

	want := []byte{0x91, 0x3C, 0x64, 0xF0, 0x42, 0x30, 0x04, 0x10, 0xF7}
	waitFor(t, func() bool { return len(uart.sent()) == len(want) })
	if got := uart.sent(); !bytes.Equal(got, want) {
		t.Errorf("sent % x, want % x", got, want)
	}
	waitFor(t, func() bool { return port.Stats().TxBytes == uint64(len(want)) })
}

func TestPort_QueueFull(t *testing.T) {
	port := NewPort("idle", newLoopback(), 0, 1)
	// Not started: nothing drains the queue.
	if err := port.Write([]byte{0xF8}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	err := port.Write([]byte{0xF8})
	if !errors.Is(err, pkg.ErrQueueFull) {
		t.Errorf("Write() error = %v, want ErrQueueFull", err)
	}
	if port.Stats().Dropped != 1 {
		t.Errorf("Dropped = %d", port.Stats().Dropped)
	}
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestPort_Lifecycle(t *testing.T) {
	port := NewPort("loop", newLoopback(), 0, 0)
	ctx, cancel := context.WithCancel(context.Background())

	if err := port.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := port.Start(ctx); !errors.Is(err, pkg.ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v", err)
	}

	cancel()
	waitFor(t, func() bool {
		return errors.Is(port.Write([]byte{0xF8}), os.ErrClosed)
	})
	if err := port.Close(); err != nil {
		t.Errorf("Close() after cancel error = %v", err)
	}
}

func TestPort_EmptyWrite(t *testing.T) {
	port := NewPort("loop", newLoopback(), 0, 1)
	for range 3 {
		if err := port.Transmit(nil); err != nil {
			t.Fatalf("Transmit(nil) error = %v", err)
		}
	}
}
