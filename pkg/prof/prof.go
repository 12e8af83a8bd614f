//go:build profile

package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
)

// ErrActive is returned when CPU profiling is started twice.
var ErrActive = errors.New("cpu profile already active")

// Enabled reports whether the binary was built with the profile tag.
const Enabled = true

var (
	mutex sync.Mutex
	cpu   *os.File
)

// StartCPU begins writing a CPU profile to path.
func StartCPU(path string) error {
	mutex.Lock()
	defer mutex.Unlock()
	if cpu != nil {
		return ErrActive
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return err
	}
	cpu = f
	return nil
}

// StopCPU ends the CPU profile started by StartCPU, if any.
func StopCPU() error {
	mutex.Lock()
	defer mutex.Unlock()
	if cpu == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := cpu.Close()
	cpu = nil
	return err
}

// WriteHeap writes a heap profile to path after forcing a collection so
// the live-object counts are current.
func WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	runtime.GC()
	if err := pprof.Lookup("heap").WriteTo(f, 0); err != nil {
		f.Close()
		return fmt.Errorf("heap profile: %w", err)
	}
	return f.Close()
}
