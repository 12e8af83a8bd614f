//go:build !profile

package prof

import "errors"

var ErrActive = errors.New("cpu profile already active")

// Enabled reports whether the binary was built with the profile tag.
const Enabled = false

func StartCPU(string) error { return nil }
func StopCPU() error { return nil }
func WriteHeap(string) error { return nil }
