// Package prof writes pprof profiles of the router.
//
// Profiling is compiled in only with the profile build tag:
//
//	go build -tags profile ./cmd/usbmidi
//	usbmidi run --cpu-profile cpu.prof --heap-profile heap.prof
//
// Without the tag every function is a no-op and Enabled is false.
package prof
