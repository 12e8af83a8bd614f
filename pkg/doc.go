// Package pkg holds what every usbmidi package shares: component-tagged
// logging and the sentinel errors.
//
// Logging goes through one process-wide [log/slog] logger. Each call names
// the subsystem it comes from, so output can be filtered per component:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentRoute, "route added", "handle", 3)
//
// Errors are sentinel values wrapped with context by the caller and
// tested with errors.Is:
//
//	if errors.Is(err, pkg.ErrQueueFull) {
//	    // transmit queue has no room; drop or retry later
//	}
package pkg
