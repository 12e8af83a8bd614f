package pkg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

// Subsystem component identifiers.
const (
	ComponentHost    Component = "host"
	ComponentPipe    Component = "pipe"
	ComponentUSBMIDI Component = "usb-midi"
	ComponentMIDI    Component = "midi"
	ComponentSysex   Component = "sysex"
	ComponentRoute   Component = "route"
	ComponentSerial  Component = "serial"
	ComponentBridge  Component = "bridge"
	ComponentAPI     Component = "api"
)

// LogFormat selects the handler of the default logger.
type LogFormat int

// Log formats.
const (
	LogFormatText LogFormat = iota
	LogFormatJSON
)

// String returns "text" or "json".
func (f LogFormat) String() string {
	if f == LogFormatJSON {
		return "json"
	}
	return "text"
}

// ParseLogFormat converts "text" or "json" into a LogFormat. The empty
// string selects text.
func ParseLogFormat(name string) (LogFormat, error) {
	switch strings.ToLower(name) {
	case "", "text":
		return LogFormatText, nil
	case "json":
		return LogFormatJSON, nil
	}
	return LogFormatText, fmt.Errorf("log format %q: %w", name, ErrInvalidParameter)
}

var (
	// DefaultLogger is the logger shared by every component. Replace it
	// with SetLogger, not by assignment.
	DefaultLogger *slog.Logger

	logLevel = new(slog.LevelVar)

	// logMutex guards DefaultLogger, logOutput and logFormat.
	logMutex  sync.RWMutex
	logOutput io.Writer = os.Stderr
	logFormat LogFormat
)

func init() {
	logLevel.Set(slog.LevelWarn)
	DefaultLogger = newLogger(logOutput, logFormat, nil)
}

func newLogger(w io.Writer, format LogFormat, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: logLevel}
	}
	if format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetLogLevel sets the minimum level for every component.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// GetLogLevel returns the minimum level.
func GetLogLevel() slog.Level {
	return logLevel.Level()
}

// ParseLogLevel converts a level name ("debug", "info", "warn", "error")
// into a slog.Level. Unknown names yield ErrInvalidParameter.
func ParseLogLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelWarn, ErrInvalidParameter
	}
	return level, nil
}

// SetLogger replaces the default logger.
func SetLogger(logger *slog.Logger) {
	logMutex.Lock()
	defer logMutex.Unlock()
	DefaultLogger = logger
}

// SetLogFormat rebuilds the default logger with format, keeping its
// output and the shared level.
func SetLogFormat(format LogFormat) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logFormat = format
	DefaultLogger = newLogger(logOutput, logFormat, nil)
}

// SetLogOutput rebuilds the default logger writing to w, keeping its
// format and the shared level.
func SetLogOutput(w io.Writer) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logOutput = w
	DefaultLogger = newLogger(logOutput, logFormat, nil)
}

// NewLogger returns a text logger writing to w. A nil opts follows the
// shared level.
func NewLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	return newLogger(w, LogFormatText, opts)
}

// NewJSONLogger returns a JSON logger writing to w. A nil opts follows the
// shared level.
func NewJSONLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	return newLogger(w, LogFormatJSON, opts)
}

func logAt(level slog.Level, component Component, msg string, args []any) {
	logMutex.RLock()
	l := DefaultLogger
	logMutex.RUnlock()
	l.Log(context.Background(), level, msg, append([]any{"component", string(component)}, args...)...)
}

// LogDebug logs a debug message with the given component.
func LogDebug(component Component, msg string, args ...any) {
	logAt(slog.LevelDebug, component, msg, args)
}

// LogInfo logs an info message with the given component.
func LogInfo(component Component, msg string, args ...any) {
	logAt(slog.LevelInfo, component, msg, args)
}

// LogWarn logs a warning message with the given component.
func LogWarn(component Component, msg string, args ...any) {
	logAt(slog.LevelWarn, component, msg, args)
}

// LogError logs an error message with the given component.
func LogError(component Component, msg string, args ...any) {
	logAt(slog.LevelError, component, msg, args)
}
