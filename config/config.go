package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ardnew/usbmidi/pkg"
	"github.com/ardnew/usbmidi/route"
	"github.com/ardnew/usbmidi/transport/serial"
)

// DefaultListen is the API listen address when none is configured.
const DefaultListen = "127.0.0.1:8080"

// Config is the boot-time configuration of the router.
type Config struct {
	LogLevel      string   `json:"logLevel"`
	LogFormat     string   `json:"logFormat"`
	StrictFilters bool     `json:"strictFilters,omitempty"`
	Serial        []Serial `json:"serial"`
	USB           USB      `json:"usb"`
	Routes        []Route  `json:"routes"`
	API           API      `json:"api"`
}

// Serial configures one UART interface.
type Serial struct {
	Index  uint8  `json:"index"`
	Device string `json:"device"`
	Baud   int    `json:"baud,omitempty"`
	Cable  uint8  `json:"cable,omitempty"`
}

// USB configures the USB host interface.
type USB struct {
	Enabled   bool `json:"enabled"`
	Simulate  bool `json:"simulate,omitempty"`
	QueueSize int  `json:"queueSize,omitempty"`
}

// API configures the HTTP API.
type API struct {
	Listen string `json:"listen"`
}

// Route declares one route. An empty source declares an egress route.
type Route struct {
	Name        string   `json:"name,omitempty"`
	Source      string   `json:"source,omitempty"`
	Destination string   `json:"destination,omitempty"`
	Filters     []Filter `json:"filters,omitempty"`
}

// DefaultConfig returns a configuration with one MIDI UART routed to the
// USB host port and back.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Serial: []Serial{
			{Index: 0, Device: "/dev/ttyUSB0", Baud: serial.BaudMIDI},
		},
		USB: USB{Enabled: true},
		Routes: []Route{
			{Name: "uart-to-usb", Source: "serial:0", Destination: "usb:0"},
			{Name: "usb-to-uart", Source: "usb:0", Destination: "serial:0"},
		},
		API: API{Listen: DefaultListen},
	}
}

// Load reads a configuration file. Missing fields keep their zero values
// except the serial baud rate and API address, which take defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	for i := range c.Serial {
		if c.Serial[i].Baud == 0 {
			c.Serial[i].Baud = serial.BaudMIDI
		}
	}
	if c.API.Listen == "" {
		c.API.Listen = DefaultListen
	}
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	return pkg.ParseLogLevel(c.LogLevel)
}

// Format returns the configured log format.
func (c *Config) Format() (pkg.LogFormat, error) {
	return pkg.ParseLogFormat(c.LogFormat)
}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Level(); err != nil {
		errs = append(errs, fmt.Errorf("log level %q: %w", c.LogLevel, err))
	}
	if _, err := c.Format(); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[uint8]bool)
	for i, s := range c.Serial {
		switch {
		case s.Device == "":
			errs = append(errs, fmt.Errorf("serial %d has no device: %w", i, pkg.ErrInvalidParameter))
		case s.Baud < 0:
			errs = append(errs, fmt.Errorf("serial %d baud %d: %w", i, s.Baud, pkg.ErrInvalidParameter))
		case s.Cable > 15:
			errs = append(errs, fmt.Errorf("serial %d cable %d (must be 0-15): %w", i, s.Cable, pkg.ErrInvalidParameter))
		case seen[s.Index]:
			errs = append(errs, fmt.Errorf("serial index %d declared twice: %w", s.Index, pkg.ErrInvalidParameter))
		}
		seen[s.Index] = true
	}
	if c.USB.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("usb queue size %d: %w", c.USB.QueueSize, pkg.ErrInvalidParameter))
	}

	if _, err := c.BuildRoutes(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// BuildRoutes converts the declared routes to router routes.
func (c *Config) BuildRoutes() ([]route.Route, error) {
	out := make([]route.Route, 0, len(c.Routes))
	var errs []error
	for i, rc := range c.Routes {
		r, err := rc.Build()
		if err != nil {
			errs = append(errs, fmt.Errorf("route %d: %w", i+1, err))
			continue
		}
		out = append(out, r)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Build converts the route declaration to a router route.
func (rc Route) Build() (route.Route, error) {
	var r route.Route
	if rc.Source != "" {
		src, err := route.ParseInterface(rc.Source)
		if err != nil {
			return r, fmt.Errorf("source: %w", err)
		}
		r.Source = &src
	}
	if rc.Destination != "" {
		dst, err := route.ParseInterface(rc.Destination)
		if err != nil {
			return r, fmt.Errorf("destination: %w", err)
		}
		r.Destination = &dst
	}
	if r.Source == nil && r.Destination == nil {
		return r, fmt.Errorf("no source or destination: %w", pkg.ErrInvalidRoute)
	}
	for i, fc := range rc.Filters {
		f, err := fc.Build()
		if err != nil {
			return r, fmt.Errorf("filter %d: %w", i+1, err)
		}
		r.Filters = append(r.Filters, f)
	}
	return r.Named(rc.Name), nil
}
