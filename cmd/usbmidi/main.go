// Package main is the entry point for the usbmidi router.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ardnew/usbmidi/api"
	"github.com/ardnew/usbmidi/bridge"
	"github.com/ardnew/usbmidi/config"
	"github.com/ardnew/usbmidi/host"
	usbmidi "github.com/ardnew/usbmidi/host/class/midi"
	"github.com/ardnew/usbmidi/host/hal"
	"github.com/ardnew/usbmidi/host/hal/sim"
	"github.com/ardnew/usbmidi/midi"
	"github.com/ardnew/usbmidi/pkg"
	"github.com/ardnew/usbmidi/pkg/prof"
	"github.com/ardnew/usbmidi/pkg/usbid"
	"github.com/ardnew/usbmidi/transport/serial"
)

var version = "dev"

var (
	configPath string
	listenAddr string
	logLevel   string
	logFormat  string
	simulate   bool
	noAPI      bool
	cable      uint8
	usbFrames  bool
	cpuProfile string
	memProfile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "usbmidi",
	Short: "Route MIDI between UART ports and a USB-MIDI host port",
	Long: `usbmidi routes MIDI event packets between serial MIDI ports and a
USB-MIDI device attached to the host port, applying per-route filters.

Examples:
  usbmidi run --config usbmidi.json
  usbmidi run --simulate --listen 127.0.0.1:8080
  usbmidi decode 90 3c 64 3e 40
  usbmidi sysex 42 30 04 10
  usbmidi simulate`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the router",
	Args:  cobra.NoArgs,
	RunE:  runRouter,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>...",
	Short: "Decode a MIDI byte stream into event packets",
	Long: `Decode parses raw MIDI bytes (running status and sysex included) into
USB-MIDI event packets. With --usb the input is read as 4-byte event
packets instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

var sysexCmd = &cobra.Command{
	Use:   "sysex <hex body>...",
	Short: "Frame a sysex body into event packets",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSysex,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Enumerate a simulated USB-MIDI device and exchange a note",
	Args:  cobra.NoArgs,
	RunE:  runSimulate,
}

var configCmd = &cobra.Command{
	Use:   "config <path>",
	Short: "Write the default configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text, json)")

	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file (default built-in)")
	runCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "API listen address")
	runCmd.Flags().BoolVar(&simulate, "simulate", false, "Drive the USB port with a simulated device")
	runCmd.Flags().BoolVar(&noAPI, "no-api", false, "Do not serve the HTTP API")
	runCmd.Flags().StringVar(&cpuProfile, "cpu-profile", "", "Write a CPU profile (profile builds only)")
	runCmd.Flags().StringVar(&memProfile, "heap-profile", "", "Write a heap profile on exit (profile builds only)")

	decodeCmd.Flags().Uint8Var(&cable, "cable", 0, "Cable number stamped on packets")
	decodeCmd.Flags().BoolVar(&usbFrames, "usb", false, "Input is USB-MIDI event packets")
	sysexCmd.Flags().Uint8Var(&cable, "cable", 0, "Cable number stamped on packets")

	rootCmd.AddCommand(runCmd, portsCmd, decodeCmd, sysexCmd, simulateCmd, configCmd)
}

func setupLogging(cfg *config.Config) error {
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	level, err := cfg.Level()
	if err != nil {
		return fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	format, err := cfg.Format()
	if err != nil {
		return err
	}
	pkg.SetLogLevel(level)
	pkg.SetLogFormat(format)
	return nil
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configPath)
}

func runRouter(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.API.Listen = listenAddr
	}
	if simulate {
		cfg.USB.Enabled = true
		cfg.USB.Simulate = true
	}

	rt, err := bridge.New(cfg)
	if err != nil {
		return err
	}

	if err := startProfiles(); err != nil {
		return err
	}
	defer stopProfiles()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 2)
	go func() { errc <- rt.Run(ctx) }()
	servers := 1
	if !noAPI && cfg.API.Listen != "" {
		servers++
		go func() { errc <- api.New(rt).ListenAndServe(ctx, cfg.API.Listen) }()
	}

	var errs []error
	for range servers {
		if err := <-errc; err != nil {
			errs = append(errs, err)
			stop()
		}
	}
	return errors.Join(errs...)
}

func startProfiles() error {
	if (cpuProfile != "" || memProfile != "") && !prof.Enabled {
		pkg.LogWarn(pkg.ComponentBridge, "profiling requested but not compiled in",
			"tags", "profile")
	}
	if cpuProfile == "" {
		return nil
	}
	if err := prof.StartCPU(cpuProfile); err != nil {
		return fmt.Errorf("cpu profile: %w", err)
	}
	return nil
}

func stopProfiles() {
	if err := prof.StopCPU(); err != nil {
		pkg.LogError(pkg.ComponentBridge, "cpu profile", "error", err)
	}
	if memProfile == "" {
		return
	}
	if err := prof.WriteHeap(memProfile); err != nil {
		pkg.LogError(pkg.ComponentBridge, "heap profile", "error", err)
	}
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListPorts()
	if err != nil {
		return fmt.Errorf("list ports: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(ports) == 0 {
		fmt.Fprintln(out, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(out, p)
	}
	return nil
}

func parseHexArgs(args []string) ([]byte, error) {
	return api.ParseHex(strings.Join(args, ""))
}

func printPackets(w io.Writer, packets []midi.Packet) {
	for _, p := range packets {
		if p.CIN() >= midi.CINNoteOff {
			msg := p.Message()
			fmt.Fprintf(w, "%v\t%s\n", p, msg)
			continue
		}
		fmt.Fprintln(w, p)
	}
}

func runDecode(cmd *cobra.Command, args []string) error {
	data, err := parseHexArgs(args)
	if err != nil {
		return err
	}
	if usbFrames {
		printPackets(cmd.OutOrStdout(), midi.PacketsFromUSB(data))
		return nil
	}
	packets, err := midi.Decode(cable, data)
	printPackets(cmd.OutOrStdout(), packets)
	return err
}

func runSysex(cmd *cobra.Command, args []string) error {
	body, err := parseHexArgs(args)
	if err != nil {
		return err
	}
	for i, b := range body {
		if b > 0x7F {
			return fmt.Errorf("body byte %d = %#02x: %w", i, b, pkg.ErrInvalidParameter)
		}
	}
	out := cmd.OutOrStdout()
	packets := midi.NewSysex(cable, midi.Buf(body)).Packets()
	for _, p := range packets {
		fmt.Fprintf(out, "%s\t%v\n", hex.EncodeToString(p[:]), p)
	}
	return nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if err := setupLogging(cfg); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	ctrl := sim.New(0)
	dev := sim.NewMIDIDevice(bridge.SimVendorID, bridge.SimProductID)
	h := host.New(ctrl, nil)

	var received []midi.Packet
	drv := usbmidi.New(0, func(p []midi.Packet) {
		received = append(received, p...)
	})
	if err := h.Register(drv); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	ctrl.Attach(dev, hal.SpeedFull)
	if err := h.Update(ctx); err != nil {
		return fmt.Errorf("enumerate: %w", err)
	}
	d := h.Device()
	if d == nil || !drv.Ready() {
		return fmt.Errorf("simulated device not claimed: %w", pkg.ErrNotClaimed)
	}
	fmt.Fprintf(out, "device %s address %d configuration %d state %v\n",
		usbid.Lookup(d.VendorID(), d.ProductID()), d.Address(), dev.Configuration(), h.State())

	note := midi.Packet{0x09, 0x90, 0x3C, 0x64}
	if err := drv.Transmit([]midi.Packet{note}); err != nil {
		return err
	}
	dev.Send(midi.AppendUSB(nil, midi.Packet{0x08, 0x80, 0x3C, 0x00}))
	frame := func() error {
		ctrl.Frame()
		return h.Update(ctx)
	}
	if err := frame(); err != nil {
		return err
	}
	fmt.Fprintf(out, "host -> device: % x\n", dev.TakeReceived())
	for _, p := range received {
		fmt.Fprintf(out, "device -> host: %v\n", p)
	}
	st := drv.Stats()
	fmt.Fprintf(out, "transmitted %d received %d\n", st.Transmitted, st.Received)
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.DefaultConfig().Save(args[0]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "wrote", args[0])
	return nil
}
