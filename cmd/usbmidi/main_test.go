package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardnew/usbmidi/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		cable = 0
		usbFrames = false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDecode(t *testing.T) {
	out, err := execute(t, "decode", "90 3c 64", "3e", "40")
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("decode printed %q", out)
	}
	if !strings.HasPrefix(lines[0], "09903c64") || !strings.HasPrefix(lines[1], "09903e40") {
		t.Errorf("decode printed %q", out)
	}
}

func TestDecode_USB(t *testing.T) {
	out, err := execute(t, "decode", "--usb", "0f f8 00 00 00 00 00 00")
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if !strings.HasPrefix(out, "0ff80000") || strings.Count(out, "\n") != 1 {
		t.Errorf("decode printed %q", out)
	}
}

func TestDecode_BadHex(t *testing.T) {
	if _, err := execute(t, "decode", "xyz"); err == nil {
		t.Error("decode accepted bad hex")
	}
}

func TestSysex(t *testing.T) {
	out, err := execute(t, "sysex", "--cable", "1", "42 30 04 10")
	if err != nil {
		t.Fatalf("sysex error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("sysex printed %q", out)
	}
	if !strings.HasPrefix(lines[0], "14f04230") || !strings.HasPrefix(lines[1], "170410f7") {
		t.Errorf("sysex printed %q", out)
	}
	if _, err := execute(t, "sysex", "f7"); err == nil {
		t.Error("sysex accepted a status byte in the body")
	}
}

func TestSimulate(t *testing.T) {
	out, err := execute(t, "simulate")
	if err != nil {
		t.Fatalf("simulate error = %v", err)
	}
	for _, want := range []string{"[1209:6d69] address 1", "host -> device: 09 90 3c 64", "transmitted 1 received 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("simulate output missing %q:\n%s", want, out)
		}
	}
}

func TestConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usbmidi.json")
	if _, err := execute(t, "config", path); err != nil {
		t.Fatalf("config error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, err := config.Load(path); err != nil {
		t.Errorf("written config does not load: %v", err)
	}
}
