package host

import "testing"

func TestAddressPool_New(t *testing.T) {
	p := NewAddressPool()
	if !p.InUse(0) {
		t.Error("address 0 should be reserved")
	}
	if got := p.Available(); got != MaxAddress {
		t.Errorf("Available() = %d, want %d", got, MaxAddress)
	}
}

func TestAddressPool_TakeNextLowestFirst(t *testing.T) {
	p := NewAddressPool()
	for want := uint8(1); want <= 5; want++ {
		got, ok := p.TakeNext()
		if !ok || got != want {
			t.Fatalf("TakeNext() = %d, %v, want %d, true", got, ok, want)
		}
	}

	p.PutBack(3)
	if got, _ := p.TakeNext(); got != 3 {
		t.Errorf("TakeNext() after PutBack(3) = %d, want 3", got)
	}
	if got, _ := p.TakeNext(); got != 6 {
		t.Errorf("TakeNext() = %d, want 6", got)
	}
}

func TestAddressPool_Exhaustion(t *testing.T) {
	p := NewAddressPool()
	seen := make(map[uint8]bool)
	for i := 0; i < MaxAddress; i++ {
		addr, ok := p.TakeNext()
		if !ok {
			t.Fatalf("TakeNext() failed after %d allocations", i)
		}
		if addr == 0 || addr > MaxAddress {
			t.Fatalf("TakeNext() = %d, out of range", addr)
		}
		if seen[addr] {
			t.Fatalf("TakeNext() returned %d twice", addr)
		}
		seen[addr] = true
	}

	if _, ok := p.TakeNext(); ok {
		t.Error("TakeNext() succeeded on an exhausted pool")
	}
	if p.Available() != 0 {
		t.Errorf("Available() = %d, want 0", p.Available())
	}

	p.PutBack(127)
	if addr, ok := p.TakeNext(); !ok || addr != 127 {
		t.Errorf("TakeNext() = %d, %v, want 127, true", addr, ok)
	}
}

func TestAddressPool_PutBackIgnored(t *testing.T) {
	p := NewAddressPool()
	p.PutBack(0)
	if !p.InUse(0) {
		t.Error("PutBack(0) released the default address")
	}

	p.PutBack(200)
	p.PutBack(42)
	if got := p.Available(); got != MaxAddress {
		t.Errorf("Available() = %d, want %d", got, MaxAddress)
	}
	if p.InUse(200) {
		t.Error("InUse(200) = true")
	}
}

func TestAddressPool_SecondWord(t *testing.T) {
	p := NewAddressPool()
	for i := 0; i < 64; i++ {
		p.TakeNext()
	}
	if !p.InUse(64) {
		t.Error("address 64 should be allocated")
	}
	if p.InUse(65) {
		t.Error("address 65 should be free")
	}
	p.PutBack(64)
	if p.InUse(64) {
		t.Error("address 64 should be free after PutBack")
	}
}
