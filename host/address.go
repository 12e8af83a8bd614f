package host

import "math/bits"

// AddressPool tracks allocated device addresses as a 128-bit mask.
// Address 0 is the default address and is never handed out.
type AddressPool struct {
	used [2]uint64
}

// NewAddressPool returns a pool with every address except 0 free.
func NewAddressPool() *AddressPool {
	return &AddressPool{used: [2]uint64{1, 0}}
}

// TakeNext allocates the lowest free address. It returns false when all
// 127 addresses are in use.
func (p *AddressPool) TakeNext() (uint8, bool) {
	p.used[0] |= 1
	for i, word := range p.used {
		if free := ^word; free != 0 {
			bit := bits.TrailingZeros64(free)
			p.used[i] |= 1 << bit
			return uint8(i*64 + bit), true
		}
	}
	return 0, false
}

// PutBack frees an address. Freeing 0 or an unallocated address is a no-op.
func (p *AddressPool) PutBack(addr uint8) {
	if addr == 0 || addr > MaxAddress {
		return
	}
	p.used[addr/64] &^= 1 << (addr % 64)
}

// InUse reports whether addr is currently allocated.
func (p *AddressPool) InUse(addr uint8) bool {
	if addr > MaxAddress {
		return false
	}
	return p.used[addr/64]&(1<<(addr%64)) != 0
}

// Available returns the number of free addresses.
func (p *AddressPool) Available() int {
	return 128 - bits.OnesCount64(p.used[0]|1) - bits.OnesCount64(p.used[1])
}
