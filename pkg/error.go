package pkg

import "errors"

// Host stack errors.
var (
	// ErrNoDevice indicates no device is attached.
	ErrNoDevice = errors.New("device not present")

	// ErrNoAddress indicates the address pool is exhausted.
	ErrNoAddress = errors.New("no address available")

	// ErrDescriptorTooShort indicates the descriptor data is too short.
	ErrDescriptorTooShort = errors.New("descriptor too short")

	// ErrDescriptorTooLong indicates a descriptor exceeds the receive buffer.
	ErrDescriptorTooLong = errors.New("descriptor exceeds buffer")

	// ErrDescriptorTypeMismatch indicates the descriptor type does not match expected.
	ErrDescriptorTypeMismatch = errors.New("descriptor type mismatch")

	// ErrNotClaimed indicates no driver claimed an attached device.
	ErrNotClaimed = errors.New("device not claimed")

	// ErrInvalidEndpoint indicates an invalid endpoint address.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrAlreadyRunning indicates the component is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates the component is not running.
	ErrNotRunning = errors.New("not running")

	// ErrCancelled indicates an operation was cancelled.
	ErrCancelled = errors.New("cancelled")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNoResources indicates a fixed-size table has no free slot.
	ErrNoResources = errors.New("no resources available")

	// ErrQueueFull indicates a bounded transmit queue has no room.
	ErrQueueFull = errors.New("queue full")
)

// MIDI codec errors.
var (
	// ErrSysexOutOfBounds indicates a sysex terminator arrived with more
	// pending bytes than a single packet can carry.
	ErrSysexOutOfBounds = errors.New("sysex out of bounds")

	// ErrUnknownStatus indicates a reserved or undefined status byte.
	ErrUnknownStatus = errors.New("unknown status byte")

	// ErrOrphanData indicates a data byte with no status to apply it to.
	ErrOrphanData = errors.New("data byte without status")

	// ErrSysexOverflow indicates a sysex capture exceeded its buffer.
	ErrSysexOverflow = errors.New("sysex capture overflow")

	// ErrSpuriousContinue indicates sysex continuation with no open sysex.
	ErrSpuriousContinue = errors.New("spurious sysex continuation")

	// ErrSpuriousEnd indicates a sysex end with no open sysex.
	ErrSpuriousEnd = errors.New("spurious sysex end")

	// ErrNotSinglePacket indicates a message that does not fit one packet.
	ErrNotSinglePacket = errors.New("message does not fit one packet")
)

// Routing errors.
var (
	// ErrUnknownInterface indicates no transmit sink is attached to an interface.
	ErrUnknownInterface = errors.New("unknown interface")

	// ErrUnknownRoute indicates a route handle that is not registered.
	ErrUnknownRoute = errors.New("unknown route")

	// ErrInvalidRoute indicates a route with neither source nor destination.
	ErrInvalidRoute = errors.New("route has no endpoints")

	// ErrFilterRejected indicates a filter failed while strict filtering is enabled.
	ErrFilterRejected = errors.New("filter failed")
)
