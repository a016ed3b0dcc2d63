// Package device defines the MMIO device contract that host-side device
// models implement to be wired into the memory map (spec.md §6.1). It is
// the PowerPC-core analogue of the teacher's emu/device package, trimmed
// to the byte/half/word/double read-modify contract a memory-mapped
// register window needs instead of S/370 channel commands.
package device

// MMIODevice is implemented by any host component that owns a range of
// the guest physical address space: framebuffers, I/O ASICs, DBDMA
// engines, and so on. Specific device models are out of scope for this
// module (spec.md §1) — this is only the interface surface they must
// satisfy.
type MMIODevice interface {
	// Read returns the value at regionStart+offset, assembled in
	// host-native form representing the big-endian guest value, for the
	// given access size (1, 2, 4 or 8 — 8 only where the device declares
	// support for it).
	Read(regionStart, offset uint32, size uint8) uint32

	// Write delivers a store of the given size to regionStart+offset.
	Write(regionStart, offset uint32, value uint32, size uint8)

	// Name identifies the device for logging and debugger inspection.
	Name() string
}

// ByteSwapped may optionally be implemented by a device that declares an
// aperture with guest/host byte-order quirks at registration time (the
// ATI Rage aperture mentioned in spec.md §6.1 is the canonical example).
type ByteSwapped interface {
	SwapsBytes() bool
}

// NoDevice is the nil MMIODevice. MemoryMap.Resolve returns a nil region,
// not NoDevice, for an unmapped address; MemoryMap treats both an
// unmapped address and an MMIO region with a nil device as "no device":
// reads yield all-ones and writes are dropped with a warning (spec.md §7).
var NoDevice MMIODevice
