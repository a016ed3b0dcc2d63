// Package dispatch implements the Op[64x2048] dispatch table of spec.md
// §4.4: a dense array of handler functions indexed by primary opcode and,
// where relevant, extended opcode plus the Rc bit, built at core init via
// OP/OPX-style registration helpers. It is the PowerPC analogue of the
// teacher's cpuState.table[256] plus createTable() in emu/cpu/cpu.go,
// widened from S/370's flat 8-bit opcode space to PowerPC's two-level
// primary/extended space.
package dispatch

import (
	"github.com/oldmac/ppc32/internal/except"
	"github.com/oldmac/ppc32/internal/memmap"
	"github.com/oldmac/ppc32/internal/mmu"
	"github.com/oldmac/ppc32/internal/state"
	"github.com/oldmac/ppc32/internal/timebase"
	"github.com/oldmac/ppc32/internal/timer"
)

// Ctx is everything a handler needs, threaded through explicitly rather
// than via package globals (design notes: "devices receive a shared
// MachineContext by explicit parameter, not by a process-wide global").
type Ctx struct {
	State *state.ProcessorState
	Mem   *memmap.MemoryMap
	MMU   *mmu.Mmu
	Time  *timebase.TimeBase
	Timer *timer.Service

	CIA uint32 // address of the instruction currently executing

	// Branch output: a handler that changes control flow sets these
	// instead of mutating PC itself (spec.md §8 property 1: "no handler
	// modifies pc except branch/exception handlers").
	Branch     bool
	BranchAddr uint32

	// SyncCallbacks are run by isync (spec.md §4.4.1); registered by
	// whatever host component needs to flush compiled-code caches on a
	// context-synchronizing instruction (SPEC_FULL.md supplemented
	// feature 3).
	SyncCallbacks []func()
}

// RunSyncCallbacks executes every registered context-synchronization
// callback, in registration order.
func (c *Ctx) RunSyncCallbacks() {
	for _, cb := range c.SyncCallbacks {
		cb()
	}
}

// Handler executes one decoded instruction, mutating state via c, and
// returns a non-zero except.Fault if the instruction raised an exception.
type Handler func(c *Ctx, opcode uint32) except.Fault

const (
	numPrimary = 64
	numSub     = 2048
)

// Table is the Op[64][2048] array from spec.md §4.4.
type Table struct {
	slot [numPrimary][numSub]Handler
}

func illegalHandler(_ *Ctx, _ uint32) except.Fault {
	return except.Fault{Cause: except.Program, CauseBits: except.ProgramIllegal}
}

// NewTable returns a table with every cell pointing at illegalHandler —
// "unused cells point to illegal_op" (spec.md §4.4).
func NewTable() *Table {
	t := &Table{}
	for p := 0; p < numPrimary; p++ {
		for s := 0; s < numSub; s++ {
			t.slot[p][s] = illegalHandler
		}
	}
	return t
}

// OP fills all 2048 sub-slots of a primary opcode with h — used for
// instructions with no extended opcode field (addi, branch forms, ...).
func (t *Table) OP(primary uint8, h Handler) {
	for s := 0; s < numSub; s++ {
		t.slot[primary][s] = h
	}
}

// OPX installs h at every (ext, rc) sub-slot for ext — used when the
// handler itself inspects opcode bit 31 (Rc) rather than needing a
// separately-registered Rc-form.
func (t *Table) OPX(primary uint8, ext uint16, h Handler) {
	base := int(ext) << 1
	t.slot[primary][base] = h
	t.slot[primary][base+1] = h
}

// OPXRc installs a handler at exactly one (ext, rc) slot, for a caller
// that wants a distinct handler per Rc form in its own table cell. The
// cpu package's table builder does not use it: it installs both Rc slots
// with OPX and lets each handler read the Rc bit.
func (t *Table) OPXRc(primary uint8, ext uint16, rc bool, h Handler) {
	idx := int(ext) << 1
	if rc {
		idx++
	}
	t.slot[primary][idx] = h
}

// OP31 shortcuts OPX with primary=31 (spec.md §4.4 "OP31(ext, handler)").
func (t *Table) OP31(ext uint16, h Handler) { t.OPX(31, ext, h) }

// Lookup returns the handler for opcode, decoded as
// (primary<<11)|(ext<<1)|rc_or_oe_mask per spec.md §4.4.
func (t *Table) Lookup(opcode uint32) Handler {
	primary := uint8((opcode >> 26) & 0x3F)
	ext := uint16((opcode >> 1) & 0x3FF)
	rc := uint16(opcode & 0x1)
	return t.slot[primary][(ext<<1)|rc]
}

// Dispatch decodes and executes opcode against ctx.
func (t *Table) Dispatch(c *Ctx, opcode uint32) except.Fault {
	return t.Lookup(opcode)(c, opcode)
}
