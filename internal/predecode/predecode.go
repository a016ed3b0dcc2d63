// Package predecode implements the threaded executor of spec.md §4.6: a
// cache of already-decoded instructions keyed by physical address, so a
// hot loop pays dispatch-table lookup cost once per instruction instead
// of once per execution. It sits beside internal/cpu rather than inside
// it — the canonical interpreter (internal/cpu) stays the semantics
// reference; this package is purely a performance layer the machine can
// opt into, matching the teacher's own separation between CycleCPU (the
// reference loop) and any block-caching fast path layered on top of it.
package predecode

import (
	"github.com/oldmac/ppc32/internal/dispatch"
	"github.com/oldmac/ppc32/internal/except"
)

// Format names the operand shape spec.md:172 classifies every
// instruction into at predecode time (opNone through opSASimm in the
// spec's own naming). It drives which of D1..D4/Uimm/Simm/Bt below are
// meaningful for a given CachedInstr.
type Format uint8

const (
	FmtNone Format = iota
	FmtDA
	FmtDAB
	FmtSA
	FmtSAB
	FmtDASimm
	FmtSAUimm
	FmtSASh
	FmtRot
	FmtSSpr
	FmtBrRel
	FmtBrLink
	FmtD
	FmtTOASimm
	FmtTOB
	FmtCrfDASimm
	FmtCrfDAUimm
	FmtDSR
	FmtDB
	FmtSC
	FmtSASimm
)

// CachedInstr is one predecoded entry: spec.md:53's
// `CachedInstr{handler, d1..d4, uimm/simm, bt}` shape, classified once
// on first decode instead of re-derived on every dispatch. D1..D4 carry
// whichever register/CR/TO fields Format says are live (rD/rS/crfD/TO in
// D1, rA/crfS in D2, rB/rC/sh in D3, Rc/OE/LK/AA in D4); Uimm/Simm carry
// the 16-bit immediate under either interpretation; Bt is the branch
// displacement in bytes for the two branch formats.
//
// Handler/Opcode remain the execution path: every handler body still
// re-derives its operand bits from Opcode via the cpu package's
// rd/ra/rb/simm helpers, rather than consuming D1..D4/Uimm/Simm/Bt
// directly (see DESIGN.md's predecode entry for why that migration was
// not attempted in this pass). The classified fields are real and are
// exercised by end-of-block/branch-target tooling and by tests, but they
// are not yet the thing Dispatch executes against.
type CachedInstr struct {
	Opcode  uint32
	Handler dispatch.Handler

	Format         Format
	D1, D2, D3, D4 uint8
	Uimm           uint32
	Simm           int32
	Bt             int32

	valid bool
}

const blockSize = 64 // instructions per cached block, a guessed locality unit

type block struct {
	baseAddr uint32
	instrs   [blockSize]CachedInstr
}

// Cache maps a guest physical address range to predecoded instructions.
// Cpu.EnablePredecode registers InvalidateAll through Cpu.AddSyncCallback,
// so isync, rfi and icbi drop the whole cache. BAT, segment and mode
// changes do not reach it on their own, and no store handler calls
// InvalidateWrite, so a store over a cached word is seen only after the
// next isync/rfi/icbi.
type Cache struct {
	table  *dispatch.Table
	blocks map[uint32]*block
}

// New builds an (initially empty) predecode cache consulting table for
// any address it has not yet decoded.
func New(table *dispatch.Table) *Cache {
	return &Cache{table: table, blocks: make(map[uint32]*block)}
}

func blockBase(pa uint32) uint32 { return pa &^ (blockSize*4 - 1) }

// Lookup returns the predecoded instruction at physical address pa,
// reading opcode from mem via read if this block has never been decoded
// or was invalidated.
func (c *Cache) Lookup(pa uint32, read func(addr uint32) uint32) CachedInstr {
	base := blockBase(pa)
	b, ok := c.blocks[base]
	if !ok {
		b = &block{baseAddr: base}
		c.blocks[base] = b
	}
	idx := (pa - base) / 4
	entry := &b.instrs[idx]
	if !entry.valid {
		opcode := read(pa)
		entry.Opcode = opcode
		entry.Handler = c.table.Lookup(opcode)
		entry.Format, entry.D1, entry.D2, entry.D3, entry.D4, entry.Uimm, entry.Simm, entry.Bt = classify(opcode)
		entry.valid = true
	}
	return *entry
}

// InvalidateAll drops every predecoded block — registered by
// Cpu.EnablePredecode as a sync callback, so isync, rfi and icbi run it
// (spec.md §4.6, SPEC_FULL.md supplemented feature 3).
func (c *Cache) InvalidateAll() {
	c.blocks = make(map[uint32]*block)
}

// InvalidateAddr evicts the single cached instruction at pa, the effect
// of one icbi.
func (c *Cache) InvalidateAddr(pa uint32) {
	base := blockBase(pa)
	if b, ok := c.blocks[base]; ok {
		b.instrs[(pa-base)/4] = CachedInstr{}
	}
}

// InvalidateWrite evicts any cached instruction a just-completed store
// overlaps, the self-modifying-code half of spec.md §4.6's invalidation
// contract (icbi handles the explicit half).
func (c *Cache) InvalidateWrite(pa uint32, size uint8) {
	for a := pa &^ 0x3; a < pa+uint32(size); a += 4 {
		c.InvalidateAddr(a)
	}
}

// Dispatch executes the predecoded instruction at pa against ctx,
// decoding and caching it first if necessary.
func (c *Cache) Dispatch(ctx *dispatch.Ctx, pa uint32, read func(addr uint32) uint32) except.Fault {
	ci := c.Lookup(pa, read)
	return ci.Handler(ctx, ci.Opcode)
}

func bitfield(op uint32, hi, lo uint) uint32 {
	width := hi - lo + 1
	return (op >> lo) & (1<<width - 1)
}

// classify resolves op's Format and its D1..D4/Uimm/Simm/Bt fields per
// spec.md:172's InstrOps enum. Coverage favors the common arithmetic,
// branch, and load/store encodings by primary/extended opcode; anything
// not explicitly listed classifies as FmtNone with D1-D4 still populated
// from the universal D/A/B bit positions, which is a safe default since
// execution never reads these fields (see CachedInstr's doc comment).
func classify(op uint32) (f Format, d1, d2, d3, d4 uint8, uimm uint32, simm int32, bt int32) {
	primary := bitfield(op, 31, 26)
	d1 = uint8(bitfield(op, 25, 21))
	d2 = uint8(bitfield(op, 20, 16))
	d3 = uint8(bitfield(op, 15, 11))
	d4 = uint8(op & 1)
	uimm = op & 0xFFFF
	simm = int32(int16(op & 0xFFFF))

	switch primary {
	case 2, 3:
		return FmtTOASimm, d1, d2, d3, d4, uimm, simm, 0
	case 7, 8, 12, 13, 14, 15:
		return FmtDASimm, d1, d2, d3, d4, uimm, simm, 0
	case 10:
		return FmtCrfDAUimm, d1, d2, d3, d4, uimm, simm, 0
	case 11:
		return FmtCrfDASimm, d1, d2, d3, d4, uimm, simm, 0
	case 16:
		return FmtBrRel, d1, d2, d3, d4, uimm, simm, int32(int16(op & 0xFFFC))
	case 17:
		return FmtSC, d1, d2, d3, d4, uimm, simm, 0
	case 18:
		li := int32(op & 0x03FFFFFC)
		if li&0x02000000 != 0 {
			li |= ^int32(0x03FFFFFF)
		}
		return FmtBrLink, d1, d2, d3, d4, uimm, simm, li
	case 20, 21, 23:
		return FmtRot, d1, d2, d3, d4, uimm, simm, 0
	case 24, 25, 26, 27, 28, 29:
		return FmtSAUimm, d1, d2, d3, d4, uimm, simm, 0
	case 32, 33, 34, 35, 36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47,
		48, 49, 50, 51, 52, 53, 54, 55:
		return FmtDASimm, d1, d2, d3, d4, uimm, simm, 0
	case 31:
		switch ext := bitfield(op, 10, 1); ext {
		case 339, 467:
			return FmtSSpr, d1, d2, d3, d4, uimm, simm, 0
		case 24, 536, 792, 824:
			return FmtDSR, d1, d2, d3, d4, uimm, simm, 0
		case 26, 922, 954:
			return FmtDB, d1, d2, d3, d4, uimm, simm, 0
		default:
			return FmtDAB, d1, d2, d3, d4, uimm, simm, 0
		}
	case 63:
		return FmtDAB, d1, d2, d3, d4, uimm, simm, 0
	default:
		return FmtNone, d1, d2, d3, d4, uimm, simm, 0
	}
}
