// Package mmu implements PowerPC address translation (spec.md §4.2): BAT
// arrays, segment-register-driven hashed page table walks, a TLB, alignment
// checking and the typed read_vmem/write_vmem accessors devices and the
// interpreter use. It is grounded on the teacher's cpu.transAddr (S/370
// segment+page DAT walk) and generalized from S/370's single-level
// segment/page table to PowerPC's BAT-then-hashed-PTEG scheme.
package mmu

import (
	"github.com/oldmac/ppc32/internal/except"
	"github.com/oldmac/ppc32/internal/memmap"
	"github.com/oldmac/ppc32/internal/state"
)

// Access identifies the kind of access being translated, used both for
// permission checks and for selecting which per-channel cache to consult.
type Access int

const (
	AccessInstr Access = iota
	AccessRead
	AccessWrite
)

// batEntry is the decoded form of an IBATnU/IBATnL (or DBAT) SPR pair,
// spec.md §3.3.
type batEntry struct {
	valid    bool
	validSV  bool
	validPR  bool
	prot     uint8 // 00 none, 01 ro, 10 rw, 11 ro
	pageMask uint32
	physHi   uint32
	bepi     uint32
}

func decodeBAT(upper, lower uint32) batEntry {
	return batEntry{
		valid:    (upper&0x3 != 0) || (lower&0x3 != 0),
		validSV:  upper&0x2 != 0,
		validPR:  upper&0x1 != 0,
		bepi:     upper & 0xFFFE0000,
		pageMask: ((upper & 0x00001FFC) << 15) | 0x0001FFFF,
		physHi:   lower & 0xFFFE0000,
		prot:     uint8(lower & 0x3),
	}
}

// tlbEntry caches one page-sized translation.
type tlbEntry struct {
	valid bool
	vsid  uint32
	epn   uint32 // effective page number
	ppn   uint32 // physical page number
	pp    uint8  // page protection bits from the PTE
	key   bool
}

const tlbSize = 256

// translCache is the single last-hit translation cached per access
// channel (spec.md §4.2.4 — "up to three independently cached regions").
type translCache struct {
	valid bool
	ea    uint32 // page-aligned effective address
	pa    uint32 // page-aligned physical address
}

// Mmu owns BAT tables, TLB and the three per-channel translation caches.
// It never owns the processor state or memory map — those are passed in
// explicitly by the CPU, per the design notes' "no process-wide globals"
// rule.
type Mmu struct {
	ibat [4]batEntry
	dbat [4]batEntry

	tlb [tlbSize]tlbEntry

	cacheInstr translCache
	cacheRead  translCache
	cacheWrite translCache

	pageShift uint32 // 12 for 4KB pages
}

func New() *Mmu {
	return &Mmu{pageShift: 12}
}

// OnBATChanged rebuilds the BAT tables — spec.md §3.3: "bat tables are
// wholly rebuilt on every write to a BAT SPR." Call after any mtspr to an
// IBATnU/L or DBATnU/L register.
func (m *Mmu) OnBATChanged(s *state.ProcessorState) {
	for i := 0; i < 4; i++ {
		m.ibat[i] = decodeBAT(s.SPR[state.SprIBAT0U+2*i], s.SPR[state.SprIBAT0U+2*i+1])
		m.dbat[i] = decodeBAT(s.SPR[state.SprDBAT0U+2*i], s.SPR[state.SprDBAT0U+2*i+1])
	}
	m.invalidateCaches()
}

// FlushTLBEntry invalidates every TLB slot whose effective page matches
// ea, whatever its VSID — tlbie's effect.
func (m *Mmu) FlushTLBEntry(ea uint32) {
	epn := ea >> m.pageShift
	for i := range m.tlb {
		if m.tlb[i].epn == epn {
			m.tlb[i].valid = false
		}
	}
	m.invalidateCaches()
}

// FlushAll invalidates the whole TLB — tlbia.
func (m *Mmu) FlushAll() {
	for i := range m.tlb {
		m.tlb[i].valid = false
	}
	m.invalidateCaches()
}

// OnPATCtxChanged invalidates translation caches when SDR1, segment
// registers or BAT SPRs change — spec.md §4.2.4.
func (m *Mmu) OnPATCtxChanged() {
	m.invalidateCaches()
}

// OnModeChanged invalidates caches when MSR[IR] or MSR[DR] toggles —
// spec.md §4.2.4.
func (m *Mmu) OnModeChanged() {
	m.invalidateCaches()
}

func (m *Mmu) invalidateCaches() {
	m.cacheInstr.valid = false
	m.cacheRead.valid = false
	m.cacheWrite.valid = false
}

func (m *Mmu) cacheFor(acc Access) *translCache {
	switch acc {
	case AccessInstr:
		return &m.cacheInstr
	case AccessRead:
		return &m.cacheRead
	default:
		return &m.cacheWrite
	}
}

// batHit scans the relevant BAT array for an EA, returns (pa, ok).
// spec.md §4.2.1.
func batHit(bats *[4]batEntry, ea uint32, supervisor, write bool) (pa uint32, hit bool, fault except.Cause, causeBits uint32) {
	for i := range bats {
		b := bats[i]
		if !b.valid {
			continue
		}
		allowed := (supervisor && b.validSV) || (!supervisor && b.validPR)
		if !allowed {
			continue
		}
		if ea&^b.pageMask != b.bepi {
			continue
		}
		switch b.prot {
		case 0x0:
			return 0, true, except.DSI, except.CauseProtection
		case 0x1:
			if write {
				return 0, true, except.DSI, except.CauseProtection
			}
		case 0x3:
			if write {
				return 0, true, except.DSI, except.CauseProtection
			}
		}
		return b.physHi | (ea & b.pageMask), true, except.None, 0
	}
	return 0, false, except.None, 0
}

// pageAlign rounds ea down to its containing page.
func (m *Mmu) pageAlign(ea uint32) uint32 { return ea &^ ((1 << m.pageShift) - 1) }

// walkPageTable performs the segment-register + hashed-PTEG walk of
// spec.md §4.2.2 and returns the physical page base plus the decoded PTE
// for R/C bit maintenance.
func (m *Mmu) walkPageTable(s *state.ProcessorState, mem *memmap.MemoryMap, ea uint32, instrFetch, write, supervisor bool) (pa uint32, pte1 uint32, pteAddr uint32, fault except.Cause, causeBits uint32) {
	sr := s.SR[ea>>28]
	if sr&0x80000000 != 0 { // T bit: direct-store segment
		return 0, 0, 0, except.ISI, 0 // "unsupported direct-store"
	}
	if instrFetch && sr&0x10000000 != 0 { // N bit: no-execute
		return 0, 0, 0, except.ISI, except.CauseNoExecute
	}

	vsid := sr & 0x00FFFFFF
	pageIndex := (ea >> 12) & 0xFFFF
	hash1 := (vsid & 0x7FFFF) ^ pageIndex

	sdr1 := s.SPR[state.SprSDR1]
	htabBase := sdr1 & 0xFFFF0000
	htabMask := sdr1 & 0x1FF

	pteg := func(h uint32) uint32 {
		return (htabBase | ((htabMask & (h >> 10)) << 16)) | ((h & 0x3FF) << 6)
	}

	tryGroup := func(h uint32, secondary bool) (found bool, v0, v1, addr uint32) {
		base := pteg(h)
		want := uint32(1<<31) | ((vsid & 0x7FFFF) << 7) | (pageIndex >> 10)
		if secondary {
			want |= 1 << 6
		}
		for i := uint32(0); i < 8; i++ {
			addr0 := base + i*8
			w0 := mem.Read(addr0, 4, memmap.ChanRead)
			if w0 == want {
				w1 := mem.Read(addr0+4, 4, memmap.ChanRead)
				return true, w0, w1, addr0
			}
		}
		return false, 0, 0, 0
	}

	found, _, v1, addr := tryGroup(hash1, false)
	if !found {
		found, _, v1, addr = tryGroup(^hash1, true)
	}
	if !found {
		if instrFetch {
			return 0, 0, 0, except.ISI, except.CausePageFault
		}
		bits := uint32(0x40000000)
		if write {
			bits |= 1 << 25
		}
		return 0, 0, 0, except.DSI, bits
	}

	pp := v1 & 0x3
	var key bool
	if supervisor {
		key = sr&0x40000000 != 0 // Ks
	} else {
		key = sr&0x20000000 != 0 // Kp
	}
	permFault := false
	switch {
	case pp == 0 && key:
		permFault = true
	case pp == 1 && key && write:
		permFault = true
	case pp == 3:
		if write {
			permFault = true
		}
	}
	if permFault {
		if instrFetch {
			return 0, 0, 0, except.ISI, except.CausePermission
		}
		return 0, 0, 0, except.DSI, except.CausePermission
	}

	// Update R (any hit) and C (on write) in guest memory; both live in
	// PTE1 (R = 0x100, C = 0x80).
	newV1 := v1 | 0x100
	if write {
		newV1 |= 0x80
	}
	if newV1 != v1 {
		mem.Write(addr+4, newV1, 4, memmap.ChanWrite)
		v1 = newV1
	}

	return (v1 & 0xFFFFF000), v1, addr, except.None, 0
}

// permittedByTLB re-checks the PP×key permission rule (spec.md §4.2.2
// step 6) against a cached TLB entry without re-walking the page table.
func permittedByTLB(te tlbEntry, supervisor, write bool) bool {
	switch {
	case te.pp == 0 && te.key:
		return false
	case te.pp == 1 && te.key && write:
		return false
	case te.pp == 3 && write:
		return false
	default:
		return true
	}
}

// translate is the shared implementation behind translateInstr and
// translateData.
func (m *Mmu) translate(s *state.ProcessorState, mem *memmap.MemoryMap, ea uint32, acc Access) (uint32, except.Fault) {
	instrFetch := acc == AccessInstr
	write := acc == AccessWrite
	supervisor := s.MSR&state.MsrPR == 0

	translationOn := (instrFetch && s.MSR&state.MsrIR != 0) || (!instrFetch && s.MSR&state.MsrDR != 0)
	if !translationOn {
		return ea, except.Fault{}
	}

	cache := m.cacheFor(acc)
	pageBase := m.pageAlign(ea)
	if cache.valid && cache.ea == pageBase {
		return cache.pa | (ea & ((1 << m.pageShift) - 1)), except.Fault{}
	}

	var bats *[4]batEntry
	if instrFetch {
		bats = &m.ibat
	} else {
		bats = &m.dbat
	}
	if pa, hit, cause, bits := batHit(bats, ea, supervisor, write); hit {
		if cause != except.None {
			f := except.Fault{Cause: cause, CauseBits: bits}
			if cause == except.DSI {
				f.SetDAR(ea)
				dsisr := bits
				if write {
					dsisr |= 1 << 25
				}
				f.SetDSISR(dsisr)
			}
			return 0, f
		}
		cache.valid, cache.ea, cache.pa = true, pageBase, m.pageAlign(pa)
		return pa, except.Fault{}
	}

	vsid := s.SR[ea>>28] & 0x00FFFFFF
	epn := ea >> m.pageShift
	tlbIdx := (vsid ^ epn) % tlbSize
	if te := m.tlb[tlbIdx]; te.valid && te.vsid == vsid && te.epn == epn {
		if !permittedByTLB(te, supervisor, write) {
			if instrFetch {
				return 0, except.Fault{Cause: except.ISI, CauseBits: except.CausePermission}
			}
			f := except.Fault{Cause: except.DSI, CauseBits: except.CausePermission}
			f.SetDAR(ea)
			f.SetDSISR(except.CausePermission)
			return 0, f
		}
		pa := te.ppn<<m.pageShift | (ea & ((1 << m.pageShift) - 1))
		cache.valid, cache.ea, cache.pa = true, pageBase, te.ppn << m.pageShift
		return pa, except.Fault{}
	}

	pa, pte1, _, cause, bits := m.walkPageTable(s, mem, ea, instrFetch, write, supervisor)
	if cause != except.None {
		f := except.Fault{Cause: cause, CauseBits: bits}
		if cause == except.DSI {
			f.SetDAR(ea)
			f.SetDSISR(bits)
		}
		return 0, f
	}
	var key bool
	if supervisor {
		key = s.SR[ea>>28]&0x40000000 != 0
	} else {
		key = s.SR[ea>>28]&0x20000000 != 0
	}
	m.tlb[tlbIdx] = tlbEntry{valid: true, vsid: vsid, epn: epn, ppn: pa >> m.pageShift, pp: uint8(pte1 & 0x3), key: key}

	pageOffset := ea & ((1 << m.pageShift) - 1)
	full := pa | pageOffset
	cache.valid, cache.ea, cache.pa = true, pageBase, pa
	return full, except.Fault{}
}

// TranslateInstr implements spec.md §4.2's translate_instr.
func (m *Mmu) TranslateInstr(s *state.ProcessorState, mem *memmap.MemoryMap, ea uint32) (uint32, except.Fault) {
	return m.translate(s, mem, ea, AccessInstr)
}

// TranslateData implements translate_data(read|write).
func (m *Mmu) TranslateData(s *state.ProcessorState, mem *memmap.MemoryMap, ea uint32, write bool) (uint32, except.Fault) {
	acc := AccessRead
	if write {
		acc = AccessWrite
	}
	return m.translate(s, mem, ea, acc)
}

// checkAlignment implements spec.md §4.2.3: multi-byte accesses crossing
// a word boundary, or misaligned for a required natural alignment, fault.
func checkAlignment(ea uint32, size uint8, requireNatural bool) bool {
	if size > 1 && (ea&3)+uint32(size) > 4 {
		return false
	}
	if !requireNatural {
		return true
	}
	return ea%uint32(size) == 0
}

// ReadVmem performs a translated, alignment-checked load of size bytes
// (spec.md §4.2.5). requireNatural should be true for accesses the
// architecture defines as needing natural alignment (lwarx, lmw/stmw,
// WIMG-guarded space); ordinary loads/stores tolerate misalignment that
// stays inside one word, but any multi-byte access crossing a word
// boundary raises Alignment.
func (m *Mmu) ReadVmem(s *state.ProcessorState, mem *memmap.MemoryMap, ea uint32, size uint8, requireNatural bool) (uint32, except.Fault) {
	if !checkAlignment(ea, size, requireNatural) {
		f := except.Fault{Cause: except.Alignment}
		f.SetDAR(ea)
		return 0, f
	}
	pa, f := m.TranslateData(s, mem, ea, false)
	if f.Cause != except.None {
		return 0, f
	}
	return mem.Read(pa, size, memmap.ChanRead), except.Fault{}
}

// WriteVmem performs a translated, alignment-checked store.
func (m *Mmu) WriteVmem(s *state.ProcessorState, mem *memmap.MemoryMap, ea uint32, val uint32, size uint8, requireNatural bool) except.Fault {
	if !checkAlignment(ea, size, requireNatural) {
		f := except.Fault{Cause: except.Alignment}
		f.SetDAR(ea)
		return f
	}
	pa, f := m.TranslateData(s, mem, ea, true)
	if f.Cause != except.None {
		return f
	}
	mem.Write(pa, val, size, memmap.ChanWrite)
	return except.Fault{}
}
