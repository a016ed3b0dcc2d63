// Package except implements the architected exception engine (spec.md
// §4.3): it saves SRR0/SRR1, updates MSR, and computes the vector address
// for every PowerPC exception kind. It deliberately returns plain values
// instead of using setjmp/longjmp-style unwinding (spec.md §9 "Exception
// unwinding"): every instruction handler returns a Cause, and the
// interpreter loop (internal/cpu) checks it after each dispatch and calls
// Raise — the same explicit-tagged-union shape the design notes call for,
// grounded on the teacher's own uint16 irc-code-returned-and-checked
// pattern in cpu.suppress/cpu.fetch.
package except

import "github.com/oldmac/ppc32/internal/state"

// Cause identifies which architected exception, if any, a handler wants
// raised. Zero means "no exception".
type Cause uint8

const (
	None Cause = iota
	Reset
	MachineCheck
	DSI
	ISI
	External
	Alignment
	Program
	FPUnavailable
	Decrementer
	Syscall
	Trace
)

// Vector offsets, spec.md §4.3.
var vectorOffset = map[Cause]uint32{
	Reset:         0x0100,
	MachineCheck:  0x0200,
	DSI:           0x0300,
	ISI:           0x0400,
	External:      0x0500,
	Alignment:     0x0600,
	Program:       0x0700,
	FPUnavailable: 0x0800,
	Decrementer:   0x0900,
	Syscall:       0x0C00,
	Trace:         0x0D00,
}

// Program exception SRR1 cause bits (spec.md §4.3).
const (
	ProgramFloatingPoint uint32 = 1 << 20 // bit 11
	ProgramIllegal       uint32 = 1 << 19 // bit 12
	ProgramPrivileged    uint32 = 1 << 18 // bit 13
	ProgramTrap          uint32 = 1 << 17 // bit 14
)

// DSI/ISI cause bits, spec.md §4.2.2.
const (
	CauseNoExecute  uint32 = 0x40000000
	CausePageFault  uint32 = 0x40000000
	CausePermission uint32 = 0x08000000
	CauseProtection uint32 = 0x08000000
)

const msrSRR1Mask uint32 = 0x87C0FF73
const msrClearOnEntry uint32 = 0x04EF36 // POW,EE,PR,FP,FE0,SE,BE,FE1,IR,DR,RI

// Fault carries the cause plus any cause-specific bits a handler wants
// folded into SRR1 (program/DSI/ISI cause bits) or placed into DAR/DSISR.
type Fault struct {
	Cause     Cause
	CauseBits uint32 // OR'd into SRR1 for synchronous program/DSI/ISI faults
	DAR       uint32
	DSISR     uint32
	HasDAR    bool
	HasDSISR  uint32 // unused and never written; SetDSISR records presence in setDSISR
	setDSISR  bool
}

func (f *Fault) SetDAR(addr uint32) { f.DAR = addr; f.HasDAR = true }
func (f *Fault) SetDSISR(v uint32)  { f.DSISR = v; f.setDSISR = true }

// imprecise reports whether SRR0 should hold the NIA (next instruction)
// rather than the CIA (current/faulting instruction) per spec.md §4.3
// step 1.
func imprecise(c Cause) bool {
	switch c {
	case External, Decrementer:
		return true
	default:
		return false
	}
}

// Raise performs the five steps of spec.md §4.3 against s, given the
// current instruction address (cia) and the would-be next address (nia).
// It returns the new PC the interpreter loop must resume at.
func Raise(s *state.ProcessorState, f Fault, cia, nia uint32) uint32 {
	if f.HasDAR {
		s.SPR[state.SprDAR] = f.DAR
	}
	if f.setDSISR {
		s.SPR[state.SprDSISR] = f.DSISR
	}

	if imprecise(f.Cause) {
		s.SPR[state.SprSRR0] = nia
	} else {
		s.SPR[state.SprSRR0] = cia
	}

	s.SPR[state.SprSRR1] = (s.MSR & msrSRR1Mask) | f.CauseBits

	ile := s.MSR&state.MsrILE != 0
	s.MSR &^= msrClearOnEntry
	if ile {
		s.MSR |= state.MsrLE
	} else {
		s.MSR &^= state.MsrLE
	}

	base := uint32(0)
	if s.MSR&state.MsrIP != 0 {
		base = 0xFFF00000
	}
	return base | vectorOffset[f.Cause]
}
