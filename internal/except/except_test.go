package except

import (
	"testing"

	"github.com/oldmac/ppc32/internal/state"
)

func TestRaiseSyscallUsesCIA(t *testing.T) {
	var s state.ProcessorState
	s.Reset(0x00030000, false)
	s.MSR |= state.MsrEE | state.MsrIR | state.MsrDR

	newPC := Raise(&s, Fault{Cause: Syscall}, 0x1000, 0x1004)

	if s.SPR[state.SprSRR0] != 0x1000 {
		t.Errorf("SRR0 = %#x, want CIA 0x1000 for a precise exception", s.SPR[state.SprSRR0])
	}
	if newPC != 0x0C00 {
		t.Errorf("vector = %#x, want 0xC00", newPC)
	}
	if s.MSR&state.MsrEE != 0 {
		t.Errorf("MSR[EE] still set after exception entry")
	}
}

func TestRaiseExternalUsesNIA(t *testing.T) {
	var s state.ProcessorState
	s.Reset(0x00030000, false)

	Raise(&s, Fault{Cause: External}, 0x2000, 0x2004)

	if s.SPR[state.SprSRR0] != 0x2004 {
		t.Errorf("SRR0 = %#x, want NIA 0x2004 for an imprecise exception", s.SPR[state.SprSRR0])
	}
}

func TestRaiseHighVectorBase(t *testing.T) {
	var s state.ProcessorState
	s.Reset(0x00030000, true)

	newPC := Raise(&s, Fault{Cause: Program}, 0x3000, 0x3004)
	if newPC != 0xFFF00700 {
		t.Errorf("vector = %#x, want high-alias 0xFFF00700", newPC)
	}
}

func TestRaiseDSISetsDARAndDSISR(t *testing.T) {
	var s state.ProcessorState
	s.Reset(0x00030000, false)
	f := Fault{Cause: DSI, CauseBits: CauseProtection}
	f.SetDAR(0x4000)
	f.SetDSISR(CauseProtection)

	Raise(&s, f, 0x5000, 0x5004)

	if s.SPR[state.SprDAR] != 0x4000 {
		t.Errorf("DAR = %#x, want 0x4000", s.SPR[state.SprDAR])
	}
	if s.SPR[state.SprDSISR] != CauseProtection {
		t.Errorf("DSISR = %#x, want %#x", s.SPR[state.SprDSISR], CauseProtection)
	}
}
