package cpu

import (
	"testing"

	"github.com/oldmac/ppc32/internal/dispatch"
	"github.com/oldmac/ppc32/internal/except"
	"github.com/oldmac/ppc32/internal/memmap"
	"github.com/oldmac/ppc32/internal/mmu"
	"github.com/oldmac/ppc32/internal/state"
	"github.com/oldmac/ppc32/internal/timebase"
	"github.com/oldmac/ppc32/internal/timer"
)

func newFullCtx() *dispatch.Ctx {
	mem := memmap.New()
	tb := timebase.New(1_000_000_000)
	tb.EnableDeterministic(0)
	return &dispatch.Ctx{
		State: &state.ProcessorState{},
		Mem:   mem,
		MMU:   mmu.New(),
		Time:  tb,
		Timer: timer.New(tb),
	}
}

// swapSPR mirrors the instruction encoding's 5+5 split of the SPR field.
func swapSPR(n uint32) uint32 { return ((n & 0x1F) << 5) | (n >> 5) }

func mkSprOp(rd, sprNum uint32) uint32 {
	return (rd << 21) | (swapSPR(sprNum) << 11)
}

func TestMfsprUserAccessible(t *testing.T) {
	c := newFullCtx()
	c.State.MSR |= state.MsrPR // user mode
	c.State.SPR[state.SprLR] = 0xBEEF
	opMfspr(c, mkSprOp(3, state.SprLR))
	if c.State.GPR[3] != 0xBEEF {
		t.Errorf("mfspr LR (user) = %#x, want 0xBEEF", c.State.GPR[3])
	}
}

func TestMfsprPrivilegedFaultsInUserMode(t *testing.T) {
	c := newFullCtx()
	c.State.MSR |= state.MsrPR
	f := opMfspr(c, mkSprOp(3, state.SprSDR1))
	if f.Cause != except.Program || f.CauseBits != except.ProgramPrivileged {
		t.Errorf("mfspr SDR1 (user) = %+v, want Program/Privileged fault", f)
	}
}

func TestMtsprDECWritesTimebase(t *testing.T) {
	c := newFullCtx()
	c.State.GPR[4] = 0
	opMtspr(c, mkSprOp(4, state.SprDEC))
	if !c.Time.DecrementerExpired() {
		t.Errorf("mtspr DEC,0 should leave the decrementer already expired")
	}
}

func TestMtsprBATTriggersRebuild(t *testing.T) {
	c := newFullCtx()
	// DBAT0U: EA 0x80000000, BL=0, supervisor-valid.
	c.State.GPR[4] = 0x80000000 | 0x2
	opMtspr(c, mkSprOp(4, state.SprDBAT0U))
	c.State.GPR[4] = 0x00020000 | 0x2
	opMtspr(c, mkSprOp(4, state.SprDBAT0L))

	c.State.MSR |= state.MsrDR
	pa, f := c.MMU.TranslateData(c.State, c.Mem, 0x80000100, false)
	if f.Cause != except.None || pa != 0x00020100 {
		t.Errorf("mtspr to DBAT0U/L did not take effect: pa=%#x f=%+v", pa, f)
	}
}

func TestMtcrfUpdatesSelectedFields(t *testing.T) {
	c := newFullCtx()
	c.State.GPR[3] = 0xFFFFFFFF
	// CRM selects only field 0 (top nibble): bits 19-12, MSB = field 0.
	op := (uint32(3) << 21) | (uint32(0x80) << 12)
	opMtcrf(c, op)
	if c.State.CRField(0) != 0xF {
		t.Errorf("mtcrf(CRM=field0) CR0 = %#x, want 0xF", c.State.CRField(0))
	}
	if c.State.CRField(1) != 0 {
		t.Errorf("mtcrf(CRM=field0) must not touch CR1, got %#x", c.State.CRField(1))
	}
}

func TestMtsrMfsrRoundTrip(t *testing.T) {
	c := newFullCtx()
	c.State.GPR[5] = 0xABCDEF
	op := (uint32(5) << 21) | (uint32(7) << 16) // rS=5, segment 7
	opMtsr(c, op)
	opMfsr(c, (uint32(6)<<21)|(uint32(7)<<16))
	if c.State.GPR[6] != 0xABCDEF {
		t.Errorf("mfsr after mtsr = %#x, want 0xABCDEF", c.State.GPR[6])
	}
}

func TestMcrxrCopiesAndClearsXERTop(t *testing.T) {
	c := newFullCtx()
	c.State.SetXER(state.XerSO | state.XerOV)
	op := uint32(0) << 23 // crfD = 0
	opMcrxr(c, op)
	if c.State.CRField(0) != 0xC {
		t.Errorf("mcrxr CR0 = %#x, want 0xC (SO,OV)", c.State.CRField(0))
	}
	if c.State.XER()&0xF0000000 != 0 {
		t.Errorf("mcrxr must clear XER's top 4 bits, got %#x", c.State.XER())
	}
}

func TestMftbReadsLowAndHigh(t *testing.T) {
	c := newFullCtx()
	c.Time.AdvanceInstructions(1000)
	opMftb(c, mkSprOp(3, state.SprTBL))
	if c.State.GPR[3] == 0 {
		t.Errorf("mftb TBL after advancing time should be nonzero")
	}
	opMftb(c, mkSprOp(4, state.SprTBU))
	if want := uint32(c.Time.TBR() >> 32); c.State.GPR[4] != want {
		t.Errorf("mftb TBU = %#x, want %#x", c.State.GPR[4], want)
	}
}
