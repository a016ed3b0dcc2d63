package cpu

import (
	"testing"

	"github.com/oldmac/ppc32/internal/memmap"
	"github.com/oldmac/ppc32/internal/mmu"
	"github.com/oldmac/ppc32/internal/state"
	"github.com/oldmac/ppc32/internal/timebase"
	"github.com/oldmac/ppc32/internal/timer"
)

func newTestCpu(t *testing.T) *Cpu {
	t.Helper()
	s := &state.ProcessorState{}
	s.Reset(0x00070000, false) // a 603-family PVR, not the 601
	mem := memmap.New()
	if err := mem.AddRAM(0, 0x10000); err != nil {
		t.Fatalf("AddRAM: %v", err)
	}
	tb := timebase.New(1_000_000_000)
	tb.EnableDeterministic(0)
	return New(s, mem, mmu.New(), tb, timer.New(tb))
}

func storeWord(c *Cpu, addr, word uint32) {
	c.Mem.Write(addr, word, 4, memmap.ChanWrite)
}

// addiWord builds a full addi rD,rA,simm instruction word (primary
// opcode 14), for tests that go through Cpu.Step's real table lookup
// rather than calling a handler directly.
func addiWord(rd, ra uint32, imm int16) uint32 {
	return (14 << 26) | mkD(rd, ra, imm)
}

func TestStepAdvancesPCOnOrdinaryInstruction(t *testing.T) {
	c := newTestCpu(t)
	c.State.PC = 0
	storeWord(c, 0, addiWord(3, 0, 5)) // addi r3,r0,5
	c.Step()
	if c.State.PC != 4 {
		t.Errorf("PC after one ordinary instruction = %#x, want 4", c.State.PC)
	}
	if c.State.GPR[3] != 5 {
		t.Errorf("addi did not execute: GPR3 = %#x", c.State.GPR[3])
	}
	if c.InstrCount != 1 {
		t.Errorf("InstrCount = %d, want 1", c.InstrCount)
	}
}

func TestStepTakesBranch(t *testing.T) {
	c := newTestCpu(t)
	c.State.PC = 0x100
	storeWord(c, 0x100, 0x48000000|0x40) // b +0x40 (AA=0, LK=0)
	c.Step()
	if c.State.PC != 0x140 {
		t.Errorf("PC after branch = %#x, want 0x140", c.State.PC)
	}
}

func TestStepDeliversExceptionOnIllegalOpcode(t *testing.T) {
	c := newTestCpu(t)
	c.State.PC = 0
	storeWord(c, 0, 0x00000000) // primary opcode 0: never registered, illegal
	c.Step()
	if c.State.PC != 0x0700 {
		t.Errorf("PC after illegal opcode = %#x, want Program vector 0x700", c.State.PC)
	}
}

func TestStepServicesDueTimerAtInstructionBoundary(t *testing.T) {
	c := newTestCpu(t)
	c.State.PC = 0
	storeWord(c, 0, addiWord(3, 0, 0)) // addi r3,r0,0: a cheap no-op instruction

	fired := false
	c.Timer.AddOneshot(0, func() { fired = true })
	c.Step()
	if !fired {
		t.Errorf("a timer due at the current instant should fire by the next instruction boundary")
	}
}

func TestRunUntilStopsAtTarget(t *testing.T) {
	c := newTestCpu(t)
	c.State.PC = 0
	storeWord(c, 0, addiWord(3, 0, 1))
	storeWord(c, 4, addiWord(3, 3, 1))

	stop := make(chan struct{})
	c.RunUntil(2, stop)
	if c.InstrCount != 2 {
		t.Errorf("InstrCount after RunUntil(2) = %d, want 2", c.InstrCount)
	}
	if c.State.GPR[3] != 2 {
		t.Errorf("GPR3 after two addi's = %d, want 2", c.State.GPR[3])
	}
}

func TestRunUntilRegionEnteredStopsOnFirstEntry(t *testing.T) {
	c := newTestCpu(t)
	c.State.PC = 0
	storeWord(c, 0, 0x48000000|0x100) // b +0x100
	storeWord(c, 0x100, addiWord(3, 0, 7))

	stop := make(chan struct{})
	c.RunUntilRegionEntered(0x100, 0x200, stop)
	if c.State.PC != 0x100 {
		t.Errorf("PC after RunUntilRegionEntered = %#x, want 0x100", c.State.PC)
	}
}

func TestEnablePredecodeInvalidatesOnIsync(t *testing.T) {
	c := newTestCpu(t)
	c.EnablePredecode()
	c.State.PC = 0
	storeWord(c, 0, addiWord(3, 0, 9))

	c.Step() // populates the predecode cache for address 0
	if c.State.GPR[3] != 9 {
		t.Fatalf("predecoded addi did not execute: GPR3 = %d", c.State.GPR[3])
	}

	ran := false
	c.AddSyncCallback(func() { ran = true })
	storeWord(c, 0, addiWord(3, 0, 5)) // rewrite the already-predecoded word
	storeWord(c, 4, 0x4C00012C)        // isync
	c.Step()                           // executes the isync at address 4
	if !ran {
		t.Errorf("isync should run a sync callback registered after EnablePredecode alongside the cache invalidator")
	}

	c.State.PC = 0
	c.Step()
	if c.State.GPR[3] != 5 {
		t.Errorf("after isync the rewritten word should be re-decoded: GPR3 = %d, want 5", c.State.GPR[3])
	}
}

func TestSetExternalRaisesInterruptWhenEnabled(t *testing.T) {
	c := newTestCpu(t)
	c.State.MSR |= state.MsrEE
	c.State.PC = 0
	storeWord(c, 0, addiWord(3, 0, 0))
	c.Time.WriteDEC(1_000_000) // keep the decrementer from preempting the external check

	c.SetExternal(true)
	c.Step()
	if c.State.PC != 0x0500 {
		t.Errorf("PC after external interrupt = %#x, want vector 0x500", c.State.PC)
	}
}

func TestExternalInterruptMaskedWhenEEClear(t *testing.T) {
	c := newTestCpu(t)
	c.State.MSR &^= state.MsrEE
	c.State.PC = 0
	storeWord(c, 0, addiWord(3, 0, 0))

	c.SetExternal(true)
	c.Step()
	if c.State.PC != 4 {
		t.Errorf("external interrupt fired with MSR[EE]=0: PC = %#x, want 4", c.State.PC)
	}
}
