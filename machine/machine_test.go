package machine

import (
	"strings"
	"testing"

	"github.com/oldmac/ppc32/internal/config"
	"github.com/oldmac/ppc32/internal/memmap"
)

func testConfig() config.MachineConfig {
	cfg := config.Default()
	cfg.CPU.Deterministic = true
	return cfg
}

func TestNewMapsConfiguredRegions(t *testing.T) {
	m, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.State.PC != 0x00000100 {
		t.Errorf("fresh machine PC = %#x, want reset vector 0x100", m.State.PC)
	}
}

func TestNewRejectsUnknownRegionKind(t *testing.T) {
	cfg := config.Default()
	cfg.Regions = []config.RegionConfig{{Name: "bogus", Kind: "weird", Base: 0, Size: 0x1000}}
	if _, err := New(cfg); err == nil {
		t.Fatalf("New should reject a region of unknown kind")
	}
}

func TestNewRejectsMirrorOfUnknownRegion(t *testing.T) {
	cfg := config.Default()
	cfg.Regions = []config.RegionConfig{
		{Name: "mirror", Kind: "mirror", Base: 0x1000, Size: 0x100, MirrorOf: "nope"},
	}
	if _, err := New(cfg); err == nil {
		t.Fatalf("New should reject a mirror region pointing at an unknown target")
	}
}

func TestGetRegAndSetRegRoundTrip(t *testing.T) {
	m, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !m.SetReg("r5", 0xDEADBEEF) {
		t.Fatalf("SetReg(r5) reported unknown register")
	}
	v, ok := m.GetReg("r5")
	if !ok || v != 0xDEADBEEF {
		t.Errorf("GetReg(r5) = %#x,%v, want 0xDEADBEEF,true", v, ok)
	}

	if !m.SetReg("pc", 0x2000) {
		t.Fatalf("SetReg(pc) reported unknown register")
	}
	if v, _ := m.GetReg("pc"); v != 0x2000 {
		t.Errorf("GetReg(pc) = %#x, want 0x2000", v)
	}

	if _, ok := m.GetReg("r32"); ok {
		t.Errorf("GetReg(r32) should be unknown, GPR indices run 0-31")
	}
	if m.SetReg("bogus", 1) {
		t.Errorf("SetReg(bogus) should report unknown register")
	}
}

func TestResetRestoresPowerOnStateWithoutTearingDownMemory(t *testing.T) {
	m, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.SetReg("r3", 0x12345678)
	m.State.PC = 0x9000
	m.Reset()
	if m.State.PC != 0x00000100 {
		t.Errorf("PC after Reset = %#x, want 0x100", m.State.PC)
	}
	if v, _ := m.GetReg("r3"); v != 0 {
		t.Errorf("GPR3 after Reset = %#x, want 0 (architected state cleared)", v)
	}
	// The memory map itself must survive Reset: RAM mapped by New is still there.
	if _, f := m.MMU.TranslateData(m.State, m.Mem, 0, false); f.Cause != 0 {
		t.Errorf("RAM region should still be mapped after Reset: fault %+v", f)
	}
}

func TestDumpRegsContainsAllGPRsAndCoreRegisters(t *testing.T) {
	m, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.SetReg("r7", 0xCAFEBABE)
	out := m.DumpRegs()
	if !strings.Contains(out, "r7 =cafebabe") && !strings.Contains(out, "r7=cafebabe") {
		t.Errorf("DumpRegs missing r7's value: %q", out)
	}
	if !strings.Contains(out, "pc=") || !strings.Contains(out, "msr=") {
		t.Errorf("DumpRegs missing core registers: %q", out)
	}
}

func TestRunUntilAdvancesInstrCount(t *testing.T) {
	m, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// addi r3,r0,1 repeated: primary opcode 14.
	word := (uint32(14) << 26) | (uint32(3) << 21) | uint32(1)
	m.Mem.Write(0x100, word, 4, memmap.ChanWrite)
	m.Mem.Write(0x104, word, 4, memmap.ChanWrite)

	m.RunUntil(2)
	if m.Cpu.InstrCount != 2 {
		t.Errorf("InstrCount after RunUntil(2) = %d, want 2", m.Cpu.InstrCount)
	}
}
