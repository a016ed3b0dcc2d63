// Package machine is the top-level public surface of spec.md §6.4: a
// Machine bundles one Cpu with its MemoryMap, Mmu, TimeBase and Timer
// service, loads a configuration, and exposes init/run/run_until/step/
// reset/get_reg/set_reg/dump_regs to callers (the CLI, the debugger, or
// an embedding Go program). Grounded on the teacher's emu/core.Core,
// which plays the identical "own everything, expose a narrow verb set"
// role for the S/370 side.
package machine

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/oldmac/ppc32/internal/config"
	"github.com/oldmac/ppc32/internal/cpu"
	"github.com/oldmac/ppc32/internal/device"
	"github.com/oldmac/ppc32/internal/hostfp"
	"github.com/oldmac/ppc32/internal/intctrl"
	"github.com/oldmac/ppc32/internal/memmap"
	"github.com/oldmac/ppc32/internal/metrics"
	"github.com/oldmac/ppc32/internal/mmu"
	"github.com/oldmac/ppc32/internal/state"
	"github.com/oldmac/ppc32/internal/timebase"
	"github.com/oldmac/ppc32/internal/timer"
)

// Machine is one emulated PowerPC system.
type Machine struct {
	Cfg   config.MachineConfig
	State *state.ProcessorState
	Mem   *memmap.MemoryMap
	MMU   *mmu.Mmu
	Time  *timebase.TimeBase
	Timer *timer.Service
	Cpu   *cpu.Cpu
	Intr  *intctrl.Controller

	Metrics *metrics.Recorder

	stop chan struct{}
}

// New builds and resets a Machine from cfg, mapping every configured
// region (spec.md §3.2) before the core's first fetch.
func New(cfg config.MachineConfig) (*Machine, error) {
	m := &Machine{Cfg: cfg, stop: make(chan struct{})}

	m.State = &state.ProcessorState{}
	m.State.Reset(cfg.CPU.PVR, cfg.CPU.ResetHighVectors)

	m.Mem = memmap.New()
	if err := mapRegions(m.Mem, cfg.Regions); err != nil {
		return nil, err
	}

	m.MMU = mmu.New()
	m.Time = timebase.New(cfg.CPU.TBRFrequencyHz)
	if cfg.CPU.Deterministic {
		m.Time.EnableDeterministic(cfg.CPU.ICntFactor)
	}
	m.Timer = timer.New(m.Time)

	m.Cpu = cpu.New(m.State, m.Mem, m.MMU, m.Time, m.Timer)
	m.Intr = intctrl.New(func(level bool) { m.Cpu.SetExternal(level) })
	m.Metrics = metrics.New()

	slog.Debug("machine: host floating-point environment", "hostfp", hostfp.Description())

	return m, nil
}

func mapRegions(mem *memmap.MemoryMap, regions []config.RegionConfig) error {
	baseByName := make(map[string]uint32, len(regions))
	for _, r := range regions {
		baseByName[r.Name] = r.Base
	}

	for _, r := range regions {
		switch r.Kind {
		case "ram", "":
			if err := mem.AddRAM(r.Base, r.Size); err != nil {
				return err
			}
		case "rom":
			var img []byte
			if r.Image != "" {
				b, err := os.ReadFile(r.Image)
				if err != nil {
					return fmt.Errorf("machine: reading ROM image %s: %w", r.Image, err)
				}
				img = b
			}
			if err := mem.AddROM(r.Base, r.Size, img); err != nil {
				return err
			}
		case "mirror":
			targetBase, ok := baseByName[r.MirrorOf]
			if !ok {
				return fmt.Errorf("machine: region %q mirrors unknown region %q", r.Name, r.MirrorOf)
			}
			if err := mem.AddMirror(r.Base, r.Size, targetBase); err != nil {
				return err
			}
		default:
			return fmt.Errorf("machine: region %q has unknown kind %q (MMIO regions are wired by host code via AddMMIODevice, not config)", r.Name, r.Kind)
		}
	}
	return nil
}

// AddMMIODevice lets host code (the CLI's device wiring step) register a
// device-backed region after the config-driven regions are mapped.
func (m *Machine) AddMMIODevice(base, size uint32, dev device.MMIODevice) error {
	return m.Mem.AddMMIO(base, size, dev)
}

// Reset re-initializes architected state to power-on values without
// tearing down the memory map or devices — spec.md §6.4's reset().
func (m *Machine) Reset() {
	m.State.Reset(m.Cfg.CPU.PVR, m.Cfg.CPU.ResetHighVectors)
	m.MMU.FlushAll()
}

// Step executes exactly one instruction — spec.md §6.4's step().
func (m *Machine) Step() { m.Cpu.Step() }

// Run executes until Stop is called — spec.md §6.4's run().
func (m *Machine) Run() { m.Cpu.Run(m.stop) }

// RunUntil executes until InstrCount reaches count or Stop is called.
func (m *Machine) RunUntil(count uint64) { m.Cpu.RunUntil(count, m.stop) }

// RunUntilBreakpoint executes until PC lands on an address in breakpoints
// or Stop is called, reporting whether a breakpoint was hit — the
// debugger's "continue" verb (spec.md §6.4, generalized with a halt
// condition since run() alone never returns control to the REPL).
func (m *Machine) RunUntilBreakpoint(breakpoints map[uint32]bool) bool {
	return m.Cpu.RunUntilBreakpoint(breakpoints, m.stop)
}

// Stop signals a running Run/RunUntil loop to return at the next
// instruction boundary.
func (m *Machine) Stop() { close(m.stop); m.stop = make(chan struct{}) }

// GetReg/SetReg are the debugger's named-register accessors (spec.md
// §6.4's get_reg/set_reg), addressing GPRs, FPRs, PC, CR, MSR, XER and
// LR/CTR by name so the REPL never needs package-internal field access.
func (m *Machine) GetReg(name string) (uint32, bool) {
	s := m.State
	switch {
	case name == "pc":
		return s.PC, true
	case name == "cr":
		return s.CR, true
	case name == "msr":
		return s.MSR, true
	case name == "xer":
		return s.XER(), true
	case name == "lr":
		return s.SPR[state.SprLR], true
	case name == "ctr":
		return s.SPR[state.SprCTR], true
	}
	if n, ok := gprIndex(name); ok {
		return s.GPR[n], true
	}
	return 0, false
}

func (m *Machine) SetReg(name string, v uint32) bool {
	s := m.State
	switch {
	case name == "pc":
		s.PC = v
		return true
	case name == "cr":
		s.CR = v
		return true
	case name == "msr":
		s.MSR = v
		return true
	case name == "xer":
		s.SetXER(v)
		return true
	case name == "lr":
		s.SPR[state.SprLR] = v
		return true
	case name == "ctr":
		s.SPR[state.SprCTR] = v
		return true
	}
	if n, ok := gprIndex(name); ok {
		s.GPR[n] = v
		return true
	}
	return false
}

func gprIndex(name string) (int, bool) {
	if len(name) < 2 || name[0] != 'r' {
		return 0, false
	}
	n := 0
	for _, ch := range name[1:] {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		n = n*10 + int(ch-'0')
	}
	if n < 0 || n > 31 {
		return 0, false
	}
	return n, true
}

// DumpRegs renders every GPR, PC, CR, MSR and XER — spec.md §6.4's
// dump_regs(), used by both the debugger and crash diagnostics.
func (m *Machine) DumpRegs() string {
	s := m.State
	out := fmt.Sprintf("pc=%08x cr=%08x msr=%08x xer=%08x lr=%08x ctr=%08x\n",
		s.PC, s.CR, s.MSR, s.XER(), s.SPR[state.SprLR], s.SPR[state.SprCTR])
	for i := 0; i < 32; i += 4 {
		out += fmt.Sprintf("r%-2d=%08x r%-2d=%08x r%-2d=%08x r%-2d=%08x\n",
			i, s.GPR[i], i+1, s.GPR[i+1], i+2, s.GPR[i+2], i+3, s.GPR[i+3])
	}
	return out
}
