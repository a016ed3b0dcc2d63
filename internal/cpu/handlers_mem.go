package cpu

import (
	"math"

	"github.com/oldmac/ppc32/internal/dispatch"
	"github.com/oldmac/ppc32/internal/except"
	"github.com/oldmac/ppc32/internal/hostfp"
	"github.com/oldmac/ppc32/internal/state"
)

func eaDForm(c *dispatch.Ctx, op uint32) uint32 {
	base := uint32(0)
	if ra(op) != 0 {
		base = c.State.GPR[ra(op)]
	}
	return base + uint32(simm(op))
}

func eaXForm(c *dispatch.Ctx, op uint32) uint32 {
	base := uint32(0)
	if ra(op) != 0 {
		base = c.State.GPR[ra(op)]
	}
	return base + c.State.GPR[rb(op)]
}

func load(size uint8, signExtend, update, indexed bool) dispatch.Handler {
	return func(c *dispatch.Ctx, op uint32) except.Fault {
		var ea uint32
		if indexed {
			ea = eaXForm(c, op)
		} else {
			ea = eaDForm(c, op)
		}
		v, f := c.MMU.ReadVmem(c.State, c.Mem, ea, size, false)
		if f.Cause != except.None {
			return f
		}
		if signExtend {
			switch size {
			case 1:
				v = uint32(int32(int8(v)))
			case 2:
				v = uint32(int32(int16(v)))
			}
		}
		c.State.GPR[rd(op)] = v
		if update {
			c.State.GPR[ra(op)] = ea
		}
		return except.Fault{}
	}
}

func store(size uint8, update, indexed bool) dispatch.Handler {
	return func(c *dispatch.Ctx, op uint32) except.Fault {
		var ea uint32
		if indexed {
			ea = eaXForm(c, op)
		} else {
			ea = eaDForm(c, op)
		}
		v := c.State.GPR[rd(op)]
		if f := c.MMU.WriteVmem(c.State, c.Mem, ea, v, size, false); f.Cause != except.None {
			return f
		}
		if update {
			c.State.GPR[ra(op)] = ea
		}
		return except.Fault{}
	}
}

// loadFPR/storeFPR are lfs/lfd/stfs/stfd's factory (spec.md §4.4.2,
// opcodes 48-55): the FPR file's only path to guest memory. ReadVmem/
// WriteVmem move one 32-bit word at a time, so a double's two words are
// fetched/stored big-endian-high-first to match the architected format.
// MSR[FP] gates these exactly like every other FPU instruction.
func loadFPR(double, update bool) dispatch.Handler {
	return func(c *dispatch.Ctx, op uint32) except.Fault {
		if fault := fpAvailable(c); fault.Cause != except.None {
			return fault
		}
		ea := eaDForm(c, op)
		hi, f := c.MMU.ReadVmem(c.State, c.Mem, ea, 4, false)
		if f.Cause != except.None {
			return f
		}
		if double {
			lo, f := c.MMU.ReadVmem(c.State, c.Mem, ea+4, 4, false)
			if f.Cause != except.None {
				return f
			}
			c.State.FPR[fpRd(op)] = state.FprFromUint64(uint64(hi)<<32 | uint64(lo))
		} else {
			v := math.Float32frombits(hi)
			c.State.FPR[fpRd(op)] = state.FprFromFloat64(float64(v))
		}
		if update {
			c.State.GPR[ra(op)] = ea
		}
		return except.Fault{}
	}
}

func storeFPR(double, update bool) dispatch.Handler {
	return func(c *dispatch.Ctx, op uint32) except.Fault {
		if fault := fpAvailable(c); fault.Cause != except.None {
			return fault
		}
		ea := eaDForm(c, op)
		v := c.State.FPR[fpRd(op)]
		if double {
			bits := v.Uint64()
			if f := c.MMU.WriteVmem(c.State, c.Mem, ea, uint32(bits>>32), 4, false); f.Cause != except.None {
				return f
			}
			if f := c.MMU.WriteVmem(c.State, c.Mem, ea+4, uint32(bits), 4, false); f.Cause != except.None {
				return f
			}
		} else {
			single := hostfp.RoundFloat64ToFloat32(v.Float64(), hostfp.FromFPSCR(c.State.FPSCR))
			if f := c.MMU.WriteVmem(c.State, c.Mem, ea, math.Float32bits(single), 4, false); f.Cause != except.None {
				return f
			}
		}
		if update {
			c.State.GPR[ra(op)] = ea
		}
		return except.Fault{}
	}
}

var (
	opLfs  = loadFPR(false, false)
	opLfsu = loadFPR(false, true)
	opLfd  = loadFPR(true, false)
	opLfdu = loadFPR(true, true)

	opStfs  = storeFPR(false, false)
	opStfsu = storeFPR(false, true)
	opStfd  = storeFPR(true, false)
	opStfdu = storeFPR(true, true)
)

var (
	opLwz  = load(4, false, false, false)
	opLwzu = load(4, false, true, false)
	opLwzx = load(4, false, false, true)
	opLbz  = load(1, false, false, false)
	opLbzu = load(1, false, true, false)
	opLhz  = load(2, false, false, false)
	opLhzu = load(2, false, true, false)
	opLha  = load(2, true, false, false)
	opLhau = load(2, true, true, false)

	opStw  = store(4, false, false)
	opStwu = store(4, true, false)
	opStwx = store(4, false, true)
	opStb  = store(1, false, false)
	opStbu = store(1, true, false)
	opSth  = store(2, false, false)
	opSthu = store(2, true, false)
)

// opLwarx/opStwcx implement the lwarx/stwcx. reservation pair (spec.md
// §4.4.1's atomic-update primitive), grounded on the architected "single
// reservation per core" model.
func opLwarx(c *dispatch.Ctx, op uint32) except.Fault {
	ea := eaXForm(c, op)
	v, f := c.MMU.ReadVmem(c.State, c.Mem, ea, 4, true)
	if f.Cause != except.None {
		return f
	}
	c.State.Reserve = state.Reservation{Active: true, Addr: ea}
	c.State.GPR[rd(op)] = v
	return except.Fault{}
}

func opStwcxDot(c *dispatch.Ctx, op uint32) except.Fault {
	s := c.State
	ea := eaXForm(c, op)
	if !s.Reserve.Active || s.Reserve.Addr != ea {
		s.Reserve.Active = false
		s.SetCRField(0, boolCR(false, s))
		return except.Fault{}
	}
	if f := c.MMU.WriteVmem(s, c.Mem, ea, s.GPR[rd(op)], 4, true); f.Cause != except.None {
		s.Reserve.Active = false
		return f
	}
	s.Reserve.Active = false
	s.SetCRField(0, boolCR(true, s))
	return except.Fault{}
}

func boolCR(eq bool, s *state.ProcessorState) uint32 {
	var f uint32
	if eq {
		f = state.CrEQ
	}
	if s.XER()&state.XerSO != 0 {
		f |= state.CrSO
	}
	return f
}

// opLmw/opStmw load/store multiple consecutive registers starting at rd
// through r31 (spec.md §4.4.1); both require natural word alignment.
func opLmw(c *dispatch.Ctx, op uint32) except.Fault {
	ea := eaDForm(c, op)
	for r := rd(op); r <= 31; r++ {
		v, f := c.MMU.ReadVmem(c.State, c.Mem, ea, 4, true)
		if f.Cause != except.None {
			return f
		}
		c.State.GPR[r] = v
		ea += 4
	}
	return except.Fault{}
}

func opStmw(c *dispatch.Ctx, op uint32) except.Fault {
	ea := eaDForm(c, op)
	for r := rd(op); r <= 31; r++ {
		if f := c.MMU.WriteVmem(c.State, c.Mem, ea, c.State.GPR[r], 4, true); f.Cause != except.None {
			return f
		}
		ea += 4
	}
	return except.Fault{}
}
