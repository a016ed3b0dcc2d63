package cpu

import (
	"math"

	"github.com/oldmac/ppc32/internal/dispatch"
	"github.com/oldmac/ppc32/internal/except"
	"github.com/oldmac/ppc32/internal/hostfp"
	"github.com/oldmac/ppc32/internal/state"
)

// fpAvailable gates every FPU instruction on MSR[FP] per spec.md §4.4.2 —
// "any floating-point instruction executed while MSR[FP]=0 traps to the
// FP-unavailable vector before touching any register."
func fpAvailable(c *dispatch.Ctx) except.Fault {
	if c.State.MSR&state.MsrFP == 0 {
		return except.Fault{Cause: except.FPUnavailable}
	}
	return except.Fault{}
}

func fpRd(op uint32) uint32 { return bits(op, 25, 21) }
func fpRa(op uint32) uint32 { return bits(op, 20, 16) }
func fpRb(op uint32) uint32 { return bits(op, 15, 11) }
func fpRc(op uint32) uint32 { return bits(op, 10, 6) }

func setFPRF(s *state.ProcessorState, v float64) {
	var cls uint32
	switch {
	case math.IsNaN(v):
		cls = 0x11
	case math.IsInf(v, 1):
		cls = 0x5
	case math.IsInf(v, -1):
		cls = 0x9
	case v > 0:
		cls = 0x4
	case v < 0:
		cls = 0x8
	default:
		cls = 0x2
	}
	s.FPSCR = (s.FPSCR &^ (0x1F << 12)) | (cls << 12)
}

func fpBinOp(f func(a, b float64) float64) dispatch.Handler {
	return func(c *dispatch.Ctx, op uint32) except.Fault {
		if fault := fpAvailable(c); fault.Cause != except.None {
			return fault
		}
		s := c.State
		a := s.FPR[fpRa(op)].Float64()
		b := s.FPR[fpRb(op)].Float64()
		d := f(a, b)
		s.FPR[fpRd(op)] = state.FprFromFloat64(d)
		setFPRF(s, d)
		if rcBit(op) {
			s.SetCRField(1, s.FPSCR>>28&0xF)
		}
		return except.Fault{}
	}
}

var opFadd = fpBinOp(func(a, b float64) float64 { return a + b })
var opFsub = fpBinOp(func(a, b float64) float64 { return a - b })
var opFdiv = fpBinOp(func(a, b float64) float64 { return a / b })

// opFmul reads frc (bits 6..10), not frb, per the A-form multiply layout.
func opFmul(c *dispatch.Ctx, op uint32) except.Fault {
	if fault := fpAvailable(c); fault.Cause != except.None {
		return fault
	}
	s := c.State
	a := s.FPR[fpRa(op)].Float64()
	b := s.FPR[fpRc(op)].Float64()
	d := a * b
	s.FPR[fpRd(op)] = state.FprFromFloat64(d)
	setFPRF(s, d)
	if rcBit(op) {
		s.SetCRField(1, s.FPSCR>>28&0xF)
	}
	return except.Fault{}
}

// opFrsp narrows a double to single precision under the FPSCR-derived
// rounding mode (spec.md:150) rather than Go's fixed round-to-nearest-even
// conversion.
func opFrsp(c *dispatch.Ctx, op uint32) except.Fault {
	if fault := fpAvailable(c); fault.Cause != except.None {
		return fault
	}
	s := c.State
	v := hostfp.RoundFloat64ToFloat32(s.FPR[fpRb(op)].Float64(), hostfp.FromFPSCR(s.FPSCR))
	d := float64(v)
	s.FPR[fpRd(op)] = state.FprFromFloat64(d)
	setFPRF(s, d)
	if rcBit(op) {
		s.SetCRField(1, s.FPSCR>>28&0xF)
	}
	return except.Fault{}
}

func opFneg(c *dispatch.Ctx, op uint32) except.Fault {
	if fault := fpAvailable(c); fault.Cause != except.None {
		return fault
	}
	s := c.State
	v := s.FPR[fpRb(op)].Uint64() ^ 0x8000000000000000
	s.FPR[fpRd(op)] = state.FprFromUint64(v)
	if rcBit(op) {
		s.SetCRField(1, s.FPSCR>>28&0xF)
	}
	return except.Fault{}
}

func opFabs(c *dispatch.Ctx, op uint32) except.Fault {
	if fault := fpAvailable(c); fault.Cause != except.None {
		return fault
	}
	s := c.State
	v := s.FPR[fpRb(op)].Uint64() &^ 0x8000000000000000
	s.FPR[fpRd(op)] = state.FprFromUint64(v)
	if rcBit(op) {
		s.SetCRField(1, s.FPSCR>>28&0xF)
	}
	return except.Fault{}
}

// opFnabs forces the sign bit of frb set regardless of its prior value —
// the complement of opFabs.
func opFnabs(c *dispatch.Ctx, op uint32) except.Fault {
	if fault := fpAvailable(c); fault.Cause != except.None {
		return fault
	}
	s := c.State
	v := s.FPR[fpRb(op)].Uint64() | 0x8000000000000000
	s.FPR[fpRd(op)] = state.FprFromUint64(v)
	if rcBit(op) {
		s.SetCRField(1, s.FPSCR>>28&0xF)
	}
	return except.Fault{}
}

func opFmr(c *dispatch.Ctx, op uint32) except.Fault {
	if fault := fpAvailable(c); fault.Cause != except.None {
		return fault
	}
	s := c.State
	s.FPR[fpRd(op)] = s.FPR[fpRb(op)]
	if rcBit(op) {
		s.SetCRField(1, s.FPSCR>>28&0xF)
	}
	return except.Fault{}
}

func opFcmpu(c *dispatch.Ctx, op uint32) except.Fault {
	if fault := fpAvailable(c); fault.Cause != except.None {
		return fault
	}
	s := c.State
	a, b := s.FPR[fpRa(op)].Float64(), s.FPR[fpRb(op)].Float64()
	var f uint32
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		f = 1
	case a < b:
		f = state.CrLT
	case a > b:
		f = state.CrGT
	default:
		f = state.CrEQ
	}
	s.SetCRField(crfD(op), f)
	s.FPSCR = (s.FPSCR &^ (0xF << 12)) | (f << 12)
	return except.Fault{}
}

// opFctiwz converts the double in frb to a signed 32-bit integer,
// unconditionally round-toward-zero regardless of FPSCR[RN] — the "z"
// suffix names a fixed rounding direction, unlike the general opFctiw
// below. The result is stored as the low word of the destination FPR
// per the architecture's odd "integer result in an FPR" convention.
func opFctiwz(c *dispatch.Ctx, op uint32) except.Fault {
	if fault := fpAvailable(c); fault.Cause != except.None {
		return fault
	}
	s := c.State
	iv := hostfp.RoundToInt32(s.FPR[fpRb(op)].Float64(), hostfp.RoundTowardZero)
	s.FPR[fpRd(op)] = state.FprFromUint64(uint64(uint32(iv)))
	return except.Fault{}
}

// opFctiw is fctiwz's FPSCR-sensitive sibling (spec.md:272): it converts
// under whatever rounding direction FPSCR[RN] currently names instead of
// always truncating toward zero.
func opFctiw(c *dispatch.Ctx, op uint32) except.Fault {
	if fault := fpAvailable(c); fault.Cause != except.None {
		return fault
	}
	s := c.State
	iv := hostfp.RoundToInt32(s.FPR[fpRb(op)].Float64(), hostfp.FromFPSCR(s.FPSCR))
	s.FPR[fpRd(op)] = state.FprFromUint64(uint64(uint32(iv)))
	return except.Fault{}
}

// opMffs/opMtfsf move the whole FPSCR to/from a GPR-adjacent FPR slot —
// simplified from the architecture's per-field mtfsfi/mtfsb1 forms to the
// two whole-register moves this core actually needs for context switch
// save/restore.
func opMffs(c *dispatch.Ctx, op uint32) except.Fault {
	if fault := fpAvailable(c); fault.Cause != except.None {
		return fault
	}
	c.State.FPR[fpRd(op)] = state.FprFromUint64(uint64(c.State.FPSCR))
	return except.Fault{}
}

func opMtfsf(c *dispatch.Ctx, op uint32) except.Fault {
	if fault := fpAvailable(c); fault.Cause != except.None {
		return fault
	}
	c.State.FPSCR = uint32(c.State.FPR[fpRb(op)].Uint64())
	return except.Fault{}
}
