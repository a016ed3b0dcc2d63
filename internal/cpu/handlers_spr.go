package cpu

import (
	"github.com/oldmac/ppc32/internal/dispatch"
	"github.com/oldmac/ppc32/internal/except"
	"github.com/oldmac/ppc32/internal/state"
)

func opMfmsr(c *dispatch.Ctx, op uint32) except.Fault {
	if c.State.MSR&state.MsrPR != 0 {
		return except.Fault{Cause: except.Program, CauseBits: except.ProgramPrivileged}
	}
	c.State.GPR[rd(op)] = c.State.MSR
	return except.Fault{}
}

func opMtmsr(c *dispatch.Ctx, op uint32) except.Fault {
	s := c.State
	if s.MSR&state.MsrPR != 0 {
		return except.Fault{Cause: except.Program, CauseBits: except.ProgramPrivileged}
	}
	before := s.MSR
	s.MSR = s.GPR[rs(op)]
	if before&(state.MsrIR|state.MsrDR) != s.MSR&(state.MsrIR|state.MsrDR) {
		c.MMU.OnModeChanged()
	}
	return except.Fault{}
}

func opMfcr(c *dispatch.Ctx, op uint32) except.Fault {
	c.State.GPR[rd(op)] = c.State.CR
	return except.Fault{}
}

func opMtcrf(c *dispatch.Ctx, op uint32) except.Fault {
	s := c.State
	crm := bits(op, 19, 12)
	v := s.GPR[rs(op)]
	var mask uint32
	for i := 0; i < 8; i++ {
		if crm&(1<<uint(7-i)) != 0 {
			mask |= 0xF << uint(28-4*i)
		}
	}
	s.CR = (s.CR &^ mask) | (v & mask)
	return except.Fault{}
}

// spr-SPR access privilege: every SPR above 255 is supervisor-only per
// the architecture's "mfspr/mtspr to an SPR with bit 0 of spr[0:4] set
// traps in user mode" rule, simplified here to "privileged unless it's
// one of the three user-readable SPRs" (XER, LR, CTR).
func sprIsUser(n uint32) bool {
	switch n {
	case state.SprXER, state.SprLR, state.SprCTR:
		return true
	default:
		return false
	}
}

func opMfspr(c *dispatch.Ctx, op uint32) except.Fault {
	s := c.State
	n := sprField(op)
	if s.MSR&state.MsrPR != 0 && !sprIsUser(n) {
		return except.Fault{Cause: except.Program, CauseBits: except.ProgramPrivileged}
	}
	s.GPR[rd(op)] = s.SPR[n]
	return except.Fault{}
}

func opMtspr(c *dispatch.Ctx, op uint32) except.Fault {
	s := c.State
	n := sprField(op)
	if s.MSR&state.MsrPR != 0 && !sprIsUser(n) {
		return except.Fault{Cause: except.Program, CauseBits: except.ProgramPrivileged}
	}
	v := s.GPR[rs(op)]
	switch n {
	case state.SprTBLW:
		c.Time.WriteTBL(v)
		return except.Fault{}
	case state.SprTBUW:
		c.Time.WriteTBU(v)
		return except.Fault{}
	case state.SprDEC:
		s.SPR[state.SprDEC] = v
		c.Time.WriteDEC(v)
		return except.Fault{}
	case state.SprIBAT0U, state.SprIBAT0L, state.SprIBAT1U, state.SprIBAT1L,
		state.SprIBAT2U, state.SprIBAT2L, state.SprIBAT3U, state.SprIBAT3L,
		state.SprDBAT0U, state.SprDBAT0L, state.SprDBAT1U, state.SprDBAT1L,
		state.SprDBAT2U, state.SprDBAT2L, state.SprDBAT3U, state.SprDBAT3L:
		s.SPR[n] = v
		c.MMU.OnBATChanged(s)
		return except.Fault{}
	case state.SprSDR1:
		s.SPR[n] = v
		c.MMU.OnPATCtxChanged()
		return except.Fault{}
	default:
		s.SPR[n] = v
		return except.Fault{}
	}
}

func opMftb(c *dispatch.Ctx, op uint32) except.Fault {
	n := sprField(op)
	tbr := c.Time.TBR()
	switch n {
	case state.SprTBL:
		c.State.GPR[rd(op)] = uint32(tbr)
	case state.SprTBU:
		c.State.GPR[rd(op)] = uint32(tbr >> 32)
	default:
		return except.Fault{Cause: except.Program, CauseBits: except.ProgramIllegal}
	}
	return except.Fault{}
}

// opMtsr/opMfsr access the 16 segment registers (spec.md §3.3); both are
// supervisor-only.
func opMtsr(c *dispatch.Ctx, op uint32) except.Fault {
	s := c.State
	if s.MSR&state.MsrPR != 0 {
		return except.Fault{Cause: except.Program, CauseBits: except.ProgramPrivileged}
	}
	n := bits(op, 19, 16)
	s.SR[n] = s.GPR[rs(op)]
	c.MMU.OnPATCtxChanged()
	return except.Fault{}
}

func opMfsr(c *dispatch.Ctx, op uint32) except.Fault {
	s := c.State
	if s.MSR&state.MsrPR != 0 {
		return except.Fault{Cause: except.Program, CauseBits: except.ProgramPrivileged}
	}
	n := bits(op, 19, 16)
	s.GPR[rd(op)] = s.SR[n]
	return except.Fault{}
}

// opMcrxr copies XER[0:3] (SO/OV/CA plus a reserved bit) into a CR field
// and clears them, spec.md §4.4.1.
func opMcrxr(c *dispatch.Ctx, op uint32) except.Fault {
	s := c.State
	top4 := s.XER() >> 28
	s.SetCRField(crfD(op), top4)
	s.SetXER(s.XER() &^ 0xF0000000)
	return except.Fault{}
}
