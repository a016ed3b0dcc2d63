package cpu

import (
	"github.com/oldmac/ppc32/internal/dispatch"
	"github.com/oldmac/ppc32/internal/except"
	"github.com/oldmac/ppc32/internal/state"
)

func branchTo(c *dispatch.Ctx, target uint32, lk bool) except.Fault {
	if lk {
		c.State.SPR[state.SprLR] = c.CIA + 4
	}
	c.Branch = true
	c.BranchAddr = target
	return except.Fault{}
}

func opB(c *dispatch.Ctx, op uint32) except.Fault {
	li := int32(op&0x03FFFFFC) << 6 >> 6
	aa := op&2 != 0
	lk := op&1 != 0
	target := uint32(li)
	if !aa {
		target += c.CIA
	}
	return branchTo(c, target, lk)
}

// condTrue evaluates the BO/BI branch-condition field per the
// architecture's three independent predicates: CTR, the condition bit,
// both, or neither.
func condTrue(c *dispatch.Ctx, bo, bi uint32) bool {
	s := c.State
	ctrOK := true
	if bo&0x4 == 0 {
		s.SPR[state.SprCTR]--
		ctrZero := s.SPR[state.SprCTR] == 0
		if bo&0x2 != 0 {
			ctrOK = ctrZero
		} else {
			ctrOK = !ctrZero
		}
	}
	condOK := true
	if bo&0x10 == 0 {
		bitSet := (s.CR>>(31-bi))&1 != 0
		if bo&0x8 != 0 {
			condOK = bitSet
		} else {
			condOK = !bitSet
		}
	}
	return ctrOK && condOK
}

func opBc(c *dispatch.Ctx, op uint32) except.Fault {
	bo := bits(op, 25, 21)
	bi := bits(op, 20, 16)
	if !condTrue(c, bo, bi) {
		return except.Fault{}
	}
	bd := int32(int16(op&0xFFFC)) << 16 >> 16
	aa := op&2 != 0
	lk := op&1 != 0
	target := uint32(bd)
	if !aa {
		target += c.CIA
	}
	return branchTo(c, target, lk)
}

func opBclr(c *dispatch.Ctx, op uint32) except.Fault {
	bo := bits(op, 25, 21)
	bi := bits(op, 20, 16)
	if !condTrue(c, bo, bi) {
		return except.Fault{}
	}
	target := c.State.SPR[state.SprLR] &^ 0x3
	return branchTo(c, target, op&1 != 0)
}

func opBcctr(c *dispatch.Ctx, op uint32) except.Fault {
	bo := bits(op, 25, 21)
	bi := bits(op, 20, 16)
	if !condTrue(c, bo, bi) {
		return except.Fault{}
	}
	target := c.State.SPR[state.SprCTR] &^ 0x3
	return branchTo(c, target, op&1 != 0)
}

func opMcrf(c *dispatch.Ctx, op uint32) except.Fault {
	s := c.State
	s.SetCRField(crfD(op), s.CRField(crfS(op)))
	return except.Fault{}
}

// opSc raises the Syscall exception (spec.md §4.3) — the only instruction
// whose "fault" is actually its whole-instruction intended effect.
func opSc(c *dispatch.Ctx, op uint32) except.Fault {
	return except.Fault{Cause: except.Syscall}
}

// opRfi restores MSR from SRR1 and resumes at SRR0, spec.md §4.3's return
// path. It is privileged: a user-mode rfi (MSR[PR] set) returns a
// Program/privileged fault, checked here in the handler itself.
func opRfi(c *dispatch.Ctx, op uint32) except.Fault {
	s := c.State
	if s.MSR&state.MsrPR != 0 {
		return except.Fault{Cause: except.Program, CauseBits: except.ProgramPrivileged}
	}
	srr1 := s.SPR[state.SprSRR1]
	s.MSR = (s.MSR &^ 0x87C0FF73) | (srr1 & 0x87C0FF73)
	c.Branch = true
	c.BranchAddr = s.SPR[state.SprSRR0] &^ 0x3
	c.RunSyncCallbacks()
	return except.Fault{}
}
