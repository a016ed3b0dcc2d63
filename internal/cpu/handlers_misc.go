package cpu

import (
	"github.com/oldmac/ppc32/internal/dispatch"
	"github.com/oldmac/ppc32/internal/except"
)

// opSync/opEieio are full/enforce-ordering barriers. This core executes
// one instruction at a time with no store buffer, so both are no-ops
// beyond acknowledging the opcode — grounded on the teacher's own
// no-op-with-comment treatment of S/370's (rare) ordering instructions.
func opSync(c *dispatch.Ctx, op uint32) except.Fault  { return except.Fault{} }
func opEieio(c *dispatch.Ctx, op uint32) except.Fault { return except.Fault{} }

// opIsync discards any prefetched/predecoded instruction stream starting
// at the next address — spec.md's context-synchronizing instruction list
// — by running the registered sync callbacks (SPEC_FULL.md supplemented
// feature 3: the predecode cache hooks isync/rfi to invalidate itself).
func opIsync(c *dispatch.Ctx, op uint32) except.Fault {
	c.RunSyncCallbacks()
	return except.Fault{}
}

// opDcbf/opDcbst/opDcbt/opDcbtst are cache-management hints. Since this
// core has no cache model (memory is accessed directly through the MMU
// on every instruction), they are architected no-ops — the teacher takes
// the same stance on S/370's (absent) analogous hints.
func opDcbf(c *dispatch.Ctx, op uint32) except.Fault  { return except.Fault{} }
func opDcbst(c *dispatch.Ctx, op uint32) except.Fault { return except.Fault{} }
func opDcbt(c *dispatch.Ctx, op uint32) except.Fault  { return except.Fault{} }
func opDcbtst(c *dispatch.Ctx, op uint32) except.Fault { return except.Fault{} }

// opIcbi invalidates any predecoded block covering the target address —
// the one cache-management hint this core actually has to act on, since
// self-modifying code must be re-predecoded.
func opIcbi(c *dispatch.Ctx, op uint32) except.Fault {
	c.RunSyncCallbacks()
	return except.Fault{}
}

// opDcbz zeroes the 32-byte cache block containing ea, the one
// cache-management instruction with an architected memory effect.
func opDcbz(c *dispatch.Ctx, op uint32) except.Fault {
	ea := eaXForm(c, op) &^ 0x1F
	for i := uint32(0); i < 32; i += 4 {
		if f := c.MMU.WriteVmem(c.State, c.Mem, ea+i, 0, 4, false); f.Cause != except.None {
			return f
		}
	}
	return except.Fault{}
}

// trapCond evaluates the TO field against a signed or unsigned compare,
// spec.md §4.4.1's tw/twi "any of five independently-selectable
// conditions" semantics.
func trapCond(to uint32, a, b int32) bool {
	ua, ub := uint32(a), uint32(b)
	return (to&0x10 != 0 && a < b) ||
		(to&0x08 != 0 && a > b) ||
		(to&0x04 != 0 && a == b) ||
		(to&0x02 != 0 && ua < ub) ||
		(to&0x01 != 0 && ua > ub)
}

func opTw(c *dispatch.Ctx, op uint32) except.Fault {
	to := bits(op, 25, 21)
	a, b := int32(c.State.GPR[ra(op)]), int32(c.State.GPR[rb(op)])
	if trapCond(to, a, b) {
		return except.Fault{Cause: except.Program, CauseBits: except.ProgramTrap}
	}
	return except.Fault{}
}

func opTwi(c *dispatch.Ctx, op uint32) except.Fault {
	to := bits(op, 25, 21)
	a, b := int32(c.State.GPR[ra(op)]), simm(op)
	if trapCond(to, a, b) {
		return except.Fault{Cause: except.Program, CauseBits: except.ProgramTrap}
	}
	return except.Fault{}
}
