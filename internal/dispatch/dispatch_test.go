package dispatch

import (
	"testing"

	"github.com/oldmac/ppc32/internal/except"
)

func TestNewTableDefaultsToIllegal(t *testing.T) {
	tbl := NewTable()
	f := tbl.Dispatch(&Ctx{}, 0)
	if f.Cause != except.Program {
		t.Fatalf("unregistered opcode dispatched to cause %v, want Program", f.Cause)
	}
}

func TestOPRegistersAcrossAllSubSlots(t *testing.T) {
	tbl := NewTable()
	called := 0
	tbl.OP(14, func(c *Ctx, opcode uint32) except.Fault {
		called++
		return except.Fault{}
	})

	// addi has no extended-opcode field, so every possible bit pattern in
	// the low 11 bits of a primary-14 opcode must still reach the handler.
	tbl.Dispatch(&Ctx{}, 14<<26)
	tbl.Dispatch(&Ctx{}, (14<<26)|0x7FF)
	if called != 2 {
		t.Errorf("OP handler invoked %d times, want 2", called)
	}
}

func TestOPXRegistersBothRcVariants(t *testing.T) {
	tbl := NewTable()
	called := 0
	tbl.OPX(31, 266, func(c *Ctx, opcode uint32) except.Fault {
		called++
		return except.Fault{}
	})

	addOpcode := uint32((31 << 26) | (266 << 1))
	addDotOpcode := addOpcode | 1
	tbl.Dispatch(&Ctx{}, addOpcode)
	tbl.Dispatch(&Ctx{}, addDotOpcode)
	if called != 2 {
		t.Errorf("OPX handler invoked %d times across rc=0/1, want 2", called)
	}
}

func TestOPXRcInstallsOnlyOneSlot(t *testing.T) {
	tbl := NewTable()
	dotCalled, plainCalled := 0, 0
	tbl.OPXRc(31, 266, false, func(c *Ctx, opcode uint32) except.Fault {
		plainCalled++
		return except.Fault{}
	})
	tbl.OPXRc(31, 266, true, func(c *Ctx, opcode uint32) except.Fault {
		dotCalled++
		return except.Fault{}
	})

	addOpcode := uint32((31 << 26) | (266 << 1))
	tbl.Dispatch(&Ctx{}, addOpcode)
	tbl.Dispatch(&Ctx{}, addOpcode|1)
	if plainCalled != 1 || dotCalled != 1 {
		t.Errorf("plainCalled=%d dotCalled=%d, want 1 and 1", plainCalled, dotCalled)
	}
}

func TestOP31ShortcutsPrimary31(t *testing.T) {
	tbl := NewTable()
	called := false
	tbl.OP31(0, func(c *Ctx, opcode uint32) except.Fault {
		called = true
		return except.Fault{}
	})
	tbl.Dispatch(&Ctx{}, uint32(31<<26))
	if !called {
		t.Errorf("OP31(0, ...) handler was not reached by a primary-31 ext-0 opcode")
	}
}

func TestLookupDistinguishesDifferentExtendedOpcodes(t *testing.T) {
	tbl := NewTable()
	tbl.OPX(31, 266, func(c *Ctx, opcode uint32) except.Fault {
		return except.Fault{Cause: except.Syscall}
	})
	tbl.OPX(31, 40, func(c *Ctx, opcode uint32) except.Fault {
		return except.Fault{Cause: except.Alignment}
	})

	addOpcode := uint32((31 << 26) | (266 << 1))
	subfOpcode := uint32((31 << 26) | (40 << 1))

	if f := tbl.Dispatch(&Ctx{}, addOpcode); f.Cause != except.Syscall {
		t.Errorf("add slot dispatched to cause %v, want Syscall", f.Cause)
	}
	if f := tbl.Dispatch(&Ctx{}, subfOpcode); f.Cause != except.Alignment {
		t.Errorf("subf slot dispatched to cause %v, want Alignment", f.Cause)
	}
}
