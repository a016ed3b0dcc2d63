package disasm

import "testing"

func TestDisasmAddiSimplifiedToLi(t *testing.T) {
	if got := Disasm(0, 0x38600064, true); got != "li r3,0x64" {
		t.Errorf("Disasm(addi ra=0, simplified) = %q, want %q", got, "li r3,0x64")
	}
}

func TestDisasmAddiArchitected(t *testing.T) {
	if got := Disasm(0, 0x38600064, false); got != "addi r3,r0,100" {
		t.Errorf("Disasm(addi, architected) = %q, want %q", got, "addi r3,r0,100")
	}
}

func TestDisasmUnconditionalBranch(t *testing.T) {
	if got := Disasm(0, 0x48000100, false); got != "b 0x100" {
		t.Errorf("Disasm(b) = %q, want %q", got, "b 0x100")
	}
}

func TestDisasmConditionalBranchSimplified(t *testing.T) {
	got := Disasm(0x1000, 0x41820008, true)
	if got != "beq+ 0x1008" {
		t.Errorf("Disasm(bc, simplified) = %q, want %q", got, "beq+ 0x1008")
	}
}

func TestDisasmConditionalBranchArchitected(t *testing.T) {
	got := Disasm(0x1000, 0x41820008, false)
	if got != "bc 12,2,0x1008" {
		t.Errorf("Disasm(bc, architected) = %q, want %q", got, "bc 12,2,0x1008")
	}
}

func TestDisasmCmp(t *testing.T) {
	if got := Disasm(0, 0x7c032000, false); got != "cmp cr0,r3,r4" {
		t.Errorf("Disasm(cmp) = %q, want %q", got, "cmp cr0,r3,r4")
	}
}

func TestDisasmAdd(t *testing.T) {
	if got := Disasm(0, 0x7ca63a14, false); got != "add r5,r6,r7" {
		t.Errorf("Disasm(add) = %q, want %q", got, "add r5,r6,r7")
	}
}

func TestDisasmMrPseudoOp(t *testing.T) {
	// or r3,r4,r4 -> simplified to "mr r3,r4"
	orOpcode := uint32((31 << 26) | (4 << 21) | (3 << 16) | (4 << 11) | (444 << 1))
	if got := Disasm(0, orOpcode, true); got != "mr r3,r4" {
		t.Errorf("Disasm(or rA,rS,rS simplified) = %q, want %q", got, "mr r3,r4")
	}
	if got := Disasm(0, orOpcode, false); got != "or r3,r4,r4" {
		t.Errorf("Disasm(or, architected) = %q, want %q", got, "or r3,r4,r4")
	}
}

func TestDisasmMfspr(t *testing.T) {
	if got := Disasm(0, 0x7c8802a6, false); got != "mfspr r4,8" {
		t.Errorf("Disasm(mfspr) = %q, want %q", got, "mfspr r4,8")
	}
}

func TestDisasmFadd(t *testing.T) {
	if got := Disasm(0, 0xfc22182a, false); got != "fadd fr1,fr2,fr3" {
		t.Errorf("Disasm(fadd) = %q, want %q", got, "fadd fr1,fr2,fr3")
	}
}

func TestDisasmUnknownOpcodeFallsBackToLong(t *testing.T) {
	got := Disasm(0, 0x00000000, false)
	if got != ".long 0x00000000" {
		t.Errorf("Disasm(illegal) = %q, want %q", got, ".long 0x00000000")
	}
}
