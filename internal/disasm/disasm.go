// Package disasm is the pure disassembler of spec.md §4.7: a function
// from (address, 32-bit opcode) to a human-readable string, with both
// architected and simplified mnemonic forms. It is grounded on the
// teacher's emu/disassemble package (a map from opcode constant to
// {name, operand-format, flags} consulted by a top-level switch on the
// primary opcode), generalized from S/370's RR/RX/RS/SI/SS formats to
// PowerPC's fixed-width I/B/D/DS/X/XL/XFX/XO/A forms.
package disasm

import "fmt"

type field struct {
	op, xo uint32
	rc, oe bool
}

func decode(opcode uint32) field {
	return field{
		op: (opcode >> 26) & 0x3F,
		xo: (opcode >> 1) & 0x3FF,
		rc: opcode&1 != 0,
		oe: (opcode>>10)&1 != 0,
	}
}

func bits(opcode uint32, hi, lo uint) uint32 {
	n := hi - lo + 1
	mask := uint32(1)<<n - 1
	return (opcode >> lo) & mask
}

func simm(opcode uint32) int32 { return int32(int16(opcode & 0xFFFF)) }
func uimm(opcode uint32) uint32 { return opcode & 0xFFFF }

func rd(o uint32) uint32 { return bits(o, 25, 21) }
func ra(o uint32) uint32 { return bits(o, 20, 16) }
func rb(o uint32) uint32 { return bits(o, 15, 11) }

func rcSuffix(rc bool) string {
	if rc {
		return "."
	}
	return ""
}
func oeSuffix(oe bool) string {
	if oe {
		return "o"
	}
	return ""
}

// Disasm renders opcode (fetched from addr) as its canonical or, when
// simplified is true, simplified mnemonic form.
func Disasm(addr, opcode uint32, simplified bool) string {
	f := decode(opcode)

	switch f.op {
	case 2:
		return fmt.Sprintf("twi %d,r%d,%d", rd(opcode), ra(opcode), simm(opcode))
	case 3:
		return fmt.Sprintf("twi %d,r%d,%d", rd(opcode), ra(opcode), simm(opcode))
	case 7:
		return fmt.Sprintf("mulli r%d,r%d,%d", rd(opcode), ra(opcode), simm(opcode))
	case 8:
		return fmt.Sprintf("subfic r%d,r%d,%d", rd(opcode), ra(opcode), simm(opcode))
	case 10:
		return fmt.Sprintf("cmpli cr%d,r%d,%#x", rd(opcode)>>2, ra(opcode), uimm(opcode))
	case 11:
		return fmt.Sprintf("cmpi cr%d,r%d,%d", rd(opcode)>>2, ra(opcode), simm(opcode))
	case 12:
		return fmt.Sprintf("addic r%d,r%d,%d", rd(opcode), ra(opcode), simm(opcode))
	case 13:
		return fmt.Sprintf("addic. r%d,r%d,%d", rd(opcode), ra(opcode), simm(opcode))
	case 14:
		if simplified && ra(opcode) == 0 {
			return fmt.Sprintf("li r%d,%#x", rd(opcode), uint32(uint16(simm(opcode))))
		}
		return fmt.Sprintf("addi r%d,r%d,%d", rd(opcode), ra(opcode), simm(opcode))
	case 15:
		return fmt.Sprintf("addis r%d,r%d,%#x", rd(opcode), ra(opcode), uimm(opcode))
	case 16:
		return disasmBC(opcode, addr, simplified)
	case 17:
		return "sc"
	case 18:
		return disasmB(opcode, addr)
	case 19:
		return disasm19(opcode, simplified)
	case 20:
		return fmt.Sprintf("rlwimi%s r%d,r%d,%d,%d,%d", rcSuffix(f.rc), ra(opcode), rd(opcode), rb(opcode), bits(opcode, 10, 6), bits(opcode, 5, 1))
	case 21:
		return fmt.Sprintf("rlwinm%s r%d,r%d,%d,%d,%d", rcSuffix(f.rc), ra(opcode), rd(opcode), rb(opcode), bits(opcode, 10, 6), bits(opcode, 5, 1))
	case 23:
		return fmt.Sprintf("rlwnm%s r%d,r%d,r%d,%d,%d", rcSuffix(f.rc), ra(opcode), rd(opcode), rb(opcode), bits(opcode, 10, 6), bits(opcode, 5, 1))
	case 24:
		if simplified && rd(opcode) == 0 && ra(opcode) == 0 && uimm(opcode) == 0 {
			return "nop"
		}
		return fmt.Sprintf("ori r%d,r%d,%#x", ra(opcode), rd(opcode), uimm(opcode))
	case 25:
		return fmt.Sprintf("oris r%d,r%d,%#x", ra(opcode), rd(opcode), uimm(opcode))
	case 26:
		return fmt.Sprintf("xori r%d,r%d,%#x", ra(opcode), rd(opcode), uimm(opcode))
	case 27:
		return fmt.Sprintf("xoris r%d,r%d,%#x", ra(opcode), rd(opcode), uimm(opcode))
	case 28:
		return fmt.Sprintf("andi. r%d,r%d,%#x", ra(opcode), rd(opcode), uimm(opcode))
	case 29:
		return fmt.Sprintf("andis. r%d,r%d,%#x", ra(opcode), rd(opcode), uimm(opcode))
	case 31:
		return disasm31(opcode, simplified)
	case 32:
		return loadStore("lwz", opcode)
	case 33:
		return loadStore("lwzu", opcode)
	case 34:
		return loadStore("lbz", opcode)
	case 35:
		return loadStore("lbzu", opcode)
	case 36:
		return loadStore("stw", opcode)
	case 37:
		return loadStore("stwu", opcode)
	case 38:
		return loadStore("stb", opcode)
	case 39:
		return loadStore("stbu", opcode)
	case 40:
		return loadStore("lhz", opcode)
	case 41:
		return loadStore("lhzu", opcode)
	case 42:
		return loadStore("lha", opcode)
	case 43:
		return loadStore("lhau", opcode)
	case 44:
		return loadStore("sth", opcode)
	case 45:
		return loadStore("sthu", opcode)
	case 46:
		return loadStore("lmw", opcode)
	case 47:
		return loadStore("stmw", opcode)
	case 48:
		return loadStore("lfs", opcode)
	case 49:
		return loadStore("lfsu", opcode)
	case 50:
		return loadStore("lfd", opcode)
	case 51:
		return loadStore("lfdu", opcode)
	case 52:
		return loadStore("stfs", opcode)
	case 53:
		return loadStore("stfsu", opcode)
	case 54:
		return loadStore("stfd", opcode)
	case 55:
		return loadStore("stfdu", opcode)
	case 63:
		return disasm63(opcode, f)
	default:
		return fmt.Sprintf(".long %#08x", opcode)
	}
}

func loadStore(mnem string, opcode uint32) string {
	return fmt.Sprintf("%s r%d,%d(r%d)", mnem, rd(opcode), int16(opcode&0xFFFF), ra(opcode))
}

func disasmB(opcode, addr uint32) string {
	li := int32(opcode&0x03FFFFFC) << 6 >> 6
	aa := opcode&2 != 0
	lk := opcode&1 != 0
	target := uint32(li)
	if !aa {
		target += addr
	}
	return fmt.Sprintf("b%s%s %#x", aaSuffix(aa), lkSuffix(lk), target)
}

func aaSuffix(aa bool) string {
	if aa {
		return "a"
	}
	return ""
}
func lkSuffix(lk bool) string {
	if lk {
		return "l"
	}
	return ""
}

// bcMnemonic maps (BO, BI%4) to the simplified conditional branch
// mnemonic per spec.md §4.7's required table (bne/beq/blt/bgt/... with
// cr field suffix when BI selects a field other than cr0).
func bcMnemonic(bo, bi uint32) (mnem string, ok bool) {
	crBit := bi % 4
	switch bo {
	case 12, 15: // branch if true (ctr ignored branch-always variants folded below)
	}
	// BO patterns per the architecture: 0x0C = "branch if CR bit set"
	// (always taken prediction dropped for the simplified form), 0x04 =
	// "branch if CR bit clear".
	switch {
	case bo&0x1E == 0x0C || bo&0x1C == 0x0C:
		ok = true
		switch crBit {
		case 0:
			mnem = "blt"
		case 1:
			mnem = "bgt"
		case 2:
			mnem = "beq"
		case 3:
			mnem = "bso"
		}
	case bo&0x1C == 0x04:
		ok = true
		switch crBit {
		case 0:
			mnem = "bge"
		case 1:
			mnem = "ble"
		case 2:
			mnem = "bne"
		case 3:
			mnem = "bns"
		}
	}
	return mnem, ok
}

func disasmBC(opcode, addr uint32, simplified bool) string {
	bo := bits(opcode, 25, 21)
	bi := bits(opcode, 20, 16)
	bd := int32(int16(opcode&0xFFFC)) << 16 >> 16
	aa := opcode&2 != 0
	lk := opcode&1 != 0
	target := uint32(bd)
	if !aa {
		target += addr
	}
	predict := ""
	if bo&0x10 == 0 {
		if bo&0x8 != 0 {
			predict = "+"
		} else {
			predict = "-"
		}
	}
	if simplified {
		if mnem, ok := bcMnemonic(bo, bi); ok {
			cr := bi / 4
			if cr == 0 {
				return fmt.Sprintf("%s%s%s %#x", mnem, lkSuffix(lk), predict, target)
			}
			return fmt.Sprintf("%s%s%s cr%d,%#x", mnem, lkSuffix(lk), predict, cr, target)
		}
	}
	return fmt.Sprintf("bc%s%s %d,%d,%#x", aaSuffix(aa), lkSuffix(lk), bo, bi, target)
}

func disasm19(opcode uint32, simplified bool) string {
	f := decode(opcode)
	switch f.xo {
	case 16:
		bo := bits(opcode, 25, 21)
		lk := opcode&1 != 0
		if simplified && bo == 20 {
			if lk {
				return "blrl"
			}
			return "blr"
		}
		return fmt.Sprintf("bclr%s %d,%d", lkSuffix(lk), bo, bits(opcode, 20, 16))
	case 150:
		return "isync"
	case 528:
		bo := bits(opcode, 25, 21)
		lk := opcode&1 != 0
		if simplified && bo == 20 {
			if lk {
				return "bctrl"
			}
			return "bctr"
		}
		return fmt.Sprintf("bcctr%s %d,%d", lkSuffix(lk), bo, bits(opcode, 20, 16))
	case 0:
		return fmt.Sprintf("mcrf cr%d,cr%d", rd(opcode)>>2, ra(opcode)>>2)
	default:
		return fmt.Sprintf(".long %#08x", opcode)
	}
}

func disasm31(opcode uint32, simplified bool) string {
	f := decode(opcode)
	switch f.xo {
	case 0:
		return fmt.Sprintf("cmp cr%d,r%d,r%d", rd(opcode)>>2, ra(opcode), rb(opcode))
	case 32:
		return fmt.Sprintf("cmpl cr%d,r%d,r%d", rd(opcode)>>2, ra(opcode), rb(opcode))
	case 266:
		return fmt.Sprintf("add%s%s r%d,r%d,r%d", oeSuffix(f.oe), rcSuffix(f.rc), rd(opcode), ra(opcode), rb(opcode))
	case 40:
		return fmt.Sprintf("subf%s%s r%d,r%d,r%d", oeSuffix(f.oe), rcSuffix(f.rc), rd(opcode), ra(opcode), rb(opcode))
	case 28:
		return fmt.Sprintf("and%s r%d,r%d,r%d", rcSuffix(f.rc), ra(opcode), rd(opcode), rb(opcode))
	case 444:
		if simplified && rd(opcode) == rb(opcode) {
			return fmt.Sprintf("mr%s r%d,r%d", rcSuffix(f.rc), ra(opcode), rd(opcode))
		}
		return fmt.Sprintf("or%s r%d,r%d,r%d", rcSuffix(f.rc), ra(opcode), rd(opcode), rb(opcode))
	case 124:
		return fmt.Sprintf("nor%s r%d,r%d,r%d", rcSuffix(f.rc), ra(opcode), rd(opcode), rb(opcode))
	case 316:
		return fmt.Sprintf("xor%s r%d,r%d,r%d", rcSuffix(f.rc), ra(opcode), rd(opcode), rb(opcode))
	case 24:
		return fmt.Sprintf("slw%s r%d,r%d,r%d", rcSuffix(f.rc), ra(opcode), rd(opcode), rb(opcode))
	case 536:
		return fmt.Sprintf("srw%s r%d,r%d,r%d", rcSuffix(f.rc), ra(opcode), rd(opcode), rb(opcode))
	case 792:
		return fmt.Sprintf("sraw%s r%d,r%d,r%d", rcSuffix(f.rc), ra(opcode), rd(opcode), rb(opcode))
	case 824:
		return fmt.Sprintf("srawi%s r%d,r%d,%d", rcSuffix(f.rc), ra(opcode), rd(opcode), rb(opcode))
	case 20:
		return fmt.Sprintf("lwarx r%d,r%d,r%d", rd(opcode), ra(opcode), rb(opcode))
	case 150:
		return fmt.Sprintf("stwcx. r%d,r%d,r%d", rd(opcode), ra(opcode), rb(opcode))
	case 23:
		return fmt.Sprintf("lwzx r%d,r%d,r%d", rd(opcode), ra(opcode), rb(opcode))
	case 151:
		return fmt.Sprintf("stwx r%d,r%d,r%d", rd(opcode), ra(opcode), rb(opcode))
	case 4:
		return fmt.Sprintf("tw %d,r%d,r%d", rd(opcode), ra(opcode), rb(opcode))
	case 83:
		return fmt.Sprintf("mfmsr r%d", rd(opcode))
	case 146:
		return fmt.Sprintf("mtmsr r%d", rd(opcode))
	case 339:
		return fmt.Sprintf("mfspr r%d,%d", rd(opcode), sprNum(opcode))
	case 467:
		return fmt.Sprintf("mtspr %d,r%d", sprNum(opcode), rd(opcode))
	case 371:
		return fmt.Sprintf("mftb r%d,%d", rd(opcode), sprNum(opcode))
	case 19:
		return "mfcr r" + itoa(rd(opcode))
	case 512:
		return fmt.Sprintf("mcrxr cr%d", rd(opcode)>>2)
	case 1014:
		return fmt.Sprintf("dcbz r%d,r%d", ra(opcode), rb(opcode))
	case 598:
		return "sync"
	case 854:
		return "eieio"
	default:
		return fmt.Sprintf(".long %#08x", opcode)
	}
}

func sprNum(opcode uint32) uint32 {
	spr := bits(opcode, 20, 11)
	return ((spr & 0x1F) << 5) | (spr >> 5)
}

func disasm63(opcode uint32, f field) string {
	switch f.xo {
	case 18:
		return fmt.Sprintf("fdiv%s fr%d,fr%d,fr%d", rcSuffix(f.rc), rd(opcode), ra(opcode), rb(opcode))
	case 20:
		return fmt.Sprintf("fsub%s fr%d,fr%d,fr%d", rcSuffix(f.rc), rd(opcode), ra(opcode), rb(opcode))
	case 21:
		return fmt.Sprintf("fadd%s fr%d,fr%d,fr%d", rcSuffix(f.rc), rd(opcode), ra(opcode), rb(opcode))
	case 25:
		return fmt.Sprintf("fmul%s fr%d,fr%d,fr%d", rcSuffix(f.rc), rd(opcode), ra(opcode), bits(opcode, 10, 6))
	case 12:
		return fmt.Sprintf("frsp%s fr%d,fr%d", rcSuffix(f.rc), rd(opcode), rb(opcode))
	case 14:
		return fmt.Sprintf("fctiw%s fr%d,fr%d", rcSuffix(f.rc), rd(opcode), rb(opcode))
	case 15:
		return fmt.Sprintf("fctiwz%s fr%d,fr%d", rcSuffix(f.rc), rd(opcode), rb(opcode))
	case 40:
		return fmt.Sprintf("fneg%s fr%d,fr%d", rcSuffix(f.rc), rd(opcode), rb(opcode))
	case 72:
		return fmt.Sprintf("fmr%s fr%d,fr%d", rcSuffix(f.rc), rd(opcode), rb(opcode))
	case 136:
		return fmt.Sprintf("fnabs%s fr%d,fr%d", rcSuffix(f.rc), rd(opcode), rb(opcode))
	case 264:
		return fmt.Sprintf("fabs%s fr%d,fr%d", rcSuffix(f.rc), rd(opcode), rb(opcode))
	case 583:
		return fmt.Sprintf("mffs%s fr%d", rcSuffix(f.rc), rd(opcode))
	case 711:
		return fmt.Sprintf("mtfsf%s fr%d", rcSuffix(f.rc), rb(opcode))
	case 0:
		return fmt.Sprintf("fcmpu cr%d,fr%d,fr%d", rd(opcode)>>2, ra(opcode), rb(opcode))
	default:
		return fmt.Sprintf(".long %#08x", opcode)
	}
}

func itoa(v uint32) string { return fmt.Sprintf("%d", v) }
