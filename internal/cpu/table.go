package cpu

import "github.com/oldmac/ppc32/internal/dispatch"

// createStandardTable builds the Op[64x2048] table for every 32-bit
// PowerPC core except the 601 (spec.md §4.4). Registration mirrors the
// teacher's own createTable()-builds-once-at-init pattern in
// emu/cpu/cpu.go, widened from a flat OP(code, handler) call to the
// OP/OPX/OPXRc triad spec.md §4.4 calls for.
func createStandardTable() *dispatch.Table {
	t := dispatch.NewTable()
	installCommon(t)
	return t
}

// create601Table builds the table used for a 601 PVR. It is the standard
// table unchanged: no opcode is added or removed for the 601, and the
// POWER-only encodings get the same illegal-op fault as any unused slot,
// with no separate tag.
func create601Table() *dispatch.Table {
	// The 601 shares every PowerPC-architected opcode with the rest of the
	// family; its only difference is a handful of POWER-only forms in
	// unused dispatch slots, which already point at illegalHandler. A
	// guest that executes one of those POWER-only encodings gets the
	// ordinary illegal-op fault rather than the distinct POWER-op
	// semantics real 601 silicon would provide.
	return createStandardTable()
}

func installCommon(t *dispatch.Table) {
	// Primary-opcode-only instructions (no extended opcode field).
	t.OP(2, opTwi)
	t.OP(3, opTwi)
	t.OP(7, opMulli)
	t.OP(8, opSubfic)
	t.OP(10, opCmpli)
	t.OP(11, opCmpi)
	t.OP(12, opAddic)
	t.OP(13, opAddicDot)
	t.OP(14, opAddi)
	t.OP(15, opAddis)
	t.OP(16, opBc)
	t.OP(17, opSc)
	t.OP(18, opB)
	t.OP(20, opRlwimi)
	t.OP(21, opRlwinm)
	t.OP(23, opRlwnm)
	t.OP(24, opOri)
	t.OP(25, opOris)
	t.OP(26, opXori)
	t.OP(27, opXoris)
	t.OP(28, opAndiDot)
	t.OP(29, opAndisDot)

	t.OP(32, opLwz)
	t.OP(33, opLwzu)
	t.OP(34, opLbz)
	t.OP(35, opLbzu)
	t.OP(36, opStw)
	t.OP(37, opStwu)
	t.OP(38, opStb)
	t.OP(39, opStbu)
	t.OP(40, opLhz)
	t.OP(41, opLhzu)
	t.OP(42, opLha)
	t.OP(43, opLhau)
	t.OP(44, opSth)
	t.OP(45, opSthu)
	t.OP(46, opLmw)
	t.OP(47, opStmw)

	t.OP(48, opLfs)
	t.OP(49, opLfsu)
	t.OP(50, opLfd)
	t.OP(51, opLfdu)
	t.OP(52, opStfs)
	t.OP(53, opStfsu)
	t.OP(54, opStfd)
	t.OP(55, opStfdu)

	// Opcode 19: branch-conditional-to-LR/CTR and a handful of CR/sync ops.
	t.OPX(19, 0, opMcrf)
	t.OPX(19, 16, opBclr)
	t.OPX(19, 50, opRfi)
	t.OPX(19, 150, opIsync)
	t.OPX(19, 528, opBcctr)

	// Opcode 31: the extended arithmetic/logical/compare/memory space.
	t.OP31(0, opCmp)
	t.OP31(32, opCmpl)
	t.OP31(4, opTw)
	t.OP31(8, opSubfc)
	t.OP31(10, opAddc)
	t.OP31(11, opMulhwu)
	t.OP31(19, opMfcr)
	t.OP31(20, opLwarx)
	t.OP31(23, opLwzx)
	t.OP31(24, opSlw)
	t.OP31(26, opCntlzw)
	t.OP31(28, opAnd)
	t.OP31(40, opSubf)
	t.OP31(54, opDcbst)
	t.OP31(60, opAndc)
	t.OP31(75, opMulhw)
	t.OP31(83, opMfmsr)
	t.OP31(86, opDcbf)
	t.OP31(104, opNeg)
	t.OP31(124, opNor)
	t.OP31(136, opAdde)
	t.OP31(138, opAdde)
	t.OP31(144, opMtcrf)
	t.OP31(146, opMtmsr)
	t.OP31(150, opStwcxDot)
	t.OP31(151, opStwx)
	t.OP31(210, opMtsr)
	t.OP31(235, opMullw)
	t.OP31(246, opDcbtst)
	t.OP31(266, opAdd)
	t.OP31(278, opDcbt)
	t.OP31(284, opEqv)
	t.OP31(316, opXor)
	t.OP31(339, opMfspr)
	t.OP31(371, opMftb)
	t.OP31(412, opOrc)
	t.OP31(444, opOr)
	t.OP31(459, opDivwu)
	t.OP31(467, opMtspr)
	t.OP31(476, opNand)
	t.OP31(491, opDivw)
	t.OP31(512, opMcrxr)
	t.OP31(536, opSrw)
	t.OP31(595, opMfsr)
	t.OP31(598, opSync)
	t.OP31(792, opSraw)
	t.OP31(824, opSrawi)
	t.OP31(854, opEieio)
	t.OP31(922, opExtsh)
	t.OP31(954, opExtsb)
	t.OP31(982, opIcbi)
	t.OP31(1014, opDcbz)

	// Opcode 63: double-precision FPU.
	t.OPX(63, 0, opFcmpu)
	t.OPX(63, 12, opFrsp)
	t.OPX(63, 14, opFctiw)
	t.OPX(63, 15, opFctiwz)
	t.OPX(63, 18, opFdiv)
	t.OPX(63, 20, opFsub)
	t.OPX(63, 21, opFadd)
	// fmul is an A-form instruction: its 5-bit extended opcode (25) lives
	// in bits 26-30, with FRC occupying bits 6-10 — which this table's
	// ext key also folds in (ext = opcode bits 1-10). Register every FRC
	// value so the FRC-independent handler dispatches regardless of
	// which register the compiler picked for it.
	for frc := uint16(0); frc < 32; frc++ {
		t.OPX(63, (frc<<5)|25, opFmul)
	}
	t.OPX(63, 40, opFneg)
	t.OPX(63, 72, opFmr)
	t.OPX(63, 136, opFnabs)
	t.OPX(63, 264, opFabs)
	t.OPX(63, 583, opMffs)
	t.OPX(63, 711, opMtfsf)
}
