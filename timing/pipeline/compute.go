package pipeline

import (
	"github.com/sarchlab/rvsim64/emu"
	"github.com/sarchlab/rvsim64/insts"
)

// computeArith evaluates every FormatR/FormatI/FormatR4/FormatU instruction
// that produces a register result with no memory or control-flow side
// effect, dispatching to the same emu.ALU/MulDiv/FPU functional units
// emu.Emulator.executeR/executeFPArith/executeR4/executeI/executeU use, so
// the timing and functional models can never compute different answers for
// the same inputs.
func (p *Pipeline) computeArith(inst *insts.Instruction, pc, rv1, rv2, rv3 uint64) uint64 {
	switch inst.Format {
	case insts.FormatR:
		return p.computeR(inst, rv1, rv2)
	case insts.FormatR4:
		return p.computeR4(inst, rv1, rv2, rv3)
	case insts.FormatU:
		switch inst.Op {
		case insts.OpLui:
			return uint64(inst.Imm)
		case insts.OpAuipc:
			return uint64(int64(pc) + inst.Imm)
		}
	case insts.FormatI:
		return p.computeI(inst, rv1)
	case insts.FormatJ:
		return pc + uint64(inst.Size)
	}
	return 0
}

func (p *Pipeline) computeR(inst *insts.Instruction, op1, op2 uint64) uint64 {
	switch inst.Op {
	case insts.OpAdd:
		return p.alu.Compute(emu.OpKindAdd, op1, op2)
	case insts.OpSub:
		return p.alu.Compute(emu.OpKindSub, op1, op2)
	case insts.OpSll:
		return p.alu.Compute(emu.OpKindSll, op1, op2)
	case insts.OpSlt:
		return p.alu.Compute(emu.OpKindSlt, op1, op2)
	case insts.OpSltu:
		return p.alu.Compute(emu.OpKindSltu, op1, op2)
	case insts.OpXor:
		return p.alu.Compute(emu.OpKindXor, op1, op2)
	case insts.OpSrl:
		return p.alu.Compute(emu.OpKindSrl, op1, op2)
	case insts.OpSra:
		return p.alu.Compute(emu.OpKindSra, op1, op2)
	case insts.OpOr:
		return p.alu.Compute(emu.OpKindOr, op1, op2)
	case insts.OpAnd:
		return p.alu.Compute(emu.OpKindAnd, op1, op2)
	case insts.OpAddw:
		return p.alu.Compute(emu.OpKindAddw, op1, op2)
	case insts.OpSubw:
		return p.alu.Compute(emu.OpKindSubw, op1, op2)
	case insts.OpSllw:
		return p.alu.Compute(emu.OpKindSllw, op1, op2)
	case insts.OpSrlw:
		return p.alu.Compute(emu.OpKindSrlw, op1, op2)
	case insts.OpSraw:
		return p.alu.Compute(emu.OpKindSraw, op1, op2)
	case insts.OpMul:
		return p.muldiv.Mul(op1, op2)
	case insts.OpMulh:
		return p.muldiv.Mulh(op1, op2)
	case insts.OpMulhsu:
		return p.muldiv.Mulhsu(op1, op2)
	case insts.OpMulhu:
		return p.muldiv.Mulhu(op1, op2)
	case insts.OpDiv:
		return p.muldiv.Div(op1, op2)
	case insts.OpDivu:
		return p.muldiv.Divu(op1, op2)
	case insts.OpRem:
		return p.muldiv.Rem(op1, op2)
	case insts.OpRemu:
		return p.muldiv.Remu(op1, op2)
	case insts.OpMulw:
		return p.muldiv.Mulw(op1, op2)
	case insts.OpDivw:
		return p.muldiv.Divw(op1, op2)
	case insts.OpDivuw:
		return p.muldiv.Divuw(op1, op2)
	case insts.OpRemw:
		return p.muldiv.Remw(op1, op2)
	case insts.OpRemuw:
		return p.muldiv.Remuw(op1, op2)
	}
	return p.computeFPArith(inst, op1, op2)
}

// computeFPArith mirrors emu.Emulator.executeFPArith. op1/op2 already carry
// the raw bit pattern of the appropriate width (single in the low 32 bits,
// or the full double) as resolved by Rename from the FP register file.
func (p *Pipeline) computeFPArith(inst *insts.Instruction, op1, op2 uint64) uint64 {
	a32, b32 := uint32(op1), uint32(op2)

	switch inst.Op {
	case insts.OpFaddS:
		return uint64(p.fpu.AddS(a32, b32))
	case insts.OpFsubS:
		return uint64(p.fpu.SubS(a32, b32))
	case insts.OpFmulS:
		return uint64(p.fpu.MulS(a32, b32))
	case insts.OpFdivS:
		return uint64(p.fpu.DivS(a32, b32))
	case insts.OpFsqrtS:
		return uint64(p.fpu.SqrtS(a32))
	case insts.OpFminS:
		return uint64(p.fpu.MinS(a32, b32))
	case insts.OpFmaxS:
		return uint64(p.fpu.MaxS(a32, b32))
	case insts.OpFsgnjS:
		return uint64(p.fpu.SgnjS(a32, b32))
	case insts.OpFsgnjnS:
		return uint64(p.fpu.SgnjnS(a32, b32))
	case insts.OpFsgnjxS:
		return uint64(p.fpu.SgnjxS(a32, b32))
	case insts.OpFeqS:
		return boolToU64(p.fpu.EqS(a32, b32))
	case insts.OpFltS:
		return boolToU64(p.fpu.LtS(a32, b32))
	case insts.OpFleS:
		return boolToU64(p.fpu.LeS(a32, b32))
	case insts.OpFclassS:
		return p.fpu.ClassS(a32)
	case insts.OpFcvtWS:
		return p.fpu.CvtWS(a32)
	case insts.OpFcvtWuS:
		return p.fpu.CvtWuS(a32)
	case insts.OpFcvtLS:
		return p.fpu.CvtLS(a32)
	case insts.OpFcvtLuS:
		return p.fpu.CvtLuS(a32)
	case insts.OpFcvtSW:
		return uint64(p.fpu.CvtSW(op1))
	case insts.OpFcvtSWu:
		return uint64(p.fpu.CvtSWu(op1))
	case insts.OpFcvtSL:
		return uint64(p.fpu.CvtSL(op1))
	case insts.OpFcvtSLu:
		return uint64(p.fpu.CvtSLu(op1))
	case insts.OpFmvXW:
		return uint64(int64(int32(a32)))
	case insts.OpFmvWX:
		return uint64(uint32(op1))
	case insts.OpFcvtDS:
		return p.fpu.CvtDS(a32)

	case insts.OpFaddD:
		return p.fpu.AddD(op1, op2)
	case insts.OpFsubD:
		return p.fpu.SubD(op1, op2)
	case insts.OpFmulD:
		return p.fpu.MulD(op1, op2)
	case insts.OpFdivD:
		return p.fpu.DivD(op1, op2)
	case insts.OpFsqrtD:
		return p.fpu.SqrtD(op1)
	case insts.OpFminD:
		return p.fpu.MinD(op1, op2)
	case insts.OpFmaxD:
		return p.fpu.MaxD(op1, op2)
	case insts.OpFsgnjD:
		return p.fpu.SgnjD(op1, op2)
	case insts.OpFsgnjnD:
		return p.fpu.SgnjnD(op1, op2)
	case insts.OpFsgnjxD:
		return p.fpu.SgnjxD(op1, op2)
	case insts.OpFeqD:
		return boolToU64(p.fpu.EqD(op1, op2))
	case insts.OpFltD:
		return boolToU64(p.fpu.LtD(op1, op2))
	case insts.OpFleD:
		return boolToU64(p.fpu.LeD(op1, op2))
	case insts.OpFclassD:
		return p.fpu.ClassD(op1)
	case insts.OpFcvtWD:
		return p.fpu.CvtWD(op1)
	case insts.OpFcvtWuD:
		return p.fpu.CvtWuD(op1)
	case insts.OpFcvtLD:
		return p.fpu.CvtLD(op1)
	case insts.OpFcvtLuD:
		return p.fpu.CvtLuD(op1)
	case insts.OpFcvtDW:
		return p.fpu.CvtDW(op1)
	case insts.OpFcvtDWu:
		return p.fpu.CvtDWu(op1)
	case insts.OpFcvtDL:
		return p.fpu.CvtDL(op1)
	case insts.OpFcvtDLu:
		return p.fpu.CvtDLu(op1)
	case insts.OpFmvXD:
		return op1
	case insts.OpFmvDX:
		return op1
	case insts.OpFcvtSD:
		return uint64(p.fpu.CvtSD(op1))
	}
	return 0
}

func (p *Pipeline) computeR4(inst *insts.Instruction, op1, op2, op3 uint64) uint64 {
	switch inst.Op {
	case insts.OpFmaddS, insts.OpFmsubS, insts.OpFnmaddS, insts.OpFnmsubS:
		a, b, c := uint32(op1), uint32(op2), uint32(op3)
		switch inst.Op {
		case insts.OpFmaddS:
			return uint64(p.fpu.MaddS(a, b, c))
		case insts.OpFmsubS:
			return uint64(p.fpu.MsubS(a, b, c))
		case insts.OpFnmaddS:
			return uint64(p.fpu.NmaddS(a, b, c))
		default:
			return uint64(p.fpu.NmsubS(a, b, c))
		}
	default:
		switch inst.Op {
		case insts.OpFmaddD:
			return p.fpu.MaddD(op1, op2, op3)
		case insts.OpFmsubD:
			return p.fpu.MsubD(op1, op2, op3)
		case insts.OpFnmaddD:
			return p.fpu.NmaddD(op1, op2, op3)
		case insts.OpFnmsubD:
			return p.fpu.NmsubD(op1, op2, op3)
		}
	}
	return 0
}

// computeI evaluates the arithmetic subset of FormatI (loads and JALR are
// handled separately by the Memory and Execute stages respectively).
func (p *Pipeline) computeI(inst *insts.Instruction, op1 uint64) uint64 {
	imm := uint64(inst.Imm)
	switch inst.Op {
	case insts.OpAddi:
		return p.alu.Compute(emu.OpKindAdd, op1, imm)
	case insts.OpSlti:
		return p.alu.Compute(emu.OpKindSlt, op1, imm)
	case insts.OpSltiu:
		return p.alu.Compute(emu.OpKindSltu, op1, imm)
	case insts.OpXori:
		return p.alu.Compute(emu.OpKindXor, op1, imm)
	case insts.OpOri:
		return p.alu.Compute(emu.OpKindOr, op1, imm)
	case insts.OpAndi:
		return p.alu.Compute(emu.OpKindAnd, op1, imm)
	case insts.OpSlli:
		return p.alu.Compute(emu.OpKindSll, op1, imm)
	case insts.OpSrli:
		return p.alu.Compute(emu.OpKindSrl, op1, imm)
	case insts.OpSrai:
		return p.alu.Compute(emu.OpKindSra, op1, imm)
	case insts.OpAddiw:
		return p.alu.Compute(emu.OpKindAddw, op1, imm)
	case insts.OpSlliw:
		return p.alu.Compute(emu.OpKindSllw, op1, imm)
	case insts.OpSrliw:
		return p.alu.Compute(emu.OpKindSrlw, op1, imm)
	case insts.OpSraiw:
		return p.alu.Compute(emu.OpKindSraw, op1, imm)
	}
	return 0
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// amoKindFor mirrors emu.amoKindFor's opcode-to-AmoKind mapping for the
// read-modify-write AMOs (excluding LR/SC, which the Memory stage handles
// directly via the LoadStoreUnit's LrW/LrD/ScW/ScD).
func amoKindFor(op insts.Op) (kind emu.AmoKind, is64, ok bool) {
	switch op {
	case insts.OpAmoswapW:
		return emu.AmoSwap, false, true
	case insts.OpAmoaddW:
		return emu.AmoAdd, false, true
	case insts.OpAmoxorW:
		return emu.AmoXor, false, true
	case insts.OpAmoandW:
		return emu.AmoAnd, false, true
	case insts.OpAmoorW:
		return emu.AmoOr, false, true
	case insts.OpAmominW:
		return emu.AmoMin, false, true
	case insts.OpAmomaxW:
		return emu.AmoMax, false, true
	case insts.OpAmominuW:
		return emu.AmoMinu, false, true
	case insts.OpAmomaxuW:
		return emu.AmoMaxu, false, true
	case insts.OpAmoswapD:
		return emu.AmoSwap, true, true
	case insts.OpAmoaddD:
		return emu.AmoAdd, true, true
	case insts.OpAmoxorD:
		return emu.AmoXor, true, true
	case insts.OpAmoandD:
		return emu.AmoAnd, true, true
	case insts.OpAmoorD:
		return emu.AmoOr, true, true
	case insts.OpAmominD:
		return emu.AmoMin, true, true
	case insts.OpAmomaxD:
		return emu.AmoMax, true, true
	case insts.OpAmominuD:
		return emu.AmoMinu, true, true
	case insts.OpAmomaxuD:
		return emu.AmoMaxu, true, true
	}
	return 0, false, false
}
