package pipeline

import (
	"github.com/sarchlab/rvsim64/insts"
	"github.com/sarchlab/rvsim64/timing/rob"
)

// ControlSignals is the decode-time bundle carried through every later
// latch, generalizing the teacher's per-instruction control-signal record
// from ARM64's flag-based dispatch to RV64's format-based one.
type ControlSignals struct {
	RegWrite   bool
	FPRegWrite bool
	MemRead    bool
	MemWrite   bool
	MemWidth   rob.MemWidth
	MemSigned  bool
	IsBranch   bool
	IsJump     bool
	IsAMO      bool
	IsCSR      bool
	IsSystem   bool
}

// decodeSignals mirrors emu.Emulator.execute's format dispatch so the
// timing model classifies exactly the instructions the functional model
// executes, rather than carrying an independently maintained table that
// could drift from it.
func decodeSignals(inst *insts.Instruction) ControlSignals {
	var cs ControlSignals

	switch inst.Format {
	case insts.FormatB:
		cs.IsBranch = true
	case insts.FormatJ:
		cs.IsJump = true
		cs.RegWrite = true
	case insts.FormatU:
		cs.RegWrite = true
	case insts.FormatAMO:
		cs.IsAMO = true
		cs.RegWrite = true
	case insts.FormatCSR:
		cs.IsCSR = true
		cs.RegWrite = true
	case insts.FormatSystem:
		cs.IsSystem = true
		if inst.Op == insts.OpJalr {
			cs.IsJump = true
			cs.RegWrite = true
		}
	case insts.FormatI:
		cs.RegWrite = true
		if inst.Op == insts.OpJalr {
			cs.IsJump = true
		}
		if w, signed, isLoad := memWidthOf(inst.Op); isLoad {
			cs.MemRead = true
			cs.MemWidth = w
			cs.MemSigned = signed
			cs.FPRegWrite = inst.Op == insts.OpFlw || inst.Op == insts.OpFld
		}
	case insts.FormatS:
		if w, _, _ := memWidthOf(inst.Op); true {
			cs.MemWrite = true
			cs.MemWidth = w
		}
	case insts.FormatR, insts.FormatR4:
		cs.RegWrite = true
		cs.FPRegWrite = isFPDest(inst.Op)
	}

	return cs
}

// memWidthOf reports the access width and sign-extension behavior of a
// load/store opcode. isLoad distinguishes OpJalr (FormatI, no memory
// access) from the genuine loads FormatI also encodes.
func memWidthOf(op insts.Op) (width rob.MemWidth, signed bool, isLoad bool) {
	switch op {
	case insts.OpLb:
		return rob.WidthByte, true, true
	case insts.OpLbu:
		return rob.WidthByte, false, true
	case insts.OpLh:
		return rob.WidthHalf, true, true
	case insts.OpLhu:
		return rob.WidthHalf, false, true
	case insts.OpLw, insts.OpFlw:
		return rob.WidthWord, op == insts.OpLw, true
	case insts.OpLwu:
		return rob.WidthWord, false, true
	case insts.OpLd, insts.OpFld:
		return rob.WidthDouble, false, true
	case insts.OpSb:
		return rob.WidthByte, false, false
	case insts.OpSh:
		return rob.WidthHalf, false, false
	case insts.OpSw, insts.OpFsw:
		return rob.WidthWord, false, false
	case insts.OpSd, insts.OpFsd:
		return rob.WidthDouble, false, false
	}
	return rob.WidthNop, false, false
}

// isFPDest reports whether a FormatR/FormatR4 instruction's destination is
// a floating-point register, mirroring emu.Emulator.executeFPArith and
// executeR4's split between the integer OP opcode space and the OP-FP /
// FMADD-family opcodes that share the same encoding format.
func isFPDest(op insts.Op) bool {
	switch op {
	case insts.OpFaddS, insts.OpFsubS, insts.OpFmulS, insts.OpFdivS, insts.OpFsqrtS,
		insts.OpFminS, insts.OpFmaxS, insts.OpFsgnjS, insts.OpFsgnjnS, insts.OpFsgnjxS,
		insts.OpFcvtSW, insts.OpFcvtSWu, insts.OpFcvtSL, insts.OpFcvtSLu, insts.OpFmvWX,
		insts.OpFcvtDS,
		insts.OpFaddD, insts.OpFsubD, insts.OpFmulD, insts.OpFdivD, insts.OpFsqrtD,
		insts.OpFminD, insts.OpFmaxD, insts.OpFsgnjD, insts.OpFsgnjnD, insts.OpFsgnjxD,
		insts.OpFcvtDW, insts.OpFcvtDWu, insts.OpFcvtDL, insts.OpFcvtDLu, insts.OpFmvDX,
		insts.OpFcvtSD,
		insts.OpFmaddS, insts.OpFmsubS, insts.OpFnmaddS, insts.OpFnmsubS,
		insts.OpFmaddD, insts.OpFmsubD, insts.OpFnmaddD, insts.OpFnmsubD:
		return true
	}
	return false
}

// isMulDiv reports whether op belongs to the RV64M extension. No code in
// this package calls it; the latency table classifies ops on its own.
func isMulDiv(op insts.Op) bool {
	switch op {
	case insts.OpMul, insts.OpMulh, insts.OpMulhsu, insts.OpMulhu,
		insts.OpDiv, insts.OpDivu, insts.OpRem, insts.OpRemu,
		insts.OpMulw, insts.OpDivw, insts.OpDivuw, insts.OpRemw, insts.OpRemuw:
		return true
	}
	return false
}

// memWidthBytes reports the byte count of a MemWidth, duplicating
// rob.MemWidth's unexported bytes() method for this package's data cache
// accesses (dataCacheLatency and drainStore).
func memWidthBytes(w rob.MemWidth) int {
	switch w {
	case rob.WidthByte:
		return 1
	case rob.WidthHalf:
		return 2
	case rob.WidthWord:
		return 4
	case rob.WidthDouble:
		return 8
	}
	return 0
}

// isFPArith reports whether op is a floating-point arithmetic instruction
// (as opposed to a plain load/store/move). No code in this package calls
// it; the latency table classifies ops on its own.
func isFPArith(op insts.Op) bool {
	return isFPDest(op) && op != insts.OpFmvWX && op != insts.OpFmvDX
}
