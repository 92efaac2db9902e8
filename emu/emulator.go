// Package emu provides functional RV64IMAFDC emulation: architectural state
// and instruction-level semantics, independent of pipeline timing.
package emu

import (
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/rvsim64/insts"
	"github.com/sarchlab/rvsim64/mmu"
)

// StepResult describes the effect of a single Step call.
type StepResult struct {
	Inst     *insts.Instruction
	PCBefore uint64
	PCAfter  uint64
	Trapped  bool
	Trap     Trap
	Exited   bool
	ExitCode int64
}

// Emulator provides a purely functional (non-timing) RV64IMAFDC core: it
// executes one instruction per Step with no pipeline effects. It is used
// both as a standalone interpreter mode and as the timing model's golden
// reference in tests.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	csr     *CSRFile

	alu     *ALU
	muldiv  *MulDiv
	fpu     *FPU
	branch  *BranchUnit
	lsu     *LoadStoreUnit
	traps   *TrapController
	decoder *insts.Decoder
	mmu     *mmu.MMU

	syscallHandler SyscallHandler
	stdout         io.Writer
	stderr         io.Writer

	exited   bool
	exitCode int64
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) { e.stdout = w }
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) EmulatorOption {
	return func(e *Emulator) { e.stderr = w }
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler SyscallHandler) EmulatorOption {
	return func(e *Emulator) { e.syscallHandler = handler }
}

// WithMemory attaches a pre-populated memory to the emulator.
func WithMemory(mem *Memory) EmulatorOption {
	return func(e *Emulator) { e.memory = mem }
}

// WithEntryPoint sets the initial PC.
func WithEntryPoint(pc uint64) EmulatorOption {
	return func(e *Emulator) { e.regFile.PC = pc }
}

// NewEmulator creates a fully wired Emulator, applying the given options
// after default construction.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	regFile := &RegFile{}
	csr := NewCSRFile()

	e := &Emulator{
		regFile: regFile,
		csr:     csr,
		alu:     NewALU(regFile),
		muldiv:  NewMulDiv(),
		fpu:     NewFPU(regFile),
		branch:  NewBranchUnit(regFile),
		traps:   NewTrapController(regFile, csr),
		decoder: insts.NewDecoder(),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.memory == nil {
		e.memory = NewMemory(0x80000000, 64<<20)
	}
	e.lsu = NewLoadStoreUnit(regFile, e.memory)
	e.mmu = mmu.NewMMU(e.memory)
	if e.syscallHandler == nil {
		e.syscallHandler = NewDefaultSyscallHandler(regFile, e.memory, e.stdout, e.stderr)
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile { return e.regFile }

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory { return e.memory }

// CSR returns the emulator's CSR file.
func (e *Emulator) CSR() *CSRFile { return e.csr }

// MMU returns the emulator's address translation unit.
func (e *Emulator) MMU() *mmu.MMU { return e.mmu }

// Exited reports whether the program has terminated.
func (e *Emulator) Exited() bool { return e.exited }

// ExitCode returns the program's exit status, valid once Exited is true.
func (e *Emulator) ExitCode() int64 { return e.exitCode }

// LoadProgram copies a flat binary image into memory starting at addr and
// sets the entry point.
func (e *Emulator) LoadProgram(addr uint64, data []byte) {
	e.memory.LoadProgram(addr, data)
	e.regFile.PC = addr
}

// translate resolves a virtual address through the MMU, returning the
// physical address or a page-fault trap tagged for the given access kind.
func (e *Emulator) translate(vAddr uint64, kind mmu.AccessKind) (uint64, *Trap) {
	pAddr, ok := e.mmu.Translate(e.csr.Read(CsrSatp), vAddr, kind)
	if ok {
		return pAddr, nil
	}
	cause := TrapLoadPageFault
	switch kind {
	case mmu.AccessFetch:
		cause = TrapInstPageFault
	case mmu.AccessStore:
		cause = TrapStorePageFault
	}
	return 0, &Trap{Cause: cause, Tval: vAddr}
}

// Step fetches, decodes, and executes a single instruction.
func (e *Emulator) Step() StepResult {
	pc := e.regFile.PC
	result := StepResult{PCBefore: pc}

	pAddr, trap := e.translate(pc, mmu.AccessFetch)
	if trap != nil {
		e.regFile.PC = e.traps.Enter(*trap)
		result.Trapped, result.Trap = true, *trap
		result.PCAfter = e.regFile.PC
		return result
	}

	low := e.memory.Read16(pAddr)
	var inst *insts.Instruction
	if low&0x3 != 0x3 {
		inst = e.decoder.Decode16(low)
	} else {
		hiAddr, trap := e.translate(pc+2, mmu.AccessFetch)
		if trap != nil {
			e.regFile.PC = e.traps.Enter(*trap)
			result.Trapped, result.Trap = true, *trap
			result.PCAfter = e.regFile.PC
			return result
		}
		word := uint32(low) | uint32(e.memory.Read16(hiAddr))<<16
		inst = e.decoder.Decode32(word)
	}
	result.Inst = inst

	if inst.Op == insts.OpIllegal {
		t := Trap{Cause: TrapIllegalInst, Tval: uint64(inst.Raw)}
		e.regFile.PC = e.traps.Enter(t)
		result.Trapped, result.Trap = true, t
		result.PCAfter = e.regFile.PC
		return result
	}

	e.regFile.PC = pc + uint64(inst.Size)

	if trap, exited := e.execute(inst, pc); trap != nil {
		e.regFile.PC = e.traps.Enter(*trap)
		result.Trapped, result.Trap = true, *trap
	} else if exited {
		result.Exited = true
		result.ExitCode = e.exitCode
	}

	result.PCAfter = e.regFile.PC
	return result
}

// Run steps the emulator until it exits or maxSteps is reached (0 means
// unbounded), returning an error if the step limit was hit first.
func (e *Emulator) Run(maxSteps uint64) (StepResult, error) {
	var last StepResult
	for i := uint64(0); maxSteps == 0 || i < maxSteps; i++ {
		last = e.Step()
		if last.Exited {
			return last, nil
		}
	}
	return last, fmt.Errorf("step limit %d reached without program exit", maxSteps)
}

// execute dispatches a decoded instruction to the appropriate functional
// unit. It returns a non-nil trap if the instruction faults, or sets
// exited=true on a terminating ECALL.
func (e *Emulator) execute(inst *insts.Instruction, pc uint64) (trap *Trap, exited bool) {
	r := e.regFile

	switch inst.Format {
	case insts.FormatR:
		e.executeR(inst)
	case insts.FormatI:
		if t := e.executeI(inst, pc); t != nil {
			return t, false
		}
	case insts.FormatS:
		if t := e.executeS(inst); t != nil {
			return t, false
		}
	case insts.FormatB:
		e.executeB(inst, pc)
	case insts.FormatU:
		e.executeU(inst, pc)
	case insts.FormatJ:
		r.PC = e.branch.Jal(inst.Rd, pc, inst.Imm, inst.Size)
	case insts.FormatR4:
		e.executeR4(inst)
	case insts.FormatAMO:
		if t := e.executeAMO(inst); t != nil {
			return t, false
		}
	case insts.FormatCSR:
		e.executeCSR(inst)
	case insts.FormatSystem:
		return e.executeSystem(inst)
	}
	return nil, false
}

func (e *Emulator) executeR(inst *insts.Instruction) {
	r := e.regFile
	op1, op2 := r.ReadReg(inst.Rs1), r.ReadReg(inst.Rs2)

	switch inst.Op {
	case insts.OpAdd:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindAdd, op1, op2))
	case insts.OpSub:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSub, op1, op2))
	case insts.OpSll:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSll, op1, op2))
	case insts.OpSlt:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSlt, op1, op2))
	case insts.OpSltu:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSltu, op1, op2))
	case insts.OpXor:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindXor, op1, op2))
	case insts.OpSrl:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSrl, op1, op2))
	case insts.OpSra:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSra, op1, op2))
	case insts.OpOr:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindOr, op1, op2))
	case insts.OpAnd:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindAnd, op1, op2))
	case insts.OpAddw:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindAddw, op1, op2))
	case insts.OpSubw:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSubw, op1, op2))
	case insts.OpSllw:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSllw, op1, op2))
	case insts.OpSrlw:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSrlw, op1, op2))
	case insts.OpSraw:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSraw, op1, op2))
	case insts.OpMul:
		r.WriteReg(inst.Rd, e.muldiv.Mul(op1, op2))
	case insts.OpMulh:
		r.WriteReg(inst.Rd, e.muldiv.Mulh(op1, op2))
	case insts.OpMulhsu:
		r.WriteReg(inst.Rd, e.muldiv.Mulhsu(op1, op2))
	case insts.OpMulhu:
		r.WriteReg(inst.Rd, e.muldiv.Mulhu(op1, op2))
	case insts.OpDiv:
		r.WriteReg(inst.Rd, e.muldiv.Div(op1, op2))
	case insts.OpDivu:
		r.WriteReg(inst.Rd, e.muldiv.Divu(op1, op2))
	case insts.OpRem:
		r.WriteReg(inst.Rd, e.muldiv.Rem(op1, op2))
	case insts.OpRemu:
		r.WriteReg(inst.Rd, e.muldiv.Remu(op1, op2))
	case insts.OpMulw:
		r.WriteReg(inst.Rd, e.muldiv.Mulw(op1, op2))
	case insts.OpDivw:
		r.WriteReg(inst.Rd, e.muldiv.Divw(op1, op2))
	case insts.OpDivuw:
		r.WriteReg(inst.Rd, e.muldiv.Divuw(op1, op2))
	case insts.OpRemw:
		r.WriteReg(inst.Rd, e.muldiv.Remw(op1, op2))
	case insts.OpRemuw:
		r.WriteReg(inst.Rd, e.muldiv.Remuw(op1, op2))
	default:
		e.executeFPArith(inst)
	}
}

// executeFPArith handles the OP-FP major opcode (arithmetic, conversion,
// comparison, classification), which shares FormatR with the integer RR
// instructions above.
func (e *Emulator) executeFPArith(inst *insts.Instruction) {
	r := e.regFile
	a32, b32 := r.ReadFRegSingle(inst.Rs1), r.ReadFRegSingle(inst.Rs2)
	aD, bD := r.ReadFReg(inst.Rs1), r.ReadFReg(inst.Rs2)

	switch inst.Op {
	case insts.OpFaddS:
		r.WriteFRegSingle(inst.Rd, e.fpu.AddS(a32, b32))
	case insts.OpFsubS:
		r.WriteFRegSingle(inst.Rd, e.fpu.SubS(a32, b32))
	case insts.OpFmulS:
		r.WriteFRegSingle(inst.Rd, e.fpu.MulS(a32, b32))
	case insts.OpFdivS:
		r.WriteFRegSingle(inst.Rd, e.fpu.DivS(a32, b32))
	case insts.OpFsqrtS:
		r.WriteFRegSingle(inst.Rd, e.fpu.SqrtS(a32))
	case insts.OpFminS:
		r.WriteFRegSingle(inst.Rd, e.fpu.MinS(a32, b32))
	case insts.OpFmaxS:
		r.WriteFRegSingle(inst.Rd, e.fpu.MaxS(a32, b32))
	case insts.OpFsgnjS:
		r.WriteFRegSingle(inst.Rd, e.fpu.SgnjS(a32, b32))
	case insts.OpFsgnjnS:
		r.WriteFRegSingle(inst.Rd, e.fpu.SgnjnS(a32, b32))
	case insts.OpFsgnjxS:
		r.WriteFRegSingle(inst.Rd, e.fpu.SgnjxS(a32, b32))
	case insts.OpFeqS:
		r.WriteReg(inst.Rd, boolToU64(e.fpu.EqS(a32, b32)))
	case insts.OpFltS:
		r.WriteReg(inst.Rd, boolToU64(e.fpu.LtS(a32, b32)))
	case insts.OpFleS:
		r.WriteReg(inst.Rd, boolToU64(e.fpu.LeS(a32, b32)))
	case insts.OpFclassS:
		r.WriteReg(inst.Rd, e.fpu.ClassS(a32))
	case insts.OpFcvtWS:
		r.WriteReg(inst.Rd, e.fpu.CvtWS(a32))
	case insts.OpFcvtWuS:
		r.WriteReg(inst.Rd, e.fpu.CvtWuS(a32))
	case insts.OpFcvtLS:
		r.WriteReg(inst.Rd, e.fpu.CvtLS(a32))
	case insts.OpFcvtLuS:
		r.WriteReg(inst.Rd, e.fpu.CvtLuS(a32))
	case insts.OpFcvtSW:
		r.WriteFRegSingle(inst.Rd, e.fpu.CvtSW(r.ReadReg(inst.Rs1)))
	case insts.OpFcvtSWu:
		r.WriteFRegSingle(inst.Rd, e.fpu.CvtSWu(r.ReadReg(inst.Rs1)))
	case insts.OpFcvtSL:
		r.WriteFRegSingle(inst.Rd, e.fpu.CvtSL(r.ReadReg(inst.Rs1)))
	case insts.OpFcvtSLu:
		r.WriteFRegSingle(inst.Rd, e.fpu.CvtSLu(r.ReadReg(inst.Rs1)))
	case insts.OpFmvXW:
		r.WriteReg(inst.Rd, uint64(int64(int32(a32))))
	case insts.OpFmvWX:
		r.WriteFRegSingle(inst.Rd, uint32(r.ReadReg(inst.Rs1)))
	case insts.OpFcvtDS:
		r.WriteFReg(inst.Rd, e.fpu.CvtDS(a32))

	case insts.OpFaddD:
		r.WriteFReg(inst.Rd, e.fpu.AddD(aD, bD))
	case insts.OpFsubD:
		r.WriteFReg(inst.Rd, e.fpu.SubD(aD, bD))
	case insts.OpFmulD:
		r.WriteFReg(inst.Rd, e.fpu.MulD(aD, bD))
	case insts.OpFdivD:
		r.WriteFReg(inst.Rd, e.fpu.DivD(aD, bD))
	case insts.OpFsqrtD:
		r.WriteFReg(inst.Rd, e.fpu.SqrtD(aD))
	case insts.OpFminD:
		r.WriteFReg(inst.Rd, e.fpu.MinD(aD, bD))
	case insts.OpFmaxD:
		r.WriteFReg(inst.Rd, e.fpu.MaxD(aD, bD))
	case insts.OpFsgnjD:
		r.WriteFReg(inst.Rd, e.fpu.SgnjD(aD, bD))
	case insts.OpFsgnjnD:
		r.WriteFReg(inst.Rd, e.fpu.SgnjnD(aD, bD))
	case insts.OpFsgnjxD:
		r.WriteFReg(inst.Rd, e.fpu.SgnjxD(aD, bD))
	case insts.OpFeqD:
		r.WriteReg(inst.Rd, boolToU64(e.fpu.EqD(aD, bD)))
	case insts.OpFltD:
		r.WriteReg(inst.Rd, boolToU64(e.fpu.LtD(aD, bD)))
	case insts.OpFleD:
		r.WriteReg(inst.Rd, boolToU64(e.fpu.LeD(aD, bD)))
	case insts.OpFclassD:
		r.WriteReg(inst.Rd, e.fpu.ClassD(aD))
	case insts.OpFcvtWD:
		r.WriteReg(inst.Rd, e.fpu.CvtWD(aD))
	case insts.OpFcvtWuD:
		r.WriteReg(inst.Rd, e.fpu.CvtWuD(aD))
	case insts.OpFcvtLD:
		r.WriteReg(inst.Rd, e.fpu.CvtLD(aD))
	case insts.OpFcvtLuD:
		r.WriteReg(inst.Rd, e.fpu.CvtLuD(aD))
	case insts.OpFcvtDW:
		r.WriteFReg(inst.Rd, e.fpu.CvtDW(r.ReadReg(inst.Rs1)))
	case insts.OpFcvtDWu:
		r.WriteFReg(inst.Rd, e.fpu.CvtDWu(r.ReadReg(inst.Rs1)))
	case insts.OpFcvtDL:
		r.WriteFReg(inst.Rd, e.fpu.CvtDL(r.ReadReg(inst.Rs1)))
	case insts.OpFcvtDLu:
		r.WriteFReg(inst.Rd, e.fpu.CvtDLu(r.ReadReg(inst.Rs1)))
	case insts.OpFmvXD:
		r.WriteReg(inst.Rd, aD)
	case insts.OpFmvDX:
		r.WriteFReg(inst.Rd, r.ReadReg(inst.Rs1))
	case insts.OpFcvtSD:
		r.WriteFRegSingle(inst.Rd, e.fpu.CvtSD(aD))
	}
}

func (e *Emulator) executeR4(inst *insts.Instruction) {
	r := e.regFile
	switch inst.Op {
	case insts.OpFmaddS, insts.OpFmsubS, insts.OpFnmaddS, insts.OpFnmsubS:
		a, b, c := r.ReadFRegSingle(inst.Rs1), r.ReadFRegSingle(inst.Rs2), r.ReadFRegSingle(inst.Rs3)
		var res uint32
		switch inst.Op {
		case insts.OpFmaddS:
			res = e.fpu.MaddS(a, b, c)
		case insts.OpFmsubS:
			res = e.fpu.MsubS(a, b, c)
		case insts.OpFnmaddS:
			res = e.fpu.NmaddS(a, b, c)
		case insts.OpFnmsubS:
			res = e.fpu.NmsubS(a, b, c)
		}
		r.WriteFRegSingle(inst.Rd, res)
	default:
		a, b, c := r.ReadFReg(inst.Rs1), r.ReadFReg(inst.Rs2), r.ReadFReg(inst.Rs3)
		var res uint64
		switch inst.Op {
		case insts.OpFmaddD:
			res = e.fpu.MaddD(a, b, c)
		case insts.OpFmsubD:
			res = e.fpu.MsubD(a, b, c)
		case insts.OpFnmaddD:
			res = e.fpu.NmaddD(a, b, c)
		case insts.OpFnmsubD:
			res = e.fpu.NmsubD(a, b, c)
		}
		r.WriteFReg(inst.Rd, res)
	}
}

func (e *Emulator) executeI(inst *insts.Instruction, pc uint64) *Trap {
	r := e.regFile
	op1 := r.ReadReg(inst.Rs1)
	imm := uint64(inst.Imm)

	switch inst.Op {
	case insts.OpAddi:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindAdd, op1, imm))
	case insts.OpSlti:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSlt, op1, imm))
	case insts.OpSltiu:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSltu, op1, imm))
	case insts.OpXori:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindXor, op1, imm))
	case insts.OpOri:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindOr, op1, imm))
	case insts.OpAndi:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindAnd, op1, imm))
	case insts.OpSlli:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSll, op1, imm))
	case insts.OpSrli:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSrl, op1, imm))
	case insts.OpSrai:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSra, op1, imm))
	case insts.OpAddiw:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindAddw, op1, imm))
	case insts.OpSlliw:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSllw, op1, imm))
	case insts.OpSrliw:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSrlw, op1, imm))
	case insts.OpSraiw:
		r.WriteReg(inst.Rd, e.alu.Compute(OpKindSraw, op1, imm))
	case insts.OpJalr:
		r.PC = e.branch.Jalr(inst.Rd, pc, op1, inst.Imm, inst.Size)
	case insts.OpLb:
		pAddr, trap := e.translate(op1+imm, mmu.AccessLoad)
		if trap != nil {
			return trap
		}
		r.WriteReg(inst.Rd, e.lsu.Lb(pAddr))
	case insts.OpLh:
		pAddr, trap := e.translate(op1+imm, mmu.AccessLoad)
		if trap != nil {
			return trap
		}
		r.WriteReg(inst.Rd, e.lsu.Lh(pAddr))
	case insts.OpLw:
		pAddr, trap := e.translate(op1+imm, mmu.AccessLoad)
		if trap != nil {
			return trap
		}
		r.WriteReg(inst.Rd, e.lsu.Lw(pAddr))
	case insts.OpLd:
		pAddr, trap := e.translate(op1+imm, mmu.AccessLoad)
		if trap != nil {
			return trap
		}
		r.WriteReg(inst.Rd, e.lsu.Ld(pAddr))
	case insts.OpLbu:
		pAddr, trap := e.translate(op1+imm, mmu.AccessLoad)
		if trap != nil {
			return trap
		}
		r.WriteReg(inst.Rd, e.lsu.Lbu(pAddr))
	case insts.OpLhu:
		pAddr, trap := e.translate(op1+imm, mmu.AccessLoad)
		if trap != nil {
			return trap
		}
		r.WriteReg(inst.Rd, e.lsu.Lhu(pAddr))
	case insts.OpLwu:
		pAddr, trap := e.translate(op1+imm, mmu.AccessLoad)
		if trap != nil {
			return trap
		}
		r.WriteReg(inst.Rd, e.lsu.Lwu(pAddr))
	case insts.OpFlw:
		pAddr, trap := e.translate(op1+imm, mmu.AccessLoad)
		if trap != nil {
			return trap
		}
		r.WriteFRegSingle(inst.Rd, uint32(e.lsu.Lw(pAddr)))
	case insts.OpFld:
		pAddr, trap := e.translate(op1+imm, mmu.AccessLoad)
		if trap != nil {
			return trap
		}
		r.WriteFReg(inst.Rd, e.lsu.Ld(pAddr))
	}
	return nil
}

func (e *Emulator) executeS(inst *insts.Instruction) *Trap {
	r := e.regFile
	vAddr := r.ReadReg(inst.Rs1) + uint64(inst.Imm)
	pAddr, trap := e.translate(vAddr, mmu.AccessStore)
	if trap != nil {
		return trap
	}

	switch inst.Op {
	case insts.OpSb:
		e.lsu.Sb(pAddr, r.ReadReg(inst.Rs2))
	case insts.OpSh:
		e.lsu.Sh(pAddr, r.ReadReg(inst.Rs2))
	case insts.OpSw:
		e.lsu.Sw(pAddr, r.ReadReg(inst.Rs2))
	case insts.OpSd:
		e.lsu.Sd(pAddr, r.ReadReg(inst.Rs2))
	case insts.OpFsw:
		e.lsu.Sw(pAddr, uint64(r.ReadFRegSingle(inst.Rs2)))
	case insts.OpFsd:
		e.lsu.Sd(pAddr, r.ReadFReg(inst.Rs2))
	}
	return nil
}

func (e *Emulator) executeB(inst *insts.Instruction, pc uint64) {
	r := e.regFile
	a, b := r.ReadReg(inst.Rs1), r.ReadReg(inst.Rs2)
	if EvalBranch(inst.Op, a, b) {
		r.PC = uint64(int64(pc) + inst.Imm)
	}
}

func (e *Emulator) executeU(inst *insts.Instruction, pc uint64) {
	r := e.regFile
	switch inst.Op {
	case insts.OpLui:
		r.WriteReg(inst.Rd, uint64(inst.Imm))
	case insts.OpAuipc:
		r.WriteReg(inst.Rd, uint64(int64(pc)+inst.Imm))
	}
}

func (e *Emulator) executeAMO(inst *insts.Instruction) *Trap {
	r := e.regFile
	vAddr := r.ReadReg(inst.Rs1)
	val := r.ReadReg(inst.Rs2)
	kind := mmu.AccessStore
	if inst.Op == insts.OpLrW || inst.Op == insts.OpLrD {
		kind = mmu.AccessLoad
	}
	addr, trap := e.translate(vAddr, kind)
	if trap != nil {
		return trap
	}

	switch inst.Op {
	case insts.OpLrW:
		r.WriteReg(inst.Rd, e.lsu.LrW(addr))
	case insts.OpLrD:
		r.WriteReg(inst.Rd, e.lsu.LrD(addr))
	case insts.OpScW:
		r.WriteReg(inst.Rd, e.lsu.ScW(addr, val))
	case insts.OpScD:
		r.WriteReg(inst.Rd, e.lsu.ScD(addr, val))
	default:
		kind, is64, ok := amoKindFor(inst.Op)
		if !ok {
			break
		}
		if is64 {
			r.WriteReg(inst.Rd, e.lsu.AmoD(kind, addr, val))
		} else {
			r.WriteReg(inst.Rd, e.lsu.AmoW(kind, addr, val))
		}
	}
	return nil
}

func amoKindFor(op insts.Op) (AmoKind, bool, bool) {
	switch op {
	case insts.OpAmoswapW:
		return AmoSwap, false, true
	case insts.OpAmoaddW:
		return AmoAdd, false, true
	case insts.OpAmoxorW:
		return AmoXor, false, true
	case insts.OpAmoandW:
		return AmoAnd, false, true
	case insts.OpAmoorW:
		return AmoOr, false, true
	case insts.OpAmominW:
		return AmoMin, false, true
	case insts.OpAmomaxW:
		return AmoMax, false, true
	case insts.OpAmominuW:
		return AmoMinu, false, true
	case insts.OpAmomaxuW:
		return AmoMaxu, false, true
	case insts.OpAmoswapD:
		return AmoSwap, true, true
	case insts.OpAmoaddD:
		return AmoAdd, true, true
	case insts.OpAmoxorD:
		return AmoXor, true, true
	case insts.OpAmoandD:
		return AmoAnd, true, true
	case insts.OpAmoorD:
		return AmoOr, true, true
	case insts.OpAmominD:
		return AmoMin, true, true
	case insts.OpAmomaxD:
		return AmoMax, true, true
	case insts.OpAmominuD:
		return AmoMinu, true, true
	case insts.OpAmomaxuD:
		return AmoMaxu, true, true
	}
	return 0, false, false
}

func (e *Emulator) executeCSR(inst *insts.Instruction) {
	r := e.regFile
	old := e.csr.Read(inst.Csr)

	var src uint64
	switch inst.Op {
	case insts.OpCsrrwi, insts.OpCsrrsi, insts.OpCsrrci:
		src = uint64(inst.Imm)
	default:
		src = r.ReadReg(inst.Rs1)
	}

	var next uint64
	switch inst.Op {
	case insts.OpCsrrw, insts.OpCsrrwi:
		next = src
	case insts.OpCsrrs, insts.OpCsrrsi:
		next = old | src
	case insts.OpCsrrc, insts.OpCsrrci:
		next = old &^ src
	}
	e.csr.Write(inst.Csr, next)
	r.WriteReg(inst.Rd, old)
}

func (e *Emulator) executeSystem(inst *insts.Instruction) (*Trap, bool) {
	switch inst.Op {
	case insts.OpEcall:
		var cause TrapCause
		switch e.regFile.Priv {
		case PrivU:
			cause = TrapEcallU
		case PrivS:
			cause = TrapEcallS
		default:
			cause = TrapEcallM
		}
		if e.regFile.Priv == PrivU {
			res := e.syscallHandler.Handle()
			if res.Exited {
				e.exited = true
				e.exitCode = res.ExitCode
				return nil, true
			}
			return nil, false
		}
		return &Trap{Cause: cause}, false
	case insts.OpEbreak:
		return &Trap{Cause: TrapBreakpoint}, false
	case insts.OpMret:
		e.regFile.PC = e.traps.Return(PrivM)
	case insts.OpSret:
		e.regFile.PC = e.traps.Return(PrivS)
	case insts.OpSfenceVma:
		vAddr := e.regFile.ReadReg(inst.Rs1)
		asid := mmu.ASID(e.regFile.ReadReg(inst.Rs2))
		e.mmu.SFENCE(vAddr, asid, inst.Rs2 != 0)
	case insts.OpWfi, insts.OpFence, insts.OpFenceI:
		// No-ops in this functional model: WFI never blocks since there is
		// no external interrupt source pending a real wait, and both FENCE
		// forms are unobservable without a multi-hart or speculative
		// memory model.
	}
	return nil, false
}
