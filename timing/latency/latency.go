// Package latency provides per-instruction functional-unit timing for the
// RV64IMAFDC timing model's Execute stage, independent of memory/cache
// latency (which the attached timing/cache.Cache and timing/dram.Controller
// account for separately).
package latency

import (
	"github.com/sarchlab/rvsim64/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the Execute-stage latency in cycles for the given
// instruction. Memory access latency is charged separately by the
// attached cache/DRAM model, not here.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Op {
	case insts.OpDiv, insts.OpDivu, insts.OpRem, insts.OpRemu,
		insts.OpDivw, insts.OpDivuw, insts.OpRemw, insts.OpRemuw:
		return t.config.DivideLatencyMax

	case insts.OpMul, insts.OpMulh, insts.OpMulhsu, insts.OpMulhu, insts.OpMulw:
		return t.config.MultiplyLatency

	case insts.OpFdivS, insts.OpFdivD:
		return t.config.DivideLatencyMax

	case insts.OpFsqrtS, insts.OpFsqrtD:
		return t.config.DivideLatencyMax

	case insts.OpFaddS, insts.OpFsubS, insts.OpFmulS,
		insts.OpFaddD, insts.OpFsubD, insts.OpFmulD,
		insts.OpFmaddS, insts.OpFmsubS, insts.OpFnmaddS, insts.OpFnmsubS,
		insts.OpFmaddD, insts.OpFmsubD, insts.OpFnmaddD, insts.OpFnmsubD:
		return t.config.FPLatency

	case insts.OpFminS, insts.OpFmaxS, insts.OpFsgnjS, insts.OpFsgnjnS, insts.OpFsgnjxS,
		insts.OpFminD, insts.OpFmaxD, insts.OpFsgnjD, insts.OpFsgnjnD, insts.OpFsgnjxD,
		insts.OpFcvtSW, insts.OpFcvtSWu, insts.OpFcvtSL, insts.OpFcvtSLu, insts.OpFmvWX,
		insts.OpFcvtDW, insts.OpFcvtDWu, insts.OpFcvtDL, insts.OpFcvtDLu, insts.OpFmvDX,
		insts.OpFcvtSD, insts.OpFcvtDS:
		return t.config.ALULatency

	default:
		if t.IsBranchOp(inst) {
			return t.config.BranchLatency
		}
		if t.IsLoadOp(inst) {
			return t.config.LoadLatency
		}
		if t.IsStoreOp(inst) {
			return t.config.StoreLatency
		}
		return t.config.ALULatency
	}
}

// GetMinLatency returns the minimum execution latency for variable-latency
// operations (divide, in particular).
func (t *Table) GetMinLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}
	switch inst.Op {
	case insts.OpDiv, insts.OpDivu, insts.OpRem, insts.OpRemu,
		insts.OpDivw, insts.OpDivuw, insts.OpRemw, insts.OpRemuw,
		insts.OpFdivS, insts.OpFdivD, insts.OpFsqrtS, insts.OpFsqrtD:
		return t.config.DivideLatencyMin
	}
	return t.GetLatency(inst)
}

// GetMaxLatency returns the maximum execution latency for variable-latency
// operations.
func (t *Table) GetMaxLatency(inst *insts.Instruction) uint64 {
	return t.GetLatency(inst)
}

// IsMemoryOp returns true if the instruction accesses data memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	return t.IsLoadOp(inst) || t.IsStoreOp(inst)
}

// IsLoadOp returns true if the instruction is a load (including AMO loads
// and load-reserved).
func (t *Table) IsLoadOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	switch inst.Op {
	case insts.OpLb, insts.OpLbu, insts.OpLh, insts.OpLhu,
		insts.OpLw, insts.OpLwu, insts.OpLd, insts.OpFlw, insts.OpFld,
		insts.OpLrW, insts.OpLrD:
		return true
	}
	return false
}

// IsStoreOp returns true if the instruction is a store (including AMOs and
// store-conditional).
func (t *Table) IsStoreOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	switch inst.Op {
	case insts.OpSb, insts.OpSh, insts.OpSw, insts.OpSd, insts.OpFsw, insts.OpFsd,
		insts.OpScW, insts.OpScD:
		return true
	}
	return inst.Format == insts.FormatAMO
}

// IsBranchOp returns true if the instruction is a conditional branch, jump,
// or return.
func (t *Table) IsBranchOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Format == insts.FormatB || inst.Format == insts.FormatJ ||
		inst.Op == insts.OpJalr
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
