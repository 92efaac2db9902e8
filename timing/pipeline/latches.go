package pipeline

import (
	"github.com/sarchlab/rvsim64/emu"
	"github.com/sarchlab/rvsim64/insts"
	"github.com/sarchlab/rvsim64/timing/rob"
)

// The four inter-stage latches below are scalar, single-entry renderings of
// original_source's IfIdEntry/IdExEntry/ExMemEntry/MemWbEntry (each of which
// the Rust core wraps in a Vec-based superscalar container); this simulator
// models one instruction per stage per cycle, so the Vec collapses to a
// single optional entry guarded by Valid.

// IfIdEntry is produced by Fetch and consumed by Decode.
type IfIdEntry struct {
	Valid       bool
	PC          uint64
	Inst        *insts.Instruction
	InstSize    uint64
	PredTaken   bool
	PredTarget  uint64
	TargetKnown bool
	Trap        *emu.Trap
}

// IdExEntry is produced by Rename and consumed by Issue/Execute. The
// RsNReady/RsNTag pairs are only meaningful for the out-of-order backend:
// when a source is not ready, its value is ignored and its Tag names the
// ROB entry Issue must wait to observe.
type IdExEntry struct {
	Valid       bool
	PC          uint64
	Inst        *insts.Instruction
	InstSize    uint64
	Tag         rob.Tag
	RV1, RV2    uint64
	RV3         uint64
	Rs1Ready    bool
	Rs2Ready    bool
	Rs3Ready    bool
	Rs1Tag      rob.Tag
	Rs2Tag      rob.Tag
	Rs3Tag      rob.Tag
	Ctrl        ControlSignals
	PredTaken   bool
	PredTarget  uint64
	TargetKnown bool
	Trap        *emu.Trap
}

// ExMemEntry is produced by Execute and consumed by Memory1/Memory2.
type ExMemEntry struct {
	Valid     bool
	PC        uint64
	Inst      *insts.Instruction
	InstSize  uint64
	Tag       rob.Tag
	ALU       uint64
	StoreData uint64
	VAddr     uint64
	PAddr     uint64
	HasPAddr  bool
	Ctrl      ControlSignals
	Trap      *emu.Trap
}

// MemWbEntry is produced by Memory2 and consumed by Writeback. StoreData
// carries a CSR instruction's computed new value through to Commit (the
// only instruction format that needs ALU as a read-value and a second,
// distinct write-value at once).
type MemWbEntry struct {
	Valid     bool
	PC        uint64
	Inst      *insts.Instruction
	InstSize  uint64
	Tag       rob.Tag
	ALU       uint64
	StoreData uint64
	LoadData  uint64
	Ctrl      ControlSignals
	Trap      *emu.Trap
}
