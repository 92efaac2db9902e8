package pipeline

import (
	"github.com/sarchlab/rvsim64/config"
	"github.com/sarchlab/rvsim64/emu"
	"github.com/sarchlab/rvsim64/insts"
	"github.com/sarchlab/rvsim64/mmu"
	"github.com/sarchlab/rvsim64/stats"
	"github.com/sarchlab/rvsim64/timing/cache"
)

// issue moves a ready renamed instruction into IdEx, stalling in place
// (leaving renameOut occupied) when a busy-bit scoreboard hazard or a
// structural hazard on IdEx blocks it. The out-of-order backend overrides
// this with its ROB/scoreboard-driven allocate-and-enqueue path.
func (p *Pipeline) issue() {
	if p.backend == config.BackendOutOfOrder {
		p.issueOOO()
		return
	}

	if !p.renameOut.Valid || p.idex.Valid {
		return
	}

	e := p.renameOut
	if e.Inst != nil && (!e.Rs1Ready || !e.Rs2Ready || !e.Rs3Ready) {
		return // stall: scoreboard hazard, re-check next cycle
	}

	p.renameOut = IdExEntry{}
	if e.Inst != nil {
		if e.Ctrl.RegWrite && e.Inst.Rd != 0 {
			if e.Ctrl.FPRegWrite {
				p.busyFP[e.Inst.Rd] = true
			} else {
				p.busyInt[e.Inst.Rd] = true
			}
		}
	}
	p.idex = e
}

// execute computes the arithmetic/branch/jump result for the in-order
// backend, deferring memory access to Memory1/Memory2 and all
// architectural mutation to Commit.
func (p *Pipeline) execute() {
	if p.backend == config.BackendOutOfOrder {
		p.executeOOO()
		return
	}

	if !p.idex.Valid || p.exmem.Valid {
		return
	}
	e := p.idex
	p.idex = IdExEntry{}

	out := ExMemEntry{Valid: true, PC: e.PC, Inst: e.Inst, InstSize: e.InstSize, Ctrl: e.Ctrl, Trap: e.Trap}
	if e.Trap != nil || e.Inst == nil {
		p.exmem = out
		return
	}
	inst := e.Inst

	switch {
	case e.Ctrl.IsBranch:
		taken := emu.EvalBranch(inst.Op, e.RV1, e.RV2)
		var target uint64
		if taken {
			target = uint64(int64(e.PC) + inst.Imm)
		} else {
			target = e.PC + e.InstSize
		}
		p.predictor.UpdateBranch(e.PC, taken, target, true)
		if taken != e.PredTaken || (taken && target != e.PredTarget) {
			p.redirectFetch(target)
		}
	case inst.Format == insts.FormatJ:
		// emu.BranchUnit.Jal writes rd as a side effect the instant it's
		// called, which would let an unretired jump mutate architectural
		// state ahead of Commit; its link-register math (pc+size) is
		// reproduced directly here instead, leaving the rd write to Commit.
		target := uint64(int64(e.PC) + inst.Imm)
		out.ALU = e.PC + e.InstSize
		p.predictor.UpdateBranch(e.PC, true, target, true)
		if !e.PredTaken || target != e.PredTarget {
			p.redirectFetch(target)
		}
	case inst.Format == insts.FormatI && inst.Op == insts.OpJalr:
		target := (e.RV1 + uint64(inst.Imm)) &^ 1
		out.ALU = e.PC + e.InstSize
		p.predictor.UpdateBranch(e.PC, true, target, true)
		if !e.PredTaken || target != e.PredTarget {
			p.redirectFetch(target)
		}
	case e.Ctrl.MemRead, e.Ctrl.MemWrite, e.Ctrl.IsAMO:
		out.VAddr = e.RV1 + uint64(inst.Imm)
		if e.Ctrl.IsAMO {
			out.VAddr = e.RV1
		}
		out.StoreData = e.RV2
	case e.Ctrl.IsCSR:
		out.ALU = p.csr.Read(inst.Csr)
		var src uint64
		switch inst.Op {
		case insts.OpCsrrwi, insts.OpCsrrsi, insts.OpCsrrci:
			src = uint64(inst.Imm)
		default:
			src = e.RV1
		}
		switch inst.Op {
		case insts.OpCsrrw, insts.OpCsrrwi:
			out.StoreData = src
		case insts.OpCsrrs, insts.OpCsrrsi:
			out.StoreData = out.ALU | src
		case insts.OpCsrrc, insts.OpCsrrci:
			out.StoreData = out.ALU &^ src
		}
	case e.Ctrl.IsSystem:
		// Resolved at Commit, where syscalls and privileged transfers must
		// observe the fully up-to-date architectural state.
	default:
		out.ALU = p.computeArith(inst, e.PC, e.RV1, e.RV2, e.RV3)
	}

	p.exmem = out
}

// memory1 translates the effective address and starts the data cache
// access whose latency Memory2 waits out.
func (p *Pipeline) memory1() {
	if p.backend == config.BackendOutOfOrder {
		p.memory1OOO()
		return
	}

	if p.pendingMem.active {
		return
	}
	if !p.exmem.Valid {
		return
	}
	e := p.exmem
	p.exmem = ExMemEntry{}

	if e.Trap != nil || e.Inst == nil || !(e.Ctrl.MemRead || e.Ctrl.MemWrite || e.Ctrl.IsAMO) {
		p.pendingMem = pendingMem{active: true, remaining: 0, entry: e}
		return
	}

	kind := mmu.AccessLoad
	if e.Ctrl.MemWrite || (e.Ctrl.IsAMO && e.Inst.Op != insts.OpLrW && e.Inst.Op != insts.OpLrD) {
		kind = mmu.AccessStore
	}
	pAddr, trap := p.translate(e.VAddr, kind)
	if trap != nil {
		e.Trap = trap
		p.pendingMem = pendingMem{active: true, remaining: 0, entry: e}
		return
	}
	e.PAddr, e.HasPAddr = pAddr, true

	p.pendingMem = pendingMem{active: true, remaining: p.dataCacheLatency(pAddr, e), entry: e}
}

// dataCacheLatency consults the attached data cache, if any, for the
// latency of the access Memory2 will perform, and records hit/miss stats.
func (p *Pipeline) dataCacheLatency(pAddr uint64, e ExMemEntry) uint64 {
	if p.dcache == nil {
		return 1
	}
	size := int(memWidthBytes(e.Ctrl.MemWidth))
	if size == 0 {
		size = 8
	}
	var res cache.AccessResult
	if e.Ctrl.MemWrite {
		res = p.dcache.Write(pAddr, size, e.StoreData)
	} else {
		res = p.dcache.Read(pAddr, size)
	}
	if res.Hit {
		p.st.Incr(stats.KeyDCacheHits)
	} else {
		p.st.Incr(stats.KeyDCacheMisses)
	}
	return res.Latency
}

// memory2 waits out the pending access's latency and performs the actual
// load/store/AMO through the shared LoadStoreUnit once ready.
func (p *Pipeline) memory2() {
	if p.backend == config.BackendOutOfOrder {
		p.memory2OOO()
		return
	}

	pm := &p.pendingMem
	if !pm.active {
		return
	}
	if pm.remaining > 0 {
		pm.remaining--
		return
	}
	if p.memwb.Valid {
		return
	}

	e := pm.entry
	*pm = pendingMem{}

	out := MemWbEntry{Valid: true, PC: e.PC, Inst: e.Inst, InstSize: e.InstSize, Tag: e.Tag, ALU: e.ALU, StoreData: e.StoreData, Ctrl: e.Ctrl, Trap: e.Trap}
	if e.Trap == nil && e.Inst != nil && e.HasPAddr {
		out.LoadData = p.performMemAccess(e)
	}
	p.memwb = out
}

// performMemAccess executes the load/store/AMO against the shared
// emu.LoadStoreUnit, mirroring emu.Emulator.executeI/executeS/executeAMO's
// opcode dispatch exactly, and returns the value a load produces (zero for
// a pure store).
func (p *Pipeline) performMemAccess(e ExMemEntry) uint64 {
	inst := e.Inst
	addr := e.PAddr

	if e.Ctrl.IsAMO {
		switch inst.Op {
		case insts.OpLrW:
			return p.lsu.LrW(addr)
		case insts.OpLrD:
			return p.lsu.LrD(addr)
		case insts.OpScW:
			return p.lsu.ScW(addr, e.StoreData)
		case insts.OpScD:
			return p.lsu.ScD(addr, e.StoreData)
		default:
			kind, is64, ok := amoKindFor(inst.Op)
			if !ok {
				return 0
			}
			if is64 {
				return p.lsu.AmoD(kind, addr, e.StoreData)
			}
			return p.lsu.AmoW(kind, addr, e.StoreData)
		}
	}

	if e.Ctrl.MemWrite {
		switch inst.Op {
		case insts.OpSb:
			p.lsu.Sb(addr, e.StoreData)
		case insts.OpSh:
			p.lsu.Sh(addr, e.StoreData)
		case insts.OpSw, insts.OpFsw:
			p.lsu.Sw(addr, e.StoreData)
		case insts.OpSd, insts.OpFsd:
			p.lsu.Sd(addr, e.StoreData)
		}
		return 0
	}

	if e.Ctrl.MemRead {
		switch inst.Op {
		case insts.OpLb:
			return p.lsu.Lb(addr)
		case insts.OpLbu:
			return p.lsu.Lbu(addr)
		case insts.OpLh:
			return p.lsu.Lh(addr)
		case insts.OpLhu:
			return p.lsu.Lhu(addr)
		case insts.OpLw:
			return p.lsu.Lw(addr)
		case insts.OpLwu:
			return p.lsu.Lwu(addr)
		case insts.OpLd:
			return p.lsu.Ld(addr)
		case insts.OpFlw:
			return p.lsu.Lw(addr)
		case insts.OpFld:
			return p.lsu.Ld(addr)
		}
	}
	return 0
}

// writeback packages the final register-write value (if any) into WbCm,
// clearing the issuing busy bit so a younger instruction reading the same
// register can proceed; the actual register-file write happens at Commit.
func (p *Pipeline) writeback() {
	if p.backend == config.BackendOutOfOrder {
		p.writebackOOO()
		return
	}

	if !p.memwb.Valid || p.wbcm.Valid {
		return
	}
	e := p.memwb
	p.memwb = MemWbEntry{}

	out := WbCmEntry{Valid: true, PC: e.PC, Inst: e.Inst, InstSize: e.InstSize, Ctrl: e.Ctrl, Trap: e.Trap}
	if e.Inst != nil {
		out.FPRegWrite = e.Ctrl.FPRegWrite
		out.CSRNewVal = e.StoreData
		switch {
		case e.Ctrl.MemRead:
			out.Value = e.LoadData
		case e.Ctrl.IsAMO:
			out.Value = e.LoadData
		default:
			out.Value = e.ALU
		}
		if e.Ctrl.RegWrite || e.Ctrl.IsAMO {
			out.Rd = e.Inst.Rd
			if e.Ctrl.FPRegWrite {
				p.busyFP[e.Inst.Rd] = false
			} else {
				p.busyInt[e.Inst.Rd] = false
			}
		}
	}
	p.wbcm = out
}

// commit is the pipeline's single architectural mutation point: register
// and CSR writes, trap entry, and ECALL dispatch all happen here, matching
// the design that gives every instruction exactly one moment where it can
// change state the rest of the machine observes.
func (p *Pipeline) commit() {
	if p.backend == config.BackendOutOfOrder {
		p.commitOOO()
		return
	}

	if !p.wbcm.Valid {
		return
	}
	e := p.wbcm
	p.wbcm = WbCmEntry{}
	p.st.Incr(stats.KeyInstructionsRetired)
	p.regFile.PC = e.PC

	if e.Trap != nil {
		p.enterTrap(*e.Trap)
		return
	}
	if e.Inst == nil {
		return
	}

	if e.Inst.Op == insts.OpEcall || e.Inst.Op == insts.OpEbreak ||
		e.Inst.Op == insts.OpMret || e.Inst.Op == insts.OpSret ||
		e.Inst.Op == insts.OpSfenceVma {
		p.commitSystem(e)
		return
	}

	if e.Ctrl.IsCSR {
		p.csr.Write(e.Inst.Csr, e.CSRNewVal)
		p.regFile.WriteReg(e.Inst.Rd, e.Value)
		return
	}

	if e.Ctrl.RegWrite || e.Ctrl.IsAMO {
		if e.FPRegWrite {
			p.regFile.WriteFReg(e.Rd, e.Value)
		} else {
			p.regFile.WriteReg(e.Rd, e.Value)
		}
	}
}

// commitSystem handles the privileged/ECALL instructions that executeSystem
// resolves in the functional emulator, applied here at the one point a
// trap-free instruction is guaranteed to be the oldest in flight.
func (p *Pipeline) commitSystem(e WbCmEntry) {
	switch e.Inst.Op {
	case insts.OpEcall:
		var cause emu.TrapCause
		switch p.regFile.Priv {
		case emu.PrivU:
			cause = emu.TrapEcallU
		case emu.PrivS:
			cause = emu.TrapEcallS
		default:
			cause = emu.TrapEcallM
		}
		if p.regFile.Priv == emu.PrivU {
			res := p.syscallHandler.Handle()
			if res.Exited {
				p.halted = true
				p.exitCode = res.ExitCode
			}
			return
		}
		p.enterTrap(emu.Trap{Cause: cause})
	case insts.OpEbreak:
		p.enterTrap(emu.Trap{Cause: emu.TrapBreakpoint})
	case insts.OpMret:
		target := p.traps.Return(emu.PrivM)
		p.redirectFetch(target)
	case insts.OpSret:
		target := p.traps.Return(emu.PrivS)
		p.redirectFetch(target)
	case insts.OpSfenceVma:
		vAddr := p.regFile.ReadReg(e.Inst.Rs1)
		asid := mmu.ASID(p.regFile.ReadReg(e.Inst.Rs2))
		p.mmu.SFENCE(vAddr, asid, e.Inst.Rs2 != 0)
	}
}
