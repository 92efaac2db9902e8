package pipeline

import (
	"github.com/sarchlab/rvsim64/emu"
	"github.com/sarchlab/rvsim64/insts"
	"github.com/sarchlab/rvsim64/mmu"
	"github.com/sarchlab/rvsim64/stats"
	"github.com/sarchlab/rvsim64/timing/rob"
)

// ooEntry is an instruction waiting in the out-of-order backend's issue
// queue for its operands to become available, generalizing the in-order
// backend's single IdEx latch to an unordered pool Execute scans each
// cycle for the oldest ready entry.
type ooEntry struct {
	tag         rob.Tag
	pc          uint64
	inst        *insts.Instruction
	instSize    uint64
	ctrl        ControlSignals
	rv1, rv2    uint64
	rv3         uint64
	rs1Ready    bool
	rs2Ready    bool
	rs3Ready    bool
	rs1Tag      rob.Tag
	rs2Tag      rob.Tag
	rs3Tag      rob.Tag
	predTaken   bool
	predTarget  uint64
	targetKnown bool
}

// ooCompletion tracks an instruction that has left the issue queue and is
// counting down its remaining functional-unit or memory latency before
// Writeback can report it to the ROB.
type ooCompletion struct {
	tag       rob.Tag
	pc        uint64
	inst      *insts.Instruction
	ctrl      ControlSignals
	result    uint64
	vAddr     uint64
	pAddr     uint64
	hasPAddr  bool
	trap      *emu.Trap
	remaining uint64
	done      bool
}

// issueOOO allocates a ROB entry (and a store buffer slot for stores),
// registers this instruction as the scoreboard's producer for its
// destination register, and enqueues it in the issue queue for Execute to
// pick up once its operands are ready.
func (p *Pipeline) issueOOO() {
	if !p.renameOut.Valid {
		return
	}
	e := p.renameOut

	if e.Trap != nil || e.Inst == nil {
		stage := rob.StageFetch
		var raw uint32
		if e.Inst != nil {
			stage = rob.StageDecode
			raw = uint32(e.Inst.Raw)
		}
		tag, ok := p.rob.Allocate(e.PC, raw, e.InstSize, 0, false, false, false)
		if !ok {
			return // ROB full, stall
		}
		p.renameOut = IdExEntry{}
		p.rob.Fault(tag, *e.Trap, stage)
		return
	}

	inst := e.Inst
	if e.Ctrl.MemWrite && p.storeBuf.IsFull() {
		return // stall: no store buffer slot available yet
	}

	rdFP := e.Ctrl.FPRegWrite
	tag, ok := p.rob.Allocate(e.PC, uint32(inst.Raw), e.InstSize, int(inst.Rd), rdFP, e.Ctrl.RegWrite, rdFP)
	if !ok {
		return // ROB full, stall
	}

	if e.Ctrl.MemWrite {
		p.storeBuf.Allocate(tag, e.Ctrl.MemWidth)
	}
	if e.Ctrl.RegWrite && inst.Rd != 0 {
		p.scoreboard.SetProducer(int(inst.Rd), rdFP, tag)
	}

	p.renameOut = IdExEntry{}
	p.issueQueue = append(p.issueQueue, ooEntry{
		tag: tag, pc: e.PC, inst: inst, instSize: e.InstSize, ctrl: e.Ctrl,
		rv1: e.RV1, rv2: e.RV2, rv3: e.RV3,
		rs1Ready: e.Rs1Ready, rs2Ready: e.Rs2Ready, rs3Ready: e.Rs3Ready,
		rs1Tag: e.Rs1Tag, rs2Tag: e.Rs2Tag, rs3Tag: e.Rs3Tag,
		predTaken: e.PredTaken, predTarget: e.PredTarget, targetKnown: e.TargetKnown,
	})
}

// refreshOperand re-derives a source operand from the ROB the instant
// before Execute consumes it, rather than trusting Rename's snapshot,
// since the producer may have completed in the cycles the entry spent
// waiting in the issue queue.
func (p *Pipeline) refreshOperand(ready bool, isFP bool, reg uint8, fallback uint64) (uint64, bool) {
	if ready {
		return fallback, true
	}
	return p.rob.FindLatestResult(int(reg), isFP)
}

// executeOOO scans the issue queue for the oldest entry whose operands are
// all ready, computes its result through the shared functional units, and
// moves it into the in-flight completion list to count down its latency.
func (p *Pipeline) executeOOO() {
	pickIdx := -1
	var picked ooEntry

	for i, oe := range p.issueQueue {
		inst := oe.inst
		rv1, ok1 := p.refreshOperand(oe.rs1Ready, false, inst.Rs1, oe.rv1)
		rv2, ok2 := p.refreshOperand(oe.rs2Ready, isFPSource(inst), inst.Rs2, oe.rv2)
		rv3, ok3 := oe.rv3, true
		if inst.Format == insts.FormatR4 {
			rv3, ok3 = p.refreshOperand(oe.rs3Ready, true, inst.Rs3, oe.rv3)
		}
		if ok1 && ok2 && ok3 {
			oe.rv1, oe.rv2, oe.rv3 = rv1, rv2, rv3
			pickIdx, picked = i, oe
			break
		}
	}
	if pickIdx == -1 {
		return
	}
	p.issueQueue = append(p.issueQueue[:pickIdx], p.issueQueue[pickIdx+1:]...)

	oe := picked
	inst := oe.inst
	comp := ooCompletion{tag: oe.tag, pc: oe.pc, inst: inst, ctrl: oe.ctrl}

	switch {
	case oe.ctrl.IsBranch:
		taken := emu.EvalBranch(inst.Op, oe.rv1, oe.rv2)
		var target uint64
		if taken {
			target = uint64(int64(oe.pc) + inst.Imm)
		} else {
			target = oe.pc + oe.instSize
		}
		p.predictor.UpdateBranch(oe.pc, taken, target, true)
		comp.result = boolToU64(taken)
		predTaken := oe.targetKnown && oe.predTaken
		if taken != predTaken || (taken && target != oe.predTarget) {
			p.resolveMisprediction(oe.tag, target)
		}
	case inst.Format == insts.FormatJ:
		// See inorder.go's execute: emu.BranchUnit.Jal's regFile side effect
		// would let a not-yet-committed jump mutate architectural state out
		// of program order, so its link-register math is reproduced here
		// directly instead of calling it, leaving the rd write to Commit.
		target := uint64(int64(oe.pc) + inst.Imm)
		comp.result = oe.pc + oe.instSize
		p.predictor.UpdateBranch(oe.pc, true, target, true)
		if !(oe.targetKnown && oe.predTaken) || target != oe.predTarget {
			p.resolveMisprediction(oe.tag, target)
		}
	case inst.Format == insts.FormatI && inst.Op == insts.OpJalr:
		target := (oe.rv1 + uint64(inst.Imm)) &^ 1
		comp.result = oe.pc + oe.instSize
		p.predictor.UpdateBranch(oe.pc, true, target, true)
		if !(oe.targetKnown && oe.predTaken) || target != oe.predTarget {
			p.resolveMisprediction(oe.tag, target)
		}
	case oe.ctrl.MemRead, oe.ctrl.MemWrite, oe.ctrl.IsAMO:
		comp.vAddr = oe.rv1
		if !oe.ctrl.IsAMO {
			comp.vAddr = oe.rv1 + uint64(inst.Imm)
		}
		comp.result = oe.rv2 // store data, carried through to Memory
	case oe.ctrl.IsCSR:
		old := p.csr.Read(inst.Csr)
		var src uint64
		switch inst.Op {
		case insts.OpCsrrwi, insts.OpCsrrsi, insts.OpCsrrci:
			src = uint64(inst.Imm)
		default:
			src = oe.rv1
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
		comp.result = old
		p.rob.SetCSRUpdate(oe.tag, rob.CSRUpdate{Addr: uint32(inst.Csr), OldVal: old, NewVal: next})
	case oe.ctrl.IsSystem:
		// Resolved at Commit, where privileged state is guaranteed current.
	default:
		comp.result = p.computeArith(inst, oe.pc, oe.rv1, oe.rv2, oe.rv3)
	}

	comp.remaining = p.latencyFor(inst)
	p.inFlight = append(p.inFlight, comp)
}

// resolveMisprediction squashes every instruction younger than tag across
// the ROB, scoreboard, store buffer, and issue queue, then redirects the
// frontend to the architecturally correct target.
func (p *Pipeline) resolveMisprediction(tag rob.Tag, target uint64) {
	p.rob.FlushAfter(tag)
	p.scoreboard.RebuildFromROB(p.rob)
	p.storeBuf.FlushAfter(tag)
	kept := p.issueQueue[:0]
	for _, oe := range p.issueQueue {
		if oe.tag <= tag {
			kept = append(kept, oe)
		}
	}
	p.issueQueue = kept
	p.redirectFetch(target)
}

// latencyFor looks up the functional-unit latency for a computed
// instruction via the attached latency table.
func (p *Pipeline) latencyFor(inst *insts.Instruction) uint64 {
	if p.lat == nil {
		return 1
	}
	return p.lat.GetLatency(inst)
}

// memory1OOO translates addresses for in-flight loads/stores/AMOs once
// their effective address is known, resolving a store's entry in the
// store buffer so later loads can forward from it.
func (p *Pipeline) memory1OOO() {
	for i := range p.inFlight {
		c := &p.inFlight[i]
		if c.hasPAddr || c.trap != nil || !(c.ctrl.MemRead || c.ctrl.MemWrite || c.ctrl.IsAMO) {
			continue
		}
		kind := mmu.AccessLoad
		if c.ctrl.MemWrite || (c.ctrl.IsAMO && c.inst.Op != insts.OpLrW && c.inst.Op != insts.OpLrD) {
			kind = mmu.AccessStore
		}
		pAddr, trap := p.translate(c.vAddr, kind)
		if trap != nil {
			c.trap = trap
			continue
		}
		c.pAddr, c.hasPAddr = pAddr, true

		if c.ctrl.MemWrite {
			p.storeBuf.Resolve(c.tag, c.vAddr, pAddr, c.result)
			p.rob.SetStoreInfo(c.tag, pAddr, c.result)
		}
	}
}

// memory2OOO counts down every in-flight entry's remaining latency. Once an
// entry's address is resolved and its latency has elapsed, a pure load
// checks the store buffer for forwarding every cycle (retrying without
// consuming further latency on ForwardStall, since an older resolved
// store only partially overlaps the load and must drain first) before
// falling back to a real memory access; AMOs perform their real access
// here, while a plain store's write waits for Commit.
func (p *Pipeline) memory2OOO() {
	for i := range p.inFlight {
		c := &p.inFlight[i]
		if c.done {
			continue
		}
		if c.remaining > 0 {
			c.remaining--
			continue
		}
		if c.trap != nil {
			c.done = true
			continue
		}
		if !c.hasPAddr {
			continue
		}
		if c.ctrl.MemRead && !c.ctrl.IsAMO {
			outcome := p.storeBuf.ForwardLoad(c.pAddr, c.ctrl.MemWidth)
			switch outcome.Result {
			case rob.ForwardStall:
				continue // partially overlapping store not yet drained; retry next cycle
			case rob.ForwardHit:
				c.result = outcome.Value
			case rob.ForwardMiss:
				c.result = p.performMemAccess(ExMemEntry{Inst: c.inst, Ctrl: c.ctrl, PAddr: c.pAddr, StoreData: c.result})
			}
			c.done = true
			continue
		}
		if c.ctrl.IsAMO {
			// AMOs bypass the store buffer (issueOOO never allocates one for
			// them) and perform their read-modify-write immediately; a plain
			// store's actual memory write is deferred to Commit's store
			// buffer drain so it never becomes visible out of order.
			c.result = p.performMemAccess(ExMemEntry{Inst: c.inst, Ctrl: c.ctrl, PAddr: c.pAddr, StoreData: c.result})
		}
		c.done = true
	}
}

// writebackOOO reports every finished in-flight entry's result to the ROB
// and clears it from the completion list.
func (p *Pipeline) writebackOOO() {
	remaining := p.inFlight[:0]
	for _, c := range p.inFlight {
		if !c.done {
			remaining = append(remaining, c)
			continue
		}
		if c.trap != nil {
			p.rob.Fault(c.tag, *c.trap, rob.StageMemory)
		} else {
			p.rob.Complete(c.tag, c.result)
		}
	}
	p.inFlight = remaining
}

// commitOOO retires the ROB head once it is no longer Issued, applying its
// architectural side effect (register write, CSR write, store-buffer
// drain) or entering a trap, strictly in program order regardless of the
// order instructions actually completed execution in.
func (p *Pipeline) commitOOO() {
	e, ok := p.rob.CommitHead()
	if !ok {
		return
	}
	p.st.Incr(stats.KeyInstructionsRetired)
	p.regFile.PC = e.PC

	if e.State == rob.Faulted {
		p.enterTrap(*e.Trap)
		return
	}

	if e.RegWrite {
		if e.FPRegWrite {
			p.regFile.WriteFReg(uint8(e.Rd), e.Result)
		} else if e.Rd != 0 {
			p.regFile.WriteReg(uint8(e.Rd), e.Result)
		}
		p.scoreboard.ClearIfMatch(e.Rd, e.FPRegWrite, e.Tag)
	}

	if e.CSRUpdate != nil {
		p.csr.Write(uint16(e.CSRUpdate.Addr), e.CSRUpdate.NewVal)
	}

	if e.StoreAddr != 0 {
		p.storeBuf.MarkCommitted(e.Tag)
		if entry, ok := p.storeBuf.DrainOne(); ok && entry.HasPAddr {
			p.drainStore(entry)
		}
	}

	if inst := p.decodeAt(e.Inst, e.InstSize); inst != nil && inst.Format == insts.FormatSystem {
		p.commitSystemOOO(inst)
	}
}

// drainStore performs a committed store's deferred write to memory, sized
// to the width resolved at issue, going through the attached data cache
// (if any) the same way the in-order backend's data accesses do.
func (p *Pipeline) drainStore(entry rob.StoreEntry) {
	size := memWidthBytes(entry.Width)
	if size == 0 {
		size = 8
	}
	if p.dcache != nil {
		res := p.dcache.Write(entry.PAddr, size, entry.Data)
		if res.Hit {
			p.st.Incr(stats.KeyDCacheHits)
		} else {
			p.st.Incr(stats.KeyDCacheMisses)
		}
	}
	switch entry.Width {
	case rob.WidthByte:
		p.lsu.Sb(entry.PAddr, entry.Data)
	case rob.WidthHalf:
		p.lsu.Sh(entry.PAddr, entry.Data)
	case rob.WidthWord:
		p.lsu.Sw(entry.PAddr, entry.Data)
	default:
		p.lsu.Sd(entry.PAddr, entry.Data)
	}
}

// decodeAt re-decodes a committed ROB entry's raw instruction word, since
// rob.Entry stores only the bare encoding rather than a resolved
// *insts.Instruction, so Commit can recognize System-format instructions
// (ECALL/EBREAK/MRET/SRET/SFENCE.VMA) that carry no register-file or CSR
// side effect of their own.
func (p *Pipeline) decodeAt(raw uint32, size uint64) *insts.Instruction {
	if raw == 0 {
		return nil
	}
	if size == 2 {
		inst := p.decoder.Decode16(uint16(raw))
		return inst
	}
	return p.decoder.Decode32(raw)
}

// commitSystemOOO mirrors the in-order backend's commitSystem for the
// out-of-order backend, applied once a System-format instruction is the
// oldest in-flight entry and therefore safe to act on.
func (p *Pipeline) commitSystemOOO(inst *insts.Instruction) {
	switch inst.Op {
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
		vAddr := p.regFile.ReadReg(inst.Rs1)
		asid := mmu.ASID(p.regFile.ReadReg(inst.Rs2))
		p.mmu.SFENCE(vAddr, asid, inst.Rs2 != 0)
	}
}
