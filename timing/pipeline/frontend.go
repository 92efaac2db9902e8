package pipeline

import (
	"github.com/sarchlab/rvsim64/config"
	"github.com/sarchlab/rvsim64/emu"
	"github.com/sarchlab/rvsim64/insts"
	"github.com/sarchlab/rvsim64/mmu"
	"github.com/sarchlab/rvsim64/stats"
	"github.com/sarchlab/rvsim64/timing/rob"
)

// icacheLatency returns the cycle cost of fetching one halfword at pAddr,
// consulting the instruction cache if one is attached.
func (p *Pipeline) icacheLatency(pAddr uint64) uint64 {
	if p.icache == nil {
		return 1
	}
	res := p.icache.Read(pAddr, 2)
	if res.Hit {
		p.st.Incr(stats.KeyICacheHits)
	} else {
		p.st.Incr(stats.KeyICacheMisses)
	}
	return res.Latency
}

// fetch1 starts a new instruction fetch when the frontend is idle,
// translating the low halfword's address and issuing the instruction
// cache access whose latency Fetch2 waits out.
func (p *Pipeline) fetch1() {
	if p.pendingFetch.active {
		return
	}
	if p.ifid.Valid {
		return // Decode has not consumed the previous fetch yet.
	}

	pc := p.fetchPC
	pAddr, trap := p.translate(pc, mmu.AccessFetch)
	if trap != nil {
		p.pendingFetch = pendingFetch{active: true, pc: pc, remaining: 1, trap: trap}
		return
	}

	p.pendingFetch = pendingFetch{active: true, pc: pc, remaining: p.icacheLatency(pAddr)}
}

// fetch2 waits out the pending fetch's latency, possibly issuing a second
// halfword access for a non-compressed instruction, and deposits the
// fully formed instruction into IfId once ready.
func (p *Pipeline) fetch2() {
	pf := &p.pendingFetch
	if !pf.active {
		return
	}
	if pf.remaining > 0 {
		pf.remaining--
		return
	}
	if p.ifid.Valid {
		return
	}

	if pf.trap != nil {
		p.ifid = IfIdEntry{Valid: true, PC: pf.pc, Trap: pf.trap}
		*pf = pendingFetch{}
		return
	}

	if !pf.haveLow {
		pAddrLow, _ := p.translate(pf.pc, mmu.AccessFetch)
		pf.lowHalf = uint16(p.readHalf(pAddrLow))

		if pf.lowHalf&0x3 != 0x3 {
			p.completeFetch(pf.pc, pf.lowHalf, nil)
			*pf = pendingFetch{}
			return
		}

		pf.haveLow = true
		hiAddr, trap := p.translate(pf.pc+2, mmu.AccessFetch)
		if trap != nil {
			pf.trap = trap
			pf.remaining = 0
			return
		}
		pf.remaining = p.icacheLatency(hiAddr)
		return
	}

	hiAddr, trap := p.translate(pf.pc+2, mmu.AccessFetch)
	if trap != nil {
		p.ifid = IfIdEntry{Valid: true, PC: pf.pc, Trap: trap}
		*pf = pendingFetch{}
		return
	}
	hi := p.readHalf(hiAddr)
	word := uint32(pf.lowHalf) | uint32(hi)<<16
	p.completeFetch(pf.pc, 0, &word)
	*pf = pendingFetch{}
}

func (p *Pipeline) readHalf(pAddr uint64) uint16 {
	return p.memory.Read16(pAddr)
}

// completeFetch decodes the fetched bits (compressed if word is nil,
// 32-bit otherwise), consults the branch predictor for the next fetch PC,
// and deposits the result into IfId.
func (p *Pipeline) completeFetch(pc uint64, low uint16, word *uint32) {
	var inst *insts.Instruction
	if word == nil {
		inst = p.decoder.Decode16(low)
	} else {
		inst = p.decoder.Decode32(*word)
	}

	if inst.Size == 0 {
		inst.Size = 4
	}

	taken, target, targetKnown := p.predictor.PredictBranch(pc)

	var next uint64
	if taken && targetKnown {
		next = target
	} else {
		next = pc + uint64(inst.Size)
	}

	p.ifid = IfIdEntry{
		Valid:       true,
		PC:          pc,
		Inst:        inst,
		InstSize:    uint64(inst.Size),
		PredTaken:   taken && targetKnown,
		PredTarget:  target,
		TargetKnown: targetKnown,
	}
	p.fetchPC = next
}

// decode classifies the fetched instruction's control signals, passing
// traps straight through to Commit without touching any functional unit.
func (p *Pipeline) decode() {
	if !p.ifid.Valid {
		return
	}
	if p.decodeOut.Valid {
		return
	}

	e := p.ifid
	p.ifid = IfIdEntry{}

	if e.Trap != nil {
		p.decodeOut = IdExEntry{Valid: true, PC: e.PC, Trap: e.Trap}
		return
	}

	if e.Inst.Op == insts.OpIllegal {
		trap := &emu.Trap{Cause: emu.TrapIllegalInst, Tval: uint64(e.Inst.Raw)}
		p.decodeOut = IdExEntry{Valid: true, PC: e.PC, Inst: e.Inst, InstSize: e.InstSize, Trap: trap}
		return
	}

	p.decodeOut = IdExEntry{
		Valid:       true,
		PC:          e.PC,
		Inst:        e.Inst,
		InstSize:    e.InstSize,
		Ctrl:        decodeSignals(e.Inst),
		PredTaken:   e.PredTaken,
		PredTarget:  e.PredTarget,
		TargetKnown: e.TargetKnown,
	}
}

// rename resolves each source operand either from the architectural
// register file (if no in-flight producer remains) or from the
// appropriate in-flight producer tracking structure, generalizing a
// physical-register rename stage to this simulator's non-renaming,
// scoreboard/ROB-tracked register file.
func (p *Pipeline) rename() {
	if !p.decodeOut.Valid {
		return
	}
	if p.renameOut.Valid {
		return
	}

	e := p.decodeOut
	p.decodeOut = IdExEntry{}

	if e.Trap != nil || e.Inst == nil {
		p.renameOut = e
		return
	}

	inst := e.Inst
	isR4 := inst.Format == insts.FormatR4
	if p.backend == config.BackendOutOfOrder {
		e.RV1, e.Rs1Ready, e.Rs1Tag = p.resolveOperandOOO(int(inst.Rs1), false)
		e.RV2, e.Rs2Ready, e.Rs2Tag = p.resolveOperandOOO(int(inst.Rs2), isFPSource(inst))
		if isR4 {
			e.RV3, e.Rs3Ready, e.Rs3Tag = p.resolveOperandOOO(int(inst.Rs3), true)
		} else {
			e.Rs3Ready = true
		}
	} else {
		e.RV1, e.Rs1Ready = p.readOperandInOrder(int(inst.Rs1), false)
		e.RV2, e.Rs2Ready = p.readOperandInOrder(int(inst.Rs2), isFPSource(inst))
		if isR4 {
			e.RV3, e.Rs3Ready = p.readOperandInOrder(int(inst.Rs3), true)
		} else {
			e.Rs3Ready = true
		}
	}

	p.renameOut = e
}

func (p *Pipeline) readOperandInOrder(reg int, isFP bool) (uint64, bool) {
	if isFP {
		if p.busyFP[reg] {
			return 0, false
		}
		return p.regFile.ReadFReg(uint8(reg)), true
	}
	if p.busyInt[reg] {
		return 0, false
	}
	return p.regFile.ReadReg(uint8(reg)), true
}

func (p *Pipeline) resolveOperandOOO(reg int, isFP bool) (value uint64, ready bool, tag rob.Tag) {
	producer, has := p.scoreboard.GetProducer(reg, isFP)
	if !has {
		if isFP {
			return p.regFile.ReadFReg(uint8(reg)), true, 0
		}
		return p.regFile.ReadReg(uint8(reg)), true, 0
	}
	if v, ok := p.rob.FindLatestResult(reg, isFP); ok {
		return v, true, 0
	}
	return 0, false, producer
}

// isFPSource reports whether Rs2 (the only source that can be FP-typed
// outside an R4 instruction) names a floating-point register: either the
// destination of an R-format FP op, or the data source of an FP store.
func isFPSource(inst *insts.Instruction) bool {
	return isFPDest(inst.Op) || inst.Op == insts.OpFsw || inst.Op == insts.OpFsd
}
