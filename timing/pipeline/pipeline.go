// Package pipeline implements the timing model's ten-stage core: Fetch1,
// Fetch2, Decode, Rename, Issue, Execute, Memory1, Memory2, Writeback, and
// Commit, generalizing original_source's Rust pipeline (mod.rs, latches.rs)
// into a scalar, single-issue Go pipeline with two selectable backends
// (in_order, out_of_order). Instruction semantics are never re-derived here:
// every stage that produces a value calls straight into the same emu
// functional units (ALU, MulDiv, FPU, BranchUnit, LoadStoreUnit,
// TrapController, CSRFile) the standalone functional emulator uses, so the
// timing model and the architectural model can never drift apart.
package pipeline

import (
	"os"

	"github.com/sarchlab/rvsim64/config"
	"github.com/sarchlab/rvsim64/emu"
	"github.com/sarchlab/rvsim64/insts"
	"github.com/sarchlab/rvsim64/mmu"
	"github.com/sarchlab/rvsim64/stats"
	"github.com/sarchlab/rvsim64/timing/cache"
	"github.com/sarchlab/rvsim64/timing/latency"
	"github.com/sarchlab/rvsim64/timing/predictor"
	"github.com/sarchlab/rvsim64/timing/rob"
)

// pendingFetch tracks a multi-cycle instruction fetch in progress, one
// halfword access at a time, mirroring the two discrete Fetch1/Fetch2
// stages rather than a single atomic memory read.
type pendingFetch struct {
	active    bool
	pc        uint64
	remaining uint64
	haveLow   bool
	lowHalf   uint16
	trap      *emu.Trap
}

// pendingMem tracks a multi-cycle data access in progress across
// Memory1/Memory2, for the in-order backend's scalar ExMem->MemWb path.
type pendingMem struct {
	active    bool
	remaining uint64
	entry     ExMemEntry
}

// Pipeline is a single scalar RV64IMAFDC pipeline sharing one register
// file and memory with the functional emulator's instruction semantics.
type Pipeline struct {
	regFile *emu.RegFile
	memory  *emu.Memory
	csr     *emu.CSRFile

	alu     *emu.ALU
	muldiv  *emu.MulDiv
	fpu     *emu.FPU
	lsu     *emu.LoadStoreUnit
	traps   *emu.TrapController
	decoder *insts.Decoder
	mmu     *mmu.MMU

	syscallHandler emu.SyscallHandler

	backend   config.Backend
	predictor *predictor.Predictor
	icache    *cache.Cache
	dcache    *cache.Cache
	lat       *latency.Table

	// In-order backend bookkeeping: one busy bit per architectural
	// register, set at Issue and cleared at Writeback, standing in for a
	// full forwarding network (see DESIGN.md).
	busyInt [32]bool
	busyFP  [32]bool

	// Out-of-order backend bookkeeping, built on the already-tag-based
	// timing/rob package.
	rob        *rob.ROB
	scoreboard *rob.Scoreboard
	storeBuf   *rob.StoreBuffer
	issueQueue []ooEntry
	inFlight   []ooCompletion

	fetchPC      uint64
	pendingFetch pendingFetch
	ifid         IfIdEntry
	decodeOut    IdExEntry
	renameOut    IdExEntry
	idex         IdExEntry
	exmem        ExMemEntry
	pendingMem   pendingMem
	memwb        MemWbEntry
	wbcm         WbCmEntry

	halted   bool
	exitCode int64
	cycles   uint64
	st       *stats.Stats
}

// WbCmEntry is produced by Writeback and consumed by Commit: the fully
// resolved, ready-to-retire register/memory effect of one instruction.
type WbCmEntry struct {
	Valid      bool
	PC         uint64
	Inst       *insts.Instruction
	InstSize   uint64
	Rd         uint8
	FPRegWrite bool
	Value      uint64
	CSRNewVal  uint64
	Ctrl       ControlSignals
	Trap       *emu.Trap
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithSyscallHandler overrides the default ECALL handler.
func WithSyscallHandler(h emu.SyscallHandler) Option {
	return func(p *Pipeline) { p.syscallHandler = h }
}

// WithLatencyTable overrides the default functional-unit latency table.
func WithLatencyTable(t *latency.Table) Option {
	return func(p *Pipeline) { p.lat = t }
}

// WithICache attaches an instruction cache; without one, fetches complete
// in a single cycle.
func WithICache(c *cache.Cache) Option {
	return func(p *Pipeline) { p.icache = c }
}

// WithDCache attaches a data cache; without one, loads/stores complete in
// a single cycle.
func WithDCache(c *cache.Cache) Option {
	return func(p *Pipeline) { p.dcache = c }
}

// WithPredictor overrides the default branch predictor.
func WithPredictor(pr *predictor.Predictor) Option {
	return func(p *Pipeline) { p.predictor = pr }
}

// WithBackend selects the in-order or out-of-order execution backend.
func WithBackend(b config.Backend) Option {
	return func(p *Pipeline) { p.backend = b }
}

// WithROBSize sets the out-of-order backend's reorder buffer capacity.
func WithROBSize(n int) Option {
	return func(p *Pipeline) { p.rob = rob.New(n) }
}

// WithStoreBufferSize sets the out-of-order backend's store buffer
// capacity.
func WithStoreBufferSize(n int) Option {
	return func(p *Pipeline) { p.storeBuf = rob.NewStoreBuffer(n) }
}

// WithStats attaches a stats.Stats collector; without one, a private one
// is created and discarded.
func WithStats(s *stats.Stats) Option {
	return func(p *Pipeline) { p.st = s }
}

// NewPipeline creates a Pipeline sharing regFile and memory with the
// functional model, applying opts after wiring the default functional
// units, a single in-order bimodal-free backend, and no caches.
func NewPipeline(regFile *emu.RegFile, memory *emu.Memory, opts ...Option) *Pipeline {
	csr := emu.NewCSRFile()
	p := &Pipeline{
		regFile: regFile,
		memory:  memory,
		csr:     csr,
		alu:     emu.NewALU(regFile),
		muldiv:  emu.NewMulDiv(),
		fpu:     emu.NewFPU(regFile),
		lsu:     emu.NewLoadStoreUnit(regFile, memory),
		traps:   emu.NewTrapController(regFile, csr),
		decoder: insts.NewDecoder(),
		mmu:     mmu.NewMMU(memory),
		backend: config.BackendInOrder,
		lat:     latency.NewTable(),
		st:      stats.New(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.predictor == nil {
		p.predictor = predictor.New(predictor.DefaultOptions(predictor.KindGShare))
	}
	if p.syscallHandler == nil {
		p.syscallHandler = emu.NewDefaultSyscallHandler(regFile, memory, os.Stdout, os.Stderr)
	}
	if p.backend == config.BackendOutOfOrder {
		if p.rob == nil {
			p.rob = rob.New(64)
		}
		if p.storeBuf == nil {
			p.storeBuf = rob.NewStoreBuffer(16)
		}
		p.scoreboard = rob.NewScoreboard()
	}

	return p
}

// SetPC sets the fetch program counter.
func (p *Pipeline) SetPC(pc uint64) {
	p.fetchPC = pc
	p.regFile.PC = pc
}

// PC returns the architectural program counter (the address of the
// instruction at or past Commit, not the in-flight fetch address).
func (p *Pipeline) PC() uint64 { return p.regFile.PC }

// CSR returns the pipeline's CSR file.
func (p *Pipeline) CSR() *emu.CSRFile { return p.csr }

// MMU returns the pipeline's address translation unit.
func (p *Pipeline) MMU() *mmu.MMU { return p.mmu }

// Halted reports whether the pipeline has stopped, which happens only when
// the program exits through the exit syscall; a trap never halts it.
func (p *Pipeline) Halted() bool { return p.halted }

// ExitCode returns the program's exit status, valid once Halted is true.
func (p *Pipeline) ExitCode() int64 { return p.exitCode }

// Stats returns the pipeline's statistics collector.
func (p *Pipeline) Stats() *stats.Stats { return p.st }

// Tick advances the pipeline by one cycle, running every stage in
// reverse pipeline order so each stage's output latch is drained before
// the stage feeding it runs, avoiding same-cycle overwrite races without
// any extra double-buffering.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}
	p.cycles++
	p.st.Incr(stats.KeyCycles)

	p.commit()
	p.writeback()
	p.memory2()
	p.memory1()
	p.execute()
	p.issue()
	p.rename()
	p.decode()
	p.fetch2()
	p.fetch1()
}

// Run ticks until the pipeline halts or maxCycles is reached (0 means
// unbounded).
func (p *Pipeline) Run(maxCycles uint64) {
	for i := uint64(0); maxCycles == 0 || i < maxCycles; i++ {
		if p.halted {
			return
		}
		p.Tick()
	}
}

// translate resolves a virtual address through the MMU, mirroring
// emu.Emulator.translate so both models report identical page-fault
// causes for identical failures.
func (p *Pipeline) translate(vAddr uint64, kind mmu.AccessKind) (uint64, *emu.Trap) {
	pAddr, ok := p.mmu.Translate(p.csr.Read(emu.CsrSatp), vAddr, kind)
	if ok {
		return pAddr, nil
	}
	cause := emu.TrapLoadPageFault
	switch kind {
	case mmu.AccessFetch:
		cause = emu.TrapInstPageFault
	case mmu.AccessStore:
		cause = emu.TrapStorePageFault
	}
	return 0, &emu.Trap{Cause: cause, Tval: vAddr}
}

// enterTrap redirects the fetch stream to the trap vector and flushes
// every in-flight instruction, used uniformly by both backends since a
// trap at commit always discards everything younger.
func (p *Pipeline) enterTrap(t emu.Trap) {
	p.regFile.PC = p.traps.Enter(t)
	p.fetchPC = p.regFile.PC
	p.flushAll()
}

func (p *Pipeline) flushAll() {
	p.pendingFetch = pendingFetch{}
	p.ifid = IfIdEntry{}
	p.decodeOut = IdExEntry{}
	p.renameOut = IdExEntry{}
	p.idex = IdExEntry{}
	p.exmem = ExMemEntry{}
	p.pendingMem = pendingMem{}
	p.memwb = MemWbEntry{}
	p.wbcm = WbCmEntry{}

	if p.backend == config.BackendOutOfOrder {
		p.rob.FlushAll()
		p.scoreboard.Flush()
		p.storeBuf.FlushAll()
		p.issueQueue = nil
		p.inFlight = nil
	} else {
		p.busyInt = [32]bool{}
		p.busyFP = [32]bool{}
	}
}

// redirectFetch reassigns the next fetch PC and discards everything
// currently in the frontend latches, used for a resolved branch
// misprediction (narrower than enterTrap: the backend's in-flight older
// instructions are untouched).
func (p *Pipeline) redirectFetch(pc uint64) {
	p.fetchPC = pc
	p.pendingFetch = pendingFetch{}
	p.ifid = IfIdEntry{}
	p.decodeOut = IdExEntry{}
	p.renameOut = IdExEntry{}
}
