// Package rob implements the out-of-order backend's in-flight instruction
// bookkeeping: a circular reorder buffer for in-order commit, a tag-based
// register scoreboard for single-lookup dependency resolution, and a
// program-ordered (FIFO) store buffer with store-to-load forwarding. Generalizes
// timing/pipeline's flat pipeline-register idiom (plain struct fields,
// Valid bool, explicit per-tick methods) to the tagged, circular-buffer
// shape an out-of-order backend needs for speculative execution past
// in-flight branches.
package rob

import "github.com/sarchlab/rvsim64/emu"

// Tag uniquely identifies an in-flight instruction. Tag(0) is reserved as
// the zero value meaning "no producer"; Allocate never returns it.
type Tag uint32

// State is the lifecycle of a ROB entry.
type State int

const (
	// Issued means the entry is allocated but its instruction has not yet
	// finished executing.
	Issued State = iota
	// Completed means execution finished and Result holds its value.
	Completed
	// Faulted means the instruction raised a trap, taken when it reaches
	// the ROB head.
	Faulted
)

// ExceptionStage names the pipeline stage where a fault was first detected,
// carried through to commit so trap reporting can distinguish an
// instruction-fetch fault from a data fault at the same PC.
type ExceptionStage int

const (
	StageFetch ExceptionStage = iota
	StageDecode
	StageExecute
	StageMemory
)

// CSRUpdate is a deferred CSR write, applied only when its instruction
// commits, so a squashed CSR instruction never mutates architectural state.
type CSRUpdate struct {
	Addr   uint32
	OldVal uint64
	NewVal uint64
}

// Entry is a single ROB slot.
type Entry struct {
	Tag        Tag
	PC         uint64
	Inst       uint32
	InstSize   uint64
	Rd         int
	RdFP       bool
	RegWrite   bool
	FPRegWrite bool
	Result     uint64
	StoreData  uint64
	StoreAddr  uint64
	State      State
	Trap       *emu.Trap
	ExcStage   ExceptionStage
	CSRUpdate  *CSRUpdate
	Valid      bool
}

// ROB is a circular reorder buffer: instructions enter at the tail in
// program order and retire from the head once completed or faulted,
// regardless of the order in which they actually finished executing.
type ROB struct {
	entries []Entry
	head    int
	tail    int
	count   int
	nextTag uint32
}

// New creates a ROB with the given capacity.
func New(capacity int) *ROB {
	return &ROB{entries: make([]Entry, capacity)}
}

// Capacity returns the number of slots.
func (r *ROB) Capacity() int { return len(r.entries) }

// Len returns the number of occupied slots.
func (r *ROB) Len() int { return r.count }

// IsEmpty reports whether the ROB holds no in-flight instructions.
func (r *ROB) IsEmpty() bool { return r.count == 0 }

// IsFull reports whether the ROB has no free slot left.
func (r *ROB) IsFull() bool { return r.count == len(r.entries) }

// FreeSlots returns the number of unoccupied slots.
func (r *ROB) FreeSlots() int { return len(r.entries) - r.count }

// Allocate reserves the next ROB slot for an instruction entering the
// backend, returning its tag. ok is false if the ROB is full.
func (r *ROB) Allocate(pc uint64, inst uint32, instSize uint64, rd int, rdFP, regWrite, fpRegWrite bool) (tag Tag, ok bool) {
	if r.IsFull() {
		return 0, false
	}

	r.nextTag++
	if r.nextTag == 0 {
		r.nextTag = 1 // skip the reserved zero tag
	}
	tag = Tag(r.nextTag)

	r.entries[r.tail] = Entry{
		Tag:        tag,
		PC:         pc,
		Inst:       inst,
		InstSize:   instSize,
		Rd:         rd,
		RdFP:       rdFP,
		RegWrite:   regWrite,
		FPRegWrite: fpRegWrite,
		State:      Issued,
		Valid:      true,
	}

	r.tail = (r.tail + 1) % len(r.entries)
	r.count++
	return tag, true
}

// Complete marks tag's entry Completed with its result value.
func (r *ROB) Complete(tag Tag, result uint64) {
	if e := r.findMut(tag); e != nil {
		e.State = Completed
		e.Result = result
	}
}

// Fault marks tag's entry Faulted with the given trap.
func (r *ROB) Fault(tag Tag, trap emu.Trap, stage ExceptionStage) {
	if e := r.findMut(tag); e != nil {
		e.State = Faulted
		e.Trap = &trap
		e.ExcStage = stage
	}
}

// SetCSRUpdate attaches a deferred CSR write to tag's entry.
func (r *ROB) SetCSRUpdate(tag Tag, update CSRUpdate) {
	if e := r.findMut(tag); e != nil {
		e.CSRUpdate = &update
	}
}

// SetStoreInfo records the resolved address and data for a store entry.
func (r *ROB) SetStoreInfo(tag Tag, addr, data uint64) {
	if e := r.findMut(tag); e != nil {
		e.StoreAddr = addr
		e.StoreData = data
	}
}

// PeekHead returns the oldest entry without removing it.
func (r *ROB) PeekHead() (Entry, bool) {
	if r.count == 0 {
		return Entry{}, false
	}
	return r.entries[r.head], true
}

// CommitHead retires the head entry if it is Completed or Faulted. ok is
// false if the ROB is empty or the head is still Issued.
func (r *ROB) CommitHead() (Entry, bool) {
	if r.count == 0 {
		return Entry{}, false
	}

	e := r.entries[r.head]
	if e.State == Issued {
		return Entry{}, false
	}

	r.entries[r.head].Valid = false
	r.head = (r.head + 1) % len(r.entries)
	r.count--
	return e, true
}

// FlushAll discards every in-flight entry, used on a full pipeline flush.
func (r *ROB) FlushAll() {
	for i := range r.entries {
		r.entries[i].Valid = false
	}
	r.head, r.tail, r.count = 0, 0, 0
}

// FlushAfter discards every entry allocated after tag (exclusive), used
// when a branch misprediction resolves at tag: everything younger is
// speculative and must be squashed.
func (r *ROB) FlushAfter(tag Tag) {
	if r.count == 0 {
		return
	}

	idx, found := r.head, false
	for i := 0; i < r.count; i++ {
		if r.entries[idx].Tag == tag {
			found = true
			break
		}
		idx = (idx + 1) % len(r.entries)
	}
	if !found {
		return
	}

	keepIdx := (idx + 1) % len(r.entries)
	for i := keepIdx; i != r.tail; i = (i + 1) % len(r.entries) {
		r.entries[i].Valid = false
	}
	r.tail = keepIdx

	r.count = 0
	for i := r.head; i != r.tail; i = (i + 1) % len(r.entries) {
		if r.entries[i].Valid {
			r.count++
		}
	}
}

// FindLatestResult returns the most recent Completed value written to reg,
// if any in-flight instruction produces it. A matching entry that is not
// yet Completed reports false (the caller must stall), distinct from no
// producer existing at all, which also reports false.
func (r *ROB) FindLatestResult(reg int, isFP bool) (uint64, bool) {
	if r.count == 0 || (!isFP && reg == 0) {
		return 0, false
	}

	idx := r.prevIdx(r.tail)
	for i := 0; i < r.count; i++ {
		e := &r.entries[idx]
		if e.Valid && e.Rd == reg && e.RdFP == isFP {
			if e.State == Completed {
				return e.Result, true
			}
			return 0, false
		}
		idx = r.prevIdx(idx)
	}
	return 0, false
}

// FindLatestProducer returns the most recent in-flight writer of reg,
// including entries still Issued, for use by rename/issue to detect a
// pending write regardless of whether its value is ready yet.
func (r *ROB) FindLatestProducer(reg int, isFP bool) (value uint64, ready bool, found bool) {
	if r.count == 0 || (!isFP && reg == 0) {
		return 0, false, false
	}

	idx := r.prevIdx(r.tail)
	for i := 0; i < r.count; i++ {
		e := &r.entries[idx]
		writes := e.RegWrite
		if isFP {
			writes = e.FPRegWrite
		}
		if e.Valid && e.Rd == reg && e.RdFP == isFP && writes {
			return e.Result, e.State == Completed, true
		}
		idx = r.prevIdx(idx)
	}
	return 0, false, false
}

// FindEntry returns tag's entry, if still in-flight.
func (r *ROB) FindEntry(tag Tag) (Entry, bool) {
	if e := r.findMut(tag); e != nil {
		return *e, true
	}
	return Entry{}, false
}

// ForEachValid calls f on every occupied entry from head to tail.
func (r *ROB) ForEachValid(f func(Entry)) {
	idx := r.head
	for i := 0; i < r.count; i++ {
		if r.entries[idx].Valid {
			f(r.entries[idx])
		}
		idx = (idx + 1) % len(r.entries)
	}
}

func (r *ROB) findMut(tag Tag) *Entry {
	if r.count == 0 {
		return nil
	}
	idx := r.head
	for i := 0; i < r.count; i++ {
		if r.entries[idx].Valid && r.entries[idx].Tag == tag {
			return &r.entries[idx]
		}
		idx = (idx + 1) % len(r.entries)
	}
	return nil
}

func (r *ROB) prevIdx(idx int) int {
	if idx == 0 {
		return len(r.entries) - 1
	}
	return idx - 1
}
