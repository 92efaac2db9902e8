package rob

// MemWidth is the width of a store buffer entry's memory operation.
type MemWidth int

const (
	WidthNop MemWidth = iota
	WidthByte
	WidthHalf
	WidthWord
	WidthDouble
)

func (w MemWidth) bytes() uint64 {
	switch w {
	case WidthByte:
		return 1
	case WidthHalf:
		return 2
	case WidthWord:
		return 4
	case WidthDouble:
		return 8
	default:
		return 0
	}
}

// ForwardResult is the outcome of a store-to-load forwarding check.
type ForwardResult int

const (
	// ForwardHit means a pending store fully covers the load; Value holds
	// the forwarded data.
	ForwardHit ForwardResult = iota
	// ForwardMiss means no pending store overlaps the load; read memory.
	ForwardMiss
	// ForwardStall means a pending store partially overlaps the load; the
	// load must wait until that store drains to memory.
	ForwardStall
)

// ForwardOutcome is the result of a store buffer forwarding check; Value
// is only meaningful when Result is ForwardHit.
type ForwardOutcome struct {
	Result ForwardResult
	Value  uint64
}

// StoreState is the lifecycle of a store buffer entry.
type StoreState int

const (
	// StorePending means the address/data are not yet resolved.
	StorePending StoreState = iota
	// StoreReady means address and data are resolved, awaiting commit.
	StoreReady
	// StoreCommitted means the ROB has retired the store; it can drain.
	StoreCommitted
)

// StoreEntry is a single store buffer slot.
type StoreEntry struct {
	Tag    Tag
	VAddr  uint64
	PAddr  uint64
	HasPAddr bool
	Data   uint64
	Width  MemWidth
	State  StoreState
	Valid  bool
}

// StoreBuffer is a FIFO of stores deferred until their owning instruction
// commits from the ROB, so a squashed store never touches memory.
type StoreBuffer struct {
	entries []StoreEntry
	head    int
	tail    int
	count   int
}

// NewStoreBuffer creates a store buffer with the given capacity.
func NewStoreBuffer(capacity int) *StoreBuffer {
	return &StoreBuffer{entries: make([]StoreEntry, capacity)}
}

func (b *StoreBuffer) Capacity() int  { return len(b.entries) }
func (b *StoreBuffer) Len() int       { return b.count }
func (b *StoreBuffer) IsEmpty() bool  { return b.count == 0 }
func (b *StoreBuffer) IsFull() bool   { return b.count == len(b.entries) }
func (b *StoreBuffer) FreeSlots() int { return len(b.entries) - b.count }

// Allocate reserves a slot for a store entering the backend. ok is false
// if the buffer is full.
func (b *StoreBuffer) Allocate(tag Tag, width MemWidth) bool {
	if b.IsFull() {
		return false
	}
	b.entries[b.tail] = StoreEntry{Tag: tag, Width: width, State: StorePending, Valid: true}
	b.tail = (b.tail + 1) % len(b.entries)
	b.count++
	return true
}

// Resolve fills in a store's address and data once known, after
// translation and operand readiness.
func (b *StoreBuffer) Resolve(tag Tag, vaddr, paddr, data uint64) {
	if e := b.findMut(tag); e != nil {
		e.VAddr = vaddr
		e.PAddr = paddr
		e.HasPAddr = true
		e.Data = data
		e.State = StoreReady
	}
}

// MarkCommitted marks a Ready store Committed once the ROB retires it.
func (b *StoreBuffer) MarkCommitted(tag Tag) {
	if e := b.findMut(tag); e != nil && e.State == StoreReady {
		e.State = StoreCommitted
	}
}

// ForwardLoad checks whether any pending store satisfies a load to paddr,
// searching newest-to-oldest so the most recent overlapping store wins.
func (b *StoreBuffer) ForwardLoad(paddr uint64, width MemWidth) ForwardOutcome {
	loadSize := width.bytes()
	loadStart, loadEnd := paddr, paddr+loadSize

	idx := b.prevIdx(b.tail)
	for i := 0; i < b.count; i++ {
		e := &b.entries[idx]
		if e.Valid && e.HasPAddr {
			storeSize := e.Width.bytes()
			storeStart, storeEnd := e.PAddr, e.PAddr+storeSize

			if loadStart < storeEnd && loadEnd > storeStart {
				if storeStart <= loadStart && storeEnd >= loadEnd {
					offset := loadStart - storeStart
					shifted := e.Data >> (offset * 8)
					var mask uint64 = ^uint64(0)
					if loadSize < 8 {
						mask = (uint64(1) << (loadSize * 8)) - 1
					}
					return ForwardOutcome{Result: ForwardHit, Value: shifted & mask}
				}
				return ForwardOutcome{Result: ForwardStall}
			}
		}
		idx = b.prevIdx(idx)
	}
	return ForwardOutcome{Result: ForwardMiss}
}

// DrainOne removes and returns the oldest Committed store, so the caller
// can write it to memory one per cycle. ok is false if the head entry is
// not yet Committed.
func (b *StoreBuffer) DrainOne() (StoreEntry, bool) {
	if b.count == 0 {
		return StoreEntry{}, false
	}
	e := b.entries[b.head]
	if !e.Valid || e.State != StoreCommitted {
		return StoreEntry{}, false
	}
	b.entries[b.head].Valid = false
	b.head = (b.head + 1) % len(b.entries)
	b.count--
	return e, true
}

// FlushSpeculative discards every non-Committed entry, keeping only
// stores already retired from the ROB.
func (b *StoreBuffer) FlushSpeculative() {
	b.filterKeep(func(e StoreEntry) bool { return e.Valid && e.State == StoreCommitted })
}

// FlushAfter discards entries whose tag is strictly newer than keepTag,
// used on a branch misprediction to squash stores issued after the
// mispredicted branch while keeping those already in flight ahead of it.
func (b *StoreBuffer) FlushAfter(keepTag Tag) {
	b.filterKeep(func(e StoreEntry) bool { return e.Valid && e.Tag <= keepTag })
}

// FlushAll discards every entry, including Committed ones.
func (b *StoreBuffer) FlushAll() {
	for i := range b.entries {
		b.entries[i].Valid = false
	}
	b.head, b.tail, b.count = 0, 0, 0
}

// Cancel removes a store that will never be written, used for a failed
// store-conditional.
func (b *StoreBuffer) Cancel(tag Tag) {
	cap := len(b.entries)
	idx := b.head
	for i := 0; i < b.count; i++ {
		if b.entries[idx].Valid && b.entries[idx].Tag == tag {
			prevTail := b.prevIdx(b.tail)
			if idx == prevTail {
				b.entries[idx].Valid = false
				b.tail = prevTail
				b.count--
			} else {
				// Not at the tail: mark it Committed with HasPAddr
				// false; DrainOne still returns it, and the caller
				// writes nothing for an entry without an address.
				b.entries[idx].State = StoreCommitted
				b.entries[idx].HasPAddr = false
			}
			return
		}
		idx = (idx + 1) % cap
	}
}

func (b *StoreBuffer) filterKeep(keep func(StoreEntry) bool) {
	if b.count == 0 {
		return
	}

	cap := len(b.entries)
	newTail := b.head
	newCount := 0
	idx := b.head

	for i := 0; i < b.count; i++ {
		e := b.entries[idx]
		if keep(e) {
			if idx != newTail {
				b.entries[newTail] = e
				b.entries[idx].Valid = false
			}
			newTail = (newTail + 1) % cap
			newCount++
		} else {
			b.entries[idx].Valid = false
		}
		idx = (idx + 1) % cap
	}

	b.tail = newTail
	b.count = newCount
}

func (b *StoreBuffer) findMut(tag Tag) *StoreEntry {
	cap := len(b.entries)
	idx := b.head
	for i := 0; i < b.count; i++ {
		if b.entries[idx].Valid && b.entries[idx].Tag == tag {
			return &b.entries[idx]
		}
		idx = (idx + 1) % cap
	}
	return nil
}

func (b *StoreBuffer) prevIdx(idx int) int {
	if idx == 0 {
		return len(b.entries) - 1
	}
	return idx - 1
}
