package mmu

// defaultTLBWays is the number of entries in each of the split TLBs, sized
// like a small fully-associative hardware TLB.
const defaultTLBWays = 64

// MMU performs SV39 address translation on behalf of the emulator's
// instruction fetch and load/store paths. Bare mode (satp.MODE == 0)
// is an identity map, matching a hart that hasn't yet turned on paging.
type MMU struct {
	walker *pageTableWalker
	itlb   *tlb
	dtlb   *tlb
}

// NewMMU creates an MMU backed by the given physical memory.
func NewMMU(mem physMemory) *MMU {
	return &MMU{
		walker: newPageTableWalker(mem),
		itlb:   newTLB(defaultTLBWays),
		dtlb:   newTLB(defaultTLBWays),
	}
}

// Translate resolves vAddr to a physical address under the translation
// scheme selected by satp. ok is false on a page fault; the caller is
// responsible for raising the matching emu.Trap (InstPageFault for
// AccessFetch, LoadPageFault/StorePageFault otherwise).
func (m *MMU) Translate(satp uint64, vAddr uint64, kind AccessKind) (pAddr uint64, ok bool) {
	if satpMode(satp) != satpModeSv39 {
		return vAddr, true
	}

	asid := satpASID(satp)
	t := m.tlbFor(kind)

	if entry, found := t.lookup(asid, vAddr); found {
		if !permitted(entry.flags, kind) {
			return 0, false
		}
		return entry.pAddr | (vAddr & (pageSize - 1)), true
	}

	pAddr, flags, walked := m.walker.walk(satpRootPPN(satp), vAddr, kind)
	if !walked {
		return 0, false
	}

	t.insert(asid, vAddr, pageAlign(pAddr), flags)
	return pAddr, true
}

func (m *MMU) tlbFor(kind AccessKind) *tlb {
	if kind == AccessFetch {
		return m.itlb
	}
	return m.dtlb
}

// SFENCE handles the SFENCE.VMA instruction's TLB invalidation: rs1 (a
// virtual address, or 0 for "all addresses") and rs2 (an ASID, or
// hasASID false for "all address spaces") select the scope per the
// privileged spec's encoding of the two optional operands.
func (m *MMU) SFENCE(vAddr uint64, asid ASID, hasASID bool) {
	global := !hasASID
	m.itlb.flush(asid, vAddr, global)
	m.dtlb.flush(asid, vAddr, global)
}
