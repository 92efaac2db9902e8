// Package mmu implements SV39 virtual memory translation: a three-level
// page table walker over the emulator's physical memory plus split
// instruction/data TLBs with LRU replacement, ASID-tagged the way the
// rest of this simulator tags per-process state.
package mmu

// physMemory is the subset of emu.Memory the page table walker needs. It
// is declared locally rather than imported from emu to keep mmu free of a
// dependency on the functional core, which in turn depends on mmu for
// address translation.
type physMemory interface {
	Read64(addr uint64) uint64
}

// PTE bit positions within an SV39 page table entry.
const (
	pteV = 1 << 0 // valid
	pteR = 1 << 1 // readable
	pteW = 1 << 2 // writable
	pteX = 1 << 3 // executable
	pteU = 1 << 4 // user-accessible
	pteG = 1 << 5 // global
	pteA = 1 << 6 // accessed
	pteD = 1 << 7 // dirty
)

const (
	pageShift  = 12
	pageSize   = 1 << pageShift
	pteSize    = 8
	entriesPerPage = pageSize / pteSize
)

// AccessKind identifies the purpose of a translation request, used to
// choose the iTLB vs. dTLB and to check the PTE's permission bits.
type AccessKind int

const (
	AccessFetch AccessKind = iota
	AccessLoad
	AccessStore
)

// FaultKind reports why a translation failed, mapped by the caller to
// the corresponding emu.TrapCause (instruction/load/store page fault).
type FaultKind int

const (
	FaultNone FaultKind = iota
	FaultPage
)

// satp layout (RV64, MODE field: 0 = Bare, 8 = Sv39).
const (
	satpModeShift = 60
	satpModeSv39  = 8
	satpASIDShift = 44
	satpASIDMask  = 0xFFFF
	satpPPNMask   = (uint64(1) << 44) - 1
)

// satpMode reports the translation mode encoded in the given satp value.
func satpMode(satp uint64) uint64 {
	return satp >> satpModeShift
}

// satpASID extracts the address-space identifier from satp.
func satpASID(satp uint64) ASID {
	return ASID((satp >> satpASIDShift) & satpASIDMask)
}

// satpRootPPN extracts the root page table's physical page number.
func satpRootPPN(satp uint64) uint64 {
	return satp & satpPPNMask
}

// pageTableWalker performs the SV39 3-level walk described in the
// privileged spec: three 9-bit VPN fields index successive page-table
// levels until a leaf PTE (R, W, or X set) terminates the walk.
type pageTableWalker struct {
	mem physMemory
}

func newPageTableWalker(mem physMemory) *pageTableWalker {
	return &pageTableWalker{mem: mem}
}

// vpn returns the 9-bit virtual page number field at the given level
// (0 = least significant) of a 39-bit SV39 virtual address.
func vpn(vAddr uint64, level int) uint64 {
	return (vAddr >> (pageShift + 9*level)) & 0x1FF
}

// walk translates vAddr under the page table rooted at rootPPN, returning
// the resolved physical address and its PTE flags, or ok=false on a
// fault (invalid entry, permission mismatch, or misaligned superpage).
func (w *pageTableWalker) walk(rootPPN uint64, vAddr uint64, kind AccessKind) (pAddr uint64, flags uint64, ok bool) {
	ppn := rootPPN
	var pte uint64
	level := 2

	for {
		tableAddr := ppn * pageSize
		entryAddr := tableAddr + vpn(vAddr, level)*pteSize
		pte = w.mem.Read64(entryAddr)

		if pte&pteV == 0 {
			return 0, 0, false
		}
		if pte&(pteR|pteW|pteX) != 0 {
			break // leaf
		}
		if level == 0 {
			return 0, 0, false
		}
		ppn = (pte >> 10) & ((1 << 44) - 1)
		level--
	}

	if !permitted(pte, kind) {
		return 0, 0, false
	}

	// Superpage alignment: a leaf found above level 0 must have its
	// lower PPN fields zero, else it is a misaligned-superpage fault.
	leafPPN := (pte >> 10) & ((1 << 44) - 1)
	for i := 0; i < level; i++ {
		if (leafPPN>>(9*i))&0x1FF != 0 {
			return 0, 0, false
		}
	}

	pageBase := leafPPN * pageSize
	offsetBits := pageShift + 9*level
	offsetMask := (uint64(1) << offsetBits) - 1
	pAddr = pageBase&^offsetMask | vAddr&offsetMask

	return pAddr, pte, true
}

// permitted checks a leaf PTE's R/W/X bits against the access kind. The U
// bit is not checked, so the current privilege level does not affect the
// result, and the supervisor-mode SUM/MXR refinements are not modeled: this is a
// single address-space functional simulator without a notion of the
// kernel touching user pages under a cross-privilege syscall boundary.
func permitted(pte uint64, kind AccessKind) bool {
	switch kind {
	case AccessFetch:
		return pte&pteX != 0
	case AccessStore:
		return pte&pteW != 0
	default:
		return pte&pteR != 0
	}
}
