package mmu

import (
	"container/list"

	"github.com/sarchlab/akita/v4/mem/vm"
)

// ASID is an address-space identifier, tagging TLB entries the way the
// satp CSR's ASID field partitions translations between processes. It is
// the same concept as akita's vm.PID (a process identifier distinguishing
// translations in a shared page/TLB structure), reused directly rather
// than redefined.
type ASID = vm.PID

type tlbKey struct {
	asid ASID
	vpn  uint64 // page-aligned virtual address
}

type tlbEntry struct {
	key   tlbKey
	pAddr uint64
	flags uint64
}

// tlb is a fully-associative, LRU-replaced translation cache. The
// doubly-linked list holds entries in most-to-least-recently-used order
// (front is the most recent, back is the next victim),
// mirroring the list+map combination akita's page table uses for its
// per-process entry storage.
type tlb struct {
	ways    int
	entries *list.List
	index   map[tlbKey]*list.Element
}

func newTLB(ways int) *tlb {
	return &tlb{
		ways:    ways,
		entries: list.New(),
		index:   make(map[tlbKey]*list.Element),
	}
}

func pageAlign(addr uint64) uint64 {
	return addr &^ (pageSize - 1)
}

// lookup returns the cached translation for vAddr under asid, if present,
// and marks it most-recently-used.
func (t *tlb) lookup(asid ASID, vAddr uint64) (tlbEntry, bool) {
	key := tlbKey{asid: asid, vpn: pageAlign(vAddr)}
	elem, ok := t.index[key]
	if !ok {
		return tlbEntry{}, false
	}
	t.entries.MoveToFront(elem)
	return elem.Value.(tlbEntry), true
}

// insert adds or refreshes a translation, evicting the least-recently-used
// entry first if the TLB is at capacity.
func (t *tlb) insert(asid ASID, vAddr uint64, pAddr uint64, flags uint64) {
	key := tlbKey{asid: asid, vpn: pageAlign(vAddr)}
	if elem, ok := t.index[key]; ok {
		elem.Value = tlbEntry{key: key, pAddr: pAddr, flags: flags}
		t.entries.MoveToFront(elem)
		return
	}

	if t.entries.Len() >= t.ways {
		back := t.entries.Back()
		if back != nil {
			t.entries.Remove(back)
			delete(t.index, back.Value.(tlbEntry).key)
		}
	}

	elem := t.entries.PushFront(tlbEntry{key: key, pAddr: pAddr, flags: flags})
	t.index[key] = elem
}

// flush implements SFENCE.VMA's invalidation semantics. A zero vAddr
// flushes every page and a nonzero vAddr flushes just that page; the
// scope is the given asid, or every ASID when global is true.
func (t *tlb) flush(asid ASID, vAddr uint64, global bool) {
	if global && vAddr == 0 {
		t.entries.Init()
		t.index = make(map[tlbKey]*list.Element)
		return
	}

	for key, elem := range t.index {
		matchASID := global || key.asid == asid
		matchAddr := vAddr == 0 || key.vpn == pageAlign(vAddr)
		if matchASID && matchAddr {
			t.entries.Remove(elem)
			delete(t.index, key)
		}
	}
}
