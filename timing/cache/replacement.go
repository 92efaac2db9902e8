package cache

import (
	"math/rand"

	"github.com/sarchlab/rvsim64/config"
)

// block is one cache line's tag-store metadata. dataStore (in cache.go)
// holds the matching bytes, indexed the same way (setID*ways + wayID).
type block struct {
	tag   uint64
	valid bool
	dirty bool
}

// set is one associativity set's ways, plus whatever bookkeeping the
// attached replacement policy needs to pick a victim.
type set struct {
	blocks []block

	// recency, most-recently-used way first. Consulted by LRU and MRU.
	recency []int

	// fifoOrder holds way IDs in fill order, oldest first. Consulted by
	// FIFO regardless of subsequent hits (FIFO never reorders on touch).
	fifoOrder []int

	// used is a single recently-used bit per way, the NMRU approximation
	// PLRU victim selection clears/sets directly rather than maintaining a
	// full pseudo-LRU tree (irregular for non-power-of-two associativity).
	used []bool
}

func newSet(ways int) *set {
	return &set{
		blocks:  make([]block, ways),
		recency: nil,
		used:    make([]bool, ways),
	}
}

// replacer selects and tracks victim blocks within a set. touch is called
// on every hit, fill on every block installed after a miss.
type replacer interface {
	touch(s *set, way int)
	fill(s *set, way int)
	victim(s *set) int
}

func newReplacer(policy config.ReplacementPolicy) replacer {
	switch policy {
	case config.PolicyPLRU:
		return plruReplacer{}
	case config.PolicyFIFO:
		return fifoReplacer{}
	case config.PolicyRandom:
		return randomReplacer{}
	case config.PolicyMRU:
		return mruReplacer{}
	default:
		return lruReplacer{}
	}
}

// firstInvalid returns the way ID of the first not-yet-valid block in a
// set, so every policy fills empty ways before evicting a live one.
func firstInvalid(s *set) (int, bool) {
	for i := range s.blocks {
		if !s.blocks[i].valid {
			return i, true
		}
	}
	return 0, false
}

// lruReplacer evicts the least-recently-touched way, the teacher's
// original and still the default (config.PolicyLRU and the zero value).
type lruReplacer struct{}

func (lruReplacer) touch(s *set, way int) {
	s.recency = moveToFront(s.recency, way)
}

func (lruReplacer) fill(s *set, way int) {
	s.recency = moveToFront(s.recency, way)
}

func (lruReplacer) victim(s *set) int {
	if w, ok := firstInvalid(s); ok {
		return w
	}
	if len(s.recency) == 0 {
		return 0
	}
	return s.recency[len(s.recency)-1]
}

// mruReplacer evicts the most-recently-touched way instead of the least,
// useful for scan-dominated workloads where the next access is unlikely
// to revisit what was just used.
type mruReplacer struct{}

func (mruReplacer) touch(s *set, way int) { s.recency = moveToFront(s.recency, way) }
func (mruReplacer) fill(s *set, way int)  { s.recency = moveToFront(s.recency, way) }
func (mruReplacer) victim(s *set) int {
	if w, ok := firstInvalid(s); ok {
		return w
	}
	if len(s.recency) == 0 {
		return 0
	}
	return s.recency[0]
}

func moveToFront(order []int, way int) []int {
	for i, w := range order {
		if w == way {
			order = append(order[:i], order[i+1:]...)
			break
		}
	}
	return append([]int{way}, order...)
}

// fifoReplacer evicts the way that was filled longest ago, ignoring hits
// entirely: a line that is hit constantly is evicted on the same schedule
// as one that is never touched again.
type fifoReplacer struct{}

func (fifoReplacer) touch(s *set, way int) {}

func (fifoReplacer) fill(s *set, way int) {
	for i, w := range s.fifoOrder {
		if w == way {
			s.fifoOrder = append(s.fifoOrder[:i], s.fifoOrder[i+1:]...)
			break
		}
	}
	s.fifoOrder = append(s.fifoOrder, way)
}

func (fifoReplacer) victim(s *set) int {
	if w, ok := firstInvalid(s); ok {
		return w
	}
	if len(s.fifoOrder) == 0 {
		return 0
	}
	return s.fifoOrder[0]
}

// randomReplacer evicts a uniformly random way, the cheapest policy to
// implement in hardware and a reasonable stand-in when access patterns
// defeat both LRU and FIFO.
type randomReplacer struct{}

func (randomReplacer) touch(s *set, way int) {}
func (randomReplacer) fill(s *set, way int)  {}
func (randomReplacer) victim(s *set) int {
	if w, ok := firstInvalid(s); ok {
		return w
	}
	return rand.Intn(len(s.blocks))
}

// plruReplacer is a not-most-recently-used approximation of tree PLRU:
// each way carries a single used bit, set on touch/fill. A victim is any
// way whose bit is clear; once every bit is set, they are all cleared
// except the one just set, so the scan always terminates.
type plruReplacer struct{}

func (plruReplacer) touch(s *set, way int) { markUsed(s, way) }
func (plruReplacer) fill(s *set, way int)  { markUsed(s, way) }

func (plruReplacer) victim(s *set) int {
	if w, ok := firstInvalid(s); ok {
		return w
	}
	for i, used := range s.used {
		if !used {
			return i
		}
	}
	return 0
}

func markUsed(s *set, way int) {
	s.used[way] = true
	all := true
	for _, u := range s.used {
		if !u {
			all = false
			break
		}
	}
	if all {
		for i := range s.used {
			s.used[i] = false
		}
		s.used[way] = true
	}
}
