// Package predictor implements the five branch-prediction families named
// by the spec (Static, GShare, Tournament, Perceptron, TAGE) behind one
// tagged-variant Predictor, plus the BTB and RAS shared by all of them.
// Generalizes timing/pipeline/branch_predictor.go's single bimodal+BTB
// predictor into the pluggable family the simulator selects at
// configuration time, modeled as one struct with per-family state and a
// Kind-switch dispatch rather than five interface implementations, per
// the "replacing dynamic polymorphism" design note: predictors are a
// closed set, so a tagged variant keeps the hot prediction path
// branch-predictable instead of paying for an indirect call.
package predictor

// btbEntry is one Branch Target Buffer slot: a direct-mapped tag/target
// pair.
type btbEntry struct {
	tag     uint64
	target  uint64
	valid   bool
}

// btb is a direct-mapped cache of branch/jump target addresses, letting
// the fetch stage predict a target before the instruction is decoded.
type btb struct {
	table []btbEntry
	size  uint64
}

// newBTB creates a BTB with the given number of entries, which must be a
// power of two.
func newBTB(size int) *btb {
	if size <= 0 {
		size = 256
	}
	return &btb{table: make([]btbEntry, size), size: uint64(size)}
}

func (b *btb) index(pc uint64) uint64 {
	return (pc >> 2) & (b.size - 1)
}

// lookup returns the predicted target for pc, if the tag at its index
// matches.
func (b *btb) lookup(pc uint64) (uint64, bool) {
	idx := b.index(pc)
	e := b.table[idx]
	if e.valid && e.tag == pc {
		return e.target, true
	}
	return 0, false
}

// update records the resolved target address for pc.
func (b *btb) update(pc, target uint64) {
	idx := b.index(pc)
	b.table[idx] = btbEntry{tag: pc, target: target, valid: true}
}
