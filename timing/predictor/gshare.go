package predictor

// GShare correlates global history with the PC via an XOR hash into a
// table of 2-bit saturating counters, letting it distinguish the same
// branch instruction across different execution contexts.

func (p *Predictor) gshareIndex(pc uint64) uint64 {
	pcPart := (pc >> 2) & p.gshareMask
	ghrPart := p.ghr & p.gshareMask
	return pcPart ^ ghrPart
}

func (p *Predictor) gshareTaken(idx uint64) bool {
	return p.gsharePHT[idx] >= 2
}

func (p *Predictor) gshareUpdate(pc uint64, taken bool) {
	idx := p.gshareIndex(pc)
	counter := p.gsharePHT[idx]
	if taken {
		p.gsharePHT[idx] = saturateUp(counter, 3)
	} else {
		p.gsharePHT[idx] = saturateDown(counter)
	}

	p.ghr = ((p.ghr << 1) | boolBit(taken)) & p.gshareMask
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
