package predictor

// Tournament hybridizes a global (GShare-like) predictor with a
// per-branch local predictor, using a choice table to learn which
// component is more often right for a given global-history context.

func (p *Predictor) tournamentGlobalIndex(pc uint64) uint64 {
	return (p.ghr ^ pc) & p.tGlobalMask
}

func (p *Predictor) tournamentGlobalTaken(idx uint64) bool {
	return p.tGlobalPHT[idx] >= 2
}

func (p *Predictor) tournamentLocalTaken(pc uint64) bool {
	lhIdx := pc & p.tLocalHistMask
	pattern := p.tLocalHist[lhIdx]
	predIdx := uint64(pattern) & p.tLocalPredMask
	return p.tLocalPHT[predIdx] >= 2
}

func (p *Predictor) tournamentTaken(pc uint64) bool {
	idx := p.tournamentGlobalIndex(pc)
	global := p.tournamentGlobalTaken(idx)
	local := p.tournamentLocalTaken(pc)

	if p.tChoicePHT[idx] >= 2 {
		return global
	}
	return local
}

func (p *Predictor) tournamentUpdate(pc uint64, taken bool) {
	idx := p.tournamentGlobalIndex(pc)
	globalPred := p.tournamentGlobalTaken(idx)
	localPred := p.tournamentLocalTaken(pc)

	globalCorrect := globalPred == taken
	localCorrect := localPred == taken

	if globalCorrect != localCorrect {
		if globalCorrect {
			p.tChoicePHT[idx] = saturateUp(p.tChoicePHT[idx], 3)
		} else {
			p.tChoicePHT[idx] = saturateDown(p.tChoicePHT[idx])
		}
	}

	if taken {
		p.tGlobalPHT[idx] = saturateUp(p.tGlobalPHT[idx], 3)
	} else {
		p.tGlobalPHT[idx] = saturateDown(p.tGlobalPHT[idx])
	}
	p.ghr = ((p.ghr << 1) | boolBit(taken)) & p.tGlobalMask

	lhIdx := pc & p.tLocalHistMask
	pattern := p.tLocalHist[lhIdx]
	predIdx := uint64(pattern) & p.tLocalPredMask
	if taken {
		p.tLocalPHT[predIdx] = saturateUp(p.tLocalPHT[predIdx], 3)
	} else {
		p.tLocalPHT[predIdx] = saturateDown(p.tLocalPHT[predIdx])
	}
	p.tLocalHist[lhIdx] = uint16((uint64(pattern)<<1 | boolBit(taken)) & p.tLocalPredMask)
}
