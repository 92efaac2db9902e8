package predictor

// Kind selects which branch-prediction family a Predictor runs as.
type Kind int

const (
	KindStatic Kind = iota
	KindGShare
	KindTournament
	KindPerceptron
	KindTAGE
)

// Options configures every family at once; a Predictor only reads the
// fields relevant to its Kind.
type Options struct {
	Kind Kind

	BTBSize int
	RASSize int

	// GShare / base table size.
	TableBits int

	// Tournament.
	TournamentGlobalBits    int
	TournamentLocalHistBits int
	TournamentLocalPredBits int

	// Perceptron.
	PerceptronHistoryLength int
	PerceptronTableBits     int

	// TAGE.
	TageBanks         int
	TageTableSize     int
	TageLoopTableSize int
	TageResetInterval uint32
	TageHistoryLengths []int
	TageTagWidths      []int
}

// DefaultOptions returns the family defaults used when a config omits
// the predictor's sub-options.
func DefaultOptions(kind Kind) Options {
	return Options{
		Kind:                    kind,
		BTBSize:                 256,
		RASSize:                 8,
		TableBits:               12,
		TournamentGlobalBits:    12,
		TournamentLocalHistBits: 10,
		TournamentLocalPredBits: 10,
		PerceptronHistoryLength: 32,
		PerceptronTableBits:     10,
		TageBanks:               4,
		TageTableSize:           2048,
		TageLoopTableSize:       256,
		TageResetInterval:       256_000,
		TageHistoryLengths:      []int{5, 15, 44, 130},
		TageTagWidths:           []int{9, 9, 10, 10},
	}
}

// tageEntry is one tagged TAGE bank slot.
type tageEntry struct {
	tag uint16
	ctr int8
	u   uint8
}

// loopEntry is one TAGE loop-predictor slot.
type loopEntry struct {
	tag   uint16
	conf  uint8
	count uint16
	limit uint16
	age   uint8
	dir   bool
}

// Predictor is a branch direction+target predictor of one Kind. All five
// families' state lives in the same struct (only the fields for the
// active Kind are populated) and every method switches on Kind, matching
// the single-dispatch, no-vtable shape used throughout this package.
type Predictor struct {
	kind Kind
	btb  *btb
	ras  *ras
	ghr  uint64

	// GShare.
	gsharePHT  []uint8
	gshareMask uint64

	// Tournament.
	tGlobalPHT     []uint8
	tGlobalMask    uint64
	tLocalHist     []uint16
	tLocalHistMask uint64
	tLocalPHT      []uint8
	tLocalPredMask uint64
	tChoicePHT     []uint8

	// Perceptron.
	pTable         []int8
	pHistoryLength int
	pTableMask     int
	pRowSize       int
	pThreshold     int32

	// TAGE.
	tageBase          []int8
	tageBanks         [][]tageEntry
	tageHistLengths   []int
	tageTagWidths     []int
	tageTableMask     int
	tageLoops         []loopEntry
	tageLoopMask      int
	tageProviderBank  int
	tageAltBank       int
	tagePHR           uint64
	tageClockCounter  uint32
	tageResetInterval uint32
}

// New constructs a Predictor of the given Kind from opts.
func New(opts Options) *Predictor {
	p := &Predictor{
		kind: opts.Kind,
		btb:  newBTB(opts.BTBSize),
		ras:  newRAS(opts.RASSize),
	}

	switch opts.Kind {
	case KindGShare:
		size := uint64(1) << uint(nonZero(opts.TableBits, 12))
		p.gsharePHT = newPHT(int(size))
		p.gshareMask = size - 1

	case KindTournament:
		globalSize := uint64(1) << uint(nonZero(opts.TournamentGlobalBits, 12))
		localHistSize := uint64(1) << uint(nonZero(opts.TournamentLocalHistBits, 10))
		localPredSize := uint64(1) << uint(nonZero(opts.TournamentLocalPredBits, 10))

		p.tGlobalPHT = newPHT(int(globalSize))
		p.tGlobalMask = globalSize - 1
		p.tLocalHist = make([]uint16, localHistSize)
		p.tLocalHistMask = localHistSize - 1
		p.tLocalPHT = newPHT(int(localPredSize))
		p.tLocalPredMask = localPredSize - 1
		p.tChoicePHT = newPHT(int(globalSize))

	case KindPerceptron:
		histLen := nonZero(opts.PerceptronHistoryLength, 32)
		tableBits := nonZero(opts.PerceptronTableBits, 10)
		tableEntries := 1 << uint(tableBits)
		rowSize := histLen + 1

		p.pHistoryLength = histLen
		p.pTableMask = tableEntries - 1
		p.pRowSize = rowSize
		p.pTable = make([]int8, tableEntries*rowSize)
		p.pThreshold = int32(1.93*float64(histLen) + 14.0)

	case KindTAGE:
		banks := nonZero(opts.TageBanks, 4)
		tableSize := nonZero(opts.TageTableSize, 2048)
		loopSize := nonZero(opts.TageLoopTableSize, 256)
		histLengths := opts.TageHistoryLengths
		tagWidths := opts.TageTagWidths
		if len(histLengths) != banks {
			histLengths = []int{5, 15, 44, 130}
		}
		if len(tagWidths) != banks {
			tagWidths = []int{9, 9, 10, 10}
		}

		p.tageBase = make([]int8, tableSize)
		p.tageBanks = make([][]tageEntry, banks)
		for i := range p.tageBanks {
			p.tageBanks[i] = make([]tageEntry, tableSize)
		}
		p.tageHistLengths = histLengths
		p.tageTagWidths = tagWidths
		p.tageTableMask = tableSize - 1
		p.tageLoops = make([]loopEntry, loopSize)
		p.tageLoopMask = loopSize - 1
		p.tageResetInterval = opts.TageResetInterval
		if p.tageResetInterval == 0 {
			p.tageResetInterval = 256_000
		}
	}

	return p
}

func nonZero(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func newPHT(size int) []uint8 {
	pht := make([]uint8, size)
	for i := range pht {
		pht[i] = 1
	}
	return pht
}

// PredictBranch predicts the direction of a conditional branch at pc and,
// if predicted taken, its target from the BTB.
func (p *Predictor) PredictBranch(pc uint64) (taken bool, target uint64, targetKnown bool) {
	switch p.kind {
	case KindStatic:
		return false, 0, false
	case KindGShare:
		taken = p.gshareTaken(p.gshareIndex(pc))
	case KindTournament:
		taken = p.tournamentTaken(pc)
	case KindPerceptron:
		taken = p.perceptronOutput(p.perceptronIndex(pc)) >= 0
	case KindTAGE:
		taken = p.tagePredict(pc)
	}
	if !taken {
		return false, 0, false
	}
	target, targetKnown = p.btb.lookup(pc)
	return true, target, targetKnown
}

// UpdateBranch trains the predictor with the resolved outcome of a
// branch at pc, updating the BTB if a target is known.
func (p *Predictor) UpdateBranch(pc uint64, taken bool, target uint64, targetKnown bool) {
	switch p.kind {
	case KindStatic:
	case KindGShare:
		p.gshareUpdate(pc, taken)
	case KindTournament:
		p.tournamentUpdate(pc, taken)
	case KindPerceptron:
		p.perceptronUpdate(pc, taken)
	case KindTAGE:
		p.tageUpdate(pc, taken)
	}
	if targetKnown {
		p.btb.update(pc, target)
	}
}

// PredictBTB predicts the target of an unconditional jump at pc.
func (p *Predictor) PredictBTB(pc uint64) (uint64, bool) {
	return p.btb.lookup(pc)
}

// OnCall records a call's return address on the RAS and its target in
// the BTB.
func (p *Predictor) OnCall(pc, retAddr, target uint64) {
	p.ras.push(retAddr)
	p.btb.update(pc, target)
}

// PredictReturn predicts a return instruction's target from the RAS.
func (p *Predictor) PredictReturn() (uint64, bool) {
	return p.ras.top()
}

// OnReturn pops the RAS on a retiring return instruction.
func (p *Predictor) OnReturn() {
	p.ras.pop()
}

func saturateUp(v uint8, max uint8) uint8 {
	if v < max {
		return v + 1
	}
	return v
}

func saturateDown(v uint8) uint8 {
	if v > 0 {
		return v - 1
	}
	return v
}
