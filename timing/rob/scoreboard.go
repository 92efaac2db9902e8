package rob

// Scoreboard maps each architectural register to the tag of its latest
// in-flight producer, or the zero Tag if the value already lives in the
// register file. This lets issue resolve a source operand with one direct
// lookup instead of scanning the whole ROB.
type Scoreboard struct {
	gpr [32]Tag
	fpr [32]Tag
}

// NewScoreboard creates a scoreboard with every register clear.
func NewScoreboard() *Scoreboard {
	return &Scoreboard{}
}

// SetProducer records tag as reg's pending writer. A no-op for x0.
func (s *Scoreboard) SetProducer(reg int, isFP bool, tag Tag) {
	if isFP {
		s.fpr[reg] = tag
		return
	}
	if reg != 0 {
		s.gpr[reg] = tag
	}
}

// GetProducer returns the tag of reg's pending writer, or (0, false) if
// the register's value is already architectural.
func (s *Scoreboard) GetProducer(reg int, isFP bool) (Tag, bool) {
	tag := s.gpr[reg]
	if isFP {
		tag = s.fpr[reg]
	}
	return tag, tag != 0
}

// ClearIfMatch clears reg's pending-writer slot only if it still holds
// tag, so a committing instruction never clobbers a tag a younger rename
// (WAW) has since installed.
func (s *Scoreboard) ClearIfMatch(reg int, isFP bool, tag Tag) {
	slot := &s.gpr[reg]
	if isFP {
		slot = &s.fpr[reg]
	}
	if *slot == tag {
		*slot = 0
	}
}

// Flush clears every register's pending-writer slot.
func (s *Scoreboard) Flush() {
	s.gpr = [32]Tag{}
	s.fpr = [32]Tag{}
}

// RebuildFromROB clears the scoreboard and re-marks producers from r's
// remaining entries, walking head to tail so the latest writer wins for
// each register. Used after a partial flush, where the surviving entries
// no longer line up with the scoreboard's prior state.
func (s *Scoreboard) RebuildFromROB(r *ROB) {
	s.Flush()
	r.ForEachValid(func(e Entry) {
		if e.FPRegWrite {
			s.fpr[e.Rd] = e.Tag
		} else if e.RegWrite && e.Rd != 0 {
			s.gpr[e.Rd] = e.Tag
		}
	})
}
