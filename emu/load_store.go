package emu

// LoadStoreUnit implements RV64I loads/stores and the RV64A atomic memory
// operations (LR/SC, AMO*). A single reservation is kept, on the exact
// address of the last LR. A store or AMO through this unit whose bytes
// cover that address, or a successful SC, clears it; stores to other
// addresses in the same cache line leave it intact, and an SC succeeds
// only at the reserved address itself.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory

	reserved    bool
	reservedAddr uint64
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{regFile: regFile, memory: memory}
}

// Lb loads a sign-extended byte.
func (lsu *LoadStoreUnit) Lb(addr uint64) uint64 {
	return uint64(int64(int8(lsu.memory.Read8(addr))))
}

// Lbu loads a zero-extended byte.
func (lsu *LoadStoreUnit) Lbu(addr uint64) uint64 {
	return uint64(lsu.memory.Read8(addr))
}

// Lh loads a sign-extended halfword.
func (lsu *LoadStoreUnit) Lh(addr uint64) uint64 {
	return uint64(int64(int16(lsu.memory.Read16(addr))))
}

// Lhu loads a zero-extended halfword.
func (lsu *LoadStoreUnit) Lhu(addr uint64) uint64 {
	return uint64(lsu.memory.Read16(addr))
}

// Lw loads a sign-extended word.
func (lsu *LoadStoreUnit) Lw(addr uint64) uint64 {
	return uint64(int64(int32(lsu.memory.Read32(addr))))
}

// Lwu loads a zero-extended word.
func (lsu *LoadStoreUnit) Lwu(addr uint64) uint64 {
	return uint64(lsu.memory.Read32(addr))
}

// Ld loads a doubleword.
func (lsu *LoadStoreUnit) Ld(addr uint64) uint64 {
	return lsu.memory.Read64(addr)
}

// Sb stores the low byte of value.
func (lsu *LoadStoreUnit) Sb(addr uint64, value uint64) {
	lsu.memory.Write8(addr, uint8(value))
	lsu.invalidateIfOverlaps(addr, 1)
}

// Sh stores the low halfword of value.
func (lsu *LoadStoreUnit) Sh(addr uint64, value uint64) {
	lsu.memory.Write16(addr, uint16(value))
	lsu.invalidateIfOverlaps(addr, 2)
}

// Sw stores the low word of value.
func (lsu *LoadStoreUnit) Sw(addr uint64, value uint64) {
	lsu.memory.Write32(addr, uint32(value))
	lsu.invalidateIfOverlaps(addr, 4)
}

// Sd stores a full doubleword.
func (lsu *LoadStoreUnit) Sd(addr uint64, value uint64) {
	lsu.memory.Write64(addr, value)
	lsu.invalidateIfOverlaps(addr, 8)
}

func (lsu *LoadStoreUnit) invalidateIfOverlaps(addr uint64, size uint64) {
	if lsu.reserved && addr <= lsu.reservedAddr && lsu.reservedAddr < addr+size {
		lsu.reserved = false
	}
}

// LrW performs LR.W: loads a sign-extended word and sets a reservation on
// its aligned address.
func (lsu *LoadStoreUnit) LrW(addr uint64) uint64 {
	lsu.reserved = true
	lsu.reservedAddr = addr
	return lsu.Lw(addr)
}

// LrD performs LR.D: loads a doubleword and sets a reservation.
func (lsu *LoadStoreUnit) LrD(addr uint64) uint64 {
	lsu.reserved = true
	lsu.reservedAddr = addr
	return lsu.Ld(addr)
}

// ScW performs SC.W: if a matching reservation is live, stores the word and
// returns 0 (success); otherwise leaves memory unchanged and returns 1.
func (lsu *LoadStoreUnit) ScW(addr uint64, value uint64) uint64 {
	if lsu.reserved && lsu.reservedAddr == addr {
		lsu.reserved = false
		lsu.memory.Write32(addr, uint32(value))
		return 0
	}
	return 1
}

// ScD performs SC.D.
func (lsu *LoadStoreUnit) ScD(addr uint64, value uint64) uint64 {
	if lsu.reserved && lsu.reservedAddr == addr {
		lsu.reserved = false
		lsu.memory.Write64(addr, value)
		return 0
	}
	return 1
}

// AmoKind identifies an AMO* read-modify-write operation.
type AmoKind uint8

// AMO operation kinds.
const (
	AmoSwap AmoKind = iota
	AmoAdd
	AmoXor
	AmoAnd
	AmoOr
	AmoMin
	AmoMax
	AmoMinu
	AmoMaxu
)

// AmoW performs a 32-bit atomic read-modify-write: loads the sign-extended
// word at addr, combines it with value per kind, stores the new word back,
// and returns the original (sign-extended) loaded value.
func (lsu *LoadStoreUnit) AmoW(kind AmoKind, addr uint64, value uint64) uint64 {
	old := lsu.memory.Read32(addr)
	result := amoCombine32(kind, old, uint32(value))
	lsu.memory.Write32(addr, result)
	lsu.invalidateIfOverlaps(addr, 4)
	return uint64(int64(int32(old)))
}

// AmoD performs a 64-bit atomic read-modify-write.
func (lsu *LoadStoreUnit) AmoD(kind AmoKind, addr uint64, value uint64) uint64 {
	old := lsu.memory.Read64(addr)
	result := amoCombine64(kind, old, value)
	lsu.memory.Write64(addr, result)
	lsu.invalidateIfOverlaps(addr, 8)
	return old
}

func amoCombine32(kind AmoKind, old, value uint32) uint32 {
	switch kind {
	case AmoSwap:
		return value
	case AmoAdd:
		return old + value
	case AmoXor:
		return old ^ value
	case AmoAnd:
		return old & value
	case AmoOr:
		return old | value
	case AmoMin:
		if int32(old) < int32(value) {
			return old
		}
		return value
	case AmoMax:
		if int32(old) > int32(value) {
			return old
		}
		return value
	case AmoMinu:
		if old < value {
			return old
		}
		return value
	case AmoMaxu:
		if old > value {
			return old
		}
		return value
	}
	return old
}

func amoCombine64(kind AmoKind, old, value uint64) uint64 {
	switch kind {
	case AmoSwap:
		return value
	case AmoAdd:
		return old + value
	case AmoXor:
		return old ^ value
	case AmoAnd:
		return old & value
	case AmoOr:
		return old | value
	case AmoMin:
		if int64(old) < int64(value) {
			return old
		}
		return value
	case AmoMax:
		if int64(old) > int64(value) {
			return old
		}
		return value
	case AmoMinu:
		if old < value {
			return old
		}
		return value
	case AmoMaxu:
		if old > value {
			return old
		}
		return value
	}
	return old
}
