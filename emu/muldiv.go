package emu

import "math/bits"

// MulDiv implements the RV64M multiply/divide/remainder operations. DIV and
// REM follow the RISC-V convention of never trapping: division by zero and
// signed overflow (MinInt / -1) produce the architecturally-defined
// sentinel results instead of a fault.
type MulDiv struct{}

// NewMulDiv creates a RV64M functional unit.
func NewMulDiv() *MulDiv { return &MulDiv{} }

// Mul computes the low 64 bits of the product.
func (m *MulDiv) Mul(a, b uint64) uint64 { return a * b }

// Mulh computes the high 64 bits of a signed*signed 128-bit product.
func (m *MulDiv) Mulh(a, b uint64) uint64 {
	hi, _ := bits.Mul64(uint64(absI64(int64(a))), uint64(absI64(int64(b))))
	neg := (int64(a) < 0) != (int64(b) < 0)
	if !neg {
		return hi
	}
	lo := a * b
	if lo != 0 {
		hi = ^hi
	} else {
		hi = ^hi + 1
	}
	return hi
}

// Mulhu computes the high 64 bits of an unsigned*unsigned 128-bit product.
func (m *MulDiv) Mulhu(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	return hi
}

// Mulhsu computes the high 64 bits of a signed*unsigned 128-bit product.
func (m *MulDiv) Mulhsu(a, b uint64) uint64 {
	neg := int64(a) < 0
	ua := uint64(absI64(int64(a)))
	hi, _ := bits.Mul64(ua, b)
	if !neg {
		return hi
	}
	lo := a * b
	if lo != 0 {
		hi = ^hi
	} else {
		hi = ^hi + 1
	}
	return hi
}

func absI64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Div performs signed 64-bit division. Division by zero yields -1;
// MinInt64/-1 yields MinInt64 (overflow saturates rather than traps).
func (m *MulDiv) Div(a, b uint64) uint64 {
	sa, sb := int64(a), int64(b)
	if sb == 0 {
		return ^uint64(0)
	}
	if sa == -1<<63 && sb == -1 {
		return uint64(sa)
	}
	return uint64(sa / sb)
}

// Divu performs unsigned 64-bit division. Division by zero yields all-ones.
func (m *MulDiv) Divu(a, b uint64) uint64 {
	if b == 0 {
		return ^uint64(0)
	}
	return a / b
}

// Rem performs signed 64-bit remainder.
func (m *MulDiv) Rem(a, b uint64) uint64 {
	sa, sb := int64(a), int64(b)
	if sb == 0 {
		return a
	}
	if sa == -1<<63 && sb == -1 {
		return 0
	}
	return uint64(sa % sb)
}

// Remu performs unsigned 64-bit remainder.
func (m *MulDiv) Remu(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return a % b
}

// Mulw/Divw/Divuw/Remw/Remuw implement the 32-bit-operand "W" forms: the
// lower 32 bits of each operand are used and the result is sign-extended.

// Mulw computes ADDW-style 32-bit multiplication.
func (m *MulDiv) Mulw(a, b uint64) uint64 {
	return sext32(uint32(a) * uint32(b))
}

// Divw performs the 32-bit signed division form.
func (m *MulDiv) Divw(a, b uint64) uint64 {
	sa, sb := int32(uint32(a)), int32(uint32(b))
	if sb == 0 {
		return ^uint64(0)
	}
	if sa == -1<<31 && sb == -1 {
		return sext32(uint32(sa))
	}
	return sext32(uint32(sa / sb))
}

// Divuw performs the 32-bit unsigned division form.
func (m *MulDiv) Divuw(a, b uint64) uint64 {
	ua, ub := uint32(a), uint32(b)
	if ub == 0 {
		return ^uint64(0)
	}
	return sext32(ua / ub)
}

// Remw performs the 32-bit signed remainder form.
func (m *MulDiv) Remw(a, b uint64) uint64 {
	sa, sb := int32(uint32(a)), int32(uint32(b))
	if sb == 0 {
		return sext32(uint32(sa))
	}
	if sa == -1<<31 && sb == -1 {
		return 0
	}
	return sext32(uint32(sa % sb))
}

// Remuw performs the 32-bit unsigned remainder form.
func (m *MulDiv) Remuw(a, b uint64) uint64 {
	ua, ub := uint32(a), uint32(b)
	if ub == 0 {
		return sext32(ua)
	}
	return sext32(ua % ub)
}
