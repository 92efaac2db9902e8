package emu

import "math"

// FPU implements the scalar RV64F/D floating-point operations: loads and
// stores are handled by LoadStoreUnit directly against the F registers'
// bit patterns (see emulator.go); this unit covers arithmetic, conversion,
// sign-injection, comparison, and classification.
type FPU struct {
	regFile *RegFile
}

// NewFPU creates a new FPU connected to the given register file.
func NewFPU(regFile *RegFile) *FPU {
	return &FPU{regFile: regFile}
}

// AddS/SubS/MulS/DivS/SqrtS/MinS/MaxS operate on single-precision values
// unboxed from the NaN-boxed F register container.

func (f *FPU) AddS(a, b uint32) uint32 {
	return math.Float32bits(math.Float32frombits(a) + math.Float32frombits(b))
}

func (f *FPU) SubS(a, b uint32) uint32 {
	return math.Float32bits(math.Float32frombits(a) - math.Float32frombits(b))
}

func (f *FPU) MulS(a, b uint32) uint32 {
	return math.Float32bits(math.Float32frombits(a) * math.Float32frombits(b))
}

func (f *FPU) DivS(a, b uint32) uint32 {
	return math.Float32bits(math.Float32frombits(a) / math.Float32frombits(b))
}

func (f *FPU) SqrtS(a uint32) uint32 {
	return math.Float32bits(float32(math.Sqrt(float64(math.Float32frombits(a)))))
}

func (f *FPU) MinS(a, b uint32) uint32 {
	fa, fb := math.Float32frombits(a), math.Float32frombits(b)
	if fa != fa {
		return b
	}
	if fb != fb {
		return a
	}
	if fa < fb {
		return a
	}
	return b
}

func (f *FPU) MaxS(a, b uint32) uint32 {
	fa, fb := math.Float32frombits(a), math.Float32frombits(b)
	if fa != fa {
		return b
	}
	if fb != fb {
		return a
	}
	if fa > fb {
		return a
	}
	return b
}

func (f *FPU) MaddS(a, b, c uint32) uint32 {
	return math.Float32bits(math.Float32frombits(a)*math.Float32frombits(b) + math.Float32frombits(c))
}

func (f *FPU) MsubS(a, b, c uint32) uint32 {
	return math.Float32bits(math.Float32frombits(a)*math.Float32frombits(b) - math.Float32frombits(c))
}

func (f *FPU) NmaddS(a, b, c uint32) uint32 {
	return math.Float32bits(-(math.Float32frombits(a)*math.Float32frombits(b) + math.Float32frombits(c)))
}

func (f *FPU) NmsubS(a, b, c uint32) uint32 {
	return math.Float32bits(-(math.Float32frombits(a)*math.Float32frombits(b) - math.Float32frombits(c)))
}

// Sign-injection: result takes the magnitude of a and a sign derived from
// b per Sgnj/Sgnjn/Sgnjx.
func (f *FPU) SgnjS(a, b uint32) uint32  { return (a &^ (1 << 31)) | (b & (1 << 31)) }
func (f *FPU) SgnjnS(a, b uint32) uint32 { return (a &^ (1 << 31)) | ((^b) & (1 << 31)) }
func (f *FPU) SgnjxS(a, b uint32) uint32 { return a ^ (b & (1 << 31)) }

func (f *FPU) EqS(a, b uint32) bool {
	return math.Float32frombits(a) == math.Float32frombits(b)
}
func (f *FPU) LtS(a, b uint32) bool {
	return math.Float32frombits(a) < math.Float32frombits(b)
}
func (f *FPU) LeS(a, b uint32) bool {
	return math.Float32frombits(a) <= math.Float32frombits(b)
}

// ClassS implements FCLASS.S, returning the ten-bit class mask defined by
// the RISC-V spec (bit 0 = -inf ... bit 9 = quiet NaN).
func (f *FPU) ClassS(a uint32) uint64 {
	v := math.Float32frombits(a)
	neg := a>>31 == 1
	switch {
	case math.IsInf(float64(v), -1):
		return 1 << 0
	case math.IsInf(float64(v), 1):
		return 1 << 7
	case v != v:
		if a&(1<<22) != 0 {
			return 1 << 9
		}
		return 1 << 8
	case v == 0:
		if neg {
			return 1 << 3
		}
		return 1 << 4
	case isSubnormal32(a):
		if neg {
			return 1 << 2
		}
		return 1 << 5
	default:
		if neg {
			return 1 << 1
		}
		return 1 << 6
	}
}

func isSubnormal32(bits uint32) bool {
	exp := (bits >> 23) & 0xFF
	mant := bits & 0x7FFFFF
	return exp == 0 && mant != 0
}

func isSubnormal64(bits uint64) bool {
	exp := (bits >> 52) & 0x7FF
	mant := bits & 0xFFFFFFFFFFFFF
	return exp == 0 && mant != 0
}

// CvtWS converts a single-precision value to a sign-extended 32-bit
// integer (FCVT.W.S), truncating toward zero.
func (f *FPU) CvtWS(a uint32) uint64 {
	return uint64(int64(int32(int64(math.Trunc(float64(math.Float32frombits(a)))))))
}

func (f *FPU) CvtWuS(a uint32) uint64 {
	return uint64(uint32(int64(math.Trunc(float64(math.Float32frombits(a))))))
}

func (f *FPU) CvtLS(a uint32) uint64 {
	return uint64(int64(math.Trunc(float64(math.Float32frombits(a)))))
}

func (f *FPU) CvtLuS(a uint32) uint64 {
	return uint64(math.Trunc(float64(math.Float32frombits(a))))
}

func (f *FPU) CvtSW(a uint64) uint32  { return math.Float32bits(float32(int32(a))) }
func (f *FPU) CvtSWu(a uint64) uint32 { return math.Float32bits(float32(uint32(a))) }
func (f *FPU) CvtSL(a uint64) uint32  { return math.Float32bits(float32(int64(a))) }
func (f *FPU) CvtSLu(a uint64) uint32 { return math.Float32bits(float32(a)) }

// Double-precision counterparts.

func (f *FPU) AddD(a, b uint64) uint64 {
	return math.Float64bits(math.Float64frombits(a) + math.Float64frombits(b))
}
func (f *FPU) SubD(a, b uint64) uint64 {
	return math.Float64bits(math.Float64frombits(a) - math.Float64frombits(b))
}
func (f *FPU) MulD(a, b uint64) uint64 {
	return math.Float64bits(math.Float64frombits(a) * math.Float64frombits(b))
}
func (f *FPU) DivD(a, b uint64) uint64 {
	return math.Float64bits(math.Float64frombits(a) / math.Float64frombits(b))
}
func (f *FPU) SqrtD(a uint64) uint64 {
	return math.Float64bits(math.Sqrt(math.Float64frombits(a)))
}

func (f *FPU) MinD(a, b uint64) uint64 {
	fa, fb := math.Float64frombits(a), math.Float64frombits(b)
	if fa != fa {
		return b
	}
	if fb != fb {
		return a
	}
	if fa < fb {
		return a
	}
	return b
}

func (f *FPU) MaxD(a, b uint64) uint64 {
	fa, fb := math.Float64frombits(a), math.Float64frombits(b)
	if fa != fa {
		return b
	}
	if fb != fb {
		return a
	}
	if fa > fb {
		return a
	}
	return b
}

func (f *FPU) MaddD(a, b, c uint64) uint64 {
	return math.Float64bits(math.Float64frombits(a)*math.Float64frombits(b) + math.Float64frombits(c))
}
func (f *FPU) MsubD(a, b, c uint64) uint64 {
	return math.Float64bits(math.Float64frombits(a)*math.Float64frombits(b) - math.Float64frombits(c))
}
func (f *FPU) NmaddD(a, b, c uint64) uint64 {
	return math.Float64bits(-(math.Float64frombits(a)*math.Float64frombits(b) + math.Float64frombits(c)))
}
func (f *FPU) NmsubD(a, b, c uint64) uint64 {
	return math.Float64bits(-(math.Float64frombits(a)*math.Float64frombits(b) - math.Float64frombits(c)))
}

func (f *FPU) SgnjD(a, b uint64) uint64  { return (a &^ (1 << 63)) | (b & (1 << 63)) }
func (f *FPU) SgnjnD(a, b uint64) uint64 { return (a &^ (1 << 63)) | ((^b) & (1 << 63)) }
func (f *FPU) SgnjxD(a, b uint64) uint64 { return a ^ (b & (1 << 63)) }

func (f *FPU) EqD(a, b uint64) bool { return math.Float64frombits(a) == math.Float64frombits(b) }
func (f *FPU) LtD(a, b uint64) bool { return math.Float64frombits(a) < math.Float64frombits(b) }
func (f *FPU) LeD(a, b uint64) bool { return math.Float64frombits(a) <= math.Float64frombits(b) }

func (f *FPU) ClassD(a uint64) uint64 {
	v := math.Float64frombits(a)
	neg := a>>63 == 1
	switch {
	case math.IsInf(v, -1):
		return 1 << 0
	case math.IsInf(v, 1):
		return 1 << 7
	case v != v:
		if a&(1<<51) != 0 {
			return 1 << 9
		}
		return 1 << 8
	case v == 0:
		if neg {
			return 1 << 3
		}
		return 1 << 4
	case isSubnormal64(a):
		if neg {
			return 1 << 2
		}
		return 1 << 5
	default:
		if neg {
			return 1 << 1
		}
		return 1 << 6
	}
}

func (f *FPU) CvtWD(a uint64) uint64 {
	return uint64(int64(int32(int64(math.Trunc(math.Float64frombits(a))))))
}
func (f *FPU) CvtWuD(a uint64) uint64 {
	return uint64(uint32(int64(math.Trunc(math.Float64frombits(a)))))
}
func (f *FPU) CvtLD(a uint64) uint64  { return uint64(int64(math.Trunc(math.Float64frombits(a)))) }
func (f *FPU) CvtLuD(a uint64) uint64 { return uint64(math.Trunc(math.Float64frombits(a))) }

func (f *FPU) CvtDW(a uint64) uint64  { return math.Float64bits(float64(int32(a))) }
func (f *FPU) CvtDWu(a uint64) uint64 { return math.Float64bits(float64(uint32(a))) }
func (f *FPU) CvtDL(a uint64) uint64  { return math.Float64bits(float64(int64(a))) }
func (f *FPU) CvtDLu(a uint64) uint64 { return math.Float64bits(float64(a)) }

func (f *FPU) CvtSD(a uint64) uint32 { return math.Float32bits(float32(math.Float64frombits(a))) }
func (f *FPU) CvtDS(a uint32) uint64 { return math.Float64bits(float64(math.Float32frombits(a))) }
