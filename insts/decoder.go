package insts

// Op identifies a decoded RISC-V operation, independent of its 16- or
// 32-bit encoding (compressed instructions decode to the same Op as their
// expanded base form).
type Op uint16

// RV64IMAFDC operations.
const (
	OpIllegal Op = iota

	// Integer register-immediate.
	OpAddi
	OpSlti
	OpSltiu
	OpAndi
	OpOri
	OpXori
	OpSlli
	OpSrli
	OpSrai
	OpAddiw
	OpSlliw
	OpSrliw
	OpSraiw
	OpLui
	OpAuipc

	// Integer register-register.
	OpAdd
	OpSub
	OpSll
	OpSlt
	OpSltu
	OpXor
	OpSrl
	OpSra
	OpOr
	OpAnd
	OpAddw
	OpSubw
	OpSllw
	OpSrlw
	OpSraw

	// Control transfer.
	OpJal
	OpJalr
	OpBeq
	OpBne
	OpBlt
	OpBge
	OpBltu
	OpBgeu

	// Loads / stores.
	OpLb
	OpLh
	OpLw
	OpLd
	OpLbu
	OpLhu
	OpLwu
	OpSb
	OpSh
	OpSw
	OpSd

	// RV64M.
	OpMul
	OpMulh
	OpMulhsu
	OpMulhu
	OpDiv
	OpDivu
	OpRem
	OpRemu
	OpMulw
	OpDivw
	OpDivuw
	OpRemw
	OpRemuw

	// RV64A.
	OpLrW
	OpScW
	OpAmoswapW
	OpAmoaddW
	OpAmoxorW
	OpAmoandW
	OpAmoorW
	OpAmominW
	OpAmomaxW
	OpAmominuW
	OpAmomaxuW
	OpLrD
	OpScD
	OpAmoswapD
	OpAmoaddD
	OpAmoxorD
	OpAmoandD
	OpAmoorD
	OpAmominD
	OpAmomaxD
	OpAmominuD
	OpAmomaxuD

	// RV64F/D loads, stores, arithmetic, conversion, classification.
	OpFlw
	OpFsw
	OpFld
	OpFsd
	OpFaddS
	OpFsubS
	OpFmulS
	OpFdivS
	OpFsqrtS
	OpFminS
	OpFmaxS
	OpFmaddS
	OpFmsubS
	OpFnmaddS
	OpFnmsubS
	OpFsgnjS
	OpFsgnjnS
	OpFsgnjxS
	OpFcvtWS
	OpFcvtWuS
	OpFcvtSW
	OpFcvtSWu
	OpFcvtLS
	OpFcvtLuS
	OpFcvtSL
	OpFcvtSLu
	OpFmvXW
	OpFmvWX
	OpFeqS
	OpFltS
	OpFleS
	OpFclassS
	OpFaddD
	OpFsubD
	OpFmulD
	OpFdivD
	OpFsqrtD
	OpFminD
	OpFmaxD
	OpFmaddD
	OpFmsubD
	OpFnmaddD
	OpFnmsubD
	OpFsgnjD
	OpFsgnjnD
	OpFsgnjxD
	OpFcvtWD
	OpFcvtWuD
	OpFcvtDW
	OpFcvtDWu
	OpFcvtLD
	OpFcvtLuD
	OpFcvtDL
	OpFcvtDLu
	OpFcvtSD
	OpFcvtDS
	OpFmvXD
	OpFmvDX
	OpFeqD
	OpFltD
	OpFleD
	OpFclassD

	// Fence / system.
	OpFence
	OpFenceI
	OpEcall
	OpEbreak
	OpMret
	OpSret
	OpWfi
	OpSfenceVma
	OpCsrrw
	OpCsrrs
	OpCsrrc
	OpCsrrwi
	OpCsrrsi
	OpCsrrci
)

// Format identifies the base RISC-V encoding family an instruction was
// decoded from. Compressed instructions report the base format they expand
// into, not a "C*" format, so downstream stages never special-case RVC.
type Format uint8

// Instruction encoding families.
const (
	FormatUnknown Format = iota
	FormatR
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
	FormatR4   // fused multiply-add (rs1, rs2, rs3)
	FormatAMO  // atomics: rs1 address, rs2 data
	FormatCSR  // zimm or rs1 source, csr destination register
	FormatSystem
)

// Instruction is a fully decoded instruction, independent of its original
// 16- or 32-bit encoding.
type Instruction struct {
	Op     Op
	Format Format

	Rd  uint8
	Rs1 uint8
	Rs2 uint8
	Rs3 uint8 // FMADD-family third source

	Imm int64 // sign-extended immediate (branch/jump offsets are in bytes)

	Csr uint16 // 12-bit CSR address (CSR-family instructions)
	RM  uint8  // rounding mode field for FP ops (0b111 = dynamic, use fcsr)

	AQ, RL bool // acquire/release bits for AMO/LR/SC

	Size         uint8 // 2 for compressed, 4 otherwise
	IsCompressed bool
	Raw          uint32 // original encoding, zero-extended if 16-bit
}

// Decoder decodes RV64IMAFDC machine code into Instructions.
type Decoder struct{}

// NewDecoder creates a new RISC-V instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

func signExtend(v uint64, bit int) int64 {
	shift := 63 - bit
	return int64(v<<uint(shift)) >> uint(shift)
}

func bits(word uint32, hi, lo int) uint32 {
	mask := uint32(1)<<(uint(hi-lo)+1) - 1
	return (word >> uint(lo)) & mask
}

// Decode32 decodes a 32-bit (non-compressed) instruction word. The two
// least-significant bits are expected to be 0b11, per the base ISA encoding
// rule; callers are responsible for routing 16-bit words to Decode16.
func (d *Decoder) Decode32(word uint32) *Instruction {
	inst := &Instruction{Op: OpIllegal, Format: FormatUnknown, Size: 4, Raw: word}

	opcode := bits(word, 6, 0)
	funct3 := uint8(bits(word, 14, 12))
	funct7 := uint8(bits(word, 31, 25))
	rd := uint8(bits(word, 11, 7))
	rs1 := uint8(bits(word, 19, 15))
	rs2 := uint8(bits(word, 24, 20))
	rs3 := uint8(bits(word, 31, 27))
	inst.Rd, inst.Rs1, inst.Rs2, inst.Rs3 = rd, rs1, rs2, rs3

	switch opcode {
	case 0b0010011: // OP-IMM
		inst.Format = FormatI
		inst.Imm = signExtend(uint64(bits(word, 31, 20)), 11)
		switch funct3 {
		case 0b000:
			inst.Op = OpAddi
		case 0b010:
			inst.Op = OpSlti
		case 0b011:
			inst.Op = OpSltiu
		case 0b100:
			inst.Op = OpXori
		case 0b110:
			inst.Op = OpOri
		case 0b111:
			inst.Op = OpAndi
		case 0b001:
			inst.Op = OpSlli
			inst.Imm = int64(bits(word, 25, 20))
		case 0b101:
			inst.Imm = int64(bits(word, 25, 20))
			if bits(word, 31, 26) == 0b010000 {
				inst.Op = OpSrai
			} else {
				inst.Op = OpSrli
			}
		}
	case 0b0011011: // OP-IMM-32
		inst.Format = FormatI
		inst.Imm = signExtend(uint64(bits(word, 31, 20)), 11)
		switch funct3 {
		case 0b000:
			inst.Op = OpAddiw
		case 0b001:
			inst.Op = OpSlliw
			inst.Imm = int64(bits(word, 24, 20))
		case 0b101:
			inst.Imm = int64(bits(word, 24, 20))
			if funct7 == 0b0100000 {
				inst.Op = OpSraiw
			} else {
				inst.Op = OpSrliw
			}
		}
	case 0b0110111:
		inst.Format = FormatU
		inst.Op = OpLui
		inst.Imm = int64(int32(bits(word, 31, 12) << 12))
	case 0b0010111:
		inst.Format = FormatU
		inst.Op = OpAuipc
		inst.Imm = int64(int32(bits(word, 31, 12) << 12))
	case 0b0110011: // OP
		inst.Format = FormatR
		inst.decodeOpRR(funct3, funct7)
	case 0b0111011: // OP-32
		inst.Format = FormatR
		inst.decodeOpRRW(funct3, funct7)
	case 0b1101111: // JAL
		inst.Format = FormatJ
		inst.Op = OpJal
		raw := (bits(word, 31, 31) << 20) | (bits(word, 19, 12) << 12) |
			(bits(word, 20, 20) << 11) | (bits(word, 30, 21) << 1)
		inst.Imm = signExtend(uint64(raw), 20)
	case 0b1100111: // JALR
		inst.Format = FormatI
		inst.Op = OpJalr
		inst.Imm = signExtend(uint64(bits(word, 31, 20)), 11)
	case 0b1100011: // BRANCH
		inst.Format = FormatB
		raw := (bits(word, 31, 31) << 12) | (bits(word, 7, 7) << 11) |
			(bits(word, 30, 25) << 5) | (bits(word, 11, 8) << 1)
		inst.Imm = signExtend(uint64(raw), 12)
		switch funct3 {
		case 0b000:
			inst.Op = OpBeq
		case 0b001:
			inst.Op = OpBne
		case 0b100:
			inst.Op = OpBlt
		case 0b101:
			inst.Op = OpBge
		case 0b110:
			inst.Op = OpBltu
		case 0b111:
			inst.Op = OpBgeu
		}
	case 0b0000011: // LOAD
		inst.Format = FormatI
		inst.Imm = signExtend(uint64(bits(word, 31, 20)), 11)
		switch funct3 {
		case 0b000:
			inst.Op = OpLb
		case 0b001:
			inst.Op = OpLh
		case 0b010:
			inst.Op = OpLw
		case 0b011:
			inst.Op = OpLd
		case 0b100:
			inst.Op = OpLbu
		case 0b101:
			inst.Op = OpLhu
		case 0b110:
			inst.Op = OpLwu
		}
	case 0b0100011: // STORE
		inst.Format = FormatS
		raw := (bits(word, 31, 25) << 5) | bits(word, 11, 7)
		inst.Imm = signExtend(uint64(raw), 11)
		switch funct3 {
		case 0b000:
			inst.Op = OpSb
		case 0b001:
			inst.Op = OpSh
		case 0b010:
			inst.Op = OpSw
		case 0b011:
			inst.Op = OpSd
		}
	case 0b0101111: // AMO
		inst.Format = FormatAMO
		inst.AQ = bits(word, 26, 26) == 1
		inst.RL = bits(word, 25, 25) == 1
		inst.decodeAMO(funct3, uint8(bits(word, 31, 27)))
	case 0b0000111: // LOAD-FP
		inst.Format = FormatI
		inst.Imm = signExtend(uint64(bits(word, 31, 20)), 11)
		if funct3 == 0b010 {
			inst.Op = OpFlw
		} else {
			inst.Op = OpFld
		}
	case 0b0100111: // STORE-FP
		inst.Format = FormatS
		raw := (bits(word, 31, 25) << 5) | bits(word, 11, 7)
		inst.Imm = signExtend(uint64(raw), 11)
		if funct3 == 0b010 {
			inst.Op = OpFsw
		} else {
			inst.Op = OpFsd
		}
	case 0b1000011, 0b1000111, 0b1001011, 0b1001111: // FMADD family
		inst.Format = FormatR4
		inst.RM = funct3
		isDouble := bits(word, 26, 25) == 1
		switch opcode {
		case 0b1000011:
			inst.Op = pick(isDouble, OpFmaddD, OpFmaddS)
		case 0b1000111:
			inst.Op = pick(isDouble, OpFmsubD, OpFmsubS)
		case 0b1001011:
			inst.Op = pick(isDouble, OpFnmsubD, OpFnmsubS)
		case 0b1001111:
			inst.Op = pick(isDouble, OpFnmaddD, OpFnmaddS)
		}
	case 0b1010011: // OP-FP
		inst.Format = FormatR
		inst.RM = funct3
		inst.decodeOpFP(funct7, rs2)
	case 0b0001111:
		inst.Format = FormatSystem
		if funct3 == 0b001 {
			inst.Op = OpFenceI
		} else {
			inst.Op = OpFence
		}
	case 0b1110011: // SYSTEM
		inst.decodeSystem(word, funct3, rs2, funct7)
	}

	return inst
}

func pick(cond bool, ifTrue, ifFalse Op) Op {
	if cond {
		return ifTrue
	}
	return ifFalse
}

func (inst *Instruction) decodeOpRR(funct3 uint8, funct7 uint8) {
	switch {
	case funct3 == 0b000 && funct7 == 0b0000000:
		inst.Op = OpAdd
	case funct3 == 0b000 && funct7 == 0b0100000:
		inst.Op = OpSub
	case funct3 == 0b000 && funct7 == 0b0000001:
		inst.Op = OpMul
	case funct3 == 0b001 && funct7 == 0b0000000:
		inst.Op = OpSll
	case funct3 == 0b001 && funct7 == 0b0000001:
		inst.Op = OpMulh
	case funct3 == 0b010 && funct7 == 0b0000000:
		inst.Op = OpSlt
	case funct3 == 0b010 && funct7 == 0b0000001:
		inst.Op = OpMulhsu
	case funct3 == 0b011 && funct7 == 0b0000000:
		inst.Op = OpSltu
	case funct3 == 0b011 && funct7 == 0b0000001:
		inst.Op = OpMulhu
	case funct3 == 0b100 && funct7 == 0b0000000:
		inst.Op = OpXor
	case funct3 == 0b100 && funct7 == 0b0000001:
		inst.Op = OpDiv
	case funct3 == 0b101 && funct7 == 0b0000000:
		inst.Op = OpSrl
	case funct3 == 0b101 && funct7 == 0b0100000:
		inst.Op = OpSra
	case funct3 == 0b101 && funct7 == 0b0000001:
		inst.Op = OpDivu
	case funct3 == 0b110 && funct7 == 0b0000000:
		inst.Op = OpOr
	case funct3 == 0b110 && funct7 == 0b0000001:
		inst.Op = OpRem
	case funct3 == 0b111 && funct7 == 0b0000000:
		inst.Op = OpAnd
	case funct3 == 0b111 && funct7 == 0b0000001:
		inst.Op = OpRemu
	}
}

func (inst *Instruction) decodeOpRRW(funct3 uint8, funct7 uint8) {
	switch {
	case funct3 == 0b000 && funct7 == 0b0000000:
		inst.Op = OpAddw
	case funct3 == 0b000 && funct7 == 0b0100000:
		inst.Op = OpSubw
	case funct3 == 0b000 && funct7 == 0b0000001:
		inst.Op = OpMulw
	case funct3 == 0b001:
		inst.Op = OpSllw
	case funct3 == 0b100 && funct7 == 0b0000001:
		inst.Op = OpDivw
	case funct3 == 0b101 && funct7 == 0b0000000:
		inst.Op = OpSrlw
	case funct3 == 0b101 && funct7 == 0b0100000:
		inst.Op = OpSraw
	case funct3 == 0b101 && funct7 == 0b0000001:
		inst.Op = OpDivuw
	case funct3 == 0b110 && funct7 == 0b0000001:
		inst.Op = OpRemw
	case funct3 == 0b111 && funct7 == 0b0000001:
		inst.Op = OpRemuw
	}
}

func (inst *Instruction) decodeAMO(funct3 uint8, funct5 uint8) {
	is64 := funct3 == 0b011
	switch funct5 {
	case 0b00010:
		inst.Op = pick(is64, OpLrD, OpLrW)
	case 0b00011:
		inst.Op = pick(is64, OpScD, OpScW)
	case 0b00001:
		inst.Op = pick(is64, OpAmoswapD, OpAmoswapW)
	case 0b00000:
		inst.Op = pick(is64, OpAmoaddD, OpAmoaddW)
	case 0b00100:
		inst.Op = pick(is64, OpAmoxorD, OpAmoxorW)
	case 0b01100:
		inst.Op = pick(is64, OpAmoandD, OpAmoandW)
	case 0b01000:
		inst.Op = pick(is64, OpAmoorD, OpAmoorW)
	case 0b10000:
		inst.Op = pick(is64, OpAmominD, OpAmominW)
	case 0b10100:
		inst.Op = pick(is64, OpAmomaxD, OpAmomaxW)
	case 0b11000:
		inst.Op = pick(is64, OpAmominuD, OpAmominuW)
	case 0b11100:
		inst.Op = pick(is64, OpAmomaxuD, OpAmomaxuW)
	}
}

// decodeOpFP decodes the OP-FP major opcode. funct7 carries both the
// operation family and, in its low bit, single/double selection for most
// forms; rs2 disambiguates conversion/sign-move sub-forms.
func (inst *Instruction) decodeOpFP(funct7 uint8, rs2 uint8) {
	dbl := funct7&1 == 1
	switch funct7 >> 2 {
	case 0b00000:
		inst.Op = pick(dbl, OpFaddD, OpFaddS)
	case 0b00001:
		inst.Op = pick(dbl, OpFsubD, OpFsubS)
	case 0b00010:
		inst.Op = pick(dbl, OpFmulD, OpFmulS)
	case 0b00011:
		inst.Op = pick(dbl, OpFdivD, OpFdivS)
	case 0b01011:
		inst.Op = pick(dbl, OpFsqrtD, OpFsqrtS)
	case 0b00100:
		switch inst.RM {
		case 0:
			inst.Op = pick(dbl, OpFsgnjD, OpFsgnjS)
		case 1:
			inst.Op = pick(dbl, OpFsgnjnD, OpFsgnjnS)
		default:
			inst.Op = pick(dbl, OpFsgnjxD, OpFsgnjxS)
		}
	case 0b00101:
		if inst.RM == 0 {
			inst.Op = pick(dbl, OpFminD, OpFminS)
		} else {
			inst.Op = pick(dbl, OpFmaxD, OpFmaxS)
		}
	case 0b01000: // FCVT.S.D / FCVT.D.S
		if dbl {
			inst.Op = OpFcvtDS
		} else {
			inst.Op = OpFcvtSD
		}
	case 0b10100:
		switch inst.RM {
		case 0b010:
			inst.Op = pick(dbl, OpFeqD, OpFeqS)
		case 0b001:
			inst.Op = pick(dbl, OpFltD, OpFltS)
		default:
			inst.Op = pick(dbl, OpFleD, OpFleS)
		}
	case 0b11000: // FCVT.W(U)/L(U).S/D — rs2 selects target int type
		switch rs2 {
		case 0:
			inst.Op = pick(dbl, OpFcvtWD, OpFcvtWS)
		case 1:
			inst.Op = pick(dbl, OpFcvtWuD, OpFcvtWuS)
		case 2:
			inst.Op = pick(dbl, OpFcvtLD, OpFcvtLS)
		case 3:
			inst.Op = pick(dbl, OpFcvtLuD, OpFcvtLuS)
		}
	case 0b11010: // FCVT.S/D.W(U)/L(U)
		switch rs2 {
		case 0:
			inst.Op = pick(dbl, OpFcvtDW, OpFcvtSW)
		case 1:
			inst.Op = pick(dbl, OpFcvtDWu, OpFcvtSWu)
		case 2:
			inst.Op = pick(dbl, OpFcvtDL, OpFcvtSL)
		case 3:
			inst.Op = pick(dbl, OpFcvtDLu, OpFcvtSLu)
		}
	case 0b11100:
		if inst.RM == 0 {
			inst.Op = pick(dbl, OpFmvXD, OpFmvXW)
		} else {
			inst.Op = pick(dbl, OpFclassD, OpFclassS)
		}
	case 0b11110:
		inst.Op = pick(dbl, OpFmvDX, OpFmvWX)
	}
}

func (inst *Instruction) decodeSystem(word uint32, funct3, rs2 uint8, funct7 uint8) {
	if funct3 == 0 {
		inst.Format = FormatSystem
		switch {
		case rs2 == 0 && funct7 == 0:
			inst.Op = OpEcall
		case rs2 == 1 && funct7 == 0:
			inst.Op = OpEbreak
		case funct7 == 0b0001000 && rs2 == 0b00010:
			inst.Op = OpSret
		case funct7 == 0b0011000 && rs2 == 0b00010:
			inst.Op = OpMret
		case funct7 == 0b0001000 && rs2 == 0b00101:
			inst.Op = OpWfi
		case funct7 == 0b0001001:
			inst.Op = OpSfenceVma
		}
		return
	}

	inst.Format = FormatCSR
	inst.Csr = uint16(bits(word, 31, 20))
	switch funct3 {
	case 0b001:
		inst.Op = OpCsrrw
	case 0b010:
		inst.Op = OpCsrrs
	case 0b011:
		inst.Op = OpCsrrc
	case 0b101:
		inst.Op = OpCsrrwi
		inst.Imm = int64(inst.Rs1)
	case 0b110:
		inst.Op = OpCsrrsi
		inst.Imm = int64(inst.Rs1)
	case 0b111:
		inst.Op = OpCsrrci
		inst.Imm = int64(inst.Rs1)
	}
}
