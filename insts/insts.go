// Package insts provides RV64IMAFDC instruction definitions and decoding.
//
// This package implements decoding of 32-bit and 16-bit (RVC, "C" extension)
// RISC-V machine code into a structured instruction representation. It
// supports:
//   - Integer computational (RV64I): ADDI/SLTI/ANDI/ORI/XORI/shifts, ADD/SUB/
//     AND/OR/XOR/SLT/SLL/SRL/SRA register forms, LUI/AUIPC
//   - Control transfer: JAL/JALR, all six BRANCH conditions
//   - Loads/stores: LB/LH/LW/LD/LBU/LHU/LWU, SB/SH/SW/SD
//   - Multiply/divide (RV64M): MUL/MULH/MULHU/MULHSU/DIV/DIVU/REM/REMU and
//     the W (32-bit) forms
//   - Atomics (RV64A): LR/SC, AMOSWAP/AMOADD/AMOAND/AMOOR/AMOXOR/AMOMIN(U)/
//     AMOMAX(U)
//   - Single/double precision float (RV64FD): loads/stores, arithmetic,
//     conversions, comparisons, classification
//   - CSR and system: CSRRW/CSRRS/CSRRC and immediate forms, ECALL, EBREAK,
//     MRET, SRET, WFI, SFENCE.VMA
//   - Compressed 16-bit encodings (RVC) for the common subset of the above
//
// Usage:
//
//	dec := insts.NewDecoder()
//	inst := dec.Decode32(0x00a58593) // ADDI a1, a1, 10
//	half := dec.Decode16(0x4505)     // c.li a0, 1
package insts
