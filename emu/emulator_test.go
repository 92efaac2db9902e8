package emu_test

import (
	"bytes"
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim64/emu"
)

var _ = Describe("Emulator", func() {
	var (
		e         *emu.Emulator
		stdoutBuf *bytes.Buffer
	)

	BeforeEach(func() {
		stdoutBuf = &bytes.Buffer{}
		e = emu.NewEmulator(
			emu.WithStdout(stdoutBuf),
			emu.WithMemory(emu.NewMemory(0, 0x10000)),
		)
	})

	Describe("NewEmulator", func() {
		It("should create an emulator with initialized components", func() {
			Expect(e).NotTo(BeNil())
			Expect(e.RegFile()).NotTo(BeNil())
			Expect(e.Memory()).NotTo(BeNil())
		})
	})

	Describe("LoadProgram", func() {
		It("should set the PC to the entry point", func() {
			entryPoint := uint64(0x1000)
			program := []byte{0x00, 0x00, 0x00, 0x00}

			e.LoadProgram(entryPoint, program)

			Expect(e.RegFile().PC).To(Equal(entryPoint))
		})

		It("should load program bytes into memory", func() {
			entryPoint := uint64(0x2000)
			program := []byte{0xDE, 0xAD, 0xBE, 0xEF}

			e.LoadProgram(entryPoint, program)

			Expect(e.Memory().Read8(0x2000)).To(Equal(byte(0xDE)))
			Expect(e.Memory().Read8(0x2001)).To(Equal(byte(0xAD)))
			Expect(e.Memory().Read8(0x2002)).To(Equal(byte(0xBE)))
			Expect(e.Memory().Read8(0x2003)).To(Equal(byte(0xEF)))
		})
	})

	Describe("Step", func() {
		Context("ALU instructions", func() {
			It("should execute ADDI", func() {
				inst := encodeAddi(5, 1, 5)
				program := uint32ToBytes(inst)

				e.RegFile().WriteReg(1, 10)
				e.LoadProgram(0x1000, program)

				result := e.Step()

				Expect(result.Trapped).To(BeFalse())
				Expect(result.Exited).To(BeFalse())
				Expect(e.RegFile().ReadReg(5)).To(Equal(uint64(15)))
				Expect(e.RegFile().PC).To(Equal(uint64(0x1004)))
			})

			It("should execute ADDI with a negative immediate", func() {
				inst := encodeAddi(5, 1, -3)
				program := uint32ToBytes(inst)

				e.RegFile().WriteReg(1, 10)
				e.LoadProgram(0x1000, program)

				result := e.Step()

				Expect(result.Trapped).To(BeFalse())
				Expect(e.RegFile().ReadReg(5)).To(Equal(uint64(7)))
			})

			It("should execute ADD register", func() {
				inst := encodeAdd(5, 1, 2)
				program := uint32ToBytes(inst)

				e.RegFile().WriteReg(1, 10)
				e.RegFile().WriteReg(2, 5)
				e.LoadProgram(0x1000, program)

				result := e.Step()

				Expect(result.Trapped).To(BeFalse())
				Expect(e.RegFile().ReadReg(5)).To(Equal(uint64(15)))
			})
		})

		Context("Load/Store instructions", func() {
			It("should execute LD (64-bit)", func() {
				inst := encodeLd(5, 1, 8)
				program := uint32ToBytes(inst)

				e.RegFile().WriteReg(1, 0x2000)
				e.Memory().Write64(0x2008, 0xDEADBEEFCAFEBABE)
				e.LoadProgram(0x1000, program)

				e.Step()

				Expect(e.RegFile().ReadReg(5)).To(Equal(uint64(0xDEADBEEFCAFEBABE)))
			})

			It("should execute SD (64-bit)", func() {
				inst := encodeSd(2, 1, 16)
				program := uint32ToBytes(inst)

				e.RegFile().WriteReg(1, 0x123456789ABCDEF0)
				e.RegFile().WriteReg(2, 0x3000)
				e.LoadProgram(0x1000, program)

				e.Step()

				Expect(e.Memory().Read64(0x3010)).To(Equal(uint64(0x123456789ABCDEF0)))
			})
		})

		Context("Branch instructions", func() {
			It("should execute JAL (unconditional jump)", func() {
				inst := encodeJal(0, 8)
				program := uint32ToBytes(inst)

				e.LoadProgram(0x1000, program)

				e.Step()

				Expect(e.RegFile().PC).To(Equal(uint64(0x1008)))
			})

			It("should execute JAL with a link register", func() {
				inst := encodeJal(1, 12)
				program := uint32ToBytes(inst)

				e.LoadProgram(0x1000, program)

				e.Step()

				Expect(e.RegFile().PC).To(Equal(uint64(0x100C)))
				Expect(e.RegFile().ReadReg(1)).To(Equal(uint64(0x1004)))
			})

			It("should execute BEQ when operands are equal", func() {
				inst := encodeBeq(1, 2, 8)
				program := uint32ToBytes(inst)

				e.LoadProgram(0x1000, program) // x1 and x2 both default to 0

				e.Step()

				Expect(e.RegFile().PC).To(Equal(uint64(0x1008)))
			})

			It("should not branch BEQ when operands differ", func() {
				inst := encodeBeq(1, 2, 8)
				program := uint32ToBytes(inst)

				e.RegFile().WriteReg(2, 1)
				e.LoadProgram(0x1000, program)

				e.Step()

				Expect(e.RegFile().PC).To(Equal(uint64(0x1004)))
			})

			It("should execute JALR", func() {
				inst := encodeJalr(0, 1, 0)
				program := uint32ToBytes(inst)

				e.RegFile().WriteReg(1, 0x2000)
				e.LoadProgram(0x1000, program)

				e.Step()

				Expect(e.RegFile().PC).To(Equal(uint64(0x2000)))
			})
		})

		Context("ECALL instruction", func() {
			It("should handle exit syscall", func() {
				inst := encodeEcall()
				program := uint32ToBytes(inst)

				e.RegFile().WriteReg(17, emu.SyscallExit)
				e.RegFile().WriteReg(10, 42)
				e.LoadProgram(0x1000, program)

				result := e.Step()

				Expect(result.Exited).To(BeTrue())
				Expect(result.ExitCode).To(Equal(int64(42)))
			})

			It("should handle write syscall", func() {
				msg := []byte("Hello")
				bufAddr := uint64(0x3000)
				for i, b := range msg {
					e.Memory().Write8(bufAddr+uint64(i), b)
				}

				inst := encodeEcall()
				program := uint32ToBytes(inst)

				e.RegFile().WriteReg(17, emu.SyscallWrite)
				e.RegFile().WriteReg(10, 1)
				e.RegFile().WriteReg(11, bufAddr)
				e.RegFile().WriteReg(12, uint64(len(msg)))
				e.LoadProgram(0x1000, program)

				result := e.Step()

				Expect(result.Exited).To(BeFalse())
				Expect(stdoutBuf.String()).To(Equal("Hello"))
			})
		})

		Context("Unknown instructions", func() {
			It("should trap illegal instructions", func() {
				// 0xFFFFFFFF's opcode bits are reserved, matching no format.
				program := uint32ToBytes(0xFFFFFFFF)

				e.LoadProgram(0x1000, program)

				result := e.Step()

				Expect(result.Trapped).To(BeTrue())
				Expect(result.Trap.Cause).To(Equal(emu.TrapIllegalInst))
			})
		})
	})

	Describe("Run", func() {
		It("should execute until exit syscall", func() {
			program := []byte{}
			program = append(program, uint32ToBytes(encodeAddi(17, 0, 93))...)
			program = append(program, uint32ToBytes(encodeAddi(10, 0, 42))...)
			program = append(program, uint32ToBytes(encodeEcall())...)

			e.LoadProgram(0x1000, program)

			result, err := e.Run(0)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.ExitCode).To(Equal(int64(42)))
		})

		It("should execute a simple computation before exit", func() {
			program := []byte{}
			program = append(program, uint32ToBytes(encodeAddi(10, 0, 10))...)
			program = append(program, uint32ToBytes(encodeAddi(11, 0, 5))...)
			program = append(program, uint32ToBytes(encodeAdd(10, 10, 11))...)
			program = append(program, uint32ToBytes(encodeAddi(17, 0, 93))...)
			program = append(program, uint32ToBytes(encodeEcall())...)

			e.LoadProgram(0x1000, program)

			result, err := e.Run(0)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.ExitCode).To(Equal(int64(15)))
		})

		It("should handle branches in a loop", func() {
			program := []byte{}
			program = append(program, uint32ToBytes(encodeAddi(5, 0, 3))...)  // x5 = 3
			program = append(program, uint32ToBytes(encodeAddi(5, 5, -1))...) // loop: x5--
			program = append(program, uint32ToBytes(encodeBne(5, 0, -4))...)  // loop while x5 != 0
			program = append(program, uint32ToBytes(encodeAddi(10, 0, 0))...)
			program = append(program, uint32ToBytes(encodeAddi(17, 0, 93))...)
			program = append(program, uint32ToBytes(encodeEcall())...)

			e.LoadProgram(0x1000, program)

			result, err := e.Run(0)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.ExitCode).To(Equal(int64(0)))
		})

		It("should write output during execution", func() {
			e.Memory().Write8(0x3000, 'H')
			e.Memory().Write8(0x3001, 'i')
			e.RegFile().WriteReg(11, 0x3000)

			program := []byte{}
			program = append(program, uint32ToBytes(encodeAddi(17, 0, 64))...) // SyscallWrite
			program = append(program, uint32ToBytes(encodeAddi(10, 0, 1))...)  // stdout
			program = append(program, uint32ToBytes(encodeAddi(12, 0, 2))...)  // count
			program = append(program, uint32ToBytes(encodeEcall())...)
			program = append(program, uint32ToBytes(encodeAddi(17, 0, 93))...)
			program = append(program, uint32ToBytes(encodeAddi(10, 0, 0))...)
			program = append(program, uint32ToBytes(encodeEcall())...)

			e.LoadProgram(0x1000, program)

			result, err := e.Run(0)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.ExitCode).To(Equal(int64(0)))
			Expect(stdoutBuf.String()).To(Equal("Hi"))
		})
	})

	Describe("WithEntryPoint option", func() {
		It("should set the initial program counter", func() {
			e = emu.NewEmulator(
				emu.WithEntryPoint(0x8000_0000),
			)

			Expect(e.RegFile().PC).To(Equal(uint64(0x8000_0000)))
		})
	})
})

// Helper functions to encode RV64 base-ISA instructions.

func uint32ToBytes(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

func encodeAddi(rd, rs1 uint8, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | uint32(rs1)<<15 | uint32(rd)<<7 | 0x13
}

func encodeAdd(rd, rs1, rs2 uint8) uint32 {
	return uint32(rs2)<<20 | uint32(rs1)<<15 | uint32(rd)<<7 | 0x33
}

func encodeLd(rd, rs1 uint8, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | uint32(rs1)<<15 | 0b011<<12 | uint32(rd)<<7 | 0x03
}

func encodeSd(rs1, rs2 uint8, imm int32) uint32 {
	u := uint32(imm) & 0xFFF
	return (u>>5)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | 0b011<<12 | (u&0x1F)<<7 | 0x23
}

func encodeBeq(rs1, rs2 uint8, imm int32) uint32 {
	return encodeBranch(rs1, rs2, 0, imm)
}

func encodeBne(rs1, rs2 uint8, imm int32) uint32 {
	return encodeBranch(rs1, rs2, 1, imm)
}

func encodeBranch(rs1, rs2 uint8, funct3 uint8, imm int32) uint32 {
	u := uint32(imm) & 0x1FFF
	bit12 := (u >> 12) & 1
	bit11 := (u >> 11) & 1
	bits10_5 := (u >> 5) & 0x3F
	bits4_1 := (u >> 1) & 0xF
	return bit12<<31 | bits10_5<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 |
		uint32(funct3)<<12 | bits4_1<<8 | bit11<<7 | 0x63
}

func encodeJal(rd uint8, imm int32) uint32 {
	u := uint32(imm) & 0x1FFFFF
	bit20 := (u >> 20) & 1
	bits10_1 := (u >> 1) & 0x3FF
	bit11 := (u >> 11) & 1
	bits19_12 := (u >> 12) & 0xFF
	return bit20<<31 | bits10_1<<21 | bit11<<20 | bits19_12<<12 | uint32(rd)<<7 | 0x6F
}

func encodeJalr(rd, rs1 uint8, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | uint32(rs1)<<15 | uint32(rd)<<7 | 0x67
}

func encodeEcall() uint32 {
	return 0x73
}
