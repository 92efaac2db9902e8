package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim64/emu"
	"github.com/sarchlab/rvsim64/insts"
)

var _ = Describe("BranchUnit", func() {
	var (
		regFile    *emu.RegFile
		branchUnit *emu.BranchUnit
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		regFile.PC = 0x1000
		branchUnit = emu.NewBranchUnit(regFile)
	})

	Describe("Jal", func() {
		It("should compute the jump target and save the link address", func() {
			target := branchUnit.Jal(1, 0x1000, 100, 4)

			Expect(target).To(Equal(uint64(0x1000 + 100)))
			Expect(regFile.ReadReg(1)).To(Equal(uint64(0x1000 + 4)))
		})

		It("should jump backward", func() {
			target := branchUnit.Jal(1, 0x1000, -100, 4)

			Expect(target).To(Equal(uint64(0x1000 - 100)))
		})

		It("should not write a link register when rd is x0", func() {
			branchUnit.Jal(0, 0x1000, 8, 4)

			Expect(regFile.ReadReg(0)).To(Equal(uint64(0)))
		})

		It("should save pc+size even for a zero offset", func() {
			target := branchUnit.Jal(5, 0x2000, 0, 4)

			Expect(target).To(Equal(uint64(0x2000)))
			Expect(regFile.ReadReg(5)).To(Equal(uint64(0x2000 + 4)))
		})
	})

	Describe("Jalr", func() {
		It("should compute target from rs1+offset with bit 0 cleared", func() {
			target := branchUnit.Jalr(1, 0x1000, 0x4000, 5, 4)

			Expect(target).To(Equal(uint64(0x4004)))
			Expect(regFile.ReadReg(1)).To(Equal(uint64(0x1000 + 4)))
		})

		It("should clear the low bit of the computed target", func() {
			target := branchUnit.Jalr(1, 0x1000, 0x4001, 0, 4)

			Expect(target).To(Equal(uint64(0x4000)))
		})

		It("should handle a negative offset", func() {
			target := branchUnit.Jalr(1, 0x1000, 0x4000, -4, 4)

			Expect(target).To(Equal(uint64(0x3FFC)))
		})
	})

	Describe("EvalBranch", func() {
		It("BEQ: should be true when operands are equal", func() {
			Expect(emu.EvalBranch(insts.OpBeq, 5, 5)).To(BeTrue())
			Expect(emu.EvalBranch(insts.OpBeq, 5, 6)).To(BeFalse())
		})

		It("BNE: should be true when operands differ", func() {
			Expect(emu.EvalBranch(insts.OpBne, 5, 6)).To(BeTrue())
			Expect(emu.EvalBranch(insts.OpBne, 5, 5)).To(BeFalse())
		})

		It("BLT: should compare operands as signed", func() {
			negOne := uint64(^uint64(0))
			Expect(emu.EvalBranch(insts.OpBlt, negOne, 1)).To(BeTrue())
			Expect(emu.EvalBranch(insts.OpBlt, 1, negOne)).To(BeFalse())
		})

		It("BGE: should compare operands as signed", func() {
			negOne := uint64(^uint64(0))
			Expect(emu.EvalBranch(insts.OpBge, 1, negOne)).To(BeTrue())
			Expect(emu.EvalBranch(insts.OpBge, negOne, 1)).To(BeFalse())
			Expect(emu.EvalBranch(insts.OpBge, 5, 5)).To(BeTrue())
		})

		It("BLTU: should compare operands as unsigned", func() {
			negOne := uint64(^uint64(0))
			Expect(emu.EvalBranch(insts.OpBltu, 1, negOne)).To(BeTrue())
			Expect(emu.EvalBranch(insts.OpBltu, negOne, 1)).To(BeFalse())
		})

		It("BGEU: should compare operands as unsigned", func() {
			negOne := uint64(^uint64(0))
			Expect(emu.EvalBranch(insts.OpBgeu, negOne, 1)).To(BeTrue())
			Expect(emu.EvalBranch(insts.OpBgeu, 1, negOne)).To(BeFalse())
			Expect(emu.EvalBranch(insts.OpBgeu, 5, 5)).To(BeTrue())
		})

		It("should return false for a non-branch op", func() {
			Expect(emu.EvalBranch(insts.OpAdd, 5, 5)).To(BeFalse())
		})
	})
})
