package latency_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim64/insts"
	"github.com/sarchlab/rvsim64/timing/latency"
)

var _ = Describe("Latency", func() {
	var (
		table   *latency.Table
		decoder *insts.Decoder
	)

	BeforeEach(func() {
		table = latency.NewTable()
		decoder = insts.NewDecoder()
	})

	Describe("Default Timing Values", func() {
		It("should have correct ALU latency", func() {
			config := table.Config()
			Expect(config.ALULatency).To(Equal(uint64(1)))
		})

		It("should have correct branch latency", func() {
			config := table.Config()
			Expect(config.BranchLatency).To(Equal(uint64(1)))
		})

		It("should have correct load latency", func() {
			config := table.Config()
			Expect(config.LoadLatency).To(Equal(uint64(4)))
		})

		It("should have correct store latency", func() {
			config := table.Config()
			Expect(config.StoreLatency).To(Equal(uint64(1)))
		})

		It("should have correct branch misprediction penalty", func() {
			config := table.Config()
			Expect(config.BranchMispredictPenalty).To(Equal(uint64(12)))
		})
	})

	Describe("ALU Instruction Latencies", func() {
		It("should return 1 cycle for ADDI", func() {
			// addi x1, x2, 42
			inst := decoder.Decode32(0x02a10093)
			Expect(inst.Op).To(Equal(insts.OpAddi))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})

		It("should return 1 cycle for SUB", func() {
			// sub x1, x2, x3
			inst := decoder.Decode32(0x403100b3)
			Expect(inst.Op).To(Equal(insts.OpSub))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})

		It("should return 1 cycle for ADD", func() {
			// add x1, x2, x3
			inst := decoder.Decode32(0x003100b3)
			Expect(inst.Op).To(Equal(insts.OpAdd))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})

		It("should return 1 cycle for AND", func() {
			// and x1, x2, x3
			inst := decoder.Decode32(0x003170b3)
			Expect(inst.Op).To(Equal(insts.OpAnd))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})

		It("should return 1 cycle for OR", func() {
			// or x1, x2, x3
			inst := decoder.Decode32(0x003160b3)
			Expect(inst.Op).To(Equal(insts.OpOr))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})

		It("should return 1 cycle for XOR", func() {
			// xor x1, x2, x3
			inst := decoder.Decode32(0x003140b3)
			Expect(inst.Op).To(Equal(insts.OpXor))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})
	})

	Describe("Multiply/Divide Instruction Latencies", func() {
		It("should return MultiplyLatency for MUL", func() {
			// mul x1, x2, x3
			inst := decoder.Decode32(0x023100b3)
			Expect(inst.Op).To(Equal(insts.OpMul))
			Expect(table.GetLatency(inst)).To(Equal(uint64(3)))
		})

		It("should return DivideLatencyMax for DIV", func() {
			// div x1, x2, x3
			inst := decoder.Decode32(0x023140b3)
			Expect(inst.Op).To(Equal(insts.OpDiv))
			Expect(table.GetLatency(inst)).To(Equal(table.Config().DivideLatencyMax))
		})
	})

	Describe("Branch Instruction Latencies", func() {
		It("should return 1 cycle for BEQ", func() {
			// beq x1, x2, +100
			inst := decoder.Decode32(0x06208263)
			Expect(inst.Op).To(Equal(insts.OpBeq))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})

		It("should return 1 cycle for BNE", func() {
			// bne x1, x2, +100
			inst := decoder.Decode32(0x06209263)
			Expect(inst.Op).To(Equal(insts.OpBne))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})

		It("should return 1 cycle for JAL", func() {
			// jal x1, +100
			inst := decoder.Decode32(0x064000ef)
			Expect(inst.Op).To(Equal(insts.OpJal))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})

		It("should return 1 cycle for JALR", func() {
			// jalr x1, 4(x2)
			inst := decoder.Decode32(0x004100e7)
			Expect(inst.Op).To(Equal(insts.OpJalr))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})
	})

	Describe("Memory Instruction Latencies", func() {
		It("should return LoadLatency for LD", func() {
			// ld x1, 8(x2)
			inst := decoder.Decode32(0x00813083)
			Expect(inst.Op).To(Equal(insts.OpLd))
			Expect(table.GetLatency(inst)).To(Equal(uint64(4)))
		})

		It("should return StoreLatency for SD", func() {
			// sd x3, 8(x2)
			inst := decoder.Decode32(0x00313423)
			Expect(inst.Op).To(Equal(insts.OpSd))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})

		It("should return LoadLatency for LW", func() {
			// lw x1, 8(x2)
			inst := decoder.Decode32(0x00812083)
			Expect(inst.Op).To(Equal(insts.OpLw))
			Expect(table.GetLatency(inst)).To(Equal(uint64(4)))
		})
	})

	Describe("Floating-Point Instruction Latencies", func() {
		It("should return FPLatency for FADD.D", func() {
			inst := &insts.Instruction{Op: insts.OpFaddD}
			Expect(table.GetLatency(inst)).To(Equal(table.Config().FPLatency))
		})

		It("should return DivideLatencyMax for FDIV.D", func() {
			inst := &insts.Instruction{Op: insts.OpFdivD}
			Expect(table.GetLatency(inst)).To(Equal(table.Config().DivideLatencyMax))
		})

		It("should return DivideLatencyMax for FSQRT.S", func() {
			inst := &insts.Instruction{Op: insts.OpFsqrtS}
			Expect(table.GetLatency(inst)).To(Equal(table.Config().DivideLatencyMax))
		})
	})

	Describe("Instruction Type Detection", func() {
		It("should detect memory operations", func() {
			ld := decoder.Decode32(0x00813083)
			sd := decoder.Decode32(0x00313423)
			addi := decoder.Decode32(0x02a10093)

			Expect(table.IsMemoryOp(ld)).To(BeTrue())
			Expect(table.IsMemoryOp(sd)).To(BeTrue())
			Expect(table.IsMemoryOp(addi)).To(BeFalse())
		})

		It("should detect load operations", func() {
			ld := decoder.Decode32(0x00813083)
			lw := decoder.Decode32(0x00812083)
			sd := decoder.Decode32(0x00313423)

			Expect(table.IsLoadOp(ld)).To(BeTrue())
			Expect(table.IsLoadOp(lw)).To(BeTrue())
			Expect(table.IsLoadOp(sd)).To(BeFalse())
		})

		It("should detect store operations", func() {
			ld := decoder.Decode32(0x00813083)
			sd := decoder.Decode32(0x00313423)

			Expect(table.IsStoreOp(sd)).To(BeTrue())
			Expect(table.IsStoreOp(ld)).To(BeFalse())
		})

		It("should detect branch operations", func() {
			beq := decoder.Decode32(0x06208263)
			jal := decoder.Decode32(0x064000ef)
			jalr := decoder.Decode32(0x004100e7)
			addi := decoder.Decode32(0x02a10093)

			Expect(table.IsBranchOp(beq)).To(BeTrue())
			Expect(table.IsBranchOp(jal)).To(BeTrue())
			Expect(table.IsBranchOp(jalr)).To(BeTrue())
			Expect(table.IsBranchOp(addi)).To(BeFalse())
		})
	})

	Describe("Nil Instruction Handling", func() {
		It("should return 1 for nil instruction", func() {
			Expect(table.GetLatency(nil)).To(Equal(uint64(1)))
		})

		It("should return false for nil instruction memory check", func() {
			Expect(table.IsMemoryOp(nil)).To(BeFalse())
			Expect(table.IsLoadOp(nil)).To(BeFalse())
			Expect(table.IsStoreOp(nil)).To(BeFalse())
			Expect(table.IsBranchOp(nil)).To(BeFalse())
		})
	})

	Describe("Custom Configuration", func() {
		It("should use custom config values", func() {
			config := &latency.TimingConfig{
				ALULatency:              2,
				BranchLatency:           3,
				BranchMispredictPenalty: 20,
				LoadLatency:             8,
				StoreLatency:            2,
				MultiplyLatency:         4,
				DivideLatencyMin:        12,
				DivideLatencyMax:        20,
				SyscallLatency:          1,
				FPLatency:               6,
			}
			customTable := latency.NewTableWithConfig(config)

			addi := decoder.Decode32(0x02a10093)
			ld := decoder.Decode32(0x00813083)
			beq := decoder.Decode32(0x06208263)

			Expect(customTable.GetLatency(addi)).To(Equal(uint64(2)))
			Expect(customTable.GetLatency(ld)).To(Equal(uint64(8)))
			Expect(customTable.GetLatency(beq)).To(Equal(uint64(3)))
		})
	})
})

var _ = Describe("TimingConfig", func() {
	Describe("Default Config", func() {
		It("should create valid default config", func() {
			config := latency.DefaultTimingConfig()
			Expect(config.Validate()).To(Succeed())
		})
	})

	Describe("Validation", func() {
		It("should reject zero ALU latency", func() {
			config := latency.DefaultTimingConfig()
			config.ALULatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject zero branch latency", func() {
			config := latency.DefaultTimingConfig()
			config.BranchLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject zero load latency", func() {
			config := latency.DefaultTimingConfig()
			config.LoadLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject zero store latency", func() {
			config := latency.DefaultTimingConfig()
			config.StoreLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject inverted divide latency range", func() {
			config := latency.DefaultTimingConfig()
			config.DivideLatencyMin = 20
			config.DivideLatencyMax = 10
			Expect(config.Validate()).To(HaveOccurred())
		})
	})

	Describe("Clone", func() {
		It("should create independent copy", func() {
			original := latency.DefaultTimingConfig()
			clone := original.Clone()

			clone.ALULatency = 100

			Expect(original.ALULatency).To(Equal(uint64(1)))
			Expect(clone.ALULatency).To(Equal(uint64(100)))
		})
	})

	Describe("File Operations", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "latency-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should save and load config", func() {
			original := latency.DefaultTimingConfig()
			original.ALULatency = 5
			original.LoadLatency = 10

			path := filepath.Join(tempDir, "timing.json")
			Expect(original.SaveConfig(path)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.ALULatency).To(Equal(uint64(5)))
			Expect(loaded.LoadLatency).To(Equal(uint64(10)))
		})

		It("should return error for non-existent file", func() {
			_, err := latency.LoadConfig("/nonexistent/path/timing.json")
			Expect(err).To(HaveOccurred())
		})

		It("should return error for invalid JSON", func() {
			path := filepath.Join(tempDir, "invalid.json")
			err := os.WriteFile(path, []byte("not valid json"), 0644)
			Expect(err).NotTo(HaveOccurred())

			_, err = latency.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
