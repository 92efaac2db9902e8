// Package core wraps the pipeline package in a small, stats.Stats-free
// interface for callers (such as tests) that only need PC/halt/run
// control rather than direct access to the pipeline's stage-by-stage
// internals.
package core

import (
	"github.com/sarchlab/rvsim64/emu"
	"github.com/sarchlab/rvsim64/stats"
	"github.com/sarchlab/rvsim64/timing/pipeline"
)

// Stats holds a point-in-time summary of the core's performance counters.
type Stats struct {
	Cycles       uint64
	Instructions uint64
	Stalls       uint64
}

// Core represents a cycle-accurate RV64IMAFDC core model: one pipeline
// sharing a register file and memory with the functional emulator.
type Core struct {
	// Pipeline is the underlying timing pipeline.
	Pipeline *pipeline.Pipeline

	regFile *emu.RegFile
	memory  *emu.Memory
	opts    []pipeline.Option
}

// NewCore creates a new Core with the given register file and memory.
func NewCore(regFile *emu.RegFile, memory *emu.Memory, opts ...pipeline.Option) *Core {
	return &Core{
		Pipeline: pipeline.NewPipeline(regFile, memory, opts...),
		regFile:  regFile,
		memory:   memory,
		opts:     opts,
	}
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint64) {
	c.Pipeline.SetPC(pc)
}

// Tick executes one pipeline cycle.
func (c *Core) Tick() {
	c.Pipeline.Tick()
}

// Halted returns true if the core has halted, which happens only when the
// program exits through the exit syscall.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// ExitCode returns the exit code if the core has halted.
func (c *Core) ExitCode() int64 {
	return c.Pipeline.ExitCode()
}

// Stats returns a summary of the core's performance counters. Callers
// wanting the full dotted-key dictionary (per-cache-level, per-trap-cause)
// should use c.Pipeline.Stats() directly.
func (c *Core) Stats() Stats {
	s := c.Pipeline.Stats()
	return Stats{
		Cycles:       s.Get(stats.KeyCycles),
		Instructions: s.Get(stats.KeyInstructionsRetired),
		Stalls:       s.Get(stats.KeyStallsMem) + s.Get(stats.KeyStallsControl) + s.Get(stats.KeyStallsData),
	}
}

// Run executes the core until it halts. Returns the exit code.
func (c *Core) Run() int64 {
	c.Pipeline.Run(0)
	return c.Pipeline.ExitCode()
}

// RunCycles executes the core for at most the given number of cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	c.Pipeline.Run(cycles)
	return !c.Pipeline.Halted()
}

// Reset discards all core state, including in-flight pipeline latches and
// accumulated statistics, and rebuilds a fresh pipeline over the same
// register file and memory.
func (c *Core) Reset() {
	*c.regFile = emu.RegFile{}
	c.Pipeline = pipeline.NewPipeline(c.regFile, c.memory, c.opts...)
}
