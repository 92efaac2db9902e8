package cache

import "github.com/sarchlab/rvsim64/timing/dram"

// memoryBackend is the subset of emu.Memory this package depends on,
// avoiding a direct import cycle risk and keeping the backing store's
// dependency surface minimal.
type memoryBackend interface {
	Read64(addr uint64) uint64
	Write64(addr uint64, v uint64)
}

// DRAMBackedMemory adapts a flat memory plus a DRAM timing controller into
// a cache.LatencyBackingStore: every fill charges the controller's
// row-hit/row-miss/row-empty latency instead of a single fixed constant,
// letting the last-level cache's miss cost vary with DRAM row-buffer state
// the way a real memory controller's does.
type DRAMBackedMemory struct {
	mem  memoryBackend
	ctrl *dram.Controller
}

// NewDRAMBackedMemory wraps mem with ctrl's timing model.
func NewDRAMBackedMemory(mem memoryBackend, ctrl *dram.Controller) *DRAMBackedMemory {
	return &DRAMBackedMemory{mem: mem, ctrl: ctrl}
}

// Read fetches size bytes starting at addr, eight bytes at a time.
func (d *DRAMBackedMemory) Read(addr uint64, size int) []byte {
	out := make([]byte, size)
	for off := 0; off < size; off += 8 {
		v := d.mem.Read64(addr + uint64(off))
		for i := 0; i < 8 && off+i < size; i++ {
			out[off+i] = byte(v >> (i * 8))
		}
	}
	return out
}

// Write stores data at addr, eight bytes at a time.
func (d *DRAMBackedMemory) Write(addr uint64, data []byte) {
	for off := 0; off < len(data); off += 8 {
		var v uint64
		for i := 0; i < 8 && off+i < len(data); i++ {
			v |= uint64(data[off+i]) << (i * 8)
		}
		d.mem.Write64(addr+uint64(off), v)
	}
}

// ReadLatency reports the DRAM controller's row-hit/row-miss/row-empty
// latency for one access to the given block, without performing the read
// (callers use Read separately to fetch data).
func (d *DRAMBackedMemory) ReadLatency(addr uint64, _ int) uint64 {
	latency, _ := d.ctrl.Access(addr)
	return latency
}
