package emu

import "encoding/binary"

// Memory is a flat, byte-addressable little-endian RAM model used by the
// functional emulator and as the backing store beneath the timing cache
// hierarchy. It is not bounds-checked against a real physical map; callers
// (the SoC bus) are responsible for routing only RAM-range addresses here.
type Memory struct {
	base  uint64
	bytes []byte
}

// NewMemory creates a Memory of the given size starting at base.
func NewMemory(base uint64, size uint64) *Memory {
	return &Memory{base: base, bytes: make([]byte, size)}
}

func (m *Memory) off(addr uint64) uint64 { return addr - m.base }

// Read8 reads one byte at addr.
func (m *Memory) Read8(addr uint64) uint8 {
	return m.bytes[m.off(addr)]
}

// Write8 writes one byte at addr.
func (m *Memory) Write8(addr uint64, v uint8) {
	m.bytes[m.off(addr)] = v
}

// Read16 reads a little-endian halfword at addr.
func (m *Memory) Read16(addr uint64) uint16 {
	o := m.off(addr)
	return binary.LittleEndian.Uint16(m.bytes[o : o+2])
}

// Write16 writes a little-endian halfword at addr.
func (m *Memory) Write16(addr uint64, v uint16) {
	o := m.off(addr)
	binary.LittleEndian.PutUint16(m.bytes[o:o+2], v)
}

// Read32 reads a little-endian word at addr.
func (m *Memory) Read32(addr uint64) uint32 {
	o := m.off(addr)
	return binary.LittleEndian.Uint32(m.bytes[o : o+4])
}

// Write32 writes a little-endian word at addr.
func (m *Memory) Write32(addr uint64, v uint32) {
	o := m.off(addr)
	binary.LittleEndian.PutUint32(m.bytes[o:o+4], v)
}

// Read64 reads a little-endian doubleword at addr.
func (m *Memory) Read64(addr uint64) uint64 {
	o := m.off(addr)
	return binary.LittleEndian.Uint64(m.bytes[o : o+8])
}

// Write64 writes a little-endian doubleword at addr.
func (m *Memory) Write64(addr uint64, v uint64) {
	o := m.off(addr)
	binary.LittleEndian.PutUint64(m.bytes[o:o+8], v)
}

// LoadProgram copies data into memory starting at addr, as used by the ELF
// and flat-binary loaders to populate segments before tick 0.
func (m *Memory) LoadProgram(addr uint64, data []byte) {
	o := m.off(addr)
	copy(m.bytes[o:], data)
}

// Base returns the lowest address backed by this memory.
func (m *Memory) Base() uint64 { return m.base }

// Size returns the number of bytes backed by this memory.
func (m *Memory) Size() uint64 { return uint64(len(m.bytes)) }

// Contains reports whether addr falls within this memory's range.
func (m *Memory) Contains(addr uint64) bool {
	return addr >= m.base && addr < m.base+uint64(len(m.bytes))
}
