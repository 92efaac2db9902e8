// Package cache provides cache hierarchy modeling: a set-associative tag
// store with a pluggable replacement policy, backed by whatever the next
// level down (another Cache, a DRAM controller, or flat memory) exposes
// through BackingStore.
package cache

import (
	"github.com/sarchlab/rvsim64/config"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
	// HitLatency in cycles
	HitLatency uint64
	// MissLatency in cycles (includes memory access time)
	MissLatency uint64
	// Policy selects the replacement algorithm. The zero value behaves as
	// config.PolicyLRU.
	Policy config.ReplacementPolicy
}

// DefaultL1IConfig returns a representative L1 instruction cache
// configuration for a server-class RV64 core: 192KB, 6-way, 64B line.
func DefaultL1IConfig() Config {
	return Config{
		Size:          192 * 1024, // 192KB
		Associativity: 6,          // 6-way
		BlockSize:     64,         // 64B cache line
		HitLatency:    1,          // 1 cycle
		MissLatency:   12,         // ~12 cycles to L2
		Policy:        config.PolicyLRU,
	}
}

// DefaultL1DConfig returns a representative L1 data cache configuration:
// 128KB, 8-way, 64B line, 3-cycle load-to-use latency.
func DefaultL1DConfig() Config {
	return Config{
		Size:          128 * 1024, // 128KB
		Associativity: 8,          // 8-way
		BlockSize:     64,         // 64B cache line
		HitLatency:    3,          // 3-cycle load-to-use latency
		MissLatency:   12,         // ~12 cycles to L2
		Policy:        config.PolicyLRU,
	}
}

// DefaultL2Config returns a representative unified, shared L2 configuration:
// 24MB, 16-way, 128B line. MissLatency is the L2-internal fill cost charged
// before control passes to the L3 or DRAM controller.
func DefaultL2Config() Config {
	return Config{
		Size:          24 * 1024 * 1024, // 24MB
		Associativity: 16,               // 16-way
		BlockSize:     128,              // 128B cache line
		HitLatency:    12,               // ~12 cycles
		MissLatency:   20,               // L2-internal fill cost before L3/DRAM
		Policy:        config.PolicyPLRU,
	}
}

// DefaultL3Config returns a representative last-level cache configuration:
// 32MB, 16-way, 128B line, shared by all cores.
func DefaultL3Config() Config {
	return Config{
		Size:          32 * 1024 * 1024, // 32MB
		Associativity: 16,               // 16-way
		BlockSize:     128,              // 128B cache line
		HitLatency:    30,               // ~30 cycles
		MissLatency:   4,                // bus handoff cost; DRAM adds its own latency
		Policy:        config.PolicyPLRU,
	}
}

// DefaultL2PerCoreConfig returns L2 configuration for per-core L2 setups.
// Useful for simulating systems with private L2 per core.
func DefaultL2PerCoreConfig() Config {
	return Config{
		Size:          512 * 1024, // 512KB per core
		Associativity: 8,          // 8-way
		BlockSize:     128,        // 128B cache line
		HitLatency:    12,         // ~12 cycles
		MissLatency:   150,        // ~150 cycles (unified memory)
		Policy:        config.PolicyLRU,
	}
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of cycles this access takes.
	Latency uint64
	// Data is the data read (for load operations).
	Data uint64
	// Evicted is true if a dirty block was evicted.
	Evicted bool
	// EvictedAddr is the address of the evicted block (if Evicted is true).
	EvictedAddr uint64
}

// StoreForwardLatency is the extra latency (in cycles) when a load hits
// the exact address of the most recent store: the
// store-to-load forwarding path through the store queue adds latency
// compared to a normal L1 hit because the data must be checked against
// pending stores in the store buffer.
const StoreForwardLatency uint64 = 1

// Cache represents a set-associative cache with a pluggable replacement
// policy over a flat backing store.
type Cache struct {
	config Config
	ways   int
	sets   []*set
	policy replacer

	// Data storage - indexed by (setID * associativity + wayID)
	dataStore [][]byte

	// Statistics
	stats Statistics

	// Backing store interface (for fetching on miss and writeback)
	backing BackingStore

	// Store buffer tracking for store-to-load forwarding detection.
	// When a store writes to an address, we record it. A subsequent load
	// to the same address incurs extra forwarding latency.
	recentStoreAddr  uint64
	recentStoreValid bool
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// BackingStore interface for the next level in the memory hierarchy.
type BackingStore interface {
	// Read fetches data from the backing store.
	Read(addr uint64, size int) []byte
	// Write stores data to the backing store.
	Write(addr uint64, data []byte)
}

// LatencyBackingStore is an optional extension of BackingStore for a last
// level whose per-access latency is not a fixed constant, such as a DRAM
// controller that charges a different cost for a row hit, row miss, or row
// conflict. When the attached backing store implements it, handleMiss adds
// the reported latency to the cache's own fill latency instead of relying
// solely on Config.MissLatency.
type LatencyBackingStore interface {
	BackingStore
	ReadLatency(addr uint64, size int) uint64
}

// New creates a new cache with the given configuration.
func New(config Config, backing BackingStore) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)
	totalBlocks := numSets * config.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	sets := make([]*set, numSets)
	for i := range sets {
		sets[i] = newSet(config.Associativity)
	}

	return &Cache{
		config:    config,
		ways:      config.Associativity,
		sets:      sets,
		policy:    newReplacer(config.Policy),
		dataStore: dataStore,
		backing:   backing,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) setIndex(addr uint64) int {
	return int((addr / uint64(c.config.BlockSize)) % uint64(len(c.sets)))
}

func (c *Cache) blockIndex(setID, wayID int) int {
	return setID*c.ways + wayID
}

// lookup finds the valid block tagged with blockAddr in its set, if any.
func (c *Cache) lookup(blockAddr uint64) (setID, wayID int, found bool) {
	setID = c.setIndex(blockAddr)
	s := c.sets[setID]
	for i := range s.blocks {
		if s.blocks[i].valid && s.blocks[i].tag == blockAddr {
			return setID, i, true
		}
	}
	return setID, 0, false
}

// Read performs a cache read operation.
// Returns the access result including hit/miss and latency.
func (c *Cache) Read(addr uint64, size int) AccessResult {
	c.stats.Reads++

	blockAddr := (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)
	setID, wayID, found := c.lookup(blockAddr)

	if found {
		c.stats.Hits++
		c.policy.touch(c.sets[setID], wayID)

		offset := addr % uint64(c.config.BlockSize)
		blockData := c.dataStore[c.blockIndex(setID, wayID)]
		data := extractData(blockData, offset, size)

		latency := c.config.HitLatency
		// Store-to-load forwarding: when a load reads from an address
		// that was recently stored, the data must be forwarded from the
		// store buffer. This adds extra latency over a normal cache hit.
		if c.recentStoreValid && c.recentStoreAddr == addr {
			latency += StoreForwardLatency
			c.recentStoreValid = false // Consume the forwarding event
		}

		return AccessResult{
			Hit:     true,
			Latency: latency,
			Data:    data,
		}
	}

	c.stats.Misses++
	return c.handleMiss(addr, size, false, 0)
}

// Write performs a cache write operation.
// Uses write-allocate policy: on miss, fetch the block first, then write.
func (c *Cache) Write(addr uint64, size int, data uint64) AccessResult {
	c.stats.Writes++

	c.recentStoreAddr = addr
	c.recentStoreValid = true

	blockAddr := (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)
	setID, wayID, found := c.lookup(blockAddr)

	if found {
		c.stats.Hits++
		c.policy.touch(c.sets[setID], wayID)

		offset := addr % uint64(c.config.BlockSize)
		blockData := c.dataStore[c.blockIndex(setID, wayID)]
		storeData(blockData, offset, size, data)
		c.sets[setID].blocks[wayID].dirty = true

		return AccessResult{
			Hit:     true,
			Latency: c.config.HitLatency,
		}
	}

	c.stats.Misses++
	return c.handleMiss(addr, size, true, data)
}

// handleMiss handles a cache miss by fetching from backing store.
func (c *Cache) handleMiss(addr uint64, size int, isWrite bool, writeData uint64) AccessResult {
	result := AccessResult{
		Hit:     false,
		Latency: c.config.MissLatency,
	}

	blockAddr := (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)
	setID := c.setIndex(blockAddr)
	s := c.sets[setID]

	wayID := c.policy.victim(s)
	victim := &s.blocks[wayID]
	victimData := c.dataStore[c.blockIndex(setID, wayID)]

	if victim.valid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.tag

		if victim.dirty && c.backing != nil {
			c.stats.Writebacks++
			c.backing.Write(victim.tag, victimData)
		}
	}

	if c.backing != nil {
		newData := c.backing.Read(blockAddr, c.config.BlockSize)
		copy(victimData, newData)
		if dramBacked, ok := c.backing.(LatencyBackingStore); ok {
			result.Latency += dramBacked.ReadLatency(blockAddr, c.config.BlockSize)
		}
	} else {
		for i := range victimData {
			victimData[i] = 0
		}
	}

	victim.tag = blockAddr
	victim.valid = true
	victim.dirty = false

	if isWrite {
		offset := addr % uint64(c.config.BlockSize)
		storeData(victimData, offset, size, writeData)
		victim.dirty = true
	} else {
		offset := addr % uint64(c.config.BlockSize)
		result.Data = extractData(victimData, offset, size)
	}

	c.policy.fill(s, wayID)

	return result
}

// Invalidate marks a cache line as invalid.
func (c *Cache) Invalidate(addr uint64) {
	blockAddr := (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)
	setID, wayID, found := c.lookup(blockAddr)
	if found {
		c.sets[setID].blocks[wayID].valid = false
		c.sets[setID].blocks[wayID].dirty = false
	}
}

// Flush writes back all dirty blocks and invalidates them.
func (c *Cache) Flush() {
	for setID, s := range c.sets {
		for wayID := range s.blocks {
			b := &s.blocks[wayID]
			if b.valid && b.dirty && c.backing != nil {
				blockData := c.dataStore[c.blockIndex(setID, wayID)]
				c.backing.Write(b.tag, blockData)
				c.stats.Writebacks++
			}
			b.valid = false
			b.dirty = false
		}
	}
}

// Reset invalidates all cache lines without writeback.
func (c *Cache) Reset() {
	for _, s := range c.sets {
		*s = *newSet(c.ways)
	}
	c.stats = Statistics{}
	c.recentStoreValid = false
	c.recentStoreAddr = 0
}

// extractData extracts a value of the given size from a byte slice.
func extractData(data []byte, offset uint64, size int) uint64 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}

	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

// storeData stores a value of the given size into a byte slice.
func storeData(data []byte, offset uint64, size int, value uint64) {
	if data == nil || int(offset)+size > len(data) {
		return
	}

	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
