// Package config defines the simulator's single nested configuration
// record and its JSON load/save, following the shape of
// timing/latency.TimingConfig.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Backend selects the pipeline's execution model.
type Backend string

const (
	BackendInOrder    Backend = "in_order"
	BackendOutOfOrder Backend = "out_of_order"
)

// PredictorFamily selects one of the five supported branch predictors.
type PredictorFamily string

const (
	PredictorStatic      PredictorFamily = "static"
	PredictorGShare      PredictorFamily = "gshare"
	PredictorTournament  PredictorFamily = "tournament"
	PredictorPerceptron  PredictorFamily = "perceptron"
	PredictorTAGE        PredictorFamily = "tage"
)

// ReplacementPolicy selects a cache line replacement algorithm.
type ReplacementPolicy string

const (
	PolicyLRU    ReplacementPolicy = "lru"
	PolicyPLRU   ReplacementPolicy = "plru"
	PolicyFIFO   ReplacementPolicy = "fifo"
	PolicyRandom ReplacementPolicy = "random"
	PolicyMRU    ReplacementPolicy = "mru"
)

// Prefetcher selects a cache prefetch strategy.
type Prefetcher string

const (
	PrefetcherNone     Prefetcher = "none"
	PrefetcherNextLine Prefetcher = "next_line"
	PrefetcherStride   Prefetcher = "stride"
	PrefetcherStream   Prefetcher = "stream"
	PrefetcherTagged   Prefetcher = "tagged"
)

// MemoryControllerKind selects the backing-store timing model.
type MemoryControllerKind string

const (
	MemoryControllerSimple MemoryControllerKind = "simple"
	MemoryControllerDRAM   MemoryControllerKind = "dram"
)

// CacheLevelConfig configures one level of the cache hierarchy.
type CacheLevelConfig struct {
	Enabled            bool              `json:"enabled"`
	SizeBytes          int               `json:"size_bytes"`
	LineBytes          int               `json:"line_bytes"`
	Ways               int               `json:"ways"`
	Policy             ReplacementPolicy `json:"policy"`
	LatencyCycles      uint64            `json:"latency"`
	Prefetcher         Prefetcher        `json:"prefetcher"`
	PrefetchDegree     int               `json:"prefetch_degree"`
	PrefetchTableSize  int               `json:"prefetch_table_size"`
}

// DRAMConfig configures the open-row DRAM controller timing model.
type DRAMConfig struct {
	TCAS            uint64 `json:"t_cas"`
	TRAS            uint64 `json:"t_ras"`
	TPre            uint64 `json:"t_pre"`
	RowMissLatency  uint64 `json:"row_miss_latency"`
}

// OutOfOrderConfig configures the OutOfOrder pipeline backend.
type OutOfOrderConfig struct {
	ROBSize         int `json:"rob_size"`
	StoreBufferSize int `json:"store_buffer_size"`
}

// BranchPredictorConfig selects and configures one predictor family.
type BranchPredictorConfig struct {
	Family           PredictorFamily `json:"family"`
	GShareHistoryBits int            `json:"gshare_history_bits"`
	PerceptronWeights int            `json:"perceptron_weights"`
	TAGETables        int            `json:"tage_tables"`
	BTBSize          int             `json:"btb_size"`
	RASSize          int             `json:"ras_size"`
}

// Config is the single nested record governing every tunable knob of the
// simulator, serialized as one JSON document.
type Config struct {
	Width            int                   `json:"width"`
	Backend          Backend               `json:"backend"`
	OutOfOrder       OutOfOrderConfig      `json:"out_of_order"`
	BranchPredictor  BranchPredictorConfig `json:"branch_predictor"`

	L1I CacheLevelConfig `json:"l1i"`
	L1D CacheLevelConfig `json:"l1d"`
	L2  CacheLevelConfig `json:"l2"`
	L3  CacheLevelConfig `json:"l3"`

	RAMSize           uint64               `json:"ram_size"`
	RAMBase           uint64               `json:"ram_base"`
	MemoryController  MemoryControllerKind `json:"memory_controller"`
	DRAM              DRAMConfig           `json:"dram"`
	TLBSize           int                  `json:"tlb_size"`
	BusWidth          int                  `json:"bus_width"`
	BusLatency        uint64               `json:"bus_latency"`
	ClintDivider      uint64               `json:"clint_divider"`

	Trace        bool   `json:"trace"`
	StartPC      uint64 `json:"start_pc"`
	DirectMode   bool   `json:"direct_mode"`
	InitialSP    uint64 `json:"initial_sp"`
	UARTToStderr bool   `json:"uart_to_stderr"`

	UARTBase   uint64 `json:"uart_base"`
	CLINTBase  uint64 `json:"clint_base"`
	SysconBase uint64 `json:"syscon_base"`
	DiskBase   uint64 `json:"disk_base"`
}

// Default returns a Config with a single in-order core, every cache level
// enabled with LRU replacement and no prefetching, a simple fixed-latency
// memory controller, and the SoC bus's default address map.
func Default() *Config {
	return &Config{
		Width:   1,
		Backend: BackendInOrder,
		OutOfOrder: OutOfOrderConfig{
			ROBSize:         64,
			StoreBufferSize: 16,
		},
		BranchPredictor: BranchPredictorConfig{
			Family:            PredictorGShare,
			GShareHistoryBits: 12,
			BTBSize:           1024,
			RASSize:           16,
		},
		L1I: CacheLevelConfig{Enabled: true, SizeBytes: 32 * 1024, LineBytes: 64, Ways: 4, Policy: PolicyLRU, LatencyCycles: 1, Prefetcher: PrefetcherNone},
		L1D: CacheLevelConfig{Enabled: true, SizeBytes: 32 * 1024, LineBytes: 64, Ways: 8, Policy: PolicyLRU, LatencyCycles: 4, Prefetcher: PrefetcherNone},
		L2:  CacheLevelConfig{Enabled: true, SizeBytes: 1024 * 1024, LineBytes: 64, Ways: 8, Policy: PolicyLRU, LatencyCycles: 12, Prefetcher: PrefetcherNone},
		L3:  CacheLevelConfig{Enabled: true, SizeBytes: 8 * 1024 * 1024, LineBytes: 64, Ways: 16, Policy: PolicyLRU, LatencyCycles: 30, Prefetcher: PrefetcherNone},

		RAMSize:          256 * 1024 * 1024,
		RAMBase:          0x8000_0000,
		MemoryController: MemoryControllerSimple,
		DRAM: DRAMConfig{
			TCAS:           14,
			TRAS:           33,
			TPre:           14,
			RowMissLatency: 0,
		},
		TLBSize:      64,
		BusWidth:     8,
		BusLatency:   1,
		ClintDivider: 100,

		StartPC:   0x8000_0000,
		InitialSP: 0x7ffffffff000,

		UARTBase:   0x1000_0000,
		CLINTBase:  0x0200_0000,
		SysconBase: 0x0010_0000,
		DiskBase:   0x9000_0000,
	}
}

// Load reads a Config from a JSON file, starting from Default() so any
// field the file omits keeps its default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulator config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse simulator config: %w", err)
	}

	return cfg, nil
}

// Save writes a Config to a JSON file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize simulator config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write simulator config file: %w", err)
	}

	return nil
}

// Validate checks that every field holds a value the simulator can act on.
func (c *Config) Validate() error {
	if c.Width < 1 {
		return fmt.Errorf("width must be >= 1")
	}
	if c.Backend != BackendInOrder && c.Backend != BackendOutOfOrder {
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}
	if c.Backend == BackendOutOfOrder {
		if c.OutOfOrder.ROBSize <= 0 {
			return fmt.Errorf("rob_size must be > 0 for the out-of-order backend")
		}
		if c.OutOfOrder.StoreBufferSize <= 0 {
			return fmt.Errorf("store_buffer_size must be > 0 for the out-of-order backend")
		}
	}
	if c.RAMSize == 0 {
		return fmt.Errorf("ram_size must be > 0")
	}
	if c.ClintDivider == 0 {
		return fmt.Errorf("clint_divider must be > 0")
	}
	for name, level := range map[string]CacheLevelConfig{"l1i": c.L1I, "l1d": c.L1D, "l2": c.L2, "l3": c.L3} {
		if !level.Enabled {
			continue
		}
		if level.SizeBytes <= 0 || level.LineBytes <= 0 || level.Ways <= 0 {
			return fmt.Errorf("%s cache config must have positive size_bytes, line_bytes, and ways", name)
		}
		if level.SizeBytes%(level.LineBytes*level.Ways) != 0 {
			return fmt.Errorf("%s cache size_bytes must divide evenly into line_bytes*ways sets", name)
		}
	}
	return nil
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
