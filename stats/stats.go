// Package stats collects simulator statistics as a flat, dotted-key
// dictionary rather than a fixed struct, so new counters (per-trap-cause
// counts, per-cache-level hit/miss pairs) can be added without widening an
// API every consumer depends on.
package stats

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Well-known keys from the statistics surface. Callers are not limited to
// these — Add/Set accept any dotted key — but the pipeline and
// functional units populate these by convention.
const (
	KeyCycles              = "cycles"
	KeyInstructionsRetired = "instructions_retired"
	KeyICacheHits          = "icache_hits"
	KeyICacheMisses        = "icache_misses"
	KeyDCacheHits          = "dcache_hits"
	KeyDCacheMisses        = "dcache_misses"
	KeyL2Hits              = "l2_hits"
	KeyL2Misses            = "l2_misses"
	KeyL3Hits              = "l3_hits"
	KeyL3Misses            = "l3_misses"
	KeyBranchPredictions   = "branch_predictions"
	KeyBranchMispredicts   = "branch_mispredictions"
	KeyStallsMem           = "stalls_mem"
	KeyStallsControl       = "stalls_control"
	KeyStallsData          = "stalls_data"
	KeyInstALU             = "inst_alu"
	KeyInstLoad            = "inst_load"
	KeyInstStore           = "inst_store"
	KeyInstBranch          = "inst_branch"
	KeyInstMul             = "inst_mul"
	KeyInstDiv             = "inst_div"
	KeyInstFPU             = "inst_fpu"
	KeyInstCSR             = "inst_csr"
	KeyTLBHits             = "tlb_hits"
	KeyTLBMisses           = "tlb_misses"
)

// TrapKey returns the dotted key for a trap cause counter, e.g.
// "traps_illegal_instruction".
func TrapKey(cause string) string {
	return fmt.Sprintf("traps_%s", cause)
}

// Stats is a flat dictionary of monotone counters keyed by dotted name.
// It is owned exclusively by one core and never mutated concurrently,
// matching the single-hart, single-writer discipline the rest of the
// simulator follows.
type Stats struct {
	counters map[string]uint64
}

// New returns an empty Stats dictionary.
func New() *Stats {
	return &Stats{counters: make(map[string]uint64)}
}

// Add increments the named counter by delta, creating it at delta if absent.
func (s *Stats) Add(key string, delta uint64) {
	s.counters[key] += delta
}

// Incr increments the named counter by one.
func (s *Stats) Incr(key string) {
	s.Add(key, 1)
}

// Set overwrites the named counter with an absolute value rather than
// incrementing it.
func (s *Stats) Set(key string, value uint64) {
	s.counters[key] = value
}

// Get returns the named counter's current value, or 0 if never set.
func (s *Stats) Get(key string) uint64 {
	return s.counters[key]
}

// Snapshot returns a point-in-time copy of every raw counter. It holds no
// derived entries: ipc and branch_accuracy_pct are not keys of the
// dictionary and are available only as floats from IPC() and
// BranchAccuracyPct().
func (s *Stats) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}

// IPC returns instructions retired per cycle, 0 if no cycles elapsed.
func (s *Stats) IPC() float64 {
	cycles := s.counters[KeyCycles]
	if cycles == 0 {
		return 0
	}
	return float64(s.counters[KeyInstructionsRetired]) / float64(cycles)
}

// BranchAccuracyPct returns the percentage of correctly predicted branches.
func (s *Stats) BranchAccuracyPct() float64 {
	total := s.counters[KeyBranchPredictions]
	if total == 0 {
		return 0
	}
	mispredicts := s.counters[KeyBranchMispredicts]
	correct := total - mispredicts
	return 100 * float64(correct) / float64(total)
}

// Filter returns the subset of counters whose key contains substr.
func (s *Stats) Filter(substr string) map[string]uint64 {
	out := make(map[string]uint64)
	for k, v := range s.counters {
		if strings.Contains(k, substr) {
			out[k] = v
		}
	}
	return out
}

// FilterRegex returns the subset of counters whose key matches the given
// case-insensitive regular expression.
func (s *Stats) FilterRegex(pattern string) (map[string]uint64, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid stats filter pattern: %w", err)
	}
	out := make(map[string]uint64)
	for k, v := range s.counters {
		if re.MatchString(k) {
			out[k] = v
		}
	}
	return out, nil
}

// Keys returns every known key in sorted order, for stable iteration and
// deterministic test output.
func (s *Stats) Keys() []string {
	keys := make([]string, 0, len(s.counters))
	for k := range s.counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reset clears every counter.
func (s *Stats) Reset() {
	s.counters = make(map[string]uint64)
}
