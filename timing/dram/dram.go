// Package dram models a DRAM memory controller's open-row timing: each
// bank keeps at most one row open, and an access is classified as a row
// hit, row miss, or row empty depending on whether the requested row is
// already the open one. Modeled as a plain synchronous state machine
// rather than an event-driven component, since this simulator's core
// steps everything on a single per-cycle tick rather than akita's
// port/engine event queue.
package dram

// Config holds the per-bank open-row timing parameters.
type Config struct {
	// TCAS is the column-access latency, charged on every access once the
	// correct row is open (row hit).
	TCAS uint64
	// TRAS is the row-activation latency, charged in addition to TCAS when
	// no row is open yet (row empty).
	TRAS uint64
	// TPre is the precharge latency needed to close the currently open row
	// before a different row can be activated (row miss).
	TPre uint64
	// RowMissLatency, if nonzero, overrides the TPre+TRAS+TCAS sum for a
	// row miss with a single fixed value.
	RowMissLatency uint64
	// Banks is the number of independent banks, each with its own open
	// row. Accesses to different banks never contend over row state.
	Banks int
	// RowBytes is the number of bytes covered by one row, used to derive
	// the row index and bank index from an address.
	RowBytes uint64
}

// DefaultConfig returns representative DDR4-class timing parameters.
func DefaultConfig() Config {
	return Config{
		TCAS:     14,
		TRAS:     33,
		TPre:     14,
		Banks:    8,
		RowBytes: 8192,
	}
}

// AccessKind classifies how an access's latency was computed.
type AccessKind int

const (
	RowHit AccessKind = iota
	RowMiss
	RowEmpty
)

func (k AccessKind) String() string {
	switch k {
	case RowHit:
		return "row_hit"
	case RowMiss:
		return "row_miss"
	case RowEmpty:
		return "row_empty"
	default:
		return "unknown"
	}
}

// bank tracks the currently open row for one bank; no row is open when
// open is false.
type bank struct {
	open bool
	row  uint64
}

// Controller is a DRAM controller with one open-row state machine per
// bank.
type Controller struct {
	cfg   Config
	banks []bank
}

// NewController creates a Controller with cfg.Banks independent banks,
// each starting with no row open.
func NewController(cfg Config) *Controller {
	if cfg.Banks <= 0 {
		cfg.Banks = 1
	}
	if cfg.RowBytes == 0 {
		cfg.RowBytes = 8192
	}
	return &Controller{
		cfg:   cfg,
		banks: make([]bank, cfg.Banks),
	}
}

// bankAndRow derives the bank index and row index for addr by striping
// banks across consecutive rows (addr -> row -> bank = row % numBanks),
// the common interleaving that spreads sequential access across banks.
func (c *Controller) bankAndRow(addr uint64) (bankIdx int, row uint64) {
	rowIdx := addr / c.cfg.RowBytes
	bankIdx = int(rowIdx % uint64(len(c.banks)))
	row = rowIdx / uint64(len(c.banks))
	return bankIdx, row
}

// Access classifies and times a single access to addr, updating the
// target bank's open-row state, and returns the resulting latency in
// cycles along with the access classification.
func (c *Controller) Access(addr uint64) (latency uint64, kind AccessKind) {
	bankIdx, row := c.bankAndRow(addr)
	b := &c.banks[bankIdx]

	switch {
	case !b.open:
		kind = RowEmpty
	case b.row == row:
		kind = RowHit
	default:
		kind = RowMiss
	}

	b.open = true
	b.row = row

	return c.latencyFor(kind), kind
}

func (c *Controller) latencyFor(kind AccessKind) uint64 {
	switch kind {
	case RowHit:
		return c.cfg.TCAS
	case RowEmpty:
		return c.cfg.TRAS + c.cfg.TCAS
	case RowMiss:
		if c.cfg.RowMissLatency != 0 {
			return c.cfg.RowMissLatency
		}
		return c.cfg.TPre + c.cfg.TRAS + c.cfg.TCAS
	default:
		return c.cfg.TCAS
	}
}

// Precharge closes the open row (if any) on the bank covering addr
// without performing an access, modeling an explicit idle-bank precharge.
func (c *Controller) Precharge(addr uint64) {
	bankIdx, _ := c.bankAndRow(addr)
	c.banks[bankIdx].open = false
}

// Reset closes every bank's open row.
func (c *Controller) Reset() {
	for i := range c.banks {
		c.banks[i] = bank{}
	}
}
