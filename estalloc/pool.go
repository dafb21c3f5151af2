package estalloc

import (
	"fmt"
	"unsafe"
)

// Stats is a point-in-time snapshot produced by TakeStatistics.
type Stats struct {
	Total uint32
	Used  uint32
	Free  uint32
	Frag  int
}

// Prof holds the running usage extremes observed between StartProfiling
// and StopProfiling.
type Prof struct {
	Profiling bool
	Initial   uint32
	Max       uint32
	Min       uint32
}

// Pool is a single allocator instance carved out of a caller-supplied
// region. It is single-threaded: the caller must not invoke two methods
// on the same Pool concurrently.
type Pool struct {
	region []byte // kept alive here so base stays valid to the GC
	base   unsafe.Pointer

	cfg        Config
	totalSize  uint32
	wordBytes  int
	headerSize uint32
	alignMask  uint32

	fliBitmap  uint16
	sliBitmap  []uint8
	freeBlocks []uint32

	// permallocFloor is the offset of the first byte permanently owned by
	// Permalloc. In a debug-enabled Pool, Free and Realloc reject any offset
	// at or beyond it. It starts
	// at totalSize (no permalloc region yet) and only decreases.
	permallocFloor uint32

	stat Stats
	prof Prof

	lastError string
}

// New carves a Pool out of region using cfg (DefaultConfig, tuned by
// Option). region must be aligned to cfg.Alignment and large enough to
// hold at least one minimum-size block; its length, rounded down to
// cfg.Alignment and capped at the largest size cfg.AddressWidth can
// address, is consumed as the pool's arena — existing contents are not
// preserved. The Pool holds
// a non-owning view: region must outlive the Pool, and Cleanup does not
// release it.
func New(region []byte, opts ...Option) (*Pool, error) {
	cfg := newConfig(opts...)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(region) == 0 {
		return nil, fmt.Errorf("estalloc: region is empty")
	}

	base := unsafe.Pointer(&region[0])
	if uintptr(base)%uintptr(cfg.Alignment) != 0 {
		return nil, fmt.Errorf("estalloc: region is not %d-byte aligned", cfg.Alignment)
	}

	total := alignDown(len(region), cfg.Alignment)
	if maxTotal := alignDown(int(cfg.maxPoolSize()), cfg.Alignment); total > maxTotal {
		total = maxTotal
	}
	if total < cfg.MinBlockSize {
		return nil, fmt.Errorf("estalloc: region too small: %d usable bytes, need at least %d", total, cfg.MinBlockSize)
	}

	p := &Pool{
		region:     region,
		base:       base,
		cfg:        cfg,
		totalSize:  uint32(total),
		wordBytes:  cfg.sizeWordBytes(),
		headerSize: uint32(cfg.Alignment),
		alignMask:  uint32(cfg.Alignment - 1),
	}
	p.sliBitmap = make([]uint8, cfg.FLIWidth+2) // +1 real top row, +1 sentinel row for find_fit's lookahead
	p.freeBlocks = make([]uint32, p.sizeFreeBlocks()+1)
	for i := range p.freeBlocks {
		p.freeBlocks[i] = nullOff
	}
	p.permallocFloor = p.totalSize

	// The whole arena starts life as one free block. Its PREV_USED bit is
	// pinned to 1 forever: offset 0 has no physical predecessor, so
	// nothing may ever read or clear that bit.
	p.setRawSizeWord(0, p.totalSize|flagPrevUsed)
	p.addFree(0)

	p.stat.Total = p.totalSize
	return p, nil
}

// Cleanup releases the Pool's logical claim on region. It never frees
// region itself — the Pool never owned it, only viewed it. In debug
// builds it zeroes the arena to catch use-after-cleanup.
func (p *Pool) Cleanup() {
	if p.cfg.Debug && p.region != nil {
		paint(p.region[:p.totalSize], 0)
	}
	p.base = nil
	p.region = nil
}

// LastError returns the message set by the last invalid-argument
// detection in a debug-enabled Pool, or "" if the last such check passed.
// Always "" when Config.Debug is false.
func (p *Pool) LastError() string {
	return p.lastError
}

// Config returns the configuration the Pool was constructed with.
func (p *Pool) Config() Config {
	return p.cfg
}

func (p *Pool) profile() {
	if p.prof.Profiling {
		p.takeProfileSnapshot()
	}
}
