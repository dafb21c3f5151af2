package host

import (
	"fmt"
	"math/bits"
	"sync"
	"unsafe"
)

// Recycler pools backing regions by power-of-two size class so a repeated
// benchmark trial doesn't pay Acquire's mmap/dirtmake cost every time. A
// footer word validates that a region returned to Put was handed out by a
// Recycler's Get (the footer magic is the same for every Recycler),
// guarding against a caller handing back a region obtained directly from
// Acquire.
type Recycler struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool
}

const (
	recyclerFooterLen       = 8
	recyclerFooterMagicBit  = uint64(0xE57A11AD00000000)
	recyclerFooterClassMask = uint64(0x00000000FFFFFFFF)
)

// NewRecycler creates an empty Recycler. Regions it hands out are backed by
// Acquire.
func NewRecycler() *Recycler {
	return &Recycler{pools: make(map[int]*sync.Pool)}
}

func classFor(size int) int {
	need := size + recyclerFooterLen
	if need <= 0 {
		return recyclerFooterLen
	}
	return 1 << bits.Len(uint(need-1))
}

func (r *Recycler) poolFor(class int) *sync.Pool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[class]
	if !ok {
		p = &sync.Pool{}
		r.pools[class] = p
	}
	return p
}

// Get returns a region of at least size usable bytes, reusing a previously
// Put region of the same size class when one is available.
func (r *Recycler) Get(size int) ([]byte, error) {
	class := classFor(size)
	pool := r.poolFor(class)
	if v := pool.Get(); v != nil {
		region := v.([]byte)
		return region[:size], nil
	}
	region, _, err := Acquire(class)
	if err != nil {
		return nil, fmt.Errorf("host: recycler acquiring class %d: %w", class, err)
	}
	setFooter(region, class)
	return region[:size], nil
}

// Put returns region to the pool for reuse. region must be a slice
// previously handed back by Get (any length, original capacity); anything
// else is silently rejected so Put is always safe to call regardless of
// where region actually came from.
func (r *Recycler) Put(region []byte) {
	class := cap(region)
	if class < recyclerFooterLen {
		return
	}
	full := region[:class]
	magic, gotClass := footer(full)
	if magic != recyclerFooterMagicBit || gotClass != class {
		return
	}
	r.poolFor(class).Put(full)
}

func setFooter(region []byte, class int) {
	word := recyclerFooterMagicBit | uint64(uint32(class))
	*(*uint64)(unsafe.Pointer(&region[class-recyclerFooterLen])) = word
}

func footer(region []byte) (uint64, int) {
	word := *(*uint64)(unsafe.Pointer(&region[len(region)-recyclerFooterLen]))
	return word &^ recyclerFooterClassMask, int(word & recyclerFooterClassMask)
}
