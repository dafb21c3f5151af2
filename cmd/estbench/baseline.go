package main

import (
	"sort"
	"unsafe"
)

// bumpArena is the simplest possible arena strategy: hand out the next n
// bytes and never look back. Free is a no-op, so once the arena fills it
// stays full for good — the point of including it in compare mode is to
// show how fast a workload with any mix of frees exhausts a strategy that
// can't reclaim anything.
type bumpArena struct {
	region []byte
	offset uint32
}

func newBumpArena(region []byte) *bumpArena {
	return &bumpArena{region: region}
}

func (a *bumpArena) Alloc(n int) []byte {
	size := uint32(n)
	if a.offset+size > uint32(len(a.region)) {
		return nil
	}
	b := a.region[a.offset : a.offset+size : a.offset+size]
	a.offset += size
	return b
}

func (a *bumpArena) Free(b []byte) {}

func (a *bumpArena) Available() int { return len(a.region) - int(a.offset) }
func (a *bumpArena) Name() string   { return "bump" }

// firstFitBlock is a free run of bytes in a firstFitArena, addressed the
// same way estalloc addresses blocks: an offset into the arena plus a
// byte count, not a pointer.
type firstFitBlock struct {
	off, size uint32
}

// firstFitArena is a naive single-region allocator: free space is a
// sorted list of (offset, size) runs, and Alloc does a linear scan for the
// first run that fits. It exists to contrast estalloc.Pool's O(1)
// bucketed fit against an O(n) scan over the same kind of offset/size
// bookkeeping, not to be fast.
type firstFitArena struct {
	region []byte
	free   []firstFitBlock
}

func newFirstFitArena(region []byte) *firstFitArena {
	return &firstFitArena{
		region: region,
		free:   []firstFitBlock{{off: 0, size: uint32(len(region))}},
	}
}

func (a *firstFitArena) Alloc(n int) []byte {
	size := uint32(n)
	for i, blk := range a.free {
		if blk.size < size {
			continue
		}
		off := blk.off
		if blk.size == size {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = firstFitBlock{off: off + size, size: blk.size - size}
		}
		return a.region[off : off+size : off+size]
	}
	return nil
}

func (a *firstFitArena) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	base := uintptr(unsafe.Pointer(&a.region[0]))
	start := uintptr(unsafe.Pointer(&b[0]))
	a.insertFree(uint32(start-base), uint32(len(b)))
}

// insertFree splices a freed run back into the sorted free list, merging
// it with a physically adjacent neighbour on either side.
func (a *firstFitArena) insertFree(off, size uint32) {
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].off >= off })

	if i < len(a.free) && off+size == a.free[i].off {
		a.free[i].off = off
		a.free[i].size += size
	} else {
		a.free = append(a.free, firstFitBlock{})
		copy(a.free[i+1:], a.free[i:])
		a.free[i] = firstFitBlock{off: off, size: size}
	}

	if i > 0 && a.free[i-1].off+a.free[i-1].size == a.free[i].off {
		a.free[i-1].size += a.free[i].size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

func (a *firstFitArena) Available() int {
	total := 0
	for _, blk := range a.free {
		total += int(blk.size)
	}
	return total
}

func (a *firstFitArena) Name() string { return "firstfit" }
