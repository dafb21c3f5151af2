package estalloc

import "unsafe"

// nullOff marks the absence of a block in a free-list link or lookup
// result. Offset 0 is a valid block (the pool body starts there), so we
// can't use it as a sentinel the way C uses a NULL pointer.
const nullOff = ^uint32(0)

// minBodySize returns the smallest free-block body that can hold its
// next/prev free-list links and its tail back-pointer under cfg.
func minBodySize(cfg Config) int {
	return alignUp(cfg.Alignment+4+4+4, cfg.Alignment)
}

const (
	flagUsed     = uint32(0x1)
	flagPrevUsed = uint32(0x2)
)

func (p *Pool) ptrAt(off uint32) unsafe.Pointer {
	return unsafe.Add(p.base, off)
}

func (p *Pool) rawSizeWord(off uint32) uint32 {
	if p.wordBytes == 2 {
		return uint32(*(*uint16)(p.ptrAt(off)))
	}
	return *(*uint32)(p.ptrAt(off))
}

func (p *Pool) setRawSizeWord(off uint32, w uint32) {
	if p.wordBytes == 2 {
		*(*uint16)(p.ptrAt(off)) = uint16(w)
		return
	}
	*(*uint32)(p.ptrAt(off)) = w
}

func (p *Pool) getU32(off uint32) uint32 {
	return *(*uint32)(p.ptrAt(off))
}

func (p *Pool) setU32(off uint32, v uint32) {
	*(*uint32)(p.ptrAt(off)) = v
}

// blockSize returns the full size of the block at off, header included.
func (p *Pool) blockSize(off uint32) uint32 {
	return p.rawSizeWord(off) &^ p.alignMask
}

// setBlockSize overwrites the size field while preserving the flag bits.
func (p *Pool) setBlockSize(off, size uint32) {
	flags := p.rawSizeWord(off) & p.alignMask
	p.setRawSizeWord(off, size|flags)
}

func (p *Pool) isUsed(off uint32) bool     { return p.rawSizeWord(off)&flagUsed != 0 }
func (p *Pool) isPrevUsed(off uint32) bool { return p.rawSizeWord(off)&flagPrevUsed != 0 }

func (p *Pool) setUsed(off uint32)      { p.setRawSizeWord(off, p.rawSizeWord(off)|flagUsed) }
func (p *Pool) clearUsed(off uint32)    { p.setRawSizeWord(off, p.rawSizeWord(off)&^flagUsed) }
func (p *Pool) setPrevUsed(off uint32)  { p.setRawSizeWord(off, p.rawSizeWord(off)|flagPrevUsed) }
func (p *Pool) clearPrevUsed(off uint32) {
	p.setRawSizeWord(off, p.rawSizeWord(off)&^flagPrevUsed)
}

// physNext returns the offset immediately following the block at off.
func (p *Pool) physNext(off uint32) uint32 {
	return off + p.blockSize(off)
}

// Free-block body layout. The size word occupies the first p.headerSize
// bytes (the used-block header width, always alignment-sized so that the
// fields below land naturally aligned regardless of AddressWidth):
//
//	[header][next_free u32][prev_free u32] ... [back-pointer u32, last 4 bytes]
func (p *Pool) nextFreeOff(off uint32) uint32 { return off + p.headerSize }
func (p *Pool) prevFreeOff(off uint32) uint32 { return p.nextFreeOff(off) + 4 }
func (p *Pool) backPtrOff(off uint32) uint32  { return off + p.blockSize(off) - 4 }

func (p *Pool) nextFree(off uint32) uint32 { return p.getU32(p.nextFreeOff(off)) }
func (p *Pool) setNextFree(off, v uint32)  { p.setU32(p.nextFreeOff(off), v) }
func (p *Pool) prevFree(off uint32) uint32 { return p.getU32(p.prevFreeOff(off)) }
func (p *Pool) setPrevFree(off, v uint32)  { p.setU32(p.prevFreeOff(off), v) }
func (p *Pool) setBackPtr(off uint32)      { p.setU32(p.backPtrOff(off), off) }

// predecessorOffset recovers the physically previous block's own offset
// via the back-pointer stored in the last word immediately before off.
// Only valid when isPrevUsed(off) is false.
func (p *Pool) predecessorOffset(off uint32) uint32 {
	return p.getU32(off - 4)
}

// hasNext reports whether a block physically follows off within the pool.
// There is no sentinel block: the pool boundary is the arena length itself.
func (p *Pool) hasNext(off uint32) bool {
	return p.physNext(off) < p.totalSize
}

// payload returns the user-visible slice for a block of the given total
// size (header included) starting at off.
func (p *Pool) payload(off, size uint32) []byte {
	return unsafe.Slice((*byte)(p.ptrAt(off+p.headerSize)), size-p.headerSize)
}

// sliceHeader mirrors the runtime's slice representation, letting us
// recover a buffer's data pointer without going through b[0] (which
// panics on a zero-length slice with nonzero cap, such as the result of a
// Realloc to zero bytes).
type sliceHeader struct {
	Data unsafe.Pointer
	Len  int
	Cap  int
}

// offsetOfPayload recovers the block offset backing a slice previously
// returned by Malloc/Calloc/Realloc/Permalloc, by pointer arithmetic
// against the arena's base address.
func (p *Pool) offsetOfPayload(b []byte) (uint32, bool) {
	if cap(b) == 0 {
		return 0, false
	}
	h := (*sliceHeader)(unsafe.Pointer(&b))
	start := uintptr(h.Data)
	base := uintptr(p.base)
	if start < base+uintptr(p.headerSize) || start >= base+uintptr(p.totalSize) {
		return 0, false
	}
	return uint32(start-base) - p.headerSize, true
}

func paint(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
