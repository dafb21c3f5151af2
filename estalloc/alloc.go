package estalloc

// roundAllocSize adds the used-block header and rounds up to Alignment
// and MinBlockSize
func (p *Pool) roundAllocSize(n uint32) uint32 {
	allocSize := alignUp32(n+p.headerSize, p.cfg.Alignment)
	if allocSize < uint32(p.cfg.MinBlockSize) {
		allocSize = uint32(p.cfg.MinBlockSize)
	}
	return allocSize
}

// splitBlock carves a want-sized block off the front of off, returning the
// remainder's offset, or nullOff if the remainder would be at or below
// MinBlockSize. The remainder's flags are left zeroed
// (free, PREV_FREE); the caller fixes them up.
func (p *Pool) splitBlock(off, want uint32) uint32 {
	size := p.blockSize(off)
	if size-want <= uint32(p.cfg.MinBlockSize) {
		return nullOff
	}
	rem := off + want
	p.setRawSizeWord(rem, size-want)
	p.setBlockSize(off, want)
	return rem
}

// splitAfterAlloc performs the split/no-split bookkeeping common to
// Malloc and the post-grow path of Realloc
func (p *Pool) splitAfterAlloc(off, allocSize uint32) {
	if rem := p.splitBlock(off, allocSize); rem != nullOff {
		p.setPrevUsed(rem)
		p.addFree(rem)
	} else if p.hasNext(off) {
		p.setPrevUsed(p.physNext(off))
	}
}

func (p *Pool) mergeBlocks(target, next uint32) {
	p.setBlockSize(target, p.blockSize(target)+p.blockSize(next))
}

// Malloc allocates n bytes and returns a slice over the block's payload,
// or nil on out-of-memory. The returned slice's length is exactly n; its
// capacity may be larger due to alignment/bucket rounding — see
// UsableSize.
func (p *Pool) Malloc(n int) []byte {
	if n < 0 {
		return nil
	}
	if n == 0 {
		return []byte{}
	}
	allocSize := p.roundAllocSize(uint32(n))
	off, ok := p.findFit(allocSize)
	if !ok {
		return nil
	}
	p.removeFree(off)
	p.splitAfterAlloc(off, allocSize)
	p.setUsed(off)

	payload := p.payload(off, p.blockSize(off))
	if p.cfg.Debug {
		paint(payload, 0xAA)
	}
	p.profile()
	return payload[:n]
}

// Calloc allocates nmemb*size bytes and zeroes them before returning, or
// nil on overflow or out-of-memory.
func (p *Pool) Calloc(nmemb, size int) []byte {
	if nmemb < 0 || size < 0 {
		return nil
	}
	total := uint64(nmemb) * uint64(size)
	if total > uint64(p.cfg.maxPoolSize()) {
		return nil
	}
	b := p.Malloc(int(total))
	if b == nil {
		return nil
	}
	paint(b, 0)
	return b
}

// Free releases b back to the pool, coalescing with any free physical
// neighbour. A nil or zero-length b is a no-op.
func (p *Pool) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	off, ok := p.offsetOfPayload(b)
	if !ok {
		if p.cfg.Debug {
			p.lastError = "estalloc: Free(): outside memory pool address was specified"
		}
		return
	}
	if p.cfg.Debug {
		switch {
		case off >= p.permallocFloor:
			p.lastError = "estalloc: Free(): permalloc address was specified"
			return
		case !p.isUsed(off):
			p.lastError = "estalloc: Free(): double free detected"
			return
		}
		paint(p.payload(off, p.blockSize(off)), 0xFF)
		p.lastError = ""
	}

	if p.hasNext(off) {
		next := p.physNext(off)
		if !p.isUsed(next) {
			p.removeFree(next)
			p.mergeBlocks(off, next)
		} else {
			p.clearPrevUsed(next)
		}
	}

	if !p.isPrevUsed(off) {
		prev := p.predecessorOffset(off)
		p.removeFree(prev)
		p.mergeBlocks(prev, off)
		off = prev
	}

	p.addFree(off)
	p.profile()
}

// Realloc resizes the block behind b to n bytes, preserving the first
// min(len(b), n) bytes. It returns nil on out-of-memory, in which case b
// is left untouched, and for a b that does not lie in the pool. In a
// debug-enabled Pool it also returns nil, setting LastError, for a b
// returned by Permalloc.
func (p *Pool) Realloc(b []byte, n int) []byte {
	if len(b) == 0 {
		return p.Malloc(n)
	}
	off, ok := p.offsetOfPayload(b)
	if !ok {
		return nil
	}
	if p.cfg.Debug && off >= p.permallocFloor {
		p.lastError = "estalloc: Realloc(): permalloc address was specified"
		return nil
	}
	allocSize := p.roundAllocSize(uint32(n))

	if allocSize > p.blockSize(off) {
		if !p.hasNext(off) {
			return p.reallocCopy(b, n)
		}
		next := p.physNext(off)
		if p.isUsed(next) || p.blockSize(off)+p.blockSize(next) < allocSize {
			return p.reallocCopy(b, n)
		}
		p.removeFree(next)
		p.mergeBlocks(off, next)
	}

	rem := p.splitBlock(off, allocSize)
	if rem == nullOff {
		if p.hasNext(off) {
			p.setPrevUsed(p.physNext(off))
		}
		p.profile()
		return p.payload(off, p.blockSize(off))[:n]
	}
	p.setPrevUsed(rem)

	if p.hasNext(rem) {
		next := p.physNext(rem)
		if !p.isUsed(next) {
			p.removeFree(next)
			p.mergeBlocks(rem, next)
		} else {
			p.clearPrevUsed(next)
		}
	}
	p.addFree(rem)
	p.profile()

	payload := p.payload(off, p.blockSize(off))
	return payload[:n]
}

func (p *Pool) reallocCopy(b []byte, n int) []byte {
	q := p.Malloc(n)
	if q == nil {
		return nil
	}
	copy(q, b)
	p.Free(b)
	return q
}

// Permalloc allocates n bytes from the pool's physical tail. The result
// is never returned by Malloc, never merged into by a neighbouring Free,
// and must never be passed to Free or Realloc. Falls back
// to Malloc when the tail has no room.
func (p *Pool) Permalloc(n int) []byte {
	if n < 0 {
		return nil
	}
	if n == 0 {
		return []byte{}
	}
	allocSize := p.roundAllocSize(uint32(n))

	prev := uint32(0)
	for p.physNext(prev) < p.permallocFloor {
		prev = p.physNext(prev)
	}

	if p.isUsed(prev) || p.blockSize(prev) < allocSize {
		return p.Malloc(n)
	}

	p.removeFree(prev)
	freeRoom := p.blockSize(prev) - allocSize

	var newOff uint32
	if freeRoom <= uint32(p.cfg.MinBlockSize) {
		// Remainder too small to keep as its own free block: swallow it
		// into the permalloc block instead.
		newOff = prev
	} else {
		p.setBlockSize(prev, freeRoom)
		p.addFree(prev)
		newOff = prev + freeRoom
		p.setRawSizeWord(newOff, allocSize) // PREV_USED=0: prev is free.
	}
	p.setUsed(newOff)
	if p.hasNext(newOff) {
		p.setPrevUsed(p.physNext(newOff))
	}
	p.permallocFloor = newOff

	payload := p.payload(newOff, p.blockSize(newOff))
	if p.cfg.Debug {
		paint(payload, 0xAA)
	}
	return payload[:n]
}

// UsableSize returns the number of bytes actually reserved for b's block,
// which may exceed the size originally requested.
func (p *Pool) UsableSize(b []byte) int {
	off, ok := p.offsetOfPayload(b)
	if !ok {
		return 0
	}
	return int(p.blockSize(off) - p.headerSize)
}
