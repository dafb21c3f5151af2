package estalloc

// msbFLI / msbSLI mark the single set bit representing fli==0 / sli==0 in
// their respective bitmaps. Higher indices
// live at lower bit positions, so "index i" and "bit i" run in opposite
// directions — that's what makes `mask-1` below select "everything with a
// strictly greater index".
const (
	msbFLI = uint16(0x8000)
	msbSLI = uint8(0x80)
)

// addFree marks off as free, stamps its tail back-pointer, and links it at
// the head of its (fli, sli) bucket.
func (p *Pool) addFree(off uint32) {
	p.clearUsed(off)
	p.setBackPtr(off)

	fli, sli, index := p.calcIndex(p.blockSize(off))
	p.fliBitmap |= msbFLI >> uint(fli)
	p.sliBitmap[fli] |= msbSLI >> uint(sli)

	p.setPrevFree(off, nullOff)
	head := p.freeBlocks[index]
	p.setNextFree(off, head)
	if head != nullOff {
		p.setPrevFree(head, off)
	}
	p.freeBlocks[index] = off
}

// removeFree unlinks off from its bucket list, clearing the sli/fli bitmap
// bits when the bucket (or row) becomes empty.
func (p *Pool) removeFree(off uint32) {
	prev := p.prevFree(off)
	next := p.nextFree(off)

	if prev == nullOff {
		fli, sli, index := p.calcIndex(p.blockSize(off))
		p.freeBlocks[index] = next
		if next == nullOff {
			p.sliBitmap[fli] &^= msbSLI >> uint(sli)
			if p.sliBitmap[fli] == 0 {
				p.fliBitmap &^= msbFLI >> uint(fli)
			}
		}
	} else {
		p.setNextFree(prev, next)
	}
	if next != nullOff {
		p.setPrevFree(next, prev)
	}
}

// findFit locates a free block able to hold allocSize bytes: exact bucket
// head, then head of the next bucket, then a descent through the sli/fli
// bitmaps to the closest larger non-empty bucket, then a bounded first-fit
// scan of the original bucket as a last resort. It does not unlink the
// block — callers that consume it must call removeFree.
func (p *Pool) findFit(allocSize uint32) (uint32, bool) {
	fli, sli, index := p.calcIndex(allocSize)
	origIndex := index

	if t := p.freeBlocks[index]; t != nullOff && p.blockSize(t) >= allocSize {
		return t, true
	}

	index++
	if t := p.freeBlocks[index]; t != nullOff {
		return t, true
	}
	fli = index >> uint(p.cfg.SLIWidth)
	sli = index & ((1 << p.cfg.SLIWidth) - 1)

	if masked := p.sliBitmap[fli] & (uint8(msbSLI>>uint(sli)) - 1); masked != 0 {
		sli = nlz8(masked)
	} else if masked := p.fliBitmap & (msbFLI>>uint(fli) - 1); masked != 0 {
		fli = nlz16(masked)
		sli = nlz8(p.sliBitmap[fli])
	} else {
		for t := p.freeBlocks[origIndex]; t != nullOff; t = p.nextFree(t) {
			if p.blockSize(t) >= allocSize {
				return t, true
			}
		}
		return 0, false
	}

	index = (fli << uint(p.cfg.SLIWidth)) + sli
	if t := p.freeBlocks[index]; t != nullOff {
		return t, true
	}
	return 0, false
}
