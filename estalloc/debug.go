package estalloc

import (
	"fmt"
	"io"
)

// Sanity-check bitmask bits. Bit 0x20 is a pool-level error kept
// separate from the block-level bits 0x01-0x10, which collided with
// the pool-invalid case in the original C encoding.
const (
	ErrMisalignedSize  = 0x01
	ErrSizeTooLarge    = 0x02
	ErrNextOutOfBounds = 0x04
	ErrPrevUsedStale   = 0x08 // predecessor used, but block's PREV_USED says free
	ErrPrevFreeStale   = 0x10 // predecessor free, but block's PREV_USED says used
	ErrInvalidPool     = 0x20
)

// TakeStatistics walks the pool once, totalling used/free bytes and
// counting used<->free transitions as a fragmentation proxy.
func (p *Pool) TakeStatistics() Stats {
	var used, free uint32
	frag := 0
	flagUsedFree := p.isUsed(0)

	for off := uint32(0); off < p.totalSize; off = p.physNext(off) {
		if p.isUsed(off) {
			used += p.blockSize(off)
		} else {
			free += p.blockSize(off)
		}
		if flagUsedFree != p.isUsed(off) {
			frag++
			flagUsedFree = p.isUsed(off)
		}
	}

	p.stat = Stats{Total: p.totalSize, Used: used, Free: free, Frag: frag}
	return p.stat
}

// takeProfileSnapshot records the current used-byte total into the
// running Prof min/max.
func (p *Pool) takeProfileSnapshot() {
	prof := p.prof
	var used uint32
	for off := uint32(0); off < p.totalSize; off = p.physNext(off) {
		if p.isUsed(off) {
			used += p.blockSize(off)
		}
	}
	if prof.Max < used {
		prof.Max = used
	}
	if used < prof.Min {
		prof.Min = used
	}
	p.prof = prof
}

// StartProfiling begins tracking the min/max used-byte count across
// subsequent Malloc/Calloc/Realloc/Free calls. A no-op if already
// profiling.
func (p *Pool) StartProfiling() {
	prof := p.prof
	if prof.Profiling {
		return
	}
	prof.Profiling = true
	prof.Max = 0
	prof.Min = ^uint32(0)
	p.prof = prof
	p.takeProfileSnapshot()
	prof = p.prof
	prof.Initial = prof.Min
	p.prof = prof
}

// StopProfiling ends tracking; the last observed Prof remains readable
// via Profile.
func (p *Pool) StopProfiling() {
	p.prof.Profiling = false
}

// Profile returns the current profiling snapshot.
func (p *Pool) Profile() Prof {
	return p.prof
}

// SanityCheck walks the pool once and returns a bitmask of structural
// errors found, or 0 if healthy.
func (p *Pool) SanityCheck() int {
	if p == nil || p.totalSize == 0 {
		return ErrInvalidPool
	}

	errors := 0
	hasPrev := false
	var prevUsed bool

	for off := uint32(0); off < p.totalSize; {
		size := p.blockSize(off)
		if size&p.alignMask != 0 {
			errors |= ErrMisalignedSize
		}
		if size == 0 || size > p.totalSize {
			errors |= ErrSizeTooLarge
		}
		next := off + size
		if next <= off || next > p.totalSize {
			errors |= ErrNextOutOfBounds
			break // can't trust the chain past a bad size
		}
		if hasPrev {
			if prevUsed && !p.isPrevUsed(off) {
				errors |= ErrPrevUsedStale
			}
			if !prevUsed && p.isPrevUsed(off) {
				errors |= ErrPrevFreeStale
			}
		}
		prevUsed = p.isUsed(off)
		hasPrev = true
		off = next
	}
	return errors
}

// PrintPoolHeader writes a human-readable dump of the fli/sli bitmaps and
// bucket heads to w.
func (p *Pool) PrintPoolHeader(w io.Writer) {
	fmt.Fprintf(w, "== MEMORY POOL HEADER DUMP ==\n")
	fmt.Fprintf(w, " Size Total:%d\n", p.totalSize)
	fmt.Fprintf(w, " FLI/SLI bitmap and free_blocks table.\n")
	sliCount := 1 << p.cfg.SLIWidth
	for fli := 0; fli <= p.cfg.FLIWidth; fli++ {
		fmt.Fprintf(w, " [%2d] %d :  ", fli, btoi(p.fliBitmap&(msbFLI>>uint(fli)) != 0))
		for sli := 0; sli < sliCount; sli++ {
			fmt.Fprintf(w, "%d", btoi(p.sliBitmap[fli]&(msbSLI>>uint(sli)) != 0))
		}
		for sli := 0; sli < sliCount; sli++ {
			idx := fli*sliCount + sli
			fmt.Fprintf(w, " %d", p.freeBlocks[idx])
		}
		fmt.Fprintln(w)
	}
}

// PrintMemoryBlock writes a human-readable per-block dump to w: address,
// size, flags, and either a payload hex preview (used) or fli/sli/link
// info (free).
func (p *Pool) PrintMemoryBlock(w io.Writer) {
	fmt.Fprintf(w, "== MEMORY BLOCK DUMP ==\n")
	const dumpBytes = 32

	for off := uint32(0); off < p.totalSize; off = p.physNext(off) {
		size := p.blockSize(off)
		fmt.Fprintf(w, "%06x size:%5d use:%d prv:%d", off, size, btoi(p.isUsed(off)), btoi(p.isPrevUsed(off)))
		if p.isUsed(off) {
			payload := p.payload(off, size)
			n := len(payload)
			if n > dumpBytes {
				n = dumpBytes
			}
			fmt.Fprintf(w, " %x %q", payload[:n], printable(payload[:n]))
		} else {
			fli, sli, _ := p.calcIndex(size)
			fmt.Fprintf(w, " fli:%d sli:%d pf:%d nf:%d", fli, sli, p.prevFree(off), p.nextFree(off))
		}
		fmt.Fprintln(w)
	}
}

// printable renders b as a string, replacing non-printable bytes with '.'.
func printable(b []byte) string {
	scratch := make([]byte, len(b))
	for i, c := range b {
		if c < 0x20 || c > 0x7e {
			scratch[i] = '.'
		} else {
			scratch[i] = c
		}
	}
	return string(scratch)
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
