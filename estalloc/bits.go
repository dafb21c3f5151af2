package estalloc

// nlz16 counts leading zeros of a 16-bit value using a fold-and-shift
// ladder, defined for zero input.
func nlz16(x uint16) int {
	if x == 0 {
		return 16
	}
	n := 1
	if x>>8 == 0 {
		n += 8
		x <<= 8
	}
	if x>>12 == 0 {
		n += 4
		x <<= 4
	}
	if x>>14 == 0 {
		n += 2
		x <<= 2
	}
	return n - int(x>>15)
}

// nlz8 counts leading zeros of an 8-bit value, defined for zero input.
func nlz8(x uint8) int {
	if x == 0 {
		return 8
	}
	n := 1
	if x>>4 == 0 {
		n += 4
		x <<= 4
	}
	if x>>6 == 0 {
		n += 2
		x <<= 2
	}
	return n - int(x>>7)
}

// calcIndex maps an aligned block size to its (fli, sli, flat index) bucket
// coordinates, per the TLSF mapping.
func (p *Pool) calcIndex(size uint32) (fli, sli, index int) {
	cfg := p.cfg
	if size>>(cfg.FLIWidth+cfg.SLIWidth+cfg.IgnoreLSBs) != 0 {
		return cfg.FLIWidth, (1 << cfg.SLIWidth) - 1, p.sizeFreeBlocks() - 1
	}

	fli = 16 - nlz16(uint16(size>>(cfg.SLIWidth+cfg.IgnoreLSBs)))

	shift := cfg.IgnoreLSBs
	if fli != 0 {
		shift = cfg.IgnoreLSBs - 1 + fli
	}
	sli = int((size >> uint(shift)) & uint32((1<<cfg.SLIWidth)-1))
	index = (fli << cfg.SLIWidth) + sli
	return fli, sli, index
}

// sizeFreeBlocks is the flat length of the free-block bucket table:
// (FLIWidth+1) rows of 2^SLIWidth buckets each.
func (p *Pool) sizeFreeBlocks() int {
	return (p.cfg.FLIWidth + 1) * (1 << p.cfg.SLIWidth)
}
