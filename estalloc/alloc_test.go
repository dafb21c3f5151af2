package estalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, size int, opts ...Option) *Pool {
	t.Helper()
	opts = append(opts, WithDebug(true))
	p, err := New(make([]byte, size), opts...)
	require.NoError(t, err)
	return p
}

func TestMallocBasic(t *testing.T) {
	p := newTestPool(t, 1024*1024)

	b := p.Malloc(100)
	require.NotNil(t, b)
	assert.Len(t, b, 100)
	assert.GreaterOrEqual(t, p.UsableSize(b), 100)
	assert.Zero(t, p.UsableSize(b)%p.cfg.Alignment)

	paint(b, 0xAA)
	for _, v := range b {
		assert.EqualValues(t, 0xAA, v)
	}

	p.Free(b)
	assert.Zero(t, p.SanityCheck())
	stats := p.TakeStatistics()
	assert.EqualValues(t, 0, stats.Used)
}

func TestMallocZero(t *testing.T) {
	p := newTestPool(t, 64*1024)
	b := p.Malloc(0)
	assert.NotNil(t, b)
	assert.Len(t, b, 0)
}

func TestMallocNegative(t *testing.T) {
	p := newTestPool(t, 64*1024)
	assert.Nil(t, p.Malloc(-1))
}

func TestMallocOutOfMemory(t *testing.T) {
	p := newTestPool(t, 64*1024)
	assert.Nil(t, p.Malloc(1<<30))
}

// S3: freeing the middle of three equal-sized blocks and re-allocating the
// same size reuses the freed block's exact address.
func TestMallocExactBucketReuse(t *testing.T) {
	p := newTestPool(t, 1024*1024)

	b1 := p.Malloc(512)
	b2 := p.Malloc(512)
	b3 := p.Malloc(512)
	require.NotNil(t, b1)
	require.NotNil(t, b2)
	require.NotNil(t, b3)

	off2, ok := p.offsetOfPayload(b2)
	require.True(t, ok)

	p.Free(b2)
	b4 := p.Malloc(512)
	require.NotNil(t, b4)

	off4, ok := p.offsetOfPayload(b4)
	require.True(t, ok)
	assert.Equal(t, off2, off4)

	p.Free(b1)
	p.Free(b3)
	p.Free(b4)
}

// S4: two adjacent freed blocks coalesce into one free block of at least
// their combined size.
func TestFreeCoalescesAdjacentBlocks(t *testing.T) {
	p := newTestPool(t, 1024*1024)

	b1 := p.Malloc(64)
	b2 := p.Malloc(64)
	b3 := p.Malloc(64) // used neighbour after b2, so the merge can't run on into the free tail

	off1, ok := p.offsetOfPayload(b1)
	require.True(t, ok)
	allocSize := p.roundAllocSize(64)

	p.Free(b1)
	p.Free(b2)

	assert.False(t, p.isUsed(off1))
	assert.GreaterOrEqual(t, p.blockSize(off1), 2*allocSize)

	p.Free(b3)
}

func TestFreeNilAndEmptyAreNoOps(t *testing.T) {
	p := newTestPool(t, 64*1024)
	assert.NotPanics(t, func() { p.Free(nil) })
	assert.NotPanics(t, func() { p.Free([]byte{}) })
}

func TestFreeOutsidePool(t *testing.T) {
	p := newTestPool(t, 64*1024)
	foreign := make([]byte, 16)
	p.Free(foreign)
	assert.NotEmpty(t, p.LastError())
}

func TestDoubleFreeDetected(t *testing.T) {
	p := newTestPool(t, 1024*1024)

	b1 := p.Malloc(64)
	p.Malloc(64) // keep a used neighbour so b1's block survives standalone
	require.NotNil(t, b1)

	p.Free(b1)
	assert.Empty(t, p.LastError())
	before := p.TakeStatistics()

	p.Free(b1)
	assert.NotEmpty(t, p.LastError())
	after := p.TakeStatistics()
	assert.Equal(t, before, after)
}

func TestCallocZero(t *testing.T) {
	p := newTestPool(t, 64*1024)

	b := p.Calloc(10, 8)
	require.Len(t, b, 80)
	for _, v := range b {
		assert.Zero(t, v)
	}
}

func TestCallocOverflow(t *testing.T) {
	p := newTestPool(t, 64*1024)
	assert.Nil(t, p.Calloc(1<<20, 1<<20))
}

// S5: shrinking realloc keeps the same address and leaves a tail free block.
func TestReallocShrinkKeepsAddress(t *testing.T) {
	p := newTestPool(t, 1024*1024)

	b := p.Malloc(100)
	require.NotNil(t, b)
	offBefore, ok := p.offsetOfPayload(b)
	require.True(t, ok)

	q := p.Realloc(b, 50)
	require.NotNil(t, q)
	offAfter, ok := p.offsetOfPayload(q)
	require.True(t, ok)
	assert.Equal(t, offBefore, offAfter)
	assert.Len(t, q, 50)

	assert.True(t, p.hasNext(offAfter))
	next := p.physNext(offAfter)
	assert.False(t, p.isUsed(next))
}

func TestReallocGrowMergesFollowingFreeBlock(t *testing.T) {
	p := newTestPool(t, 1024*1024)

	b := p.Malloc(64)
	require.NotNil(t, b)
	off, ok := p.offsetOfPayload(b)
	require.True(t, ok)

	q := p.Realloc(b, 4096)
	require.NotNil(t, q)
	offAfter, ok := p.offsetOfPayload(q)
	require.True(t, ok)
	assert.Equal(t, off, offAfter)
	assert.Len(t, q, 4096)
}

// Realloc preservation property: realloc keeps the first min(m, n) bytes.
func TestReallocPreservesPrefix(t *testing.T) {
	p := newTestPool(t, 1024*1024)

	b := p.Malloc(64)
	require.NotNil(t, b)
	for i := range b {
		b[i] = byte(i)
	}

	q := p.Realloc(b, 32)
	require.Len(t, q, 32)
	for i := 0; i < 32; i++ {
		assert.EqualValues(t, byte(i), q[i])
	}

	r := p.Realloc(q, 128)
	require.Len(t, r, 128)
	for i := 0; i < 32; i++ {
		assert.EqualValues(t, byte(i), r[i])
	}
}

func TestReallocFromEmptyActsLikeMalloc(t *testing.T) {
	p := newTestPool(t, 64*1024)
	b := p.Realloc(nil, 32)
	require.NotNil(t, b)
	assert.Len(t, b, 32)
}

func TestUsableSizeLowerBound(t *testing.T) {
	p := newTestPool(t, 64*1024)
	for _, n := range []int{1, 7, 8, 9, 100, 1000} {
		b := p.Malloc(n)
		require.NotNil(t, b)
		assert.GreaterOrEqual(t, p.UsableSize(b), n)
		p.Free(b)
	}
}

func TestUsableSizeForeignIsZero(t *testing.T) {
	p := newTestPool(t, 64*1024)
	assert.Zero(t, p.UsableSize(make([]byte, 16)))
}

// S7: permalloc carves from the physical tail; it is never handed out by
// Malloc, never merges with a neighbouring free(), and Free on it is
// rejected in debug builds without corrupting the pool.
func TestPermallocNeverReturnedByMallocOrFreed(t *testing.T) {
	p := newTestPool(t, 256*1024)

	perm := p.Malloc(1) // placeholder to keep something before the tail, exercising the walk
	p.Free(perm)

	permBlock := p.Permalloc(256)
	require.NotNil(t, permBlock)
	permOff, ok := p.offsetOfPayload(permBlock)
	require.True(t, ok)
	assert.GreaterOrEqual(t, permOff, p.permallocFloor)

	var live [][]byte
	for {
		b := p.Malloc(64)
		if b == nil {
			break
		}
		off, ok := p.offsetOfPayload(b)
		require.True(t, ok)
		assert.Less(t, off, p.permallocFloor, "malloc must never hand out permalloc-owned memory")
		live = append(live, b)
	}
	for _, b := range live {
		p.Free(b)
	}

	p.Free(permBlock)
	assert.NotEmpty(t, p.LastError())
	assert.Zero(t, p.SanityCheck())
}

// TestPermallocAbsorbsSentinel exercises Permalloc's freeRoom<=MinBlockSize
// branch: a request sized to consume the whole of the tail free block
// leaves no remainder to split off, so Permalloc absorbs the entire block
// in place rather than carving a new one. With no physical sentinel block,
// the absorbed block's end must land exactly on the pool boundary.
func TestPermallocAbsorbsSentinel(t *testing.T) {
	p := newTestPool(t, 1024)

	// roundAllocSize(1016) == 1024 == totalSize: the tail free block (the
	// whole arena, at this point) is consumed with zero bytes left over.
	b := p.Permalloc(1016)
	require.NotNil(t, b)
	require.Len(t, b, 1016)

	off, ok := p.offsetOfPayload(b)
	require.True(t, ok)

	assert.False(t, p.hasNext(off), "the absorbed permalloc block must reach the pool boundary with nothing following it")
	assert.EqualValues(t, p.totalSize, p.physNext(off), "physNext must land exactly on totalSize with no sentinel block to stop at")
	assert.EqualValues(t, off, p.permallocFloor, "the whole free tail was absorbed, so the floor moves to the start of the absorbed block")
	assert.Zero(t, p.SanityCheck())

	assert.Nil(t, p.Malloc(1), "no free space remains for Malloc once Permalloc has absorbed the entire tail")
}

func TestPermallocFallsBackToMallocWhenTailExhausted(t *testing.T) {
	p := newTestPool(t, 64*1024)
	head := p.Malloc(1024) // freed below, leaving free space away from the tail
	require.NotNil(t, head)
	for i := 0; i < 1000; i++ {
		if p.Permalloc(64) == nil {
			break
		}
	}
	for p.Malloc(1) != nil {
		// use up whatever the permalloc loop left below the tail
	}
	// tail is gone; Permalloc must degrade to an ordinary Malloc rather than
	// returning nil outright while free space remains elsewhere.
	p.Free(head)
	b := p.Permalloc(16)
	require.NotNil(t, b)
	assert.Len(t, b, 16)
	off, ok := p.offsetOfPayload(b)
	require.True(t, ok)
	assert.Less(t, off, p.permallocFloor)
}

func TestPermallocZero(t *testing.T) {
	p := newTestPool(t, 64*1024)
	b := p.Permalloc(0)
	assert.NotNil(t, b)
	assert.Len(t, b, 0)
}
