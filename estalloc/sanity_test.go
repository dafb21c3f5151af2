package estalloc

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanityCheckHealthyAfterMixedOps(t *testing.T) {
	p := newTestPool(t, 1024*1024)

	var live [][]byte
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		if len(live) == 0 || rng.Intn(3) != 0 {
			size := 1 + rng.Intn(2048)
			b := p.Malloc(size)
			if b != nil {
				live = append(live, b)
			}
		} else {
			idx := rng.Intn(len(live))
			p.Free(live[idx])
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
		}
		require.Zero(t, p.SanityCheck())
	}
}

func TestSanityCheckFlagsStalePrevUsed(t *testing.T) {
	p := newTestPool(t, 64*1024)

	b1 := p.Malloc(64)
	b2 := p.Malloc(64)
	require.NotNil(t, b1)
	require.NotNil(t, b2)

	off2, ok := p.offsetOfPayload(b2)
	require.True(t, ok)
	p.clearPrevUsed(off2) // corrupt: b1 is used, but b2 now claims its predecessor is free

	assert.NotZero(t, p.SanityCheck()&ErrPrevUsedStale)
}

func TestSanityCheckFlagsOutOfBoundsNext(t *testing.T) {
	p := newTestPool(t, 64*1024)
	p.setBlockSize(0, p.totalSize*2)
	assert.NotZero(t, p.SanityCheck()&ErrNextOutOfBounds)
}

func TestSanityCheckInvalidPool(t *testing.T) {
	var p *Pool
	assert.Equal(t, ErrInvalidPool, p.SanityCheck())

	empty := &Pool{}
	assert.Equal(t, ErrInvalidPool, empty.SanityCheck())
}

func TestTakeStatisticsAccounting(t *testing.T) {
	p := newTestPool(t, 1024*1024)

	b1 := p.Malloc(1000)
	b2 := p.Malloc(2000)
	require.NotNil(t, b1)
	require.NotNil(t, b2)

	stats := p.TakeStatistics()
	assert.EqualValues(t, p.totalSize, stats.Total)
	assert.Equal(t, stats.Total, stats.Used+stats.Free)
	assert.GreaterOrEqual(t, stats.Used, uint32(3000))

	p.Free(b1)
	p.Free(b2)
	stats = p.TakeStatistics()
	assert.EqualValues(t, 0, stats.Used)
}

// Pins the profiling write-back behaviour: StartProfiling/StopProfiling
// snapshots Pool.prof by value into a local and writes it back
// unconditionally on every Malloc/Free while profiling is active, so Min/Max
// track the actual sequence of usage levels rather than staying frozen.
func TestProfilingTracksMinMax(t *testing.T) {
	p := newTestPool(t, 1024*1024)

	p.StartProfiling()
	initial := p.Profile().Initial
	assert.Zero(t, initial)

	b := p.Malloc(4096)
	require.NotNil(t, b)
	afterAlloc := p.Profile()
	assert.GreaterOrEqual(t, afterAlloc.Max, uint32(4096))

	p.Free(b)
	afterFree := p.Profile()
	assert.Equal(t, afterAlloc.Max, afterFree.Max) // max never decreases
	assert.LessOrEqual(t, afterFree.Min, afterAlloc.Max)

	p.StopProfiling()
	assert.False(t, p.Profile().Profiling)

	before := p.Profile()
	p.Malloc(64) // profiling stopped: must not move Min/Max
	after := p.Profile()
	assert.Equal(t, before.Max, after.Max)
	assert.Equal(t, before.Min, after.Min)
}

func TestPrintPoolHeaderAndMemoryBlock(t *testing.T) {
	p := newTestPool(t, 64*1024)
	b := p.Malloc(64)
	require.NotNil(t, b)

	var header, blocks bytes.Buffer
	p.PrintPoolHeader(&header)
	p.PrintMemoryBlock(&blocks)

	assert.Contains(t, header.String(), "MEMORY POOL HEADER DUMP")
	assert.Contains(t, blocks.String(), "MEMORY BLOCK DUMP")
	assert.NotEmpty(t, blocks.String())
}
