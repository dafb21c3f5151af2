package estalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"bad_alignment", []Option{WithAlignment(3)}},
		{"fli_zero", []Option{WithFLIWidth(0)}},
		{"fli_too_wide", []Option{WithFLIWidth(15)}},
		{"sli_zero", []Option{WithSLIWidth(0)}},
		{"sli_too_wide", []Option{WithSLIWidth(4)}},
		{"ignore_lsbs_negative", []Option{WithIgnoreLSBs(-1)}},
		{"min_block_too_small", []Option{WithMinBlockSize(4)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(make([]byte, 64*1024), tt.opts...)
			assert.Error(t, err)
		})
	}
}

func TestNew_RegionTooSmall(t *testing.T) {
	_, err := New(make([]byte, 8))
	assert.Error(t, err)
}

func TestNew_EmptyRegion(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNew_SingleFreeBlock(t *testing.T) {
	region := make([]byte, 1024*1024)
	p, err := New(region)
	require.NoError(t, err)

	stats := p.TakeStatistics()
	assert.EqualValues(t, p.totalSize, stats.Total)
	assert.EqualValues(t, 0, stats.Used)
	assert.EqualValues(t, p.totalSize, stats.Free)
	assert.LessOrEqual(t, stats.Frag, 1)

	assert.False(t, p.isUsed(0))
	assert.True(t, p.isPrevUsed(0)) // offset 0 never has a predecessor
	assert.False(t, p.hasNext(0))   // single block spans the whole arena
}

func TestCleanup_PaintsRegionInDebug(t *testing.T) {
	region := make([]byte, 64*1024)
	p, err := New(region, WithDebug(true))
	require.NoError(t, err)

	b := p.Malloc(128)
	require.NotNil(t, b)
	b[0] = 0x42

	p.Cleanup()
	assert.EqualValues(t, 0, region[0])
}
