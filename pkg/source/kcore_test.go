package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSegment(t *testing.T) {
	p := &procKcore{
		segments: []kcoreSegment{
			{physStart: 0x1000, physEnd: 0x2000, fileOff: 0x100000},
			{physStart: 0x5000, physEnd: 0x6000, fileOff: 0x200000},
		},
	}

	t.Run("within_first_segment", func(t *testing.T) {
		seg := p.findSegment(0x1500)
		require.NotNil(t, seg)
		assert.Equal(t, uint64(0x1000), seg.physStart)
	})
	t.Run("within_second_segment", func(t *testing.T) {
		seg := p.findSegment(0x5800)
		require.NotNil(t, seg)
		assert.Equal(t, uint64(0x5000), seg.physStart)
	})
	t.Run("in_hole_between_segments", func(t *testing.T) {
		assert.Nil(t, p.findSegment(0x3000))
	})
	t.Run("before_first_segment", func(t *testing.T) {
		assert.Nil(t, p.findSegment(0x0))
	})
	t.Run("after_last_segment", func(t *testing.T) {
		assert.Nil(t, p.findSegment(0x10000))
	})
	t.Run("at_segment_boundary_start", func(t *testing.T) {
		seg := p.findSegment(0x1000)
		require.NotNil(t, seg)
	})
	t.Run("at_segment_boundary_end_exclusive", func(t *testing.T) {
		assert.Nil(t, p.findSegment(0x2000))
	})
}

func TestProcKcoreReadHoleYieldsZeroBytesNoError(t *testing.T) {
	p := &procKcore{segments: nil}
	buf := make([]byte, 4096)
	n, err := p.Read(0x1234, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
