package pdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	blocks [][]byte
}

func (c *collector) emit(b []byte) { c.blocks = append(c.blocks, b) }

func testBlocks(t *testing.T) (abort, data []byte) {
	abort = encode(t, &AAbort{Source: AbortSourceServiceUser})
	data = encode(t, &PDataTf{Items: []PresentationDataValueItem{
		{ContextID: 1, Command: true, Last: true, Value: []byte("0123456789")},
	}})
	return abort, data
}

func TestAccumulatorOneByteAtATime(t *testing.T) {
	_, data := testBlocks(t)
	c := &collector{}
	acc := NewAccumulator(c.emit, 0)
	for i := range data {
		require.NoError(t, acc.Feed(data[i:i+1]))
		if i < len(data)-1 {
			assert.Empty(t, c.blocks)
		}
	}
	require.Len(t, c.blocks, 1)
	assert.Equal(t, data, c.blocks[0])
	assert.Equal(t, 0, acc.Buffered())
}

func TestAccumulatorCoalesced(t *testing.T) {
	abort, data := testBlocks(t)
	c := &collector{}
	acc := NewAccumulator(c.emit, 0)
	stream := append(append([]byte(nil), data...), abort...)
	require.NoError(t, acc.Feed(stream))
	require.Len(t, c.blocks, 2)
	assert.Equal(t, data, c.blocks[0])
	assert.Equal(t, abort, c.blocks[1])
}

func TestAccumulatorSplitAcrossHeader(t *testing.T) {
	abort, data := testBlocks(t)
	stream := append(append(append([]byte(nil), abort...), data...), abort...)
	for split := 1; split < len(stream); split++ {
		c := &collector{}
		acc := NewAccumulator(c.emit, 0)
		require.NoError(t, acc.Feed(stream[:split]))
		require.NoError(t, acc.Feed(stream[split:]))
		require.Len(t, c.blocks, 3, "split at %d", split)
		assert.Equal(t, abort, c.blocks[0])
		assert.Equal(t, data, c.blocks[1])
		assert.Equal(t, abort, c.blocks[2])
	}
}

func TestAccumulatorDoesNotAlias(t *testing.T) {
	abort, _ := testBlocks(t)
	c := &collector{}
	acc := NewAccumulator(c.emit, 0)
	chunk := append([]byte(nil), abort...)
	require.NoError(t, acc.Feed(chunk))
	chunk[9] = 0xee
	require.Len(t, c.blocks, 1)
	assert.Equal(t, abort, c.blocks[0])
}

func TestAccumulatorMaxLength(t *testing.T) {
	_, data := testBlocks(t)
	acc := NewAccumulator(func([]byte) { t.Fatal("unexpected block") }, 8)
	assert.Error(t, acc.Feed(data))
}
