package heap_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"

	"github.com/memforge/heapkit"
)

func TestStatistics(t *testing.T) {
	h, _ := newTestHeap(t, 0, nil)

	var stats heapkit.DetailedStatistics
	stats.Clear()
	h.AddDetailedStatistics(&stats)

	require.Equal(t, heapkit.DetailedStatistics{
		Statistics: heapkit.Statistics{
			SpanCount:       1,
			SpanBytes:       40960,
			AllocationCount: 0,
			AllocationBytes: 0,
		},
		FreeRangeCount:    1,
		AllocationSizeMin: math.MaxInt,
		AllocationSizeMax: 0,
		FreeRangeSizeMin:  40928,
		FreeRangeSizeMax:  40928,
	}, stats)

	p1, err := h.Allocate(100)
	require.NoError(t, err)
	p2, err := h.Allocate(1)
	require.NoError(t, err)

	var basic heapkit.Statistics
	basic.Clear()
	h.AddStatistics(&basic)

	require.Equal(t, heapkit.Statistics{
		SpanCount:       1,
		SpanBytes:       40960,
		AllocationCount: 2,
		AllocationBytes: 160,
	}, basic)

	stats.Clear()
	h.AddDetailedStatistics(&stats)

	require.Equal(t, heapkit.DetailedStatistics{
		Statistics: heapkit.Statistics{
			SpanCount:       1,
			SpanBytes:       40960,
			AllocationCount: 2,
			AllocationBytes: 160,
		},
		FreeRangeCount:    1,
		AllocationSizeMin: 32,
		AllocationSizeMax: 128,
		FreeRangeSizeMin:  40768,
		FreeRangeSizeMax:  40768,
	}, stats)

	require.NoError(t, h.Free(p1))
	require.NoError(t, h.Free(p2))

	basic.Clear()
	h.AddStatistics(&basic)
	require.Zero(t, basic.AllocationCount)
	require.Zero(t, basic.AllocationBytes)
}

func TestHeapJsonData(t *testing.T) {
	h, _ := newTestHeap(t, 0, nil)

	p, err := h.Allocate(100)
	require.NoError(t, err)

	writer := jwriter.NewWriter()
	obj := writer.Object()
	h.HeapJsonData(obj)
	obj.End()

	require.NoError(t, writer.Error())
	data := writer.Bytes()
	require.True(t, json.Valid(data))

	var decoded struct {
		TotalBytes  int
		SpanCount   int
		Allocations int
		FreeRanges  int
		Spans       map[string]struct {
			MappedBytes int
			Base        bool
			Blocks      []struct {
				Offset int
				Size   int
				Type   string
			}
		}
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Equal(t, 40960, decoded.TotalBytes)
	require.Equal(t, 1, decoded.SpanCount)
	require.Equal(t, 1, decoded.Allocations)
	require.Equal(t, 1, decoded.FreeRanges)

	span, ok := decoded.Spans["0"]
	require.True(t, ok)
	require.True(t, span.Base)
	require.Len(t, span.Blocks, 2)
	require.Equal(t, "ALLOCATED", span.Blocks[0].Type)
	require.Equal(t, 128, span.Blocks[0].Size)
	require.Equal(t, "FREE", span.Blocks[1].Type)

	require.NoError(t, h.Free(p))
}
