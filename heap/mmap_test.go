//go:build unix

package heap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memforge/heapkit/heap"
	"github.com/memforge/heapkit/pager"
)

func TestHeapOverMmap(t *testing.T) {
	source := pager.NewMmapSource()

	h, err := heap.New(source, nil)
	require.NoError(t, err)

	var ptrs []heap.Ptr
	for i := 0; i < 100; i++ {
		p, err := h.Allocate(1 + i*37)
		require.NoError(t, err)

		payload, err := h.Bytes(p)
		require.NoError(t, err)
		for j := range payload {
			payload[j] = byte(i)
		}

		ptrs = append(ptrs, p)
	}

	require.NoError(t, h.Validate())

	// Payloads survive everything that was allocated after them
	for i, p := range ptrs {
		payload, err := h.Bytes(p)
		require.NoError(t, err)
		for _, b := range payload {
			require.Equal(t, byte(i), b)
		}

		require.NoError(t, h.Free(p))
	}

	require.True(t, h.IsEmpty())
	require.NoError(t, h.Validate())
	require.NoError(t, h.Destroy())
}
