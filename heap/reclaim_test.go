package heap_test

import (
	"os"
	"testing"

	cerrors "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/memforge/heapkit/heap"
	"github.com/memforge/heapkit/pager"
)

// A page source that records every release so tests can assert on them, in
// front of a real ArenaSource
type recordingSource struct {
	*pager.ArenaSource

	unmapped []int
}

func newRecordingSource(t *testing.T, budget int) *recordingSource {
	inner, err := pager.NewArenaSource(testPageSize, budget)
	require.NoError(t, err)

	return &recordingSource{ArenaSource: inner}
}

func (s *recordingSource) Unmap(span []byte) error {
	s.unmapped = append(s.unmapped, len(span))
	return s.ArenaSource.Unmap(span)
}

func TestSpanReclamation(t *testing.T) {
	source := newRecordingSource(t, 0)
	h, err := heap.New(source, nil)
	require.NoError(t, err)

	baseSpanSize := testPageSize * heap.DefaultPageRatio
	require.Equal(t, baseSpanSize, source.MappedBytes())

	p1, err := h.Allocate(100)
	require.NoError(t, err)

	// Too big for what remains of the base span; forces exactly one extension
	p2, err := h.Allocate(40900)
	require.NoError(t, err)
	require.Equal(t, 2, h.SpanCount())
	secondSpanSize := source.MappedBytes() - baseSpanSize

	// Freeing the only allocation in the second span must hand the whole span
	// back to the source
	require.NoError(t, h.Free(p2))
	require.Equal(t, []int{secondSpanSize}, source.unmapped)
	require.Equal(t, 1, h.SpanCount())
	require.Equal(t, baseSpanSize, source.MappedBytes())
	require.NoError(t, h.Validate())

	// The base span is never released, even when fully idle
	require.NoError(t, h.Free(p1))
	require.Equal(t, []int{secondSpanSize}, source.unmapped)
	require.Equal(t, 1, h.SpanCount())
	require.Equal(t, baseSpanSize, source.MappedBytes())
	require.NoError(t, h.Validate())
}

func TestOutOfMemory(t *testing.T) {
	// Budget covers the base span and nothing else
	h, _ := newTestHeap(t, testPageSize*heap.DefaultPageRatio, nil)

	p, err := h.Allocate(50000)
	require.Error(t, err)
	require.Equal(t, heap.NilPtr, p)
	require.True(t, cerrors.Is(err, heap.ErrOutOfMemory))
	require.True(t, cerrors.Is(err, pager.ErrNoMemory))

	// The failure leaves the heap untouched
	require.NoError(t, h.Validate())

	p, err = h.Allocate(100)
	require.NoError(t, err)
	require.NotEqual(t, heap.NilPtr, p)
	require.NoError(t, h.Free(p))
}

func TestDestroy(t *testing.T) {
	source := newRecordingSource(t, 0)
	logger := slog.New(slog.NewTextHandler(os.Stdout))

	h, err := heap.New(source, &heap.CreateOptions{Logger: logger})
	require.NoError(t, err)

	p, err := h.Allocate(100)
	require.NoError(t, err)

	// A leaked allocation blocks teardown
	require.Error(t, h.Destroy())
	require.Empty(t, source.unmapped)

	require.NoError(t, h.Free(p))
	require.NoError(t, h.Destroy())
	require.Zero(t, source.MappedBytes())
}

func TestSmallPageRatio(t *testing.T) {
	h, source := newTestHeap(t, 0, &heap.CreateOptions{PageRatio: 1})

	// Even at ratio 1, a span must have room for its sentinels beyond an
	// exactly page-sized request
	require.Greater(t, source.MappedBytes(), 0)

	p, err := h.Allocate(testPageSize)
	require.NoError(t, err)

	size, err := h.PayloadSize(p)
	require.NoError(t, err)
	require.GreaterOrEqual(t, size, testPageSize)

	require.NoError(t, h.Free(p))
	require.NoError(t, h.Validate())
}
