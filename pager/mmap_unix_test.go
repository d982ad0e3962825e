//go:build unix

package pager_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memforge/heapkit/pager"
)

func TestMmapSourceMapUnmap(t *testing.T) {
	source := pager.NewMmapSource()
	require.Greater(t, source.PageSize(), 0)

	span, err := source.Map(2 * source.PageSize())
	require.NoError(t, err)
	require.Len(t, span, 2*source.PageSize())

	// Anonymous mappings arrive zeroed and must be writable
	require.Zero(t, span[0])
	span[0] = 0xFF
	span[len(span)-1] = 0xFF

	require.NoError(t, source.Unmap(span))
}

func TestMmapSourceRejectsBadSizes(t *testing.T) {
	source := pager.NewMmapSource()

	_, err := source.Map(0)
	require.Error(t, err)

	_, err = source.Map(source.PageSize() + 1)
	require.Error(t, err)
}
