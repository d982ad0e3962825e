package tag_test

import (
	"testing"

	"github.com/memforge/heapkit/tag"
	"github.com/stretchr/testify/require"
)

func TestPackCarriesSizeAndFlag(t *testing.T) {
	w := tag.Pack(4096, true)
	require.Equal(t, 4096, w.Size())
	require.True(t, w.Allocated())

	w = tag.Pack(4096, false)
	require.Equal(t, 4096, w.Size())
	require.False(t, w.Allocated())
}

func TestPackZeroSize(t *testing.T) {
	// The epilogue sentinel is encoded as an allocated block of size 0
	w := tag.Pack(0, true)
	require.Equal(t, 0, w.Size())
	require.True(t, w.Allocated())
}

func TestFlagDoesNotLeakIntoSize(t *testing.T) {
	w := tag.Pack(tag.Alignment, true)
	require.Equal(t, tag.Alignment, w.Size())

	// The flag lives in bits the size can never occupy
	require.NotEqual(t, tag.Pack(tag.Alignment, false), w)
	require.Equal(t, tag.Pack(tag.Alignment, false).Size(), w.Size())
}

func TestPutGet(t *testing.T) {
	span := make([]byte, 64)

	tag.Put(span, 8, tag.Pack(32, true))
	tag.Put(span, 40, tag.Pack(32, true))

	require.Equal(t, tag.Pack(32, true), tag.Get(span, 8))
	require.Equal(t, tag.Get(span, 8), tag.Get(span, 40))

	// Neighboring bytes stay untouched
	for _, i := range []int{0, 7, 16, 39, 48} {
		require.Zero(t, span[i], "byte %d", i)
	}
}
