package heap

import (
	cerrors "github.com/cockroachdb/errors"

	"github.com/memforge/heapkit"
	"github.com/memforge/heapkit/tag"
)

// Free releases the allocation at p. The freed block is coalesced with any
// free physical neighbor, and if its span then holds no allocations at all,
// the span is unmapped back to the page source. The base span is the
// exception; it stays mapped for the life of the heap.
//
// Passing a handle that was never returned by Allocate, or one that was
// already freed, is a caller bug. The checks here catch the common cases
// cheaply and return an error, but they are best-effort, not a contract.
func (h *Heap) Free(p Ptr) error {
	s, bp, err := h.resolveAllocated(p)
	if err != nil {
		return err
	}

	heapkit.DebugValidate(h)

	size := s.header(bp).Size()
	s.setBlock(bp, size, false)
	h.allocCount--
	h.allocBytes -= size

	bp = h.coalesce(s, bp)

	if s.isWholeSpanFree(bp) && s.id != h.baseSpan {
		h.removeFree(makePtr(s.id, bp))
		h.spans.Delete(s.id)
		h.spanBytes -= len(s.buf)

		err = h.source.Unmap(s.buf)
		if err != nil {
			// The heap always returns exactly what it mapped, so a release
			// failure means an internal invariant broke, not a recoverable
			// caller condition.
			return cerrors.Wrap(err, "releasing an empty span")
		}
	}

	return nil
}

// coalesce merges the freshly freed block at bp with whichever physical
// neighbors are free and threads the result onto the free list. It returns
// the payload offset of the merged block, whose identity is the predecessor's
// whenever the predecessor took part.
func (h *Heap) coalesce(s *span, bp int) int {
	prevAllocated := tag.Get(s.buf, bp-tag.Overhead).Allocated()
	nextBp := s.next(bp)
	nextAllocated := s.header(nextBp).Allocated()
	size := s.header(bp).Size()

	switch {
	case prevAllocated && nextAllocated:
		// The block stands alone
		h.pushFree(makePtr(s.id, bp))

	case prevAllocated && !nextAllocated:
		nextSize := s.header(nextBp).Size()
		h.removeFree(makePtr(s.id, nextBp))
		s.setBlock(bp, size+nextSize, false)
		h.pushFree(makePtr(s.id, bp))

	case !prevAllocated && nextAllocated:
		// The predecessor already sits on the free list; growing it in place
		// reuses its membership, so only the byte count needs adjusting.
		prevBp := s.prev(bp)
		s.setBlock(prevBp, s.header(prevBp).Size()+size, false)
		h.freeBytes += size
		bp = prevBp

	default:
		nextSize := s.header(nextBp).Size()
		h.removeFree(makePtr(s.id, nextBp))

		prevBp := s.prev(bp)
		s.setBlock(prevBp, s.header(prevBp).Size()+size+nextSize, false)
		h.freeBytes += size + nextSize
		bp = prevBp
	}

	return bp
}
