package heap

import (
	"math"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"

	"github.com/memforge/heapkit"
	"github.com/memforge/heapkit/tag"
)

// maxRequest is the largest size Allocate accepts. Anything bigger would wrap
// the block size computation past the maximum int.
const maxRequest = math.MaxInt - tag.Overhead - heapkit.DebugMargin - tag.Alignment + 1

// Allocate reserves size usable bytes and returns a handle to the payload. A
// zero size returns NilPtr with a nil error; it is not a failure. When no free
// block fits, the heap extends itself by mapping one new span and retries the
// search exactly once. If the page source cannot supply the span, the error
// satisfies errors.Is(err, ErrOutOfMemory).
func (h *Heap) Allocate(size int) (Ptr, error) {
	if size < 0 || size > maxRequest {
		return NilPtr, errors.Errorf("invalid allocation size: %d", size)
	}
	if size == 0 {
		return NilPtr, nil
	}

	heapkit.DebugValidate(h)

	// The payload must be able to host a free-list node once the block comes
	// back to the free list.
	if size < minPayload {
		size = minPayload
	}
	target := heapkit.AlignUp(size+tag.Overhead+heapkit.DebugMargin, tag.Alignment)

	p := h.firstFit(target)
	if p == NilPtr {
		_, err := h.extend(target)
		if err != nil {
			return NilPtr, cerrors.Mark(
				cerrors.Wrapf(err, "extending the heap for a %d byte request", size),
				ErrOutOfMemory)
		}

		p = h.firstFit(target)
		if p == NilPtr {
			return NilPtr, errors.Errorf("a newly mapped span could not fit a %d byte block", target)
		}
	}

	h.place(p, target)

	return p, nil
}

// extend maps one new span sized for the request: the request is rounded up
// to a page multiple, then multiplied by the page ratio. The span's interior
// becomes a single free block on the free list.
func (h *Heap) extend(requested int) (*span, error) {
	pageSize := h.source.PageSize()

	size := heapkit.AlignUp(requested, uint(pageSize)) * h.pageRatio
	if size-spanOverhead < requested {
		// With a page ratio of 1 an exactly page-sized request would not
		// leave room for the sentinels.
		size += pageSize
	}

	buf, err := h.source.Map(size)
	if err != nil {
		return nil, err
	}

	s := newSpan(h.nextSpanID, buf)
	h.nextSpanID++
	h.spans.Put(s.id, s)
	h.spanBytes += len(buf)

	h.pushFree(makePtr(s.id, interiorStart))

	return s, nil
}

// place commits the block at p to the allocation of target bytes. When the
// found block leaves a remainder at least as large as the split threshold, the
// remainder becomes a new free block; otherwise the whole block is handed out
// and the extra bytes ride along as internal fragmentation.
func (h *Heap) place(p Ptr, target int) {
	s := h.mustSpan(p)
	bp := p.offset()
	available := s.header(bp).Size()

	h.removeFree(p)

	if available-target >= h.splitThreshold {
		s.setBlock(bp, target, true)

		remainder := s.next(bp)
		s.setBlock(remainder, available-target, false)
		h.pushFree(makePtr(s.id, remainder))
	} else {
		s.setBlock(bp, available, true)
	}

	heapkit.WriteMagicValue(s.buf, bp+s.header(bp).Size()-tag.Overhead-heapkit.DebugMargin)

	h.allocCount++
	h.allocBytes += s.header(bp).Size()
}
