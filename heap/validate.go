package heap

import (
	"github.com/pkg/errors"

	"github.com/memforge/heapkit"
	"github.com/memforge/heapkit/tag"
)

// Validate performs internal consistency checks across every span and the
// free list. When the heap is functioning correctly it cannot return an
// error, but it can help diagnose corruption. It walks the entire heap, so it
// is expensive; under the debug_heapkit build tag it runs automatically at
// the top of Allocate and Free.
func (h *Heap) Validate() error {
	if h.freeBytes > h.spanBytes {
		return errors.New("invalid heap free size")
	}

	if _, ok := h.spans.Get(h.baseSpan); !ok {
		return errors.New("the base span is no longer mapped")
	}

	var allocCount, allocBytes, freeCount, freeBytes, spanBytes int

	for _, s := range h.sortedSpans() {
		if s.usable < spanOverhead+minBlockSize {
			return errors.Errorf("span %d is too small to hold its sentinels and one block", s.id)
		}

		sentinel := tag.Pack(tag.Overhead, true)
		if tag.Get(s.buf, prologueOff) != sentinel || tag.Get(s.buf, prologueOff+tag.WordSize) != sentinel {
			return errors.Errorf("the prologue of span %d has been overwritten", s.id)
		}
		if tag.Get(s.buf, s.usable-tag.WordSize) != tag.Pack(0, true) {
			return errors.Errorf("the epilogue of span %d has been overwritten", s.id)
		}

		prevFree := false
		bp := interiorStart
		for bp < s.usable {
			hdr := s.header(bp)
			size := hdr.Size()

			if size < minBlockSize {
				return errors.Errorf("block at offset %d of span %d is smaller than the minimum block size", bp, s.id)
			}
			if size%tag.Alignment != 0 {
				return errors.Errorf("block at offset %d of span %d has a misaligned size %d", bp, s.id, size)
			}
			if bp+size > s.usable {
				return errors.Errorf("block at offset %d of span %d runs past the epilogue", bp, s.id)
			}
			if s.footer(bp) != hdr {
				return errors.Errorf("header and footer disagree at offset %d of span %d", bp, s.id)
			}

			if hdr.Allocated() {
				allocCount++
				allocBytes += size
				prevFree = false
			} else {
				if prevFree {
					return errors.Errorf("adjacent free blocks at offset %d of span %d were never coalesced", bp, s.id)
				}
				freeCount++
				freeBytes += size
				prevFree = true
			}

			bp += size
		}

		if bp != s.usable {
			return errors.Errorf("the blocks of span %d do not tile its interior", s.id)
		}

		spanBytes += len(s.buf)
	}

	// Check integrity of the free list
	listCount := 0
	prev := NilPtr
	for p := h.freeHead; p != NilPtr; {
		s, ok := h.spans.Get(p.spanID())
		if !ok {
			return errors.Errorf("the free list references unmapped span %d", p.spanID())
		}

		bp := p.offset()
		if s.header(bp).Allocated() {
			return errors.Errorf("block at offset %d of span %d is in the free list but is not free", bp, s.id)
		}
		if s.link(bp, linkPrev) != prev {
			return errors.Errorf("block at offset %d of span %d has a broken back reference", bp, s.id)
		}

		listCount++
		if listCount > freeCount {
			return errors.New("the free list contains more blocks than exist in the spans")
		}

		prev = p
		p = s.link(bp, linkNext)
	}

	if listCount != freeCount {
		return errors.Errorf("the number of free blocks in the spans and in the free list do not match! free list size: %d, span free blocks: %d", listCount, freeCount)
	}

	if allocCount != h.allocCount {
		return errors.Errorf("the allocation count of the heap is %d, but the allocated blocks only added up to %d", h.allocCount, allocCount)
	}
	if allocBytes != h.allocBytes {
		return errors.Errorf("the allocated size of the heap is %d, but the allocated blocks only added up to %d", h.allocBytes, allocBytes)
	}
	if freeCount != h.freeCount {
		return errors.Errorf("the free block count of the heap is %d, but there were only %d free blocks", h.freeCount, freeCount)
	}
	if freeBytes != h.freeBytes {
		return errors.Errorf("the free size of the heap is %d, but the free blocks only added up to %d", h.freeBytes, freeBytes)
	}
	if spanBytes != h.spanBytes {
		return errors.Errorf("the mapped size of the heap is %d, but the spans only added up to %d", h.spanBytes, spanBytes)
	}

	return nil
}

// CheckCorruption verifies the guard margins written after every allocated
// payload. The margins only exist when heapkit is built with the
// debug_heapkit build tag; without it this method returns nil immediately.
func (h *Heap) CheckCorruption() error {
	if heapkit.DebugMargin == 0 {
		return nil
	}

	return h.VisitAllBlocks(func(spanID uint32, offset int, size int, free bool) error {
		if free {
			return nil
		}

		s := h.mustSpan(makePtr(spanID, offset))
		if !heapkit.ValidateMagicValue(s.buf, offset+size-tag.Overhead-heapkit.DebugMargin) {
			return errors.Errorf("memory corruption detected after the allocation at offset %d of span %d", offset, spanID)
		}

		return nil
	})
}
