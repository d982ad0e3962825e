package heap

import (
	"encoding/binary"
	"fmt"
)

// The free list is intrusive: a free block's payload is reinterpreted as two
// encoded Ptr links, back then forward, in recency order. The links are only
// reachable through these accessors, which assert that the block really is
// free, so a live payload view and a free-node view can never alias.
const (
	linkPrev = 0
	linkNext = linkSize
)

func (s *span) link(bp int, which int) Ptr {
	if s.header(bp).Allocated() {
		panic(fmt.Sprintf("free-list link read from allocated block at offset %d of span %d", bp, s.id))
	}

	return Ptr(binary.LittleEndian.Uint64(s.buf[bp+which : bp+which+linkSize]))
}

func (s *span) setLink(bp int, which int, p Ptr) {
	if s.header(bp).Allocated() {
		panic(fmt.Sprintf("free-list link written to allocated block at offset %d of span %d", bp, s.id))
	}

	binary.LittleEndian.PutUint64(s.buf[bp+which:bp+which+linkSize], uint64(p))
}

func (h *Heap) mustSpan(p Ptr) *span {
	s, ok := h.spans.Get(p.spanID())
	if !ok {
		panic(fmt.Sprintf("free list refers to unmapped span %d", p.spanID()))
	}

	return s
}

// pushFree threads the free block at p onto the head of the free list, keeping
// the most recently freed block first. O(1); no ordering pass is needed on
// insert, at the cost of potentially worse fragmentation than an
// address-ordered policy.
func (h *Heap) pushFree(p Ptr) {
	s := h.mustSpan(p)
	bp := p.offset()

	if h.freeHead != NilPtr {
		head := h.mustSpan(h.freeHead)
		s.setLink(bp, linkPrev, NilPtr)
		s.setLink(bp, linkNext, h.freeHead)
		head.setLink(h.freeHead.offset(), linkPrev, p)
		h.freeHead = p
	} else {
		h.freeHead = p
		s.setLink(bp, linkPrev, NilPtr)
		s.setLink(bp, linkNext, NilPtr)
	}

	h.freeCount++
	h.freeBytes += s.header(bp).Size()
}

// removeFree detaches the free block at p from wherever it sits in the list:
// between two nodes, at the tail, at the head, or as the sole node.
func (h *Heap) removeFree(p Ptr) {
	s := h.mustSpan(p)
	bp := p.offset()

	prev := s.link(bp, linkPrev)
	next := s.link(bp, linkNext)

	if prev != NilPtr && next != NilPtr {
		h.mustSpan(prev).setLink(prev.offset(), linkNext, next)
		h.mustSpan(next).setLink(next.offset(), linkPrev, prev)
	} else if prev != NilPtr {
		h.mustSpan(prev).setLink(prev.offset(), linkNext, NilPtr)
	} else if next != NilPtr {
		h.freeHead = next
		h.mustSpan(next).setLink(next.offset(), linkPrev, NilPtr)
	} else {
		if h.freeHead != p {
			panic(fmt.Sprintf("block at offset %d of span %d has no links but is not the free-list head", bp, s.id))
		}
		h.freeHead = NilPtr
	}

	h.freeCount--
	h.freeBytes -= s.header(bp).Size()
}

// firstFit scans from the most recently freed block and returns the first free
// block large enough for minSize, or NilPtr. O(free blocks) in the worst case.
func (h *Heap) firstFit(minSize int) Ptr {
	for p := h.freeHead; p != NilPtr; {
		s := h.mustSpan(p)
		bp := p.offset()

		if s.header(bp).Size() >= minSize {
			return p
		}

		p = s.link(bp, linkNext)
	}

	return NilPtr
}
