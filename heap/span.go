package heap

import (
	"fmt"

	"github.com/memforge/heapkit"
	"github.com/memforge/heapkit/tag"
)

const (
	// spanPadding shifts the prologue header away from the span's start so
	// that payload offsets land on tag.Alignment boundaries.
	spanPadding = tag.Alignment / 2
	// prologueOff is the byte offset of the prologue block's header word.
	prologueOff = spanPadding
	// spanOverhead is the fixed bookkeeping cost of one span: the leading
	// padding, the prologue tag pair, and the epilogue word.
	spanOverhead = spanPadding + tag.Overhead + tag.WordSize
	// interiorStart is the payload offset of a span's first interior block.
	interiorStart = spanPadding + tag.Overhead + tag.WordSize

	// linkSize is the width of one free-list link stored in a free payload.
	linkSize = 8
	// minPayload is the smallest payload able to host the two free-list links.
	minPayload = 2 * linkSize
	// minBlockSize is the smallest block that can exist inside a span.
	minBlockSize = minPayload + tag.Overhead
)

// span is one contiguous region obtained from the page source in a single
// request. It owns its bytes; all block arithmetic is index math inside buf,
// so traversal can never step into a neighboring span.
//
// Layout: spanPadding unused bytes, the prologue (an allocated block of size
// tag.Overhead whose tag pair stops backward traversal), the interior blocks,
// and the epilogue (a lone allocated header of size 0 that stops forward
// traversal). The sentinels are never placed on the free list.
type span struct {
	id  uint32
	buf []byte

	// usable is the tag-aligned prefix of buf that block arithmetic operates
	// on. The source may hand back slightly more than requested; the ragged
	// tail is kept only so that Unmap receives the exact original slice.
	usable int
}

func newSpan(id uint32, buf []byte) *span {
	s := &span{
		id:     id,
		buf:    buf,
		usable: heapkit.AlignDown(len(buf), tag.Alignment),
	}
	s.stamp()

	return s
}

// stamp writes the prologue pair, the epilogue word, and a single free block
// covering the whole interior.
func (s *span) stamp() {
	tag.Put(s.buf, prologueOff, tag.Pack(tag.Overhead, true))
	tag.Put(s.buf, prologueOff+tag.WordSize, tag.Pack(tag.Overhead, true))
	tag.Put(s.buf, s.usable-tag.WordSize, tag.Pack(0, true))

	s.setBlock(interiorStart, s.usable-spanOverhead, false)
}

// checkOffset panics if bp cannot be a block payload offset in this span. The
// prologue payload (interiorStart - tag.Overhead) and the epilogue payload
// (usable) are legal: neighbor traversal reads their headers.
func (s *span) checkOffset(bp int) {
	if bp < interiorStart-tag.Overhead || bp > s.usable || bp%tag.Alignment != 0 {
		panic(fmt.Sprintf("offset %d is not a block payload offset within span %d", bp, s.id))
	}
}

func (s *span) header(bp int) tag.Word {
	s.checkOffset(bp)
	return tag.Get(s.buf, bp-tag.WordSize)
}

func (s *span) footer(bp int) tag.Word {
	return tag.Get(s.buf, bp+s.header(bp).Size()-tag.Overhead)
}

// setBlock stamps a matching header/footer pair for the block whose payload
// starts at bp. The pair must always be written together so that backward
// traversal through the footer stays coherent with forward traversal.
func (s *span) setBlock(bp int, size int, allocated bool) {
	s.checkOffset(bp)

	w := tag.Pack(size, allocated)
	tag.Put(s.buf, bp-tag.WordSize, w)
	tag.Put(s.buf, bp+size-tag.Overhead, w)
}

// next returns the payload offset of the physically following block.
func (s *span) next(bp int) int {
	return bp + s.header(bp).Size()
}

// prev returns the payload offset of the physically preceding block, found
// through the preceding block's footer.
func (s *span) prev(bp int) int {
	return bp - tag.Get(s.buf, bp-tag.Overhead).Size()
}

// isWholeSpanFree reports whether the block at bp is the only interior block
// of its span: its predecessor is the prologue (size exactly tag.Overhead) and
// its successor is the epilogue (size exactly 0).
func (s *span) isWholeSpanFree(bp int) bool {
	return s.header(s.prev(bp)).Size() == tag.Overhead && s.header(s.next(bp)).Size() == 0
}
