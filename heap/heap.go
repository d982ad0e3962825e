// Package heap implements a general-purpose allocator over a page-granular
// pager.PageSource. Memory is organized into spans, each a single []byte
// obtained from the source in one request. Every block inside a span carries a
// boundary tag at both ends (see the tag package), and free blocks are threaded
// onto one explicit, most-recently-freed-first free list whose links live
// inside the free blocks' own payload bytes.
//
// A Heap is strictly single-threaded: no operation locks, blocks, or yields,
// and the tag and free-list invariants are not safe under concurrent mutation.
// A caller operating from multiple goroutines must serialize every Allocate
// and Free externally.
package heap

import (
	"math"
	"sort"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"

	"github.com/memforge/heapkit"
	"github.com/memforge/heapkit/pager"
	"github.com/memforge/heapkit/tag"
)

// ErrOutOfMemory marks allocation failures caused by the page source refusing
// to supply more memory. Test for it with errors.Is.
var ErrOutOfMemory error = errors.New("the page source cannot supply any more memory")

// Ptr is an opaque handle to one allocated payload: the owning span's ID in the
// high half and the payload's byte offset inside the span in the low half.
// Handles are stable for the lifetime of the allocation and are what Free,
// Bytes, and PayloadSize accept.
type Ptr uint64

// NilPtr is the zero allocation. Allocate returns it (with a nil error) for
// zero-size requests, and it is never a valid argument to Free.
const NilPtr Ptr = math.MaxUint64

func makePtr(spanID uint32, offset int) Ptr {
	return Ptr(uint64(spanID)<<32 | uint64(uint32(offset)))
}

func (p Ptr) spanID() uint32 { return uint32(uint64(p) >> 32) }
func (p Ptr) offset() int    { return int(uint32(uint64(p))) }

// Heap is one allocator instance. Independent Heaps share nothing, so several
// can coexist over separate page sources (or even one source, serially used).
type Heap struct {
	source pager.PageSource
	logger *slog.Logger

	pageRatio      int
	splitThreshold int

	spans      *swiss.Map[uint32, *span]
	nextSpanID uint32
	baseSpan   uint32
	freeHead   Ptr

	allocCount int
	allocBytes int
	freeCount  int
	freeBytes  int
	spanBytes  int
}

var _ heapkit.Validatable = &Heap{}

// New creates a Heap over the provided page source and maps its base span
// before returning. The base span stays mapped for the life of the heap even
// when it is completely idle; every later span is returned to the source the
// moment it holds no allocations. options may be nil for the defaults.
func New(source pager.PageSource, options *CreateOptions) (*Heap, error) {
	if source == nil {
		return nil, errors.New("a page source is required")
	}

	err := heapkit.CheckPow2(source.PageSize(), "the page source's page size")
	if err != nil {
		return nil, err
	}

	var opts CreateOptions
	if options != nil {
		opts = *options
	}
	err = opts.populateDefaults()
	if err != nil {
		return nil, err
	}

	h := &Heap{
		source: source,
		logger: opts.Logger,

		pageRatio:      opts.PageRatio,
		splitThreshold: opts.SplitThreshold,

		spans:    swiss.NewMap[uint32, *span](42),
		freeHead: NilPtr,
	}

	base, err := h.extend(source.PageSize())
	if err != nil {
		return nil, cerrors.Wrap(err, "mapping the base span")
	}
	h.baseSpan = base.id

	return h, nil
}

// AllocationCount returns the number of live allocations: successful Allocate
// calls minus successful Free calls.
func (h *Heap) AllocationCount() int {
	return h.allocCount
}

// FreeRegionCount returns the number of distinct free blocks across all spans.
// Physically adjacent free blocks are always coalesced, so each counted region
// is bounded by allocated blocks or span sentinels.
func (h *Heap) FreeRegionCount() int {
	return h.freeCount
}

// SumFreeSize returns the number of bytes currently held in free blocks,
// including each free block's tag overhead.
func (h *Heap) SumFreeSize() int {
	return h.freeBytes
}

// SpanCount returns the number of spans currently mapped from the page source.
func (h *Heap) SpanCount() int {
	return h.spans.Count()
}

// IsEmpty reports whether the heap has no live allocations.
func (h *Heap) IsEmpty() bool {
	return h.allocCount == 0
}

// Bytes returns the payload of a live allocation as a mutable view into its
// span. The view stays valid until the allocation is freed.
func (h *Heap) Bytes(p Ptr) ([]byte, error) {
	s, bp, err := h.resolveAllocated(p)
	if err != nil {
		return nil, err
	}

	return s.buf[bp : bp+s.header(bp).Size()-tag.Overhead-heapkit.DebugMargin], nil
}

// PayloadSize returns the usable size of a live allocation. It is at least the
// size that was requested and may be larger because of alignment rounding or
// an un-split remainder.
func (h *Heap) PayloadSize(p Ptr) (int, error) {
	payload, err := h.Bytes(p)
	if err != nil {
		return 0, err
	}

	return len(payload), nil
}

// VisitAllBlocks calls the provided callback once for every block in the heap,
// allocated and free, in span order and then address order. Sentinel blocks
// are not visited. This walks the entire heap and should generally only be
// done for diagnostic purposes.
func (h *Heap) VisitAllBlocks(handleBlock func(spanID uint32, offset int, size int, free bool) error) error {
	for _, s := range h.sortedSpans() {
		for bp := interiorStart; bp < s.usable; bp = s.next(bp) {
			hdr := s.header(bp)

			err := handleBlock(s.id, bp, hdr.Size(), !hdr.Allocated())
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (h *Heap) sortedSpans() []*span {
	spans := make([]*span, 0, h.spans.Count())
	h.spans.Iter(func(id uint32, s *span) bool {
		spans = append(spans, s)
		return false
	})
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].id < spans[j].id
	})

	return spans
}

func (h *Heap) resolveAllocated(p Ptr) (*span, int, error) {
	s, ok := h.spans.Get(p.spanID())
	if !ok {
		return nil, 0, errors.New("received a pointer that was not allocated from this heap")
	}

	bp := p.offset()
	if bp < interiorStart || bp >= s.usable || bp%tag.Alignment != 0 {
		return nil, 0, errors.Errorf("pointer offset %d is not a payload address in span %d", bp, s.id)
	}

	hdr := s.header(bp)
	if !hdr.Allocated() {
		return nil, 0, errors.Errorf("block at offset %d of span %d is not allocated", bp, s.id)
	}
	if hdr.Size() < minBlockSize || bp+hdr.Size() > s.usable || s.footer(bp) != hdr {
		return nil, 0, errors.Errorf("boundary tags at offset %d of span %d are corrupt", bp, s.id)
	}

	return s, bp, nil
}
