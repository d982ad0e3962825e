package heap

import (
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/memforge/heapkit"
)

// AddStatistics sums this heap's footprint into the statistics currently
// present in the provided heapkit.Statistics object. It reads maintained
// counters only, so it is cheap enough to sample anywhere.
func (h *Heap) AddStatistics(stats *heapkit.Statistics) {
	stats.SpanCount += h.spans.Count()
	stats.AllocationCount += h.allocCount
	stats.SpanBytes += h.spanBytes
	stats.AllocationBytes += h.allocBytes
}

// AddDetailedStatistics sums this heap's per-block statistics into the
// statistics currently present in the provided heapkit.DetailedStatistics
// object. Unlike AddStatistics this walks every block.
func (h *Heap) AddDetailedStatistics(stats *heapkit.DetailedStatistics) {
	stats.SpanCount += h.spans.Count()
	stats.SpanBytes += h.spanBytes

	_ = h.VisitAllBlocks(func(spanID uint32, offset int, size int, free bool) error {
		if free {
			stats.AddFreeRange(size)
		} else {
			stats.AddAllocation(size)
		}

		return nil
	})
}

// HeapJsonData populates a json object with the heap's statistics and a
// span-by-span block map.
func (h *Heap) HeapJsonData(json jwriter.ObjectState) {
	var stats heapkit.DetailedStatistics
	stats.Clear()
	h.AddDetailedStatistics(&stats)

	json.Name("TotalBytes").Int(h.spanBytes)
	json.Name("SpanCount").Int(h.spans.Count())
	json.Name("Allocations").Int(stats.AllocationCount)
	json.Name("FreeRanges").Int(stats.FreeRangeCount)

	spansObj := json.Name("Spans").Object()
	defer spansObj.End()

	for _, s := range h.sortedSpans() {
		spanObj := spansObj.Name(strconv.Itoa(int(s.id))).Object()

		spanObj.Name("MappedBytes").Int(len(s.buf))
		spanObj.Name("Base").Bool(s.id == h.baseSpan)

		blocks := spanObj.Name("Blocks").Array()
		for bp := interiorStart; bp < s.usable; bp = s.next(bp) {
			hdr := s.header(bp)

			obj := blocks.Object()
			obj.Name("Offset").Int(bp)
			obj.Name("Size").Int(hdr.Size())
			if hdr.Allocated() {
				obj.Name("Type").String("ALLOCATED")
			} else {
				obj.Name("Type").String("FREE")
			}
			obj.End()
		}
		blocks.End()

		spanObj.End()
	}
}
