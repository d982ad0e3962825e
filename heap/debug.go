package heap

import "golang.org/x/exp/slog"

// DebugLogAllAllocations walks every live allocation and hands it to logFunc
// together with the provided logger. Diagnostic only.
func (h *Heap) DebugLogAllAllocations(logger *slog.Logger, logFunc func(log *slog.Logger, spanID uint32, offset int, size int)) {
	_ = h.VisitAllBlocks(func(spanID uint32, offset int, size int, free bool) error {
		if !free {
			logFunc(logger, spanID, offset, size)
		}

		return nil
	})
}
