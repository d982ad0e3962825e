package heap

import (
	"context"

	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

// Destroy tears the heap down, unmapping every span including the base span.
// A heap with live allocations refuses to be destroyed: each leaked allocation
// is logged and an error is returned so the caller can find the leak.
func (h *Heap) Destroy() error {
	if !h.IsEmpty() {
		err := h.VisitAllBlocks(func(spanID uint32, offset int, size int, free bool) error {
			if free {
				return nil
			}

			h.logger.LogAttrs(context.Background(),
				slog.LevelError,
				"[UNRELEASED MEMORY] allocation still live at heap teardown",
				slog.Uint64("span", uint64(spanID)),
				slog.Int("offset", offset),
				slog.Int("size", size))
			return nil
		})
		if err != nil {
			h.logger.LogAttrs(context.Background(),
				slog.LevelError,
				"[UNRELEASED MEMORY] error while iterating unreleased memory",
				slog.Any("error", err))
		}

		return errors.New("some allocations were not freed before the destruction of this heap!")
	}

	var unmapErr error
	h.spans.Iter(func(id uint32, s *span) bool {
		err := h.source.Unmap(s.buf)
		if err != nil && unmapErr == nil {
			unmapErr = err
		}
		return false
	})

	h.spans = swiss.NewMap[uint32, *span](42)
	h.freeHead = NilPtr
	h.freeCount = 0
	h.freeBytes = 0
	h.spanBytes = 0

	return unmapErr
}
