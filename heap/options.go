package heap

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

const (
	// DefaultPageRatio is the span acquisition multiplier used when
	// CreateOptions does not provide one. Each extension maps this many times
	// the page-aligned request, amortizing mapping calls against the risk of
	// retaining unused memory.
	DefaultPageRatio = 10
)

// CreateOptions contains optional settings when creating a Heap
type CreateOptions struct {
	// PageRatio is the span acquisition multiplier applied to every mapping
	// request after page alignment. 0 selects DefaultPageRatio.
	PageRatio int

	// SplitThreshold is the smallest remainder, in bytes, worth carving off as
	// a new free block when an allocation is placed in a larger free block.
	// Remainders below it are left attached to the allocation as internal
	// fragmentation. 0 selects the span overhead size; values below the
	// minimum block size are raised to it.
	SplitThreshold int

	// Logger receives diagnostics from debug logging and heap teardown. When
	// nil, slog.Default is used.
	Logger *slog.Logger
}

func (o *CreateOptions) populateDefaults() error {
	if o.PageRatio < 0 {
		return errors.Errorf("page ratio %d is negative", o.PageRatio)
	}
	if o.SplitThreshold < 0 {
		return errors.Errorf("split threshold %d is negative", o.SplitThreshold)
	}

	if o.PageRatio == 0 {
		o.PageRatio = DefaultPageRatio
	}
	if o.SplitThreshold == 0 {
		o.SplitThreshold = spanOverhead
	}
	if o.SplitThreshold < minBlockSize {
		o.SplitThreshold = minBlockSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	return nil
}
