// Package pager defines the page-mapping boundary underneath the heap package.
// A PageSource hands out page-aligned byte spans and takes them back; the heap
// never manufactures memory any other way. Two implementations are provided:
// ArenaSource, a pure-Go source suitable for tests and embedding, and
// MmapSource, which maps anonymous pages from the operating system on unix.
package pager

import "github.com/pkg/errors"

// ErrNoMemory is returned from Map when the source cannot supply the requested
// number of bytes. Sources must return it (possibly wrapped) rather than a
// bare failure so that callers can distinguish exhaustion from misuse.
var ErrNoMemory error = errors.New("page source has no memory available")

// PageSource supplies and reclaims page-granular spans of memory.
//
// Consumers treat a PageSource as a serially-used dependency: implementations
// are not required to be safe for concurrent use.
type PageSource interface {
	// Map returns a zero-filled span of at least size bytes. size must be a
	// positive multiple of PageSize. On exhaustion it returns an error
	// wrapping ErrNoMemory.
	Map(size int) ([]byte, error)
	// Unmap releases a span previously returned by Map. The slice must be
	// exactly the one Map returned, not a subslice. Unmapping an unknown
	// span is a caller bug and returns an error.
	Unmap(span []byte) error
	// PageSize returns the native page size of this source. It is constant
	// for the lifetime of the source.
	PageSize() int
}
