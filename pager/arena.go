package pager

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"

	"github.com/memforge/heapkit"
)

// DefaultPageSize is the page size used by NewArenaSource when none is given.
const DefaultPageSize = 4096

// ArenaSource is a PageSource backed by ordinary Go-allocated byte slices. It
// exists so that heaps can be built without touching the operating system:
// tests, wasm targets, and callers that want a bounded scratch heap all use it.
//
// A non-zero budget caps the total number of bytes the source will hand out at
// once; Map fails with ErrNoMemory once the budget is exceeded, which is how
// tests drive the heap's out-of-memory path.
type ArenaSource struct {
	pageSize int
	budget   int

	mappedBytes int
	spans       map[*byte]int
}

var _ PageSource = &ArenaSource{}

// NewArenaSource creates an ArenaSource with the given page size and byte
// budget. A pageSize of 0 selects DefaultPageSize; a budget of 0 means
// unbounded. The page size must be a power of two.
func NewArenaSource(pageSize int, budget int) (*ArenaSource, error) {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	err := heapkit.CheckPow2(pageSize, "pageSize")
	if err != nil {
		return nil, err
	}

	return &ArenaSource{
		pageSize: pageSize,
		budget:   budget,
		spans:    map[*byte]int{},
	}, nil
}

func (s *ArenaSource) PageSize() int {
	return s.pageSize
}

// MappedBytes returns the number of bytes currently out on loan.
func (s *ArenaSource) MappedBytes() int {
	return s.mappedBytes
}

func (s *ArenaSource) Map(size int) ([]byte, error) {
	if size <= 0 || size%s.pageSize != 0 {
		return nil, errors.Errorf("requested span size %d is not a positive multiple of the page size %d", size, s.pageSize)
	}

	if s.budget != 0 && s.mappedBytes+size > s.budget {
		return nil, cerrors.Wrapf(ErrNoMemory, "%d bytes requested with %d of %d byte budget in use", size, s.mappedBytes, s.budget)
	}

	span := make([]byte, size)
	s.spans[&span[0]] = size
	s.mappedBytes += size

	return span, nil
}

func (s *ArenaSource) Unmap(span []byte) error {
	if len(span) == 0 {
		return errors.New("cannot unmap an empty span")
	}

	size, ok := s.spans[&span[0]]
	if !ok {
		return errors.New("received a span that was not mapped by this source")
	}
	if size != len(span) {
		return errors.Errorf("span was mapped with %d bytes but %d were returned", size, len(span))
	}

	delete(s.spans, &span[0])
	s.mappedBytes -= size

	return nil
}
