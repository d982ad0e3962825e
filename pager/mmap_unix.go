//go:build unix

package pager

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MmapSource is a PageSource that maps anonymous pages from the operating
// system. Spans come back zero-filled and page-aligned directly from mmap, and
// Unmap genuinely returns the memory to the OS rather than to the Go runtime.
type MmapSource struct {
	pageSize int
}

var _ PageSource = &MmapSource{}

// NewMmapSource creates a PageSource over anonymous OS mappings.
func NewMmapSource() *MmapSource {
	return &MmapSource{pageSize: unix.Getpagesize()}
}

func (s *MmapSource) PageSize() int {
	return s.pageSize
}

func (s *MmapSource) Map(size int) ([]byte, error) {
	if size <= 0 || size%s.pageSize != 0 {
		return nil, errors.Errorf("requested span size %d is not a positive multiple of the page size %d", size, s.pageSize)
	}

	span, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, cerrors.Mark(cerrors.Wrapf(err, "mmap of %d bytes failed", size), ErrNoMemory)
	}

	return span, nil
}

func (s *MmapSource) Unmap(span []byte) error {
	err := unix.Munmap(span)
	if err != nil {
		return cerrors.Wrap(err, "munmap failed")
	}

	return nil
}
