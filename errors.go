package heapkit

import "github.com/pkg/errors"

// PowerOfTwoError is returned when a value that must be a power of two, such
// as a page size or an alignment, is not one. Test for it with errors.Is.
var PowerOfTwoError error = errors.New("number must be a power of two")
