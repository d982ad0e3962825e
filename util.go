// Package heapkit provides shared plumbing for the heapkit allocator: alignment
// math, allocation statistics, and debug-build validation hooks. The allocator
// itself lives in the heap subpackage; the page-mapping boundary lives in pager.
package heapkit

import (
	cerrors "github.com/cockroachdb/errors"
)

// Number covers the integer types accepted by the power-of-two helpers.
type Number interface {
	~int | ~uint
}

// CheckPow2 returns PowerOfTwoError, annotated with name and the offending
// value, when number is not a power of two.
func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the nearest multiple of alignment, which must be
// a power of two.
func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

// AlignDown rounds value down to the nearest multiple of alignment, which
// must be a power of two.
func AlignDown(value int, alignment uint) int {
	return value & int(^(alignment - 1))
}
