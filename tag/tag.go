// Package tag implements the boundary-tag codec used by the heap package. A
// boundary tag is a single 8-byte word stamped at both ends of a block, packing
// the block's size together with its allocated flag. Because block sizes are
// always multiples of Alignment, the low bits of the size are known to be zero
// and the lowest of them carries the flag.
package tag

import "encoding/binary"

const (
	// Alignment is the fixed block alignment. Every block size, and therefore
	// every payload offset inside a span, is a multiple of this value.
	Alignment = 16
	// WordSize is the width in bytes of a single boundary tag.
	WordSize = 8
	// Overhead is the bookkeeping cost of one block: a header tag plus a
	// footer tag.
	Overhead = 2 * WordSize

	allocatedBit = 0x1
	sizeMask     = ^uint64(Alignment - 1)
)

// Word is one encoded boundary tag.
type Word uint64

// Pack combines a block size and an allocated flag into a single tag word.
// The size must be a multiple of Alignment; the codec does not check this.
func Pack(size int, allocated bool) Word {
	w := Word(uint64(size) & sizeMask)
	if allocated {
		w |= allocatedBit
	}
	return w
}

// Size returns the block size encoded in the tag, including tag overhead.
func (w Word) Size() int {
	return int(uint64(w) & sizeMask)
}

// Allocated reports whether the tag marks its block as allocated.
func (w Word) Allocated() bool {
	return uint64(w)&allocatedBit != 0
}

// Put writes the tag into span at the given byte offset.
func Put(span []byte, offset int, w Word) {
	binary.LittleEndian.PutUint64(span[offset:offset+WordSize], uint64(w))
}

// Get reads a tag from span at the given byte offset.
func Get(span []byte, offset int) Word {
	return Word(binary.LittleEndian.Uint64(span[offset : offset+WordSize]))
}
