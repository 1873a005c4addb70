// Package bitmap implements the fixed-size, MSB-first bit-vector spec.md §4.2
// describes. Two instances of it back the engine's allocators: one bit per
// inode slot, one bit per data block.
//
// The storage backing a Bitmap is allocated through github.com/boljen/go-bitmap,
// which is otherwise a poor fit here: its own Get/Set treat bit 0 as the
// least-significant bit of byte 0 and panic on an out-of-range index, while
// spec.md §4.2 and §8 (testable property 1) mandate MSB-first ordering and a
// graceful OutOfBounds error. Bitmap therefore uses the library purely as a
// []byte allocator and does its own bit arithmetic directly over that slice.
package bitmap

import (
	"fmt"

	gobitmap "github.com/boljen/go-bitmap"

	"github.com/finn-oss/blockfs/errors"
)

// Bitmap is a bit-vector of a fixed number of bits, MSB-first within each
// byte: bit i lives in byte i/8 at mask 1 << (7 - i%8).
type Bitmap struct {
	bits gobitmap.Bitmap
	n    int
}

// New allocates a Bitmap holding n bits, all initially clear.
func New(n int) *Bitmap {
	numBytes := (n + 7) / 8
	// gobitmap.New(l) allocates l/8+1 bytes; trim to exactly numBytes so the
	// bitmap matches the size of its on-disk region.
	return &Bitmap{
		bits: gobitmap.New(numBytes * 8)[:numBytes],
		n:    n,
	}
}

// FromBytes wraps an existing byte slice as a Bitmap, for decoding one off
// disk. len(raw) must equal (n+7)/8; the slice is used directly, not copied.
func FromBytes(raw []byte, n int) *Bitmap {
	return &Bitmap{bits: gobitmap.Bitmap(raw), n: n}
}

// Len reports the number of bits the Bitmap holds.
func (b *Bitmap) Len() int {
	return b.n
}

// Bytes returns the Bitmap's backing storage, for persisting it to disk.
func (b *Bitmap) Bytes() []byte {
	return []byte(b.bits)
}

func (b *Bitmap) byteAndMask(i int) (int, byte) {
	return i / 8, 1 << (7 - uint(i%8))
}

// Set marks bit i taken or free. It fails with errors.ErrOutOfBounds if i is
// not a valid index into the bitmap.
func (b *Bitmap) Set(i int, taken bool) error {
	if i < 0 || i/8 >= len(b.bits) {
		return errors.ErrOutOfBounds.WithMessage(
			fmt.Sprintf("index %d out of bounds of %d-bit bitmap", i, b.n))
	}
	byteIdx, mask := b.byteAndMask(i)
	if taken {
		b.bits[byteIdx] |= mask
	} else {
		b.bits[byteIdx] &^= mask
	}
	return nil
}

// FreeAt reports whether bit i is clear. Out-of-range indices are treated as
// free, per spec.md §4.2, to simplify scan termination in FindFreeFrom.
func (b *Bitmap) FreeAt(i int) bool {
	if i < 0 || i/8 >= len(b.bits) {
		return true
	}
	byteIdx, mask := b.byteAndMask(i)
	return b.bits[byteIdx]&mask == 0
}

// FindFreeFrom returns the smallest free index >= start within the bitmap's
// nominal bit range, or ok=false if none exists. The scan is bounded to the
// declared bit count even though FreeAt treats out-of-range reads as free
// (spec.md §9, open question 5).
func (b *Bitmap) FindFreeFrom(start int) (index int, ok bool) {
	if start < 0 {
		start = 0
	}
	for i := start; i < b.n; i++ {
		if b.FreeAt(i) {
			return i, true
		}
	}
	return 0, false
}

// FindFree is FindFreeFrom(0).
func (b *Bitmap) FindFree() (index int, ok bool) {
	return b.FindFreeFrom(0)
}
