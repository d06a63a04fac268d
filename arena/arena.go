// Package arena models the sbrk-like memory provider a heap allocator
// grows into: a single contiguous region that only ever gets bigger.
//
// Arena reserves its whole backing store up front (via bytedance/gopkg's
// pooled mcache allocator) and never lets Go's runtime move or resize the
// underlying array afterwards. Grow only advances a high-water offset
// inside that fixed reservation, so every address handed out stays valid
// for the arena's lifetime.
package arena

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/bytedance/gopkg/lang/mcache"
)

// ErrExhausted is returned by Grow when the arena's reserved capacity has
// been used up. It is the only expected failure mode.
var ErrExhausted = errors.New("arena: exhausted reserved capacity")

// Arena owns one contiguous backing region and tracks how much of it is
// currently in use.
type Arena struct {
	buf  []byte
	base unsafe.Pointer
	lo   uintptr
	hi   uintptr
	top  uintptr // lo + len(buf), the hard ceiling
}

// New reserves an arena with up to maxSize bytes of growable capacity.
func New(maxSize int) (*Arena, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("arena: maxSize must be positive, got %d", maxSize)
	}
	buf := mcache.Malloc(maxSize)
	base := unsafe.Pointer(&buf[0])
	lo := uintptr(base)
	return &Arena{
		buf:  buf,
		base: base,
		lo:   lo,
		hi:   lo,
		top:  lo + uintptr(len(buf)),
	}, nil
}

// Grow extends the arena by n bytes and returns a pointer to the start of
// the new region. n must be a positive multiple of 4. On failure the
// arena is left unchanged.
func (a *Arena) Grow(n int) (uintptr, error) {
	if n <= 0 || n%4 != 0 {
		return 0, fmt.Errorf("arena: grow amount must be a positive multiple of 4, got %d", n)
	}
	if a.hi+uintptr(n) > a.top {
		return 0, ErrExhausted
	}
	p := a.hi
	a.hi += uintptr(n)
	return p, nil
}

// Bounds returns the current [lo, hi) extent of the arena.
func (a *Arena) Bounds() (lo, hi uintptr) {
	return a.lo, a.hi
}

// Lo returns the fixed base address of the arena.
func (a *Arena) Lo() uintptr { return a.lo }

// Hi returns the current high-water mark.
func (a *Arena) Hi() uintptr { return a.hi }

// Base returns a pointer to the arena's first byte, for callers that
// address blocks by offset from Lo.
func (a *Arena) Base() unsafe.Pointer { return a.base }

// Close returns the backing buffer to the mcache pool. The arena must not
// be used afterwards.
func (a *Arena) Close() {
	mcache.Free(a.buf)
}
