// Package malloc provides a segregated-fit heap allocator over a growable
// arena that each Heap creates and owns.
package malloc

import (
	"log"
	"unsafe"

	"github.com/bytealloc/segheap/arena"
)

// Heap is a segregated-fit allocator over a single contiguous,
// monotonically-growing region. It implements the classic four-operation
// allocator interface: Alloc, Free, Realloc, Calloc.
//
// A Heap is single-threaded: callers must serialize access externally.
// It is not safe to share a Heap across goroutines without a lock.
type Heap struct {
	cfg Config

	arena *arena.Arena
	base  unsafe.Pointer

	numClasses int
	logger     *log.Logger
	debug      *debugTracker

	initialized bool
	initErr     error
}

// NewHeap creates a Heap with the given tunables. The heap is not
// allocated until its first operation (Alloc, Free, Realloc, Calloc, or
// CheckHeap), matching spec.md's idempotent-init contract: every entry
// point triggers initialization exactly once.
func NewHeap(cfg Config) (*Heap, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Heap{
		cfg:        cfg,
		numClasses: cfg.NumClasses,
		logger:     log.Default(),
	}, nil
}

// SetLogger overrides the diagnostic sink CheckHeap writes violations to.
func (h *Heap) SetLogger(l *log.Logger) { h.logger = l }

// ensureInit lazily performs the heap's one-time setup. Returns false if
// initialization previously failed (e.g. the arena reservation itself
// could not be made) — every public entry point treats that as
// out-of-memory.
func (h *Heap) ensureInit() bool {
	if h.initialized {
		return true
	}
	if h.initErr != nil {
		return false
	}
	if err := h.init(); err != nil {
		h.initErr = err
		return false
	}
	h.initialized = true
	return true
}

// preludeSize is the fixed header at the base of the heap: the tail
// sentinel (8 bytes), the K size-class heads, and the prologue+epilogue
// sentinels. 20+4K is a multiple of 8 exactly when K is odd.
func (h *Heap) preludeSize() uint32 {
	return 20 + 4*uint32(h.numClasses)
}

func (h *Heap) prologueBp() uint32 {
	prologueHdrOff := 8 + uint32(h.numClasses)*wordSize
	return prologueHdrOff + wordSize
}

func (h *Heap) init() error {
	ar, err := arena.New(h.cfg.MaxArenaSize)
	if err != nil {
		return err
	}
	h.arena = ar
	h.base = ar.Base()

	if _, err := ar.Grow(int(h.preludeSize())); err != nil {
		return err
	}

	for i := 0; i < h.numClasses; i++ {
		h.setSucc(h.classHeadOffset(i), tailOffset)
	}

	pro := h.prologueBp()
	proHdr := packHeader(2*wordSize, true, true)
	h.setHeader(pro, proHdr)
	h.setFooter(pro, proHdr)

	epi := h.next(pro) // == preludeSize(): the empty heap's initial epilogue
	h.setHeader(epi, packHeader(0, true, true))

	if h.cfg.Debug {
		h.debug = newDebugTracker(h.cfg.DebugCapacity)
	}

	if _, ok := h.growHeap(h.cfg.ChunkSize); !ok {
		return arena.ErrExhausted
	}
	return nil
}

// epilogueBp is always exactly the arena's current high-water mark,
// relative to lo: the epilogue has size 0, so its header is the last word
// of the heap and its block pointer is the heap's top.
func (h *Heap) epilogueBp() uint32 {
	lo, hi := h.arena.Bounds()
	return uint32(hi - lo)
}

// growHeap extends the arena by at least minBytes (rounded up to the
// configured chunk size and to a multiple of 8) and returns the block
// pointer of the resulting free block, coalesced with the previous last
// block if that was free.
func (h *Heap) growHeap(minBytes uint32) (uint32, bool) {
	amount := minBytes
	if h.cfg.ChunkSize > amount {
		amount = h.cfg.ChunkSize
	}
	if amount%8 != 0 {
		amount += 8 - amount%8
	}

	oldEpi := h.epilogueBp()
	prevAlloc := isPrevAlloc(h.header(oldEpi))

	if _, err := h.arena.Grow(int(amount)); err != nil {
		return 0, false
	}

	hdr := packHeader(amount, false, prevAlloc)
	h.setHeader(oldEpi, hdr)
	h.setFooter(oldEpi, hdr)

	newEpi := oldEpi + amount
	h.setHeader(newEpi, packHeader(0, true, false))

	return h.coalesce(oldEpi), true
}

// adjustedSize converts a requested payload size into the block size to
// allocate: header-only overhead, rounded so the total is the next
// multiple of 8 that is at least the minimum block size.
func adjustedSize(n uint32) uint32 {
	if n <= 2*wordSize {
		return minBlockSize
	}
	words := (n + wordSize - 1) / wordSize
	if words%2 == 1 {
		return (words + 1) * wordSize
	}
	return (words + 2) * wordSize
}

func (h *Heap) bpOf(block []byte) uint32 {
	p := uintptr(unsafe.Pointer(&block[0]))
	return uint32(p - uintptr(h.base))
}

func (h *Heap) payload(bp uint32, n uint32) []byte {
	size := blockSize(h.header(bp))
	return unsafe.Slice((*byte)(h.ptr(bp)), size-wordSize)[:n]
}

// Alloc returns a block of at least n bytes, or nil if n is zero or the
// arena is exhausted. The returned address is always 8-byte aligned.
func (h *Heap) Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	if uint64(n) > uint64(^uint32(0)-2*minBlockSize) {
		return nil // too large for the heap's 32-bit block sizes
	}
	if !h.ensureInit() {
		return nil
	}
	asize := adjustedSize(uint32(n))

	if bp, ok := h.findFit(asize); ok {
		h.place(bp, asize)
		return h.finishAlloc(bp, uint32(n))
	}

	bp, ok := h.growHeap(asize)
	if !ok {
		return nil
	}
	h.place(bp, asize)
	return h.finishAlloc(bp, uint32(n))
}

func (h *Heap) finishAlloc(bp uint32, n uint32) []byte {
	if h.debug != nil {
		if !h.debug.record(bp, n) {
			h.logger.Printf("segheap: debug side-table full, no longer tracking bp=0x%x", bp)
		}
	}
	return h.payload(bp, n)
}

// Free releases a block previously returned by Alloc, Calloc, or
// Realloc. A nil or empty block is a no-op.
func (h *Heap) Free(block []byte) {
	if len(block) == 0 || !h.ensureInit() {
		return
	}
	bp := h.bpOf(block)

	if h.debug != nil {
		if !h.debug.remove(bp) {
			panic("segheap: free of untracked pointer (double free or foreign pointer)")
		}
	}

	size := blockSize(h.header(bp))
	prevAlloc := isPrevAlloc(h.header(bp))
	hdr := packHeader(size, false, prevAlloc)
	h.setHeader(bp, hdr)
	h.setFooter(bp, hdr)
	h.clearNextPrevAlloc(bp)
	h.coalesce(bp)
}

// Realloc resizes the block pointed to by block to n bytes, preserving
// the leading min(len(block), n) bytes. realloc(nil, n) behaves like
// Alloc(n); realloc(block, 0) behaves like Free(block) and returns nil.
// No in-place growth is attempted.
func (h *Heap) Realloc(block []byte, n int) []byte {
	if n == 0 {
		h.Free(block)
		return nil
	}
	if len(block) == 0 {
		return h.Alloc(n)
	}
	newBlock := h.Alloc(n)
	if newBlock == nil {
		return nil
	}
	copyLen := len(block)
	if n < copyLen {
		copyLen = n
	}
	copy(newBlock, block[:copyLen])
	h.Free(block)
	return newBlock
}

// Calloc allocates count*size bytes and zeroes them. Returns nil on
// overflow of count*size, or if the underlying Alloc fails.
func (h *Heap) Calloc(count, size int) []byte {
	if count < 0 || size < 0 {
		return nil
	}
	if count == 0 || size == 0 {
		return nil
	}
	total := count * size
	if total/count != size {
		return nil // overflow: resolved in favor of an explicit check, see SPEC_FULL.md §11
	}
	buf := h.Alloc(total)
	if buf == nil {
		return nil
	}
	clear(buf)
	return buf
}
