package malloc

// clearNextPrevAlloc clears the prev_alloc bit of the block physically
// following bp (whose own header/footer must already reflect bp as
// free), updating its footer too if it happens to be free itself. Every
// caller that frees or creates a free block must do this before handing
// the block to coalesce.
func (h *Heap) clearNextPrevAlloc(bp uint32) {
	nb := h.next(bp)
	nHdr := h.header(nb)
	nHdr = packHeader(blockSize(nHdr), isAlloc(nHdr), false)
	h.setHeader(nb, nHdr)
	if !isAlloc(nHdr) {
		h.setFooter(nb, nHdr)
	}
}

// coalesce merges a free block bp with any free neighbor(s), then
// re-inserts the (possibly larger) result into the appropriate size
// class. Returns the block pointer of the merged block.
func (h *Heap) coalesce(bp uint32) uint32 {
	prevAlloc := isPrevAlloc(h.header(bp))
	next := h.next(bp)
	nextAlloc := isAlloc(h.header(next))
	size := blockSize(h.header(bp))

	switch {
	case prevAlloc && nextAlloc:
		// no adjacent free blocks
	case !prevAlloc && nextAlloc:
		p := h.prev(bp)
		h.unlink(p)
		size += blockSize(h.header(p))
		bp = p
	case prevAlloc && !nextAlloc:
		h.unlink(next)
		size += blockSize(h.header(next))
	default:
		p := h.prev(bp)
		h.unlink(p)
		h.unlink(next)
		size += blockSize(h.header(p)) + blockSize(h.header(next))
		bp = p
	}

	// Invariant 3 guarantees bp's predecessor is allocated: otherwise it
	// would already have been absorbed above.
	hdr := packHeader(size, false, true)
	h.setHeader(bp, hdr)
	h.setFooter(bp, hdr)
	h.insert(bp)
	return bp
}
