package malloc

// place allocates asize bytes out of the free block bp, which must have
// size >= asize. If the remainder would still meet the minimum block
// size, bp is split and the remainder is coalesced back into the free
// lists; otherwise the whole block is handed to the caller.
func (h *Heap) place(bp uint32, asize uint32) {
	csize := blockSize(h.header(bp))
	prevAlloc := isPrevAlloc(h.header(bp))
	h.unlink(bp)

	if csize-asize >= minBlockSize {
		h.setHeader(bp, packHeader(asize, true, prevAlloc))
		// allocated block: no footer

		rem := bp + asize
		remSize := csize - asize
		remHdr := packHeader(remSize, false, true)
		h.setHeader(rem, remHdr)
		h.setFooter(rem, remHdr)
		h.clearNextPrevAlloc(rem)
		h.coalesce(rem)
		return
	}

	h.setHeader(bp, packHeader(csize, true, prevAlloc))
	nb := h.next(bp)
	nHdr := h.header(nb)
	nHdr = packHeader(blockSize(nHdr), isAlloc(nHdr), true)
	h.setHeader(nb, nHdr)
	if !isAlloc(nHdr) {
		h.setFooter(nb, nHdr)
	}
}
