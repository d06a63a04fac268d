package malloc

import (
	"fmt"
	"io"

	"github.com/bytealloc/segheap/unsafex"
)

// Violation describes a single invariant breach found by CheckHeap. It is
// reported, never repaired: the checker is read-only.
type Violation struct {
	Addr uint32
	Kind string
}

func (v Violation) String() string {
	return fmt.Sprintf("addr=0x%x kind=%s", v.Addr, v.Kind)
}

// CheckHeap walks the heap twice — once along physical block order from
// prologue to epilogue, once along every free-list class — and verifies
// every invariant in spec.md §3/§8. It reports violations to the heap's
// logger and returns them; it never modifies the heap.
func (h *Heap) CheckHeap(tag string) []Violation {
	if !h.ensureInit() {
		return nil
	}
	var v []Violation

	pro := h.prologueBp()
	proHdr := h.header(pro)
	if blockSize(proHdr) != 2*wordSize || !isAlloc(proHdr) || !isPrevAlloc(proHdr) {
		v = append(v, Violation{pro, "bad prologue header"})
	}
	if proHdr != h.footer(pro) {
		v = append(v, Violation{pro, "prologue header/footer mismatch"})
	}

	freeInHeap := 0
	prevAllocExpected := true
	start := h.next(pro)
	totalTiled := uint32(0)
	bp := start
	for {
		hdr := h.header(bp)
		size := blockSize(hdr)
		if size == 0 {
			break // epilogue
		}
		if bp%8 != 0 {
			v = append(v, Violation{bp, "payload not 8-byte aligned"})
		}
		if size < minBlockSize {
			v = append(v, Violation{bp, "block smaller than minimum size"})
		}
		if !isAlloc(hdr) {
			if hdr != h.footer(bp) {
				v = append(v, Violation{bp, "free block header/footer mismatch"})
			}
			freeInHeap++
		}
		if isPrevAlloc(hdr) != prevAllocExpected {
			v = append(v, Violation{bp, "prev_alloc bit inconsistent with predecessor"})
		}
		if !prevAllocExpected && !isAlloc(hdr) {
			v = append(v, Violation{bp, "two adjacent free blocks"})
		}
		prevAllocExpected = isAlloc(hdr)
		totalTiled += size
		bp = h.next(bp)
	}
	epi := bp
	epiHdr := h.header(epi)
	if blockSize(epiHdr) != 0 || !isAlloc(epiHdr) {
		v = append(v, Violation{epi, "bad epilogue header"})
	}
	if isPrevAlloc(epiHdr) != prevAllocExpected {
		v = append(v, Violation{epi, "epilogue prev_alloc inconsistent with last block"})
	}
	if totalTiled != epi-start {
		v = append(v, Violation{epi, "block extents do not tile the user region"})
	}

	freeInList := 0
	for class := 0; class < h.numClasses; class++ {
		root := h.classHeadOffset(class)
		for x := h.succ(root); x != tailOffset; x = h.succ(x) {
			freeInList++
			size := blockSize(h.header(x))
			if isAlloc(h.header(x)) {
				v = append(v, Violation{x, "allocated block on a free list"})
			}
			if h.classOf(size) != class {
				v = append(v, Violation{x, "free block in wrong size class"})
			}
			if h.succ(h.pred(x)) != x {
				v = append(v, Violation{x, "pred(x)->succ != x"})
			}
			if s := h.succ(x); s != tailOffset && h.pred(s) != x {
				v = append(v, Violation{x, "succ(x)->pred != x"})
			}
		}
	}
	if freeInHeap != freeInList {
		v = append(v, Violation{0, fmt.Sprintf("free block count mismatch: heap=%d list=%d", freeInHeap, freeInList)})
	}

	if h.debug != nil {
		if d := h.debug.describe(); d != "" {
			h.logger.Printf("checkheap[%s]: live blocks %s", tag, d)
		}
	}
	for _, viol := range v {
		h.logger.Printf("checkheap[%s]: %s", tag, viol)
	}
	return v
}

// CheckVerbose is CheckHeap plus a dump, written to w, of every block's
// header fields (and the succ/pred links of free blocks), for interactive
// debugging.
func (h *Heap) CheckVerbose(w io.Writer) []Violation {
	if !h.ensureInit() {
		return nil
	}
	pro := h.prologueBp()
	for bp := pro; ; bp = h.next(bp) {
		hdr := h.header(bp)
		size := blockSize(hdr)
		line := h.blockDump(bp, hdr)
		io.WriteString(w, line)
		if size == 0 {
			break
		}
	}
	return h.CheckHeap("verbose")
}

func (h *Heap) blockDump(bp uint32, hdr uint32) string {
	buf := make([]byte, 0, 64)
	buf = fmt.Appendf(buf, "bp=0x%x size=%d alloc=%v prev_alloc=%v", bp, blockSize(hdr), isAlloc(hdr), isPrevAlloc(hdr))
	if !isAlloc(hdr) && blockSize(hdr) > 0 {
		buf = fmt.Appendf(buf, " succ=0x%x pred=0x%x", h.succ(bp), h.pred(bp))
	}
	buf = append(buf, '\n')
	return unsafex.BinaryToString(buf)
}
