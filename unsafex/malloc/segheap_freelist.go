package malloc

import "math/bits"

// tailOffset is the single, globally-shared end-of-list sentinel. It
// lives at the very start of the heap and carries both a succ and a pred
// field, so insertion/removal never has to special-case "the list is
// empty" or "this is the last element".
const tailOffset uint32 = 0

// classHeadOffset returns the offset of class i's head slot. Each slot is
// a single word holding the offset of the first free block in that
// class, or tailOffset when empty.
func (h *Heap) classHeadOffset(i int) uint32 {
	return 8 + uint32(i)*wordSize
}

// classOf returns the size class a block of the given size belongs to.
// Class i covers [16<<i, 16<<(i+1)); the last class covers everything at
// or above its lower bound. Derived from the size's bit length the same
// way cache/mempool's poolIndex buckets buffer sizes by power of two.
func (h *Heap) classOf(size uint32) int {
	if size < minBlockSize {
		size = minBlockSize
	}
	class := bits.Len32(size) - bits.Len32(minBlockSize)
	if class < 0 {
		class = 0
	}
	if class > h.numClasses-1 {
		class = h.numClasses - 1
	}
	return class
}

// A "node" is any offset that has a succ field at itself and a pred field
// 4 bytes after it: a real free block, a class head slot, or the tail
// sentinel. succ/pred/setSucc/setPred operate uniformly over all three.
func (h *Heap) succ(node uint32) uint32 { return h.getWord(node) }
func (h *Heap) setSucc(node, v uint32)  { h.putWord(node, v) }
func (h *Heap) pred(node uint32) uint32 { return h.getWord(node + wordSize) }
func (h *Heap) setPred(node, v uint32)  { h.putWord(node+wordSize, v) }

// insert threads a free block into the head of its size class's list
// (LIFO, for cache locality).
func (h *Heap) insert(bp uint32) {
	size := blockSize(h.header(bp))
	root := h.classHeadOffset(h.classOf(size))
	first := h.succ(root)
	h.setSucc(bp, first)
	h.setPred(bp, root)
	h.setPred(first, bp)
	h.setSucc(root, bp)
}

// unlink splices a free block out of whichever list it currently sits in.
func (h *Heap) unlink(bp uint32) {
	p := h.pred(bp)
	s := h.succ(bp)
	h.setSucc(p, s)
	h.setPred(s, p)
}

// findFit walks size classes ascending from classOf(asize), first-fit
// within each class.
func (h *Heap) findFit(asize uint32) (uint32, bool) {
	for class := h.classOf(asize); class < h.numClasses; class++ {
		root := h.classHeadOffset(class)
		for bp := h.succ(root); bp != tailOffset; bp = h.succ(bp) {
			if blockSize(h.header(bp)) >= asize {
				return bp, true
			}
		}
	}
	return 0, false
}
