package malloc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ChunkSize = 64
	cfg.MaxArenaSize = 1 << 20
	cfg.Debug = true
	return cfg
}

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	h, err := NewHeap(testConfig())
	require.NoError(t, err)
	return h
}

func TestNewHeapRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumClasses = 4 // even: violates the prelude-alignment invariant
	_, err := NewHeap(cfg)
	assert.Error(t, err)
}

func TestAllocReturnsUsableRegion(t *testing.T) {
	h := newTestHeap(t)
	b := h.Alloc(32)
	require.Len(t, b, 32)
	for i := range b {
		b[i] = byte(i)
	}
	for i := range b {
		assert.Equal(t, byte(i), b[i])
	}
	assert.Empty(t, h.CheckHeap("after-alloc"))
}

func TestAllocZeroReturnsNil(t *testing.T) {
	h := newTestHeap(t)
	assert.Nil(t, h.Alloc(0))
}

func TestFreeThenAllocRoundTrip(t *testing.T) {
	h := newTestHeap(t)
	b1 := h.Alloc(40)
	p := &b1[0]
	h.Free(b1)
	assert.Empty(t, h.CheckHeap("after-free"))

	b2 := h.Alloc(40)
	require.Len(t, b2, 40)
	assert.Same(t, p, &b2[0], "a same-size alloc right after free should reuse the just-freed block")
	assert.Empty(t, h.CheckHeap("after-second-alloc"))
}

func TestCoalesceMergesFreedNeighbors(t *testing.T) {
	h := newTestHeap(t)
	a := h.Alloc(16)
	b := h.Alloc(16)
	c := h.Alloc(16)
	_ = a
	_ = c

	h.Free(a)
	h.Free(c)
	h.Free(b) // merges a|b|c into one free block
	assert.Empty(t, h.CheckHeap("after-triple-free"))

	big := h.Alloc(40) // fits inside the merged a|b|c block
	require.NotNil(t, big)
}

func TestSplitLeavesUsableRemainder(t *testing.T) {
	h := newTestHeap(t)
	big := h.Alloc(200)
	h.Free(big)

	small := h.Alloc(16)
	require.NotNil(t, small)
	assert.Empty(t, h.CheckHeap("after-split"))

	// the remainder split off from the freed 200-byte block must still be
	// usable for another allocation
	other := h.Alloc(16)
	require.NotNil(t, other)
}

func TestSegregationBySizeClass(t *testing.T) {
	h := newTestHeap(t)
	require.True(t, h.ensureInit())

	assert.Equal(t, h.classOf(16), h.classOf(31))
	assert.NotEqual(t, h.classOf(16), h.classOf(32))

	// Now exercise classOf through the actual insert/Free path rather than
	// calling it directly: alloc a spacer ahead of each target size so
	// freeing the target can't coalesce it into its neighbor, free only the
	// targets, then walk each size class's real free list and confirm the
	// freed block landed in the class classOf would predict.
	sizes := []int{16, 48, 256, 4096}
	targets := make([][]byte, len(sizes))
	for i, sz := range sizes {
		require.NotNil(t, h.Alloc(8)) // spacer: keeps targets non-adjacent
		targets[i] = h.Alloc(sz)
		require.NotNil(t, targets[i])
	}
	require.NotNil(t, h.Alloc(8)) // trailing spacer

	bps := make([]uint32, len(targets))
	for i, b := range targets {
		bps[i] = h.bpOf(b)
		h.Free(b)
	}
	require.Empty(t, h.CheckHeap("after-segregated-free"))

	for i, sz := range sizes {
		// place hands over the whole free block when a split would leave
		// less than minBlockSize, so a target's block can be larger than
		// adjustedSize(sz); its class follows the block's real size.
		size := blockSize(h.header(bps[i]))
		wantClass := h.classOf(size)

		found := false
		root := h.classHeadOffset(wantClass)
		for bp := h.succ(root); bp != tailOffset; bp = h.succ(bp) {
			if bp == bps[i] {
				found = true
				break
			}
		}
		assert.True(t, found, "size %d (block size %d) should free into class %d's list", sz, size, wantClass)
	}
}

func TestGrowHeapOnMiss(t *testing.T) {
	h := newTestHeap(t)
	var blocks [][]byte
	for i := 0; i < 64; i++ {
		b := h.Alloc(24)
		require.NotNil(t, b, "allocation %d should grow the heap rather than fail", i)
		blocks = append(blocks, b)
	}
	assert.Empty(t, h.CheckHeap("after-growth"))
	for _, b := range blocks {
		h.Free(b)
	}
	assert.Empty(t, h.CheckHeap("after-drain"))
}

func TestReallocCopiesLeadingBytes(t *testing.T) {
	h := newTestHeap(t)
	b := h.Alloc(16)
	for i := range b {
		b[i] = byte(i + 1)
	}

	grown := h.Realloc(b, 64)
	require.Len(t, grown, 64)
	for i := 0; i < 16; i++ {
		assert.Equal(t, byte(i+1), grown[i])
	}
	assert.Empty(t, h.CheckHeap("after-realloc-grow"))
}

func TestReallocToZeroFrees(t *testing.T) {
	h := newTestHeap(t)
	b := h.Alloc(16)
	assert.Nil(t, h.Realloc(b, 0))
	assert.Empty(t, h.CheckHeap("after-realloc-zero"))
}

func TestReallocNilBehavesLikeAlloc(t *testing.T) {
	h := newTestHeap(t)
	b := h.Realloc(nil, 24)
	require.Len(t, b, 24)
}

func TestCallocZeroesMemory(t *testing.T) {
	h := newTestHeap(t)
	b := h.Alloc(64)
	for i := range b {
		b[i] = 0xFF
	}
	h.Free(b)

	z := h.Calloc(8, 8)
	require.Len(t, z, 64)
	for _, v := range z {
		assert.Zero(t, v)
	}
}

func TestCallocOverflowReturnsNil(t *testing.T) {
	h := newTestHeap(t)
	assert.Nil(t, h.Calloc(math.MaxInt, 2))
}

func TestFreeNilIsNoop(t *testing.T) {
	h := newTestHeap(t)
	assert.NotPanics(t, func() { h.Free(nil) })
}

func TestDebugTrackerCatchesDoubleFree(t *testing.T) {
	h := newTestHeap(t)
	b := h.Alloc(16)
	h.Free(b)
	assert.Panics(t, func() { h.Free(b) })
}

func TestCheckHeapOnFreshHeapIsClean(t *testing.T) {
	h := newTestHeap(t)
	require.True(t, h.ensureInit())
	assert.Empty(t, h.CheckHeap("fresh"))
}
