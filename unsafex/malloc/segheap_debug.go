package malloc

import (
	"fmt"

	"github.com/bytealloc/segheap/container/ring"
)

// liveBlock is one slot of the debug side-table: the block pointer and
// size of a currently-allocated block, or the zero value for an empty
// slot.
type liveBlock struct {
	bp   uint32
	size uint32
}

// debugTracker is the optional instrumentation described in spec.md
// §1(c): a bounded side table of live user blocks, used to catch
// double-frees and frees of pointers this heap never allocated. It is
// not part of the allocator's required behavior — enable it with
// Config.Debug for extra validation during testing.
//
// Built over the fixed-capacity generic Ring, the same way the original
// C allocator kept a fixed-size array of live blocks for the same
// purpose: a bounded table of slots, scanned linearly, reused once a
// block is freed.
type debugTracker struct {
	slots *ring.Ring[liveBlock]
}

func newDebugTracker(capacity int) *debugTracker {
	return &debugTracker{slots: ring.NewFromSlice(make([]liveBlock, capacity))}
}

// record adds bp to the table. Returns false if the table is full.
func (d *debugTracker) record(bp, size uint32) bool {
	for i := 0; i < d.slots.Len(); i++ {
		it, _ := d.slots.Get(i)
		if it.Value().bp == 0 {
			*it.Pointer() = liveBlock{bp: bp, size: size}
			return true
		}
	}
	return false
}

// remove clears bp's slot, if present. Returns false if bp was not
// tracked as live (a double-free or a foreign pointer).
func (d *debugTracker) remove(bp uint32) bool {
	for i := 0; i < d.slots.Len(); i++ {
		it, _ := d.slots.Get(i)
		if it.Value().bp == bp {
			*it.Pointer() = liveBlock{}
			return true
		}
	}
	return false
}

// describe renders the live-block table for diagnostics.
func (d *debugTracker) describe() string {
	s := ""
	d.slots.Do(func(v *liveBlock) {
		if v.bp != 0 {
			s += fmt.Sprintf("[bp=0x%x size=%d] ", v.bp, v.size)
		}
	})
	return s
}
