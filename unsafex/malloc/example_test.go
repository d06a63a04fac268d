package malloc

import "fmt"

func Example() {
	h, _ := NewHeap(DefaultConfig())

	b1 := h.Alloc(24)
	b2 := h.Alloc(100)

	fmt.Printf("b1: len=%d\n", len(b1))
	fmt.Printf("b2: len=%d\n", len(b2))

	h.Free(b1)
	b3 := h.Alloc(16) // reuses b1's freed block

	fmt.Printf("b3: len=%d\n", len(b3))

	h.Free(b2)
	h.Free(b3)

	// Output:
	// b1: len=24
	// b2: len=100
	// b3: len=16
}
