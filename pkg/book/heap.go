package book

// maxPriceHeap implements heap.Interface for bid prices (highest price on top).
// Use container/heap to manipulate it (Init, Push, Pop, Remove).
type maxPriceHeap []int64

func (h maxPriceHeap) Len() int           { return len(h) }
func (h maxPriceHeap) Less(i, j int) bool { return h[i] > h[j] }
func (h maxPriceHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *maxPriceHeap) Push(x any) {
	*h = append(*h, x.(int64))
}

func (h *maxPriceHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Peek returns the top element without removing it.
func (h maxPriceHeap) Peek() int64 {
	if len(h) == 0 {
		return 0
	}
	return h[0]
}

// minPriceHeap implements heap.Interface for ask prices (lowest price on top).
type minPriceHeap []int64

func (h minPriceHeap) Len() int           { return len(h) }
func (h minPriceHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h minPriceHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minPriceHeap) Push(x any) {
	*h = append(*h, x.(int64))
}

func (h *minPriceHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Peek returns the top element without removing it.
func (h minPriceHeap) Peek() int64 {
	if len(h) == 0 {
		return 0
	}
	return h[0]
}
