package book

// handle indexes an order slot in the arena. Price levels and the
// pending-stop set hold handles, never *Order, so resting orders live
// in one contiguous slice and level queues stay pointer-free.
type handle uint32

type arena struct {
	slots []Order
	free  []handle
}

func (a *arena) alloc(o Order) handle {
	if n := len(a.free); n > 0 {
		h := a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[h] = o
		return h
	}
	a.slots = append(a.slots, o)
	return handle(len(a.slots) - 1)
}

func (a *arena) at(h handle) *Order {
	return &a.slots[h]
}

// release returns a slot to the free list. The caller must have
// removed every reference to h from the book first.
func (a *arena) release(h handle) {
	a.slots[h] = Order{}
	a.free = append(a.free, h)
}

func (a *arena) reset() {
	a.slots = a.slots[:0]
	a.free = a.free[:0]
}
