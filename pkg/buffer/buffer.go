package buffer

// Ring is a fixed-capacity ring that keeps the most recent items. It is not
// safe for concurrent use.
type Ring[T any] struct {
	items []T
	next  int // slot the next Push writes
	size  int
}

// NewRing returns a ring holding up to capacity items. Capacities below one
// are raised to one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends item. When the ring is full the oldest item is overwritten
// and returned with evicted set.
func (r *Ring[T]) Push(item T) (old T, evicted bool) {
	if r.size == len(r.items) {
		old, evicted = r.items[r.next], true
	} else {
		r.size++
	}
	r.items[r.next] = item
	r.next = (r.next + 1) % len(r.items)
	return old, evicted
}

// Items returns a copy of the contents, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	start := (r.next - r.size + len(r.items)) % len(r.items)
	for i := range out {
		out[i] = r.items[(start+i)%len(r.items)]
	}
	return out
}

func (r *Ring[T]) Len() int { return r.size }
func (r *Ring[T]) Cap() int { return len(r.items) }

// Reset empties the ring, releasing references held by its slots.
func (r *Ring[T]) Reset() {
	clear(r.items)
	r.next, r.size = 0, 0
}
