package store

// Ring is a growable circular deque. Push appends at the back and TrimTo
// drops from the front, both O(1) amortized. A Ring is not safe for
// concurrent use; Store serializes access.
type Ring[T any] struct {
	items []T
	head  int // index of the oldest item
	size  int
}

// NewRing returns an empty ring with room for hint items before growing.
func NewRing[T any](hint int) *Ring[T] {
	if hint < 0 {
		hint = 0
	}
	return &Ring[T]{items: make([]T, hint)}
}

// Len returns the number of stored items.
func (r *Ring[T]) Len() int {
	if r == nil {
		return 0
	}
	return r.size
}

// Push appends v as the newest item.
func (r *Ring[T]) Push(v T) {
	if r.size == len(r.items) {
		r.grow()
	}
	r.items[(r.head+r.size)%len(r.items)] = v
	r.size++
}

// TrimTo drops the oldest items until at most n remain and returns the
// number dropped.
func (r *Ring[T]) TrimTo(n int) int {
	if n < 0 {
		n = 0
	}
	var zero T
	dropped := 0
	for r.size > n {
		r.items[r.head] = zero
		r.head = (r.head + 1) % len(r.items)
		r.size--
		dropped++
	}
	if r.size == 0 {
		r.head = 0
	}
	return dropped
}

// At returns the i-th oldest item. It panics when i is out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("store: ring index out of range")
	}
	return r.items[(r.head+i)%len(r.items)]
}

// Last returns the newest item.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.Len() == 0 {
		return zero, false
	}
	return r.At(r.size - 1), true
}

// Slice copies the items oldest first.
func (r *Ring[T]) Slice() []T {
	out := make([]T, r.Len())
	for i := range out {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

// Tail copies at most n of the newest items, oldest first.
func (r *Ring[T]) Tail(n int) []T {
	if n > r.Len() {
		n = r.Len()
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	start := r.size - n
	for i := range out {
		out[i] = r.items[(r.head+start+i)%len(r.items)]
	}
	return out
}

// Clear removes all items but keeps the allocated storage.
func (r *Ring[T]) Clear() {
	r.TrimTo(0)
}

func (r *Ring[T]) grow() {
	n := len(r.items) * 2
	if n < 16 {
		n = 16
	}
	items := make([]T, n)
	for i := 0; i < r.size; i++ {
		items[i] = r.items[(r.head+i)%len(r.items)]
	}
	r.items = items
	r.head = 0
}
