package stream

import "sync"

// History is a small bounded append buffer shared between workers. It backs
// the feature look-back rows, the classification history, and the per-night
// dominant-state trace.
type History[T any] struct {
	mu       sync.Mutex
	buf      []T
	capacity int
}

// NewHistory constructs a History holding at most capacity entries.
func NewHistory[T any](capacity int) *History[T] {
	if capacity <= 0 {
		panic("stream: history capacity must be > 0")
	}
	return &History[T]{
		buf:      make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Add appends an entry, evicting the oldest once capacity is reached.
func (h *History[T]) Add(entry T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.buf) == h.capacity {
		copy(h.buf, h.buf[1:])
		h.buf[len(h.buf)-1] = entry
		return
	}
	h.buf = append(h.buf, entry)
}

// Items returns a copy of the buffered entries, oldest first.
func (h *History[T]) Items() []T {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]T, len(h.buf))
	copy(out, h.buf)
	return out
}

// Drain atomically copies out all entries and clears the buffer, so a batch
// is never read twice.
func (h *History[T]) Drain() []T {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.buf) == 0 {
		return nil
	}
	out := make([]T, len(h.buf))
	copy(out, h.buf)
	h.buf = h.buf[:0]
	return out
}

// Len reports the number of buffered entries.
func (h *History[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buf)
}
