package stream

import (
	"sync"
	"time"
)

// RawSample is a single ADC reading as it arrived off the wire.
type RawSample struct {
	ArrivalTime time.Time
	Value       int16
}

// ProcessedSample is a calibrated voltage reading owned by the rolling window
// until evicted.
type ProcessedSample struct {
	Time    time.Time
	Voltage float64
}

// Queue is the bounded ingestion FIFO between the network receiver and the
// batch processor. Pushing beyond capacity evicts the oldest entries. Critical
// sections hold only the copy; callers must keep I/O and heavy transformation
// outside.
type Queue struct {
	mu       sync.Mutex
	buf      []RawSample
	capacity int
}

// NewQueue constructs a Queue holding at most capacity samples.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		panic("stream: queue capacity must be > 0")
	}
	return &Queue{
		buf:      make([]RawSample, 0, capacity),
		capacity: capacity,
	}
}

// Push appends samples, evicting the oldest entries once capacity is reached.
func (q *Queue) Push(samples ...RawSample) {
	if len(samples) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(samples) >= q.capacity {
		q.buf = append(q.buf[:0], samples[len(samples)-q.capacity:]...)
		return
	}

	q.buf = append(q.buf, samples...)
	if overflow := len(q.buf) - q.capacity; overflow > 0 {
		q.buf = append(q.buf[:0], q.buf[overflow:]...)
	}
}

// Drain atomically copies out all queued samples and clears the queue.
func (q *Queue) Drain() []RawSample {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.buf) == 0 {
		return nil
	}

	out := make([]RawSample, len(q.buf))
	copy(out, q.buf)
	q.buf = q.buf[:0]
	return out
}

// Len reports the number of queued samples.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// RollingWindow holds the most recent windowSeconds*sampleRateHz processed
// samples. A snapshot is valid only once the window is completely full, which
// guarantees fixed-duration feature windows downstream.
type RollingWindow struct {
	mu       sync.Mutex
	buf      []ProcessedSample
	head     int
	count    int
	capacity int
}

// NewRollingWindow constructs a window sized for the given duration and rate.
func NewRollingWindow(windowSeconds, sampleRateHz int) *RollingWindow {
	capacity := windowSeconds * sampleRateHz
	if capacity <= 0 {
		panic("stream: rolling window capacity must be > 0")
	}
	return &RollingWindow{
		buf:      make([]ProcessedSample, capacity),
		capacity: capacity,
	}
}

// AddBatch appends samples in order, evicting the oldest unconditionally.
func (w *RollingWindow) AddBatch(samples []ProcessedSample) {
	if len(samples) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, s := range samples {
		w.buf[(w.head+w.count)%w.capacity] = s
		if w.count < w.capacity {
			w.count++
		} else {
			w.head = (w.head + 1) % w.capacity
		}
	}
}

// Snapshot returns an order-preserving copy of the window contents and true
// once the window is full, or (nil, false) while it is still warming up.
// The copy never aliases the internal buffer, so callers can process it
// without racing concurrent mutation.
func (w *RollingWindow) Snapshot() ([]ProcessedSample, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count < w.capacity {
		return nil, false
	}

	out := make([]ProcessedSample, w.capacity)
	for i := range out {
		out[i] = w.buf[(w.head+i)%w.capacity]
	}
	return out, true
}

// Cap reports the fixed window capacity in samples.
func (w *RollingWindow) Cap() int {
	return w.capacity
}

// Len reports how many samples the window currently holds.
func (w *RollingWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}
