package queue

import "sync"

const minSize = 2

// Queue is an unbounded FIFO on top of a growable ring buffer.
// Pop blocks until a value is pushed or the queue is closed and drained.
type Queue[T any] struct {
	mu         sync.Mutex
	cond       *sync.Cond
	buf        []T
	head, tail int
	len        int
	closed     bool
}

func New[T any](size int) *Queue[T] {
	if size < minSize {
		size = minSize
	}
	q := &Queue[T]{buf: make([]T, size)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends v. Returns false when the queue is already closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if q.len == len(q.buf) {
		q.growUnlocked()
	}
	q.buf[q.head] = v
	q.head = (q.head + 1) % len(q.buf)
	q.len++
	q.cond.Signal()
	return true
}

// TryPop never blocks.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popUnlocked()
}

// Pop waits for the next value. ok is false only once the queue is closed and empty.
func (q *Queue[T]) Pop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.len == 0 && !q.closed {
		q.cond.Wait()
	}
	return q.popUnlocked()
}

// Close rejects further pushes. Values already queued are still handed out by Pop.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len
}

func (q *Queue[T]) popUnlocked() (T, bool) {
	var zero T
	if q.len == 0 {
		return zero, false
	}
	v := q.buf[q.tail]
	q.buf[q.tail] = zero
	q.tail = (q.tail + 1) % len(q.buf)
	q.len--
	return v, true
}

func (q *Queue[T]) growUnlocked() {
	buf := make([]T, len(q.buf)*2)
	n := copy(buf, q.buf[q.tail:])
	copy(buf[n:], q.buf[:q.tail])
	q.tail = 0
	q.head = q.len
	q.buf = buf
}
