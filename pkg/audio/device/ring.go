// ABOUTME: Blocking byte ring buffer shared by callback-driven backends
// ABOUTME: Bridges device callbacks to blocking Read/Write calls
package device

import "sync"

// RingBuffer is a bounded circular byte buffer. Blocking calls wait on the
// opposite side; non-blocking calls are meant for device callbacks.
type RingBuffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buffer   []byte
	readPos  int
	writePos int
	count    int
	closed   bool
}

// NewRingBuffer creates a ring buffer with given capacity in bytes
func NewRingBuffer(capacity int) *RingBuffer {
	rb := &RingBuffer{buffer: make([]byte, capacity)}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// Write copies all of p into the buffer, waiting for free space as needed
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for written < len(p) {
		for rb.count == len(rb.buffer) && !rb.closed {
			rb.cond.Wait()
		}
		if rb.closed {
			return written, ErrClosed
		}
		written += rb.put(p[written:])
		rb.cond.Broadcast()
	}
	return written, nil
}

// Offer copies as much of p as fits without waiting and returns the count
func (rb *RingBuffer) Offer(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.closed {
		return 0
	}
	n := rb.put(p)
	if n > 0 {
		rb.cond.Broadcast()
	}
	return n
}

// ReadFull waits until len(p) bytes are buffered and copies them out
func (rb *RingBuffer) ReadFull(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for read < len(p) {
		for rb.count == 0 && !rb.closed {
			rb.cond.Wait()
		}
		if rb.closed {
			return read, ErrClosed
		}
		read += rb.take(p[read:])
		rb.cond.Broadcast()
	}
	return read, nil
}

// Drain copies out whatever is buffered without waiting and zero-fills the
// rest of p. It returns the number of real bytes copied.
func (rb *RingBuffer) Drain(p []byte) int {
	rb.mu.Lock()
	n := rb.take(p)
	if n > 0 {
		rb.cond.Broadcast()
	}
	rb.mu.Unlock()

	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return n
}

// Available returns the number of buffered bytes
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Reset discards everything buffered and returns the number of bytes dropped
func (rb *RingBuffer) Reset() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	dropped := rb.count
	rb.readPos, rb.writePos, rb.count = 0, 0, 0
	rb.cond.Broadcast()
	return dropped
}

// Drained reports whether the buffer is closed and holds nothing more
func (rb *RingBuffer) Drained() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.closed && rb.count == 0
}

// Close wakes all waiters; subsequent blocking calls return ErrClosed
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	rb.closed = true
	rb.cond.Broadcast()
	rb.mu.Unlock()
}

// put copies into free space (must hold rb.mu)
func (rb *RingBuffer) put(p []byte) int {
	size := len(rb.buffer)
	n := 0
	for n < len(p) && rb.count < size {
		chunk := size - rb.writePos
		if free := size - rb.count; chunk > free {
			chunk = free
		}
		if rest := len(p) - n; chunk > rest {
			chunk = rest
		}
		copy(rb.buffer[rb.writePos:rb.writePos+chunk], p[n:n+chunk])
		rb.writePos = (rb.writePos + chunk) % size
		rb.count += chunk
		n += chunk
	}
	return n
}

// take copies out buffered bytes (must hold rb.mu)
func (rb *RingBuffer) take(p []byte) int {
	size := len(rb.buffer)
	n := 0
	for n < len(p) && rb.count > 0 {
		chunk := size - rb.readPos
		if chunk > rb.count {
			chunk = rb.count
		}
		if rest := len(p) - n; chunk > rest {
			chunk = rest
		}
		copy(p[n:n+chunk], rb.buffer[rb.readPos:rb.readPos+chunk])
		rb.readPos = (rb.readPos + chunk) % size
		rb.count -= chunk
		n += chunk
	}
	return n
}
