// ABOUTME: Microphone capture loop
// ABOUTME: Reads one device buffer at a time and hands chunks to the sink while unmuted
package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/epnw/dumble-audio/pkg/audio/device"
)

// Sink receives captured chunks
type Sink func(chunk []byte)

// Poster schedules work on the goroutine the sink must run on. Post must
// not block the capture loop.
type Poster interface {
	Post(fn func())
}

// serialPoster runs posted functions in order on one goroutine
type serialPoster struct {
	queue    *fifo[func()]
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newSerialPoster() *serialPoster {
	p := &serialPoster{
		queue:    newFIFO[func()](),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *serialPoster) Post(fn func()) {
	p.queue.Push(fn)
}

func (p *serialPoster) run() {
	defer close(p.done)
	for {
		fn, ok := p.queue.Poll(time.Second, p.stopChan)
		select {
		case <-p.stopChan:
			return
		default:
		}
		if ok {
			fn()
		}
	}
}

// Close stops the delivery goroutine; undelivered work is discarded
func (p *serialPoster) Close() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.queue.Reset()
}

// captureLoop reads the input device while the microphone is enabled.
// While muted it waits on a condition variable instead of reading. Inputs
// that keep buffering on their own are flushed before reading resumes.
type captureLoop struct {
	input   device.Input
	sink    Sink
	poster  Poster
	onError func(error)

	mu      sync.Mutex
	cond    *sync.Cond
	enabled bool
	stopped bool
	mutes   uint64 // bumped on every mute

	done chan struct{}
}

func newCaptureLoop(input device.Input, sink Sink, poster Poster, onError func(error)) *captureLoop {
	c := &captureLoop{
		input:   input,
		sink:    sink,
		poster:  poster,
		onError: onError,
		done:    make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// SetEnabled toggles the microphone; the loop picks it up on its next
// iteration
func (c *captureLoop) SetEnabled(enabled bool) {
	c.mu.Lock()
	if c.enabled && !enabled {
		c.mutes++
	}
	c.enabled = enabled
	c.cond.Broadcast()
	c.mu.Unlock()
}

// Enabled reports whether the microphone is enabled
func (c *captureLoop) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Stop signals the loop to exit. The caller closes the input to unblock a
// pending read.
func (c *captureLoop) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.cond.Broadcast()
	c.mu.Unlock()
}

// waitEnabled blocks while muted. It returns the mute count seen on
// waking, and false once stopped.
func (c *captureLoop) waitEnabled() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for !c.enabled && !c.stopped {
		c.cond.Wait()
	}
	return c.mutes, !c.stopped
}

// deliverable reports whether a chunk read since mute count mutes may
// reach the sink. A mute in between, even one already undone, spoils it.
func (c *captureLoop) deliverable(mutes uint64) (ok bool, stopped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled && !c.stopped && c.mutes == mutes, c.stopped
}

// flush drops audio the input buffered while nobody was reading
func (c *captureLoop) flush() {
	if f, ok := c.input.(device.Flusher); ok {
		f.Flush()
	}
}

func (c *captureLoop) run() {
	defer close(c.done)

	bufferSize := c.input.BufferSize()
	log.Printf("Capture loop started: %d-byte buffers", bufferSize)

	var captured int64
	flushed := ^uint64(0)
	for {
		mutes, running := c.waitEnabled()
		if !running {
			break
		}
		if mutes != flushed {
			c.flush()
			flushed = mutes
		}

		buf := make([]byte, bufferSize)
		n, err := c.input.Read(buf)
		ok, stopped := c.deliverable(mutes)
		if stopped {
			break
		}
		if err != nil {
			if errors.Is(err, device.ErrClosed) {
				break
			}
			log.Printf("Capture read failed: %v", err)
			if c.onError != nil {
				c.onError(fmt.Errorf("capture read failed: %w", err))
			}
			return
		}
		if !ok {
			// Muted while the read was in flight; discard at the source
			continue
		}

		chunk := buf[:n]
		captured++
		c.poster.Post(func() { c.sink(chunk) })
	}

	log.Printf("Capture loop stopped: %d chunks captured", captured)
}
