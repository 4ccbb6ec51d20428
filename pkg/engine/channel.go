// ABOUTME: Per-target playback channel
// ABOUTME: Drains a chunk FIFO into its own output stream with blocking writes
package engine

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/epnw/dumble-audio/pkg/audio"
	"github.com/epnw/dumble-audio/pkg/audio/device"
)

// TargetID identifies a remote speaker for the lifetime of its registration
type TargetID int

// State is the lifecycle state of a playback channel
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ChannelStats tracks channel metrics
type ChannelStats struct {
	Target   TargetID
	State    State
	Enqueued int64
	Written  int64
	Pending  int
}

// Channel plays the chunks dispatched to one target. Its goroutine is the
// only consumer of the queue and the only user of the output stream.
type Channel struct {
	id          TargetID
	format      audio.Format
	opener      device.OutputOpener
	pollTimeout time.Duration
	onError     func(error)

	queue *fifo[[]byte]
	state atomic.Int32

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	enqueued atomic.Int64
	written  atomic.Int64
}

func newChannel(id TargetID, format audio.Format, opener device.OutputOpener, pollTimeout time.Duration, onError func(error)) *Channel {
	return &Channel{
		id:          id,
		format:      format,
		opener:      opener,
		pollTimeout: pollTimeout,
		onError:     onError,
		queue:       newFIFO[[]byte](),
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// ID returns the target this channel plays for
func (c *Channel) ID() TargetID {
	return c.id
}

// State returns the current lifecycle state
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Start launches the playback goroutine. Only the first call has effect.
func (c *Channel) Start() {
	if !c.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return
	}
	go c.run()
}

// Stop signals the playback goroutine to exit. It returns immediately; the
// goroutine releases the output stream itself, see Done.
func (c *Channel) Stop() {
	if c.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
		close(c.done)
		return
	}
	if c.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		c.stopOnce.Do(func() { close(c.stopChan) })
	}
}

// Done is closed once the channel is stopped and its output released
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Enqueue appends a chunk to the playback queue. Chunks for a channel that
// is stopping are dropped and Enqueue reports false.
func (c *Channel) Enqueue(chunk []byte) bool {
	switch c.State() {
	case StateStopping, StateStopped:
		return false
	}
	c.queue.Push(chunk)
	c.enqueued.Add(1)
	return true
}

// Stats returns channel statistics
func (c *Channel) Stats() ChannelStats {
	return ChannelStats{
		Target:   c.id,
		State:    c.State(),
		Enqueued: c.enqueued.Load(),
		Written:  c.written.Load(),
		Pending:  c.queue.Len(),
	}
}

// run opens the output once, then writes queued chunks in order until
// stopped
func (c *Channel) run() {
	defer close(c.done)
	defer c.state.Store(int32(StateStopped))

	minBuffer := device.MinBufferSize(c.format)
	out, err := c.opener.OpenOutput(c.format, device.UsageVoiceCommunication)
	if err != nil {
		c.fail(fmt.Errorf("%w: %w", ErrDeviceUnavailable, err))
		return
	}

	log.Printf("Channel %d: playing %s (min buffer %d bytes)", c.id, c.format, minBuffer)

	defer func() {
		if err := out.Close(); err != nil {
			log.Printf("Channel %d: error releasing output: %v", c.id, err)
		}
		dropped := c.queue.Reset()
		log.Printf("Channel %d stopped: %d written, %d discarded", c.id, c.written.Load(), dropped)
	}()

	for c.State() == StateRunning {
		chunk, ok := c.queue.Poll(c.pollTimeout, c.stopChan)
		if !ok {
			continue
		}

		if _, err := out.Write(chunk); err != nil {
			c.fail(fmt.Errorf("output write failed: %w", err))
			return
		}
		c.written.Add(1)
	}
}

func (c *Channel) fail(err error) {
	log.Printf("Channel %d: %v", c.id, err)
	if c.onError != nil {
		c.onError(&TargetError{Target: c.id, Err: err})
	}
}
