// ABOUTME: In-memory audio devices for tests
// ABOUTME: Fake Input/Output/openers/router that record every interaction
package devicetest

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/epnw/dumble-audio/pkg/audio"
	"github.com/epnw/dumble-audio/pkg/audio/device"
)

// Input is a fake microphone. Every Read waits one period and returns a
// buffer whose first four bytes hold the device clock tick (little-endian),
// so gaps reveal audio that was never read.
type Input struct {
	bufferSize int
	period     time.Duration
	start      time.Time

	mu     sync.Mutex
	reads  int
	closed chan struct{}
	once   sync.Once
	err    error
}

// NewInput creates a fake input producing bufferSize-byte buffers every period
func NewInput(bufferSize int, period time.Duration) *Input {
	return &Input{
		bufferSize: bufferSize,
		period:     period,
		start:      time.Now(),
		closed:     make(chan struct{}),
	}
}

// Tick decodes the device clock tick stamped into a captured chunk
func Tick(chunk []byte) uint32 {
	if len(chunk) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(chunk)
}

func (in *Input) Read(p []byte) (int, error) {
	select {
	case <-in.closed:
		return 0, device.ErrClosed
	case <-time.After(in.period):
	}

	in.mu.Lock()
	in.reads++
	err := in.err
	in.mu.Unlock()
	if err != nil {
		return 0, err
	}

	tick := uint32(time.Since(in.start) / in.period)
	binary.LittleEndian.PutUint32(p, tick)
	return len(p), nil
}

func (in *Input) BufferSize() int {
	return in.bufferSize
}

func (in *Input) Close() error {
	in.once.Do(func() { close(in.closed) })
	return nil
}

// Fail makes subsequent reads return err
func (in *Input) Fail(err error) {
	in.mu.Lock()
	in.err = err
	in.mu.Unlock()
}

// Reads returns the number of completed reads
func (in *Input) Reads() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.reads
}

// Closed is closed once the input has been released
func (in *Input) Closed() <-chan struct{} {
	return in.closed
}

// BufferingInput is a fake callback-driven microphone. A producer goroutine
// queues one stamped buffer per period into a ring whether or not anyone
// reads, the way a device callback does.
type BufferingInput struct {
	bufferSize int
	capacity   int
	ring       *device.RingBuffer
	stop       chan struct{}
	done       chan struct{}
	once       sync.Once

	mu      sync.Mutex
	flushes int
}

// NewBufferingInput creates a fake input holding up to depth buffers
func NewBufferingInput(bufferSize, depth int, period time.Duration) *BufferingInput {
	in := &BufferingInput{
		bufferSize: bufferSize,
		capacity:   bufferSize * depth,
		ring:       device.NewRingBuffer(bufferSize * depth),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go in.produce(period)
	return in
}

func (in *BufferingInput) produce(period time.Duration) {
	defer close(in.done)
	start := time.Now()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	buf := make([]byte, in.bufferSize)
	for {
		select {
		case <-in.stop:
			return
		case <-ticker.C:
		}
		binary.LittleEndian.PutUint32(buf, uint32(time.Since(start)/period))
		// Overruns drop the newest buffer whole
		if in.ring.Available()+len(buf) <= in.capacity {
			in.ring.Offer(buf)
		}
	}
}

func (in *BufferingInput) Read(p []byte) (int, error) {
	return in.ring.ReadFull(p)
}

func (in *BufferingInput) BufferSize() int {
	return in.bufferSize
}

// Flush drops everything queued so far
func (in *BufferingInput) Flush() {
	in.ring.Reset()
	in.mu.Lock()
	in.flushes++
	in.mu.Unlock()
}

// Flushes returns how many times Flush was called
func (in *BufferingInput) Flushes() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.flushes
}

func (in *BufferingInput) Close() error {
	in.once.Do(func() {
		close(in.stop)
		<-in.done
		in.ring.Close()
	})
	return nil
}

// InputOpener hands out fake inputs
type InputOpener struct {
	BufferSize int
	Period     time.Duration
	Err        error

	mu     sync.Mutex
	inputs []*Input
}

func (o *InputOpener) OpenInput(format audio.Format) (device.Input, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	size := o.BufferSize
	if size == 0 {
		size = device.MinBufferSize(format)
	}
	period := o.Period
	if period == 0 {
		period = 5 * time.Millisecond
	}

	in := NewInput(size, period)
	o.mu.Lock()
	o.inputs = append(o.inputs, in)
	o.mu.Unlock()
	return in, nil
}

// Inputs returns every input opened so far
func (o *InputOpener) Inputs() []*Input {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Input(nil), o.inputs...)
}

// Output is a fake playback stream recording each write in order
type Output struct {
	Format audio.Format
	Usage  device.Usage

	mu     sync.Mutex
	writes [][]byte
	gate   chan struct{}
	delay  time.Duration
	err    error
	wrote  chan struct{}
	closed chan struct{}
	once   sync.Once
}

// NewOutput creates a fake output
func NewOutput(format audio.Format, usage device.Usage) *Output {
	return &Output{
		Format: format,
		Usage:  usage,
		wrote:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Write records p, after waiting for the gate (if held) and the delay
func (out *Output) Write(p []byte) (int, error) {
	out.mu.Lock()
	gate, delay, err := out.gate, out.delay, out.err
	out.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-out.closed:
			return 0, device.ErrClosed
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return 0, err
	}

	out.mu.Lock()
	out.writes = append(out.writes, append([]byte(nil), p...))
	out.mu.Unlock()

	select {
	case out.wrote <- struct{}{}:
	default:
	}
	return len(p), nil
}

func (out *Output) Close() error {
	out.once.Do(func() { close(out.closed) })
	return nil
}

// Hold blocks writes until Release is called
func (out *Output) Hold() {
	out.mu.Lock()
	out.gate = make(chan struct{})
	out.mu.Unlock()
}

// Release unblocks writes held by Hold
func (out *Output) Release() {
	out.mu.Lock()
	if out.gate != nil {
		close(out.gate)
		out.gate = nil
	}
	out.mu.Unlock()
}

// SetDelay makes every write take d
func (out *Output) SetDelay(d time.Duration) {
	out.mu.Lock()
	out.delay = d
	out.mu.Unlock()
}

// Fail makes subsequent writes return err
func (out *Output) Fail(err error) {
	out.mu.Lock()
	out.err = err
	out.mu.Unlock()
}

// Writes returns a copy of every chunk written so far
func (out *Output) Writes() [][]byte {
	out.mu.Lock()
	defer out.mu.Unlock()
	return append([][]byte(nil), out.writes...)
}

// WaitWrites waits until at least n chunks have been written
func (out *Output) WaitWrites(n int, timeout time.Duration) ([][]byte, bool) {
	deadline := time.After(timeout)
	for {
		if w := out.Writes(); len(w) >= n {
			return w, true
		}
		select {
		case <-out.wrote:
		case <-deadline:
			return out.Writes(), false
		}
	}
}

// Closed is closed once the output has been released
func (out *Output) Closed() <-chan struct{} {
	return out.closed
}

// OutputOpener hands out fake outputs in open order
type OutputOpener struct {
	Err error

	mu      sync.Mutex
	outputs []*Output
	opened  chan struct{}
}

// NewOutputOpener creates an opener for fake outputs
func NewOutputOpener() *OutputOpener {
	return &OutputOpener{opened: make(chan struct{}, 64)}
}

func (o *OutputOpener) OpenOutput(format audio.Format, usage device.Usage) (device.Output, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	out := NewOutput(format, usage)
	o.mu.Lock()
	o.outputs = append(o.outputs, out)
	o.mu.Unlock()

	select {
	case o.opened <- struct{}{}:
	default:
	}
	return out, nil
}

// Outputs returns every output opened so far
func (o *OutputOpener) Outputs() []*Output {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Output(nil), o.outputs...)
}

// WaitOutputs waits until at least n outputs have been opened
func (o *OutputOpener) WaitOutputs(n int, timeout time.Duration) ([]*Output, bool) {
	deadline := time.After(timeout)
	for {
		if outs := o.Outputs(); len(outs) >= n {
			return outs, true
		}
		select {
		case <-o.opened:
		case <-deadline:
			return o.Outputs(), false
		}
	}
}

// ErrRoute is returned by a Router configured to fail
var ErrRoute = errors.New("route not available")

// Router records speakerphone requests
type Router struct {
	Err error

	mu    sync.Mutex
	calls []bool
}

func (r *Router) SetSpeakerphone(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, on)
	return r.Err
}

// Calls returns the requested routes in order
func (r *Router) Calls() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.calls...)
}
