// ABOUTME: Tests for the capture loop
// ABOUTME: Tests mute gating, asynchronous delivery, and read failures
package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/epnw/dumble-audio/internal/devicetest"
	"github.com/epnw/dumble-audio/pkg/audio/device"
)

// recordingSink collects delivered chunks
type recordingSink struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (s *recordingSink) deliver(chunk []byte) {
	s.mu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.chunks...)
}

func (s *recordingSink) waitFor(n int, timeout time.Duration) [][]byte {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c := s.snapshot(); len(c) >= n {
			return c
		}
		time.Sleep(2 * time.Millisecond)
	}
	return s.snapshot()
}

// countingPoster runs posted work inline and counts it
type countingPoster struct {
	mu    sync.Mutex
	posts int
}

func (p *countingPoster) Post(fn func()) {
	p.mu.Lock()
	p.posts++
	p.mu.Unlock()
	fn()
}

func startTestCapture(t *testing.T, in device.Input, sink Sink, poster Poster, onError func(error)) *captureLoop {
	t.Helper()
	c := newCaptureLoop(in, sink, poster, onError)
	go c.run()
	t.Cleanup(func() {
		c.Stop()
		in.Close()
		<-c.done
	})
	return c
}

func TestCaptureStartsMuted(t *testing.T) {
	in := devicetest.NewInput(64, 2*time.Millisecond)
	sink := &recordingSink{}
	startTestCapture(t, in, sink.deliver, &countingPoster{}, nil)

	time.Sleep(30 * time.Millisecond)
	if n := len(sink.snapshot()); n != 0 {
		t.Errorf("expected no chunks while muted, got %d", n)
	}
	if n := in.Reads(); n != 0 {
		t.Errorf("expected no device reads while muted, got %d", n)
	}
}

func TestCaptureMuteDropsAtSource(t *testing.T) {
	in := devicetest.NewInput(64, 2*time.Millisecond)
	sink := &recordingSink{}
	c := startTestCapture(t, in, sink.deliver, &countingPoster{}, nil)

	c.SetEnabled(true)
	before := sink.waitFor(5, time.Second)
	if len(before) < 5 {
		t.Fatalf("expected chunks while enabled, got %d", len(before))
	}

	c.SetEnabled(false)
	time.Sleep(10 * time.Millisecond)
	muted := len(sink.snapshot())

	time.Sleep(50 * time.Millisecond)
	if n := len(sink.snapshot()); n != muted {
		t.Errorf("expected no chunks while muted, got %d more", n-muted)
	}

	c.SetEnabled(true)
	after := sink.waitFor(muted+1, time.Second)
	if len(after) <= muted {
		t.Fatal("expected chunks after re-enabling")
	}

	// Audio from the muted interval is lost, not delayed
	lastBefore := devicetest.Tick(after[muted-1])
	firstAfter := devicetest.Tick(after[muted])
	if firstAfter-lastBefore < 10 {
		t.Errorf("expected a gap of muted ticks, got %d -> %d", lastBefore, firstAfter)
	}
}

func TestCaptureChunkSize(t *testing.T) {
	in := devicetest.NewInput(320, time.Millisecond)
	sink := &recordingSink{}
	c := startTestCapture(t, in, sink.deliver, &countingPoster{}, nil)

	c.SetEnabled(true)
	for _, chunk := range sink.waitFor(3, time.Second) {
		if len(chunk) != 320 {
			t.Errorf("expected 320-byte chunk, got %d", len(chunk))
		}
	}
}

func TestCaptureDeliversThroughPoster(t *testing.T) {
	in := devicetest.NewInput(64, time.Millisecond)
	sink := &recordingSink{}
	poster := &countingPoster{}
	c := startTestCapture(t, in, sink.deliver, poster, nil)

	c.SetEnabled(true)
	chunks := sink.waitFor(3, time.Second)

	poster.mu.Lock()
	posts := poster.posts
	poster.mu.Unlock()
	if posts < len(chunks) {
		t.Errorf("expected every chunk to go through the poster: %d posts, %d chunks", posts, len(chunks))
	}
}

func TestCaptureSerialPosterKeepsOrder(t *testing.T) {
	in := devicetest.NewInput(64, time.Millisecond)
	sink := &recordingSink{}
	poster := newSerialPoster()
	defer poster.Close()
	c := startTestCapture(t, in, sink.deliver, poster, nil)

	c.SetEnabled(true)
	chunks := sink.waitFor(10, time.Second)
	for i := 1; i < len(chunks); i++ {
		if devicetest.Tick(chunks[i]) <= devicetest.Tick(chunks[i-1]) {
			t.Fatalf("chunk %d delivered out of order", i)
		}
	}
}

func TestCaptureSinkDoesNotBlockLoop(t *testing.T) {
	in := devicetest.NewInput(64, time.Millisecond)
	release := make(chan struct{})
	poster := newSerialPoster()
	defer poster.Close()
	c := startTestCapture(t, in, func([]byte) { <-release }, poster, nil)
	defer close(release)

	c.SetEnabled(true)
	time.Sleep(50 * time.Millisecond)

	if n := in.Reads(); n < 5 {
		t.Errorf("capture loop stalled behind a blocked sink: %d reads", n)
	}
}

func TestCaptureReadFailure(t *testing.T) {
	in := devicetest.NewInput(64, time.Millisecond)
	readErr := errors.New("mic unplugged")
	in.Fail(readErr)

	errs := make(chan error, 1)
	c := startTestCapture(t, in, func([]byte) {}, &countingPoster{}, func(err error) { errs <- err })
	c.SetEnabled(true)

	select {
	case err := <-errs:
		if !errors.Is(err, readErr) {
			t.Errorf("expected read error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("read failure not reported")
	}

	select {
	case <-c.done:
	case <-time.After(time.Second):
		t.Fatal("capture loop kept running after a read failure")
	}
}

func TestCaptureStopWhileMuted(t *testing.T) {
	in := devicetest.NewInput(64, time.Millisecond)
	c := newCaptureLoop(in, func([]byte) {}, &countingPoster{}, nil)
	go c.run()

	c.Stop()
	select {
	case <-c.done:
	case <-time.After(time.Second):
		t.Fatal("muted capture loop did not observe stop")
	}
}

func TestCaptureUnmuteSkipsDeviceBacklog(t *testing.T) {
	// The device keeps queueing while muted; eight buffers is 16ms of backlog
	in := devicetest.NewBufferingInput(64, 8, 2*time.Millisecond)
	sink := &recordingSink{}
	c := startTestCapture(t, in, sink.deliver, &countingPoster{}, nil)

	c.SetEnabled(true)
	before := sink.waitFor(5, time.Second)
	if len(before) < 5 {
		t.Fatalf("expected chunks while enabled, got %d", len(before))
	}

	c.SetEnabled(false)
	time.Sleep(10 * time.Millisecond)
	seen := len(sink.snapshot())
	lastBefore := devicetest.Tick(sink.snapshot()[seen-1])
	flushes := in.Flushes()

	time.Sleep(50 * time.Millisecond)
	c.SetEnabled(true)

	after := sink.waitFor(seen+1, time.Second)
	if len(after) <= seen {
		t.Fatal("expected chunks after unmute")
	}
	firstAfter := devicetest.Tick(after[seen])

	if in.Flushes() <= flushes {
		t.Error("expected the input to be flushed on unmute")
	}
	// Without a flush the first chunk would come from the start of the mute
	if gap := firstAfter - lastBefore; gap < 20 {
		t.Errorf("expected muted audio to be dropped, tick gap was only %d", gap)
	}
}
