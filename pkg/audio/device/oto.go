// ABOUTME: Oto-based playback backend
// ABOUTME: Shares one process-wide oto context and gives every stream its own player
package device

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/epnw/dumble-audio/pkg/audio"
)

// oto allows a single context per process, so it lives at package level
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat audio.Format
)

// Oto opens playback streams on the shared oto context. Each stream is an
// independent oto player; oto mixes them onto the output device.
type Oto struct{}

// NewOto creates a new Oto backend
func NewOto() *Oto {
	return &Oto{}
}

// OpenOutput creates a player fed from the stream's own ring buffer. Write
// blocks while the ring is full; the player never blocks, since oto pulls
// every player from a single goroutine.
func (o *Oto) OpenOutput(format audio.Format, usage Usage) (Output, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	ctx, err := sharedOtoContext(format)
	if err != nil {
		return nil, err
	}

	ring, src := newPlaybackSource(format)
	player := ctx.NewPlayer(src)
	player.SetBufferSize(MinBufferSize(format))
	player.Play()

	log.Printf("Oto stream opened: %s (%s)", format, usage)

	return &otoOutput{player: player, ring: ring}, nil
}

// sharedOtoContext returns the process-wide context, creating it on first use
func sharedOtoContext(format audio.Format) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoFormat != format {
			// oto cannot be reinitialized with a different format
			return nil, fmt.Errorf("oto context already running at %s, cannot open %s", otoFormat, format)
		}
		if err := otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels(),
		Format:       otoSampleFormat(format.Encoding),
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	otoCtx = ctx
	otoFormat = format

	log.Printf("Audio output initialized: %s (oto)", format)

	return ctx, nil
}

func otoSampleFormat(e audio.Encoding) oto.Format {
	if e == audio.PCMFloat {
		return oto.FormatFloat32LE
	}
	return oto.FormatSignedInt16LE
}

// playbackSource feeds a player from a ring buffer. Read plays silence
// when the ring is empty instead of waiting for the writer.
type playbackSource struct {
	ring *RingBuffer
}

func newPlaybackSource(format audio.Format) (*RingBuffer, *playbackSource) {
	ring := NewRingBuffer(MinBufferSize(format) * ringBuffers)
	return ring, &playbackSource{ring: ring}
}

func (s *playbackSource) Read(p []byte) (int, error) {
	if s.ring.Drained() {
		return 0, io.EOF
	}
	s.ring.Drain(p)
	return len(p), nil
}

type otoOutput struct {
	mu     sync.Mutex
	player *oto.Player
	ring   *RingBuffer
}

// Write blocks until p fits in the stream's ring
func (o *otoOutput) Write(p []byte) (int, error) {
	return o.ring.Write(p)
}

// Close releases the player
func (o *otoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return nil
	}

	o.ring.Close()
	err := o.player.Close()
	o.player = nil

	if err != nil {
		return fmt.Errorf("failed to close oto player: %w", err)
	}
	return nil
}
