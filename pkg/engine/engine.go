// ABOUTME: Engine facade owning the session lifecycle
// ABOUTME: Composes the capture loop and channel registry behind the host-facing API
package engine

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/epnw/dumble-audio/pkg/audio"
	"github.com/epnw/dumble-audio/pkg/audio/device"
	"github.com/google/uuid"
)

// DefaultPollTimeout bounds how long an idle channel waits before
// re-checking its stop signal
const DefaultPollTimeout = 500 * time.Millisecond

// Config holds engine configuration
type Config struct {
	// Input acquires the microphone
	Input device.InputOpener

	// Output acquires one playback stream per target
	Output device.OutputOpener

	// Router applies speakerphone hints (optional)
	Router device.Router

	// PollTimeout is the idle wait of a playback channel (default: 500ms)
	PollTimeout time.Duration

	// Deliver schedules sink calls; nil uses an ordered delivery goroutine
	Deliver Poster

	// OnError is called when a capture or playback device fails
	OnError func(error)
}

// Engine is the audio engine facade. At most one session is active at a
// time; Start while active fails with ErrAlreadyStarted.
type Engine struct {
	config Config

	mu      sync.Mutex // serialises Start and Stop
	current atomic.Pointer[session]
}

// session holds the state of one Start..Stop cycle
type session struct {
	id             string
	captureFormat  audio.Format
	playbackFormat audio.Format
	input          device.Input
	capture        *captureLoop
	registry       *Registry
	poster         *serialPoster // nil when Config.Deliver is set
	startedAt      time.Time
}

// New creates an engine with the given configuration
func New(config Config) *Engine {
	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultPollTimeout
	}
	return &Engine{config: config}
}

// Start acquires the input device, starts the capture loop with the
// microphone disabled, and prepares an empty registry for playbackFormat
func (e *Engine) Start(captureFormat, playbackFormat audio.Format, sink Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current.Load() != nil {
		return ErrAlreadyStarted
	}

	if err := captureFormat.Validate(); err != nil {
		return fmt.Errorf("capture format: %w", err)
	}
	if err := playbackFormat.Validate(); err != nil {
		return fmt.Errorf("playback format: %w", err)
	}
	if e.config.Input == nil {
		return fmt.Errorf("%w: no input backend configured", ErrDeviceUnavailable)
	}
	if e.config.Output == nil {
		return fmt.Errorf("%w: no output backend configured", ErrDeviceUnavailable)
	}
	if sink == nil {
		sink = func([]byte) {}
	}

	input, err := e.config.Input.OpenInput(captureFormat)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	s := &session{
		id:             uuid.New().String(),
		captureFormat:  captureFormat,
		playbackFormat: playbackFormat,
		input:          input,
		startedAt:      time.Now(),
	}

	poster := e.config.Deliver
	if poster == nil {
		s.poster = newSerialPoster()
		poster = s.poster
	}

	s.capture = newCaptureLoop(input, sink, poster, e.config.OnError)
	s.registry = NewRegistry(func(id TargetID) *Channel {
		return newChannel(id, playbackFormat, e.config.Output, e.config.PollTimeout, e.config.OnError)
	})

	go s.capture.run()
	e.current.Store(s)

	log.Printf("Audio engine started (session %s): capture %s, playback %s",
		s.id, captureFormat, playbackFormat)

	return nil
}

// Stop ends the session: the capture loop is signalled and the input
// released, every channel is signalled to stop, and the registry is
// cleared. Channels release their outputs asynchronously.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.current.Load()
	if s == nil {
		return ErrNotStarted
	}
	e.current.Store(nil)

	s.capture.Stop()
	if err := s.input.Close(); err != nil {
		log.Printf("Error releasing input device: %v", err)
	}

	channels := s.registry.Clear()

	if s.poster != nil {
		s.poster.Close()
	}

	log.Printf("Audio engine stopped (session %s): %d channels signalled, uptime %v",
		s.id, len(channels), time.Since(s.startedAt).Round(time.Millisecond))

	return nil
}

// Running reports whether a session is active
func (e *Engine) Running() bool {
	return e.current.Load() != nil
}

// SessionID returns the active session's ID, or "" when stopped
func (e *Engine) SessionID() string {
	if s := e.current.Load(); s != nil {
		return s.id
	}
	return ""
}

// Formats returns the active session's capture and playback formats
func (e *Engine) Formats() (capture, playback audio.Format, ok bool) {
	s := e.current.Load()
	if s == nil {
		return audio.Format{}, audio.Format{}, false
	}
	return s.captureFormat, s.playbackFormat, true
}

// SetMicrophoneEnabled toggles capture delivery. It takes effect on the
// capture loop's next iteration.
func (e *Engine) SetMicrophoneEnabled(enabled bool) {
	s := e.current.Load()
	if s == nil {
		log.Printf("Error: Audio engine not started")
		return
	}
	s.capture.SetEnabled(enabled)
	log.Printf("Microphone enabled: %v", enabled)
}

// MicrophoneEnabled reports the mute flag of the active session
func (e *Engine) MicrophoneEnabled() bool {
	s := e.current.Load()
	return s != nil && s.capture.Enabled()
}

// SetOutputRoute forwards a speakerphone hint to the router. Failures are
// logged, never returned.
func (e *Engine) SetOutputRoute(speakerOn bool) {
	if e.config.Router == nil {
		log.Printf("Audio manager: not available, ignoring speaker=%v", speakerOn)
		return
	}
	if err := e.config.Router.SetSpeakerphone(speakerOn); err != nil {
		log.Printf("Audio manager: could not set speaker=%v: %v", speakerOn, err)
		return
	}
	log.Printf("Speaker: %v", speakerOn)
}

// AddTarget creates a playback channel for id. Adding a registered target
// is a no-op.
func (e *Engine) AddTarget(id TargetID) {
	s := e.current.Load()
	if s == nil {
		log.Printf("Error: Audio engine not started")
		return
	}
	if s.registry.Add(id) {
		log.Printf("Target %d added", id)
	}
}

// RemoveTarget signals id's channel to stop. Unknown targets are ignored.
func (e *Engine) RemoveTarget(id TargetID) {
	s := e.current.Load()
	if s == nil {
		log.Printf("Error: Audio engine not started")
		return
	}
	if s.registry.Remove(id) {
		log.Printf("Target %d removed", id)
	}
}

// Dispatch queues chunk for playback on id. Chunks for unknown targets, or
// sent while no session is active, are dropped silently.
func (e *Engine) Dispatch(id TargetID, chunk []byte) {
	s := e.current.Load()
	if s == nil {
		return
	}
	s.registry.Dispatch(id, chunk)
}

// Targets returns the registered targets in ascending order
func (e *Engine) Targets() []TargetID {
	s := e.current.Load()
	if s == nil {
		return nil
	}
	return s.registry.Targets()
}

// Channel returns the playback channel for id
func (e *Engine) Channel(id TargetID) (*Channel, bool) {
	s := e.current.Load()
	if s == nil {
		return nil, false
	}
	return s.registry.Get(id)
}

// Stats returns per-target playback statistics
func (e *Engine) Stats() []ChannelStats {
	s := e.current.Load()
	if s == nil {
		return nil
	}
	return s.registry.Stats()
}
