// ABOUTME: Audio device interface definitions
// ABOUTME: Common interfaces for capture, playback, and routing backends
package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/epnw/dumble-audio/pkg/audio"
)

// ErrClosed is returned by reads and writes on a released device
var ErrClosed = errors.New("device closed")

// Usage hints what a playback stream carries
type Usage int

const (
	UsageVoiceCommunication Usage = iota
	UsageMedia
)

func (u Usage) String() string {
	if u == UsageMedia {
		return "media"
	}
	return "voice-communication"
}

// Input represents an audio capture device
type Input interface {
	// Read blocks until len(p) bytes of audio have been captured
	Read(p []byte) (int, error)

	// BufferSize is the size of one capture buffer in bytes
	BufferSize() int

	// Close stops capture and releases the device
	Close() error
}

// Output represents one playback stream on the output device
type Output interface {
	// Write blocks until the device has accepted p
	Write(p []byte) (int, error)

	// Close stops playback and releases the stream
	Close() error
}

// Flusher is implemented by inputs that keep buffering while nobody reads.
// Flush drops that backlog so the next Read returns fresh audio.
type Flusher interface {
	Flush()
}

// InputOpener acquires capture devices
type InputOpener interface {
	OpenInput(format audio.Format) (Input, error)
}

// OutputOpener acquires playback streams
type OutputOpener interface {
	OpenOutput(format audio.Format, usage Usage) (Output, error)
}

// Router applies output routing hints
type Router interface {
	SetSpeakerphone(on bool) error
}

const (
	minBufferDuration = 20 * time.Millisecond
	minBufferBytes    = 256
)

// MinBufferSize returns the smallest buffer a device is opened with: 20ms
// of audio, never below 256 bytes, in whole frames
func MinBufferSize(format audio.Format) int {
	size := format.BytesPerDuration(minBufferDuration)
	frame := format.BytesPerFrame()
	if size < minBufferBytes {
		size = ((minBufferBytes + frame - 1) / frame) * frame
	}
	return size
}

// Select resolves a capture and a playback backend by name. The same name
// on both sides shares one backend instance.
func Select(input, output string) (InputOpener, OutputOpener, error) {
	backends := map[string]interface{}{}
	resolve := func(name string) (interface{}, error) {
		if b, ok := backends[name]; ok {
			return b, nil
		}
		var b interface{}
		switch name {
		case "oto":
			b = NewOto()
		case "malgo":
			b = NewMalgo()
		case "portaudio":
			b = NewPortAudio()
		default:
			return nil, fmt.Errorf("unknown audio backend %q", name)
		}
		backends[name] = b
		return b, nil
	}

	ib, err := resolve(input)
	if err != nil {
		return nil, nil, err
	}
	in, ok := ib.(InputOpener)
	if !ok {
		return nil, nil, fmt.Errorf("audio backend %q does not support capture", input)
	}

	ob, err := resolve(output)
	if err != nil {
		return nil, nil, err
	}
	out, ok := ob.(OutputOpener)
	if !ok {
		return nil, nil, fmt.Errorf("audio backend %q does not support playback", output)
	}

	return in, out, nil
}
