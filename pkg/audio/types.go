// ABOUTME: Audio type definitions
// ABOUTME: Defines the session format descriptor and host code translation
package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidFormat is returned by Format.Validate
var ErrInvalidFormat = errors.New("invalid audio format")

// Layout is the channel layout of a stream
type Layout int

const (
	Mono Layout = iota
	Stereo
)

func (l Layout) String() string {
	switch l {
	case Mono:
		return "mono"
	case Stereo:
		return "stereo"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// Encoding is the sample encoding of a stream
type Encoding int

const (
	PCM16 Encoding = iota
	PCMFloat
)

func (e Encoding) String() string {
	switch e {
	case PCM16:
		return "pcm16"
	case PCMFloat:
		return "float32"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// Format describes an audio stream. It is immutable for the lifetime of
// an engine session.
type Format struct {
	SampleRate int
	Layout     Layout
	Encoding   Encoding
}

// Validate checks that the format can be handed to a device
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, f.SampleRate)
	}
	if f.Layout != Mono && f.Layout != Stereo {
		return fmt.Errorf("%w: layout %v", ErrInvalidFormat, f.Layout)
	}
	if f.Encoding != PCM16 && f.Encoding != PCMFloat {
		return fmt.Errorf("%w: encoding %v", ErrInvalidFormat, f.Encoding)
	}
	return nil
}

// Channels returns the number of interleaved channels
func (f Format) Channels() int {
	if f.Layout == Stereo {
		return 2
	}
	return 1
}

// BytesPerSample returns the width of a single sample
func (f Format) BytesPerSample() int {
	if f.Encoding == PCMFloat {
		return 4
	}
	return 2
}

// BytesPerFrame returns the width of one sample across all channels
func (f Format) BytesPerFrame() int {
	return f.Channels() * f.BytesPerSample()
}

// BytesPerDuration returns the number of bytes covering d, rounded down to
// whole frames
func (f Format) BytesPerDuration(d time.Duration) int {
	frames := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return frames * f.BytesPerFrame()
}

// DurationOf returns how long n bytes of audio play for
func (f Format) DurationOf(n int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	frames := n / f.BytesPerFrame()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz %s %s", f.SampleRate, f.Layout, f.Encoding)
}

// FormatFromCodes builds a Format from the host's integer codes. Encoding
// 0 is PCM16 and 1 is PCMFloat; channel code 0 is mono and 1 is stereo.
// Unknown codes fall back to PCM16 and mono.
func FormatFromCodes(encoding, sampleRate, channels int) Format {
	f := Format{
		SampleRate: sampleRate,
		Layout:     Mono,
		Encoding:   PCM16,
	}
	if encoding == 1 {
		f.Encoding = PCMFloat
	}
	if channels == 1 {
		f.Layout = Stereo
	}
	return f
}
