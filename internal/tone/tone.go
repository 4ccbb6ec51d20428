// ABOUTME: Test tone generator
// ABOUTME: Generates sine wave chunks in any audio format
package tone

import (
	"math"
	"sync"
	"time"

	"github.com/epnw/dumble-audio/pkg/audio"
)

// DefaultFrequency is the A4 note
const DefaultFrequency = 440.0

// DefaultAmplitude plays tones at 50% volume
const DefaultAmplitude = 0.5

// Source generates a continuous sine tone
type Source struct {
	format    audio.Format
	frequency float64
	amplitude float64

	mu          sync.Mutex
	sampleIndex uint64
}

// NewSource creates a tone generator for format. A non-positive frequency
// uses DefaultFrequency.
func NewSource(format audio.Format, frequency float64) *Source {
	if frequency <= 0 {
		frequency = DefaultFrequency
	}
	return &Source{
		format:    format,
		frequency: frequency,
		amplitude: DefaultAmplitude,
	}
}

// Format returns the generated audio format
func (s *Source) Format() audio.Format {
	return s.format
}

// Frequency returns the tone frequency in Hz
func (s *Source) Frequency() float64 {
	return s.frequency
}

// Read fills p with whole frames of the tone and returns the bytes written.
// Every channel carries the same sample.
func (s *Source) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frameSize := s.format.BytesPerFrame()
	channels := s.format.Channels()
	frames := len(p) / frameSize

	samples := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(s.format.SampleRate)
		sample := float32(math.Sin(2*math.Pi*s.frequency*t) * s.amplitude)
		for c := 0; c < channels; c++ {
			samples[i*channels+c] = sample
		}
	}
	s.sampleIndex += uint64(frames)

	var encoded []byte
	switch s.format.Encoding {
	case audio.PCMFloat:
		encoded = audio.EncodeFloat32LE(samples)
	default:
		pcm := make([]int16, len(samples))
		for i, v := range samples {
			pcm[i] = audio.SampleToInt16(v)
		}
		encoded = audio.EncodeInt16LE(pcm)
	}

	return copy(p, encoded), nil
}

// Chunk returns the next d of tone as a new chunk
func (s *Source) Chunk(d time.Duration) []byte {
	chunk := make([]byte, s.format.BytesPerDuration(d))
	n, _ := s.Read(chunk)
	return chunk[:n]
}
