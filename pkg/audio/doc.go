// ABOUTME: Audio fundamentals package providing the format descriptor and sample codecs
// ABOUTME: Defines Format, Layout, Encoding and little-endian chunk helpers
// Package audio provides the audio format descriptor shared by the capture
// and playback sides of the engine.
//
// Chunks exchanged with the engine are opaque byte slices holding
// interleaved samples in the session format. The byte order is always
// little-endian and the sample width is implied by the encoding:
//   - PCM16: 2 bytes per sample, signed
//   - PCMFloat: 4 bytes per sample, IEEE-754 float32
//
// Example:
//
//	format := audio.Format{
//	    SampleRate: 48000,
//	    Layout:     audio.Mono,
//	    Encoding:   audio.PCM16,
//	}
//
//	chunk := audio.EncodeInt16LE(samples)
package audio
