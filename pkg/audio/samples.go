// ABOUTME: Little-endian sample codecs for raw audio chunks
// ABOUTME: Converts between int16/float32 samples and chunk bytes
package audio

import (
	"encoding/binary"
	"math"
)

// EncodeInt16LE packs signed 16-bit samples into a little-endian chunk
func EncodeInt16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// DecodeInt16LE unpacks a little-endian PCM16 chunk. A trailing odd byte
// is ignored.
func DecodeInt16LE(chunk []byte) []int16 {
	samples := make([]int16, len(chunk)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(chunk[i*2:]))
	}
	return samples
}

// EncodeFloat32LE packs float samples into a little-endian chunk
func EncodeFloat32LE(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// DecodeFloat32LE unpacks a little-endian float32 chunk
func DecodeFloat32LE(chunk []byte) []float32 {
	samples := make([]float32, len(chunk)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(chunk[i*4:]))
	}
	return samples
}

// SampleToInt16 converts a float sample in [-1, 1] to int16, clamping
// out-of-range input
func SampleToInt16(sample float32) int16 {
	if sample >= 1 {
		return math.MaxInt16
	}
	if sample <= -1 {
		return math.MinInt16
	}
	return int16(sample * math.MaxInt16)
}

// SampleFromInt16 converts an int16 sample to a float in [-1, 1)
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768.0
}
