// ABOUTME: Audio device package for capture and playback backends
// ABOUTME: Provides the blocking Input/Output boundary and oto/malgo/PortAudio implementations
// Package device defines the blocking device boundary the engine drives.
//
// An Input delivers exactly one buffer per Read and an Output blocks in
// Write until the device has accepted the data, which is what paces each
// playback channel. Backends: oto (playback), malgo (capture and playback)
// and PortAudio (build with -tags portaudio).
//
// Example:
//
//	in, out, err := device.Select("malgo", "oto")
//	mic, err := in.OpenInput(format)
//	buf := make([]byte, mic.BufferSize())
//	_, err = mic.Read(buf)
package device
