// ABOUTME: Capture/playback routing engine package
// ABOUTME: Owns the microphone loop and one independently paced playback channel per target
// Package engine routes voice audio between one capture device and any
// number of remote speakers ("targets").
//
// The engine runs a single capture loop that reads one device buffer at a
// time and hands each chunk to a sink while the microphone is enabled.
// Every target gets its own playback channel: an unbounded FIFO of chunks
// drained by a dedicated goroutine that blocks in the output device's
// Write. A slow device write for one target never delays another.
//
// Chunks are raw interleaved samples in the session's playback format,
// little-endian, with the sample width implied by the encoding. They carry
// no timing; arrival order is the only ordering.
//
// Example:
//
//	eng := engine.New(engine.Config{Input: in, Output: out})
//	err := eng.Start(captureFormat, playbackFormat, func(chunk []byte) {
//	    send(chunk)
//	})
//	eng.SetMicrophoneEnabled(true)
//	eng.AddTarget(7)
//	eng.Dispatch(7, chunk)
package engine
