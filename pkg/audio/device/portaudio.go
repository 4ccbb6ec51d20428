//go:build portaudio

// ABOUTME: PortAudio capture and playback backend
// ABOUTME: Cross-platform blocking-stream audio I/O using PortAudio
package device

import (
	"fmt"
	"log"
	"sync"

	"github.com/epnw/dumble-audio/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

// PortAudio opens blocking streams. The library is initialized with the
// first stream and terminated with the last.
type PortAudio struct {
	mu   sync.Mutex
	refs int
}

// NewPortAudio creates a new PortAudio backend
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

func (p *PortAudio) acquire() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.refs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize portaudio: %w", err)
		}
	}
	p.refs++
	return nil
}

func (p *PortAudio) release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refs--
	if p.refs == 0 {
		if err := portaudio.Terminate(); err != nil {
			log.Printf("Warning: portaudio terminate error: %v", err)
		}
	}
}

// paStream couples a stream with its interleaved sample buffer
type paStream struct {
	stream   *portaudio.Stream
	format   audio.Format
	int16Buf []int16
	floatBuf []float32
}

func (p *PortAudio) open(format audio.Format, input bool) (*paStream, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if err := p.acquire(); err != nil {
		return nil, err
	}

	frames := MinBufferSize(format) / format.BytesPerFrame()
	s := &paStream{format: format}

	inCh, outCh := 0, format.Channels()
	if input {
		inCh, outCh = format.Channels(), 0
	}

	var buf interface{}
	if format.Encoding == audio.PCMFloat {
		s.floatBuf = make([]float32, frames*format.Channels())
		buf = s.floatBuf
	} else {
		s.int16Buf = make([]int16, frames*format.Channels())
		buf = s.int16Buf
	}

	stream, err := portaudio.OpenDefaultStream(inCh, outCh, float64(format.SampleRate), frames, buf)
	if err != nil {
		p.release()
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		p.release()
		return nil, fmt.Errorf("failed to start stream: %w", err)
	}

	s.stream = stream
	return s, nil
}

func (s *paStream) bufferBytes() int {
	if s.floatBuf != nil {
		return len(s.floatBuf) * 4
	}
	return len(s.int16Buf) * 2
}

// encode copies the sample buffer into p as little-endian bytes
func (s *paStream) encode(p []byte) int {
	if s.floatBuf != nil {
		return copy(p, audio.EncodeFloat32LE(s.floatBuf))
	}
	return copy(p, audio.EncodeInt16LE(s.int16Buf))
}

// decode fills the sample buffer from exactly bufferBytes() of p
func (s *paStream) decode(p []byte) {
	if s.floatBuf != nil {
		copy(s.floatBuf, audio.DecodeFloat32LE(p))
		return
	}
	copy(s.int16Buf, audio.DecodeInt16LE(p))
}

func (s *paStream) close() error {
	if err := s.stream.Stop(); err != nil {
		s.stream.Close()
		return err
	}
	return s.stream.Close()
}

// OpenInput opens a blocking capture stream
func (p *PortAudio) OpenInput(format audio.Format) (Input, error) {
	s, err := p.open(format, true)
	if err != nil {
		return nil, err
	}
	log.Printf("Audio input initialized: %s (portaudio)", format)
	return &paInput{backend: p, s: s}, nil
}

// OpenOutput opens a blocking playback stream
func (p *PortAudio) OpenOutput(format audio.Format, usage Usage) (Output, error) {
	s, err := p.open(format, false)
	if err != nil {
		return nil, err
	}
	log.Printf("Audio output initialized: %s (%s, portaudio)", format, usage)
	return &paOutput{backend: p, s: s}, nil
}

type paInput struct {
	backend *PortAudio
	s       *paStream
	once    sync.Once
}

// Read reads whole stream buffers until p is full
func (in *paInput) Read(p []byte) (int, error) {
	read := 0
	for read < len(p) {
		if err := in.s.stream.Read(); err != nil {
			return read, fmt.Errorf("portaudio read: %w", err)
		}
		read += in.s.encode(p[read:])
	}
	return read, nil
}

// Flush reads and discards every whole buffer PortAudio is holding
func (in *paInput) Flush() {
	frames := in.s.bufferBytes() / in.s.format.BytesPerFrame()
	for {
		avail, err := in.s.stream.AvailableToRead()
		if err != nil || avail < frames {
			return
		}
		if err := in.s.stream.Read(); err != nil {
			return
		}
	}
}

func (in *paInput) BufferSize() int {
	return in.s.bufferBytes()
}

func (in *paInput) Close() error {
	var err error
	in.once.Do(func() {
		err = in.s.close()
		in.backend.release()
	})
	return err
}

type paOutput struct {
	backend *PortAudio
	s       *paStream
	pending []byte
	once    sync.Once
}

// Write queues p and writes every complete stream buffer, blocking in
// PortAudio until each is accepted. A partial buffer carries over.
func (out *paOutput) Write(p []byte) (int, error) {
	out.pending = append(out.pending, p...)
	size := out.s.bufferBytes()
	for len(out.pending) >= size {
		out.s.decode(out.pending[:size])
		if err := out.s.stream.Write(); err != nil {
			return len(p), fmt.Errorf("portaudio write: %w", err)
		}
		out.pending = out.pending[size:]
	}
	return len(p), nil
}

func (out *paOutput) Close() error {
	var err error
	out.once.Do(func() {
		err = out.s.close()
		out.backend.release()
	})
	return err
}
