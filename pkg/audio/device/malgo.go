// ABOUTME: Malgo-based capture and playback backend
// ABOUTME: Uses miniaudio via malgo with ring buffers behind blocking Read/Write
package device

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/epnw/dumble-audio/pkg/audio"
	"github.com/gen2brain/malgo"
)

// ringBuffers is the number of device buffers a stream's ring can hold
const ringBuffers = 4

// Malgo opens capture and playback devices on a shared malgo context. The
// context is created with the first device and released with the last.
type Malgo struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	refs     int
}

// NewMalgo creates a new Malgo backend
func NewMalgo() *Malgo {
	return &Malgo{}
}

// OpenInput starts a capture device; Read returns one buffer at a time
func (m *Malgo) OpenInput(format audio.Format) (Input, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	bufferSize := MinBufferSize(format)
	ring := NewRingBuffer(bufferSize * ringBuffers)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgoFormat(format.Encoding)
	deviceConfig.Capture.Channels = uint32(format.Channels())
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	in := &malgoInput{backend: m, ring: ring, bufferSize: bufferSize}

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			if n := ring.Offer(pInputSamples); n < len(pInputSamples) {
				in.overruns.Add(1)
			}
		},
	}

	dev, err := m.startDevice(deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}
	in.device = dev

	log.Printf("Audio input initialized: %s, buffer %d bytes (malgo)", format, bufferSize)

	return in, nil
}

// OpenOutput starts a playback device for one stream
func (m *Malgo) OpenOutput(format audio.Format, usage Usage) (Output, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	bufferSize := MinBufferSize(format)
	ring := NewRingBuffer(bufferSize * ringBuffers)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgoFormat(format.Encoding)
	deviceConfig.Playback.Channels = uint32(format.Channels())
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			ring.Drain(pOutputSample)
		},
	}

	dev, err := m.startDevice(deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	log.Printf("Audio output initialized: %s (%s, malgo)", format, usage)

	return &malgoOutput{backend: m, device: dev, ring: ring}, nil
}

// startDevice initializes and starts a device on the shared context
func (m *Malgo) startDevice(config malgo.DeviceConfig, callbacks malgo.DeviceCallbacks) (*malgo.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, config, callbacks)
	if err != nil {
		m.releaseLocked()
		return nil, fmt.Errorf("failed to initialize device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		m.releaseLocked()
		return nil, fmt.Errorf("failed to start device: %w", err)
	}

	m.refs++
	return device, nil
}

// stopDevice stops and uninitializes a device and drops its context reference
func (m *Malgo) stopDevice(device *malgo.Device) {
	if err := device.Stop(); err != nil {
		log.Printf("Warning: device stop error: %v", err)
	}
	device.Uninit()

	m.mu.Lock()
	m.refs--
	m.releaseLocked()
	m.mu.Unlock()
}

// releaseLocked frees the context once no device uses it (must hold m.mu)
func (m *Malgo) releaseLocked() {
	if m.refs > 0 || m.malgoCtx == nil {
		return
	}
	if err := m.malgoCtx.Uninit(); err != nil {
		log.Printf("Warning: malgo context uninit error: %v", err)
	}
	m.malgoCtx.Free()
	m.malgoCtx = nil
}

type malgoInput struct {
	backend    *Malgo
	device     *malgo.Device
	ring       *RingBuffer
	bufferSize int
	overruns   atomic.Int64
	closeOnce  sync.Once
}

func (in *malgoInput) Read(p []byte) (int, error) {
	return in.ring.ReadFull(p)
}

// Flush drops whatever the callback queued while capture was not being read
func (in *malgoInput) Flush() {
	in.ring.Reset()
}

func (in *malgoInput) BufferSize() int {
	return in.bufferSize
}

func (in *malgoInput) Close() error {
	in.closeOnce.Do(func() {
		in.ring.Close()
		in.backend.stopDevice(in.device)
		if n := in.overruns.Load(); n > 0 {
			log.Printf("Audio input closed after %d overruns", n)
		}
	})
	return nil
}

type malgoOutput struct {
	backend   *Malgo
	device    *malgo.Device
	ring      *RingBuffer
	closeOnce sync.Once
}

// Write blocks while the device ring is full
func (out *malgoOutput) Write(p []byte) (int, error) {
	return out.ring.Write(p)
}

func (out *malgoOutput) Close() error {
	out.closeOnce.Do(func() {
		out.ring.Close()
		out.backend.stopDevice(out.device)
	})
	return nil
}

// malgoFormat maps a sample encoding to miniaudio's format
func malgoFormat(e audio.Encoding) malgo.FormatType {
	if e == audio.PCMFloat {
		return malgo.FormatF32
	}
	return malgo.FormatS16
}
