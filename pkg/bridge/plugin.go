// ABOUTME: Host command surface for the audio engine
// ABOUTME: Decodes named method calls into engine operations and streams captured chunks
package bridge

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/epnw/dumble-audio/pkg/audio"
	"github.com/epnw/dumble-audio/pkg/engine"
)

var (
	// ErrNotImplemented is returned for unknown method names
	ErrNotImplemented = errors.New("method not implemented")

	// ErrBadArguments is returned when a required argument is missing or
	// has the wrong type
	ErrBadArguments = errors.New("bad arguments")
)

// Method names understood by HandleMethodCall
const (
	MethodStartEngine    = "startEngine"
	MethodStopEngine     = "stopEngine"
	MethodSetMicrophone  = "setMicrophone"
	MethodSetSpeaker     = "setSpeaker"
	MethodAddTarget      = "addTarget"
	MethodRemoveTarget   = "removeTarget"
	MethodScheduleBuffer = "scheduleBuffer"
)

// EventSink receives captured microphone chunks
type EventSink func(chunk []byte)

// Plugin adapts an Engine to a method-call/event-stream host
type Plugin struct {
	engine *engine.Engine

	mu   sync.RWMutex
	sink EventSink
}

// New creates a plugin driving e
func New(e *engine.Engine) *Plugin {
	return &Plugin{engine: e}
}

// Listen installs the sink for captured chunks, replacing any previous one
func (p *Plugin) Listen(sink EventSink) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

// Cancel removes the sink; chunks captured afterwards are dropped
func (p *Plugin) Cancel() {
	p.mu.Lock()
	p.sink = nil
	p.mu.Unlock()
}

// deliver forwards a captured chunk to the current sink
func (p *Plugin) deliver(chunk []byte) {
	p.mu.RLock()
	sink := p.sink
	p.mu.RUnlock()

	if sink == nil {
		return
	}
	sink(chunk)
}

// HandleMethodCall runs one host method. Lifecycle misuse (starting twice,
// stopping while idle) is logged and answered with a nil result.
func (p *Plugin) HandleMethodCall(method string, args map[string]any) (any, error) {
	switch method {
	case MethodStartEngine:
		return nil, p.startEngine(args)

	case MethodStopEngine:
		if err := p.engine.Stop(); err != nil {
			if errors.Is(err, engine.ErrNotStarted) {
				log.Printf("Error: Audio Engine not started")
				return nil, nil
			}
			return nil, err
		}
		return nil, nil

	case MethodSetMicrophone:
		enabled, err := boolArg(args, "enabled")
		if err != nil {
			return nil, err
		}
		p.engine.SetMicrophoneEnabled(enabled)
		return nil, nil

	case MethodSetSpeaker:
		enabled, err := boolArg(args, "enabled")
		if err != nil {
			return nil, err
		}
		p.engine.SetOutputRoute(enabled)
		return nil, nil

	case MethodAddTarget:
		id, err := intArg(args, "targetId")
		if err != nil {
			return nil, err
		}
		p.engine.AddTarget(engine.TargetID(id))
		return nil, nil

	case MethodRemoveTarget:
		id, err := intArg(args, "targetId")
		if err != nil {
			return nil, err
		}
		p.engine.RemoveTarget(engine.TargetID(id))
		return nil, nil

	case MethodScheduleBuffer:
		id, err := intArg(args, "targetId")
		if err != nil {
			return nil, err
		}
		buffer, err := bytesArg(args, "buffer")
		if err != nil {
			return nil, err
		}
		p.engine.Dispatch(engine.TargetID(id), buffer)
		return nil, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNotImplemented, method)
}

func (p *Plugin) startEngine(args map[string]any) error {
	capture, err := formatArgs(args, "recording")
	if err != nil {
		return err
	}
	playback, err := formatArgs(args, "playing")
	if err != nil {
		return err
	}

	err = p.engine.Start(capture, playback, p.deliver)
	if errors.Is(err, engine.ErrAlreadyStarted) {
		log.Printf("Error: Audio Engine already started")
		return nil
	}
	return err
}

// formatArgs reads the <prefix>Encoding, <prefix>SampleRate and
// <prefix>ChannelCount codes
func formatArgs(args map[string]any, prefix string) (audio.Format, error) {
	encoding, err := intArg(args, prefix+"Encoding")
	if err != nil {
		return audio.Format{}, err
	}
	sampleRate, err := intArg(args, prefix+"SampleRate")
	if err != nil {
		return audio.Format{}, err
	}
	channels, err := intArg(args, prefix+"ChannelCount")
	if err != nil {
		return audio.Format{}, err
	}
	return audio.FormatFromCodes(encoding, sampleRate, channels), nil
}

// intArg accepts the integer representations common host codecs produce
func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s not set", ErrBadArguments, key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %s is not an integer: %v", ErrBadArguments, key, n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("%w: %s has type %T", ErrBadArguments, key, v)
}

func boolArg(args map[string]any, key string) (bool, error) {
	v, ok := args[key]
	if !ok {
		return false, fmt.Errorf("%w: %s not set", ErrBadArguments, key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s has type %T", ErrBadArguments, key, v)
	}
	return b, nil
}

func bytesArg(args map[string]any, key string) ([]byte, error) {
	v, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s not set", ErrBadArguments, key)
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: %s has type %T", ErrBadArguments, key, v)
	}
	return b, nil
}
