// ABOUTME: Tests for the host command surface
// ABOUTME: Tests argument decoding, lifecycle misuse handling, and the event stream
package bridge

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/epnw/dumble-audio/internal/devicetest"
	"github.com/epnw/dumble-audio/pkg/audio"
	"github.com/epnw/dumble-audio/pkg/engine"
)

type testHost struct {
	plugin *Plugin
	engine *engine.Engine
	output *devicetest.OutputOpener
	router *devicetest.Router
}

func newTestHost(t *testing.T) *testHost {
	t.Helper()
	h := &testHost{
		output: devicetest.NewOutputOpener(),
		router: &devicetest.Router{},
	}
	h.engine = engine.New(engine.Config{
		Input:       &devicetest.InputOpener{Period: time.Millisecond},
		Output:      h.output,
		Router:      h.router,
		PollTimeout: 20 * time.Millisecond,
	})
	h.plugin = New(h.engine)
	t.Cleanup(func() {
		if h.engine.Running() {
			h.engine.Stop()
		}
	})
	return h
}

func startArgs() map[string]any {
	return map[string]any{
		"recordingEncoding":     0,
		"recordingSampleRate":   16000,
		"recordingChannelCount": 0,
		"playingEncoding":       1,
		"playingSampleRate":     48000,
		"playingChannelCount":   1,
	}
}

func (h *testHost) call(t *testing.T, method string, args map[string]any) {
	t.Helper()
	if _, err := h.plugin.HandleMethodCall(method, args); err != nil {
		t.Fatalf("%s failed: %v", method, err)
	}
}

func TestStartEngineFormats(t *testing.T) {
	h := newTestHost(t)
	h.call(t, MethodStartEngine, startArgs())

	capture, playback, ok := h.engine.Formats()
	if !ok {
		t.Fatal("engine not started")
	}

	expectedCapture := audio.Format{SampleRate: 16000, Layout: audio.Mono, Encoding: audio.PCM16}
	expectedPlayback := audio.Format{SampleRate: 48000, Layout: audio.Stereo, Encoding: audio.PCMFloat}
	if capture != expectedCapture {
		t.Errorf("expected capture %v, got %v", expectedCapture, capture)
	}
	if playback != expectedPlayback {
		t.Errorf("expected playback %v, got %v", expectedPlayback, playback)
	}
}

func TestStartEngineNumericTypes(t *testing.T) {
	h := newTestHost(t)
	args := map[string]any{
		"recordingEncoding":     int64(0),
		"recordingSampleRate":   float64(8000),
		"recordingChannelCount": int32(0),
		"playingEncoding":       float64(0),
		"playingSampleRate":     int64(8000),
		"playingChannelCount":   0,
	}
	h.call(t, MethodStartEngine, args)

	if !h.engine.Running() {
		t.Error("expected engine to start from mixed numeric arguments")
	}
}

func TestStartEngineBadArguments(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing sample rate", func(a map[string]any) { delete(a, "recordingSampleRate") }},
		{"string encoding", func(a map[string]any) { a["playingEncoding"] = "float" }},
		{"fractional rate", func(a map[string]any) { a["playingSampleRate"] = 44100.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHost(t)
			args := startArgs()
			tt.mutate(args)

			_, err := h.plugin.HandleMethodCall(MethodStartEngine, args)
			if !errors.Is(err, ErrBadArguments) {
				t.Errorf("expected ErrBadArguments, got %v", err)
			}
			if h.engine.Running() {
				t.Error("engine should not start on bad arguments")
			}
		})
	}
}

func TestStartEngineInvalidRate(t *testing.T) {
	h := newTestHost(t)
	args := startArgs()
	args["playingSampleRate"] = 0

	_, err := h.plugin.HandleMethodCall(MethodStartEngine, args)
	if !errors.Is(err, audio.ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestLifecycleMisuseIsNotAnError(t *testing.T) {
	h := newTestHost(t)

	h.call(t, MethodStopEngine, nil)
	h.call(t, MethodStartEngine, startArgs())
	first := h.engine.SessionID()

	h.call(t, MethodStartEngine, startArgs())
	if h.engine.SessionID() != first {
		t.Error("second start must not replace the session")
	}

	h.call(t, MethodStopEngine, nil)
	h.call(t, MethodStopEngine, nil)
	if h.engine.Running() {
		t.Error("expected engine stopped")
	}
}

func TestUnknownMethod(t *testing.T) {
	h := newTestHost(t)

	_, err := h.plugin.HandleMethodCall("setVolume", nil)
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("expected ErrNotImplemented, got %v", err)
	}
}

func TestTargetMethods(t *testing.T) {
	h := newTestHost(t)
	h.call(t, MethodStartEngine, startArgs())

	h.call(t, MethodAddTarget, map[string]any{"targetId": 7})
	outs, ok := h.output.WaitOutputs(1, time.Second)
	if !ok {
		t.Fatal("target output never opened")
	}

	chunk := bytes.Repeat([]byte{0x5}, 64)
	h.call(t, MethodScheduleBuffer, map[string]any{"targetId": 7, "buffer": chunk})

	writes, ok := outs[0].WaitWrites(1, time.Second)
	if !ok || !bytes.Equal(writes[0], chunk) {
		t.Fatal("scheduled buffer not played")
	}

	h.call(t, MethodRemoveTarget, map[string]any{"targetId": 7})
	if n := len(h.engine.Targets()); n != 0 {
		t.Errorf("expected no targets, got %d", n)
	}
}

func TestTargetMethodsBadArguments(t *testing.T) {
	h := newTestHost(t)

	tests := []struct {
		method string
		args   map[string]any
	}{
		{MethodAddTarget, nil},
		{MethodRemoveTarget, map[string]any{"targetId": "7"}},
		{MethodScheduleBuffer, map[string]any{"targetId": 7}},
		{MethodScheduleBuffer, map[string]any{"targetId": 7, "buffer": "abc"}},
		{MethodSetMicrophone, map[string]any{}},
		{MethodSetSpeaker, map[string]any{"enabled": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			_, err := h.plugin.HandleMethodCall(tt.method, tt.args)
			if !errors.Is(err, ErrBadArguments) {
				t.Errorf("expected ErrBadArguments, got %v", err)
			}
		})
	}
}

func TestSetSpeaker(t *testing.T) {
	h := newTestHost(t)

	h.call(t, MethodSetSpeaker, map[string]any{"enabled": true})

	calls := h.router.Calls()
	if len(calls) != 1 || !calls[0] {
		t.Errorf("expected speakerphone request, got %v", calls)
	}
}

func TestEventStream(t *testing.T) {
	h := newTestHost(t)

	var mu sync.Mutex
	var received int
	h.plugin.Listen(func(chunk []byte) {
		mu.Lock()
		received++
		mu.Unlock()
	})
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return received
	}

	h.call(t, MethodStartEngine, startArgs())
	h.call(t, MethodSetMicrophone, map[string]any{"enabled": true})

	deadline := time.Now().Add(time.Second)
	for count() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if count() < 3 {
		t.Fatalf("expected captured chunks, got %d", count())
	}

	h.plugin.Cancel()
	time.Sleep(10 * time.Millisecond)
	cancelled := count()
	time.Sleep(30 * time.Millisecond)
	if n := count(); n != cancelled {
		t.Errorf("expected chunks dropped after cancel, got %d more", n-cancelled)
	}
}
