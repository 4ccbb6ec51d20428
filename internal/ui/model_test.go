// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling, and rendering
package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/epnw/dumble-audio/pkg/engine"
)

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func boolPtr(b bool) *bool {
	return &b
}

func TestNewModel(t *testing.T) {
	model := NewModel(nil)

	if model.running {
		t.Error("expected running to be false initially")
	}
	if model.micEnabled {
		t.Error("expected microphone off initially")
	}
	if model.speakerOn {
		t.Error("expected earpiece route initially")
	}
	if len(model.targets) != 0 {
		t.Error("expected no targets initially")
	}
}

func TestStatusMsgSession(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{
		Running:   boolPtr(true),
		SessionID: "abc",
		Capture:   "16000Hz mono pcm16",
		Playback:  "48000Hz mono pcm16",
	})

	if !model.running {
		t.Error("expected running after status update")
	}
	if model.sessionID != "abc" {
		t.Errorf("expected session 'abc', got '%s'", model.sessionID)
	}
	if model.playback != "48000Hz mono pcm16" {
		t.Errorf("unexpected playback format '%s'", model.playback)
	}

	model.applyStatus(StatusMsg{Running: boolPtr(false)})
	if model.running {
		t.Error("expected stopped after status update")
	}
	if model.sessionID != "abc" {
		t.Error("unset fields should be left alone")
	}
}

func TestStatusMsgTargets(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{Targets: []engine.ChannelStats{{Target: 1}, {Target: 4}}})
	if len(model.targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(model.targets))
	}

	// An empty, non-nil slice clears the list
	model.applyStatus(StatusMsg{Targets: []engine.ChannelStats{}})
	if len(model.targets) != 0 {
		t.Errorf("expected targets cleared, got %d", len(model.targets))
	}
}

func TestKeyToggles(t *testing.T) {
	ctrl := NewControl()
	var model tea.Model = NewModel(ctrl)

	model, _ = model.Update(keyMsg("m"))
	model, _ = model.Update(keyMsg("s"))

	tests := []Command{
		{Kind: CommandSetMicrophone, Enabled: true},
		{Kind: CommandSetSpeaker, Enabled: true},
	}
	for _, expected := range tests {
		select {
		case cmd := <-ctrl.Commands:
			if cmd != expected {
				t.Errorf("expected %+v, got %+v", expected, cmd)
			}
		default:
			t.Fatalf("expected command %+v", expected)
		}
	}

	m := model.(Model)
	if !m.micEnabled || !m.speakerOn {
		t.Error("expected toggles reflected in the model")
	}
}

func TestKeyTargets(t *testing.T) {
	ctrl := NewControl()
	model := NewModel(ctrl)

	model.Update(keyMsg("a"))
	if cmd := <-ctrl.Commands; cmd.Kind != CommandAddTarget || cmd.Target != 0 {
		t.Errorf("expected add target 0, got %+v", cmd)
	}

	model.applyStatus(StatusMsg{Targets: []engine.ChannelStats{{Target: 0}, {Target: 3}}})
	model.Update(keyMsg("a"))
	if cmd := <-ctrl.Commands; cmd.Target != 4 {
		t.Errorf("expected add target 4, got %+v", cmd)
	}

	model.Update(keyMsg("r"))
	if cmd := <-ctrl.Commands; cmd.Kind != CommandRemoveTarget || cmd.Target != 3 {
		t.Errorf("expected remove target 3, got %+v", cmd)
	}
}

func TestRemoveWithoutTargets(t *testing.T) {
	ctrl := NewControl()
	model := NewModel(ctrl)

	model.Update(keyMsg("r"))
	select {
	case cmd := <-ctrl.Commands:
		t.Errorf("expected no command, got %+v", cmd)
	default:
	}
}

func TestQuit(t *testing.T) {
	ctrl := NewControl()
	model := NewModel(ctrl)

	updated, cmd := model.Update(keyMsg("q"))
	if cmd == nil {
		t.Error("expected quit command")
	}
	if !updated.(Model).quitting {
		t.Error("expected quitting state")
	}
	select {
	case <-ctrl.Quit:
	default:
		t.Error("expected quit signal")
	}
}

func TestNilControl(t *testing.T) {
	model := NewModel(nil)

	// Must not panic without a control handler
	model.Update(keyMsg("m"))
	model.Update(keyMsg("a"))
	model.Update(keyMsg("q"))
}

func TestView(t *testing.T) {
	model := NewModel(nil)
	model.applyStatus(StatusMsg{
		Running:   boolPtr(true),
		SessionID: "session-1",
		Capture:   "16000Hz mono pcm16",
		Playback:  "48000Hz stereo float32",
		Targets:   []engine.ChannelStats{{Target: 7, State: engine.StateRunning, Written: 12}},
		Error:     "device busy",
	})

	view := model.View()
	for _, want := range []string{"session-1", "48000Hz stereo float32", "Targets (1)", "7", "running", "device busy"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestViewNoTargets(t *testing.T) {
	view := NewModel(nil).View()
	if !strings.Contains(view, "No targets") {
		t.Error("expected empty target list")
	}
	if strings.Contains(view, "Session:") {
		t.Error("session details should be hidden while stopped")
	}
}
