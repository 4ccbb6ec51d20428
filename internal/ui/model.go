// ABOUTME: Bubbletea model for the loopback TUI
// ABOUTME: Defines session state, key handling and rendering
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/epnw/dumble-audio/pkg/engine"
)

var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	targetHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	onStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle         = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	// Session
	running   bool
	sessionID string
	capture   string
	playback  string

	// Controls
	micEnabled bool
	speakerOn  bool

	// Targets
	targets  []engine.ChannelStats
	captured int64

	lastError string
	quitting  bool

	control *Control

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping audio engine...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Dumble Loopback"))
	b.WriteString("\n\n")

	m.renderSession(&b)
	b.WriteString("\n")
	m.renderControls(&b)
	b.WriteString("\n")
	m.renderTargets(&b)

	if m.lastError != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + m.lastError))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("m:Mic  s:Speaker  a:Add target  r:Remove target  q:Quit"))

	return b.String()
}

func (m Model) renderSession(b *strings.Builder) {
	field(b, "Engine: ", onOff(m.running, "running", "stopped"))
	if !m.running {
		return
	}
	field(b, "Session: ", valueStyle.Render(m.sessionID))
	field(b, "Capture: ", valueStyle.Render(m.capture))
	field(b, "Playback: ", valueStyle.Render(m.playback))
}

func (m Model) renderControls(b *strings.Builder) {
	field(b, "Microphone: ", onOff(m.micEnabled, "on", "muted"))
	field(b, "Route: ", onOff(m.speakerOn, "speaker", "earpiece"))
	field(b, "Captured: ", valueStyle.Render(fmt.Sprintf("%d chunks", m.captured)))
}

func (m Model) renderTargets(b *strings.Builder) {
	b.WriteString(targetHeaderStyle.Render(fmt.Sprintf("Targets (%d)", len(m.targets))))
	b.WriteString("\n\n")

	if len(m.targets) == 0 {
		b.WriteString(valueStyle.Render("  No targets"))
		b.WriteString("\n")
		return
	}
	for _, t := range m.targets {
		b.WriteString(fmt.Sprintf("  • %d", t.Target))
		b.WriteString(valueStyle.Render(fmt.Sprintf(" (%s, queued %d, played %d, pending %d)",
			t.State, t.Enqueued, t.Written, t.Pending)))
		b.WriteString("\n")
	}
}

func field(b *strings.Builder, label, value string) {
	b.WriteString(headerStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}

func onOff(on bool, onText, offText string) string {
	if on {
		return onStyle.Render(onText)
	}
	return offStyle.Render(offText)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.control != nil {
			select {
			case m.control.Quit <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	case "m":
		m.micEnabled = !m.micEnabled
		m.send(Command{Kind: CommandSetMicrophone, Enabled: m.micEnabled})
	case "s":
		m.speakerOn = !m.speakerOn
		m.send(Command{Kind: CommandSetSpeaker, Enabled: m.speakerOn})
	case "a":
		m.send(Command{Kind: CommandAddTarget, Target: m.nextTarget()})
	case "r":
		if n := len(m.targets); n > 0 {
			m.send(Command{Kind: CommandRemoveTarget, Target: m.targets[n-1].Target})
		}
	}

	return m, nil
}

// nextTarget returns one past the highest registered target
func (m Model) nextTarget() engine.TargetID {
	next := engine.TargetID(0)
	for _, t := range m.targets {
		if t.Target >= next {
			next = t.Target + 1
		}
	}
	return next
}

func (m Model) send(cmd Command) {
	if m.control == nil {
		return
	}
	select {
	case m.control.Commands <- cmd:
	default:
		// Don't block the UI if the main loop is behind
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Running != nil {
		m.running = *msg.Running
	}
	if msg.SessionID != "" {
		m.sessionID = msg.SessionID
	}
	if msg.Capture != "" {
		m.capture = msg.Capture
		m.playback = msg.Playback
	}
	if msg.MicEnabled != nil {
		m.micEnabled = *msg.MicEnabled
	}
	if msg.SpeakerOn != nil {
		m.speakerOn = *msg.SpeakerOn
	}
	if msg.Targets != nil {
		m.targets = msg.Targets
	}
	if msg.Captured != 0 {
		m.captured = msg.Captured
	}
	if msg.Error != "" {
		m.lastError = msg.Error
	}
}

// StatusMsg updates TUI state. Zero fields leave the current value alone.
type StatusMsg struct {
	Running    *bool
	SessionID  string
	Capture    string
	Playback   string
	MicEnabled *bool
	SpeakerOn  *bool
	Targets    []engine.ChannelStats
	Captured   int64
	Error      string
}
