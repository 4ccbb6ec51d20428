// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the command channel to the engine
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/epnw/dumble-audio/pkg/engine"
)

// CommandKind identifies a user action
type CommandKind int

const (
	CommandSetMicrophone CommandKind = iota
	CommandSetSpeaker
	CommandAddTarget
	CommandRemoveTarget
)

// Command is a user action for the main loop to apply to the engine
type Command struct {
	Kind    CommandKind
	Enabled bool
	Target  engine.TargetID
}

// Control holds channels for communication from the TUI
type Control struct {
	Commands chan Command
	Quit     chan struct{}
}

// NewControl creates a new control handler
func NewControl() *Control {
	return &Control{
		Commands: make(chan Command, 10),
		Quit:     make(chan struct{}, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Control) Model {
	return Model{control: ctrl}
}

// Run creates the TUI program; the caller runs it
func Run(ctrl *Control) *tea.Program {
	return tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
}
