// ABOUTME: Command-driven output router
// ABOUTME: Applies speakerphone hints by running a platform command such as pactl
package device

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ExecRouter switches output routes by running Command with the sink for
// the requested route appended, e.g. Command = ["pactl", "set-default-sink"].
type ExecRouter struct {
	Command      []string
	SpeakerSink  string
	EarpieceSink string
	Timeout      time.Duration
}

// SetSpeakerphone runs the route command for the speaker or earpiece sink
func (r *ExecRouter) SetSpeakerphone(on bool) error {
	if len(r.Command) == 0 {
		return errors.New("no route command configured")
	}

	sink := r.EarpieceSink
	if on {
		sink = r.SpeakerSink
	}
	if sink == "" {
		return fmt.Errorf("no sink configured for speakerphone=%v", on)
	}

	timeout := r.Timeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	args := append(append([]string{}, r.Command[1:]...), sink)
	out, err := exec.CommandContext(ctx, r.Command[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("route command failed: %w (%s)", err, out)
	}
	return nil
}
