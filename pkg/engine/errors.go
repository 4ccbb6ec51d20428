// ABOUTME: Engine error definitions
// ABOUTME: Session lifecycle and device acquisition errors
package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted is returned by Start while a session is active
	ErrAlreadyStarted = errors.New("audio engine already started")

	// ErrNotStarted is returned by Stop when no session is active
	ErrNotStarted = errors.New("audio engine not started")

	// ErrDeviceUnavailable wraps failures to acquire an audio device
	ErrDeviceUnavailable = errors.New("audio device unavailable")
)

// TargetError reports a fatal device failure on one playback channel
type TargetError struct {
	Target TargetID
	Err    error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("target %d: %v", e.Target, e.Err)
}

func (e *TargetError) Unwrap() error {
	return e.Err
}
