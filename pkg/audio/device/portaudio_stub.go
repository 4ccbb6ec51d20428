//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package device

import (
	"fmt"

	"github.com/epnw/dumble-audio/pkg/audio"
)

// PortAudio backend (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio backend
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// OpenInput reports that PortAudio is not compiled in
func (p *PortAudio) OpenInput(format audio.Format) (Input, error) {
	return nil, fmt.Errorf("PortAudio support not enabled (build with -tags portaudio)")
}

// OpenOutput reports that PortAudio is not compiled in
func (p *PortAudio) OpenOutput(format audio.Format, usage Usage) (Output, error) {
	return nil, fmt.Errorf("PortAudio support not enabled (build with -tags portaudio)")
}
