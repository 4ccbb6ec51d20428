// ABOUTME: Tests for configuration profiles
// ABOUTME: Tests YAML loading and flag precedence
package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const profile = `
capture:
  rate: 48000
  channels: 2
  encoding: float32
input: portaudio
router:
  command: pactl set-default-sink
  speaker_sink: speakers
targets: 3
tone: 523.25
metrics_addr: ":9464"
`

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loopback.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeProfile(t, profile))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Capture.Rate != 48000 || cfg.Capture.Channels != 2 || cfg.Capture.Encoding != "float32" {
		t.Errorf("unexpected capture stream %+v", cfg.Capture)
	}
	if cfg.Router.SpeakerSink != "speakers" {
		t.Errorf("expected speaker sink 'speakers', got '%s'", cfg.Router.SpeakerSink)
	}
	if cfg.Tone != 523.25 {
		t.Errorf("expected tone 523.25, got %v", cfg.Tone)
	}
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := Load(writeProfile(t, "speaker: true\n"))
	if err == nil {
		t.Error("expected unknown key to be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValuesSkipsZero(t *testing.T) {
	values := (&Config{Input: "malgo"}).Values()
	if len(values) != 1 || values["input"] != "malgo" {
		t.Errorf("expected only input, got %v", values)
	}
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("capture-rate", 16000, "")
	fs.Int("capture-channels", 1, "")
	fs.String("capture-encoding", "pcm16", "")
	fs.String("input", "malgo", "")
	fs.String("router-cmd", "", "")
	fs.String("speaker-sink", "", "")
	fs.Int("targets", 2, "")
	fs.Float64("tone", 440, "")
	fs.String("metrics-addr", "", "")
	return fs
}

func TestApplyPrecedence(t *testing.T) {
	cfg, err := Load(writeProfile(t, profile))
	if err != nil {
		t.Fatal(err)
	}

	fs := newFlagSet()
	if err := fs.Parse([]string{"-targets", "5"}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Apply(fs); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	tests := map[string]string{
		"capture-rate": "48000",
		"input":        "portaudio",
		"router-cmd":   "pactl set-default-sink",
		"tone":         "523.25",
		"metrics-addr": ":9464",
		"targets":      "5", // command line wins
	}
	for name, expected := range tests {
		if got := fs.Lookup(name).Value.String(); got != expected {
			t.Errorf("-%s: expected %q, got %q", name, expected, got)
		}
	}
}

func TestApplyUnknownFlag(t *testing.T) {
	cfg := &Config{LogFile: "x.log"}

	err := cfg.Apply(newFlagSet())
	if err == nil || !strings.Contains(err.Error(), "log-file") {
		t.Errorf("expected unknown flag error, got %v", err)
	}
}

func TestApplyBadValue(t *testing.T) {
	cfg := &Config{Capture: Stream{Encoding: "pcm16"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("capture-encoding", 0, "")

	if err := cfg.Apply(fs); err == nil {
		t.Error("expected error setting a string on an int flag")
	}
}
