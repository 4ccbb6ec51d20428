// ABOUTME: YAML configuration profiles for the loopback binary
// ABOUTME: Loads device and format settings and applies them as flag defaults
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Stream describes one direction's format
type Stream struct {
	Rate     int    `yaml:"rate"`
	Channels int    `yaml:"channels"`
	Encoding string `yaml:"encoding"`
}

// Router configures the speakerphone route command
type Router struct {
	Command      string `yaml:"command"`
	SpeakerSink  string `yaml:"speaker_sink"`
	EarpieceSink string `yaml:"earpiece_sink"`
}

// Config is a loopback profile. Zero values leave the flag default alone.
type Config struct {
	Capture     Stream  `yaml:"capture"`
	Playback    Stream  `yaml:"playback"`
	Input       string  `yaml:"input"`
	Output      string  `yaml:"output"`
	Router      Router  `yaml:"router"`
	Targets     int     `yaml:"targets"`
	Tone        float64 `yaml:"tone"`
	MetricsAddr string  `yaml:"metrics_addr"`
	LogFile     string  `yaml:"log_file"`
}

// Load reads a profile from path. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Values maps flag names to the profile's non-zero settings
func (c *Config) Values() map[string]string {
	values := make(map[string]string)
	setInt := func(name string, v int) {
		if v != 0 {
			values[name] = strconv.Itoa(v)
		}
	}
	setString := func(name, v string) {
		if v != "" {
			values[name] = v
		}
	}

	setInt("capture-rate", c.Capture.Rate)
	setInt("capture-channels", c.Capture.Channels)
	setString("capture-encoding", c.Capture.Encoding)
	setInt("play-rate", c.Playback.Rate)
	setInt("play-channels", c.Playback.Channels)
	setString("play-encoding", c.Playback.Encoding)
	setString("input", c.Input)
	setString("output", c.Output)
	setString("router-cmd", c.Router.Command)
	setString("speaker-sink", c.Router.SpeakerSink)
	setString("earpiece-sink", c.Router.EarpieceSink)
	setInt("targets", c.Targets)
	if c.Tone != 0 {
		values["tone"] = strconv.FormatFloat(c.Tone, 'f', -1, 64)
	}
	setString("metrics-addr", c.MetricsAddr)
	setString("log-file", c.LogFile)

	return values
}

// Apply sets every profile value whose flag was not given on the command
// line. Flags missing from fs are an error.
func (c *Config) Apply(fs *flag.FlagSet) error {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = true
	})

	var errs []error
	for name, value := range c.Values() {
		if explicit[name] {
			continue
		}
		if fs.Lookup(name) == nil {
			errs = append(errs, fmt.Errorf("config key for unknown flag -%s", name))
			continue
		}
		if err := fs.Set(name, value); err != nil {
			errs = append(errs, fmt.Errorf("config -%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
