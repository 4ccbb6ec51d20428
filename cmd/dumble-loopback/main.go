// ABOUTME: Entry point for the loopback diagnostic
// ABOUTME: Runs the audio engine with microphone loopback and tone targets
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/epnw/dumble-audio/internal/config"
	"github.com/epnw/dumble-audio/internal/metrics"
	"github.com/epnw/dumble-audio/internal/tone"
	"github.com/epnw/dumble-audio/internal/ui"
	"github.com/epnw/dumble-audio/internal/version"
	"github.com/epnw/dumble-audio/pkg/audio"
	"github.com/epnw/dumble-audio/pkg/audio/device"
	"github.com/epnw/dumble-audio/pkg/engine"
)

var (
	captureRate     = flag.Int("capture-rate", 16000, "Capture sample rate in Hz")
	captureChannels = flag.Int("capture-channels", 1, "Capture channels (1 or 2)")
	captureEncoding = flag.String("capture-encoding", "pcm16", "Capture encoding (pcm16 or float32)")
	playRate        = flag.Int("play-rate", 16000, "Playback sample rate in Hz")
	playChannels    = flag.Int("play-channels", 1, "Playback channels (1 or 2)")
	playEncoding    = flag.String("play-encoding", "pcm16", "Playback encoding (pcm16 or float32)")
	inputBackend    = flag.String("input", "malgo", "Capture backend (malgo, portaudio)")
	outputBackend   = flag.String("output", "oto", "Playback backend (oto, malgo, portaudio)")
	routerCmd       = flag.String("router-cmd", "", "Command run with the sink name to switch routes (e.g. \"pactl set-default-sink\")")
	speakerSink     = flag.String("speaker-sink", "", "Sink selected when the speaker is on")
	earpieceSink    = flag.String("earpiece-sink", "", "Sink selected when the speaker is off")
	targets         = flag.Int("targets", 2, "Number of targets to register at startup")
	toneFreq        = flag.Float64("tone", tone.DefaultFrequency, "Base tone frequency for non-loopback targets (0 disables tones)")
	metricsAddr     = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	configPath      = flag.String("config", "", "YAML profile; command line flags take precedence")
	logFile         = flag.String("log-file", "dumble-loopback.log", "Log file path")
	noTUI           = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

// chunkDuration is the period of generated tone chunks
const chunkDuration = 20 * time.Millisecond

// loopbackTarget receives the microphone when formats match
const loopbackTarget engine.TargetID = 0

func main() {
	flag.Parse()

	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Config: %v", err)
		}
		if err := cfg.Apply(flag.CommandLine); err != nil {
			log.Fatalf("Config: %v", err)
		}
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s", version.String())

	captureFormat, err := parseFormat(*captureRate, *captureChannels, *captureEncoding)
	if err != nil {
		log.Fatalf("Invalid capture format: %v", err)
	}
	playbackFormat, err := parseFormat(*playRate, *playChannels, *playEncoding)
	if err != nil {
		log.Fatalf("Invalid playback format: %v", err)
	}

	input, output, err := device.Select(*inputBackend, *outputBackend)
	if err != nil {
		log.Fatalf("Audio backend: %v", err)
	}

	var router device.Router
	if *routerCmd != "" {
		router = &device.ExecRouter{
			Command:      strings.Fields(*routerCmd),
			SpeakerSink:  *speakerSink,
			EarpieceSink: *earpieceSink,
		}
	}

	// TUI setup
	var tuiProg *tea.Program
	var ctrl *ui.Control
	if useTUI {
		ctrl = ui.NewControl()
		tuiProg = ui.Run(ctrl)
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	eng := engine.New(engine.Config{
		Input:  input,
		Output: output,
		Router: router,
		OnError: func(err error) {
			log.Printf("Engine error: %v", err)
			updateTUI(ui.StatusMsg{Error: err.Error()})
		},
	})

	loopback := captureFormat == playbackFormat
	if !loopback {
		log.Printf("Capture and playback formats differ; microphone loopback disabled")
	}

	collector := metrics.NewCollector(eng)

	var captured atomic.Int64
	sink := func(chunk []byte) {
		captured.Add(1)
		collector.ObserveCapture()
		if loopback {
			eng.Dispatch(loopbackTarget, chunk)
		}
	}

	if err := eng.Start(captureFormat, playbackFormat, sink); err != nil {
		log.Fatalf("Failed to start audio engine: %v", err)
	}
	for i := 0; i < *targets; i++ {
		eng.AddTarget(engine.TargetID(i))
	}

	running := true
	updateTUI(ui.StatusMsg{
		Running:   &running,
		SessionID: eng.SessionID(),
		Capture:   captureFormat.String(),
		Playback:  playbackFormat.String(),
	})

	var exporter *metrics.Exporter
	if *metricsAddr != "" {
		exporter = metrics.NewExporter(*metricsAddr, collector)
		go func() {
			log.Printf("Serving metrics on %s", *metricsAddr)
			if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup

	if *toneFreq > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			feedTones(eng, playbackFormat, *toneFreq, loopback, stop)
		}()
	}

	if ctrl != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handleCommands(eng, ctrl, stop)
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			statsUpdateLoop(eng, &captured, updateTUI, stop)
		}()
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if ctrl != nil {
		select {
		case <-ctrl.Quit:
			log.Printf("Received quit signal from TUI")
		case <-sigChan:
			log.Printf("Shutdown signal received")
		}
	} else {
		<-sigChan
		log.Printf("Shutdown signal received")
	}

	close(stop)
	wg.Wait()

	if err := eng.Stop(); err != nil {
		log.Printf("Error stopping audio engine: %v", err)
	}
	if exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := exporter.Shutdown(ctx); err != nil {
			log.Printf("Error stopping metrics server: %v", err)
		}
		cancel()
	}
	if tuiProg != nil {
		tuiProg.Quit()
	}

	log.Printf("Loopback stopped: %d chunks captured", captured.Load())
}

// parseFormat builds a Format from command line values
func parseFormat(rate, channels int, encoding string) (audio.Format, error) {
	f := audio.Format{SampleRate: rate}

	switch channels {
	case 1:
		f.Layout = audio.Mono
	case 2:
		f.Layout = audio.Stereo
	default:
		return audio.Format{}, fmt.Errorf("unsupported channel count %d", channels)
	}

	switch strings.ToLower(encoding) {
	case "pcm16", "s16":
		f.Encoding = audio.PCM16
	case "float32", "f32", "float":
		f.Encoding = audio.PCMFloat
	default:
		return audio.Format{}, fmt.Errorf("unsupported encoding %q", encoding)
	}

	return f, f.Validate()
}

// toneFrequency spaces target tones a whole tone apart
func toneFrequency(base float64, id engine.TargetID) float64 {
	return base * math.Pow(2, float64(id)/6)
}

// feedTones dispatches one chunk of tone per period to every registered
// target except the loopback target
func feedTones(eng *engine.Engine, format audio.Format, base float64, loopback bool, stop <-chan struct{}) {
	sources := make(map[engine.TargetID]*tone.Source)

	ticker := time.NewTicker(chunkDuration)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			targets := eng.Targets()
			pruneSources(sources, targets)
			for _, id := range targets {
				if loopback && id == loopbackTarget {
					continue
				}
				src, ok := sources[id]
				if !ok {
					src = tone.NewSource(format, toneFrequency(base, id))
					sources[id] = src
					log.Printf("Target %d: tone %.1fHz", id, src.Frequency())
				}
				eng.Dispatch(id, src.Chunk(chunkDuration))
			}
		}
	}
}

// pruneSources forgets tone generators for targets that were removed, so a
// target added again later restarts its tone
func pruneSources(sources map[engine.TargetID]*tone.Source, targets []engine.TargetID) {
	live := make(map[engine.TargetID]bool, len(targets))
	for _, id := range targets {
		live[id] = true
	}
	for id := range sources {
		if !live[id] {
			delete(sources, id)
		}
	}
}

// handleCommands applies TUI actions to the engine
func handleCommands(eng *engine.Engine, ctrl *ui.Control, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case cmd := <-ctrl.Commands:
			switch cmd.Kind {
			case ui.CommandSetMicrophone:
				eng.SetMicrophoneEnabled(cmd.Enabled)
			case ui.CommandSetSpeaker:
				eng.SetOutputRoute(cmd.Enabled)
			case ui.CommandAddTarget:
				eng.AddTarget(cmd.Target)
			case ui.CommandRemoveTarget:
				eng.RemoveTarget(cmd.Target)
			}
		}
	}
}

// statsUpdateLoop periodically updates TUI with engine statistics
func statsUpdateLoop(eng *engine.Engine, captured *atomic.Int64, updateTUI func(ui.StatusMsg), stop <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			mic := eng.MicrophoneEnabled()
			stats := eng.Stats()
			if stats == nil {
				stats = []engine.ChannelStats{}
			}
			updateTUI(ui.StatusMsg{
				MicEnabled: &mic,
				Targets:    stats,
				Captured:   captured.Load(),
			})
		}
	}
}
