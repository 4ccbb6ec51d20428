// ABOUTME: Prometheus metrics for the audio engine
// ABOUTME: Collects per-target channel statistics on every scrape
package metrics

import (
	"strconv"

	"github.com/epnw/dumble-audio/pkg/engine"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dumble"

// StatsSource is the part of the engine the collector reads
type StatsSource interface {
	Running() bool
	MicrophoneEnabled() bool
	Stats() []engine.ChannelStats
}

var (
	runningDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "engine", "running"),
		"Whether an audio session is active.",
		nil, nil,
	)
	microphoneDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "engine", "microphone_enabled"),
		"Whether captured audio is delivered.",
		nil, nil,
	)
	targetsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "engine", "targets"),
		"Number of registered playback targets.",
		nil, nil,
	)
	enqueuedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "channel", "enqueued_chunks_total"),
		"Chunks dispatched to a target.",
		[]string{"target"}, nil,
	)
	writtenDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "channel", "written_chunks_total"),
		"Chunks written to a target's output stream.",
		[]string{"target"}, nil,
	)
	pendingDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "channel", "pending_chunks"),
		"Chunks queued and not yet written.",
		[]string{"target"}, nil,
	)
)

// Collector exports engine state. Channel counters restart with each
// session, like the channels themselves.
type Collector struct {
	source   StatsSource
	captured prometheus.Counter
}

// NewCollector creates a collector reading from source
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		captured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "chunks_total",
			Help:      "Microphone chunks delivered to the sink.",
		}),
	}
}

// ObserveCapture counts one delivered microphone chunk
func (c *Collector) ObserveCapture() {
	c.captured.Inc()
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- runningDesc
	ch <- microphoneDesc
	ch <- targetsDesc
	ch <- enqueuedDesc
	ch <- writtenDesc
	ch <- pendingDesc
	c.captured.Describe(ch)
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()

	ch <- prometheus.MustNewConstMetric(runningDesc, prometheus.GaugeValue, boolValue(c.source.Running()))
	ch <- prometheus.MustNewConstMetric(microphoneDesc, prometheus.GaugeValue, boolValue(c.source.MicrophoneEnabled()))
	ch <- prometheus.MustNewConstMetric(targetsDesc, prometheus.GaugeValue, float64(len(stats)))

	for _, s := range stats {
		target := strconv.Itoa(int(s.Target))
		ch <- prometheus.MustNewConstMetric(enqueuedDesc, prometheus.CounterValue, float64(s.Enqueued), target)
		ch <- prometheus.MustNewConstMetric(writtenDesc, prometheus.CounterValue, float64(s.Written), target)
		ch <- prometheus.MustNewConstMetric(pendingDesc, prometheus.GaugeValue, float64(s.Pending), target)
	}

	c.captured.Collect(ch)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
