package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "envstream"

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Metrics holds every collector the daemon exports. All methods are safe on a
// nil receiver so components can run without metrics in tests.
type Metrics struct {
	cycles          prometheus.Counter
	cyclesSkipped   prometheus.Counter
	publishWait     prometheus.Histogram
	lastPublish     prometheus.Gauge
	frames          *prometheus.CounterVec
	connections     prometheus.Gauge
	connectionsSeen prometheus.Counter
	diagDropped     prometheus.Counter
	messageBytes    prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sampling_cycles_total",
			Help:      "Sampling cycles that published a snapshot set.",
		}),
		cyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sampling_cycles_skipped_total",
			Help:      "Sampling cycles discarded because no reference sensor was registered.",
		}),
		publishWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_wait_seconds",
			Help:      "Time the sampling loop spent blocked on a full telemetry channel.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		lastPublish: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_publish_timestamp_seconds",
			Help:      "Unix time of the last snapshot publication.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_total",
			Help:      "Streaming frames by direction.",
		}, []string{"direction"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connections",
			Help:      "Currently open streaming connections.",
		}),
		connectionsSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_connections_total",
			Help:      "Streaming connections accepted since start.",
		}),
		diagDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_dropped_total",
			Help:      "Diagnostic entries rejected by a full ring.",
		}),
		messageBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_message_bytes",
			Help:      "Encoded size of outbound telemetry messages.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
		}),
	}

	reg.MustRegister(
		m.cycles,
		m.cyclesSkipped,
		m.publishWait,
		m.lastPublish,
		m.frames,
		m.connections,
		m.connectionsSeen,
		m.diagDropped,
		m.messageBytes,
	)

	return m
}

func (m *Metrics) CyclePublished(wait time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.publishWait.Observe(wait.Seconds())
	m.lastPublish.Set(float64(at.Unix()))
}

func (m *Metrics) CycleSkipped() {
	if m == nil {
		return
	}
	m.cyclesSkipped.Inc()
}

func (m *Metrics) Frame(direction string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(direction).Inc()
}

func (m *Metrics) MessageSent(size int) {
	if m == nil {
		return
	}
	m.messageBytes.Observe(float64(size))
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
	m.connectionsSeen.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// DiagnosticDropped satisfies diag.DropCounter.
func (m *Metrics) DiagnosticDropped() {
	if m == nil {
		return
	}
	m.diagDropped.Inc()
}
