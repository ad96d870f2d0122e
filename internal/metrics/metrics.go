package metrics

import (
	"net/http"
	"time"

	"github.com/andresmejia3/biomech/internal/pipeline"
	"github.com/andresmejia3/biomech/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the capture pipeline's Prometheus collectors and observes the sampling loop.
type Metrics struct {
	framesDetected prometheus.Counter
	framesSkipped  prometheus.Counter
	detectErrors   prometheus.Counter
	samplesKept    prometheus.Counter
	samplesDropped prometheus.Counter
	detectLatency  prometheus.Histogram
	jointMissing   *prometheus.CounterVec
	recording      prometheus.Gauge
	sessionsSaved  prometheus.Counter

	registry *prometheus.Registry
}

// New creates a new Metrics instance on its own registry.
func New() *Metrics {
	m := &Metrics{
		framesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biomech_frames_detected_total",
			Help: "Frames in which the pose model found a person",
		}),
		framesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biomech_frames_skipped_total",
			Help: "Frames with no detection",
		}),
		detectErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biomech_detect_errors_total",
			Help: "Failed detection attempts",
		}),
		samplesKept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biomech_samples_retained_total",
			Help: "Joint-angle samples appended to a recording",
		}),
		samplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biomech_samples_dropped_total",
			Help: "Samples discarded because the recording stopped during detection",
		}),
		detectLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "biomech_detect_latency_seconds",
			Help:    "Time spent waiting on the pose model per attempt",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		jointMissing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biomech_joint_missing_total",
			Help: "Retained samples where the joint angle could not be computed",
		}, []string{"joint"}),
		recording: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "biomech_recording_active",
			Help: "1 while a recording is in progress",
		}),
		sessionsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biomech_sessions_saved_total",
			Help: "Sessions handed to the store",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.framesDetected, m.framesSkipped, m.detectErrors,
		m.samplesKept, m.samplesDropped, m.detectLatency,
		m.jointMissing, m.recording, m.sessionsSaved,
	)
	return m
}

var _ pipeline.Observer = (*Metrics)(nil)

func (m *Metrics) FrameDetected(latency time.Duration) {
	m.framesDetected.Inc()
	m.detectLatency.Observe(latency.Seconds())
}

func (m *Metrics) FrameSkipped(latency time.Duration) {
	m.framesSkipped.Inc()
	m.detectLatency.Observe(latency.Seconds())
}

func (m *Metrics) DetectFailed(error) {
	m.detectErrors.Inc()
}

func (m *Metrics) SampleRetained(s types.JointAngleSample) {
	m.samplesKept.Inc()
	for _, j := range types.AllJoints {
		if _, ok := s.Angles.Get(j); !ok {
			m.jointMissing.WithLabelValues(j.String()).Inc()
		}
	}
}

func (m *Metrics) SampleDropped(types.JointAngleSample) {
	m.samplesDropped.Inc()
}

// SetRecording flips the recording gauge.
func (m *Metrics) SetRecording(active bool) {
	if active {
		m.recording.Set(1)
	} else {
		m.recording.Set(0)
	}
}

// SessionSaved counts a persisted session.
func (m *Metrics) SessionSaved() {
	m.sessionsSaved.Inc()
}

// Handler returns HTTP handler for Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
