package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	started       *prometheus.CounterVec
	completed     *prometheus.CounterVec
	abandoned     prometheus.Counter
	fallbacks     prometheus.Counter
	idle          *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	frames        prometheus.Counter
	consumerErrs  prometheus.Counter
	eventsDropped prometheus.Counter
}

// NewMetrics registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		started: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "face_expressions_started_total",
				Help: "Expressions that began blending in",
			},
			[]string{"expression"},
		),
		completed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "face_expressions_completed_total",
				Help: "Expressions that finished being displayed",
			},
			[]string{"expression"},
		),
		abandoned: f.NewCounter(prometheus.CounterOpts{
			Name: "face_transitions_abandoned_total",
			Help: "Transitions interrupted by a forced expression",
		}),
		fallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "face_fallbacks_total",
			Help: "Default expressions queued after a non-sticky pose expired",
		}),
		idle: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "face_idle_injections_total",
				Help: "Idle expressions queued by the scheduler",
			},
			[]string{"kind"},
		),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "face_queue_depth",
			Help: "Expressions waiting in the animation queue",
		}),
		frames: f.NewCounter(prometheus.CounterOpts{
			Name: "face_frames_total",
			Help: "Frames rendered",
		}),
		consumerErrs: f.NewCounter(prometheus.CounterOpts{
			Name: "face_consumer_errors_total",
			Help: "Queued expressions that failed to start",
		}),
		eventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "face_events_dropped_total",
			Help: "Events dropped because a subscriber was full",
		}),
	}
}

func (m *Metrics) expressionStarted(id string) {
	if m != nil {
		m.started.WithLabelValues(id).Inc()
	}
}

func (m *Metrics) expressionCompleted(id string) {
	if m != nil {
		m.completed.WithLabelValues(id).Inc()
	}
}

func (m *Metrics) transitionAbandoned() {
	if m != nil {
		m.abandoned.Inc()
	}
}

func (m *Metrics) fallbackQueued() {
	if m != nil {
		m.fallbacks.Inc()
	}
}

func (m *Metrics) idleInjected(kind string) {
	if m != nil {
		m.idle.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) setQueueDepth(n int) {
	if m != nil {
		m.queueDepth.Set(float64(n))
	}
}

func (m *Metrics) frameRendered() {
	if m != nil {
		m.frames.Inc()
	}
}

func (m *Metrics) consumerError() {
	if m != nil {
		m.consumerErrs.Inc()
	}
}

func (m *Metrics) eventDropped() {
	if m != nil {
		m.eventsDropped.Inc()
	}
}
