package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"MarketPulse/internal/domain/repository"
)

// Recorder exposes pipeline measurements through Prometheus.
type Recorder struct {
	eventsPublished  *prometheus.CounterVec
	signals          *prometheus.CounterVec
	regimeDetections *prometheus.CounterVec
	regimeConfidence prometheus.Gauge
	rateLimits       *prometheus.CounterVec
	errs             *prometheus.CounterVec
	latency          *prometheus.HistogramVec
}

// NewRecorder registers the pipeline metrics on the default registry.
func NewRecorder() *Recorder {
	return &Recorder{
		eventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_events_published_total",
				Help: "Events published on the in-process bus",
			},
			[]string{"event_type"},
		),
		signals: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_signals_total",
				Help: "Filter funnel signals by stage",
			},
			[]string{"stage"},
		),
		regimeDetections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_regime_detections_total",
				Help: "Completed regime detection cycles by resulting label",
			},
			[]string{"regime"},
		),
		regimeConfidence: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketpulse_regime_confidence",
				Help: "Confidence of the regime currently in force",
			},
		),
		rateLimits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_rate_limit_decisions_total",
				Help: "Rate limiter decisions",
			},
			[]string{"result"},
		),
		errs: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_errors_total",
				Help: "Internal errors by kind",
			},
			[]string{"kind"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_operation_seconds",
				Help:    "Latency of pipeline operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
}

func (r *Recorder) RecordEventPublished(eventType string) {
	r.eventsPublished.WithLabelValues(eventType).Inc()
}

func (r *Recorder) RecordSignal(stage string) {
	r.signals.WithLabelValues(stage).Inc()
}

func (r *Recorder) RecordRegime(regime string, confidence float64) {
	r.regimeDetections.WithLabelValues(regime).Inc()
	r.regimeConfidence.Set(confidence)
}

func (r *Recorder) RecordRateLimit(result string) {
	r.rateLimits.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errs.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

var _ repository.Metrics = (*Recorder)(nil)
