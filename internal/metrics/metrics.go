// Package metrics exposes narration counters in the Prometheus text format.
package metrics

import (
	"net/http"

	"github.com/dgnsrekt/aural-odyssey/internal/speech"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aural_odyssey"

// Recorder counts narration activity per controller. It satisfies
// narration.Metrics.
type Recorder struct {
	registry   *prometheus.Registry
	utterances *prometheus.CounterVec
	errors     *prometheus.CounterVec
	completed  *prometheus.CounterVec
	stale      *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry, including the Go
// runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		utterances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_issued_total",
			Help:      "Utterances handed to the speech engine.",
		}, []string{"controller"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Speech engine errors that stopped narration, by reason.",
		}, []string{"controller", "reason"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narrations_completed_total",
			Help:      "Narrations that reached the end of their last section.",
		}, []string{"controller"}),
		stale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_events_total",
			Help:      "Engine callbacks discarded because their utterance was abandoned.",
		}, []string{"controller"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.utterances,
		r.errors,
		r.completed,
		r.stale,
	)
	return r
}

func (r *Recorder) UtteranceIssued(controller string) {
	r.utterances.WithLabelValues(controller).Inc()
}

func (r *Recorder) EngineError(controller string, reason speech.Reason) {
	label := string(reason)
	if label == "" {
		label = "none"
	}
	r.errors.WithLabelValues(controller, label).Inc()
}

func (r *Recorder) NarrationCompleted(controller string) {
	r.completed.WithLabelValues(controller).Inc()
}

func (r *Recorder) StaleEvent(controller string) {
	r.stale.WithLabelValues(controller).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
