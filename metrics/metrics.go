package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "penaltysearch"

// Outcome labels for completed searches.
const (
	OutcomeGrounded = "grounded"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Completed searches by outcome.",
		}, []string{"outcome"}),
		Attempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_attempts_total",
			Help:      "Calls made to the search service, including retries.",
		}),
		Ungrounded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ungrounded_answers_total",
			Help:      "Answers returned without any cited source.",
		}),
		AttemptDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_attempt_duration_seconds",
			Help:      "Duration of a single call to the search service.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
	}
}

type Metrics struct {
	Searches        *prometheus.CounterVec
	Attempts        prometheus.Counter
	Ungrounded      prometheus.Counter
	AttemptDuration prometheus.Histogram
}

// ObserveAttempt records a single call to the search service.
func (m *Metrics) ObserveAttempt(d time.Duration) {
	if m == nil {
		return
	}
	m.Attempts.Inc()
	m.AttemptDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveUngrounded() {
	if m == nil {
		return
	}
	m.Ungrounded.Inc()
}

func (m *Metrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(outcome).Inc()
}

// Handler serves the metrics held by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
