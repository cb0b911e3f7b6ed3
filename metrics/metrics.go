// Package metrics defines the Prometheus collectors shared by the scorer and
// the ESearch fetcher.
//
// Every method is safe to call on a nil *Metrics, so callers that do not
// want instrumentation simply leave the field unset.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cooccur"

// Metrics holds all Prometheus collectors for the library.
type Metrics struct {
	PairsScoredTotal      prometheus.Counter
	ScoreRunsTotal        *prometheus.CounterVec
	ScoreDuration         prometheus.Histogram
	CorpusDocuments       prometheus.Gauge
	TermsRetained         *prometheus.GaugeVec
	ESearchRequestsTotal  *prometheus.CounterVec
	ESearchRequestLatency prometheus.Histogram
	ESearchIDsTotal       prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg falls
// back to prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		PairsScoredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pairs_scored_total",
				Help:      "Total number of term pairs scored.",
			},
		),
		ScoreRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "score_runs_total",
				Help:      "Total scoring runs by outcome (ok, error).",
			},
			[]string{"outcome"},
		),
		ScoreDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "score_duration_seconds",
				Help:      "Wall time of a full scoring run in seconds.",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
		),
		CorpusDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "corpus_documents",
				Help:      "Documents shared by both term classes in the latest run.",
			},
		),
		TermsRetained: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "terms_retained",
				Help:      "Terms left after corpus restriction in the latest run, by class.",
			},
			[]string{"class"},
		),
		ESearchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "esearch_requests_total",
				Help:      "ESearch requests by HTTP status code (or \"error\" for transport failures).",
			},
			[]string{"status"},
		),
		ESearchRequestLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "esearch_request_duration_seconds",
				Help:      "ESearch round-trip latency in seconds.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		ESearchIDsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "esearch_ids_total",
				Help:      "Identifiers returned by ESearch.",
			},
		),
	}

	reg.MustRegister(
		m.PairsScoredTotal,
		m.ScoreRunsTotal,
		m.ScoreDuration,
		m.CorpusDocuments,
		m.TermsRetained,
		m.ESearchRequestsTotal,
		m.ESearchRequestLatency,
		m.ESearchIDsTotal,
	)
	return m
}

// ObserveScore records a finished scoring run.
func (m *Metrics) ObserveScore(pairs int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ScoreRunsTotal.WithLabelValues("error").Inc()
		return
	}
	m.ScoreRunsTotal.WithLabelValues("ok").Inc()
	m.PairsScoredTotal.Add(float64(pairs))
	m.ScoreDuration.Observe(elapsed.Seconds())
}

// ObserveCorpus records the corpus size and the terms surviving restriction.
func (m *Metrics) ObserveCorpus(documents uint64, class0, class1 string, terms0, terms1 int) {
	if m == nil {
		return
	}
	m.CorpusDocuments.Set(float64(documents))
	m.TermsRetained.WithLabelValues(class0).Set(float64(terms0))
	m.TermsRetained.WithLabelValues(class1).Set(float64(terms1))
}

// ObserveRequest records one ESearch round trip. status is 0 for transport
// failures.
func (m *Metrics) ObserveRequest(status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.ESearchRequestsTotal.WithLabelValues(label).Inc()
	m.ESearchRequestLatency.Observe(elapsed.Seconds())
}

// ObserveIDs counts identifiers returned by one ESearch page.
func (m *Metrics) ObserveIDs(n int) {
	if m == nil {
		return
	}
	m.ESearchIDsTotal.Add(float64(n))
}
