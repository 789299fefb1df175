package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/llm-dev-ops/governance-gateway/models"
)

// PrometheusSink exposes per-request governance metrics as Prometheus
// series. It implements dispatch.MetricsSink.
type PrometheusSink struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	costTotal       *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
}

// NewPrometheusSink creates a metrics sink with its own registry
func NewPrometheusSink() *PrometheusSink {
	sink := &PrometheusSink{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governance_requests_total",
				Help: "Total number of governed requests",
			},
			[]string{"provider", "model", "verdict"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "governance_request_duration_milliseconds",
				Help:    "End-to-end request duration in milliseconds",
				Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000},
			},
			[]string{"provider", "model"},
		),
		costTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governance_cost_dollars_total",
				Help: "Accumulated request cost in dollars",
			},
			[]string{"provider", "model", "team_id"},
		),
		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governance_tokens_total",
				Help: "Accumulated token usage",
			},
			[]string{"provider", "model", "direction"},
		),
	}

	sink.registry.MustRegister(
		sink.requestsTotal,
		sink.requestDuration,
		sink.costTotal,
		sink.tokensTotal,
	)

	return sink
}

// WriteMetric records one request's sample
func (s *PrometheusSink) WriteMetric(_ context.Context, sample *models.MetricSample) error {
	s.requestsTotal.WithLabelValues(sample.Provider, sample.Model, string(sample.Verdict)).Inc()
	s.requestDuration.WithLabelValues(sample.Provider, sample.Model).Observe(float64(sample.LatencyMs))

	if sample.Cost > 0 {
		s.costTotal.WithLabelValues(sample.Provider, sample.Model, sample.TeamID.String()).Add(sample.Cost)
	}
	if sample.InputTokens > 0 {
		s.tokensTotal.WithLabelValues(sample.Provider, sample.Model, "input").Add(float64(sample.InputTokens))
	}
	if sample.OutputTokens > 0 {
		s.tokensTotal.WithLabelValues(sample.Provider, sample.Model, "output").Add(float64(sample.OutputTokens))
	}

	return nil
}

// Handler returns the /metrics scrape handler for this sink's registry
func (s *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
