// Package metrics exposes prometheus collectors for rule validation, tree
// search and the gRPC surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/codes"

	"github.com/solatis/choicetree/internal/rules"
	"github.com/solatis/choicetree/internal/types"
)

const namespace = "choicetree"

// Metrics holds the service collectors on a private registry.
// It satisfies rules.Observer.
type Metrics struct {
	registry *prometheus.Registry

	validations       *prometheus.CounterVec
	validationSeconds *prometheus.HistogramVec
	searches          *prometheus.CounterVec
	searchMatches     prometheus.Histogram
	rpcs              *prometheus.CounterVec
	rpcSeconds        *prometheus.HistogramVec
}

var _ rules.Observer = (*Metrics)(nil)

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Rule validations by rule type and verdict.",
		}, []string{"rule_type", "verdict"}),
		validationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Time spent validating one save attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"rule_type"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Tree searches by filter.",
		}, []string{"filter"}),
		searchMatches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_matches",
			Help:      "Matched nodes per tree search.",
			Buckets:   []float64{0, 1, 5, 20, 100, 500, 2000},
		}),
		rpcs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Handled gRPC requests by method and status code.",
		}, []string{"method", "code"}),
		rpcSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC request latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		m.validations,
		m.validationSeconds,
		m.searches,
		m.searchMatches,
		m.rpcs,
		m.rpcSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveValidation records one validation outcome.
func (m *Metrics) ObserveValidation(ruleType types.RuleType, verdict rules.Verdict, elapsed time.Duration) {
	m.validations.WithLabelValues(string(ruleType), verdict.String()).Inc()
	m.validationSeconds.WithLabelValues(string(ruleType)).Observe(elapsed.Seconds())
}

// ObserveSearch records one tree search.
func (m *Metrics) ObserveSearch(filter rules.Filter, matches int) {
	m.searches.WithLabelValues(string(filter)).Inc()
	m.searchMatches.Observe(float64(matches))
}

// ObserveRPC records one handled gRPC request.
func (m *Metrics) ObserveRPC(method string, code codes.Code, elapsed time.Duration) {
	m.rpcs.WithLabelValues(method, code.String()).Inc()
	m.rpcSeconds.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
