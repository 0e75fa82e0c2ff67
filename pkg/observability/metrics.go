package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	OutcomeSuccess      = "success"
	OutcomeFailure      = "failure"
	OutcomeNotConverged = "not_converged"
	OutcomeCancelled    = "cancelled"
)

// Metrics holds the Prometheus collectors of the detection service and
// optionally mirrors detection outcomes to CloudWatch.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	StepDuration      *prometheus.HistogramVec
	Detections        *prometheus.CounterVec
	DetectionSteps    prometheus.Histogram
	ContentFailures   prometheus.Counter
	SocialAPIRequests *prometheus.CounterVec
	DBOperations      *prometheus.CounterVec
	QueryDuration     *prometheus.HistogramVec

	cloudwatch *CloudWatchRecorder
}

// NewMetrics creates collectors on a private registry
func NewMetrics(namespace string, cw *CloudWatchRecorder) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "detection_step_duration_seconds",
				Help:      "Duration of one refinement step",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
			},
			[]string{"outcome"},
		),
		Detections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "detections_total",
				Help:      "Total number of detection runs by outcome",
			},
			[]string{"outcome"},
		),
		DetectionSteps: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "detection_steps",
				Help:      "Number of steps executed per detection run",
				Buckets:   prometheus.LinearBuckets(1, 2, 13),
			},
		),
		ContentFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "content_stream_failures_total",
				Help:      "Best-effort content downloads that failed",
			},
		),
		SocialAPIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "social_api_requests_total",
				Help:      "Requests sent to the social network API",
			},
			[]string{"endpoint", "status"},
		),
		DBOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_operations_total",
				Help:      "Total number of database operations",
			},
			[]string{"operation", "status"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Duration of read queries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"query", "status"},
		),
		cloudwatch: cw,
	}

	m.registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.StepDuration,
		m.Detections,
		m.DetectionSteps,
		m.ContentFailures,
		m.SocialAPIRequests,
		m.DBOperations,
		m.QueryDuration,
	)
	return m
}

// Registry exposes the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStep records one refinement step
func (m *Metrics) ObserveStep(outcome string, duration time.Duration) {
	m.StepDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveDetection records a finished detection run
func (m *Metrics) ObserveDetection(ctx context.Context, outcome string, steps int, duration time.Duration) {
	m.Detections.WithLabelValues(outcome).Inc()
	m.DetectionSteps.Observe(float64(steps))
	if m.cloudwatch != nil {
		m.cloudwatch.RecordDetection(ctx, outcome, steps, duration)
	}
}

// IncContentFailures counts a failed best-effort content download
func (m *Metrics) IncContentFailures() {
	m.ContentFailures.Inc()
}

// ObserveSocialRequest counts a social API request by endpoint and status
func (m *Metrics) ObserveSocialRequest(endpoint, status string) {
	m.SocialAPIRequests.WithLabelValues(endpoint, status).Inc()
}

// ObserveDBOperation counts a repository operation
func (m *Metrics) ObserveDBOperation(operation string, err error) {
	status := OutcomeSuccess
	if err != nil {
		status = OutcomeFailure
	}
	m.DBOperations.WithLabelValues(operation, status).Inc()
}

// ObserveHTTP records a served request
func (m *Metrics) ObserveHTTP(method, route, status string, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveQuery records a served read query
func (m *Metrics) ObserveQuery(queryType string, err error, duration time.Duration) {
	status := OutcomeSuccess
	if err != nil {
		status = OutcomeFailure
	}
	m.QueryDuration.WithLabelValues(queryType, status).Observe(duration.Seconds())
}
