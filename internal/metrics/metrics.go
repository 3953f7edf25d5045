// Package metrics exposes Prometheus counters for issuance, chain
// validation and the HTTP API. Every Record method is safe on a nil
// *Metrics, so callers without a registry can skip instrumentation.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hermod"

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	certificatesIssued *prometheus.CounterVec
	issuanceFailures   *prometheus.CounterVec
	signDuration       *prometheus.HistogramVec
	chainValidations   *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        prometheus.Gauge
}

// New creates the collectors and registers them on reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		certificatesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_issued_total",
			Help:      "Certificates issued, by profile and certificate type.",
		}, []string{"profile", "type"}),
		issuanceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issuance_failures_total",
			Help:      "Rejected issuance requests, by reason.",
		}, []string{"reason"}),
		signDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sign_duration_seconds",
			Help:      "Time spent signing a certificate, by signature scheme.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"scheme"}),
		chainValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_validations_total",
			Help:      "Chain validations, by result.",
		}, []string{"result"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests processed, by method, route and status.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency, by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "HTTP requests currently being served.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.certificatesIssued, m.issuanceFailures, m.signDuration, m.chainValidations,
		m.httpRequestsTotal, m.httpRequestDuration, m.httpInflight,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return nil, errors.New("metrics: registry already holds hermod collectors")
			}
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordIssued counts one issued certificate and its signing time.
func (m *Metrics) RecordIssued(profile, certType, scheme string, took time.Duration) {
	if m == nil {
		return
	}
	m.certificatesIssued.WithLabelValues(profile, certType).Inc()
	m.signDuration.WithLabelValues(scheme).Observe(took.Seconds())
}

// RecordIssuanceFailure counts one rejected request.
func (m *Metrics) RecordIssuanceFailure(reason string) {
	if m == nil {
		return
	}
	m.issuanceFailures.WithLabelValues(reason).Inc()
}

// RecordValidation counts one chain validation.
func (m *Metrics) RecordValidation(valid bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.chainValidations.WithLabelValues(result).Inc()
}

// InflightInc marks the start of an HTTP request.
func (m *Metrics) InflightInc() {
	if m != nil {
		m.httpInflight.Inc()
	}
}

// InflightDec marks the end of an HTTP request.
func (m *Metrics) InflightDec() {
	if m != nil {
		m.httpInflight.Dec()
	}
}

// RecordHTTP counts one finished HTTP request. path must be the route
// pattern, not the raw URL.
func (m *Metrics) RecordHTTP(method, path string, status int, took time.Duration) {
	if m == nil {
		return
	}
	if status == 0 {
		status = http.StatusOK
	}
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(took.Seconds())
}
