package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Confirmation outcomes.
const (
	OutcomeConfirmed        = "confirmed"
	OutcomeReplayed         = "replayed"
	OutcomeSignatureInvalid = "signature_invalid"
	OutcomeOrderNotFound    = "order_not_found"
	OutcomeConflict         = "conflict"
	OutcomeCreated          = "created"
	OutcomeError            = "error"
	OutcomeOK               = "ok"
)

// Confirmation paths.
const (
	PathClientCallback = "client_callback"
	PathWebhook        = "webhook"
)

// BookingMetrics tracks the payment reconciliation pipeline.
type BookingMetrics struct {
	confirmations     *prometheus.CounterVec
	signatureFailures *prometheus.CounterVec
	fallbacks         *prometheus.CounterVec
	gatewayLatency    *prometheus.HistogramVec
}

// NewBookingMetrics registers booking metrics on reg. A nil registerer keeps
// them unexported.
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	f := promauto.With(reg)
	return &BookingMetrics{
		confirmations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stockyard_booking_confirmations_total",
			Help: "Booking confirmation attempts by path and outcome.",
		}, []string{"path", "outcome"}),
		signatureFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stockyard_signature_failures_total",
			Help: "Gateway signatures that failed verification.",
		}, []string{"path"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stockyard_payment_fallbacks_total",
			Help: "Payment fallback inquiries by outcome.",
		}, []string{"outcome"}),
		gatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockyard_gateway_request_duration_seconds",
			Help:    "Latency of payment gateway calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "outcome"}),
	}
}

// ObserveConfirmation counts one confirmation attempt.
func (m *BookingMetrics) ObserveConfirmation(path, outcome string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(normalizeLabel(path), normalizeLabel(outcome)).Inc()
}

// IncSignatureFailure counts a rejected gateway signature.
func (m *BookingMetrics) IncSignatureFailure(path string) {
	if m == nil {
		return
	}
	m.signatureFailures.WithLabelValues(normalizeLabel(path)).Inc()
}

// ObserveFallback counts one fallback attempt.
func (m *BookingMetrics) ObserveFallback(outcome string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveGatewayCall records latency for a gateway operation.
func (m *BookingMetrics) ObserveGatewayCall(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Observe(duration.Seconds())
}
