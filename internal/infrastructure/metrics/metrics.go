package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/loanledger/internal/usecase"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Payment metrics
	PaymentsTotal *prometheus.CounterVec
	PaymentAmount prometheus.Histogram
	LoansFinished prometheus.Counter

	// Event metrics
	EventsSent        *prometheus.CounterVec
	EventSendFailures *prometheus.CounterVec
	EventSendDuration *prometheus.HistogramVec
	EventSendRetries  *prometheus.CounterVec

	// Kafka ingress metrics
	KafkaMessages *prometheus.CounterVec

	// Idempotency metrics
	IdempotencyReplays prometheus.Counter

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates all metrics and registers them with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all metrics and registers them with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PaymentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loanledger_payments_total",
				Help: "Total payments by outcome",
			},
			[]string{"outcome"},
		),
		PaymentAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loanledger_payment_amount",
			Help:    "Amounts of applied payments",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
		}),
		LoansFinished: factory.NewCounter(prometheus.CounterOpts{
			Name: "loanledger_loans_finished_total",
			Help: "Total number of loans paid off",
		}),

		EventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loanledger_events_sent_total",
				Help: "Total events delivered by type",
			},
			[]string{"event_type"},
		),
		EventSendFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loanledger_event_send_failures_total",
				Help: "Total failed event sends by type",
			},
			[]string{"event_type"},
		),
		EventSendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loanledger_event_send_duration_seconds",
				Help:    "Event send duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),
		EventSendRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loanledger_event_send_retries_total",
				Help: "Total event send retries by type",
			},
			[]string{"event_type"},
		),

		KafkaMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loanledger_kafka_messages_total",
				Help: "Consumed Kafka messages by topic and result",
			},
			[]string{"topic", "result"},
		),

		IdempotencyReplays: factory.NewCounter(prometheus.CounterOpts{
			Name: "loanledger_idempotency_replays_total",
			Help: "Requests answered from the idempotency store",
		}),

		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loanledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"path"},
		),
	}
}

// RecordPayment implements usecase.PaymentRecorder.
func (m *Metrics) RecordPayment(outcome string, amount float64) {
	m.PaymentsTotal.WithLabelValues(outcome).Inc()

	switch outcome {
	case usecase.PaymentOutcomeUpdated, usecase.PaymentOutcomeFinished, usecase.PaymentOutcomeDeliveryError:
		m.PaymentAmount.Observe(amount)
	}
	if outcome == usecase.PaymentOutcomeFinished {
		m.LoansFinished.Inc()
	}
}

// ObserveEventSend records the result of one event send.
func (m *Metrics) ObserveEventSend(eventType string, took time.Duration, err error) {
	m.EventSendDuration.WithLabelValues(eventType).Observe(took.Seconds())
	if err != nil {
		m.EventSendFailures.WithLabelValues(eventType).Inc()
		return
	}
	m.EventsSent.WithLabelValues(eventType).Inc()
}

// ObserveEventRetry counts one retry of an event send.
func (m *Metrics) ObserveEventRetry(eventType string) {
	m.EventSendRetries.WithLabelValues(eventType).Inc()
}

// ObserveKafkaMessage counts one consumed message.
func (m *Metrics) ObserveKafkaMessage(topic, result string) {
	m.KafkaMessages.WithLabelValues(topic, result).Inc()
}

// ObserveRateLimitHit counts one rejected request.
func (m *Metrics) ObserveRateLimitHit(path string) {
	m.RateLimitHits.WithLabelValues(path).Inc()
}

// ObserveIdempotencyReplay counts one replayed response.
func (m *Metrics) ObserveIdempotencyReplay() {
	m.IdempotencyReplays.Inc()
}
