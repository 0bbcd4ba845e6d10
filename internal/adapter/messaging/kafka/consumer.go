package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/iho/loanledger/internal/domain"
	"github.com/iho/loanledger/internal/infrastructure/logging"
	"github.com/iho/loanledger/internal/usecase"
)

const pollTimeout = 500 * time.Millisecond

// Consume results reported to MessageObserver.
const (
	ResultApplied         = "applied"
	ResultNoActiveLoan    = "no_active_loan"
	ResultRejected        = "rejected"
	ResultMalformed       = "malformed"
	ResultDeliveryUnknown = "delivery_unknown"
	ResultError           = "error"
)

// lowLevelConsumer is the part of *kafka.Consumer the PaymentConsumer uses.
type lowLevelConsumer interface {
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	Close() error
}

type consumerFactory func(cfg *kafka.ConfigMap) (lowLevelConsumer, error)

func defaultConsumerFactory(cfg *kafka.ConfigMap) (lowLevelConsumer, error) {
	return kafka.NewConsumer(cfg)
}

// PaymentApplier applies an inbound payment. Implemented by usecase.LoanLedger.
type PaymentApplier interface {
	ApplyPayment(ctx context.Context, payment domain.PaymentReceived) (domain.Loan, bool, error)
}

// MessageObserver counts consumed messages.
type MessageObserver interface {
	ObserveKafkaMessage(topic, result string)
}

// PaymentConsumer reads PaymentReceived messages and routes them to the ledger.
// Offsets are committed automatically, so a message is handled at most once per group.
type PaymentConsumer struct {
	consumer lowLevelConsumer
	topic    string
	applier  PaymentApplier
	idGen    usecase.IDGenerator
	observer MessageObserver
	logger   *slog.Logger
}

// ConsumerOption configures a PaymentConsumer.
type ConsumerOption func(*PaymentConsumer)

// WithMessageObserver sets the observer of consumed messages.
func WithMessageObserver(o MessageObserver) ConsumerOption {
	return func(c *PaymentConsumer) { c.observer = o }
}

// WithConsumerLogger sets the consumer logger.
func WithConsumerLogger(l *slog.Logger) ConsumerOption {
	return func(c *PaymentConsumer) { c.logger = l }
}

// NewPaymentConsumer connects a consumer to the configured brokers.
// idGen mints correlation IDs for payments that arrive without one.
func NewPaymentConsumer(cfg Config, applier PaymentApplier, idGen usecase.IDGenerator, opts ...ConsumerOption) (*PaymentConsumer, error) {
	return newPaymentConsumerWithFactory(cfg, applier, idGen, defaultConsumerFactory, opts...)
}

func newPaymentConsumerWithFactory(
	cfg Config,
	applier PaymentApplier,
	idGen usecase.IDGenerator,
	factory consumerFactory,
	opts ...ConsumerOption,
) (*PaymentConsumer, error) {
	if cfg.PaymentsTopic == "" || cfg.GroupID == "" {
		return nil, errors.New("kafka: payments topic and group id must be set")
	}

	consumer, err := factory(cfg.consumerConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	c := &PaymentConsumer{
		consumer: consumer,
		topic:    cfg.PaymentsTopic,
		applier:  applier,
		idGen:    idGen,
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Run consumes until ctx is cancelled or the client reports a fatal error.
// The consumer is closed on return.
func (c *PaymentConsumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.consumer.Close(); err != nil {
			c.logger.Warn("failed to close kafka consumer", slog.String("error", err.Error()))
		}
	}()

	if err := c.consumer.SubscribeTopics([]string{c.topic}, nil); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.topic, err)
	}

	c.logger.Info("payment consumer started", slog.String("topic", c.topic))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("payment consumer shutting down")
			return nil
		default:
		}

		msg, err := c.consumer.ReadMessage(pollTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) {
				if kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				if kerr.IsFatal() {
					return fmt.Errorf("fatal kafka error: %w", err)
				}
			}
			c.logger.Warn("kafka read failed", slog.String("error", err.Error()))
			continue
		}

		c.handle(ctx, msg)
	}
}

// handle processes one message. Errors are logged and counted; they never stop the loop.
func (c *PaymentConsumer) handle(ctx context.Context, msg *kafka.Message) {
	var payment domain.PaymentReceived
	if err := json.Unmarshal(msg.Value, &payment); err != nil {
		c.logger.WarnContext(ctx, "skipping malformed payment message",
			slog.String("partition_offset", msg.TopicPartition.String()),
			slog.String("error", err.Error()))
		c.observer.ObserveKafkaMessage(c.topic, ResultMalformed)
		return
	}

	if payment.CorrelationID == "" {
		payment.CorrelationID = headerValue(msg, HeaderCorrelationID)
	}
	if payment.CorrelationID == "" {
		payment.CorrelationID = c.idGen.Generate()
	}
	if payment.EventDate.IsZero() {
		payment.EventDate = msg.Timestamp
	}

	ctx = logging.WithCorrelationID(ctx, payment.CorrelationID)

	_, found, err := c.applier.ApplyPayment(ctx, payment)
	switch {
	case err == nil && found:
		c.observer.ObserveKafkaMessage(c.topic, ResultApplied)
	case err == nil:
		c.observer.ObserveKafkaMessage(c.topic, ResultNoActiveLoan)
	case errors.Is(err, domain.ErrEventDeliveryUnknown):
		c.observer.ObserveKafkaMessage(c.topic, ResultDeliveryUnknown)
	case domain.IsRejection(err):
		c.observer.ObserveKafkaMessage(c.topic, ResultRejected)
	default:
		c.logger.ErrorContext(ctx, "failed to apply payment from kafka",
			slog.String("customer_id", payment.CustomerID),
			slog.String("error", err.Error()))
		c.observer.ObserveKafkaMessage(c.topic, ResultError)
	}
}

func headerValue(msg *kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

type nopObserver struct{}

func (nopObserver) ObserveKafkaMessage(string, string) {}
