package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/iho/loanledger/internal/domain"
)

const flushTimeoutMs = 5000

// lowLevelProducer is the part of *kafka.Producer the EventProducer uses.
type lowLevelProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

type producerFactory func(cfg *kafka.ConfigMap) (lowLevelProducer, error)

func defaultProducerFactory(cfg *kafka.ConfigMap) (lowLevelProducer, error) {
	return kafka.NewProducer(cfg)
}

// EventProducer implements usecase.EventSender by publishing JSON events.
// Messages are keyed by customer ID so events of one loan stay ordered.
type EventProducer struct {
	producer      lowLevelProducer
	updatedTopic  string
	finishedTopic string
}

// NewEventProducer connects a producer to the configured brokers.
func NewEventProducer(cfg Config) (*EventProducer, error) {
	return newEventProducerWithFactory(cfg, defaultProducerFactory)
}

func newEventProducerWithFactory(cfg Config, factory producerFactory) (*EventProducer, error) {
	if cfg.LoanUpdatedTopic == "" || cfg.LoanFinishedTopic == "" {
		return nil, errors.New("kafka: loan event topics must be set")
	}

	producer, err := factory(cfg.producerConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &EventProducer{
		producer:      producer,
		updatedTopic:  cfg.LoanUpdatedTopic,
		finishedTopic: cfg.LoanFinishedTopic,
	}, nil
}

// SendLoanUpdated publishes a LoanUpdated event and waits for its delivery report.
func (p *EventProducer) SendLoanUpdated(ctx context.Context, event domain.LoanUpdated) error {
	return p.publish(ctx, p.updatedTopic, domain.EventTypeLoanUpdated, event.CustomerID, event.CorrelationID, event)
}

// SendLoanFinished publishes a LoanFinished event and waits for its delivery report.
func (p *EventProducer) SendLoanFinished(ctx context.Context, event domain.LoanFinished) error {
	return p.publish(ctx, p.finishedTopic, domain.EventTypeLoanFinished, event.CustomerID, event.CorrelationID, event)
}

func (p *EventProducer) publish(ctx context.Context, topic, eventType, key, correlationID string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", eventType, err)
	}

	// Buffered so a late report never blocks librdkafka after we stop waiting.
	deliveryChan := make(chan kafka.Event, 1)

	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          payload,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(eventType)},
			{Key: HeaderCorrelationID, Value: []byte(correlationID)},
		},
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("failed to produce %s: %w", eventType, err)
	}

	select {
	case ev := <-deliveryChan:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %T", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("delivery of %s failed: %w", eventType, m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s delivery report: %w", eventType, ctx.Err())
	}
}

// Close flushes outstanding messages and closes the producer.
func (p *EventProducer) Close() {
	p.producer.Flush(flushTimeoutMs)
	p.producer.Close()
}
