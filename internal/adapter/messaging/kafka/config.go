// Package kafka connects the loan ledger to Kafka: payments come in on one topic,
// loan events go out on two others.
package kafka

import (
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Message headers set on produced events.
const (
	HeaderEventType     = "event_type"
	HeaderCorrelationID = "correlation_id"
)

// Config holds broker and topic settings.
type Config struct {
	Brokers           string
	ClientID          string
	GroupID           string
	PaymentsTopic     string
	LoanUpdatedTopic  string
	LoanFinishedTopic string
}

func (c Config) producerConfigMap() *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":  c.Brokers,
		"client.id":          c.ClientID,
		"acks":               "all",
		"enable.idempotence": true,
	}
}

func (c Config) consumerConfigMap() *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":  c.Brokers,
		"client.id":          c.ClientID,
		"group.id":           c.GroupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": true,
		"session.timeout.ms": 10000,
	}
}
