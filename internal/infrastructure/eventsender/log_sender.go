// Package eventsender holds EventSender implementations that do not need a broker,
// plus decorators adding retries and metrics to any sender.
package eventsender

import (
	"context"
	"log/slog"

	jsoniter "github.com/json-iterator/go"

	"github.com/iho/loanledger/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LogSender delivers events by logging them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// SendLoanUpdated logs a LoanUpdated event.
func (s *LogSender) SendLoanUpdated(ctx context.Context, event domain.LoanUpdated) error {
	return s.log(ctx, domain.EventTypeLoanUpdated, event.CustomerID, event.CorrelationID, event)
}

// SendLoanFinished logs a LoanFinished event.
func (s *LogSender) SendLoanFinished(ctx context.Context, event domain.LoanFinished) error {
	return s.log(ctx, domain.EventTypeLoanFinished, event.CustomerID, event.CorrelationID, event)
}

func (s *LogSender) log(ctx context.Context, eventType, customerID, correlationID string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "EVENT SENT",
		slog.String("event_type", eventType),
		slog.String("customer_id", customerID),
		slog.String("correlation_id", correlationID),
		slog.String("payload", string(payload)))

	return nil
}
