package eventsender

import (
	"context"
	"time"

	"github.com/iho/loanledger/internal/domain"
	"github.com/iho/loanledger/internal/usecase"
)

// SendObserver records the outcome of a send.
type SendObserver interface {
	ObserveEventSend(eventType string, took time.Duration, err error)
}

// InstrumentedSender reports every send of the wrapped sender to an observer.
type InstrumentedSender struct {
	next     usecase.EventSender
	observer SendObserver
	now      func() time.Time
}

// NewInstrumentedSender wraps next.
func NewInstrumentedSender(next usecase.EventSender, observer SendObserver) *InstrumentedSender {
	return &InstrumentedSender{next: next, observer: observer, now: time.Now}
}

// SendLoanUpdated forwards and observes.
func (s *InstrumentedSender) SendLoanUpdated(ctx context.Context, event domain.LoanUpdated) error {
	start := s.now()
	err := s.next.SendLoanUpdated(ctx, event)
	s.observer.ObserveEventSend(domain.EventTypeLoanUpdated, s.now().Sub(start), err)
	return err
}

// SendLoanFinished forwards and observes.
func (s *InstrumentedSender) SendLoanFinished(ctx context.Context, event domain.LoanFinished) error {
	start := s.now()
	err := s.next.SendLoanFinished(ctx, event)
	s.observer.ObserveEventSend(domain.EventTypeLoanFinished, s.now().Sub(start), err)
	return err
}
