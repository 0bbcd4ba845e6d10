package eventsender

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/iho/loanledger/internal/domain"
	"github.com/iho/loanledger/internal/usecase"
)

// RetryObserver is told about every retried send.
type RetryObserver interface {
	ObserveEventRetry(eventType string)
}

// RetryConfig for RetryingSender.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Observer        RetryObserver
	Logger          *slog.Logger
}

// RetryingSender retries failed sends of the wrapped sender with exponential backoff.
// The caller's context bounds the whole sequence.
type RetryingSender struct {
	next usecase.EventSender
	cfg  RetryConfig
}

// NewRetryingSender wraps next.
func NewRetryingSender(next usecase.EventSender, cfg RetryConfig) *RetryingSender {
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &RetryingSender{next: next, cfg: cfg}
}

// SendLoanUpdated sends with retries.
func (s *RetryingSender) SendLoanUpdated(ctx context.Context, event domain.LoanUpdated) error {
	return s.retry(ctx, domain.EventTypeLoanUpdated, func() error {
		return s.next.SendLoanUpdated(ctx, event)
	})
}

// SendLoanFinished sends with retries.
func (s *RetryingSender) SendLoanFinished(ctx context.Context, event domain.LoanFinished) error {
	return s.retry(ctx, domain.EventTypeLoanFinished, func() error {
		return s.next.SendLoanFinished(ctx, event)
	})
}

func (s *RetryingSender) retry(ctx context.Context, eventType string, send func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialInterval
	b.MaxInterval = s.cfg.MaxInterval
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(s.cfg.MaxRetries, 0))), ctx)

	operation := func() error {
		err := send()
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		s.cfg.Logger.WarnContext(ctx, "event send failed, retrying",
			slog.String("event_type", eventType),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))
		if s.cfg.Observer != nil {
			s.cfg.Observer.ObserveEventRetry(eventType)
		}
	}

	return backoff.RetryNotify(operation, policy, notify)
}
