package eventsender

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"github.com/iho/loanledger/internal/domain"
	"github.com/iho/loanledger/internal/usecase"
	"github.com/iho/loanledger/internal/usecase/mocks"
)

var (
	_ usecase.EventSender = (*LogSender)(nil)
	_ usecase.EventSender = (*RetryingSender)(nil)
	_ usecase.EventSender = (*InstrumentedSender)(nil)
)

func updatedEvent() domain.LoanUpdated {
	return domain.LoanUpdated{
		CustomerID:          "c1",
		DailyUsageAllowance: decimal.NewFromInt(38),
		CorrelationID:       "corr-1",
		EventDate:           time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func finishedEvent() domain.LoanFinished {
	return domain.LoanFinished{CustomerID: "c1", CorrelationID: "corr-1"}
}

func TestLogSenderWritesPayload(t *testing.T) {
	var buf bytes.Buffer
	sender := NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))

	if err := sender.SendLoanUpdated(context.Background(), updatedEvent()); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := sender.SendLoanFinished(context.Background(), finishedEvent()); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{`"event_type":"loan.updated"`, `"event_type":"loan.finished"`, `daily_usage_allowance`, `"correlation_id":"corr-1"`} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %s in %q", want, output)
		}
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	sends   map[string]int
	fails   map[string]int
	retries map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{sends: map[string]int{}, fails: map[string]int{}, retries: map[string]int{}}
}

func (o *recordingObserver) ObserveEventSend(eventType string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.fails[eventType]++
		return
	}
	o.sends[eventType]++
}

func (o *recordingObserver) ObserveEventRetry(eventType string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries[eventType]++
}

func fastRetryConfig(maxRetries int, observer RetryObserver) RetryConfig {
	return RetryConfig{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Observer:        observer,
		Logger:          slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
}

func TestRetryingSenderRecovers(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockEventSender(ctrl)
	observer := newRecordingObserver()

	gomock.InOrder(
		next.EXPECT().SendLoanUpdated(gomock.Any(), updatedEvent()).Return(errors.New("broker down")),
		next.EXPECT().SendLoanUpdated(gomock.Any(), updatedEvent()).Return(nil),
	)

	sender := NewRetryingSender(next, fastRetryConfig(3, observer))

	if err := sender.SendLoanUpdated(context.Background(), updatedEvent()); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if observer.retries[domain.EventTypeLoanUpdated] != 1 {
		t.Fatalf("expected one retry, got %d", observer.retries[domain.EventTypeLoanUpdated])
	}
}

func TestRetryingSenderGivesUp(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockEventSender(ctrl)
	sendErr := errors.New("broker down")

	next.EXPECT().SendLoanFinished(gomock.Any(), gomock.Any()).Return(sendErr).Times(3)

	sender := NewRetryingSender(next, fastRetryConfig(2, nil))

	err := sender.SendLoanFinished(context.Background(), finishedEvent())
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected send error, got %v", err)
	}
}

func TestRetryingSenderZeroRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockEventSender(ctrl)

	next.EXPECT().SendLoanUpdated(gomock.Any(), gomock.Any()).Return(errors.New("nope")).Times(1)

	sender := NewRetryingSender(next, fastRetryConfig(0, nil))

	if err := sender.SendLoanUpdated(context.Background(), updatedEvent()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRetryingSenderStopsOnDeadline(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockEventSender(ctrl)

	next.EXPECT().SendLoanUpdated(gomock.Any(), gomock.Any()).Return(context.DeadlineExceeded).Times(1)

	sender := NewRetryingSender(next, fastRetryConfig(5, nil))

	err := sender.SendLoanUpdated(context.Background(), updatedEvent())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestInstrumentedSenderObserves(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockEventSender(ctrl)
	observer := newRecordingObserver()

	next.EXPECT().SendLoanUpdated(gomock.Any(), gomock.Any()).Return(nil)
	next.EXPECT().SendLoanFinished(gomock.Any(), gomock.Any()).Return(errors.New("boom"))

	sender := NewInstrumentedSender(next, observer)

	if err := sender.SendLoanUpdated(context.Background(), updatedEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sender.SendLoanFinished(context.Background(), finishedEvent()); err == nil {
		t.Fatalf("expected error to propagate")
	}

	if observer.sends[domain.EventTypeLoanUpdated] != 1 || observer.fails[domain.EventTypeLoanFinished] != 1 {
		t.Fatalf("unexpected observations: sends=%v fails=%v", observer.sends, observer.fails)
	}
}
