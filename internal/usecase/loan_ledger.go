package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iho/loanledger/internal/domain"
)

// LoanLedger is the authoritative entry point for loan lookups and payment application.
type LoanLedger struct {
	loanRepo         LoanRepository
	sender           EventSender
	locks            *KeyedMutex
	recorder         PaymentRecorder
	logger           *slog.Logger
	now              func() time.Time
	eventSendTimeout time.Duration
}

// LedgerOption configures a LoanLedger.
type LedgerOption func(*LoanLedger)

// WithClock overrides the time source used to stamp payments and events.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *LoanLedger) { l.now = now }
}

// WithLogger sets the ledger logger.
func WithLogger(logger *slog.Logger) LedgerOption {
	return func(l *LoanLedger) { l.logger = logger }
}

// WithPaymentRecorder sets the recorder notified of every payment outcome.
func WithPaymentRecorder(recorder PaymentRecorder) LedgerOption {
	return func(l *LoanLedger) { l.recorder = recorder }
}

// WithEventSendTimeout bounds each event send. Zero disables the bound.
func WithEventSendTimeout(timeout time.Duration) LedgerOption {
	return func(l *LoanLedger) { l.eventSendTimeout = timeout }
}

// NewLoanLedger creates a new LoanLedger.
func NewLoanLedger(loanRepo LoanRepository, sender EventSender, opts ...LedgerOption) *LoanLedger {
	l := &LoanLedger{
		loanRepo:         loanRepo,
		sender:           sender,
		locks:            NewKeyedMutex(),
		recorder:         nopRecorder{},
		logger:           slog.Default(),
		now:              time.Now,
		eventSendTimeout: DefaultEventSendTimeout,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// GetLoan returns a snapshot of the customer's loan. The boolean is false when
// the customer has no loan on record; err is reserved for storage failures.
func (l *LoanLedger) GetLoan(ctx context.Context, customerID string) (domain.Loan, bool, error) {
	loan, err := l.loanRepo.GetByCustomerID(ctx, customerID)
	if errors.Is(err, domain.ErrLoanNotFound) {
		return domain.Loan{}, false, nil
	}
	if err != nil {
		return domain.Loan{}, false, err
	}

	return *loan, true, nil
}

// ActiveLoanExists reports whether the customer has an UNFINISHED loan.
// Unknown customers and finished loans both yield false.
func (l *LoanLedger) ActiveLoanExists(ctx context.Context, customerID string) (bool, error) {
	loan, found, err := l.GetLoan(ctx, customerID)
	if err != nil || !found {
		return false, err
	}

	return loan.IsActive(), nil
}

// ListLoansInput represents input for listing loans.
type ListLoansInput struct {
	Limit  int
	Offset int
}

// ListLoans lists loan snapshots with pagination.
func (l *LoanLedger) ListLoans(ctx context.Context, input ListLoansInput) ([]domain.Loan, error) {
	if input.Limit <= 0 {
		input.Limit = DefaultListLimit
	}
	if input.Limit > MaxListLimit {
		input.Limit = MaxListLimit
	}
	if input.Offset < 0 {
		input.Offset = 0
	}

	loans, err := l.loanRepo.List(ctx, input.Limit, input.Offset)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Loan, len(loans))
	for i, loan := range loans {
		result[i] = *loan
	}

	return result, nil
}

// pendingEvent holds the single event decided inside the critical section.
type pendingEvent struct {
	updated  *domain.LoanUpdated
	finished *domain.LoanFinished
}

// ApplyPayment applies a payment to the customer's active loan and emits exactly
// one event: LoanFinished when the payment completes the loan, LoanUpdated otherwise.
//
// The boolean is false, with no mutation and no event, when the customer has no
// active loan. What to do with such payments is still an open product decision;
// they are only logged and counted.
//
// If the event send fails the mutated loan is still returned, together with an
// error wrapping domain.ErrEventDeliveryUnknown. The mutation is not rolled back.
func (l *LoanLedger) ApplyPayment(ctx context.Context, payment domain.PaymentReceived) (domain.Loan, bool, error) {
	log := l.logger.With(
		slog.String("customer_id", payment.CustomerID),
		slog.String("correlation_id", payment.CorrelationID),
		slog.String("payment_id", payment.PaymentID),
	)

	if err := payment.Validate(); err != nil {
		log.WarnContext(ctx, "payment rejected", slog.String("error", err.Error()))
		l.record(PaymentOutcomeRejected, payment)
		return domain.Loan{}, false, err
	}

	loan, event, found, err := l.applyLocked(ctx, payment)
	if err != nil {
		if domain.IsRejection(err) {
			log.WarnContext(ctx, "payment rejected", slog.String("error", err.Error()))
			l.record(PaymentOutcomeRejected, payment)
		} else {
			log.ErrorContext(ctx, "failed to apply payment", slog.String("error", err.Error()))
			l.record(PaymentOutcomeError, payment)
		}
		return domain.Loan{}, false, err
	}

	if !found {
		log.InfoContext(ctx, "payment ignored: no active loan")
		l.record(PaymentOutcomeNoActiveLoan, payment)
		return domain.Loan{}, false, nil
	}

	if err := l.send(ctx, event); err != nil {
		log.ErrorContext(ctx, "event delivery unknown after payment was applied",
			slog.String("event_type", event.eventType()),
			slog.String("error", err.Error()))
		l.record(PaymentOutcomeDeliveryError, payment)
		return loan, true, fmt.Errorf("%w: %w", domain.ErrEventDeliveryUnknown, err)
	}

	outcome := PaymentOutcomeUpdated
	if event.finished != nil {
		outcome = PaymentOutcomeFinished
	}
	log.InfoContext(ctx, "payment applied",
		slog.String("event_type", event.eventType()),
		slog.String("total_loan_payed", loan.TotalLoanPayed.String()),
		slog.String("state", string(loan.State())))
	l.record(outcome, payment)

	return loan, true, nil
}

// applyLocked runs the read-modify-write for one customer under its lock.
func (l *LoanLedger) applyLocked(ctx context.Context, payment domain.PaymentReceived) (domain.Loan, pendingEvent, bool, error) {
	unlock := l.locks.Lock(payment.CustomerID)
	defer unlock()

	loan, err := l.loanRepo.GetByCustomerID(ctx, payment.CustomerID)
	if errors.Is(err, domain.ErrLoanNotFound) {
		return domain.Loan{}, pendingEvent{}, false, nil
	}
	if err != nil {
		return domain.Loan{}, pendingEvent{}, false, err
	}

	if !loan.IsActive() {
		return domain.Loan{}, pendingEvent{}, false, nil
	}

	if err := domain.ValidatePaymentFits(loan, payment.PaymentAmount); err != nil {
		return domain.Loan{}, pendingEvent{}, false, err
	}

	now := l.now().UTC()
	loan.ApplyPayment(payment.PaymentAmount, now)

	// State is derived from the post-payment balance.
	var event pendingEvent
	if loan.State() == domain.LoanStateFinished {
		finished := domain.NewLoanFinished(loan, payment.CorrelationID, now)
		event.finished = &finished
	} else {
		updated, err := domain.NewLoanUpdated(loan, payment.CorrelationID, now)
		if err != nil {
			return domain.Loan{}, pendingEvent{}, false, err
		}
		event.updated = &updated
	}

	if err := l.loanRepo.UpdatePayment(ctx, loan); err != nil {
		return domain.Loan{}, pendingEvent{}, false, fmt.Errorf("failed to persist payment: %w", err)
	}

	return *loan, event, true, nil
}

func (l *LoanLedger) send(ctx context.Context, event pendingEvent) error {
	// The balance is already mutated; a caller going away must not abort the send.
	ctx = context.WithoutCancel(ctx)
	if l.eventSendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.eventSendTimeout)
		defer cancel()
	}

	if event.finished != nil {
		return l.sender.SendLoanFinished(ctx, *event.finished)
	}
	return l.sender.SendLoanUpdated(ctx, *event.updated)
}

func (l *LoanLedger) record(outcome string, payment domain.PaymentReceived) {
	l.recorder.RecordPayment(outcome, payment.PaymentAmount.InexactFloat64())
}

func (e pendingEvent) eventType() string {
	if e.finished != nil {
		return domain.EventTypeLoanFinished
	}
	return domain.EventTypeLoanUpdated
}

type nopRecorder struct{}

func (nopRecorder) RecordPayment(string, float64) {}
