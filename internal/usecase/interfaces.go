package usecase

import (
	"context"
	"time"

	"github.com/iho/loanledger/internal/domain"
)

// LoanRepository defines data access for loans.
// Implementations hand out copies; mutating a returned loan never changes stored state.
type LoanRepository interface {
	// Create stores a new loan. Returns domain.ErrLoanAlreadyExists on duplicate customer IDs.
	Create(ctx context.Context, loan *domain.Loan) error
	// GetByCustomerID returns domain.ErrLoanNotFound for unknown customers.
	GetByCustomerID(ctx context.Context, customerID string) (*domain.Loan, error)
	// UpdatePayment persists the paid total and last-updated timestamp of an existing loan.
	UpdatePayment(ctx context.Context, loan *domain.Loan) error
	List(ctx context.Context, limit, offset int) ([]*domain.Loan, error)
}

// EventSender delivers the domain events produced by payment application.
type EventSender interface {
	SendLoanUpdated(ctx context.Context, event domain.LoanUpdated) error
	SendLoanFinished(ctx context.Context, event domain.LoanFinished) error
}

// PaymentRecorder observes payment outcomes. Used for metrics.
type PaymentRecorder interface {
	RecordPayment(outcome string, amount float64)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claimed key so the request can be retried.
	Release(ctx context.Context, key string) error
}
