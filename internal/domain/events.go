package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypePaymentReceived = "payment.received"
	EventTypeLoanUpdated     = "loan.updated"
	EventTypeLoanFinished    = "loan.finished"
)

// PaymentReceived is the inbound notification that a customer paid towards a loan.
type PaymentReceived struct {
	PaymentID     string          `json:"payment_id"`
	CustomerID    string          `json:"customer_id"`
	PhoneNumber   string          `json:"phone_number,omitempty"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	CorrelationID string          `json:"correlation_id"`
	EventDate     time.Time       `json:"event_date"`
}

// Validate checks the payment before it reaches a loan.
func (p *PaymentReceived) Validate() error {
	if err := ValidateCustomerID(p.CustomerID); err != nil {
		return err
	}
	return ValidatePaymentAmount(p.PaymentAmount)
}

// LoanUpdated is emitted when a payment leaves the loan unfinished.
type LoanUpdated struct {
	CustomerID          string          `json:"customer_id"`
	DailyUsageAllowance decimal.Decimal `json:"daily_usage_allowance"`
	CorrelationID       string          `json:"correlation_id"`
	EventDate           time.Time       `json:"event_date"`
}

// LoanFinished is emitted when a payment completes the loan.
type LoanFinished struct {
	CustomerID    string    `json:"customer_id"`
	CorrelationID string    `json:"correlation_id"`
	EventDate     time.Time `json:"event_date"`
}

// NewLoanUpdated builds a LoanUpdated event for the loan's current allowance.
func NewLoanUpdated(loan *Loan, correlationID string, at time.Time) (LoanUpdated, error) {
	allowance, err := loan.DailyUsageAllowance()
	if err != nil {
		return LoanUpdated{}, err
	}

	return LoanUpdated{
		CustomerID:          loan.CustomerID,
		DailyUsageAllowance: allowance,
		CorrelationID:       correlationID,
		EventDate:           at.UTC(),
	}, nil
}

// NewLoanFinished builds a LoanFinished event.
func NewLoanFinished(loan *Loan, correlationID string, at time.Time) LoanFinished {
	return LoanFinished{
		CustomerID:    loan.CustomerID,
		CorrelationID: correlationID,
		EventDate:     at.UTC(),
	}
}
