package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanState is the repayment state derived from a loan's balance.
type LoanState string

const (
	LoanStateFinished   LoanState = "FINISHED"
	LoanStateUnfinished LoanState = "UNFINISHED"
)

// Loan represents one customer's credit line and its repayment progress.
type Loan struct {
	CustomerID      string
	ProductID       string
	ShopID          string
	TotalLoanAmount decimal.Decimal
	TotalLoanPayed  decimal.Decimal
	DailyRate       decimal.Decimal
	CreationDate    time.Time
	LastUpdated     time.Time
}

// State reports FINISHED only when the paid total equals the loan amount exactly.
func (l *Loan) State() LoanState {
	if l.TotalLoanPayed.Equal(l.TotalLoanAmount) {
		return LoanStateFinished
	}
	return LoanStateUnfinished
}

// IsActive reports whether the loan still accepts payments.
func (l *Loan) IsActive() bool {
	return l.State() == LoanStateUnfinished
}

// DailyUsageAllowance returns ceil(TotalLoanPayed / DailyRate).
func (l *Loan) DailyUsageAllowance() (decimal.Decimal, error) {
	if !l.DailyRate.IsPositive() {
		return decimal.Zero, ErrInvalidDailyRate
	}
	return l.TotalLoanPayed.Div(l.DailyRate).Ceil(), nil
}

// RemainingAmountToPay returns the outstanding balance. Negative when overpaid.
func (l *Loan) RemainingAmountToPay() decimal.Decimal {
	return l.TotalLoanAmount.Sub(l.TotalLoanPayed)
}

// ApplyPayment adds amount to the paid total and stamps LastUpdated.
// The amount is not validated here; callers decide what they accept.
func (l *Loan) ApplyPayment(amount decimal.Decimal, at time.Time) {
	l.LastUpdated = at
	l.TotalLoanPayed = l.TotalLoanPayed.Add(amount)
}

// Validate checks the invariants a loan must satisfy before it is stored.
func (l *Loan) Validate() error {
	if err := ValidateCustomerID(l.CustomerID); err != nil {
		return err
	}
	if l.TotalLoanAmount.IsNegative() || l.TotalLoanPayed.IsNegative() {
		return ErrInvalidLoan
	}
	if !l.DailyRate.IsPositive() {
		return ErrInvalidDailyRate
	}
	return nil
}
