package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxCustomerIDLength = 64
	MaxPaymentAmount    = "1000000000" // 1 billion
	MinPaymentAmount    = "0.01"
)

var (
	maxPaymentAmount = decimal.RequireFromString(MaxPaymentAmount)
	minPaymentAmount = decimal.RequireFromString(MinPaymentAmount)
)

// ValidateCustomerID validates a customer identifier. IDs are opaque, so only
// emptiness, length and stray whitespace are checked.
func ValidateCustomerID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: customer ID cannot be empty", ErrInvalidCustomerID)
	}

	if id != strings.TrimSpace(id) {
		return fmt.Errorf("%w: customer ID has surrounding whitespace", ErrInvalidCustomerID)
	}

	if len(id) > MaxCustomerIDLength {
		return fmt.Errorf("%w: customer ID exceeds %d characters", ErrInvalidCustomerID, MaxCustomerIDLength)
	}

	return nil
}

// ValidatePaymentAmount validates a payment amount.
func ValidatePaymentAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	if amount.LessThan(minPaymentAmount) {
		return fmt.Errorf("%w: minimum is %s", ErrInvalidAmount, MinPaymentAmount)
	}

	if amount.GreaterThan(maxPaymentAmount) {
		return fmt.Errorf("%w: maximum is %s", ErrInvalidAmount, MaxPaymentAmount)
	}

	return nil
}

// ValidatePaymentFits rejects payments larger than what is left on the loan.
func ValidatePaymentFits(loan *Loan, amount decimal.Decimal) error {
	remaining := loan.RemainingAmountToPay()
	if amount.GreaterThan(remaining) {
		return fmt.Errorf("%w: remaining %s, got %s", ErrOverpayment, remaining, amount)
	}
	return nil
}
