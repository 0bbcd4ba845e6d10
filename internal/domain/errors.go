package domain

import "errors"

var (
	// Loan errors
	ErrLoanNotFound      = errors.New("loan not found")
	ErrLoanAlreadyExists = errors.New("loan already exists")
	ErrInvalidLoan       = errors.New("loan amounts must not be negative")
	ErrInvalidDailyRate  = errors.New("daily rate must be positive")

	// Payment errors
	ErrInvalidCustomerID = errors.New("invalid customer ID")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrOverpayment       = errors.New("payment exceeds remaining amount to pay")

	// Event errors
	ErrEventDeliveryUnknown = errors.New("event delivery unknown")
)

// IsRejection reports whether err means the payment or loan data was refused as invalid.
// Rejected payments leave the balance untouched.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidCustomerID) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrOverpayment) ||
		errors.Is(err, ErrInvalidDailyRate) ||
		errors.Is(err, ErrInvalidLoan)
}
