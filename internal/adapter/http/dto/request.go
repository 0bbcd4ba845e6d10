package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/loanledger/internal/domain"
)

// ApplyPaymentRequest represents a payment submitted over HTTP.
type ApplyPaymentRequest struct {
	PaymentID     string          `json:"payment_id,omitempty"`
	CustomerID    string          `json:"customer_id"`
	PhoneNumber   string          `json:"phone_number,omitempty"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	EventDate     *time.Time      `json:"event_date,omitempty"`
}

// ToDomain converts the request to a PaymentReceived event.
// now is used when the request carries no event date.
func (r *ApplyPaymentRequest) ToDomain(now time.Time) domain.PaymentReceived {
	eventDate := now
	if r.EventDate != nil {
		eventDate = *r.EventDate
	}

	return domain.PaymentReceived{
		PaymentID:     r.PaymentID,
		CustomerID:    r.CustomerID,
		PhoneNumber:   r.PhoneNumber,
		PaymentAmount: r.PaymentAmount,
		CorrelationID: r.CorrelationID,
		EventDate:     eventDate.UTC(),
	}
}

// PaginationRequest represents pagination parameters.
type PaginationRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
