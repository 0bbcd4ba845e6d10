package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/loanledger/internal/domain"
)

// LoanResponse represents a loan in API responses.
type LoanResponse struct {
	CustomerID           string           `json:"customer_id"`
	ProductID            string           `json:"product_id"`
	ShopID               string           `json:"shop_id"`
	TotalLoanAmount      decimal.Decimal  `json:"total_loan_amount"`
	TotalLoanPayed       decimal.Decimal  `json:"total_loan_payed"`
	DailyRate            decimal.Decimal  `json:"daily_rate"`
	RemainingAmountToPay decimal.Decimal  `json:"remaining_amount_to_pay"`
	DailyUsageAllowance  *decimal.Decimal `json:"daily_usage_allowance,omitempty"`
	State                domain.LoanState `json:"state"`
	CreationDate         time.Time        `json:"creation_date"`
	LastUpdated          *time.Time       `json:"last_updated,omitempty"`
}

// LoanFromDomain converts a domain loan to a response.
func LoanFromDomain(l domain.Loan) *LoanResponse {
	resp := &LoanResponse{
		CustomerID:           l.CustomerID,
		ProductID:            l.ProductID,
		ShopID:               l.ShopID,
		TotalLoanAmount:      l.TotalLoanAmount,
		TotalLoanPayed:       l.TotalLoanPayed,
		DailyRate:            l.DailyRate,
		RemainingAmountToPay: l.RemainingAmountToPay(),
		State:                l.State(),
		CreationDate:         l.CreationDate,
	}

	if allowance, err := l.DailyUsageAllowance(); err == nil {
		resp.DailyUsageAllowance = &allowance
	}
	if !l.LastUpdated.IsZero() {
		lastUpdated := l.LastUpdated
		resp.LastUpdated = &lastUpdated
	}

	return resp
}

// LoansFromDomain converts a slice of domain loans.
func LoansFromDomain(loans []domain.Loan) []*LoanResponse {
	result := make([]*LoanResponse, len(loans))
	for i, l := range loans {
		result[i] = LoanFromDomain(l)
	}
	return result
}

// ListLoansResponse represents a page of loans.
type ListLoansResponse struct {
	Loans  []*LoanResponse `json:"loans"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ActiveLoanResponse answers whether a customer has an unfinished loan.
type ActiveLoanResponse struct {
	CustomerID string `json:"customer_id"`
	Active     bool   `json:"active"`
}

// PaymentResponse is returned after a payment was applied.
type PaymentResponse struct {
	CorrelationID   string        `json:"correlation_id"`
	EventType       string        `json:"event_type"`
	DeliveryUnknown bool          `json:"delivery_unknown,omitempty"`
	Loan            *LoanResponse `json:"loan"`
}

// PaymentFromDomain builds the response for an applied payment.
func PaymentFromDomain(loan domain.Loan, correlationID string, deliveryUnknown bool) *PaymentResponse {
	eventType := domain.EventTypeLoanUpdated
	if loan.State() == domain.LoanStateFinished {
		eventType = domain.EventTypeLoanFinished
	}

	return &PaymentResponse{
		CorrelationID:   correlationID,
		EventType:       eventType,
		DeliveryUnknown: deliveryUnknown,
		Loan:            LoanFromDomain(loan),
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
