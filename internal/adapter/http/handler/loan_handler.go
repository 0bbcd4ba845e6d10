package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/loanledger/internal/adapter/http/dto"
	"github.com/iho/loanledger/internal/domain"
	"github.com/iho/loanledger/internal/usecase"
)

// LoanService defines the behavior needed by LoanHandler.
type LoanService interface {
	GetLoan(ctx context.Context, customerID string) (domain.Loan, bool, error)
	ActiveLoanExists(ctx context.Context, customerID string) (bool, error)
	ListLoans(ctx context.Context, input usecase.ListLoansInput) ([]domain.Loan, error)
}

// LoanHandler handles loan lookups.
type LoanHandler struct {
	loans LoanService
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(loans LoanService) *LoanHandler {
	return &LoanHandler{loans: loans}
}

// Get returns the customer's loan, or 404 when there is none.
func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerId")
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "missing customer ID", "")
		return
	}

	loan, found, err := h.loans.GetLoan(r.Context(), customerID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get loan", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "loan not found", customerID)
		return
	}

	writeJSON(w, http.StatusOK, dto.LoanFromDomain(loan))
}

// Active reports whether the customer has an unfinished loan.
func (h *LoanHandler) Active(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerId")

	active, err := h.loans.ActiveLoanExists(r.Context(), customerID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to check loan", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ActiveLoanResponse{CustomerID: customerID, Active: active})
}

// List lists loans.
func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	input := usecase.ListLoansInput{
		Limit:  parseIntQuery(r, "limit", usecase.DefaultListLimit),
		Offset: parseIntQuery(r, "offset", 0),
	}

	loans, err := h.loans.ListLoans(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list loans", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ListLoansResponse{
		Loans:  dto.LoansFromDomain(loans),
		Limit:  input.Limit,
		Offset: input.Offset,
	})
}
