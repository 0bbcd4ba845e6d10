// Package memory holds the process-lifetime loan store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/iho/loanledger/internal/domain"
)

// LoanRepository is an in-memory implementation of usecase.LoanRepository.
// Loans are copied on the way in and out, so callers never share state with the store.
type LoanRepository struct {
	mu    sync.RWMutex
	loans map[string]domain.Loan
}

// NewLoanRepository creates an empty LoanRepository.
func NewLoanRepository() *LoanRepository {
	return &LoanRepository{loans: make(map[string]domain.Loan)}
}

// Create stores a new loan.
func (r *LoanRepository) Create(_ context.Context, loan *domain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.loans[loan.CustomerID]; ok {
		return domain.ErrLoanAlreadyExists
	}
	r.loans[loan.CustomerID] = *loan

	return nil
}

// GetByCustomerID returns a copy of the customer's loan.
func (r *LoanRepository) GetByCustomerID(_ context.Context, customerID string) (*domain.Loan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loan, ok := r.loans[customerID]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}

	return &loan, nil
}

// UpdatePayment overwrites the paid total and last-updated timestamp.
func (r *LoanRepository) UpdatePayment(_ context.Context, loan *domain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.loans[loan.CustomerID]
	if !ok {
		return domain.ErrLoanNotFound
	}
	stored.TotalLoanPayed = loan.TotalLoanPayed
	stored.LastUpdated = loan.LastUpdated
	r.loans[loan.CustomerID] = stored

	return nil
}

// List returns loans ordered by customer ID.
func (r *LoanRepository) List(_ context.Context, limit, offset int) ([]*domain.Loan, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.loans))
	for id := range r.loans {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if offset >= len(ids) {
		r.mu.RUnlock()
		return []*domain.Loan{}, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	result := make([]*domain.Loan, 0, len(ids))
	for _, id := range ids {
		loan := r.loans[id]
		result = append(result, &loan)
	}
	r.mu.RUnlock()

	return result, nil
}
