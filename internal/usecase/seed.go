package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/loanledger/internal/domain"
)

// Seed customer IDs. The first loan is half paid, the second is already finished.
const (
	SeedActiveCustomerID   = "2516e61e-8da9-4a22-9a70-f8b9c01bacca"
	SeedFinishedCustomerID = "00999b75-6924-47d4-b9e9-a8a0b25ae8d6"
)

// DefaultSeedLoans returns the fixed loans the service starts with.
func DefaultSeedLoans(now time.Time) []domain.Loan {
	now = now.UTC()

	return []domain.Loan{
		{
			CustomerID:      SeedActiveCustomerID,
			ProductID:       "Home Solar System Energy Plus",
			ShopID:          "4 Privet Drive",
			TotalLoanAmount: decimal.NewFromInt(200),
			TotalLoanPayed:  decimal.NewFromInt(100),
			DailyRate:       decimal.NewFromInt(5),
			CreationDate:    now.AddDate(0, 0, -3),
		},
		{
			CustomerID:      SeedFinishedCustomerID,
			ProductID:       "Home Solar System 2000+",
			ShopID:          "Diagon Alley",
			TotalLoanAmount: decimal.NewFromInt(7000),
			TotalLoanPayed:  decimal.NewFromInt(7000),
			DailyRate:       decimal.NewFromInt(70),
			CreationDate:    now.AddDate(0, 0, -10),
		},
	}
}

// Seed stores the given loans, skipping customers that already have one.
// Returns the number of loans inserted.
func (l *LoanLedger) Seed(ctx context.Context, loans []domain.Loan) (int, error) {
	inserted := 0

	for i := range loans {
		loan := loans[i]
		if err := loan.Validate(); err != nil {
			return inserted, fmt.Errorf("invalid seed loan %q: %w", loan.CustomerID, err)
		}

		err := l.loanRepo.Create(ctx, &loan)
		if errors.Is(err, domain.ErrLoanAlreadyExists) {
			continue
		}
		if err != nil {
			return inserted, fmt.Errorf("failed to seed loan %q: %w", loan.CustomerID, err)
		}
		inserted++
	}

	return inserted, nil
}
