package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/loanledger/internal/domain"
	"github.com/iho/loanledger/internal/usecase"
)

var _ usecase.LoanRepository = (*LoanRepository)(nil)

var loanColumns = []string{
	"customer_id", "product_id", "shop_id", "total_loan_amount", "total_loan_payed",
	"daily_rate", "creation_date", "last_updated",
}

func newMockRepo(t *testing.T) (*LoanRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	return NewLoanRepository(mock, fastRetrier()), mock
}

func testLoan() *domain.Loan {
	return &domain.Loan{
		CustomerID:      "c1",
		ProductID:       "Home Solar System 2000+",
		ShopID:          "Diagon Alley",
		TotalLoanAmount: decimal.NewFromInt(7000),
		TotalLoanPayed:  decimal.RequireFromString("6999.99"),
		DailyRate:       decimal.NewFromInt(70),
		CreationDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLoanRepository_Create(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(pgxmock.PgxPoolIface)
		wantErr error
	}{
		{
			name: "inserted",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("INSERT INTO loans").
					WithArgs("c1", "Home Solar System 2000+", "Diagon Alley",
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "duplicate",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("INSERT INTO loans").
					WillReturnResult(pgxmock.NewResult("INSERT", 0))
			},
			wantErr: domain.ErrLoanAlreadyExists,
		},
		{
			name: "retried after deadlock",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("INSERT INTO loans").
					WillReturnError(&pgconn.PgError{Code: pgErrDeadlock})
				mock.ExpectExec("INSERT INTO loans").
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			tt.setup(mock)

			err := repo.Create(context.Background(), testLoan())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestLoanRepository_GetByCustomerID(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM loans WHERE customer_id").
		WithArgs("c1").
		WillReturnRows(mock.NewRows(loanColumns).AddRow(
			"c1", "p", "s",
			decimalToNumeric(decimal.NewFromInt(200)),
			decimalToNumeric(decimal.RequireFromString("100.5")),
			decimalToNumeric(decimal.NewFromInt(5)),
			pgtype.Timestamptz{Time: created, Valid: true},
			pgtype.Timestamptz{},
		))

	loan, err := repo.GetByCustomerID(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !loan.TotalLoanPayed.Equal(decimal.RequireFromString("100.5")) {
		t.Fatalf("expected paid 100.5, got %s", loan.TotalLoanPayed)
	}
	if !loan.CreationDate.Equal(created) || !loan.LastUpdated.IsZero() {
		t.Fatalf("unexpected timestamps: %v %v", loan.CreationDate, loan.LastUpdated)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoanRepository_GetByCustomerID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM loans WHERE customer_id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByCustomerID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrLoanNotFound) {
		t.Fatalf("expected ErrLoanNotFound, got %v", err)
	}
}

func TestLoanRepository_UpdatePayment(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "updated", affected: 1},
		{name: "missing loan", affected: 0, wantErr: domain.ErrLoanNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			loan := testLoan()
			loan.LastUpdated = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

			mock.ExpectExec("UPDATE loans SET total_loan_payed").
				WithArgs("c1", decimalToNumeric(loan.TotalLoanPayed), timeToPgTimestamptz(loan.LastUpdated)).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			err := repo.UpdatePayment(context.Background(), loan)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestLoanRepository_UpdatePayment_PermanentError(t *testing.T) {
	repo, mock := newMockRepo(t)
	dbErr := errors.New("connection refused")

	mock.ExpectExec("UPDATE loans").WillReturnError(dbErr)

	err := repo.UpdatePayment(context.Background(), testLoan())
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestLoanRepository_List(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := pgtype.Timestamptz{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true}
	amount := decimalToNumeric(decimal.NewFromInt(100))

	mock.ExpectQuery("FROM loans ORDER BY customer_id").
		WithArgs(int64(2), int64(0)).
		WillReturnRows(mock.NewRows(loanColumns).
			AddRow("a", "p", "s", amount, amount, amount, created, created).
			AddRow("b", "p", "s", amount, amount, amount, created, pgtype.Timestamptz{}))

	loans, err := repo.List(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(loans) != 2 || loans[0].CustomerID != "a" || loans[1].CustomerID != "b" {
		t.Fatalf("unexpected loans: %+v", loans)
	}
	if loans[0].State() != domain.LoanStateFinished {
		t.Fatalf("expected finished loan")
	}
}

func TestLoanRepository_List_LargeOffset(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM loans ORDER BY customer_id").
		WithArgs(int64(20), int64(3000000000)).
		WillReturnRows(mock.NewRows(loanColumns))

	loans, err := repo.List(context.Background(), 20, 3000000000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(loans) != 0 {
		t.Fatalf("expected no loans past the end, got %d", len(loans))
	}
}

func TestNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "0.01", "123.456", "-5", "1000000000"} {
		d := decimal.RequireFromString(s)
		if got := numericToDecimal(decimalToNumeric(d)); !got.Equal(d) {
			t.Fatalf("round trip of %s gave %s", s, got)
		}
	}

	if !numericToDecimal(pgtype.Numeric{}).IsZero() {
		t.Fatalf("invalid numeric should map to zero")
	}
}
