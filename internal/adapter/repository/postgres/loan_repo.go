package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/loanledger/internal/domain"
)

// DBTX is the subset of *pgxpool.Pool the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	createLoanSQL = `INSERT INTO loans (
	customer_id, product_id, shop_id, total_loan_amount, total_loan_payed,
	daily_rate, creation_date, last_updated
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (customer_id) DO NOTHING`

	getLoanSQL = `SELECT customer_id, product_id, shop_id, total_loan_amount, total_loan_payed,
	daily_rate, creation_date, last_updated
FROM loans WHERE customer_id = $1`

	updateLoanPaymentSQL = `UPDATE loans SET total_loan_payed = $2, last_updated = $3
WHERE customer_id = $1`

	listLoansSQL = `SELECT customer_id, product_id, shop_id, total_loan_amount, total_loan_payed,
	daily_rate, creation_date, last_updated
FROM loans ORDER BY customer_id LIMIT $1 OFFSET $2`
)

// LoanRepository implements usecase.LoanRepository on PostgreSQL.
type LoanRepository struct {
	db      DBTX
	retrier *Retrier
}

// NewLoanRepository creates a new LoanRepository.
func NewLoanRepository(db DBTX, retrier *Retrier) *LoanRepository {
	if retrier == nil {
		retrier = NewRetrier()
	}
	return &LoanRepository{db: db, retrier: retrier}
}

// Create inserts a new loan.
func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	var tag pgconn.CommandTag

	err := r.retrier.Retry(ctx, func() error {
		var err error
		tag, err = r.db.Exec(ctx, createLoanSQL,
			loan.CustomerID,
			loan.ProductID,
			loan.ShopID,
			decimalToNumeric(loan.TotalLoanAmount),
			decimalToNumeric(loan.TotalLoanPayed),
			decimalToNumeric(loan.DailyRate),
			timeToPgTimestamptz(loan.CreationDate),
			timeToPgTimestamptz(loan.LastUpdated),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert loan: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrLoanAlreadyExists
	}

	return nil
}

// GetByCustomerID retrieves a loan by customer ID.
func (r *LoanRepository) GetByCustomerID(ctx context.Context, customerID string) (*domain.Loan, error) {
	loan, err := scanLoan(r.db.QueryRow(ctx, getLoanSQL, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}

		return nil, err
	}

	return loan, nil
}

// UpdatePayment persists the paid total and last-updated timestamp.
func (r *LoanRepository) UpdatePayment(ctx context.Context, loan *domain.Loan) error {
	var tag pgconn.CommandTag

	err := r.retrier.Retry(ctx, func() error {
		var err error
		tag, err = r.db.Exec(ctx, updateLoanPaymentSQL,
			loan.CustomerID,
			decimalToNumeric(loan.TotalLoanPayed),
			timeToPgTimestamptz(loan.LastUpdated),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update loan payment: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrLoanNotFound
	}

	return nil
}

// List lists loans ordered by customer ID.
func (r *LoanRepository) List(ctx context.Context, limit, offset int) ([]*domain.Loan, error) {
	rows, err := r.db.Query(ctx, listLoansSQL, int64(limit), int64(offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans := make([]*domain.Loan, 0, limit)
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}

	return loans, rows.Err()
}

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var (
		loan                 domain.Loan
		amount, payed, rate  pgtype.Numeric
		createdAt, updatedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&loan.CustomerID,
		&loan.ProductID,
		&loan.ShopID,
		&amount,
		&payed,
		&rate,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	loan.TotalLoanAmount = numericToDecimal(amount)
	loan.TotalLoanPayed = numericToDecimal(payed)
	loan.DailyRate = numericToDecimal(rate)
	loan.CreationDate = pgTimestamptzToTime(createdAt)
	loan.LastUpdated = pgTimestamptzToTime(updatedAt)

	return &loan, nil
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}

	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// Zero times are stored as NULL.
func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

func pgTimestamptzToTime(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time.UTC()
}
