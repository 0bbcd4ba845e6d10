package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iho/loanledger/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	loanKeyPrefix = "loan:"
	loanIndexKey  = "loans:index"
)

// loanDocument is the stored JSON shape of a loan.
type loanDocument struct {
	CustomerID      string          `json:"customer_id"`
	ProductID       string          `json:"product_id"`
	ShopID          string          `json:"shop_id"`
	TotalLoanAmount decimal.Decimal `json:"total_loan_amount"`
	TotalLoanPayed  decimal.Decimal `json:"total_loan_payed"`
	DailyRate       decimal.Decimal `json:"daily_rate"`
	CreationDate    time.Time       `json:"creation_date"`
	LastUpdated     time.Time       `json:"last_updated"`
}

func toDocument(l *domain.Loan) loanDocument {
	return loanDocument{
		CustomerID:      l.CustomerID,
		ProductID:       l.ProductID,
		ShopID:          l.ShopID,
		TotalLoanAmount: l.TotalLoanAmount,
		TotalLoanPayed:  l.TotalLoanPayed,
		DailyRate:       l.DailyRate,
		CreationDate:    l.CreationDate,
		LastUpdated:     l.LastUpdated,
	}
}

func (d loanDocument) toDomain() *domain.Loan {
	return &domain.Loan{
		CustomerID:      d.CustomerID,
		ProductID:       d.ProductID,
		ShopID:          d.ShopID,
		TotalLoanAmount: d.TotalLoanAmount,
		TotalLoanPayed:  d.TotalLoanPayed,
		DailyRate:       d.DailyRate,
		CreationDate:    d.CreationDate,
		LastUpdated:     d.LastUpdated,
	}
}

// LoanRepository implements usecase.LoanRepository on Redis.
// Each loan is a JSON document; loans:index holds every known customer ID.
type LoanRepository struct {
	client *redis.Client
}

// NewLoanRepository creates a new LoanRepository.
func NewLoanRepository(client *redis.Client) *LoanRepository {
	return &LoanRepository{client: client}
}

// Create stores a new loan.
func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	data, err := json.Marshal(toDocument(loan))
	if err != nil {
		return fmt.Errorf("failed to encode loan: %w", err)
	}

	// The index entry is written even for an existing document so a half-done create heals.
	var created *redis.BoolCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, loanKeyPrefix+loan.CustomerID, data, 0)
		pipe.SAdd(ctx, loanIndexKey, loan.CustomerID)
		return nil
	})
	if err != nil {
		return err
	}
	if !created.Val() {
		return domain.ErrLoanAlreadyExists
	}

	return nil
}

// GetByCustomerID loads a loan.
func (r *LoanRepository) GetByCustomerID(ctx context.Context, customerID string) (*domain.Loan, error) {
	data, err := r.client.Get(ctx, loanKeyPrefix+customerID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}

	return decodeLoan(data)
}

// UpdatePayment rewrites the paid total and last-updated timestamp of an existing loan.
// The document is replaced under WATCH so a concurrent writer aborts the update.
func (r *LoanRepository) UpdatePayment(ctx context.Context, loan *domain.Loan) error {
	key := loanKeyPrefix + loan.CustomerID

	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrLoanNotFound
		}
		if err != nil {
			return err
		}

		stored, err := decodeLoan(data)
		if err != nil {
			return err
		}
		stored.TotalLoanPayed = loan.TotalLoanPayed
		stored.LastUpdated = loan.LastUpdated

		updated, err := json.Marshal(toDocument(stored))
		if err != nil {
			return fmt.Errorf("failed to encode loan: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
}

// List returns loans ordered by customer ID.
func (r *LoanRepository) List(ctx context.Context, limit, offset int) ([]*domain.Loan, error) {
	ids, err := r.client.SMembers(ctx, loanIndexKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	if offset >= len(ids) {
		return []*domain.Loan{}, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = loanKeyPrefix + id
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	loans := make([]*domain.Loan, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// Indexed but deleted out of band.
			continue
		}
		loan, err := decodeLoan([]byte(s))
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}

	return loans, nil
}

func decodeLoan(data []byte) (*domain.Loan, error) {
	var doc loanDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode loan: %w", err)
	}
	return doc.toDomain(), nil
}
