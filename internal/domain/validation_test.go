package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateCustomerID(t *testing.T) {
	t.Parallel()

	t.Run("valid uuid", func(t *testing.T) {
		if err := ValidateCustomerID("2516e61e-8da9-4a22-9a70-f8b9c01bacca"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("opaque id accepted", func(t *testing.T) {
		if err := ValidateCustomerID("customer-42"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("blank rejected", func(t *testing.T) {
		if err := ValidateCustomerID("   "); !errors.Is(err, ErrInvalidCustomerID) {
			t.Fatalf("expected ErrInvalidCustomerID, got %v", err)
		}
	})

	t.Run("surrounding whitespace rejected", func(t *testing.T) {
		if err := ValidateCustomerID(" customer-42"); !errors.Is(err, ErrInvalidCustomerID) {
			t.Fatalf("expected ErrInvalidCustomerID, got %v", err)
		}
	})

	t.Run("too long", func(t *testing.T) {
		tooLong := strings.Repeat("a", MaxCustomerIDLength+1)
		if err := ValidateCustomerID(tooLong); !errors.Is(err, ErrInvalidCustomerID) {
			t.Fatalf("expected ErrInvalidCustomerID, got %v", err)
		}
	})
}

func TestValidatePaymentAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{"regular", "90", false},
		{"minimum", MinPaymentAmount, false},
		{"maximum", MaxPaymentAmount, false},
		{"zero", "0", true},
		{"negative", "-10", true},
		{"below minimum", "0.001", true},
		{"above maximum", "1000000000.01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePaymentAmount(decimal.RequireFromString(tt.amount))
			if tt.wantErr && !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("expected ErrInvalidAmount, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidatePaymentFits(t *testing.T) {
	t.Parallel()

	loan := &Loan{
		TotalLoanAmount: decimal.NewFromInt(200),
		TotalLoanPayed:  decimal.NewFromInt(100),
		DailyRate:       decimal.NewFromInt(5),
	}

	if err := ValidatePaymentFits(loan, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("expected full remaining amount to fit, got %v", err)
	}

	if err := ValidatePaymentFits(loan, decimal.NewFromInt(101)); !errors.Is(err, ErrOverpayment) {
		t.Fatalf("expected ErrOverpayment, got %v", err)
	}
}

func TestPaymentReceived_Validate(t *testing.T) {
	t.Parallel()

	valid := PaymentReceived{CustomerID: "customer-1", PaymentAmount: decimal.NewFromInt(10)}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid payment, got %v", err)
	}

	noCustomer := PaymentReceived{PaymentAmount: decimal.NewFromInt(10)}
	if err := noCustomer.Validate(); !errors.Is(err, ErrInvalidCustomerID) {
		t.Fatalf("expected ErrInvalidCustomerID, got %v", err)
	}

	negative := PaymentReceived{CustomerID: "customer-1", PaymentAmount: decimal.NewFromInt(-10)}
	if err := negative.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
