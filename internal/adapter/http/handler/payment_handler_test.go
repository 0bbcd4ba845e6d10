package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/loanledger/internal/adapter/http/dto"
	"github.com/iho/loanledger/internal/domain"
	"github.com/iho/loanledger/internal/infrastructure/logging"
)

type paymentServiceStub struct {
	applyFn func(ctx context.Context, payment domain.PaymentReceived) (domain.Loan, bool, error)
}

func (s *paymentServiceStub) ApplyPayment(ctx context.Context, payment domain.PaymentReceived) (domain.Loan, bool, error) {
	return s.applyFn(ctx, payment)
}

type sequenceIDGen struct {
	n int
}

func (g *sequenceIDGen) Generate() string {
	g.n++
	return fmt.Sprintf("gen-%d", g.n)
}

func newPaymentRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBufferString(body))
}

func TestPaymentHandler_Create_Updated(t *testing.T) {
	var captured domain.PaymentReceived
	var ctxCorrelation string
	handler := NewPaymentHandler(&paymentServiceStub{
		applyFn: func(ctx context.Context, payment domain.PaymentReceived) (domain.Loan, bool, error) {
			captured = payment
			ctxCorrelation = logging.CorrelationID(ctx)
			loan := sampleLoan(payment.CustomerID)
			loan.ApplyPayment(payment.PaymentAmount, payment.EventDate)
			return loan, true, nil
		},
	}, &sequenceIDGen{})
	handler.now = func() time.Time { return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC) }

	req := newPaymentRequest(t, `{"customer_id":"cust-1","payment_amount":"90","correlation_id":"corr-1"}`)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.CorrelationID != "corr-1" || ctxCorrelation != "corr-1" {
		t.Fatalf("expected correlation corr-1 in payment and context, got %q / %q", captured.CorrelationID, ctxCorrelation)
	}
	if captured.PaymentID != "gen-1" {
		t.Fatalf("expected generated payment ID, got %q", captured.PaymentID)
	}
	if !captured.PaymentAmount.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected amount 90, got %s", captured.PaymentAmount)
	}
	if !captured.EventDate.Equal(time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected event date from clock, got %s", captured.EventDate)
	}
	if got := rec.Header().Get(CorrelationIDHeader); got != "corr-1" {
		t.Fatalf("expected correlation header corr-1, got %q", got)
	}

	var resp dto.PaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.EventType != domain.EventTypeLoanUpdated || resp.DeliveryUnknown {
		t.Fatalf("unexpected payment response %+v", resp)
	}
	if resp.Loan == nil || !resp.Loan.DailyUsageAllowance.Equal(decimal.NewFromInt(38)) {
		t.Fatalf("expected allowance 38, got %+v", resp.Loan)
	}
}

func TestPaymentHandler_Create_Finished(t *testing.T) {
	handler := NewPaymentHandler(&paymentServiceStub{
		applyFn: func(ctx context.Context, payment domain.PaymentReceived) (domain.Loan, bool, error) {
			loan := sampleLoan(payment.CustomerID)
			loan.ApplyPayment(payment.PaymentAmount, payment.EventDate)
			return loan, true, nil
		},
	}, &sequenceIDGen{})

	req := newPaymentRequest(t, `{"customer_id":"cust-1","payment_amount":"100"}`)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.PaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.EventType != domain.EventTypeLoanFinished {
		t.Fatalf("expected %s, got %s", domain.EventTypeLoanFinished, resp.EventType)
	}
	if resp.Loan.State != domain.LoanStateFinished {
		t.Fatalf("expected finished loan, got %s", resp.Loan.State)
	}
}

func TestPaymentHandler_Create_CorrelationIDSources(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "header", header: "corr-header", want: "corr-header"},
		{name: "generated", want: "gen-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured domain.PaymentReceived
			handler := NewPaymentHandler(&paymentServiceStub{
				applyFn: func(ctx context.Context, payment domain.PaymentReceived) (domain.Loan, bool, error) {
					captured = payment
					return sampleLoan(payment.CustomerID), true, nil
				},
			}, &sequenceIDGen{})

			req := newPaymentRequest(t, `{"customer_id":"cust-1","payment_amount":"10"}`)
			if tt.header != "" {
				req.Header.Set(CorrelationIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()

			handler.Create(rec, req)

			if captured.CorrelationID != tt.want {
				t.Fatalf("expected correlation %q, got %q", tt.want, captured.CorrelationID)
			}
			if got := rec.Header().Get(CorrelationIDHeader); got != tt.want {
				t.Fatalf("expected response header %q, got %q", tt.want, got)
			}
		})
	}
}

func TestPaymentHandler_Create_NoActiveLoan(t *testing.T) {
	handler := NewPaymentHandler(&paymentServiceStub{
		applyFn: func(ctx context.Context, payment domain.PaymentReceived) (domain.Loan, bool, error) {
			return domain.Loan{}, false, nil
		},
	}, &sequenceIDGen{})

	req := newPaymentRequest(t, `{"customer_id":"ghost","payment_amount":"10"}`)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPaymentHandler_Create_Rejected(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "overpayment", err: fmt.Errorf("%w: remaining 100", domain.ErrOverpayment), want: http.StatusBadRequest},
		{name: "invalid amount", err: domain.ErrInvalidAmount, want: http.StatusBadRequest},
		{name: "storage", err: fmt.Errorf("update loan: %w", context.DeadlineExceeded), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewPaymentHandler(&paymentServiceStub{
				applyFn: func(ctx context.Context, payment domain.PaymentReceived) (domain.Loan, bool, error) {
					return domain.Loan{}, false, tt.err
				},
			}, &sequenceIDGen{})

			req := newPaymentRequest(t, `{"customer_id":"cust-1","payment_amount":"500"}`)
			rec := httptest.NewRecorder()

			handler.Create(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestPaymentHandler_Create_DeliveryUnknown(t *testing.T) {
	handler := NewPaymentHandler(&paymentServiceStub{
		applyFn: func(ctx context.Context, payment domain.PaymentReceived) (domain.Loan, bool, error) {
			loan := sampleLoan(payment.CustomerID)
			loan.ApplyPayment(payment.PaymentAmount, payment.EventDate)
			return loan, true, fmt.Errorf("%w: broker timeout", domain.ErrEventDeliveryUnknown)
		},
	}, &sequenceIDGen{})

	req := newPaymentRequest(t, `{"customer_id":"cust-1","payment_amount":"90"}`)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	var resp dto.PaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.DeliveryUnknown {
		t.Fatal("expected delivery_unknown to be set")
	}
	if resp.Loan == nil || !resp.Loan.TotalLoanPayed.Equal(decimal.NewFromInt(190)) {
		t.Fatalf("expected the applied balance in the response, got %+v", resp.Loan)
	}
}

func TestPaymentHandler_Create_InvalidJSON(t *testing.T) {
	handler := NewPaymentHandler(&paymentServiceStub{
		applyFn: func(ctx context.Context, payment domain.PaymentReceived) (domain.Loan, bool, error) {
			t.Fatal("ApplyPayment should not be called for invalid payload")
			return domain.Loan{}, false, nil
		},
	}, &sequenceIDGen{})

	req := newPaymentRequest(t, "{invalid json")
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
