package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/iho/loanledger/internal/adapter/http/dto"
	"github.com/iho/loanledger/internal/domain"
	"github.com/iho/loanledger/internal/infrastructure/logging"
	"github.com/iho/loanledger/internal/usecase"
)

// CorrelationIDHeader lets callers pass a correlation ID outside the body.
const CorrelationIDHeader = "X-Correlation-ID"

// PaymentService defines the behavior needed by PaymentHandler.
type PaymentService interface {
	ApplyPayment(ctx context.Context, payment domain.PaymentReceived) (domain.Loan, bool, error)
}

// PaymentHandler accepts payments over HTTP.
type PaymentHandler struct {
	payments PaymentService
	idGen    usecase.IDGenerator
	now      func() time.Time
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(payments PaymentService, idGen usecase.IDGenerator) *PaymentHandler {
	return &PaymentHandler{payments: payments, idGen: idGen, now: time.Now}
}

// Create applies a payment to the customer's active loan.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.ApplyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.CorrelationID == "" {
		req.CorrelationID = r.Header.Get(CorrelationIDHeader)
	}
	if req.CorrelationID == "" {
		req.CorrelationID = h.idGen.Generate()
	}
	if req.PaymentID == "" {
		req.PaymentID = h.idGen.Generate()
	}

	payment := req.ToDomain(h.now())
	ctx := logging.WithCorrelationID(r.Context(), payment.CorrelationID)
	w.Header().Set(CorrelationIDHeader, payment.CorrelationID)

	loan, found, err := h.payments.ApplyPayment(ctx, payment)
	if errors.Is(err, domain.ErrEventDeliveryUnknown) {
		// The balance changed; the caller gets the new state with the error status.
		writeJSON(w, http.StatusBadGateway, dto.PaymentFromDomain(loan, payment.CorrelationID, true))
		return
	}
	if err != nil {
		writeError(w, mapDomainError(err), "failed to apply payment", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no active loan", payment.CustomerID)
		return
	}

	writeJSON(w, http.StatusOK, dto.PaymentFromDomain(loan, payment.CorrelationID, false))
}
