package usecase

import "time"

const (
	// DefaultEventSendTimeout bounds a single event send. A send that times out is
	// reported as delivery unknown; the balance mutation stays applied.
	DefaultEventSendTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// IdempotencyPendingMarker holds an idempotency key while the first request is still running.
	IdempotencyPendingMarker = "processing"

	// DefaultListLimit and MaxListLimit bound loan listings.
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Payment outcomes reported to PaymentRecorder.
const (
	PaymentOutcomeUpdated       = "updated"
	PaymentOutcomeFinished      = "finished"
	PaymentOutcomeNoActiveLoan  = "no_active_loan"
	PaymentOutcomeRejected      = "rejected"
	PaymentOutcomeDeliveryError = "delivery_error"
	PaymentOutcomeError         = "error"
)
