package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/iho/loanledger/internal/usecase"
)

// IdempotencyKeyHeader is the header name for idempotency keys.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReplayObserver is notified when a cached response is replayed.
type ReplayObserver interface {
	ObserveIdempotencyReplay()
}

// IdempotencyMiddleware replays responses for repeated Idempotency-Key values.
type IdempotencyMiddleware struct {
	store    usecase.IdempotencyStore
	observer ReplayObserver
	ttl      time.Duration
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{store: store, ttl: usecase.IdempotencyKeyTTL}
}

// WithObserver reports replays to o.
func (m *IdempotencyMiddleware) WithObserver(o ReplayObserver) *IdempotencyMiddleware {
	m.observer = o
	return m
}

// WithTTL overrides how long keys and responses are kept.
func (m *IdempotencyMiddleware) WithTTL(ttl time.Duration) *IdempotencyMiddleware {
	if ttl > 0 {
		m.ttl = ttl
	}
	return m
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only apply to mutating requests
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		exists, cached, err := m.store.CheckAndSet(r.Context(), key, nil, m.ttl)
		if err != nil {
			http.Error(w, "idempotency check failed", http.StatusInternalServerError)
			return
		}

		if exists {
			if cached == nil || string(cached) == usecase.IdempotencyPendingMarker {
				http.Error(w, "request with this idempotency key is in progress", http.StatusConflict)
				return
			}

			if m.observer != nil {
				m.observer.ObserveIdempotencyReplay()
			}
			status, body := decodeCachedResponse(cached)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Idempotency-Replay", "true")
			w.WriteHeader(status)
			_, _ = w.Write(body)
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(recorder, r)

		// The handler has already answered; store failures only cost a replay.
		ctx := context.WithoutCancel(r.Context())
		if paymentApplied(recorder.statusCode) {
			if err := m.store.Update(ctx, key, encodeCachedResponse(recorder.statusCode, recorder.body.Bytes()), m.ttl); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("failed to store idempotent response")
			}
			return
		}

		if err := m.store.Release(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
		}
	})
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// paymentApplied reports whether a response means the request changed state.
// 502 is the delivery-unknown answer: the balance moved even though the event send failed,
// so a retry with the same key must replay it instead of paying again.
func paymentApplied(status int) bool {
	return (status >= 200 && status < 300) || status == http.StatusBadGateway
}

type cachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

func encodeCachedResponse(status int, body []byte) []byte {
	data, err := jsoniter.Marshal(cachedResponse{Status: status, Body: body})
	if err != nil {
		return body
	}
	return data
}

// decodeCachedResponse falls back to a plain 200 body for values written without a status.
func decodeCachedResponse(data []byte) (int, []byte) {
	var cached cachedResponse
	if err := jsoniter.Unmarshal(data, &cached); err != nil || cached.Status == 0 {
		return http.StatusOK, data
	}
	return cached.Status, cached.Body
}
