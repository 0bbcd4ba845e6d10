package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/iho/loanledger/internal/infrastructure/logging"
)

type panicResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewRecovery turns a handler panic into a JSON 500 carrying the request ID,
// so a failed payment call can be matched with its log line.
// http.ErrAbortHandler is re-raised for net/http to abort the connection.
func NewRecovery(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				requestID := chimiddleware.GetReqID(r.Context())
				logger.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("request_id", requestID).
					Str("correlation_id", logging.CorrelationID(r.Context())).
					Msg("handler panicked")

				body, _ := jsoniter.Marshal(panicResponse{Error: "internal server error", RequestID: requestID})
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write(body)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
