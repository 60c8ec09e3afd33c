// Package middleware carries the request-scoped plumbing shared by every
// route: correlation ids, panic recovery, and rate limiting.
package middleware

import (
	"fmt"
	"net/http"

	fulmerrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/coatworks/sprayshop/internal/errors"
	"github.com/coatworks/sprayshop/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns each request a correlation id, honoring an inbound
// X-Request-ID header when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(apperrors.WithRequestID(r.Context(), id)))
	})
}

// Recovery converts handler panics into a 500 JSON error body instead of a
// dropped connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			requestID := apperrors.RequestIDFrom(r.Context())
			observability.ServerLogger.Error("handler panic",
				zap.Any("panic", rec),
				zap.String("path", r.URL.Path),
				zap.String("request_id", requestID))

			envelope := fulmerrors.NewErrorEnvelope(
				apperrors.CodeInternal, fmt.Sprintf("panic: %v", rec))
			if requestID != "" {
				envelope = envelope.WithCorrelationID(requestID)
			}
			writeErrorResponse(w, envelope, http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

// ErrorHandler is Recovery under the name used at router setup.
func ErrorHandler(next http.Handler) http.Handler {
	return Recovery(next)
}

// RateLimit bounds request throughput with a shared token bucket. rps <= 0
// disables limiting.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				envelope := fulmerrors.NewErrorEnvelope(
					apperrors.CodeRateLimited, "too many requests")
				if id := apperrors.RequestIDFrom(r.Context()); id != "" {
					envelope = envelope.WithCorrelationID(id)
				}
				writeErrorResponse(w, envelope, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
