// Package errors classifies engine and store failures into the error codes
// surfaced on the HTTP boundary.
package errors

import (
	"context"
	"errors"
	"net/http"

	"github.com/coatworks/sprayshop/pkg/shopstore"
	"github.com/coatworks/sprayshop/pkg/spraytime"
)

// Error codes used in HTTP error bodies.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"
)

// Classify maps an error to its code and HTTP status.
func Classify(err error) (code string, status int) {
	switch {
	case errors.Is(err, spraytime.ErrValidation):
		return CodeValidation, http.StatusBadRequest
	case errors.Is(err, shopstore.ErrNotFound):
		return CodeNotFound, http.StatusNotFound
	case errors.Is(err, spraytime.ErrConflict):
		return CodeConflict, http.StatusConflict
	default:
		return CodeInternal, http.StatusInternalServerError
	}
}

type requestIDKey struct{}

// WithRequestID stores the request correlation id on the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request correlation id, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
