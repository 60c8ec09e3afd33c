package middleware

import (
	"net/http"

	fulmerrors "github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/coatworks/sprayshop/internal/errors"
)

// ErrorResponse is the JSON error body shape shared with the handler layer.
type ErrorResponse = apperrors.HTTPErrorResponse

func writeErrorResponse(w http.ResponseWriter, envelope *fulmerrors.ErrorEnvelope, statusCode int) {
	apperrors.WriteEnvelope(w, envelope, statusCode)
}
