package errors

import (
	"encoding/json"
	"net/http"

	fulmerrors "github.com/fulmenhq/gofulmen/errors"
)

// HTTPErrorResponse is the JSON error body written by every handler and
// middleware: {"error": {"code", "message", "request_id", "details"}}.
type HTTPErrorResponse struct {
	Error HTTPErrorBody `json:"error"`
}

type HTTPErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Envelope builds the error envelope and HTTP status for an error.
func Envelope(err error, requestID string) (*fulmerrors.ErrorEnvelope, int) {
	code, status := Classify(err)
	envelope := fulmerrors.NewErrorEnvelope(code, err.Error())
	if requestID != "" {
		envelope = envelope.WithCorrelationID(requestID)
	}
	return envelope, status
}

// WriteEnvelope serializes an envelope as an HTTPErrorResponse.
func WriteEnvelope(w http.ResponseWriter, envelope *fulmerrors.ErrorEnvelope, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := HTTPErrorResponse{
		Error: HTTPErrorBody{
			Code:      envelope.Code,
			Message:   envelope.Message,
			RequestID: envelope.CorrelationID,
			Details:   envelope.Context,
		},
	}
	_ = json.NewEncoder(w).Encode(body)
}

// RespondWithError classifies err and writes the JSON error body, tagging
// it with the request's correlation id.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	envelope, status := Envelope(err, RequestIDFrom(r.Context()))
	WriteEnvelope(w, envelope, status)
}
