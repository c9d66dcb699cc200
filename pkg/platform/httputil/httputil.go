// Package httputil centralizes JSON response envelopes so every handler
// returns errors and bodies the same way.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "disha/pkg/domain-errors"
)

// Validatable lets request types validate and parse themselves after decode.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes the JSON body into T, runs its Validate hook, and
// writes the error envelope itself on failure. Handlers bail out when ok is
// false.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "malformed request body", "request_id", requestID, "error", err)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body must be valid JSON"))
		return nil, false
	}
	if v, ok := any(&req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			WriteError(w, err)
			return nil, false
		}
	}
	return &req, true
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the JSON envelope for rejected requests.
type ErrorResponse struct {
	Error            string   `json:"error"`
	ErrorDescription string   `json:"error_description,omitempty"`
	Reasons          []string `json:"reasons,omitempty"`
}

// WriteError translates a coded domain error into an HTTP error envelope.
// Internal errors deliberately omit the description so storage details never
// leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{
		Error:            string(code),
		ErrorDescription: dErrors.MessageOf(err),
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}

// WriteErrorReasons writes an error envelope carrying a full reason list,
// used for guard failures where the caller renders a checklist.
func WriteErrorReasons(w http.ResponseWriter, err error, reasons []string) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{
		Error:            string(code),
		ErrorDescription: dErrors.MessageOf(err),
		Reasons:          reasons,
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}
