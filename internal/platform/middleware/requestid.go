// Package middleware carries request-scoped facts (request id, actor,
// device) into context before handlers run.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"disha/pkg/requestcontext"
)

// HeaderRequestID is honored when supplied by a trusted proxy; otherwise a
// fresh id is minted per request.
const HeaderRequestID = "X-Request-Id"

// RequestID tags every request with an id and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), requestID)))
	})
}
