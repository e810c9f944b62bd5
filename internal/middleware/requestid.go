// Package middleware provides HTTP middleware for answerdesk: request ids,
// rate limiting, idempotent replays and webhook signature checks.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Strob0t/answerdesk/internal/logger"
)

const (
	headerRequestID = "X-Request-ID"
	maxRequestIDLen = 128
)

// RequestID is HTTP middleware that takes X-Request-ID from the request or
// generates a new one. The id is stored in the context and echoed on the
// response. Client ids that are too long or not printable ASCII are replaced.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if !validRequestID(id) {
			id = uuid.NewString()
		}

		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
