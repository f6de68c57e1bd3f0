package auditlog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// CorrelationLogger scopes logger to one request.
func CorrelationLogger(logger *slog.Logger, corrID, actorID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("corrId", corrID, "actorId", actorID)
}

// CorrelationID returns the caller's X-Correlation-Id, falling back to the
// request id assigned by the router.
func CorrelationID(r *http.Request) string {
	if id := r.Header.Get("X-Correlation-Id"); id != "" {
		return id
	}
	return middleware.GetReqID(r.Context())
}
