package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yourorg/custodian/internal/apperr"
	"github.com/yourorg/custodian/internal/auditlog"
)

// ErrorBody is the JSON error response written by this package.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	CorrID    string `json:"corrId"`
	Retryable bool   `json:"retryable"`
}

// Middleware resolves the acting user and places it in the request context.
// Lookup order: Authorization bearer token, X-Share-Token header, first path
// segment of the Referer.
func Middleware(svc *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID, err := svc.ResolveActor(r.Context(),
				extractBearer(r),
				r.Header.Get("X-Share-Token"),
				refererToken(r.Header.Get("Referer")),
			)
			if err != nil {
				corrID := auditlog.CorrelationID(r)
				logger.Error("actor resolution failed", "corrId", corrID, "ip", getClientIP(r), "error", err)
				writeError(w, corrID, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actorID)))
		})
	}
}

// extractBearer extracts the token from "Authorization: Bearer <token>".
func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, corrID string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if corrID != "" {
		w.Header().Set("X-Correlation-Id", corrID)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, corrID string, err error) {
	if retryAfter, ok := apperr.RetryAfter(err); ok {
		w.Header().Set("Retry-After", retryAfter)
	}
	writeJSON(w, apperr.Status(err), corrID, ErrorBody{
		Code:      apperr.Code(err),
		Message:   err.Error(),
		CorrID:    corrID,
		Retryable: apperr.Retryable(err),
	})
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
