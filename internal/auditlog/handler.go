package auditlog

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yourorg/custodian/internal/apperr"
)

// Handler exposes the chain over HTTP.
type Handler struct {
	chain  *Chain
	logger *slog.Logger
}

func NewHandler(chain *Chain, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{chain: chain, logger: logger}
}

// Verify handles GET /audit-log/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	corrID := CorrelationID(r)
	log := CorrelationLogger(h.logger, corrID, "")

	result, err := h.chain.Verify(r.Context())
	if err != nil {
		log.Error("audit verification aborted", "error", err)
		writeError(w, corrID, err)
		return
	}
	log.Info("audit chain verified", "verified", result.Verified, "logCount", result.LogCount)
	writeJSON(w, http.StatusOK, corrID, result)
}

// Head handles GET /audit-log/head
func (h *Handler) Head(w http.ResponseWriter, r *http.Request) {
	corrID := CorrelationID(r)
	head, err := h.chain.Head(r.Context())
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, map[string]string{"head": head})
}

// Entry handles GET /audit-log/entries/{hash}. The stored bytes are returned
// untouched so callers can re-hash them.
func (h *Handler) Entry(w http.ResponseWriter, r *http.Request) {
	corrID := CorrelationID(r)
	hash := chi.URLParam(r, "hash")
	if hash == "" {
		writeError(w, corrID, apperr.Missing("hash"))
		return
	}
	_, raw, err := h.chain.Entry(r.Context(), hash)
	if err != nil && raw == nil {
		writeError(w, corrID, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Correlation-Id", corrID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
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
	writeJSON(w, apperr.Status(err), corrID, map[string]any{
		"code":      apperr.Code(err),
		"message":   err.Error(),
		"corrId":    corrID,
		"retryable": apperr.Retryable(err),
	})
}
