package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yourorg/custodian/internal/apperr"
	"github.com/yourorg/custodian/internal/auditlog"
)

// Handler provides HTTP handlers for user endpoints.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a new auth handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// LoginRequest is the request body for POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateUserRequest is the request body for POST /users.
type CreateUserRequest struct {
	Username string `json:"username"`
}

// UserResponse carries the share token of a user.
type UserResponse struct {
	Success  bool   `json:"success"`
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	corrID := auditlog.CorrelationID(r)
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, corrID, apperr.ValidationError{Field: "body", Message: "invalid JSON body"})
		return
	}
	user, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		log := auditlog.CorrelationLogger(h.logger, corrID, req.Username)
		log.Warn("login rejected", "ip", getClientIP(r), "error", err)
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, UserResponse{Success: true, Token: user.Token, Username: user.Username})
}

// CreateUser handles POST /users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	corrID := auditlog.CorrelationID(r)
	actorID := Actor(r.Context())
	log := auditlog.CorrelationLogger(h.logger, corrID, actorID)

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, corrID, apperr.ValidationError{Field: "body", Message: "invalid JSON body"})
		return
	}
	user, err := h.svc.CreateUser(r.Context(), actorID, req.Username)
	if err != nil {
		if apperr.Status(err) >= http.StatusInternalServerError {
			log.Error("create user failed", "error", err)
		}
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, UserResponse{Success: true, Token: user.Token, Username: user.Username})
}

// DeleteUser handles DELETE /users/{token}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	corrID := auditlog.CorrelationID(r)
	actorID := Actor(r.Context())
	log := auditlog.CorrelationLogger(h.logger, corrID, actorID)

	if err := h.svc.DeleteUser(r.Context(), actorID, chi.URLParam(r, "token")); err != nil {
		if apperr.Status(err) >= http.StatusInternalServerError {
			log.Error("delete user failed", "error", err)
		}
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, map[string]bool{"success": true})
}
