package custody

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/custodian/internal/apperr"
	"github.com/yourorg/custodian/internal/auditlog"
	"github.com/yourorg/custodian/internal/auth"
)

// Handler provides HTTP handlers for todo, progress and item endpoints.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// TodoResponse is returned by AddTodo.
type TodoResponse struct {
	Success bool `json:"success"`
	Todo    Todo `json:"todo"`
}

type ProgressResponse struct {
	Success  bool     `json:"success"`
	Progress Progress `json:"progress"`
}

type ItemResponse struct {
	Success bool `json:"success"`
	Item    Item `json:"item"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// Data handles GET /data
func (h *Handler) Data(w http.ResponseWriter, r *http.Request) {
	corrID := auditlog.CorrelationID(r)
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		auditlog.CorrelationLogger(h.logger, corrID, auth.Actor(r.Context())).Error("snapshot failed", "error", err)
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, snap)
}

// serve decodes a JSON body into Req, runs op as the request actor and writes
// its result.
func serve[Req any](h *Handler, op string, fn func(ctx context.Context, actorID string, req Req) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		corrID := auditlog.CorrelationID(r)
		actorID := auth.Actor(r.Context())
		log := auditlog.CorrelationLogger(h.logger, corrID, actorID)

		var req Req
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, corrID, apperr.ValidationError{Field: "body", Message: "invalid JSON body"})
			return
		}
		resp, err := fn(r.Context(), actorID, req)
		if err != nil {
			if apperr.Status(err) >= http.StatusInternalServerError {
				log.Error(op+" failed", "error", err)
			}
			writeError(w, corrID, err)
			return
		}
		writeJSON(w, http.StatusOK, corrID, resp)
	}
}

func done(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return successResponse{Success: true}, nil
}

// AddTodo handles POST /todos
func (h *Handler) AddTodo() http.HandlerFunc {
	return serve(h, "add todo", func(ctx context.Context, actorID string, req AddTodoRequest) (any, error) {
		todo, err := h.svc.AddTodo(ctx, actorID, req)
		if err != nil {
			return nil, err
		}
		return TodoResponse{Success: true, Todo: todo}, nil
	})
}

// SetTodoStatus handles POST /todos/status
func (h *Handler) SetTodoStatus() http.HandlerFunc {
	return serve(h, "update todo status", func(ctx context.Context, actorID string, req SetTodoStatusRequest) (any, error) {
		return done(h.svc.SetTodoStatus(ctx, actorID, req))
	})
}

// UpdateTodoText handles POST /todos/text
func (h *Handler) UpdateTodoText() http.HandlerFunc {
	return serve(h, "update todo text", func(ctx context.Context, actorID string, req UpdateTodoTextRequest) (any, error) {
		return done(h.svc.UpdateTodoText(ctx, actorID, req))
	})
}

// DeleteTodo handles POST /todos/delete
func (h *Handler) DeleteTodo() http.HandlerFunc {
	return serve(h, "delete todo", func(ctx context.Context, actorID string, req DeleteTodoRequest) (any, error) {
		return done(h.svc.DeleteTodo(ctx, actorID, req))
	})
}

// RestoreTodo handles POST /todos/restore
func (h *Handler) RestoreTodo() http.HandlerFunc {
	return serve(h, "restore todo", func(ctx context.Context, actorID string, req IDRequest) (any, error) {
		return done(h.svc.RestoreTodo(ctx, actorID, req))
	})
}

// AddProgress handles POST /progress
func (h *Handler) AddProgress() http.HandlerFunc {
	return serve(h, "add progress", func(ctx context.Context, actorID string, req AddProgressRequest) (any, error) {
		p, err := h.svc.AddProgress(ctx, actorID, req)
		if err != nil {
			return nil, err
		}
		return ProgressResponse{Success: true, Progress: p}, nil
	})
}

// UpdateProgress handles POST /progress/update
func (h *Handler) UpdateProgress() http.HandlerFunc {
	return serve(h, "update progress", func(ctx context.Context, actorID string, req UpdateProgressRequest) (any, error) {
		return done(h.svc.UpdateProgress(ctx, actorID, req))
	})
}

// DeleteProgress handles POST /progress/delete
func (h *Handler) DeleteProgress() http.HandlerFunc {
	return serve(h, "delete progress", func(ctx context.Context, actorID string, req IDRequest) (any, error) {
		return done(h.svc.DeleteProgress(ctx, actorID, req))
	})
}

// RestoreProgress handles POST /progress/restore
func (h *Handler) RestoreProgress() http.HandlerFunc {
	return serve(h, "restore progress", func(ctx context.Context, actorID string, req IDRequest) (any, error) {
		return done(h.svc.RestoreProgress(ctx, actorID, req))
	})
}

// AddItem handles POST /items
func (h *Handler) AddItem() http.HandlerFunc {
	return serve(h, "add item", func(ctx context.Context, actorID string, req AddItemRequest) (any, error) {
		item, err := h.svc.AddItem(ctx, actorID, req)
		if err != nil {
			return nil, err
		}
		return ItemResponse{Success: true, Item: item}, nil
	})
}

// RenameItem handles POST /items/name
func (h *Handler) RenameItem() http.HandlerFunc {
	return serve(h, "rename item", func(ctx context.Context, actorID string, req RenameItemRequest) (any, error) {
		return done(h.svc.RenameItem(ctx, actorID, req))
	})
}

// TransferItem handles POST /items/transfer
func (h *Handler) TransferItem() http.HandlerFunc {
	return serve(h, "transfer item", func(ctx context.Context, actorID string, req TransferItemRequest) (any, error) {
		return done(h.svc.TransferItem(ctx, actorID, req))
	})
}

// ReturnItem handles POST /items/return
func (h *Handler) ReturnItem() http.HandlerFunc {
	return serve(h, "return item", func(ctx context.Context, actorID string, req IDRequest) (any, error) {
		return done(h.svc.ReturnItem(ctx, actorID, req))
	})
}

// DeleteItem handles POST /items/delete
func (h *Handler) DeleteItem() http.HandlerFunc {
	return serve(h, "delete item", func(ctx context.Context, actorID string, req IDRequest) (any, error) {
		return done(h.svc.DeleteItem(ctx, actorID, req))
	})
}

// RestoreItem handles POST /items/restore
func (h *Handler) RestoreItem() http.HandlerFunc {
	return serve(h, "restore item", func(ctx context.Context, actorID string, req IDRequest) (any, error) {
		return done(h.svc.RestoreItem(ctx, actorID, req))
	})
}

// ErrorBody is the JSON error response written by this package.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	CorrID    string `json:"corrId"`
	Retryable bool   `json:"retryable"`
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
	writeJSON(w, apperr.Status(err), corrID, ErrorBody{
		Code:      apperr.Code(err),
		Message:   err.Error(),
		CorrID:    corrID,
		Retryable: apperr.Retryable(err),
	})
}
