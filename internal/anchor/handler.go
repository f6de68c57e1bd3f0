package anchor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/yourorg/custodian/internal/apperr"
	"github.com/yourorg/custodian/internal/auditlog"
	"github.com/yourorg/custodian/internal/auth"
	"github.com/yourorg/custodian/internal/ratelimit"
	"github.com/yourorg/custodian/internal/storage"
)

type Handler struct {
	svc       *Service
	limiter   *ratelimit.Limiter
	maxUpload int64
	logger    *slog.Logger
}

func NewHandler(svc *Service, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:       svc,
		limiter:   ratelimit.New(cfg.UploadRatePerMin, time.Minute),
		maxUpload: cfg.MaxUploadBytes,
		logger:    logger,
	}
}

// Upload handles POST /upload (multipart image_file, prev_hash).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	corrID := auditlog.CorrelationID(r)
	actorID := auth.Actor(r.Context())
	log := auditlog.CorrelationLogger(h.logger, corrID, actorID)

	if ok, retryAfter := h.limiter.Allow(actorID); !ok {
		writeError(w, corrID, apperr.RateLimitError{RetryAfter: retryAfter})
		return
	}

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, corrID, apperr.ValidationError{Field: "image_file", Message: "exceeds " + strconv.FormatInt(tooLarge.Limit, 10) + " bytes"})
			return
		}
		writeError(w, corrID, apperr.ValidationError{Field: "body", Message: "expected multipart form: " + err.Error()})
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	files := r.MultipartForm.File["image_file"]
	if len(files) == 0 {
		writeError(w, corrID, apperr.Missing("image_file"))
		return
	}
	var file openapi_types.File
	file.InitFromMultipart(files[0])

	result, err := h.svc.Upload(r.Context(), actorID, file, r.FormValue("prev_hash"))
	if err != nil {
		if apperr.Status(err) >= http.StatusInternalServerError {
			log.Error("anchor upload failed", "error", err)
		}
		writeError(w, corrID, err)
		return
	}
	writeJSON(w, http.StatusOK, corrID, result, nil)
}

// Verify handles GET /verify?merkle_root=
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	corrID := auditlog.CorrelationID(r)
	log := auditlog.CorrelationLogger(h.logger, corrID, auth.Actor(r.Context()))

	result, err := h.svc.Verify(r.Context(), r.URL.Query().Get("merkle_root"))
	if err != nil {
		if apperr.Status(err) >= http.StatusInternalServerError {
			log.Error("anchor verification aborted", "error", err)
		}
		writeError(w, corrID, err)
		return
	}
	status := http.StatusOK
	if result.Status == StatusBlockNotFound {
		status = http.StatusNotFound
	}
	log.Info("anchor verified", "status", result.Status)
	writeJSON(w, status, corrID, result, nil)
}

// Attachment handles GET /attachments/{name}
func (h *Handler) Attachment(w http.ResponseWriter, r *http.Request) {
	h.serveObject(w, r, h.svc.Attachment)
}

// Image handles GET /images/{name}
func (h *Handler) Image(w http.ResponseWriter, r *http.Request) {
	h.serveObject(w, r, h.svc.Image)
}

func (h *Handler) serveObject(w http.ResponseWriter, r *http.Request, load func(context.Context, string) ([]byte, storage.ObjectMeta, error)) {
	corrID := auditlog.CorrelationID(r)
	body, meta, err := load(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, corrID, err)
		return
	}
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	if !meta.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", meta.UpdatedAt.Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, corrID string, v any, extra map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	if corrID != "" {
		w.Header().Set("X-Correlation-Id", corrID)
	}
	for k, val := range extra {
		w.Header().Set(k, val)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, corrID string, err error) {
	var extra map[string]string
	if retryAfter, ok := apperr.RetryAfter(err); ok {
		extra = map[string]string{"Retry-After": retryAfter}
	}
	writeJSON(w, apperr.Status(err), corrID, map[string]any{
		"code":      apperr.Code(err),
		"message":   err.Error(),
		"corrId":    corrID,
		"retryable": apperr.Retryable(err),
	}, extra)
}
