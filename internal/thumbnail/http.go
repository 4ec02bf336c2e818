package thumbnail

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/your-org/framegen/internal/media"
)

const maxBodyBytes = 8 << 20

// HTTPHandler exposes REST endpoints for the thumbnail service.
type HTTPHandler struct {
	service *Service
	logger  *zap.Logger
	timeout time.Duration
	extra   []func(chi.Router)
	router  chi.Router
}

// NewHTTPHandler constructs the HTTP handler and wires routes. timeout
// bounds each request; zero uses two minutes. extra registers additional
// routes behind the same middleware.
func NewHTTPHandler(service *Service, logger *zap.Logger, timeout time.Duration, extra ...func(chi.Router)) *HTTPHandler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	h := &HTTPHandler{
		service: service,
		logger:  logger,
		timeout: timeout,
		extra:   extra,
	}
	h.buildRouter()
	return h
}

func (h *HTTPHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.timeout))

	r.Get("/healthz", h.handleHealth)
	r.Post("/api/v1/thumbnails", h.handleThumbnail)
	r.Post("/api/v1/thumbnails/sheet", h.handleSheet)
	r.Post("/api/v1/thumbnails/upload", h.handleUpload)
	for _, register := range h.extra {
		register(r)
	}

	h.router = r
}

// Router exposes the configured chi router.
func (h *HTTPHandler) Router() http.Handler {
	return h.router
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *HTTPHandler) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	var req Request
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.Generate(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *HTTPHandler) handleSheet(w http.ResponseWriter, r *http.Request) {
	var req SheetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.Sheet(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.Upload(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, media.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, media.ErrDownload):
		return http.StatusNotFound
	case errors.Is(err, media.ErrDecode):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}
