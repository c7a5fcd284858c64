package editor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"inkwell/internal/backend"
	"inkwell/internal/session"
	"inkwell/internal/web"
	dErrors "inkwell/pkg/domain-errors"
	"inkwell/pkg/platform/httputil"
	"inkwell/pkg/requestcontext"
)

// ImageUploader stores an image and returns its public URL.
type ImageUploader interface {
	UploadImage(ctx context.Context, token string, image backend.Upload) (string, error)
}

// Handler serves the endpoints the browser editor calls directly.
type Handler struct {
	manager        *Manager
	uploader       ImageUploader
	logger         *slog.Logger
	maxUploadBytes int64
}

func NewHandler(manager *Manager, uploader ImageUploader, logger *slog.Logger, maxUploadBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{manager: manager, uploader: uploader, logger: logger, maxUploadBytes: maxUploadBytes}
}

// Register mounts the editor endpoints. Callers guard them for authenticated
// users.
func (h *Handler) Register(r chi.Router) {
	r.Post("/editor/images", h.handleUploadImage)
	r.Post("/editor/{editorID}/ready", h.handleReady)
	r.Post("/editor/{editorID}/release", h.handleRelease)
}

func ownerID(r *http.Request) (int, bool) {
	u := session.FromContext(r.Context()).User()
	if u == nil {
		return 0, false
	}
	return u.ID, true
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(r)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "sign in required"))
		return
	}
	if err := h.manager.MarkReady(chi.URLParam(r, "editorID"), owner); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRelease is called with navigator.sendBeacon when the page unloads.
func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(r)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "sign in required"))
		return
	}
	id := chi.URLParam(r, "editorID")
	if _, err := h.manager.Get(id, owner); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.manager.Release(id)
	w.WriteHeader(http.StatusNoContent)
}

// uploadResponse is the shape the editor's image tool expects.
type uploadResponse struct {
	Success int         `json:"success"`
	File    *uploadFile `json:"file,omitempty"`
	Message string      `json:"message,omitempty"`
}

type uploadFile struct {
	URL string `json:"url"`
}

func (h *Handler) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	store := session.FromContext(ctx)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, uploadResponse{Message: "Image is too large"})
			return
		}
		httputil.WriteJSON(w, http.StatusBadRequest, uploadResponse{Message: "No image provided"})
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, uploadResponse{Message: "No image provided"})
		return
	}
	defer file.Close()

	url, err := h.uploader.UploadImage(ctx, store.Token(), backend.Upload{
		Filename:    header.Filename,
		ContentType: web.UploadContentType(header),
		Data:        file,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			if logoutErr := store.Logout(ctx); logoutErr != nil {
				h.logger.WarnContext(ctx, "logout after rejected upload failed", "error", logoutErr, "request_id", requestID)
			}
		}
		h.logger.WarnContext(ctx, "editor image upload failed", "error", err, "request_id", requestID)
		httputil.WriteJSON(w, httputil.DomainCodeToHTTPStatus(dErrors.CodeOf(err)), uploadResponse{Message: dErrors.UserMessage(err)})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, uploadResponse{Success: 1, File: &uploadFile{URL: url}})
}
