package analytics

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"inkwell/internal/session"
	"inkwell/internal/web"
	dErrors "inkwell/pkg/domain-errors"
	"inkwell/pkg/platform/httputil"
	"inkwell/pkg/requestcontext"
)

type Handler struct {
	service  *Service
	renderer *web.Renderer
	logger   *slog.Logger
}

func NewHandler(service *Service, renderer *web.Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, renderer: renderer, logger: logger}
}

// Register mounts the analytics page. It belongs behind an Admin guard.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/analytics", h.HandleAnalytics)
}

type analyticsPage struct {
	Dashboard *Dashboard
	Error     string
}

// HandleAnalytics renders the charts, or a page-wide error when either
// collection could not be fetched.
func (h *Handler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.service.Dashboard(ctx, session.FromContext(ctx).Token())
	if err != nil {
		if web.RedirectIfUnauthorized(w, r, err, h.logger) {
			return
		}
		h.logger.WarnContext(ctx, "analytics failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		h.renderer.Render(w, r, httputil.DomainCodeToHTTPStatus(dErrors.CodeOf(err)), "analytics", "Analytics", analyticsPage{
			Error: "Failed to load analytics data. " + dErrors.UserMessage(err),
		})
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "analytics", "Analytics", analyticsPage{Dashboard: d})
}
