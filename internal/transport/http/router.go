package httptransport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"

	"inkwell/internal/account"
	"inkwell/internal/admin"
	"inkwell/internal/analytics"
	"inkwell/internal/auth"
	"inkwell/internal/content"
	"inkwell/internal/editor"
	"inkwell/internal/guard"
	"inkwell/internal/platform/health"
	"inkwell/internal/session"
	"inkwell/internal/web"
	request "inkwell/pkg/platform/middleware/request"
)

// Handlers are the views the router mounts. Health and Metrics are optional.
type Handlers struct {
	Auth      *auth.Handler
	Account   *account.Handler
	Content   *content.Handler
	Editor    *editor.Handler
	Admin     *admin.Handler
	Analytics *analytics.Handler
	Health    *health.Handler
	Metrics   http.Handler
}

// Config carries the cross-cutting pieces every route shares.
type Config struct {
	Logger   *slog.Logger
	Renderer *web.Renderer

	Sessions         session.PersisterFactory
	SessionListeners []session.Listener

	// FlashSealer seals one-shot messages. Nil keeps them readable only by
	// this process.
	FlashSealer *session.Sealer

	// CSRFKey enables gorilla/csrf when set. CSRFSecure marks the token
	// cookie Secure and keeps the Referer check that only applies to HTTPS.
	CSRFKey    []byte
	CSRFSecure bool

	GuardRecorder guard.Recorder
	Latency       *request.Metrics

	Timeout      time.Duration
	MaxBodyBytes int64
}

// Static policy pages, served from embedded Markdown.
var staticPages = []string{"terms-of-service", "privacy-policy"}

// NewRouter wires every page with its middleware and guard.
func NewRouter(cfg Config, h Handlers) (http.Handler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(request.ClientMetadata)
	r.Use(request.Logger(logger))
	if cfg.Latency != nil {
		r.Use(request.LatencyMiddleware(cfg.Latency))
	}
	if cfg.Timeout > 0 {
		r.Use(request.Timeout(cfg.Timeout))
	}
	if cfg.MaxBodyBytes > 0 {
		r.Use(request.BodyLimit(cfg.MaxBodyBytes, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cfg.Renderer.ErrorPage(w, r, http.StatusRequestEntityTooLarge, "That upload is too large. Please choose a smaller file.")
		})))
	}

	// Probes and metrics carry no session and no CSRF token.
	if h.Health != nil {
		h.Health.Register(r)
	}
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	pages := make(map[string]http.HandlerFunc, len(staticPages))
	for _, slug := range staticPages {
		handler, err := cfg.Renderer.StaticPageHandler(slug)
		if err != nil {
			return nil, fmt.Errorf("static page %s: %w", slug, err)
		}
		pages[slug] = handler
	}

	identity := func(ctx context.Context) guard.Identity {
		return session.FromContext(ctx)
	}
	guardOpts := []guard.Option{guard.WithLogger(logger)}
	if cfg.GuardRecorder != nil {
		guardOpts = append(guardOpts, guard.WithRecorder(cfg.GuardRecorder))
	}

	r.Group(func(r chi.Router) {
		if len(cfg.CSRFKey) > 0 {
			r.Use(csrfProtect(cfg.CSRFKey, cfg.CSRFSecure, cfg.Renderer))
		}
		if cfg.FlashSealer != nil {
			r.Use(web.FlashSealer(cfg.FlashSealer))
		}
		r.Use(session.Middleware(cfg.Sessions, logger, cfg.SessionListeners...))

		r.Get("/", cfg.Renderer.Home)
		for slug, handler := range pages {
			r.Get("/"+slug, handler)
		}
		h.Auth.Register(r)
		h.Content.RegisterPublic(r)

		r.Group(func(r chi.Router) {
			r.Use(guard.Require(guard.Authenticated, identity, guardOpts...))
			h.Account.Register(r)
			h.Content.RegisterAuthenticated(r)
			h.Editor.Register(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(guard.Require(guard.Admin, identity, guardOpts...))
			h.Admin.Register(r)
			h.Content.RegisterAdmin(r)
			h.Analytics.Register(r)
		})

		// Unknown paths render with the visitor's session.
		r.NotFound(cfg.Renderer.NotFound)
	})

	return r, nil
}

// csrfProtect guards every form post. Plain HTTP deployments mark requests
// as such so the HTTPS-only Referer check does not reject them.
func csrfProtect(key []byte, secure bool, renderer *web.Renderer) func(http.Handler) http.Handler {
	protect := csrf.Protect(key,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			renderer.ErrorPage(w, r, http.StatusForbidden, "Your form expired. Please go back, reload the page and try again.")
		})),
	)
	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}
