// Package guard decides whether a page may render for the current identity.
// It is a navigation hint only; the backend enforces authorization.
package guard

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"inkwell/pkg/requestcontext"
)

type Requirement int

const (
	None Requirement = iota
	Authenticated
	// Admin implies Authenticated.
	Admin
)

func (r Requirement) String() string {
	switch r {
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	default:
		return "none"
	}
}

type Decision int

const (
	Render Decision = iota
	RedirectToLogin
	RedirectToDashboard
)

func (d Decision) String() string {
	switch d {
	case RedirectToLogin:
		return "redirect_login"
	case RedirectToDashboard:
		return "redirect_dashboard"
	default:
		return "render"
	}
}

// Identity is what the guard needs to know about the visitor.
type Identity interface {
	IsAuthenticated() bool
	IsAdmin() bool
}

// Decide is pure: the same identity state and requirement give the same answer.
func Decide(id Identity, req Requirement) Decision {
	if req == None {
		return Render
	}
	if id == nil || !id.IsAuthenticated() {
		return RedirectToLogin
	}
	if req == Admin && !id.IsAdmin() {
		return RedirectToDashboard
	}
	return Render
}

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// IdentityFunc extracts the identity of the request.
type IdentityFunc func(ctx context.Context) Identity

// Recorder counts decisions. *metrics.Metrics implements it.
type Recorder interface {
	IncrementGuardDecision(requirement, decision string)
}

type options struct {
	recorder Recorder
	logger   *slog.Logger
}

type Option func(*options)

func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Require runs Decide before the wrapped handler and redirects with 303
// instead of rendering when the decision says so. Redirects to the login page
// carry the original location in "next".
func Require(req Requirement, identity IdentityFunc, opts ...Option) func(http.Handler) http.Handler {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			decision := Decide(identity(ctx), req)
			if o.recorder != nil {
				o.recorder.IncrementGuardDecision(req.String(), decision.String())
			}

			switch decision {
			case RedirectToLogin:
				o.logger.DebugContext(ctx, "guard redirect",
					"path", r.URL.Path,
					"decision", decision.String(),
					"request_id", requestcontext.RequestID(ctx),
				)
				http.Redirect(w, r, LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
			case RedirectToDashboard:
				o.logger.InfoContext(ctx, "guard redirect",
					"path", r.URL.Path,
					"decision", decision.String(),
					"request_id", requestcontext.RequestID(ctx),
				)
				http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// LoginURL builds the login location that returns to next after sign-in.
func LoginURL(next string) string {
	if next == "" || next == LoginPath {
		return LoginPath
	}
	return LoginPath + "?next=" + url.QueryEscape(next)
}

// SafeNext returns next when it is a local path, otherwise fallback. It stops
// the login form from becoming an open redirect.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" || u.Scheme != "" {
		return fallback
	}
	return next
}
