// Package web renders the server's HTML pages and holds the helpers every
// view shares: flash messages, form errors and the session-expiry redirect.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/gorilla/csrf"

	"inkwell/internal/blocks"
	"inkwell/internal/session"
	"inkwell/pkg/requestcontext"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// Page is what every template receives. View-specific values live in Data.
type Page struct {
	Title     string
	User      *session.User
	CSRFField template.HTML
	CSRFToken string
	Flash     *Flash
	Path      string
	Data      any
}

// Renderer executes pre-parsed templates, one per page, each combined with
// the shared layout.
type Renderer struct {
	templates map[string]*template.Template
	logger    *slog.Logger
}

var funcs = template.FuncMap{
	"renderBlocks": func(data string) template.HTML {
		return blocks.RenderDocument(blocks.Deserialize(data))
	},
	"hasPrefix": strings.HasPrefix,
	"add":       func(a, b int) int { return a + b },
	"initial":   initial,
}

// initial is the avatar letter shown when a user has no profile image.
func initial(name string) string {
	for _, r := range strings.TrimSpace(name) {
		return strings.ToUpper(string(r))
	}
	return "?"
}

func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	rd := &Renderer{templates: make(map[string]*template.Template, len(files)), logger: logger}
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(file), ".html")
		tpl, err := template.New(path.Base(layoutFile)).Funcs(funcs).ParseFS(templateFS, layoutFile, file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		rd.templates[name] = tpl
	}
	return rd, nil
}

// Render writes the named page. Output is buffered so a template failure
// still produces a clean error page.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	ctx := r.Context()
	tpl, ok := rd.templates[name]
	if !ok {
		rd.logger.ErrorContext(ctx, "unknown template", "template", name, "request_id", requestcontext.RequestID(ctx))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	page := Page{
		Title:     title,
		User:      session.FromContext(ctx).User(),
		CSRFField: csrf.TemplateField(r),
		CSRFToken: csrf.Token(r),
		Flash:     popFlash(w, r),
		Path:      r.URL.Path,
		Data:      data,
	}

	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, path.Base(layoutFile), page); err != nil {
		rd.logger.ErrorContext(ctx, "template execution failed", "template", name, "error", err, "request_id", requestcontext.RequestID(ctx))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// ErrorPage renders a full-page error with a message safe to show.
func (rd *Renderer) ErrorPage(w http.ResponseWriter, r *http.Request, status int, message string) {
	rd.Render(w, r, status, "error", http.StatusText(status), struct {
		Status  int
		Message string
	}{status, message})
}

// NotFound is usable as the router's 404 handler.
func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rd.ErrorPage(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}

// SeeOther redirects after a form post.
func SeeOther(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}
