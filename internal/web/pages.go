package web

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

//go:embed pages/*.md
var pageFS embed.FS

// Raw HTML in the Markdown sources is escaped since WithUnsafe is not set.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Typographer),
	goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps()),
)

// StaticPage is a policy document rendered once at startup.
type StaticPage struct {
	Title string
	Body  template.HTML
}

// LoadStaticPage renders pages/<slug>.md. The first level-one heading is the
// page title.
func LoadStaticPage(slug string) (StaticPage, error) {
	src, err := pageFS.ReadFile("pages/" + slug + ".md")
	if err != nil {
		return StaticPage{}, fmt.Errorf("load page %s: %w", slug, err)
	}
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return StaticPage{}, fmt.Errorf("render page %s: %w", slug, err)
	}
	return StaticPage{Title: markdownTitle(src, slug), Body: template.HTML(buf.String())}, nil
}

func markdownTitle(src []byte, fallback string) string {
	sc := bufio.NewScanner(bytes.NewReader(src))
	for sc.Scan() {
		if title, ok := strings.CutPrefix(sc.Text(), "# "); ok {
			return strings.TrimSpace(title)
		}
	}
	return fallback
}

// StaticPageHandler serves a pre-rendered policy page.
func (rd *Renderer) StaticPageHandler(slug string) (http.HandlerFunc, error) {
	page, err := LoadStaticPage(slug)
	if err != nil {
		return nil, err
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rd.Render(w, r, http.StatusOK, "static", page.Title, page)
	}, nil
}

// Home serves the landing page.
func (rd *Renderer) Home(w http.ResponseWriter, r *http.Request) {
	rd.Render(w, r, http.StatusOK, "home", "", nil)
}
