package blocks

import (
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"unicode/utf8"
)

// Renderer turns one block's data into HTML.
type Renderer interface {
	Render(data json.RawMessage) (template.HTML, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(data json.RawMessage) (template.HTML, error)

func (f RendererFunc) Render(data json.RawMessage) (template.HTML, error) { return f(data) }

var (
	registryMu sync.RWMutex
	registry   = map[string]Renderer{
		TypeParagraph: RendererFunc(renderParagraph),
		TypeHeader:    RendererFunc(renderHeader),
		TypeList:      RendererFunc(renderList),
		TypeQuote:     RendererFunc(renderQuote),
		TypeCode:      RendererFunc(renderCode),
		TypeImage:     RendererFunc(renderImage),
	}
)

// Register installs r for blockType, replacing any existing renderer.
func Register(blockType string, r Renderer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[blockType] = r
}

func lookup(blockType string) (Renderer, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[blockType]
	return r, ok
}

var templates = template.Must(template.New("blocks").Parse(`
{{define "paragraph"}}<p class="mb-4 leading-relaxed">{{.}}</p>{{end}}
{{define "header"}}{{if eq .Level 1}}<h1 class="text-3xl font-bold mt-8 mb-4">{{.Text}}</h1>{{else if eq .Level 3}}<h3 class="text-xl font-semibold mt-6 mb-3">{{.Text}}</h3>{{else}}<h2 class="text-2xl font-bold mt-8 mb-4">{{.Text}}</h2>{{end}}{{end}}
{{define "items"}}{{range .}}<li>{{.Content}}{{if .Items}}{{template "list" .Items}}{{end}}</li>{{end}}{{end}}
{{define "list"}}{{if .Ordered}}<ol class="list-decimal pl-6 mb-4">{{template "items" .Items}}</ol>{{else}}<ul class="list-disc pl-6 mb-4">{{template "items" .Items}}</ul>{{end}}{{end}}
{{define "quote"}}<blockquote class="border-l-4 pl-4 italic my-6"><p>{{.Text}}</p>{{if .Caption}}<cite class="block mt-2 text-sm">&mdash; {{.Caption}}</cite>{{end}}</blockquote>{{end}}
{{define "code"}}<pre class="bg-gray-900 text-gray-100 rounded p-4 overflow-x-auto my-6"><code>{{.}}</code></pre>{{end}}
{{define "image"}}<figure class="my-6"><img src="{{.Src}}" alt="{{.Alt}}" class="rounded{{if .Border}} border{{end}}{{if .Stretched}} w-full{{end}}">{{if .Caption}}<figcaption class="text-sm text-center mt-2">{{.Caption}}</figcaption>{{end}}</figure>{{end}}
{{define "fallback"}}<div class="whitespace-pre-wrap">{{.}}</div>{{end}}
`))

func execute(name string, data any) (template.HTML, error) {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(b.String()), nil
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func renderParagraph(data json.RawMessage) (template.HTML, error) {
	var d ParagraphData
	if err := decode(data, &d); err != nil {
		return "", err
	}
	return execute("paragraph", SanitizeInline(d.Text))
}

// HeaderLevel clamps a stored level to the 1..3 range the editor offers.
// Zero means the editor default.
func HeaderLevel(level int) int {
	switch {
	case level == 0:
		return 2
	case level < 1:
		return 1
	case level > 3:
		return 3
	}
	return level
}

func renderHeader(data json.RawMessage) (template.HTML, error) {
	var d HeaderData
	if err := decode(data, &d); err != nil {
		return "", err
	}
	return execute("header", struct {
		Level int
		Text  template.HTML
	}{HeaderLevel(d.Level), SanitizeInline(d.Text)})
}

type listView struct {
	Ordered bool
	Items   []listItemView
}

type listItemView struct {
	Content template.HTML
	Items   *listView
}

func toListView(ordered bool, items []ListItem) *listView {
	v := &listView{Ordered: ordered, Items: make([]listItemView, 0, len(items))}
	for _, it := range items {
		iv := listItemView{Content: SanitizeInline(it.Content)}
		if len(it.Items) > 0 {
			iv.Items = toListView(ordered, it.Items)
		}
		v.Items = append(v.Items, iv)
	}
	return v
}

func renderList(data json.RawMessage) (template.HTML, error) {
	var d ListData
	if err := decode(data, &d); err != nil {
		return "", err
	}
	return execute("list", toListView(d.Style == "ordered", d.Items))
}

func renderQuote(data json.RawMessage) (template.HTML, error) {
	var d QuoteData
	if err := decode(data, &d); err != nil {
		return "", err
	}
	return execute("quote", struct {
		Text, Caption template.HTML
	}{SanitizeInline(d.Text), SanitizeInline(d.Caption)})
}

func renderCode(data json.RawMessage) (template.HTML, error) {
	var d CodeData
	if err := decode(data, &d); err != nil {
		return "", err
	}
	return execute("code", d.Code)
}

func renderImage(data json.RawMessage) (template.HTML, error) {
	var d ImageData
	if err := decode(data, &d); err != nil {
		return "", err
	}
	if d.Source() == "" {
		return "", nil
	}
	return execute("image", struct {
		Src               string
		Alt               string
		Caption           template.HTML
		Border, Stretched bool
	}{d.Source(), StripTags(d.Caption), SanitizeInline(d.Caption), d.WithBorder, d.Stretched})
}

// Render returns the HTML for b. Unknown types carrying data.text render as a
// paragraph; anything else, including undecodable data, renders empty.
func Render(b Block) template.HTML {
	r, ok := lookup(b.Type)
	if !ok {
		var d ParagraphData
		if decode(b.Data, &d) != nil || d.Text == "" {
			return ""
		}
		r = RendererFunc(renderParagraph)
	}
	out, err := r.Render(b.Data)
	if err != nil {
		return ""
	}
	return out
}

// RenderDocument renders every block in order, or the fallback text when
// the stored content was not a document.
func RenderDocument(p Parsed) template.HTML {
	if p.Document == nil {
		if p.Fallback == "" {
			return ""
		}
		out, err := execute("fallback", p.Fallback)
		if err != nil {
			return ""
		}
		return out
	}
	var b strings.Builder
	for _, blk := range p.Document.Blocks {
		b.WriteString(string(Render(blk)))
	}
	return template.HTML(b.String())
}

// PlainText returns the visible text of b without markup.
func PlainText(b Block) string {
	switch b.Type {
	case TypeList:
		var d ListData
		if decode(b.Data, &d) != nil {
			return ""
		}
		var parts []string
		collectItems(&parts, d.Items)
		return strings.Join(parts, " ")
	case TypeCode:
		var d CodeData
		if decode(b.Data, &d) != nil {
			return ""
		}
		return d.Code
	case TypeImage:
		var d ImageData
		if decode(b.Data, &d) != nil {
			return ""
		}
		return StripTags(d.Caption)
	}
	var d ParagraphData
	if decode(b.Data, &d) != nil {
		return ""
	}
	return strings.TrimSpace(StripTags(d.Text))
}

func collectItems(parts *[]string, items []ListItem) {
	for _, it := range items {
		if t := strings.TrimSpace(StripTags(it.Content)); t != "" {
			*parts = append(*parts, t)
		}
		collectItems(parts, it.Items)
	}
}

// ExcerptPlaceholder is shown when no excerpt can be derived.
const ExcerptPlaceholder = "Read more about this article..."

// DefaultExcerptLength is the number of characters kept from the first paragraph.
const DefaultExcerptLength = 150

// Excerpt derives a teaser from the first non-empty paragraph, cut to n
// characters with a trailing ellipsis when shortened.
func Excerpt(p Parsed, n int) string {
	if p.Document == nil {
		return ExcerptPlaceholder
	}
	for _, b := range p.Document.Blocks {
		if b.Type != TypeParagraph {
			continue
		}
		text := strings.Join(strings.Fields(PlainText(b)), " ")
		if text == "" {
			continue
		}
		return truncate(text, n)
	}
	return ExcerptPlaceholder
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:n]), " ") + "..."
}
