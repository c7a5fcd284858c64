package blocks

import (
	"html/template"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// inlineTags is the markup the editor's inline toolbar produces. Anything else
// is unwrapped to its text.
var inlineTags = map[atom.Atom]bool{
	atom.B:      true,
	atom.Strong: true,
	atom.I:      true,
	atom.Em:     true,
	atom.U:      true,
	atom.A:      true,
	atom.Code:   true,
	atom.Mark:   true,
	atom.Br:     true,
}

// droppedTags lose their content as well as their markup.
var droppedTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Template: true,
}

var fragmentContext = &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}

// SanitizeInline reduces s to the inline whitelist and returns it as trusted
// HTML.
func SanitizeInline(s string) template.HTML {
	if s == "" {
		return ""
	}
	nodes, err := html.ParseFragment(strings.NewReader(s), fragmentContext)
	if err != nil {
		return template.HTML(html.EscapeString(s))
	}
	var b strings.Builder
	for _, n := range nodes {
		writeInline(&b, n)
	}
	return template.HTML(b.String())
}

func writeInline(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(html.EscapeString(n.Data))
		return
	case html.ElementNode:
	default:
		return
	}

	if droppedTags[n.DataAtom] {
		return
	}
	allowed := inlineTags[n.DataAtom]
	if allowed {
		b.WriteByte('<')
		b.WriteString(n.Data)
		writeAttrs(b, n)
		b.WriteByte('>')
		if n.DataAtom == atom.Br {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeInline(b, c)
	}
	if allowed {
		b.WriteString("</")
		b.WriteString(n.Data)
		b.WriteByte('>')
	}
}

func writeAttrs(b *strings.Builder, n *html.Node) {
	for _, a := range n.Attr {
		switch {
		case a.Key == "class":
		case a.Key == "href" && n.DataAtom == atom.A && safeURL(a.Val):
		default:
			continue
		}
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Val))
		b.WriteByte('"')
	}
	if n.DataAtom == atom.A {
		b.WriteString(` rel="noopener noreferrer"`)
	}
}

func safeURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return true
	}
	return false
}

// StripTags returns the text content of an inline HTML fragment.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	nodes, err := html.ParseFragment(strings.NewReader(s), fragmentContext)
	if err != nil {
		return s
	}
	var b strings.Builder
	for _, n := range nodes {
		writeText(&b, n)
	}
	return b.String()
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
	case html.ElementNode:
		if droppedTags[n.DataAtom] {
			return
		}
		if n.DataAtom == atom.Br {
			b.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeText(b, c)
		}
	}
}
