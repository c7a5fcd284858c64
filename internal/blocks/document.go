// Package blocks models the block-structured documents the browser editor
// produces and renders them to HTML.
package blocks

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Document is the editor's output: an ordered list of typed blocks.
type Document struct {
	Time    int64   `json:"time,omitempty"`
	Version string  `json:"version,omitempty"`
	Blocks  []Block `json:"blocks"`
}

// Block is one unit of content. Data is kept raw and decoded per type at
// render time, so unknown block types survive a load and save round trip.
type Block struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	TypeParagraph = "paragraph"
	TypeHeader    = "header"
	TypeList      = "list"
	TypeQuote     = "quote"
	TypeCode      = "code"
	TypeImage     = "image"
)

type ParagraphData struct {
	Text string `json:"text"`
}

type HeaderData struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}

type ListData struct {
	Style string     `json:"style"`
	Items []ListItem `json:"items"`
}

// ListItem is either a bare string or {content, items} for nested lists.
type ListItem struct {
	Content string     `json:"content"`
	Items   []ListItem `json:"items,omitempty"`
}

func (li *ListItem) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &li.Content)
	}
	type plain ListItem
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*li = ListItem(p)
	return nil
}

type QuoteData struct {
	Text      string `json:"text"`
	Caption   string `json:"caption,omitempty"`
	Alignment string `json:"alignment,omitempty"`
}

type CodeData struct {
	Code string `json:"code"`
}

type ImageData struct {
	File struct {
		URL string `json:"url"`
	} `json:"file"`
	URL            string `json:"url,omitempty"`
	Caption        string `json:"caption,omitempty"`
	WithBorder     bool   `json:"withBorder,omitempty"`
	Stretched      bool   `json:"stretched,omitempty"`
	WithBackground bool   `json:"withBackground,omitempty"`
}

// Source returns file.url, falling back to url.
func (d ImageData) Source() string {
	if d.File.URL != "" {
		return d.File.URL
	}
	return d.URL
}

// NewBlock builds a block from a typed payload.
func NewBlock(blockType string, data any) (Block, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Block{}, err
	}
	return Block{Type: blockType, Data: raw}, nil
}

// DefaultPlaceholder seeds a new editor.
const DefaultPlaceholder = "Start writing your blog post..."

// NewDocument returns the document a fresh editor starts with.
func NewDocument() Document {
	b, _ := NewBlock(TypeParagraph, ParagraphData{Text: DefaultPlaceholder})
	return Document{Blocks: []Block{b}}
}

// IsEmpty reports whether the document has no block with visible text.
func (d Document) IsEmpty() bool {
	for _, b := range d.Blocks {
		if b.Type == TypeImage || strings.TrimSpace(PlainText(b)) != "" {
			return false
		}
	}
	return true
}
