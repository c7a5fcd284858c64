package blocks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Parsed is the result of reading stored content: a document, or the raw
// text when the stored value was not a document at all.
type Parsed struct {
	Document *Document
	Fallback string
}

// Serialize renders d as the JSON string stored by the backend. The blocks
// array is never null.
func Serialize(d Document) (string, error) {
	data, err := json.Marshal(Normalize(d))
	if err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	return string(data), nil
}

// envelope accepts the current shape {time, version, blocks} and the older
// {content: {blocks}} shape. Blocks stays raw so a missing key can be told
// apart from an empty list.
type envelope struct {
	Time    int64           `json:"time"`
	Version string          `json:"version"`
	Blocks  json.RawMessage `json:"blocks"`
	Content *envelope       `json:"content"`
}

// document returns the block document the envelope holds, or false when it
// holds none.
func (e *envelope) document() (*Document, bool, error) {
	if e.Blocks == nil {
		if e.Content != nil && e.Content.Blocks != nil {
			return e.Content.document()
		}
		return nil, false, nil
	}
	var list []Block
	if err := json.Unmarshal(e.Blocks, &list); err != nil {
		return nil, false, err
	}
	if list == nil {
		list = []Block{}
	}
	return &Document{Time: e.Time, Version: e.Version, Blocks: list}, true, nil
}

// Deserialize reads stored content. It never fails: text that is not a
// block document comes back as Fallback, including JSON objects without a
// blocks list. Empty input is an empty document.
func Deserialize(raw string) Parsed {
	return deserialize(raw, true)
}

func deserialize(raw string, unwrap bool) Parsed {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Parsed{Document: &Document{Blocks: []Block{}}}
	}

	switch trimmed[0] {
	case '{':
		var env envelope
		if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
			return Parsed{Fallback: raw}
		}
		doc, ok, err := env.document()
		if err != nil || !ok {
			return Parsed{Fallback: raw}
		}
		return Parsed{Document: doc}
	case '"':
		// Content stored double-encoded: a JSON string holding the document.
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return Parsed{Fallback: raw}
		}
		if unwrap {
			if p := deserialize(inner, false); p.Document != nil {
				return p
			}
		}
		return Parsed{Fallback: inner}
	}
	return Parsed{Fallback: raw}
}

// Normalize returns the document with null data replaced by {} and nil
// blocks replaced by an empty slice.
func Normalize(d Document) Document {
	out := Document{Time: d.Time, Version: d.Version, Blocks: make([]Block, 0, len(d.Blocks))}
	for _, b := range d.Blocks {
		if len(bytes.TrimSpace(b.Data)) == 0 || bytes.Equal(bytes.TrimSpace(b.Data), []byte("null")) {
			b.Data = json.RawMessage("{}")
		}
		out.Blocks = append(out.Blocks, b)
	}
	return out
}
